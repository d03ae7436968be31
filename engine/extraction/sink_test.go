package extraction

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func fakeImages(n int) []RenderedImage {
	images := make([]RenderedImage, n)
	for i := range images {
		images[i] = RenderedImage{Page: i, Data: []byte(fmt.Sprintf("image-%d", i)), Format: "png"}
	}
	return images
}

func TestPersistTwentyTwoPages(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "images")

	if err := Persist(context.Background(), fakeImages(22), dir, "png"); err != nil {
		t.Fatalf("Persist failed: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("Failed to read output dir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	var want []string
	for i := 0; i < 22; i++ {
		want = append(want, fmt.Sprintf("%d.png", i))
	}
	slices.Sort(names)
	slices.Sort(want)
	if !slices.Equal(names, want) {
		t.Fatalf("Output files = %v, want %v", names, want)
	}

	for i := 0; i < 22; i++ {
		data, err := os.ReadFile(filepath.Join(dir, fmt.Sprintf("%d.png", i)))
		if err != nil {
			t.Fatalf("Failed to read %d.png: %v", i, err)
		}
		if string(data) != fmt.Sprintf("image-%d", i) {
			t.Errorf("%d.png holds %q", i, data)
		}
	}
}

func TestPersistOutputPathConflict(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "not-a-dir")
	if err := os.WriteFile(target, []byte("occupied"), 0o644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}

	err := Persist(context.Background(), fakeImages(3), target, "png")
	var conflict *OutputPathConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Expected OutputPathConflictError, got %v", err)
	}
	if conflict.Path != target {
		t.Errorf("Conflict path = %s, want %s", conflict.Path, target)
	}

	entries, _ := os.ReadDir(root)
	if len(entries) != 1 {
		t.Errorf("Expected nothing written next to the blocking file, found %d entries", len(entries))
	}
	data, _ := os.ReadFile(target)
	if string(data) != "occupied" {
		t.Error("Blocking file was modified")
	}
}

func TestEnsureOutputDir(t *testing.T) {
	root := t.TempDir()

	t.Run("creates parents", func(t *testing.T) {
		dir := filepath.Join(root, "a", "b", "c")
		if err := EnsureOutputDir(dir); err != nil {
			t.Fatalf("EnsureOutputDir failed: %v", err)
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Fatalf("Expected %s to be a directory", dir)
		}
	})

	t.Run("existing directory", func(t *testing.T) {
		if err := EnsureOutputDir(root); err != nil {
			t.Fatalf("EnsureOutputDir failed on existing dir: %v", err)
		}
	})

	t.Run("parent is a file", func(t *testing.T) {
		file := filepath.Join(root, "file")
		if err := os.WriteFile(file, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		var conflict *OutputPathConflictError
		if err := EnsureOutputDir(filepath.Join(file, "images")); !errors.As(err, &conflict) {
			t.Fatalf("Expected OutputPathConflictError, got %v", err)
		}
	})
}

func TestPersistAggregatesFailures(t *testing.T) {
	dir := t.TempDir()
	// A directory squatting on 3.png makes that one write fail.
	if err := os.Mkdir(filepath.Join(dir, "3.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	err := Persist(context.Background(), fakeImages(6), dir, "png")
	var persistErr *PersistError
	if !errors.As(err, &persistErr) {
		t.Fatalf("Expected PersistError, got %v", err)
	}
	if len(persistErr.Failed) != 1 || persistErr.Failed[0].Index != 3 {
		t.Fatalf("Expected only image 3 to fail, got %v", persistErr)
	}

	for _, i := range []int{0, 1, 2, 4, 5} {
		if _, err := os.Stat(filepath.Join(dir, fmt.Sprintf("%d.png", i))); err != nil {
			t.Errorf("Image %d should still be written: %v", i, err)
		}
	}
}

func TestPersistCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Persist(ctx, fakeImages(2), dir, "png")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestDirSinkPathFor(t *testing.T) {
	s := &DirSink{Dir: "out"}
	if got := s.PathFor(7); got != filepath.Join("out", "7.png") {
		t.Errorf("PathFor(7) = %s", got)
	}
	s.Extension = "jpg"
	if got := s.PathFor(0); got != filepath.Join("out", "0.jpg") {
		t.Errorf("PathFor(0) = %s", got)
	}
}

func TestToBytes(t *testing.T) {
	got := ToBytes(fakeImages(3))
	for i, b := range got {
		if string(b) != fmt.Sprintf("image-%d", i) {
			t.Errorf("ToBytes[%d] = %q", i, b)
		}
	}
	if len(ToBytes(nil)) != 0 {
		t.Error("Expected empty result for no images")
	}
}

func TestSweepScratch(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, ScratchPrefix+"stale")
	fresh := filepath.Join(root, ScratchPrefix+"fresh")
	other := filepath.Join(root, "unrelated")
	for _, dir := range []string{stale, fresh, other} {
		if err := os.Mkdir(dir, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(stale, old, old); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(other, old, old); err != nil {
		t.Fatal(err)
	}

	removed, err := SweepScratch(root, time.Hour)
	if err != nil {
		t.Fatalf("SweepScratch failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 directory removed, got %d", removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("Stale scratch directory should be gone")
	}
	for _, dir := range []string{fresh, other} {
		if _, err := os.Stat(dir); err != nil {
			t.Errorf("%s should be kept: %v", dir, err)
		}
	}
}
