package extraction

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/drummonds/pdfpages/internal/testpdf"
)

func TestSplit(t *testing.T) {
	doc := loadTestDocument(t, 4)
	tempRoot := t.TempDir()

	set, err := NewSplitter(tempRoot).Split(doc)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	defer set.Release()

	if len(set.Artifacts) != 4 {
		t.Fatalf("Expected 4 artifacts, got %d", len(set.Artifacts))
	}
	if filepath.Dir(set.Dir) != tempRoot {
		t.Errorf("Scratch dir %s is not under temp root %s", set.Dir, tempRoot)
	}

	// Artifacts must stand alone once the source is gone.
	doc.Close()

	for i, a := range set.Artifacts {
		if a.Index != i {
			t.Errorf("Artifact %d has index %d", i, a.Index)
		}
		if filepath.Base(a.Path) != strconv.Itoa(i)+".pdf" {
			t.Errorf("Artifact %d has unexpected name %s", i, a.Path)
		}

		f, r, err := pdf.Open(a.Path)
		if err != nil {
			t.Fatalf("Artifact %d is not a readable PDF: %v", i, err)
		}
		if r.NumPage() != 1 {
			t.Errorf("Artifact %d has %d pages, want 1", i, r.NumPage())
		}
		width := mediaBoxWidth(r.Page(1).V)
		if int(width) != testpdf.PageWidth(i) {
			t.Errorf("Artifact %d has width %v, want %d", i, width, testpdf.PageWidth(i))
		}
		f.Close()
	}
}

func TestSplitReleaseRemovesScratch(t *testing.T) {
	doc := loadTestDocument(t, 2)
	tempRoot := t.TempDir()

	set, err := NewSplitter(tempRoot).Split(doc)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if err := set.Release(); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatalf("Failed to read temp root: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected empty temp root, found %d entries", len(entries))
	}
}

func TestSplitEmptyDocument(t *testing.T) {
	tempRoot := t.TempDir()

	set, err := NewSplitter(tempRoot).Split(&Document{})
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if set.Artifacts == nil || len(set.Artifacts) != 0 {
		t.Errorf("Expected empty non-nil artifact list, got %v", set.Artifacts)
	}

	entries, _ := os.ReadDir(tempRoot)
	if len(entries) != 0 {
		t.Errorf("Empty document must not create scratch files, found %d", len(entries))
	}
}

func TestSplitClosedDocument(t *testing.T) {
	doc := loadTestDocument(t, 1)
	doc.Close()

	_, err := NewSplitter(t.TempDir()).Split(doc)
	if !errors.Is(err, ErrDocumentClosed) {
		t.Fatalf("Expected ErrDocumentClosed, got %v", err)
	}
}

// mediaBoxWidth reads the page width, following inherited MediaBox entries.
func mediaBoxWidth(v pdf.Value) float64 {
	for v.Kind() == pdf.Dict {
		if box := v.Key("MediaBox"); box.Kind() == pdf.Array {
			return box.Index(2).Float64() - box.Index(0).Float64()
		}
		v = v.Key("Parent")
	}
	return 0
}
