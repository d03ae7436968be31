package extraction

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"
)

// Sink stores the images of one extraction.
type Sink interface {
	Persist(ctx context.Context, images []RenderedImage) error
}

// ToBytes returns the encoded buffers in page order.
func ToBytes(images []RenderedImage) [][]byte {
	out := make([][]byte, len(images))
	for i, img := range images {
		out[i] = img.Data
	}
	return out
}

// EnsureOutputDir creates dir and its parents if needed. An existing
// non-directory at dir, or at one of its parents, is an
// *OutputPathConflictError.
func EnsureOutputDir(dir string) error {
	info, err := os.Stat(dir)
	if err == nil {
		if !info.IsDir() {
			return &OutputPathConflictError{Path: dir}
		}
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, syscall.ENOTDIR) {
		return fmt.Errorf("unable to stat output path: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if errors.Is(err, syscall.ENOTDIR) || errors.Is(err, fs.ErrExist) {
			return &OutputPathConflictError{Path: dir}
		}
		return fmt.Errorf("unable to create output directory: %w", err)
	}
	return nil
}

// DirSink writes images into Dir as {index}.{Extension}.
type DirSink struct {
	Dir       string
	Extension string
	Workers   int
}

// NewDirSink returns a DirSink with one writer per CPU.
func NewDirSink(dir, extension string) *DirSink {
	return &DirSink{Dir: dir, Extension: extension, Workers: runtime.NumCPU()}
}

// PathFor returns the file written for image index.
func (s *DirSink) PathFor(index int) string {
	return filepath.Join(s.Dir, strconv.Itoa(index)+"."+s.extension())
}

func (s *DirSink) extension() string {
	if s.Extension == "" {
		return DefaultImageFormat
	}
	return s.Extension
}

// Persist writes every image in parallel. The directory is checked before
// any write. Every write is attempted; failures come back together as a
// *PersistError.
func (s *DirSink) Persist(ctx context.Context, images []RenderedImage) error {
	if err := EnsureOutputDir(s.Dir); err != nil {
		return err
	}

	return persistAll(ctx, images, s.Workers, func(i int, img RenderedImage) *PersistenceError {
		path := s.PathFor(i)
		if err := os.WriteFile(path, img.Data, 0o644); err != nil {
			return &PersistenceError{Index: i, Path: path, Err: err}
		}
		return nil
	})
}

// Persist writes images into dir as {index}.{ext}.
func Persist(ctx context.Context, images []RenderedImage, dir, ext string) error {
	return NewDirSink(dir, ext).Persist(ctx, images)
}

// persistAll runs write for every image on a bounded pool and aggregates
// the failures in index order.
func persistAll(ctx context.Context, images []RenderedImage, workers int, write func(int, RenderedImage) *PersistenceError) error {
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	failures := make([]*PersistenceError, len(images))

	g := new(errgroup.Group)
	g.SetLimit(workers)
	for i, img := range images {
		if ctx.Err() != nil {
			failures[i] = &PersistenceError{Index: i, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			failures[i] = write(i, img)
			return nil
		})
	}
	g.Wait()

	var failed []*PersistenceError
	for _, f := range failures {
		if f != nil {
			failed = append(failed, f)
		}
	}
	if len(failed) > 0 {
		return &PersistError{Failed: failed}
	}
	return nil
}
