package extraction

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Artifact is a standalone one-page PDF holding page Index of its source.
type Artifact struct {
	Index int
	Path  string
}

// ArtifactSet is the ordered output of one Split call. The caller owns the
// scratch directory and must Release it.
type ArtifactSet struct {
	Dir       string
	Artifacts []Artifact
}

// Release removes the scratch directory and anything left in it.
func (s *ArtifactSet) Release() error {
	if s == nil || s.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("unable to remove scratch directory %s: %w", s.Dir, err)
	}
	return nil
}

// Splitter writes each page of a document to its own PDF file.
type Splitter struct {
	TempRoot string
}

// NewSplitter returns a Splitter creating scratch directories under tempRoot.
func NewSplitter(tempRoot string) *Splitter {
	return &Splitter{TempRoot: tempRoot}
}

// Split produces one artifact per page, in page order. On failure nothing is
// left on disk.
func (s *Splitter) Split(doc *Document) (*ArtifactSet, error) {
	doc.mu.Lock()
	defer doc.mu.Unlock()

	if doc.closed {
		return nil, ErrDocumentClosed
	}
	if doc.pageCount == 0 {
		return &ArtifactSet{Artifacts: []Artifact{}}, nil
	}

	dir, err := os.MkdirTemp(s.TempRoot, ScratchPattern)
	if err != nil {
		return nil, fmt.Errorf("unable to create scratch directory: %w", err)
	}

	set := &ArtifactSet{Dir: dir, Artifacts: make([]Artifact, 0, doc.pageCount)}
	for i := 0; i < doc.pageCount; i++ {
		path, err := writePage(doc.ctx, i, dir)
		if err != nil {
			if rerr := set.Release(); rerr != nil {
				Logger.Warn("Failed to release partial split", "dir", dir, "error", rerr)
			}
			return nil, err
		}
		set.Artifacts = append(set.Artifacts, Artifact{Index: i, Path: path})
	}

	Logger.Debug("Split document", "name", doc.name, "pages", doc.pageCount, "dir", dir)
	return set, nil
}

func writePage(ctx *model.Context, index int, dir string) (string, error) {
	r, err := api.ExtractPage(ctx, index+1)
	if err != nil {
		return "", &DocumentParseError{Err: fmt.Errorf("unable to extract page %d: %w", index, err)}
	}

	path := filepath.Join(dir, strconv.Itoa(index)+".pdf")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("unable to create page file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("unable to write page %d: %w", index, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("unable to write page %d: %w", index, err)
	}
	return path, nil
}
