package extraction

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidSource is returned for an empty source path or a path that is not
// a regular file.
var ErrInvalidSource = errors.New("invalid PDF source")

// ErrDocumentClosed is returned when splitting a document after Close.
var ErrDocumentClosed = errors.New("document is closed")

// DocumentParseError reports input bytes that are not a well-formed PDF.
type DocumentParseError struct {
	Source string
	Err    error
}

func (e *DocumentParseError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("unable to parse PDF: %v", e.Err)
	}
	return fmt.Sprintf("unable to parse PDF %s: %v", e.Source, e.Err)
}

func (e *DocumentParseError) Unwrap() error { return e.Err }

// PageRenderError reports a single page that could not be rasterized.
type PageRenderError struct {
	PageIndex int
	Err       error
}

func (e *PageRenderError) Error() string {
	return fmt.Sprintf("page %d: %v", e.PageIndex, e.Err)
}

func (e *PageRenderError) Unwrap() error { return e.Err }

// PageExtractionError aggregates every page failure of one extraction, in
// page index order.
type PageExtractionError struct {
	Failed []*PageRenderError
}

// Pages returns the failed page indices.
func (e *PageExtractionError) Pages() []int {
	pages := make([]int, len(e.Failed))
	for i, f := range e.Failed {
		pages[i] = f.PageIndex
	}
	return pages
}

func (e *PageExtractionError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d page(s) failed to render: %s", len(e.Failed), strings.Join(msgs, "; "))
}

func (e *PageExtractionError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// PersistenceError reports one output image that could not be written.
type PersistenceError struct {
	Index int
	Path  string
	Err   error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("unable to write image %d to %s: %v", e.Index, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PersistError aggregates every failed write of one Persist call, in index
// order.
type PersistError struct {
	Failed []*PersistenceError
}

func (e *PersistError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		msgs[i] = f.Error()
	}
	return fmt.Sprintf("%d image(s) failed to persist: %s", len(e.Failed), strings.Join(msgs, "; "))
}

func (e *PersistError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errs
}

// OutputPathConflictError reports an output location that exists and is not
// a directory.
type OutputPathConflictError struct {
	Path string
}

func (e *OutputPathConflictError) Error() string {
	return fmt.Sprintf("output path %s exists and is not a directory", e.Path)
}
