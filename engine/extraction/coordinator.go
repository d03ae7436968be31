package extraction

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/drummonds/pdfpages/engine/pdfrenderer"
)

// ProgressFunc is called after each page finishes, successfully or not.
// Calls come from worker goroutines.
type ProgressFunc func(done, total int)

type pageResult struct {
	image RenderedImage
	err   error
}

// Extractor splits documents and renders their pages on a bounded worker
// pool.
type Extractor struct {
	cfg        Config
	splitter   *Splitter
	rasterizer Rasterizer
	backend    io.Closer
}

// New builds an Extractor with the named pdfrenderer backend. The Extractor
// owns the backend; Close releases it.
func New(cfg Config, backend string) (*Extractor, error) {
	cfg = cfg.WithDefaults()
	r, err := pdfrenderer.NewRenderer(backend, cfg.Workers, cfg.DPI)
	if err != nil {
		return nil, err
	}
	pr, err := NewPageRenderer(r, cfg.ImageFormat)
	if err != nil {
		r.Close()
		return nil, err
	}
	e := NewExtractor(cfg, pr)
	e.backend = r
	return e, nil
}

// NewExtractor builds an Extractor around an existing Rasterizer.
func NewExtractor(cfg Config, r Rasterizer) *Extractor {
	cfg = cfg.WithDefaults()
	return &Extractor{
		cfg:        cfg,
		splitter:   NewSplitter(cfg.TempRoot),
		rasterizer: r,
	}
}

// Config returns the effective configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// Close releases the rendering backend if the Extractor owns one.
func (e *Extractor) Close() error {
	if e.backend == nil {
		return nil
	}
	return e.backend.Close()
}

// ExtractAll renders every page of doc and returns the images in page order.
func (e *Extractor) ExtractAll(ctx context.Context, doc *Document) ([]RenderedImage, error) {
	return e.ExtractAllProgress(ctx, doc, nil)
}

// ExtractAllProgress is ExtractAll with a progress callback.
//
// All pages are attempted. If any fail, no images are returned and the error
// is a *PageExtractionError listing every failed page. Once ctx is done no
// further pages are dispatched; those pages count as failed. Pages already
// rendering run to completion. doc is not closed.
func (e *Extractor) ExtractAllProgress(ctx context.Context, doc *Document, progress ProgressFunc) ([]RenderedImage, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrInvalidSource)
	}

	set, err := e.splitter.Split(doc)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := set.Release(); err != nil {
			Logger.Warn("Failed to release scratch directory", "error", err)
		}
	}()

	total := len(set.Artifacts)
	if total == 0 {
		return []RenderedImage{}, nil
	}

	start := time.Now()
	slots := make([]pageResult, total)
	var done atomic.Int64

	g := new(errgroup.Group)
	g.SetLimit(e.cfg.Workers)
	for i, artifact := range set.Artifacts {
		if ctx.Err() != nil {
			slots[i].err = &PageRenderError{PageIndex: i, Err: ctx.Err()}
			continue
		}
		g.Go(func() error {
			slots[i] = e.renderSlot(artifact)
			if progress != nil {
				progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	g.Wait()

	images := make([]RenderedImage, total)
	var failed []*PageRenderError
	for i, slot := range slots {
		if slot.err != nil {
			failed = append(failed, asPageRenderError(i, slot.err))
			continue
		}
		images[i] = slot.image
	}
	if len(failed) > 0 {
		Logger.Error("Extraction failed", "name", doc.name, "pages", total, "failed", len(failed))
		return nil, &PageExtractionError{Failed: failed}
	}

	Logger.Info("Extracted pages", "name", doc.name, "pages", total,
		"workers", e.cfg.Workers, "duration", time.Since(start))
	return images, nil
}

// renderSlot renders one artifact and removes it afterwards.
func (e *Extractor) renderSlot(a Artifact) (res pageResult) {
	defer func() {
		if err := os.Remove(a.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			Logger.Warn("Failed to remove page artifact", "path", a.Path, "error", err)
		}
	}()
	defer func() {
		if r := recover(); r != nil {
			res = pageResult{err: &PageRenderError{PageIndex: a.Index, Err: fmt.Errorf("renderer panic: %v", r)}}
		}
	}()

	img, err := e.rasterizer.Render(a)
	if err != nil {
		return pageResult{err: err}
	}
	img.Page = a.Index
	return pageResult{image: img}
}

func asPageRenderError(index int, err error) *PageRenderError {
	var pe *PageRenderError
	if errors.As(err, &pe) && pe.PageIndex == index {
		return pe
	}
	return &PageRenderError{PageIndex: index, Err: err}
}

// ExtractFile loads the PDF at path, extracts it and closes it.
func (e *Extractor) ExtractFile(ctx context.Context, path string) ([]RenderedImage, error) {
	doc, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return e.ExtractAll(ctx, doc)
}

// ExtractReader loads a PDF from r, extracts it and closes it.
func (e *Extractor) ExtractReader(ctx context.Context, r io.Reader) ([]RenderedImage, error) {
	doc, err := Load(r)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return e.ExtractAll(ctx, doc)
}
