package pdfrenderer

import (
	"fmt"
	"image"

	"github.com/gen2brain/go-fitz"
)

// FitzRenderer implements PDF rendering using go-fitz (requires CGo and MuPDF)
type FitzRenderer struct {
	dpi float64
}

// NewFitzRenderer creates a new Fitz-based PDF renderer
func NewFitzRenderer(dpi float64) (*FitzRenderer, error) {
	return &FitzRenderer{dpi: dpi}, nil
}

// RenderPage renders page 0 of filename. Each call opens its own MuPDF
// document so calls may run in parallel.
func (r *FitzRenderer) RenderPage(filename string) (image.Image, error) {
	doc, err := fitz.New(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer doc.Close()

	if doc.NumPage() < 1 {
		return nil, fmt.Errorf("PDF document %s has no pages", filename)
	}

	img, err := doc.ImageDPI(0, r.dpi)
	if err != nil {
		return nil, fmt.Errorf("unable to render page: %w", err)
	}
	return img, nil
}

// Close cleans up resources (no-op for Fitz renderer as doc is closed per-render)
func (r *FitzRenderer) Close() error {
	return nil
}
