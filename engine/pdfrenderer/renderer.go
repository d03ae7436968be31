package pdfrenderer

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
)

// NativeDPI renders one pixel per PDF point, the page's intrinsic resolution.
const NativeDPI = 72.0

// Backend names accepted by NewRenderer.
const (
	BackendPDFium = "pdfium"
	BackendFitz   = "fitz"
)

// Logger is injected from main.
var Logger = slog.Default()

// Renderer defines the interface for single page PDF to image conversion
type Renderer interface {
	// RenderPage rasterizes the first page of the PDF file at filename.
	// Implementations must be safe for concurrent use.
	RenderPage(filename string) (image.Image, error)

	// Close cleans up any resources used by the renderer
	Close() error
}

// NewRenderer creates a renderer for the named backend. An empty backend
// selects PDFium (pure Go, no CGo). workers sizes the backend's instance pool
// and dpi below or equal to zero selects NativeDPI.
func NewRenderer(backend string, workers int, dpi float64) (Renderer, error) {
	if dpi <= 0 {
		dpi = NativeDPI
	}
	if workers < 1 {
		workers = 1
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendPDFium:
		return NewPDFiumRenderer(workers, dpi)
	case BackendFitz:
		return NewFitzRenderer(dpi)
	default:
		return nil, fmt.Errorf("unknown renderer backend %q", backend)
	}
}
