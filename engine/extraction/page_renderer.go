package extraction

import (
	"github.com/disintegration/imaging"

	"github.com/drummonds/pdfpages/engine/pdfrenderer"
)

// RenderedImage is the encoded raster of one page.
type RenderedImage struct {
	Page   int
	Data   []byte
	Width  int
	Height int
	Format string
}

// Rasterizer turns a single-page artifact into an encoded image. It must be
// safe for concurrent use.
type Rasterizer interface {
	Render(a Artifact) (RenderedImage, error)
}

// PageRenderer rasterizes artifacts with a pdfrenderer backend and encodes
// the result.
type PageRenderer struct {
	backend pdfrenderer.Renderer
	format  imaging.Format
	ext     string
}

// NewPageRenderer returns a PageRenderer encoding to imageFormat.
func NewPageRenderer(backend pdfrenderer.Renderer, imageFormat string) (*PageRenderer, error) {
	format, err := pdfrenderer.ParseFormat(imageFormat)
	if err != nil {
		return nil, err
	}
	return &PageRenderer{backend: backend, format: format, ext: imageFormat}, nil
}

// Render opens the artifact, rasterizes its only page and encodes it.
func (r *PageRenderer) Render(a Artifact) (RenderedImage, error) {
	img, err := r.backend.RenderPage(a.Path)
	if err != nil {
		return RenderedImage{}, &PageRenderError{PageIndex: a.Index, Err: err}
	}

	data, err := pdfrenderer.Encode(img, r.format)
	if err != nil {
		return RenderedImage{}, &PageRenderError{PageIndex: a.Index, Err: err}
	}

	bounds := img.Bounds()
	return RenderedImage{
		Page:   a.Index,
		Data:   data,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Format: r.ext,
	}, nil
}
