package pdfrenderer

import (
	"errors"
	"fmt"
	"image"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/klippa-app/go-pdfium"
	"github.com/klippa-app/go-pdfium/requests"
	"github.com/klippa-app/go-pdfium/webassembly"
)

// instanceTimeout bounds how long a render waits for a free PDFium instance.
const instanceTimeout = 5 * time.Minute

var errRendererClosed = errors.New("pdfium renderer is closed")

// PDFiumRenderer implements PDF rendering using go-pdfium with WebAssembly (pure Go, no CGo)
type PDFiumRenderer struct {
	mu   sync.RWMutex
	pool pdfium.Pool
	dpi  float64
}

// NewPDFiumRenderer creates a PDFium renderer whose WebAssembly pool holds up
// to workers instances, one per concurrent render.
func NewPDFiumRenderer(workers int, dpi float64) (*PDFiumRenderer, error) {
	pool, err := webassembly.Init(webassembly.Config{
		MinIdle:  1,
		MaxIdle:  workers,
		MaxTotal: workers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PDFium WebAssembly: %w", err)
	}
	Logger.Debug("PDFium pool initialized", "workers", workers, "dpi", dpi)

	return &PDFiumRenderer{
		pool: pool,
		dpi:  dpi,
	}, nil
}

// RenderPage renders page 0 of filename with an instance checked out of the
// pool for the duration of the call.
func (r *PDFiumRenderer) RenderPage(filename string) (image.Image, error) {
	pdfBytes, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF file: %w", err)
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pool == nil {
		return nil, errRendererClosed
	}

	instance, err := r.pool.GetInstance(instanceTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to get PDFium instance: %w", err)
	}
	defer instance.Close()

	doc, err := instance.OpenDocument(&requests.OpenDocument{
		File: &pdfBytes,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF document: %w", err)
	}
	defer instance.FPDF_CloseDocument(&requests.FPDF_CloseDocument{
		Document: doc.Document,
	})

	pageCountResp, err := instance.FPDF_GetPageCount(&requests.FPDF_GetPageCount{
		Document: doc.Document,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get page count: %w", err)
	}
	if pageCountResp.PageCount < 1 {
		return nil, fmt.Errorf("PDF document %s has no pages", filename)
	}

	pageRender, err := instance.RenderPageInDPI(&requests.RenderPageInDPI{
		DPI: int(r.dpi),
		Page: requests.Page{
			ByIndex: &requests.PageByIndex{
				Document: doc.Document,
				Index:    0,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("unable to render page: %w", err)
	}
	// The bitmap belongs to the instance; copy it out before cleanup.
	img := imaging.Clone(pageRender.Result.Image)
	pageRender.Cleanup()

	return img, nil
}

// Close cleans up resources used by the PDFium renderer. It waits for
// in-flight renders to finish.
func (r *PDFiumRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		err := r.pool.Close()
		r.pool = nil
		return err
	}
	return nil
}
