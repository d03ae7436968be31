package extraction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultOutputDirName is the directory created next to a PDF when no output
// directory is given.
const DefaultOutputDirName = "images"

var disableConfigDir sync.Once

// Document is a parsed PDF. It is read-only during extraction; Split holds
// its lock so concurrent extractions of one document serialize their split
// phase.
type Document struct {
	name string

	mu        sync.Mutex
	ctx       *model.Context
	pageCount int
	closed    bool
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return d.pageCount
}

// Name is the file name the document was loaded from, if any.
func (d *Document) Name() string {
	return d.name
}

// Close releases the parsed document. It is safe to call more than once.
func (d *Document) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ctx = nil
	d.closed = true
	return nil
}

// DefaultOutputDir returns the images directory next to pdfPath.
func DefaultOutputDir(pdfPath string) string {
	return filepath.Join(filepath.Dir(pdfPath), DefaultOutputDirName)
}

// LoadFile parses the PDF at path.
func LoadFile(path string) (*Document, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidSource)
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("PDF file does not exist: %w", err)
		}
		return nil, fmt.Errorf("unable to stat PDF file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidSource, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open PDF file: %w", err)
	}
	defer f.Close()

	return parse(f, info.Size(), filepath.Base(path))
}

// Load reads r to the end and parses it as a PDF.
func Load(r io.Reader) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read PDF stream: %w", err)
	}
	return LoadBytes(data)
}

// LoadBytes parses data as a PDF.
func LoadBytes(data []byte) (*Document, error) {
	return parse(bytes.NewReader(data), int64(len(data)), "")
}

func parse(rs io.ReadSeeker, size int64, name string) (doc *Document, err error) {
	if size == 0 {
		return nil, &DocumentParseError{Source: name, Err: errors.New("empty input")}
	}

	disableConfigDir.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = &DocumentParseError{Source: name, Err: fmt.Errorf("parser panic: %v", r)}
		}
	}()

	ctx, err := api.ReadValidateAndOptimize(rs, conf)
	if err != nil {
		return nil, &DocumentParseError{Source: name, Err: err}
	}

	Logger.Debug("Parsed PDF", "name", name, "pages", ctx.PageCount, "bytes", size)
	return &Document{
		name:      name,
		ctx:       ctx,
		pageCount: ctx.PageCount,
	}, nil
}
