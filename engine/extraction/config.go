package extraction

import (
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/drummonds/pdfpages/engine/pdfrenderer"
)

// DefaultImageFormat is the encoding used when Config.ImageFormat is empty.
const DefaultImageFormat = "png"

// Logger is injected from main.
var Logger = slog.Default()

// Config holds the extraction settings.
type Config struct {
	// ImageFormat is a format name or extension understood by imaging ("png", "jpg", ...).
	ImageFormat string
	// Workers bounds concurrent page renders; defaults to runtime.NumCPU().
	Workers int
	// TempRoot is where per-call scratch directories are created; defaults to os.TempDir().
	TempRoot string
	// DPI for rasterization; defaults to pdfrenderer.NativeDPI.
	DPI float64
}

// WithDefaults returns c with every unset field filled in.
func (c Config) WithDefaults() Config {
	c.ImageFormat = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.ImageFormat)), ".")
	if c.ImageFormat == "" {
		c.ImageFormat = DefaultImageFormat
	}
	if c.Workers < 1 {
		c.Workers = runtime.NumCPU()
	}
	if c.TempRoot == "" {
		c.TempRoot = os.TempDir()
	}
	if c.DPI <= 0 {
		c.DPI = pdfrenderer.NativeDPI
	}
	return c
}
