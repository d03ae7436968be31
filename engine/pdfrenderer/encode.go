package pdfrenderer

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// ParseFormat resolves a format name or file extension ("png", ".jpg") to an
// imaging format.
func ParseFormat(name string) (imaging.Format, error) {
	format, err := imaging.FormatFromExtension(name)
	if err != nil {
		return 0, fmt.Errorf("unsupported image format %q: %w", name, err)
	}
	return format, nil
}

// Encode writes img in the given format and returns the encoded bytes.
func Encode(img image.Image, format imaging.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, format); err != nil {
		return nil, fmt.Errorf("unable to encode %s image: %w", format, err)
	}
	return buf.Bytes(), nil
}
