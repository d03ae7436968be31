// Package testpdf writes small, valid PDF documents for tests.
package testpdf

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// BaseWidth and BaseHeight are the MediaBox of page 0 in points. Page i is
// WidthStep*i points wider so rendered images identify their page.
const (
	BaseWidth  = 200
	BaseHeight = 300
	WidthStep  = 10
)

// PageWidth returns the MediaBox width of page i.
func PageWidth(i int) int {
	return BaseWidth + WidthStep*i
}

// Generate returns a PDF with the given number of pages. Each page carries a
// filled rectangle so rasterized output is not blank.
func Generate(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	startObject := func() int {
		offsets = append(offsets, buf.Len())
		return len(offsets)
	}

	buf.WriteString("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n")

	startObject()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	startObject()
	buf.WriteString("2 0 obj\n<< /Type /Pages /Kids [")
	for i := 0; i < pages; i++ {
		if i > 0 {
			buf.WriteString(" ")
		}
		fmt.Fprintf(&buf, "%d 0 R", 3+2*i)
	}
	fmt.Fprintf(&buf, "] /Count %d >>\nendobj\n", pages)

	for i := 0; i < pages; i++ {
		pageObj := startObject()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Resources << >> /Contents %d 0 R >>\nendobj\n",
			pageObj, PageWidth(i), BaseHeight, pageObj+1)

		content := fmt.Sprintf("0.2 0.4 0.8 rg %d 20 50 50 re f", 10+i)
		contentObj := startObject()
		fmt.Fprintf(&buf, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentObj, len(content), content)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// WriteFile writes a generated PDF into a temp directory of t and returns its
// path.
func WriteFile(t testing.TB, name string, pages int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, Generate(pages), 0o644); err != nil {
		t.Fatalf("failed to write test PDF: %v", err)
	}
	return path
}
