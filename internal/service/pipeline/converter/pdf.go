package converter

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

// renderTextPDF renders plain text into a simple paginated A4 PDF
func renderTextPDF(text string) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	// Core fonts are cp1252; translate what we can, drop the rest
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.MultiCell(180, 5, tr(text), "", "L", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}

	return buf.Bytes(), nil
}

// countPDFPages estimates the page count by scanning page objects. PDF
// writers emit the name pair with or without whitespace, so both
// spellings are counted. Good enough for the metadata field; a malformed
// PDF yields 0.
func countPDFPages(data []byte) int {
	pages := bytes.Count(data, []byte("/Type /Page")) + bytes.Count(data, []byte("/Type/Page"))
	trees := bytes.Count(data, []byte("/Type /Pages")) + bytes.Count(data, []byte("/Type/Pages"))
	if n := pages - trees; n > 0 {
		return n
	}
	return 0
}
