package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfLineHeight = 5.0
	pdfMargin     = 10.0
)

// PDFExporter renders datasets into a tabular PDF. Wide grids switch to landscape.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document with an optional title and table body. Cell values
// may contain newlines; each row grows to its tallest cell.
func (e *PDFExporter) Render(data Dataset, title string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	orientation := "P"
	if len(data.Headers) > 4 {
		orientation = "L"
	}
	pdf := gofpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(pdfMargin, 15, pdfMargin)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	pageWidth, pageHeight := pdf.GetPageSize()
	usable := pageWidth - 2*pdfMargin
	colWidth := usable / float64(len(data.Headers))

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}

	pdf.SetFont("Arial", "B", 10)
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range data.Rows {
		lines := 1
		for _, header := range data.Headers {
			if n := len(pdf.SplitLines([]byte(row[header]), colWidth-2)); n > lines {
				lines = n
			}
		}
		height := float64(lines) * pdfLineHeight
		if pdf.GetY()+height > pageHeight-15 {
			pdf.AddPage()
		}
		x, y := pdf.GetXY()
		for i, header := range data.Headers {
			left := x + float64(i)*colWidth
			pdf.Rect(left, y, colWidth, height, "D")
			pdf.SetXY(left+1, y)
			pdf.MultiCell(colWidth-2, pdfLineHeight, row[header], "", "L", false)
		}
		pdf.SetXY(x, y+height)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
