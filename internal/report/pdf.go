package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/evmtrack/evmtrack/internal/errors"
)

const (
	fontFamily   = "Helvetica"
	marginMM     = 12.0
	rowHeightMM  = 7.0
	titleSize    = 14.0
	bodySize     = 9.0
	signatureGap = 18.0
)

// PDFRenderer renders documents with fpdf.
type PDFRenderer struct {
	// Footer text printed at the bottom of every page, e.g. the service name.
	FooterText string
}

// NewPDFRenderer creates a PDFRenderer.
func NewPDFRenderer(footer string) *PDFRenderer {
	return &PDFRenderer{FooterText: footer}
}

// Render implements Renderer.
func (r *PDFRenderer) Render(doc *Document) ([]byte, error) {
	if doc == nil || len(doc.Columns) == 0 {
		return nil, errors.Newf("document has no columns").
			Component("report").
			Category(errors.CategoryValidation).
			Build()
	}
	for i, row := range doc.Rows {
		if len(row) != len(doc.Columns) {
			return nil, errors.Newf("row %d has %d cells, want %d", i+1, len(row), len(doc.Columns)).
				Component("report").
				Category(errors.CategoryValidation).
				Context("document", doc.Name).
				Build()
		}
	}

	orientation := string(doc.Orientation)
	if orientation == "" {
		orientation = string(Portrait)
	}

	pdf := fpdf.New(orientation, "mm", "A4", "")
	pdf.SetMargins(marginMM, marginMM, marginMM)
	pdf.SetAutoPageBreak(true, marginMM+6)
	pdf.AliasNbPages("")
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	usable := pageW - 2*marginMM
	widths := columnWidths(doc.Columns, usable)

	header := func() {
		pdf.SetFont(fontFamily, "B", bodySize)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range doc.Columns {
			pdf.CellFormat(widths[i], rowHeightMM, tr(col.Title), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont(fontFamily, "", bodySize)
	}

	pdf.SetFooterFunc(func() {
		pdf.SetY(-marginMM)
		pdf.SetFont(fontFamily, "I", 7)
		pdf.CellFormat(0, 5, tr(fmt.Sprintf("%s  Page %d/{nb}", r.FooterText, pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	pdf.SetFont(fontFamily, "B", titleSize)
	pdf.CellFormat(0, 8, tr(doc.Title), "", 1, "C", false, 0, "")
	if doc.Subtitle != "" {
		pdf.SetFont(fontFamily, "", bodySize+1)
		pdf.CellFormat(0, 6, tr(doc.Subtitle), "", 1, "C", false, 0, "")
	}
	pdf.Ln(2)

	pdf.SetFont(fontFamily, "", bodySize)
	for _, f := range doc.Header {
		pdf.SetFont(fontFamily, "B", bodySize)
		pdf.CellFormat(45, 5.5, tr(f.Label+":"), "", 0, "L", false, 0, "")
		pdf.SetFont(fontFamily, "", bodySize)
		pdf.CellFormat(0, 5.5, tr(f.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)

	header()
	_, pageH := pdf.GetPageSize()
	for _, row := range doc.Rows {
		if pdf.GetY()+rowHeightMM > pageH-marginMM-6 {
			pdf.AddPage()
			header()
		}
		for i, cell := range row {
			pdf.CellFormat(widths[i], rowHeightMM, tr(cell), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if len(doc.Footer) > 0 {
		pdf.Ln(2)
		pdf.SetFont(fontFamily, "B", bodySize)
		for _, line := range doc.Footer {
			pdf.CellFormat(0, 6, tr(line), "", 1, "L", false, 0, "")
		}
	}

	if len(doc.Signatures) > 0 {
		pdf.Ln(signatureGap)
		pdf.SetFont(fontFamily, "", bodySize)
		w := usable / float64(len(doc.Signatures))
		for range doc.Signatures {
			pdf.CellFormat(w, 5, "____________________", "", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		for _, label := range doc.Signatures {
			pdf.CellFormat(w, 5, tr(label), "", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Renderer("report", doc.Name, err)
	}
	return buf.Bytes(), nil
}

// columnWidths scales relative widths to the usable page width.
func columnWidths(cols []Column, usable float64) []float64 {
	total := 0.0
	for _, c := range cols {
		w := c.Width
		if w <= 0 {
			w = 1
		}
		total += w
	}
	widths := make([]float64, len(cols))
	for i, c := range cols {
		w := c.Width
		if w <= 0 {
			w = 1
		}
		widths[i] = usable * w / total
	}
	return widths
}
