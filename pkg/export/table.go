// Package export renders simple tables as CSV or PDF downloads.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// Format names a supported output.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ContentType returns the MIME type for f.
func (f Format) ContentType() string {
	switch f {
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Table is a titled grid. Widths are relative column weights; nil means equal
// columns.
type Table struct {
	Title       string
	Columns     []string
	Widths      []float64
	Rows        [][]string
	GeneratedAt time.Time
}

func (t Table) check() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	if t.Widths != nil && len(t.Widths) != len(t.Columns) {
		return fmt.Errorf("export has %d widths for %d columns", len(t.Widths), len(t.Columns))
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("export row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Render encodes t in format f.
func Render(t Table, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return CSV(t)
	case FormatPDF:
		return PDF(t)
	}
	return nil, fmt.Errorf("unsupported export format %q", f)
}

// CSV writes the header row followed by every data row.
func CSV(t Table) ([]byte, error) {
	if err := t.check(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	if err := w.WriteAll(t.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// PDF lays t out on landscape A4 pages, repeating the header row on every
// page. Cells wider than their column are cut with an ellipsis.
func PDF(t Table) ([]byte, error) {
	if err := t.check(); err != nil {
		return nil, err
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	generated := t.GeneratedAt
	if generated.IsZero() {
		generated = time.Now().UTC()
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 5, fmt.Sprintf("Generated %s - page %d", generated.Format("2006-01-02 15:04 MST"), pdf.PageNo()), "", 0, "R", false, 0, "")
	})

	pageWidth, _ := pdf.GetPageSize()
	left, _, right, _ := pdf.GetMargins()
	widths := columnWidths(t, pageWidth-left-right)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range t.Columns {
			pdf.CellFormat(widths[i], 7, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 8)
	}
	pdf.SetHeaderFunc(func() {
		if t.Title != "" && pdf.PageNo() == 1 {
			pdf.SetFont("Arial", "B", 13)
			pdf.CellFormat(0, 9, tr(t.Title), "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})

	pdf.AddPage()
	if len(t.Rows) == 0 {
		pdf.CellFormat(0, 7, "No records", "1", 1, "C", false, 0, "")
	}
	for _, row := range t.Rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, fit(pdf, tr(cell), widths[i]-2), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(t Table, usable float64) []float64 {
	widths := make([]float64, len(t.Columns))
	if t.Widths == nil {
		for i := range widths {
			widths[i] = usable / float64(len(widths))
		}
		return widths
	}
	var total float64
	for _, w := range t.Widths {
		total += w
	}
	for i, w := range t.Widths {
		widths[i] = usable * w / total
	}
	return widths
}

func fit(pdf *gofpdf.Fpdf, text string, width float64) string {
	if pdf.GetStringWidth(text) <= width {
		return text
	}
	runes := []rune(text)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
