package statement

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"
)

const (
	pageMargin = 14.0
	lineHeight = 6.0
)

// RenderPDF writes doc as an A4 PDF.
func RenderPDF(doc Document, w io.Writer) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator(doc.Issuer, true)
	// Core fonts are cp1252; the translator maps UTF-8 such as the em dash placeholder.
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 22)
	pdf.SetTextColor(0, 75, 135)
	pdf.Text(pageMargin, 20, tr(doc.Issuer))

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetTextColor(100, 100, 100)
	pdf.Text(pageMargin, 28, tr(doc.Title))
	pdf.Text(pageMargin, 33, tr(doc.DateLabel+": "+doc.Date))

	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetTextColor(0, 0, 0)
	pdf.Text(pageMargin, 45, "BILL TO:")
	pdf.SetFont("Helvetica", "", 12)
	pdf.Text(pageMargin, 53, tr(doc.BillTo.Name))
	pdf.Text(pageMargin, 59, tr("Location ID: "+doc.BillTo.LocationID))
	pdf.Text(pageMargin, 65, tr(doc.BillTo.Address))

	switch doc.Kind {
	case KindInvoice:
		renderLineItems(pdf, tr, doc.LineItems)
	case KindStatement:
		renderStatement(pdf, tr, doc)
	default:
		return fmt.Errorf("statement: unknown document kind %q", doc.Kind)
	}

	if err := pdf.Error(); err != nil {
		return fmt.Errorf("statement: compose pdf: %w", err)
	}
	return pdf.Output(w)
}

func headerStyle(pdf *fpdf.Fpdf, size float64) {
	pdf.SetFillColor(0, 75, 135)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", size)
}

func bodyStyle(pdf *fpdf.Fpdf, style string, size float64) {
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", style, size)
}

func renderLineItems(pdf *fpdf.Fpdf, tr func(string) string, items []Field) {
	const labelW, valueW = 60.0, 122.0
	pdf.SetXY(pageMargin, 75)

	headerStyle(pdf, 11)
	pdf.CellFormat(labelW, lineHeight+2, "Description", "1", 0, "L", true, 0, "")
	pdf.CellFormat(valueW, lineHeight+2, "Amount", "1", 1, "L", true, 0, "")

	for _, item := range items {
		bodyStyle(pdf, "B", 11)
		pdf.CellFormat(labelW, lineHeight+2, tr(item.Label), "1", 0, "L", false, 0, "")
		bodyStyle(pdf, "", 11)
		pdf.CellFormat(valueW, lineHeight+2, tr(item.Value), "1", 1, "L", false, 0, "")
	}
}

func renderStatement(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(80, 80, 80)
	y := 77.0
	for _, f := range doc.Totals {
		pdf.Text(pageMargin, y, tr(f.Label+": "+f.Value))
		y += 6
	}

	widths := []float64{52, 24, 26, 26, 26, 28}
	pdf.SetXY(pageMargin, 99)
	header := func() {
		headerStyle(pdf, 10)
		for i, col := range doc.Columns {
			pdf.CellFormat(widths[i%len(widths)], lineHeight+1, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
	}
	header()

	_, pageH := pdf.GetPageSize()
	bodyStyle(pdf, "", 10)
	for _, r := range doc.Rows {
		if pdf.GetY()+lineHeight > pageH-pageMargin {
			pdf.AddPage()
			header()
			bodyStyle(pdf, "", 10)
		}
		cells := []string{r.Period, r.Usage, r.Rate, r.Amount, r.DueDate, r.Status}
		for i, cell := range cells {
			align := "R"
			if i == 0 || i == 5 {
				align = "L"
			}
			pdf.CellFormat(widths[i], lineHeight, tr(cell), "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}
}
