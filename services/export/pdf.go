package exportsvc

import (
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/pkg/errors"
)

const (
	pdfMargin       = 10.0
	pdfPeriodColW   = 38.0
	pdfLineH        = 4.5
	pdfHeaderH      = 8.0
	pdfMinRowH      = 14.0
	pdfFont         = "Arial"
	pdfFontSize     = 8.0
	pdfBreakShading = 235
)

// WritePDF prints the section grid on a landscape A4 page.
func WritePDF(w io.Writer, tt Timetable) error {
	days := tt.days()

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(false, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252
	pdf.AddPage()

	pageW, pageH := pdf.GetPageSize()
	dayW := (pageW - 2*pdfMargin - pdfPeriodColW) / float64(len(days))

	pdf.SetFont(pdfFont, "B", 14)
	pdf.CellFormat(0, 10, tr(tt.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// header
	pdf.SetFont(pdfFont, "B", 9)
	pdf.SetFillColor(221, 235, 247)
	pdf.CellFormat(pdfPeriodColW, pdfHeaderH, "Period", "1", 0, "C", true, 0, "")
	for _, d := range days {
		pdf.CellFormat(dayW, pdfHeaderH, d.String(), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont(pdfFont, "", pdfFontSize)
	for _, row := range tt.grid().Rows(days) {
		cells := make([][]string, len(row.Cells))
		lines := 2
		for i, cell := range row.Cells {
			for _, l := range tt.cellLines(cell) {
				cells[i] = append(cells[i], pdf.SplitText(tr(l), dayW-2)...)
			}
			if len(cells[i]) > lines {
				lines = len(cells[i])
			}
		}
		rowH := float64(lines)*pdfLineH + 2
		if rowH < pdfMinRowH {
			rowH = pdfMinRowH
		}
		if row.Period.IsBreak {
			rowH = pdfHeaderH
		}

		x, y := pdf.GetXY()
		if y+rowH > pageH-pdfMargin {
			pdf.AddPage()
			x, y = pdf.GetXY()
		}

		fill := row.Period.IsBreak
		if fill {
			pdf.SetFillColor(pdfBreakShading, pdfBreakShading, pdfBreakShading)
		}
		pdf.SetFont(pdfFont, "B", pdfFontSize)
		pdf.Rect(x, y, pdfPeriodColW, rowH, drawStyle(fill))
		pdf.SetXY(x+1, y+1)
		pdf.MultiCell(pdfPeriodColW-2, pdfLineH, tr(periodHeading(row.Period)), "", "L", false)

		pdf.SetFont(pdfFont, "", pdfFontSize)
		for i := range row.Cells {
			cx := x + pdfPeriodColW + float64(i)*dayW
			pdf.Rect(cx, y, dayW, rowH, drawStyle(fill))
			if len(cells[i]) == 0 {
				continue
			}
			pdf.SetXY(cx+1, y+1)
			pdf.MultiCell(dayW-2, pdfLineH, strings.Join(cells[i], "\n"), "", "L", false)
		}
		pdf.SetXY(x, y+rowH)
	}

	if err := pdf.Output(w); err != nil {
		return errors.Wrap(err, "writing pdf")
	}
	return nil
}

func drawStyle(fill bool) string {
	if fill {
		return "FD"
	}
	return "D"
}
