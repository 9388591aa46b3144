// Package report renders a ReportDescription into a PDF document. It knows
// nothing about compliance semantics; it only maps row kinds to layout.
package report

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/mytipspro/checkmychecks/internal/paystub"
)

// Render produces the compliance report PDF bytes.
func Render(desc paystub.ReportDescription) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	for _, row := range desc.Rows {
		switch row.Kind {
		case paystub.RowTitle:
			pdf.SetFont("Arial", "B", 16)
			pdf.CellFormat(0, 12, row.Label, "", 1, "C", false, 0, "")
			pdf.Ln(4)
		case paystub.RowField:
			pdf.SetFont("Arial", "", 12)
			pdf.CellFormat(60, 8, row.Label, "", 0, "L", false, 0, "")
			pdf.CellFormat(0, 8, row.Value, "", 1, "L", false, 0, "")
		case paystub.RowCheck:
			pdf.SetFont("Arial", "", 12)
			pdf.CellFormat(60, 8, row.Label, "", 0, "L", false, 0, "")
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, row.Value, "", 1, "L", false, 0, "")
		case paystub.RowNote:
			pdf.Ln(4)
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, row.Label, "", 1, "L", false, 0, "")
			pdf.SetFont("Arial", "", 11)
			pdf.MultiCell(0, 6, row.Value, "", "L", false)
		case paystub.RowFooter:
			pdf.Ln(8)
			pdf.SetFont("Arial", "I", 9)
			pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", row.Label, row.Value), "", 1, "L", false, 0, "")
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render report pdf: %w", err)
	}
	return buf.Bytes(), nil
}
