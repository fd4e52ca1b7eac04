package report

import (
	"fmt"
	"io"

	"github.com/go-pdf/fpdf"

	"frisk/internal/absence"
)

// RenderPDF writes the report as an A4 PDF. The document is generated in
// memory and streamed; nothing is persisted.
func RenderPDF(w io.Writer, rep Monthly) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Monthly Absence Report %d-%02d", rep.Year, int(rep.Month)), false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, "Monthly Absence Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 7, fmt.Sprintf("%s - %d-%02d", rep.UniversityName, rep.Year, int(rep.Month)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Generated "+rep.GeneratedAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Summary", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	summary := [][2]string{
		{"Enrolled students", fmt.Sprintf("%d", rep.TotalStudents)},
		{"Total absences", fmt.Sprintf("%d", rep.TotalAbsences)},
		{"Absence rate", fmt.Sprintf("%.1f%%", rep.AbsenceRate*100)},
		{"Students at risk", fmt.Sprintf("%d", len(rep.RiskStudents))},
	}
	for _, reason := range []absence.Reason{absence.ReasonIllness, absence.ReasonPersonal, absence.ReasonOther} {
		summary = append(summary, [2]string{"Reason: " + reason.Label(), fmt.Sprintf("%d", rep.ByReason[reason])})
	}
	for _, row := range summary {
		pdf.CellFormat(60, 6, row[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, row[1], "1", 1, "R", false, 0, "")
	}
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, "Per-Student Absences", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(35, 6, "Student No", "1", 0, "L", false, 0, "")
	pdf.CellFormat(80, 6, "Name", "1", 0, "L", false, 0, "")
	pdf.CellFormat(25, 6, "Absences", "1", 0, "R", false, 0, "")
	pdf.CellFormat(20, 6, "At Risk", "1", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range rep.Students {
		risk := ""
		if line.AtRisk {
			risk = "YES"
		}
		pdf.CellFormat(35, 6, line.StudentNo, "1", 0, "L", false, 0, "")
		pdf.CellFormat(80, 6, line.Name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", line.Absences), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, risk, "1", 1, "C", false, 0, "")
	}

	return pdf.Output(w)
}
