// Package report aggregates monthly absence data per university and renders
// it as a downloadable PDF.
package report

import (
	"time"

	"github.com/google/uuid"

	"frisk/internal/absence"
)

// workingDaysPerMonth is the flat divisor used for the absence rate. The
// original reporting used a fixed 22-day month rather than a calendar
// calculation.
const workingDaysPerMonth = 22

// riskThreshold is the monthly absence count at which a student is flagged.
const riskThreshold = 3

// StudentLine is one student's row in the monthly report.
type StudentLine struct {
	StudentID uuid.UUID `json:"student_id"`
	StudentNo string    `json:"student_no"`
	Name      string    `json:"name"`
	Absences  int       `json:"absences"`
	AtRisk    bool      `json:"at_risk"`
}

// Monthly is the aggregated report for one university and month.
type Monthly struct {
	UniversityID   uuid.UUID              `json:"university_id"`
	UniversityName string                 `json:"university_name"`
	Year           int                    `json:"year"`
	Month          time.Month             `json:"month"`
	GeneratedAt    time.Time              `json:"generated_at"`
	TotalStudents  int                    `json:"total_students"`
	TotalAbsences  int                    `json:"total_absences"`
	ByReason       map[absence.Reason]int `json:"by_reason"`
	AbsenceRate    float64                `json:"absence_rate"`
	Students       []StudentLine          `json:"students"`
	RiskStudents   []StudentLine          `json:"risk_students"`
}
