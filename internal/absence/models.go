// Package absence manages absence records and their evidence files.
package absence

import (
	"time"

	"github.com/google/uuid"

	"frisk/internal/student"
)

// Reason classifies an absence.
type Reason string

const (
	ReasonIllness  Reason = "illness"
	ReasonPersonal Reason = "personal"
	ReasonOther    Reason = "other"
)

func (r Reason) Valid() bool {
	switch r {
	case ReasonIllness, ReasonPersonal, ReasonOther:
		return true
	}
	return false
}

// Label returns the human-readable reason used in notification mail and
// reports.
func (r Reason) Label() string {
	switch r {
	case ReasonIllness:
		return "Illness"
	case ReasonPersonal:
		return "Personal"
	default:
		return "Other"
	}
}

// Absence is one recorded absence day. Several absences may exist for the
// same student and date; no uniqueness is enforced.
type Absence struct {
	ID          uuid.UUID `json:"id"`
	StudentID   uuid.UUID `json:"student_id"`
	AbsenceDate time.Time `json:"absence_date"`
	Reason      Reason    `json:"reason"`
	Note        string    `json:"note,omitempty"`
	CreatedBy   uuid.UUID `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// File is the metadata row of one uploaded evidence file.
type File struct {
	ID           uuid.UUID `json:"id"`
	AbsenceID    uuid.UUID `json:"absence_id"`
	FilePath     string    `json:"-"`
	OriginalName string    `json:"original_name"`
	CreatedAt    time.Time `json:"created_at"`
}

// FileWithURL is a file plus its time-limited download URL.
type FileWithURL struct {
	File
	URL string `json:"url"`
}

// Detail bundles an absence with its student and evidence files for the
// detail endpoint.
type Detail struct {
	Absence
	Student student.Student `json:"student"`
	Files   []FileWithURL   `json:"files"`
}

// Filter narrows an absence listing. A nil StudentIDs means no student
// restriction; an empty non-nil slice matches nothing (used when a scope
// holds no students).
type Filter struct {
	StudentID  *uuid.UUID
	StudentIDs []uuid.UUID
	Reason     Reason
	From       time.Time
	To         time.Time
}
