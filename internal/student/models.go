// Package student manages the student roster: CRUD with soft deletion,
// contact-change history, and consent documents.
package student

import (
	"time"

	"github.com/google/uuid"
)

// Program is the course of study.
type Program string

const (
	ProgramLanguage Program = "language"
	ProgramBachelor Program = "bachelor"
	ProgramMaster   Program = "master"
	ProgramPhD      Program = "phd"
)

func (p Program) Valid() bool {
	switch p {
	case ProgramLanguage, ProgramBachelor, ProgramMaster, ProgramPhD:
		return true
	}
	return false
}

// Status is the enrollment state.
type Status string

const (
	StatusEnrolled  Status = "enrolled"
	StatusGraduated Status = "graduated"
	StatusCompleted Status = "completed"
	StatusWithdrawn Status = "withdrawn"
	StatusExpelled  Status = "expelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusEnrolled, StatusGraduated, StatusCompleted, StatusWithdrawn, StatusExpelled:
		return true
	}
	return false
}

// Student is one roster row. (UniversityID, Program, StudentNo) is unique
// among rows that are not soft-deleted.
type Student struct {
	ID              uuid.UUID  `json:"id"`
	UniversityID    uuid.UUID  `json:"university_id"`
	StudentNo       string     `json:"student_no"`
	Name            string     `json:"name"`
	Department      string     `json:"department"`
	Program         Program    `json:"program"`
	Address         string     `json:"address"`
	Phone           string     `json:"phone"`
	Email           string     `json:"email,omitempty"`
	Status          Status     `json:"status"`
	ConsentFilePath string     `json:"consent_file_path,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DeletedAt       *time.Time `json:"-"`
}

// ContactField names a trackable contact attribute.
type ContactField string

const (
	FieldPhone   ContactField = "phone"
	FieldAddress ContactField = "address"
	FieldEmail   ContactField = "email"
)

// ContactChangeLog is one append-only record of a contact-field change,
// written on direct profile edits and during check-ins. CheckInDate is set
// only on the check-in path.
type ContactChangeLog struct {
	ID          uuid.UUID    `json:"id"`
	StudentID   uuid.UUID    `json:"student_id"`
	FieldName   ContactField `json:"field_name"`
	OldValue    string       `json:"old_value"`
	NewValue    string       `json:"new_value"`
	ChangedBy   uuid.UUID    `json:"changed_by"`
	CheckInDate *time.Time   `json:"check_in_date,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Filter narrows a roster listing. Soft-deleted rows are always excluded.
type Filter struct {
	UniversityID *uuid.UUID
	Program      Program
	Status       Status
}
