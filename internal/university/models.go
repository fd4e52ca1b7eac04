// Package university manages the reference data every other entity hangs
// off: universities and their notification contacts.
package university

import (
	"time"

	"github.com/google/uuid"
)

// University is a partner university.
type University struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Contact is a notification recipient at a university. A university carries
// one or two contacts; when any exist, exactly one is primary.
type Contact struct {
	ID           uuid.UUID `json:"id"`
	UniversityID uuid.UUID `json:"university_id"`
	Email        string    `json:"email"`
	IsPrimary    bool      `json:"is_primary"`
	CreatedAt    time.Time `json:"created_at"`
}

// WithContacts bundles a university with its contacts for API responses.
type WithContacts struct {
	University
	Contacts []Contact `json:"contacts"`
}
