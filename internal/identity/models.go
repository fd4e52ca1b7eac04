// Package identity owns accounts, sessions and the per-request resolution of
// who the caller is.
package identity

import (
	"time"

	"github.com/google/uuid"

	"frisk/pkg/requestcontext"
)

// User is an account row. PasswordHash never leaves this package.
type User struct {
	ID           uuid.UUID           `json:"id"`
	Email        string              `json:"email"`
	PasswordHash string              `json:"-"`
	Role         requestcontext.Role `json:"role"`
	UniversityID *uuid.UUID          `json:"university_id,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// Session is the response of a successful login.
type Session struct {
	Token     string              `json:"token"`
	ExpiresAt time.Time           `json:"expires_at"`
	UserID    uuid.UUID           `json:"user_id"`
	Email     string              `json:"email"`
	Role      requestcontext.Role `json:"role"`
	Redirect  string              `json:"redirect"`
}
