// Package audit records who did what, when, from where. The trail is
// append-only: nothing in the system updates or deletes an audit row.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// ActionType classifies an audited action.
type ActionType string

const (
	ActionLogin    ActionType = "login"
	ActionLogout   ActionType = "logout"
	ActionDownload ActionType = "download"
	ActionUpload   ActionType = "upload"
	ActionUpdate   ActionType = "update"
	ActionDelete   ActionType = "delete"
)

// Valid reports whether a is a known action type.
func (a ActionType) Valid() bool {
	switch a {
	case ActionLogin, ActionLogout, ActionDownload, ActionUpload, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entry is one audit record. UserID is nil for actions without a resolved
// user, such as a failed login for an unknown email.
type Entry struct {
	ID         uuid.UUID      `json:"id"`
	UserID     *uuid.UUID     `json:"user_id"`
	ActionType ActionType     `json:"action_type"`
	Details    map[string]any `json:"details"`
	IPAddress  string         `json:"ip_address"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Filter narrows a log listing. Zero values mean no constraint.
type Filter struct {
	UserID     *uuid.UUID
	ActionType ActionType
	From       time.Time
	To         time.Time
	Limit      int
	Offset     int
}
