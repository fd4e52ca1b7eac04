// Package checkin implements the quarterly contact verification workflow.
//
// A quarter is a 3-calendar-month bucket (Q1 = Jan-Mar). Each student holds
// at most one check-in row per bucket; repeating the workflow within the
// same quarter overwrites that row instead of adding another.
package checkin

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// QuarterlyCheckin is the verification state of one student for one quarter.
type QuarterlyCheckin struct {
	ID              uuid.UUID `json:"id"`
	StudentID       uuid.UUID `json:"student_id"`
	QuarterBucket   string    `json:"quarter_bucket"`
	CheckInDate     time.Time `json:"check_in_date"`
	PhoneVerified   bool      `json:"phone_verified"`
	AddressVerified bool      `json:"address_verified"`
	EmailVerified   bool      `json:"email_verified"`
	CheckedBy       uuid.UUID `json:"checked_by"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Quarter returns the 1-based quarter of t.
func Quarter(t time.Time) int {
	return (int(t.Month())-1)/3 + 1
}

// Bucket returns the quarter bucket key for t, e.g. "2026-Q1".
func Bucket(t time.Time) string {
	return fmt.Sprintf("%d-Q%d", t.Year(), Quarter(t))
}

// BucketFor returns the bucket key of an explicit year and quarter.
func BucketFor(year, quarter int) string {
	return fmt.Sprintf("%d-Q%d", year, quarter)
}

// QuarterStart returns the first day of t's quarter in t's location.
func QuarterStart(t time.Time) time.Time {
	startMonth := time.Month((Quarter(t)-1)*3 + 1)
	return time.Date(t.Year(), startMonth, 1, 0, 0, 0, 0, t.Location())
}

// Summary is the quarter completion overview.
type Summary struct {
	Year           int     `json:"year"`
	Quarter        int     `json:"quarter"`
	TotalStudents  int     `json:"total_students"`
	CheckedIn      int     `json:"checked_in"`
	Unchecked      int     `json:"unchecked"`
	CompletionRate float64 `json:"completion_rate"`
}
