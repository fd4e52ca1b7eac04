package notify

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frisk/internal/absence"
	"frisk/internal/student"
	"frisk/internal/university"
)

type capturingSender struct {
	to      []string
	subject string
	body    string
	calls   int
	fail    bool
}

func (s *capturingSender) Send(_ context.Context, to []string, subject, htmlBody string) error {
	s.calls++
	if s.fail {
		return errors.New("smtp refused")
	}
	s.to = to
	s.subject = subject
	s.body = htmlBody
	return nil
}

func seed(t *testing.T, contacts []university.Contact) (*university.MemoryStore, student.Student, absence.Absence) {
	t.Helper()

	store := university.NewMemoryStore()
	u := university.University{ID: uuid.New(), Name: "Hansei University", CreatedAt: time.Now()}
	require.NoError(t, store.Create(context.Background(), u))
	for i := range contacts {
		contacts[i].UniversityID = u.ID
	}
	if len(contacts) > 0 {
		require.NoError(t, store.InsertContacts(context.Background(), contacts))
	}

	st := student.Student{
		ID:           uuid.New(),
		UniversityID: u.ID,
		StudentNo:    "2024001234",
		Name:         "Kim Minsu",
		Program:      student.ProgramBachelor,
		Status:       student.StatusEnrolled,
	}
	a := absence.Absence{
		ID:          uuid.New(),
		StudentID:   st.ID,
		AbsenceDate: time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
		Reason:      absence.ReasonIllness,
		Note:        "flu, doctor's note attached",
	}
	return store, st, a
}

func TestAbsenceRecordedMailsAllContacts(t *testing.T) {
	store, st, a := seed(t, []university.Contact{
		{ID: uuid.New(), Email: "intl-office@hansei.ac.kr", IsPrimary: true},
		{ID: uuid.New(), Email: "registrar@hansei.ac.kr"},
	})
	sender := &capturingSender{}
	svc := NewService(store, sender, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.AbsenceRecorded(context.Background(), st, a))
	assert.Equal(t, 1, sender.calls)
	assert.ElementsMatch(t, []string{"intl-office@hansei.ac.kr", "registrar@hansei.ac.kr"}, sender.to)
	assert.Contains(t, sender.subject, "Kim Minsu")
	assert.Contains(t, sender.subject, "2024001234")
	assert.Contains(t, sender.body, "Hansei University")
	assert.Contains(t, sender.body, "2026-02-10")
	assert.Contains(t, sender.body, "Illness")
	assert.Contains(t, sender.body, "doctor&#39;s note")
}

func TestAbsenceRecordedNoContactsIsNoop(t *testing.T) {
	store, st, a := seed(t, nil)
	sender := &capturingSender{}
	svc := NewService(store, sender, slog.New(slog.DiscardHandler))

	require.NoError(t, svc.AbsenceRecorded(context.Background(), st, a))
	assert.Zero(t, sender.calls)
}

func TestAbsenceRecordedUnknownUniversity(t *testing.T) {
	store, st, a := seed(t, nil)
	st.UniversityID = uuid.New()
	svc := NewService(store, &capturingSender{}, slog.New(slog.DiscardHandler))

	assert.Error(t, svc.AbsenceRecorded(context.Background(), st, a))
}

func TestAbsenceRecordedSendFailure(t *testing.T) {
	store, st, a := seed(t, []university.Contact{
		{ID: uuid.New(), Email: "intl-office@hansei.ac.kr", IsPrimary: true},
	})
	sender := &capturingSender{fail: true}
	svc := NewService(store, sender, slog.New(slog.DiscardHandler))

	assert.Error(t, svc.AbsenceRecorded(context.Background(), st, a))
}
