package checkin

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"frisk/internal/audit"
	"frisk/internal/platform/metrics"
	"frisk/internal/student"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/tx"
	"frisk/pkg/requestcontext"
)

var testMetrics = metrics.New()

func TestQuarterMath(t *testing.T) {
	tests := []struct {
		date    string
		quarter int
		bucket  string
		start   string
	}{
		{"2026-01-01", 1, "2026-Q1", "2026-01-01"},
		{"2026-03-31", 1, "2026-Q1", "2026-01-01"},
		{"2026-04-01", 2, "2026-Q2", "2026-04-01"},
		{"2026-06-15", 2, "2026-Q2", "2026-04-01"},
		{"2026-09-30", 3, "2026-Q3", "2026-07-01"},
		{"2026-10-01", 4, "2026-Q4", "2026-10-01"},
		{"2026-12-31", 4, "2026-Q4", "2026-10-01"},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			d, err := time.Parse("2006-01-02", tt.date)
			assert.NoError(t, err)
			assert.Equal(t, tt.quarter, Quarter(d))
			assert.Equal(t, tt.bucket, Bucket(d))
			assert.Equal(t, tt.start, QuarterStart(d).Format("2006-01-02"))
		})
	}
}

type ServiceSuite struct {
	suite.Suite

	store      *MemoryStore
	students   *student.MemoryStore
	auditStore *audit.MemoryStore
	svc        *Service

	st student.Student
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.students = student.NewMemoryStore()
	s.auditStore = audit.NewMemoryStore()

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(s.auditStore, logger, testMetrics)
	s.svc = NewService(s.store, s.students, tx.NewRunner(nil), recorder, logger, testMetrics)

	s.st = student.Student{
		ID:           uuid.New(),
		UniversityID: uuid.New(),
		StudentNo:    "2024001234",
		Name:         "Kim Minsu",
		Program:      student.ProgramBachelor,
		Address:      "Seoul",
		Phone:        "010-1111-2222",
		Email:        "minsu@example.com",
		Status:       student.StatusEnrolled,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.Require().NoError(s.students.Create(context.Background(), s.st))
}

func (s *ServiceSuite) ctxAt(day string) context.Context {
	at, err := time.Parse("2006-01-02", day)
	s.Require().NoError(err)
	ctx := requestcontext.WithTime(context.Background(), at)
	return requestcontext.WithIdentity(ctx, requestcontext.RequestIdentity{
		UserID: uuid.New(), Role: requestcontext.RoleAgency,
	})
}

func (s *ServiceSuite) unchanged() PerformInput {
	return PerformInput{
		StudentID:       s.st.ID,
		Phone:           s.st.Phone,
		Address:         s.st.Address,
		Email:           s.st.Email,
		PhoneVerified:   true,
		AddressVerified: true,
		EmailVerified:   true,
	}
}

func (s *ServiceSuite) TestUnchangedValuesStayVerified() {
	c, err := s.svc.Perform(s.ctxAt("2026-02-10"), s.unchanged())
	s.Require().NoError(err)
	s.True(c.PhoneVerified)
	s.True(c.AddressVerified)
	s.True(c.EmailVerified)
	s.Equal("2026-Q1", c.QuarterBucket)

	logs, err := s.students.ListChangeLogs(context.Background(), s.st.ID)
	s.Require().NoError(err)
	s.Empty(logs)
}

func (s *ServiceSuite) TestChangedPhoneForcedUnverified() {
	input := s.unchanged()
	input.Phone = "010-9999-8888"
	input.PhoneVerified = true // the claim must be overridden

	c, err := s.svc.Perform(s.ctxAt("2026-02-10"), input)
	s.Require().NoError(err)
	s.False(c.PhoneVerified)
	s.True(c.AddressVerified)
	s.True(c.EmailVerified)

	// Exactly one change log row with matching old and new values.
	logs, err := s.students.ListChangeLogs(context.Background(), s.st.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(student.FieldPhone, logs[0].FieldName)
	s.Equal("010-1111-2222", logs[0].OldValue)
	s.Equal("010-9999-8888", logs[0].NewValue)
	s.Require().NotNil(logs[0].CheckInDate)

	// The student row now carries the new phone.
	st, err := s.students.GetByID(context.Background(), s.st.ID)
	s.Require().NoError(err)
	s.Equal("010-9999-8888", st.Phone)
}

func (s *ServiceSuite) TestIdempotentPerQuarter() {
	first, err := s.svc.Perform(s.ctxAt("2026-02-10"), s.unchanged())
	s.Require().NoError(err)

	input := s.unchanged()
	input.Phone = "010-9999-8888"
	second, err := s.svc.Perform(s.ctxAt("2026-03-01"), input)
	s.Require().NoError(err)

	// Same quarter, same row: the second call overwrote the first.
	s.Equal(first.ID, second.ID)
	s.False(second.PhoneVerified)

	rows, err := s.store.ListByBucket(context.Background(), "2026-Q1")
	s.Require().NoError(err)
	s.Len(rows, 1)
}

func (s *ServiceSuite) TestNewQuarterNewRow() {
	_, err := s.svc.Perform(s.ctxAt("2026-03-31"), s.unchanged())
	s.Require().NoError(err)
	_, err = s.svc.Perform(s.ctxAt("2026-04-01"), s.unchanged())
	s.Require().NoError(err)

	q1, err := s.store.ListByBucket(context.Background(), "2026-Q1")
	s.Require().NoError(err)
	q2, err := s.store.ListByBucket(context.Background(), "2026-Q2")
	s.Require().NoError(err)
	s.Len(q1, 1)
	s.Len(q2, 1)
}

func (s *ServiceSuite) TestGuards() {
	s.Run("unknown student", func() {
		input := s.unchanged()
		input.StudentID = uuid.New()
		_, err := s.svc.Perform(s.ctxAt("2026-02-10"), input)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("soft-deleted student", func() {
		s.Require().NoError(s.students.SoftDelete(context.Background(), s.st.ID, time.Now()))
		_, err := s.svc.Perform(s.ctxAt("2026-02-10"), s.unchanged())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("university role forbidden with no side effect", func() {
		uniID := uuid.New()
		ctx := requestcontext.WithIdentity(context.Background(), requestcontext.RequestIdentity{
			UserID: uuid.New(), Role: requestcontext.RoleUniversity, UniversityID: &uniID,
		})
		_, err := s.svc.Perform(ctx, s.unchanged())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		rows, listErr := s.store.ListByBucket(context.Background(), Bucket(time.Now()))
		s.Require().NoError(listErr)
		s.Empty(rows)
	})
}

func (s *ServiceSuite) TestQuarterSummary() {
	// A second enrolled student who is never checked in, plus a withdrawn
	// student who must not count.
	other := s.st
	other.ID = uuid.New()
	other.StudentNo = "2024005678"
	s.Require().NoError(s.students.Create(context.Background(), other))

	withdrawn := s.st
	withdrawn.ID = uuid.New()
	withdrawn.StudentNo = "2020000001"
	withdrawn.Status = student.StatusWithdrawn
	s.Require().NoError(s.students.Create(context.Background(), withdrawn))

	_, err := s.svc.Perform(s.ctxAt("2026-02-10"), s.unchanged())
	s.Require().NoError(err)

	sum, err := s.svc.QuarterSummary(s.ctxAt("2026-02-11"), 2026, 1)
	s.Require().NoError(err)
	s.Equal(2, sum.TotalStudents)
	s.Equal(1, sum.CheckedIn)
	s.Equal(1, sum.Unchecked)
	s.InDelta(0.5, sum.CompletionRate, 1e-9)
}
