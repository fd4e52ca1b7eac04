package report

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"frisk/internal/absence"
	"frisk/internal/audit"
	"frisk/internal/platform/metrics"
	"frisk/internal/student"
	"frisk/internal/university"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/requestcontext"
)

var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	students     *student.MemoryStore
	absences     *absence.MemoryStore
	universities *university.MemoryStore
	svc          *Service

	uni   university.University
	other university.University
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.students = student.NewMemoryStore()
	s.absences = absence.NewMemoryStore()
	s.universities = university.NewMemoryStore()

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(audit.NewMemoryStore(), logger, testMetrics)
	s.svc = NewService(s.students, s.absences, s.universities, recorder, logger)

	s.uni = university.University{ID: uuid.New(), Name: "Hansei University", CreatedAt: time.Now()}
	s.other = university.University{ID: uuid.New(), Name: "Daejin University", CreatedAt: time.Now()}
	s.Require().NoError(s.universities.Create(context.Background(), s.uni))
	s.Require().NoError(s.universities.Create(context.Background(), s.other))
}

func (s *ServiceSuite) agencyCtx() context.Context {
	return requestcontext.WithIdentity(context.Background(), requestcontext.RequestIdentity{
		UserID: uuid.New(), Role: requestcontext.RoleAgency,
	})
}

func (s *ServiceSuite) universityCtx(uniID uuid.UUID) context.Context {
	return requestcontext.WithIdentity(context.Background(), requestcontext.RequestIdentity{
		UserID: uuid.New(), Role: requestcontext.RoleUniversity, UniversityID: &uniID,
	})
}

func (s *ServiceSuite) addStudent(uniID uuid.UUID, no string, status student.Status) student.Student {
	st := student.Student{
		ID:           uuid.New(),
		UniversityID: uniID,
		StudentNo:    no,
		Name:         "Student " + no,
		Program:      student.ProgramBachelor,
		Status:       status,
	}
	s.Require().NoError(s.students.Create(context.Background(), st))
	return st
}

func (s *ServiceSuite) addAbsences(st student.Student, reason absence.Reason, days ...string) {
	for _, day := range days {
		d, err := time.Parse("2006-01-02", day)
		s.Require().NoError(err)
		s.Require().NoError(s.absences.Create(context.Background(), absence.Absence{
			ID:          uuid.New(),
			StudentID:   st.ID,
			AbsenceDate: d,
			Reason:      reason,
			CreatedBy:   uuid.New(),
			CreatedAt:   d,
		}))
	}
}

func (s *ServiceSuite) TestAggregation() {
	risky := s.addStudent(s.uni.ID, "2024001111", student.StatusEnrolled)
	mild := s.addStudent(s.uni.ID, "2024002222", student.StatusEnrolled)
	s.addStudent(s.uni.ID, "2024003333", student.StatusEnrolled)
	s.addStudent(s.uni.ID, "2020004444", student.StatusWithdrawn)

	s.addAbsences(risky, absence.ReasonIllness, "2026-02-02", "2026-02-03", "2026-02-04")
	s.addAbsences(mild, absence.ReasonPersonal, "2026-02-10")
	// Outside the month and outside the university: both must be ignored.
	s.addAbsences(risky, absence.ReasonOther, "2026-03-01")
	foreign := s.addStudent(s.other.ID, "2024005555", student.StatusEnrolled)
	s.addAbsences(foreign, absence.ReasonIllness, "2026-02-05")

	rep, err := s.svc.Monthly(s.agencyCtx(), 2026, time.February, &s.uni.ID)
	s.Require().NoError(err)

	s.Equal("Hansei University", rep.UniversityName)
	s.Equal(3, rep.TotalStudents)
	s.Equal(4, rep.TotalAbsences)
	s.Equal(3, rep.ByReason[absence.ReasonIllness])
	s.Equal(1, rep.ByReason[absence.ReasonPersonal])
	s.InDelta(4.0/(3*22), rep.AbsenceRate, 1e-9)

	s.Require().Len(rep.RiskStudents, 1)
	s.Equal("2024001111", rep.RiskStudents[0].StudentNo)
	s.True(rep.RiskStudents[0].AtRisk)

	// Sorted most absent first.
	s.Require().Len(rep.Students, 3)
	s.Equal(3, rep.Students[0].Absences)
	s.Equal(0, rep.Students[2].Absences)
}

func (s *ServiceSuite) TestUniversityRolePinnedToOwnScope() {
	st := s.addStudent(s.uni.ID, "2024001111", student.StatusEnrolled)
	s.addAbsences(st, absence.ReasonIllness, "2026-02-02")

	// Asking for another university's report still yields your own.
	rep, err := s.svc.Monthly(s.universityCtx(s.uni.ID), 2026, time.February, &s.other.ID)
	s.Require().NoError(err)
	s.Equal(s.uni.ID, rep.UniversityID)
	s.Equal(1, rep.TotalAbsences)
}

func (s *ServiceSuite) TestGuards() {
	s.Run("agency must name a university", func() {
		_, err := s.svc.Monthly(s.agencyCtx(), 2026, time.February, nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("unknown university", func() {
		id := uuid.New()
		_, err := s.svc.Monthly(s.agencyCtx(), 2026, time.February, &id)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("month out of range", func() {
		_, err := s.svc.Monthly(s.agencyCtx(), 2026, time.Month(13), &s.uni.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("anonymous", func() {
		_, err := s.svc.Monthly(context.Background(), 2026, time.February, &s.uni.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func (s *ServiceSuite) TestEmptyMonth() {
	s.addStudent(s.uni.ID, "2024001111", student.StatusEnrolled)

	rep, err := s.svc.Monthly(s.agencyCtx(), 2026, time.June, &s.uni.ID)
	s.Require().NoError(err)
	s.Equal(1, rep.TotalStudents)
	s.Zero(rep.TotalAbsences)
	s.Zero(rep.AbsenceRate)
	s.Empty(rep.RiskStudents)
}
