package university

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"frisk/internal/audit"
	"frisk/internal/platform/metrics"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/requestcontext"
)

var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	store         *MemoryStore
	hasDependents bool
	svc           *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.hasDependents = false

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(audit.NewMemoryStore(), logger, testMetrics)
	checker := DependentFunc(func(context.Context, uuid.UUID) (bool, error) {
		return s.hasDependents, nil
	})
	s.svc = NewService(s.store, checker, recorder, logger)
}

func (s *ServiceSuite) adminCtx() context.Context {
	return requestcontext.WithIdentity(context.Background(), requestcontext.RequestIdentity{
		UserID: uuid.New(), Role: requestcontext.RoleAdmin,
	})
}

func (s *ServiceSuite) universityCtx() context.Context {
	uniID := uuid.New()
	return requestcontext.WithIdentity(context.Background(), requestcontext.RequestIdentity{
		UserID: uuid.New(), Role: requestcontext.RoleUniversity, UniversityID: &uniID,
	})
}

func (s *ServiceSuite) TestCreate() {
	ctx := s.adminCtx()

	s.Run("with contacts", func() {
		out, err := s.svc.Create(ctx, "Hansung University", []ContactInput{
			{Email: "intl@hansung.ac.kr", IsPrimary: true},
			{Email: "office@hansung.ac.kr"},
		})
		s.Require().NoError(err)
		s.Equal("Hansung University", out.Name)
		s.Len(out.Contacts, 2)
	})

	s.Run("duplicate name conflicts", func() {
		_, err := s.svc.Create(ctx, "hansung university", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("two primaries rejected", func() {
		_, err := s.svc.Create(ctx, "Another", []ContactInput{
			{Email: "a@x.ac.kr", IsPrimary: true},
			{Email: "b@x.ac.kr", IsPrimary: true},
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("no primary rejected", func() {
		_, err := s.svc.Create(ctx, "Another", []ContactInput{{Email: "a@x.ac.kr"}})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("non-admin forbidden with no side effect", func() {
		_, err := s.svc.Create(s.universityCtx(), "Sneaky U", nil)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		all, err := s.store.List(context.Background())
		s.Require().NoError(err)
		for _, u := range all {
			s.NotEqual("Sneaky U", u.Name)
		}
	})
}

func (s *ServiceSuite) TestCreateCompensatesOnContactFailure() {
	ctx := s.adminCtx()
	failing := &contactFailingStore{MemoryStore: s.store}
	recorder := audit.NewRecorder(audit.NewMemoryStore(), slog.New(slog.DiscardHandler), testMetrics)
	svc := NewService(failing, DependentFunc(func(context.Context, uuid.UUID) (bool, error) { return false, nil }),
		recorder, slog.New(slog.DiscardHandler))

	_, err := svc.Create(ctx, "Doomed University", []ContactInput{{Email: "x@d.ac.kr", IsPrimary: true}})
	s.Require().Error(err)

	// The half-created university row was rolled back.
	all, listErr := s.store.List(context.Background())
	s.Require().NoError(listErr)
	s.Empty(all)
}

func (s *ServiceSuite) TestDeleteBlockedByDependents() {
	ctx := s.adminCtx()
	out, err := s.svc.Create(ctx, "Keimyung University", nil)
	s.Require().NoError(err)

	s.hasDependents = true
	err = s.svc.Delete(ctx, out.ID)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))

	// The row must remain.
	_, err = s.svc.Get(ctx, out.ID)
	s.Require().NoError(err)

	s.hasDependents = false
	s.Require().NoError(s.svc.Delete(ctx, out.ID))

	_, err = s.svc.Get(ctx, out.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestUpdate() {
	ctx := s.adminCtx()
	out, err := s.svc.Create(ctx, "Old Name", []ContactInput{{Email: "old@u.ac.kr", IsPrimary: true}})
	s.Require().NoError(err)

	name := "New Name"
	contacts := []ContactInput{{Email: "new@u.ac.kr", IsPrimary: true}}
	updated, err := s.svc.Update(ctx, out.ID, UpdateInput{Name: &name, Contacts: &contacts})
	s.Require().NoError(err)
	s.Equal("New Name", updated.Name)
	s.Require().Len(updated.Contacts, 1)
	s.Equal("new@u.ac.kr", updated.Contacts[0].Email)
}

type contactFailingStore struct {
	*MemoryStore
}

func (s *contactFailingStore) InsertContacts(context.Context, []Contact) error {
	return errors.New("contacts table unavailable")
}
