package student

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"frisk/internal/audit"
	"frisk/internal/platform/metrics"
	"frisk/internal/storage"
	"frisk/internal/university"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/tx"
	"frisk/pkg/requestcontext"
)

var testMetrics = metrics.New()

type ServiceSuite struct {
	suite.Suite

	store        *MemoryStore
	universities *university.MemoryStore
	objects      *storage.MemoryStore
	auditStore   *audit.MemoryStore
	svc          *Service

	uniA uuid.UUID
	uniB uuid.UUID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = NewMemoryStore()
	s.universities = university.NewMemoryStore()
	s.objects = storage.NewMemoryStore()
	s.auditStore = audit.NewMemoryStore()

	logger := slog.New(slog.DiscardHandler)
	recorder := audit.NewRecorder(s.auditStore, logger, testMetrics)
	s.svc = NewService(s.store, s.universities, s.objects,
		"consent-files", time.Hour, tx.NewRunner(nil), recorder, logger, testMetrics)

	s.uniA = uuid.New()
	s.uniB = uuid.New()
	s.Require().NoError(s.universities.Create(context.Background(),
		university.University{ID: s.uniA, Name: "University A", CreatedAt: time.Now()}))
	s.Require().NoError(s.universities.Create(context.Background(),
		university.University{ID: s.uniB, Name: "University B", CreatedAt: time.Now()}))
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

func (s *ServiceSuite) create(ctx context.Context, uniID uuid.UUID, no string) Student {
	st, err := s.svc.Create(ctx, CreateInput{
		UniversityID: uniID,
		StudentNo:    no,
		Name:         "Kim Minsu",
		Department:   "Computer Science",
		Program:      ProgramBachelor,
		Address:      "Seoul",
		Phone:        "010-1111-2222",
		Status:       StatusEnrolled,
	})
	s.Require().NoError(err)
	return st
}

func (s *ServiceSuite) TestCreateDuplicate() {
	ctx := s.agencyCtx()
	s.create(ctx, s.uniA, "2024001234")

	s.Run("same triple conflicts", func() {
		_, err := s.svc.Create(ctx, CreateInput{
			UniversityID: s.uniA, StudentNo: "2024001234", Name: "Other",
			Program: ProgramBachelor, Status: StatusEnrolled,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("same number under other program is fine", func() {
		_, err := s.svc.Create(ctx, CreateInput{
			UniversityID: s.uniA, StudentNo: "2024001234", Name: "Other",
			Program: ProgramMaster, Status: StatusEnrolled,
		})
		s.Require().NoError(err)
	})

	s.Run("same triple at other university is fine", func() {
		_, err := s.svc.Create(ctx, CreateInput{
			UniversityID: s.uniB, StudentNo: "2024001234", Name: "Other",
			Program: ProgramBachelor, Status: StatusEnrolled,
		})
		s.Require().NoError(err)
	})
}

func (s *ServiceSuite) TestCreateGuards() {
	s.Run("unknown university", func() {
		_, err := s.svc.Create(s.agencyCtx(), CreateInput{
			UniversityID: uuid.New(), StudentNo: "x", Name: "y",
			Program: ProgramBachelor, Status: StatusEnrolled,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("university role cannot create", func() {
		_, err := s.svc.Create(s.universityCtx(s.uniA), CreateInput{
			UniversityID: s.uniA, StudentNo: "x", Name: "y",
			Program: ProgramBachelor, Status: StatusEnrolled,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		all, listErr := s.store.List(context.Background(), Filter{})
		s.Require().NoError(listErr)
		s.Empty(all)
	})
}

func (s *ServiceSuite) TestScopeIsolation() {
	agency := s.agencyCtx()
	stA := s.create(agency, s.uniA, "A-001")
	stB := s.create(agency, s.uniB, "B-001")

	s.Run("list is forced to own scope", func() {
		// The foreign filter is overridden, not honored.
		got, err := s.svc.List(s.universityCtx(s.uniA), Filter{UniversityID: &s.uniB})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(stA.ID, got[0].ID)
	})

	s.Run("foreign get is forbidden", func() {
		_, err := s.svc.Get(s.universityCtx(s.uniA), stB.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("own get succeeds", func() {
		got, err := s.svc.Get(s.universityCtx(s.uniA), stA.ID)
		s.Require().NoError(err)
		s.Equal(stA.ID, got.ID)
	})

	s.Run("agency sees everything", func() {
		got, err := s.svc.List(agency, Filter{})
		s.Require().NoError(err)
		s.Len(got, 2)
	})
}

func (s *ServiceSuite) TestSoftDeleteInvisibility() {
	ctx := s.agencyCtx()
	st := s.create(ctx, s.uniA, "GONE-01")

	s.Require().NoError(s.svc.Delete(ctx, st.ID))

	_, err := s.svc.Get(ctx, st.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	got, err := s.svc.List(ctx, Filter{})
	s.Require().NoError(err)
	s.Empty(got)

	_, err = s.svc.Update(ctx, st.ID, UpdateInput{Name: ptr("New")})
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))

	// The student number is free again for a fresh row.
	_, err = s.svc.Create(ctx, CreateInput{
		UniversityID: s.uniA, StudentNo: "GONE-01", Name: "Fresh",
		Program: ProgramBachelor, Status: StatusEnrolled,
	})
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestUpdateLogsContactChanges() {
	ctx := s.agencyCtx()
	st := s.create(ctx, s.uniA, "LOG-01")

	updated, err := s.svc.Update(ctx, st.ID, UpdateInput{
		Phone: ptr("010-9999-8888"),
		Name:  ptr("Kim Minsu Jr"),
	})
	s.Require().NoError(err)
	s.Equal("010-9999-8888", updated.Phone)

	logs, err := s.svc.ChangeHistory(ctx, st.ID)
	s.Require().NoError(err)
	s.Require().Len(logs, 1)
	s.Equal(FieldPhone, logs[0].FieldName)
	s.Equal("010-1111-2222", logs[0].OldValue)
	s.Equal("010-9999-8888", logs[0].NewValue)
	s.Nil(logs[0].CheckInDate)

	s.Run("unchanged contact value logs nothing", func() {
		_, err := s.svc.Update(ctx, st.ID, UpdateInput{Phone: ptr("010-9999-8888")})
		s.Require().NoError(err)
		logs, err := s.svc.ChangeHistory(ctx, st.ID)
		s.Require().NoError(err)
		s.Len(logs, 1)
	})
}

func (s *ServiceSuite) TestConsentLifecycle() {
	ctx := s.agencyCtx()
	st := s.create(ctx, s.uniA, "DOC-01")

	s.Run("oversized rejected", func() {
		_, err := s.svc.UploadConsent(ctx, st.ID, make([]byte, maxConsentSize+1), "application/pdf", "big.pdf")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("wrong type rejected", func() {
		_, err := s.svc.UploadConsent(ctx, st.ID, []byte("zip"), "application/zip", "bad.zip")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	var firstKey string
	s.Run("upload stores and references", func() {
		got, err := s.svc.UploadConsent(ctx, st.ID, []byte("pdf-bytes"), "application/pdf", "consent.pdf")
		s.Require().NoError(err)
		s.NotEmpty(got.ConsentFilePath)
		firstKey = got.ConsentFilePath

		_, ok := s.objects.Get("consent-files", firstKey)
		s.True(ok)
	})

	s.Run("replace removes the old object", func() {
		got, err := s.svc.UploadConsent(ctx, st.ID, []byte("new-bytes"), "image/png", "consent.png")
		s.Require().NoError(err)
		s.NotEqual(firstKey, got.ConsentFilePath)

		_, ok := s.objects.Get("consent-files", firstKey)
		s.False(ok)
		s.Equal(1, s.objects.Len())
	})

	s.Run("download URL for own scope", func() {
		url, err := s.svc.ConsentURL(s.universityCtx(s.uniA), st.ID)
		s.Require().NoError(err)
		s.NotEmpty(url)
	})

	s.Run("download URL foreign scope forbidden", func() {
		_, err := s.svc.ConsentURL(s.universityCtx(s.uniB), st.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("delete clears reference and object", func() {
		s.Require().NoError(s.svc.DeleteConsent(ctx, st.ID))
		s.Equal(0, s.objects.Len())

		_, err := s.svc.ConsentURL(ctx, st.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func ptr[T any](v T) *T { return &v }
