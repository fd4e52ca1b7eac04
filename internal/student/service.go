package student

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/platform/metrics"
	"frisk/internal/storage"
	"frisk/internal/university"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/platform/tx"
	"frisk/pkg/requestcontext"
)

// maxConsentSize caps consent document uploads at 5 MB.
const maxConsentSize = 5 << 20

// UniversityDirectory is the slice of the university store this service
// needs: existence checks on create.
type UniversityDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (university.University, error)
}

// Service implements roster management.
type Service struct {
	store         Store
	universities  UniversityDirectory
	objects       storage.ObjectStore
	consentBucket string
	urlExpiry     time.Duration
	runner        *tx.Runner
	recorder      *audit.Recorder
	logger        *slog.Logger
	m             *metrics.Metrics
}

func NewService(store Store, universities UniversityDirectory, objects storage.ObjectStore,
	consentBucket string, urlExpiry time.Duration, runner *tx.Runner,
	recorder *audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		store:         store,
		universities:  universities,
		objects:       objects,
		consentBucket: consentBucket,
		urlExpiry:     urlExpiry,
		runner:        runner,
		recorder:      recorder,
		logger:        logger,
		m:             m,
	}
}

// CreateInput is a new roster entry.
type CreateInput struct {
	UniversityID uuid.UUID
	StudentNo    string
	Name         string
	Department   string
	Program      Program
	Address      string
	Phone        string
	Email        string
	Status       Status
}

func (in CreateInput) validate() error {
	switch {
	case in.UniversityID == uuid.Nil:
		return dErrors.New(dErrors.CodeValidation, "university_id is required")
	case strings.TrimSpace(in.StudentNo) == "":
		return dErrors.New(dErrors.CodeValidation, "student_no is required")
	case strings.TrimSpace(in.Name) == "":
		return dErrors.New(dErrors.CodeValidation, "name is required")
	case !in.Program.Valid():
		return dErrors.New(dErrors.CodeValidation, "unknown program")
	case !in.Status.Valid():
		return dErrors.New(dErrors.CodeValidation, "unknown status")
	}
	if in.Email != "" {
		if _, err := mail.ParseAddress(in.Email); err != nil {
			return dErrors.New(dErrors.CodeValidation, "email is malformed")
		}
	}
	return nil
}

// Create registers a student. Agency and admin only. The university must
// exist and (university, program, student_no) must be free among live rows.
func (s *Service) Create(ctx context.Context, input CreateInput) (Student, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return Student{}, err
	}
	if err := input.validate(); err != nil {
		return Student{}, err
	}

	if _, err := s.universities.GetByID(ctx, input.UniversityID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Student{}, dErrors.New(dErrors.CodeValidation, "university does not exist")
		}
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "check university")
	}

	now := requestcontext.Now(ctx)
	st := Student{
		ID:           uuid.New(),
		UniversityID: input.UniversityID,
		StudentNo:    strings.TrimSpace(input.StudentNo),
		Name:         strings.TrimSpace(input.Name),
		Department:   strings.TrimSpace(input.Department),
		Program:      input.Program,
		Address:      input.Address,
		Phone:        input.Phone,
		Email:        strings.TrimSpace(input.Email),
		Status:       input.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.Create(ctx, st); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Student{}, dErrors.New(dErrors.CodeConflict,
				"a student with this number already exists for this university and program")
		}
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "create student")
	}

	s.m.StudentsCreated.Inc()
	s.recorder.Update(ctx, ident.UserID, "student", st.ID, map[string]any{"created": st.StudentNo})
	return st, nil
}

// List returns students matching the filter. A university-role caller is
// forced onto their own scope no matter what filter they send.
func (s *Service) List(ctx context.Context, f Filter) ([]Student, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if ident.Role == requestcontext.RoleUniversity {
		if ident.UniversityID == nil {
			return nil, dErrors.New(dErrors.CodeForbidden, "account has no university scope")
		}
		f.UniversityID = ident.UniversityID
	}

	out, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list students")
	}
	return out, nil
}

// Get returns one student, scope-checked for university callers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Student, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return Student{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	st, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Student{}, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	if err := authz.RequireUniversityScope(ident, st.UniversityID); err != nil {
		return Student{}, err
	}
	return st, nil
}

// UpdateInput is a partial edit. Nil fields are left unchanged.
type UpdateInput struct {
	StudentNo  *string
	Name       *string
	Department *string
	Program    *Program
	Address    *string
	Phone      *string
	Email      *string
	Status     *Status
}

// Update applies a partial edit. Changes to phone, address or email append
// contact-change log rows in the same transaction as the row update so the
// history can never drift from the data.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (Student, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return Student{}, err
	}

	st, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Student{}, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	changes := map[string]any{}
	if input.StudentNo != nil {
		st.StudentNo = strings.TrimSpace(*input.StudentNo)
		changes["student_no"] = st.StudentNo
	}
	if input.Name != nil {
		st.Name = strings.TrimSpace(*input.Name)
		changes["name"] = st.Name
	}
	if input.Department != nil {
		st.Department = strings.TrimSpace(*input.Department)
		changes["department"] = st.Department
	}
	if input.Program != nil {
		if !input.Program.Valid() {
			return Student{}, dErrors.New(dErrors.CodeValidation, "unknown program")
		}
		st.Program = *input.Program
		changes["program"] = string(st.Program)
	}
	if input.Status != nil {
		if !input.Status.Valid() {
			return Student{}, dErrors.New(dErrors.CodeValidation, "unknown status")
		}
		st.Status = *input.Status
		changes["status"] = string(st.Status)
	}
	if input.Email != nil && *input.Email != "" {
		if _, err := mail.ParseAddress(*input.Email); err != nil {
			return Student{}, dErrors.New(dErrors.CodeValidation, "email is malformed")
		}
	}

	now := requestcontext.Now(ctx)
	var logs []ContactChangeLog
	appendChange := func(field ContactField, oldV, newV string) {
		logs = append(logs, ContactChangeLog{
			ID:        uuid.New(),
			StudentID: st.ID,
			FieldName: field,
			OldValue:  oldV,
			NewValue:  newV,
			ChangedBy: ident.UserID,
			CreatedAt: now,
		})
		changes[string(field)] = newV
	}
	if input.Phone != nil && *input.Phone != st.Phone {
		appendChange(FieldPhone, st.Phone, *input.Phone)
		st.Phone = *input.Phone
	}
	if input.Address != nil && *input.Address != st.Address {
		appendChange(FieldAddress, st.Address, *input.Address)
		st.Address = *input.Address
	}
	if input.Email != nil && *input.Email != st.Email {
		appendChange(FieldEmail, st.Email, *input.Email)
		st.Email = *input.Email
	}
	st.UpdatedAt = now

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.store.Update(ctx, st); err != nil {
			return err
		}
		for _, l := range logs {
			if err := s.store.AppendChangeLog(ctx, l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Student{}, dErrors.New(dErrors.CodeConflict,
				"a student with this number already exists for this university and program")
		}
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "update student")
	}

	s.recorder.Update(ctx, ident.UserID, "student", st.ID, changes)
	return st, nil
}

// Delete soft-deletes a student. The row is marked, never removed, so the
// audit and change history stay resolvable.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ident, err := requireManager(ctx)
	if err != nil {
		return err
	}

	if err := s.store.SoftDelete(ctx, id, requestcontext.Now(ctx)); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "student not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete student")
	}

	s.recorder.Delete(ctx, ident.UserID, "student", id)
	return nil
}

// ChangeHistory returns the contact-change log of a student, scope-checked
// like any other read.
func (s *Service) ChangeHistory(ctx context.Context, id uuid.UUID) ([]ContactChangeLog, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	logs, err := s.store.ListChangeLogs(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list change logs")
	}
	return logs, nil
}

// UploadConsent stores or replaces a student's consent document. The old
// object is removed best-effort after the new one is referenced; a failed
// metadata update deletes the just-uploaded object so nothing orphans.
func (s *Service) UploadConsent(ctx context.Context, studentID uuid.UUID, body []byte, contentType, originalName string) (Student, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return Student{}, err
	}
	if len(body) == 0 {
		return Student{}, dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if len(body) > maxConsentSize {
		return Student{}, dErrors.New(dErrors.CodeValidation, "consent document exceeds 5MB")
	}

	st, err := s.store.GetByID(ctx, studentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Student{}, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	key, err := storage.ObjectKey(studentID, contentType)
	if err != nil {
		return Student{}, dErrors.New(dErrors.CodeValidation, "only PDF, JPEG, PNG and WEBP files are accepted")
	}
	if err := s.objects.Put(ctx, s.consentBucket, key, body, contentType); err != nil {
		return Student{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "store consent document")
	}

	oldKey := st.ConsentFilePath
	st.ConsentFilePath = key
	st.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, st); err != nil {
		if delErr := s.objects.Delete(ctx, s.consentBucket, key); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned consent object needs manual cleanup",
				"bucket", s.consentBucket, "key", key, "error", delErr)
		}
		return Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "reference consent document")
	}

	if oldKey != "" {
		if err := s.objects.Delete(ctx, s.consentBucket, oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to remove replaced consent object",
				"bucket", s.consentBucket, "key", oldKey, "error", err)
		}
	}

	s.recorder.Upload(ctx, ident.UserID, "consent", studentID, originalName)
	return st, nil
}

// DeleteConsent removes a student's consent document.
func (s *Service) DeleteConsent(ctx context.Context, studentID uuid.UUID) error {
	ident, err := requireManager(ctx)
	if err != nil {
		return err
	}

	st, err := s.store.GetByID(ctx, studentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}
	if st.ConsentFilePath == "" {
		return dErrors.New(dErrors.CodeNotFound, "student has no consent document")
	}

	key := st.ConsentFilePath
	st.ConsentFilePath = ""
	st.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, st); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "dereference consent document")
	}
	if err := s.objects.Delete(ctx, s.consentBucket, key); err != nil {
		s.logger.WarnContext(ctx, "failed to remove consent object",
			"bucket", s.consentBucket, "key", key, "error", err)
	}

	s.recorder.Delete(ctx, ident.UserID, "consent", studentID)
	return nil
}

// ConsentURL returns a presigned download URL for a student's consent
// document. Reads are scope-checked like the student itself and audited.
func (s *Service) ConsentURL(ctx context.Context, studentID uuid.UUID) (string, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return "", dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	st, err := s.Get(ctx, studentID)
	if err != nil {
		return "", err
	}
	if st.ConsentFilePath == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "student has no consent document")
	}

	url, err := s.objects.PresignGet(ctx, s.consentBucket, st.ConsentFilePath, s.urlExpiry)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "sign consent URL")
	}

	s.recorder.Download(ctx, ident.UserID, "consent", studentID.String())
	return url, nil
}

func requireManager(ctx context.Context) (requestcontext.RequestIdentity, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := authz.RequireRole(ident, requestcontext.RoleAdmin, requestcontext.RoleAgency); err != nil {
		return requestcontext.RequestIdentity{}, err
	}
	return ident, nil
}
