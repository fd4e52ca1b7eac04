package absence

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/storage"
	"frisk/internal/student"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/requestcontext"
)

// maxEvidenceSize caps evidence uploads at 10 MB.
const maxEvidenceSize = 10 << 20

// Notifier is the absence notification hook. A send failure never fails the
// absence create.
type Notifier interface {
	AbsenceRecorded(ctx context.Context, st student.Student, a Absence) error
}

// Service implements absence management.
type Service struct {
	store     Store
	students  student.Store
	objects   storage.ObjectStore
	bucket    string
	urlExpiry time.Duration
	notifier  Notifier
	recorder  *audit.Recorder
	logger    *slog.Logger
}

func NewService(store Store, students student.Store, objects storage.ObjectStore,
	bucket string, urlExpiry time.Duration, notifier Notifier,
	recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		students:  students,
		objects:   objects,
		bucket:    bucket,
		urlExpiry: urlExpiry,
		notifier:  notifier,
		recorder:  recorder,
		logger:    logger,
	}
}

// CreateInput is a new absence record.
type CreateInput struct {
	StudentID   uuid.UUID
	AbsenceDate time.Time
	Reason      Reason
	Note        string
	Notify      bool
}

// Create records an absence for a live student. Agency and admin only. When
// Notify is set the university contacts are mailed; a mail failure is logged
// and the create still succeeds.
func (s *Service) Create(ctx context.Context, input CreateInput) (Absence, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return Absence{}, err
	}
	if !input.Reason.Valid() {
		return Absence{}, dErrors.New(dErrors.CodeValidation, "unknown reason")
	}
	if input.AbsenceDate.IsZero() {
		return Absence{}, dErrors.New(dErrors.CodeValidation, "absence_date is required")
	}

	st, err := s.students.GetByID(ctx, input.StudentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Absence{}, dErrors.New(dErrors.CodeNotFound, "student not found")
	}
	if err != nil {
		return Absence{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	a := Absence{
		ID:          uuid.New(),
		StudentID:   st.ID,
		AbsenceDate: input.AbsenceDate,
		Reason:      input.Reason,
		Note:        input.Note,
		CreatedBy:   ident.UserID,
		CreatedAt:   requestcontext.Now(ctx),
	}
	if err := s.store.Create(ctx, a); err != nil {
		return Absence{}, dErrors.Wrap(err, dErrors.CodeInternal, "create absence")
	}

	s.recorder.Update(ctx, ident.UserID, "absence", a.ID, map[string]any{
		"student_id": st.ID.String(),
		"date":       a.AbsenceDate.Format("2006-01-02"),
		"reason":     string(a.Reason),
	})

	if input.Notify && s.notifier != nil {
		if err := s.notifier.AbsenceRecorded(ctx, st, a); err != nil {
			s.logger.ErrorContext(ctx, "absence notification failed",
				"absence_id", a.ID, "error", err)
		}
	}
	return a, nil
}

// ListFilter is the handler-facing filter; university scoping happens here,
// not in the store.
type ListFilter struct {
	StudentID    *uuid.UUID
	UniversityID *uuid.UUID
	Reason       Reason
	From         time.Time
	To           time.Time
}

// List returns absences visible to the caller. A university-role caller only
// ever sees absences of their own students.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Absence, error) {
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

	storeFilter := Filter{
		StudentID: f.StudentID,
		Reason:    f.Reason,
		From:      f.From,
		To:        f.To,
	}
	if f.UniversityID != nil {
		ids, err := s.studentIDsOf(ctx, *f.UniversityID)
		if err != nil {
			return nil, err
		}
		storeFilter.StudentIDs = ids
	}

	out, err := s.store.List(ctx, storeFilter)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list absences")
	}
	return out, nil
}

func (s *Service) studentIDsOf(ctx context.Context, universityID uuid.UUID) ([]uuid.UUID, error) {
	students, err := s.students.List(ctx, student.Filter{UniversityID: &universityID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list students for scope")
	}
	// Non-nil even when empty so the store matches nothing.
	ids := make([]uuid.UUID, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	return ids, nil
}

// Get returns an absence with its student and evidence files. Scope-checked
// for university callers.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Detail, error) {
	a, st, err := s.loadScoped(ctx, id)
	if err != nil {
		return Detail{}, err
	}

	files, err := s.filesWithURLs(ctx, a.ID)
	if err != nil {
		return Detail{}, err
	}
	return Detail{Absence: a, Student: st, Files: files}, nil
}

// loadScoped loads an absence plus its student and applies the university
// scope check.
func (s *Service) loadScoped(ctx context.Context, id uuid.UUID) (Absence, student.Student, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return Absence{}, student.Student{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	a, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Absence{}, student.Student{}, dErrors.New(dErrors.CodeNotFound, "absence not found")
	}
	if err != nil {
		return Absence{}, student.Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "get absence")
	}

	st, err := s.students.GetByID(ctx, a.StudentID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// The student was soft-deleted after the absence was recorded.
		return Absence{}, student.Student{}, dErrors.New(dErrors.CodeNotFound, "absence not found")
	}
	if err != nil {
		return Absence{}, student.Student{}, dErrors.Wrap(err, dErrors.CodeInternal, "get student")
	}

	if err := authz.RequireUniversityScope(ident, st.UniversityID); err != nil {
		return Absence{}, student.Student{}, err
	}
	return a, st, nil
}

// Delete removes an absence, its file metadata and the stored objects.
// Object deletions are best-effort; a leftover object is logged for manual
// cleanup and never blocks the row deletion.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ident, err := requireManager(ctx)
	if err != nil {
		return err
	}

	if _, err := s.store.GetByID(ctx, id); errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "absence not found")
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "get absence")
	}

	files, err := s.store.ListFiles(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "list absence files")
	}
	for _, f := range files {
		if err := s.objects.Delete(ctx, s.bucket, f.FilePath); err != nil {
			s.logger.WarnContext(ctx, "failed to remove evidence object",
				"bucket", s.bucket, "key", f.FilePath, "error", err)
		}
	}
	if err := s.store.DeleteFilesByAbsence(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete absence files")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete absence")
	}

	s.recorder.Delete(ctx, ident.UserID, "absence", id)
	return nil
}

// UploadFile attaches an evidence file to an absence. A failed metadata
// insert deletes the just-uploaded object so nothing orphans.
func (s *Service) UploadFile(ctx context.Context, absenceID uuid.UUID, body []byte, contentType, originalName string) (FileWithURL, error) {
	ident, err := requireManager(ctx)
	if err != nil {
		return FileWithURL{}, err
	}
	if len(body) == 0 {
		return FileWithURL{}, dErrors.New(dErrors.CodeValidation, "file is empty")
	}
	if len(body) > maxEvidenceSize {
		return FileWithURL{}, dErrors.New(dErrors.CodeValidation, "evidence file exceeds 10MB")
	}

	if _, err := s.store.GetByID(ctx, absenceID); errors.Is(err, sentinel.ErrNotFound) {
		return FileWithURL{}, dErrors.New(dErrors.CodeNotFound, "absence not found")
	} else if err != nil {
		return FileWithURL{}, dErrors.Wrap(err, dErrors.CodeInternal, "get absence")
	}

	key, err := storage.ObjectKey(absenceID, contentType)
	if err != nil {
		return FileWithURL{}, dErrors.New(dErrors.CodeValidation, "only PDF, JPEG, PNG and WEBP files are accepted")
	}
	if err := s.objects.Put(ctx, s.bucket, key, body, contentType); err != nil {
		return FileWithURL{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "store evidence file")
	}

	f := File{
		ID:           uuid.New(),
		AbsenceID:    absenceID,
		FilePath:     key,
		OriginalName: originalName,
		CreatedAt:    requestcontext.Now(ctx),
	}
	if err := s.store.InsertFile(ctx, f); err != nil {
		if delErr := s.objects.Delete(ctx, s.bucket, key); delErr != nil {
			s.logger.ErrorContext(ctx, "orphaned evidence object needs manual cleanup",
				"bucket", s.bucket, "key", key, "error", delErr)
		}
		return FileWithURL{}, dErrors.Wrap(err, dErrors.CodeInternal, "record evidence file")
	}

	s.recorder.Upload(ctx, ident.UserID, "absence_file", absenceID, originalName)

	url, err := s.objects.PresignGet(ctx, s.bucket, key, s.urlExpiry)
	if err != nil {
		return FileWithURL{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "sign evidence URL")
	}
	return FileWithURL{File: f, URL: url}, nil
}

// Files lists the evidence files of an absence with presigned URLs, audited
// as a download.
func (s *Service) Files(ctx context.Context, absenceID uuid.UUID) ([]FileWithURL, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if _, _, err := s.loadScoped(ctx, absenceID); err != nil {
		return nil, err
	}

	files, err := s.filesWithURLs(ctx, absenceID)
	if err != nil {
		return nil, err
	}
	if len(files) > 0 {
		s.recorder.Download(ctx, ident.UserID, "absence_file", absenceID.String())
	}
	return files, nil
}

func (s *Service) filesWithURLs(ctx context.Context, absenceID uuid.UUID) ([]FileWithURL, error) {
	files, err := s.store.ListFiles(ctx, absenceID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list absence files")
	}
	out := make([]FileWithURL, 0, len(files))
	for _, f := range files {
		url, err := s.objects.PresignGet(ctx, s.bucket, f.FilePath, s.urlExpiry)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "sign evidence URL")
		}
		out = append(out, FileWithURL{File: f, URL: url})
	}
	return out, nil
}

// DeleteFile removes one evidence file and its object.
func (s *Service) DeleteFile(ctx context.Context, fileID uuid.UUID) error {
	ident, err := requireManager(ctx)
	if err != nil {
		return err
	}

	f, err := s.store.GetFile(ctx, fileID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "file not found")
	}
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "get file")
	}

	if err := s.store.DeleteFile(ctx, fileID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete file record")
	}
	if err := s.objects.Delete(ctx, s.bucket, f.FilePath); err != nil {
		s.logger.WarnContext(ctx, "failed to remove evidence object",
			"bucket", s.bucket, "key", f.FilePath, "error", err)
	}

	s.recorder.Delete(ctx, ident.UserID, "absence_file", fileID)
	return nil
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
