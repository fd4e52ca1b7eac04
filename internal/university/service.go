package university

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"frisk/internal/audit"
	"frisk/internal/authz"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/requestcontext"
)

const maxNameLength = 100

// DependentChecker reports whether any students or accounts still reference
// a university. Deletion is blocked while they do.
type DependentChecker interface {
	HasDependents(ctx context.Context, universityID uuid.UUID) (bool, error)
}

// DependentFunc adapts a function to DependentChecker.
type DependentFunc func(ctx context.Context, universityID uuid.UUID) (bool, error)

func (f DependentFunc) HasDependents(ctx context.Context, universityID uuid.UUID) (bool, error) {
	return f(ctx, universityID)
}

// Service implements university reference-data management.
type Service struct {
	store      Store
	dependents DependentChecker
	recorder   *audit.Recorder
	logger     *slog.Logger
}

func NewService(store Store, dependents DependentChecker, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{store: store, dependents: dependents, recorder: recorder, logger: logger}
}

// ContactInput is one contact in a create or update request.
type ContactInput struct {
	Email     string
	IsPrimary bool
}

func validateContacts(contacts []ContactInput) error {
	if len(contacts) == 0 {
		return nil
	}
	if len(contacts) > 2 {
		return dErrors.New(dErrors.CodeValidation, "a university carries at most two contacts")
	}
	primaries := 0
	for _, c := range contacts {
		if c.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		return dErrors.New(dErrors.CodeValidation, "exactly one contact must be primary")
	}
	return nil
}

func validateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return dErrors.New(dErrors.CodeValidation, "name is required")
	}
	if len(name) > maxNameLength {
		return dErrors.Newf(dErrors.CodeValidation, "name exceeds %d characters", maxNameLength)
	}
	return nil
}

// Create registers a university with its contacts. Admin only. If the
// contacts insert fails the university row is removed again best-effort so a
// half-created record does not linger.
func (s *Service) Create(ctx context.Context, name string, contacts []ContactInput) (WithContacts, error) {
	ident, err := identityWithRole(ctx, requestcontext.RoleAdmin)
	if err != nil {
		return WithContacts{}, err
	}
	if err := validateName(name); err != nil {
		return WithContacts{}, err
	}
	if err := validateContacts(contacts); err != nil {
		return WithContacts{}, err
	}

	now := requestcontext.Now(ctx)
	u := University{ID: uuid.New(), Name: strings.TrimSpace(name), CreatedAt: now}
	if err := s.store.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return WithContacts{}, dErrors.New(dErrors.CodeConflict, "a university with this name already exists")
		}
		return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "create university")
	}

	rows := make([]Contact, 0, len(contacts))
	for _, c := range contacts {
		rows = append(rows, Contact{
			ID:           uuid.New(),
			UniversityID: u.ID,
			Email:        strings.TrimSpace(strings.ToLower(c.Email)),
			IsPrimary:    c.IsPrimary,
			CreatedAt:    now,
		})
	}
	if len(rows) > 0 {
		if err := s.store.InsertContacts(ctx, rows); err != nil {
			if delErr := s.store.Delete(ctx, u.ID); delErr != nil {
				s.logger.ErrorContext(ctx, "orphaned university row needs manual cleanup",
					"university_id", u.ID, "error", delErr)
			}
			return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "create university contacts")
		}
	}

	s.recorder.Update(ctx, ident.UserID, "university", u.ID, map[string]any{"created": u.Name})
	return WithContacts{University: u, Contacts: rows}, nil
}

// List returns all universities. Any authenticated role may read reference
// data.
func (s *Service) List(ctx context.Context) ([]University, error) {
	if _, ok := requestcontext.Identity(ctx); !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	out, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list universities")
	}
	return out, nil
}

// Get returns a university with its contacts.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (WithContacts, error) {
	if _, ok := requestcontext.Identity(ctx); !ok {
		return WithContacts{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	u, err := s.store.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return WithContacts{}, dErrors.New(dErrors.CodeNotFound, "university not found")
	}
	if err != nil {
		return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "get university")
	}
	contacts, err := s.store.ListContacts(ctx, id)
	if err != nil {
		return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "list contacts")
	}
	return WithContacts{University: u, Contacts: contacts}, nil
}

// Contacts returns the notification recipients of a university. Used by the
// absence notification path.
func (s *Service) Contacts(ctx context.Context, id uuid.UUID) ([]Contact, error) {
	contacts, err := s.store.ListContacts(ctx, id)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list contacts")
	}
	return contacts, nil
}

// UpdateInput changes a university. Nil fields are left unchanged; a non-nil
// Contacts replaces the full contact set.
type UpdateInput struct {
	Name     *string
	Contacts *[]ContactInput
}

// Update renames a university and/or replaces its contacts. Admin only.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (WithContacts, error) {
	ident, err := identityWithRole(ctx, requestcontext.RoleAdmin)
	if err != nil {
		return WithContacts{}, err
	}

	changes := map[string]any{}
	if input.Name != nil {
		if err := validateName(*input.Name); err != nil {
			return WithContacts{}, err
		}
		if err := s.store.UpdateName(ctx, id, strings.TrimSpace(*input.Name)); err != nil {
			switch {
			case errors.Is(err, sentinel.ErrNotFound):
				return WithContacts{}, dErrors.New(dErrors.CodeNotFound, "university not found")
			case errors.Is(err, sentinel.ErrConflict):
				return WithContacts{}, dErrors.New(dErrors.CodeConflict, "a university with this name already exists")
			}
			return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "rename university")
		}
		changes["name"] = strings.TrimSpace(*input.Name)
	}

	if input.Contacts != nil {
		if err := validateContacts(*input.Contacts); err != nil {
			return WithContacts{}, err
		}
		if err := s.store.DeleteContacts(ctx, id); err != nil {
			return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "replace contacts")
		}
		now := requestcontext.Now(ctx)
		rows := make([]Contact, 0, len(*input.Contacts))
		for _, c := range *input.Contacts {
			rows = append(rows, Contact{
				ID:           uuid.New(),
				UniversityID: id,
				Email:        strings.TrimSpace(strings.ToLower(c.Email)),
				IsPrimary:    c.IsPrimary,
				CreatedAt:    now,
			})
		}
		if len(rows) > 0 {
			if err := s.store.InsertContacts(ctx, rows); err != nil {
				return WithContacts{}, dErrors.Wrap(err, dErrors.CodeInternal, "replace contacts")
			}
		}
		changes["contacts"] = len(rows)
	}

	s.recorder.Update(ctx, ident.UserID, "university", id, changes)
	return s.Get(ctx, id)
}

// Delete removes a university. Admin only; blocked while dependent students
// or accounts still reference it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	ident, err := identityWithRole(ctx, requestcontext.RoleAdmin)
	if err != nil {
		return err
	}

	if _, err := s.store.GetByID(ctx, id); errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "university not found")
	} else if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "get university")
	}

	has, err := s.dependents.HasDependents(ctx, id)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "check dependents")
	}
	if has {
		return dErrors.New(dErrors.CodeConflict, "university still has associated students or accounts")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete university")
	}

	s.recorder.Delete(ctx, ident.UserID, "university", id)
	return nil
}

func identityWithRole(ctx context.Context, roles ...requestcontext.Role) (requestcontext.RequestIdentity, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := authz.RequireRole(ident, roles...); err != nil {
		return requestcontext.RequestIdentity{}, err
	}
	return ident, nil
}
