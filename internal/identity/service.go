package identity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/platform/metrics"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/sentinel"
	"frisk/pkg/requestcontext"
)

// Service implements login, logout, per-request identity resolution and
// admin account management.
type Service struct {
	users      UserStore
	revocation RevocationStore
	tokens     *TokenIssuer
	recorder   *audit.Recorder
	logger     *slog.Logger
	m          *metrics.Metrics
}

func NewService(users UserStore, revocation RevocationStore, tokens *TokenIssuer,
	recorder *audit.Recorder, logger *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		users:      users,
		revocation: revocation,
		tokens:     tokens,
		recorder:   recorder,
		logger:     logger,
		m:          m,
	}
}

// Login verifies credentials and issues a session token. Unknown email and
// wrong password produce the same error so the response does not leak which
// emails exist. Both outcomes are audited.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))

	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

	u, err := s.users.GetByEmail(ctx, email)
	if errors.Is(err, sentinel.ErrNotFound) {
		s.m.LoginAttempts.WithLabelValues("failure").Inc()
		s.recorder.LoginFailure(ctx, nil, email, "unknown email")
		return Session{}, invalid
	}
	if err != nil {
		return Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "look up user")
	}

	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		s.m.LoginAttempts.WithLabelValues("failure").Inc()
		s.recorder.LoginFailure(ctx, &u.ID, email, "wrong password")
		return Session{}, invalid
	}

	now := requestcontext.Now(ctx)
	token, _, expiresAt, err := s.tokens.Issue(u.ID, now)
	if err != nil {
		return Session{}, err
	}

	s.m.LoginAttempts.WithLabelValues("success").Inc()
	s.recorder.LoginSuccess(ctx, u.ID, u.Email)

	return Session{
		Token:     token,
		ExpiresAt: expiresAt,
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Redirect:  authz.RoleHome(u.Role),
	}, nil
}

// Logout revokes the caller's token for its remaining lifetime and audits
// the session end.
func (s *Service) Logout(ctx context.Context) error {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "no active session")
	}
	// The exact remaining lifetime is unknown here; revoking for the full
	// TTL covers it with some slack.
	if err := s.revocation.Revoke(ctx, ident.TokenID, s.tokens.TTL()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}
	s.recorder.Logout(ctx, ident.UserID)
	return nil
}

// Resolve turns a bearer token into a request identity. The user row is
// re-fetched every time so a role or scope change applies to the very next
// request. A token whose user no longer exists is revoked on the spot.
func (s *Service) Resolve(ctx context.Context, tokenStr string) (requestcontext.RequestIdentity, error) {
	userID, jti, err := s.tokens.Validate(tokenStr)
	if err != nil {
		return requestcontext.RequestIdentity{}, err
	}

	revoked, err := s.revocation.IsRevoked(ctx, jti)
	if err != nil {
		return requestcontext.RequestIdentity{}, dErrors.Wrap(err, dErrors.CodeInternal, "check revocation")
	}
	if revoked {
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "session revoked")
	}

	u, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, sentinel.ErrNotFound) {
		// Orphaned session: the account was deleted while the token was
		// still live. Kill the session rather than serving a ghost.
		if rErr := s.revocation.Revoke(ctx, jti, s.tokens.TTL()); rErr != nil {
			s.logger.ErrorContext(ctx, "failed to revoke orphaned session", "error", rErr)
		}
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeForbidden, "account no longer exists")
	}
	if err != nil {
		return requestcontext.RequestIdentity{}, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}

	return requestcontext.RequestIdentity{
		UserID:       u.ID,
		Email:        u.Email,
		Role:         u.Role,
		UniversityID: u.UniversityID,
		TokenID:      jti,
	}, nil
}

// CreateUserInput is the admin account creation request.
type CreateUserInput struct {
	Email        string
	Password     string
	Role         requestcontext.Role
	UniversityID *uuid.UUID
}

// CreateUser registers an account. Admin only. University-role accounts must
// name their university; other roles must not.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput) (User, error) {
	ident, err := requireAdmin(ctx)
	if err != nil {
		return User{}, err
	}
	if !input.Role.Valid() {
		return User{}, dErrors.New(dErrors.CodeValidation, "unknown role")
	}
	if input.Role == requestcontext.RoleUniversity && input.UniversityID == nil {
		return User{}, dErrors.New(dErrors.CodeValidation, "university role requires a university")
	}
	if input.Role != requestcontext.RoleUniversity && input.UniversityID != nil {
		return User{}, dErrors.New(dErrors.CodeValidation, "only university role carries a university")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}

	now := requestcontext.Now(ctx)
	u := User{
		ID:           uuid.New(),
		Email:        strings.TrimSpace(strings.ToLower(input.Email)),
		PasswordHash: string(hash),
		Role:         input.Role,
		UniversityID: input.UniversityID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return User{}, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "create user")
	}

	s.recorder.Update(ctx, ident.UserID, "user", u.ID, map[string]any{"created": u.Email})
	return u, nil
}

// ListUsers returns all accounts. Admin only.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list users")
	}
	return users, nil
}

// UpdateUserInput changes an account. Nil fields are left unchanged.
type UpdateUserInput struct {
	Role         *requestcontext.Role
	UniversityID *uuid.UUID
	Password     *string
}

// UpdateUser applies role, scope or password changes to an account.
// Admin only.
func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, input UpdateUserInput) (User, error) {
	ident, err := requireAdmin(ctx)
	if err != nil {
		return User{}, err
	}

	u, err := s.users.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return User{}, dErrors.New(dErrors.CodeNotFound, "user not found")
	}
	if err != nil {
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}

	changes := map[string]any{}
	if input.Role != nil {
		if !input.Role.Valid() {
			return User{}, dErrors.New(dErrors.CodeValidation, "unknown role")
		}
		u.Role = *input.Role
		changes["role"] = string(*input.Role)
	}
	if input.UniversityID != nil {
		u.UniversityID = input.UniversityID
		changes["university_id"] = input.UniversityID.String()
	}
	if u.Role != requestcontext.RoleUniversity {
		u.UniversityID = nil
	}
	if input.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
		}
		u.PasswordHash = string(hash)
		changes["password"] = "reset"
	}
	u.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, u); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return User{}, dErrors.New(dErrors.CodeConflict, "an account with this email already exists")
		}
		return User{}, dErrors.Wrap(err, dErrors.CodeInternal, "update user")
	}

	s.recorder.Update(ctx, ident.UserID, "user", u.ID, changes)
	return u, nil
}

// DeleteUser removes an account. Admin only; self-deletion is rejected so an
// admin cannot lock themselves out mid-session.
func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	ident, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	if ident.UserID == id {
		return dErrors.New(dErrors.CodeBadRequest, "cannot delete your own account")
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "user not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "delete user")
	}

	s.recorder.Delete(ctx, ident.UserID, "user", id)
	return nil
}

// ChangePassword lets any authenticated user rotate their own password after
// proving they know the current one.
func (s *Service) ChangePassword(ctx context.Context, current, next string) error {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}

	u, err := s.users.GetByID(ctx, ident.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "load user")
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(current)) != nil {
		return dErrors.New(dErrors.CodeUnauthorized, "current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash password")
	}
	u.PasswordHash = string(hash)
	u.UpdatedAt = requestcontext.Now(ctx)

	if err := s.users.Update(ctx, u); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "update password")
	}

	s.recorder.Update(ctx, ident.UserID, "user", u.ID, map[string]any{"password": "changed"})
	return nil
}

func requireAdmin(ctx context.Context) (requestcontext.RequestIdentity, error) {
	ident, ok := requestcontext.Identity(ctx)
	if !ok {
		return requestcontext.RequestIdentity{}, dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if err := authz.RequireRole(ident, requestcontext.RoleAdmin); err != nil {
		return requestcontext.RequestIdentity{}, err
	}
	return ident, nil
}
