package identity

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/platform/validation"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

// Handler exposes authentication and admin account management.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the unauthenticated routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/api/auth/login", h.login)
}

// RegisterProtected mounts routes that require a session. passwordLimit
// throttles credential changes more tightly than the general API class.
func (h *Handler) RegisterProtected(r chi.Router, passwordLimit func(http.Handler) http.Handler) {
	r.Post("/api/auth/logout", h.logout)
	r.Get("/api/auth/me", h.me)
	r.With(passwordLimit).Post("/api/auth/password", h.changePassword)

	r.Route("/api/admin/users", func(r chi.Router) {
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Patch("/{userID}", h.updateUser)
		r.Delete("/{userID}", h.deleteUser)
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	session, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, session)
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context()); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	ident, ok := requestcontext.Identity(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"user_id":       ident.UserID,
		"email":         ident.Email,
		"role":          ident.Role,
		"university_id": ident.UniversityID,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,password"`
}

func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.ChangePassword(r.Context(), req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}

type createUserRequest struct {
	Email        string     `json:"email" validate:"required,email"`
	Password     string     `json:"password" validate:"required,password"`
	Role         string     `json:"role" validate:"required"`
	UniversityID *uuid.UUID `json:"university_id"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	u, err := h.svc.CreateUser(r.Context(), CreateUserInput{
		Email:        req.Email,
		Password:     req.Password,
		Role:         requestcontext.Role(req.Role),
		UniversityID: req.UniversityID,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, u)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if users == nil {
		users = []User{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"users": users})
}

type updateUserRequest struct {
	Role         *string    `json:"role"`
	UniversityID *uuid.UUID `json:"university_id"`
	Password     *string    `json:"password"`
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userID must be a UUID"))
		return
	}

	var req updateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if req.Password != nil && !validation.PasswordOK(*req.Password) {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation,
			"password must be at least 8 characters with upper, lower, digit and symbol"))
		return
	}

	input := UpdateUserInput{UniversityID: req.UniversityID, Password: req.Password}
	if req.Role != nil {
		role := requestcontext.Role(*req.Role)
		input.Role = &role
	}

	u, err := h.svc.UpdateUser(r.Context(), id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, u)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userID must be a UUID"))
		return
	}
	if err := h.svc.DeleteUser(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
