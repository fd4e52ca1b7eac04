package checkin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/platform/validation"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/checkin", h.perform)
	r.Get("/api/checkin", h.summary)
	r.Get("/api/checkin/{studentID}", h.current)
}

type performRequest struct {
	StudentID       uuid.UUID `json:"student_id" validate:"required"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	Email           string    `json:"email" validate:"omitempty,email"`
	PhoneVerified   bool      `json:"phone_verified"`
	AddressVerified bool      `json:"address_verified"`
	EmailVerified   bool      `json:"email_verified"`
}

func (h *Handler) perform(w http.ResponseWriter, r *http.Request) {
	var req performRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	c, err := h.svc.Perform(r.Context(), PerformInput{
		StudentID:       req.StudentID,
		Phone:           req.Phone,
		Address:         req.Address,
		Email:           req.Email,
		PhoneVerified:   req.PhoneVerified,
		AddressVerified: req.AddressVerified,
		EmailVerified:   req.EmailVerified,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, c)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	year, quarter := now.Year(), Quarter(now)

	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "year must be a number"))
			return
		}
		year = n
	}
	if v := r.URL.Query().Get("quarter"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "quarter must be a number"))
			return
		}
		quarter = n
	}

	sum, err := h.svc.QuarterSummary(r.Context(), year, quarter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "studentID must be a UUID"))
		return
	}

	c, ok, err := h.svc.Current(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if !ok {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"checked_in": false})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"checked_in": true, "checkin": c})
}
