package notify

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/absence"
	"frisk/internal/authz"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

// Handler exposes the manual re-send endpoint for absence notifications.
type Handler struct {
	svc      *Service
	absences *absence.Service
}

func NewHandler(svc *Service, absences *absence.Service) *Handler {
	return &Handler{svc: svc, absences: absences}
}

func (h *Handler) Register(r chi.Router) {
	r.Post("/api/notify/absence", h.resend)
}

type resendRequest struct {
	AbsenceID uuid.UUID `json:"absence_id"`
}

func (h *Handler) resend(w http.ResponseWriter, r *http.Request) {
	ident, ok := requestcontext.Identity(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := authz.RequireRole(ident, requestcontext.RoleAdmin, requestcontext.RoleAgency); err != nil {
		httputil.WriteError(w, err)
		return
	}

	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AbsenceID == uuid.Nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "absence_id is required"))
		return
	}

	d, err := h.absences.Get(r.Context(), req.AbsenceID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if err := h.svc.AbsenceRecorded(r.Context(), d.Student, d.Absence); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeUnavailable, "notification delivery failed"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"sent": true})
}
