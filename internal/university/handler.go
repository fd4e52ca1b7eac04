package university

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/platform/validation"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/api/admin/universities", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{universityID}", h.get)
		r.Patch("/{universityID}", h.update)
		r.Delete("/{universityID}", h.remove)
	})
	// Read-only listing for the student and absence forms of every role.
	r.Get("/api/universities", h.list)
}

type contactPayload struct {
	Email     string `json:"email" validate:"required,email"`
	IsPrimary bool   `json:"is_primary"`
}

type createRequest struct {
	Name     string           `json:"name" validate:"required,max=100"`
	Contacts []contactPayload `json:"contacts" validate:"dive"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}
	if err := validation.Struct(req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	out, err := h.svc.Create(r.Context(), req.Name, toContactInputs(req.Contacts))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, out)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.List(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if out == nil {
		out = []University{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"universities": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "universityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "universityID must be a UUID"))
		return
	}
	out, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

type updateRequest struct {
	Name     *string           `json:"name"`
	Contacts *[]contactPayload `json:"contacts"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "universityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "universityID must be a UUID"))
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	input := UpdateInput{Name: req.Name}
	if req.Contacts != nil {
		contacts := toContactInputs(*req.Contacts)
		input.Contacts = &contacts
	}

	out, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "universityID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "universityID must be a UUID"))
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func toContactInputs(payloads []contactPayload) []ContactInput {
	out := make([]ContactInput, 0, len(payloads))
	for _, p := range payloads {
		out = append(out, ContactInput{Email: p.Email, IsPrimary: p.IsPrimary})
	}
	return out
}
