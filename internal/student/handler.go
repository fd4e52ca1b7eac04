package student

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/platform/validation"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
)

type Handler struct {
	svc *Service
	// Sensitive-class rate limiting for uploads is applied by the router.
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the roster routes. Upload applies the sensitive rate class
// via the middleware passed in.
func (h *Handler) Register(r chi.Router, sensitive func(http.Handler) http.Handler) {
	r.Route("/api/students", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{studentID}", h.get)
		r.Put("/{studentID}", h.update)
		r.Delete("/{studentID}", h.remove)
		r.Get("/{studentID}/changes", h.changeHistory)

		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			r.Post("/{studentID}/consent", h.uploadConsent)
		})
		r.Delete("/{studentID}/consent", h.deleteConsent)
		r.Get("/{studentID}/consent", h.consentURL)
	})
}

type createRequest struct {
	UniversityID uuid.UUID `json:"university_id" validate:"required"`
	StudentNo    string    `json:"student_no" validate:"required"`
	Name         string    `json:"name" validate:"required"`
	Department   string    `json:"department"`
	Program      string    `json:"program" validate:"required"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email" validate:"omitempty,email"`
	Status       string    `json:"status" validate:"required"`
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

	st, err := h.svc.Create(r.Context(), CreateInput{
		UniversityID: req.UniversityID,
		StudentNo:    req.StudentNo,
		Name:         req.Name,
		Department:   req.Department,
		Program:      Program(req.Program),
		Address:      req.Address,
		Phone:        req.Phone,
		Email:        req.Email,
		Status:       Status(req.Status),
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, st)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{
		Program: Program(q.Get("program")),
		Status:  Status(q.Get("status")),
	}
	if v := q.Get("university_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "university_id must be a UUID"))
			return
		}
		f.UniversityID = &id
	}

	students, err := h.svc.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if students == nil {
		students = []Student{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"students": students})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	st, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

type updateRequest struct {
	StudentNo  *string `json:"student_no"`
	Name       *string `json:"name"`
	Department *string `json:"department"`
	Program    *string `json:"program"`
	Address    *string `json:"address"`
	Phone      *string `json:"phone"`
	Email      *string `json:"email"`
	Status     *string `json:"status"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "malformed JSON body"))
		return
	}

	input := UpdateInput{
		StudentNo:  req.StudentNo,
		Name:       req.Name,
		Department: req.Department,
		Address:    req.Address,
		Phone:      req.Phone,
		Email:      req.Email,
	}
	if req.Program != nil {
		p := Program(*req.Program)
		input.Program = &p
	}
	if req.Status != nil {
		st := Status(*req.Status)
		input.Status = &st
	}

	st, err := h.svc.Update(r.Context(), id, input)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) changeHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	logs, err := h.svc.ChangeHistory(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if logs == nil {
		logs = []ContactChangeLog{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"changes": logs})
}

func (h *Handler) uploadConsent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxConsentSize+1)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "consent document exceeds 5MB"))
		return
	}

	st, err := h.svc.UploadConsent(r.Context(), id, body,
		r.Header.Get("Content-Type"), r.Header.Get("X-File-Name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, st)
}

func (h *Handler) deleteConsent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteConsent(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) consentURL(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	url, err := h.svc.ConsentURL(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"url": url})
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "studentID"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "studentID must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}
