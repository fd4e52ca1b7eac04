package absence

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/platform/validation"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
)

const dateLayout = "2006-01-02"

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Register(r chi.Router, sensitive func(http.Handler) http.Handler) {
	r.Route("/api/absences", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{absenceID}", h.get)
		r.Delete("/{absenceID}", h.remove)

		r.Get("/{absenceID}/files", h.listFiles)
		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			r.Post("/{absenceID}/files", h.uploadFile)
		})
		r.Delete("/files/{fileID}", h.deleteFile)
	})
}

type createRequest struct {
	StudentID   uuid.UUID `json:"student_id" validate:"required"`
	AbsenceDate string    `json:"absence_date" validate:"required"`
	Reason      string    `json:"reason" validate:"required"`
	Note        string    `json:"note"`
	Notify      bool      `json:"notify"`
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
	date, err := time.Parse(dateLayout, req.AbsenceDate)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "absence_date must be YYYY-MM-DD"))
		return
	}

	a, err := h.svc.Create(r.Context(), CreateInput{
		StudentID:   req.StudentID,
		AbsenceDate: date,
		Reason:      Reason(req.Reason),
		Note:        req.Note,
		Notify:      req.Notify,
	})
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, a)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilter{Reason: Reason(q.Get("reason"))}

	if v := q.Get("student_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "student_id must be a UUID"))
			return
		}
		f.StudentID = &id
	}
	if v := q.Get("university_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "university_id must be a UUID"))
			return
		}
		f.UniversityID = &id
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from must be YYYY-MM-DD"))
			return
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "to must be YYYY-MM-DD"))
			return
		}
		f.To = t
	}

	out, err := h.svc.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if out == nil {
		out = []Absence{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"absences": out})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "absenceID")
	if !ok {
		return
	}
	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, detail)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "absenceID")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) uploadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "absenceID")
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxEvidenceSize+1)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "evidence file exceeds 10MB"))
		return
	}

	f, err := h.svc.UploadFile(r.Context(), id, body,
		r.Header.Get("Content-Type"), r.Header.Get("X-File-Name"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, f)
}

func (h *Handler) listFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "absenceID")
	if !ok {
		return
	}
	files, err := h.svc.Files(r.Context(), id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if files == nil {
		files = []FileWithURL{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (h *Handler) deleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "fileID")
	if !ok {
		return
	}
	if err := h.svc.DeleteFile(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		httputil.WriteError(w, dErrors.Newf(dErrors.CodeBadRequest, "%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
