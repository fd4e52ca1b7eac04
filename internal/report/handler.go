package report

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

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
	r.Get("/api/reports/monthly", h.monthly)
}

// monthly returns the aggregate as JSON, or as a PDF attachment when
// format=pdf is requested.
func (h *Handler) monthly(w http.ResponseWriter, r *http.Request) {
	now := requestcontext.Now(r.Context())
	year, month := now.Year(), now.Month()

	q := r.URL.Query()
	if v := q.Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "year must be a number"))
			return
		}
		year = n
	}
	if v := q.Get("month"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "month must be a number"))
			return
		}
		month = time.Month(n)
	}

	var universityID *uuid.UUID
	if v := q.Get("university_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "university_id must be a UUID"))
			return
		}
		universityID = &id
	}

	rep, err := h.svc.Monthly(r.Context(), year, month, universityID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	if q.Get("format") != "pdf" {
		httputil.WriteJSON(w, http.StatusOK, rep)
		return
	}

	var buf bytes.Buffer
	if err := RenderPDF(&buf, rep); err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "render report"))
		return
	}
	name := fmt.Sprintf("absence-report-%d-%02d.pdf", rep.Year, int(rep.Month))
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
