package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"frisk/internal/authz"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

const defaultPageSize = 50

// Handler exposes the admin-only audit log listing.
type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/admin/logs", h.list)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	ident, ok := requestcontext.Identity(r.Context())
	if !ok {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return
	}
	if err := authz.RequireRole(ident, requestcontext.RoleAdmin); err != nil {
		httputil.WriteError(w, err)
		return
	}

	f, err := filterFromQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	entries, err := h.store.List(r.Context(), f)
	if err != nil {
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "list audit logs"))
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"logs": entries})
}

func filterFromQuery(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	f := Filter{Limit: defaultPageSize}

	if v := q.Get("user_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "user_id must be a UUID")
		}
		f.UserID = &id
	}
	if v := q.Get("action_type"); v != "" {
		at := ActionType(v)
		if !at.Valid() {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "unknown action_type")
		}
		f.ActionType = at
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "from must be RFC 3339")
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "to must be RFC 3339")
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "limit must be between 1 and 500")
		}
		f.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Filter{}, dErrors.New(dErrors.CodeBadRequest, "offset must be non-negative")
		}
		f.Offset = n
	}
	return f, nil
}
