package authz

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

// Handler answers navigation checks for the frontend shell. It sits behind
// optional authentication: an anonymous caller gets the login redirect.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) Register(r chi.Router) {
	r.Get("/api/route-access", h.checkRoute)
}

func (h *Handler) checkRoute(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "path query parameter is required"))
		return
	}

	var role *requestcontext.Role
	if ident, ok := requestcontext.Identity(r.Context()); ok {
		role = &ident.Role
	}
	httputil.WriteJSON(w, http.StatusOK, CheckNavigation(path, role))
}
