// Package httptransport assembles the chi router: middleware chain, public
// routes, and the authenticated API surface.
package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frisk/internal/absence"
	"frisk/internal/audit"
	"frisk/internal/authz"
	"frisk/internal/checkin"
	"frisk/internal/identity"
	"frisk/internal/notify"
	"frisk/internal/platform/metrics"
	"frisk/internal/platform/middleware"
	"frisk/internal/ratelimit"
	"frisk/internal/report"
	"frisk/internal/student"
	"frisk/internal/university"
	"frisk/pkg/platform/httputil"
)

const requestTimeout = 60 * time.Second

// Deps is everything the router mounts.
type Deps struct {
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	Identity *identity.Service
	Limiter  *ratelimit.Limiter

	IdentityHandler   *identity.Handler
	AuthzHandler      *authz.Handler
	AuditHandler      *audit.Handler
	UniversityHandler *university.Handler
	StudentHandler    *student.Handler
	AbsenceHandler    *absence.Handler
	CheckinHandler    *checkin.Handler
	NotifyHandler     *notify.Handler
	ReportHandler     *report.Handler

	// Health probes backing stores; nil entries are skipped.
	Health func(ctx context.Context) error
}

// NewRouter builds the full HTTP surface.
//
// The login limiter wraps the login route directly, so a flooded client is
// rejected before any credential check runs.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Latency(d.Metrics))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if d.Health != nil {
			if err := d.Health(req.Context()); err != nil {
				httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "degraded", "error": err.Error(),
				})
				return
			}
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Public routes.
	r.Group(func(pub chi.Router) {
		pub.Use(d.Limiter.Middleware(ratelimit.Login))
		d.IdentityHandler.RegisterPublic(pub)
	})
	r.Group(func(pub chi.Router) {
		// Navigation checks work for anonymous callers too.
		pub.Use(d.Identity.MaybeAuthenticate)
		d.AuthzHandler.Register(pub)
	})

	// Everything below requires a session.
	r.Group(func(api chi.Router) {
		api.Use(d.Identity.Authenticate)
		api.Use(d.Limiter.Middleware(ratelimit.API))

		sensitive := d.Limiter.Middleware(ratelimit.Sensitive)

		d.IdentityHandler.RegisterProtected(api, d.Limiter.Middleware(ratelimit.PasswordReset))
		d.UniversityHandler.Register(api)
		d.StudentHandler.Register(api, sensitive)
		d.AbsenceHandler.Register(api, sensitive)
		d.CheckinHandler.Register(api)
		d.AuditHandler.Register(api)
		d.ReportHandler.Register(api)

		api.Group(func(n chi.Router) {
			n.Use(sensitive)
			d.NotifyHandler.Register(n)
		})
	})

	return r
}
