package ratelimit

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"frisk/internal/platform/metrics"
	dErrors "frisk/pkg/domain-errors"
	"frisk/pkg/platform/httputil"
	"frisk/pkg/requestcontext"
)

// Class is one throttle bucket.
type Class struct {
	Name   string
	Limit  int64
	Window time.Duration
}

// The throttle classes. Login is deliberately checked before credentials so
// a flood of wrong passwords cannot probe accounts.
var (
	Login         = Class{Name: "login", Limit: 5, Window: time.Minute}
	Sensitive     = Class{Name: "sensitive", Limit: 10, Window: time.Minute}
	PasswordReset = Class{Name: "password_reset", Limit: 3, Window: time.Hour}
	API           = Class{Name: "api", Limit: 100, Window: time.Minute}
)

// Limiter applies fixed-window limits keyed by class and client IP.
type Limiter struct {
	store    Store
	logger   *slog.Logger
	m        *metrics.Metrics
	disabled bool
}

func NewLimiter(store Store, logger *slog.Logger, m *metrics.Metrics, disabled bool) *Limiter {
	return &Limiter{store: store, logger: logger, m: m, disabled: disabled}
}

// Middleware throttles requests under the given class. A counter-backend
// failure fails open: a broken Redis must never lock everyone out.
func (l *Limiter) Middleware(class Class) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.disabled {
				next.ServeHTTP(w, r)
				return
			}

			key := fmt.Sprintf("%s:%s", class.Name, requestcontext.ClientIP(r.Context()))
			count, resetAt, err := l.store.Incr(r.Context(), key, class.Window)
			if err != nil {
				l.logger.ErrorContext(r.Context(), "rate limit backend failed, allowing request",
					"class", class.Name, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := class.Limit - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(class.Limit, 10))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > class.Limit {
				retryAfter := max(int(time.Until(resetAt).Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				l.m.RateLimitRejected.WithLabelValues(class.Name).Inc()
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, slow down"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
