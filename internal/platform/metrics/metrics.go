// Package metrics registers the application's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	LoginAttempts      *prometheus.CounterVec
	StudentsCreated    prometheus.Counter
	CheckinsPerformed  prometheus.Counter
	RateLimitRejected  *prometheus.CounterVec
	AuditWriteFailures prometheus.Counter
	RequestDuration    *prometheus.HistogramVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		LoginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "frisk_login_attempts_total",
			Help: "Login attempts by outcome (success, failure).",
		}, []string{"outcome"}),
		StudentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "frisk_students_created_total",
			Help: "Total number of students registered.",
		}),
		CheckinsPerformed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "frisk_checkins_performed_total",
			Help: "Total number of quarterly check-ins performed.",
		}),
		RateLimitRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "frisk_rate_limit_rejected_total",
			Help: "Requests rejected by the rate limiter, by class.",
		}, []string{"class"}),
		AuditWriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "frisk_audit_write_failures_total",
			Help: "Audit records that failed to persist (logged and swallowed).",
		}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "frisk_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
}
