package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthDecisions counts authorization outcomes by check kind.
	AuthDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_auth_decisions_total",
			Help: "Authorization decisions",
		},
		[]string{"check", "decision", "reason"},
	)

	// IdentityRejections counts requests rejected during identity resolution.
	IdentityRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_identity_rejections_total",
			Help: "Requests rejected while resolving the bearer identity",
		},
		[]string{"reason"},
	)

	TokensIssued = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "supik_tokens_issued_total",
			Help: "Bearer tokens issued at login",
		},
	)

	LoginFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_login_failures_total",
			Help: "Failed login attempts",
		},
		[]string{"reason"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supik_http_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	AuditWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_audit_write_failures_total",
			Help: "Audit records that could not be written, by stage (encode, write)",
		},
		[]string{"stage"},
	)

	ArchiveRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supik_archive_runs_total",
			Help: "Audit log archive runs",
		},
		[]string{"result"},
	)
)
