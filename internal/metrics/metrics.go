package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fluentbridge"

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed",
		},
	)
)

// Quota engine metrics
var (
	QuotaChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_checks_total",
			Help:      "Total number of quota checks by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	UsageUnitsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "usage_units_recorded_total",
			Help:      "Total consumption units booked, by action",
		},
		[]string{"action"},
	)

	QuotaGuardRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quota_guard_rejections_total",
			Help:      "Requests rejected at the admission gate, by action and cause",
		},
		[]string{"action", "cause"},
	)
)

// Call metering metrics
var (
	ActiveCallSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_call_sessions",
			Help:      "Current number of metered call sessions",
		},
	)

	CallMinutesMetered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_minutes_metered_total",
			Help:      "Total call minutes booked by the session controller",
		},
	)

	CallSessionsTerminated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "call_sessions_terminated_total",
			Help:      "Sessions torn down by the controller, by reason",
		},
		[]string{"reason"},
	)
)

// Attachment storage metrics
var (
	AttachmentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachments_stored_total",
			Help:      "Total number of attachments stored",
		},
	)

	AttachmentBytesStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "attachment_bytes_stored_total",
			Help:      "Total attachment bytes written to storage",
		},
	)

	TranslationsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "translations_served_total",
			Help:      "Total translation requests served, by status",
		},
		[]string{"status"},
	)
)
