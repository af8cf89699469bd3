package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gc_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gc_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gc_outbox_lag_seconds",
			Help: "Age of the oldest event in the last published outbox batch",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gc_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)

	MatchTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_match_transitions_total",
			Help: "Relationship state changes by event type",
		},
		[]string{"event"},
	)

	GigTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_gig_transitions_total",
			Help: "Gig state changes by event type",
		},
		[]string{"event"},
	)

	AuditEventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gc_audit_events_consumed_total",
			Help: "Events consumed by the audit worker by outcome",
		},
		[]string{"outcome"},
	)
)
