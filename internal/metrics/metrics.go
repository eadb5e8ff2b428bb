package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_store_operation_duration_seconds",
			Help:    "Time to complete key-value store operations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"store", "operation"},
	)

	StoreOperationErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_store_operation_errors_total",
			Help: "Total number of failed key-value store operations, excluding not found",
		},
		[]string{"store", "operation"},
	)

	StateTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_state_tokens_total",
			Help: "State tokens issued and verified",
		},
		[]string{"purpose", "event"},
	)

	LoginsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_logins_total",
			Help: "Completed login and link flows by outcome",
		},
		[]string{"flow", "outcome"},
	)

	ExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_exchange_total",
			Help: "Token endpoint requests by provider, grant and outcome",
		},
		[]string{"provider", "grant", "outcome"},
	)

	ExchangeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    Namespace + "_exchange_duration_seconds",
			Help:    "Token endpoint request latency",
			Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "grant"},
	)

	SessionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_sessions_total",
			Help: "Session cookies issued, cleared and rejected",
		},
		[]string{"event"},
	)

	RotationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_rotations_total",
			Help: "Refresh token rotations by outcome",
		},
		[]string{"outcome"},
	)

	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: Namespace + "_job_runs_total",
			Help: "Background job iterations by outcome",
		},
		[]string{"job", "outcome"},
	)
)
