package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var registerer = prometheus.WrapRegistererWith(nil, registry)

var (
	commonLabels = []string{"tenant_id"}

	// Latency buckets in milliseconds
	latencyBuckets = []float64{
		1, 2.5, 5, 10, 25, // analysis is usually sub-25ms
		50, 100, 250,
		500, 1000, 2500,
		5000, 10000,
	}

	RequestTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_requests_total",
			Help: "Total number of requests inspected",
		},
		append(commonLabels, "method", "status"),
	)

	DecisionTotal = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_decisions_total",
			Help: "Enforcement decisions by action and risk level",
		},
		append(commonLabels, "action", "risk_level"),
	)

	AnalysisLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_analysis_latency_ms",
			Help:    "Analysis pipeline latency in milliseconds",
			Buckets: latencyBuckets,
		},
		commonLabels,
	)

	UpstreamLatency = promauto.With(registerer).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigil_upstream_latency_ms",
			Help:    "Upstream origin latency in milliseconds",
			Buckets: latencyBuckets,
		},
		append(commonLabels, "path"),
	)

	RateLimitRejections = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_rate_limit_rejections_total",
			Help: "Requests rejected by the sliding-window rate limiter",
		},
		append(commonLabels, "scope"),
	)

	AnalysisErrors = promauto.With(registerer).NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigil_analysis_errors_total",
			Help: "Analysis failures by outcome (fail_open or fail_closed)",
		},
		append(commonLabels, "outcome"),
	)
)

// Config gates the optional high-cardinality metrics.
var Config = MetricsConfig{}

type MetricsConfig struct {
	EnableLatency         bool
	EnableUpstreamLatency bool
	EnablePerPath         bool
}

func Initialize(cfg MetricsConfig) {
	Config = cfg
}

// Registry exposes the private registry for the metrics endpoint.
func Registry() *prometheus.Registry {
	return registry
}
