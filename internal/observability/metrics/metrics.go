// Package metrics provides Prometheus instrumentation for the explorer cache.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Cache metrics
	cacheLookupTotal     *prometheus.CounterVec
	transientLookupTotal *prometheus.CounterVec
	cacheWriteTotal      *prometheus.CounterVec
	invalidationTotal    *prometheus.CounterVec

	// Upstream metrics
	upstreamRequestTotal *prometheus.CounterVec
	upstreamDuration     *prometheus.HistogramVec
	onChainLookupTotal   *prometheus.CounterVec
)

// Init initializes the metrics system. It must be called at most once per
// process when enabledFlag is true.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	constLabels := prometheus.Labels{"service": svcName}

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests",
			ConstLabels: constLabels,
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"method", "path"},
	)

	// Durable cache lookups, result is "hit" or "miss"
	cacheLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_cache_lookup_total",
			Help:        "Total number of durable cache lookups",
			ConstLabels: constLabels,
		},
		[]string{"action", "result"},
	)

	transientLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_cache_transient_lookup_total",
			Help:        "Total number of in-memory cache lookups",
			ConstLabels: constLabels,
		},
		[]string{"result"},
	)

	cacheWriteTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_cache_write_total",
			Help:        "Total number of verified responses persisted",
			ConstLabels: constLabels,
		},
		[]string{"action", "status"},
	)

	invalidationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_cache_invalidation_total",
			Help:        "Total number of durable entries removed by invalidation",
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)

	upstreamRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_upstream_requests_total",
			Help:        "Total number of requests sent to explorers",
			ConstLabels: constLabels,
		},
		[]string{"provider", "status"},
	)

	upstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "explorer_upstream_request_duration_seconds",
			Help:        "Explorer request latency in seconds",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)

	onChainLookupTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "explorer_onchain_lookup_total",
			Help:        "Total number of constructor argument lookups against RPC nodes",
			ConstLabels: constLabels,
		},
		[]string{"provider", "result"},
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
