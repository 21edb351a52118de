// Package metrics registers the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the registry engine.
type Metrics struct {
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	SweepFinalized    prometheus.Counter
	SweepAutorenewals prometheus.Counter
	DNSRefreshEvents  prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "registry_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "registry_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		SweepFinalized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registry_sweep_deletes_finalized_total",
			Help: "Pending deletes finalized by the sweeper.",
		}),
		SweepAutorenewals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registry_sweep_autorenewals_total",
			Help: "Autorenew occurrences expanded by the sweeper.",
		}),
		DNSRefreshEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registry_dns_refresh_events_total",
			Help: "DNS refresh events published to the pipeline.",
		}),
	}
}
