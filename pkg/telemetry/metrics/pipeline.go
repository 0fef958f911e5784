package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics tracks the decisions made before a request is forwarded.
//
// Metrics:
//   - <ns>_auth_decisions_total: authentication results by method and result
//   - <ns>_routing_fetches_total: routing document fetches by result
//   - <ns>_routing_fetch_duration_seconds: routing document fetch latency
//   - <ns>_route_resolutions_total: route lookups by result
//   - <ns>_credential_lookups_total: credential lookups by result
//   - <ns>_kv_purged_entries_total: expired store entries removed
type PipelineMetrics struct {
	authTotal       *prometheus.CounterVec
	fetchTotal      *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	routeTotal      *prometheus.CounterVec
	credentialTotal *prometheus.CounterVec
	kvPurged        prometheus.Counter
}

// NewPipelineMetrics creates and registers pipeline metrics.
func NewPipelineMetrics(namespace string, registry *prometheus.Registry) *PipelineMetrics {
	pm := &PipelineMetrics{
		authTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_decisions_total",
				Help:      "Authentication decisions by method and result",
			},
			[]string{"method", "result"},
		),
		fetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "routing_fetches_total",
				Help:      "Routing document fetches by result",
			},
			[]string{"result"},
		),
		fetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "routing_fetch_duration_seconds",
				Help:      "Routing document fetch latency in seconds",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 5, 10},
			},
		),
		routeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "route_resolutions_total",
				Help:      "Route resolutions by result",
			},
			[]string{"result"},
		),
		credentialTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "credential_lookups_total",
				Help:      "Credential lookups by result",
			},
			[]string{"result"},
		),
		kvPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kv_purged_entries_total",
				Help:      "Expired key/value entries removed by the purger",
			},
		),
	}

	registry.MustRegister(
		pm.authTotal,
		pm.fetchTotal,
		pm.fetchDuration,
		pm.routeTotal,
		pm.credentialTotal,
		pm.kvPurged,
	)

	return pm
}

// RecordRoutingFetch records a routing document fetch.
func (pm *PipelineMetrics) RecordRoutingFetch(ok bool, duration time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	pm.fetchTotal.WithLabelValues(result).Inc()
	pm.fetchDuration.Observe(duration.Seconds())
}
