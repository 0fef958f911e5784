package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RequestMetrics tracks inbound requests and the upstream calls they cause.
//
// Metrics:
//   - <ns>_requests_total: inbound requests by method, outcome and status
//   - <ns>_request_duration_seconds: time spent in the proxy
//   - <ns>_upstream_requests_total: upstream responses by host and status
//   - <ns>_upstream_duration_seconds: time to upstream response headers
//   - <ns>_upstream_errors_total: upstream calls with no response
type RequestMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	upstreamErrors   *prometheus.CounterVec
}

// NewRequestMetrics creates and registers request metrics with the provided registry.
func NewRequestMetrics(namespace string, registry *prometheus.Registry) *RequestMetrics {
	buckets := []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

	rm := &RequestMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of inbound requests handled",
			},
			[]string{"method", "outcome", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound requests in seconds",
				Buckets:   buckets,
			},
			[]string{"outcome"},
		),
		upstreamTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream responses received",
			},
			[]string{"host", "status"},
		),
		upstreamDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Time until upstream response headers in seconds",
				Buckets:   buckets,
			},
			[]string{"host"},
		),
		upstreamErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_errors_total",
				Help:      "Total number of upstream calls that failed without a response",
			},
			[]string{"host"},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.upstreamTotal,
		rm.upstreamDuration,
		rm.upstreamErrors,
	)

	return rm
}

// RecordRequest records a completed inbound request.
func (rm *RequestMetrics) RecordRequest(method, outcome string, status int, duration time.Duration) {
	rm.requestsTotal.WithLabelValues(method, outcome, strconv.Itoa(status)).Inc()
	rm.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordUpstream records an upstream response.
func (rm *RequestMetrics) RecordUpstream(host string, status int, duration time.Duration) {
	rm.upstreamTotal.WithLabelValues(host, strconv.Itoa(status)).Inc()
	rm.upstreamDuration.WithLabelValues(host).Observe(duration.Seconds())
}
