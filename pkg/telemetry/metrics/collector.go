package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"simplesalt/authproxy/pkg/config"
)

// maxUpstreamHosts caps the distinct upstream host label values.
const maxUpstreamHosts = 500

// Collector owns every Prometheus metric the proxy exports. All Record
// methods are safe on a nil or disabled collector, so callers never need to
// guard them.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	requestMetrics  *RequestMetrics
	pipelineMetrics *PipelineMetrics

	hostLimiter *CardinalityLimiter
}

// NewCollector creates a collector and registers its metrics. If registry is
// nil a new one is created. Go runtime and process collectors are added too.
//
// Example:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNS
	}

	c := &Collector{
		enabled:     config.IsEnabled(cfg.Enabled, true),
		registry:    registry,
		hostLimiter: NewCardinalityLimiter(maxUpstreamHosts),
	}
	if !c.enabled {
		return c
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
	)
	c.requestMetrics = NewRequestMetrics(cfg.Namespace, registry)
	c.pipelineMetrics = NewPipelineMetrics(cfg.Namespace, registry)
	return c
}

// Enabled reports whether metrics are collected.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// RecordRequest records a completed inbound request.
//
// Parameters:
//   - method: HTTP method
//   - outcome: pipeline outcome ("proxied", "preflight", "unauthorized", ...)
//   - status: response status code
//   - duration: total time in the proxy
func (c *Collector) RecordRequest(method, outcome string, status int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.requestMetrics.RecordRequest(method, outcome, status, duration)
}

// RecordAuth records an authentication decision.
//
// Parameters:
//   - method: "oauth2", "signed-assertion" or "none" for rejections
//   - result: "accepted" or the rejection reason
func (c *Collector) RecordAuth(method, result string) {
	if !c.Enabled() {
		return
	}
	c.pipelineMetrics.authTotal.WithLabelValues(method, result).Inc()
}

// RecordRoutingFetch records one routing document fetch.
func (c *Collector) RecordRoutingFetch(ok bool, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.pipelineMetrics.RecordRoutingFetch(ok, duration)
}

// RecordRoute records a route resolution result ("matched" or "not_found").
func (c *Collector) RecordRoute(result string) {
	if !c.Enabled() {
		return
	}
	c.pipelineMetrics.routeTotal.WithLabelValues(result).Inc()
}

// RecordCredentialLookup records whether a rule's credentials were found.
func (c *Collector) RecordCredentialLookup(found bool) {
	if !c.Enabled() {
		return
	}
	result := "found"
	if !found {
		result = "missing"
	}
	c.pipelineMetrics.credentialTotal.WithLabelValues(result).Inc()
}

// RecordUpstream records a completed upstream call. Hosts past the
// cardinality limit are aggregated under "other".
func (c *Collector) RecordUpstream(host string, status int, duration time.Duration) {
	if !c.Enabled() {
		return
	}
	c.requestMetrics.RecordUpstream(c.hostLabel(host), status, duration)
}

// RecordUpstreamError records an upstream call that produced no response.
func (c *Collector) RecordUpstreamError(host string) {
	if !c.Enabled() {
		return
	}
	c.requestMetrics.upstreamErrors.WithLabelValues(c.hostLabel(host)).Inc()
}

// RecordKVPurge records entries removed by a purge run.
func (c *Collector) RecordKVPurge(removed int64) {
	if !c.Enabled() || removed <= 0 {
		return
	}
	c.pipelineMetrics.kvPurged.Add(float64(removed))
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

func (c *Collector) hostLabel(host string) string {
	if !c.hostLimiter.Allow(host) {
		return "other"
	}
	return host
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether the label value is already known or still fits
// under the limit.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
