// Package metrics exports Prometheus metrics for the proxy.
//
// A single Collector owns a private registry. It groups request metrics
// (inbound requests and upstream calls) and pipeline metrics (auth
// decisions, routing fetches, route resolutions, credential lookups and
// key/value purges). Upstream host labels pass through a CardinalityLimiter
// so a routing document with many targets cannot blow up the series count.
//
// Every Record method is a no-op on a nil or disabled Collector.
//
// The exposition handler is served on the admin listener:
//
//	collector := metrics.NewCollector(cfg.Telemetry.Metrics, nil)
//	adminMux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
package metrics
