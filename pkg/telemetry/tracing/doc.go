// Package tracing provides OpenTelemetry tracing for the proxy.
//
// # Overview
//
// New installs a global TracerProvider that batches spans to an OTLP gRPC
// collector. Packages that create spans call otel.Tracer directly, so they
// emit real spans once New has run and noop spans otherwise.
//
// The pipeline produces one span per request with child spans for the auth
// decision, the routing fetch, the credential lookup and the upstream call.
//
// # Trace Context Propagation
//
// HTTPMiddleware extracts W3C Trace Context from inbound requests so proxy
// spans join the caller's trace:
//
//	traceparent: 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01
//
// Trace headers are not injected into upstream requests.
//
// # Sampling
//
// telemetry.tracing.sample_ratio selects the root sampler. It is wrapped in
// ParentBased so an incoming sampled flag wins.
//
// # Usage
//
//	tracer, err := tracing.New(&cfg.Telemetry.Tracing)
//	if err != nil {
//	    return err
//	}
//	defer tracer.Shutdown(context.Background())
package tracing
