// Package telemetry groups the observability packages of the proxy.
//
// # Components
//
//   - logging: slog construction, context fields and redaction
//   - metrics: Prometheus collector and exposition handler
//   - tracing: OpenTelemetry provider and trace context extraction
//   - health: liveness and readiness probes
//
// Metrics and probes are served on the admin listener
// (telemetry.admin_address). Logging and tracing are configured once at
// startup; the log level is reloaded when the config file changes.
package telemetry
