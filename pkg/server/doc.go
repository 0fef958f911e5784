// Package server assembles the authenticating proxy and runs its listeners.
//
// New builds the full component graph from a loaded configuration: the
// fallback key/value store, the credential store, the auth verifier, the
// routing source and resolver, the forwarder and the request pipeline. The
// pipeline is wrapped with trace context extraction and the middleware stack
// from package middleware.
//
// # Basic Usage
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	srv, err := server.New(ctx, cfg, server.Options{ConfigPath: "config.yaml"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := srv.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// # Listeners
//
// The proxy listener serves every path through the pipeline, so no path is
// reserved for the process itself. Health and metrics live on a separate
// admin listener (telemetry.admin_address, "off" to disable):
//
//   - GET /healthz - liveness, always 200 while serving
//   - GET /readyz - readiness, 503 when the key/value store is unreachable
//   - GET /version - build information
//   - GET /metrics - Prometheus exposition (telemetry.metrics.path)
//
// # Background Jobs
//
// While running the server purges expired key/value entries on the
// configured cron schedule and, when Options.ConfigPath is set, reloads the
// log level whenever the configuration file changes.
//
// # Graceful Shutdown
//
// Start returns when its context is cancelled, on SIGINT or SIGTERM, or
// after Stop. Shutdown then:
//  1. Stops accepting new connections on both listeners
//  2. Waits for in-flight requests up to proxy.shutdown_timeout
//  3. Stops the purger and flushes pending spans
//  4. Closes the key/value store
package server
