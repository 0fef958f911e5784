// Package health serves the liveness and readiness probes of the proxy.
//
// The probes live on the admin listener, never on the proxy listener, so
// they cannot shadow a proxied path:
//
//   - /healthz: liveness, always 200 while the process serves
//   - /readyz: readiness, 503 when any registered check fails
//   - /version: build information
//
// Checks run concurrently, each bounded by the checker timeout:
//
//	checker := health.New(5 * time.Second)
//	checker.RegisterCheck("kv", health.PingCheck(store))
//	checker.Register(adminMux, version, commit, buildTime)
package health
