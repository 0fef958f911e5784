// Package proxy forwards authenticated requests to upstream APIs and relays
// their responses.
//
// The package holds the pieces of the pipeline that talk to the upstream:
//
//   - Forwarder: builds the outbound request, injects credentials and calls
//     the upstream with a bounded timeout
//   - Relay: copies the upstream status, filtered headers and body back to
//     the caller
//   - Errors: typed pipeline errors and their mapping to JSON responses
//
// The request pipeline itself lives in package handlers and the middleware
// stack in package middleware.
//
// # Header Policy
//
// Outbound, every inbound header is copied except Host and names starting
// with "cf-" or "x-" (case-insensitive). The caller's Authorization header is
// passed through unless the route injects credentials, in which case it is
// replaced by "Bearer <apiKey>" and the credential's extra headers are set.
// User-Agent is always replaced.
//
// Inbound, the upstream status and body are relayed unchanged. Headers
// starting with "cf-", Server and Set-Cookie are dropped, the CORS headers
// for the caller's origin replace any upstream values, and X-Proxied-By and
// X-Original-Host are added. Event streams are flushed chunk by chunk.
//
// # Basic Usage
//
//	fwd := proxy.NewForwarder(proxy.ForwarderConfigFrom(cfg.Proxy), logger)
//
//	resp, err := fwd.Forward(ctx, r, target, creds, rule.AuthType)
//	if err != nil {
//	    proxy.HandleError(err).Write(w)
//	    return
//	}
//	defer resp.Body.Close()
//	fwd.Relay(w, resp, cors.Headers(r.Header.Get("Origin")), target.Hostname())
//
// # Error Handling
//
// Pipeline stages return typed errors. HandleError maps them to the JSON
// error body and status the caller sees:
//
//	*AuthFailureError          401 {"error": "Authentication required", "message": ...}
//	*MissingInputError         400 {"error": "Missing original URL header"}
//	*RouteNotFoundError        404 {"error": "No routing rule found for domain", "domain": ...}
//	                               {"error": "Route not found", "path": ...} in path mode
//	*CredentialsNotFoundError  500 {"error": "API credentials not found", "secretName": ...}
//	*UpstreamError             500 {"error": "Internal proxy error", "message": ...}
//
// Any other error is reported as an internal proxy error.
package proxy
