// Package middleware provides the HTTP middleware wrapped around the proxy
// pipeline.
//
// # Middleware Chain
//
// Chain assembles the standard stack:
//
//	handler = RequestID(Recovery(Logging(CORS(handler))))
//
// Order (outermost to innermost):
//  1. RequestID: reuse or generate X-Request-ID, store it for logging
//  2. Recovery: turn panics into a 500 JSON body that still carries CORS headers
//  3. Logging: log method, path, status, size and latency
//  4. CORS: attach the CORS header set and answer OPTIONS with a bare 200
//
// # CORS Policy
//
// CORSPolicy echoes allowed origins and falls back to the primary origin for
// anything else, including requests without an Origin header. Its output
// depends only on the origin, so the same headers are produced whether the
// middleware, the recovery path or the response relay applies them.
//
//	Access-Control-Allow-Origin: https://studio.plasmic.app
//	Access-Control-Allow-Methods: GET, POST, PUT, DELETE, OPTIONS, PATCH
//	Access-Control-Allow-Headers: Content-Type, Authorization, X-Original-URL, ...
//	Access-Control-Max-Age: 86400
//	Access-Control-Allow-Credentials: true
//	Vary: Origin
package middleware
