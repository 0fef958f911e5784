// Package handlers contains the HTTP handler that proxies authenticated
// requests.
//
// PipelineHandler runs each request through these stages:
//
//  1. OPTIONS: answered with a bare 200 and the CORS headers
//  2. Authentication: bearer token table, then signed assertion (401)
//  3. Routing key: X-Original-URL hostname in domain mode (400 when missing
//     or unparsable), request path in path mode
//  4. Route resolution against a freshly fetched routing document (404)
//  5. Credential lookup for the rule's secret name (500)
//  6. Forwarding to the upstream and relaying its response
//
// A failing stage ends the request with a JSON error body built by
// proxy.HandleError. Every response, success or error, carries the CORS
// headers.
//
// The handler keeps no per-request state between calls; routing rules and
// credentials are read again for every request.
package handlers
