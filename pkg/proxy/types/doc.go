// Package types defines the JSON bodies the proxy writes when it answers a
// request itself instead of relaying an upstream response.
//
// Every body carries an "error" title. Depending on the failure it also
// carries "message" (authentication reason or internal error text),
// "domain" or "path" (unmatched routing key) and "secretName" (unresolved
// credential binding):
//
//	{"error": "Authentication required", "message": "token expired"}
//	{"error": "No routing rule found for domain", "domain": "api.unknown.com"}
//	{"error": "API credentials not found", "secretName": "STRIPE_KEY"}
package types
