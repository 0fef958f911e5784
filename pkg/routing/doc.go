// Package routing maps a request to the routing rule that names its upstream
// credentials.
//
// # Routing Document
//
// Rules come from a JSON document fetched on every request, either over HTTP
// (routing.url) or from disk (routing.file). Two shapes are accepted:
//
//	[{"domain": "api.stripe.com", "secretName": "STRIPE_KEY", "authType": 2}]
//
//	{"routes": [{"pattern": "^/stripe", "target": "https://api.stripe.com", "secretName": "STRIPE_KEY"}]}
//
// authType 2 or 3 injects credentials. The string authInjectionMode field
// ("none", "bearer", "bearer_headers") is accepted as an alternative.
//
// # Match Policies
//
//   - loose (default): host equals the domain, is a subdomain of it, or contains it
//   - suffix: host equals the domain or is a subdomain of it
//   - exact: host equals the domain
//   - pattern: the rule's pattern is a regular expression tested against the path
//
// Rules are evaluated in document order and the first match wins.
//
// A document that cannot be fetched or parsed yields an empty rule set, so
// every request then resolves to "not found" rather than failing outright.
package routing
