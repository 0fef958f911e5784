// Authproxy is an authenticating reverse proxy for internal applications.
//
// Every request must carry a valid bearer token or signed access assertion.
// The proxy then looks up a routing rule for the request, injects the
// upstream API credentials named by that rule and relays the upstream
// response back to the caller.
//
// Usage:
//
//	# Start the proxy with a configuration file
//	authproxy run --config /etc/authproxy/config.yaml
//
//	# Check a configuration and its routing document
//	authproxy validate --config config.yaml --routes
//
//	# Show which rule a host or path resolves to
//	authproxy route api.example.com
//
//	# Seed the fallback key/value store
//	authproxy kv put secret_WEATHER_API '{"apiKey":"..."}'
//
//	# Show version information
//	authproxy version
package main

func main() {
	Execute()
}
