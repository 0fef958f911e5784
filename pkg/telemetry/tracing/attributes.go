package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys. HTTP keys follow the OpenTelemetry semantic
// conventions; the rest live under "authproxy.".
const (
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPStatusCode = "http.response.status_code"
	AttrServerAddress  = "server.address"

	AttrRequestID  = "authproxy.request_id"
	AttrUser       = "authproxy.user"
	AttrAuthMethod = "authproxy.auth.method"
	AttrAuthResult = "authproxy.auth.result"
	AttrAuthMode   = "authproxy.auth_mode"
	AttrRouteKey   = "authproxy.route.key"
	AttrRouteMode  = "authproxy.route.mode"
	AttrSecretName = "authproxy.secret_name"
	AttrAuthType   = "authproxy.auth_type"
	AttrOutcome    = "authproxy.outcome"

	AttrErrorMessage = "error.message"
)

// SetAuthAttributes records the authentication result. user is omitted when
// empty.
func SetAuthAttributes(span trace.Span, method, result, user string) {
	span.SetAttributes(
		attribute.String(AttrAuthMethod, method),
		attribute.String(AttrAuthResult, result),
	)
	if user != "" {
		span.SetAttributes(attribute.String(AttrUser, user))
	}
}

// SetRouteAttributes records the resolved route.
func SetRouteAttributes(span trace.Span, mode, key, secretName, authType string) {
	span.SetAttributes(
		attribute.String(AttrRouteMode, mode),
		attribute.String(AttrRouteKey, key),
		attribute.String(AttrSecretName, secretName),
		attribute.String(AttrAuthType, authType),
	)
}
