package proxy

import (
	"errors"
	"fmt"
	"net/http"

	"simplesalt/authproxy/pkg/proxy/types"
)

// AuthFailureError is returned when the caller could not be authenticated.
type AuthFailureError struct {
	Reason string
}

func (e *AuthFailureError) Error() string {
	return fmt.Sprintf("authentication failed: %s", e.Reason)
}

// MissingInputError is returned when a required request input is absent or
// unusable, such as the X-Original-URL header in domain mode.
type MissingInputError struct {
	Field string

	// Invalid is set when the field is present but cannot be parsed.
	Invalid bool
	Cause   error
}

func (e *MissingInputError) Error() string {
	if e.Invalid {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Cause)
	}
	return fmt.Sprintf("missing %s", e.Field)
}

func (e *MissingInputError) Unwrap() error {
	return e.Cause
}

// RouteNotFoundError is returned when no routing rule matches the key.
type RouteNotFoundError struct {
	Key string

	// ByPath is set when the key is a request path rather than a hostname.
	ByPath bool
}

func (e *RouteNotFoundError) Error() string {
	if e.ByPath {
		return fmt.Sprintf("no route for path %q", e.Key)
	}
	return fmt.Sprintf("no route for domain %q", e.Key)
}

// CredentialsNotFoundError is returned when a rule's secret cannot be resolved.
type CredentialsNotFoundError struct {
	SecretName string
}

func (e *CredentialsNotFoundError) Error() string {
	return fmt.Sprintf("credentials not found for %q", e.SecretName)
}

// UpstreamError is returned when the upstream call could not complete.
type UpstreamError struct {
	Host  string
	Cause error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s: %v", e.Host, e.Cause)
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// InternalError wraps any other failure inside the pipeline.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error {
	return e.Cause
}

// HandleError converts a pipeline error into the JSON error body and status
// the caller receives. Unknown errors become a 500 with the error text.
//
// Example usage:
//
//	if err != nil {
//	    HandleError(err).Write(w)
//	    return
//	}
func HandleError(err error) *types.ErrorResponse {
	var authErr *AuthFailureError
	if errors.As(err, &authErr) {
		return types.NewAuthError(authErr.Reason)
	}

	var inputErr *MissingInputError
	if errors.As(err, &inputErr) {
		if inputErr.Invalid {
			return types.NewBadRequestError(types.TitleInvalidOriginalURL)
		}
		return types.NewBadRequestError(types.TitleMissingOriginalURL)
	}

	var routeErr *RouteNotFoundError
	if errors.As(err, &routeErr) {
		if routeErr.ByPath {
			return types.NewPathNotFoundError(routeErr.Key)
		}
		return types.NewDomainNotFoundError(routeErr.Key)
	}

	var credErr *CredentialsNotFoundError
	if errors.As(err, &credErr) {
		return types.NewCredentialsError(credErr.SecretName)
	}

	// Transport failures are internal proxy errors.
	var upstreamErr *UpstreamError
	if errors.As(err, &upstreamErr) {
		return types.NewServerError(upstreamErr.Error())
	}

	if err == nil {
		return types.NewServerError("unknown error")
	}
	return types.NewServerError(err.Error())
}

// StatusClass returns a low-cardinality label for metrics.
func StatusClass(status int) string {
	switch {
	case status == http.StatusUnauthorized:
		return "unauthorized"
	case status == http.StatusNotFound:
		return "not_found"
	case status >= 500:
		return "error"
	case status >= 400:
		return "client_error"
	default:
		return "ok"
	}
}
