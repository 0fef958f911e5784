package types

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the JSON body of every error the proxy itself produces.
// The body is flat: {"error": "...", "message": "...", ...}.
type ErrorResponse struct {
	// Status is the HTTP status code. It is not serialized.
	Status int `json:"-"`

	// Error is the short, stable error title.
	Error string `json:"error"`

	// Message carries the failure detail (auth reason, internal error text).
	Message string `json:"message,omitempty"`

	// Domain is the unmatched host in domain mode.
	Domain string `json:"domain,omitempty"`

	// Path is the unmatched request path in path mode.
	Path string `json:"path,omitempty"`

	// SecretName is the binding that could not be resolved.
	SecretName string `json:"secretName,omitempty"`
}

// Error titles.
const (
	TitleAuthRequired       = "Authentication required"
	TitleMissingOriginalURL = "Missing original URL header"
	TitleInvalidOriginalURL = "Invalid original URL header"
	TitleRouteNotFound      = "No routing rule found for domain"
	TitlePathNotFound       = "Route not found"
	TitleCredentialsMissing = "API credentials not found"
	TitleInternal           = "Internal proxy error"
)

// NewErrorResponse creates an error response with a status and title.
func NewErrorResponse(status int, title string) *ErrorResponse {
	return &ErrorResponse{Status: status, Error: title}
}

// NewAuthError creates a 401 response carrying the rejection reason.
func NewAuthError(reason string) *ErrorResponse {
	return &ErrorResponse{Status: http.StatusUnauthorized, Error: TitleAuthRequired, Message: reason}
}

// NewBadRequestError creates a 400 response.
func NewBadRequestError(title string) *ErrorResponse {
	return NewErrorResponse(http.StatusBadRequest, title)
}

// NewDomainNotFoundError creates a 404 response for an unmatched host.
func NewDomainNotFoundError(domain string) *ErrorResponse {
	return &ErrorResponse{Status: http.StatusNotFound, Error: TitleRouteNotFound, Domain: domain}
}

// NewPathNotFoundError creates a 404 response for an unmatched path.
func NewPathNotFoundError(path string) *ErrorResponse {
	return &ErrorResponse{Status: http.StatusNotFound, Error: TitlePathNotFound, Path: path}
}

// NewCredentialsError creates a 500 response naming the missing binding.
func NewCredentialsError(secretName string) *ErrorResponse {
	return &ErrorResponse{Status: http.StatusInternalServerError, Error: TitleCredentialsMissing, SecretName: secretName}
}

// NewServerError creates a 500 response.
func NewServerError(message string) *ErrorResponse {
	return &ErrorResponse{Status: http.StatusInternalServerError, Error: TitleInternal, Message: message}
}

// HTTPStatusCode returns the status, defaulting to 500.
func (e *ErrorResponse) HTTPStatusCode() int {
	if e.Status == 0 {
		return http.StatusInternalServerError
	}
	return e.Status
}

// Write encodes e as JSON on w. Headers already set on w are kept.
func (e *ErrorResponse) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.HTTPStatusCode())
	_ = json.NewEncoder(w).Encode(e)
}
