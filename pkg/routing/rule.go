package routing

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// AuthMode controls how credentials are injected into the upstream request.
// The numeric values match the authType field of routing documents.
type AuthMode int

const (
	// AuthNone forwards the request without credentials.
	AuthNone AuthMode = 0

	// AuthBearer sets "Authorization: Bearer <apiKey>" and applies any
	// credential headers.
	AuthBearer AuthMode = 2

	// AuthBearerHeaders is AuthBearer for upstreams that also need custom
	// headers. Injection is identical; the distinction is documentary.
	AuthBearerHeaders AuthMode = 3
)

// InjectsCredentials reports whether the mode adds credentials to the request.
func (m AuthMode) InjectsCredentials() bool {
	return m == AuthBearer || m == AuthBearerHeaders
}

// String returns the authInjectionMode spelling of m.
func (m AuthMode) String() string {
	switch m {
	case AuthBearer:
		return "bearer"
	case AuthBearerHeaders:
		return "bearer_headers"
	default:
		return "none"
	}
}

// ParseAuthMode parses an authInjectionMode string.
func ParseAuthMode(s string) (AuthMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return AuthNone, nil
	case "bearer":
		return AuthBearer, nil
	case "bearer_headers", "bearer+headers", "bearer+customheaders":
		return AuthBearerHeaders, nil
	default:
		return AuthNone, fmt.Errorf("unknown auth injection mode %q", s)
	}
}

// Rule is one entry of the routing document. Domain rules match the target
// hostname; pattern rules match the request path with a regular expression.
type Rule struct {
	Domain     string   `json:"domain,omitempty"`
	Pattern    string   `json:"pattern,omitempty"`
	Target     string   `json:"target,omitempty"`
	SecretName string   `json:"secretName,omitempty"`
	AuthType   AuthMode `json:"authType"`
}

// MatchKey returns the domain, or the pattern for path rules.
func (r Rule) MatchKey() string {
	if r.Domain != "" {
		return r.Domain
	}
	return r.Pattern
}

// UnmarshalJSON accepts the numeric authType or the string authInjectionMode.
// When both are present authType wins. A pattern rule naming neither injects
// a bearer token. Unrecognised values are logged and decode as AuthNone; they
// never fail the document.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var raw struct {
		Domain            string          `json:"domain"`
		Pattern           string          `json:"pattern"`
		Target            string          `json:"target"`
		SecretName        string          `json:"secretName"`
		AuthType          json.RawMessage `json:"authType"`
		AuthInjectionMode *string         `json:"authInjectionMode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.Domain = raw.Domain
	r.Pattern = raw.Pattern
	r.Target = raw.Target
	r.SecretName = raw.SecretName

	var err error
	switch {
	case len(raw.AuthType) > 0 && string(raw.AuthType) != "null":
		r.AuthType, err = parseAuthType(raw.AuthType)
	case raw.AuthInjectionMode != nil:
		r.AuthType, err = ParseAuthMode(*raw.AuthInjectionMode)
	case r.Pattern != "":
		r.AuthType = AuthBearer
	default:
		r.AuthType = AuthNone
	}
	if err != nil {
		slog.Warn("routing rule has an unrecognised auth mode, injecting no credentials",
			"rule", r.MatchKey(),
			"error", err,
		)
		r.AuthType = AuthNone
	}
	return nil
}

// parseAuthType decodes authType as a number, quoted or not.
func parseAuthType(raw json.RawMessage) (AuthMode, error) {
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return AuthMode(n), nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return AuthNone, fmt.Errorf("authType must be a number: %s", raw)
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return AuthNone, fmt.Errorf("authType must be a number: %q", s)
	}
	return AuthMode(n), nil
}
