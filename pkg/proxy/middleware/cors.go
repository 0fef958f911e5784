package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"simplesalt/authproxy/pkg/config"
)

// CORSPolicy computes the cross-origin headers attached to every response.
// Allowed origins are echoed back; any other origin, or none, gets the
// primary origin.
type CORSPolicy struct {
	primary     string
	allowed     map[string]struct{}
	methods     string
	headers     string
	maxAge      string
	credentials bool
}

// NewCORSPolicy creates a policy from the cors configuration section.
func NewCORSPolicy(cfg config.CORSConfig) *CORSPolicy {
	p := &CORSPolicy{
		primary:     cfg.PrimaryOrigin,
		allowed:     make(map[string]struct{}, len(cfg.AllowedOrigins)+1),
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		credentials: config.IsEnabled(cfg.AllowCredentials, true),
	}
	if p.primary == "" {
		p.primary = config.DefaultPrimaryOrigin
	}
	if p.methods == "" {
		p.methods = strings.Join(config.DefaultAllowedMethods, ", ")
	}
	if p.headers == "" {
		p.headers = strings.Join(config.DefaultAllowedHeaders, ", ")
	}
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = config.DefaultCORSMaxAge
	}
	p.maxAge = strconv.Itoa(maxAge)

	p.allowed[p.primary] = struct{}{}
	for _, origin := range cfg.AllowedOrigins {
		p.allowed[origin] = struct{}{}
	}
	return p
}

// DefaultCORSPolicy returns the policy for the built-in allow-list.
func DefaultCORSPolicy() *CORSPolicy {
	return NewCORSPolicy(config.NewDefaultConfig().CORS)
}

// AllowedOrigin returns origin if it is allowed and the primary origin otherwise.
func (p *CORSPolicy) AllowedOrigin(origin string) string {
	if _, ok := p.allowed[origin]; ok && origin != "" {
		return origin
	}
	return p.primary
}

// Headers returns the full CORS header set for a request origin. The result
// depends only on origin, so applying it twice gives the same headers.
func (p *CORSPolicy) Headers(origin string) http.Header {
	h := make(http.Header, 6)
	p.Apply(h, origin)
	return h
}

// Apply sets the CORS headers for origin on h, replacing existing values.
func (p *CORSPolicy) Apply(h http.Header, origin string) {
	h.Set("Access-Control-Allow-Origin", p.AllowedOrigin(origin))
	h.Set("Access-Control-Allow-Methods", p.methods)
	h.Set("Access-Control-Allow-Headers", p.headers)
	h.Set("Access-Control-Max-Age", p.maxAge)
	if p.credentials {
		h.Set("Access-Control-Allow-Credentials", "true")
	} else {
		h.Del("Access-Control-Allow-Credentials")
	}
	h.Set("Vary", "Origin")
}

// CORSMiddleware attaches the policy's headers to every response and answers
// OPTIONS requests on any path with a bare 200.
//
// Example usage:
//
//	handler = CORSMiddleware(NewCORSPolicy(cfg.CORS))(handler)
func CORSMiddleware(policy *CORSPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			policy.Apply(w.Header(), r.Header.Get("Origin"))

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
