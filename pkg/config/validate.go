package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field (e.g., "proxy.listen_address").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a configuration.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a ValidationError
// if any validation rules fail. All validation errors are collected and
// returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateAuth(&cfg.Auth)...)
	errs = append(errs, validateRouting(&cfg.Routing)...)
	errs = append(errs, validateCredentials(&cfg.Credentials)...)
	errs = append(errs, validateKV(&cfg.KV)...)
	errs = append(errs, validateCORS(&cfg.CORS)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}

	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{Field: "proxy.listen_address", Message: "listen address is required"})
	}
	if cfg.Mode != ModeDomain && cfg.Mode != ModePath {
		errs = append(errs, FieldError{
			Field:   "proxy.mode",
			Message: fmt.Sprintf("must be %q or %q, got %q", ModeDomain, ModePath, cfg.Mode),
		})
	}
	errs = append(errs, positiveDuration("proxy.read_timeout", cfg.ReadTimeout)...)
	errs = append(errs, positiveDuration("proxy.write_timeout", cfg.WriteTimeout)...)
	errs = append(errs, positiveDuration("proxy.upstream_timeout", cfg.UpstreamTimeout)...)
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{Field: "proxy.max_header_bytes", Message: "must not be negative"})
	}

	return errs
}

func validateAuth(cfg *AuthConfig) []FieldError {
	var errs []FieldError

	if !strings.HasPrefix(cfg.EmailSuffix, "@") && !strings.HasPrefix(cfg.EmailSuffix, ".") {
		errs = append(errs, FieldError{
			Field:   "auth.email_suffix",
			Message: fmt.Sprintf("must start with '@' or '.', got %q", cfg.EmailSuffix),
		})
	}
	switch cfg.Verifier {
	case "unverified":
	case "jwks":
		if err := validateURL(cfg.JWKSURL); err != nil {
			errs = append(errs, FieldError{Field: "auth.jwks_url", Message: err.Error()})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "auth.verifier",
			Message: fmt.Sprintf("must be \"unverified\" or \"jwks\", got %q", cfg.Verifier),
		})
	}

	return errs
}

func validateRouting(cfg *RoutingConfig) []FieldError {
	var errs []FieldError

	if cfg.File == "" {
		if err := validateURL(cfg.URL); err != nil {
			errs = append(errs, FieldError{Field: "routing.url", Message: err.Error()})
		}
	}
	switch cfg.MatchPolicy {
	case "loose", "suffix", "exact":
	default:
		errs = append(errs, FieldError{
			Field:   "routing.match_policy",
			Message: fmt.Sprintf("must be one of loose, suffix, exact, got %q", cfg.MatchPolicy),
		})
	}
	errs = append(errs, positiveDuration("routing.fetch_timeout", cfg.FetchTimeout)...)

	return errs
}

func validateCredentials(cfg *CredentialsConfig) []FieldError {
	var errs []FieldError

	for i, src := range cfg.Sources {
		field := fmt.Sprintf("credentials.sources[%d]", i)
		switch src {
		case "env", "map":
		case "file":
			if cfg.SecretsDir == "" {
				errs = append(errs, FieldError{Field: "credentials.secrets_dir", Message: "required when the file source is enabled"})
			}
		default:
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("unknown source %q", src)})
		}
	}

	return errs
}

func validateKV(cfg *KVConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case "none", "memory":
	case "sqlite":
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{Field: "kv.sqlite.path", Message: "path is required"})
		}
	case "redis":
		if cfg.Redis.Address == "" {
			errs = append(errs, FieldError{Field: "kv.redis.address", Message: "address is required"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{Field: "kv.redis.db", Message: "must not be negative"})
		}
	default:
		errs = append(errs, FieldError{
			Field:   "kv.backend",
			Message: fmt.Sprintf("must be one of none, memory, sqlite, redis, got %q", cfg.Backend),
		})
	}

	return errs
}

func validateCORS(cfg *CORSConfig) []FieldError {
	var errs []FieldError

	for i, origin := range append([]string{cfg.PrimaryOrigin}, cfg.AllowedOrigins...) {
		if origin == "*" {
			field := "cors.primary_origin"
			if i > 0 {
				field = fmt.Sprintf("cors.allowed_origins[%d]", i-1)
			}
			errs = append(errs, FieldError{Field: field, Message: "wildcard origins are not allowed with credentials"})
		}
	}
	if cfg.MaxAge < 0 {
		errs = append(errs, FieldError{Field: "cors.max_age", Message: "must not be negative"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("unknown log level %q", cfg.Logging.Level),
		})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("unknown log format %q", cfg.Logging.Format),
		})
	}
	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{Field: "telemetry.metrics.path", Message: "must start with '/'"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{Field: "telemetry.tracing.sample_ratio", Message: "must be between 0 and 1"})
	}

	return errs
}

func positiveDuration(field string, d time.Duration) []FieldError {
	if d <= 0 {
		return []FieldError{{Field: field, Message: "must be positive"}}
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url must include a host")
	}
	return nil
}
