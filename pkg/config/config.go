package config

import "time"

// Config is the root configuration structure for the authenticating proxy.
// It contains all configuration sections for the proxy listener, caller
// authentication, routing, credential lookup, the fallback key/value store,
// CORS and telemetry.
type Config struct {
	// Proxy contains HTTP listener configuration, timeouts and the
	// deployment mode (domain or path routing).
	Proxy ProxyConfig `yaml:"proxy"`

	// Auth contains caller authentication settings for bearer tokens and
	// signed assertions.
	Auth AuthConfig `yaml:"auth"`

	// Routing contains the location of the routing document and the
	// matching policy applied to it.
	Routing RoutingConfig `yaml:"routing"`

	// Credentials contains the sources of named secret bindings.
	Credentials CredentialsConfig `yaml:"credentials"`

	// KV contains configuration for the fallback key/value store.
	KV KVConfig `yaml:"kv"`

	// CORS contains the cross-origin policy applied to every response.
	CORS CORSConfig `yaml:"cors"`

	// Telemetry contains logging, metrics and tracing configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// Deployment modes.
const (
	// ModeDomain resolves routes by the hostname carried in X-Original-URL.
	ModeDomain = "domain"

	// ModePath resolves routes by matching the request path against patterns.
	ModePath = "path"
)

// ProxyConfig contains configuration for the HTTP proxy listener.
type ProxyConfig struct {
	// ListenAddress is the address and port for the proxy to listen on.
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// Mode selects how the routing key is derived from a request.
	// Options: "domain", "path"
	// Default: "domain"
	Mode string `yaml:"mode"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response writes.
	// Default: 60s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits inbound request header size.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// UpstreamTimeout bounds each call to an upstream API.
	// Default: 30s
	UpstreamTimeout time.Duration `yaml:"upstream_timeout"`

	// UserAgent is sent on every upstream request.
	// Default: "SimpleSalt-API-Proxy/1.0"
	UserAgent string `yaml:"user_agent"`

	// ProxiedBy is the value of the X-Proxied-By response header.
	// Default: "SimpleSalt-CF-Worker"
	ProxiedBy string `yaml:"proxied_by"`
}

// AuthConfig contains caller authentication settings.
type AuthConfig struct {
	// EmailSuffix is the organizational suffix every assertion email must end with.
	// Default: "@simplesalt.company"
	EmailSuffix string `yaml:"email_suffix"`

	// AssertionHeader is the header carrying the signed assertion.
	// Default: "CF-Access-Jwt-Assertion"
	AssertionHeader string `yaml:"assertion_header"`

	// TokenTableBinding is the binding name holding the bearer token table.
	// Default: "OAUTH2_TOKENS"
	TokenTableBinding string `yaml:"token_table_binding"`

	// TokenTableKey is the fallback store key holding the bearer token table.
	// Default: "oauth2_tokens"
	TokenTableKey string `yaml:"token_table_key"`

	// Verifier selects how assertion signatures are handled.
	// Options: "unverified" (claims decoded only), "jwks"
	// Default: "unverified"
	Verifier string `yaml:"verifier"`

	// JWKSURL is the key set location used when Verifier is "jwks".
	// Example: "https://team.cloudflareaccess.com/cdn-cgi/access/certs"
	JWKSURL string `yaml:"jwks_url"`

	// JWKSTimeout bounds each key set fetch.
	// Default: 5s
	JWKSTimeout time.Duration `yaml:"jwks_timeout"`
}

// RoutingConfig contains routing document settings.
type RoutingConfig struct {
	// URL is the remote routing document. Ignored when File is set.
	// Default: "https://apps.simplesalt.company/routing.json"
	URL string `yaml:"url"`

	// File is a local routing document read on every request.
	File string `yaml:"file"`

	// MatchPolicy controls domain matching.
	// Options: "loose" (exact, subdomain or substring), "suffix", "exact"
	// Default: "loose"
	MatchPolicy string `yaml:"match_policy"`

	// FetchTimeout bounds each routing document fetch.
	// Default: 10s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// CredentialsConfig configures where named secret bindings are read from.
type CredentialsConfig struct {
	// Sources lists binding sources in lookup order.
	// Options: "env", "file", "map"
	// Default: ["env"]
	Sources []string `yaml:"sources"`

	// EnvPrefix is prepended to binding names for the env source.
	EnvPrefix string `yaml:"env_prefix"`

	// SecretsDir is the directory read by the file source.
	SecretsDir string `yaml:"secrets_dir"`

	// Bindings are literal bindings served by the map source.
	Bindings map[string]string `yaml:"bindings"`

	// APIKeysBlob is a legacy JSON object of name to key, merged into the map source.
	APIKeysBlob string `yaml:"api_keys"`

	// LookupTimeout bounds each fallback store read.
	// Default: 5s
	LookupTimeout time.Duration `yaml:"lookup_timeout"`
}

// KVConfig configures the fallback key/value store.
type KVConfig struct {
	// Backend selects the store implementation.
	// Options: "none", "memory", "sqlite", "redis"
	// Default: "memory"
	Backend string `yaml:"backend"`

	// SQLite contains settings for the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Redis contains settings for the redis backend.
	Redis RedisConfig `yaml:"redis"`

	// PurgeSchedule is a cron expression for removing expired entries.
	// Empty disables purging.
	// Default: "@every 5m"
	PurgeSchedule string `yaml:"purge_schedule"`
}

// SQLiteConfig contains sqlite store settings.
type SQLiteConfig struct {
	// Path is the database file.
	// Default: "data/kv.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long to wait on locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig contains redis store settings.
type RedisConfig struct {
	// Address is the redis host:port.
	// Default: "127.0.0.1:6379"
	Address string `yaml:"address"`

	// Password is the optional AUTH password.
	Password string `yaml:"password"`

	// DB is the logical database number.
	DB int `yaml:"db"`

	// KeyPrefix namespaces every key.
	// Default: "authproxy:"
	KeyPrefix string `yaml:"key_prefix"`
}

// CORSConfig contains the cross-origin policy.
type CORSConfig struct {
	// PrimaryOrigin is echoed when the request origin is not allowed.
	// Default: "https://apps.simplesalt.company"
	PrimaryOrigin string `yaml:"primary_origin"`

	// AllowedOrigins are echoed back verbatim.
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods is the Access-Control-Allow-Methods list.
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders is the Access-Control-Allow-Headers list.
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge is the preflight cache duration in seconds.
	// Default: 86400
	MaxAge int `yaml:"max_age"`

	// AllowCredentials controls Access-Control-Allow-Credentials.
	// Default: true
	AllowCredentials *bool `yaml:"allow_credentials"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// AdminAddress serves /metrics, /healthz and /readyz. "off" disables it.
	// Default: "127.0.0.1:9090"
	AdminAddress string `yaml:"admin_address"`

	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`

	// Tracing contains OpenTelemetry tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	// Level is the minimum level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file:line in records.
	AddSource bool `yaml:"add_source"`

	// Redact masks tokens, keys and emails in log attributes.
	// Default: true
	Redact *bool `yaml:"redact"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls metric collection.
	// Default: true
	Enabled *bool `yaml:"enabled"`

	// Path is the scrape path on the admin listener.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "authproxy"
	Namespace string `yaml:"namespace"`
}

// TracingConfig contains OpenTelemetry configuration.
type TracingConfig struct {
	// Enabled turns on span export.
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS to the collector.
	Insecure bool `yaml:"insecure"`

	// SampleRatio is the fraction of traces sampled.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// ServiceName is the service.name resource attribute.
	// Default: "authproxy"
	ServiceName string `yaml:"service_name"`
}

// IsEnabled reports a tri-state bool, treating nil as the given default.
func IsEnabled(b *bool, def bool) bool {
	if b == nil {
		return def
	}
	return *b
}
