package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultMode            = ModeDomain
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576 // 1MB
	DefaultUpstreamTimeout = 30 * time.Second
	DefaultUserAgent       = "SimpleSalt-API-Proxy/1.0"
	DefaultProxiedBy       = "SimpleSalt-CF-Worker"

	// Auth defaults
	DefaultEmailSuffix       = "@simplesalt.company"
	DefaultAssertionHeader   = "CF-Access-Jwt-Assertion"
	DefaultTokenTableBinding = "OAUTH2_TOKENS"
	DefaultTokenTableKey     = "oauth2_tokens"
	DefaultVerifier          = "unverified"
	DefaultJWKSTimeout       = 5 * time.Second

	// Routing defaults
	DefaultRoutingURL          = "https://apps.simplesalt.company/routing.json"
	DefaultMatchPolicy         = "loose"
	DefaultRoutingFetchTimeout = 10 * time.Second

	// Credentials defaults
	DefaultLookupTimeout = 5 * time.Second

	// KV defaults
	DefaultKVBackend         = "memory"
	DefaultSQLitePath        = "data/kv.db"
	DefaultSQLiteBusyTimeout = 5 * time.Second
	DefaultRedisAddress      = "127.0.0.1:6379"
	DefaultRedisKeyPrefix    = "authproxy:"
	DefaultPurgeSchedule     = "@every 5m"

	// CORS defaults
	DefaultPrimaryOrigin = "https://apps.simplesalt.company"
	DefaultCORSMaxAge    = 86400 // 24 hours

	// Telemetry defaults
	DefaultAdminAddress    = "127.0.0.1:9090"
	DefaultLoggingLevel    = "info"
	DefaultLoggingFormat   = "json"
	DefaultMetricsPath     = "/metrics"
	DefaultMetricsNS       = "authproxy"
	DefaultTracingEndpoint = "localhost:4317"
	DefaultTracingRatio    = 1.0
	DefaultServiceName     = "authproxy"
)

// DefaultAllowedOrigins are the origins echoed back by the CORS policy.
var DefaultAllowedOrigins = []string{
	"https://apps.simplesalt.company",
	"https://studio.plasmic.app",
	"https://host.plasmic.app",
	"http://localhost:3000",
	"http://localhost:54423",
	"http://localhost:55753",
}

// DefaultAllowedMethods is the Access-Control-Allow-Methods list.
var DefaultAllowedMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}

// DefaultAllowedHeaders covers the custom routing headers the proxy consumes.
var DefaultAllowedHeaders = []string{
	"Content-Type",
	"Authorization",
	"X-Original-URL",
	"X-Auth-Type",
	"X-Secret-Name",
	"CF-Access-Jwt-Assertion",
}

// ApplyDefaults fills in zero-valued fields with their defaults.
// Explicitly configured values are left untouched.
func ApplyDefaults(cfg *Config) {
	applyProxyDefaults(&cfg.Proxy)
	applyAuthDefaults(&cfg.Auth)
	applyRoutingDefaults(&cfg.Routing)
	applyCredentialsDefaults(&cfg.Credentials)
	applyKVDefaults(&cfg.KV)
	applyCORSDefaults(&cfg.CORS)
	applyTelemetryDefaults(&cfg.Telemetry)
}

// NewDefaultConfig returns a configuration with every default applied.
func NewDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

func applyProxyDefaults(cfg *ProxyConfig) {
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}
	if cfg.Mode == "" {
		cfg.Mode = DefaultMode
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.MaxHeaderBytes == 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.UpstreamTimeout == 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.ProxiedBy == "" {
		cfg.ProxiedBy = DefaultProxiedBy
	}
}

func applyAuthDefaults(cfg *AuthConfig) {
	if cfg.EmailSuffix == "" {
		cfg.EmailSuffix = DefaultEmailSuffix
	}
	if cfg.AssertionHeader == "" {
		cfg.AssertionHeader = DefaultAssertionHeader
	}
	if cfg.TokenTableBinding == "" {
		cfg.TokenTableBinding = DefaultTokenTableBinding
	}
	if cfg.TokenTableKey == "" {
		cfg.TokenTableKey = DefaultTokenTableKey
	}
	if cfg.Verifier == "" {
		cfg.Verifier = DefaultVerifier
	}
	if cfg.JWKSTimeout == 0 {
		cfg.JWKSTimeout = DefaultJWKSTimeout
	}
}

func applyRoutingDefaults(cfg *RoutingConfig) {
	if cfg.URL == "" && cfg.File == "" {
		cfg.URL = DefaultRoutingURL
	}
	if cfg.MatchPolicy == "" {
		cfg.MatchPolicy = DefaultMatchPolicy
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultRoutingFetchTimeout
	}
}

func applyCredentialsDefaults(cfg *CredentialsConfig) {
	if len(cfg.Sources) == 0 {
		cfg.Sources = []string{"env"}
	}
	if cfg.LookupTimeout == 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
}

func applyKVDefaults(cfg *KVConfig) {
	if cfg.Backend == "" {
		cfg.Backend = DefaultKVBackend
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = DefaultSQLitePath
	}
	if cfg.SQLite.BusyTimeout == 0 {
		cfg.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Redis.Address == "" {
		cfg.Redis.Address = DefaultRedisAddress
	}
	if cfg.Redis.KeyPrefix == "" {
		cfg.Redis.KeyPrefix = DefaultRedisKeyPrefix
	}
	if cfg.PurgeSchedule == "" {
		cfg.PurgeSchedule = DefaultPurgeSchedule
	}
}

func applyCORSDefaults(cfg *CORSConfig) {
	if cfg.PrimaryOrigin == "" {
		cfg.PrimaryOrigin = DefaultPrimaryOrigin
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = append([]string(nil), DefaultAllowedOrigins...)
	}
	if len(cfg.AllowedMethods) == 0 {
		cfg.AllowedMethods = append([]string(nil), DefaultAllowedMethods...)
	}
	if len(cfg.AllowedHeaders) == 0 {
		cfg.AllowedHeaders = append([]string(nil), DefaultAllowedHeaders...)
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = DefaultCORSMaxAge
	}
	if cfg.AllowCredentials == nil {
		cfg.AllowCredentials = boolPtr(true)
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.AdminAddress == "" {
		cfg.AdminAddress = DefaultAdminAddress
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Logging.Redact == nil {
		cfg.Logging.Redact = boolPtr(true)
	}
	if cfg.Metrics.Enabled == nil {
		cfg.Metrics.Enabled = boolPtr(true)
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = DefaultMetricsNS
	}
	if cfg.Tracing.Endpoint == "" {
		cfg.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if cfg.Tracing.SampleRatio == 0 {
		cfg.Tracing.SampleRatio = DefaultTracingRatio
	}
	if cfg.Tracing.ServiceName == "" {
		cfg.Tracing.ServiceName = DefaultServiceName
	}
}

func boolPtr(b bool) *bool {
	return &b
}
