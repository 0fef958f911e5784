package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "AUTHPROXY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// Environment variables are not consulted; use LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML configuration and applies defaults without validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention AUTHPROXY_SECTION_FIELD (e.g., AUTHPROXY_PROXY_LISTEN_ADDRESS)
// and always take precedence over the file.
//
// An empty path skips the file and starts from defaults.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	var cfg *Config
	if path == "" {
		cfg = NewDefaultConfig()
	} else {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
		}
		cfg, err = Parse(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	// Proxy overrides
	setString(&cfg.Proxy.ListenAddress, "PROXY_LISTEN_ADDRESS")
	setString(&cfg.Proxy.Mode, "PROXY_MODE")
	setDuration(&cfg.Proxy.ReadTimeout, "PROXY_READ_TIMEOUT")
	setDuration(&cfg.Proxy.WriteTimeout, "PROXY_WRITE_TIMEOUT")
	setDuration(&cfg.Proxy.UpstreamTimeout, "PROXY_UPSTREAM_TIMEOUT")
	setString(&cfg.Proxy.UserAgent, "PROXY_USER_AGENT")

	// Auth overrides
	setString(&cfg.Auth.EmailSuffix, "AUTH_EMAIL_SUFFIX")
	setString(&cfg.Auth.Verifier, "AUTH_VERIFIER")
	setString(&cfg.Auth.JWKSURL, "AUTH_JWKS_URL")
	setString(&cfg.Auth.TokenTableBinding, "AUTH_TOKEN_TABLE_BINDING")
	setString(&cfg.Auth.TokenTableKey, "AUTH_TOKEN_TABLE_KEY")

	// Routing overrides
	setString(&cfg.Routing.URL, "ROUTING_URL")
	setString(&cfg.Routing.File, "ROUTING_FILE")
	setString(&cfg.Routing.MatchPolicy, "ROUTING_MATCH_POLICY")
	setDuration(&cfg.Routing.FetchTimeout, "ROUTING_FETCH_TIMEOUT")

	// Credentials overrides
	if val := os.Getenv(EnvPrefix + "CREDENTIALS_SOURCES"); val != "" {
		cfg.Credentials.Sources = splitList(val)
	}
	setString(&cfg.Credentials.EnvPrefix, "CREDENTIALS_ENV_PREFIX")
	setString(&cfg.Credentials.SecretsDir, "CREDENTIALS_SECRETS_DIR")
	// API_KEYS is the binding name the legacy path deployment used.
	if val := os.Getenv("API_KEYS"); val != "" && cfg.Credentials.APIKeysBlob == "" {
		cfg.Credentials.APIKeysBlob = val
	}

	// KV overrides
	setString(&cfg.KV.Backend, "KV_BACKEND")
	setString(&cfg.KV.SQLite.Path, "KV_SQLITE_PATH")
	setString(&cfg.KV.Redis.Address, "KV_REDIS_ADDRESS")
	setString(&cfg.KV.Redis.Password, "KV_REDIS_PASSWORD")
	if val := os.Getenv(EnvPrefix + "KV_REDIS_DB"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.KV.Redis.DB = i
		}
	}
	setString(&cfg.KV.PurgeSchedule, "KV_PURGE_SCHEDULE")

	// CORS overrides
	setString(&cfg.CORS.PrimaryOrigin, "CORS_PRIMARY_ORIGIN")
	if val := os.Getenv(EnvPrefix + "CORS_ALLOWED_ORIGINS"); val != "" {
		cfg.CORS.AllowedOrigins = splitList(val)
	}

	// Telemetry overrides
	setString(&cfg.Telemetry.AdminAddress, "TELEMETRY_ADMIN_ADDRESS")
	setString(&cfg.Telemetry.Logging.Level, "TELEMETRY_LOGGING_LEVEL")
	setString(&cfg.Telemetry.Logging.Format, "TELEMETRY_LOGGING_FORMAT")
	if val := os.Getenv(EnvPrefix + "TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = &b
		}
	}
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Tracing.Enabled = b
		}
	}
	setString(&cfg.Telemetry.Tracing.Endpoint, "TELEMETRY_TRACING_ENDPOINT")
	if val := os.Getenv(EnvPrefix + "TELEMETRY_TRACING_SAMPLE_RATIO"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Telemetry.Tracing.SampleRatio = f
		}
	}
}

func setString(dst *string, name string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		*dst = val
	}
}

func setDuration(dst *time.Duration, name string) {
	if val := os.Getenv(EnvPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

// splitList splits a comma-separated value and drops empty entries.
func splitList(val string) []string {
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
