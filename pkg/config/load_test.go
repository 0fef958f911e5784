package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "authproxy.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfig_ValidFile(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "0.0.0.0:8081"
  mode: "path"
  upstream_timeout: "5s"

routing:
  file: "./routing.json"
  match_policy: "suffix"

credentials:
  sources: ["map", "env"]
  bindings:
    STRIPE_KEY: "sk_test"

telemetry:
  logging:
    level: "debug"
    format: "text"
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:8081" {
		t.Errorf("expected listen address %q, got %q", "0.0.0.0:8081", cfg.Proxy.ListenAddress)
	}
	if cfg.Proxy.Mode != ModePath {
		t.Errorf("expected mode %q, got %q", ModePath, cfg.Proxy.Mode)
	}
	if cfg.Proxy.UpstreamTimeout != 5*time.Second {
		t.Errorf("expected upstream timeout 5s, got %v", cfg.Proxy.UpstreamTimeout)
	}
	if cfg.Routing.URL != "" {
		t.Errorf("expected routing url to stay empty when file is set, got %q", cfg.Routing.URL)
	}
	if cfg.Credentials.Bindings["STRIPE_KEY"] != "sk_test" {
		t.Errorf("expected STRIPE_KEY binding, got %v", cfg.Credentials.Bindings)
	}

	// Defaults still applied to unset fields
	if cfg.CORS.MaxAge != DefaultCORSMaxAge {
		t.Errorf("expected default max age %d, got %d", DefaultCORSMaxAge, cfg.CORS.MaxAge)
	}
	if cfg.Proxy.UserAgent != DefaultUserAgent {
		t.Errorf("expected default user agent %q, got %q", DefaultUserAgent, cfg.Proxy.UserAgent)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestLoadConfig_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "proxy: [unclosed")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	path := writeConfig(t, `
proxy:
  mode: "subdomain"
`)
	_, err := LoadConfig(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if verr.Errors[0].Field != "proxy.mode" {
		t.Errorf("expected proxy.mode error, got %q", verr.Errors[0].Field)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
proxy:
  listen_address: "127.0.0.1:8080"
telemetry:
  logging:
    level: "info"
`)

	t.Setenv("AUTHPROXY_PROXY_LISTEN_ADDRESS", "0.0.0.0:9999")
	t.Setenv("AUTHPROXY_TELEMETRY_LOGGING_LEVEL", "warn")
	t.Setenv("AUTHPROXY_PROXY_UPSTREAM_TIMEOUT", "12s")
	t.Setenv("AUTHPROXY_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("AUTHPROXY_KV_REDIS_DB", "3")
	t.Setenv("AUTHPROXY_TELEMETRY_METRICS_ENABLED", "false")

	cfg, err := LoadConfigWithEnvOverrides(path)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Proxy.ListenAddress != "0.0.0.0:9999" {
		t.Errorf("expected env override for listen address, got %q", cfg.Proxy.ListenAddress)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected env override for log level, got %q", cfg.Telemetry.Logging.Level)
	}
	if cfg.Proxy.UpstreamTimeout != 12*time.Second {
		t.Errorf("expected upstream timeout 12s, got %v", cfg.Proxy.UpstreamTimeout)
	}
	if got := strings.Join(cfg.CORS.AllowedOrigins, "|"); got != "https://a.example|https://b.example" {
		t.Errorf("unexpected allowed origins %q", got)
	}
	if cfg.KV.Redis.DB != 3 {
		t.Errorf("expected redis db 3, got %d", cfg.KV.Redis.DB)
	}
	if IsEnabled(cfg.Telemetry.Metrics.Enabled, true) {
		t.Error("expected metrics disabled by env override")
	}
}

func TestLoadConfigWithEnvOverrides_NoFile(t *testing.T) {
	t.Setenv("API_KEYS", `{"STRIPE_KEY":"sk"}`)

	cfg, err := LoadConfigWithEnvOverrides("")
	if err != nil {
		t.Fatalf("failed to load defaults: %v", err)
	}
	if cfg.Routing.URL != DefaultRoutingURL {
		t.Errorf("expected default routing url, got %q", cfg.Routing.URL)
	}
	if cfg.Credentials.APIKeysBlob != `{"STRIPE_KEY":"sk"}` {
		t.Errorf("expected API_KEYS to fill api_keys, got %q", cfg.Credentials.APIKeysBlob)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	disabled := false
	cfg := &Config{
		CORS: CORSConfig{
			AllowedOrigins:   []string{"https://only.example"},
			AllowCredentials: &disabled,
		},
	}
	ApplyDefaults(cfg)

	if len(cfg.CORS.AllowedOrigins) != 1 {
		t.Errorf("expected explicit origins kept, got %v", cfg.CORS.AllowedOrigins)
	}
	if IsEnabled(cfg.CORS.AllowCredentials, true) {
		t.Error("expected explicit allow_credentials=false kept")
	}
	if len(cfg.CORS.AllowedMethods) != len(DefaultAllowedMethods) {
		t.Errorf("expected default methods, got %v", cfg.CORS.AllowedMethods)
	}
	if cfg.Credentials.Sources[0] != "env" {
		t.Errorf("expected env source by default, got %v", cfg.Credentials.Sources)
	}
}

func TestApplyDefaults_DoesNotAliasPackageSlices(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.CORS.AllowedOrigins[0] = "https://mutated.example"

	if DefaultAllowedOrigins[0] == "https://mutated.example" {
		t.Fatal("default origins slice was mutated through config")
	}
}
