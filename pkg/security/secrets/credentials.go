package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"simplesalt/authproxy/pkg/kvstore"
)

// SecretKeyPrefix prefixes a binding name to form its fallback store key.
const SecretKeyPrefix = "secret_"

// Credentials are the upstream credentials injected for a route.
type Credentials struct {
	APIKey  string            `json:"apiKey"`
	Headers map[string]string `json:"headers,omitempty"`
}

// String hides the credential values from fmt and log output.
func (c Credentials) String() string {
	return "Credentials{REDACTED}"
}

// LogValue hides the credential values from slog output.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue("REDACTED")
}

// CredentialStore resolves the credentials for a route's secret name.
// Lookups go to the secret providers first and then to the fallback
// key/value store. Every call reads fresh values.
type CredentialStore struct {
	provider SecretProvider
	kv       kvstore.Store
	timeout  time.Duration
	logger   *slog.Logger
}

// NewCredentialStore creates a store. kv may be nil when no fallback store is configured.
func NewCredentialStore(provider SecretProvider, kv kvstore.Store, lookupTimeout time.Duration, logger *slog.Logger) *CredentialStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{
		provider: provider,
		kv:       kv,
		timeout:  lookupTimeout,
		logger:   logger.With("component", "secrets.credentials"),
	}
}

// GetCredentials returns the credentials bound to secretName. An empty name,
// a missing binding or any lookup or decode failure yields false.
func (s *CredentialStore) GetCredentials(ctx context.Context, secretName string) (*Credentials, bool) {
	if secretName == "" {
		return nil, false
	}

	if s.provider != nil {
		value, err := s.provider.GetSecret(ctx, secretName)
		if err == nil {
			return decodeBinding(value), true
		}
		if !errors.Is(err, ErrSecretNotFound) {
			s.logger.Debug("secret provider lookup failed",
				"secret_name", secretName,
				"error", err,
			)
		}
	}

	raw, ok := s.kvGet(ctx, SecretKeyPrefix+secretName)
	if !ok {
		return nil, false
	}

	var creds Credentials
	if err := json.Unmarshal([]byte(raw), &creds); err != nil {
		s.logger.Debug("stored credentials are not valid JSON",
			"secret_name", secretName,
		)
		return nil, false
	}
	return &creds, true
}

// Lookup returns the raw value of a binding, falling back to kvKey in the
// key/value store. It serves documents such as the bearer token table.
func (s *CredentialStore) Lookup(ctx context.Context, binding, kvKey string) (string, bool) {
	if s.provider != nil && binding != "" {
		value, err := s.provider.GetSecret(ctx, binding)
		if err == nil {
			return value, true
		}
	}
	if kvKey == "" {
		return "", false
	}
	return s.kvGet(ctx, kvKey)
}

func (s *CredentialStore) kvGet(ctx context.Context, key string) (string, bool) {
	if s.kv == nil {
		return "", false
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	value, err := s.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, kvstore.ErrNotFound) {
			s.logger.Debug("fallback store lookup failed", "key", key, "error", err)
		}
		return "", false
	}
	return value, true
}

// decodeBinding turns a binding value into Credentials. A JSON object with
// apiKey or headers is decoded; anything else is the API key itself.
func decodeBinding(value string) *Credentials {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "{") {
		var creds Credentials
		if err := json.Unmarshal([]byte(trimmed), &creds); err == nil && (creds.APIKey != "" || len(creds.Headers) > 0) {
			return &creds
		}
	}
	return &Credentials{APIKey: value}
}
