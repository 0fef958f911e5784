package secrets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"simplesalt/authproxy/pkg/config"
)

// Manager consults its providers in order and returns the first value
// found. Nothing is cached.
type Manager struct {
	providers []SecretProvider
}

// NewManager returns a Manager over providers, highest priority first.
func NewManager(providers ...SecretProvider) *Manager {
	return &Manager{providers: providers}
}

// NewManagerFromConfig builds providers in the order listed by cfg.Sources.
func NewManagerFromConfig(cfg config.CredentialsConfig) (*Manager, error) {
	var providers []SecretProvider

	for _, src := range cfg.Sources {
		switch src {
		case "env":
			providers = append(providers, NewEnvProvider(cfg.EnvPrefix))
		case "file":
			p, err := NewFileProvider(cfg.SecretsDir)
			if err != nil {
				return nil, fmt.Errorf("file secret source: %w", err)
			}
			providers = append(providers, p)
		case "map":
			values, err := ParseBindingsJSON(cfg.APIKeysBlob)
			if err != nil {
				return nil, fmt.Errorf("api_keys: %w", err)
			}
			for k, v := range cfg.Bindings {
				values[k] = v
			}
			providers = append(providers, NewMapProvider(values))
		default:
			return nil, fmt.Errorf("unknown secret source %q", src)
		}
	}

	return NewManager(providers...), nil
}

// GetSecret returns the value from the first provider that has name.
// Provider failures other than ErrSecretNotFound do not stop the search but
// are reported when no provider has the binding.
func (m *Manager) GetSecret(ctx context.Context, name string) (string, error) {
	var failures []error
	for _, p := range m.providers {
		value, err := p.GetSecret(ctx, name)
		switch {
		case err == nil:
			slog.DebugContext(ctx, "secret resolved", "provider", p.Provider(), "name", redactSecretName(name))
			return value, nil
		case !errors.Is(err, ErrSecretNotFound):
			slog.DebugContext(ctx, "secret provider failed", "provider", p.Provider(), "name", redactSecretName(name), "error", err)
			failures = append(failures, fmt.Errorf("%s: %w", p.Provider(), err))
		}
	}

	if len(failures) > 0 {
		return "", fmt.Errorf("secret %q: %w", name, errors.Join(failures...))
	}
	return "", fmt.Errorf("secret %q: %w", name, ErrSecretNotFound)
}

// Provider returns the provider name.
func (m *Manager) Provider() string {
	return "chain"
}

// redactSecretName keeps the first and last two characters of long names.
func redactSecretName(name string) string {
	if len(name) <= 4 {
		return "***"
	}
	return name[:2] + "..." + name[len(name)-2:]
}
