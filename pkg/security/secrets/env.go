package secrets

import (
	"context"
	"fmt"
	"os"
)

// EnvProvider loads secret bindings from environment variables.
//
// Binding names are used verbatim, so a route with secretName
// "STRIPE_KEY" reads $STRIPE_KEY, or $<Prefix>STRIPE_KEY when a prefix
// is configured.
type EnvProvider struct {
	Prefix string // Optional prefix for environment variables

	lookup func(string) (string, bool)
}

// NewEnvProvider creates a new environment variable secret provider.
func NewEnvProvider(prefix string) *EnvProvider {
	return &EnvProvider{
		Prefix: prefix,
		lookup: os.LookupEnv,
	}
}

// GetSecret retrieves a secret from an environment variable.
func (p *EnvProvider) GetSecret(ctx context.Context, name string) (string, error) {
	envVar := p.Prefix + name

	lookup := p.lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	value, ok := lookup(envVar)
	if !ok || value == "" {
		return "", fmt.Errorf("env var %s: %w", envVar, ErrSecretNotFound)
	}

	return value, nil
}

// Provider returns the provider name.
func (p *EnvProvider) Provider() string {
	return "env"
}
