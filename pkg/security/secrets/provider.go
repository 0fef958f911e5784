package secrets

import (
	"context"
	"errors"
)

// ErrSecretNotFound is returned when a provider has no binding for a name.
var ErrSecretNotFound = errors.New("secret not found")

// SecretProvider resolves named secret bindings.
//
// Implementations read environment variables, files or an explicit map.
// Providers are read on every call; values are never cached so a rotated
// secret takes effect on the next request.
type SecretProvider interface {
	// GetSecret retrieves a secret by name. It returns an error wrapping
	// ErrSecretNotFound when the binding does not exist or is empty.
	GetSecret(ctx context.Context, name string) (string, error)

	// Provider returns the provider name (env, file, map, chain).
	Provider() string
}
