package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// MapProvider serves bindings from an explicit map supplied at construction.
// It replaces the process-wide API_KEYS blob of older deployments.
type MapProvider struct {
	values map[string]string
}

// NewMapProvider copies values into a new provider.
func NewMapProvider(values map[string]string) *MapProvider {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = v
	}
	return &MapProvider{values: m}
}

// GetSecret returns the binding for name.
func (p *MapProvider) GetSecret(ctx context.Context, name string) (string, error) {
	value, ok := p.values[name]
	if !ok || value == "" {
		return "", fmt.Errorf("binding %s: %w", name, ErrSecretNotFound)
	}
	return value, nil
}

// Provider returns the provider name.
func (p *MapProvider) Provider() string {
	return "map"
}

// Len returns the number of bindings.
func (p *MapProvider) Len() int {
	return len(p.values)
}

// ParseBindingsJSON parses a JSON object of binding name to value. String
// values are kept as is; object values are re-encoded so they can later be
// decoded as Credentials.
func ParseBindingsJSON(blob string) (map[string]string, error) {
	out := make(map[string]string)
	if strings.TrimSpace(blob) == "" {
		return out, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(blob), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse bindings JSON: %w", err)
	}

	for name, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			out[name] = s
			continue
		}
		var obj map[string]any
		if err := json.Unmarshal(msg, &obj); err != nil {
			return nil, fmt.Errorf("binding %q must be a string or object", name)
		}
		out[name] = string(msg)
	}

	return out, nil
}
