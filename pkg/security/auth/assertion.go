package auth

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"simplesalt/authproxy/pkg/config"
)

var (
	// ErrMalformedToken reports an assertion that is not a decodable compact JWS.
	ErrMalformedToken = errors.New("malformed token")

	// ErrInvalidSignature reports an assertion whose signature does not verify.
	ErrInvalidSignature = errors.New("invalid signature")

	// ErrKeySetUnavailable reports a failure to obtain the verification keys.
	ErrKeySetUnavailable = errors.New("key set unavailable")
)

// AssertionVerifier turns a raw signed assertion into claims.
type AssertionVerifier interface {
	Decode(ctx context.Context, raw string) (*AssertionClaims, error)
}

// NewAssertionVerifier selects the verifier named by cfg.Verifier.
func NewAssertionVerifier(cfg config.AuthConfig) (AssertionVerifier, error) {
	switch cfg.Verifier {
	case "", "unverified":
		return UnverifiedDecoder{}, nil
	case "jwks":
		return NewJWKSVerifier(cfg.JWKSURL, &http.Client{Timeout: cfg.JWKSTimeout}), nil
	default:
		return nil, fmt.Errorf("unknown assertion verifier %q", cfg.Verifier)
	}
}

// UnverifiedDecoder reads assertion claims without checking the signature.
// It trusts whatever sits in front of the proxy to have validated the token,
// so only the payload segment of the three has to decode.
type UnverifiedDecoder struct{}

// Decode parses the payload segment of raw and returns its claims.
func (UnverifiedDecoder) Decode(_ context.Context, raw string) (*AssertionClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("%w: expected 3 segments, got %d", ErrMalformedToken, len(parts))
	}
	payload, err := decodeSegment(parts[1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	var claims AssertionClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	return &claims, nil
}

// decodeSegment accepts URL-safe or standard base64, padded or not.
func decodeSegment(seg string) ([]byte, error) {
	seg = strings.TrimRight(seg, "=")
	if b, err := base64.RawURLEncoding.DecodeString(seg); err == nil {
		return b, nil
	}
	return base64.RawStdEncoding.DecodeString(seg)
}

// JWKSVerifier verifies assertion signatures against a JSON Web Key Set.
// The key set is fetched on every call.
type JWKSVerifier struct {
	url    string
	client *http.Client
}

// NewJWKSVerifier creates a verifier for the key set at url.
func NewJWKSVerifier(url string, client *http.Client) *JWKSVerifier {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &JWKSVerifier{url: url, client: client}
}

// Decode verifies raw against the key set and returns its claims.
func (v *JWKSVerifier) Decode(ctx context.Context, raw string) (*AssertionClaims, error) {
	tok, err := jwt.ParseSigned(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	keys, err := v.fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrKeySetUnavailable, err)
	}

	candidates := keys.Keys
	if len(tok.Headers) > 0 && tok.Headers[0].KeyID != "" {
		candidates = keys.Key(tok.Headers[0].KeyID)
	}

	for _, key := range candidates {
		var claims AssertionClaims
		if err := tok.Claims(key.Key, &claims); err == nil {
			return &claims, nil
		}
	}
	return nil, ErrInvalidSignature
}

func (v *JWKSVerifier) fetch(ctx context.Context) (*jose.JSONWebKeySet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var set jose.JSONWebKeySet
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&set); err != nil {
		return nil, fmt.Errorf("failed to decode key set: %w", err)
	}
	return &set, nil
}
