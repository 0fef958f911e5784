package auth

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"gopkg.in/square/go-jose.v2"
	"gopkg.in/square/go-jose.v2/jwt"

	"simplesalt/authproxy/pkg/config"
)

func newECKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	return key
}

func signES256(t *testing.T, key *ecdsa.PrivateKey, kid string, claims any) string {
	t.Helper()
	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.ES256, Key: jose.JSONWebKey{Key: key, KeyID: kid}},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}
	raw, err := jwt.Signed(signer).Claims(claims).CompactSerialize()
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return raw
}

func jwksServer(t *testing.T, keys ...jose.JSONWebKey) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(jose.JSONWebKeySet{Keys: keys}); err != nil {
			t.Errorf("failed to encode key set: %v", err)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestUnverifiedDecoder(t *testing.T) {
	raw := signHS256(t, map[string]any{"email": "a@simplesalt.company", "sub": "s-1", "aud": "x"})

	claims, err := UnverifiedDecoder{}.Decode(context.Background(), raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Email != "a@simplesalt.company" || claims.Subject != "s-1" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if len(claims.Audience) != 1 || claims.Audience[0] != "x" {
		t.Errorf("expected single audience to decode as a list, got %v", claims.Audience)
	}

	payload := base64.RawURLEncoding.EncodeToString([]byte(`{"email":"b@simplesalt.company","exp":4102444800}`))
	claims, err = UnverifiedDecoder{}.Decode(context.Background(), "x."+payload+".y")
	if err != nil {
		t.Fatalf("Decode with unparseable header and signature failed: %v", err)
	}
	if claims.Email != "b@simplesalt.company" || claims.Expiry == nil || claims.Expiry.Time().Unix() != 4102444800 {
		t.Errorf("unexpected claims %+v", claims)
	}

	for _, bad := range []string{"", "abc", "a.b", "a.b.c.d", "x.!!!.y", "x." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".y"} {
		if _, err := (UnverifiedDecoder{}).Decode(context.Background(), bad); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("Decode(%q): expected ErrMalformedToken, got %v", bad, err)
		}
	}
}

func TestJWKSVerifier(t *testing.T) {
	trusted := newECKey(t)
	other := newECKey(t)

	srv, hits := jwksServer(t,
		jose.JSONWebKey{Key: &other.PublicKey, KeyID: "other", Algorithm: string(jose.ES256), Use: "sig"},
		jose.JSONWebKey{Key: &trusted.PublicKey, KeyID: "trusted", Algorithm: string(jose.ES256), Use: "sig"},
	)
	v := NewJWKSVerifier(srv.URL, srv.Client())
	ctx := context.Background()
	claims := map[string]any{"email": "dev@simplesalt.company"}

	t.Run("matching kid", func(t *testing.T) {
		got, err := v.Decode(ctx, signES256(t, trusted, "trusted", claims))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Email != "dev@simplesalt.company" {
			t.Errorf("unexpected email %q", got.Email)
		}
	})

	t.Run("no kid tries every key", func(t *testing.T) {
		if _, err := v.Decode(ctx, signES256(t, trusted, "", claims)); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
	})

	t.Run("untrusted signer", func(t *testing.T) {
		_, err := v.Decode(ctx, signES256(t, newECKey(t), "trusted", claims))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("unknown kid", func(t *testing.T) {
		_, err := v.Decode(ctx, signES256(t, trusted, "rotated-away", claims))
		if !errors.Is(err, ErrInvalidSignature) {
			t.Errorf("expected ErrInvalidSignature, got %v", err)
		}
	})

	t.Run("malformed token skips fetch", func(t *testing.T) {
		before := hits.Load()
		if _, err := v.Decode(ctx, "garbage"); !errors.Is(err, ErrMalformedToken) {
			t.Errorf("expected ErrMalformedToken, got %v", err)
		}
		if hits.Load() != before {
			t.Error("key set should not be fetched for a malformed token")
		}
	})

	if hits.Load() < 4 {
		t.Errorf("expected a key set fetch per verification, got %d", hits.Load())
	}
}

func TestJWKSVerifier_KeySetUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	v := NewJWKSVerifier(srv.URL, srv.Client())
	_, err := v.Decode(context.Background(), signES256(t, newECKey(t), "k", map[string]any{}))
	if !errors.Is(err, ErrKeySetUnavailable) {
		t.Errorf("expected ErrKeySetUnavailable, got %v", err)
	}
}

func TestVerifier_JWKSReasons(t *testing.T) {
	trusted := newECKey(t)
	srv, _ := jwksServer(t, jose.JSONWebKey{Key: &trusted.PublicKey, KeyID: "k", Algorithm: string(jose.ES256), Use: "sig"})

	cfg := config.NewDefaultConfig().Auth
	cfg.Verifier = "jwks"
	cfg.JWKSURL = srv.URL
	assertions, err := NewAssertionVerifier(cfg)
	if err != nil {
		t.Fatalf("NewAssertionVerifier failed: %v", err)
	}
	v := NewVerifier(cfg, nil, assertions, nil)

	good := http.Header{}
	good.Set("CF-Access-Jwt-Assertion", signES256(t, trusted, "k", map[string]any{"email": "dev@simplesalt.company"}))
	if res := v.Verify(context.Background(), good); !res.Valid {
		t.Errorf("expected valid, got %q", res.Reason)
	}

	forged := http.Header{}
	forged.Set("CF-Access-Jwt-Assertion", signES256(t, newECKey(t), "k", map[string]any{"email": "dev@simplesalt.company"}))
	if res := v.Verify(context.Background(), forged); res.Valid || res.Reason != ReasonInvalidSignature {
		t.Errorf("expected %q, got %+v", ReasonInvalidSignature, res)
	}
}

func TestNewAssertionVerifier(t *testing.T) {
	if _, err := NewAssertionVerifier(config.AuthConfig{Verifier: "unverified"}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := NewAssertionVerifier(config.AuthConfig{Verifier: "hmac"}); err == nil {
		t.Error("expected error for unknown verifier")
	}
}
