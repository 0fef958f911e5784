package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/telemetry/logging"
)

// TokenTableSource returns the raw bearer token table. The binding is
// consulted first and the key/value store key second.
type TokenTableSource interface {
	Lookup(ctx context.Context, binding, kvKey string) (string, bool)
}

// Verifier authenticates inbound requests. A valid bearer token from the
// token table is accepted first; otherwise the signed assertion header
// decides. Verifier keeps no state between calls.
type Verifier struct {
	tokens     TokenTableSource
	assertions AssertionVerifier

	emailSuffix       string
	assertionHeader   string
	tokenTableBinding string
	tokenTableKey     string

	now    func() time.Time
	logger *slog.Logger
}

// NewVerifier creates a verifier. tokens may be nil to disable bearer tokens.
func NewVerifier(cfg config.AuthConfig, tokens TokenTableSource, assertions AssertionVerifier, logger *slog.Logger) *Verifier {
	if assertions == nil {
		assertions = UnverifiedDecoder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	header := cfg.AssertionHeader
	if header == "" {
		header = config.DefaultAssertionHeader
	}
	return &Verifier{
		tokens:            tokens,
		assertions:        assertions,
		emailSuffix:       cfg.EmailSuffix,
		assertionHeader:   header,
		tokenTableBinding: cfg.TokenTableBinding,
		tokenTableKey:     cfg.TokenTableKey,
		now:               time.Now,
		logger:            logger.With("component", "auth.verifier"),
	}
}

// Verify authenticates the request described by h.
func (v *Verifier) Verify(ctx context.Context, h http.Header) Result {
	if token, ok := bearerToken(h); ok {
		if res, ok := v.verifyBearer(ctx, token); ok {
			return res
		}
	}
	return v.verifyAssertion(ctx, h)
}

// verifyBearer reports false when the token cannot authenticate the caller,
// leaving the decision to the signed assertion.
func (v *Verifier) verifyBearer(ctx context.Context, token string) (Result, bool) {
	if v.tokens == nil {
		return Result{}, false
	}

	raw, ok := v.tokens.Lookup(ctx, v.tokenTableBinding, v.tokenTableKey)
	if !ok {
		return Result{}, false
	}

	var table map[string]TokenInfo
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		v.logger.Warn("bearer token table is not valid JSON", "error", err)
		return Result{}, false
	}

	info, ok := table[token]
	if !ok {
		v.logger.Debug("bearer token not in table")
		return Result{}, false
	}
	if info.Expired(v.now()) {
		v.logger.Debug("bearer token expired", "client_id", info.ClientID)
		return Result{}, false
	}

	user := info.User
	if user == "" {
		user = info.ClientID
	}
	if user == "" {
		user = DefaultUser
	}

	return Result{
		Valid: true,
		Identity: &Identity{
			User:   user,
			Scope:  info.Scope,
			Method: MethodOAuth2,
		},
	}, true
}

func (v *Verifier) verifyAssertion(ctx context.Context, h http.Header) Result {
	raw := strings.TrimSpace(h.Get(v.assertionHeader))
	if raw == "" {
		return reject(ReasonMissingToken)
	}

	claims, err := v.assertions.Decode(ctx, raw)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			return reject(ReasonInvalidSignature)
		case errors.Is(err, ErrKeySetUnavailable):
			v.logger.Error("assertion keys unavailable", "error", err)
			return reject(ReasonVerificationUnavailable)
		default:
			return reject(ReasonInvalidFormat)
		}
	}

	// exp of zero counts as absent
	if claims.Expiry != nil && *claims.Expiry != 0 && claims.Expiry.Time().Before(v.now()) {
		return reject(ReasonTokenExpired)
	}
	if claims.Email != "" && !strings.HasSuffix(claims.Email, v.emailSuffix) {
		v.logger.InfoContext(ctx, "assertion from unauthorized domain",
			"email", logging.RedactEmail(claims.Email),
		)
		return reject(ReasonUnauthorizedDomain)
	}

	return Result{
		Valid: true,
		Identity: &Identity{
			User:     claims.Email,
			Subject:  claims.Subject,
			Audience: []string(claims.Audience),
			Method:   MethodSignedAssertion,
		},
	}
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(h http.Header) (string, bool) {
	value := h.Get("Authorization")
	const scheme = "Bearer "
	if len(value) <= len(scheme) || !strings.EqualFold(value[:len(scheme)], scheme) {
		return "", false
	}
	token := strings.TrimSpace(value[len(scheme):])
	return token, token != ""
}
