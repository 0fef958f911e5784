package auth

import (
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/square/go-jose.v2/jwt"
)

// Authentication methods reported in Identity.Method.
const (
	MethodOAuth2          = "oauth2"
	MethodSignedAssertion = "signed-assertion"
)

// Rejection reasons returned in Result.Reason.
const (
	ReasonMissingToken            = "missing authentication token"
	ReasonTokenExpired            = "token expired"
	ReasonUnauthorizedDomain      = "unauthorized domain"
	ReasonInvalidFormat           = "invalid token format"
	ReasonInvalidSignature        = "invalid token signature"
	ReasonVerificationUnavailable = "token verification unavailable"
)

// DefaultUser names bearer callers whose token entry carries no user or client id.
const DefaultUser = "oauth2-user"

// Identity describes an authenticated caller.
type Identity struct {
	User     string
	Subject  string
	Scope    string
	Audience []string
	Method   string
}

// Result is the outcome of verifying a request. It is returned by value and
// never modified after Verify returns.
type Result struct {
	Valid    bool
	Identity *Identity
	Reason   string
}

func reject(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

// TokenInfo is one entry of the bearer token table.
type TokenInfo struct {
	User      string
	ClientID  string
	Scope     string
	ExpiresAt time.Time
}

// UnmarshalJSON accepts snake_case and camelCase field names. expires_at may
// be unix seconds or an RFC 3339 timestamp.
func (t *TokenInfo) UnmarshalJSON(data []byte) error {
	var raw struct {
		User          string          `json:"user"`
		ClientID      string          `json:"client_id"`
		ClientIDCamel string          `json:"clientId"`
		Scope         string          `json:"scope"`
		ExpiresAt     json.RawMessage `json:"expires_at"`
		ExpiresCamel  json.RawMessage `json:"expiresAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	t.User = raw.User
	t.ClientID = raw.ClientID
	if t.ClientID == "" {
		t.ClientID = raw.ClientIDCamel
	}
	t.Scope = raw.Scope

	exp := raw.ExpiresAt
	if len(exp) == 0 {
		exp = raw.ExpiresCamel
	}
	if len(exp) == 0 || string(exp) == "null" {
		return nil
	}

	var secs json.Number
	if err := json.Unmarshal(exp, &secs); err == nil {
		f, err := secs.Float64()
		if err != nil {
			return fmt.Errorf("invalid expires_at: %w", err)
		}
		t.ExpiresAt = time.Unix(int64(f), 0)
		return nil
	}
	var s string
	if err := json.Unmarshal(exp, &s); err != nil {
		return fmt.Errorf("invalid expires_at: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid expires_at: %w", err)
	}
	t.ExpiresAt = ts
	return nil
}

// Expired reports whether the entry has an expiry at or before now.
func (t TokenInfo) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// AssertionClaims are the claims read from a signed assertion.
type AssertionClaims struct {
	Email    string           `json:"email,omitempty"`
	Subject  string           `json:"sub,omitempty"`
	Audience jwt.Audience     `json:"aud,omitempty"`
	Expiry   *jwt.NumericDate `json:"exp,omitempty"`
}
