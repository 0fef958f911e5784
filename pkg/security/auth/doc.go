/*
Package auth authenticates callers of the proxy.

Two schemes are supported and tried in order:

 1. Bearer tokens. "Authorization: Bearer <token>" is looked up in a token
    table, a JSON object of token to {user, client_id, scope, expires_at}.
    The table is read from the OAUTH2_TOKENS binding or, when that binding
    is absent, from the key/value store under "oauth2_tokens". An unknown or
    expired token is not a failure; the signed assertion decides instead.

 2. Signed assertions. The CF-Access-Jwt-Assertion header carries a compact
    JWS. Its exp must not be in the past and its email, when present, must
    end with the organization suffix.

# Basic Usage

	assertions, err := auth.NewAssertionVerifier(cfg.Auth)
	if err != nil {
		return err
	}
	verifier := auth.NewVerifier(cfg.Auth, credentialStore, assertions, logger)

	res := verifier.Verify(r.Context(), r.Header)
	if !res.Valid {
		// 401 {"error":"Authentication required","message":res.Reason}
	}

# Signature Verification

The default "unverified" mode decodes assertion claims without checking the
signature and relies on the access gateway in front of the proxy. Set
auth.verifier to "jwks" and auth.jwks_url to the gateway's certs endpoint to
verify signatures here as well; the key set is fetched on each request.
*/
package auth
