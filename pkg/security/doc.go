/*
Package security groups the identity and secret handling of the proxy.

# Authentication

Package auth decides whether a request may use the proxy. A bearer token
found in the token table is accepted first; otherwise the signed access
assertion header must carry an unexpired token whose email ends with the
configured suffix:

	verifier := auth.NewVerifier(cfg.Auth, credentialStore, assertions, logger)
	result := verifier.Verify(ctx, r.Header)
	if !result.Valid {
	    // result.Reason explains the rejection
	}

Assertions are decoded without signature checks by default. Setting
auth.verifier to "jwks" verifies them against a published key set.

# Credentials

Package secrets resolves the secret name of a routing rule to upstream
credentials. Bindings are read from the configured sources (environment,
files, literal map) and the fallback key/value store is consulted under
"secret_<name>" when no binding exists:

	provider, err := secrets.NewManagerFromConfig(cfg.Credentials)
	store := secrets.NewCredentialStore(provider, kv, cfg.Credentials.LookupTimeout, logger)

	creds, ok := store.GetCredentials(ctx, rule.SecretName)

Credentials redact themselves when printed or logged.
*/
package security
