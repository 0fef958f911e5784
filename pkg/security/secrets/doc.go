/*
Package secrets resolves the upstream credentials injected into proxied requests.

# Overview

Each routing rule names a secret. CredentialStore turns that name into
Credentials by asking the configured secret providers first and the
fallback key/value store second:

 1. Providers, in configured order (env, file, map). A value that is a JSON
    object with apiKey or headers is decoded; any other value is the API key.
 2. The key/value store under "secret_<name>", which must hold
    {"apiKey": "...", "headers": {...}}.

Every lookup reads fresh values. There is no cache, so rotated secrets take
effect on the next request.

# Secret Providers

  - EnvProvider: environment variables, optionally prefixed
  - FileProvider: one file per secret (Kubernetes-style mounts), 0600/0400 only
  - MapProvider: explicit bindings from configuration or the legacy API_KEYS blob
  - Manager: priority chain over the above

# Basic Usage

	mgr, err := secrets.NewManagerFromConfig(cfg.Credentials)
	if err != nil {
		return err
	}
	store := secrets.NewCredentialStore(mgr, kv, cfg.Credentials.LookupTimeout, logger)

	creds, ok := store.GetCredentials(ctx, rule.SecretName)
	if !ok {
		// 500 API credentials not found
	}

# Security

Credentials implements fmt.Stringer and slog.LogValuer so values never reach
logs. Lookup failures are logged at debug level with the secret name only.
*/
package secrets
