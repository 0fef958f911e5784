// Package kvstore provides the fallback key/value store behind credential and
// token table lookups.
//
// # Overview
//
// When a secret binding or the bearer token table is not configured directly,
// the proxy reads it from a key/value store:
//
//   - secret_<name>: JSON {"apiKey": "...", "headers": {...}}
//   - oauth2_tokens: JSON object of token to token info
//
// Three backends implement Store:
//
//   - Memory: in-process map, the default
//   - SQLite: single-file persistence (modernc.org/sqlite, no cgo)
//   - Redis: shared store for multi-instance deployments
//
// Memory and SQLite entries written with a TTL are removed by Purger on a
// cron schedule; Redis expires keys itself.
//
// # Usage
//
//	store, err := kvstore.New(ctx, cfg.KV)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, "secret_STRIPE_KEY", `{"apiKey":"sk_live"}`, 0)
//	value, err := store.Get(ctx, "secret_STRIPE_KEY")
//	if errors.Is(err, kvstore.ErrNotFound) {
//	    ...
//	}
package kvstore
