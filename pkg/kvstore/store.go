package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"simplesalt/authproxy/pkg/config"
)

// ErrNotFound is returned by Get when a key is absent or expired.
var ErrNotFound = errors.New("kvstore: key not found")

// Store is the fallback key/value store consulted for secrets and the bearer
// token table. Values are opaque strings, usually JSON documents.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Put stores value under key. A zero ttl stores the value without expiry.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}

// Purgeable is implemented by stores that must remove expired entries
// themselves. Redis expires keys natively and does not implement it.
type Purgeable interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// StorageError represents an error from a store backend.
type StorageError struct {
	Backend   string // "memory", "sqlite", "redis"
	Operation string // "get", "put", "delete", ...
	Key       string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage error [backend=%s, operation=%s, key=%s]: %v", e.Backend, e.Operation, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func newStorageError(backend, operation, key string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Key: key, Cause: cause}
}

// New builds the store selected by cfg.Backend. The "none" backend yields a
// nil Store, which callers treat as an always-empty store.
func New(ctx context.Context, cfg config.KVConfig) (Store, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		s, err := NewSQLiteStore(SQLiteConfig{
			Path:        cfg.SQLite.Path,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	case "redis":
		s, err := NewRedisStore(ctx, RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown kv backend %q", cfg.Backend)
	}
}
