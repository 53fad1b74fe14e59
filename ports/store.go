package ports

import (
	"context"
	"time"
)

// Store is a key-value store with per-key expiry. Get returns core.ErrNotFound
// for absent or expired keys.
type Store interface {
	// SetNX stores value under key only if key is absent, as one atomic
	// operation. It reports whether this call wrote the key.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
	Close() error
}
