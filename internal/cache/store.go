// Package cache implements the TTL cache layer: a byte-oriented Store
// abstraction with Redis and in-memory backends, and a namespaced Cache
// service on top for listings, computed results, and job state.
package cache

import (
	"context"
	"time"
)

// Store is a TTL key-value store. Implementations must treat an expired
// key exactly like a missing one.
type Store interface {
	// Get returns the value for key, or found=false on a miss.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key with the given TTL. ttl must be > 0.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key and reports whether it existed. Deleting a
	// missing key is not an error.
	Delete(ctx context.Context, key string) (existed bool, err error)

	// DeletePrefix removes every key starting with prefix and returns the
	// number of keys removed.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	// TTL returns the remaining lifetime of key, or 0 when the key is
	// missing or expired.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Close releases backend resources.
	Close() error
}
