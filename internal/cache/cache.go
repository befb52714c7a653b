package cache

import (
	"context"
	"time"
)

// Cache is the shared TTL key-value store used for profile memoization and
// daily usage counters.
type Cache interface {
	// Get returns the stored value, or "" with a nil error when the key does not exist.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	// IncrWithExpiry atomically increments an integer key and returns the new value.
	// A key created by this call, or found without an expiry, gets the given TTL
	// inside the same atomic step.
	IncrWithExpiry(ctx context.Context, key string, expiration time.Duration) (int64, error)
	Close() error
}
