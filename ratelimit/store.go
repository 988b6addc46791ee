package ratelimit

import (
	"context"
	"time"
)

// Store is the TTL-capable key/value store backing the limiter. A store
// that cannot report remaining TTL returns a negative duration from TTL;
// the limiter degrades WaitSeconds to the full configured window in that
// case.
type Store interface {
	// Get returns the current counter value and whether the key exists.
	Get(ctx context.Context, key string) (int64, bool, error)
	// Set writes the counter with a fresh TTL.
	Set(ctx context.Context, key string, value int64, ttl time.Duration) error
	// Incr atomically increments the counter, creating it at 1 if absent.
	Incr(ctx context.Context, key string) (int64, error)
	// Expire re-arms the key's TTL without touching its value.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL reports the remaining lifetime of the key. Negative means the
	// store cannot tell (missing key or no expiry support).
	TTL(ctx context.Context, key string) (time.Duration, error)
}
