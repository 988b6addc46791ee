package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Config controls the sliding request window applied per credential
// identity. Disabled limiters allow everything and record nothing.
type Config struct {
	Enabled     bool
	MaxRequests int64
	Window      time.Duration
}

// RateLimitError is raised when the window budget is exhausted. The caller
// decides whether to retry; the limiter never does.
type RateLimitError struct {
	WaitSeconds int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("processor request limit reached, try again in %d seconds", e.WaitSeconds)
}

// Limiter counts processor requests per credential identity in a TTL
// window. Every attempt counts toward the budget, successful or not, so
// callers must pair Allow with Record on each request.
type Limiter struct {
	store  Store
	config Config
}

func NewLimiter(store Store, config Config) *Limiter {
	return &Limiter{store: store, config: config}
}

// Key derives the window key from the credential identity. Only a hash of
// the API user ever reaches the store.
func Key(apiUser string) string {
	sum := sha256.Sum256([]byte(apiUser))
	return "rate_limit:processor:" + hex.EncodeToString(sum[:])[:16]
}

// Allow reports whether a request for the identity may proceed. A missing
// window always allows.
func (l *Limiter) Allow(ctx context.Context, identity string) (bool, error) {
	if !l.config.Enabled {
		return true, nil
	}

	count, ok, err := l.store.Get(ctx, Key(identity))
	if err != nil {
		return false, fmt.Errorf("rate limit read failed: %v", err)
	}
	if !ok {
		return true, nil
	}
	return count < l.config.MaxRequests, nil
}

// Record counts one attempt against the identity's active window. The
// first attempt opens a window with the full TTL; later attempts re-apply
// the remaining TTL so traffic never extends the window.
func (l *Limiter) Record(ctx context.Context, identity string) error {
	if !l.config.Enabled {
		return nil
	}

	key := Key(identity)

	_, ok, err := l.store.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit read failed: %v", err)
	}
	if !ok {
		if err := l.store.Set(ctx, key, 1, l.config.Window); err != nil {
			return fmt.Errorf("rate limit write failed: %v", err)
		}
		return nil
	}

	remaining, err := l.store.TTL(ctx, key)
	if err != nil {
		return fmt.Errorf("rate limit ttl read failed: %v", err)
	}

	if _, err := l.store.Incr(ctx, key); err != nil {
		return fmt.Errorf("rate limit increment failed: %v", err)
	}

	if remaining > 0 {
		if err := l.store.Expire(ctx, key, remaining); err != nil {
			return fmt.Errorf("rate limit expire failed: %v", err)
		}
	}
	return nil
}

// WaitSeconds reports how long a caller must wait before the active window
// expires. A store that cannot report TTL degrades to the full configured
// window, never zero.
func (l *Limiter) WaitSeconds(ctx context.Context, identity string) (int, error) {
	if !l.config.Enabled {
		return 0, nil
	}

	remaining, err := l.store.TTL(ctx, Key(identity))
	if err != nil {
		return int(l.config.Window.Seconds()), fmt.Errorf("rate limit ttl read failed: %v", err)
	}
	if remaining <= 0 {
		return int(l.config.Window.Seconds()), nil
	}

	secs := int(math.Ceil(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return secs, nil
}
