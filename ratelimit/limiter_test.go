package ratelimit

import (
	"context"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLimiter(clock *fakeClock, max int64, window time.Duration) (*Limiter, *MemoryStore) {
	store := NewMemoryStore(clock.Now)
	limiter := NewLimiter(store, Config{Enabled: true, MaxRequests: max, Window: window})
	return limiter, store
}

func TestLimiterAllowsUpToBudget(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, _ := newTestLimiter(clock, 3, 10*time.Minute)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "api-user")
		if err != nil {
			t.Fatalf("Allow returned error on attempt %d: %v", i+1, err)
		}
		if !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
		if err := limiter.Record(ctx, "api-user"); err != nil {
			t.Fatalf("Record returned error on attempt %d: %v", i+1, err)
		}
	}

	allowed, err := limiter.Allow(ctx, "api-user")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if allowed {
		t.Fatalf("attempt past the budget should be denied")
	}
}

func TestLimiterMissingWindowAllows(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, _ := newTestLimiter(clock, 1, time.Minute)

	allowed, err := limiter.Allow(ctx, "fresh-user")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !allowed {
		t.Fatalf("a fresh identity with no window must be allowed")
	}
}

func TestLimiterWindowExpiryResetsBudget(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, _ := newTestLimiter(clock, 1, time.Minute)

	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	if allowed, _ := limiter.Allow(ctx, "api-user"); allowed {
		t.Fatalf("budget of 1 should be exhausted")
	}

	clock.Advance(61 * time.Second)

	allowed, err := limiter.Allow(ctx, "api-user")
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !allowed {
		t.Fatalf("expired window should reset the budget")
	}
}

func TestRecordNeverExtendsWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, store := newTestLimiter(clock, 100, time.Minute)

	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	clock.Advance(40 * time.Second)
	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("second Record returned error: %v", err)
	}

	remaining, err := store.TTL(ctx, Key("api-user"))
	if err != nil {
		t.Fatalf("TTL returned error: %v", err)
	}
	if remaining > 20*time.Second {
		t.Fatalf("recording must not extend the window, got remaining %v", remaining)
	}
	if remaining <= 0 {
		t.Fatalf("window should still be open, got remaining %v", remaining)
	}
}

func TestWaitSecondsReflectsRemainingWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, _ := newTestLimiter(clock, 1, time.Minute)

	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	clock.Advance(45 * time.Second)

	secs, err := limiter.WaitSeconds(ctx, "api-user")
	if err != nil {
		t.Fatalf("WaitSeconds returned error: %v", err)
	}
	if secs != 15 {
		t.Fatalf("expected 15 seconds remaining, got %d", secs)
	}
}

func TestWaitSecondsDegradesToFullWindow(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	store := NewMemoryStore(clock.Now)
	store.ReportTTL = false
	limiter := NewLimiter(store, Config{Enabled: true, MaxRequests: 1, Window: 10 * time.Minute})

	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}

	secs, err := limiter.WaitSeconds(ctx, "api-user")
	if err != nil {
		t.Fatalf("WaitSeconds returned error: %v", err)
	}
	if secs != 600 {
		t.Fatalf("unreadable TTL must degrade to the full window, got %d", secs)
	}
}

func TestWaitSecondsNeverZero(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	limiter, _ := newTestLimiter(clock, 1, time.Minute)

	if err := limiter.Record(ctx, "api-user"); err != nil {
		t.Fatalf("Record returned error: %v", err)
	}
	clock.Advance(59*time.Second + 900*time.Millisecond)

	secs, err := limiter.WaitSeconds(ctx, "api-user")
	if err != nil {
		t.Fatalf("WaitSeconds returned error: %v", err)
	}
	if secs < 1 {
		t.Fatalf("wait must never report less than 1 second, got %d", secs)
	}
}

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(nil)
	limiter := NewLimiter(store, Config{Enabled: false, MaxRequests: 1, Window: time.Minute})

	for i := 0; i < 10; i++ {
		allowed, err := limiter.Allow(ctx, "api-user")
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !allowed {
			t.Fatalf("disabled limiter must always allow")
		}
		if err := limiter.Record(ctx, "api-user"); err != nil {
			t.Fatalf("Record returned error: %v", err)
		}
	}

	if _, ok, _ := store.Get(ctx, Key("api-user")); ok {
		t.Fatalf("disabled limiter must not write to the store")
	}
}

func TestKeyHidesCredential(t *testing.T) {
	key := Key("merchant-api-user")
	if len(key) != len("rate_limit:processor:")+16 {
		t.Fatalf("unexpected key shape: %q", key)
	}
	for i := len("rate_limit:processor:"); i < len(key); i++ {
		c := key[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Fatalf("key suffix must be lowercase hex, got %q", key)
		}
	}
	if key == "rate_limit:processor:merchant-api-us" {
		t.Fatalf("key must not embed the raw credential")
	}
}
