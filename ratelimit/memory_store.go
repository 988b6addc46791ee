package ratelimit

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is a process-local Store for single-instance deployments and
// tests. The clock is injectable so window expiry can be driven
// deterministically.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time

	// ReportTTL set to false simulates a cache that cannot report
	// remaining TTL.
	ReportTTL bool
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		entries:   make(map[string]memoryEntry),
		now:       now,
		ReportTTL: true,
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key)
	if !ok {
		return 0, false, nil
	}
	return entry.count, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = memoryEntry{count: value, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key)
	if !ok {
		// Mirrors redis INCR: a missing key starts at 1 with no expiry
		// until Expire is called.
		s.entries[key] = memoryEntry{count: 1}
		return 1, nil
	}
	entry.count++
	s.entries[key] = entry
	return entry.count, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.liveEntry(key)
	if !ok {
		return nil
	}
	entry.expiresAt = s.now().Add(ttl)
	s.entries[key] = entry
	return nil
}

func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ReportTTL {
		return -1, nil
	}
	entry, ok := s.liveEntry(key)
	if !ok || entry.expiresAt.IsZero() {
		return -1, nil
	}
	return entry.expiresAt.Sub(s.now()), nil
}

// liveEntry returns the entry for key, evicting it first if expired.
// Callers must hold the mutex.
func (s *MemoryStore) liveEntry(key string) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && !entry.expiresAt.After(s.now()) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}
