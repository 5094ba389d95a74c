package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process CounterStore for tests and single-instance
// deployments. Multi-instance deployments need the Redis store so all
// instances share one budget.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*memoryCounter
}

type memoryCounter struct {
	value     int64
	expiresAt time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*memoryCounter)}
}

// Incr atomically increments the counter, creating it with the expiry on
// first use. Expired counters are dropped lazily.
func (s *MemoryStore) Incr(_ context.Context, key string, expiry time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	counter, ok := s.counters[key]
	if !ok || now.After(counter.expiresAt) {
		counter = &memoryCounter{expiresAt: now.Add(expiry)}
		s.counters[key] = counter

		// Drop other expired buckets while holding the lock.
		for existing, c := range s.counters {
			if existing != key && now.After(c.expiresAt) {
				delete(s.counters, existing)
			}
		}
	}

	counter.value++

	return counter.value, nil
}
