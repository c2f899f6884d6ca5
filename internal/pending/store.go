// Package pending tracks payments between initiation and the provider
// callback. Entries live in process memory under a TTL; the durable store
// is the fallback once an entry has expired or been reconciled.
package pending

import (
	"context"
	"sync"
	"time"

	"mpesa-payment-gateway/internal/model"
	"mpesa-payment-gateway/pkg/logger"
)

type entry struct {
	payment   model.PendingPayment
	createdAt time.Time
}

// Store is the in-memory, TTL-bounded pending payment map
type Store struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	log     *logger.Logger
	now     func() time.Time
}

// NewStore creates a pending payment store with the given TTL
func NewStore(ttl time.Duration, log *logger.Logger) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		log:     log,
		now:     time.Now,
	}
}

// SetClock overrides the store's clock. Tests drive expiry with it.
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Add inserts a payment under key, overwriting any existing entry
func (s *Store) Add(key string, payment model.PendingPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	payment.CreatedAt = now
	s.entries[key] = entry{payment: payment, createdAt: now}
}

// Get returns the live entry for key. A found-but-expired entry is deleted
// and reported as absent.
func (s *Store) Get(key string) (model.PendingPayment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok {
		return model.PendingPayment{}, false
	}
	if s.now().Sub(e.createdAt) >= s.ttl {
		delete(s.entries, key)
		return model.PendingPayment{}, false
	}
	return e.payment, true
}

// Remove deletes the entry for key. Idempotent.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

// Update mutates the entry for key if it is still live. A removed or
// expired entry is never resurrected.
func (s *Store) Update(key string, apply func(*model.PendingPayment)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[key]
	if !ok || s.now().Sub(e.createdAt) >= s.ttl {
		return
	}
	apply(&e.payment)
	s.entries[key] = e
}

// Count returns the number of tracked entries, expired or not
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Sweep deletes all expired entries and returns how many were removed
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, e := range s.entries {
		if now.Sub(e.createdAt) >= s.ttl {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps expired entries on the given interval until ctx is done.
// Bounds memory growth from callbacks that never arrive.
func (s *Store) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.Sweep(); removed > 0 {
				s.log.Info("Swept expired pending payments", "count", removed)
			}
		}
	}
}
