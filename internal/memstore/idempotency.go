package memstore

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-ecom-orders/internal/orders"
)

// Idempotency implements orders.IdempotencyStore for a single process.
// Records never expire.
type Idempotency struct {
	mu   sync.Mutex
	keys map[string]orders.IdempotencyRecord
}

var _ orders.IdempotencyStore = (*Idempotency)(nil)

func NewIdempotency() *Idempotency {
	return &Idempotency{keys: make(map[string]orders.IdempotencyRecord)}
}

func (s *Idempotency) Claim(_ context.Context, key string, rec orders.IdempotencyRecord) (orders.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.keys[key]; ok {
		return cur, false, nil
	}
	s.keys[key] = rec
	return rec, true, nil
}

func (s *Idempotency) Reclaim(_ context.Context, key string, old, next orders.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.keys[key]; !ok || cur != old {
		return false, nil
	}
	s.keys[key] = next
	return true, nil
}

func (s *Idempotency) Complete(_ context.Context, key string, rec orders.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[key] = rec
	return nil
}

func (s *Idempotency) Release(_ context.Context, key string, rec orders.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.keys[key]; ok && cur == rec {
		delete(s.keys, key)
	}
	return nil
}

// Record returns what key currently holds.
func (s *Idempotency) Record(key string) (orders.IdempotencyRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.keys[key]
	return rec, ok
}
