package order

import (
	"context"
	"sort"
	"sync"

	"SpiceStore/internal/cart"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]cart.Receipt
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string]cart.Receipt{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Create(ctx context.Context, r cart.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[r.ID] = r
	return nil
}

func (s *MemStore) Get(ctx context.Context, id string) (cart.Receipt, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.m[id]
	return r, ok, nil
}

func (s *MemStore) ListBySession(ctx context.Context, sessionID string) ([]cart.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]cart.Receipt, 0, 4)
	for _, r := range s.m {
		if r.SessionID == sessionID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PlacedAt.Before(out[j].PlacedAt) })
	return out, nil
}
