package catalog

import (
	"context"
	"sync"
)

type MemStore struct {
	mu sync.RWMutex
	m  map[string]*Snapshot
}

// NewMemStore returns a store seeded with both portals' products.
func NewMemStore() *MemStore {
	s := &MemStore{m: map[string]*Snapshot{}}
	s.m[PortalRetail] = NewSnapshot(Seed(PortalRetail))
	s.m[PortalWholesale] = NewSnapshot(Seed(PortalWholesale))
	return s
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

// Put replaces a portal's product list.
func (s *MemStore) Put(portal string, products []Product) {
	snap := NewSnapshot(products)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[portal] = snap
}

func (s *MemStore) ListSortedByID(ctx context.Context, portal string) ([]Product, error) {
	s.mu.RLock()
	snap, ok := s.m[portal]
	s.mu.RUnlock()

	if !ok {
		return []Product{}, nil
	}
	return snap.List(), nil
}

func (s *MemStore) Get(ctx context.Context, portal, id string) (Product, bool, error) {
	s.mu.RLock()
	snap, ok := s.m[portal]
	s.mu.RUnlock()

	if !ok {
		return Product{}, false, nil
	}
	p, found := snap.Lookup(id)
	return p, found, nil
}
