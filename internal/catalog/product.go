package catalog

import (
	"sort"
	"sync/atomic"
)

const (
	PortalRetail    = "retail"
	PortalWholesale = "wholesale"
)

type Product struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Description  string `json:"description,omitempty"`
	Price        int64  `json:"price"`
	InStock      bool   `json:"in_stock"`
	PiecesPerBox int    `json:"pieces_per_box,omitempty"`
}

// KnownPortal reports whether p names one of the storefront portals.
func KnownPortal(p string) bool {
	return p == PortalRetail || p == PortalWholesale
}

// Seed returns the built-in product list for a portal. Retail prices are in
// RWF per item, wholesale prices are per box. Unknown portals get nil.
func Seed(portal string) []Product {
	switch portal {
	case PortalRetail:
		return []Product{
			{ID: "1", Title: "Premium Black Pepper", Description: "High-quality black pepper sourced from the finest farms in Rwanda", Price: 15000, InStock: true},
			{ID: "2", Title: "Organic Cinnamon", Description: "Pure organic cinnamon from Rwanda's highlands", Price: 18000, InStock: true},
			{ID: "3", Title: "Gourmet Nutmeg", Description: "Premium nutmeg from Rwanda's fertile valleys", Price: 22000, InStock: true},
			{ID: "4", Title: "Cardamom Supreme", Description: "Elite cardamom from Rwanda's volcanic soil", Price: 28000, InStock: true},
			{ID: "5", Title: "Saffron Gold", Description: "Premium saffron from Rwanda's high-altitude farms", Price: 55000, InStock: true},
		}
	case PortalWholesale:
		return []Product{
			{ID: "1", Title: "Premium Black Pepper", Description: "High-quality black pepper from India", Price: 120, InStock: true, PiecesPerBox: 24},
			{ID: "2", Title: "Organic Cinnamon", Description: "Pure organic cinnamon from Sri Lanka", Price: 150, InStock: true, PiecesPerBox: 24},
			{ID: "3", Title: "Gourmet Nutmeg", Description: "Premium nutmeg from Indonesia", Price: 180, InStock: true, PiecesPerBox: 24},
			{ID: "4", Title: "Cardamom Supreme", Description: "Elite cardamom from Guatemala", Price: 200, InStock: true, PiecesPerBox: 24},
			{ID: "5", Title: "Saffron Gold", Description: "Premium saffron from Iran", Price: 450, InStock: true, PiecesPerBox: 24},
		}
	default:
		return nil
	}
}

// Snapshot is an immutable id -> product view. Build it with NewSnapshot.
type Snapshot struct {
	byID  map[string]Product
	items []Product
}

func NewSnapshot(products []Product) *Snapshot {
	s := &Snapshot{
		byID:  make(map[string]Product, len(products)),
		items: make([]Product, 0, len(products)),
	}
	for _, p := range products {
		if _, dup := s.byID[p.ID]; dup {
			continue
		}
		s.byID[p.ID] = p
		s.items = append(s.items, p)
	}
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].ID < s.items[j].ID })
	return s
}

func (s *Snapshot) Lookup(id string) (Product, bool) {
	p, ok := s.byID[id]
	return p, ok
}

// List returns a copy sorted by id.
func (s *Snapshot) List() []Product {
	out := make([]Product, len(s.items))
	copy(out, s.items)
	return out
}

func (s *Snapshot) Len() int { return len(s.items) }

// Live serves lookups from whatever snapshot was stored last, so a refreshed
// catalog is visible to readers without any locking on their side.
type Live struct {
	cur atomic.Pointer[Snapshot]
}

func NewLive(s *Snapshot) *Live {
	l := &Live{}
	l.Replace(s)
	return l
}

func (l *Live) Replace(s *Snapshot) {
	if s == nil {
		s = NewSnapshot(nil)
	}
	l.cur.Store(s)
}

func (l *Live) Snapshot() *Snapshot { return l.cur.Load() }

func (l *Live) Lookup(id string) (Product, bool) {
	return l.cur.Load().Lookup(id)
}
