package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SpiceStore/internal/cart"
)

var (
	ErrUnknownPortal = errors.New("unknown portal")
	ErrNotFound      = errors.New("session not found")
)

// Factory builds the controller for a new session.
type Factory func(sessionID, portal string) (*cart.Controller, error)

type Session struct {
	ID     string
	Portal string
	Cart   *cart.Controller

	lastSeen time.Time
}

// Registry maps session ids to their carts. Every session owns its own
// controller; nothing is shared between sessions.
type Registry struct {
	New Factory
	Log *zap.Logger
	Now func() time.Time

	mu sync.Mutex
	m  map[string]*Session
}

func NewRegistry(f Factory, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{New: f, Log: log, Now: time.Now, m: map[string]*Session{}}
}

func (r *Registry) Open(portal string) (*Session, error) {
	id := "s_" + uuid.NewString()

	c, err := r.New(id, portal)
	if err != nil {
		return nil, err
	}

	s := &Session{ID: id, Portal: portal, Cart: c, lastSeen: r.Now()}

	r.mu.Lock()
	r.m[id] = s
	r.mu.Unlock()

	r.Log.Debug("session opened", zap.String("session_id", id), zap.String("portal", portal))
	return s, nil
}

// Get returns the session and marks it as active.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.m[id]
	if !ok {
		return nil, ErrNotFound
	}
	s.lastSeen = r.Now()
	return s, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}

// Sweep drops sessions idle for longer than maxIdle. Sessions with a
// checkout in flight are kept.
func (r *Registry) Sweep(now time.Time, maxIdle time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, s := range r.m {
		if now.Sub(s.lastSeen) <= maxIdle || s.Cart.State() != cart.Idle {
			continue
		}
		delete(r.m, id)
		n++
	}
	return n
}

func (r *Registry) Run(ctx context.Context, interval, maxIdle time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(r.Now(), maxIdle); n > 0 {
				r.Log.Info("expired idle sessions", zap.Int("count", n))
			}
		}
	}
}
