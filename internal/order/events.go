package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"SpiceStore/internal/cart"
)

const PlacedSubject = "orders.placed"

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type PlacedEvent struct {
	OrderID    string    `json:"order_id"`
	Number     string    `json:"number"`
	SessionID  string    `json:"session_id"`
	Portal     string    `json:"portal"`
	TotalItems int       `json:"total_items"`
	TotalPrice int64     `json:"total_price"`
	PlacedAt   time.Time `json:"placed_at"`
}

func NewPlacedEvent(r cart.Receipt) PlacedEvent {
	return PlacedEvent{
		OrderID:    r.ID,
		Number:     r.Number,
		SessionID:  r.SessionID,
		Portal:     r.Portal,
		TotalItems: r.TotalItems,
		TotalPrice: r.TotalPrice,
		PlacedAt:   r.PlacedAt,
	}
}

func (e PlacedEvent) Subject() string { return PlacedSubject }

func (e PlacedEvent) Payload() ([]byte, error) { return json.Marshal(e) }

// NatsPublisher publishes on a core NATS connection and flushes so the
// server has the message before Publish returns.
type NatsPublisher struct {
	nc *nats.Conn
}

func NewNatsPublisher(nc *nats.Conn) *NatsPublisher {
	return &NatsPublisher{nc: nc}
}

func (p *NatsPublisher) Publish(ctx context.Context, e Event) error {
	data, err := e.Payload()
	if err != nil {
		return fmt.Errorf("failed to get event payload: %w", err)
	}
	if err := p.nc.Publish(e.Subject(), data); err != nil {
		return err
	}
	return p.nc.FlushWithContext(ctx)
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
