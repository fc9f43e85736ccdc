package order

import (
	"context"

	"SpiceStore/internal/cart"
)

type Store interface {
	Create(ctx context.Context, r cart.Receipt) error
	Get(ctx context.Context, id string) (cart.Receipt, bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]cart.Receipt, error)
	Ping(ctx context.Context) error
}
