package order

import (
	"context"
	"time"

	"go.uber.org/zap"

	"SpiceStore/internal/cart"
)

const publishTimeout = 2 * time.Second

// Ledger records receipts of successful checkouts: it stores them and then
// announces them. A failed publish is logged; the receipt stays stored.
type Ledger struct {
	Store     Store
	Publisher Publisher
	Log       *zap.Logger
}

func (l *Ledger) Record(ctx context.Context, r cart.Receipt) error {
	if err := l.Store.Create(ctx, r); err != nil {
		return err
	}

	if l.Publisher == nil {
		return nil
	}

	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := l.Publisher.Publish(pctx, NewPlacedEvent(r)); err != nil && l.Log != nil {
		l.Log.Warn("publish order placed failed", zap.Error(err), zap.String("order_id", r.ID))
	}
	return nil
}
