package cart

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultProcessingDelay is how long the simulated payment takes.
const DefaultProcessingDelay = 2 * time.Second

// Processor performs the payment step of a checkout. Returning an error
// aborts the checkout and leaves the cart as it was.
type Processor interface {
	Process(ctx context.Context, c Charge) error
}

// SimulatedProcessor waits for Delay and always succeeds.
type SimulatedProcessor struct {
	Delay time.Duration
}

func (p SimulatedProcessor) Process(ctx context.Context, _ Charge) error {
	if p.Delay <= 0 {
		return nil
	}

	t := time.NewTimer(p.Delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, c Charge) error

func (f ProcessorFunc) Process(ctx context.Context, c Charge) error { return f(ctx, c) }

// Sequence hands out order numbers of the form ORD-YYYYMMDD-NNNN. One
// Sequence is shared by every controller of a process.
type Sequence struct {
	n atomic.Int64
}

func NewSequence() *Sequence { return &Sequence{} }

func (s *Sequence) Next(t time.Time) string {
	return fmt.Sprintf("ORD-%s-%04d", t.UTC().Format("20060102"), s.n.Add(1))
}
