package order

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"SpiceStore/internal/cart"
)

type fakePublisher struct {
	events []Event
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, e Event) error {
	f.events = append(f.events, e)
	return f.err
}

func testReceipt(id, session string, at time.Time) cart.Receipt {
	return cart.Receipt{
		ID:         id,
		Number:     "ORD-20260101-0001",
		SessionID:  session,
		Portal:     "retail",
		Lines:      []cart.Line{{ProductID: "1", Quantity: 3, UnitPrice: 15000, Subtotal: 45000, Priced: true}},
		TotalItems: 3,
		TotalPrice: 45000,
		PlacedAt:   at,
	}
}

func TestLedgerStoresAndPublishes(t *testing.T) {
	store := NewMemStore()
	pub := &fakePublisher{}
	l := &Ledger{Store: store, Publisher: pub, Log: zap.NewNop()}

	r := testReceipt("o_1", "s_1", time.Now().UTC())
	if err := l.Record(context.Background(), r); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, ok, err := store.Get(context.Background(), "o_1")
	if err != nil || !ok {
		t.Fatalf("get ok=%v err=%v", ok, err)
	}
	if got.TotalPrice != 45000 {
		t.Fatalf("total=%d want=45000", got.TotalPrice)
	}

	if len(pub.events) != 1 {
		t.Fatalf("events=%d want=1", len(pub.events))
	}
	if pub.events[0].Subject() != PlacedSubject {
		t.Fatalf("subject=%s", pub.events[0].Subject())
	}

	raw, err := pub.events[0].Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	var ev PlacedEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.OrderID != "o_1" || ev.SessionID != "s_1" || ev.TotalItems != 3 {
		t.Fatalf("event=%+v", ev)
	}
}

func TestLedgerPublishFailureIsNotFatal(t *testing.T) {
	store := NewMemStore()
	l := &Ledger{Store: store, Publisher: &fakePublisher{err: errors.New("nats down")}, Log: zap.NewNop()}

	if err := l.Record(context.Background(), testReceipt("o_1", "s_1", time.Now())); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, ok, _ := store.Get(context.Background(), "o_1"); !ok {
		t.Fatalf("receipt not stored")
	}
}

func TestMemStoreListBySession(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = s.Create(ctx, testReceipt("o_2", "s_1", base.Add(time.Minute)))
	_ = s.Create(ctx, testReceipt("o_1", "s_1", base))
	_ = s.Create(ctx, testReceipt("o_3", "s_2", base))

	got, err := s.ListBySession(ctx, "s_1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 || got[0].ID != "o_1" || got[1].ID != "o_2" {
		t.Fatalf("got=%v", got)
	}
}
