// Package cart holds the per-session shopping cart and its checkout state
// machine:
//
//	Idle --Checkout [valid]--> Processing --payment done--> Succeeded --> Idle (cart cleared)
//	Idle --Checkout [invalid]--> Idle (error returned, nothing changes)
package cart

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"SpiceStore/internal/catalog"
)

// Catalog resolves product ids to their current catalog entry.
type Catalog interface {
	Lookup(productID string) (catalog.Product, bool)
}

// Recorder receives every receipt of a successful checkout.
type Recorder interface {
	Record(ctx context.Context, r Receipt) error
}

type Deps struct {
	Catalog   Catalog
	Processor Processor
	Recorder  Recorder
	Sequence  *Sequence
	Log       *zap.Logger
	Metrics   *Metrics

	// SessionID is copied onto receipts.
	SessionID string

	// OnTransition is called with the controller lock held; it must not
	// call back into the controller.
	OnTransition func(from, to State)

	Now func() time.Time
}

// Controller is safe for concurrent use. The lock is not held while the
// payment step runs, so the cart stays editable during Processing.
type Controller struct {
	policy Policy
	deps   Deps

	mu       sync.Mutex
	lines    map[string]int
	state    State
	customer CustomerInfo
}

func NewController(policy Policy, deps Deps) *Controller {
	if deps.Catalog == nil {
		deps.Catalog = catalog.NewSnapshot(nil)
	}
	if deps.Processor == nil {
		deps.Processor = SimulatedProcessor{Delay: DefaultProcessingDelay}
	}
	if deps.Sequence == nil {
		deps.Sequence = NewSequence()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	return &Controller{
		policy: policy,
		deps:   deps,
		lines:  map[string]int{},
	}
}

func (c *Controller) Policy() Policy { return c.policy }

// Add increments the quantity of productID by one. The id is not checked
// against the catalog.
func (c *Controller) Add(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines[productID]++
}

// Remove decrements the quantity of productID, dropping the line at zero.
func (c *Controller) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	q, ok := c.lines[productID]
	if !ok {
		return
	}
	if q <= 1 {
		delete(c.lines, productID)
		return
	}
	c.lines[productID] = q - 1
}

// RemoveAll drops the line for productID whatever its quantity.
func (c *Controller) RemoveAll(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.lines, productID)
}

// Reset empties the cart and the customer info.
func (c *Controller) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return ErrCheckoutInProgress
	}
	c.lines = map[string]int{}
	c.customer = CustomerInfo{}
	return nil
}

func (c *Controller) Quantity(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[productID]
}

// Quantities returns a copy of the productID -> quantity map.
func (c *Controller) Quantities() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make(map[string]int, len(c.lines))
	for id, q := range c.lines {
		out[id] = q
	}
	return out
}

func (c *Controller) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalItemsLocked()
}

// TotalPrice sums catalog price times quantity using prices as of this call.
// Products missing from the catalog count as zero; Checkout reports them.
func (c *Controller) TotalPrice() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, total := c.priceLocked()
	return total
}

func (c *Controller) IsValidOrder() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalItemsLocked() >= c.policy.MinOrderQuantity
}

// ValidateCustomerInfo reports whether every required field of info is
// non-blank.
func (c *Controller) ValidateCustomerInfo(info CustomerInfo) bool {
	return len(c.policy.MissingFields(info)) == 0
}

func (c *Controller) SetCustomerInfo(info CustomerInfo) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.customer = info
}

func (c *Controller) CustomerInfo() CustomerInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.customer
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Lines returns the priced cart lines sorted by product id.
func (c *Controller) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, _ := c.priceLocked()
	return lines
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines, total := c.priceLocked()
	items := c.totalItemsLocked()

	return View{
		Portal:           c.policy.Portal,
		Lines:            lines,
		TotalItems:       items,
		TotalPrice:       total,
		MinOrderQuantity: c.policy.MinOrderQuantity,
		ValidOrder:       items >= c.policy.MinOrderQuantity,
		State:            c.state,
		Customer:         c.customer,
		MissingFields:    c.policy.MissingFields(c.customer),
	}
}

// Checkout validates the cart and customer info, runs the payment step and,
// on success, clears the cart and customer info and returns a receipt.
//
// Validation failures return *InvalidOrderError or *MissingFieldsError and
// leave everything untouched. A second Checkout while one is running fails
// with ErrCheckoutInProgress. Cancelling ctx does not interrupt a payment
// step that has started.
func (c *Controller) Checkout(ctx context.Context) (Receipt, error) {
	portal := c.policy.Portal

	c.mu.Lock()
	if c.state != Idle {
		c.mu.Unlock()
		c.deps.Metrics.checkout(portal, outcomeInProgress)
		return Receipt{}, ErrCheckoutInProgress
	}

	if have := c.totalItemsLocked(); have < c.policy.MinOrderQuantity {
		c.mu.Unlock()
		c.deps.Metrics.checkout(portal, outcomeInvalidOrder)
		return Receipt{}, &InvalidOrderError{Have: have, Min: c.policy.MinOrderQuantity}
	}

	if missing := c.policy.MissingFields(c.customer); len(missing) > 0 {
		c.mu.Unlock()
		c.deps.Metrics.checkout(portal, outcomeMissingFields)
		return Receipt{}, &MissingFieldsError{Fields: missing}
	}

	lines, total := c.priceLocked()
	charge := Charge{
		Portal:     portal,
		Lines:      lines,
		TotalItems: c.totalItemsLocked(),
		TotalPrice: total,
		Customer:   c.customer,
	}
	c.transitionLocked(Processing)
	c.mu.Unlock()

	for _, ln := range lines {
		if ln.Priced {
			continue
		}
		c.deps.Metrics.unpriced(portal)
		c.deps.Log.Warn("checkout line not in catalog, priced at zero",
			zap.String("portal", portal),
			zap.String("session_id", c.deps.SessionID),
			zap.String("product_id", ln.ProductID),
			zap.Int("quantity", ln.Quantity),
		)
	}

	// The payment step always runs to completion.
	pctx := context.WithoutCancel(ctx)

	start := c.deps.Now()
	err := c.deps.Processor.Process(pctx, charge)
	c.deps.Metrics.processed(portal, c.deps.Now().Sub(start))

	c.mu.Lock()
	if err != nil {
		c.transitionLocked(Idle)
		c.mu.Unlock()

		c.deps.Metrics.checkout(portal, outcomePaymentFailed)
		c.deps.Log.Warn("checkout payment failed", zap.Error(err), zap.String("portal", portal))
		return Receipt{}, fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	placed := c.deps.Now().UTC()
	receipt := Receipt{
		ID:         "o_" + uuid.NewString(),
		Number:     c.deps.Sequence.Next(placed),
		SessionID:  c.deps.SessionID,
		Portal:     portal,
		Lines:      charge.Lines,
		TotalItems: charge.TotalItems,
		TotalPrice: charge.TotalPrice,
		Customer:   charge.Customer,
		PlacedAt:   placed,
	}

	c.transitionLocked(Succeeded)
	c.lines = map[string]int{}
	c.customer = CustomerInfo{}
	c.mu.Unlock()

	if c.deps.Recorder != nil {
		if err := c.deps.Recorder.Record(pctx, receipt); err != nil {
			c.deps.Log.Error("record receipt failed", zap.Error(err), zap.String("order_id", receipt.ID))
		}
	}

	c.mu.Lock()
	c.transitionLocked(Idle)
	c.mu.Unlock()

	c.deps.Metrics.checkout(portal, outcomeSucceeded)
	c.deps.Log.Info("checkout succeeded",
		zap.String("portal", portal),
		zap.String("order_id", receipt.ID),
		zap.Int("total_items", receipt.TotalItems),
		zap.Int64("total_price", receipt.TotalPrice),
	)
	return receipt, nil
}

func (c *Controller) totalItemsLocked() int {
	n := 0
	for _, q := range c.lines {
		n += q
	}
	return n
}

func (c *Controller) priceLocked() ([]Line, int64) {
	lines := make([]Line, 0, len(c.lines))
	var total int64

	for id, q := range c.lines {
		ln := Line{ProductID: id, Quantity: q}

		if p, ok := c.deps.Catalog.Lookup(id); ok {
			ln.Title = p.Title
			ln.UnitPrice = p.Price
			ln.Subtotal = p.Price * int64(q)
			ln.Priced = true
		}

		total += ln.Subtotal
		lines = append(lines, ln)
	}

	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines, total
}

func (c *Controller) transitionLocked(to State) {
	from := c.state
	c.state = to
	if c.deps.OnTransition != nil {
		c.deps.OnTransition(from, to)
	}
}
