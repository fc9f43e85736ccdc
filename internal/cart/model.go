package cart

import (
	"fmt"
	"strings"
	"time"
)

type State int

const (
	Idle State = iota
	Processing
	Succeeded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Processing:
		return "processing"
	case Succeeded:
		return "succeeded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *State) UnmarshalText(b []byte) error {
	switch string(b) {
	case "idle":
		*s = Idle
	case "processing":
		*s = Processing
	case "succeeded":
		*s = Succeeded
	default:
		return fmt.Errorf("unknown checkout state %q", b)
	}
	return nil
}

// Customer field names usable in Policy.RequiredFields.
const (
	FieldName       = "name"
	FieldEmail      = "email"
	FieldPhone      = "phone"
	FieldAddress    = "address"
	FieldCity       = "city"
	FieldPostalCode = "postal_code"
)

type CustomerInfo struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

// Field returns the value of the named field; ok is false for unknown names.
func (c CustomerInfo) Field(name string) (value string, ok bool) {
	switch name {
	case FieldName:
		return c.Name, true
	case FieldEmail:
		return c.Email, true
	case FieldPhone:
		return c.Phone, true
	case FieldAddress:
		return c.Address, true
	case FieldCity:
		return c.City, true
	case FieldPostalCode:
		return c.PostalCode, true
	default:
		return "", false
	}
}

func KnownField(name string) bool {
	_, ok := CustomerInfo{}.Field(name)
	return ok
}

// Policy is the per-portal order rule set.
type Policy struct {
	Portal           string
	MinOrderQuantity int
	RequiredFields   []string
}

func (p Policy) Validate() error {
	if p.MinOrderQuantity < 0 {
		return fmt.Errorf("min order quantity must be >= 0, got %d", p.MinOrderQuantity)
	}
	for _, f := range p.RequiredFields {
		if !KnownField(f) {
			return fmt.Errorf("unknown required customer field %q", f)
		}
	}
	return nil
}

// MissingFields returns the required fields of info that are blank, in
// policy order.
func (p Policy) MissingFields(info CustomerInfo) []string {
	var missing []string
	for _, f := range p.RequiredFields {
		v, ok := info.Field(f)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

type Line struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
	Subtotal  int64  `json:"subtotal"`
	Priced    bool   `json:"priced"`
}

// View is a consistent read of a cart for rendering.
type View struct {
	Portal           string       `json:"portal"`
	Lines            []Line       `json:"lines"`
	TotalItems       int          `json:"total_items"`
	TotalPrice       int64        `json:"total_price"`
	MinOrderQuantity int          `json:"min_order_quantity"`
	ValidOrder       bool         `json:"valid_order"`
	State            State        `json:"checkout_state"`
	Customer         CustomerInfo `json:"customer"`
	MissingFields    []string     `json:"missing_fields,omitempty"`
}

// Charge is what gets handed to the payment step.
type Charge struct {
	Portal     string
	Lines      []Line
	TotalItems int
	TotalPrice int64
	Customer   CustomerInfo
}

// Receipt is returned by a successful Checkout.
type Receipt struct {
	ID         string       `json:"id"`
	Number     string       `json:"number"`
	SessionID  string       `json:"session_id,omitempty"`
	Portal     string       `json:"portal"`
	Lines      []Line       `json:"lines"`
	TotalItems int          `json:"total_items"`
	TotalPrice int64        `json:"total_price"`
	Customer   CustomerInfo `json:"customer"`
	PlacedAt   time.Time    `json:"placed_at"`
}
