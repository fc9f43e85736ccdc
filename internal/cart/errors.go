package cart

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidOrder         = errors.New("order below minimum quantity")
	ErrMissingRequiredField = errors.New("missing required customer field")
	ErrCheckoutInProgress   = errors.New("checkout already in progress")
	ErrPaymentFailed        = errors.New("payment failed")
)

// InvalidOrderError is returned by Checkout when the cart holds fewer items
// than the policy minimum.
type InvalidOrderError struct {
	Have int
	Min  int
}

func (e *InvalidOrderError) Error() string {
	return fmt.Sprintf("minimum order is %d items, cart has %d", e.Min, e.Have)
}

func (e *InvalidOrderError) Unwrap() error { return ErrInvalidOrder }

// MissingFieldsError lists the required customer fields that were empty.
type MissingFieldsError struct {
	Fields []string
}

func (e *MissingFieldsError) Error() string {
	return "please fill in all required fields: " + strings.Join(e.Fields, ", ")
}

func (e *MissingFieldsError) Unwrap() error { return ErrMissingRequiredField }
