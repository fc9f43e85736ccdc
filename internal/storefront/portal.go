package storefront

import (
	"SpiceStore/internal/cart"
	"SpiceStore/internal/session"
)

// Portal bundles what a new cart of one portal is built from.
type Portal struct {
	Policy    cart.Policy
	Catalog   cart.Catalog
	Processor cart.Processor
}

// NewFactory returns a session.Factory building controllers for the given
// portals. Fields of shared left unset are filled per portal and session.
func NewFactory(portals map[string]Portal, shared cart.Deps) session.Factory {
	return func(sessionID, portal string) (*cart.Controller, error) {
		p, ok := portals[portal]
		if !ok {
			return nil, session.ErrUnknownPortal
		}

		deps := shared
		deps.SessionID = sessionID
		deps.Catalog = p.Catalog
		deps.Processor = p.Processor
		return cart.NewController(p.Policy, deps), nil
	}
}
