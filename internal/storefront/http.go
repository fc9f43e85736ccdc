package storefront

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"SpiceStore/internal/cart"
	"SpiceStore/internal/order"
	"SpiceStore/internal/session"
	"SpiceStore/pkg/kit"
)

type Server struct {
	Sessions *session.Registry
	Tokens   *session.TokenMaker
	Portals  map[string]Portal
	Orders   order.Store
	Log      *zap.Logger

	validate *validator.Validate
}

type openSessionReq struct {
	Portal string `json:"portal" validate:"required"`
}

type openSessionResp struct {
	SessionID string `json:"session_id"`
	Token     string `json:"token"`
	Portal    string `json:"portal"`
}

type customerReq struct {
	Name       string `json:"name" validate:"max=120"`
	Email      string `json:"email" validate:"omitempty,email,max=254"`
	Phone      string `json:"phone" validate:"omitempty,max=32"`
	Address    string `json:"address" validate:"max=240"`
	City       string `json:"city" validate:"max=120"`
	PostalCode string `json:"postal_code" validate:"max=16"`
}

func (c customerReq) info() cart.CustomerInfo {
	return cart.CustomerInfo{
		Name:       strings.TrimSpace(c.Name),
		Email:      strings.TrimSpace(c.Email),
		Phone:      strings.TrimSpace(c.Phone),
		Address:    strings.TrimSpace(c.Address),
		City:       strings.TrimSpace(c.City),
		PostalCode: strings.TrimSpace(c.PostalCode),
	}
}

func (s *Server) Routes() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	s.validate = newValidator()

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()

		if err := s.Orders.Ping(ctx); err != nil {
			s.Log.Warn("readyz failed", zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Post("/sessions", s.openSession)

	r.Group(func(pr chi.Router) {
		pr.Use(RequireSession(s.Tokens, s.Sessions))

		pr.Get("/cart", s.getCart)
		pr.Delete("/cart", s.resetCart)
		pr.Post("/cart/items/{id}", s.addItem)
		pr.Delete("/cart/items/{id}", s.removeItem)
		pr.Delete("/cart/items/{id}/all", s.removeAll)
		pr.Put("/cart/customer", s.setCustomer)
		pr.Post("/cart/checkout", s.checkout)

		pr.Get("/orders", s.listOrders)
		pr.Get("/orders/{id}", s.getOrder)
	})

	return r
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid request", fieldErrors(err))
		return
	}

	sess, err := s.Sessions.Open(req.Portal)
	if errors.Is(err, session.ErrUnknownPortal) {
		kit.WriteError(w, r, http.StatusBadRequest, "unknown portal", map[string]any{"portal": req.Portal})
		return
	}
	if err != nil {
		s.Log.Error("open session failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	tok, err := s.Tokens.New(sess.ID, sess.Portal)
	if err != nil {
		s.Log.Error("sign session token failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, openSessionResp{SessionID: sess.ID, Token: tok, Portal: sess.Portal})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) resetCart(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	if err := sess.Cart.Reset(); err != nil {
		s.writeCartError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	p, ok := s.Portals[sess.Portal].Catalog.Lookup(id)
	if !ok {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"id": id})
		return
	}
	if !p.InStock {
		kit.WriteError(w, r, http.StatusConflict, "out of stock", map[string]any{"id": id})
		return
	}

	sess.Cart.Add(id)
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	sess.Cart.Remove(chi.URLParam(r, "id"))
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) removeAll(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	sess.Cart.RemoveAll(chi.URLParam(r, "id"))
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) setCustomer(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	var req customerReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", nil)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "invalid customer info", fieldErrors(err))
		return
	}

	sess.Cart.SetCustomerInfo(req.info())
	kit.WriteJSON(w, http.StatusOK, sess.Cart.View())
}

func (s *Server) checkout(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	receipt, err := sess.Cart.Checkout(r.Context())
	if err != nil {
		s.writeCartError(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusCreated, receipt)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())

	receipts, err := s.Orders.ListBySession(r.Context(), sess.ID)
	if err != nil {
		s.Log.Error("list orders failed", zap.Error(err), zap.String("session_id", sess.ID))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if receipts == nil {
		receipts = []cart.Receipt{}
	}
	kit.WriteJSON(w, http.StatusOK, receipts)
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	sess, _ := SessionFromContext(r.Context())
	id := chi.URLParam(r, "id")

	receipt, found, err := s.Orders.Get(r.Context(), id)
	if err != nil {
		s.Log.Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}
	if receipt.SessionID != sess.ID {
		kit.WriteError(w, r, http.StatusForbidden, "forbidden", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, receipt)
}

func (s *Server) writeCartError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *cart.InvalidOrderError
	var missing *cart.MissingFieldsError

	switch {
	case errors.As(err, &invalid):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, invalid.Error(),
			map[string]any{"total_items": invalid.Have, "min_order_quantity": invalid.Min})
	case errors.As(err, &missing):
		kit.WriteError(w, r, http.StatusUnprocessableEntity, "please fill in all required fields",
			map[string]any{"missing_fields": missing.Fields})
	case errors.Is(err, cart.ErrCheckoutInProgress):
		kit.WriteError(w, r, http.StatusConflict, "checkout in progress", nil)
	case errors.Is(err, cart.ErrPaymentFailed):
		kit.WriteError(w, r, http.StatusBadGateway, "payment failed", nil)
	default:
		s.Log.Error("cart operation failed", zap.Error(err))
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}
