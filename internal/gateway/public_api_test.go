package gateway_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"SpiceStore/internal/cart"
	"SpiceStore/internal/catalog"
	"SpiceStore/internal/gateway"
	"SpiceStore/internal/order"
	"SpiceStore/internal/session"
	"SpiceStore/internal/storefront"
	"SpiceStore/pkg/kit"
)

const sessionSecret = "test-secret-test-secret-test-secret"

func newCatalogTS(t *testing.T) *httptest.Server {
	t.Helper()

	s := &catalog.Server{Store: catalog.NewMemStore(), Log: zap.NewNop()}
	h := catalog.NewHandler(s, kit.RouterDeps{Log: zap.NewNop(), Service: "catalog"})

	return httptest.NewServer(h)
}

func newStorefrontTS(t *testing.T) *httptest.Server {
	t.Helper()

	portals := map[string]storefront.Portal{}
	for _, p := range []cart.Policy{
		{Portal: catalog.PortalRetail, MinOrderQuantity: 3, RequiredFields: []string{cart.FieldName, cart.FieldPhone, cart.FieldAddress}},
		{Portal: catalog.PortalWholesale, MinOrderQuantity: 1},
	} {
		portals[p.Portal] = storefront.Portal{
			Policy:    p,
			Catalog:   catalog.NewSnapshot(catalog.Seed(p.Portal)),
			Processor: cart.SimulatedProcessor{},
		}
	}

	orders := order.NewMemStore()
	s := &storefront.Server{
		Sessions: session.NewRegistry(storefront.NewFactory(portals, cart.Deps{
			Recorder: &order.Ledger{Store: orders},
		}), nil),
		Tokens:  session.NewTokenMaker(sessionSecret, time.Hour),
		Portals: portals,
		Orders:  orders,
	}

	h := storefront.NewHandler(s, kit.RouterDeps{Log: zap.NewNop(), Service: "storefront"})
	return httptest.NewServer(h)
}

func newGatewayTS(t *testing.T, catalogURL, storefrontURL string, sessionLimit int) *httptest.Server {
	t.Helper()

	h, err := gateway.NewHandler(
		gateway.Deps{
			CatalogURL:    catalogURL,
			StorefrontURL: storefrontURL,
			SessionLimit:  sessionLimit,
			SessionWindow: time.Minute,
		},
		kit.RouterDeps{
			Log:     zap.NewNop(),
			Service: "gateway",
			// Registry: nil
		},
	)
	if err != nil {
		t.Fatalf("gateway.NewHandler: %v", err)
	}

	return httptest.NewServer(h)
}

func newStack(t *testing.T, sessionLimit int) *httptest.Server {
	t.Helper()

	catalogTS := newCatalogTS(t)
	t.Cleanup(catalogTS.Close)

	storefrontTS := newStorefrontTS(t)
	t.Cleanup(storefrontTS.Close)

	gwTS := newGatewayTS(t, catalogTS.URL, storefrontTS.URL, sessionLimit)
	t.Cleanup(gwTS.Close)

	return gwTS
}

func doJSON(t *testing.T, c *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()

	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, url, r)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, raw
}

func openSession(t *testing.T, c *http.Client, gwURL, portal string) string {
	t.Helper()

	resp, raw := doJSON(t, c, http.MethodPost, gwURL+"/sessions", map[string]any{"portal": portal}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("open session status=%d body=%s", resp.StatusCode, string(raw))
	}

	var sr struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &sr); err != nil {
		t.Fatalf("decode session: %v body=%s", err, string(raw))
	}
	if sr.Token == "" {
		t.Fatalf("empty token")
	}
	return sr.Token
}

func TestGateway_PublicAPI_RetailHappyPath(t *testing.T) {
	gwTS := newStack(t, 0)
	c := &http.Client{}

	{
		resp, raw := doJSON(t, c, http.MethodGet, gwTS.URL+"/catalogs/retail/products", nil, nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("list products status=%d body=%s", resp.StatusCode, string(raw))
		}

		var products []catalog.Product
		if err := json.Unmarshal(raw, &products); err != nil {
			t.Fatalf("decode products: %v", err)
		}
		if len(products) != 5 {
			t.Fatalf("products=%d", len(products))
		}
	}

	token := openSession(t, c, gwTS.URL, catalog.PortalRetail)
	authz := map[string]string{"Authorization": "Bearer " + token}

	for _, id := range []string{"1", "2", "3"} {
		resp, raw := doJSON(t, c, http.MethodPost, gwTS.URL+"/cart/items/"+id, nil, authz)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add %s status=%d body=%s", id, resp.StatusCode, string(raw))
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodPut, gwTS.URL+"/cart/customer", map[string]any{
			"name":    "Jean",
			"phone":   "+250788123456",
			"address": "KN 5 Rd, Kigali",
		}, authz)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("set customer status=%d body=%s", resp.StatusCode, string(raw))
		}
	}

	var receipt cart.Receipt
	{
		resp, raw := doJSON(t, c, http.MethodPost, gwTS.URL+"/cart/checkout", nil, authz)
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("checkout status=%d body=%s", resp.StatusCode, string(raw))
		}
		if err := json.Unmarshal(raw, &receipt); err != nil {
			t.Fatalf("decode receipt: %v body=%s", err, string(raw))
		}
		if receipt.TotalPrice != 55000 {
			t.Fatalf("total_price=%d", receipt.TotalPrice)
		}
		if receipt.ID == "" {
			t.Fatalf("empty order id")
		}
	}

	{
		resp, raw := doJSON(t, c, http.MethodGet, gwTS.URL+"/orders/"+receipt.ID, nil, authz)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("get order status=%d body=%s", resp.StatusCode, string(raw))
		}

		var got cart.Receipt
		if err := json.Unmarshal(raw, &got); err != nil {
			t.Fatalf("decode order: %v body=%s", err, string(raw))
		}
		if got.Number != receipt.Number {
			t.Fatalf("number=%s want=%s", got.Number, receipt.Number)
		}
	}
}

func TestGateway_PublicAPI_WholesaleSingleBox(t *testing.T) {
	gwTS := newStack(t, 0)
	c := &http.Client{}

	token := openSession(t, c, gwTS.URL, catalog.PortalWholesale)
	authz := map[string]string{"Authorization": "Bearer " + token}

	doJSON(t, c, http.MethodPost, gwTS.URL+"/cart/items/5", nil, authz)

	resp, raw := doJSON(t, c, http.MethodPost, gwTS.URL+"/cart/checkout", nil, authz)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("checkout status=%d body=%s", resp.StatusCode, string(raw))
	}

	var receipt cart.Receipt
	if err := json.Unmarshal(raw, &receipt); err != nil {
		t.Fatalf("decode receipt: %v", err)
	}
	if receipt.TotalPrice != 450 || receipt.TotalItems != 1 {
		t.Fatalf("receipt=%+v", receipt)
	}
}

func TestGateway_PublicAPI_CartRequiresSession(t *testing.T) {
	gwTS := newStack(t, 0)
	c := &http.Client{}

	resp, raw := doJSON(t, c, http.MethodPost, gwTS.URL+"/cart/items/1", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}

func TestGateway_SessionRateLimit(t *testing.T) {
	gwTS := newStack(t, 2)
	c := &http.Client{}

	openSession(t, c, gwTS.URL, catalog.PortalRetail)
	openSession(t, c, gwTS.URL, catalog.PortalRetail)

	resp, raw := doJSON(t, c, http.MethodPost, gwTS.URL+"/sessions", map[string]any{"portal": "retail"}, nil)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Fatalf("missing Retry-After")
	}
}

func TestGateway_Readyz(t *testing.T) {
	catalogTS := newCatalogTS(t)
	t.Cleanup(catalogTS.Close)

	storefrontTS := newStorefrontTS(t)

	gwTS := newGatewayTS(t, catalogTS.URL, storefrontTS.URL, 0)
	t.Cleanup(gwTS.Close)

	c := &http.Client{}

	resp, raw := doJSON(t, c, http.MethodGet, gwTS.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ready status=%d body=%s", resp.StatusCode, string(raw))
	}

	storefrontTS.Close()

	resp, raw = doJSON(t, c, http.MethodGet, gwTS.URL+"/readyz", nil, nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}

	var er kit.ErrorResponse
	if err := json.Unmarshal(raw, &er); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if er.Error != "storefront not ready" {
		t.Fatalf("error=%q", er.Error)
	}
}

func TestGateway_UpstreamDown(t *testing.T) {
	catalogTS := newCatalogTS(t)
	catalogTS.Close()

	storefrontTS := newStorefrontTS(t)
	t.Cleanup(storefrontTS.Close)

	gwTS := newGatewayTS(t, catalogTS.URL, storefrontTS.URL, 0)
	t.Cleanup(gwTS.Close)

	resp, raw := doJSON(t, &http.Client{}, http.MethodGet, gwTS.URL+"/catalogs/retail/products", nil, nil)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status=%d body=%s", resp.StatusCode, string(raw))
	}
}
