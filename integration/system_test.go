//go:build integration
// +build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"testing"
	"time"
)

var baseURL = getenv("E2E_BASE_URL", "http://localhost:8080")

func TestSystem_E2E_WithDB(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)
	defer cancel()

	waitReady(t, ctx, baseURL+"/readyz")

	var products []map[string]any
	doJSON(t, http.MethodGet, baseURL+"/catalogs/retail/products", nil, &products, 200)
	if len(products) < 3 {
		t.Fatalf("expected at least 3 retail products, got %d", len(products))
	}

	var sess struct {
		Token string `json:"token"`
	}
	doJSON(t, http.MethodPost, baseURL+"/sessions", map[string]any{"portal": "retail"}, &sess, 201)
	if sess.Token == "" {
		t.Fatalf("empty session token")
	}

	for _, p := range products[:3] {
		pid, _ := p["id"].(string)
		if pid == "" {
			t.Fatalf("product id missing in response: %#v", p)
		}
		doJSONAuth(t, http.MethodPost, baseURL+"/cart/items/"+pid, sess.Token, nil, nil, 200)
	}

	doJSONAuth(t, http.MethodPost, baseURL+"/cart/checkout", sess.Token, nil, nil, 422)

	doJSONAuth(t, http.MethodPut, baseURL+"/cart/customer", sess.Token, map[string]any{
		"name":    fmt.Sprintf("e2e-%d", time.Now().UnixNano()),
		"phone":   "+250788000000",
		"address": "KG 7 Ave, Kigali",
	}, nil, 200)

	var receipt map[string]any
	doJSONAuth(t, http.MethodPost, baseURL+"/cart/checkout", sess.Token, nil, &receipt, 201)

	orderID, _ := receipt["id"].(string)
	if orderID == "" {
		t.Fatalf("order id missing: %#v", receipt)
	}

	var got map[string]any
	doJSONAuth(t, http.MethodGet, baseURL+"/orders/"+orderID, sess.Token, nil, &got, 200)
	if got["number"] != receipt["number"] {
		t.Fatalf("number=%v want=%v", got["number"], receipt["number"])
	}

	if os.Getenv("E2E_RESTART_CATALOG") == "1" {
		restartContainer(t, ctx, "catalog")
		waitReady(t, ctx, baseURL+"/readyz")
		doJSON(t, http.MethodGet, baseURL+"/catalogs/retail/products", nil, &products, 200)
		doJSONAuth(t, http.MethodGet, baseURL+"/orders/"+orderID, sess.Token, nil, &got, 200)
	}
}

func waitReady(t *testing.T, ctx context.Context, url string) {
	t.Helper()
	client := &http.Client{Timeout: 2 * time.Second}

	deadline := time.Now().Add(60 * time.Second)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := client.Do(req)
		if err == nil && resp != nil && resp.StatusCode == 200 {
			_ = resp.Body.Close()
			return
		}
		if resp != nil {
			_ = resp.Body.Close()
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("service not ready: %s", url)
}

func doJSON(t *testing.T, method, url string, body any, out any, want int) {
	t.Helper()
	doJSONAuth(t, method, url, "", body, out, want)
}

func doJSONAuth(t *testing.T, method, url, token string, body any, out any, want int) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		t.Fatalf("%s %s: status=%d want=%d", method, url, resp.StatusCode, want)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
