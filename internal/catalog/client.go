package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

var (
	ErrNotFound    = errors.New("catalog product not found")
	ErrBadStatus   = errors.New("catalog bad status")
	ErrUnavailable = errors.New("catalog unavailable")
)

// Client talks to the catalog service over HTTP.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Client:  &http.Client{Timeout: 3 * time.Second},
	}
}

func (c *Client) GetProduct(ctx context.Context, portal, id string) (Product, error) {
	var p Product
	err := c.getJSON(ctx, fmt.Sprintf("%s/catalogs/%s/products/%s", c.BaseURL, url.PathEscape(portal), url.PathEscape(id)), &p)
	return p, err
}

func (c *Client) ListProducts(ctx context.Context, portal string) ([]Product, error) {
	var out []Product
	if err := c.getJSON(ctx, fmt.Sprintf("%s/catalogs/%s/products", c.BaseURL, url.PathEscape(portal)), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, target string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: status=%d", ErrBadStatus, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(v)
}

// Refresher keeps a Live snapshot in sync with the catalog service.
type Refresher struct {
	Client *Client
	Portal string
	Live   *Live
	Log    *zap.Logger
}

// Refresh fetches the portal's products once and swaps them in.
func (r *Refresher) Refresh(ctx context.Context) error {
	products, err := r.Client.ListProducts(ctx, r.Portal)
	if err != nil {
		return err
	}
	r.Live.Replace(NewSnapshot(products))
	return nil
}

// Run refreshes every interval until ctx is done. Failed refreshes keep the
// previous snapshot.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := r.Refresh(ctx); err != nil && r.Log != nil {
				r.Log.Warn("catalog refresh failed", zap.Error(err), zap.String("portal", r.Portal))
			}
		}
	}
}
