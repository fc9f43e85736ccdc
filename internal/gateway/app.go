package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"SpiceStore/pkg/kit"
)

type Deps struct {
	CatalogURL    string
	StorefrontURL string

	// SessionLimit caps POST /sessions per client IP per SessionWindow.
	// Zero disables the limit.
	SessionLimit  int
	SessionWindow time.Duration
}

const (
	readyTimeout      = 2 * time.Second
	readyProbeTimeout = 700 * time.Millisecond
)

var readyClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        50,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     30 * time.Second,
	},
}

func NewHandler(deps Deps, httpDeps kit.RouterDeps) (http.Handler, error) {
	if httpDeps.Log == nil {
		httpDeps.Log = zap.NewNop()
	}

	catalogProxy, err := NewReverseProxy(deps.CatalogURL, httpDeps.Log)
	if err != nil {
		return nil, fmt.Errorf("catalog upstream: %w", err)
	}
	storefrontProxy, err := NewReverseProxy(deps.StorefrontURL, httpDeps.Log)
	if err != nil {
		return nil, fmt.Errorf("storefront upstream: %w", err)
	}

	limiter := kit.NewIPRateLimiter(deps.SessionLimit, deps.SessionWindow)

	r := kit.NewRouter(httpDeps)

	r.Get("/healthz", healthz)
	r.Get("/readyz", readyz(deps, httpDeps.Log))

	r.Handle("/catalogs/*", catalogProxy)

	r.With(limiter.Middleware).Post("/sessions", storefrontProxy.ServeHTTP)

	r.Handle("/cart", storefrontProxy)
	r.Handle("/cart/*", storefrontProxy)
	r.Handle("/orders", storefrontProxy)
	r.Handle("/orders/*", storefrontProxy)

	return r, nil
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

type upstreamError struct {
	name string
	err  error
}

func (e *upstreamError) Error() string { return e.name + ": " + e.err.Error() }
func (e *upstreamError) Unwrap() error { return e.err }

// readyz probes every upstream in parallel and reports the first one that
// is not ready.
func readyz(deps Deps, log *zap.Logger) http.HandlerFunc {
	upstreams := []struct{ name, url string }{
		{"catalog", deps.CatalogURL},
		{"storefront", deps.StorefrontURL},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()

		g, gctx := errgroup.WithContext(ctx)
		for _, u := range upstreams {
			g.Go(func() error {
				if err := checkReady(gctx, u.url+"/readyz"); err != nil {
					return &upstreamError{name: u.name, err: err}
				}
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			name := "upstream"
			var ue *upstreamError
			if errors.As(err, &ue) {
				name = ue.name
			}
			log.Warn("readyz failed", zap.String("upstream", name), zap.Error(err))
			kit.WriteError(w, r, http.StatusServiceUnavailable, name+" not ready", nil)
			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

func checkReady(ctx context.Context, url string) error {
	cctx, cancel := context.WithTimeout(ctx, readyProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(cctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := readyClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status=%d", resp.StatusCode)
	}

	return nil
}
