package gateway

import (
	"net/http"
	"net/http/httputil"
	"net/url"

	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"SpiceStore/pkg/kit"
)

// NewReverseProxy forwards to target, carrying the request id along so the
// upstream logs under the same id. Transport failures become 502.
func NewReverseProxy(target string, log *zap.Logger) (*httputil.ReverseProxy, error) {
	u, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}

	p := httputil.NewSingleHostReverseProxy(u)

	director := p.Director
	p.Director = func(r *http.Request) {
		director(r)
		if id := chimw.GetReqID(r.Context()); id != "" {
			r.Header.Set(chimw.RequestIDHeader, id)
		}
	}

	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		log.Warn("upstream request failed",
			zap.Error(err),
			zap.String("upstream", u.Host),
			zap.String("path", r.URL.Path),
		)
		kit.WriteError(w, r, http.StatusBadGateway, "upstream unavailable", nil)
	}

	return p, nil
}
