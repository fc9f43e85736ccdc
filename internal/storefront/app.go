package storefront

import (
	"net/http"

	"SpiceStore/pkg/kit"
)

func NewHandler(s *Server, deps kit.RouterDeps) http.Handler {
	r := kit.NewRouter(deps)
	r.Mount("/", s.Routes())
	return r
}
