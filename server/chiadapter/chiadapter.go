// Package chiadapter mounts a server.Server on a chi router.
package chiadapter

import (
	"net/http"

	"github.com/broady/contract"
	"github.com/broady/contract/server"
	"github.com/go-chi/chi/v5"
)

// Mount registers one route per bound path template on r. Every method is
// routed to the pipeline so that unsupported methods get the JSON 405, and
// unknown paths get the JSON 404.
func Mount(r chi.Router, s *server.Server) {
	for _, template := range s.Paths() {
		names := contract.PathParams(template)
		r.HandleFunc(contract.BracePath(template), func(w http.ResponseWriter, req *http.Request) {
			params := make(map[string]string, len(names))
			for _, name := range names {
				params[name] = chi.URLParam(req, name)
			}
			s.ServeRoute(w, req, template, params)
		})
	}
	r.NotFound(s.NotFound)
}

// NewRouter returns a chi router with s mounted.
func NewRouter(s *server.Server) chi.Router {
	r := chi.NewRouter()
	Mount(r, s)
	return r
}
