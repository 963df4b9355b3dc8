// Package server runs endpoint handlers behind the contract's validation
// pipeline, independent of any web framework:
//
//	method check -> middleware -> path, query, header and body validation
//	  -> handler -> response validation -> 200
//
// Every failure is answered with a JSON body of the form {"error": "..."}.
// Handler returns an http.Handler over the pipeline; other routers can use
// ServeRoute (see the chiadapter package).
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/broady/contract"
)

// Middleware runs before validation. It continues the pipeline by calling
// next, which returns once the rest of the request has been served. A
// middleware that does not call next ends the request with whatever it wrote.
type Middleware func(ctx context.Context, req *Request, w ResponseWriter, next func()) error

// HandlerFunc implements an endpoint. The returned value is validated
// against the endpoint's response schema and sent with status 200.
// Errors implementing contract.StatusCoder choose the error status.
type HandlerFunc func(ctx context.Context, req *Request, w ResponseWriter) (any, error)

// MiddlewareID identifies a registered middleware for Remove.
type MiddlewareID int

// ErrMiddlewareNotFound is returned by Remove for unknown or removed ids.
var ErrMiddlewareNotFound = errors.New("server: middleware not found")

// Server holds the endpoint handlers and middleware of one API.
type Server struct {
	api                *contract.Registry
	mu                 sync.RWMutex
	handlers           []*Handler
	byKey              map[string]*Handler
	middleware         []Middleware
	httpMiddleware     []func(http.Handler) http.Handler
	logger             *slog.Logger
	maxRequestBodySize int64
}

// New returns a server for api.
func New(api *contract.Registry) *Server {
	return &Server{
		api:                api,
		byKey:              make(map[string]*Handler),
		maxRequestBodySize: 1 << 20, // 1MB default
	}
}

// WithLogger sets a custom logger for the server.
// If not set, slog.Default() will be used.
func (s *Server) WithLogger(logger *slog.Logger) *Server {
	s.logger = logger
	return s
}

// WithMaxRequestBodySize sets the maximum request body size read by Handler.
// A value of 0 means no limit. Default is 1MB (1 << 20).
func (s *Server) WithMaxRequestBodySize(size int64) *Server {
	s.maxRequestBodySize = size
	return s
}

// WithMiddleware adds an HTTP middleware around the handler returned by Handler.
// Middleware is applied in the order added (first added is outermost).
func (s *Server) WithMiddleware(mw func(http.Handler) http.Handler) *Server {
	s.httpMiddleware = append(s.httpMiddleware, mw)
	return s
}

// API returns the registry the server was built from.
func (s *Server) API() *contract.Registry {
	return s.api
}

func (s *Server) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

// Use appends a middleware that runs for every endpoint.
func (s *Server) Use(mw Middleware) MiddlewareID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.middleware = append(s.middleware, mw)
	return MiddlewareID(len(s.middleware) - 1)
}

// Remove removes a middleware added by Use.
func (s *Server) Remove(id MiddlewareID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if int(id) < 0 || int(id) >= len(s.middleware) || s.middleware[id] == nil {
		return ErrMiddlewareNotFound
	}
	s.middleware[id] = nil
	return nil
}

func (s *Server) middlewareSnapshot() []Middleware {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Middleware, 0, len(s.middleware))
	for _, mw := range s.middleware {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// Handle binds fn to the endpoint registered for method and path.
// Binding an endpoint again replaces its handler and logs a warning.
func (s *Server) Handle(m contract.Method, path string, fn HandlerFunc) (*Handler, error) {
	e, err := s.api.FindByMethodAndPath(m, path)
	if err != nil {
		return nil, err
	}
	return s.bind(e, fn), nil
}

// HandleAlias binds fn to the endpoint with the given alias.
func (s *Server) HandleAlias(alias string, fn HandlerFunc) (*Handler, error) {
	e, err := s.api.FindByAlias(alias)
	if err != nil {
		return nil, err
	}
	return s.bind(e, fn), nil
}

func (s *Server) bind(e contract.Endpoint, fn HandlerFunc) *Handler {
	h := &Handler{server: s, endpoint: e, fn: fn}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.ScopeKey()
	if old, exists := s.byKey[key]; exists {
		s.log().Warn("duplicate handler registration",
			slog.String("endpoint", e.String()))
		for i, existing := range s.handlers {
			if existing == old {
				s.handlers[i] = h
			}
		}
	} else {
		s.handlers = append(s.handlers, h)
	}
	s.byKey[key] = h
	return h
}

// Handlers returns the bound handlers in registration order.
func (s *Server) Handlers() []*Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Handler(nil), s.handlers...)
}

// Paths returns the distinct path templates that have handlers, in
// registration order.
func (s *Server) Paths() []string {
	seen := make(map[string]bool)
	var out []string
	for _, h := range s.Handlers() {
		if p := h.endpoint.Path; !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// route picks the handler for a path template and request method. When no
// handler matches the method, another handler of the same path is returned
// so that the pipeline answers 405.
func (s *Server) route(template, method string) (*Handler, bool) {
	m := contract.HTTPMethodToMethod(method)
	var fallback *Handler
	for _, h := range s.Handlers() {
		if h.endpoint.Path != template {
			continue
		}
		if h.endpoint.Method == m {
			return h, true
		}
		if fallback == nil {
			fallback = h
		}
	}
	return fallback, fallback != nil
}
