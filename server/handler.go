package server

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/broady/contract"
)

// Handler serves one endpoint.
type Handler struct {
	server   *Server
	endpoint contract.Endpoint
	fn       HandlerFunc
}

// Endpoint returns the endpoint the handler serves.
func (h *Handler) Endpoint() contract.Endpoint {
	return h.endpoint
}

// Serve runs the full pipeline for req and writes the outcome to w.
func (h *Handler) Serve(ctx context.Context, req *Request, w ResponseWriter) {
	rec := &recorder{w: w}
	logger := h.server.log()

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			logger.ErrorContext(ctx, "PANIC recovered",
				slog.String("endpoint", h.endpoint.String()),
				slog.Any("panic", r),
				slog.String("stack", string(stack)))
			if !rec.Written() {
				h.writeError(ctx, rec, http.StatusInternalServerError, msgInternal)
			}
		}
	}()

	if !strings.EqualFold(req.Method, string(h.endpoint.Method)) {
		h.writeError(ctx, rec, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	req.Endpoint = h.endpoint
	ctx = newContext(ctx, req)

	mws := h.server.middlewareSnapshot()
	var run func(i int)
	run = func(i int) {
		if i == len(mws) {
			h.serve(ctx, req, rec)
			return
		}
		called := false
		next := func() {
			if called {
				return
			}
			called = true
			run(i + 1)
		}
		if err := mws[i](ctx, req, rec, next); err != nil {
			logger.ErrorContext(ctx, "middleware failed",
				slog.String("endpoint", h.endpoint.String()),
				slog.Any("error", err))
			if !rec.Written() {
				h.writeError(ctx, rec, http.StatusInternalServerError, msgInternal)
			}
		}
	}
	run(0)
}

// serve runs everything after the middleware chain.
func (h *Handler) serve(ctx context.Context, req *Request, w *recorder) {
	logger := h.server.log()

	if err := h.validate(ctx, req); err != nil {
		logger.InfoContext(ctx, "invalid request",
			slog.String("endpoint", h.endpoint.String()),
			slog.Any("error", err))
		h.writeError(ctx, w, http.StatusBadRequest, msgInvalidRequest)
		return
	}

	res, err := h.fn(ctx, req, w)
	if err != nil {
		if status, ok := contract.ErrorStatus(err); ok {
			logger.InfoContext(ctx, "handler returned error",
				slog.String("endpoint", h.endpoint.String()),
				slog.Int("status", status),
				slog.Any("error", err))
			h.writeError(ctx, w, status, msgRequestFailed)
			return
		}
		logger.ErrorContext(ctx, "handler failed",
			slog.String("endpoint", h.endpoint.String()),
			slog.Any("error", err))
		h.writeError(ctx, w, http.StatusInternalServerError, msgInternal)
		return
	}
	if w.Written() {
		return
	}

	if h.endpoint.Response != nil {
		parsed, err := h.endpoint.Response.Parse(ctx, res)
		if err != nil {
			logger.ErrorContext(ctx, "invalid response",
				slog.String("endpoint", h.endpoint.String()),
				slog.Any("error", &contract.ResponseValidationError{
					Method:     h.endpoint.Method,
					Path:       h.endpoint.Path,
					Status:     http.StatusOK,
					StatusText: http.StatusText(http.StatusOK),
					Cause:      err,
				}))
			h.writeError(ctx, w, http.StatusInternalServerError, msgInternal)
			return
		}
		res = parsed
	}

	if err := w.Status(http.StatusOK).JSON(res); err != nil {
		logger.ErrorContext(ctx, "failed to encode response",
			slog.String("endpoint", h.endpoint.String()),
			slog.Any("error", err))
	}
}

// validate parses path, query, header and body parameters in that order and
// stores the results in the Parsed fields. Absent values are parsed as nil.
func (h *Handler) validate(ctx context.Context, req *Request) error {
	req.ParsedParams = maps.Clone(req.Params)
	if req.ParsedParams == nil {
		req.ParsedParams = make(map[string]any)
	}
	req.ParsedQuery = maps.Clone(req.Query)
	if req.ParsedQuery == nil {
		req.ParsedQuery = make(map[string]any)
	}
	req.ParsedHeaders = make(map[string]any)
	req.ParsedBody = req.Body

	for _, t := range []contract.ParamType{contract.ParamPath, contract.ParamQuery, contract.ParamHeader, contract.ParamBody} {
		for _, p := range h.endpoint.ParametersOf(t) {
			raw := rawValue(req, p)
			if p.Schema == nil {
				storeValue(req, p, raw)
				continue
			}
			parsed, err := p.Schema.Parse(ctx, raw)
			if err != nil {
				return &contract.ValidationError{Type: p.Type, Name: p.Name, Cause: err}
			}
			storeValue(req, p, parsed)
		}
	}
	return nil
}

func rawValue(req *Request, p contract.Parameter) any {
	switch p.Type {
	case contract.ParamPath:
		return req.Params[p.Name]
	case contract.ParamQuery:
		return req.Query[p.Name]
	case contract.ParamHeader:
		if vals := req.Headers.Values(p.Name); len(vals) > 0 {
			return vals[0]
		}
		return nil
	case contract.ParamBody:
		return req.Body
	}
	return nil
}

func storeValue(req *Request, p contract.Parameter, v any) {
	switch p.Type {
	case contract.ParamPath:
		req.ParsedParams[p.Name] = v
	case contract.ParamQuery:
		req.ParsedQuery[p.Name] = v
	case contract.ParamHeader:
		req.ParsedHeaders[p.Name] = v
	case contract.ParamBody:
		req.ParsedBody = v
	}
}

func (h *Handler) writeError(ctx context.Context, w ResponseWriter, status int, msg string) {
	if err := w.Status(status).JSON(errorBody{Error: msg}); err != nil {
		h.server.log().ErrorContext(ctx, "failed to encode error response",
			slog.Int("status", status),
			slog.String("message", msg),
			slog.Any("error", fmt.Errorf("server: %w", err)))
	}
}
