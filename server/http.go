package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/broady/contract"
)

// Handler returns an http.Handler that routes requests to the bound
// endpoint handlers. The returned handler includes all configured middleware.
//
// Example:
//
//	srv := server.New(api).WithMiddleware(cors)
//	http.ListenAndServe(":8080", srv.Handler())
func (s *Server) Handler() http.Handler {
	var h http.Handler = http.HandlerFunc(s.serveHTTP)
	// Apply middleware in reverse order so first added is outermost
	for i := len(s.httpMiddleware) - 1; i >= 0; i-- {
		h = s.httpMiddleware[i](h)
	}
	return h
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	template, params, ok := s.match(r.Method, r.URL.Path)
	if !ok {
		s.NotFound(w, r)
		return
	}
	s.ServeRoute(w, r, template, params)
}

// match finds the template for path. A template bound to the request method
// wins; among those the one with fewer placeholders wins so that literal
// segments take priority over parameters.
func (s *Server) match(method, path string) (string, map[string]string, bool) {
	m := contract.HTTPMethodToMethod(method)
	var (
		best       string
		bestParams map[string]string
		bestScore  = -1
	)
	for _, h := range s.Handlers() {
		params, ok := contract.ExtractPathParams(h.endpoint.Path, path)
		if !ok {
			continue
		}
		score := 1000 - len(params)
		if h.endpoint.Method == m {
			score += 1000
		}
		if score > bestScore {
			best, bestParams, bestScore = h.endpoint.Path, params, score
		}
	}
	return best, bestParams, bestScore >= 0
}

// ServeRoute serves r with the handler bound to template, using params as the
// path parameters. It lets routers that do their own matching reuse the
// pipeline.
func (s *Server) ServeRoute(w http.ResponseWriter, r *http.Request, template string, params map[string]string) {
	out := &httpWriter{w: w}

	h, ok := s.route(template, r.Method)
	if !ok {
		s.NotFound(w, r)
		return
	}

	req, err := s.FromHTTP(r, params)
	if err != nil {
		s.log().InfoContext(r.Context(), "malformed request body",
			slog.String("endpoint", h.endpoint.String()),
			slog.Any("error", err))
		out.Status(http.StatusBadRequest)
		writeJSON(out, msgInvalidRequest)
		return
	}
	h.Serve(r.Context(), req, out)
}

// NotFound answers with the JSON 404 body.
func (s *Server) NotFound(w http.ResponseWriter, _ *http.Request) {
	out := &httpWriter{w: w}
	out.Status(http.StatusNotFound)
	writeJSON(out, msgNotFound)
}

func writeJSON(w ResponseWriter, msg string) {
	_ = w.JSON(errorBody{Error: msg})
}

// FromHTTP converts r into a Request. Query values seen once become strings
// and repeated ones []string. The body is decoded by content type: JSON into
// a generic value, url-encoded and multipart forms into url.Values, text into
// a string and anything else into []byte.
func (s *Server) FromHTTP(r *http.Request, params map[string]string) (*Request, error) {
	req := &Request{
		Method:  r.Method,
		URL:     r.URL.String(),
		Headers: r.Header.Clone(),
		Query:   make(map[string]any),
		Params:  make(map[string]any, len(params)),
	}
	for k, v := range params {
		req.Params[k] = v
	}
	for k, vals := range r.URL.Query() {
		if len(vals) == 1 {
			req.Query[k] = vals[0]
		} else {
			req.Query[k] = vals
		}
	}

	if r.Body == nil || r.Body == http.NoBody {
		return req, nil
	}
	body := r.Body
	if s.maxRequestBodySize > 0 {
		body = http.MaxBytesReader(nil, r.Body, s.maxRequestBodySize)
	}
	defer body.Close()

	ct := r.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil && ct != "" {
		mediaType = ""
	}

	switch {
	case mediaType == "multipart/form-data":
		r.Body = body
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
		req.Body = url.Values(r.MultipartForm.Value)
		return req, nil
	}

	data, err := io.ReadAll(body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, fmt.Errorf("request body exceeds %d bytes", maxErr.Limit)
		}
		return nil, fmt.Errorf("read body: %w", err)
	}
	if len(data) == 0 {
		return req, nil
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		vals, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
		req.Body = vals
	case mediaType == "" || mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		var v any
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode json body: %w", err)
		}
		req.Body = v
	case strings.HasPrefix(mediaType, "text/"):
		req.Body = string(data)
	default:
		req.Body = data
	}
	return req, nil
}

// httpWriter adapts an http.ResponseWriter to ResponseWriter.
type httpWriter struct {
	w      http.ResponseWriter
	status int
}

func (h *httpWriter) Status(code int) ResponseWriter {
	h.status = code
	return h
}

func (h *httpWriter) JSON(v any) error {
	status := h.status
	if status == 0 {
		status = http.StatusOK
	}
	// Encode before writing the status so a failure can still become a 500.
	data, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		data, _ = json.Marshal(errorBody{Error: msgInternal})
	}
	h.w.Header().Set("Content-Type", "application/json")
	h.w.WriteHeader(status)
	if _, werr := h.w.Write(append(data, '\n')); werr != nil && err == nil {
		err = werr
	}
	return err
}

// Header exposes the response headers so middleware can set them before
// the body is written.
func (h *httpWriter) Header() http.Header {
	return h.w.Header()
}
