package server

import (
	"net/http"

	"github.com/broady/contract"
)

// Request is the framework-neutral view of an incoming call.
// Adapters fill the raw fields; the pipeline fills the Parsed fields
// and Endpoint.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Query   map[string]any
	Params  map[string]any
	Body    any

	ParsedParams  map[string]any
	ParsedQuery   map[string]any
	ParsedHeaders map[string]any
	ParsedBody    any

	Endpoint contract.Endpoint

	// Values carries request-scoped data from middleware to handlers.
	Values map[string]any
}

// Set stores a request-scoped value.
func (r *Request) Set(key string, v any) {
	if r.Values == nil {
		r.Values = make(map[string]any)
	}
	r.Values[key] = v
}

// Value returns a value stored with Set.
func (r *Request) Value(key string) any {
	return r.Values[key]
}

// ResponseWriter is the response capability the pipeline needs from an adapter.
type ResponseWriter interface {
	// Status sets the status used by the next JSON call.
	Status(code int) ResponseWriter
	// JSON writes v as the response body.
	JSON(v any) error
}

// errorBody is the wire shape of every error response.
type errorBody struct {
	Error string `json:"error"`
}

const (
	msgMethodNotAllowed = "Method not allowed"
	msgInvalidRequest   = "Invalid request"
	msgInternal         = "Internal server error"
	msgRequestFailed    = "Request failed"
	msgNotFound         = "Endpoint not found"
)

// recorder tracks what was written through a ResponseWriter so the pipeline
// never answers twice.
type recorder struct {
	w       ResponseWriter
	status  int
	written bool
}

func (r *recorder) Status(code int) ResponseWriter {
	r.status = code
	r.w.Status(code)
	return r
}

func (r *recorder) JSON(v any) error {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.written = true
	if err := r.w.JSON(v); err != nil {
		r.status = http.StatusInternalServerError
		return err
	}
	return nil
}

// StatusCode returns the status of the response, or 0 before anything is written.
func (r *recorder) StatusCode() int {
	if !r.written {
		return 0
	}
	return r.status
}

// Written reports whether a body was sent.
func (r *recorder) Written() bool {
	return r.written
}

// Header returns the response headers of the underlying writer, if it has any.
func (r *recorder) Header() http.Header {
	if h, ok := r.w.(interface{ Header() http.Header }); ok {
		return h.Header()
	}
	return http.Header{}
}
