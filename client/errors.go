package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/broady/contract"
	"github.com/broady/contract/plugin"
)

// RequestFailedError is returned for responses with a non-2xx status.
type RequestFailedError struct {
	Method contract.Method
	URL    string
	Status int

	// Body is the decoded error body: JSON when the response is JSON,
	// otherwise the raw text.
	Body any

	// Definition is the endpoint error definition matching the status,
	// preferring one whose schema accepts Body. Nil when none is declared.
	Definition *contract.ErrorDefinition

	// Valid reports whether Body was accepted by Definition's schema.
	Valid bool

	Response *http.Response
}

func (e *RequestFailedError) Error() string {
	return fmt.Sprintf("client: request failed: %s %s: %d %s", e.Method, e.URL, e.Status, http.StatusText(e.Status))
}

// StatusCode returns the response status.
func (e *RequestFailedError) StatusCode() int {
	return e.Status
}

func newRequestFailedError(ctx context.Context, e contract.Endpoint, method contract.Method, url string, res *plugin.Response) *RequestFailedError {
	rerr := &RequestFailedError{
		Method:   method,
		URL:      url,
		Status:   res.StatusCode,
		Response: res.Response,
	}

	if res.IsJSON() {
		if body, err := res.DecodeJSON(); err == nil {
			rerr.Body = body
		}
	} else if data, err := res.ReadBody(); err == nil && len(data) > 0 {
		rerr.Body = string(data)
	}

	defs := e.MatchErrors(res.StatusCode)
	for i := range defs {
		d := defs[i]
		if d.Schema == nil {
			continue
		}
		parsed, err := d.Schema.Parse(ctx, rerr.Body)
		if err == nil {
			rerr.Definition = &d
			rerr.Body = parsed
			rerr.Valid = true
			return rerr
		}
	}
	if len(defs) > 0 {
		rerr.Definition = &defs[0]
	}
	return rerr
}
