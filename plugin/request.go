package plugin

import (
	"maps"
	"net/http"
	"time"

	"github.com/broady/contract"
)

// Request is the per-call state passed through the request phase.
// URL is the endpoint's path template; path parameters are substituted
// by the dispatcher after interception.
type Request struct {
	Method  contract.Method
	URL     string
	Headers http.Header
	Params  map[string]any
	Queries map[string]any
	Body    any

	// Payload, when set by an encoding plugin, is sent instead of the
	// JSON encoding of Body.
	Payload *Payload

	// MockResponse, when set, is returned instead of performing the call.
	MockResponse *Response

	started time.Time
}

// Payload is an already encoded request body.
type Payload struct {
	ContentType string
	Data        []byte
}

// Endpoint looks up the endpoint this request targets.
func (r *Request) Endpoint(api *contract.Registry) (contract.Endpoint, bool) {
	if api == nil {
		return contract.Endpoint{}, false
	}
	return api.Lookup(r.Method, r.URL)
}

// Clone returns a copy whose maps may be modified without affecting r.
func (r *Request) Clone() *Request {
	c := *r
	c.Headers = r.Headers.Clone()
	c.Params = maps.Clone(r.Params)
	c.Queries = maps.Clone(r.Queries)
	return &c
}

func (r *Request) setQuery(name string, v any) {
	if r.Queries == nil {
		r.Queries = make(map[string]any)
	}
	r.Queries[name] = v
}

func (r *Request) setParam(name string, v any) {
	if r.Params == nil {
		r.Params = make(map[string]any)
	}
	r.Params[name] = v
}

func (r *Request) setHeader(name, v string) {
	if r.Headers == nil {
		r.Headers = make(http.Header)
	}
	r.Headers.Set(name, v)
}
