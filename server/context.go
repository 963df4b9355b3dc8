package server

import (
	"context"

	"github.com/broady/contract"
)

type contextKey struct {
	name string
}

var (
	requestKey  = &contextKey{"request"}
	endpointKey = &contextKey{"endpoint"}
)

// RequestFromContext returns the request being served.
func RequestFromContext(ctx context.Context) *Request {
	if r, ok := ctx.Value(requestKey).(*Request); ok {
		return r
	}
	return nil
}

// EndpointFromContext returns the endpoint of the request being served.
func EndpointFromContext(ctx context.Context) (contract.Endpoint, bool) {
	e, ok := ctx.Value(endpointKey).(contract.Endpoint)
	return e, ok
}

func newContext(ctx context.Context, req *Request) context.Context {
	ctx = context.WithValue(ctx, requestKey, req)
	ctx = context.WithValue(ctx, endpointKey, req.Endpoint)
	return ctx
}
