package plugin

import (
	"context"

	"github.com/broady/contract"
	"github.com/google/uuid"
)

// RequestIDHeader is the header set by RequestID.
const RequestIDHeader = "X-Request-Id"

// RequestID returns a plugin that tags each call with a random UUID unless
// the caller already supplied one.
func RequestID() *Plugin {
	return &Plugin{
		Name: "request-id",
		Request: func(_ context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			if req.Headers.Get(RequestIDHeader) == "" {
				req.setHeader(RequestIDHeader, uuid.NewString())
			}
			return req, nil
		},
	}
}
