package plugin

import (
	"context"

	"github.com/broady/contract"
)

// Header returns a plugin that sets one request header, overwriting any
// existing value and leaving other headers alone.
func Header(key, value string) *Plugin {
	return &Plugin{
		Request: func(_ context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			req.setHeader(key, value)
			return req, nil
		},
	}
}
