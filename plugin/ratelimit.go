package plugin

import (
	"context"
	"fmt"

	"github.com/broady/contract"
	"golang.org/x/time/rate"
)

// RateLimit returns a plugin that waits for a token from limiter before each
// call. Calls fail when ctx ends before a token is available.
func RateLimit(limiter *rate.Limiter) *Plugin {
	return &Plugin{
		Name: "rate-limit",
		Request: func(ctx context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			if err := limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("plugin: rate limit: %w", err)
			}
			return req, nil
		},
	}
}
