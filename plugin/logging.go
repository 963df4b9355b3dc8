package plugin

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/contract"
)

// Logging returns a plugin that logs the start and end of each call using slog.
// Register it first so its response phase runs last and sees the final response.
func Logging(logger *slog.Logger) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}

	return &Plugin{
		Name: "logging",
		Request: func(ctx context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			req.started = time.Now()
			logger.InfoContext(ctx, "request started",
				slog.String("endpoint", contract.ScopeKey(req.Method, req.URL)),
			)
			return req, nil
		},
		Response: func(ctx context.Context, _ *contract.Registry, req *Request, res *Response) (*Response, error) {
			logger.InfoContext(ctx, "request completed",
				slog.String("endpoint", contract.ScopeKey(req.Method, req.URL)),
				slog.Int("status", res.StatusCode),
				slog.Duration("duration", time.Since(req.started)),
			)
			return res, nil
		},
	}
}
