package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/broady/contract/server"
)

type statusCoder interface {
	StatusCode() int
}

// Logging returns a server middleware that logs requests using slog.
// It logs the start and end of each request, including status and duration.
// Responses with a 5xx status are logged as failures.
func Logging(logger *slog.Logger) server.Middleware {
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		start := time.Now()
		endpoint := req.Endpoint.String()

		logger.InfoContext(ctx, "request started",
			slog.String("endpoint", endpoint),
		)

		next()
		duration := time.Since(start)

		status := 0
		if sc, ok := w.(statusCoder); ok {
			status = sc.StatusCode()
		}

		if status >= 500 {
			logger.ErrorContext(ctx, "request failed",
				slog.String("endpoint", endpoint),
				slog.Int("status", status),
				slog.Duration("duration", duration),
			)
		} else {
			logger.InfoContext(ctx, "request completed",
				slog.String("endpoint", endpoint),
				slog.Int("status", status),
				slog.Duration("duration", duration),
			)
		}
		return nil
	}
}
