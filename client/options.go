package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/broady/contract/plugin"
)

// Doer performs HTTP requests. *http.Client satisfies it.
type Doer interface {
	Do(*http.Request) (*http.Response, error)
}

// Retry configures retries of failed network calls. Transport errors and
// 5xx responses are retried Count times, waiting Delay between attempts.
type Retry struct {
	Count int
	Delay time.Duration
}

// Options configures a Client.
type Options struct {
	// Validate selects which phases are checked against the endpoint
	// schemas. The zero value means plugin.ModeAll; use plugin.ModeNone
	// to disable validation.
	Validate plugin.Mode

	// Transform selects which phases replace raw values with the values
	// returned by the schemas. The zero value means plugin.ModeAll.
	Transform plugin.Mode

	// SendDefaults validates absent parameters so schema defaults are sent.
	SendDefaults bool

	// HTTPClient performs the calls. Default: http.DefaultClient.
	HTTPClient Doer

	// Logger receives retry warnings. Default: slog.Default().
	Logger *slog.Logger

	Retry Retry

	// OnUnauthorized is called for 401 responses before the call fails.
	OnUnauthorized func(ctx context.Context, err *RequestFailedError)
}

func (o Options) withDefaults() Options {
	if o.Validate == "" {
		o.Validate = plugin.ModeAll
	}
	if o.Transform == "" {
		o.Transform = plugin.ModeAll
	}
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}
