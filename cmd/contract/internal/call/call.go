package call

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/client"
	"github.com/broady/contract/cmd/contract/internal/spec"
	"github.com/broady/contract/config"
	"github.com/broady/contract/plugin"
	"golang.org/x/time/rate"
)

type Cmd struct {
	spec.Flags `embed:""`

	Alias   string            `arg:"" help:"Endpoint alias to call."`
	BaseURL string            `help:"Base URL; overrides 'base-url' from the config file." name:"base-url"`
	Param   map[string]string `help:"Path parameter (name=value)." short:"p"`
	Query   map[string]string `help:"Query parameter (name=value)." short:"q"`
	Header  map[string]string `help:"Request header (name=value)." short:"H"`
	Body    string            `help:"JSON request body, or @file to read it from a file." short:"b"`
	Mock    string            `help:"Answer from a mock data file instead of the network." type:"path"`
	Rate    float64           `help:"Maximum calls per second (0 = unlimited)." default:"0"`
	Verbose bool              `help:"Log requests to stderr." short:"v"`
	Timeout time.Duration     `help:"Overall timeout." default:"30s"`
}

func (c *Cmd) Run() error {
	overrides := map[string]any{}
	if c.BaseURL != "" {
		overrides["base-url"] = c.BaseURL
	}
	cfg, api, err := c.Load(context.Background(), overrides)
	if err != nil {
		return err
	}

	var body any
	if c.Body != "" {
		if body, err = readBody(c.Body); err != nil {
			return err
		}
	}

	var data plugin.MockData
	switch {
	case c.Mock != "":
		data, err = config.LoadMockData(c.Mock)
	case cfg.Mock.File != "":
		data, err = config.LoadMockData(cfg.Mock.File)
	}
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if c.Verbose {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()

	res, err := Do(ctx, cfg, api, Request{
		Alias:   c.Alias,
		Params:  c.Param,
		Query:   c.Query,
		Headers: c.Header,
		Body:    body,
		Mock:    data,
		Rate:    c.Rate,
		Logger:  logger,
	})
	if err != nil {
		var rf *client.RequestFailedError
		if errors.As(err, &rf) && rf.Body != nil {
			out, _ := json.MarshalIndent(rf.Body, "", "  ")
			fmt.Fprintln(os.Stderr, string(out))
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// Request describes one call made by Do.
type Request struct {
	Alias   string
	Params  map[string]string
	Query   map[string]string
	Headers map[string]string
	Body    any
	Mock    plugin.MockData
	Rate    float64
	Logger  *slog.Logger
	Doer    client.Doer
}

// Do calls the endpoint with the given alias through a client configured
// from cfg.
func Do(ctx context.Context, cfg *config.Config, api *contract.Registry, r Request) (any, error) {
	opts, err := cfg.ClientOptions()
	if err != nil {
		return nil, err
	}
	opts.Logger = r.Logger
	opts.HTTPClient = r.Doer

	c := client.New(cfg.BaseURL, api, opts)
	c.UseGlobal(plugin.RequestID())
	c.UseGlobal(plugin.Logging(r.Logger))
	if r.Rate > 0 {
		c.UseGlobal(plugin.RateLimit(rate.NewLimiter(rate.Limit(r.Rate), 1)))
	}
	if r.Mock != nil {
		c.UseMock(r.Mock, cfg.Mock.Delay)
	}

	call := client.Config{
		Params:  toAny(r.Params),
		Queries: toAny(r.Query),
		Headers: make(http.Header, len(r.Headers)),
	}
	for k, v := range r.Headers {
		call.Headers.Set(k, v)
	}
	if exec, ok := c.Exec(r.Alias); ok {
		return exec(ctx, r.Body, call)
	}
	if query, ok := c.Query(r.Alias); ok {
		return query(ctx, call)
	}
	return nil, fmt.Errorf("unknown alias %q (known: %s)", r.Alias, strings.Join(c.Aliases(), ", "))
}

func toAny(m map[string]string) map[string]any {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func readBody(s string) (any, error) {
	data := []byte(s)
	if name, ok := strings.CutPrefix(s, "@"); ok {
		var err error
		if data, err = os.ReadFile(name); err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	return v, nil
}
