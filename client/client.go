// Package client dispatches calls described by a contract.Registry.
//
// Every call runs through the global plugin chain and the chain of the
// endpoint it targets:
//
//	any request -> endpoint request -> network -> endpoint response -> any response
//
// A new Client installs the validation plugin globally and the form plugins
// on endpoints whose RequestFormat needs them.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/plugin"
)

// Config holds the per-call inputs. URL is the endpoint's path template;
// Params fill its ":name" placeholders.
type Config struct {
	Method  contract.Method
	URL     string
	Params  map[string]any
	Queries map[string]any
	Headers http.Header
	Body    any
}

// QueryFunc calls a non-mutating endpoint by alias.
type QueryFunc func(ctx context.Context, cfg Config) (any, error)

// ExecFunc calls a mutating endpoint by alias.
type ExecFunc func(ctx context.Context, body any, cfg Config) (any, error)

// Client performs calls against one base URL.
type Client struct {
	baseURL string
	api     *contract.Registry
	opts    Options
	chains  map[string]*plugin.Chain
	queries map[string]QueryFunc
	execs   map[string]ExecFunc
}

// New returns a client for api served at baseURL.
func New(baseURL string, api *contract.Registry, opts Options) *Client {
	c := &Client{
		baseURL: baseURL,
		api:     api,
		opts:    opts.withDefaults(),
		chains:  make(map[string]*plugin.Chain),
		queries: make(map[string]QueryFunc),
		execs:   make(map[string]ExecFunc),
	}

	if c.opts.Validate != plugin.ModeNone || c.opts.Transform != plugin.ModeNone || c.opts.SendDefaults {
		c.UseGlobal(plugin.Validation(plugin.ValidationOptions{
			Validate:     c.opts.Validate,
			Transform:    c.opts.Transform,
			SendDefaults: c.opts.SendDefaults,
		}))
	}

	for _, e := range api.Endpoints() {
		switch e.Format() {
		case contract.FormatFormData:
			c.chain(e.ScopeKey()).Use(plugin.FormData())
		case contract.FormatFormURL:
			c.chain(e.ScopeKey()).Use(plugin.FormURL())
		}
		c.bindAlias(e)
	}
	return c
}

func (c *Client) bindAlias(e contract.Endpoint) {
	if e.Alias == "" {
		return
	}
	method, path := e.Method, e.Path
	if method.Mutating() {
		c.execs[e.Alias] = func(ctx context.Context, body any, cfg Config) (any, error) {
			cfg.Method, cfg.URL, cfg.Body = method, path, body
			return c.Request(ctx, cfg)
		}
		return
	}
	c.queries[e.Alias] = func(ctx context.Context, cfg Config) (any, error) {
		cfg.Method, cfg.URL = method, path
		return c.Request(ctx, cfg)
	}
}

// API returns the registry the client was built from.
func (c *Client) API() *contract.Registry {
	return c.api
}

// Query returns the call function of a non-mutating endpoint alias.
func (c *Client) Query(alias string) (QueryFunc, bool) {
	fn, ok := c.queries[alias]
	return fn, ok
}

// Exec returns the call function of a mutating endpoint alias.
func (c *Client) Exec(alias string) (ExecFunc, bool) {
	fn, ok := c.execs[alias]
	return fn, ok
}

// Aliases returns every bound alias in sorted order.
func (c *Client) Aliases() []string {
	out := make([]string, 0, len(c.queries)+len(c.execs))
	for a := range c.queries {
		out = append(out, a)
	}
	for a := range c.execs {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

func (c *Client) chain(key string) *plugin.Chain {
	ch, ok := c.chains[key]
	if !ok {
		ch = plugin.NewChain(key)
		c.chains[key] = ch
	}
	return ch
}

// UseGlobal registers p for every endpoint.
func (c *Client) UseGlobal(p *plugin.Plugin) plugin.ID {
	return c.chain(contract.AnyScopeKey).Use(p)
}

// UseEndpoint registers p for one endpoint.
func (c *Client) UseEndpoint(m contract.Method, path string, p *plugin.Plugin) (plugin.ID, error) {
	e, err := c.api.FindByMethodAndPath(m, path)
	if err != nil {
		return plugin.ID{}, err
	}
	return c.chain(e.ScopeKey()).Use(p), nil
}

// UseAlias registers p for the endpoint with the given alias.
func (c *Client) UseAlias(alias string, p *plugin.Plugin) (plugin.ID, error) {
	e, err := c.api.FindByAlias(alias)
	if err != nil {
		return plugin.ID{}, err
	}
	return c.chain(e.ScopeKey()).Use(p), nil
}

// UseMock registers the mock plugin globally.
func (c *Client) UseMock(data plugin.MockData, delay time.Duration) plugin.ID {
	return c.UseGlobal(plugin.Mock(data, delay))
}

// Eject removes the plugin registered under id.
func (c *Client) Eject(id plugin.ID) error {
	ch, ok := c.chains[id.Key]
	if !ok {
		return &plugin.PluginNotFoundError{Key: id.Key, Slot: id.Slot}
	}
	return ch.Eject(id)
}

// EjectNamed removes a named plugin from the global chain.
func (c *Client) EjectNamed(name string) error {
	return c.chain(contract.AnyScopeKey).EjectNamed(name)
}

// EjectNamedEndpoint removes a named plugin from the chain of one endpoint.
func (c *Client) EjectNamedEndpoint(m contract.Method, path, name string) error {
	e, err := c.api.FindByMethodAndPath(m, path)
	if err != nil {
		return err
	}
	return c.chain(e.ScopeKey()).EjectNamed(name)
}

// Get calls a get endpoint.
func (c *Client) Get(ctx context.Context, path string, cfg Config) (any, error) {
	cfg.Method, cfg.URL = contract.MethodGet, path
	return c.Request(ctx, cfg)
}

// Post calls a post endpoint with body.
func (c *Client) Post(ctx context.Context, path string, body any, cfg Config) (any, error) {
	cfg.Method, cfg.URL, cfg.Body = contract.MethodPost, path, body
	return c.Request(ctx, cfg)
}

// Put calls a put endpoint with body.
func (c *Client) Put(ctx context.Context, path string, body any, cfg Config) (any, error) {
	cfg.Method, cfg.URL, cfg.Body = contract.MethodPut, path, body
	return c.Request(ctx, cfg)
}

// Patch calls a patch endpoint with body.
func (c *Client) Patch(ctx context.Context, path string, body any, cfg Config) (any, error) {
	cfg.Method, cfg.URL, cfg.Body = contract.MethodPatch, path, body
	return c.Request(ctx, cfg)
}

// Delete calls a delete endpoint with body.
func (c *Client) Delete(ctx context.Context, path string, body any, cfg Config) (any, error) {
	cfg.Method, cfg.URL, cfg.Body = contract.MethodDelete, path, body
	return c.Request(ctx, cfg)
}

// Request performs one call and returns the parsed response body.
func (c *Client) Request(ctx context.Context, cfg Config) (any, error) {
	global := c.chains[contract.AnyScopeKey]
	local := c.chains[contract.ScopeKey(cfg.Method, cfg.URL)]

	req := &plugin.Request{
		Method:  cfg.Method,
		URL:     cfg.URL,
		Headers: cfg.Headers,
		Params:  cfg.Params,
		Queries: cfg.Queries,
		Body:    cfg.Body,
	}
	// Plugins may write to the maps; keep the caller's untouched.
	req = req.Clone()

	var err error
	for _, ch := range []*plugin.Chain{global, local} {
		if ch == nil {
			continue
		}
		if req, err = ch.InterceptRequest(ctx, c.api, req); err != nil {
			return nil, err
		}
	}

	if req.MockResponse != nil {
		return req.MockResponse.DecodeJSON()
	}

	url := contract.JoinURL(c.baseURL, contract.ReplacePathParams(req.URL, req.Params))
	if q := contract.EncodeQuery(req.Queries); q != "" {
		if strings.Contains(url, "?") {
			url += "&" + q
		} else {
			url += "?" + q
		}
	}

	res, err := c.send(ctx, req, url)
	if err != nil {
		return nil, err
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		e, _ := req.Endpoint(c.api)
		rerr := newRequestFailedError(ctx, e, req.Method, url, res)
		if rerr.Status == http.StatusUnauthorized && c.opts.OnUnauthorized != nil {
			c.opts.OnUnauthorized(ctx, rerr)
		}
		return nil, rerr
	}

	for _, ch := range []*plugin.Chain{local, global} {
		if ch == nil {
			continue
		}
		if res, err = ch.InterceptResponse(ctx, c.api, req, res); err != nil {
			return nil, err
		}
	}

	return decodeBody(res)
}

// decodeBody returns the parsed body left by a plugin, or decodes JSON.
// Text responses are returned as strings.
func decodeBody(res *plugin.Response) (any, error) {
	if v, ok := res.Parsed(); ok {
		return v, nil
	}
	if strings.HasPrefix(res.ContentType(), "text/") {
		data, err := res.ReadBody()
		if err != nil {
			return nil, fmt.Errorf("client: read response body: %w", err)
		}
		return string(data), nil
	}
	return res.DecodeJSON()
}

// send performs the network call, retrying transport errors and 5xx
// responses as configured.
func (c *Client) send(ctx context.Context, req *plugin.Request, url string) (*plugin.Response, error) {
	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; ; attempt++ {
		hreq, err := http.NewRequestWithContext(ctx, req.Method.HTTP(), url, bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("client: build request: %w", err)
		}
		if body == nil {
			hreq.Body = http.NoBody
		}
		for k, vs := range req.Headers {
			hreq.Header[k] = append([]string(nil), vs...)
		}
		if contentType != "" && hreq.Header.Get("Content-Type") == "" {
			hreq.Header.Set("Content-Type", contentType)
		}
		if hreq.Header.Get("Accept") == "" {
			hreq.Header.Set("Accept", "application/json")
		}

		res, err := c.opts.HTTPClient.Do(hreq)
		retryable := err != nil || res.StatusCode >= 500
		if !retryable || attempt >= c.opts.Retry.Count {
			if err != nil {
				return nil, fmt.Errorf("client: %s %s: %w", req.Method, url, err)
			}
			return plugin.NewResponse(res), nil
		}

		attrs := []any{
			slog.String("endpoint", contract.ScopeKey(req.Method, req.URL)),
			slog.Int("attempt", attempt+1),
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
		} else {
			attrs = append(attrs, slog.Int("status", res.StatusCode))
			res.Body.Close()
		}
		c.opts.Logger.WarnContext(ctx, "request failed, retrying", attrs...)

		if err := wait(ctx, c.opts.Retry.Delay); err != nil {
			return nil, fmt.Errorf("client: %s %s: %w", req.Method, url, err)
		}
	}
}

func encodeBody(req *plugin.Request) ([]byte, string, error) {
	if req.Payload != nil {
		return req.Payload.Data, req.Payload.ContentType, nil
	}
	switch b := req.Body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return b, "application/octet-stream", nil
	}
	data, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("client: encode body: %w", err)
	}
	return data, "application/json", nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
