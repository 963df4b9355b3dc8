// Package plugin implements the client-side interception chain and the
// built-in plugins that run around every dispatched call.
//
// A Chain is scoped to one endpoint (its scope key is "<method>-<path>") or to
// every endpoint (contract.AnyScopeKey). The client runs chains in this order:
//
//	any request -> endpoint request -> network -> endpoint response -> any response
//
// Within a chain, request phases run in registration order and response phases
// run in reverse registration order.
package plugin

import (
	"context"

	"github.com/broady/contract"
)

// RequestFunc transforms the call before it is dispatched. It returns the
// request seen by the next plugin, which is usually req itself.
type RequestFunc func(ctx context.Context, api *contract.Registry, req *Request) (*Request, error)

// ResponseFunc transforms the response after it is received.
type ResponseFunc func(ctx context.Context, api *contract.Registry, req *Request, res *Response) (*Response, error)

// Plugin is a pair of optional request and response transforms.
// A named plugin replaces a plugin of the same name already in the chain.
type Plugin struct {
	Name     string
	Request  RequestFunc
	Response ResponseFunc
}

// ID identifies a registered plugin for Eject.
type ID struct {
	Key  string
	Slot int
}

// Chain is an ordered list of plugin slots. Ejected plugins leave an empty
// slot behind so that IDs handed out earlier stay valid.
//
// Use and Eject are meant to be called during setup. A Chain is safe for
// concurrent interception once it is no longer being modified.
type Chain struct {
	key     string
	plugins []*Plugin
}

// NewChain returns an empty chain for a scope key.
func NewChain(key string) *Chain {
	return &Chain{key: key}
}

// Key returns the chain's scope key.
func (c *Chain) Key() string {
	return c.key
}

// Use registers p. If p is named and a live plugin with the same name exists,
// it is replaced in place and its ID is returned.
func (c *Chain) Use(p *Plugin) ID {
	if p.Name != "" {
		if slot := c.indexOf(p.Name); slot >= 0 {
			c.plugins[slot] = p
			return ID{Key: c.key, Slot: slot}
		}
	}
	c.plugins = append(c.plugins, p)
	return ID{Key: c.key, Slot: len(c.plugins) - 1}
}

// Eject removes the plugin registered under id.
func (c *Chain) Eject(id ID) error {
	if id.Key != c.key {
		return &ScopeMismatchError{Key: c.key, Got: id.Key}
	}
	if id.Slot < 0 || id.Slot >= len(c.plugins) {
		return &PluginNotFoundError{Key: c.key, Slot: id.Slot}
	}
	c.plugins[id.Slot] = nil
	return nil
}

// EjectNamed removes the first live plugin called name.
func (c *Chain) EjectNamed(name string) error {
	slot := c.indexOf(name)
	if slot < 0 {
		return &PluginNotFoundError{Key: c.key, Name: name, Slot: -1}
	}
	c.plugins[slot] = nil
	return nil
}

// Count returns the number of live plugins.
func (c *Chain) Count() int {
	n := 0
	for _, p := range c.plugins {
		if p != nil {
			n++
		}
	}
	return n
}

// InterceptRequest runs the request phase of every live plugin in
// registration order, feeding each the previous plugin's output.
func (c *Chain) InterceptRequest(ctx context.Context, api *contract.Registry, req *Request) (*Request, error) {
	for _, p := range c.plugins {
		if p == nil || p.Request == nil {
			continue
		}
		next, err := p.Request(ctx, api, req)
		if err != nil {
			return nil, err
		}
		if next != nil {
			req = next
		}
	}
	return req, nil
}

// InterceptResponse runs the response phase of every live plugin in reverse
// registration order.
func (c *Chain) InterceptResponse(ctx context.Context, api *contract.Registry, req *Request, res *Response) (*Response, error) {
	for i := len(c.plugins) - 1; i >= 0; i-- {
		p := c.plugins[i]
		if p == nil || p.Response == nil {
			continue
		}
		next, err := p.Response(ctx, api, req, res)
		if err != nil {
			return nil, err
		}
		if next != nil {
			res = next
		}
	}
	return res, nil
}

func (c *Chain) indexOf(name string) int {
	for i, p := range c.plugins {
		if p != nil && p.Name == name {
			return i
		}
	}
	return -1
}
