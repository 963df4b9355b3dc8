package plugin

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/broady/contract"
)

// Mode selects which phases of a call a feature applies to.
type Mode string

const (
	ModeAll      Mode = "all"
	ModeRequest  Mode = "request"
	ModeResponse Mode = "response"
	ModeNone     Mode = "none"
)

// ParseMode accepts "true"/"all", "request", "response" and "false"/"none".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "all":
		return ModeAll, nil
	case "request":
		return ModeRequest, nil
	case "response":
		return ModeResponse, nil
	case "false", "none", "":
		return ModeNone, nil
	}
	return "", fmt.Errorf("plugin: invalid mode %q", s)
}

// Requests reports whether m covers the request phase.
func (m Mode) Requests() bool { return m == ModeAll || m == ModeRequest }

// Responses reports whether m covers the response phase.
func (m Mode) Responses() bool { return m == ModeAll || m == ModeResponse }

// ValidationOptions configures the Validation plugin.
type ValidationOptions struct {
	Validate Mode
	// Transform replaces raw values with the values returned by the schema.
	Transform Mode
	// SendDefaults validates absent parameters too, so schemas with
	// defaults can fill them in.
	SendDefaults bool
}

// ValidationName is the name of the plugin returned by Validation.
const ValidationName = "validation"

// Validation returns the plugin that checks parameters and responses against
// the endpoint's schemas.
func Validation(opts ValidationOptions) *Plugin {
	p := &Plugin{Name: ValidationName}
	if opts.Validate.Requests() || opts.Transform.Requests() {
		p.Request = func(ctx context.Context, api *contract.Registry, req *Request) (*Request, error) {
			e, ok := req.Endpoint(api)
			if !ok {
				return req, nil
			}
			return req, validateParameters(ctx, e, req, opts)
		}
	}
	if opts.Validate.Responses() || opts.Transform.Responses() {
		p.Response = func(ctx context.Context, api *contract.Registry, req *Request, res *Response) (*Response, error) {
			e, ok := req.Endpoint(api)
			if !ok || e.Response == nil || !res.IsJSON() {
				return res, nil
			}
			return validateResponse(ctx, e, res, opts)
		}
	}
	return p
}

func validateParameters(ctx context.Context, e contract.Endpoint, req *Request, opts ValidationOptions) error {
	for _, p := range e.Parameters {
		if p.Schema == nil {
			continue
		}
		value, defined := parameterValue(req, p)
		if !defined && !opts.SendDefaults {
			continue
		}
		parsed, err := p.Schema.Parse(ctx, value)
		if err != nil {
			if !opts.Validate.Requests() {
				continue
			}
			return &contract.ValidationError{Type: p.Type, Name: p.Name, Cause: err}
		}
		if opts.Transform.Requests() && (defined || parsed != nil) {
			setParameterValue(req, p, parsed)
		}
	}
	return nil
}

func parameterValue(req *Request, p contract.Parameter) (any, bool) {
	switch p.Type {
	case contract.ParamBody:
		return req.Body, req.Body != nil
	case contract.ParamQuery:
		v, ok := req.Queries[p.Name]
		return v, ok && v != nil
	case contract.ParamPath:
		v, ok := req.Params[p.Name]
		return v, ok && v != nil
	case contract.ParamHeader:
		vals := req.Headers.Values(p.Name)
		if len(vals) == 0 {
			return nil, false
		}
		return vals[0], true
	}
	return nil, false
}

func setParameterValue(req *Request, p contract.Parameter, v any) {
	switch p.Type {
	case contract.ParamBody:
		req.Body = v
	case contract.ParamQuery:
		req.setQuery(p.Name, v)
	case contract.ParamPath:
		req.setParam(p.Name, v)
	case contract.ParamHeader:
		if v != nil {
			req.setHeader(p.Name, fmt.Sprint(v))
		}
	}
}

func validateResponse(ctx context.Context, e contract.Endpoint, res *Response, opts ValidationOptions) (*Response, error) {
	data, err := res.DecodeJSON()
	if err != nil {
		return nil, err
	}
	parsed, err := e.Response.Parse(ctx, data)
	if err != nil {
		if !opts.Validate.Responses() {
			return res, nil
		}
		return nil, &contract.ResponseValidationError{
			Method:     e.Method,
			Path:       e.Path,
			Status:     res.StatusCode,
			StatusText: http.StatusText(res.StatusCode),
			Cause:      err,
		}
	}
	if opts.Transform.Responses() {
		res.SetParsed(parsed)
	}
	return res, nil
}
