package contract

import (
	"fmt"
	"net/http"
	"strings"
)

// Method is an HTTP method in the lower-case form used by endpoint definitions.
type Method string

const (
	MethodGet     Method = "get"
	MethodHead    Method = "head"
	MethodOptions Method = "options"
	MethodPost    Method = "post"
	MethodPut     Method = "put"
	MethodPatch   Method = "patch"
	MethodDelete  Method = "delete"
)

// MethodAny is the scope sentinel for plugins that apply to every endpoint.
// It is never a valid endpoint method.
const MethodAny Method = "any"

// Methods lists every method an endpoint may declare.
var Methods = []Method{MethodGet, MethodHead, MethodOptions, MethodPost, MethodPut, MethodPatch, MethodDelete}

// ParseMethod accepts a method name in any case ("GET", "get", "Get").
func ParseMethod(s string) (Method, error) {
	m := Method(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("contract: unknown method %q", s)
	}
	return m, nil
}

// Valid reports whether m is one of the enumerated endpoint methods.
func (m Method) Valid() bool {
	for _, v := range Methods {
		if v == m {
			return true
		}
	}
	return false
}

// HTTP returns the canonical upper-case method, e.g. "GET".
func (m Method) HTTP() string {
	return strings.ToUpper(string(m))
}

// Mutating reports whether calls with this method carry a request body.
func (m Method) Mutating() bool {
	switch m {
	case MethodPost, MethodPut, MethodPatch, MethodDelete:
		return true
	}
	return false
}

// ParamType is the location a parameter is read from.
type ParamType string

const (
	ParamQuery  ParamType = "Query"
	ParamBody   ParamType = "Body"
	ParamHeader ParamType = "Header"
	ParamPath   ParamType = "Path"
)

// RequestFormat selects the encoding applied to request bodies.
type RequestFormat string

const (
	FormatJSON     RequestFormat = "json"
	FormatFormData RequestFormat = "form-data"
	FormatFormURL  RequestFormat = "form-url"
	FormatBinary   RequestFormat = "binary"
	FormatText     RequestFormat = "text"
)

// Parameter declares one input of an endpoint.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Schema      Schema
}

// ErrorDefinition describes the body returned for a non-success status.
// Default marks the catch-all entry used when no Status matches.
type ErrorDefinition struct {
	Status      int
	Default     bool
	Description string
	Schema      Schema
}

// Auth is advisory access metadata consumed by server middleware.
type Auth struct {
	RequireSession bool
	RequireUser    bool
	Roles          []string
	Permissions    []string
}

// DefaultAuth is applied to endpoints that do not declare Auth.
func DefaultAuth() Auth {
	return Auth{
		RequireSession: true,
		RequireUser:    false,
		Roles:          []string{},
		Permissions:    []string{},
	}
}

// Endpoint is the contract for one method and path.
type Endpoint struct {
	Method        Method
	Path          string
	Alias         string
	Description   string
	Parameters    []Parameter
	Response      Schema
	Errors        []ErrorDefinition
	RequestFormat RequestFormat
	Auth          *Auth
}

// ScopeKey returns the "<method>-<path>" key identifying the endpoint's plugin scope.
func (e Endpoint) ScopeKey() string {
	return ScopeKey(e.Method, e.Path)
}

// ScopeKey builds a plugin scope key. ScopeKey(MethodAny, "any") is the global scope.
func ScopeKey(m Method, path string) string {
	return string(m) + "-" + path
}

// AnyScopeKey is the scope key of the global plugin chain.
var AnyScopeKey = ScopeKey(MethodAny, "any")

// String formats the endpoint as "get /users".
func (e Endpoint) String() string {
	return string(e.Method) + " " + e.Path
}

// Format returns the request format, defaulting to JSON.
func (e Endpoint) Format() RequestFormat {
	if e.RequestFormat == "" {
		return FormatJSON
	}
	return e.RequestFormat
}

// ParametersOf returns the declared parameters of the given type in declaration order.
func (e Endpoint) ParametersOf(t ParamType) []Parameter {
	var out []Parameter
	for _, p := range e.Parameters {
		if p.Type == t {
			out = append(out, p)
		}
	}
	return out
}

// BodyParameter returns the Body parameter if one is declared.
func (e Endpoint) BodyParameter() (Parameter, bool) {
	for _, p := range e.Parameters {
		if p.Type == ParamBody {
			return p, true
		}
	}
	return Parameter{}, false
}

// AuthConfig returns the endpoint's auth metadata with defaults filled in.
func (e Endpoint) AuthConfig() Auth {
	if e.Auth == nil {
		return DefaultAuth()
	}
	a := *e.Auth
	if a.Roles == nil {
		a.Roles = []string{}
	}
	if a.Permissions == nil {
		a.Permissions = []string{}
	}
	return a
}

// MatchErrors returns the error definitions for status: entries declaring
// that exact status, or the Default entries when none match.
func (e Endpoint) MatchErrors(status int) []ErrorDefinition {
	var exact, fallback []ErrorDefinition
	for _, d := range e.Errors {
		switch {
		case d.Default:
			fallback = append(fallback, d)
		case d.Status == status:
			exact = append(exact, d)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return fallback
}

// HTTPMethodToMethod converts a net/http method constant.
func HTTPMethodToMethod(method string) Method {
	switch method {
	case http.MethodGet:
		return MethodGet
	case http.MethodHead:
		return MethodHead
	case http.MethodOptions:
		return MethodOptions
	case http.MethodPost:
		return MethodPost
	case http.MethodPut:
		return MethodPut
	case http.MethodPatch:
		return MethodPatch
	case http.MethodDelete:
		return MethodDelete
	}
	return Method(strings.ToLower(method))
}

// clone returns a copy whose slices are not shared with e.
func (e Endpoint) clone() Endpoint {
	c := e
	c.Parameters = append([]Parameter(nil), e.Parameters...)
	c.Errors = append([]ErrorDefinition(nil), e.Errors...)
	auth := e.AuthConfig()
	auth.Roles = append([]string{}, auth.Roles...)
	auth.Permissions = append([]string{}, auth.Permissions...)
	c.Auth = &auth
	if c.RequestFormat == "" {
		c.RequestFormat = FormatJSON
	}
	return c
}
