package contract

import (
	"strings"
)

// Registry is an immutable, validated list of endpoint definitions.
// It is built once by NewRegistry and consulted by clients and servers.
type Registry struct {
	endpoints []Endpoint
	byKey     map[string][]int
	byAlias   map[string][]int
}

// NewRegistry validates endpoints and returns a registry holding defaulted copies.
//
// Validation fails with *DuplicatePathError, *DuplicateAliasError,
// *MultipleBodyParametersError or *InvalidEndpointError.
func NewRegistry(endpoints ...Endpoint) (*Registry, error) {
	if err := Check(endpoints); err != nil {
		return nil, err
	}
	r := &Registry{
		endpoints: make([]Endpoint, len(endpoints)),
		byKey:     make(map[string][]int, len(endpoints)),
		byAlias:   make(map[string][]int),
	}
	for i, e := range endpoints {
		r.endpoints[i] = e.clone()
		r.byKey[e.ScopeKey()] = append(r.byKey[e.ScopeKey()], i)
		if e.Alias != "" {
			r.byAlias[e.Alias] = append(r.byAlias[e.Alias], i)
		}
	}
	return r, nil
}

// MustRegistry is like NewRegistry but panics on error.
// It is intended for package-level API declarations.
func MustRegistry(endpoints ...Endpoint) *Registry {
	r, err := NewRegistry(endpoints...)
	if err != nil {
		panic(err)
	}
	return r
}

// Check validates the registry invariants without building a registry.
func Check(endpoints []Endpoint) error {
	paths := make(map[string]struct{}, len(endpoints))
	aliases := make(map[string]struct{}, len(endpoints))

	for _, e := range endpoints {
		if !e.Method.Valid() {
			return &InvalidEndpointError{Method: e.Method, Path: e.Path, Reason: "unknown method"}
		}
		if e.Path == "" {
			return &InvalidEndpointError{Method: e.Method, Path: e.Path, Reason: "empty path"}
		}

		key := e.ScopeKey()
		if _, ok := paths[key]; ok {
			return &DuplicatePathError{Method: e.Method, Path: e.Path}
		}
		paths[key] = struct{}{}

		if e.Alias != "" {
			if _, ok := aliases[e.Alias]; ok {
				return &DuplicateAliasError{Alias: e.Alias}
			}
			aliases[e.Alias] = struct{}{}
		}

		if len(e.ParametersOf(ParamBody)) > 1 {
			return &MultipleBodyParametersError{Method: e.Method, Path: e.Path}
		}
	}
	return nil
}

// Endpoints returns a copy of the registered definitions in registration order.
func (r *Registry) Endpoints() []Endpoint {
	return append([]Endpoint(nil), r.endpoints...)
}

// Len returns the number of registered endpoints.
func (r *Registry) Len() int {
	return len(r.endpoints)
}

// FindByAlias returns the single endpoint with the given alias.
func (r *Registry) FindByAlias(alias string) (Endpoint, error) {
	return r.find(alias, r.byAlias[alias])
}

// FindByMethodAndPath returns the single endpoint registered for method and path.
func (r *Registry) FindByMethodAndPath(m Method, path string) (Endpoint, error) {
	return r.find(string(m)+" "+path, r.byKey[ScopeKey(m, path)])
}

func (r *Registry) find(key string, idx []int) (Endpoint, error) {
	switch len(idx) {
	case 0:
		return Endpoint{}, &NotFoundError{Key: key}
	case 1:
		return r.endpoints[idx[0]], nil
	default:
		return Endpoint{}, &AmbiguousError{Key: key, Count: len(idx)}
	}
}

// Lookup is the non-failing form of FindByMethodAndPath.
func (r *Registry) Lookup(m Method, path string) (Endpoint, bool) {
	e, err := r.FindByMethodAndPath(m, path)
	return e, err == nil
}

// MatchURL finds the endpoint whose path template matches a concrete url path,
// e.g. "/users/42" matches "get /users/:id". Exact template matches win.
func (r *Registry) MatchURL(m Method, url string) (Endpoint, bool) {
	if e, ok := r.Lookup(m, url); ok {
		return e, true
	}
	for _, e := range r.endpoints {
		if e.Method == m && MatchPath(e.Path, url) {
			return e, true
		}
	}
	return Endpoint{}, false
}

// API is one entry of a Merge: a path prefix and the endpoints mounted under it.
type API struct {
	Prefix    string
	Endpoints []Endpoint
}

// Prefix returns a copy of endpoints with every path rewritten to prefix+path.
// A slash shared by the end of prefix and the start of path appears once, and
// when the result ends in "/", exactly one trailing slash is removed.
func Prefix(prefix string, endpoints []Endpoint) []Endpoint {
	out := make([]Endpoint, len(endpoints))
	for i, e := range endpoints {
		c := e
		c.Parameters = append([]Parameter(nil), e.Parameters...)
		c.Errors = append([]ErrorDefinition(nil), e.Errors...)
		c.Path = cleanPath(joinPath(prefix, e.Path))
		out[i] = c
	}
	return out
}

// Merge concatenates Prefix(api.Prefix, api.Endpoints) for every api in order.
// The result is not validated; pass it to NewRegistry.
func Merge(apis ...API) []Endpoint {
	var out []Endpoint
	for _, api := range apis {
		out = append(out, Prefix(api.Prefix, api.Endpoints)...)
	}
	return out
}

// joinPath concatenates prefix and path, collapsing the slash they would
// otherwise duplicate at the seam.
func joinPath(prefix, path string) string {
	if strings.HasSuffix(prefix, "/") && strings.HasPrefix(path, "/") {
		return prefix + path[1:]
	}
	return prefix + path
}

func cleanPath(path string) string {
	if strings.HasSuffix(path, "/") {
		return path[:len(path)-1]
	}
	return path
}
