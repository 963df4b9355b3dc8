package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/broady/contract/server"
)

// Principal is what an AuthFunc knows about the caller.
type Principal struct {
	Session     bool
	User        string
	Roles       []string
	Permissions []string
}

// AuthFunc resolves the caller of req. A nil Principal means anonymous.
type AuthFunc func(ctx context.Context, req *server.Request) (*Principal, error)

// PrincipalKey is the request value key RequireAuth stores the principal under.
const PrincipalKey = "principal"

// PrincipalFrom returns the principal stored by RequireAuth.
func PrincipalFrom(req *server.Request) (*Principal, bool) {
	p, ok := req.Value(PrincipalKey).(*Principal)
	return p, ok
}

// RequireAuth enforces each endpoint's Auth metadata, falling back to
// contract.DefaultAuth for endpoints that declare none. Missing sessions or
// users get 401; missing roles or permissions get 403. Errors from fn end
// the request with 500.
func RequireAuth(fn AuthFunc) server.Middleware {
	return func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		p, err := fn(ctx, req)
		if err != nil {
			return err
		}
		if p == nil {
			p = &Principal{}
		}

		auth := req.Endpoint.AuthConfig()
		switch {
		case auth.RequireSession && !p.Session, auth.RequireUser && p.User == "":
			return w.Status(http.StatusUnauthorized).JSON(map[string]string{"error": "Unauthorized"})
		case !containsAll(p.Roles, auth.Roles), !containsAll(p.Permissions, auth.Permissions):
			return w.Status(http.StatusForbidden).JSON(map[string]string{"error": "Forbidden"})
		}

		req.Set(PrincipalKey, p)
		next()
		return nil
	}
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
