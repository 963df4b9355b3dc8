package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMethod(t *testing.T) {
	m, err := ParseMethod("GET")
	require.NoError(t, err)
	assert.Equal(t, MethodGet, m)

	_, err = ParseMethod("any")
	assert.Error(t, err)
}

func TestMethod_Mutating(t *testing.T) {
	for _, m := range []Method{MethodPost, MethodPut, MethodPatch, MethodDelete} {
		assert.True(t, m.Mutating(), m)
	}
	for _, m := range []Method{MethodGet, MethodHead, MethodOptions} {
		assert.False(t, m.Mutating(), m)
	}
	assert.Equal(t, "PATCH", MethodPatch.HTTP())
	assert.Equal(t, MethodPatch, HTTPMethodToMethod("PATCH"))
}

func TestEndpoint_AuthConfig(t *testing.T) {
	e := Endpoint{Method: MethodGet, Path: "/"}
	assert.Equal(t, DefaultAuth(), e.AuthConfig())

	e.Auth = &Auth{RequireUser: true, Roles: []string{"admin"}}
	got := e.AuthConfig()
	assert.False(t, got.RequireSession)
	assert.True(t, got.RequireUser)
	assert.Equal(t, []string{"admin"}, got.Roles)
	assert.Equal(t, []string{}, got.Permissions)
}

func TestEndpoint_MatchErrors(t *testing.T) {
	e := Endpoint{Errors: []ErrorDefinition{
		{Status: 404, Description: "missing"},
		{Default: true, Description: "fallback"},
		{Status: 404, Description: "gone too"},
	}}

	got := e.MatchErrors(404)
	require.Len(t, got, 2)
	assert.Equal(t, "missing", got[0].Description)

	got = e.MatchErrors(500)
	require.Len(t, got, 1)
	assert.Equal(t, "fallback", got[0].Description)

	assert.Empty(t, Endpoint{}.MatchErrors(500))
}

func TestEndpoint_Parameters(t *testing.T) {
	e := Endpoint{Parameters: []Parameter{
		{Name: "id", Type: ParamPath},
		{Name: "limit", Type: ParamQuery},
		{Name: "offset", Type: ParamQuery},
		{Name: "body", Type: ParamBody},
	}}

	q := e.ParametersOf(ParamQuery)
	require.Len(t, q, 2)
	assert.Equal(t, "limit", q[0].Name)

	body, ok := e.BodyParameter()
	assert.True(t, ok)
	assert.Equal(t, "body", body.Name)

	_, ok = Endpoint{}.BodyParameter()
	assert.False(t, ok)
}

func TestEndpoint_ScopeKey(t *testing.T) {
	e := Endpoint{Method: MethodGet, Path: "/users"}
	assert.Equal(t, "get-/users", e.ScopeKey())
	assert.Equal(t, "any-any", AnyScopeKey)
	assert.Equal(t, "get /users", e.String())
	assert.Equal(t, FormatJSON, e.Format())
}

func TestSchemaFunc(t *testing.T) {
	s := SchemaFunc(func(_ context.Context, v any) (any, error) {
		if v == nil {
			return nil, NewSchemaError("", "required")
		}
		return v, nil
	})

	_, err := s.Parse(context.Background(), nil)
	var serr *SchemaError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "required", serr.Error())

	v, err := s.Parse(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSchemaError_Error(t *testing.T) {
	err := &SchemaError{Issues: []Issue{{Path: "name", Message: "required"}, {Message: "bad"}}}
	assert.Equal(t, "name: required; bad", err.Error())
}
