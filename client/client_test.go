package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/plugin"
	"github.com/broady/contract/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

var userSchema = schema.Object(schema.Fields{
	"id":   schema.Int(),
	"name": schema.String(),
})

func usersAPI() *contract.Registry {
	return contract.MustRegistry(
		contract.Endpoint{
			Method: contract.MethodGet,
			Path:   "/users",
			Alias:  "getUsers",
			Parameters: []contract.Parameter{
				{Name: "limit", Type: contract.ParamQuery, Schema: schema.Optional(schema.Int())},
			},
			Response: schema.Array(userSchema),
		},
		contract.Endpoint{
			Method: contract.MethodGet,
			Path:   "/users/:id",
			Alias:  "getUser",
			Parameters: []contract.Parameter{
				{Name: "id", Type: contract.ParamPath, Schema: schema.Int()},
			},
			Response: userSchema,
			Errors: []contract.ErrorDefinition{
				{Status: 404, Schema: schema.Object(schema.Fields{"error": schema.String()})},
				{Default: true, Schema: schema.Any()},
			},
		},
		contract.Endpoint{
			Method: contract.MethodPost,
			Path:   "/users",
			Alias:  "createUser",
			Parameters: []contract.Parameter{
				{Name: "body", Type: contract.ParamBody, Schema: schema.Struct[User]()},
			},
			Response: userSchema,
		},
		contract.Endpoint{
			Method:        contract.MethodPost,
			Path:          "/login",
			RequestFormat: contract.FormatFormURL,
			Parameters: []contract.Parameter{
				{Name: "body", Type: contract.ParamBody},
			},
			Response: schema.Any(),
		},
	)
}

// failingDoer fails the test when a network call is attempted.
type failingDoer struct{ t *testing.T }

func (d failingDoer) Do(r *http.Request) (*http.Response, error) {
	d.t.Errorf("unexpected network call to %s", r.URL)
	return nil, errors.New("network disabled")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func TestClient_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, "10", r.URL.Query().Get("limit"))
		writeJSON(w, 200, []User{{ID: 1, Name: "John Doe"}})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	res, err := c.Get(context.Background(), "/users", Config{Queries: map[string]any{"limit": "10"}})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": int64(1), "name": "John Doe"}}, res)

	users, err := Decode[[]User](res)
	require.NoError(t, err)
	assert.Equal(t, []User{{ID: 1, Name: "John Doe"}}, users)
}

func TestClient_PathParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/7", r.URL.Path)
		writeJSON(w, 200, User{ID: 7, Name: "Jane"})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	getUser, ok := c.Query("getUser")
	require.True(t, ok)

	res, err := getUser(context.Background(), Config{Params: map[string]any{"id": 7}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(7), "name": "Jane"}, res)
}

func TestClient_Exec(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var u User
		require.NoError(t, json.NewDecoder(r.Body).Decode(&u))
		u.ID = 99
		writeJSON(w, 201, u)
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	createUser, ok := c.Exec("createUser")
	require.True(t, ok)
	_, ok = c.Query("createUser")
	assert.False(t, ok)

	res, err := createUser(context.Background(), map[string]any{"id": 0, "name": "New"}, Config{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(99), "name": "New"}, res)

	assert.Equal(t, []string{"createUser", "getUser", "getUsers"}, c.Aliases())
}

func TestClient_RequestValidation(t *testing.T) {
	c := New("http://example.invalid", usersAPI(), Options{HTTPClient: failingDoer{t}})

	_, err := c.Get(context.Background(), "/users/:id", Config{Params: map[string]any{"id": "abc"}})
	var verr *contract.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "id", verr.Name)
}

func TestClient_ResponseValidation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, map[string]any{"id": "not a number"})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	_, err := c.Get(context.Background(), "/users/:id", Config{Params: map[string]any{"id": 1}})
	var rerr *contract.ResponseValidationError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "/users/:id", rerr.Path)

	// Without validation the raw body comes back.
	c = New(srv.URL, usersAPI(), Options{Validate: plugin.ModeNone, Transform: plugin.ModeNone})
	res, err := c.Get(context.Background(), "/users/:id", Config{Params: map[string]any{"id": 1}})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "not a number"}, res)
}

func TestClient_RequestFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/1") {
			writeJSON(w, 404, map[string]any{"error": "User not found"})
			return
		}
		writeJSON(w, 418, map[string]any{"tea": true})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	_, err := c.Get(context.Background(), "/users/:id", Config{Params: map[string]any{"id": 1}})

	var rerr *RequestFailedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 404, rerr.Status)
	assert.True(t, rerr.Valid)
	require.NotNil(t, rerr.Definition)
	assert.Equal(t, 404, rerr.Definition.Status)
	assert.Equal(t, map[string]any{"error": "User not found"}, rerr.Body)

	status, ok := contract.ErrorStatus(err)
	assert.True(t, ok)
	assert.Equal(t, 404, status)

	_, err = c.Get(context.Background(), "/users/:id", Config{Params: map[string]any{"id": 2}})
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, 418, rerr.Status)
	require.NotNil(t, rerr.Definition)
	assert.True(t, rerr.Definition.Default)
}

func TestClient_OnUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"error": "Unauthorized"})
	}))
	defer srv.Close()

	var called bool
	c := New(srv.URL, usersAPI(), Options{OnUnauthorized: func(_ context.Context, err *RequestFailedError) {
		called = true
		assert.Equal(t, 401, err.Status)
	}})
	_, err := c.Get(context.Background(), "/users", Config{})
	assert.Error(t, err)
	assert.True(t, called)
}

func TestClient_Mock(t *testing.T) {
	c := New("http://example.invalid", usersAPI(), Options{HTTPClient: failingDoer{t}})
	c.UseMock(plugin.MockData{
		contract.MethodGet: {
			"/users": {Response: []any{map[string]any{"id": 1, "name": "John Doe"}}},
		},
	}, 0)

	res, err := c.Get(context.Background(), "/users", Config{})
	require.NoError(t, err)
	assert.Equal(t, []any{map[string]any{"id": 1, "name": "John Doe"}}, res)
}

func TestClient_PluginOrder(t *testing.T) {
	var order []string
	record := func(name string) *plugin.Plugin {
		return &plugin.Plugin{
			Request: func(_ context.Context, _ *contract.Registry, req *plugin.Request) (*plugin.Request, error) {
				order = append(order, "request-"+name)
				return req, nil
			},
			Response: func(_ context.Context, _ *contract.Registry, _ *plugin.Request, res *plugin.Response) (*plugin.Response, error) {
				order = append(order, "response-"+name)
				return res, nil
			},
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "network")
		writeJSON(w, 200, []User{})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{Validate: plugin.ModeNone, Transform: plugin.ModeNone})
	_, err := c.UseAlias("getUsers", record("endpoint"))
	require.NoError(t, err)
	c.UseGlobal(record("any"))

	_, err = c.Get(context.Background(), "/users", Config{})
	require.NoError(t, err)
	assert.Equal(t, []string{"request-any", "request-endpoint", "network", "response-endpoint", "response-any"}, order)
}

func TestClient_UseAndEject(t *testing.T) {
	c := New("http://example.invalid", usersAPI(), Options{})

	_, err := c.UseAlias("missing", plugin.Header("X", "1"))
	var nf *contract.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = c.UseEndpoint(contract.MethodDelete, "/users", plugin.Header("X", "1"))
	assert.ErrorAs(t, err, &nf)

	id, err := c.UseEndpoint(contract.MethodGet, "/users", plugin.Header("X", "1"))
	require.NoError(t, err)
	assert.Equal(t, "get-/users", id.Key)
	require.NoError(t, c.Eject(id))

	var notFound *plugin.PluginNotFoundError
	assert.ErrorAs(t, c.Eject(plugin.ID{Key: "get-/nowhere"}), &notFound)

	require.NoError(t, c.EjectNamed(plugin.ValidationName))
	assert.ErrorAs(t, c.EjectNamed(plugin.ValidationName), &notFound)

	require.NoError(t, c.EjectNamedEndpoint(contract.MethodPost, "/login", plugin.FormURLName))
	assert.ErrorAs(t, c.EjectNamedEndpoint(contract.MethodPost, "/login", plugin.FormURLName), &notFound)
	assert.ErrorAs(t, c.EjectNamedEndpoint(contract.MethodDelete, "/users", plugin.FormURLName), &nf)
}

func TestClient_FormURLEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		writeJSON(w, 200, map[string]any{"user": r.PostForm.Get("user")})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	res, err := c.Post(context.Background(), "/login", map[string]any{"user": "jane", "password": "x"}, Config{})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"user": "jane"}, res)
}

func TestClient_Retry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, 200, []User{})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{
		Retry:  Retry{Count: 2, Delay: time.Millisecond},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	res, err := c.Get(context.Background(), "/users", Config{})
	require.NoError(t, err)
	assert.Equal(t, []any{}, res)
	assert.Equal(t, int32(3), calls.Load())

	calls.Store(0)
	c = New(srv.URL, usersAPI(), Options{})
	_, err = c.Get(context.Background(), "/users", Config{})
	var rerr *RequestFailedError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, http.StatusServiceUnavailable, rerr.Status)
}

func TestClient_CallerMapsUntouched(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 200, []User{})
	}))
	defer srv.Close()

	c := New(srv.URL, usersAPI(), Options{})
	queries := map[string]any{"limit": "5"}
	_, err := c.Get(context.Background(), "/users", Config{Queries: queries})
	require.NoError(t, err)
	assert.Equal(t, "5", queries["limit"])
}

func TestClient_TextResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "pong")
	}))
	defer srv.Close()

	c := New(srv.URL, contract.MustRegistry(contract.Endpoint{Method: contract.MethodGet, Path: "/ping"}), Options{})
	res, err := c.Get(context.Background(), "/ping", Config{})
	require.NoError(t, err)
	assert.Equal(t, "pong", res)
}
