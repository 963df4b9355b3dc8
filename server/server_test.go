package server_test

import (
	"context"
	"errors"
	"math"
	"net/http"
	"testing"

	"github.com/broady/contract"
	"github.com/broady/contract/schema"
	"github.com/broady/contract/server"
	"github.com/broady/contract/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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
				{Name: "limit", Type: contract.ParamQuery, Schema: schema.Default(schema.Int(), int64(10))},
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
		},
		contract.Endpoint{
			Method: contract.MethodPost,
			Path:   "/users",
			Alias:  "createUser",
			Parameters: []contract.Parameter{
				{Name: "body", Type: contract.ParamBody, Schema: schema.Object(schema.Fields{"name": schema.String()})},
				{Name: "x-tenant", Type: contract.ParamHeader, Schema: schema.Optional(schema.String())},
			},
			Response: userSchema,
		},
	)
}

func newServer(t *testing.T) *server.Server {
	t.Helper()
	s := server.New(usersAPI())

	_, err := s.HandleAlias("getUsers", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		n := req.ParsedQuery["limit"].(int64)
		out := make([]any, 0, n)
		for i := int64(1); i <= n && i <= 2; i++ {
			out = append(out, map[string]any{"id": i, "name": "user"})
		}
		return out, nil
	})
	require.NoError(t, err)

	_, err = s.HandleAlias("getUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		id := req.ParsedParams["id"].(int64)
		if id == 404 {
			return nil, contract.StatusError(http.StatusNotFound, "no such user")
		}
		return map[string]any{"id": id, "name": "alice"}, nil
	})
	require.NoError(t, err)

	_, err = s.HandleAlias("createUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		body := req.ParsedBody.(map[string]any)
		return map[string]any{"id": 7, "name": body["name"], "tenant": req.ParsedHeaders["x-tenant"]}, nil
	})
	require.NoError(t, err)
	return s
}

func TestServe_Success(t *testing.T) {
	s := newServer(t)

	req, w := testutil.NewRequest().GET("/users/3").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, map[string]any{"id": 3, "name": "alice"})
}

func TestServe_QueryDefault(t *testing.T) {
	s := newServer(t)

	req, w := testutil.NewRequest().GET("/users").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var users []map[string]any
	testutil.DecodeJSON(t, w, &users)
	assert.Len(t, users, 2)

	req, w = testutil.NewRequest().GET("/users").WithQuery("limit", "1").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertJSONResponse(t, w, []any{map[string]any{"id": 1, "name": "user"}})
}

func TestServe_BodyAndHeader(t *testing.T) {
	s := newServer(t)

	req, w := testutil.NewRequest().
		POST("/users").
		WithJSON(map[string]any{"name": "bob"}).
		WithHeader("X-Tenant", "acme").
		Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSONResponse(t, w, map[string]any{"id": 7, "name": "bob", "tenant": "acme"})
}

func TestServe_InvalidRequest(t *testing.T) {
	s := newServer(t)

	tests := []struct {
		name string
		req  *testutil.RequestBuilder
	}{
		{"bad path param", testutil.NewRequest().GET("/users/abc")},
		{"bad query", testutil.NewRequest().GET("/users").WithQuery("limit", "many")},
		{"missing body field", testutil.NewRequest().POST("/users").WithJSON(map[string]any{})},
		{"malformed json", testutil.NewRequest().POST("/users").WithBody("{").WithHeader("Content-Type", "application/json")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, w := tt.req.Build()
			s.Handler().ServeHTTP(w, req)
			testutil.AssertJSONError(t, w, http.StatusBadRequest, "Invalid request")
		})
	}
}

func TestServe_StatusError(t *testing.T) {
	s := newServer(t)

	req, w := testutil.NewRequest().GET("/users/404").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertJSONError(t, w, http.StatusNotFound, "Request failed")
}

func TestServe_NotFound(t *testing.T) {
	s := newServer(t)

	req, w := testutil.NewRequest().GET("/posts").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertJSONError(t, w, http.StatusNotFound, "Endpoint not found")
}

func TestServe_MethodNotAllowed(t *testing.T) {
	s := newServer(t)
	var ran bool
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		ran = true
		next()
		return nil
	})

	req, w := testutil.NewRequest().DELETE("/users/1").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertJSONError(t, w, http.StatusMethodNotAllowed, "Method not allowed")
	assert.False(t, ran, "middleware must not run before the method check")
}

func TestServe_HandlerError(t *testing.T) {
	api := usersAPI()
	s := server.New(api)
	h, err := s.Handle(contract.MethodGet, "/users/:id", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		return nil, errors.New("database down")
	})
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	h.Serve(context.Background(), &server.Request{Method: "GET", Params: map[string]any{"id": "1"}}, rec)
	rec.AssertError(t, http.StatusInternalServerError, "Internal server error")
}

func TestServe_InvalidResponse(t *testing.T) {
	s := server.New(usersAPI())
	h, err := s.HandleAlias("getUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		return map[string]any{"id": "not a number"}, nil
	})
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	h.Serve(context.Background(), &server.Request{Method: "GET", Params: map[string]any{"id": "1"}}, rec)
	rec.AssertError(t, http.StatusInternalServerError, "Internal server error")
}

func TestServe_UnencodableResponse(t *testing.T) {
	s := server.New(contract.MustRegistry(contract.Endpoint{Method: contract.MethodGet, Path: "/ratio"}))
	_, err := s.Handle(contract.MethodGet, "/ratio", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		return math.NaN(), nil
	})
	require.NoError(t, err)

	req, w := testutil.NewRequest().GET("/ratio").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertJSONError(t, w, http.StatusInternalServerError, "Internal server error")
	testutil.AssertHeader(t, w, "Content-Type", "application/json")
}

func TestServe_HandlerWritesDirectly(t *testing.T) {
	s := server.New(usersAPI())
	h, err := s.HandleAlias("getUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		return nil, w.Status(http.StatusAccepted).JSON(map[string]string{"queued": "yes"})
	})
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	h.Serve(context.Background(), &server.Request{Method: "GET", Params: map[string]any{"id": "1"}}, rec)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, rec.Writes)
}

func TestServe_Panic(t *testing.T) {
	s := server.New(usersAPI())
	h, err := s.HandleAlias("getUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		panic("boom")
	})
	require.NoError(t, err)

	rec := testutil.NewRecorder()
	h.Serve(context.Background(), &server.Request{Method: "GET", Params: map[string]any{"id": "1"}}, rec)
	rec.AssertError(t, http.StatusInternalServerError, "Internal server error")
}

func TestMiddleware_Order(t *testing.T) {
	s := newServer(t)
	var order []string
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		order = append(order, "first:before")
		next()
		order = append(order, "first:after")
		return nil
	})
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		order = append(order, "second")
		next()
		return nil
	})

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)
	assert.Equal(t, []string{"first:before", "second", "first:after"}, order)
}

func TestMiddleware_Halt(t *testing.T) {
	s := newServer(t)
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		return w.Status(http.StatusTeapot).JSON(map[string]string{"error": "teapot"})
	})

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertJSONError(t, w, http.StatusTeapot, "teapot")
}

func TestMiddleware_HaltWithoutWriting(t *testing.T) {
	s := server.New(usersAPI())
	var called bool
	h, err := s.HandleAlias("getUser", func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
		called = true
		return nil, nil
	})
	require.NoError(t, err)
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		return nil
	})

	rec := testutil.NewRecorder()
	h.Serve(context.Background(), &server.Request{Method: "GET", Params: map[string]any{"id": "1"}}, rec)
	assert.False(t, called)
	assert.Equal(t, 0, rec.Writes)
}

func TestMiddleware_Error(t *testing.T) {
	s := newServer(t)
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		return errors.New("session store unavailable")
	})

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)

	testutil.AssertJSONError(t, w, http.StatusInternalServerError, "Internal server error")
}

func TestMiddleware_Context(t *testing.T) {
	s := newServer(t)
	var got contract.Endpoint
	s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		got, _ = server.EndpointFromContext(ctx)
		assert.Same(t, req, server.RequestFromContext(ctx))
		next()
		return nil
	})

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)

	assert.Equal(t, "getUser", got.Alias)
}

func TestMiddleware_Remove(t *testing.T) {
	s := newServer(t)
	id := s.Use(func(ctx context.Context, req *server.Request, w server.ResponseWriter, next func()) error {
		return errors.New("blocked")
	})
	require.NoError(t, s.Remove(id))
	assert.ErrorIs(t, s.Remove(id), server.ErrMiddlewareNotFound)

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestHandle_Errors(t *testing.T) {
	s := server.New(usersAPI())

	_, err := s.Handle(contract.MethodDelete, "/users/:id", nil)
	var nf *contract.NotFoundError
	assert.ErrorAs(t, err, &nf)

	_, err = s.HandleAlias("nope", nil)
	assert.ErrorAs(t, err, &nf)
}

func TestHandle_Rebind(t *testing.T) {
	s := server.New(usersAPI())
	fn := func(name string) server.HandlerFunc {
		return func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
			return map[string]any{"id": 1, "name": name}, nil
		}
	}
	_, err := s.HandleAlias("getUser", fn("old"))
	require.NoError(t, err)
	_, err = s.HandleAlias("getUser", fn("new"))
	require.NoError(t, err)

	assert.Len(t, s.Handlers(), 1)

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertJSONResponse(t, w, map[string]any{"id": 1, "name": "new"})
}

func TestPaths(t *testing.T) {
	s := newServer(t)
	assert.Equal(t, []string{"/users", "/users/:id"}, s.Paths())
}

func TestRouting_LiteralBeatsParam(t *testing.T) {
	api := contract.MustRegistry(
		contract.Endpoint{Method: contract.MethodGet, Path: "/users/:id"},
		contract.Endpoint{Method: contract.MethodGet, Path: "/users/me"},
	)
	s := server.New(api)
	for _, p := range []string{"/users/:id", "/users/me"} {
		path := p
		_, err := s.Handle(contract.MethodGet, path, func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
			return path, nil
		})
		require.NoError(t, err)
	}

	req, w := testutil.NewRequest().GET("/users/me").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertJSONResponse(t, w, "/users/me")

	req, w = testutil.NewRequest().GET("/users/42").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertJSONResponse(t, w, "/users/:id")
}

func TestFromHTTP_Form(t *testing.T) {
	s := server.New(usersAPI())
	r, _ := testutil.NewRequest().
		POST("/users").
		WithForm(map[string][]string{"name": {"bob"}, "tag": {"a", "b"}}).
		WithQuery("x", "1").
		WithQuery("y", "2").
		WithQuery("y", "3").
		Build()

	req, err := s.FromHTTP(r, map[string]string{"id": "5"})
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, map[string]any{"id": "5"}, req.Params)
	assert.Equal(t, map[string]any{"x": "1", "y": []string{"2", "3"}}, req.Query)
	assert.Equal(t, "bob", req.Body.(interface{ Get(string) string }).Get("name"))
}

func TestFromHTTP_BodyLimit(t *testing.T) {
	s := server.New(usersAPI()).WithMaxRequestBodySize(4)
	r, _ := testutil.NewRequest().POST("/users").WithJSON(map[string]any{"name": "a long name"}).Build()

	_, err := s.FromHTTP(r, nil)
	assert.Error(t, err)
}

func TestWithMiddleware(t *testing.T) {
	s := newServer(t).WithMiddleware(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Outer", "1")
			next.ServeHTTP(w, r)
		})
	})

	req, w := testutil.NewRequest().GET("/users/1").Build()
	s.Handler().ServeHTTP(w, req)
	testutil.AssertHeader(t, w, "X-Outer", "1")
}
