package mock

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/plugin"
	"github.com/broady/contract/schema"
	"github.com/broady/contract/server/chiadapter"
	"github.com/broady/contract/testutil"
	"github.com/stretchr/testify/assert"
)

func testAPI() *contract.Registry {
	return contract.MustRegistry(
		contract.Endpoint{
			Method:     contract.MethodGet,
			Path:       "/users/:id",
			Alias:      "getUser",
			Parameters: []contract.Parameter{{Name: "id", Type: contract.ParamPath, Schema: schema.Int()}},
			Response:   schema.Object(schema.Fields{"name": schema.String()}),
		},
		contract.Endpoint{Method: contract.MethodDelete, Path: "/users/:id", Alias: "deleteUser"},
		contract.Endpoint{Method: contract.MethodGet, Path: "/health"},
	)
}

func testData() plugin.MockData {
	none := time.Duration(0)
	return plugin.MockData{
		contract.MethodGet: {
			"/users/:id": {Response: map[string]any{"name": "Ada"}, Headers: map[string]string{"X-Mock": "1"}},
			"/health":    {Response: map[string]any{"ok": true}, Delay: &none},
		},
		contract.MethodDelete: {
			"/users/:id": {Status: http.StatusConflict, Response: map[string]any{"error": "in use"}},
		},
	}
}

func newHandler(data plugin.MockData) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return chiadapter.NewRouter(NewServer(testAPI(), data, 0, logger))
}

func TestNewServer(t *testing.T) {
	h := newHandler(testData())

	req, w := testutil.NewRequest().GET("/users/42").Build()
	h.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertHeader(t, w, "X-Mock", "1")
	testutil.AssertJSONResponse(t, w, map[string]any{"name": "Ada"})

	req, w = testutil.NewRequest().GET("/health").Build()
	h.ServeHTTP(w, req)
	testutil.AssertJSONResponse(t, w, map[string]any{"ok": true})
}

func TestNewServer_Status(t *testing.T) {
	h := newHandler(testData())

	req, w := testutil.NewRequest().DELETE("/users/42").Build()
	h.ServeHTTP(w, req)
	testutil.AssertJSONError(t, w, http.StatusConflict, "in use")
}

func TestNewServer_Missing(t *testing.T) {
	h := newHandler(plugin.MockData{})

	req, w := testutil.NewRequest().GET("/health").Build()
	h.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusNotImplemented)
}

func TestNewServer_InvalidData(t *testing.T) {
	data := testData()
	data[contract.MethodGet]["/users/:id"] = plugin.MockEndpoint{Response: map[string]any{"name": 7}}
	h := newHandler(data)

	req, w := testutil.NewRequest().GET("/users/42").Build()
	h.ServeHTTP(w, req)
	testutil.AssertStatus(t, w, http.StatusInternalServerError)
}

func TestNewServer_InvalidPath(t *testing.T) {
	h := newHandler(testData())

	req, w := testutil.NewRequest().GET("/users/abc").Build()
	h.ServeHTTP(w, req)
	testutil.AssertJSONError(t, w, http.StatusBadRequest, "Invalid request")
	assert.Empty(t, w.Header().Get("X-Mock"))
}
