// Package testutil provides testing helpers for contract servers and clients.
// This package is designed to be import-cycle safe and can be used from any
// external test package.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/broady/contract/server"
)

// RequestBuilder helps construct test HTTP requests with fluent API.
type RequestBuilder struct {
	method      string
	path        string
	body        []byte
	headers     map[string]string
	queryParams map[string][]string
}

// NewRequest creates a new request builder for GET /.
func NewRequest() *RequestBuilder {
	return &RequestBuilder{
		method:      http.MethodGet,
		path:        "/",
		headers:     make(map[string]string),
		queryParams: make(map[string][]string),
	}
}

// GET sets the HTTP method to GET.
func (b *RequestBuilder) GET(path string) *RequestBuilder {
	return b.Method(http.MethodGet, path)
}

// POST sets the HTTP method to POST.
func (b *RequestBuilder) POST(path string) *RequestBuilder {
	return b.Method(http.MethodPost, path)
}

// PUT sets the HTTP method to PUT.
func (b *RequestBuilder) PUT(path string) *RequestBuilder {
	return b.Method(http.MethodPut, path)
}

// DELETE sets the HTTP method to DELETE.
func (b *RequestBuilder) DELETE(path string) *RequestBuilder {
	return b.Method(http.MethodDelete, path)
}

// Method sets an arbitrary HTTP method and path.
func (b *RequestBuilder) Method(method, path string) *RequestBuilder {
	b.method = method
	b.path = path
	return b
}

// WithJSON sets the request body as JSON.
func (b *RequestBuilder) WithJSON(v any) *RequestBuilder {
	data, _ := json.Marshal(v)
	b.body = data
	b.headers["Content-Type"] = "application/json"
	return b
}

// WithForm sets the request body as a url-encoded form.
func (b *RequestBuilder) WithForm(values url.Values) *RequestBuilder {
	b.body = []byte(values.Encode())
	b.headers["Content-Type"] = "application/x-www-form-urlencoded"
	return b
}

// WithBody sets the raw request body.
func (b *RequestBuilder) WithBody(body string) *RequestBuilder {
	b.body = []byte(body)
	return b
}

// WithHeader adds a header to the request.
func (b *RequestBuilder) WithHeader(key, value string) *RequestBuilder {
	b.headers[key] = value
	return b
}

// WithQuery adds a query parameter. Repeated calls with the same key add values.
func (b *RequestBuilder) WithQuery(key, value string) *RequestBuilder {
	b.queryParams[key] = append(b.queryParams[key], value)
	return b
}

// Build creates the HTTP request and ResponseRecorder.
func (b *RequestBuilder) Build() (*http.Request, *httptest.ResponseRecorder) {
	path := b.path
	if len(b.queryParams) > 0 {
		path += "?" + url.Values(b.queryParams).Encode()
	}

	var body io.Reader
	if len(b.body) > 0 {
		body = bytes.NewReader(b.body)
	}
	req := httptest.NewRequest(b.method, path, body)
	for k, v := range b.headers {
		req.Header.Set(k, v)
	}
	return req, httptest.NewRecorder()
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int) {
	t.Helper()
	if w.Code != expectedStatus {
		t.Errorf("expected status %d, got %d\nBody: %s", expectedStatus, w.Code, w.Body.String())
	}
}

// AssertJSONResponse decodes the response body and compares it with expected value.
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expected any) {
	t.Helper()

	contentType := w.Header().Get("Content-Type")
	if !strings.Contains(contentType, "application/json") {
		t.Errorf("expected Content-Type to contain application/json, got %s", contentType)
	}
	assertJSONEqual(t, expected, w.Body.Bytes())
}

func assertJSONEqual(t *testing.T, expected any, actualJSON []byte) {
	t.Helper()
	expectedJSON, _ := json.Marshal(expected)

	// Compare as JSON to ignore formatting differences
	var expectedData, actualData any
	json.Unmarshal(expectedJSON, &expectedData)
	json.Unmarshal(actualJSON, &actualData)

	expectedStr, _ := json.MarshalIndent(expectedData, "", "  ")
	actualStr, _ := json.MarshalIndent(actualData, "", "  ")

	if string(expectedStr) != string(actualStr) {
		t.Errorf("response mismatch:\nExpected:\n%s\nActual:\n%s", expectedStr, actualStr)
	}
}

// ErrorResponse is the body of every error the server writes.
type ErrorResponse struct {
	Error string `json:"error"`
}

// AssertJSONError checks the status and error message of an error response.
func AssertJSONError(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedMessage string) {
	t.Helper()
	AssertStatus(t, w, expectedStatus)

	var errResp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &errResp); err != nil {
		t.Fatalf("failed to decode error response: %v\nBody: %s", err, w.Body.String())
	}
	if errResp.Error != expectedMessage {
		t.Errorf("expected error %q, got %q", expectedMessage, errResp.Error)
	}
}

// AssertHeader checks that a response header has the expected value.
func AssertHeader(t *testing.T, w *httptest.ResponseRecorder, key, expectedValue string) {
	t.Helper()
	actual := w.Header().Get(key)
	if actual != expectedValue {
		t.Errorf("expected header %s=%s, got %s", key, expectedValue, actual)
	}
}

// DecodeJSON decodes the response body into the provided value.
func DecodeJSON(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v\nBody: %s", err, w.Body.String())
	}
}

// Recorder is a server.ResponseWriter that keeps every write in memory.
// It is used to drive server.Handler.Serve without an HTTP round trip.
type Recorder struct {
	mu      sync.Mutex
	status  int
	Code    int
	Body    any
	Writes  int
	headers http.Header
}

var _ server.ResponseWriter = (*Recorder)(nil)

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{headers: http.Header{}}
}

// Status sets the status for the next JSON call.
func (r *Recorder) Status(code int) server.ResponseWriter {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = code
	return r
}

// JSON records v as the response body.
func (r *Recorder) JSON(v any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Code = r.status
	if r.Code == 0 {
		r.Code = http.StatusOK
	}
	r.Body = v
	r.Writes++
	return nil
}

// Header returns the recorded response headers.
func (r *Recorder) Header() http.Header {
	return r.headers
}

// AssertBody compares the recorded body with expected as JSON.
func (r *Recorder) AssertBody(t *testing.T, expected any) {
	t.Helper()
	data, err := json.Marshal(r.Body)
	if err != nil {
		t.Fatalf("failed to encode recorded body: %v", err)
	}
	assertJSONEqual(t, expected, data)
}

// AssertError checks the recorded status and error message.
func (r *Recorder) AssertError(t *testing.T, expectedStatus int, expectedMessage string) {
	t.Helper()
	if r.Code != expectedStatus {
		t.Errorf("expected status %d, got %d", expectedStatus, r.Code)
	}
	r.AssertBody(t, ErrorResponse{Error: expectedMessage})
}

// Doer is an in-memory HTTP client that serves requests with a handler and
// records them. It satisfies client.Doer.
type Doer struct {
	Handler http.Handler

	mu       sync.Mutex
	requests []*http.Request
}

// NewDoer returns a Doer that serves requests with h.
func NewDoer(h http.Handler) *Doer {
	return &Doer{Handler: h}
}

// Do serves req with the handler and returns the recorded response.
func (d *Doer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	d.requests = append(d.requests, req)
	d.mu.Unlock()

	w := httptest.NewRecorder()
	d.Handler.ServeHTTP(w, req)
	res := w.Result()
	res.Request = req
	return res, nil
}

// Requests returns the requests seen so far.
func (d *Doer) Requests() []*http.Request {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*http.Request(nil), d.requests...)
}

// Paths returns the method and path of each request seen, sorted.
func (d *Doer) Paths() []string {
	var out []string
	for _, r := range d.Requests() {
		out = append(out, r.Method+" "+r.URL.Path)
	}
	sort.Strings(out)
	return out
}
