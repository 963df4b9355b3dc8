package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Response wraps the transport response with a lazily populated parsed body.
type Response struct {
	*http.Response

	parsed    any
	hasParsed bool
}

// NewResponse wraps r.
func NewResponse(r *http.Response) *Response {
	return &Response{Response: r}
}

// NewMockResponse builds a synthetic JSON response whose parsed body is body.
func NewMockResponse(status int, headers map[string]string, body any) (*Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("plugin: encode mock response: %w", err)
	}
	h := make(http.Header, len(headers)+1)
	h.Set("Content-Type", "application/json")
	for k, v := range headers {
		h.Set(k, v)
	}
	res := &Response{Response: &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        h,
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: int64(len(data)),
	}}
	res.SetParsed(body)
	return res, nil
}

// Parsed returns the parsed body if a plugin or DecodeJSON populated it.
func (r *Response) Parsed() (any, bool) {
	return r.parsed, r.hasParsed
}

// SetParsed stores v as the parsed body.
func (r *Response) SetParsed(v any) {
	r.parsed = v
	r.hasParsed = true
}

// ContentType returns the media type of the response without parameters.
func (r *Response) ContentType() string {
	ct := r.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
	}
	return mt
}

// IsJSON reports whether the response carries a JSON media type.
func (r *Response) IsJSON() bool {
	return IsJSONMediaType(r.ContentType())
}

// IsJSONMediaType reports whether mt is application/json,
// application/vnd.api+json or any other +json type.
func IsJSONMediaType(mt string) bool {
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

// ReadBody reads the whole body and replaces it with an in-memory copy so it
// can be read again.
func (r *Response) ReadBody() ([]byte, error) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// DecodeJSON returns the parsed body, decoding it from JSON on first use.
// An empty body decodes to nil.
func (r *Response) DecodeJSON() (any, error) {
	if r.hasParsed {
		return r.parsed, nil
	}
	data, err := r.ReadBody()
	if err != nil {
		return nil, fmt.Errorf("plugin: read response body: %w", err)
	}
	var v any
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("plugin: decode response body: %w", err)
		}
	}
	r.SetParsed(v)
	return v, nil
}
