package plugin

import (
	"context"
	"net/http"
	"time"

	"github.com/broady/contract"
)

// MockEndpoint is the canned response for one method and path.
// ResponseFunc, when set, is called on every request instead of using Response.
type MockEndpoint struct {
	Response     any
	ResponseFunc func(ctx context.Context, req *Request) (any, error)
	Status       int
	// Delay overrides the plugin's default delay when non-nil.
	Delay   *time.Duration
	Headers map[string]string
}

// MockData maps method and path template to a canned response.
type MockData map[contract.Method]map[string]MockEndpoint

// Lookup returns the entry for method and path.
func (d MockData) Lookup(m contract.Method, path string) (MockEndpoint, bool) {
	e, ok := d[m][path]
	return e, ok
}

// MockName is the name of the plugin returned by Mock.
const MockName = "mock"

// Mock returns the plugin that answers calls from data without touching the
// network. Calls with no entry in data go through unchanged.
func Mock(data MockData, delay time.Duration) *Plugin {
	return &Plugin{
		Name: MockName,
		Request: func(ctx context.Context, _ *contract.Registry, req *Request) (*Request, error) {
			entry, ok := data.Lookup(req.Method, req.URL)
			if !ok {
				return req, nil
			}
			d := delay
			if entry.Delay != nil {
				d = *entry.Delay
			}
			if err := sleep(ctx, d); err != nil {
				return nil, err
			}

			body := entry.Response
			if entry.ResponseFunc != nil {
				var err error
				if body, err = entry.ResponseFunc(ctx, req); err != nil {
					return nil, err
				}
			}
			status := entry.Status
			if status == 0 {
				status = http.StatusOK
			}
			res, err := NewMockResponse(status, entry.Headers, body)
			if err != nil {
				return nil, err
			}
			req.MockResponse = res
			return req, nil
		},
		Response: func(_ context.Context, _ *contract.Registry, req *Request, res *Response) (*Response, error) {
			if req.MockResponse != nil {
				return req.MockResponse, nil
			}
			return res, nil
		},
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
