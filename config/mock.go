package config

import (
	"fmt"
	"os"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/plugin"
	"gopkg.in/yaml.v3"
)

// mockFile is the YAML layout of a mock data file:
//
//	mocks:
//	  - method: get
//	    path: /users/:id
//	    status: 200
//	    delay: 50ms
//	    headers:
//	      X-Total: "1"
//	    response:
//	      id: 1
//	      name: alice
type mockFile struct {
	Mocks []mockEntry `yaml:"mocks"`
}

type mockEntry struct {
	Method   string            `yaml:"method"`
	Path     string            `yaml:"path"`
	Status   int               `yaml:"status"`
	Delay    string            `yaml:"delay"`
	Headers  map[string]string `yaml:"headers"`
	Response any               `yaml:"response"`
}

// LoadMockData reads a YAML mock data file.
func LoadMockData(path string) (plugin.MockData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading mock file: %w", err)
	}
	return ParseMockData(data)
}

// ParseMockData parses YAML mock data.
func ParseMockData(data []byte) (plugin.MockData, error) {
	var f mockFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing mock file: %w", err)
	}

	out := make(plugin.MockData)
	for i, m := range f.Mocks {
		method, err := contract.ParseMethod(m.Method)
		if err != nil {
			return nil, fmt.Errorf("mock %d: %w", i, err)
		}
		if m.Path == "" {
			return nil, fmt.Errorf("mock %d: path is required", i)
		}
		entry := plugin.MockEndpoint{
			Response: m.Response,
			Status:   m.Status,
			Headers:  m.Headers,
		}
		if m.Delay != "" {
			d, err := time.ParseDuration(m.Delay)
			if err != nil {
				return nil, fmt.Errorf("mock %d: invalid delay: %w", i, err)
			}
			entry.Delay = &d
		}
		if out[method] == nil {
			out[method] = make(map[string]plugin.MockEndpoint)
		}
		out[method][m.Path] = entry
	}
	return out, nil
}
