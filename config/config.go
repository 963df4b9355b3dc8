// Package config loads client and server settings from YAML with koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/broady/contract/client"
	"github.com/broady/contract/plugin"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultFile is read by Load when no path is given and it exists.
const DefaultFile = "contract.yaml"

// Config is the contract.yaml file merged with defaults and overrides.
type Config struct {
	BaseURL      string       `koanf:"base-url"`
	Spec         string       `koanf:"spec"`
	Validate     string       `koanf:"validate"`
	Transform    string       `koanf:"transform"`
	SendDefaults bool         `koanf:"send-defaults"`
	Retry        RetryConfig  `koanf:"retry"`
	Mock         MockConfig   `koanf:"mock"`
	Server       ServerConfig `koanf:"server"`
}

// RetryConfig maps to client.Retry.
type RetryConfig struct {
	Count int           `koanf:"count"`
	Delay time.Duration `koanf:"delay"`
}

// MockConfig names the mock data file and the default response delay.
type MockConfig struct {
	File  string        `koanf:"file"`
	Delay time.Duration `koanf:"delay"`
}

// ServerConfig configures `contract mock`.
type ServerConfig struct {
	Addr        string   `koanf:"addr"`
	MaxBodySize int64    `koanf:"max-body-size"`
	CORSOrigins []string `koanf:"cors-origins"`
}

var defaults = map[string]any{
	"validate":             "all",
	"transform":            "all",
	"server.addr":          ":8080",
	"server.max-body-size": int64(1 << 20),
}

// Load reads defaults, then the YAML file at path, then overrides (keys in
// dotted form such as "retry.count"). An empty path falls back to
// DefaultFile when it exists.
func Load(path string, overrides map[string]any) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	if len(overrides) > 0 {
		if err := k.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, fmt.Errorf("loading overrides: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the mode strings and rejects negative values.
func (c *Config) Validate() error {
	if _, err := parseMode(c.Validate); err != nil {
		return fmt.Errorf("invalid validate: %w", err)
	}
	if _, err := parseMode(c.Transform); err != nil {
		return fmt.Errorf("invalid transform: %w", err)
	}
	if c.Retry.Count < 0 {
		return errors.New("retry count must not be negative")
	}
	if c.Retry.Delay < 0 {
		return errors.New("retry delay must not be negative")
	}
	if c.Mock.Delay < 0 {
		return errors.New("mock delay must not be negative")
	}
	if c.Server.MaxBodySize < 0 {
		return errors.New("server max body size must not be negative")
	}
	return nil
}

// ClientOptions converts the client settings. HTTPClient and Logger are left
// for the caller.
func (c *Config) ClientOptions() (client.Options, error) {
	validate, err := parseMode(c.Validate)
	if err != nil {
		return client.Options{}, err
	}
	transform, err := parseMode(c.Transform)
	if err != nil {
		return client.Options{}, err
	}
	return client.Options{
		Validate:     validate,
		Transform:    transform,
		SendDefaults: c.SendDefaults,
		Retry: client.Retry{
			Count: c.Retry.Count,
			Delay: c.Retry.Delay,
		},
	}, nil
}

// parseMode also accepts "1" and "0", which is how koanf decodes YAML
// booleans into strings.
func parseMode(s string) (plugin.Mode, error) {
	switch s {
	case "1":
		return plugin.ModeAll, nil
	case "0":
		return plugin.ModeNone, nil
	}
	return plugin.ParseMode(s)
}
