// Package spec holds the flags shared by commands that read an API description.
package spec

import (
	"context"
	"errors"
	"fmt"

	"github.com/broady/contract"
	"github.com/broady/contract/config"
	"github.com/broady/contract/openapi"
)

// Flags select the config file and OpenAPI document.
type Flags struct {
	Config string `help:"Config file (default: contract.yaml when present)." short:"c" type:"path"`
	Spec   string `help:"OpenAPI document; overrides 'spec' from the config file." short:"s" type:"path"`
}

// Load reads the config and builds the registry from its OpenAPI document.
func (f Flags) Load(ctx context.Context, overrides map[string]any) (*config.Config, *contract.Registry, error) {
	if overrides == nil {
		overrides = make(map[string]any)
	}
	if f.Spec != "" {
		overrides["spec"] = f.Spec
	}

	cfg, err := config.Load(f.Config, overrides)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Spec == "" {
		return nil, nil, errors.New("no OpenAPI document: pass --spec or set 'spec' in the config file")
	}

	endpoints, err := openapi.Load(ctx, cfg.Spec)
	if err != nil {
		return nil, nil, err
	}
	api, err := contract.NewRegistry(endpoints...)
	if err != nil {
		return nil, nil, fmt.Errorf("build registry: %w", err)
	}
	return cfg, api, nil
}
