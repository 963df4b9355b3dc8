package mock

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/broady/contract"
	"github.com/broady/contract/cmd/contract/internal/spec"
	"github.com/broady/contract/config"
	"github.com/broady/contract/middleware"
	"github.com/broady/contract/plugin"
	"github.com/broady/contract/server"
	"github.com/broady/contract/server/chiadapter"
)

type Cmd struct {
	spec.Flags `embed:""`

	Data  string        `help:"Mock data file; overrides 'mock.file' from the config file." short:"d" type:"path"`
	Addr  string        `help:"Listen address; overrides 'server.addr'."`
	Delay time.Duration `help:"Delay before every response; overrides 'mock.delay'."`
}

func (c *Cmd) Run() error {
	overrides := map[string]any{}
	if c.Data != "" {
		overrides["mock.file"] = c.Data
	}
	if c.Addr != "" {
		overrides["server.addr"] = c.Addr
	}
	if c.Delay > 0 {
		overrides["mock.delay"] = c.Delay.String()
	}

	cfg, api, err := c.Load(context.Background(), overrides)
	if err != nil {
		return err
	}

	data := plugin.MockData{}
	if cfg.Mock.File != "" {
		if data, err = config.LoadMockData(cfg.Mock.File); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	srv := NewServer(api, data, cfg.Mock.Delay, logger).
		WithMaxRequestBodySize(cfg.Server.MaxBodySize)

	var h http.Handler = chiadapter.NewRouter(srv)
	if len(cfg.Server.CORSOrigins) > 0 {
		h = middleware.CORS(&middleware.CORSConfig{
			AllowOrigins: cfg.Server.CORSOrigins,
			AllowMethods: middleware.APIMethods(api),
		})(h)
	}

	fmt.Printf("contract mock listening on http://%s (%d endpoints)\n", cfg.Server.Addr, api.Len())
	return http.ListenAndServe(cfg.Server.Addr, h)
}

// NewServer returns a server answering every endpoint of api from data.
// Endpoints without an entry answer 501. Mock bodies pass through the
// endpoint's response schema, so invalid mock data shows up as 500.
func NewServer(api *contract.Registry, data plugin.MockData, delay time.Duration, logger *slog.Logger) *server.Server {
	srv := server.New(api).WithLogger(logger)
	srv.Use(middleware.Logging(logger))

	for _, e := range api.Endpoints() {
		_, err := srv.Handle(e.Method, e.Path, func(ctx context.Context, req *server.Request, w server.ResponseWriter) (any, error) {
			entry, ok := data.Lookup(e.Method, e.Path)
			if !ok {
				return nil, contract.StatusError(http.StatusNotImplemented, "no mock data for "+e.String())
			}
			d := delay
			if entry.Delay != nil {
				d = *entry.Delay
			}
			if d > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(d):
				}
			}
			if hw, ok := w.(interface{ Header() http.Header }); ok {
				for k, v := range entry.Headers {
					hw.Header().Set(k, v)
				}
			}
			if entry.Status != 0 && entry.Status != http.StatusOK {
				return nil, w.Status(entry.Status).JSON(entry.Response)
			}
			return entry.Response, nil
		})
		if err != nil {
			// Endpoints come from the registry itself.
			panic(err)
		}
	}
	return srv
}
