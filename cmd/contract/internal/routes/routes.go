package routes

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/broady/contract"
	"github.com/broady/contract/cmd/contract/internal/spec"
	"gopkg.in/yaml.v3"
)

type Cmd struct {
	spec.Flags `embed:""`

	YAML bool `help:"Print routes as YAML." name:"yaml"`
}

func (c *Cmd) Run() error {
	_, api, err := c.Load(context.Background(), nil)
	if err != nil {
		return err
	}
	if c.YAML {
		return WriteYAML(os.Stdout, api)
	}
	return WriteTable(os.Stdout, api)
}

// Route is the printable form of an endpoint.
type Route struct {
	Method      string   `yaml:"method"`
	Path        string   `yaml:"path"`
	Alias       string   `yaml:"alias,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Format      string   `yaml:"format,omitempty"`
	Parameters  []string `yaml:"parameters,omitempty"`
	Errors      []string `yaml:"errors,omitempty"`
}

// List converts the endpoints of api in registration order.
func List(api *contract.Registry) []Route {
	var out []Route
	for _, e := range api.Endpoints() {
		r := Route{
			Method:      e.Method.HTTP(),
			Path:        e.Path,
			Alias:       e.Alias,
			Description: e.Description,
		}
		if f := e.Format(); f != contract.FormatJSON {
			r.Format = string(f)
		}
		for _, p := range e.Parameters {
			r.Parameters = append(r.Parameters, fmt.Sprintf("%s:%s", p.Type, p.Name))
		}
		for _, d := range e.Errors {
			if d.Default {
				r.Errors = append(r.Errors, "default")
			} else {
				r.Errors = append(r.Errors, fmt.Sprint(d.Status))
			}
		}
		out = append(out, r)
	}
	return out
}

func WriteYAML(w io.Writer, api *contract.Registry) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(List(api)); err != nil {
		return err
	}
	return enc.Close()
}

func WriteTable(w io.Writer, api *contract.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "METHOD\tPATH\tALIAS\tDESCRIPTION")
	for _, r := range List(api) {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Alias, r.Description)
	}
	return tw.Flush()
}
