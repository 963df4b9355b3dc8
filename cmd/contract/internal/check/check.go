package check

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/broady/contract"
	"github.com/broady/contract/cmd/contract/internal/spec"
)

type Cmd struct {
	spec.Flags `embed:""`

	Strict bool `help:"Fail when an endpoint has no alias or no response schema."`
}

func (c *Cmd) Run() error {
	_, api, err := c.Load(context.Background(), nil)
	if err != nil {
		return err
	}
	return Report(os.Stdout, api, c.Strict)
}

// Report prints a summary of api and, in strict mode, fails on endpoints
// without an alias or response schema.
func Report(w io.Writer, api *contract.Registry, strict bool) error {
	var aliases, bodies, responses int
	var problems []string
	for _, e := range api.Endpoints() {
		if e.Alias != "" {
			aliases++
		} else {
			problems = append(problems, fmt.Sprintf("%s has no alias", e))
		}
		if _, ok := e.BodyParameter(); ok {
			bodies++
		}
		if e.Response != nil {
			responses++
		} else {
			problems = append(problems, fmt.Sprintf("%s has no response schema", e))
		}
	}

	fmt.Fprintf(w, "✓ %d endpoints (%d aliased, %d with request bodies, %d with response schemas)\n",
		api.Len(), aliases, bodies, responses)

	for _, p := range problems {
		fmt.Fprintf(w, "! %s\n", p)
	}
	if strict && len(problems) > 0 {
		return fmt.Errorf("%d problems found", len(problems))
	}
	return nil
}
