package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/broady/contract"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
)

var schemaSeq atomic.Int64

// JSONSchema compiles a JSON Schema document (draft 2020-12 unless the
// document says otherwise). doc may be raw JSON bytes, a string, or an
// already decoded value such as map[string]any.
//
// Parse validates values as their JSON encoding and returns them unchanged.
func JSONSchema(doc any) (contract.Schema, error) {
	var raw []byte
	switch d := doc.(type) {
	case []byte:
		raw = d
	case string:
		raw = []byte(d)
	case json.RawMessage:
		raw = d
	default:
		var err error
		if raw, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("schema: encode json schema: %w", err)
		}
	}

	parsed, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("schema: decode json schema: %w", err)
	}
	loc := fmt.Sprintf("mem://schema/%d.json", schemaSeq.Add(1))
	c := jsonschema.NewCompiler()
	if err := c.AddResource(loc, parsed); err != nil {
		return nil, fmt.Errorf("schema: add json schema: %w", err)
	}
	compiled, err := c.Compile(loc)
	if err != nil {
		return nil, fmt.Errorf("schema: compile json schema: %w", err)
	}

	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		inst, err := normalize(v)
		if err != nil {
			return nil, contract.NewSchemaError("", err.Error())
		}
		if err := compiled.Validate(inst); err != nil {
			return nil, jsonSchemaIssues(err)
		}
		return v, nil
	}), nil
}

// MustJSONSchema is like JSONSchema but panics on error.
func MustJSONSchema(doc any) contract.Schema {
	s, err := JSONSchema(doc)
	if err != nil {
		panic(err)
	}
	return s
}

// normalize round-trips v through JSON so that Go structs and typed
// slices validate the same way as decoded JSON.
func normalize(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(bytes.NewReader(data))
}

func jsonSchemaIssues(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return contract.NewSchemaError("", err.Error())
	}
	serr := &contract.SchemaError{}
	collectIssues(ve, serr)
	if len(serr.Issues) == 0 {
		serr.Issues = append(serr.Issues, contract.Issue{Message: "invalid value"})
	}
	return serr
}

func collectIssues(ve *jsonschema.ValidationError, serr *contract.SchemaError) {
	if len(ve.Causes) > 0 {
		for _, c := range ve.Causes {
			collectIssues(c, serr)
		}
		return
	}
	path := strings.Join(ve.InstanceLocation, ".")
	switch k := ve.ErrorKind.(type) {
	case *kind.Required:
		for _, name := range k.Missing {
			p := name
			if path != "" {
				p = path + "." + name
			}
			serr.Issues = append(serr.Issues, contract.Issue{Path: p, Message: "required"})
		}
	case *kind.Type:
		serr.Issues = append(serr.Issues, contract.Issue{
			Path:    path,
			Message: fmt.Sprintf("expected %s, got %s", strings.Join(k.Want, " or "), k.Got),
		})
	default:
		keyword := "schema"
		if kp := ve.ErrorKind.KeywordPath(); len(kp) > 0 {
			keyword = kp[len(kp)-1]
		}
		serr.Issues = append(serr.Issues, contract.Issue{Path: path, Message: fmt.Sprintf("failed %s validation", keyword)})
	}
}
