// Package openapi builds contract endpoints from OpenAPI 3 and Swagger 2
// documents. Schemas are inlined and compiled with schema.JSONSchema;
// path, query and header parameters are coerced from strings first.
package openapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/broady/contract"
	"github.com/broady/contract/schema"
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// maxRefDepth bounds $ref inlining; deeper (usually recursive) schemas
// accept any value.
const maxRefDepth = 16

// Error describes a document that could not be loaded or converted.
type Error struct {
	Location string
	Message  string
	Cause    error
}

func (e *Error) Error() string {
	if e.Location == "" {
		return "openapi: " + e.Message
	}
	return fmt.Sprintf("openapi: %s: %s", e.Location, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Load reads the document at path and returns its endpoints.
func Load(ctx context.Context, path string) ([]contract.Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Location: path, Message: "read file", Cause: err}
	}
	eps, err := LoadData(ctx, data)
	if oe, ok := err.(*Error); ok && oe.Location == "" {
		oe.Location = path
	}
	return eps, err
}

// LoadData parses a JSON or YAML document and returns its endpoints.
func LoadData(ctx context.Context, data []byte) ([]contract.Endpoint, error) {
	doc, err := parse(ctx, data)
	if err != nil {
		return nil, err
	}
	return Endpoints(doc)
}

func parse(ctx context.Context, data []byte) (*openapi3.T, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &Error{Message: "parse document", Cause: err}
	}

	switch {
	case strings.HasPrefix(fmt.Sprint(root["openapi"]), "3."):
		loader := openapi3.NewLoader()
		doc, err := loader.LoadFromData(data)
		if err != nil {
			return nil, &Error{Message: "load document", Cause: err}
		}
		if err := doc.Validate(ctx); err != nil {
			return nil, &Error{Message: "invalid document", Cause: err}
		}
		return doc, nil
	case strings.HasPrefix(fmt.Sprint(root["swagger"]), "2."):
		raw, err := json.Marshal(jsonCompatible(root))
		if err != nil {
			return nil, &Error{Message: "parse document", Cause: err}
		}
		var v2 openapi2.T
		if err := json.Unmarshal(raw, &v2); err != nil {
			return nil, &Error{Message: "parse swagger document", Cause: err}
		}
		doc, err := openapi2conv.ToV3(&v2)
		if err != nil {
			return nil, &Error{Message: "convert swagger to openapi 3", Cause: err}
		}
		return doc, nil
	}
	return nil, &Error{Message: "missing or unknown version (expected 'openapi: 3.x' or 'swagger: 2.0')"}
}

// jsonCompatible rewrites YAML maps with non-string keys (such as status
// codes) into map[string]any.
func jsonCompatible(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = jsonCompatible(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonCompatible(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonCompatible(val)
		}
		return out
	}
	return v
}

// Endpoints converts every operation of doc, sorted by path and then in
// contract.Methods order. Operations using methods without a contract
// equivalent (TRACE) and cookie parameters are skipped.
func Endpoints(doc *openapi3.T) ([]contract.Endpoint, error) {
	c := &converter{doc: doc}

	paths := make([]string, 0, len(doc.Paths))
	for p := range doc.Paths {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	var out []contract.Endpoint
	for _, p := range paths {
		item := doc.Paths[p]
		if item == nil {
			continue
		}
		ops := item.Operations()
		for _, m := range contract.Methods {
			op := ops[m.HTTP()]
			if op == nil {
				continue
			}
			e, err := c.endpoint(m, p, item, op)
			if err != nil {
				return nil, &Error{Location: m.HTTP() + " " + p, Message: err.Error(), Cause: err}
			}
			out = append(out, e)
		}
	}
	if err := contract.Check(out); err != nil {
		return nil, &Error{Message: "invalid endpoints", Cause: err}
	}
	return out, nil
}

type converter struct {
	doc *openapi3.T
}

func (c *converter) endpoint(m contract.Method, path string, item *openapi3.PathItem, op *openapi3.Operation) (contract.Endpoint, error) {
	e := contract.Endpoint{
		Method:      m,
		Path:        contract.ColonPath(path),
		Alias:       op.OperationID,
		Description: strings.TrimSpace(op.Summary),
	}
	if e.Description == "" {
		e.Description = strings.TrimSpace(op.Description)
	}

	// Operation parameters override path item parameters with the same name and location.
	merged := make(map[string]*openapi3.Parameter)
	var order []string
	for _, refs := range []openapi3.Parameters{item.Parameters, op.Parameters} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if _, seen := merged[key]; !seen {
				order = append(order, key)
			}
			merged[key] = ref.Value
		}
	}
	for _, key := range order {
		p, ok, err := c.parameter(merged[key])
		if err != nil {
			return e, err
		}
		if ok {
			e.Parameters = append(e.Parameters, p)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		p, format, err := c.body(op.RequestBody.Value)
		if err != nil {
			return e, err
		}
		e.Parameters = append(e.Parameters, p)
		if format != contract.FormatJSON {
			e.RequestFormat = format
		}
	}

	if err := c.responses(&e, op.Responses); err != nil {
		return e, err
	}
	return e, nil
}

func (c *converter) parameter(p *openapi3.Parameter) (contract.Parameter, bool, error) {
	var t contract.ParamType
	switch p.In {
	case openapi3.ParameterInPath:
		t = contract.ParamPath
	case openapi3.ParameterInQuery:
		t = contract.ParamQuery
	case openapi3.ParameterInHeader:
		t = contract.ParamHeader
	default:
		return contract.Parameter{}, false, nil
	}

	out := contract.Parameter{Name: p.Name, Type: t, Description: p.Description}
	if p.Schema == nil {
		return out, true, nil
	}
	doc, err := c.inline(p.Schema)
	if err != nil {
		return out, false, err
	}
	validator, err := schema.JSONSchema(doc)
	if err != nil {
		return out, false, fmt.Errorf("parameter %s: %w", p.Name, err)
	}
	s := coerced(doc, validator)
	if !p.Required && t != contract.ParamPath {
		s = schema.Optional(s)
	}
	out.Schema = s
	return out, true, nil
}

var bodyFormats = []struct {
	mediaType string
	format    contract.RequestFormat
}{
	{"application/json", contract.FormatJSON},
	{"multipart/form-data", contract.FormatFormData},
	{"application/x-www-form-urlencoded", contract.FormatFormURL},
	{"application/octet-stream", contract.FormatBinary},
	{"text/plain", contract.FormatText},
}

func (c *converter) body(rb *openapi3.RequestBody) (contract.Parameter, contract.RequestFormat, error) {
	out := contract.Parameter{Name: "body", Type: contract.ParamBody, Description: rb.Description}
	format := contract.FormatJSON

	var media *openapi3.MediaType
	for _, f := range bodyFormats {
		if mt := rb.Content.Get(f.mediaType); mt != nil {
			media, format = mt, f.format
			break
		}
	}
	if media == nil || media.Schema == nil {
		return out, format, nil
	}

	doc, err := c.inline(media.Schema)
	if err != nil {
		return out, format, err
	}
	s, err := schema.JSONSchema(doc)
	if err != nil {
		return out, format, fmt.Errorf("request body: %w", err)
	}
	if format != contract.FormatJSON {
		// Form and binary bodies are validated by the transport, not as JSON.
		s = schema.Any()
	}
	if !rb.Required {
		s = schema.Optional(s)
	}
	out.Schema = s
	return out, format, nil
}

// responses sets the success schema from the lowest 2xx response and turns
// the other responses with a JSON schema into error definitions.
func (c *converter) responses(e *contract.Endpoint, responses openapi3.Responses) error {
	codes := make([]string, 0, len(responses))
	for code := range responses {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	success := false
	for _, code := range codes {
		ref := responses[code]
		if ref == nil || ref.Value == nil {
			continue
		}
		var s contract.Schema
		if mt := ref.Value.Content.Get("application/json"); mt != nil && mt.Schema != nil {
			doc, err := c.inline(mt.Schema)
			if err != nil {
				return err
			}
			if s, err = schema.JSONSchema(doc); err != nil {
				return fmt.Errorf("response %s: %w", code, err)
			}
		}
		description := ""
		if ref.Value.Description != nil {
			description = *ref.Value.Description
		}

		if code == "default" {
			e.Errors = append(e.Errors, contract.ErrorDefinition{Default: true, Description: description, Schema: s})
			continue
		}
		status, err := strconv.Atoi(code)
		if err != nil {
			// Ranges such as "4XX" have no exact status.
			continue
		}
		if status >= 200 && status < 300 {
			if !success {
				e.Response = s
				success = true
			}
			continue
		}
		e.Errors = append(e.Errors, contract.ErrorDefinition{Status: status, Description: description, Schema: s})
	}
	return nil
}

// inline returns ref as a self-contained JSON Schema value with component
// references expanded and OpenAPI 3.0 "nullable" rewritten as a type union.
func (c *converter) inline(ref *openapi3.SchemaRef) (any, error) {
	var v any
	if ref.Ref != "" {
		v = map[string]any{"$ref": ref.Ref}
	} else {
		if ref.Value == nil {
			return map[string]any{}, nil
		}
		data, err := json.Marshal(ref.Value)
		if err != nil {
			return nil, fmt.Errorf("encode schema: %w", err)
		}
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("decode schema: %w", err)
		}
	}
	return c.expand(v, 0)
}

func (c *converter) expand(v any, depth int) (any, error) {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["$ref"].(string); ok {
			return c.resolve(ref, depth)
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			if k == "nullable" || k == "example" || k == "x-go-type" {
				continue
			}
			expanded, err := c.expand(val, depth)
			if err != nil {
				return nil, err
			}
			out[k] = expanded
		}
		if nullable, _ := t["nullable"].(bool); nullable {
			if typ, ok := out["type"].(string); ok {
				out["type"] = []any{typ, "null"}
			}
		}
		// OpenAPI 3.0 uses boolean exclusive bounds.
		for _, bound := range [][2]string{{"exclusiveMinimum", "minimum"}, {"exclusiveMaximum", "maximum"}} {
			exclusive, ok := out[bound[0]].(bool)
			if !ok {
				continue
			}
			delete(out, bound[0])
			if limit, ok := out[bound[1]]; ok && exclusive {
				out[bound[0]] = limit
				delete(out, bound[1])
			}
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			expanded, err := c.expand(val, depth)
			if err != nil {
				return nil, err
			}
			out[i] = expanded
		}
		return out, nil
	}
	return v, nil
}

const componentPrefix = "#/components/schemas/"

func (c *converter) resolve(ref string, depth int) (any, error) {
	if depth >= maxRefDepth {
		return map[string]any{}, nil
	}
	name, ok := strings.CutPrefix(ref, componentPrefix)
	if !ok {
		return nil, fmt.Errorf("unsupported schema reference %q", ref)
	}
	if c.doc.Components == nil || c.doc.Components.Schemas[name] == nil {
		return nil, fmt.Errorf("unresolved schema reference %q", ref)
	}
	target := c.doc.Components.Schemas[name]
	if target.Value == nil {
		return map[string]any{}, nil
	}
	data, err := json.Marshal(target.Value)
	if err != nil {
		return nil, fmt.Errorf("encode schema %s: %w", name, err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("decode schema %s: %w", name, err)
	}
	return c.expand(v, depth+1)
}
