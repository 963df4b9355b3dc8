package openapi

import (
	"context"

	"github.com/broady/contract"
	"github.com/broady/contract/schema"
)

// coerced converts string inputs to the primitive type declared by doc before
// validating with validator. Path, query and header values always arrive as
// strings.
func coerced(doc any, validator contract.Schema) contract.Schema {
	prim := primitive(doc)
	if prim == nil {
		return validator
	}
	return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return validator.Parse(ctx, nil)
		}
		out, err := prim.Parse(ctx, v)
		if err != nil {
			return nil, err
		}
		if _, err := validator.Parse(ctx, out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func primitive(doc any) contract.Schema {
	m, ok := doc.(map[string]any)
	if !ok {
		return nil
	}
	switch typeName(m["type"]) {
	case "integer":
		return schema.Int()
	case "number":
		return schema.Float()
	case "boolean":
		return schema.Bool()
	case "array":
		item := primitive(m["items"])
		if item == nil {
			item = schema.Any()
		}
		arr := schema.Array(item)
		return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
			switch t := v.(type) {
			case string:
				v = []string{t}
			}
			return arr.Parse(ctx, v)
		})
	}
	return nil
}

// typeName returns the first non-null entry of a JSON Schema "type".
func typeName(t any) string {
	switch v := t.(type) {
	case string:
		return v
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}
