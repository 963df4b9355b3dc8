// Package schema provides contract.Schema implementations for common shapes:
// primitives that coerce from strings, optional and defaulted values,
// arrays and objects, Go structs checked with validator tags, url-encoded
// values decoded with gorilla/schema, and JSON Schema documents.
//
// Every schema treats a nil input as an absent value and fails with
// "required" unless wrapped in Optional or Default.
package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/broady/contract"
)

func required() error {
	return contract.NewSchemaError("", "required")
}

func expected(what string, v any) error {
	return contract.NewSchemaError("", fmt.Sprintf("expected %s, got %T", what, v))
}

// Any accepts every value, including nil.
func Any() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		return v, nil
	})
}

// Func adapts a plain validation function.
func Func(fn func(v any) (any, error)) contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		return fn(v)
	})
}

// String accepts strings.
func String() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		switch s := v.(type) {
		case nil:
			return nil, required()
		case string:
			return s, nil
		case []string:
			if len(s) == 1 {
				return s[0], nil
			}
		}
		return nil, expected("string", v)
	})
}

// Int accepts integers, integral floats and numeric strings, returning int64.
func Int() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		switch n := first(v).(type) {
		case nil:
			return nil, required()
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) && n >= -(1<<63) && n < 1<<63 {
				return int64(n), nil
			}
		case json.Number:
			if i, err := n.Int64(); err == nil {
				return i, nil
			}
		case string:
			if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return i, nil
			}
		}
		return nil, expected("integer", v)
	})
}

// Float accepts numbers and numeric strings, returning float64.
func Float() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		switch n := first(v).(type) {
		case nil:
			return nil, required()
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			if f, err := n.Float64(); err == nil {
				return f, nil
			}
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
				return f, nil
			}
		}
		return nil, expected("number", v)
	})
}

// Bool accepts booleans and the strings understood by strconv.ParseBool.
func Bool() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		switch b := first(v).(type) {
		case nil:
			return nil, required()
		case bool:
			return b, nil
		case string:
			if parsed, err := strconv.ParseBool(b); err == nil {
				return parsed, nil
			}
		}
		return nil, expected("boolean", v)
	})
}

// first unwraps single-element string slices, the shape of a query value
// that appears once.
func first(v any) any {
	if s, ok := v.([]string); ok && len(s) == 1 {
		return s[0]
	}
	return v
}

// Optional lets nil through unchanged and otherwise defers to s.
func Optional(s contract.Schema) contract.Schema {
	return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return nil, nil
		}
		return s.Parse(ctx, v)
	})
}

// Default substitutes def for nil before parsing with s.
func Default(s contract.Schema, def any) contract.Schema {
	return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
		if v == nil {
			v = def
		}
		return s.Parse(ctx, v)
	})
}

// Array accepts slices and parses every element with item.
func Array(item contract.Schema) contract.Schema {
	return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return nil, required()
		}
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return nil, expected("array", v)
		}
		out := make([]any, rv.Len())
		var issues []contract.Issue
		for i := range out {
			parsed, err := item.Parse(ctx, rv.Index(i).Interface())
			if err != nil {
				issues = append(issues, nested(strconv.Itoa(i), err)...)
				continue
			}
			out[i] = parsed
		}
		if len(issues) > 0 {
			return nil, &contract.SchemaError{Issues: issues}
		}
		return out, nil
	})
}

// Fields maps object keys to their schemas.
type Fields map[string]contract.Schema

// Object accepts JSON objects (map[string]any) and parses each declared field.
// Undeclared keys are kept as is.
func Object(fields Fields) contract.Schema {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	return contract.SchemaFunc(func(ctx context.Context, v any) (any, error) {
		if v == nil {
			return nil, required()
		}
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, expected("object", v)
		}
		out := make(map[string]any, len(obj))
		for k, val := range obj {
			out[k] = val
		}
		var issues []contract.Issue
		for _, name := range names {
			parsed, err := fields[name].Parse(ctx, obj[name])
			if err != nil {
				issues = append(issues, nested(name, err)...)
				continue
			}
			if parsed == nil {
				if _, present := obj[name]; !present {
					continue
				}
			}
			out[name] = parsed
		}
		if len(issues) > 0 {
			return nil, &contract.SchemaError{Issues: issues}
		}
		return out, nil
	})
}

// nested prefixes the issues of err with a field name or index.
func nested(prefix string, err error) []contract.Issue {
	serr, ok := err.(*contract.SchemaError)
	if !ok {
		return []contract.Issue{{Path: prefix, Message: err.Error()}}
	}
	issues := make([]contract.Issue, len(serr.Issues))
	for i, is := range serr.Issues {
		path := prefix
		if is.Path != "" {
			path += "." + is.Path
		}
		issues[i] = contract.Issue{Path: path, Message: is.Message}
	}
	return issues
}
