package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"strings"

	"github.com/broady/contract"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"
)

var (
	validate     = validator.New(validator.WithRequiredStructEnabled())
	queryDecoder = schema.NewDecoder()
)

func init() {
	queryDecoder.IgnoreUnknownKeys(true)
	queryDecoder.SetAliasTag("json")

	// Report json names in field errors.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
}

// Struct converts values into T and checks T's `validate` tags.
// Values that are already T or *T are used directly; anything else, such as
// a decoded JSON object, is converted through JSON.
func Struct[T any]() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		if v == nil {
			return nil, required()
		}
		var out T
		switch x := v.(type) {
		case T:
			out = x
		case *T:
			if x == nil {
				return nil, required()
			}
			out = *x
		default:
			data, err := json.Marshal(v)
			if err != nil {
				return nil, contract.NewSchemaError("", err.Error())
			}
			if err := json.Unmarshal(data, &out); err != nil {
				return nil, decodeIssue(err)
			}
		}
		if err := check(out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

// Query decodes url-encoded values into T with gorilla/schema and checks T's
// `validate` tags. Fields are matched by their json names. It accepts
// url.Values, map[string][]string, map[string]string and map[string]any,
// which covers both query strings and form-url bodies.
func Query[T any]() contract.Schema {
	return contract.SchemaFunc(func(_ context.Context, v any) (any, error) {
		if v == nil {
			return nil, required()
		}
		values, err := toValues(v)
		if err != nil {
			return nil, err
		}
		var out T
		if err := queryDecoder.Decode(&out, values); err != nil {
			return nil, queryIssues(err)
		}
		if err := check(out); err != nil {
			return nil, err
		}
		return out, nil
	})
}

func toValues(v any) (url.Values, error) {
	switch x := v.(type) {
	case url.Values:
		return x, nil
	case map[string][]string:
		return url.Values(x), nil
	case map[string]string:
		values := make(url.Values, len(x))
		for k, s := range x {
			values.Set(k, s)
		}
		return values, nil
	case map[string]any:
		values := make(url.Values, len(x))
		for k, val := range x {
			switch vv := val.(type) {
			case nil:
			case []string:
				values[k] = vv
			case []any:
				for _, item := range vv {
					values.Add(k, fmt.Sprint(item))
				}
			default:
				values.Set(k, fmt.Sprint(vv))
			}
		}
		return values, nil
	}
	return nil, expected("url-encoded values", v)
}

func check(v any) error {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var valErrs validator.ValidationErrors
	if !errors.As(err, &valErrs) {
		return contract.NewSchemaError("", err.Error())
	}
	issues := make([]contract.Issue, 0, len(valErrs))
	for _, ve := range valErrs {
		issues = append(issues, contract.Issue{Path: fieldPath(ve), Message: formatValidationError(ve)})
	}
	return &contract.SchemaError{Issues: issues}
}

// fieldPath drops the root struct name from the namespace, "User.address.city"
// becomes "address.city".
func fieldPath(ve validator.FieldError) string {
	ns := ve.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ve.Field()
}

func decodeIssue(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return contract.NewSchemaError(typeErr.Field, fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value))
	}
	return contract.NewSchemaError("", err.Error())
}

func queryIssues(err error) error {
	var multi schema.MultiError
	if !errors.As(err, &multi) {
		return contract.NewSchemaError("", err.Error())
	}
	serr := &contract.SchemaError{}
	for field, ferr := range multi {
		serr.Issues = append(serr.Issues, contract.Issue{Path: field, Message: ferr.Error()})
	}
	return serr
}

// formatValidationError converts a validator.FieldError to a human-readable message.
func formatValidationError(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return "required"
	case "min":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "len":
		return fmt.Sprintf("must have length %s", ve.Param())
	case "eq":
		return fmt.Sprintf("must equal %s", ve.Param())
	case "ne":
		return fmt.Sprintf("must not equal %s", ve.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", ve.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", ve.Param())
	case "lt":
		return fmt.Sprintf("must be less than %s", ve.Param())
	case "lte":
		return fmt.Sprintf("must be at most %s", ve.Param())
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", ve.Param())
	default:
		if ve.Param() != "" {
			return fmt.Sprintf("failed %s=%s validation", ve.Tag(), ve.Param())
		}
		return fmt.Sprintf("failed %s validation", ve.Tag())
	}
}
