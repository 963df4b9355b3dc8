package contract

import (
	"context"
	"strings"
)

// Schema validates a value and returns its parsed, possibly coerced, form.
//
// Implementations report failures as *SchemaError when they can describe
// individual issues; any other error is treated as an opaque failure.
// A nil input means the value is absent.
type Schema interface {
	Parse(ctx context.Context, v any) (any, error)
}

// SchemaFunc adapts a function to the Schema interface.
type SchemaFunc func(ctx context.Context, v any) (any, error)

// Parse calls f(ctx, v).
func (f SchemaFunc) Parse(ctx context.Context, v any) (any, error) {
	return f(ctx, v)
}

// Issue is a single schema failure at a location within the value.
// Path is dot separated; an empty Path refers to the value itself.
type Issue struct {
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

// SchemaError is the structured failure returned by schema implementations.
type SchemaError struct {
	Issues []Issue
}

func (e *SchemaError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Path == "" {
			msgs = append(msgs, is.Message)
			continue
		}
		msgs = append(msgs, is.Path+": "+is.Message)
	}
	return strings.Join(msgs, "; ")
}

// NewSchemaError creates a SchemaError with a single issue.
func NewSchemaError(path, message string) *SchemaError {
	return &SchemaError{Issues: []Issue{{Path: path, Message: message}}}
}
