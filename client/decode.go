package client

import (
	"encoding/json"
	"fmt"
)

// Decode converts a parsed body into T. Values that already have type T
// are returned as is; anything else is converted through JSON.
func Decode[T any](v any) (T, error) {
	var out T
	if t, ok := v.(T); ok {
		return t, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("client: decode: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("client: decode: %w", err)
	}
	return out, nil
}
