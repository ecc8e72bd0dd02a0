package types

import (
	"bytes"
	"encoding/json"
)

// Optional tracks whether a JSON field was present, and whether it was an
// explicit null, so PATCH bodies can distinguish "leave alone" from "clear".
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns a present, non-null Optional.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var zero T
	if bytes.Equal(trimmed, []byte("null")) {
		o.Set = true
		o.Null = true
		o.Value = zero
		return nil
	}

	var parsed T
	if err := json.Unmarshal(trimmed, &parsed); err != nil {
		return err
	}
	o.Set = true
	o.Null = false
	o.Value = parsed
	return nil
}

// MarshalJSON implements json.Marshaler. Absent and null values encode as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || o.Null {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}
