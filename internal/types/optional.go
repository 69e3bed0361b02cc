package types

import (
	"bytes"
	"encoding/json"
)

// NA is the wire marker for an unavailable value
const NA = "NA"

// Optional is a value that is either known or explicitly unavailable.
// The zero value is Unavailable.
type Optional[T any] struct {
	value T
	known bool
}

// Known wraps a present value
func Known[T any](v T) Optional[T] {
	return Optional[T]{value: v, known: true}
}

// Unavailable returns the absent variant
func Unavailable[T any]() Optional[T] {
	return Optional[T]{}
}

// IsKnown reports whether the value is present
func (o Optional[T]) IsKnown() bool {
	return o.known
}

// Get returns the value and whether it is present
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.known
}

// OrElse returns the value, or fallback when unavailable
func (o Optional[T]) OrElse(fallback T) T {
	if o.known {
		return o.value
	}
	return fallback
}

// MarshalJSON encodes the value, or "NA" when unavailable
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.known {
		return json.Marshal(NA)
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON accepts the value, null, or "NA"
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`"NA"`)) {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return err
	}
	*o = Known(v)
	return nil
}
