package model

import "encoding/json"

// Optional distinguishes a JSON key that was absent from one that was sent
// as null and from one that carries a value.
//
//	{}                → Set=false
//	{"notes": null}   → Set=true, Null=true
//	{"notes": "wind"} → Set=true, Value="wind"
type Optional[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{Set: true, Value: v}
}

// Null returns an Optional that was explicitly set to null.
func Null[T any]() Optional[T] {
	return Optional[T]{Set: true, Null: true}
}

// UnmarshalJSON is only invoked by encoding/json when the key is present,
// which is what lets Set tell absent keys apart.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Null = true
		var zero T
		o.Value = zero
		return nil
	}
	o.Null = false
	return json.Unmarshal(data, &o.Value)
}

// Ptr returns nil for a null value and a pointer to a copy otherwise.
func (o Optional[T]) Ptr() *T {
	if o.Null {
		return nil
	}
	v := o.Value
	return &v
}
