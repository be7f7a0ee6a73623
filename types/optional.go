package types

import (
	"fmt"
	"reflect"
)

// Optional marks a method parameter that the caller may leave out. An
// omitted argument arrives as the zero Optional, a supplied one carries the
// converted payload.
type Optional[T any] struct {
	value T
	ok    bool
}

// Some returns an Optional holding v.
func Some[T any](v T) Optional[T] {
	return Optional[T]{value: v, ok: true}
}

// None returns an empty Optional.
func None[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) Get() (T, bool) {
	return o.value, o.ok
}

func (o Optional[T]) IsSome() bool {
	return o.ok
}

// OrElse returns the payload, or def when no value was given.
func (o Optional[T]) OrElse(def T) T {
	if !o.ok {
		return def
	}
	return o.value
}

func (o Optional[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.value)
}

// PayloadType is used by the bridge to find the type to extract into.
func (o Optional[T]) PayloadType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Payload returns the payload as an any, or nil when empty.
func (o Optional[T]) Payload() any {
	if !o.ok {
		return nil
	}
	return o.value
}

// SetPayload stores v, which must be assignable to T.
func (o *Optional[T]) SetPayload(v reflect.Value) {
	reflect.ValueOf(&o.value).Elem().Set(v)
	o.ok = true
}

// OptionalValue is implemented by every *Optional[T].
type OptionalValue interface {
	PayloadType() reflect.Type
	Payload() any
	SetPayload(v reflect.Value)
	IsSome() bool
}
