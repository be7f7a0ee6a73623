package pyext

import (
	"context"
	"fmt"
	"reflect"
)

// Python is the token proving that the engine's interpreter lock is held.
// Only the engine hands it out; every heap operation requires it.
type Python struct {
	e *engine
}

type gilKey struct{}

// PythonFromContext returns the token stored in ctx by WithGIL or a
// trampoline, if any.
func PythonFromContext(ctx context.Context) (Python, bool) {
	py, ok := ctx.Value(gilKey{}).(Python)
	return py, ok && py.e != nil
}

// acquireGIL locks the interpreter unless ctx already carries a token for
// this engine, in which case the call is nested and the token is reused.
func (e *engine) acquireGIL(ctx context.Context) (context.Context, Python, func()) {
	if py, ok := PythonFromContext(ctx); ok && py.e == e {
		return ctx, py, func() {}
	}

	e.gil.Lock()
	py := Python{e: e}
	return context.WithValue(ctx, gilKey{}, py), py, e.gil.Unlock
}

func (e *engine) WithGIL(ctx context.Context, fn func(ctx context.Context, py Python) error) error {
	ctx, py, release := e.acquireGIL(ctx)
	defer release()
	return fn(ctx, py)
}

// Object is an owned reference to a host object. Every Object obtained from
// FromBorrowed, FromOwned or a constructor must be released exactly once.
type Object struct {
	handle Handle
}

func (o Object) Handle() Handle {
	return o.handle
}

func (o Object) IsNull() bool {
	return o.handle == NullHandle
}

// Steal gives up ownership and returns the raw handle.
func (o Object) Steal() Handle {
	return o.handle
}

func (o Object) Release(py Python) {
	if o.handle == NullHandle {
		return
	}
	if err := py.e.heap.decref(o.handle); err != nil {
		panic(fmt.Errorf("could not release handle %d: %w", o.handle, err))
	}
}

func (o Object) Clone(py Python) Object {
	if o.handle != NullHandle {
		if err := py.e.heap.incref(o.handle); err != nil {
			panic(fmt.Errorf("could not clone handle %d: %w", o.handle, err))
		}
	}
	return o
}

// Value returns the Go representation of the object.
func (o Object) Value(py Python) (any, error) {
	return py.e.heap.value(o.handle)
}

func (o Object) TypeName(py Python) string {
	v, err := o.Value(py)
	if err != nil {
		return "<invalid>"
	}
	return typeName(v)
}

func (o Object) IsNone() bool {
	return o.handle == NoneHandle
}

// FromBorrowed acquires a new reference to a handle the caller only lent us.
func (py Python) FromBorrowed(h Handle) (Object, error) {
	if err := py.e.heap.incref(h); err != nil {
		return Object{}, err
	}
	return Object{handle: h}, nil
}

// FromOwned takes over a reference the caller already owns.
func (py Python) FromOwned(h Handle) Object {
	return Object{handle: h}
}

func (py Python) RefCount(h Handle) int {
	return py.e.heap.refCount(h)
}

func (py Python) Stats() HeapStats {
	return py.e.heap.stats
}

func (py Python) LiveObjects() []Handle {
	return py.e.heap.live()
}

func (py Python) None() Object {
	return Object{handle: NoneHandle}
}

func (py Python) NotImplemented() Object {
	return Object{handle: NotImplementedHandle}
}

func (py Python) NewBool(v bool) Object {
	return Object{handle: py.e.heap.allocate(v)}
}

func (py Python) NewInt(v int64) Object {
	return Object{handle: py.e.heap.allocate(v)}
}

func (py Python) NewFloat(v float64) Object {
	return Object{handle: py.e.heap.allocate(v)}
}

func (py Python) NewString(v string) Object {
	return Object{handle: py.e.heap.allocate(v)}
}

func (py Python) NewBytes(v []byte) Object {
	return Object{handle: py.e.heap.allocate(append([]byte{}, v...))}
}

// NewTuple builds a tuple holding new references to items.
func (py Python) NewTuple(items ...Object) Tuple {
	handles := make([]Handle, len(items))
	for i := range items {
		handles[i] = items[i].Clone(py).handle
	}
	return Tuple{Object{handle: py.e.heap.allocate(&tupleValue{items: handles})}}
}

// NewList builds a list holding new references to items.
func (py Python) NewList(items ...Object) Object {
	handles := make([]Handle, len(items))
	for i := range items {
		handles[i] = items[i].Clone(py).handle
	}
	return Object{handle: py.e.heap.allocate(&listValue{items: handles})}
}

func (py Python) NewDict() Dict {
	return Dict{Object{handle: py.e.heap.allocate(&dictValue{values: map[string]Handle{}})}}
}

// NewInstance wraps value as an instance of the registered class.
func (py Python) NewInstance(class string, value any) (Object, error) {
	t, ok := py.e.classes[class]
	if !ok {
		return Object{}, fmt.Errorf("class %s is not registered", class)
	}

	if value == nil || !reflect.TypeOf(value).AssignableTo(t.goType) {
		return Object{}, fmt.Errorf("could not create instance of %s from value of type %T, need %s", class, value, t.goType)
	}

	return Object{handle: py.e.heap.allocate(&Instance{class: t, value: value})}, nil
}

// Tuple is a typed view over a tuple object.
type Tuple struct {
	Object
}

// AsTuple checks that o is a tuple. The view shares o's reference.
func (py Python) AsTuple(o Object) (Tuple, error) {
	v, err := o.Value(py)
	if err != nil {
		return Tuple{}, err
	}
	if _, ok := v.(*tupleValue); !ok {
		return Tuple{}, NewTypeError("expected tuple, got %s", typeName(v))
	}
	return Tuple{o}, nil
}

func (t Tuple) items(py Python) []Handle {
	v, err := t.Value(py)
	if err != nil {
		panic(fmt.Errorf("could not read tuple %d: %w", t.handle, err))
	}
	return v.(*tupleValue).items
}

func (t Tuple) Len(py Python) int {
	return len(t.items(py))
}

// GetItem returns a borrowed reference to item i.
func (t Tuple) GetItem(py Python, i int) Object {
	return Object{handle: t.items(py)[i]}
}

// Dict is a typed view over a dict object with string keys.
type Dict struct {
	Object
}

// AsDict checks that o is a dict. The view shares o's reference.
func (py Python) AsDict(o Object) (Dict, error) {
	v, err := o.Value(py)
	if err != nil {
		return Dict{}, err
	}
	if _, ok := v.(*dictValue); !ok {
		return Dict{}, NewTypeError("expected dict, got %s", typeName(v))
	}
	return Dict{o}, nil
}

func (d Dict) dict(py Python) *dictValue {
	v, err := d.Value(py)
	if err != nil {
		panic(fmt.Errorf("could not read dict %d: %w", d.handle, err))
	}
	return v.(*dictValue)
}

func (d Dict) Len(py Python) int {
	return len(d.dict(py).keys)
}

// Keys returns the keys in insertion order.
func (d Dict) Keys(py Python) []string {
	return append([]string{}, d.dict(py).keys...)
}

// GetItem returns a borrowed reference to the value stored under key.
func (d Dict) GetItem(py Python, key string) (Object, bool) {
	h, ok := d.dict(py).values[key]
	if !ok {
		return Object{}, false
	}
	return Object{handle: h}, true
}

// SetItem stores a new reference to value under key.
func (d Dict) SetItem(py Python, key string, value Object) {
	dv := d.dict(py)
	value = value.Clone(py)
	if old, ok := dv.values[key]; ok {
		dv.values[key] = value.handle
		Object{handle: old}.Release(py)
		return
	}
	dv.keys = append(dv.keys, key)
	dv.values[key] = value.handle
}
