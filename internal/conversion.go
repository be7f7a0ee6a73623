package pyext

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"github.com/jerbob92/wazero-pyext/types"
)

// FromPyObject is implemented by (pointers to) types that extract
// themselves from a host object.
type FromPyObject interface {
	ExtractFrom(py Python, obj Object) error
}

// ToPyObject is implemented by types that convert themselves into a new
// host object reference.
type ToPyObject interface {
	ToPyObject(py Python) (Object, error)
}

var (
	objectType       = reflect.TypeOf(Object{})
	fromPyObjectType = reflect.TypeOf((*FromPyObject)(nil)).Elem()
	toPyObjectType   = reflect.TypeOf((*ToPyObject)(nil)).Elem()
)

// borrowedObjects records the handles a method received as Object values.
// The caller still owns them, so a result that hands one back needs a new
// reference.
type borrowedObjects map[Handle]bool

// extractArgument converts one resolved slot. Optional parameters get the
// zero wrapper without extraction when the slot is absent; a present
// optional slot is extracted with the payload type.
func extractArgument(py Python, param Parameter, slot Object, t reflect.Type, borrowed borrowedObjects) (reflect.Value, error) {
	if !param.IsOptional() {
		return extract(py, slot, t, param.Name, borrowed)
	}

	wrapper := reflect.New(t)
	if slot.IsNull() {
		return wrapper.Elem(), nil
	}

	payload, err := extract(py, slot, param.Optional.Reflect, param.Name, borrowed)
	if err != nil {
		return reflect.Value{}, err
	}

	wrapper.Interface().(types.OptionalValue).SetPayload(payload)
	return wrapper.Elem(), nil
}

func extract(py Python, obj Object, t reflect.Type, name string, borrowed borrowedObjects) (reflect.Value, error) {
	if t == objectType {
		if borrowed != nil {
			borrowed[obj.handle] = true
		}
		return reflect.ValueOf(obj), nil
	}

	if reflect.PointerTo(t).Implements(fromPyObjectType) {
		v := reflect.New(t)
		if err := v.Interface().(FromPyObject).ExtractFrom(py, obj); err != nil {
			return reflect.Value{}, argumentError(name, err)
		}
		return v.Elem(), nil
	}

	value, err := obj.Value(py)
	if err != nil {
		return reflect.Value{}, err
	}

	if t == anyType {
		native, err := toNative(py, value)
		if err != nil {
			return reflect.Value{}, argumentError(name, err)
		}
		rv := reflect.New(anyType).Elem()
		if native != nil {
			rv.Set(reflect.ValueOf(native))
		}
		return rv, nil
	}

	if inst, ok := value.(*Instance); ok {
		iv := reflect.ValueOf(inst.value)
		if iv.Type().AssignableTo(t) {
			return iv, nil
		}
		if iv.Kind() == reflect.Pointer && iv.Type().Elem().AssignableTo(t) {
			return iv.Elem(), nil
		}
		return reflect.Value{}, mismatch(name, t, value)
	}

	rv := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return reflect.Value{}, mismatch(name, t, value)
		}
		rv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := value.(int64)
		if !ok {
			return reflect.Value{}, mismatch(name, t, value)
		}
		if rv.OverflowInt(i) {
			return reflect.Value{}, &PyErr{Type: OverflowError, Message: fmt.Sprintf("argument '%s': int %d out of range for %s", name, i, t)}
		}
		rv.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		i, ok := value.(int64)
		if !ok {
			return reflect.Value{}, mismatch(name, t, value)
		}
		if i < 0 {
			return reflect.Value{}, &PyErr{Type: OverflowError, Message: fmt.Sprintf("argument '%s': can't convert negative int to unsigned", name)}
		}
		if rv.OverflowUint(uint64(i)) {
			return reflect.Value{}, &PyErr{Type: OverflowError, Message: fmt.Sprintf("argument '%s': int %d out of range for %s", name, i, t)}
		}
		rv.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		switch f := value.(type) {
		case float64:
			rv.SetFloat(f)
		case int64:
			rv.SetFloat(float64(f))
		default:
			return reflect.Value{}, mismatch(name, t, value)
		}
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return reflect.Value{}, mismatch(name, t, value)
		}
		rv.SetString(s)
	case reflect.Slice:
		if b, ok := value.([]byte); ok && t.Elem().Kind() == reflect.Uint8 {
			rv.SetBytes(append([]byte{}, b...))
			return rv, nil
		}

		var items []Handle
		switch seq := value.(type) {
		case *tupleValue:
			items = seq.items
		case *listValue:
			items = seq.items
		default:
			return reflect.Value{}, mismatch(name, t, value)
		}

		rv.Set(reflect.MakeSlice(t, len(items), len(items)))
		for i := range items {
			item, err := extract(py, Object{handle: items[i]}, t.Elem(), fmt.Sprintf("%s[%d]", name, i), borrowed)
			if err != nil {
				return reflect.Value{}, err
			}
			rv.Index(i).Set(item)
		}
	case reflect.Map:
		d, ok := value.(*dictValue)
		if !ok || t.Key().Kind() != reflect.String {
			return reflect.Value{}, mismatch(name, t, value)
		}

		rv.Set(reflect.MakeMapWithSize(t, len(d.keys)))
		for _, key := range d.keys {
			item, err := extract(py, Object{handle: d.values[key]}, t.Elem(), fmt.Sprintf("%s[%q]", name, key), borrowed)
			if err != nil {
				return reflect.Value{}, err
			}
			rv.SetMapIndex(reflect.ValueOf(key).Convert(t.Key()), item)
		}
	default:
		return reflect.Value{}, mismatch(name, t, value)
	}

	return rv, nil
}

func argumentError(name string, err error) error {
	pyErr := ToPyErr(err)
	return &PyErr{
		Type:    pyErr.Type,
		Message: fmt.Sprintf("argument '%s': %s", name, pyErr.Message),
		cause:   err,
	}
}

func mismatch(name string, t reflect.Type, value any) error {
	return NewTypeError("argument '%s': expected %s, got %s", name, expectedName(t), typeName(value))
}

// expectedName is the host-side name of the type a Go type extracts from.
func expectedName(t reflect.Type) string {
	switch t.Kind() {
	case reflect.Bool:
		return "bool"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return "int"
	case reflect.Float32, reflect.Float64:
		return "float"
	case reflect.String:
		return "str"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "bytes"
		}
		return "sequence"
	case reflect.Map:
		return "dict"
	}
	return t.String()
}

// toNative converts a heap value into plain Go values, for parameters of
// type any.
func toNative(py Python, value any) (any, error) {
	switch v := value.(type) {
	case []byte:
		return append([]byte{}, v...), nil
	case *tupleValue:
		return handlesToNative(py, v.items)
	case *listValue:
		return handlesToNative(py, v.items)
	case *dictValue:
		res := make(map[string]any, len(v.keys))
		for _, key := range v.keys {
			item, err := py.e.heap.value(v.values[key])
			if err != nil {
				return nil, err
			}
			res[key], err = toNative(py, item)
			if err != nil {
				return nil, err
			}
		}
		return res, nil
	case *Instance:
		return v.value, nil
	}
	return value, nil
}

func handlesToNative(py Python, items []Handle) ([]any, error) {
	res := make([]any, len(items))
	for i := range items {
		item, err := py.e.heap.value(items[i])
		if err != nil {
			return nil, err
		}
		res[i], err = toNative(py, item)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

// toObject converts a Go value into a new host object reference. Returning
// an Object from a method hands its reference over to the caller, unless it
// is one of the borrowed arguments.
func toObject(py Python, v reflect.Value, borrowed borrowedObjects) (Object, error) {
	if !v.IsValid() {
		return py.None(), nil
	}

	t := v.Type()
	if t == objectType {
		obj := v.Interface().(Object)
		if obj.IsNull() {
			return py.None(), nil
		}
		if borrowed[obj.handle] {
			return obj.Clone(py), nil
		}
		return obj, nil
	}

	if class, ok := py.e.classTypes[t]; ok {
		if t.Kind() == reflect.Pointer && v.IsNil() {
			return py.None(), nil
		}
		return py.NewInstance(class.name, v.Interface())
	}

	if t.Implements(toPyObjectType) {
		if t.Kind() == reflect.Pointer && v.IsNil() {
			return py.None(), nil
		}
		return v.Interface().(ToPyObject).ToPyObject(py)
	}

	if reflect.PointerTo(t).Implements(optionalValueType) {
		p := reflect.New(t)
		p.Elem().Set(v)
		ov := p.Interface().(types.OptionalValue)
		if !ov.IsSome() {
			return py.None(), nil
		}
		return toObject(py, reflect.ValueOf(ov.Payload()), borrowed)
	}

	switch t.Kind() {
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return py.None(), nil
		}
		return toObject(py, v.Elem(), borrowed)
	case reflect.Bool:
		return py.NewBool(v.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return py.NewInt(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if v.Uint() > math.MaxInt64 {
			return Object{}, NewOverflowError("value %d does not fit in int", v.Uint())
		}
		return py.NewInt(int64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return py.NewFloat(v.Float()), nil
	case reflect.String:
		return py.NewString(v.String()), nil
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return py.NewBytes(v.Bytes()), nil
		}

		items := make([]Object, v.Len())
		defer func() {
			for i := range items {
				items[i].Release(py)
			}
		}()
		for i := 0; i < v.Len(); i++ {
			item, err := toObject(py, v.Index(i), borrowed)
			if err != nil {
				return Object{}, err
			}
			items[i] = item
		}
		return py.NewList(items...), nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			break
		}

		keys := v.MapKeys()
		sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

		d := py.NewDict()
		for _, key := range keys {
			item, err := toObject(py, v.MapIndex(key), borrowed)
			if err != nil {
				d.Release(py)
				return Object{}, err
			}
			d.SetItem(py, key.String(), item)
			item.Release(py)
		}
		return d.Object, nil
	}

	return Object{}, NewTypeError("cannot convert Go value of type %s to a host object", t)
}
