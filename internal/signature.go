package pyext

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/jerbob92/wazero-pyext/types"
)

// TypeShape is the syntactic form of a declared parameter type.
type TypeShape int

const (
	// ShapePath is a named or predeclared type, possibly instantiated.
	ShapePath TypeShape = iota
	// ShapeQualified is a path written with an explicit qualifier, like a
	// parenthesised type expression.
	ShapeQualified
	// ShapeOther covers pointer, slice, map, func, chan, array, struct and
	// interface literals.
	ShapeOther
)

// TypeRef is a declared parameter type, as seen by either the source
// generator or the reflection builder.
type TypeRef struct {
	Shape   TypeShape
	Name    string
	Args    []TypeRef
	Display string
	Reflect reflect.Type
}

func (t TypeRef) String() string {
	if t.Display != "" {
		return t.Display
	}
	return t.Name
}

type SignatureParam struct {
	Name     string
	Receiver bool
	Type     TypeRef
}

type MethodSignature struct {
	Class   string
	Name    string
	Generic bool
	Params  []SignatureParam
}

// Parameter is an exposed, classified method parameter. Optional is set to
// the payload type when the declared type is an optional wrapper.
type Parameter struct {
	Name     string
	Type     TypeRef
	Optional *TypeRef
}

func (p Parameter) IsOptional() bool {
	return p.Optional != nil
}

// ContextTypeName is the name of the type the first non-receiver parameter
// must have.
const ContextTypeName = "Python"

// OptionalTypeName is the name of the optional argument wrapper.
const OptionalTypeName = "Optional"

// SignatureError is a fatal problem with a method declaration.
type SignatureError struct {
	Class  string
	Method string
	Param  string
	Reason string
}

func (e *SignatureError) Error() string {
	target := e.Method
	if e.Class != "" {
		target = e.Class + "." + e.Method
	}
	if e.Param != "" {
		return fmt.Sprintf("%s: %s: %s", target, e.Param, e.Reason)
	}
	return fmt.Sprintf("%s: %s", target, e.Reason)
}

// Classify validates a method signature and returns its exposed parameters
// in declaration order, without the receiver and the context parameter.
func Classify(sig MethodSignature) ([]Parameter, error) {
	fail := func(param, format string, args ...any) error {
		return &SignatureError{Class: sig.Class, Method: sig.Name, Param: param, Reason: fmt.Sprintf(format, args...)}
	}

	if sig.Generic {
		return nil, fail("", "python method can not be generic")
	}

	hasContext := false
	params := []Parameter{}
	for _, p := range sig.Params {
		if p.Receiver {
			continue
		}

		if !hasContext {
			if p.Type.Shape != ShapePath || p.Type.Name != ContextTypeName {
				return nil, fail(p.Name, "first argument must be the %s context, got %s", ContextTypeName, p.Type)
			}
			hasContext = true
			continue
		}

		if p.Name == "" || p.Name == "_" {
			return nil, fail(p.Name, "ignored argument of type %s is not supported", p.Type)
		}

		param := Parameter{Name: p.Name, Type: p.Type}
		switch p.Type.Shape {
		case ShapeQualified:
			return nil, fail(p.Name, "explicit qualifier in type %s is not supported", p.Type)
		case ShapeOther:
			return nil, fail(p.Name, "argument type is not supported by python method: %s", p.Type)
		}

		if p.Type.Name == OptionalTypeName {
			if len(p.Type.Args) != 1 {
				return nil, fail(p.Name, "argument type is not supported by python method: %s", p.Type)
			}
			payload := p.Type.Args[0]
			param.Optional = &payload
		}

		params = append(params, param)
	}

	if !hasContext {
		return nil, fail("", "missing %s context argument", ContextTypeName)
	}

	return params, nil
}

var (
	optionalValueType = reflect.TypeOf((*types.OptionalValue)(nil)).Elem()
	anyType           = reflect.TypeOf((*any)(nil)).Elem()
	errorType         = reflect.TypeOf((*error)(nil)).Elem()
	pythonType        = reflect.TypeOf(Python{})
)

// reflectTypeRef describes a reflected type the way the source classifier
// would see its declaration.
func reflectTypeRef(t reflect.Type) TypeRef {
	ref := TypeRef{Display: t.String(), Reflect: t}
	if t == anyType {
		ref.Name = "any"
		return ref
	}

	name := t.Name()
	if name == "" {
		ref.Shape = ShapeOther
		return ref
	}

	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	ref.Name = name

	if reflect.PointerTo(t).Implements(optionalValueType) {
		payload := reflect.Zero(t).Interface().(interface{ PayloadType() reflect.Type }).PayloadType()
		ref.Args = []TypeRef{reflectTypeRef(payload)}
	}

	return ref
}

// reflectSignature builds the signature of method m on recv. argNames names
// every parameter after the receiver, the context parameter included.
func reflectSignature(class string, hostName string, recv reflect.Type, m reflect.Method, argNames []string) (MethodSignature, error) {
	sig := MethodSignature{
		Class:   class,
		Name:    hostName,
		Generic: strings.ContainsRune(recv.String(), '['),
	}

	mt := m.Type
	if mt.IsVariadic() {
		return sig, &SignatureError{Class: class, Method: hostName, Reason: "variadic methods are not supported"}
	}

	if len(argNames) != mt.NumIn()-1 {
		return sig, &SignatureError{Class: class, Method: hostName, Reason: fmt.Sprintf("got %d argument names for %d arguments", len(argNames), mt.NumIn()-1)}
	}

	sig.Params = append(sig.Params, SignatureParam{Name: "self", Receiver: true, Type: reflectTypeRef(mt.In(0))})
	for i := 1; i < mt.NumIn(); i++ {
		sig.Params = append(sig.Params, SignatureParam{
			Name: argNames[i-1],
			Type: reflectTypeRef(mt.In(i)),
		})
	}

	return sig, nil
}
