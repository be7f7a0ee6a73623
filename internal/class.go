package pyext

import (
	"fmt"
	"reflect"
	"unicode"

	"go.uber.org/zap"
)

// MethodSpec names a Go method to expose. Args names every parameter after
// the receiver, starting with the context parameter, because reflection
// cannot see parameter names.
type MethodSpec struct {
	Name   string
	GoName string
	Args   []string
	Doc    string
}

// ClassSpec describes a Go type to expose as a host class. Type must be a
// pointer, e.g. (*Greeter)(nil).
type ClassSpec struct {
	Name    string
	Type    any
	Methods []MethodSpec
	Doc     string
}

// TypeObject is the runtime-visible descriptor of a registered class.
type TypeObject interface {
	Name() string
	Doc() string
	GoType() reflect.Type
	Methods() []*MethodDef
	Method(name string) (*MethodDef, bool)
	AsAsync() *AsyncMethods
}

type typeObject struct {
	name          string
	doc           string
	goType        reflect.Type
	methods       []*MethodDef
	methodsByName map[string]*MethodDef
	asAsync       *AsyncMethods
}

func (t *typeObject) Name() string {
	return t.name
}

func (t *typeObject) Doc() string {
	return t.doc
}

func (t *typeObject) GoType() reflect.Type {
	return t.goType
}

func (t *typeObject) Methods() []*MethodDef {
	return append([]*MethodDef{}, t.methods...)
}

func (t *typeObject) Method(name string) (*MethodDef, bool) {
	m, ok := t.methodsByName[name]
	return m, ok
}

func (t *typeObject) AsAsync() *AsyncMethods {
	return t.asAsync
}

func (t *typeObject) addMethod(def *MethodDef) error {
	if _, ok := t.methodsByName[def.Name]; ok {
		return fmt.Errorf("cannot register method %s on class %s twice", def.Name, t.name)
	}
	t.methods = append(t.methods, def)
	t.methodsByName[def.Name] = def
	return nil
}

// receiver resolves the Go value behind slf for a call to method.
func (t *typeObject) receiver(py Python, slf Object, method string) (reflect.Value, error) {
	v, err := slf.Value(py)
	if err != nil {
		return reflect.Value{}, NewPyErr(SystemError, "bad self argument: %s", err)
	}

	inst, ok := v.(*Instance)
	if !ok || inst.class != t {
		return reflect.Value{}, NewTypeError("descriptor '%s' requires a '%s' object but received a '%s'", method, t.name, typeName(v))
	}

	return reflect.ValueOf(inst.value), nil
}

// RegisterClass builds the type object of spec. Like Class and Classes it
// takes the interpreter lock itself, so it can't be called from a method.
func (e *engine) RegisterClass(spec ClassSpec) (TypeObject, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("class name cannot be empty")
	}

	if spec.Type == nil {
		return nil, fmt.Errorf("could not register class %s without a type", spec.Name)
	}

	goType := reflect.TypeOf(spec.Type)
	if goType.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("could not register class %s with type %T, given value should be a pointer type", spec.Name, spec.Type)
	}

	e.gil.Lock()
	defer e.gil.Unlock()

	if existing, ok := e.classes[spec.Name]; ok {
		return nil, fmt.Errorf("could not register class %s, already registered as type %s", spec.Name, existing.goType)
	}

	if existing, ok := e.classTypes[goType]; ok {
		return nil, fmt.Errorf("could not register class %s, type %s is already registered as %s", spec.Name, goType, existing.name)
	}

	t := &typeObject{
		name:          spec.Name,
		doc:           spec.Doc,
		goType:        goType,
		methodsByName: map[string]*MethodDef{},
	}

	for i := range spec.Methods {
		def, err := e.newMethodDef(t, spec.Methods[i])
		if err != nil {
			return nil, fmt.Errorf("could not register method %s on class %s: %w", spec.Methods[i].Name, spec.Name, err)
		}
		if err := t.addMethod(def); err != nil {
			return nil, err
		}
	}

	asAsync, asyncDefs, err := e.newAsyncMethods(t)
	if err != nil {
		return nil, fmt.Errorf("could not build async slots for class %s: %w", spec.Name, err)
	}
	t.asAsync = asAsync
	for i := range asyncDefs {
		if err := t.addMethod(asyncDefs[i]); err != nil {
			return nil, err
		}
	}

	e.classes[spec.Name] = t
	e.classTypes[goType] = t
	e.classOrder = append(e.classOrder, spec.Name)

	e.logger.Debug("registered class",
		zap.String("class", spec.Name),
		zap.Stringer("type", goType),
		zap.Int("methods", len(t.methods)),
		zap.Bool("async", asAsync != nil),
	)

	return t, nil
}

func (e *engine) Class(name string) (TypeObject, bool) {
	e.gil.Lock()
	defer e.gil.Unlock()
	t, ok := e.classes[name]
	if !ok {
		return nil, false
	}
	return t, true
}

// Classes returns the registered classes in registration order.
func (e *engine) Classes() []TypeObject {
	e.gil.Lock()
	defer e.gil.Unlock()
	res := make([]TypeObject, len(e.classOrder))
	for i := range e.classOrder {
		res[i] = e.classes[e.classOrder[i]]
	}
	return res
}

func upperFirst(name string) string {
	if name == "" {
		return name
	}
	return string(unicode.ToUpper(rune(name[0]))) + name[1:]
}
