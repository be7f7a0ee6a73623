package pyext

import (
	"context"
	"fmt"
	"reflect"
)

type MethodFlags int

const (
	MethVarargs  MethodFlags = 0x0001
	MethKeywords MethodFlags = 0x0002
)

// PyCFunctionWithKeywords is the native-call ABI of an exposed method: the
// receiver, the positional tuple and the optional keyword dict are all
// borrowed from the caller. It returns a new reference, or NullHandle with
// the exception set.
type PyCFunctionWithKeywords func(ctx context.Context, slf, args, kwargs Handle) Handle

// MethodDef is an exposed method as installed in a type object.
type MethodDef struct {
	Name   string
	Flags  MethodFlags
	Params []ParamDescription
	Meth   PyCFunctionWithKeywords
	Doc    string
}

// Location is the diagnostic call site used in every error raised by the
// trampoline.
func (d *MethodDef) Location(class string) string {
	return fmt.Sprintf("%s.%s()", class, d.Name)
}

type resultShape int

const (
	resultNone resultShape = iota
	resultError
	resultValue
	resultValueError
)

func classifyResults(mt reflect.Type) (resultShape, error) {
	switch mt.NumOut() {
	case 0:
		return resultNone, nil
	case 1:
		if mt.Out(0) == errorType {
			return resultError, nil
		}
		return resultValue, nil
	case 2:
		if mt.Out(1) != errorType {
			return 0, fmt.Errorf("second result must be an error, got %s", mt.Out(1))
		}
		return resultValueError, nil
	}
	return 0, fmt.Errorf("wrong result count, got %d, need at most 2 (value and error)", mt.NumOut())
}

// newMethodDef builds the descriptor table and the trampoline of one method
// together, from the same classified signature.
func (e *engine) newMethodDef(t *typeObject, spec MethodSpec) (*MethodDef, error) {
	goName := spec.GoName
	if goName == "" {
		goName = upperFirst(spec.Name)
	}

	m, ok := t.goType.MethodByName(goName)
	if !ok {
		return nil, fmt.Errorf("type %s does not have method %s", t.goType, goName)
	}

	sig, err := reflectSignature(t.name, spec.Name, t.goType, m, spec.Args)
	if err != nil {
		return nil, err
	}

	params, err := Classify(sig)
	if err != nil {
		return nil, err
	}

	if m.Type.In(1) != pythonType {
		return nil, &SignatureError{Class: t.name, Method: spec.Name, Param: spec.Args[0], Reason: fmt.Sprintf("context argument must be of type %s, got %s", pythonType, m.Type.In(1))}
	}

	shape, err := classifyResults(m.Type)
	if err != nil {
		return nil, &SignatureError{Class: t.name, Method: spec.Name, Reason: err.Error()}
	}

	def := &MethodDef{
		Name:   spec.Name,
		Flags:  MethVarargs | MethKeywords,
		Params: make([]ParamDescription, len(params)),
		Doc:    spec.Doc,
	}
	argTypes := make([]reflect.Type, len(params))
	for i := range params {
		def.Params[i] = ParamDescription{Name: params[i].Name, IsOptional: params[i].IsOptional()}
		argTypes[i] = m.Type.In(i + 2)
	}

	location := def.Location(t.name)
	fn := m.Func

	def.Meth = func(ctx context.Context, slf, args, kwargs Handle) Handle {
		return e.handleCallback(ctx, location, func(ctx context.Context, py Python) (Object, error) {
			argsObj, err := py.FromBorrowed(args)
			if err != nil {
				return Object{}, NewPyErr(SystemError, "bad argument tuple: %s", err)
			}
			defer argsObj.Release(py)

			argsTuple, err := py.AsTuple(argsObj)
			if err != nil {
				return Object{}, err
			}

			kwargsDict, err := getKwargs(py, kwargs)
			if err != nil {
				return Object{}, err
			}
			if kwargsDict != nil {
				defer kwargsDict.Release(py)
			}

			output := make([]Object, len(def.Params))
			err = ParseArgs(py, location, def.Params, argsTuple, kwargsDict, output)
			if err != nil {
				return Object{}, err
			}

			borrowed := borrowedObjects{}
			in := make([]reflect.Value, 2, 2+len(params))
			for i := range params {
				arg, err := extractArgument(py, params[i], output[i], argTypes[i], borrowed)
				if err != nil {
					return Object{}, err
				}
				in = append(in, arg)
			}

			self, err := py.FromBorrowed(slf)
			if err != nil {
				return Object{}, NewPyErr(SystemError, "bad self argument: %s", err)
			}
			defer self.Release(py)

			in[0], err = t.receiver(py, self, spec.Name)
			if err != nil {
				return Object{}, err
			}
			in[1] = reflect.ValueOf(py)

			return convertResults(py, shape, fn.Call(in), borrowed)
		})
	}

	return def, nil
}

func convertResults(py Python, shape resultShape, out []reflect.Value, borrowed borrowedObjects) (Object, error) {
	switch shape {
	case resultNone:
		return py.None(), nil
	case resultError:
		if err := asError(out[0]); err != nil {
			return Object{}, err
		}
		return py.None(), nil
	case resultValueError:
		if err := asError(out[1]); err != nil {
			return Object{}, err
		}
	}
	return toObject(py, out[0], borrowed)
}

func asError(v reflect.Value) error {
	if v.IsNil() {
		return nil
	}
	return v.Interface().(error)
}
