package pyext

import (
	"errors"
	"fmt"
)

const (
	TypeError      = "TypeError"
	ValueError     = "ValueError"
	OverflowError  = "OverflowError"
	AttributeError = "AttributeError"
	RuntimeError   = "RuntimeError"
	SystemError    = "SystemError"
)

// PyErr is an exception in the host runtime. Location is the call site that
// raised it, e.g. "Greeter.greet()".
type PyErr struct {
	Type     string
	Message  string
	Location string
	cause    error
}

func (e *PyErr) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("%s: %s (in %s)", e.Type, e.Message, e.Location)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *PyErr) Unwrap() error {
	return e.cause
}

func NewPyErr(typ string, format string, args ...any) *PyErr {
	return &PyErr{Type: typ, Message: fmt.Sprintf(format, args...)}
}

func NewTypeError(format string, args ...any) *PyErr {
	return NewPyErr(TypeError, format, args...)
}

func NewOverflowError(format string, args ...any) *PyErr {
	return NewPyErr(OverflowError, format, args...)
}

// ToPyErr turns any error into an exception. A *PyErr anywhere in the chain
// is used as is, everything else becomes a RuntimeError.
func ToPyErr(err error) *PyErr {
	var pyErr *PyErr
	if errors.As(err, &pyErr) {
		return pyErr
	}
	return &PyErr{Type: RuntimeError, Message: err.Error(), cause: err}
}

// Restore sets e as the current exception.
func (e *PyErr) Restore(py Python) {
	py.e.currentErr = e
}

func (py Python) ErrOccurred() bool {
	return py.e.currentErr != nil
}

// ErrFetch returns the current exception and clears it.
func (py Python) ErrFetch() *PyErr {
	err := py.e.currentErr
	py.e.currentErr = nil
	return err
}

func (py Python) ErrClear() {
	py.e.currentErr = nil
}
