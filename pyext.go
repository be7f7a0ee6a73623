package pyext

import (
	"context"

	internal "github.com/jerbob92/wazero-pyext/internal"
	"go.uber.org/zap"
)

type Python = internal.Python

type Handle = internal.Handle

type Object = internal.Object

type Tuple = internal.Tuple

type Dict = internal.Dict

type PyErr = internal.PyErr

type ParamDescription = internal.ParamDescription

type MethodDef = internal.MethodDef

type MethodSpec = internal.MethodSpec

type ClassSpec = internal.ClassSpec

type TypeObject = internal.TypeObject

type AsyncProtocol = internal.AsyncProtocol

type AsyncProtocolBase = internal.AsyncProtocolBase

type AsyncProtocolImpl = internal.AsyncProtocolImpl

type AsyncMethods = internal.AsyncMethods

type FromPyObject = internal.FromPyObject

type ToPyObject = internal.ToPyObject

type EngineKey = internal.EngineKey

type IEngineConfig = internal.IEngineConfig

const (
	NullHandle = internal.NullHandle
	NoneHandle = internal.NoneHandle

	SlotAwait  = internal.SlotAwait
	SlotAiter  = internal.SlotAiter
	SlotAnext  = internal.SlotAnext
	SlotAenter = internal.SlotAenter
	SlotAexit  = internal.SlotAexit
)

func NewConfig() IEngineConfig {
	return internal.NewConfig()
}

func PythonFromContext(ctx context.Context) (Python, bool) {
	return internal.PythonFromContext(ctx)
}

const (
	TypeError      = internal.TypeError
	ValueError     = internal.ValueError
	OverflowError  = internal.OverflowError
	AttributeError = internal.AttributeError
	RuntimeError   = internal.RuntimeError
	SystemError    = internal.SystemError
)

func NewPyErr(typ string, format string, args ...any) *PyErr {
	return internal.NewPyErr(typ, format, args...)
}

func NewTypeError(format string, args ...any) *PyErr {
	return internal.NewTypeError(format, args...)
}

// SetLogger sets the logger used by engines that are created without
// IEngineConfig.WithLogger.
func SetLogger(l *zap.Logger) {
	internal.SetLogger(l)
}
