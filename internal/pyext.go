package pyext

import (
	"context"
	"fmt"
)

type IEngine interface {
	Attach(ctx context.Context) context.Context
	Config() IEngineConfig
	RegisterClass(spec ClassSpec) (TypeObject, error)
	Class(name string) (TypeObject, bool)
	Classes() []TypeObject
	WithGIL(ctx context.Context, fn func(ctx context.Context, py Python) error) error
	CallMethod(ctx context.Context, slf Handle, name string, args, kwargs Handle) Handle
	CallAsyncSlot(ctx context.Context, slot string, slf Handle) Handle
}

func GetEngineFromContext(ctx context.Context) (IEngine, error) {
	raw := ctx.Value(EngineKey{})
	if raw == nil {
		return nil, fmt.Errorf("pyext engine not found in context")
	}

	value, ok := raw.(IEngine)
	if !ok {
		return nil, fmt.Errorf("context value %v not of type %T", raw, new(IEngine))
	}

	return value, nil
}

func MustGetEngineFromContext(ctx context.Context) IEngine {
	e, err := GetEngineFromContext(ctx)
	if err != nil {
		panic(fmt.Errorf("could not get pyext engine from context: %w, make sure to create an engine with pyext.CreateEngine() and to attach it to the context with \"ctx = engine.Attach(ctx)\"", err))
	}

	return e
}

// EngineKey Use this key to add the engine to your context:
// ctx = context.WithValue(ctx, pyext.EngineKey{}, engine)
type EngineKey struct{}
