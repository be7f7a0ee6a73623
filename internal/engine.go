package pyext

import (
	"context"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

type engine struct {
	config     *engineConfig
	logger     *zap.Logger
	gil        sync.Mutex
	heap       *objectHeap
	currentErr *PyErr
	classes    map[string]*typeObject
	classTypes map[reflect.Type]*typeObject
	classOrder []string
}

// CreateEngine returns a new engine. Attach it to the context that is used
// to call the exported functions.
func CreateEngine(config IEngineConfig) IEngine {
	cfg, ok := config.(*engineConfig)
	if !ok || cfg == nil {
		cfg = NewConfig().(*engineConfig)
	}

	logger := cfg.logger
	if logger == nil {
		logger = Logger()
	}

	return &engine{
		config:     cfg,
		logger:     logger.With(zap.String("module", cfg.moduleName)),
		heap:       createObjectHeap(),
		classes:    map[string]*typeObject{},
		classTypes: map[reflect.Type]*typeObject{},
	}
}

func (e *engine) Attach(ctx context.Context) context.Context {
	return context.WithValue(ctx, EngineKey{}, e)
}

func (e *engine) Config() IEngineConfig {
	return e.config
}

// CallMethod looks up name on the type of the instance behind slf and calls
// it, like an attribute call in the host runtime.
func (e *engine) CallMethod(ctx context.Context, slf Handle, name string, args, kwargs Handle) Handle {
	ctx, py, release := e.acquireGIL(ctx)
	defer release()

	v, err := e.heap.value(slf)
	if err != nil {
		NewPyErr(SystemError, "bad self argument: %s", err).Restore(py)
		return NullHandle
	}

	inst, ok := v.(*Instance)
	if !ok {
		NewPyErr(AttributeError, "'%s' object has no attribute '%s'", typeName(v), name).Restore(py)
		return NullHandle
	}

	def, ok := inst.class.methodsByName[name]
	if !ok {
		NewPyErr(AttributeError, "'%s' object has no attribute '%s'", inst.class.name, name).Restore(py)
		return NullHandle
	}

	// ctx carries the token, so the trampoline reuses it.
	return def.Meth(ctx, slf, args, kwargs)
}
