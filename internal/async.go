package pyext

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"
)

// AsyncProtocol is the awaitable object protocol. Types embed
// AsyncProtocolBase to satisfy it and override only what they need; the
// overridden names are reported through AsyncProtocolImpl.
type AsyncProtocol interface {
	Await(py Python) (Object, error)
	AIter(py Python) (Object, error)
	ANext(py Python) (Object, error)
	AEnter(py Python) (Object, error)
	AExit(py Python, excType, excValue, traceback Object) (Object, error)
}

// AsyncProtocolBase implements every AsyncProtocol method by returning None.
type AsyncProtocolBase struct{}

func (AsyncProtocolBase) Await(py Python) (Object, error) {
	return py.None(), nil
}

func (AsyncProtocolBase) AIter(py Python) (Object, error) {
	return py.None(), nil
}

func (AsyncProtocolBase) ANext(py Python) (Object, error) {
	return py.None(), nil
}

func (AsyncProtocolBase) AEnter(py Python) (Object, error) {
	return py.None(), nil
}

func (AsyncProtocolBase) AExit(py Python, excType, excValue, traceback Object) (Object, error) {
	return py.None(), nil
}

// AsyncProtocolImpl lists the AsyncProtocol methods a type overrides, by
// their host names.
type AsyncProtocolImpl interface {
	AsyncMethods() []string
}

const (
	SlotAwait  = "__await__"
	SlotAiter  = "__aiter__"
	SlotAnext  = "__anext__"
	SlotAenter = "__aenter__"
	SlotAexit  = "__aexit__"
)

// AsyncCapabilities is the method set of the async protocol.
var AsyncCapabilities = []string{SlotAwait, SlotAiter, SlotAnext, SlotAenter, SlotAexit}

var (
	asyncProtocolType     = reflect.TypeOf((*AsyncProtocol)(nil)).Elem()
	asyncProtocolImplType = reflect.TypeOf((*AsyncProtocolImpl)(nil)).Elem()
)

// UnaryFunc is the slot ABI: a borrowed receiver in, a new reference or
// NullHandle out.
type UnaryFunc func(ctx context.Context, slf Handle) Handle

// AsyncMethods is the async slot table of a type. Every slot is set: the
// ones the type does not implement return the protocol default.
type AsyncMethods struct {
	AmAwait UnaryFunc
	AmAiter UnaryFunc
	AmAnext UnaryFunc

	implemented map[string]bool
}

// Implements reports whether the type overrides the named method.
func (am *AsyncMethods) Implements(name string) bool {
	return am.implemented[name]
}

// Slot returns the slot function for a slot name.
func (am *AsyncMethods) Slot(name string) (UnaryFunc, bool) {
	switch name {
	case SlotAwait:
		return am.AmAwait, true
	case SlotAiter:
		return am.AmAiter, true
	case SlotAnext:
		return am.AmAnext, true
	}
	return nil, false
}

// newAsyncMethods builds the async slot table of t. It returns no table
// when t overrides none of the protocol. __aenter__ and __aexit__ are
// looked up as methods by the host, so they are returned as method
// definitions instead of slots, and only when overridden.
func (e *engine) newAsyncMethods(t *typeObject) (*AsyncMethods, []*MethodDef, error) {
	if !t.goType.Implements(asyncProtocolImplType) {
		return nil, nil, nil
	}

	names := reflect.New(t.goType.Elem()).Interface().(AsyncProtocolImpl).AsyncMethods()
	if len(names) == 0 {
		e.logger.Debug("async protocol unused", zap.String("class", t.name))
		return nil, nil, nil
	}

	if !t.goType.Implements(asyncProtocolType) {
		return nil, nil, fmt.Errorf("type %s lists async methods but does not implement AsyncProtocol, embed AsyncProtocolBase", t.goType)
	}

	meth := &AsyncMethods{implemented: map[string]bool{}}
	defs := []*MethodDef{}
	for _, name := range names {
		if meth.implemented[name] {
			return nil, nil, fmt.Errorf("async method %s listed twice", name)
		}

		switch name {
		case SlotAwait:
			meth.AmAwait = e.unarySlot(t, name, AsyncProtocol.Await)
		case SlotAiter:
			meth.AmAiter = e.unarySlot(t, name, AsyncProtocol.AIter)
		case SlotAnext:
			meth.AmAnext = e.unarySlot(t, name, AsyncProtocol.ANext)
		case SlotAenter:
			def, err := e.newMethodDef(t, MethodSpec{Name: name, GoName: "AEnter", Args: []string{"py"}})
			if err != nil {
				return nil, nil, err
			}
			defs = append(defs, def)
		case SlotAexit:
			def, err := e.newMethodDef(t, MethodSpec{Name: name, GoName: "AExit", Args: []string{"py", "exc_type", "exc_value", "traceback"}})
			if err != nil {
				return nil, nil, err
			}
			defs = append(defs, def)
		default:
			return nil, nil, fmt.Errorf("unknown async method %s", name)
		}

		meth.implemented[name] = true
	}

	base := AsyncProtocolBase{}
	if meth.AmAwait == nil {
		meth.AmAwait = e.unarySlot(t, SlotAwait, func(_ AsyncProtocol, py Python) (Object, error) { return base.Await(py) })
	}
	if meth.AmAiter == nil {
		meth.AmAiter = e.unarySlot(t, SlotAiter, func(_ AsyncProtocol, py Python) (Object, error) { return base.AIter(py) })
	}
	if meth.AmAnext == nil {
		meth.AmAnext = e.unarySlot(t, SlotAnext, func(_ AsyncProtocol, py Python) (Object, error) { return base.ANext(py) })
	}

	e.logger.Debug("async protocol active", zap.String("class", t.name), zap.Strings("methods", names))

	return meth, defs, nil
}

// unarySlot adapts a protocol method to the slot ABI.
func (e *engine) unarySlot(t *typeObject, name string, call func(AsyncProtocol, Python) (Object, error)) UnaryFunc {
	location := fmt.Sprintf("%s.%s()", t.name, name)
	return func(ctx context.Context, slf Handle) Handle {
		return e.handleCallback(ctx, location, func(ctx context.Context, py Python) (Object, error) {
			self, err := py.FromBorrowed(slf)
			if err != nil {
				return Object{}, NewPyErr(SystemError, "bad self argument: %s", err)
			}
			defer self.Release(py)

			recv, err := t.receiver(py, self, name)
			if err != nil {
				return Object{}, err
			}

			return call(recv.Interface().(AsyncProtocol), py)
		})
	}
}

var asyncSlotErrors = map[string]string{
	SlotAwait: "object %s can't be used in 'await' expression",
	SlotAiter: "'async for' requires an object with __aiter__ method, got %s",
	SlotAnext: "'async for' requires an iterator with __anext__ method, got %s",
}

// CallAsyncSlot invokes an async slot of the object behind slf, the way the
// host runtime does for await and async for.
func (e *engine) CallAsyncSlot(ctx context.Context, slot string, slf Handle) Handle {
	ctx, py, release := e.acquireGIL(ctx)
	defer release()

	format, ok := asyncSlotErrors[slot]
	if !ok {
		NewPyErr(SystemError, "unknown async slot %s", slot).Restore(py)
		return NullHandle
	}

	v, err := py.e.heap.value(slf)
	if err != nil {
		NewPyErr(SystemError, "bad self argument: %s", err).Restore(py)
		return NullHandle
	}

	inst, ok := v.(*Instance)
	if !ok || inst.class.asAsync == nil {
		NewTypeError(format, typeName(v)).Restore(py)
		return NullHandle
	}

	fn, _ := inst.class.asAsync.Slot(slot)
	return fn(ctx, slf)
}
