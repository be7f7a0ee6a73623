package pyext

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
)

// GoModuleFunction adapts the trampoline to a wazero host function with
// the signature (slf, args, kwargs i32) -> i32.
func (d *MethodDef) GoModuleFunction() api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		slf := Handle(api.DecodeI32(stack[0]))
		args := Handle(api.DecodeI32(stack[1]))
		kwargs := Handle(api.DecodeI32(stack[2]))
		stack[0] = api.EncodeI32(int32(d.Meth(ctx, slf, args, kwargs)))
	}
}

func asyncSlotFunction(slot string) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		e := MustGetEngineFromContext(ctx)
		slf := Handle(api.DecodeI32(stack[0]))
		stack[0] = api.EncodeI32(int32(e.CallAsyncSlot(ctx, slot, slf)))
	}
}

var AmAwait = asyncSlotFunction(SlotAwait)

var AmAiter = asyncSlotFunction(SlotAiter)

var AmAnext = asyncSlotFunction(SlotAnext)

var Incref = api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
	e := MustGetEngineFromContext(ctx).(*engine)
	handle := Handle(api.DecodeI32(stack[0]))
	err := e.WithGIL(ctx, func(ctx context.Context, py Python) error {
		return e.heap.incref(handle)
	})
	if err != nil {
		panic(fmt.Errorf("could not incref: %w", err))
	}
})

var Decref = api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
	e := MustGetEngineFromContext(ctx).(*engine)
	handle := Handle(api.DecodeI32(stack[0]))
	err := e.WithGIL(ctx, func(ctx context.Context, py Python) error {
		return e.heap.decref(handle)
	})
	if err != nil {
		panic(fmt.Errorf("could not decref: %w", err))
	}
})

var ErrOccurred = api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
	e := MustGetEngineFromContext(ctx)
	occurred := false
	_ = e.WithGIL(ctx, func(ctx context.Context, py Python) error {
		occurred = py.ErrOccurred()
		return nil
	})
	if occurred {
		stack[0] = api.EncodeI32(1)
	} else {
		stack[0] = api.EncodeI32(0)
	}
})

var ErrClear = api.GoModuleFunc(func(ctx context.Context, mod api.Module, stack []uint64) {
	e := MustGetEngineFromContext(ctx)
	_ = e.WithGIL(ctx, func(ctx context.Context, py Python) error {
		py.ErrClear()
		return nil
	})
})
