package pyext

import (
	"fmt"
	"sort"
)

// Handle is the raw object reference passed over the native-call ABI. The
// zero handle is NULL: a function returning it signals that an exception
// has been set.
type Handle int32

const (
	NullHandle           Handle = 0
	NoneHandle           Handle = 1
	TrueHandle           Handle = 2
	FalseHandle          Handle = 3
	NotImplementedHandle Handle = 4
)

type notImplemented struct{}

// NotImplemented is the value behind NotImplementedHandle.
var NotImplemented = notImplemented{}

type objectSlot struct {
	value    any
	refCount int
}

// HeapStats counts reference acquisitions and releases on non-immortal
// objects.
type HeapStats struct {
	Allocated int
	Freed     int
	Increfs   int
	Decrefs   int
}

type objectHeap struct {
	allocated []*objectSlot
	freelist  []Handle
	reserved  int
	stats     HeapStats
}

func createObjectHeap() *objectHeap {
	return &objectHeap{
		allocated: []*objectSlot{
			nil, // Reserve slot 0 so that 0 is always an invalid handle
			{value: nil},
			{value: true},
			{value: false},
			{value: NotImplemented},
		},
		freelist: []Handle{},
		reserved: 5,
	}
}

func (h *objectHeap) isImmortal(id Handle) bool {
	return id > NullHandle && int(id) < h.reserved
}

func (h *objectHeap) get(id Handle) (*objectSlot, error) {
	if id < 1 || int(id) > len(h.allocated)-1 || h.allocated[id] == nil {
		return nil, fmt.Errorf("invalid handle: %d", id)
	}

	return h.allocated[id], nil
}

func (h *objectHeap) allocate(value any) Handle {
	switch v := value.(type) {
	case nil:
		return NoneHandle
	case bool:
		if v {
			return TrueHandle
		}
		return FalseHandle
	case notImplemented:
		return NotImplementedHandle
	}

	slot := &objectSlot{value: value, refCount: 1}
	h.stats.Allocated++

	// Reuse freed slots when available.
	if len(h.freelist) > 0 {
		id := h.freelist[len(h.freelist)-1]
		h.freelist = h.freelist[:len(h.freelist)-1]
		h.allocated[id] = slot
		return id
	}

	id := Handle(len(h.allocated))
	h.allocated = append(h.allocated, slot)
	return id
}

func (h *objectHeap) free(id Handle) error {
	slot, err := h.get(id)
	if err != nil {
		return err
	}

	h.allocated[id] = nil
	h.freelist = append(h.freelist, id)
	h.stats.Freed++

	// Containers own references to their items.
	switch v := slot.value.(type) {
	case *tupleValue:
		for _, item := range v.items {
			if err := h.decref(item); err != nil {
				return err
			}
		}
	case *listValue:
		for _, item := range v.items {
			if err := h.decref(item); err != nil {
				return err
			}
		}
	case *dictValue:
		for _, key := range v.keys {
			if err := h.decref(v.values[key]); err != nil {
				return err
			}
		}
	}

	return nil
}

func (h *objectHeap) incref(id Handle) error {
	if h.isImmortal(id) {
		return nil
	}

	slot, err := h.get(id)
	if err != nil {
		return err
	}
	slot.refCount++
	h.stats.Increfs++
	return nil
}

func (h *objectHeap) decref(id Handle) error {
	if h.isImmortal(id) {
		return nil
	}

	slot, err := h.get(id)
	if err != nil {
		return err
	}

	slot.refCount--
	h.stats.Decrefs++
	if slot.refCount == 0 {
		return h.free(id)
	}

	return nil
}

func (h *objectHeap) refCount(id Handle) int {
	if h.isImmortal(id) {
		return -1
	}
	slot, err := h.get(id)
	if err != nil {
		return 0
	}
	return slot.refCount
}

func (h *objectHeap) value(id Handle) (any, error) {
	slot, err := h.get(id)
	if err != nil {
		return nil, err
	}
	return slot.value, nil
}

// live returns the handles of every non-immortal object still allocated.
func (h *objectHeap) live() []Handle {
	res := []Handle{}
	for i := h.reserved; i < len(h.allocated); i++ {
		if h.allocated[i] != nil {
			res = append(res, Handle(i))
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i] < res[j] })
	return res
}

type tupleValue struct {
	items []Handle
}

type listValue struct {
	items []Handle
}

type dictValue struct {
	keys   []string
	values map[string]Handle
}

// Instance is a host object wrapping a Go value of a registered class.
type Instance struct {
	class *typeObject
	value any
}

func (i *Instance) Value() any {
	return i.value
}

func (i *Instance) TypeName() string {
	return i.class.name
}

// typeName returns the host-side type name of a value, for error messages.
func typeName(value any) string {
	switch v := value.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []byte:
		return "bytes"
	case *tupleValue:
		return "tuple"
	case *listValue:
		return "list"
	case *dictValue:
		return "dict"
	case *Instance:
		return v.class.name
	case notImplemented:
		return "NotImplementedType"
	}
	return fmt.Sprintf("%T", value)
}
