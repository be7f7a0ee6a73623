package pyext

import (
	"context"

	"go.uber.org/zap"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("The object heap", func() {
	var heap *objectHeap

	BeforeEach(func() {
		heap = createObjectHeap()
	})

	It("maps singletons to immortal handles", func() {
		Expect(heap.allocate(nil)).To(Equal(NoneHandle))
		Expect(heap.allocate(true)).To(Equal(TrueHandle))
		Expect(heap.allocate(false)).To(Equal(FalseHandle))
		Expect(heap.allocate(NotImplemented)).To(Equal(NotImplementedHandle))
		Expect(heap.refCount(NoneHandle)).To(Equal(-1))

		Expect(heap.decref(NoneHandle)).To(BeNil())
		Expect(heap.incref(TrueHandle)).To(BeNil())
		Expect(heap.stats).To(Equal(HeapStats{}))
		Expect(heap.live()).To(BeEmpty())
	})

	It("frees an object when its last reference is dropped", func() {
		h := heap.allocate(int64(42))
		Expect(heap.refCount(h)).To(Equal(1))

		Expect(heap.incref(h)).To(BeNil())
		Expect(heap.refCount(h)).To(Equal(2))

		Expect(heap.decref(h)).To(BeNil())
		Expect(heap.decref(h)).To(BeNil())
		Expect(heap.live()).To(BeEmpty())
		Expect(heap.stats).To(Equal(HeapStats{Allocated: 1, Freed: 1, Increfs: 1, Decrefs: 2}))

		_, err := heap.value(h)
		Expect(err).To(Not(BeNil()))
		Expect(heap.decref(h)).To(Not(BeNil()))
	})

	It("reuses freed handles", func() {
		h := heap.allocate("first")
		Expect(heap.decref(h)).To(BeNil())
		Expect(heap.allocate("second")).To(Equal(h))
	})

	It("releases the items of a container", func() {
		item := heap.allocate("item")
		Expect(heap.incref(item)).To(BeNil())
		tuple := heap.allocate(&tupleValue{items: []Handle{item}})
		Expect(heap.refCount(item)).To(Equal(2))

		Expect(heap.decref(tuple)).To(BeNil())
		Expect(heap.refCount(item)).To(Equal(1))
		Expect(heap.live()).To(Equal([]Handle{item}))
	})

	It("rejects the NULL handle", func() {
		Expect(heap.incref(NullHandle)).To(Not(BeNil()))
		_, err := heap.value(NullHandle)
		Expect(err).To(Not(BeNil()))
	})
})

var _ = Describe("Object references", func() {
	var py Python

	BeforeEach(func() {
		_, _, py = lockedEngine(nil)
	})

	It("borrows and releases", func() {
		s := py.NewString("value")
		borrowed, err := py.FromBorrowed(s.Handle())
		Expect(err).To(BeNil())
		Expect(py.RefCount(s.Handle())).To(Equal(2))

		borrowed.Release(py)
		s.Release(py)
		Expect(py.LiveObjects()).To(BeEmpty())
	})

	It("keeps dict keys in insertion order", func() {
		one := py.NewInt(1)
		defer one.Release(py)
		two := py.NewInt(2)
		defer two.Release(py)

		d := py.NewDict()
		d.SetItem(py, "b", one)
		d.SetItem(py, "a", two)
		d.SetItem(py, "b", two)
		Expect(d.Keys(py)).To(Equal([]string{"b", "a"}))
		Expect(py.RefCount(one.Handle())).To(Equal(1))
		Expect(py.RefCount(two.Handle())).To(Equal(3))

		item, ok := d.GetItem(py, "b")
		Expect(ok).To(BeTrue())
		Expect(item.Handle()).To(Equal(two.Handle()))

		d.Release(py)
		Expect(py.RefCount(two.Handle())).To(Equal(1))
	})

	It("does not read a released container as empty", func() {
		t := py.NewTuple()
		d := py.NewDict()
		t.Release(py)
		d.Release(py)

		Expect(func() { t.Len(py) }).To(Panic())
		Expect(func() { d.Keys(py) }).To(Panic())
	})

	It("reuses the lock for nested calls", func() {
		e, ctx, py := lockedEngine(nil)
		err := e.WithGIL(ctx, func(ctx context.Context, nested Python) error {
			Expect(nested).To(Equal(py))
			return nil
		})
		Expect(err).To(BeNil())
	})
})

var _ = Describe("The package logger", func() {
	AfterEach(func() {
		SetLogger(nil)
	})

	It("falls back to a no-op logger", func() {
		SetLogger(nil)
		Expect(Logger()).To(Not(BeNil()))
		Expect(func() { CreateEngine(NewConfig()) }).To(Not(Panic()))
	})

	It("returns the logger that was set", func() {
		l := zap.NewExample()
		SetLogger(l)
		Expect(Logger()).To(BeIdenticalTo(l))
	})
})
