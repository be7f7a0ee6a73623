package types_test

import (
	"reflect"

	"github.com/jerbob92/wazero-pyext/types"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Optional", func() {
	It("reports whether a value was given", func() {
		value, ok := types.Some("x").Get()
		Expect(ok).To(BeTrue())
		Expect(value).To(Equal("x"))

		_, ok = types.None[string]().Get()
		Expect(ok).To(BeFalse())

		var zero types.Optional[int]
		Expect(zero.IsSome()).To(BeFalse())
		Expect(zero.OrElse(7)).To(Equal(7))
		Expect(zero.String()).To(Equal("None"))
		Expect(types.Some(3).String()).To(Equal("Some(3)"))
	})

	It("exposes its payload through reflection", func() {
		var o types.Optional[int64]
		Expect(o.PayloadType()).To(Equal(reflect.TypeOf(int64(0))))
		Expect(o.Payload()).To(BeNil())

		var ov types.OptionalValue = &o
		ov.SetPayload(reflect.ValueOf(int64(5)))
		Expect(o.OrElse(0)).To(Equal(int64(5)))
		Expect(ov.Payload()).To(Equal(int64(5)))
	})

	It("accepts a nil payload for any", func() {
		var o types.Optional[any]
		o.SetPayload(reflect.New(reflect.TypeOf((*any)(nil)).Elem()).Elem())
		Expect(o.IsSome()).To(BeTrue())
		value, _ := o.Get()
		Expect(value).To(BeNil())
	})
})
