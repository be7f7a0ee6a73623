package pyext

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Parsing call arguments", func() {
	const location = "Greeter.greet()"

	var py Python
	var params []ParamDescription
	var output []Object

	tuple := func(values ...int64) Tuple {
		items := make([]Object, len(values))
		for i := range values {
			items[i] = py.NewInt(values[i])
		}
		t := py.NewTuple(items...)
		for i := range items {
			items[i].Release(py)
		}
		DeferCleanup(func() { t.Release(py) })
		return t
	}

	kwargs := func(keys ...string) *Dict {
		d := py.NewDict()
		for i := range keys {
			v := py.NewInt(int64(100 + i))
			d.SetItem(py, keys[i], v)
			v.Release(py)
		}
		DeferCleanup(func() { d.Release(py) })
		return &d
	}

	parse := func(args Tuple, kw *Dict) error {
		output = make([]Object, len(params))
		return ParseArgs(py, location, params, args, kw, output)
	}

	expectTypeError := func(err error, message string) {
		pyErr := asPyErr(err)
		Expect(pyErr.Type).To(Equal(TypeError))
		Expect(pyErr.Message).To(Equal(message))
		Expect(pyErr.Location).To(Equal(location))
	}

	BeforeEach(func() {
		_, _, py = lockedEngine(nil)
		params = []ParamDescription{
			{Name: "a"},
			{Name: "b", IsOptional: true},
		}
	})

	When("the arguments match the descriptors", func() {
		It("fills slots from positional arguments", func() {
			args := tuple(1, 2)
			Expect(parse(args, nil)).To(BeNil())
			Expect(output[0].Handle()).To(Equal(args.GetItem(py, 0).Handle()))
			Expect(output[1].Handle()).To(Equal(args.GetItem(py, 1).Handle()))
		})

		It("leaves an omitted optional slot empty", func() {
			Expect(parse(tuple(1), nil)).To(BeNil())
			Expect(output[0].IsNull()).To(BeFalse())
			Expect(output[1].IsNull()).To(BeTrue())
		})

		It("fills slots from keywords", func() {
			kw := kwargs("b", "a")
			Expect(parse(tuple(), kw)).To(BeNil())

			a, _ := kw.GetItem(py, "a")
			b, _ := kw.GetItem(py, "b")
			Expect(output[0].Handle()).To(Equal(a.Handle()))
			Expect(output[1].Handle()).To(Equal(b.Handle()))
		})

		It("does not take references", func() {
			args := tuple(1, 2)
			before := py.Stats()
			Expect(parse(args, nil)).To(BeNil())
			Expect(py.Stats()).To(Equal(before))
		})

		It("normalizes keyword names", func() {
			kw := kwargs("ａ")
			Expect(parse(tuple(), kw)).To(BeNil())
			Expect(output[0].IsNull()).To(BeFalse())
		})
	})

	When("the arguments do not match the descriptors", func() {
		It("rejects too many positional arguments", func() {
			expectTypeError(parse(tuple(1, 2, 3), nil), "function takes at most 2 arguments (3 given)")

			params = params[:1]
			expectTypeError(parse(tuple(1, 2), nil), "function takes at most 1 argument (2 given)")
		})

		It("rejects a missing required argument", func() {
			expectTypeError(parse(tuple(), kwargs("b")), "Required argument ('a') (pos 1) not found")
		})

		It("rejects an argument given by name and position", func() {
			expectTypeError(parse(tuple(1), kwargs("a")), "Argument given by name ('a') and position (1)")
		})

		It("rejects unknown keywords", func() {
			expectTypeError(parse(tuple(1), kwargs("c")), "'c' is an invalid keyword argument for this function")
		})

		It("rejects keywords that collide after normalization", func() {
			expectTypeError(parse(tuple(), kwargs("a", "ａ")), "got multiple values for keyword argument 'a'")
		})
	})

	When("keyword normalization is disabled", func() {
		It("matches names exactly", func() {
			e := CreateEngine(NewConfig().WithKeywordNormalization(false)).(*engine)
			err := e.WithGIL(e.Attach(context.Background()), func(ctx context.Context, py Python) error {
				d := py.NewDict()
				defer d.Release(py)
				v := py.NewInt(1)
				defer v.Release(py)
				d.SetItem(py, "ａ", v)

				args := py.NewTuple()
				defer args.Release(py)

				return ParseArgs(py, location, params, args, &d, make([]Object, len(params)))
			})
			expectTypeError(err, "Required argument ('a') (pos 1) not found")
		})
	})
})
