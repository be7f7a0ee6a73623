package generator

import (
	"go/ast"
	"go/parser"
	"go/token"

	internal "github.com/jerbob92/wazero-pyext/internal"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const greeterSource = `package greeter

import (
	pyext "github.com/jerbob92/wazero-pyext"
	"github.com/jerbob92/wazero-pyext/types"
)

// Greeter greets people.
//
//pyext:class
type Greeter struct {
	pyext.AsyncProtocolBase
}

// Greet returns a greeting.
//
//pyext:method
func (g *Greeter) Greet(py pyext.Python, name string, punctuation types.Optional[string]) (string, error) {
	return name, nil
}

//pyext:method wave_at
func (g *Greeter) Wave(py pyext.Python, name, style string) string {
	return name
}

func (g *Greeter) Await(py pyext.Python) (pyext.Object, error) {
	return py.None(), nil
}

func (g *Greeter) Hidden(py pyext.Python) {}
`

func parse(source string) *ast.File {
	file, err := parser.ParseFile(token.NewFileSet(), "greeter.go", source, parser.ParseComments)
	Expect(err).To(BeNil())
	return file
}

func methodSource(signature string) string {
	return `package greeter

//pyext:class
type Greeter struct{}

//pyext:method
func (g *Greeter) ` + signature + ` {}
`
}

var _ = Describe("Collecting classes", func() {
	It("finds classes and their exposed methods", func() {
		file := parse(greeterSource)
		data, err := Collect([]*ast.File{file}, file)
		Expect(err).To(BeNil())
		Expect(data.Pkg).To(Equal("greeter"))
		Expect(data.Classes).To(HaveLen(1))

		class := data.Classes[0]
		Expect(class.Name).To(Equal("Greeter"))
		Expect(class.Doc).To(Equal("Greeter greets people."))
		Expect(class.Async).To(Equal([]string{internal.SlotAwait}))
		Expect(class.Methods).To(Equal([]TemplateClassMethod{
			{Name: "greet", GoName: "Greet", Args: []string{"py", "name", "punctuation"}, Doc: "Greet returns a greeting."},
			{Name: "wave_at", GoName: "Wave", Args: []string{"py", "name", "style"}},
		}))
	})

	It("renders the registration code", func() {
		file := parse(greeterSource)
		data, err := Collect([]*ast.File{file}, file)
		Expect(err).To(BeNil())

		source, err := Render("greeter_pyext.go", data)
		Expect(err).To(BeNil())

		Expect(string(source)).To(ContainSubstring("// Code generated by wazero-pyext/generator. DO NOT EDIT."))
		Expect(string(source)).To(ContainSubstring("func RegisterGreeter(e pyext.Engine) (pyext.TypeObject, error) {"))
		Expect(string(source)).To(ContainSubstring(`[]string{"py", "name", "punctuation"}`))
		Expect(string(source)).To(ContainSubstring(`"wave_at"`))
		Expect(string(source)).To(ContainSubstring("func (*Greeter) AsyncMethods() []string {"))
		Expect(string(source)).To(ContainSubstring(`return []string{"__await__"}`))
		Expect(string(source)).To(Not(ContainSubstring("Hidden")))
	})

	It("does not generate the async method list when it is declared", func() {
		file := parse(greeterSource + `
func (g *Greeter) AsyncMethods() []string {
	return nil
}
`)
		data, err := Collect([]*ast.File{file}, file)
		Expect(err).To(BeNil())
		Expect(data.Classes[0].Async).To(BeEmpty())
	})

	It("rejects generic classes", func() {
		file := parse(`package greeter

//pyext:class
type Box[T any] struct{}
`)
		_, err := Collect([]*ast.File{file}, file)
		Expect(err).To(Not(BeNil()))
		Expect(err.Error()).To(ContainSubstring("can not be generic"))
	})

	DescribeTable("rejects unsupported method signatures",
		func(signature string, reason string) {
			file := parse(methodSource(signature))
			_, err := Collect([]*ast.File{file}, file)
			Expect(err).To(Not(BeNil()))
			Expect(err.Error()).To(ContainSubstring(reason))
		},
		Entry("without context", "Greet(name string)", "first argument must be the Python context"),
		Entry("with a context of another type", "Greet(py Context, name string)", "first argument must be the Python context"),
		Entry("with an ignored argument", "Greet(py pyext.Python, _ string)", "ignored argument"),
		Entry("with a parenthesised type", "Greet(py pyext.Python, name (string))", "explicit qualifier"),
		Entry("with a pointer type", "Greet(py pyext.Python, name *string)", "not supported"),
		Entry("with a variadic argument", "Greet(py pyext.Python, names ...string)", "not supported"),
		Entry("with a type parameter list", "Greet(py pyext.Python, value types.Optional[string, int])", "not supported"),
		Entry("with too many results", "Greet(py pyext.Python) (string, string, error)", "wrong result count"),
		Entry("with a second result that is not an error", "Greet(py pyext.Python) (string, string)", "second result must be an error"),
	)
})

var _ = Describe("Describing declarations", func() {
	It("describes types by shape", func() {
		file := parse(methodSource("Greet(py pyext.Python, a string, b types.Optional[int], c (int), d []int)"))
		funcDecl := file.Decls[1].(*ast.FuncDecl)
		sig := MethodSignature("Greeter", funcDecl, false)

		Expect(sig.Name).To(Equal("greet"))
		Expect(sig.Params).To(HaveLen(6))
		Expect(sig.Params[0].Receiver).To(BeTrue())
		Expect(sig.Params[1].Type.Name).To(Equal("Python"))
		Expect(sig.Params[2].Type.Shape).To(Equal(internal.ShapePath))
		Expect(sig.Params[3].Type.Name).To(Equal("Optional"))
		Expect(sig.Params[3].Type.Args).To(HaveLen(1))
		Expect(sig.Params[3].Type.Display).To(Equal("types.Optional[int]"))
		Expect(sig.Params[4].Type.Shape).To(Equal(internal.ShapeQualified))
		Expect(sig.Params[5].Type.Shape).To(Equal(internal.ShapeOther))
	})

	It("detects generic receivers", func() {
		file := parse(`package greeter

func (b *Box[T]) Get(py pyext.Python) {}
`)
		funcDecl := file.Decls[0].(*ast.FuncDecl)
		name, generic := receiverType(funcDecl.Recv.List[0].Type)
		Expect(name).To(Equal("Box"))
		Expect(generic).To(BeTrue())

		_, err := internal.Classify(MethodSignature("Box", funcDecl, generic))
		Expect(err).To(Not(BeNil()))
		Expect(err.Error()).To(ContainSubstring("can not be generic"))
	})
})
