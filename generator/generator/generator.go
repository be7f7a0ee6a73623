package generator

import (
	"bytes"
	"embed"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"text/template"

	internal "github.com/jerbob92/wazero-pyext/internal"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/imports"
)

var (
	//go:embed templates/*
	templates embed.FS
)

const (
	classDirective  = "//pyext:class"
	methodDirective = "//pyext:method"
)

// asyncGoNames maps the AsyncProtocol methods to their host names.
var asyncGoNames = map[string]string{
	"Await":  internal.SlotAwait,
	"AIter":  internal.SlotAiter,
	"ANext":  internal.SlotAnext,
	"AEnter": internal.SlotAenter,
	"AExit":  internal.SlotAexit,
}

// Generate writes <file>_pyext.go next to fileName in dir, with the
// registration code of every class declared in fileName.
func Generate(dir string, fileName string) error {
	fset := token.NewFileSet()
	pkgs, err := packages.Load(&packages.Config{
		Dir:  dir,
		Fset: fset,
		Mode: packages.NeedSyntax | packages.NeedName | packages.NeedFiles | packages.NeedTypes | packages.NeedTypesInfo,
	}, fmt.Sprintf("file=%s", fileName))
	if err != nil {
		return err
	}

	if len(pkgs) == 0 {
		return fmt.Errorf("no package found for file %s", fileName)
	}

	pkg := pkgs[0]
	if len(pkg.Errors) > 0 {
		return fmt.Errorf("could not load package %s: %v", pkg.PkgPath, pkg.Errors[0])
	}

	var target *ast.File
	for i := range pkg.Syntax {
		if filepath.Base(fset.File(pkg.Syntax[i].Pos()).Name()) == filepath.Base(fileName) {
			target = pkg.Syntax[i]
			break
		}
	}

	if target == nil {
		return fmt.Errorf("file %s is not part of package %s", fileName, pkg.PkgPath)
	}

	data, err := Collect(pkg.Syntax, target)
	if err != nil {
		return err
	}
	data.PkgPath = pkg.PkgPath

	outputName := strings.TrimSuffix(filepath.Base(fileName), ".go") + "_pyext.go"
	outputPath := path.Join(dir, outputName)

	if len(data.Classes) == 0 {
		_ = os.Remove(outputPath)
		return nil
	}

	source, err := Render(outputName, data)
	if err != nil {
		return err
	}

	return os.WriteFile(outputPath, source, 0644)
}

// Collect finds the classes declared in target and their exposed methods in
// any of files. Every exposed method must pass the signature classifier.
func Collect(files []*ast.File, target *ast.File) (TemplateData, error) {
	data := TemplateData{
		Pkg:     target.Name.Name,
		Classes: []TemplateClass{},
	}

	classes := map[string]*TemplateClass{}
	for _, decl := range target.Decls {
		genDecl, ok := decl.(*ast.GenDecl)
		if !ok || genDecl.Tok != token.TYPE {
			continue
		}

		for _, spec := range genDecl.Specs {
			typeSpec := spec.(*ast.TypeSpec)
			doc := typeSpec.Doc
			if doc == nil && len(genDecl.Specs) == 1 {
				doc = genDecl.Doc
			}

			args, ok := directive(doc, classDirective)
			if !ok {
				continue
			}

			if typeSpec.TypeParams != nil && len(typeSpec.TypeParams.List) > 0 {
				return data, fmt.Errorf("class %s can not be generic", typeSpec.Name.Name)
			}

			class := &TemplateClass{
				Name:   typeSpec.Name.Name,
				GoName: typeSpec.Name.Name,
				Doc:    docText(doc),
			}
			if len(args) > 0 {
				class.Name = args[0]
			}
			classes[class.GoName] = class
		}
	}

	asyncDeclared := map[string]bool{}
	for _, file := range files {
		for _, decl := range file.Decls {
			funcDecl, ok := decl.(*ast.FuncDecl)
			if !ok || funcDecl.Recv == nil || len(funcDecl.Recv.List) == 0 {
				continue
			}

			recvName, generic := receiverType(funcDecl.Recv.List[0].Type)
			class, ok := classes[recvName]
			if !ok {
				continue
			}

			if funcDecl.Name.Name == "AsyncMethods" {
				asyncDeclared[recvName] = true
				continue
			}

			if hostName, ok := asyncGoNames[funcDecl.Name.Name]; ok {
				class.Async = append(class.Async, hostName)
				continue
			}

			args, ok := directive(funcDecl.Doc, methodDirective)
			if !ok {
				continue
			}

			method, err := collectMethod(class.Name, funcDecl, generic, args)
			if err != nil {
				return data, err
			}
			class.Methods = append(class.Methods, method)
		}
	}

	for goName, class := range classes {
		if asyncDeclared[goName] {
			class.Async = nil
		}

		sort.Slice(class.Async, func(i, j int) bool {
			return asyncOrder(class.Async[i]) < asyncOrder(class.Async[j])
		})

		sort.Slice(class.Methods, func(i, j int) bool {
			return class.Methods[i].Name < class.Methods[j].Name
		})

		for i := 1; i < len(class.Methods); i++ {
			if class.Methods[i].Name == class.Methods[i-1].Name {
				return data, fmt.Errorf("method %s is exposed twice on class %s", class.Methods[i].Name, class.Name)
			}
		}

		data.Classes = append(data.Classes, *class)
	}

	sort.Slice(data.Classes, func(i, j int) bool {
		return data.Classes[i].GoName < data.Classes[j].GoName
	})

	return data, nil
}

func collectMethod(className string, funcDecl *ast.FuncDecl, generic bool, args []string) (TemplateClassMethod, error) {
	sig := MethodSignature(className, funcDecl, generic)
	if len(args) > 0 {
		sig.Name = args[0]
	}

	if _, err := internal.Classify(sig); err != nil {
		return TemplateClassMethod{}, err
	}

	if err := checkResults(funcDecl.Type.Results); err != nil {
		return TemplateClassMethod{}, &internal.SignatureError{Class: className, Method: sig.Name, Reason: err.Error()}
	}

	method := TemplateClassMethod{
		Name:   sig.Name,
		GoName: funcDecl.Name.Name,
		Doc:    docText(funcDecl.Doc),
	}

	for _, p := range sig.Params {
		if p.Receiver {
			continue
		}
		name := p.Name
		if name == "" {
			name = "py"
		}
		method.Args = append(method.Args, name)
	}

	return method, nil
}

// MethodSignature describes a method declaration for the classifier. The
// host name defaults to the Go name with a lowercase first letter.
func MethodSignature(className string, funcDecl *ast.FuncDecl, generic bool) internal.MethodSignature {
	sig := internal.MethodSignature{
		Class:   className,
		Name:    lowerFirst(funcDecl.Name.Name),
		Generic: generic || (funcDecl.Type.TypeParams != nil && len(funcDecl.Type.TypeParams.List) > 0),
	}

	if funcDecl.Recv != nil {
		for _, field := range funcDecl.Recv.List {
			sig.Params = append(sig.Params, internal.SignatureParam{Name: "self", Receiver: true, Type: TypeRef(field.Type)})
		}
	}

	for _, field := range funcDecl.Type.Params.List {
		if len(field.Names) == 0 {
			sig.Params = append(sig.Params, internal.SignatureParam{Type: TypeRef(field.Type)})
			continue
		}
		for _, name := range field.Names {
			sig.Params = append(sig.Params, internal.SignatureParam{Name: name.Name, Type: TypeRef(field.Type)})
		}
	}

	return sig
}

// TypeRef describes a parameter type expression by its syntactic shape.
func TypeRef(expr ast.Expr) internal.TypeRef {
	ref := internal.TypeRef{Display: types.ExprString(expr)}
	switch e := expr.(type) {
	case *ast.Ident:
		ref.Name = e.Name
	case *ast.SelectorExpr:
		ref.Name = e.Sel.Name
	case *ast.IndexExpr:
		ref = TypeRef(e.X)
		ref.Display = types.ExprString(expr)
		ref.Args = []internal.TypeRef{TypeRef(e.Index)}
	case *ast.IndexListExpr:
		ref = TypeRef(e.X)
		ref.Display = types.ExprString(expr)
		for _, index := range e.Indices {
			ref.Args = append(ref.Args, TypeRef(index))
		}
	case *ast.ParenExpr:
		ref.Shape = internal.ShapeQualified
		ref.Name = TypeRef(e.X).Name
	default:
		ref.Shape = internal.ShapeOther
	}
	return ref
}

// receiverType returns the base type name of a receiver and whether the
// receiver is generic.
func receiverType(expr ast.Expr) (string, bool) {
	switch e := expr.(type) {
	case *ast.StarExpr:
		return receiverType(e.X)
	case *ast.ParenExpr:
		return receiverType(e.X)
	case *ast.Ident:
		return e.Name, false
	case *ast.IndexExpr:
		name, _ := receiverType(e.X)
		return name, true
	case *ast.IndexListExpr:
		name, _ := receiverType(e.X)
		return name, true
	}
	return "", false
}

func checkResults(results *ast.FieldList) error {
	if results == nil {
		return nil
	}

	count := 0
	var last ast.Expr
	for _, field := range results.List {
		n := len(field.Names)
		if n == 0 {
			n = 1
		}
		count += n
		last = field.Type
	}

	if count > 2 {
		return fmt.Errorf("wrong result count, got %d, need at most 2 (value and error)", count)
	}

	if count == 2 {
		if ident, ok := last.(*ast.Ident); !ok || ident.Name != "error" {
			return fmt.Errorf("second result must be an error, got %s", types.ExprString(last))
		}
	}

	return nil
}

// directive looks for a directive line in a doc comment and returns its
// arguments.
func directive(doc *ast.CommentGroup, name string) ([]string, bool) {
	if doc == nil {
		return nil, false
	}

	for _, comment := range doc.List {
		fields := strings.Fields(comment.Text)
		if len(fields) > 0 && fields[0] == name {
			return fields[1:], true
		}
	}

	return nil, false
}

func docText(doc *ast.CommentGroup) string {
	if doc == nil {
		return ""
	}

	// Text() already drops directive lines.
	return strings.TrimSpace(doc.Text())
}

func asyncOrder(name string) int {
	for i := range internal.AsyncCapabilities {
		if internal.AsyncCapabilities[i] == name {
			return i
		}
	}
	return len(internal.AsyncCapabilities)
}

func lowerFirst(name string) string {
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

var TemplateFunctions = template.FuncMap{
	"quote": strconv.Quote,
}

// Render executes the class template and formats the result.
func Render(name string, data TemplateData) ([]byte, error) {
	tmpl, err := template.New("").
		Funcs(TemplateFunctions).
		ParseFS(templates, "templates/*.tmpl")
	if err != nil {
		return nil, err
	}

	writer := bytes.NewBuffer(nil)
	err = tmpl.ExecuteTemplate(writer, "classes.tmpl", data)
	if err != nil {
		return nil, err
	}

	fileBytes := writer.Bytes()
	formattedSource, err := imports.Process(name, fileBytes, &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("could not format %s: %w\nsource:\n%s", name, err, fileBytes)
	}

	return formattedSource, nil
}

type TemplateData struct {
	Pkg     string
	PkgPath string
	Classes []TemplateClass
}

type TemplateClass struct {
	Name    string
	GoName  string
	Doc     string
	Methods []TemplateClassMethod
	Async   []string
}

type TemplateClassMethod struct {
	Name   string
	GoName string
	Args   []string
	Doc    string
}
