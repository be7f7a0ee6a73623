package pyext

import (
	"context"
	"fmt"

	internal "github.com/jerbob92/wazero-pyext/internal"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

type wazeroEngine struct {
	internal.IEngine
}

func (we *wazeroEngine) NewFunctionExporter() FunctionExporter {
	return &functionExporter{
		engine: we,
	}
}

// FunctionExporter exports the registered classes over the native-call ABI
// as wazero host functions.
type FunctionExporter interface {
	// ExportFunctions adds every method trampoline, the async slots and the
	// object handle functions to the builder.
	ExportFunctions(wazero.HostModuleBuilder) error

	// Instantiate builds and instantiates a host module named after the
	// configured module name.
	Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error)
}

type functionExporter struct {
	engine Engine
}

// MethodExportName is the name a method trampoline is exported under.
func MethodExportName(class, method string) string {
	return fmt.Sprintf("%s.%s", class, method)
}

// ExportFunctions implements FunctionExporter.ExportFunctions
func (e functionExporter) ExportFunctions(b wazero.HostModuleBuilder) error {
	classes := e.engine.Classes()
	if len(classes) == 0 {
		return fmt.Errorf("no classes registered, register classes before exporting functions")
	}

	exported := map[string]bool{}
	for i := range classes {
		methods := classes[i].Methods()
		for mi := range methods {
			name := MethodExportName(classes[i].Name(), methods[mi].Name)
			if exported[name] {
				return fmt.Errorf("function %s is exported twice", name)
			}
			exported[name] = true

			b.NewFunctionBuilder().
				WithName(name).
				WithParameterNames("slf", "args", "kwargs").
				WithResultNames("result").
				WithGoModuleFunction(methods[mi].GoModuleFunction(), []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
				Export(name)
		}
	}

	b.NewFunctionBuilder().
		WithName("pyext_am_await").
		WithParameterNames("slf").
		WithResultNames("result").
		WithGoModuleFunction(internal.AmAwait, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("pyext_am_await")

	b.NewFunctionBuilder().
		WithName("pyext_am_aiter").
		WithParameterNames("slf").
		WithResultNames("result").
		WithGoModuleFunction(internal.AmAiter, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("pyext_am_aiter")

	b.NewFunctionBuilder().
		WithName("pyext_am_anext").
		WithParameterNames("slf").
		WithResultNames("result").
		WithGoModuleFunction(internal.AmAnext, []api.ValueType{api.ValueTypeI32}, []api.ValueType{api.ValueTypeI32}).
		Export("pyext_am_anext")

	b.NewFunctionBuilder().
		WithName("pyext_incref").
		WithParameterNames("handle").
		WithGoModuleFunction(internal.Incref, []api.ValueType{api.ValueTypeI32}, []api.ValueType{}).
		Export("pyext_incref")

	b.NewFunctionBuilder().
		WithName("pyext_decref").
		WithParameterNames("handle").
		WithGoModuleFunction(internal.Decref, []api.ValueType{api.ValueTypeI32}, []api.ValueType{}).
		Export("pyext_decref")

	b.NewFunctionBuilder().
		WithName("pyext_err_occurred").
		WithResultNames("occurred").
		WithGoModuleFunction(internal.ErrOccurred, []api.ValueType{}, []api.ValueType{api.ValueTypeI32}).
		Export("pyext_err_occurred")

	b.NewFunctionBuilder().
		WithName("pyext_err_clear").
		WithGoModuleFunction(internal.ErrClear, []api.ValueType{}, []api.ValueType{}).
		Export("pyext_err_clear")

	return nil
}

// Instantiate implements FunctionExporter.Instantiate
func (e functionExporter) Instantiate(ctx context.Context, r wazero.Runtime) (api.Module, error) {
	builder := r.NewHostModuleBuilder(e.engine.Config().ModuleName())
	if err := e.ExportFunctions(builder); err != nil {
		return nil, err
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not instantiate host module %s: %w", e.engine.Config().ModuleName(), err)
	}

	return mod, nil
}
