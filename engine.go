package pyext

import (
	internal "github.com/jerbob92/wazero-pyext/internal"
)

type Engine interface {
	internal.IEngine
	NewFunctionExporter() FunctionExporter
}

func CreateEngine(config IEngineConfig) Engine {
	return &wazeroEngine{
		IEngine: internal.CreateEngine(config),
	}
}
