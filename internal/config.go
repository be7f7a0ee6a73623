package pyext

import (
	"go.uber.org/zap"
)

// IEngineConfig configures an engine. Every With method returns a copy.
type IEngineConfig interface {
	// WithLogger sets the logger of the engine, defaults to Logger().
	WithLogger(logger *zap.Logger) IEngineConfig
	// WithModuleName sets the name of the wazero host module that the
	// exporter instantiates, defaults to "pyext".
	WithModuleName(name string) IEngineConfig
	// WithKeywordNormalization toggles NFKC normalization of keyword
	// argument names, enabled by default.
	WithKeywordNormalization(enabled bool) IEngineConfig
	ModuleName() string
}

type engineConfig struct {
	logger            *zap.Logger
	moduleName        string
	normalizeKeywords bool
}

func NewConfig() IEngineConfig {
	return &engineConfig{
		moduleName:        "pyext",
		normalizeKeywords: true,
	}
}

func (c *engineConfig) clone() *engineConfig {
	ret := *c
	return &ret
}

func (c *engineConfig) WithLogger(logger *zap.Logger) IEngineConfig {
	ret := c.clone()
	ret.logger = logger
	return ret
}

func (c *engineConfig) WithModuleName(name string) IEngineConfig {
	ret := c.clone()
	ret.moduleName = name
	return ret
}

func (c *engineConfig) WithKeywordNormalization(enabled bool) IEngineConfig {
	ret := c.clone()
	ret.normalizeKeywords = enabled
	return ret
}

func (c *engineConfig) ModuleName() string {
	return c.moduleName
}
