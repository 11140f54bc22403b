package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/callbridge/errors"
)

// Config holds engine creation settings.
type Config struct {
	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the
	// wazero default (4GB).
	MemoryLimitPages uint32
}

// Engine owns a wazero runtime shared by the host module and guests.
type Engine struct {
	runtime wazero.Runtime
}

// New creates an engine. cfg may be nil.
func New(ctx context.Context, cfg *Config) *Engine {
	runtimeCfg := wazero.NewRuntimeConfig()
	if cfg != nil && cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg)}
}

// Runtime exposes the underlying wazero runtime for host module setup.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Instantiate compiles and instantiates a guest module.
func (e *Engine) Instantiate(ctx context.Context, wasm []byte, name string) (api.Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Instantiation(err, "compile guest")
	}

	cfg := wazero.NewModuleConfig().WithStartFunctions()
	if name != "" {
		cfg = cfg.WithName(name)
	}
	mod, err := e.runtime.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, errors.Instantiation(err, "instantiate guest")
	}
	return mod, nil
}

// Close tears down the runtime and every module instantiated in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}
