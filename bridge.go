package callbridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wasmbridge/callbridge/dispatch"
	"github.com/wasmbridge/callbridge/engine"
	"github.com/wasmbridge/callbridge/registry"
)

// Config holds bridge creation settings. The zero value is usable.
type Config struct {
	// Logger replaces the default no-op logger.
	Logger *zap.Logger

	// MemoryLimitPages caps guest memory in 64KB pages. 0 means the
	// wazero default.
	MemoryLimitPages uint32

	// RegistryCapacity bounds the number of live identities. 0 means
	// the registry default.
	RegistryCapacity int

	// Tap, when set, observes every multiplexer invocation.
	Tap func(dispatch.TapEvent)
}

// Bridge ties an engine, a registry, and a dispatcher together and
// installs the host module guests import their multiplexers from.
type Bridge struct {
	engine *engine.Engine
	reg    *registry.Registry
	disp   *dispatch.Dispatcher
	log    *zap.Logger
}

// New creates a bridge and installs the host module in its runtime.
// cfg may be nil.
func New(ctx context.Context, cfg *Config) (*Bridge, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	eng := engine.New(ctx, &engine.Config{MemoryLimitPages: cfg.MemoryLimitPages})
	reg := registry.New(&registry.Config{Capacity: cfg.RegistryCapacity})
	disp := dispatch.New(reg, &dispatch.Config{Logger: log, Tap: cfg.Tap})

	if err := disp.Install(ctx, eng.Runtime()); err != nil {
		eng.Close(ctx)
		return nil, err
	}

	return &Bridge{engine: eng, reg: reg, disp: disp, log: log}, nil
}

// Registry exposes the identity registry, for observation and manual
// registration of raw callbacks.
func (b *Bridge) Registry() *registry.Registry {
	return b.reg
}

// Dispatcher exposes the dispatcher, mainly for tests and tooling.
func (b *Bridge) Dispatcher() *dispatch.Dispatcher {
	return b.disp
}

// Engine exposes the underlying engine.
func (b *Bridge) Engine() *engine.Engine {
	return b.engine
}

// Register adds a synchronous closure and returns its identity.
func (b *Bridge) Register(cb dispatch.Callback) (registry.Identity, error) {
	return b.reg.Register(cb)
}

// RegisterAsync adds an asynchronous closure and returns its identity.
func (b *Bridge) RegisterAsync(cb dispatch.AsyncCallback) (registry.Identity, error) {
	return b.reg.RegisterAsync(cb)
}

// Release retires an identity. Releasing an unknown or already released
// identity is a no-op.
func (b *Bridge) Release(id registry.Identity) {
	b.reg.Release(id)
}

// LoadGuest instantiates a guest module in the bridge's runtime. The
// guest's imports from the host module resolve to the installed
// multiplexers.
func (b *Bridge) LoadGuest(ctx context.Context, wasm []byte, name string) (*Guest, error) {
	mod, err := b.engine.Instantiate(ctx, wasm, name)
	if err != nil {
		return nil, err
	}
	b.log.Debug("guest loaded", zap.String("name", name))
	return &Guest{mod: mod, log: b.log}, nil
}

// Close releases every identity and tears down the runtime.
func (b *Bridge) Close(ctx context.Context) error {
	b.reg.Close()
	return b.engine.Close(ctx)
}
