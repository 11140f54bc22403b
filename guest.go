package callbridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmbridge/callbridge/engine"
	"github.com/wasmbridge/callbridge/errors"
)

// Guest wraps one instantiated guest module. Not safe for concurrent
// calls.
type Guest struct {
	mod      api.Module
	log      *zap.Logger
	asyncify *engine.Asyncify
	sched    *engine.Scheduler
}

// Module exposes the underlying wazero module.
func (g *Guest) Module() api.Module {
	return g.mod
}

// Memory returns the guest's linear memory, or nil if it exports none.
func (g *Guest) Memory() api.Memory {
	return g.mod.Memory()
}

// Call invokes an exported guest function. Async closures reached
// through this path block the host call until their completion
// resolves.
func (g *Guest) Call(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export "+name)
	}
	return fn.Call(ctx, args...)
}

// EnableAsyncify binds the asyncify control exports of a guest built
// with the asyncify transform. It must be called before CallAsync.
func (g *Guest) EnableAsyncify() error {
	a := engine.NewAsyncify()
	if err := a.Init(g.mod); err != nil {
		return errors.Wrap(errors.PhaseRuntime, errors.KindProtocol, err, "bind asyncify exports")
	}
	g.asyncify = a
	g.sched = engine.NewScheduler(a)
	return nil
}

// CallAsync invokes an exported guest function under the asyncify
// scheduler. When a registered async closure leaves its completion
// pending, the guest unwinds, the scheduler waits out the completion,
// and the guest rewinds to pick up the result. From the guest's point
// of view the call simply returned.
func (g *Guest) CallAsync(ctx context.Context, name string, args ...uint64) ([]uint64, error) {
	if g.asyncify == nil {
		return nil, errors.InvalidInput(errors.PhaseRuntime, "asyncify not enabled on guest")
	}
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "export "+name)
	}

	g.sched.Reset()
	ctx = engine.WithScheduler(ctx, g.sched)
	ctx = engine.WithAsyncify(ctx, g.asyncify)

	results, err := g.sched.Run(ctx, fn, args...)
	if err != nil {
		g.log.Warn("async call failed", zap.String("export", name), zap.Error(err))
		return nil, err
	}
	return results, nil
}

// Close releases the module instance.
func (g *Guest) Close(ctx context.Context) error {
	return g.mod.Close(ctx)
}
