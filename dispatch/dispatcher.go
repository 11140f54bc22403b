package dispatch

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wasmbridge/callbridge/engine"
	"github.com/wasmbridge/callbridge/errors"
	"github.com/wasmbridge/callbridge/registry"
	"github.com/wasmbridge/callbridge/signature"
)

// ModuleName is the host module guests import multiplexers from.
const ModuleName = "callbridge"

// Callback is a synchronous registered closure. The returned value is
// encoded per the signature's result kind and ignored for void results.
// A returned error is normalized to the neutral value, never propagated
// across the boundary.
type Callback func(ctx context.Context, call *Call) (uint64, error)

// AsyncCallback is a closure classified asynchronous at registration.
// It must resolve done exactly once, possibly after returning.
type AsyncCallback func(ctx context.Context, call *Call, done *Completion)

// TapEvent describes one multiplexer invocation, for monitoring.
type TapEvent struct {
	Code     string
	Identity registry.Identity
	Stale    bool
	Async    bool
}

// Config holds dispatcher settings.
type Config struct {
	Logger *zap.Logger
	// Tap, when set, observes every multiplexer invocation.
	Tap func(TapEvent)
}

// Dispatcher owns the multiplexers for every cataloged signature and
// routes them through an explicit registry instance.
type Dispatcher struct {
	reg  *registry.Registry
	log  *zap.Logger
	tap  func(TapEvent)
	host api.Module
}

// New creates a dispatcher bound to a registry. cfg may be nil.
func New(reg *registry.Registry, cfg *Config) *Dispatcher {
	d := &Dispatcher{reg: reg, log: zap.NewNop()}
	if cfg != nil {
		if cfg.Logger != nil {
			d.log = cfg.Logger
		}
		d.tap = cfg.Tap
	}
	return d
}

// Registry returns the registry this dispatcher resolves against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.reg
}

// Install instantiates the host module, exporting one multiplexer per
// cataloged signature under its canonical code. Guests importing from
// ModuleName must be instantiated in the same runtime afterwards.
func (d *Dispatcher) Install(ctx context.Context, rt wazero.Runtime) error {
	b := rt.NewHostModuleBuilder(ModuleName)
	for _, sig := range signature.Catalog() {
		b = b.NewFunctionBuilder().
			WithGoModuleFunction(d.mux(sig), sig.ParamValueTypes(), sig.ResultValueTypes()).
			Export(sig.Code())
	}

	host, err := b.Instantiate(ctx)
	if err != nil {
		return errors.Instantiation(err, "callbridge host module")
	}
	d.host = host
	return nil
}

// Close tears down the host module if installed.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.host == nil {
		return nil
	}
	err := d.host.Close(ctx)
	d.host = nil
	return err
}

func (d *Dispatcher) mux(sig signature.Signature) api.GoModuleFunc {
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		result := d.Invoke(ctx, sig, mod.Memory(), stack)
		if sig.Result() != signature.Void {
			stack[0] = result
		}
	}
}

// Invoke runs the multiplexer pipeline for one call: resolve, marshal,
// invoke, normalize. stack holds the boundary arguments with the
// identity first. The return value is the boundary-encoded result;
// neutral (zero) for void results, stale identities, and failures.
func (d *Dispatcher) Invoke(ctx context.Context, sig signature.Signature, mem api.Memory, stack []uint64) uint64 {
	if len(stack) < sig.Arity() {
		panic(errors.Protocol(errors.PhaseDispatch,
			fmt.Sprintf("multiplexer %s received %d args, want %d", sig.Code(), len(stack), sig.Arity())))
	}

	// A guest re-entered during asyncify rewind is resuming the call
	// that suspended here; hand back the pending operation's result.
	if a := engine.GetAsyncify(ctx); a != nil && a.IsRewinding() {
		v, err := engine.Resume(ctx)
		if err != nil {
			d.log.Error("resume failed", zap.String("code", sig.Code()), zap.Error(err))
			return 0
		}
		return v
	}

	id := registry.Identity(api.DecodeU32(stack[0]))
	reg, ok := d.reg.Resolve(id)
	if !ok {
		// Benign race: the identity was released with a call in
		// flight. Drop silently with the neutral value.
		d.log.Debug("stale identity dropped",
			zap.String("code", sig.Code()), zap.Uint32("identity", uint32(id)))
		d.emit(TapEvent{Code: sig.Code(), Identity: id, Stale: true})
		return 0
	}

	call := newCall(sig, mem, stack[:sig.Arity()])
	d.emit(TapEvent{Code: sig.Code(), Identity: id, Async: reg.Async})

	if reg.Async {
		return d.invokeAsync(ctx, sig, id, reg, call)
	}
	return d.invokeSync(ctx, sig, reg, call)
}

func (d *Dispatcher) invokeSync(ctx context.Context, sig signature.Signature, reg registry.Registration, call *Call) (result uint64) {
	cb, ok := reg.Value.(Callback)
	if !ok {
		d.log.Error("registered value is not a sync callback",
			zap.String("code", sig.Code()), zap.Uint32("identity", uint32(call.Identity())))
		return 0
	}

	defer func() {
		if r := recover(); r != nil {
			d.log.Error("closure panicked",
				zap.String("code", sig.Code()), zap.Any("panic", r))
			result = 0
		}
	}()

	v, err := cb(ctx, call)
	if err != nil {
		d.log.Warn("closure failed",
			zap.String("code", sig.Code()), zap.Error(err))
		return 0
	}
	return v
}

func (d *Dispatcher) invokeAsync(ctx context.Context, sig signature.Signature, id registry.Identity, reg registry.Registration, call *Call) uint64 {
	acb, ok := reg.Value.(AsyncCallback)
	if !ok {
		d.log.Error("registered value is not an async callback",
			zap.String("code", sig.Code()), zap.Uint32("identity", uint32(id)))
		return 0
	}

	done := NewCompletion()
	func() {
		defer func() {
			if r := recover(); r != nil {
				d.log.Error("async closure panicked",
					zap.String("code", sig.Code()), zap.Any("panic", r))
				done.Complete(0, nil)
			}
		}()
		acb(ctx, call, done)
	}()

	// With a scheduler in context the guest yields here and resumes
	// through the rewind branch of Invoke once the completion resolves.
	if sched := engine.GetScheduler(ctx); sched != nil && engine.GetAsyncify(ctx) != nil {
		op := &completionOp{d: d, id: id, code: sig.Code(), done: done}
		if err := engine.Suspend(ctx, op); err != nil {
			d.log.Error("suspend failed", zap.String("code", sig.Code()), zap.Error(err))
		}
		// Return value is discarded while the guest unwinds.
		return 0
	}

	// Blocking deployment: the host call waits out the completion on
	// this goroutine.
	v, err := done.Wait(ctx)
	if err != nil {
		d.log.Warn("async closure abandoned",
			zap.String("code", sig.Code()), zap.Error(err))
		return 0
	}
	return d.settle(id, sig.Code(), v)
}

// settle applies not-found-at-completion-time semantics: a result that
// arrives after its identity was released is discarded.
func (d *Dispatcher) settle(id registry.Identity, code string, v uint64) uint64 {
	if _, ok := d.reg.Resolve(id); !ok {
		d.log.Debug("async result for released identity discarded",
			zap.String("code", code), zap.Uint32("identity", uint32(id)))
		return 0
	}
	return v
}

func (d *Dispatcher) emit(e TapEvent) {
	if d.tap != nil {
		d.tap(e)
	}
}

// completionOp adapts a Completion to the scheduler's pending interface.
type completionOp struct {
	d    *Dispatcher
	done *Completion
	code string
	id   registry.Identity
}

func (op *completionOp) Execute(ctx context.Context) (uint64, error) {
	v, err := op.done.Wait(ctx)
	if err != nil {
		return 0, err
	}
	return op.d.settle(op.id, op.code, v), nil
}
