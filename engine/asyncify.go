package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero/api"

	"go.uber.org/zap"
)

// Asyncify drives the binaryen asyncify protocol (wasm-opt --asyncify)
// for guests that cannot tolerate a blocked host call.
//
// States: 0=Normal, 1=Unwinding (saving the guest stack), 2=Rewinding
// (restoring it).
//
// Memory layout at dataAddr:
//   - [0:4] stack pointer (grows upward from dataAddr+8)
//   - [4:8] stack end
//   - [8:stackSize] saved stack data
type Asyncify struct {
	exports struct {
		getState    api.Function
		startUnwind api.Function
		stopUnwind  api.Function
		startRewind api.Function
		stopRewind  api.Function
	}
	memory    api.Memory
	mu        sync.Mutex
	state     int32
	dataAddr  uint32
	stackSize uint32
}

const (
	// DataAddr is the default asyncify scratch location in guest memory.
	DataAddr uint32 = 16
	// DefaultStackSize is the default saved-stack budget in bytes.
	DefaultStackSize uint32 = 1024
)

// NewAsyncify creates an uninitialized asyncify driver.
func NewAsyncify() *Asyncify {
	return &Asyncify{dataAddr: DataAddr, stackSize: DefaultStackSize}
}

// SetStackSize overrides the saved-stack budget. Call before Init.
func (a *Asyncify) SetStackSize(size uint32) {
	a.stackSize = size
}

// SetDataAddr overrides the scratch location. Call before Init.
func (a *Asyncify) SetDataAddr(addr uint32) {
	a.dataAddr = addr
}

// Init binds the driver to an instantiated guest. The guest must export
// the asyncify intrinsics (compiled with wasm-opt --asyncify).
func (a *Asyncify) Init(mod api.Module) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.memory = mod.Memory()
	if a.memory == nil {
		return fmt.Errorf("asyncify: guest has no memory")
	}

	a.exports.getState = mod.ExportedFunction("asyncify_get_state")
	a.exports.startUnwind = mod.ExportedFunction("asyncify_start_unwind")
	a.exports.stopUnwind = mod.ExportedFunction("asyncify_stop_unwind")
	a.exports.startRewind = mod.ExportedFunction("asyncify_start_rewind")
	a.exports.stopRewind = mod.ExportedFunction("asyncify_stop_rewind")

	if a.exports.getState == nil {
		return fmt.Errorf("asyncify: guest missing asyncify_get_state export (run wasm-opt --asyncify)")
	}

	stackPtr := a.dataAddr + 8
	stackEnd := stackPtr + a.stackSize

	if !a.memory.WriteUint32Le(a.dataAddr, stackPtr) {
		return fmt.Errorf("asyncify: failed to write stack pointer")
	}
	if !a.memory.WriteUint32Le(a.dataAddr+4, stackEnd) {
		return fmt.Errorf("asyncify: failed to write stack end")
	}
	return nil
}

func (a *Asyncify) IsNormal() bool {
	return atomic.LoadInt32(&a.state) == 0
}

func (a *Asyncify) IsUnwinding() bool {
	return atomic.LoadInt32(&a.state) == 1
}

func (a *Asyncify) IsRewinding() bool {
	return atomic.LoadInt32(&a.state) == 2
}

func (a *Asyncify) StartUnwind(ctx context.Context) error {
	if a.exports.startUnwind != nil {
		if _, err := a.exports.startUnwind.Call(ctx, uint64(a.dataAddr)); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&a.state, 1)
	return nil
}

func (a *Asyncify) StopUnwind(ctx context.Context) error {
	if a.exports.stopUnwind != nil {
		if _, err := a.exports.stopUnwind.Call(ctx); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&a.state, 0)
	return nil
}

func (a *Asyncify) StartRewind(ctx context.Context) error {
	if a.exports.startRewind != nil {
		if _, err := a.exports.startRewind.Call(ctx, uint64(a.dataAddr)); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&a.state, 2)
	return nil
}

func (a *Asyncify) StopRewind(ctx context.Context) error {
	if a.exports.stopRewind != nil {
		if _, err := a.exports.stopRewind.Call(ctx); err != nil {
			return err
		}
	}
	atomic.StoreInt32(&a.state, 0)
	return nil
}

// ResetStack rewinds the scratch stack pointer. Call before each new
// suspendable guest call.
func (a *Asyncify) ResetStack() {
	if a.memory != nil {
		stackPtr := a.dataAddr + 8
		if !a.memory.WriteUint32Le(a.dataAddr, stackPtr) {
			Logger().Warn("asyncify: failed to reset stack pointer",
				zap.Uint32("dataAddr", a.dataAddr))
		}
	}
}

// Pending is an operation yielded by a suspended guest call. Execute
// runs (or waits for) the operation and produces the value the guest
// resumes with.
type Pending interface {
	Execute(ctx context.Context) (uint64, error)
}

// StepStatus reports what a scheduler step produced.
type StepStatus int

const (
	// StepYield means the guest suspended and expects a resume with the
	// pending operation's result.
	StepYield StepStatus = iota
	// StepDone means the guest call completed.
	StepDone
)

// StepResult is one scheduler step's outcome.
type StepResult struct {
	Pending Pending
	Results []uint64
	Status  StepStatus
}

// Outcome carries a pending operation's result back into Step.
type Outcome struct {
	Err   error
	Value uint64
}

// Scheduler runs one suspendable guest call with step-based control so
// callers can integrate with an external event loop.
type Scheduler struct {
	fn          api.Function
	pending     Pending
	err         error
	asyncify    *Asyncify
	args        []uint64
	result      uint64
	initialized bool
}

func NewScheduler(a *Asyncify) *Scheduler {
	return &Scheduler{asyncify: a}
}

func (s *Scheduler) SetPending(p Pending) {
	s.pending = p
}

func (s *Scheduler) Result() (uint64, error) {
	return s.result, s.err
}

func (s *Scheduler) ClearPending() {
	s.pending = nil
	s.result = 0
	s.err = nil
}

// Begin prepares a guest call. Advance with Step.
func (s *Scheduler) Begin(ctx context.Context, fn api.Function, args ...uint64) error {
	if !s.asyncify.IsNormal() {
		return fmt.Errorf("scheduler: asyncify not in normal state")
	}
	s.fn = fn
	s.args = args
	s.initialized = true
	s.asyncify.ResetStack()
	return nil
}

// Step advances execution. Pass nil on the first call, then the yielded
// operation's Outcome to resume.
func (s *Scheduler) Step(ctx context.Context, outcome *Outcome) (StepResult, error) {
	if err := ctx.Err(); err != nil {
		return StepResult{}, err
	}
	if !s.initialized {
		return StepResult{}, fmt.Errorf("scheduler: call Begin first")
	}

	if outcome != nil {
		s.result = outcome.Value
		s.err = outcome.Err
		if s.err != nil {
			return StepResult{}, s.err
		}
		if err := s.asyncify.StartRewind(ctx); err != nil {
			return StepResult{}, fmt.Errorf("scheduler: start rewind: %w", err)
		}
	}

	results, callErr := s.fn.Call(ctx, s.args...)

	if s.asyncify.IsUnwinding() {
		if err := s.asyncify.StopUnwind(ctx); err != nil {
			return StepResult{}, fmt.Errorf("scheduler: stop unwind: %w", err)
		}
		if s.pending == nil {
			return StepResult{}, fmt.Errorf("scheduler: no pending operation after unwind")
		}
		p := s.pending
		s.pending = nil
		return StepResult{Status: StepYield, Pending: p}, nil
	}

	if callErr != nil {
		return StepResult{}, callErr
	}
	if !s.asyncify.IsNormal() {
		return StepResult{}, fmt.Errorf("scheduler: unexpected asyncify state after call")
	}

	s.initialized = false
	return StepResult{Status: StepDone, Results: results}, nil
}

// Run executes a guest call with an internal event loop, resolving each
// yielded operation in the order it suspended.
func (s *Scheduler) Run(ctx context.Context, fn api.Function, args ...uint64) ([]uint64, error) {
	if err := s.Begin(ctx, fn, args...); err != nil {
		return nil, err
	}

	var outcome *Outcome
	for {
		sr, err := s.Step(ctx, outcome)
		if err != nil {
			return nil, err
		}
		switch sr.Status {
		case StepDone:
			return sr.Results, nil
		case StepYield:
			v, opErr := sr.Pending.Execute(ctx)
			outcome = &Outcome{Value: v, Err: opErr}
		}
	}
}

func (s *Scheduler) Reset() {
	s.fn = nil
	s.args = nil
	s.pending = nil
	s.result = 0
	s.err = nil
	s.initialized = false
}

type ctxKeyScheduler struct{}
type ctxKeyAsyncify struct{}

// WithScheduler attaches a scheduler for host functions to find.
func WithScheduler(ctx context.Context, s *Scheduler) context.Context {
	return context.WithValue(ctx, ctxKeyScheduler{}, s)
}

// GetScheduler returns the scheduler from ctx, or nil.
func GetScheduler(ctx context.Context) *Scheduler {
	if v := ctx.Value(ctxKeyScheduler{}); v != nil {
		return v.(*Scheduler)
	}
	return nil
}

// WithAsyncify attaches an asyncify driver for host functions to find.
func WithAsyncify(ctx context.Context, a *Asyncify) context.Context {
	return context.WithValue(ctx, ctxKeyAsyncify{}, a)
}

// GetAsyncify returns the asyncify driver from ctx, or nil.
func GetAsyncify(ctx context.Context) *Asyncify {
	if v := ctx.Value(ctxKeyAsyncify{}); v != nil {
		return v.(*Asyncify)
	}
	return nil
}

// Suspend registers a pending operation and starts unwinding the guest.
// Called from inside a host function that cannot complete synchronously.
func Suspend(ctx context.Context, p Pending) error {
	sched := GetScheduler(ctx)
	async := GetAsyncify(ctx)
	if sched == nil || async == nil {
		return fmt.Errorf("suspend: no scheduler or asyncify in context")
	}

	sched.SetPending(p)
	return async.StartUnwind(ctx)
}

// Resume fetches the pending operation's result and stops rewinding.
// Called from inside a host function re-entered during rewind.
func Resume(ctx context.Context) (uint64, error) {
	sched := GetScheduler(ctx)
	async := GetAsyncify(ctx)
	if sched == nil || async == nil {
		return 0, fmt.Errorf("resume: no scheduler or asyncify in context")
	}

	result, err := sched.Result()
	if err != nil {
		return 0, err
	}
	if err := async.StopRewind(ctx); err != nil {
		return 0, err
	}

	sched.ClearPending()
	return result, nil
}
