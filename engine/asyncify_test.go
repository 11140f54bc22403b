package engine

import (
	"context"
	"fmt"
	"testing"
)

func TestAsyncify_Defaults(t *testing.T) {
	a := NewAsyncify()

	if !a.IsNormal() {
		t.Error("expected initial state normal")
	}
	if a.dataAddr != DataAddr {
		t.Errorf("dataAddr = %d, want %d", a.dataAddr, DataAddr)
	}
	if a.stackSize != DefaultStackSize {
		t.Errorf("stackSize = %d, want %d", a.stackSize, DefaultStackSize)
	}
}

func TestAsyncify_StateTransitions(t *testing.T) {
	// Without bound exports the driver only tracks state, which is all
	// these transitions need.
	a := NewAsyncify()
	ctx := context.Background()

	if err := a.StartUnwind(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.IsUnwinding() {
		t.Error("expected unwinding after StartUnwind")
	}

	if err := a.StopUnwind(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.IsNormal() {
		t.Error("expected normal after StopUnwind")
	}

	if err := a.StartRewind(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.IsRewinding() {
		t.Error("expected rewinding after StartRewind")
	}

	if err := a.StopRewind(ctx); err != nil {
		t.Fatal(err)
	}
	if !a.IsNormal() {
		t.Error("expected normal after StopRewind")
	}
}

type fakePending struct {
	err    error
	result uint64
	called bool
}

func (f *fakePending) Execute(ctx context.Context) (uint64, error) {
	f.called = true
	return f.result, f.err
}

func TestScheduler_PendingLifecycle(t *testing.T) {
	s := NewScheduler(NewAsyncify())

	p := &fakePending{result: 7}
	s.SetPending(p)
	if s.pending != p {
		t.Fatal("pending not stored")
	}

	s.ClearPending()
	if s.pending != nil {
		t.Error("pending not cleared")
	}
	if v, err := s.Result(); v != 0 || err != nil {
		t.Errorf("Result after clear = %d, %v", v, err)
	}
}

func TestScheduler_StepBeforeBegin(t *testing.T) {
	s := NewScheduler(NewAsyncify())

	if _, err := s.Step(context.Background(), nil); err == nil {
		t.Error("expected error stepping before Begin")
	}
}

func TestScheduler_BeginRejectsNonNormal(t *testing.T) {
	a := NewAsyncify()
	s := NewScheduler(a)
	ctx := context.Background()

	if err := a.StartUnwind(ctx); err != nil {
		t.Fatal(err)
	}
	if err := s.Begin(ctx, nil); err == nil {
		t.Error("expected error beginning while unwinding")
	}
}

func TestScheduler_StepHonorsContext(t *testing.T) {
	s := NewScheduler(NewAsyncify())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Step(ctx, nil); err == nil {
		t.Error("expected context error")
	}
}

func TestScheduler_OutcomeError(t *testing.T) {
	a := NewAsyncify()
	s := NewScheduler(a)
	ctx := context.Background()

	if err := s.Begin(ctx, nil); err != nil {
		t.Fatal(err)
	}

	wantErr := fmt.Errorf("operation failed")
	if _, err := s.Step(ctx, &Outcome{Err: wantErr}); err != wantErr {
		t.Errorf("Step error = %v, want %v", err, wantErr)
	}
}

func TestContextPlumbing(t *testing.T) {
	ctx := context.Background()

	if GetScheduler(ctx) != nil || GetAsyncify(ctx) != nil {
		t.Error("empty context should carry nothing")
	}

	a := NewAsyncify()
	s := NewScheduler(a)
	ctx = WithScheduler(WithAsyncify(ctx, a), s)

	if GetScheduler(ctx) != s {
		t.Error("scheduler not found in context")
	}
	if GetAsyncify(ctx) != a {
		t.Error("asyncify not found in context")
	}
}

func TestSuspendResume_RequireContext(t *testing.T) {
	ctx := context.Background()

	if err := Suspend(ctx, &fakePending{}); err == nil {
		t.Error("expected error suspending without scheduler")
	}
	if _, err := Resume(ctx); err == nil {
		t.Error("expected error resuming without scheduler")
	}
}

func TestSuspendResume_CarryValue(t *testing.T) {
	a := NewAsyncify()
	s := NewScheduler(a)
	ctx := WithScheduler(WithAsyncify(context.Background(), a), s)

	p := &fakePending{result: 99}
	if err := Suspend(ctx, p); err != nil {
		t.Fatal(err)
	}
	if !a.IsUnwinding() {
		t.Error("expected unwinding after Suspend")
	}
	if s.pending != p {
		t.Error("pending not registered by Suspend")
	}

	// Simulate the event loop: run the operation, store the outcome,
	// enter rewind, and let the host function resume.
	if err := a.StopUnwind(ctx); err != nil {
		t.Fatal(err)
	}
	v, err := p.Execute(ctx)
	if err != nil {
		t.Fatal(err)
	}
	s.result = v
	if err := a.StartRewind(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := Resume(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got != 99 {
		t.Errorf("Resume = %d, want 99", got)
	}
	if !a.IsNormal() {
		t.Error("expected normal after Resume")
	}
}
