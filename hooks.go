package callbridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wasmbridge/callbridge/dispatch"
	"github.com/wasmbridge/callbridge/registry"
)

// Typed hook registration. Each hook binds a plain Go function to one
// cataloged signature, hiding the boundary-level Call accessors. The
// identity comes back to the caller, who hands it to the guest and
// releases it when the feature is torn down.

// OnTick registers a niladic notification hook (signature vp).
func (b *Bridge) OnTick(fn func()) (registry.Identity, error) {
	return b.Register(func(_ context.Context, _ *dispatch.Call) (uint64, error) {
		fn()
		return 0, nil
	})
}

// OnProgress registers a polling hook that reports an int32 back to
// the guest (signature ip).
func (b *Bridge) OnProgress(fn func() int32) (registry.Identity, error) {
	return b.Register(func(_ context.Context, _ *dispatch.Call) (uint64, error) {
		return api.EncodeI32(fn()), nil
	})
}

// OnMessage registers a text notification hook (signature vpp). The
// text is copied out of guest memory before fn runs.
func (b *Bridge) OnMessage(fn func(text string)) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		fn(call.Text(0))
		return 0, nil
	})
}

// OnGauge registers a float32 sample hook (signature vpf).
func (b *Bridge) OnGauge(fn func(value float32)) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		fn(call.Float32(0))
		return 0, nil
	})
}

// OnLog registers a leveled text hook (signature vpip).
func (b *Bridge) OnLog(fn func(level int32, msg string)) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		fn(call.Int32(0), call.Text(1))
		return 0, nil
	})
}

// OnFilter registers an int32 transform hook (signature ipi).
func (b *Bridge) OnFilter(fn func(v int32) int32) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		return api.EncodeI32(fn(call.Int32(0))), nil
	})
}

// OnData registers a binary payload hook (signature vpip, carrying a
// length and a pointer). The bytes are copied out of guest memory
// before fn runs.
func (b *Bridge) OnData(fn func(data []byte)) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		fn(call.Bytes(1, 0))
		return 0, nil
	})
}

// OnChange registers a row change hook (signature vpippjh). The rowid
// crosses the boundary as two 32-bit halves and is rejoined bit-exact
// before fn runs.
func (b *Bridge) OnChange(fn func(op int32, db, table string, rowid int64)) (registry.Identity, error) {
	return b.Register(func(_ context.Context, call *dispatch.Call) (uint64, error) {
		fn(call.Int32(0), call.Text(1), call.Text(2), call.Int64(3))
		return 0, nil
	})
}

// OnMessageAsync registers an asynchronous text hook (signature vpp).
// fn receives the text and a resolve function it must call exactly
// once, possibly from another goroutine; the guest's call does not
// return until then.
func (b *Bridge) OnMessageAsync(fn func(text string, resolve func())) (registry.Identity, error) {
	return b.RegisterAsync(func(_ context.Context, call *dispatch.Call, done *dispatch.Completion) {
		text := call.Text(0)
		fn(text, func() { done.Complete(0, nil) })
	})
}

// OnProgressAsync registers an asynchronous polling hook (signature
// ip). fn must call resolve exactly once with the value to hand back
// to the guest.
func (b *Bridge) OnProgressAsync(fn func(resolve func(int32))) (registry.Identity, error) {
	return b.RegisterAsync(func(_ context.Context, _ *dispatch.Call, done *dispatch.Completion) {
		fn(func(v int32) { done.Complete(api.EncodeI32(v), nil) })
	})
}
