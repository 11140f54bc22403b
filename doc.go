// Package callbridge implements dynamic host callback dispatch for
// WebAssembly guests.
//
// A guest module calls back into the host through a small closed set of
// call shapes. The host registers Go closures and hands the guest an
// opaque integer identity; the guest later invokes a host export with
// that identity as its first argument, and the bridge routes the call
// to the registered closure. Identities can be released at any time,
// and a call racing a release is dropped silently with the shape's
// neutral value.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	callbridge/          Root package with the Bridge facade and typed hooks
//	├── signature/       Closed catalog of boundary call shapes
//	├── registry/        Identity allocation, resolution, and release
//	├── dispatch/        Host-side multiplexers, one per signature
//	├── marshal/         Boundary value helpers (text, split 64-bit ints)
//	├── glue/            Guest-side trampoline module synthesis
//	└── engine/          wazero runtime ownership and asyncify scheduling
//
// # Quick Start
//
// Create a bridge, register a closure, and load a guest that imports
// the host module:
//
//	bridge, err := callbridge.New(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer bridge.Close(ctx)
//
//	id, err := bridge.OnMessage(func(text string) {
//	    fmt.Println("guest says:", text)
//	})
//
//	guest, err := bridge.LoadGuest(ctx, wasmBytes, "app")
//	_, err = guest.Call(ctx, "notify", uint64(id), textPtr)
//
// The zero identity is a reserved sentinel meaning "no callback";
// trampolines built by the glue package return the neutral value for it
// without crossing the boundary.
//
// # Synchronous and Asynchronous Closures
//
// Every identity is classified sync or async when it is registered and
// keeps that classification for life. A synchronous closure returns its
// result directly. An asynchronous closure receives a Completion and
// resolves it later; guests instrumented with asyncify suspend while
// the completion is pending (see Guest.CallAsync), and plain guests
// block the host call instead.
//
// # Thread Safety
//
// Bridge and its registry are safe for concurrent use. A Guest wraps a
// single module instance and is not safe for concurrent calls.
package callbridge
