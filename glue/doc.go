// Package glue synthesizes the module-side trampolines as a wasm
// binary, so features never hand-write boundary glue.
//
// A Slot describes one feature callback site: an export name, the
// feature-level parameter list, and the cataloged signature it binds
// to. Build emits a module that imports the matching multiplexers from
// the callbridge host module and exports one trampoline per slot. Each
// trampoline does exactly two jobs: pack its feature parameters into
// the signature's boundary shape (splitting 64-bit values into halves)
// and forward (identity, payload...) to the multiplexer import. A zero
// identity returns the neutral value without crossing the boundary.
//
// The binding is checked at build time: a slot whose packed shape does
// not equal its signature's parameters fails Build, so the two sides
// can never disagree about argument layout at run time.
//
// WithAsyncifyExports makes the module suspendable: because each
// trampoline performs exactly one boundary call, rewind replay simply
// re-executes the body, and the asyncify control exports reduce to
// protocol state tracking.
package glue
