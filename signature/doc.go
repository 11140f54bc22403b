// Package signature defines the closed catalog of boundary call shapes.
//
// A Signature is the declared return and parameter kind sequence of one
// multiplexer. The kind alphabet is small and fixed: void, 32-bit
// integer, pointer-sized handle, 32-bit float, and a 64-bit integer
// carried as two 32-bit halves. Every multiplexer export and every
// synthesized trampoline derives its wasm type from the same Signature
// value, so the two sides of the boundary can never disagree about
// argument layout.
//
// Adding a callback feature whose call shape is not yet cataloged means
// adding exactly one entry here; no multiplexer, trampoline, or registry
// code changes.
package signature
