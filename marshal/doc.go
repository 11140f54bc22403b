// Package marshal converts between boundary-safe primitives and host
// values: null-terminated guest text to Go strings, pointer+length
// regions to byte slices, and 64-bit integers to and from 32-bit halves.
//
// All conversions are pure and total over well-formed input. Malformed
// input (a pointer outside guest memory, text with no terminator) is a
// boundary contract violation and panics; the boundary offers no memory
// safety of its own, so these are programming errors, not recoverable
// conditions.
package marshal
