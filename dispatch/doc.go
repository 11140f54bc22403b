// Package dispatch implements the host-side multiplexers: one wazero
// host function per cataloged signature, exported from the "callbridge"
// host module under the signature's canonical code.
//
// A multiplexer receives (identity, payload...) from a guest trampoline,
// resolves the identity in the registry, marshals the payload, and
// invokes the resolved closure. A stale identity is silently dropped
// with the signature's neutral return value; a closure failure or panic
// is normalized the same way, so the guest always receives a well-formed
// value of the declared return kind.
//
// Synchronous and asynchronous closures share one logical call path
// built on Completion, a deferred result. Synchronous closures complete
// it immediately. Asynchronous closures complete it later; if the guest
// was entered through an asyncify scheduler the multiplexer suspends the
// guest and resumes it with the completed value, otherwise it blocks the
// calling goroutine until completion.
package dispatch
