// Package registry is the host-side table mapping opaque integer
// identities to registered callback closures.
//
// The registry is the single source of truth for which closure an
// identity means, and the only shared mutable structure in the bridge.
// Registration and release are serialized under one lock; resolution is
// a read-side lookup safe against concurrent mutation. An identity is
// never recycled while its registration is live, and release is
// idempotent: resolving a released identity reports not-found, which
// dispatch treats as a benign stale call.
//
// The registry is an explicit instance, never ambient process state, so
// independent bridges in one process cannot collide on identities.
package registry
