// Package engine wraps wazero with the runtime plumbing the bridge
// needs: guest instantiation, and the binaryen asyncify protocol used
// to suspend a guest call while an asynchronous host closure runs and
// resume it with the closure's result.
package engine
