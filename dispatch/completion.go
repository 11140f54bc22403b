package dispatch

import (
	"context"
	"sync"
)

// Completion is the deferred result of one logical callback invocation.
// Synchronous closures resolve it before the multiplexer returns;
// asynchronous closures hold on to it and resolve it later. Complete is
// one-shot: the first call wins and the rest are ignored.
type Completion struct {
	done  chan struct{}
	once  sync.Once
	value uint64
	err   error
}

// NewCompletion creates an unresolved completion.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete resolves the completion with a boundary-encoded value.
func (c *Completion) Complete(value uint64, err error) {
	c.once.Do(func() {
		c.value = value
		c.err = err
		close(c.done)
	})
}

// Done is closed once the completion resolves.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Resolved reports whether Complete has been called.
func (c *Completion) Resolved() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the completion resolves or ctx is canceled.
func (c *Completion) Wait(ctx context.Context) (uint64, error) {
	select {
	case <-c.done:
		return c.value, c.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
