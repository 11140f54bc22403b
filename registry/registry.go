package registry

import (
	"math"
	"sync"

	"github.com/wasmbridge/callbridge/errors"
)

// Identity is the opaque token naming one registered closure across the
// boundary. It travels as an ordinary i32 argument.
type Identity uint32

// None is the reserved no-op sentinel. It is never allocated; features
// pass it to mean "no callback registered" and check for it before
// crossing the boundary at all.
const None Identity = 0

// Registration is one live identity mapping. The async classification
// is fixed at registration time and immutable thereafter.
type Registration struct {
	// Value is the registered closure; its concrete type is owned by
	// the dispatch layer.
	Value any
	// Async reports whether the closure completes out of band.
	Async bool
}

type entry struct {
	value any
	async bool
	valid bool
}

// Registry allocates identities and resolves them to registrations.
type Registry struct {
	entries   []entry
	freeList  []Identity
	observers []Observer
	mu        sync.RWMutex
	obsMu     sync.RWMutex
	capacity  int
	closed    bool
}

// Config bounds the registry. A zero value means the full identity space.
type Config struct {
	// Capacity caps the number of simultaneously live registrations.
	Capacity int
}

// New creates a registry. cfg may be nil.
func New(cfg *Config) *Registry {
	capacity := math.MaxUint32 - 1
	if cfg != nil && cfg.Capacity > 0 {
		capacity = cfg.Capacity
	}
	return &Registry{
		entries:  make([]entry, 0, 16),
		capacity: capacity,
	}
}

// Register stores a synchronous closure and returns a fresh identity.
// Never returns None on success. Returns an exhaustion error when the
// identity space is full; it never wraps around onto a live identity.
func (r *Registry) Register(value any) (Identity, error) {
	return r.register(value, false)
}

// RegisterAsync stores a closure classified asynchronous at registration
// time. Dispatch uses the suspending calling convention for it.
func (r *Registry) RegisterAsync(value any) (Identity, error) {
	return r.register(value, true)
}

func (r *Registry) register(value any, async bool) (Identity, error) {
	if value == nil {
		return None, errors.InvalidInput(errors.PhaseRegister, "closure cannot be nil")
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return None, errors.Closed(errors.PhaseRegister, "registry")
	}

	e := entry{value: value, async: async, valid: true}

	var id Identity
	switch {
	case len(r.freeList) > 0:
		id = r.freeList[len(r.freeList)-1]
		r.freeList = r.freeList[:len(r.freeList)-1]
		r.entries[id-1] = e
	case len(r.entries) < r.capacity:
		r.entries = append(r.entries, e)
		id = Identity(len(r.entries))
	default:
		capacity := r.capacity
		r.mu.Unlock()
		return None, errors.Exhausted(capacity)
	}
	r.mu.Unlock()

	r.notify(Event{Type: EventRegistered, Identity: id, Async: async})
	return id, nil
}

// Resolve looks up a live registration. Read-only; not-found is the
// expected outcome for released identities and must be treated as
// "silently drop", never as a failure.
func (r *Registry) Resolve(id Identity) (Registration, bool) {
	if id == None {
		return Registration{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	idx := int(id) - 1
	if idx >= len(r.entries) {
		return Registration{}, false
	}
	e := r.entries[idx]
	if !e.valid {
		return Registration{}, false
	}
	return Registration{Value: e.value, Async: e.async}, true
}

// Release removes a mapping. Idempotent: releasing None, an unknown
// identity, or an already-released identity is a no-op. The identity
// may be recycled for a later registration.
func (r *Registry) Release(id Identity) {
	if id == None {
		return
	}

	r.mu.Lock()
	idx := int(id) - 1
	if r.closed || idx >= len(r.entries) || !r.entries[idx].valid {
		r.mu.Unlock()
		return
	}
	async := r.entries[idx].async
	r.entries[idx] = entry{}
	r.freeList = append(r.freeList, id)
	r.mu.Unlock()

	r.notify(Event{Type: EventReleased, Identity: id, Async: async})
}

// Len returns the number of live registrations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, e := range r.entries {
		if e.valid {
			count++
		}
	}
	return count
}

// Clear releases every live registration.
func (r *Registry) Clear() {
	r.mu.RLock()
	var live []Identity
	for i, e := range r.entries {
		if e.valid {
			live = append(live, Identity(i+1))
		}
	}
	r.mu.RUnlock()

	for _, id := range live {
		r.Release(id)
	}
}

// Close releases everything and rejects further registration.
// Resolve on a closed registry reports not-found.
func (r *Registry) Close() error {
	r.Clear()

	r.mu.Lock()
	r.closed = true
	r.entries = nil
	r.freeList = nil
	r.mu.Unlock()
	return nil
}
