package registry

// EventType classifies registry lifecycle events.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventReleased
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventReleased:
		return "released"
	}
	return "unknown"
}

// Event describes one lifecycle transition of an identity.
type Event struct {
	Identity Identity
	Type     EventType
	Async    bool
}

// Observer receives lifecycle events. Notification happens outside the
// registry lock, so observers may register and release reentrantly.
type Observer interface {
	OnRegistryEvent(Event)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRegistryEvent(e Event) { f(e) }

// Subscribe adds an observer.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnRegistryEvent(e)
	}
}
