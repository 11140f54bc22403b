package registry

import (
	stderrors "errors"
	"sync"
	"testing"

	"github.com/wasmbridge/callbridge/errors"
)

func TestRegister_FreshIdentities(t *testing.T) {
	r := New(nil)

	id1, err := r.Register("c1")
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.Register("c2")
	if err != nil {
		t.Fatal(err)
	}

	if id1 == None || id2 == None {
		t.Fatal("registered identity must never be the sentinel")
	}
	if id1 == id2 {
		t.Fatalf("two live registrations share identity %d", id1)
	}

	got1, ok := r.Resolve(id1)
	if !ok || got1.Value != "c1" {
		t.Errorf("Resolve(%d) = %v, %v", id1, got1.Value, ok)
	}
	got2, ok := r.Resolve(id2)
	if !ok || got2.Value != "c2" {
		t.Errorf("Resolve(%d) = %v, %v", id2, got2.Value, ok)
	}
}

func TestRegister_NilClosure(t *testing.T) {
	r := New(nil)
	if _, err := r.Register(nil); err == nil {
		t.Error("expected error for nil closure")
	}
}

func TestRegisterAsync_Classification(t *testing.T) {
	r := New(nil)

	sid, _ := r.Register("sync")
	aid, _ := r.RegisterAsync("async")

	if reg, _ := r.Resolve(sid); reg.Async {
		t.Error("sync registration classified async")
	}
	if reg, _ := r.Resolve(aid); !reg.Async {
		t.Error("async registration classified sync")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	r := New(nil)
	id, _ := r.Register("c")

	r.Release(id)
	if _, ok := r.Resolve(id); ok {
		t.Error("released identity still resolves")
	}

	// Double release is a no-op, as are unknown identities and None.
	r.Release(id)
	r.Release(9999)
	r.Release(None)

	if _, ok := r.Resolve(id); ok {
		t.Error("identity resolves after double release")
	}
	if r.Len() != 0 {
		t.Errorf("Len = %d, want 0", r.Len())
	}
}

func TestResolve_Sentinel(t *testing.T) {
	r := New(nil)
	if _, ok := r.Resolve(None); ok {
		t.Error("sentinel must never resolve")
	}
}

func TestNoAliasing_UnderChurn(t *testing.T) {
	r := New(nil)
	live := make(map[Identity]bool)

	// Interleave registration and release; at every point no two live
	// registrations may share an identity.
	var ids []Identity
	for i := 0; i < 100; i++ {
		id, err := r.Register(i)
		if err != nil {
			t.Fatal(err)
		}
		if live[id] {
			t.Fatalf("identity %d allocated while live", id)
		}
		live[id] = true
		ids = append(ids, id)

		if i%3 == 0 {
			victim := ids[0]
			ids = ids[1:]
			r.Release(victim)
			delete(live, victim)
		}
	}

	if r.Len() != len(live) {
		t.Errorf("Len = %d, want %d", r.Len(), len(live))
	}
}

func TestRelease_AllowsRecycling(t *testing.T) {
	r := New(nil)

	id, _ := r.Register("first")
	r.Release(id)

	id2, _ := r.Register("second")
	if id2 != id {
		// recycling is permitted, not required; either way the new
		// registration must resolve to the new closure
		t.Logf("identity not recycled: %d -> %d", id, id2)
	}
	if reg, ok := r.Resolve(id2); !ok || reg.Value != "second" {
		t.Errorf("Resolve(%d) = %v, %v", id2, reg.Value, ok)
	}
}

func TestRegister_Exhaustion(t *testing.T) {
	r := New(&Config{Capacity: 2})

	if _, err := r.Register("a"); err != nil {
		t.Fatal(err)
	}
	id2, err := r.Register("b")
	if err != nil {
		t.Fatal(err)
	}

	_, err = r.Register("c")
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseRegister, Kind: errors.KindExhausted}) {
		t.Fatalf("expected exhaustion error, got %v", err)
	}

	// Releasing makes room again without aliasing a live identity.
	r.Release(id2)
	id3, err := r.Register("c")
	if err != nil {
		t.Fatal(err)
	}
	if reg, ok := r.Resolve(id3); !ok || reg.Value != "c" {
		t.Errorf("Resolve(%d) = %v, %v", id3, reg.Value, ok)
	}
}

func TestClose_RejectsRegistration(t *testing.T) {
	r := New(nil)
	id, _ := r.Register("c")

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}

	if _, ok := r.Resolve(id); ok {
		t.Error("identity resolves after Close")
	}
	if _, err := r.Register("d"); err == nil {
		t.Error("expected error registering on closed registry")
	}
	// Close and Release stay safe afterwards.
	r.Release(id)
	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestObservers(t *testing.T) {
	r := New(nil)

	var mu sync.Mutex
	var events []Event
	obs := ObserverFunc(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})
	r.Subscribe(obs)

	id, _ := r.RegisterAsync("c")
	r.Release(id)

	mu.Lock()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventRegistered || events[0].Identity != id || !events[0].Async {
		t.Errorf("first event = %+v", events[0])
	}
	if events[1].Type != EventReleased || events[1].Identity != id {
		t.Errorf("second event = %+v", events[1])
	}
	mu.Unlock()

	r.Unsubscribe(obs)
	id2, _ := r.Register("d")
	r.Release(id2)

	mu.Lock()
	if len(events) != 2 {
		t.Errorf("unsubscribed observer still notified: %d events", len(events))
	}
	mu.Unlock()
}

func TestReentrantRegistration(t *testing.T) {
	r := New(nil)

	// An observer that registers from inside notification: the
	// registry must not deadlock or corrupt state.
	var nested Identity
	var nesting bool
	obs := ObserverFunc(func(e Event) {
		if e.Type == EventRegistered && !nesting {
			nesting = true
			id, err := r.Register("nested")
			if err != nil {
				t.Errorf("nested register: %v", err)
				return
			}
			nested = id
		}
	})
	r.Subscribe(obs)

	outer, err := r.Register("outer")
	if err != nil {
		t.Fatal(err)
	}

	if nested == None || nested == outer {
		t.Fatalf("nested registration got identity %d (outer %d)", nested, outer)
	}
	if reg, ok := r.Resolve(nested); !ok || reg.Value != "nested" {
		t.Error("nested registration does not resolve")
	}
}

func TestConcurrentChurn(t *testing.T) {
	r := New(nil)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id, err := r.Register(i)
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok := r.Resolve(id); !ok {
					t.Errorf("identity %d vanished before release", id)
					return
				}
				r.Release(id)
			}
		}()
	}
	wg.Wait()

	if r.Len() != 0 {
		t.Errorf("Len = %d after churn, want 0", r.Len())
	}
}
