package rp

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/vkernel/vkernel/pkg/status"
)

// TestQueueAtMostOneInFlightFIFOChaining drives three RPs through a
// non-reentrant queue and holds each one's initiator open (no
// immediate Finalize) to prove the second and third never run until
// the previous one finalizes — spec.md §4.7's "at most one in flight"
// policy — and that Finalize hands the queue straight to the next
// pending RP in enqueue order.
func TestQueueAtMostOneInFlightFIFOChaining(t *testing.T) {
	q := NewQueue(false)

	var mu sync.Mutex
	var order []string
	var active int32

	started := make(chan *RP, 3)

	newInitiator := func(name string) func(r *RP) {
		return func(r *RP) {
			n := atomic.AddInt32(&active, 1)
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			if n != 1 {
				t.Errorf("%s started with %d RPs in flight, want 1", name, n)
			}
			started <- r
		}
	}

	r1, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New r1: %v", err)
	}
	r2, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New r2: %v", err)
	}
	r3, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New r3: %v", err)
	}

	q.StartRp(r1, newInitiator("r1"))
	q.StartRp(r2, newInitiator("r2"))
	q.StartRp(r3, newInitiator("r3"))

	// Only r1's initiator should have run so far: r2 and r3 sat down in
	// q.pending without ever calling their initiator.
	if len(order) != 1 || order[0] != "r1" {
		t.Fatalf("order after enqueue = %v, want [r1]", order)
	}

	got := <-started
	if got != r1 {
		t.Fatal("expected r1 to be the first RP started")
	}
	atomic.AddInt32(&active, -1)
	Finalize(r1, status.Ok)

	got = <-started
	if got != r2 {
		t.Fatal("expected r2 to chain in immediately after r1 finalizes")
	}
	atomic.AddInt32(&active, -1)
	Finalize(r2, status.Ok)

	got = <-started
	if got != r3 {
		t.Fatal("expected r3 to chain in immediately after r2 finalizes")
	}
	atomic.AddInt32(&active, -1)
	Finalize(r3, status.Ok)

	want := []string{"r1", "r2", "r3"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	for _, r := range []*RP{r1, r2, r3} {
		if !r.IsFinalized() {
			t.Fatal("expected every RP to end up finalized")
		}
	}
}

// TestQueueReentrantAllowsConcurrentInFlight confirms the Reentrant
// escape hatch: a second StartRp call runs its initiator immediately
// even while the first is still in flight.
func TestQueueReentrantAllowsConcurrentInFlight(t *testing.T) {
	q := NewQueue(true)

	var started int32
	r1, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New r1: %v", err)
	}
	r2, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New r2: %v", err)
	}

	q.StartRp(r1, func(r *RP) { atomic.AddInt32(&started, 1) })
	q.StartRp(r2, func(r *RP) { atomic.AddInt32(&started, 1) })

	if started != 2 {
		t.Fatalf("started = %d, want 2 (both initiators run immediately on a reentrant queue)", started)
	}

	Finalize(r1, status.Ok)
	Finalize(r2, status.Ok)
}
