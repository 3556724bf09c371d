package ke

import "testing"

// TestDPCDrainOrdersByPriorityThenFIFO exercises spec.md §3/§4.4's
// drain order: HIGH before NORMAL before LOW, FIFO within a class.
func TestDPCDrainOrdersByPriorityThenFIFO(t *testing.T) {
	q := newDPCQueue()
	var order []string

	q.Register(DPCLow, func(ctx interface{}) { order = append(order, ctx.(string)) }, "low-1")
	q.Register(DPCNormal, func(ctx interface{}) { order = append(order, ctx.(string)) }, "normal-1")
	q.Register(DPCHigh, func(ctx interface{}) { order = append(order, ctx.(string)) }, "high-1")
	q.Register(DPCHigh, func(ctx interface{}) { order = append(order, ctx.(string)) }, "high-2")
	q.Register(DPCNormal, func(ctx interface{}) { order = append(order, ctx.(string)) }, "normal-2")

	q.Drain()

	want := []string{"high-1", "high-2", "normal-1", "normal-2", "low-1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// TestDPCRegisterFromWithinCallbackFoldsIntoSamePass covers spec.md
// §4.4's "registering from within a DPC is folded into the same pass":
// a HIGH callback that registers a new LOW entry must see it drained
// before Drain returns, without a second, re-entrant Drain call.
func TestDPCRegisterFromWithinCallbackFoldsIntoSamePass(t *testing.T) {
	q := newDPCQueue()
	var order []string

	q.Register(DPCHigh, func(ctx interface{}) {
		order = append(order, "high")
		q.Register(DPCLow, func(ctx interface{}) {
			order = append(order, "nested-low")
		}, nil)
	}, nil)

	q.Drain()

	want := []string{"high", "nested-low"}
	if len(order) != len(want) || order[0] != want[0] || order[1] != want[1] {
		t.Fatalf("order = %v, want %v", order, want)
	}
}

// TestDPCDrainIsReentrancyGuarded proves a Drain call made from inside
// a running callback (rather than queuing a new entry) is a no-op: the
// outer Drain already owns draining and must finish the queue itself.
func TestDPCDrainIsReentrancyGuarded(t *testing.T) {
	q := newDPCQueue()
	var order []string

	q.Register(DPCHigh, func(ctx interface{}) {
		order = append(order, "outer")
		q.Drain() // must return immediately, not recurse
		order = append(order, "after-reentrant-drain")
	}, nil)
	q.Register(DPCNormal, func(ctx interface{}) {
		order = append(order, "normal")
	}, nil)

	q.Drain()

	want := []string{"outer", "after-reentrant-drain", "normal"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
