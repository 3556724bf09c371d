package ke

import (
	"sync"
	"testing"
)

func TestMutexLockBalanceRoundTrip(t *testing.T) {
	m := NewMutex()
	tk := NewTask("balance", "/balance", nil, Normal, 0)

	codes := withStubbedExit(t, func() {
		m.Acquire(tk)
		m.Release(tk)
	})
	if len(codes) != 0 {
		t.Fatalf("uncontended acquire/release paniced: %v", codes)
	}
}

func TestMutexBusyAcquirePanics(t *testing.T) {
	m := NewMutex()
	tk := NewTask("busy", "/busy", nil, Normal, 0)

	codes := withStubbedExit(t, func() {
		m.Acquire(tk)
		m.Acquire(tk) // re-acquiring a mutex already held by tk
	})
	if len(codes) != 1 {
		t.Fatalf("exitFunc calls = %v, want exactly one BUSY_MUTEX_ACQUIRED panic", codes)
	}
}

func TestMutexUnacquiredReleasePanics(t *testing.T) {
	m := NewMutex()
	tk := NewTask("unacquired", "/unacquired", nil, Normal, 0)

	codes := withStubbedExit(t, func() {
		m.Release(tk)
	})
	if len(codes) != 1 {
		t.Fatalf("exitFunc calls = %v, want exactly one UNACQUIRED_MUTEX_RELEASED panic", codes)
	}
}

// TestMutexFIFOWaiterOrder drives three contending tasks through a held
// mutex and asserts the release sequence wakes them in strict
// enqueue order (spec.md §8 scenario 3). owner parks on a semaphore
// gate rather than yielding back into the ready queue, so the only
// thing contending for the mutex is t1/t2/t3 — the gate keeps their
// enqueue order onto m.waiters fully determined by the order this test
// calls Sched.Enable, regardless of goroutine scheduling.
func TestMutexFIFOWaiterOrder(t *testing.T) {
	m := NewMutex()
	gate := NewSemaphore(0, 1)
	acquired := make(chan struct{})

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	owner := NewTask("owner", "/owner", nil, Normal, 0)
	Sched.Enable(owner)
	Spawn(owner, func(tk *Task) {
		m.Acquire(tk)
		close(acquired)
		gate.Acquire(tk)
		m.Release(tk)
		Exit(tk, 0)
	})
	<-acquired

	contend := func(name string) *Task {
		tk := NewTask(name, "/"+name, nil, Normal, 0)
		Sched.Enable(tk)
		Spawn(tk, func(tk *Task) {
			m.Acquire(tk)
			record(tk.Name)
			m.Release(tk)
			Exit(tk, 0)
		})
		return tk
	}

	t1 := contend("t1")
	t2 := contend("t2")
	t3 := contend("t3")

	gate.Release(nil)

	<-owner.Done()
	<-t1.Done()
	<-t2.Done()
	<-t3.Done()

	want := []string{"t1", "t2", "t3"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}
