package ke

import (
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
)

// Mutex is the yielding mutual-exclusion primitive of spec.md §3/§4.2:
// uncontended Acquire completes without touching the waiter queue;
// contended Acquire enqueues the caller and suspends it. Release wakes
// the FIFO head waiter, if any.
type Mutex struct {
	ob.Header
	sl      Spinlock
	waiters taskQueue
	locked  bool
	holder  *Task
}

// NewMutex returns an unlocked mutex.
func NewMutex() *Mutex {
	m := &Mutex{}
	m.Header.Init(ob.TypeMutex)
	return m
}

// Acquire blocks t until m is held by t alone. Re-acquiring a mutex
// already held by the caller is the BUSY_MUTEX_ACQUIRED bug class
// (spec.md §4.2) — it is not supported recursion and panics.
func (m *Mutex) Acquire(t *Task) {
	m.sl.Acquire(t)
	if !m.locked {
		m.locked = true
		m.holder = t
		m.sl.Release(t)
		return
	}
	if m.holder == t {
		m.sl.Release(t)
		Panic(BusyMutexAcquired, status.ErrBusyMutexAcquired.Error())
		return
	}
	m.waiters.pushBack(t)
	m.sl.Release(t)
	Suspend(t)
}

// Release unlocks m, transferring ownership to the FIFO head waiter if
// one is present, otherwise marking m free. Releasing a mutex the
// caller does not hold is the UNACQUIRED_MUTEX_RELEASED bug class and
// panics.
func (m *Mutex) Release(t *Task) {
	m.sl.Acquire(t)
	if !m.locked || m.holder != t {
		m.sl.Release(t)
		Panic(UnacquiredMutexReleased, status.ErrUnacquiredRelease.Error())
		return
	}
	next := m.waiters.popFront()
	if next != nil {
		m.holder = next
		m.sl.Release(t)
		Wake(next)
		return
	}
	m.locked = false
	m.holder = nil
	m.sl.Release(t)
}

// TryAcquire attempts the fast path only; it never suspends the
// caller.
func (m *Mutex) TryAcquire(t *Task) bool {
	m.sl.Acquire(t)
	defer m.sl.Release(t)
	if m.locked {
		return false
	}
	m.locked = true
	m.holder = t
	return true
}
