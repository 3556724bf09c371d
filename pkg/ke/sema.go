package ke

import (
	"github.com/vkernel/vkernel/pkg/ob"
)

// Semaphore is the yielding counting semaphore of spec.md §3/§4.2: the
// same FIFO waiter discipline as Mutex, with counting semantics instead
// of binary ownership.
type Semaphore struct {
	ob.Header
	sl      Spinlock
	waiters taskQueue
	current int
	max     int
}

// NewSemaphore returns a semaphore initialized to current, bounded at
// max.
func NewSemaphore(current, max int) *Semaphore {
	s := &Semaphore{current: current, max: max}
	s.Header.Init(ob.TypeSemaphore)
	return s
}

// Acquire decrements the count, suspending t if it would go negative.
func (s *Semaphore) Acquire(t *Task) {
	s.sl.Acquire(t)
	if s.current > 0 {
		s.current--
		s.sl.Release(t)
		return
	}
	s.waiters.pushBack(t)
	s.sl.Release(t)
	Suspend(t)
}

// Release increments the count and wakes one waiter, if any.
func (s *Semaphore) Release(t *Task) {
	s.sl.Acquire(t)
	next := s.waiters.popFront()
	if next != nil {
		s.sl.Release(t)
		Wake(next)
		return
	}
	if s.current < s.max {
		s.current++
	}
	s.sl.Release(t)
}

// Current returns the semaphore's count (racy w.r.t. concurrent
// Acquire/Release, intended for diagnostics/tests only).
func (s *Semaphore) Current() int {
	s.sl.Acquire(nil)
	defer s.sl.Release(nil)
	return s.current
}
