package ke

import (
	"sync/atomic"
)

// Spinlock is the non-yielding, IRQ-safe primitive of spec.md §3/§4.2:
// Acquire disables the (simulated) timer interrupt, saves its previous
// state, and spins on a CAS; Release restores interrupts to the saved
// state. Sleeping (Yield/Suspend) while holding a Spinlock is illegal;
// debug builds assert this via Task.spinDepth.
type Spinlock struct {
	locked     uint32
	savedDepth uint32
}

// Acquire blocks interrupts for the caller t and spins until the lock
// is free.
func (s *Spinlock) Acquire(t *Task) {
	saved := Sched.disableInterrupts()
	for !atomic.CompareAndSwapUint32(&s.locked, 0, 1) {
		// IRQ-safe spin: no yield permitted here, by construction
		// (this path never calls Yield/Suspend).
	}
	s.savedDepth = saved
	if t != nil {
		atomic.AddInt32(&t.spinDepth, 1)
	}
}

// Release unlocks s and restores interrupts to the state Acquire
// observed. Releasing a lock that is not held is a fatal bug; the
// lock records no owner, so a release by a task other than the holder
// is not detected.
func (s *Spinlock) Release(t *Task) {
	if !atomic.CompareAndSwapUint32(&s.locked, 1, 0) {
		Panic(UnexpectedFault, "spinlock released while not held")
		return
	}
	Sched.restoreInterrupts(s.savedDepth)
	if t != nil {
		atomic.AddInt32(&t.spinDepth, -1)
	}
}
