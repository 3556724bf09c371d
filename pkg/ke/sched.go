package ke

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/vkernel/vkernel/pkg/klog"
)

// Scheduler is the single kernel-wide, single-owning-lock scheduler
// singleton (spec.md §9 "Global mutable state"). Real multiprocessor
// fan-out is explicitly out of scope (spec.md §1); per-core state could
// be split out of this struct without changing its contract.
type Scheduler struct {
	mu      sync.Mutex
	ready   [numMajorPriorities]taskQueue
	current *Task

	irqDisableDepth int32

	dpc *DPCQueue

	stopTick chan struct{}
}

// Sched is the kernel-wide scheduler instance.
var Sched = newScheduler()

func newScheduler() *Scheduler {
	s := &Scheduler{dpc: newDPCQueue()}
	return s
}

// DPC returns the scheduler's deferred-procedure-call queue (C5),
// drained at every return-to-thread boundary this package models
// (Yield's and Suspend's wakeup paths). The timer tick does not drain
// it.
func (s *Scheduler) DPC() *DPCQueue { return s.dpc }

// Enable transitions t from UNINITIALIZED to READY and, if no task is
// currently running, dispatches immediately (spec.md §4.3).
func (s *Scheduler) Enable(t *Task) {
	t.mu.Lock()
	if t.state != StateUninitialized {
		t.mu.Unlock()
		return
	}
	t.state = StateReady
	t.mu.Unlock()

	s.mu.Lock()
	s.ready[t.MajorPriority].pushByMinor(t)
	if s.current == nil {
		s.dispatchLocked()
	}
	s.mu.Unlock()
}

// Yield voluntarily gives up the CPU: t (which must be the currently
// running task) moves RUNNING->READY, is re-enqueued, and the scheduler
// dispatches the next ready task. Yield returns only when t is
// rescheduled (spec.md §4.3).
func Yield(t *Task) {
	assertNotHoldingSpinlock(t)
	Sched.mu.Lock()
	if Sched.current != t {
		Sched.mu.Unlock()
		return
	}
	t.setState(StateReady)
	Sched.ready[t.MajorPriority].pushByMinor(t)
	Sched.current = nil
	Sched.dispatchLocked()
	Sched.mu.Unlock()
	<-t.resume
	Sched.drainDPCs()
}

// Suspend transitions t (the currently running task) RUNNING->WAITING
// and dispatches the next ready task. The caller must already have
// linked t onto the waiter queue it intends (spec.md §4.2: "the current
// TCB is enqueued under the [primitive's] internal spinlock" before
// Suspend is called) — Suspend only performs the scheduling half of
// that transition.
func Suspend(t *Task) {
	assertNotHoldingSpinlock(t)
	Sched.mu.Lock()
	t.setState(StateWaiting)
	Sched.current = nil
	Sched.dispatchLocked()
	Sched.mu.Unlock()
	<-t.resume
	Sched.drainDPCs()
}

// Wake transitions t WAITING->READY and enqueues it for scheduling. The
// caller must already have removed t from whatever waiter queue it was
// on. Waking a waiter does not immediately preempt the running task
// (spec.md §4.2) unless the CPU was idle.
func Wake(t *Task) {
	Sched.mu.Lock()
	t.setState(StateReady)
	Sched.ready[t.MajorPriority].pushByMinor(t)
	if Sched.current == nil {
		Sched.dispatchLocked()
	}
	Sched.mu.Unlock()
}

// Exit transitions t to TERMINATED with the given exit status and
// yields the CPU if t was running.
func Exit(t *Task, exitStatus int32) {
	t.mu.Lock()
	t.state = StateTerminated
	t.mu.Unlock()
	atomic.StoreInt32(&t.ExitStatus, exitStatus)

	Sched.mu.Lock()
	if Sched.current == t {
		Sched.current = nil
		Sched.dispatchLocked()
	}
	Sched.mu.Unlock()
	close(t.done)
}

// dispatchLocked picks the highest-major-priority ready task (minor
// priority and FIFO order broken within taskQueue.pushByMinor) and
// resumes its goroutine. Sched.mu must be held.
func (s *Scheduler) dispatchLocked() {
	for maj := Highest; maj < numMajorPriorities; maj++ {
		if n := s.ready[maj].popFront(); n != nil {
			n.setState(StateRunning)
			s.current = n
			select {
			case n.resume <- struct{}{}:
			default:
			}
			return
		}
	}
	// CPU idle: no READY task exists.
}

// Current returns the task the scheduler believes is RUNNING, or nil if
// idle.
func (s *Scheduler) Current() *Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// disableInterrupts and restoreInterrupts stand in for CLI/STI: they
// mask the simulated timer tick so that code holding a Spinlock cannot
// be preempted by it, mirroring the real IRQ-disable a spinlock
// performs on bare metal.
func (s *Scheduler) disableInterrupts() uint32 {
	prev := atomic.AddInt32(&s.irqDisableDepth, 1)
	return uint32(prev - 1)
}

func (s *Scheduler) restoreInterrupts(savedDepth uint32) {
	atomic.StoreInt32(&s.irqDisableDepth, int32(savedDepth))
}

func (s *Scheduler) interruptsDisabled() bool {
	return atomic.LoadInt32(&s.irqDisableDepth) > 0
}

// StartTimer launches the simulated timer-tick source: a
// golang.org/x/time/rate limiter standing in for the PIT/APIC timer
// interrupt (spec.md §5). Each tick calls TimerTick, which implements
// the preemption hook of spec.md §4.3. Call the returned func to stop.
func (s *Scheduler) StartTimer(hz float64) (stop func()) {
	lim := rate.NewLimiter(rate.Limit(hz), 1)
	stopCh := make(chan struct{})
	go func() {
		for {
			select {
			case <-stopCh:
				return
			default:
			}
			if err := lim.Wait(tickContext); err != nil {
				return
			}
			s.TimerTick()
		}
	}()
	return func() { close(stopCh) }
}

// tickContext bounds the limiter's Wait to a context that is never
// cancelled from this package's perspective; StartTimer's stop()
// instead races the next tick and returns.
var tickContext = context.Background()

// TimerTick implements the timer-IRQ preemption hook (spec.md §4.3,
// testable property 5): if a strictly-higher-major-priority task is
// READY, the current task is preempted in its favor.
func (s *Scheduler) TimerTick() {
	if s.interruptsDisabled() {
		// A spinlock holder has interrupts masked; the tick is
		// dropped, matching real hardware coalescing a pending
		// timer IRQ until EOI.
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		s.dispatchLocked()
		return
	}
	for maj := Highest; maj < s.current.MajorPriority; maj++ {
		if !s.ready[maj].empty() {
			old := s.current
			old.setState(StateReady)
			s.ready[old.MajorPriority].pushByMinor(old)
			s.current = nil
			s.dispatchLocked()
			klog.For("ke").WithField("preempted", old.TID).Debug("timer tick preempted running task")
			return
		}
	}
}

// assertNotHoldingSpinlock implements the debug-mode invariant of
// spec.md §5 ("No lock is held across a yielding call"): suspending a
// task that holds a Spinlock is a programming error.
func assertNotHoldingSpinlock(t *Task) {
	if atomic.LoadInt32(&t.spinDepth) != 0 {
		Panic(UnexpectedFault, "task suspended while holding a spinlock")
	}
}

// drainDPCs runs the DPC queue drain whenever a task returns from a
// suspension point to thread context (spec.md §4.4).
func (s *Scheduler) drainDPCs() {
	s.dpc.Drain()
}
