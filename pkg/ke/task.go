// Package ke (kernel executive) implements the task/TCB state machine,
// the priority scheduler, the yielding synchronization primitives built
// on top of it, and the DPC queue. Naming follows original_source's
// api/ke headers (task.h, sched.h, mutex.h, core/dpc.h, panic.h); the
// cooperative scheduling loop is grounded in the teacher's
// sys_sched.go priority surface and in other_examples' standalone Go
// kernel scheduler loops (biscuit, inos_v1).
package ke

import (
	"sync"
	"sync/atomic"

	"github.com/vkernel/vkernel/pkg/ob"
)

// MajorPriority is the coarse scheduling class (spec.md §3).
type MajorPriority int

// Major priority classes, strictly ordered (lower numeric value runs
// first).
const (
	Highest MajorPriority = iota
	Interactive
	Normal
	Background
	Lowest
	numMajorPriorities
)

// State is the TCB's position in the scheduling state machine
// (spec.md §4.3).
type State int

// Task states.
const (
	StateUninitialized State = iota
	StateReady
	StateRunning
	StateWaiting
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateRunning:
		return "running"
	case StateWaiting:
		return "waiting"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

var nextTID uint64

// Task is the Task Control Block (TCB). The first field is the common
// object header so that a *Task can be locked generically via pkg/ob.
type Task struct {
	ob.Header

	mu sync.Mutex

	TID       uint64
	PID       uint64
	Parent    *Task
	Name      string // bounded to nameMax, truncated by NewTask
	ImagePath string

	MajorPriority MajorPriority
	MinorPriority int // 0..15
	state         State
	requestedState State

	// Intrusive queue linkage: a Task is a member of at most one
	// taskQueue (ready queue or a sync primitive's waiter queue) at a
	// time.
	queue      *taskQueue
	qnext, qprev *Task

	// Resources.
	Files      *FileTable
	ExitStatus int32

	// Creds is a placeholder credential pair rendered into
	// /task/<tid>/status; the syscall surface has no permission model
	// of its own (spec.md Non-goals), so this exists purely for
	// TaskFS's benefit.
	Creds Creds

	refCount int32
	spinDepth int32

	resume chan struct{}
	done   chan struct{}
}

const nameMax = 32

// Creds is the TCB's placeholder identity, surfaced read-only through
// TaskFS.
type Creds struct {
	UID uint32
	GID uint32
}

// NewTask allocates and initializes a TCB in state UNINITIALIZED. It is
// not runnable until the scheduler's Enable transitions it to READY.
func NewTask(name, imagePath string, parent *Task, major MajorPriority, minor int) *Task {
	if len(name) > nameMax {
		name = name[:nameMax]
	}
	t := &Task{
		TID:           atomic.AddUint64(&nextTID, 1),
		Name:          name,
		ImagePath:     imagePath,
		Parent:        parent,
		MajorPriority: major,
		MinorPriority: minor,
		state:         StateUninitialized,
		Files:         NewFileTable(),
		resume:        make(chan struct{}, 1),
		done:          make(chan struct{}),
		refCount:      1,
	}
	t.Header.Init(ob.TypeTask)
	registerTask(t)
	return t
}

// State returns the task's current scheduling state under the TCB lock.
func (t *Task) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// IncRef increments the TCB reference count.
func (t *Task) IncRef() { atomic.AddInt32(&t.refCount, 1) }

// DecRef decrements the TCB reference count. The TCB may only be
// reclaimed once it reaches TERMINATED with a zero reference count
// (spec.md §3 invariant iii); DecRef itself does not free anything, it
// just reports whether the caller observed the terminal condition.
func (t *Task) DecRef() (reclaimable bool) {
	n := atomic.AddInt32(&t.refCount, -1)
	return n == 0 && t.State() == StateTerminated
}

