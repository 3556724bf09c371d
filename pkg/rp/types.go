// Package rp implements the Request Packet engine (spec.md §4.7/§6):
// allocation, per-device FIFO queues with an at-most-one-in-flight
// policy, cancellation, and synchronous waiting built directly on top
// of pkg/ke's scheduler (an RP waiter suspends exactly the way a mutex
// waiter does). This is deliberately the point where the I/O dispatch
// pipeline and the task/scheduling substrate fuse, per spec.md §2's
// framing of the shared core.
package rp

import (
	"sync"

	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/ob"
)

// Code is the RP discriminator (spec.md §4.7).
type Code int

// RP codes.
const (
	CodeOpen Code = iota
	CodeClose
	CodeRead
	CodeWrite
	CodeIoctl
	CodeDiskControl
	CodeStorageControl
	CodeFilesystemControl
	CodeTerminalControl
)

func (c Code) String() string {
	switch c {
	case CodeOpen:
		return "OPEN"
	case CodeClose:
		return "CLOSE"
	case CodeRead:
		return "READ"
	case CodeWrite:
		return "WRITE"
	case CodeIoctl:
		return "IOCTL"
	case CodeDiskControl:
		return "DISK_CONTROL"
	case CodeStorageControl:
		return "STORAGE_CONTROL"
	case CodeFilesystemControl:
		return "FILESYSTEM_CONTROL"
	case CodeTerminalControl:
		return "TERMINAL_CONTROL"
	default:
		return "UNKNOWN"
	}
}

// state enforces spec.md §3's RP invariant: exactly one of
// (finalized, queued, in-flight) at any moment.
type state int

const (
	stateNew state = iota
	stateQueued
	stateInflight
	stateFinalized
)

// RP is a single request packet. The zero value is not usable; build
// one with New.
type RP struct {
	ob.Header

	mu sync.Mutex

	Code    Code
	Size    int
	Status  error
	Payload interface{}

	state state

	completionCallback func(r *RP)
	completionContext  interface{}
	cancelCallback     func(r *RP) error

	queue     *Queue
	initiator func(r *RP)
	waiters   []*ke.Task
}

// New allocates an RP in state "new" carrying code/payload. The payload
// must be of the type registered for code by registerPayload in
// payload.go's init; a mismatched or unregistered payload type is rejected so
// that a driver's type assertion on Payload can never panic on a wrong
// type (spec.md §3 "payload is a tagged union").
func New(code Code, payload interface{}) (*RP, error) {
	if err := checkPayloadType(code, payload); err != nil {
		return nil, err
	}
	r := &RP{Code: code, Payload: payload, state: stateNew}
	r.Header.Init(ob.TypeRP)
	return r, nil
}

// OnCompletion registers a callback invoked synchronously from
// Finalize, before any waiter is woken.
func (r *RP) OnCompletion(cb func(r *RP), ctx interface{}) {
	r.mu.Lock()
	r.completionCallback = cb
	r.completionContext = ctx
	r.mu.Unlock()
}

// OnCancel registers the driver's cancellation hook. Without one,
// Cancel returns ErrCancelNotSupported (spec.md §4.7).
func (r *RP) OnCancel(cb func(r *RP) error) {
	r.mu.Lock()
	r.cancelCallback = cb
	r.mu.Unlock()
}
