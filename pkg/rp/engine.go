package rp

import (
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/status"
)

// DispatchFunc is a driver's entry point, invoked by Send. It either
// completes r synchronously (set r.Status, call Finalize, return) or
// hands r to its own per-device queue via Queue.StartRp and returns
// nil immediately, to be finalized later from a DPC/ISR.
type DispatchFunc func(r *RP) error

// Send dispatches r to a driver. This is the only entry point that
// runs a driver's Dispatch; StartRp (called by the driver, from inside
// Dispatch) is how a driver defers work to its per-device queue.
func Send(r *RP, dispatch DispatchFunc) error {
	r.mu.Lock()
	if r.state != stateNew {
		r.mu.Unlock()
		return status.ErrRPProcessingFailed
	}
	r.mu.Unlock()
	return dispatch(r)
}

// Finalize completes r: sets its terminal status, invokes the
// completion callback, wakes any task blocked in WaitForCompletion,
// detaches it from its queue, and starts the queue's next pending RP
// if r was the in-flight one (spec.md §4.7). Finalizing an
// already-finalized RP is the fatal double-finalize bug
// (spec.md §3/§8 property 6).
func Finalize(r *RP, finalStatus error) {
	r.mu.Lock()
	if r.state == stateFinalized {
		r.mu.Unlock()
		ke.Panic(ke.UnexpectedFault, status.ErrDoubleFinalize.Error())
		return
	}
	if status.IsFatal(finalStatus) {
		r.mu.Unlock()
		ke.Panic(ke.UnexpectedFault, finalStatus.Error())
		return
	}
	r.Status = finalStatus
	r.state = stateFinalized
	cb := r.completionCallback
	waiters := r.waiters
	r.waiters = nil
	q := r.queue
	r.mu.Unlock()

	if cb != nil {
		cb(r)
	}
	for _, w := range waiters {
		ke.Wake(w)
	}

	if q == nil {
		return
	}
	q.mu.Lock()
	var next *RP
	if q.inflight == r {
		q.inflight = nil
		next = q.popNextLocked()
	} else {
		for i, p := range q.pending {
			if p == r {
				q.pending = append(q.pending[:i], q.pending[i+1:]...)
				break
			}
		}
	}
	q.mu.Unlock()
	if next != nil {
		next.initiator(next)
	}
}

// Cancel asks the driver to cancel r via its registered cancelCallback.
// Without one, cancellation is advisory and this returns
// ErrCancelNotSupported (spec.md §4.7, Open Question b). A driver that
// accepts the cancellation is expected to call Finalize itself.
func Cancel(r *RP) error {
	r.mu.Lock()
	cb := r.cancelCallback
	r.mu.Unlock()
	if cb == nil {
		return status.ErrCancelNotSupported
	}
	return cb(r)
}

// WaitForCompletion suspends t until r is finalized, the yielding
// counterpart to polling r.Status (spec.md §4.7). It returns r's final
// status.
func WaitForCompletion(t *ke.Task, r *RP) error {
	r.mu.Lock()
	if r.state == stateFinalized {
		err := r.Status
		r.mu.Unlock()
		return err
	}
	r.waiters = append(r.waiters, t)
	r.mu.Unlock()

	ke.Suspend(t)

	r.mu.Lock()
	err := r.Status
	r.mu.Unlock()
	return err
}

// IsFinalized reports whether r has completed.
func (r *RP) IsFinalized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateFinalized
}
