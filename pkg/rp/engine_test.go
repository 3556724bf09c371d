package rp

import (
	"errors"
	"runtime"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/status"
)

func TestNewRejectsMismatchedPayload(t *testing.T) {
	if _, err := New(CodeRead, &WritePayload{}); err != status.ErrBadType {
		t.Fatalf("got %v, want ErrBadType", err)
	}
}

func TestSendOnlyRunsFromStateNew(t *testing.T) {
	r, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ran := 0
	if err := Send(r, func(r *RP) error { ran++; Finalize(r, status.Ok); return nil }); err != nil {
		t.Fatalf("first Send: %v", err)
	}
	if err := Send(r, func(r *RP) error { ran++; return nil }); err != status.ErrRPProcessingFailed {
		t.Fatalf("second Send = %v, want ErrRPProcessingFailed", err)
	}
	if ran != 1 {
		t.Fatalf("dispatch ran %d times, want 1", ran)
	}
}

// TestReadPayloadDispatchFillsExpectedFields drives a ReadPayload
// through a driver-shaped dispatch that fills Buf/Transferred the way
// a real block driver would, then diffs the result against the
// payload spec.md §4.7 expects a READ completion to carry, rather than
// asserting field-by-field.
func TestReadPayloadDispatchFillsExpectedFields(t *testing.T) {
	want := &ReadPayload{
		Buf:         []byte("hello"),
		Offset:      10,
		Transferred: 5,
	}

	r, err := New(CodeRead, &ReadPayload{Buf: make([]byte, 5), Offset: 10})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Send(r, func(r *RP) error {
		p := r.Payload.(*ReadPayload)
		copy(p.Buf, "hello")
		p.Transferred = len(p.Buf)
		Finalize(r, status.Ok)
		return nil
	}); err != nil {
		t.Fatalf("Send: %v", err)
	}

	got := r.Payload.(*ReadPayload)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ReadPayload mismatch (-want +got):\n%s", diff)
	}
}

func TestCancelWithoutCallbackIsUnsupported(t *testing.T) {
	r, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := Cancel(r); err != status.ErrCancelNotSupported {
		t.Fatalf("got %v, want ErrCancelNotSupported", err)
	}
}

func TestCancelInvokesRegisteredCallback(t *testing.T) {
	r, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	called := false
	r.OnCancel(func(r *RP) error {
		called = true
		Finalize(r, status.ErrCancelNotSupported)
		return nil
	})
	if err := Cancel(r); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if !called {
		t.Fatal("expected the registered cancel callback to run")
	}
}

// TestWaitForCompletionWakesOnFinalize drives a real task through
// WaitForCompletion's suspend path (rather than racing Finalize against
// registration) by polling Task.State() until the task has actually
// parked, proving both that the completion callback runs before the
// waiter is woken and that the waiter observes the final status.
func TestWaitForCompletionWakesOnFinalize(t *testing.T) {
	r, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	callbackRan := false
	r.OnCompletion(func(r *RP) { callbackRan = true }, nil)

	wantErr := errors.New("synthetic read failure")
	var gotErr error
	done := make(chan struct{})

	tk := ke.NewTask("rp-waiter", "/rp-waiter", nil, ke.Normal, 0)
	ke.Sched.Enable(tk)
	ke.Spawn(tk, func(t *ke.Task) {
		gotErr = WaitForCompletion(t, r)
		close(done)
		ke.Exit(t, 0)
	})

	for i := 0; i < 100000 && tk.State() != ke.StateWaiting; i++ {
		runtime.Gosched()
	}
	if tk.State() != ke.StateWaiting {
		t.Fatal("waiter task never parked in WaitForCompletion")
	}

	Finalize(r, wantErr)
	<-done
	<-tk.Done()

	if gotErr != wantErr {
		t.Fatalf("WaitForCompletion returned %v, want %v", gotErr, wantErr)
	}
	if !callbackRan {
		t.Fatal("expected the completion callback to run before the waiter was woken")
	}
	if !r.IsFinalized() {
		t.Fatal("expected r to be finalized")
	}
}

// TestWaitForCompletionReturnsImmediatelyIfAlreadyFinalized covers the
// non-suspending fast path: a task that asks to wait on an RP that has
// already finished must not block at all.
func TestWaitForCompletionReturnsImmediatelyIfAlreadyFinalized(t *testing.T) {
	r, err := New(CodeRead, &ReadPayload{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	wantErr := errors.New("already done")
	Finalize(r, wantErr)

	tk := ke.NewTask("rp-immediate", "/rp-immediate", nil, ke.Normal, 0)
	ke.Sched.Enable(tk)
	done := make(chan struct{})
	var gotErr error
	ke.Spawn(tk, func(t *ke.Task) {
		gotErr = WaitForCompletion(t, r)
		close(done)
		ke.Exit(t, 0)
	})
	<-done
	<-tk.Done()
	if gotErr != wantErr {
		t.Fatalf("got %v, want %v", gotErr, wantErr)
	}
}
