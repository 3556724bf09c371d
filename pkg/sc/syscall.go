// Package sc implements the five-syscall trampoline of spec.md §4.10:
// EXIT, OPEN, CLOSE, READ, WRITE, each running in the calling task's
// own context and reporting its STATUS directly. Dispatch-table shape
// and naming follow original_source's kernel32/ke/sys/syscall.c; the
// command-style entry points mirror the teacher's
// pkg/sentry/syscalls/linux/syscalls.go table.
package sc

import (
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// Code is a syscall number (spec.md §4.10).
type Code uint32

// Syscall codes.
const (
	None Code = iota
	Exit
	Open
	Close
	Read
	Write
	numSyscalls
)

// OpenFile is what FileHandle slots in a TCB's FileTable hold: the
// resolved VFS node plus a private read/write cursor. pkg/ke stores it
// behind an interface{} to avoid importing pkg/vfs.
type OpenFile struct {
	Node   *vfs.Node
	Offset int64
}

// DoExit implements SYSCALL_EXIT: terminates t with exitStatus. Always
// succeeds, matching the original's KeSyscallNone/Exit having no
// failure path of their own.
func DoExit(t *ke.Task, exitStatus int32) error {
	ke.Exit(t, exitStatus)
	return nil
}

// DoOpen implements SYSCALL_OPEN: resolves path through the VFS and
// installs a new OpenFile in t's file table, returning its handle.
func DoOpen(t *ke.Task, path string) (ke.FileHandle, error) {
	n, err := vfs.Resolve(t, path)
	if err != nil {
		return -1, err
	}
	h := t.Files.Add(&OpenFile{Node: n})
	return h, nil
}

// DoClose implements SYSCALL_CLOSE: removes handle from t's file
// table. Closing an unopened handle is ErrFileNotFound, matching the
// original's IoCloseFile failing on an invalid handle.
func DoClose(t *ke.Task, handle ke.FileHandle) error {
	if _, ok := t.Files.Remove(handle); !ok {
		return status.ErrFileNotFound
	}
	return nil
}

// DoRead implements SYSCALL_READ: issues a READ RP against handle's
// backing device and returns bytes actually transferred (0 on error,
// spec.md §4.10).
func DoRead(t *ke.Task, handle ke.FileHandle, buf []byte, offset int64) (int, error) {
	of, err := openFileFor(t, handle)
	if err != nil {
		return 0, err
	}
	dev := of.Node.Device
	if dev == nil {
		return 0, status.ErrDeviceNotAvailable
	}

	payload := &rp.ReadPayload{Buf: buf, Offset: offset}
	r, err := rp.New(rp.CodeRead, payload)
	if err != nil {
		return 0, err
	}
	if err := rp.Send(r, func(r *rp.RP) error {
		return dev.Driver.Vtable.Dispatch(dev, r)
	}); err != nil {
		return 0, err
	}
	if err := rp.WaitForCompletion(t, r); err != nil {
		return 0, err
	}
	of.Offset = offset + int64(payload.Transferred)
	return payload.Transferred, nil
}

// DoWrite implements SYSCALL_WRITE, the write counterpart of DoRead.
func DoWrite(t *ke.Task, handle ke.FileHandle, buf []byte, offset int64) (int, error) {
	of, err := openFileFor(t, handle)
	if err != nil {
		return 0, err
	}
	dev := of.Node.Device
	if dev == nil {
		return 0, status.ErrDeviceNotAvailable
	}

	payload := &rp.WritePayload{Buf: buf, Offset: offset}
	r, err := rp.New(rp.CodeWrite, payload)
	if err != nil {
		return 0, err
	}
	if err := rp.Send(r, func(r *rp.RP) error {
		return dev.Driver.Vtable.Dispatch(dev, r)
	}); err != nil {
		return 0, err
	}
	if err := rp.WaitForCompletion(t, r); err != nil {
		return 0, err
	}
	of.Offset = offset + int64(payload.Transferred)
	return payload.Transferred, nil
}

func openFileFor(t *ke.Task, handle ke.FileHandle) (*OpenFile, error) {
	v, ok := t.Files.Get(handle)
	if !ok {
		return nil, status.ErrFileNotFound
	}
	of, ok := v.(*OpenFile)
	if !ok {
		return nil, status.ErrBadType
	}
	return of, nil
}

// Perform is the syscall dispatch trampoline itself
// (spec.md §4.10/original KePerformSyscall): an unknown code fails
// with ErrSyscallCodeUnknown rather than panicking, since a bad
// syscall number from user context is a caller error, not a kernel
// bug.
func Perform(t *ke.Task, code Code, args Args) (Result, error) {
	switch code {
	case None:
		return Result{}, nil
	case Exit:
		return Result{}, DoExit(t, args.ExitStatus)
	case Open:
		h, err := DoOpen(t, args.Path)
		return Result{Handle: h}, err
	case Close:
		return Result{}, DoClose(t, args.Handle)
	case Read:
		n, err := DoRead(t, args.Handle, args.Buf, args.Offset)
		return Result{Transferred: n}, err
	case Write:
		n, err := DoWrite(t, args.Handle, args.Buf, args.Offset)
		return Result{Transferred: n}, err
	default:
		return Result{}, status.ErrSyscallCodeUnknown
	}
}

// Args bundles every syscall's possible arguments; Perform reads only
// the fields its code needs, the Go analogue of the original's five
// uintptr_t registers.
type Args struct {
	ExitStatus int32
	Path       string
	Handle     ke.FileHandle
	Buf        []byte
	Offset     int64
}

// Result bundles every syscall's possible return value.
type Result struct {
	Handle      ke.FileHandle
	Transferred int
}
