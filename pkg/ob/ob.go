// Package ob implements the kernel's object header: a magic number plus
// an embedded spinlock at a fixed offset in every registered object
// type, and the generic Lock/Unlock pair that validates the magic
// before delegating to the embedded lock.
//
// Every kernel object (TCB, Driver Object, Device Object, Volume Node,
// VFS Node, RP, Mutex, Semaphore) embeds Header as its first field so
// that a bare *Header recovered from any of them can be locked
// generically.
package ob

import (
	"fmt"
	"sync/atomic"
)

// Type identifies the concrete object kind a Header belongs to, checked
// by Lock/Unlock against the magic a caller expects.
type Type uint32

// Registered object types. Values are arbitrary but stable within a
// process; a mismatch between the Type a caller passes to Lock and the
// Header's own Magic is a fatal bug, never a silently-wrong-type
// acquire.
const (
	TypeNone Type = iota
	TypeTask
	TypeMutex
	TypeSemaphore
	TypeDriver
	TypeDevice
	TypeVolume
	TypeVFSNode
	TypeRP
)

// Header is the first field of every kernel object. lock is a raw
// uint32 spinlock; it must not be used directly except through Lock and
// Unlock below, which validate Magic first.
type Header struct {
	Magic Type
	lock  uint32
}

// Init stamps h with its object type. Must be called exactly once,
// before h is published to any other goroutine.
func (h *Header) Init(t Type) {
	h.Magic = t
}

// Lock acquires h's embedded spinlock after verifying that h's Magic
// equals want. A mismatch means the caller is treating memory as the
// wrong object type, which is always a programming error: it panics
// rather than silently acquiring a foreign lock.
func (h *Header) Lock(want Type) {
	if h.Magic != want {
		Panic(fmt.Sprintf("object header magic mismatch: have %v want %v", h.Magic, want))
		return
	}
	for !atomic.CompareAndSwapUint32(&h.lock, 0, 1) {
		// busy-wait; the embedded lock is intentionally not
		// yielding (see pkg/ke.Spinlock for the IRQ-safe variant
		// used by interrupt-time code).
	}
}

// Unlock releases h's embedded spinlock. Unlock without a matching Lock
// is a fatal bug.
func (h *Header) Unlock(want Type) {
	if h.Magic != want {
		Panic(fmt.Sprintf("object header magic mismatch: have %v want %v", h.Magic, want))
		return
	}
	if !atomic.CompareAndSwapUint32(&h.lock, 1, 0) {
		Panic("unbalanced unlock on object header")
		return
	}
}
