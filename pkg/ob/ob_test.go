package ob

import "testing"

func withStubbedExit(t *testing.T, fn func()) []int {
	t.Helper()
	var codes []int
	prev := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = prev }()
	fn()
	return codes
}

func TestLockUnlockRoundTrip(t *testing.T) {
	var h Header
	h.Init(TypeTask)

	codes := withStubbedExit(t, func() {
		h.Lock(TypeTask)
		h.Unlock(TypeTask)
	})
	if len(codes) != 0 {
		t.Fatalf("matched-magic lock/unlock panicked: %v", codes)
	}
}

func TestLockMagicMismatchPanics(t *testing.T) {
	var h Header
	h.Init(TypeTask)

	codes := withStubbedExit(t, func() {
		h.Lock(TypeMutex)
	})
	if len(codes) != 1 {
		t.Fatalf("exitFunc calls = %v, want exactly one magic-mismatch panic", codes)
	}
}

func TestUnlockMagicMismatchPanics(t *testing.T) {
	var h Header
	h.Init(TypeTask)

	codes := withStubbedExit(t, func() {
		h.Lock(TypeTask)
		h.Unlock(TypeMutex)
	})
	if len(codes) != 1 {
		t.Fatalf("exitFunc calls = %v, want exactly one magic-mismatch panic", codes)
	}
}

func TestUnlockUnbalancedPanics(t *testing.T) {
	var h Header
	h.Init(TypeTask)

	codes := withStubbedExit(t, func() {
		h.Unlock(TypeTask)
	})
	if len(codes) != 1 {
		t.Fatalf("exitFunc calls = %v, want exactly one unbalanced-unlock panic", codes)
	}
}
