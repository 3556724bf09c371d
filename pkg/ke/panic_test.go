package ke

import "testing"

// withStubbedExit replaces exitFunc for the duration of fn, recording
// every code Panic would have terminated the process with. Real test
// binaries must never actually exit, so this is the only way to
// exercise a PanicCode path end to end.
func withStubbedExit(t *testing.T, fn func()) []int {
	t.Helper()
	var codes []int
	prev := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = prev }()
	fn()
	return codes
}

func TestPanicInvokesExitFunc(t *testing.T) {
	codes := withStubbedExit(t, func() {
		Panic(UnexpectedFault, "synthetic fault for testing")
	})
	if len(codes) != 1 || codes[0] != 1 {
		t.Fatalf("exitFunc calls = %v, want [1]", codes)
	}
}
