package ke

import (
	"os"

	"github.com/vkernel/vkernel/pkg/klog"
)

// PanicCode is one of the stable panic codes of spec.md §6.
type PanicCode string

// Stable panic codes.
const (
	NonMaskableInterrupt   PanicCode = "NON_MASKABLE_INTERRUPT"
	DivisionByZero         PanicCode = "DIVISION_BY_ZERO"
	InvalidOpcode          PanicCode = "INVALID_OPCODE"
	DoubleFault            PanicCode = "DOUBLE_FAULT"
	GeneralProtectionFault PanicCode = "GENERAL_PROTECTION_FAULT"
	BootFailure            PanicCode = "BOOT_FAILURE"
	NoExecutableTask       PanicCode = "NO_EXECUTABLE_TASK"
	UnacquiredMutexReleased PanicCode = "UNACQUIRED_MUTEX_RELEASED"
	BusyMutexAcquired      PanicCode = "BUSY_MUTEX_ACQUIRED"
	PageFault              PanicCode = "PAGE_FAULT"
	MachineCheckFault      PanicCode = "MACHINE_CHECK_FAULT"
	UnexpectedFault        PanicCode = "UNEXPECTED_FAULT"
)

// exitFunc is overridden in tests so a simulated panic does not kill
// the test binary.
var exitFunc = os.Exit

// Panic logs code and a human-readable reason, then halts the
// (simulated) machine. There is no lower layer in this in-process
// simulation to hand a fatal condition to, so this is the one place
// the kernel terminates the process rather than returning a STATUS.
func Panic(code PanicCode, reason string) {
	klog.For("ke").WithField("panic", string(code)).Error(reason)
	exitFunc(1)
}
