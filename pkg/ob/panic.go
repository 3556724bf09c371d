package ob

import (
	"os"

	"github.com/vkernel/vkernel/pkg/klog"
)

// exitFunc is overridden in tests so a simulated panic does not kill
// the test binary — the same seam pkg/ke.Panic uses. pkg/ob cannot
// import pkg/ke for this (ke.Task embeds ob.Header, so the import
// would cycle back), so it carries its own copy of the one exit path
// rather than sharing pkg/ke's.
var exitFunc = os.Exit

// Panic logs reason and halts the process. Object header corruption —
// a magic mismatch, an unbalanced unlock — is a fatal bug
// (spec.md:45, "a mismatch is a fatal bug (panic)"): there is no lower
// layer to hand it to, so this is the one place pkg/ob terminates the
// process rather than returning to its caller.
func Panic(reason string) {
	klog.For("ob").Error(reason)
	exitFunc(1)
}
