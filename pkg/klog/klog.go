// Package klog is the kernel's single logging chokepoint. Every
// subsystem logs through here instead of fmt/log directly, matching the
// teacher's pattern of a lone logging package fronting a real library
// (here, logrus instead of gVisor's in-house pkg/log).
package klog

import (
	"os"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

func init() {
	root.SetOutput(os.Stderr)
	root.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	root.SetLevel(logrus.InfoLevel)
}

// SetLevel adjusts the root logger's verbosity ("debug", "info", "warn",
// "error"). Unknown levels are ignored.
func SetLevel(level string) {
	if lv, err := logrus.ParseLevel(level); err == nil {
		root.SetLevel(lv)
	}
}

// For returns a logger scoped to subsystem ("ke", "vfs", "ddk", "rp",
// ...), the kernel-wide equivalent of a per-component syslog facility.
func For(subsystem string) *logrus.Entry {
	return root.WithField("subsys", subsystem)
}

// ForTask returns a logger scoped to subsystem and a task id, used by
// the scheduler and syscall trampoline to tag every line with its tid.
func ForTask(subsystem string, tid uint64) *logrus.Entry {
	return root.WithField("subsys", subsystem).WithField("tid", tid)
}
