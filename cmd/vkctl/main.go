// Command vkctl is the kernel's control/debug tool: one subcommand per
// end-to-end scenario of spec.md §8, each booting its own in-process
// kernel instance (driver registry, VFS, scheduler) and driving it
// through the syscall trampoline or the RP layer directly. Grounded in
// runsc/cli/main.go's Main (subcommand registration, flag.Parse,
// subcommands.Execute) and runsc/cmd/state.go's per-command shape.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/klog"
)

var debug = flag.Bool("debug", false, "enable debug-level logging")

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	const demoGroup = "demos"
	subcommands.Register(new(nullDemo), demoGroup)
	subcommands.Register(new(ttyDemo), demoGroup)
	subcommands.Register(new(mutexDemo), demoGroup)
	subcommands.Register(new(schedDemo), demoGroup)
	subcommands.Register(new(lookupMiss), demoGroup)
	subcommands.Register(new(fsProbe), demoGroup)
	subcommands.Register(new(taskFSDemo), demoGroup)

	flag.Parse()

	if *debug {
		klog.SetLevel("debug")
	}

	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

// fatalf reports err and returns subcommands.ExitFailure, the shape
// every demo's Execute funnels its terminal errors through.
func fatalf(format string, args ...interface{}) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
