package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// taskFSDemo drives the spec.md expansion §4.11 TaskFS component end
// to end: a task running under runTask is already published at
// /task/<tid> by the time this subcommand starts, so this resolves its
// status node by path exactly as a real caller walking the VFS would
// and prints its content. The cmdline node is not read.
type taskFSDemo struct{}

func (*taskFSDemo) Name() string     { return "taskfs-demo" }
func (*taskFSDemo) Synopsis() string { return "resolve a running task's /task/<tid>/status entry" }
func (*taskFSDemo) Usage() string {
	return "taskfs-demo - resolve and print /task/<tid>/status\n"
}
func (*taskFSDemo) SetFlags(*flag.FlagSet) {}

func (*taskFSDemo) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	exit := subcommands.ExitSuccess
	t := runTask("taskfs-demo", func(t *ke.Task) {
		path := fmt.Sprintf("/task/%d/status", t.TID)
		n, err := vfs.Resolve(t, path)
		if err != nil {
			fmt.Printf("resolve %s: %v\n", path, err)
			exit = subcommands.ExitFailure
			return
		}
		content, err := vfs.ReadTaskFile(n)
		if err != nil {
			fmt.Printf("ReadTaskFile: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		fmt.Printf("%s:\n%s", path, content)
	})
	fmt.Printf("task %d finished in state %s\n", t.TID, t.State())
	return exit
}
