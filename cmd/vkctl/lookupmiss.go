package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// lookupMiss drives spec.md §8 scenario 5: resolving a path with no
// backing node anywhere in the tree fails cleanly with
// ErrFileNotFound rather than panicking or returning a partial result.
type lookupMiss struct{}

func (*lookupMiss) Name() string     { return "lookup-miss" }
func (*lookupMiss) Synopsis() string { return "resolve a nonexistent path" }
func (*lookupMiss) Usage() string {
	return "lookup-miss [path] - show a VFS lookup miss (default /no/such/path)\n"
}
func (*lookupMiss) SetFlags(*flag.FlagSet) {}

func (*lookupMiss) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	path := "/no/such/path"
	if f.NArg() > 0 {
		path = f.Arg(0)
	}

	exit := subcommands.ExitSuccess
	runTask("lookup-miss", func(t *ke.Task) {
		n, err := vfs.Resolve(t, path)
		switch {
		case err == status.ErrFileNotFound:
			fmt.Printf("resolve %q -> ErrFileNotFound (expected)\n", path)
		case err != nil:
			fmt.Printf("resolve %q -> unexpected error %v\n", path, err)
			exit = subcommands.ExitFailure
		default:
			fmt.Printf("resolve %q unexpectedly succeeded: %s\n", path, n.Name)
			exit = subcommands.ExitFailure
		}
	})
	return exit
}
