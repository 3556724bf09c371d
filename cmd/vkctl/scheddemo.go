package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ke"
)

// schedDemo drives spec.md §8 scenario 4: a Normal-priority task is
// dispatched onto an idle CPU, an Interactive-priority task is made
// ready behind it, and a timer tick preempts the running task in favor
// of the higher-priority one.
type schedDemo struct{}

func (*schedDemo) Name() string     { return "sched-demo" }
func (*schedDemo) Synopsis() string { return "a timer tick preempts for a higher-priority ready task" }
func (*schedDemo) Usage() string {
	return "sched-demo - show TimerTick's priority-preemption hook\n"
}
func (*schedDemo) SetFlags(*flag.FlagSet) {}

func (*schedDemo) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	blockA := make(chan struct{})
	blockB := make(chan struct{})

	a := ke.NewTask("sched-a", "/sched-a", nil, ke.Normal, 0)
	ke.Sched.Enable(a)
	ke.Spawn(a, func(t *ke.Task) {
		<-blockA
		ke.Exit(t, 0)
	})
	fmt.Printf("a dispatched: Current() = %s\n", ke.Sched.Current().Name)

	b := ke.NewTask("sched-b", "/sched-b", nil, ke.Interactive, 0)
	ke.Sched.Enable(b)
	ke.Spawn(b, func(t *ke.Task) {
		<-blockB
		ke.Exit(t, 0)
	})
	fmt.Printf("b enabled but not dispatched: Current() = %s, b.State() = %s\n",
		ke.Sched.Current().Name, b.State())

	ke.Sched.TimerTick()
	fmt.Printf("after TimerTick: Current() = %s, a.State() = %s\n",
		ke.Sched.Current().Name, a.State())

	close(blockB)
	<-b.Done()
	fmt.Printf("after b exits: Current() = %s\n", ke.Sched.Current().Name)

	close(blockA)
	<-a.Done()
	if cur := ke.Sched.Current(); cur != nil {
		fmt.Printf("after a exits: Current() = %s (want idle)\n", cur.Name)
		return subcommands.ExitFailure
	}
	fmt.Println("after a exits: CPU idle")
	return subcommands.ExitSuccess
}
