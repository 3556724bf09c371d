package main

import (
	"context"
	"flag"
	"fmt"
	"sync"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ke"
)

// mutexDemo drives spec.md §8 scenario 3: a mutex held by one task
// while three others queue up behind it, released in strict FIFO
// enqueue order.
type mutexDemo struct{}

func (*mutexDemo) Name() string     { return "mutex-demo" }
func (*mutexDemo) Synopsis() string { return "three tasks contend for a held mutex in FIFO order" }
func (*mutexDemo) Usage() string {
	return "mutex-demo - show a mutex waking its waiters in enqueue order\n"
}
func (*mutexDemo) SetFlags(*flag.FlagSet) {}

func (*mutexDemo) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	m := ke.NewMutex()
	gate := ke.NewSemaphore(0, 1)
	acquired := make(chan struct{})

	var mu sync.Mutex
	var order []string
	record := func(name string) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	}

	owner := ke.NewTask("owner", "/owner", nil, ke.Normal, 0)
	ke.Sched.Enable(owner)
	ke.Spawn(owner, func(t *ke.Task) {
		m.Acquire(t)
		fmt.Println("owner acquired the mutex")
		close(acquired)
		gate.Acquire(t)
		m.Release(t)
		ke.Exit(t, 0)
	})
	<-acquired

	contend := func(name string) *ke.Task {
		t := ke.NewTask(name, "/"+name, nil, ke.Normal, 0)
		ke.Sched.Enable(t)
		ke.Spawn(t, func(t *ke.Task) {
			m.Acquire(t)
			record(t.Name)
			m.Release(t)
			ke.Exit(t, 0)
		})
		return t
	}

	waiters := []*ke.Task{contend("t1"), contend("t2"), contend("t3")}

	fmt.Println("releasing owner's gate; t1/t2/t3 are already queued on the mutex")
	gate.Release(nil)

	<-owner.Done()
	for _, t := range waiters {
		<-t.Done()
	}

	fmt.Printf("wake order: %v\n", order)
	return subcommands.ExitSuccess
}
