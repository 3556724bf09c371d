package main

import (
	"fmt"
	"os"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// newRegistry builds a driver registry backed by a TOML config blob,
// the in-process stand-in for the external driver database spec.md
// §4.5 describes loading at boot.
func newRegistry(configTOML string) (*ddk.Registry, error) {
	db, err := ddk.LoadDatabase([]byte(configTOML))
	if err != nil {
		return nil, err
	}
	return ddk.NewRegistry(db), nil
}

// runTask spawns a fresh task at Normal priority, enables it, runs fn
// to completion on it and blocks the caller until it exits. Every demo
// that needs to issue a syscall or wait on an RP does so from inside
// one of these, since the yielding primitives (rp.WaitForCompletion,
// ke.Mutex, ke.Semaphore) all require a real scheduled task context
// rather than the CLI's own goroutine.
//
// Publishing the task under /task happens here, alongside the /dev
// mount drivers attach themselves to, so every demo's task is visible
// through the same virtual filesystem a real boot would expose it
// through rather than only through TaskDirNode's unit test.
func runTask(name string, fn func(t *ke.Task)) *ke.Task {
	t := ke.NewTask(name, "/"+name, nil, ke.Normal, 0)
	ke.Sched.Enable(t)
	if _, err := vfs.AttachTask(t); err != nil {
		fmt.Fprintf(os.Stderr, "vfs.AttachTask(%s): %v\n", name, err)
	}
	ke.Spawn(t, func(t *ke.Task) {
		fn(t)
		ke.Exit(t, 0)
	})
	<-t.Done()
	return t
}
