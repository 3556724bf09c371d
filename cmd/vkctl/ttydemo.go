package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/drivers/tty"
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/sc"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// ttyDemo drives spec.md §8 scenario 2: IOCTL CREATE_VT then ACTIVATE
// on a terminal device, showing a write issued before ACTIVATE fails
// with ErrDeviceNotAvailable and one issued after succeeds.
type ttyDemo struct{}

func (*ttyDemo) Name() string     { return "tty-demo" }
func (*ttyDemo) Synopsis() string { return "IOCTL CREATE_VT/ACTIVATE against a virtual terminal" }
func (*ttyDemo) Usage() string {
	return "tty-demo - exercise the terminal driver's ioctl and activation gate\n"
}
func (*ttyDemo) SetFlags(*flag.FlagSet) {}

func (*ttyDemo) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	reg, err := newRegistry(`
[[entry]]
device_id = "tty"
drivers = ["tty"]
main_driver = "tty"
`)
	if err != nil {
		return fatalf("newRegistry: %v", err)
	}
	reg.RegisterDriverImage(tty.DriverID, tty.Entry)
	if _, err := reg.LoadDriversForDevice(tty.DriverID, nil); err != nil {
		return fatalf("LoadDriversForDevice(tty): %v", err)
	}

	exit := subcommands.ExitSuccess
	runTask("tty-demo", func(t *ke.Task) {
		n, err := vfs.Resolve(t, "/dev/tty0")
		if err != nil {
			fmt.Printf("resolve /dev/tty0: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		dev := n.Device

		h, err := sc.DoOpen(t, "/dev/tty0")
		if err != nil {
			fmt.Printf("open /dev/tty0: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}

		newID, err := ioctl(t, dev, rp.IoctlCreateVT, nil)
		if err != nil {
			fmt.Printf("ioctl CREATE_VT: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		fmt.Printf("ioctl CREATE_VT -> new vtid %v\n", newID)

		if _, err := sc.DoWrite(t, h, []byte("too early"), 0); err == status.ErrDeviceNotAvailable {
			fmt.Println("write before ACTIVATE -> ErrDeviceNotAvailable (expected)")
		} else if err != nil {
			fmt.Printf("write before ACTIVATE: unexpected error %v\n", err)
			exit = subcommands.ExitFailure
			return
		} else {
			fmt.Println("write before ACTIVATE: unexpectedly succeeded")
			exit = subcommands.ExitFailure
			return
		}

		if _, err := ioctl(t, dev, rp.IoctlActivate, nil); err != nil {
			fmt.Printf("ioctl ACTIVATE: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		fmt.Println("ioctl ACTIVATE -> ok")

		written, err := sc.DoWrite(t, h, []byte("hello, terminal\n"), 0)
		if err != nil {
			fmt.Printf("write after ACTIVATE: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		fmt.Printf("write after ACTIVATE -> transferred %d\n", written)

		_ = sc.DoClose(t, h)
	})
	return exit
}

// ioctl issues an IOCTL RP against dev and returns its Out field on
// success, the CLI's stand-in for a dedicated sc.DoIoctl syscall
// (spec.md's five syscalls do not include IOCTL; it is exercised
// directly at the RP layer here, same as a driver-to-driver call).
func ioctl(t *ke.Task, dev *ddk.Device, subcode rp.IoctlSubcode, in []byte) (interface{}, error) {
	payload := &rp.IoctlPayload{Subcode: subcode, In: in}
	r, err := rp.New(rp.CodeIoctl, payload)
	if err != nil {
		return nil, err
	}
	if err := rp.Send(r, func(r *rp.RP) error {
		return dev.Driver.Vtable.Dispatch(dev, r)
	}); err != nil {
		return nil, err
	}
	if err := rp.WaitForCompletion(t, r); err != nil {
		return nil, err
	}
	return payload.Out, nil
}
