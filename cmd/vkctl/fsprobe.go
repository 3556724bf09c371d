package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/drivers/memfs"
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
	"github.com/vkernel/vkernel/pkg/vol"
)

// fsProbe drives spec.md §8 scenario 6: three registered filesystem
// drivers probe a disk concurrently, only memfs recognizes its
// signature, its FSDO gets mounted, and a file seeded directly into
// the in-memory tree resolves through the mount point.
type fsProbe struct{}

func (*fsProbe) Name() string     { return "fs-probe" }
func (*fsProbe) Synopsis() string { return "three filesystem drivers probe a disk, memfs wins" }
func (*fsProbe) Usage() string {
	return "fs-probe - show LoadDriversForFilesystem picking a winner and mounting it\n"
}
func (*fsProbe) SetFlags(*flag.FlagSet) {}

// losingFsEntry builds a driver image that claims the FILESYSTEM flag
// but never recognizes any disk, standing in for the competing
// filesystem drivers spec.md §8 scenario 6 calls for alongside memfs.
func losingFsEntry(drv *ddk.Driver) error {
	drv.Flags |= ddk.DriverFilesystem
	drv.Vtable.Dispatch = func(dev *ddk.Device, r *rp.RP) error {
		rp.Finalize(r, status.ErrRPProcessingFailed)
		return nil
	}
	drv.Vtable.VerifyFs = func(drv *ddk.Driver, disk *ddk.Device) error {
		return status.ErrNotCompatible
	}
	return nil
}

func (*fsProbe) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	reg, err := newRegistry(`
[[entry]]
device_id = "fs-probe-disk"
drivers = ["fs-no-1", "fs-no-2", "memfs"]
main_driver = "memfs"
`)
	if err != nil {
		return fatalf("newRegistry: %v", err)
	}
	reg.RegisterDriverImage("fs-no-1", losingFsEntry)
	reg.RegisterDriverImage("fs-no-2", losingFsEntry)
	reg.RegisterDriverImage(memfs.DriverID, memfs.Entry)
	if _, err := reg.LoadDriversForDevice("fs-probe-disk", nil); err != nil {
		return fatalf("LoadDriversForDevice(fs-probe-disk): %v", err)
	}

	f, err := os.CreateTemp("", "vkctl-fs-probe-*.img")
	if err != nil {
		return fatalf("creating backing file: %v", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.Write(memfs.Signature); err != nil {
		return fatalf("writing signature: %v", err)
	}

	diskDrv := &ddk.Driver{ID: "fs-probe-disk-driver"}
	disk := ddk.CreateDevice(diskDrv, ddk.DeviceDisk, 0)
	disk.BindHostFile(f, 1, 1)

	winner, err := reg.LoadDriversForFilesystem(disk)
	if err != nil {
		return fatalf("LoadDriversForFilesystem: %v", err)
	}
	fmt.Printf("filesystem probe winner: %s\n", winner.ID)

	v, err := vol.RegisterVolume(disk, 0, "")
	if err != nil {
		return fatalf("RegisterVolume: %v", err)
	}
	if err := vol.Mount(reg, v, vfs.Root(), "myvol"); err != nil {
		return fatalf("Mount: %v", err)
	}
	fmt.Println("mounted memfs at /myvol")

	if err := memfs.CreateFile(v.FSDev, "hello.txt", []byte("hi from memfs")); err != nil {
		return fatalf("seeding file: %v", err)
	}

	exit := subcommands.ExitSuccess
	runTask("fs-probe", func(t *ke.Task) {
		n, err := vfs.Resolve(t, "/myvol/hello.txt")
		if err != nil {
			fmt.Printf("resolve /myvol/hello.txt: %v\n", err)
			exit = subcommands.ExitFailure
			return
		}
		fmt.Printf("resolved /myvol/hello.txt -> node %q\n", n.Name)
	})
	return exit
}
