// Package tty implements the terminal driver of spec.md expansion
// §4.12: a driver owning zero or more virtual terminals, each backed
// by a real pty pair. Grounded in original_source/drivers/tty/*.c
// (TtyDispatch, TtyCreateDevice, the CREATE_VT/ACTIVATE ioctl pair)
// and drivers/tty/write.c's "write goes straight to the active
// display" shape.
package tty

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/containerd/console"
	"github.com/containerd/fifo"
	"github.com/kr/pty"
	"golang.org/x/sys/unix"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// DriverID is the well-known registry ID for this driver.
const DriverID = "tty"

// vtData is the original's struct TtyDeviceData, minus the fields this
// port doesn't need (name is carried by the VFS device file instead).
type vtData struct {
	id        int
	activated bool

	master *os.File // ptmx side, written to by WRITE
	slave  *os.File // tty side, not used directly but kept open
	con    console.Console

	// input buffers terminal input arriving before activation so it
	// isn't lost (original hardware would just not have anywhere to
	// send it yet either).
	input io.ReadWriteCloser

	writeQueue *rp.Queue
}

type driverState struct {
	mu      sync.Mutex
	nextVT  int
	parent  *ddk.Driver
}

// Entry is the driver image's single exported symbol, registered with
// a ddk.Registry/ddk.RegisterImage under DriverID.
func Entry(drv *ddk.Driver) error {
	st := &driverState{parent: drv}
	drv.Vtable.Dispatch = func(dev *ddk.Device, r *rp.RP) error { return dispatch(st, dev, r) }
	drv.Vtable.Init = func(drv *ddk.Driver) error {
		_, err := createVT(st, drv)
		return err
	}
	return nil
}

func createVT(st *driverState, drv *ddk.Driver) (*ddk.Device, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, status.ErrOutOfResources
	}
	con, err := console.ConsoleFromFile(master)
	if err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, status.ErrOutOfResources
	}

	st.mu.Lock()
	id := st.nextVT
	st.nextVT++
	st.mu.Unlock()

	fifoPath := filepath.Join(os.TempDir(), fmt.Sprintf("vkernel-tty-%d.fifo", id))
	in, err := fifo.OpenFifo(context.Background(), fifoPath, unix.O_CREAT|unix.O_RDWR|unix.O_NONBLOCK, 0600)
	if err != nil {
		_ = master.Close()
		_ = slave.Close()
		return nil, status.ErrOutOfResources
	}

	data := &vtData{
		id:         id,
		master:     master,
		slave:      slave,
		con:        con,
		input:      in,
		writeQueue: rp.NewQueue(false),
	}

	dev := ddk.CreateDevice(drv, ddk.DeviceTerminal, 0)
	dev.PrivateData = data

	name := fmt.Sprintf("tty%d", id)
	if _, err := vfs.CreateDeviceFile(dev, 0, name); err != nil {
		return nil, err
	}
	return dev, nil
}

func dispatch(st *driverState, dev *ddk.Device, r *rp.RP) error {
	data := dev.PrivateData.(*vtData)

	switch r.Code {
	case rp.CodeOpen, rp.CodeClose:
		rp.Finalize(r, status.Ok)
	case rp.CodeWrite:
		if !data.activated {
			rp.Finalize(r, status.ErrDeviceNotAvailable)
			return nil
		}
		data.writeQueue.StartRp(r, func(r *rp.RP) { finishWrite(data, r) })
	case rp.CodeIoctl:
		dispatchIoctl(st, dev, data, r)
	default:
		rp.Finalize(r, status.ErrRPProcessingFailed)
	}
	return nil
}

func finishWrite(data *vtData, r *rp.RP) {
	p := r.Payload.(*rp.WritePayload)
	n, err := data.master.Write(p.Buf)
	if err != nil {
		rp.Finalize(r, status.ErrRPProcessingFailed)
		return
	}
	p.Transferred = n
	rp.Finalize(r, status.Ok)
}

func dispatchIoctl(st *driverState, dev *ddk.Device, data *vtData, r *rp.RP) {
	p := r.Payload.(*rp.IoctlPayload)
	switch p.Subcode {
	case rp.IoctlCreateVT:
		newDev, err := createVT(st, dev.Driver)
		if err != nil {
			rp.Finalize(r, err)
			return
		}
		p.Out = newDev.PrivateData.(*vtData).id
		rp.Finalize(r, status.Ok)
	case rp.IoctlActivate:
		data.activated = true
		rp.Finalize(r, status.Ok)
	default:
		rp.Finalize(r, status.ErrIoctlUnknown)
	}
}
