// Package nulldev implements the null device driver of spec.md
// expansion §4.12: WRITE always reports every byte consumed, READ
// always reports zero bytes transferred. Grounded directly on
// original_source/drivers/null/main.c (NullDispatch/NullInit).
package nulldev

import (
	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// DriverID is the well-known registry ID for this driver.
const DriverID = "null"

// Entry is the driver image's single exported symbol
// (DRIVER_ENTRY in the original), registered with a
// ddk.Registry/ddk.RegisterImage under DriverID.
func Entry(drv *ddk.Driver) error {
	drv.Vtable.Dispatch = dispatch
	drv.Vtable.Init = initDriver
	return nil
}

func initDriver(drv *ddk.Driver) error {
	dev := ddk.CreateDevice(drv, ddk.DeviceOther,
		ddk.DeviceHidden|ddk.DeviceDirectIO|ddk.DeviceBufferedIO|ddk.DeviceStandalone|ddk.DevicePersistent)
	dev.BlockSize = 1
	dev.Alignment = 1
	_, err := vfs.CreateDeviceFile(dev, vfs.NodePersistent|vfs.NodeNoCache, "null")
	return err
}

func dispatch(dev *ddk.Device, r *rp.RP) error {
	switch r.Code {
	case rp.CodeOpen, rp.CodeClose:
		rp.Finalize(r, status.Ok)
	case rp.CodeWrite:
		p := r.Payload.(*rp.WritePayload)
		p.Transferred = len(p.Buf)
		rp.Finalize(r, status.Ok)
	case rp.CodeRead:
		p := r.Payload.(*rp.ReadPayload)
		p.Transferred = 0
		rp.Finalize(r, status.Ok)
	default:
		rp.Finalize(r, status.ErrRPProcessingFailed)
	}
	return nil
}
