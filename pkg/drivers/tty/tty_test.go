package tty

import (
	"testing"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
)

func newLoadedDriver(t *testing.T) *ddk.Driver {
	t.Helper()
	drv := &ddk.Driver{ID: DriverID}
	drv.Header.Init(ob.TypeDriver)
	if err := Entry(drv); err != nil {
		t.Fatalf("Entry: %v", err)
	}
	if err := drv.Vtable.Init(drv); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return drv
}

func TestWriteBeforeActivationFails(t *testing.T) {
	drv := newLoadedDriver(t)
	dev := drv.Devices()[0]

	payload := &rp.WritePayload{Buf: []byte("hello")}
	r, err := rp.New(rp.CodeWrite, payload)
	if err != nil {
		t.Fatalf("rp.New: %v", err)
	}
	if err := rp.Send(r, func(r *rp.RP) error { return dev.Driver.Vtable.Dispatch(dev, r) }); err != nil {
		t.Fatalf("rp.Send: %v", err)
	}
	if r.Status != status.ErrDeviceNotAvailable {
		t.Fatalf("got %v, want ErrDeviceNotAvailable", r.Status)
	}
}

func TestActivateThenWriteSucceeds(t *testing.T) {
	drv := newLoadedDriver(t)
	dev := drv.Devices()[0]

	activate := &rp.IoctlPayload{Subcode: rp.IoctlActivate}
	r, err := rp.New(rp.CodeIoctl, activate)
	if err != nil {
		t.Fatalf("rp.New: %v", err)
	}
	if err := rp.Send(r, func(r *rp.RP) error { return dev.Driver.Vtable.Dispatch(dev, r) }); err != nil {
		t.Fatalf("rp.Send activate: %v", err)
	}
	if r.Status != status.Ok {
		t.Fatalf("activate failed: %v", r.Status)
	}

	payload := &rp.WritePayload{Buf: []byte("hello\n")}
	wr, err := rp.New(rp.CodeWrite, payload)
	if err != nil {
		t.Fatalf("rp.New write: %v", err)
	}
	if err := rp.Send(wr, func(r *rp.RP) error { return dev.Driver.Vtable.Dispatch(dev, r) }); err != nil {
		t.Fatalf("rp.Send write: %v", err)
	}
	if wr.Status != status.Ok {
		t.Fatalf("write after activation failed: %v", wr.Status)
	}
}

func TestCreateVTIoctlAllocatesNewDevice(t *testing.T) {
	drv := newLoadedDriver(t)
	dev := drv.Devices()[0]
	before := len(drv.Devices())

	payload := &rp.IoctlPayload{Subcode: rp.IoctlCreateVT}
	r, err := rp.New(rp.CodeIoctl, payload)
	if err != nil {
		t.Fatalf("rp.New: %v", err)
	}
	if err := rp.Send(r, func(r *rp.RP) error { return dev.Driver.Vtable.Dispatch(dev, r) }); err != nil {
		t.Fatalf("rp.Send: %v", err)
	}
	if r.Status != status.Ok {
		t.Fatalf("create VT failed: %v", r.Status)
	}
	if len(drv.Devices()) != before+1 {
		t.Fatalf("device count = %d, want %d", len(drv.Devices()), before+1)
	}
}
