package vol

import (
	"path/filepath"
	"testing"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/status"
)

func newDiskDevice(t *testing.T) *ddk.Device {
	t.Helper()
	drv := &ddk.Driver{ID: "vol-test-disk-driver"}
	return ddk.CreateDevice(drv, ddk.DeviceDisk, 0)
}

func TestRegisterVolumeRejectsNonDisk(t *testing.T) {
	drv := &ddk.Driver{ID: "vol-test-nondisk-driver"}
	dev := ddk.CreateDevice(drv, ddk.DeviceOther, 0)
	if _, err := RegisterVolume(dev, 0, ""); err != status.ErrNotCompatible {
		t.Fatalf("got %v, want ErrNotCompatible", err)
	}
}

func TestRegisterVolumeRejectsDoubleAssociation(t *testing.T) {
	dev := newDiskDevice(t)
	if _, err := RegisterVolume(dev, 0, ""); err != nil {
		t.Fatalf("first RegisterVolume: %v", err)
	}
	if _, err := RegisterVolume(dev, 0, ""); err != status.ErrVolumeAlreadyExists {
		t.Fatalf("got %v, want ErrVolumeAlreadyExists", err)
	}
}

func TestRegisterUnregisterRoundTrip(t *testing.T) {
	dev := newDiskDevice(t)
	v, err := RegisterVolume(dev, 0, "")
	if err != nil {
		t.Fatalf("RegisterVolume: %v", err)
	}
	if err := UnregisterVolume(v); err != nil {
		t.Fatalf("UnregisterVolume: %v", err)
	}
	dev.Lock(dev.Magic)
	assoc := dev.AssociatedVolume
	dev.Unlock(dev.Magic)
	if assoc != nil {
		t.Fatal("device still shows an associated volume after unregister")
	}
	// The disk is free to be re-registered now.
	if _, err := RegisterVolume(dev, 0, ""); err != nil {
		t.Fatalf("re-RegisterVolume after unregister: %v", err)
	}
}

func TestRegisterVolumeHostLockRefusesSecondHolder(t *testing.T) {
	lockPath := filepath.Join(t.TempDir(), "disk.lock")

	devA := newDiskDevice(t)
	if _, err := RegisterVolume(devA, 0, lockPath); err != nil {
		t.Fatalf("first RegisterVolume: %v", err)
	}

	devB := newDiskDevice(t)
	if _, err := RegisterVolume(devB, 0, lockPath); err != status.ErrVolumeAlreadyExists {
		t.Fatalf("got %v, want ErrVolumeAlreadyExists for a second host lock holder", err)
	}
}
