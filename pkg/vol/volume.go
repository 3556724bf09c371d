// Package vol implements the volume manager of spec.md §4.9:
// disk-to-volume registration and the filesystem probe/mount sequence
// that turns a registered volume into a mounted VFS subtree. Grounded
// in original_source/kernel32/io/dev/vol.{c,h} for the volume node
// shape and registerVolume's checks.
package vol

import (
	"sync"

	"github.com/gofrs/flock"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

const labelMax = 32

// Volume is the Volume Node of spec.md §3.
type Volume struct {
	ob.Header

	Label        string
	Flags        ddk.DeviceFlag
	PhysicalDev  *ddk.Device // pdo
	FSDev        *ddk.Device // fsdo, set by Mount
	MountPoint   *vfs.Node
	SerialNumber uint64

	next, prev *Volume

	// hostLock guards a disk-image-backed volume against a second,
	// independent host process mounting the same backing file, the
	// host-level analogue of "at most one associated volume per disk"
	// (spec.md §3) for volumes that are actually host files rather than
	// purely in-process devices.
	hostLock *flock.Flock
}

var (
	listMu    sync.Mutex
	volumeList *Volume
)

// RegisterVolume creates and lists a volume for dev (spec.md §4.9):
// dev must be a DISK device with no existing association. If
// hostLockPath is non-empty, an exclusive host-level lock
// (github.com/gofrs/flock) is also acquired, refused if another host
// process already holds it.
func RegisterVolume(dev *ddk.Device, flags ddk.DeviceFlag, hostLockPath string) (*Volume, error) {
	if dev.Type != ddk.DeviceDisk {
		return nil, status.ErrNotCompatible
	}
	dev.Lock(ob.TypeDevice)
	if dev.AssociatedVolume != nil {
		dev.Unlock(ob.TypeDevice)
		return nil, status.ErrVolumeAlreadyExists
	}
	dev.Unlock(ob.TypeDevice)

	var lock *flock.Flock
	if hostLockPath != "" {
		lock = flock.New(hostLockPath)
		locked, err := lock.TryLock()
		if err != nil || !locked {
			return nil, status.ErrVolumeAlreadyExists
		}
	}

	v := &Volume{Flags: flags, PhysicalDev: dev, hostLock: lock}
	v.Header.Init(ob.TypeVolume)

	dev.Lock(ob.TypeDevice)
	dev.AssociatedVolume = v
	dev.Unlock(ob.TypeDevice)

	listMu.Lock()
	if volumeList == nil {
		volumeList = v
	} else {
		t := volumeList
		for t.next != nil {
			t = t.next
		}
		t.next = v
		v.prev = t
	}
	listMu.Unlock()

	return v, nil
}

// UnregisterVolume removes v from the volume list and clears its
// disk's association, releasing any host-level lock. A mounted volume
// (FSDev set) is refused with ErrRPProcessingFailed; this package has
// no unmount operation.
func UnregisterVolume(v *Volume) error {
	if v.FSDev != nil {
		return status.ErrRPProcessingFailed
	}
	listMu.Lock()
	if v.prev != nil {
		v.prev.next = v.next
	} else if volumeList == v {
		volumeList = v.next
	}
	if v.next != nil {
		v.next.prev = v.prev
	}
	v.next, v.prev = nil, nil
	listMu.Unlock()

	v.PhysicalDev.Lock(ob.TypeDevice)
	v.PhysicalDev.AssociatedVolume = nil
	v.PhysicalDev.Unlock(ob.TypeDevice)

	if v.hostLock != nil {
		_ = v.hostLock.Unlock()
	}
	return nil
}

// SetLabel sets v's volume label, truncating to labelMax
// (spec.md §3's bounded label field).
func (v *Volume) SetLabel(label string) {
	if len(label) > labelMax {
		label = label[:labelMax]
	}
	v.Label = label
}

// SetSerialNumber sets v's serial number.
func (v *Volume) SetSerialNumber(serial uint64) {
	v.SerialNumber = serial
}
