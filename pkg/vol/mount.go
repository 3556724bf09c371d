package vol

import (
	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// Mount probes reg's registered filesystem drivers against v's
// physical device (spec.md §4.9: "mount ultimately links a chosen
// filesystem driver's FSDO into the volume"), and on success attaches
// the winning driver's root at a new VFS mount point under parent
// named name.
func Mount(reg *ddk.Registry, v *Volume, parent *vfs.Node, name string) error {
	if v.FSDev != nil {
		return status.ErrVolumeAlreadyExists
	}

	drv, err := reg.LoadDriversForFilesystem(v.PhysicalDev)
	if err != nil {
		return err
	}
	if drv.Vtable.Mount == nil {
		return status.ErrRPProcessingFailed
	}
	fsDev, err := drv.Vtable.Mount(drv, v.PhysicalDev)
	if err != nil {
		return err
	}

	fsRootPrivate, ok := fsDev.PrivateData.(*vfs.Node)
	if !ok || fsRootPrivate == nil {
		return status.ErrRPProcessingFailed
	}

	mp, err := vfs.Mount(parent, name, fsDev, fsRootPrivate)
	if err != nil {
		return err
	}

	v.FSDev = fsDev
	v.MountPoint = mp
	fsDev.Lock(ob.TypeDevice)
	fsDev.AssociatedVolume = v
	fsDev.Unlock(ob.TypeDevice)
	return nil
}
