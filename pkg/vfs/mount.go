package vfs

import (
	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
)

// Mount attaches fsRoot (a filesystem driver's own root node) at a new
// mount-point node named name under parent, completing the volume
// manager's "mount ultimately links a chosen filesystem driver's FSDO
// into the volume and attaches the volume's root at a VFS mount point"
// (spec.md §4.9). Subsequent resolution under the returned node
// transparently descends into fsRoot (spec.md §4.8 step 4).
func Mount(parent *Node, name string, fsDev *ddk.Device, fsRoot *Node) (*Node, error) {
	parent.Lock(ob.TypeVFSNode)
	defer parent.Unlock(ob.TypeVFSNode)
	if parent.lookupChildLocked(name) != nil {
		return nil, status.ErrFileAlreadyExists
	}
	mp := newNode(name, NodeTypeMount, NodeMountPoint|NodePersistent|NodeDirectory)
	mp.Device = fsDev
	mp.MountedRoot = fsRoot
	parent.attachChildLocked(mp)
	return mp, nil
}
