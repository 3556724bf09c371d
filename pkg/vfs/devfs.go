package vfs

import (
	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
)

var devDir *Node

// devRoot returns the /dev directory, creating it on first use.
func devRoot() *Node {
	if devDir != nil {
		return devDir
	}
	n, err := CreateDirectory(Root(), "dev")
	if err != nil {
		// Already created by a racing caller; fetch it instead.
		Root().Lock(ob.TypeVFSNode)
		n = Root().lookupChildLocked("dev")
		Root().Unlock(ob.TypeVFSNode)
	}
	devDir = n
	return devDir
}

// CreateDeviceFile publishes dev as a file under /dev named name
// (spec.md §4.8 "createDeviceFile"); names must be unique within
// /dev, grounded in original_source/api/io/fs/devfs.h.
func CreateDeviceFile(dev *ddk.Device, flags NodeFlag, name string) (*Node, error) {
	dir := devRoot()
	dir.Lock(ob.TypeVFSNode)
	defer dir.Unlock(ob.TypeVFSNode)
	if dir.lookupChildLocked(name) != nil {
		return nil, status.ErrFileAlreadyExists
	}
	n := newNode(name, NodeTypeDevice, flags|NodePersistent)
	n.Device = dev
	dir.attachChildLocked(n)
	return n, nil
}
