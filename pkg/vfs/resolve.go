package vfs

import (
	"strings"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
)

// Resolve walks path left to right from the VFS root, asking a
// filesystem driver for any component not already cached
// (spec.md §4.8). t is the calling task, used to suspend while
// waiting for a driver's FS_GET_NODE RP.
func Resolve(t *ke.Task, path string) (*Node, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, status.ErrPathSyntax
	}
	cur := Root()
	for _, name := range strings.Split(strings.Trim(path, "/"), "/") {
		if name == "" {
			continue
		}
		next, err := resolveComponent(t, cur, name)
		if err != nil {
			return nil, err
		}
		cur = next
		if cur.Flags&NodeMountPoint != 0 && cur.MountedRoot != nil {
			cur = cur.MountedRoot
		}
	}
	return cur, nil
}

// resolveComponent resolves a single path component under parent,
// consulting the cache first and falling back to the backing
// filesystem driver (spec.md §4.8 steps 1-3).
func resolveComponent(t *ke.Task, parent *Node, name string) (*Node, error) {
	parent.Lock(ob.TypeVFSNode)
	if child := parent.lookupChildLocked(name); child != nil {
		parent.Unlock(ob.TypeVFSNode)
		return child, nil
	}
	dev := parent.Device
	parent.Unlock(ob.TypeVFSNode)

	if dev == nil || dev.Type != ddk.DeviceFS {
		return nil, status.ErrFileNotFound
	}

	fresh, err := fsGetNode(t, dev, parent, name)
	if err != nil {
		return nil, err
	}

	parent.Lock(ob.TypeVFSNode)
	defer parent.Unlock(ob.TypeVFSNode)
	// Double-check for a race insertion: another resolver may have
	// linked the same name while we waited on the RP.
	if existing := parent.lookupChildLocked(name); existing != nil {
		return existing, nil
	}
	if fresh.Flags&NodeVirtual == 0 && fresh.Flags&NodeNoCache == 0 {
		parent.attachChildLocked(fresh)
	} else {
		fresh.Parent = parent
	}
	return fresh, nil
}

// fsGetNode issues an FS_GET_NODE RP to dev's driver and returns the
// detached node it allocates, or ErrFileNotFound.
func fsGetNode(t *ke.Task, dev *ddk.Device, parent *Node, name string) (*Node, error) {
	payload := &rp.FilesystemControlPayload{
		Op:        rp.FSGetNode,
		ParentKey: parent,
		Name:      name,
	}
	r, err := rp.New(rp.CodeFilesystemControl, payload)
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
	if payload.Node == nil {
		return nil, status.ErrFileNotFound
	}
	node, ok := payload.Node.(*Node)
	if !ok {
		return nil, status.ErrBadType
	}
	return cloneDetached(node), nil
}

// GetChildren issues an FS_GET_NODE_CHILDREN RP for a directory node
// not fully represented in the cache, returning the driver's detached
// listing without linking it (callers decide whether/what to attach).
func GetChildren(t *ke.Task, dir *Node) ([]*Node, error) {
	dir.Lock(ob.TypeVFSNode)
	dev := dir.Device
	dir.Unlock(ob.TypeVFSNode)
	if dev == nil || dev.Type != ddk.DeviceFS {
		return dir.Children(), nil
	}

	payload := &rp.FilesystemControlPayload{
		Op:        rp.FSGetNodeChildren,
		ParentKey: dir,
	}
	r, err := rp.New(rp.CodeFilesystemControl, payload)
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
	out := make([]*Node, 0, len(payload.Children))
	for _, c := range payload.Children {
		if n, ok := c.(*Node); ok {
			out = append(out, cloneDetached(n))
		}
	}
	return out, nil
}

// CreateDirectory inserts a plain, persistent directory node under
// parent, used to build out static structure like /dev and /task.
// Returns ErrFileAlreadyExists if name is already taken
// (spec.md §4.8 invariant (ii)).
func CreateDirectory(parent *Node, name string) (*Node, error) {
	parent.Lock(ob.TypeVFSNode)
	defer parent.Unlock(ob.TypeVFSNode)
	if parent.lookupChildLocked(name) != nil {
		return nil, status.ErrFileAlreadyExists
	}
	n := newNode(name, NodeTypeDirectory, NodeDirectory|NodePersistent)
	parent.attachChildLocked(n)
	return n, nil
}
