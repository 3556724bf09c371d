// Package vfs implements the virtual filesystem naming layer of
// spec.md §4.8: path resolution, the node cache, `/dev` population and
// mount points, all backed by driver RPs for anything the cache does
// not already hold. Node linkage is grounded in
// original_source/kernel32/io/fs/fstypedefs.h (the flag bits) and
// api/ddk/fs.h (FS_GET_NODE/FS_GET_NODE_CHILDREN semantics); the
// directory-listing shape follows the teacher's
// pkg/sentry/fsimpl/proc/tasks.go (ordered children, virtual content
// rendered on demand).
package vfs

import (
	"sync"

	"github.com/google/btree"
	"github.com/mohae/deepcopy"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ob"
)

// NodeFlag is a VFS node flag bit (spec.md §3, original
// IO_VFS_FLAG_*).
type NodeFlag uint32

// Node flags.
const (
	NodeReadOnly NodeFlag = 1 << iota
	NodeLocked
	NodeNoCache
	NodeVirtual
	NodeDirectory
	NodeMountPoint
	NodePersistent
)

// NodeType is the node's kind.
type NodeType int

// Node types.
const (
	NodeTypeFile NodeType = iota
	NodeTypeDirectory
	NodeTypeDevice
	NodeTypeMount
)

// Node is the VFS Node of spec.md §3. Locking follows the
// object-header convention: Header.Lock(ob.TypeVFSNode) guards Name,
// Flags, Parent/FirstChild/NextSibling and the children index
// together, matching "look up in the cached-children list under the
// parent's lock" (spec.md §4.8).
type Node struct {
	ob.Header

	Name  string
	Flags NodeFlag
	Type  NodeType

	Parent      *Node
	FirstChild  *Node
	NextSibling *Node

	RefCount int32

	// Device is the node's backing device (nil for plain directories
	// with no device of their own, e.g. non-leaf VFS directories not
	// also mount points).
	Device *ddk.Device

	// DriverPrivate is opaque, filesystem-driver-owned context attached
	// to the node (the original's "driverPrivate").
	DriverPrivate interface{}

	// MountedRoot is set on a node with NodeMountPoint: resolution
	// transparently descends into it for subsequent path components
	// (spec.md §4.8 step 4).
	MountedRoot *Node

	// children is a secondary index over FirstChild/NextSibling,
	// accelerating exact-name lookup; the linked list remains the
	// source of truth for "get children" iteration order (spec.md §5
	// "VFS child list: insertion order immaterial for semantics").
	children *btree.BTree
}

type childItem struct {
	name string
	node *Node
}

func (a childItem) Less(than btree.Item) bool {
	return a.name < than.(childItem).name
}

var (
	rootOnce sync.Once
	root     *Node
)

// Root returns the VFS root node, creating it (persistent, a
// directory) on first use — spec.md §3 invariant (ii) "the root is
// persistent".
func Root() *Node {
	rootOnce.Do(func() {
		root = newNode("/", NodeTypeDirectory, NodePersistent|NodeDirectory)
	})
	return root
}

// NewDetachedNode builds a fresh, unlinked node the way a filesystem
// driver's FS_GET_NODE handler does: not yet attached to any parent,
// for the VFS to link or discard (spec.md §9 "get node returns a
// detached node"). dev is the node's backing device (its owning
// filesystem's FSDO); driverPrivate is opaque, driver-owned context
// threaded back through the next FS_GET_NODE call against this node.
func NewDetachedNode(name string, t NodeType, flags NodeFlag, dev *ddk.Device, driverPrivate interface{}) *Node {
	n := newNode(name, t, flags)
	n.Device = dev
	n.DriverPrivate = driverPrivate
	return n
}

func newNode(name string, t NodeType, flags NodeFlag) *Node {
	n := &Node{
		Name:     name,
		Type:     t,
		Flags:    flags,
		children: btree.New(32),
	}
	n.Header.Init(ob.TypeVFSNode)
	return n
}

// lookupChildLocked returns the cached child named name, or nil.
// Caller must hold parent's lock.
func (parent *Node) lookupChildLocked(name string) *Node {
	item := parent.children.Get(childItem{name: name})
	if item == nil {
		return nil
	}
	return item.(childItem).node
}

// attachChildLocked links child under parent in both the iteration
// list and the secondary index. Caller must hold parent's lock and
// must already have checked the name is not a duplicate.
func (parent *Node) attachChildLocked(child *Node) {
	child.Parent = parent
	child.NextSibling = parent.FirstChild
	parent.FirstChild = child
	parent.children.ReplaceOrInsert(childItem{name: child.Name, node: child})
}

// Children returns parent's children in iteration (linked-list) order.
func (parent *Node) Children() []*Node {
	parent.Lock(ob.TypeVFSNode)
	defer parent.Unlock(ob.TypeVFSNode)
	var out []*Node
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		out = append(out, c)
	}
	return out
}

// cloneDetached builds a fresh, unlinked Node from a driver-returned
// one, deep-copying the opaque driver-owned payload so that a resolver
// that loses the race to link it can discard its own copy without
// aliasing mutable state the winner's copy will go on to mutate
// (spec.md §9 "get node returns a detached node").
func cloneDetached(n *Node) *Node {
	clone := newNode(n.Name, n.Type, n.Flags)
	clone.Device = n.Device
	clone.MountedRoot = n.MountedRoot
	clone.RefCount = n.RefCount
	if n.DriverPrivate != nil {
		clone.DriverPrivate = deepcopy.Copy(n.DriverPrivate)
	}
	return clone
}
