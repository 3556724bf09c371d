// Package memfs implements an in-memory filesystem driver
// (spec.md expansion §4.12, FILESYSTEM flag set): verifyFs/mount plus
// FS_GET_NODE / FS_GET_NODE_CHILDREN dispatch, used to exercise the
// volume probe/mount scenario without real disk I/O. Grounded in
// original_source/kernel32/ddk/fs.c's FsGetNode/FsGetNodeChildren RP
// shape and the teacher's in-process fsimpl pattern.
package memfs

import (
	"strings"
	"sync"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
	"github.com/vkernel/vkernel/pkg/vfs"
)

// DriverID is the well-known registry ID for this driver.
const DriverID = "memfs"

// Signature is the magic byte sequence verifyFs looks for at the start
// of a disk device's backing store to decide whether it owns the
// volume. Real disk drivers would read a superblock; this one treats
// the first N bytes of a synchronous read as the signature, standing
// in for that.
var Signature = []byte("MEMFS001")

// file is one in-memory filesystem entry: a name, its content (nil for
// directories) and its children (populated for directories). This
// struct is the driver's own live, mutable state and is never handed
// out directly through a VFS node's DriverPrivate — see nodePath
// below for why.
type file struct {
	mu       sync.Mutex
	name     string
	isDir    bool
	content  []byte
	children map[string]*file
}

// fs is one mounted instance's in-memory tree.
type fs struct {
	root *file
}

var (
	mu        sync.Mutex
	instances = map[*ddk.Device]*fs{}
)

// nodePath is the opaque context a vfs.Node carries in DriverPrivate:
// the slash-separated path from this instance's root to the file it
// names. It is a plain value (not a pointer into the live tree) so
// that the VFS is free to deep-copy a detached node without aliasing
// driver state a concurrent resolver might still be mutating
// (spec.md §9 "get node returns a detached node").
type nodePath struct {
	path string
}

// Entry is the driver image's single exported symbol.
func Entry(drv *ddk.Driver) error {
	drv.Flags |= ddk.DriverFilesystem
	drv.Vtable.Dispatch = dispatch
	drv.Vtable.VerifyFs = verifyFs
	drv.Vtable.Mount = mount
	return nil
}

// verifyFs reads disk's first bytes synchronously and compares them
// against Signature (spec.md §4.5 step 3's "verifyFs(disk)").
func verifyFs(drv *ddk.Driver, disk *ddk.Device) error {
	buf := make([]byte, len(Signature))
	n, err := disk.ReadDeviceSync(0, len(Signature), buf)
	if err != nil {
		return err
	}
	if n < len(Signature) || string(buf[:n]) != string(Signature) {
		return status.ErrNotCompatible
	}
	return nil
}

// mount creates an FSDO for disk and seeds it with an empty root
// directory, stashing the driver's own root node (detached) in the
// FSDO's PrivateData so pkg/vol.Mount can hand it to vfs.Mount.
func mount(drv *ddk.Driver, disk *ddk.Device) (*ddk.Device, error) {
	root := &file{name: "/", isDir: true, children: map[string]*file{}}

	fsDev := ddk.CreateDevice(drv, ddk.DeviceFS, 0)

	mu.Lock()
	instances[fsDev] = &fs{root: root}
	mu.Unlock()

	fsDev.PrivateData = vfs.NewDetachedNode("/", vfs.NodeTypeDirectory, vfs.NodeDirectory, fsDev, nodePath{path: ""})
	return fsDev, nil
}

// dispatch completes OPEN and CLOSE and handles FILESYSTEM_CONTROL;
// every other code, READ and WRITE included, fails with
// ErrRPProcessingFailed, since this in-memory filesystem has no data
// I/O path.
func dispatch(dev *ddk.Device, r *rp.RP) error {
	switch r.Code {
	case rp.CodeOpen, rp.CodeClose:
		rp.Finalize(r, status.Ok)
	case rp.CodeFilesystemControl:
		dispatchFsControl(dev, r)
	default:
		rp.Finalize(r, status.ErrRPProcessingFailed)
	}
	return nil
}

func dispatchFsControl(dev *ddk.Device, r *rp.RP) {
	p := r.Payload.(*rp.FilesystemControlPayload)
	mu.Lock()
	inst := instances[dev]
	mu.Unlock()
	if inst == nil {
		rp.Finalize(r, status.ErrDeviceNotAvailable)
		return
	}

	switch p.Op {
	case rp.FSGetNode:
		dir, dirPath, err := resolvePath(inst, p.ParentKey)
		if err != nil {
			rp.Finalize(r, err)
			return
		}
		dir.mu.Lock()
		child, ok := dir.children[p.Name]
		dir.mu.Unlock()
		if !ok {
			rp.Finalize(r, status.ErrFileNotFound)
			return
		}
		p.Node = nodeFor(dev, child, joinPath(dirPath, p.Name))
		rp.Finalize(r, status.Ok)
	case rp.FSGetNodeChildren:
		dir, dirPath, err := resolvePath(inst, p.ParentKey)
		if err != nil {
			rp.Finalize(r, err)
			return
		}
		dir.mu.Lock()
		out := make([]interface{}, 0, len(dir.children))
		for name, c := range dir.children {
			out = append(out, nodeFor(dev, c, joinPath(dirPath, name)))
		}
		dir.mu.Unlock()
		p.Children = out
		rp.Finalize(r, status.Ok)
	default:
		rp.Finalize(r, status.ErrIoctlUnknown)
	}
}

// resolvePath walks parentKey's recorded path from inst.root down to
// the live *file it names, along with the path itself (needed to
// build the next level's nodePath).
func resolvePath(inst *fs, parentKey interface{}) (*file, string, error) {
	node, ok := parentKey.(*vfs.Node)
	if !ok {
		return nil, "", status.ErrBadType
	}
	np, ok := node.DriverPrivate.(nodePath)
	if !ok {
		return nil, "", status.ErrBadType
	}
	dir := inst.root
	if np.path != "" {
		for _, comp := range strings.Split(np.path, "/") {
			dir.mu.Lock()
			next, ok := dir.children[comp]
			dir.mu.Unlock()
			if !ok {
				return nil, "", status.ErrFileNotFound
			}
			dir = next
		}
	}
	return dir, np.path, nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "/" + name
}

func nodeFor(fsDev *ddk.Device, f *file, path string) *vfs.Node {
	typ := vfs.NodeTypeFile
	flags := vfs.NodeFlag(0)
	if f.isDir {
		typ = vfs.NodeTypeDirectory
		flags |= vfs.NodeDirectory
	}
	return vfs.NewDetachedNode(f.name, typ, flags, fsDev, nodePath{path: path})
}

// CreateFile inserts a file/directory at path (slash-separated, under
// the mount's root) directly into the in-memory tree, bypassing
// FS_GET_NODE — a test/bootstrap helper, not part of the driver
// contract proper.
func CreateFile(fsDev *ddk.Device, path string, content []byte) error {
	mu.Lock()
	inst := instances[fsDev]
	mu.Unlock()
	if inst == nil {
		return status.ErrDeviceNotAvailable
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	dir := inst.root
	for _, p := range parts[:len(parts)-1] {
		dir.mu.Lock()
		next, ok := dir.children[p]
		if !ok {
			next = &file{name: p, isDir: true, children: map[string]*file{}}
			dir.children[p] = next
		}
		dir.mu.Unlock()
		dir = next
	}
	name := parts[len(parts)-1]
	dir.mu.Lock()
	dir.children[name] = &file{name: name, content: content}
	dir.mu.Unlock()
	return nil
}
