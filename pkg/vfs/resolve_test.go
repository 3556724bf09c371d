package vfs

import (
	"testing"

	"github.com/vkernel/vkernel/pkg/ddk"
	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
)

// fakeFsDriver answers FS_GET_NODE for exactly one known name, and
// IO_FILE_NOT_FOUND for everything else, exercising the resolution
// path without a real on-disk filesystem.
func newFakeFsDevice(t *testing.T, knownName string) *ddk.Device {
	t.Helper()
	drv := &ddk.Driver{ID: "fakefs", Flags: ddk.DriverFilesystem}
	drv.Vtable.Dispatch = func(dev *ddk.Device, r *rp.RP) error {
		payload := r.Payload.(*rp.FilesystemControlPayload)
		switch payload.Op {
		case rp.FSGetNode:
			if payload.Name == knownName {
				found := &Node{Name: knownName, Type: NodeTypeFile}
				found.Header.Init(ob.TypeVFSNode)
				payload.Node = found
				rp.Finalize(r, status.Ok)
			} else {
				rp.Finalize(r, status.ErrFileNotFound)
			}
		default:
			rp.Finalize(r, status.ErrRPProcessingFailed)
		}
		return nil
	}
	dev := ddk.CreateDevice(drv, ddk.DeviceFS, 0)
	return dev
}

func newTestTask() *ke.Task {
	t := ke.NewTask("resolver", "/test", nil, ke.Normal, 0)
	ke.Sched.Enable(t)
	ke.Spawn(t, func(t *ke.Task) { <-t.Done() })
	return t
}

func TestResolveRootIsPersistentDirectory(t *testing.T) {
	root := Root()
	if root.Flags&NodePersistent == 0 {
		t.Fatal("root node must be persistent")
	}
	if root.Type != NodeTypeDirectory {
		t.Fatal("root node must be a directory")
	}
}

func TestResolveThroughFilesystemDriver(t *testing.T) {
	caller := newTestTask()
	defer ke.Exit(caller, 0)

	mountDir, err := CreateDirectory(Root(), "mnt-resolve-test")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	dev := newFakeFsDevice(t, "hello.txt")
	mountDir.Device = dev

	n, err := resolveComponent(caller, mountDir, "hello.txt")
	if err != nil {
		t.Fatalf("resolveComponent: %v", err)
	}
	if n.Name != "hello.txt" {
		t.Fatalf("got node named %q", n.Name)
	}

	// Second lookup must return the node the first one linked under
	// mountDir, not a fresh copy.
	again, err := resolveComponent(caller, mountDir, "hello.txt")
	if err != nil {
		t.Fatalf("cached resolveComponent: %v", err)
	}
	if again != n {
		t.Fatal("expected the cached node back, got a different pointer")
	}
}

func TestResolveMissReturnsFileNotFound(t *testing.T) {
	caller := newTestTask()
	defer ke.Exit(caller, 0)

	mountDir, err := CreateDirectory(Root(), "mnt-miss-test")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	dev := newFakeFsDevice(t, "exists")
	mountDir.Device = dev

	if _, err := resolveComponent(caller, mountDir, "does-not-exist"); err != status.ErrFileNotFound {
		t.Fatalf("got %v, want ErrFileNotFound", err)
	}
}

func TestCreateDirectoryRejectsDuplicate(t *testing.T) {
	parent, err := CreateDirectory(Root(), "dup-parent-test")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	if _, err := CreateDirectory(parent, "child"); err != nil {
		t.Fatalf("first CreateDirectory: %v", err)
	}
	if _, err := CreateDirectory(parent, "child"); err != status.ErrFileAlreadyExists {
		t.Fatalf("got %v, want ErrFileAlreadyExists", err)
	}
}

func TestVFSAcyclicity(t *testing.T) {
	a, err := CreateDirectory(Root(), "acyclic-a")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	b, err := CreateDirectory(a, "acyclic-b")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}
	c, err := CreateDirectory(b, "acyclic-c")
	if err != nil {
		t.Fatalf("CreateDirectory: %v", err)
	}

	n := c
	steps := 0
	for n != Root() {
		if n.Parent == nil {
			t.Fatal("walked off the tree without reaching root")
		}
		n = n.Parent
		steps++
		if steps > 1000 {
			t.Fatal("parent walk did not terminate; tree is cyclic")
		}
	}
}
