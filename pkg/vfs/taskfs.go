package vfs

import (
	"fmt"
	"strconv"

	"github.com/vkernel/vkernel/pkg/ke"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
)

// taskFSContext mirrors original_source's api/io/fs/taskfs.h
// IoTaskFsContext: which TCB and which rendered file within its
// directory a TaskFS node stands for.
type taskFSContext struct {
	tid  uint64
	file string // "" for the per-task directory itself
}

const (
	taskFileStatus  = "status"
	taskFileCmdline = "cmdline"
)

// MountTaskFS builds the virtual, no-cache /task filesystem
// (spec.md expansion §4.11): one directory per live TCB, each holding
// a "status" and "cmdline" node whose content is rendered from live
// TCB fields on read rather than stored. Grounded in the teacher's
// pkg/sentry/fsimpl/proc/tasks.go per-task directory shape.
func MountTaskFS(parent *Node) (*Node, error) {
	taskRoot, err := CreateDirectory(parent, "task")
	if err != nil {
		return nil, err
	}
	taskRoot.Flags |= NodeVirtual | NodeNoCache
	return taskRoot, nil
}

var taskFSRoot *Node

// EnsureTaskFS mounts /task under root on first use and returns the
// existing mount on every later call, the same lazily-created-singleton
// shape devRoot uses for /dev.
func EnsureTaskFS(root *Node) (*Node, error) {
	if taskFSRoot != nil {
		return taskFSRoot, nil
	}
	n, err := MountTaskFS(root)
	if err != nil {
		root.Lock(ob.TypeVFSNode)
		n = root.lookupChildLocked("task")
		root.Unlock(ob.TypeVFSNode)
		if n == nil {
			return nil, err
		}
	}
	taskFSRoot = n
	return taskFSRoot, nil
}

// AttachTask publishes t's TaskDirNode under the mounted /task root,
// making it reachable by path (e.g. "/task/<tid>/status" via Resolve)
// instead of only through TaskDirNode's direct return value.
func AttachTask(t *ke.Task) (*Node, error) {
	root, err := EnsureTaskFS(Root())
	if err != nil {
		return nil, err
	}
	dir := TaskDirNode(t)
	root.Lock(ob.TypeVFSNode)
	defer root.Unlock(ob.TypeVFSNode)
	if root.lookupChildLocked(dir.Name) != nil {
		return nil, status.ErrFileAlreadyExists
	}
	root.attachChildLocked(dir)
	return dir, nil
}

// TaskDirNode returns a fresh, unlinked directory node for t's TCB,
// the detached value a filesystem driver would hand FS_GET_NODE
// (spec.md §9 "get node returns a detached node") — TaskFS has no
// on-disk backing so it vends these directly rather than through an
// RP round trip.
func TaskDirNode(t *ke.Task) *Node {
	n := newNode(strconv.FormatUint(t.TID, 10), NodeTypeDirectory, NodeVirtual|NodeNoCache|NodeDirectory)
	n.DriverPrivate = taskFSContext{tid: t.TID}
	statusNode := newNode(taskFileStatus, NodeTypeFile, NodeVirtual|NodeNoCache|NodeReadOnly)
	statusNode.DriverPrivate = taskFSContext{tid: t.TID, file: taskFileStatus}
	cmdlineNode := newNode(taskFileCmdline, NodeTypeFile, NodeVirtual|NodeNoCache|NodeReadOnly)
	cmdlineNode.DriverPrivate = taskFSContext{tid: t.TID, file: taskFileCmdline}

	n.Lock(ob.TypeVFSNode)
	n.attachChildLocked(statusNode)
	n.attachChildLocked(cmdlineNode)
	n.Unlock(ob.TypeVFSNode)
	return n
}

// ReadTaskFile renders n's content if n is a TaskFS leaf node. It
// returns ErrNotTaskFile for any other node and ErrTaskGone if n's
// task is no longer in the live-task table.
func ReadTaskFile(n *Node) ([]byte, error) {
	ctx, ok := n.DriverPrivate.(taskFSContext)
	if !ok || ctx.file == "" {
		return nil, status.ErrNotTaskFile
	}
	t := ke.LookupTask(ctx.tid)
	if t == nil {
		return nil, status.ErrTaskGone
	}
	switch ctx.file {
	case taskFileStatus:
		return []byte(fmt.Sprintf("tid:\t%d\nname:\t%s\nstate:\t%s\nuid:\t%d\ngid:\t%d\n",
			t.TID, t.Name, t.State(), t.Creds.UID, t.Creds.GID)), nil
	case taskFileCmdline:
		return []byte(t.ImagePath), nil
	default:
		return nil, status.ErrNotTaskFile
	}
}
