package rp

import (
	"fmt"
	"sync"

	"github.com/containerd/typeurl"

	"github.com/vkernel/vkernel/pkg/status"
)

// Payload structs, one per RP code (spec.md §4.7's tagged union,
// rendered as a Go type instead of a C union). Each is registered with
// containerd/typeurl below, which assigns it a stable type URL; New
// checks a payload's URL against the code it is being filled under, so
// a driver's unconditional `payload.(*ReadPayload)` type assertion can
// never observe a mismatched type.

// OpenPayload carries OPEN's arguments and, on success, nothing
// mutable: the driver returns a detached node through the filesystem
// driver's own FS_GET_NODE reply instead.
type OpenPayload struct {
	Path  string
	Mode  uint32
	Flags uint32
}

// ClosePayload carries CLOSE's argument.
type ClosePayload struct {
	PrivateData interface{}
}

// ReadPayload carries READ's buffer and offset; Buf is sized to the
// requested transfer length by the caller, Transferred is filled in by
// the driver.
type ReadPayload struct {
	Buf         []byte
	Offset      int64
	Transferred int
}

// WritePayload carries WRITE's buffer and offset.
type WritePayload struct {
	Buf         []byte
	Offset      int64
	Transferred int
}

// IoctlSubcode discriminates IOCTL payloads (spec.md §6 scenario 2).
type IoctlSubcode int

// Known ioctl subcodes. Drivers may define their own range privately;
// an unrecognized subcode is IOCTL_UNKNOWN (status.ErrIoctlUnknown).
const (
	IoctlCreateVT IoctlSubcode = iota
	IoctlActivate
)

// IoctlPayload carries a generic IOCTL's subcode and opaque in/out
// data.
type IoctlPayload struct {
	Subcode IoctlSubcode
	In      []byte
	Out     interface{}
}

// DiskControlOp discriminates DISK_CONTROL payloads.
type DiskControlOp int

// Known disk-control ops.
const (
	DiskGetSignature DiskControlOp = iota
)

// DiskControlPayload carries DISK_CONTROL's operation and result.
type DiskControlPayload struct {
	Op        DiskControlOp
	Signature uint32
}

// StorageControlOp discriminates STORAGE_CONTROL payloads.
type StorageControlOp int

// Known storage-control ops.
const (
	StorageGetGeometry StorageControlOp = iota
)

// Geometry is the disk geometry returned by StorageGetGeometry.
type Geometry struct {
	Cylinders uint32
	Heads     uint32
	SectorsPerTrack uint32
	BytesPerSector  uint32
}

// StorageControlPayload carries STORAGE_CONTROL's operation and
// result.
type StorageControlPayload struct {
	Op       StorageControlOp
	Geometry Geometry
}

// FilesystemControlOp discriminates FILESYSTEM_CONTROL payloads.
type FilesystemControlOp int

// Known filesystem-control ops.
const (
	FSGetNode FilesystemControlOp = iota
	FSGetNodeChildren
)

// FilesystemControlPayload carries FILESYSTEM_CONTROL's operation,
// request and reply. Node/Children are filled in by the filesystem
// driver with a detached value the VFS has not yet linked into its
// tree (spec.md §9 "Get node returns a detached node").
type FilesystemControlPayload struct {
	Op       FilesystemControlOp
	ParentKey interface{}
	Name      string
	Node      interface{}
	Children  []interface{}
}

// TerminalControlPayload carries TERMINAL_CONTROL's operation and
// result — the structured counterpart to the generic IOCTL path used
// in spec.md §8 scenario 2.
type TerminalControlPayload struct {
	Op     IoctlSubcode
	VTID   int
}

var (
	payloadMu   sync.Mutex
	payloadURLs = map[Code]string{}
)

func registerPayload(code Code, sample interface{}) {
	if err := typeurl.Register(sample, "vkernel", "rp", code.String()); err != nil {
		panic(fmt.Sprintf("rp: failed to register payload for %s: %v", code, err))
	}
	url, err := typeurl.TypeURL(sample)
	if err != nil {
		panic(fmt.Sprintf("rp: failed to resolve type URL for %s: %v", code, err))
	}
	payloadMu.Lock()
	payloadURLs[code] = url
	payloadMu.Unlock()
}

func init() {
	registerPayload(CodeOpen, &OpenPayload{})
	registerPayload(CodeClose, &ClosePayload{})
	registerPayload(CodeRead, &ReadPayload{})
	registerPayload(CodeWrite, &WritePayload{})
	registerPayload(CodeIoctl, &IoctlPayload{})
	registerPayload(CodeDiskControl, &DiskControlPayload{})
	registerPayload(CodeStorageControl, &StorageControlPayload{})
	registerPayload(CodeFilesystemControl, &FilesystemControlPayload{})
	registerPayload(CodeTerminalControl, &TerminalControlPayload{})
}

// checkPayloadType verifies payload's registered type URL matches
// code's.
func checkPayloadType(code Code, payload interface{}) error {
	payloadMu.Lock()
	want, ok := payloadURLs[code]
	payloadMu.Unlock()
	if !ok {
		return status.ErrRPProcessingFailed
	}
	got, err := typeurl.TypeURL(payload)
	if err != nil || got != want {
		return status.ErrBadType
	}
	return nil
}
