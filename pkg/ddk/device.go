package ddk

import (
	"os"

	"golang.org/x/sys/unix"

	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/rp"
	"github.com/vkernel/vkernel/pkg/status"
)

// Device is the Device Object of spec.md §3.
type Device struct {
	ob.Header

	Type      DeviceType
	Flags     DeviceFlag
	BlockSize uint32
	Alignment uint32

	PrivateData interface{}
	Driver      *Driver

	// Stack linkage: Above is the device directly on top of this one
	// in a PDO<->FSDO<->volume chain, Below is the next one down.
	Above, Below *Device

	// AssociatedVolume holds a *vol.Volume for DISK devices, stored as
	// interface{} so that pkg/ddk does not import pkg/vol (which
	// imports pkg/ddk).
	AssociatedVolume interface{}

	RPQueue *rp.Queue

	// hostFile backs a DISK device for ReadDeviceSync's direct-I/O
	// path; nil for devices with no block-addressable backing.
	hostFile *os.File
}

// CreateDevice allocates a device, attaches it to drv's device list,
// and returns it (spec.md §4.6).
func CreateDevice(drv *Driver, t DeviceType, flags DeviceFlag) *Device {
	dev := &Device{
		Type:    t,
		Flags:   flags,
		Driver:  drv,
		RPQueue: rp.NewQueue(false),
	}
	dev.Header.Init(ob.TypeDevice)
	drv.devices = append(drv.devices, dev)
	return dev
}

// StackOn makes dev sit directly above base in the device stack
// (spec.md §4.6: "stacking is explicit and ordered").
func (dev *Device) StackOn(base *Device) {
	dev.Below = base
	base.Above = dev
}

// BindHostFile associates dev (a DISK device) with a host-backed file
// used for block I/O, and sets BlockSize/Alignment from blockSize and
// alignment if they are unset.
func (dev *Device) BindHostFile(f *os.File, blockSize, alignment uint32) {
	dev.hostFile = f
	if dev.BlockSize == 0 {
		dev.BlockSize = blockSize
	}
	if dev.Alignment == 0 {
		dev.Alignment = alignment
	}
}

// ReadDeviceSync performs a synchronous read of size bytes at offset
// from dev's host-backed file. When offset and size are already
// BlockSize/Alignment-satisfying, it reads directly into buf
// (golang.org/x/sys/unix.Pread); otherwise it double-buffers through a
// block-aligned bounce buffer and copies out the requested slice
// (spec.md §4.6).
func (dev *Device) ReadDeviceSync(offset int64, size int, buf []byte) (int, error) {
	if dev.hostFile == nil {
		return 0, status.ErrDeviceNotAvailable
	}
	if dev.directIOEligible(offset, size, len(buf)) {
		n, err := unix.Pread(int(dev.hostFile.Fd()), buf[:size], offset)
		if err != nil {
			return 0, status.ErrRPProcessingFailed
		}
		return n, nil
	}
	return dev.readBounced(offset, size, buf)
}

// directIOEligible reports whether offset, size and the destination
// buffer length all satisfy dev's block size and alignment, allowing
// the direct (non-bounced) I/O path.
func (dev *Device) directIOEligible(offset int64, size, bufLen int) bool {
	if dev.BlockSize == 0 {
		return true
	}
	block := int64(dev.BlockSize)
	align := int64(dev.Alignment)
	if align == 0 {
		align = block
	}
	return offset%align == 0 && int64(size)%block == 0 && bufLen >= size
}

// readBounced reads whole blocks spanning [offset, offset+size) into a
// block-aligned bounce buffer, then copies the requested window into
// buf.
func (dev *Device) readBounced(offset int64, size int, buf []byte) (int, error) {
	block := int64(dev.BlockSize)
	if block == 0 {
		block = 512
	}
	start := (offset / block) * block
	end := ((offset + int64(size) + block - 1) / block) * block
	bounce := make([]byte, end-start)
	n, err := unix.Pread(int(dev.hostFile.Fd()), bounce, start)
	if err != nil {
		return 0, status.ErrRPProcessingFailed
	}
	bounce = bounce[:n]
	lo := int(offset - start)
	if lo > len(bounce) {
		return 0, nil
	}
	hi := lo + size
	if hi > len(bounce) {
		hi = len(bounce)
	}
	copied := copy(buf, bounce[lo:hi])
	return copied, nil
}

// WriteDeviceSync is ReadDeviceSync's write counterpart; it always
// writes the exact window given (no bounce buffering on write, mirroring
// the source's read-focused alignment discussion).
func (dev *Device) WriteDeviceSync(offset int64, data []byte) (int, error) {
	if dev.hostFile == nil {
		return 0, status.ErrDeviceNotAvailable
	}
	n, err := unix.Pwrite(int(dev.hostFile.Fd()), data, offset)
	if err != nil {
		return 0, status.ErrRPProcessingFailed
	}
	return n, nil
}
