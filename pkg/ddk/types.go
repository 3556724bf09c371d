// Package ddk (driver dev kit) implements the Driver Object / Device
// Object model of spec.md §3/§4.5/§4.6/§4.7: driver loading and
// lookup, the device stacking graph, block/alignment-aware synchronous
// reads, and the driver vtable contract that pkg/rp's engine dispatches
// into. Naming follows original_source's api/ex/kdrv and
// kernel32/ddk/*.c; the capability-set vtable shape and /dev
// population are grounded in the teacher's
// pkg/sentry/devices/memdev.go.
package ddk

import (
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/rp"
)

// DeviceType is the device's kind (spec.md §3).
type DeviceType int

// Device types.
const (
	DeviceNone DeviceType = iota
	DeviceDisk
	DeviceStorage
	DeviceFS
	DeviceTerminal
	DeviceOther
)

// DeviceFlag is a device object flag bit.
type DeviceFlag uint32

// Device flags (spec.md §3).
const (
	DeviceHidden DeviceFlag = 1 << iota
	DeviceDirectIO
	DeviceBufferedIO
	DeviceStandalone
	DevicePersistent
)

// DriverFlag is a driver object flag bit.
type DriverFlag uint32

// Driver flags (spec.md §3/§6).
const (
	DriverFilesystem DriverFlag = 1 << iota
)

// EntryPoint is the single symbol a driver image exports (spec.md §6):
// it must populate at least Dispatch, and may populate the rest of the
// vtable's optional capabilities.
type EntryPoint func(drv *Driver) error

// Vtable is a driver's capability set: only Dispatch is mandatory
// (spec.md §9 "Polymorphism").
type Vtable struct {
	Init       func(drv *Driver) error
	Unload     func(drv *Driver) error
	Dispatch   func(dev *Device, r *rp.RP) error
	AddDevice  func(drv *Driver, base *Device) (*Device, error)
	VerifyFs   func(drv *Driver, disk *Device) error
	Mount      func(drv *Driver, disk *Device) (*Device, error)
}

// Driver is the Driver Object of spec.md §3.
type Driver struct {
	ob.Header

	ID            string
	CompatibleIDs []string
	Flags         DriverFlag
	ImageBase     uint64
	ImageSize     uint64

	devices  []*Device
	refCount int32

	Vtable
}

// IsFilesystem reports whether drv has the FILESYSTEM flag set.
func (drv *Driver) IsFilesystem() bool { return drv.Flags&DriverFilesystem != 0 }

// Devices returns the driver's owned device list.
func (drv *Driver) Devices() []*Device { return drv.devices }
