package ddk

import (
	"context"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/vkernel/vkernel/pkg/klog"
	"github.com/vkernel/vkernel/pkg/ob"
	"github.com/vkernel/vkernel/pkg/status"
)

// ImageLoader resolves a driver ID to its entry point. A real image
// loader would mmap a shared object and look up its symbol; tests and
// in-process drivers register their EntryPoint directly via
// RegisterImage.
type ImageLoader func(driverID string) (EntryPoint, error)

var images = map[string]EntryPoint{}

// RegisterImage associates a driver ID with an in-process entry point,
// standing in for the dynamic loader spec.md §4.5 describes ("load the
// image") since this implementation runs all drivers in-process rather
// than as separate loadable objects.
func RegisterImage(driverID string, entry EntryPoint) {
	images[driverID] = entry
}

func defaultLoader(driverID string) (EntryPoint, error) {
	entry, ok := images[driverID]
	if !ok {
		return nil, status.ErrDriverLoadFailed
	}
	return entry, nil
}

// loadDriver loads and initializes a single driver by ID, retrying the
// entry point invocation with an exponential backoff
// (cenkalti/backoff) to absorb transient init failures the way a real
// driver's probe of shared hardware might need to. It returns the fully
// initialized *Driver or an error if every attempt failed.
func loadDriver(driverID string, compatibleIDs []string, flags DriverFlag, loader ImageLoader) (*Driver, error) {
	entry, err := loader(driverID)
	if err != nil {
		klog.For("ddk").WithField("driver", driverID).WithError(err).Warn("driver image not found")
		return nil, status.ErrDriverLoadFailed
	}

	drv := &Driver{
		ID:            driverID,
		CompatibleIDs: compatibleIDs,
		Flags:         flags,
	}
	drv.Header.Init(ob.TypeDriver)

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 2 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	err = backoff.Retry(func() error {
		return entry(drv)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		klog.For("ddk").WithField("driver", driverID).WithError(err).Error("driver entry point failed")
		return nil, status.ErrDriverLoadFailed
	}

	if drv.Vtable.Dispatch == nil {
		klog.For("ddk").WithField("driver", driverID).Error("driver registered no Dispatch routine")
		return nil, status.ErrDriverLoadFailed
	}

	if drv.Vtable.Init != nil {
		if err := drv.Vtable.Init(drv); err != nil {
			klog.For("ddk").WithField("driver", driverID).WithError(err).Error("driver Init failed")
			return nil, status.ErrDriverLoadFailed
		}
	}

	klog.For("ddk").WithField("driver", driverID).Info("driver loaded")
	return drv, nil
}

// unloadDriver runs drv's optional Unload routine, best-effort, used to
// roll back a partially loaded required-driver list (spec.md §4.5:
// "If any required driver fails, free the partial list and fail the
// whole call").
func unloadDriver(drv *Driver) {
	if drv.Vtable.Unload != nil {
		if err := drv.Vtable.Unload(drv); err != nil {
			klog.For("ddk").WithField("driver", drv.ID).WithError(err).Warn("driver Unload reported an error")
		}
	}
}
