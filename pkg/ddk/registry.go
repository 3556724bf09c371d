package ddk

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vkernel/vkernel/pkg/klog"
	"github.com/vkernel/vkernel/pkg/status"
)

// Registry is the kernel's single driver registry: the loaded-driver
// table plus the config database that maps device/compatible IDs to
// the driver images required to service them (spec.md §4.5).
type Registry struct {
	mu     sync.Mutex
	loaded map[string]*Driver
	// order records driver IDs in the sequence they were first loaded,
	// so filesystem-driver probing can pick a winner by registration
	// order rather than map iteration order (spec.md §4.5 step 3: "the
	// first to return OK becomes the volume's owner").
	order  []string
	db     *Database
	loader ImageLoader
}

// NewRegistry returns an empty registry backed by db. A nil db is
// valid; LoadDriversForDevice then always fails with
// ErrDriverNotFound, which is useful in tests that register drivers
// directly via RegisterImage and drive loadDriver manually.
func NewRegistry(db *Database) *Registry {
	return &Registry{
		loaded: make(map[string]*Driver),
		db:     db,
		loader: defaultLoader,
	}
}

// SetLoader overrides the image loader, used by tests to inject fakes
// instead of the in-process image table.
func (reg *Registry) SetLoader(loader ImageLoader) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.loader = loader
}

// LoadDriversForDevice resolves deviceID/compatibleIDs against the
// database and ensures every required driver is loaded, reusing
// already-loaded drivers by reference count (spec.md §4.5 step 2). On
// partial failure the whole call fails and any driver it loaded for
// this call is unloaded and discarded; drivers that were already
// loaded before the call keep their existing reference count
// untouched.
func (reg *Registry) LoadDriversForDevice(deviceID string, compatibleIDs []string) ([]*Driver, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if reg.db == nil {
		return nil, status.ErrDriverNotFound
	}
	entry, ok := reg.db.lookup(deviceID, compatibleIDs)
	if !ok {
		return nil, status.ErrDriverNotFound
	}

	var loadedThisCall []*Driver
	var reusedThisCall []*Driver
	var result []*Driver

	rollback := func() {
		for _, d := range reusedThisCall {
			d.refCount--
		}
		for _, d := range loadedThisCall {
			unloadDriver(d)
			delete(reg.loaded, d.ID)
			for i, id := range reg.order {
				if id == d.ID {
					reg.order = append(reg.order[:i], reg.order[i+1:]...)
					break
				}
			}
		}
	}

	for _, driverID := range entry.RequiredDrivers {
		if existing, ok := reg.loaded[driverID]; ok {
			existing.refCount++
			reusedThisCall = append(reusedThisCall, existing)
			result = append(result, existing)
			continue
		}
		drv, err := loadDriver(driverID, entry.CompatibleIDs, 0, reg.loader)
		if err != nil {
			rollback()
			return nil, status.ErrDriverLoadFailed
		}
		drv.refCount = 1
		reg.loaded[driverID] = drv
		reg.order = append(reg.order, driverID)
		loadedThisCall = append(loadedThisCall, drv)
		result = append(result, drv)
	}

	return result, nil
}

// LoadDriversForFilesystem probes every registered filesystem driver
// against disk concurrently (golang.org/x/sync/errgroup), each calling
// its VerifyFs, and returns the first one (in registration order) that
// recognized the volume — spec.md §4.5 step 3: "the first to return OK
// becomes the volume's owner." Concurrent probing only shortens wall
// time; the winner is always chosen by index, not arrival order, so
// the result is deterministic regardless of goroutine scheduling.
func (reg *Registry) LoadDriversForFilesystem(disk *Device) (*Driver, error) {
	reg.mu.Lock()
	var candidates []*Driver
	for _, id := range reg.order {
		drv := reg.loaded[id]
		if drv != nil && drv.IsFilesystem() && drv.Vtable.VerifyFs != nil {
			candidates = append(candidates, drv)
		}
	}
	reg.mu.Unlock()

	if len(candidates) == 0 {
		return nil, status.ErrNoFilesystemMatched
	}

	ok := make([]bool, len(candidates))
	g, _ := errgroup.WithContext(context.Background())
	for i, drv := range candidates {
		i, drv := i, drv
		g.Go(func() error {
			if err := drv.Vtable.VerifyFs(drv, disk); err == nil {
				ok[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	for i, matched := range ok {
		if matched {
			klog.For("ddk").WithField("driver", candidates[i].ID).Info("filesystem driver recognized volume")
			return candidates[i], nil
		}
	}
	return nil, status.ErrNoFilesystemMatched
}

// RegisterDriverImage is a convenience wrapper over the package-level
// RegisterImage, kept on Registry so callers holding only a *Registry
// don't need to import the image table directly.
func (reg *Registry) RegisterDriverImage(driverID string, entry EntryPoint) {
	RegisterImage(driverID, entry)
}
