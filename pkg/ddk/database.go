package ddk

import (
	"encoding/json"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/mattbaird/jsonpatch"

	"github.com/vkernel/vkernel/pkg/klog"
)

// dbEntry is one row of the driver database: which driver images are
// required for a device/compatible ID, and which of them is the main
// driver (spec.md §4.5).
type dbEntry struct {
	DeviceID        string   `toml:"device_id" json:"device_id"`
	CompatibleIDs   []string `toml:"compatible_ids" json:"compatible_ids"`
	RequiredDrivers []string `toml:"drivers" json:"drivers"`
	MainDriver      string   `toml:"main_driver" json:"main_driver"`
}

type dbFile struct {
	Entries []dbEntry `toml:"entry" json:"entry"`
}

// Database is the in-memory driver database built from an external
// TOML config blob (spec.md §4.5 step 1).
type Database struct {
	mu      sync.RWMutex
	byID    map[string]dbEntry
	byCompat map[string]dbEntry
}

// LoadDatabase parses a TOML config blob into a fresh Database.
func LoadDatabase(tomlBytes []byte) (*Database, error) {
	var f dbFile
	if err := toml.Unmarshal(tomlBytes, &f); err != nil {
		return nil, err
	}
	db := &Database{}
	db.index(f.Entries)
	return db, nil
}

func (db *Database) index(entries []dbEntry) {
	byID := make(map[string]dbEntry, len(entries))
	byCompat := make(map[string]dbEntry)
	for _, e := range entries {
		byID[e.DeviceID] = e
		for _, c := range e.CompatibleIDs {
			byCompat[c] = e
		}
	}
	db.mu.Lock()
	db.byID = byID
	db.byCompat = byCompat
	db.mu.Unlock()
}

// lookup resolves a device/compatible ID pair to its database entry,
// device ID taking precedence over compatible IDs.
func (db *Database) lookup(deviceID string, compatibleIDs []string) (dbEntry, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if e, ok := db.byID[deviceID]; ok {
		return e, true
	}
	for _, c := range compatibleIDs {
		if e, ok := db.byCompat[c]; ok {
			return e, true
		}
	}
	return dbEntry{}, false
}

// snapshotJSON renders the current entries as JSON, used only to
// compute an audit diff in Update.
func (db *Database) snapshotJSON() []byte {
	db.mu.RLock()
	entries := make([]dbEntry, 0, len(db.byID))
	for _, e := range db.byID {
		entries = append(entries, e)
	}
	db.mu.RUnlock()
	b, _ := json.Marshal(dbFile{Entries: entries})
	return b
}

// Update hot-reloads the database from a new TOML blob, logging the
// number of patch operations in mattbaird/jsonpatch's diff
// (CreatePatch) before swapping the index in, matching the "external config blob"
// supporting incremental patches that spec.md §4.5 names.
func (db *Database) Update(tomlBytes []byte) error {
	before := db.snapshotJSON()

	var f dbFile
	if err := toml.Unmarshal(tomlBytes, &f); err != nil {
		return err
	}
	after, err := json.Marshal(f)
	if err != nil {
		return err
	}

	ops, err := jsonpatch.CreatePatch(before, after)
	if err != nil {
		klog.For("ddk").WithError(err).Warn("failed to compute driver database patch for audit log")
	} else {
		klog.For("ddk").WithField("ops", len(ops)).Info("driver database hot-reloaded")
	}

	db.index(f.Entries)
	return nil
}
