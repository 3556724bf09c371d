package ddk

import "testing"

const testDBToml = `
[[entry]]
device_id = "disk0"
compatible_ids = ["pci:1234"]
drivers = ["blkdrv"]
main_driver = "blkdrv"
`

func TestLoadDatabaseLooksUpByDeviceID(t *testing.T) {
	db, err := LoadDatabase([]byte(testDBToml))
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	e, ok := db.lookup("disk0", nil)
	if !ok {
		t.Fatal("expected disk0 to resolve")
	}
	if e.MainDriver != "blkdrv" {
		t.Fatalf("got main driver %q, want blkdrv", e.MainDriver)
	}
}

func TestLoadDatabaseLooksUpByCompatibleID(t *testing.T) {
	db, err := LoadDatabase([]byte(testDBToml))
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	e, ok := db.lookup("unknown-device", []string{"pci:1234"})
	if !ok {
		t.Fatal("expected pci:1234 to resolve via compatible IDs")
	}
	if e.DeviceID != "disk0" {
		t.Fatalf("got device %q, want disk0", e.DeviceID)
	}
}

func TestDatabaseUpdateSwapsIndex(t *testing.T) {
	db, err := LoadDatabase([]byte(testDBToml))
	if err != nil {
		t.Fatalf("LoadDatabase: %v", err)
	}
	if _, ok := db.lookup("disk1", nil); ok {
		t.Fatal("disk1 should not resolve before update")
	}

	updated := `
[[entry]]
device_id = "disk1"
compatible_ids = []
drivers = ["blkdrv2"]
main_driver = "blkdrv2"
`
	if err := db.Update([]byte(updated)); err != nil {
		t.Fatalf("Update: %v", err)
	}

	if _, ok := db.lookup("disk0", nil); ok {
		t.Fatal("disk0 should no longer resolve after the index swap")
	}
	e, ok := db.lookup("disk1", nil)
	if !ok {
		t.Fatal("expected disk1 to resolve after update")
	}
	if e.MainDriver != "blkdrv2" {
		t.Fatalf("got main driver %q, want blkdrv2", e.MainDriver)
	}
}
