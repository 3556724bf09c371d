package ke

import "sync"

// FileHandle is the per-task index into its open-file table, returned
// by OPEN and consumed by READ/WRITE/CLOSE (spec.md §6).
type FileHandle int32

// FileTable is a TCB's open-file list: head plus count, as spec.md §3
// names it. The table is intentionally decoupled from pkg/vfs so that
// pkg/ke has no import-cycle dependency on the VFS; callers stash
// whatever *vfs.OpenFile-shaped value they need behind the interface{}
// slot and type-assert it back in pkg/sc.
type FileTable struct {
	mu      sync.Mutex
	entries map[FileHandle]interface{}
	next    FileHandle
}

// NewFileTable returns an empty open-file table.
func NewFileTable() *FileTable {
	return &FileTable{entries: make(map[FileHandle]interface{})}
}

// Add inserts file and returns its new handle.
func (ft *FileTable) Add(file interface{}) FileHandle {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	h := ft.next
	ft.next++
	ft.entries[h] = file
	return h
}

// Get returns the file registered at h, or (nil, false).
func (ft *FileTable) Get(h FileHandle) (interface{}, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f, ok := ft.entries[h]
	return f, ok
}

// Remove deletes h from the table, returning the file that was there
// (nil, false) if h was not open.
func (ft *FileTable) Remove(h FileHandle) (interface{}, bool) {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	f, ok := ft.entries[h]
	if ok {
		delete(ft.entries, h)
	}
	return f, ok
}

// Count returns the number of open files.
func (ft *FileTable) Count() int {
	ft.mu.Lock()
	defer ft.mu.Unlock()
	return len(ft.entries)
}
