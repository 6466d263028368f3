package kv

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
)

var _ Store = (*File)(nil)

// File is a Store persisted to a single JSON file. Every mutation rewrites
// the file through a temp file and rename so a crash never leaves a torn
// document behind.
type File struct {
	writeMu  sync.Mutex // orders snapshots on disk
	mu       sync.RWMutex
	data     map[string]string
	filePath string
}

// fileFormat is the JSON structure written to disk.
type fileFormat struct {
	Version int               `json:"version"`
	Entries map[string]string `json:"entries"`
}

const fileFormatVersion = 1

// OpenFile creates a File store backed by filePath. Existing data is loaded
// immediately; a missing file is treated as an empty store.
func OpenFile(filePath string) (*File, error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("kv: resolve path: %w", err)
	}

	f := &File{
		data:     make(map[string]string),
		filePath: abs,
	}

	if err := f.load(); err != nil {
		return nil, err
	}

	return f, nil
}

// Path returns the absolute path of the backing file.
func (f *File) Path() string { return f.filePath }

// Get returns the value for key and whether it was found.
func (f *File) Get(key string) (string, bool, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	v, ok := f.data[key]

	return v, ok, nil
}

// Set stores value under key and persists the change.
func (f *File) Set(key, value string) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.Lock()
	prev, had := f.data[key]
	f.data[key] = value
	snap := f.snapshot()
	f.mu.Unlock()

	if err := f.persistSnapshot(snap); err != nil {
		f.mu.Lock()
		if had {
			f.data[key] = prev
		} else {
			delete(f.data, key)
		}
		f.mu.Unlock()

		return err
	}

	return nil
}

// Delete removes keys and persists the change. Nothing is written when none
// of the keys existed.
func (f *File) Delete(keys ...string) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	f.mu.Lock()
	removed := make(map[string]string)
	for _, k := range keys {
		if v, ok := f.data[k]; ok {
			removed[k] = v
			delete(f.data, k)
		}
	}
	snap := f.snapshot()
	f.mu.Unlock()

	if len(removed) == 0 {
		return nil
	}

	if err := f.persistSnapshot(snap); err != nil {
		f.mu.Lock()
		maps.Copy(f.data, removed)
		f.mu.Unlock()

		return err
	}

	return nil
}

// Keys returns the sorted keys starting with prefix.
func (f *File) Keys(prefix string) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return matchingKeys(f.data, prefix), nil
}

// --- persistence ---

func (f *File) load() error {
	data, err := os.ReadFile(f.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return fmt.Errorf("kv: read file: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	var ff fileFormat
	if err := json.Unmarshal(trimmed, &ff); err != nil {
		return fmt.Errorf("kv: parse file: %w", err)
	}

	if ff.Version > fileFormatVersion {
		return fmt.Errorf("kv: unsupported file version %d", ff.Version)
	}

	maps.Copy(f.data, ff.Entries)

	return nil
}

// snapshot returns a copy of the current data. Must be called while f.mu is held.
func (f *File) snapshot() fileFormat {
	return fileFormat{
		Version: fileFormatVersion,
		Entries: maps.Clone(f.data),
	}
}

// persistSnapshot writes the given snapshot to disk. It must be called
// outside the lock so that blocking I/O does not hold the mutex.
func (f *File) persistSnapshot(ff fileFormat) error {
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("kv: marshal: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.filePath), 0o750); err != nil {
		return fmt.Errorf("kv: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.filePath), ".kv-*.tmp")
	if err != nil {
		return fmt.Errorf("kv: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return fmt.Errorf("kv: write temp file: %w", err)
	}

	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return fmt.Errorf("kv: close temp file: %w", err)
	}

	if err := os.Rename(tmpName, f.filePath); err != nil { //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		_ = os.Remove(tmpName) //nolint:gosec // tmpName comes from os.CreateTemp in a known directory
		return fmt.Errorf("kv: rename temp file: %w", err)
	}

	return nil
}
