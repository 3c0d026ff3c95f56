// Package storage handles all the lower level support for maintaining the
// ledger collections on disk. Each collection is a single JSON array that
// is loaded fully into memory on read and rewritten as a whole on write.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Record represents the behavior required by any value stored in a
// collection. The digest is supplied by the value itself and is never
// computed by the store.
type Record interface {
	Digest() string
}

// EventHandler defines a function that is called when events
// occur in the processing of the snapshot.
type EventHandler func(v string, args ...any)

// Store manages reading and writing one collection snapshot. No two records
// with the same digest are ever written through InsertDeduplicated.
type Store[T Record] struct {
	path      string
	evHandler EventHandler
	mu        sync.RWMutex
}

// New provides access to the collection snapshot at the specified path. The
// snapshot file itself is not created until the first write.
func New[T Record](path string, evHandler EventHandler) (*Store[T], error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating snapshot directory: %w", err)
	}

	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	str := Store[T]{
		path:      path,
		evHandler: ev,
	}

	return &str, nil
}

// Path returns the location of the snapshot on disk.
func (str *Store[T]) Path() string {
	return str.path
}

// ReadAll loads the full current snapshot. A missing or malformed snapshot
// is reported as an empty collection.
func (str *Store[T]) ReadAll() []T {
	str.mu.RLock()
	defer str.mu.RUnlock()

	return str.read()
}

// Append adds the record to the end of the collection without checking
// for an existing record with the same digest.
func (str *Store[T]) Append(record T) error {
	str.mu.Lock()
	defer str.mu.Unlock()

	records := str.read()
	records = append(records, record)

	return str.write(records)
}

// Clear replaces the snapshot with an empty collection.
func (str *Store[T]) Clear() error {
	str.mu.Lock()
	defer str.mu.Unlock()

	return str.write([]T{})
}

// InsertDeduplicated appends the record only if no stored record has the
// same digest. The scan and the write happen under one lock so concurrent
// inserts of the same record leave exactly one copy. The boolean reports if
// the record was written.
func (str *Store[T]) InsertDeduplicated(record T) (bool, error) {
	str.mu.Lock()
	defer str.mu.Unlock()

	records := str.read()

	digest := record.Digest()
	for _, existing := range records {
		if existing.Digest() == digest {
			return false, nil
		}
	}

	records = append(records, record)
	if err := str.write(records); err != nil {
		return false, err
	}

	return true, nil
}

// =============================================================================

// read decodes the snapshot. It assumes it's always inside a mutex lock.
func (str *Store[T]) read() []T {
	data, err := os.ReadFile(str.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			str.evHandler("storage: read: %s: ERROR: %s", str.path, err)
		}
		return []T{}
	}

	if len(data) == 0 {
		return []T{}
	}

	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		str.evHandler("storage: read: %s: malformed snapshot, treating as empty: %s", str.path, err)
		return []T{}
	}

	if records == nil {
		return []T{}
	}

	return records
}

// write replaces the snapshot on disk. The new snapshot is written to a
// temporary file in the same directory and renamed over the old one so
// readers only ever observe a complete snapshot. It assumes it's always
// inside a mutex lock.
func (str *Store[T]) write(records []T) error {

	// Marshal the collection in a more human readable format.
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(str.path), filepath.Base(str.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	// Any failure from here on leaves the old snapshot in place.
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(fmt.Errorf("writing snapshot: %w", err))
	}

	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing snapshot: %w", err))
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing snapshot: %w", err)
	}

	if err := os.Rename(tmpPath, str.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	return nil
}
