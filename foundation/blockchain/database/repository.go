package database

import (
	"fmt"

	"github.com/ardanlabs/ledger/foundation/blockchain/storage"
)

// Repository binds a content addressed store to a fixed snapshot location
// and provides the domain operations shared by every ledger collection.
type Repository[T storage.Record] struct {
	name  string
	store *storage.Store[T]
}

// NewRepository constructs a repository for the named collection.
func NewRepository[T storage.Record](name string, path string, evHandler func(v string, args ...any)) (*Repository[T], error) {
	str, err := storage.New[T](path, evHandler)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	repo := Repository[T]{
		name:  name,
		store: str,
	}

	return &repo, nil
}

// Name returns the role of the collection.
func (r *Repository[T]) Name() string {
	return r.name
}

// Path returns the snapshot location of the collection.
func (r *Repository[T]) Path() string {
	return r.store.Path()
}

// Records returns a copy of the records in insertion order.
func (r *Repository[T]) Records() []T {
	return r.store.ReadAll()
}

// Count returns the number of records in the collection.
func (r *Repository[T]) Count() int {
	return len(r.store.ReadAll())
}

// FindByHash returns the first record stored with the specified hash.
func (r *Repository[T]) FindByHash(hash string) (T, bool) {
	for _, record := range r.store.ReadAll() {
		if record.Digest() == hash {
			return record, true
		}
	}

	var zero T
	return zero, false
}

// Contains reports whether a record with the specified hash is stored.
func (r *Repository[T]) Contains(hash string) bool {
	_, exists := r.FindByHash(hash)
	return exists
}

// Submit stores the record unless one with the same hash already exists.
// Submitting a record twice is not an error.
func (r *Repository[T]) Submit(record T) error {
	_, err := r.Insert(record)
	return err
}

// Insert behaves like Submit and also reports if the record was new.
func (r *Repository[T]) Insert(record T) (bool, error) {
	written, err := r.store.InsertDeduplicated(record)
	if err != nil {
		return false, fmt.Errorf("%s: %w", r.name, err)
	}

	return written, nil
}

// Drain removes every record from the collection.
func (r *Repository[T]) Drain() error {
	if err := r.store.Clear(); err != nil {
		return fmt.Errorf("%s: %w", r.name, err)
	}

	return nil
}
