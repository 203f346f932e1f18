// Package storage defines the Storage interface: the contract that any
// backend (flat file, SQLite, or a caching decorator) must satisfy to
// work with this application.
//
// Handlers depend only on this interface, so switching backends is a
// config change and tests can run against any implementation.
//
// Callers can tell three outcomes apart:
//
//   - nil error: the operation succeeded.
//   - ErrNotFound: the record does not exist. Recoverable.
//   - anything wrapping ErrStorage: the backend is broken (I/O failure,
//     corrupt data). The cause is preserved for errors.Is / errors.As.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/aanand-mishra/students-registry/internal/types"
)

var (
	// ErrNotFound means no live record has the requested id.
	ErrNotFound = errors.New("student not found")

	// ErrStorage marks a storage fault.
	ErrStorage = errors.New("storage fault")
)

// Storage is the persistence contract for student records.
type Storage interface {
	// Save persists s and returns it unchanged. Duplicate ids are
	// accepted; only the earliest live record for an id is ever returned
	// by FindByID.
	Save(ctx context.Context, s types.Student) (types.Student, error)

	// FindByID returns the earliest live record with the given id, or
	// ErrNotFound.
	FindByID(ctx context.Context, id int64) (types.Student, error)

	// Delete removes every record with the given id, or returns
	// ErrNotFound when there is none.
	Delete(ctx context.Context, id int64) error

	// List returns all live records in insertion order.
	List(ctx context.Context) ([]types.Student, error)

	Close() error
}

// Fault wraps err as a storage fault for operation op. A nil err stays nil.
func Fault(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// IsFault reports whether err is a storage fault rather than a
// not-found or validation outcome.
func IsFault(err error) bool {
	return errors.Is(err, ErrStorage)
}
