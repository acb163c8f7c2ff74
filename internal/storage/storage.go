// Package storage provides the path-addressed object store the dataset
// layer reads and writes through. The local filesystem backend is the
// default; S3 is a drop-in replacement for the same interface.
package storage

import (
	"context"
	"errors"
)

// Common errors for storage operations.
var (
	ErrObjectNotFound = errors.New("object not found")
	ErrWriteFailed    = errors.New("write failed")
	ErrReadFailed     = errors.New("read failed")
	ErrDeleteFailed   = errors.New("delete failed")
)

// ObjectStore abstracts byte-range object storage. Paths are /-separated
// and relative to the store root.
type ObjectStore interface {
	// Put writes an object in full, creating parent directories as needed.
	// A Put is observed either fully or not at all under its final path.
	Put(ctx context.Context, path string, data []byte) error

	// Get reads an object in full.
	Get(ctx context.Context, path string) ([]byte, error)

	// GetRange reads length bytes at offset off.
	GetRange(ctx context.Context, path string, off, length int64) ([]byte, error)

	// Size returns the object size in bytes.
	Size(ctx context.Context, path string) (int64, error)

	// Exists checks if an object exists.
	Exists(ctx context.Context, path string) (bool, error)

	// List returns all object paths under the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Delete removes an object; deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error
}
