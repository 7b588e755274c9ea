package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies
// `errors.Is(err, ErrNotFound)`. The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// Store is an abstraction for result-file blobs in shared storage: a run's
// files land there once and extractors fetch them on demand.
type Store interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create opens a writable blob. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting an absent blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the blob names with the given prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	// ReadAt reads len(p) bytes at offset off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange streams length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
	Close() error
}

// WritableBlob is a write-once handle. Close publishes the blob.
type WritableBlob interface {
	io.Writer
	Sync() error
	Close() error
}

// Mappable is an optional interface for Blobs that expose their bytes
// zero-copy. The slice is valid until the Blob is closed.
type Mappable interface {
	Bytes() ([]byte, error)
}
