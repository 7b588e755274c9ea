// Package registry maps solver run ids to the result-file keys the run
// produced in shared storage. Extractors resolve a run id to an ordered
// key list, then stage and load each file from the blob store.
package registry

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a run id has no registered manifest.
var ErrNotFound = errors.New("registry: run not found")

// ErrConcurrentModification is returned when a concurrent registration
// for the same run is detected.
var ErrConcurrentModification = errors.New("registry: concurrent modification detected")

// Registry resolves run ids to result-file keys. Registrations are
// versioned: a re-register after late files appear supersedes the
// previous manifest, and Resolve always sees the latest one.
type Registry interface {
	// Resolve returns the result-file keys of a run, in producer order.
	Resolve(ctx context.Context, runID string) ([]string, error)
	// Register records the keys of a run. Later registrations for the
	// same run supersede earlier ones.
	Register(ctx context.Context, runID string, keys []string) error
	// Delete forgets a run. Deleting an unknown run is not an error.
	Delete(ctx context.Context, runID string) error
}

// manifest is the codec-encoded registration payload.
type manifest struct {
	Keys []string `json:"keys" msgpack:"keys"`
}
