package registry

import (
	"context"
	"slices"
	"sync"
)

var _ Registry = (*MemoryRegistry)(nil)

// MemoryRegistry is an in-memory Registry for tests and single-process
// CLI use.
type MemoryRegistry struct {
	mu   sync.RWMutex
	runs map[string][]string
}

// NewMemoryRegistry creates an empty in-memory registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		runs: make(map[string][]string),
	}
}

// Resolve returns the keys registered for a run.
func (r *MemoryRegistry) Resolve(ctx context.Context, runID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	keys, ok := r.runs[runID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(keys), nil
}

// Register records the keys of a run, replacing any earlier
// registration.
func (r *MemoryRegistry) Register(ctx context.Context, runID string, keys []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[runID] = slices.Clone(keys)
	return nil
}

// Delete forgets a run.
func (r *MemoryRegistry) Delete(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.runs, runID)
	return nil
}
