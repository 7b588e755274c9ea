// Package pool owns materialized payload blocks. Blocks are loaded lazily,
// keyed by (file path, offset), handed out as shared read-only slices, and
// released independently of each other. An optional block cache keeps
// released blocks warm so a release/rematerialize cycle does not always
// pay for a disk read.
package pool

import (
	"sync"
	"sync/atomic"

	"github.com/hupe1980/resdb/cache"
	"github.com/hupe1980/resdb/frs"
	"github.com/hupe1980/resdb/resource"
)

// Pool holds the blocks currently materialized. A block stays resident
// until explicitly released; the pool never evicts on its own.
type Pool struct {
	mu     sync.Mutex
	blocks map[cache.Key][]byte
	bytes  int64

	cache cache.BlockCache // optional, holds released blocks
	rc    *resource.Controller

	diskReads atomic.Int64
}

// Stats is a point-in-time snapshot of the pool.
type Stats struct {
	Blocks      int
	Bytes       int64
	DiskReads   int64
	CacheHits   int64
	CacheMisses int64
	CacheBytes  int64
}

// New creates a pool. Both the cache and the controller may be nil.
func New(blockCache cache.BlockCache, rc *resource.Controller) *Pool {
	return &Pool{
		blocks: make(map[cache.Key][]byte),
		cache:  blockCache,
		rc:     rc,
	}
}

// Materialize returns the block for ref, loading it on first use. Repeated
// calls return the same shared slice; callers must treat it as read-only.
// A zero ref yields nil without touching the filesystem.
func (p *Pool) Materialize(ref frs.PayloadRef) ([]byte, error) {
	if ref.IsZero() {
		return nil, nil
	}
	key := cache.Key{Kind: cache.KindPayload, Path: ref.Path, Offset: ref.Offset}

	p.mu.Lock()
	defer p.mu.Unlock()

	if b, ok := p.blocks[key]; ok {
		return b, nil
	}

	// A released block may still be warm in the cache; adopt it back.
	if p.cache != nil {
		if b, ok := p.cache.Get(key); ok {
			p.cache.Delete(key)
			return p.adopt(key, b)
		}
	}

	b, err := frs.ReadPayload(ref)
	if err != nil {
		return nil, err
	}
	p.diskReads.Add(1)
	return p.adopt(key, b)
}

// adopt takes ownership of b under p.mu.
func (p *Pool) adopt(key cache.Key, b []byte) ([]byte, error) {
	if !p.rc.TryAcquireMemory(int64(len(b))) {
		return nil, resource.ErrMemoryLimitExceeded
	}
	p.blocks[key] = b
	p.bytes += int64(len(b))
	return b, nil
}

// Contains reports whether the block for ref is currently materialized.
func (p *Pool) Contains(ref frs.PayloadRef) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.blocks[cache.Key{Kind: cache.KindPayload, Path: ref.Path, Offset: ref.Offset}]
	return ok
}

// Release frees the blocks for the given refs, demoting them to the cache
// when one is attached. Refs without a materialized block are ignored. It
// returns the number of blocks released.
func (p *Pool) Release(refs ...frs.PayloadRef) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	released := 0
	for _, ref := range refs {
		key := cache.Key{Kind: cache.KindPayload, Path: ref.Path, Offset: ref.Offset}
		if p.dropLocked(key, true) {
			released++
		}
	}
	return released
}

// ReleasePath frees every block belonging to one file, including cached
// copies. Used when a file is removed from the extractor.
func (p *Pool) ReleasePath(path string) int {
	p.mu.Lock()
	released := 0
	for key := range p.blocks {
		if key.Path == path {
			if p.dropLocked(key, false) {
				released++
			}
		}
	}
	p.mu.Unlock()

	if p.cache != nil {
		p.cache.InvalidatePath(path)
	}
	return released
}

// ReleaseAll frees every materialized block and clears the cache.
func (p *Pool) ReleaseAll() int {
	p.mu.Lock()
	released := 0
	for key := range p.blocks {
		if p.dropLocked(key, false) {
			released++
		}
	}
	p.mu.Unlock()

	if p.cache != nil {
		p.cache.Clear()
	}
	return released
}

// dropLocked removes one block under p.mu, optionally demoting it.
func (p *Pool) dropLocked(key cache.Key, demote bool) bool {
	b, ok := p.blocks[key]
	if !ok {
		return false
	}
	delete(p.blocks, key)
	p.bytes -= int64(len(b))
	p.rc.ReleaseMemory(int64(len(b)))
	if demote && p.cache != nil {
		p.cache.Set(key, b)
	}
	return true
}

// Len returns the number of materialized blocks.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.blocks)
}

// Bytes returns the materialized bytes.
func (p *Pool) Bytes() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bytes
}

// Stats returns a snapshot of pool and cache counters.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	s := Stats{
		Blocks:    len(p.blocks),
		Bytes:     p.bytes,
		DiskReads: p.diskReads.Load(),
	}
	p.mu.Unlock()

	if p.cache != nil {
		s.CacheHits, s.CacheMisses = p.cache.Stats()
		s.CacheBytes = p.cache.Size()
	}
	return s
}
