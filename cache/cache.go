// Package cache provides byte-oriented block caching shared by the
// payload pool and the blob store read path.
package cache

// Kind separates key spaces sharing one cache.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindPayload keys materialized payload blocks by byte offset.
	KindPayload
	// KindBlobBlock keys store read-through blocks by block index.
	KindBlobBlock
)

// Key addresses one cached block: the file or blob it came from and the
// block's offset in the key space of its kind.
type Key struct {
	Kind   Kind
	Path   string
	Offset uint64
}

// BlockCache caches immutable payload blocks. Returned slices are shared
// with the cache; callers must treat them as read-only.
type BlockCache interface {
	// Get returns a cached block, ok=false if missing.
	Get(key Key) ([]byte, bool)
	// Set caches a block. The cache retains b; the caller must not
	// modify it afterwards.
	Set(key Key, b []byte)
	// Delete drops one block.
	Delete(key Key)
	// InvalidatePath drops every block belonging to one file.
	InvalidatePath(path string)
	// Len returns the number of cached blocks.
	Len() int
	// Size returns the cached bytes.
	Size() int64
	// Clear drops everything.
	Clear()
	// Stats returns lifetime hit and miss counts.
	Stats() (hits, misses int64)
}
