package cache

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/resdb/resource"
)

var _ BlockCache = (*LRU)(nil)

// LRU is a byte-bounded least-recently-used BlockCache. If a resource
// controller is attached, cached bytes are reserved against its memory
// budget and a denied reservation skips caching.
type LRU struct {
	mu        sync.Mutex
	capacity  int64
	size      int64
	items     map[Key]*list.Element
	evictList *list.List
	rc        *resource.Controller

	hits   atomic.Int64
	misses atomic.Int64
}

type lruEntry struct {
	key   Key
	value []byte
}

// NewLRU creates a cache holding at most capacity bytes. rc may be nil.
func NewLRU(capacity int64, rc *resource.Controller) *LRU {
	return &LRU{
		capacity:  capacity,
		items:     make(map[Key]*list.Element),
		evictList: list.New(),
		rc:        rc,
	}
}

// Get returns a cached block and marks it recently used.
func (c *LRU) Get(key Key) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.hits.Add(1)
		c.evictList.MoveToFront(ent)
		return ent.Value.(*lruEntry).value, true
	}
	c.misses.Add(1)
	return nil, false
}

// Set caches a block, evicting least-recently-used blocks to fit. Blocks
// larger than the whole capacity are not cached.
func (c *LRU) Set(key Key, b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.evictList.MoveToFront(ent)
		oldSize := int64(len(ent.Value.(*lruEntry).value))
		newSize := int64(len(b))
		if newSize > oldSize && !c.rc.TryAcquireMemory(newSize-oldSize) {
			// The budget denies the growth; keep the old value.
			return
		}
		if newSize < oldSize {
			c.rc.ReleaseMemory(oldSize - newSize)
		}
		c.size += newSize - oldSize
		ent.Value.(*lruEntry).value = b
		c.evictLocked()
		return
	}

	itemSize := int64(len(b))
	if itemSize > c.capacity {
		return
	}

	// Evict locally first so freed bytes return to the budget before the
	// new reservation.
	for c.size+itemSize > c.capacity {
		tail := c.evictList.Back()
		if tail == nil {
			break
		}
		c.removeElement(tail)
	}
	if !c.rc.TryAcquireMemory(itemSize) {
		return
	}

	elem := c.evictList.PushFront(&lruEntry{key: key, value: b})
	c.items[key] = elem
	c.size += itemSize
}

// Delete drops one block.
func (c *LRU) Delete(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		c.removeElement(ent)
	}
}

// Invalidate removes blocks whose key matches the predicate.
func (c *LRU) Invalidate(predicate func(key Key) bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var toRemove []*list.Element
	for key, elem := range c.items {
		if predicate(key) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		c.removeElement(elem)
	}
}

// InvalidatePath drops every block belonging to one file.
func (c *LRU) InvalidatePath(path string) {
	c.Invalidate(func(key Key) bool { return key.Path == path })
}

// Len returns the number of cached blocks.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictList.Len()
}

// Size returns the cached bytes.
func (c *LRU) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Clear drops everything.
func (c *LRU) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

// Stats returns lifetime hit and miss counts.
func (c *LRU) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *LRU) evictLocked() {
	for c.size > c.capacity && c.evictList.Len() > 0 {
		c.removeElement(c.evictList.Back())
	}
}

func (c *LRU) removeElement(e *list.Element) {
	c.evictList.Remove(e)
	ent := e.Value.(*lruEntry)
	delete(c.items, ent.key)
	itemSize := int64(len(ent.value))
	c.size -= itemSize
	c.rc.ReleaseMemory(itemSize)
}
