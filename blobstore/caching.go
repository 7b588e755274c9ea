package blobstore

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/resdb/cache"
)

var _ Store = (*CachingStore)(nil)

// CachingStore wraps a Store and adds block-level read caching. Remote
// reads are fetched in aligned blocks so repeated catalog and payload
// access does not hit the backend again.
type CachingStore struct {
	inner     Store
	cache     cache.BlockCache
	blockSize int64
}

// NewCachingStore creates a CachingStore. blockSize defaults to 4KB if
// not positive.
func NewCachingStore(inner Store, blockCache cache.BlockCache, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = 4096
	}
	return &CachingStore{
		inner:     inner,
		cache:     blockCache,
		blockSize: blockSize,
	}
}

// Open opens a blob whose reads go through the block cache.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{
		inner:     b,
		cache:     s.cache,
		name:      name,
		blockSize: s.blockSize,
	}, nil
}

// Create passes through; only reads are cached.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	return s.inner.Create(ctx, name)
}

// Put invalidates cached blocks of the blob before overwriting it.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.cache.InvalidatePath(name)
	return s.inner.Put(ctx, name, data)
}

// Delete invalidates cached blocks of the blob before removing it.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.cache.InvalidatePath(name)
	return s.inner.Delete(ctx, name)
}

// List passes through.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

type cachingBlob struct {
	inner     Blob
	cache     cache.BlockCache
	name      string
	blockSize int64
}

func (b *cachingBlob) Close() error {
	return b.inner.Close()
}

func (b *cachingBlob) Size() int64 {
	return b.inner.Size()
}

func (b *cachingBlob) key(blk int64) cache.Key {
	return cache.Key{Kind: cache.KindBlobBlock, Path: b.name, Offset: uint64(blk)}
}

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	startBlock := off / b.blockSize
	endBlock := (off + int64(len(p)) - 1) / b.blockSize

	if err := b.fillCache(ctx, startBlock, endBlock); err != nil {
		return 0, err
	}

	totalRead := 0
	for blk := startBlock; blk <= endBlock; blk++ {
		blkStart := blk * b.blockSize

		// Intersection of this block with the requested range.
		intersectStart := max(blkStart, off)
		intersectEnd := min(blkStart+b.blockSize, off+int64(len(p)))
		if intersectEnd <= intersectStart {
			continue
		}
		copySize := int(intersectEnd - intersectStart)
		dstOffset := intersectStart - off

		blockData, err := b.fetchBlock(ctx, blk)
		if err != nil {
			return totalRead, err
		}

		srcOffset := intersectStart - blkStart
		if srcOffset+int64(copySize) > int64(len(blockData)) {
			// Short final block of a file whose size is not a block
			// multiple.
			copySize = len(blockData) - int(srcOffset)
		}
		if copySize > 0 {
			totalRead += copy(p[dstOffset:dstOffset+int64(copySize)], blockData[srcOffset:])
		}
	}
	return totalRead, nil
}

// fillCache loads the missing blocks of the range, coalescing contiguous
// runs into single backend reads fetched in parallel.
func (b *cachingBlob) fillCache(ctx context.Context, startBlock, endBlock int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	type run struct{ start, count int64 }
	var missing []run

	runStart, runCount := int64(-1), int64(0)
	for blk := startBlock; blk <= endBlock; blk++ {
		if _, ok := b.cache.Get(b.key(blk)); !ok {
			if runStart == -1 {
				runStart, runCount = blk, 1
			} else {
				runCount++
			}
			continue
		}
		if runStart != -1 {
			missing = append(missing, run{runStart, runCount})
			runStart, runCount = -1, 0
		}
	}
	if runStart != -1 {
		missing = append(missing, run{runStart, runCount})
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(16)

	for _, r := range missing {
		g.Go(func() error {
			byteStart := r.start * b.blockSize
			byteSize := r.count * b.blockSize

			fileSize := b.Size()
			if byteStart >= fileSize {
				return nil
			}
			if byteStart+byteSize > fileSize {
				byteSize = fileSize - byteStart
			}

			buf := make([]byte, byteSize)
			n, err := b.inner.ReadAt(ctx, buf, byteStart)
			if err != nil && !errors.Is(err, io.EOF) {
				return err
			}
			if n == 0 {
				return nil
			}
			valid := buf[:n]

			for i := int64(0); i < r.count; i++ {
				offsetInRun := i * b.blockSize
				if offsetInRun >= int64(len(valid)) {
					break
				}
				endInRun := min(offsetInRun+b.blockSize, int64(len(valid)))

				// Copy so the cache does not pin the whole run buffer.
				block := make([]byte, endInRun-offsetInRun)
				copy(block, valid[offsetInRun:endInRun])
				b.cache.Set(b.key(r.start+i), block)
			}
			return nil
		})
	}
	return g.Wait()
}

func (b *cachingBlob) fetchBlock(ctx context.Context, blk int64) ([]byte, error) {
	if data, ok := b.cache.Get(b.key(blk)); ok {
		return data, nil
	}

	buf := make([]byte, b.blockSize)
	n, err := b.inner.ReadAt(ctx, buf, blk*b.blockSize)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	valid := buf[:n]
	if n > 0 {
		b.cache.Set(b.key(blk), valid)
	}
	return valid, nil
}

// ReadRange serves the range through the block cache via ReadAt.
func (b *cachingBlob) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	return io.NopCloser(&ctxSectionReader{blob: b, ctx: ctx, off: off, limit: off + length}), nil
}

// ctxSectionReader adapts the ctx-taking ReadAt to io.Reader.
type ctxSectionReader struct {
	blob  *cachingBlob
	ctx   context.Context
	off   int64
	limit int64
}

func (r *ctxSectionReader) Read(p []byte) (int, error) {
	if r.off >= r.limit {
		return 0, io.EOF
	}
	if remaining := r.limit - r.off; int64(len(p)) > remaining {
		p = p[:remaining]
	}
	n, err := r.blob.ReadAt(r.ctx, p, r.off)
	r.off += int64(n)
	if err == nil && n == 0 {
		return 0, io.EOF
	}
	return n, err
}
