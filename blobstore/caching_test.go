package blobstore

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resdb/cache"
)

type countingBlob struct {
	data      []byte
	reads     int
	readBytes int
}

func (m *countingBlob) Close() error { return nil }
func (m *countingBlob) Size() int64  { return int64(len(m.data)) }

func (m *countingBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	m.readBytes += n
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (m *countingBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	end := min(off+length, int64(len(m.data)))
	return io.NopCloser(bytes.NewReader(m.data[off:end])), nil
}

type countingStore struct {
	blobs map[string]*countingBlob
	opens int
}

func (m *countingStore) Open(_ context.Context, name string) (Blob, error) {
	m.opens++
	if b, ok := m.blobs[name]; ok {
		return b, nil
	}
	return nil, ErrNotFound
}

func (m *countingStore) Create(context.Context, string) (WritableBlob, error) { return nil, nil }

func (m *countingStore) Put(_ context.Context, name string, data []byte) error {
	if m.blobs == nil {
		m.blobs = make(map[string]*countingBlob)
	}
	m.blobs[name] = &countingBlob{data: data}
	return nil
}

func (m *countingStore) Delete(context.Context, string) error { return nil }

func (m *countingStore) List(context.Context, string) ([]string, error) { return nil, nil }

func TestCachingStore_ReadAt(t *testing.T) {
	ctx := context.Background()

	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i % 255)
	}
	inner := &countingStore{
		blobs: map[string]*countingBlob{"test": {data: data}},
	}

	c := cache.NewLRU(1<<20, nil)
	store := NewCachingStore(inner, c, 256)

	blob, err := store.Open(ctx, "test")
	require.NoError(t, err)
	backend := inner.blobs["test"]

	// First read loads block 0 from the backend.
	buf := make([]byte, 100)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[:100], buf)
	assert.Equal(t, 1, backend.reads)
	assert.Equal(t, 256, backend.readBytes)

	// Same range again is served from the cache.
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.reads)

	// A read spanning blocks 0 and 1 only fetches block 1.
	buf2 := make([]byte, 100)
	n, err = blob.ReadAt(ctx, buf2, 200)
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Equal(t, data[200:300], buf2)
	assert.Equal(t, 2, backend.reads)
	assert.Equal(t, 512, backend.readBytes)

	// Block 1 is now warm.
	_, err = blob.ReadAt(ctx, buf2, 260)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.reads)
}

func TestCachingStore_CoalescesMissingRuns(t *testing.T) {
	ctx := context.Background()

	data := make([]byte, 4096)
	inner := &countingStore{
		blobs: map[string]*countingBlob{"big": {data: data}},
	}
	c := cache.NewLRU(1<<20, nil)
	store := NewCachingStore(inner, c, 256)

	blob, err := store.Open(ctx, "big")
	require.NoError(t, err)

	// Eight missing blocks come back in one backend read.
	buf := make([]byte, 2048)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 2048, n)
	assert.Equal(t, 1, inner.blobs["big"].reads)
}

func TestCachingStore_ShortFinalBlock(t *testing.T) {
	ctx := context.Background()

	inner := &countingStore{
		blobs: map[string]*countingBlob{"small": {data: []byte("hello")}},
	}
	c := cache.NewLRU(1024, nil)
	store := NewCachingStore(inner, c, 256)

	blob, err := store.Open(ctx, "small")
	require.NoError(t, err)

	buf := make([]byte, 10)
	n, err := blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestCachingStore_PutInvalidates(t *testing.T) {
	ctx := context.Background()

	inner := &countingStore{}
	require.NoError(t, inner.Put(ctx, "blob", []byte("old content here")))

	c := cache.NewLRU(1<<20, nil)
	store := NewCachingStore(inner, c, 8)

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)

	buf := make([]byte, 3)
	_, err = blob.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "old", string(buf))
	require.NotZero(t, c.Len())

	require.NoError(t, store.Put(ctx, "blob", []byte("new content here")))
	assert.Zero(t, c.Len(), "stale blocks must be dropped on overwrite")

	blob2, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	_, err = blob2.ReadAt(ctx, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "new", string(buf))
}

func TestCachingStore_ReadRange(t *testing.T) {
	ctx := context.Background()

	inner := &countingStore{}
	require.NoError(t, inner.Put(ctx, "blob", []byte("0123456789abcdef")))

	store := NewCachingStore(inner, cache.NewLRU(1024, nil), 4)
	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)

	rc, err := blob.ReadRange(ctx, 6, 6)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "6789ab", string(got))
}
