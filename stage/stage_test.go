package stage

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resdb/blobstore"
	"github.com/hupe1980/resdb/resource"
)

func payload() []byte {
	return bytes.Repeat([]byte("result cell data "), 1024)
}

func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write(data)
	require.NoError(t, err)
	require.NoError(t, enc.Close())
	return buf.Bytes()
}

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write(data)
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func compressLZ4(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	lw := lz4.NewWriter(&buf)
	_, err := lw.Write(data)
	require.NoError(t, err)
	require.NoError(t, lw.Close())
	return buf.Bytes()
}

// countingStore counts Open calls on the wrapped store.
type countingStore struct {
	blobstore.Store
	opens atomic.Int32
}

func (c *countingStore) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	c.opens.Add(1)
	return c.Store.Open(ctx, name)
}

func TestStagePassthrough(t *testing.T) {
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "plain.frs")
	require.NoError(t, os.WriteFile(src, payload(), 0o644))

	s, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Cleanup()

	got, err := s.Stage(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, src, got, "local plain files pass through")

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStageLocalCompressed(t *testing.T) {
	cases := []struct {
		name     string
		ext      string
		compress func(*testing.T, []byte) []byte
	}{
		{"Zstd", ".zst", compressZstd},
		{"Gzip", ".gz", compressGzip},
		{"LZ4", ".lz4", compressLZ4},
	}

	ctx := context.Background()
	want := payload()

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := filepath.Join(t.TempDir(), "fixture.frs"+tc.ext)
			require.NoError(t, os.WriteFile(src, tc.compress(t, want), 0o644))

			s, err := New(Config{Dir: t.TempDir()})
			require.NoError(t, err)
			defer s.Cleanup()

			got, err := s.Stage(ctx, src)
			require.NoError(t, err)
			assert.NotEqual(t, src, got)
			assert.Equal(t, s.Dir(), filepath.Dir(got))
			assert.True(t, strings.HasSuffix(got, "-fixture.frs"), "compression suffix dropped: %s", got)

			data, err := os.ReadFile(got)
			require.NoError(t, err)
			assert.Equal(t, want, data)
		})
	}
}

func TestStageFromStore(t *testing.T) {
	ctx := context.Background()
	want := payload()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "runs/42/load.frs", want))

	s, err := New(Config{Dir: t.TempDir(), Store: ms})
	require.NoError(t, err)
	defer s.Cleanup()

	for _, ref := range []string{"runs/42/load.frs", "store://runs/42/load.frs"} {
		got, err := s.Stage(ctx, ref)
		require.NoError(t, err)
		assert.Equal(t, s.Dir(), filepath.Dir(got))

		data, err := os.ReadFile(got)
		require.NoError(t, err)
		assert.Equal(t, want, data)
	}
}

func TestStageStoreCompressed(t *testing.T) {
	ctx := context.Background()
	want := payload()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "runs/42/load.frs.zst", compressZstd(t, want)))

	s, err := New(Config{Dir: t.TempDir(), Store: ms})
	require.NoError(t, err)
	defer s.Cleanup()

	got, err := s.Stage(ctx, "runs/42/load.frs.zst")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(got, "-load.frs"))

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestStageReuse(t *testing.T) {
	ctx := context.Background()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a.frs", payload()))
	cs := &countingStore{Store: ms}

	s, err := New(Config{Dir: t.TempDir(), Store: cs})
	require.NoError(t, err)
	defer s.Cleanup()

	first, err := s.Stage(ctx, "a.frs")
	require.NoError(t, err)
	second, err := s.Stage(ctx, "a.frs")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), cs.opens.Load(), "staged copy reused")
}

func TestStageConcurrentSharesFetch(t *testing.T) {
	ctx := context.Background()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a.frs", payload()))
	cs := &countingStore{Store: ms}

	s, err := New(Config{Dir: t.TempDir(), Store: cs})
	require.NoError(t, err)
	defer s.Cleanup()

	var wg sync.WaitGroup
	paths := make([]string, 8)
	for i := range paths {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := s.Stage(ctx, "a.frs")
			assert.NoError(t, err)
			paths[i] = p
		}(i)
	}
	wg.Wait()

	for _, p := range paths[1:] {
		assert.Equal(t, paths[0], p)
	}
	assert.Equal(t, int32(1), cs.opens.Load(), "one fetch shared by all callers")
}

func TestStageStoreRefWithoutStore(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	defer s.Cleanup()

	_, err = s.Stage(context.Background(), "store://runs/42/load.frs")
	assert.Error(t, err)
}

func TestStageStoreNotFound(t *testing.T) {
	s, err := New(Config{Dir: t.TempDir(), Store: blobstore.NewMemoryStore()})
	require.NoError(t, err)
	defer s.Cleanup()

	_, err = s.Stage(context.Background(), "nope.frs")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestStageRateLimited(t *testing.T) {
	ctx := context.Background()
	want := payload()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a.frs", want))

	rc := resource.NewController(resource.Config{IOLimitBytesPerSec: 1 << 26})
	s, err := New(Config{Dir: t.TempDir(), Store: ms, Resources: rc})
	require.NoError(t, err)
	defer s.Cleanup()

	got, err := s.Stage(ctx, "a.frs")
	require.NoError(t, err)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, want, data)
}

func TestCleanupOwnedDir(t *testing.T) {
	ctx := context.Background()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a.frs", payload()))

	s, err := New(Config{Store: ms})
	require.NoError(t, err)

	staged, err := s.Stage(ctx, "a.frs")
	require.NoError(t, err)
	require.FileExists(t, staged)

	require.NoError(t, s.Cleanup())
	assert.NoFileExists(t, staged)
	assert.NoDirExists(t, s.Dir(), "owned temp directory removed")
}

func TestCleanupProvidedDir(t *testing.T) {
	ctx := context.Background()

	ms := blobstore.NewMemoryStore()
	require.NoError(t, ms.Put(ctx, "a.frs", payload()))

	dir := t.TempDir()
	s, err := New(Config{Dir: dir, Store: ms})
	require.NoError(t, err)

	staged, err := s.Stage(ctx, "a.frs")
	require.NoError(t, err)

	require.NoError(t, s.Cleanup())
	assert.NoFileExists(t, staged)
	assert.DirExists(t, dir, "caller-provided directory kept")
}
