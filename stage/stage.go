// Package stage resolves result-file references to local plain files the
// reader can open directly. Remote references are downloaded from a blob
// store, compressed archives are expanded, and everything staged lands in
// one directory that Cleanup empties again.
package stage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/resdb/blobstore"
	"github.com/hupe1980/resdb/internal/hash"
	"github.com/hupe1980/resdb/resource"
)

// StorePrefix marks a reference as a blob-store key. With a Store
// configured, bare references are treated as store keys as well.
const StorePrefix = "store://"

// Config configures a Stager.
type Config struct {
	// Dir is the stage directory. Empty means a fresh temp directory
	// owned by the Stager and removed on Cleanup.
	Dir string

	// Store resolves remote references. Nil restricts staging to local
	// files.
	Store blobstore.Store

	// Resources throttles staging IO. Nil means unthrottled.
	Resources *resource.Controller
}

// Stager stages result files. Staged copies are addressed by their
// source reference, so staging the same reference twice reuses the
// first copy. Safe for concurrent use.
type Stager struct {
	dir     string
	ownsDir bool
	store   blobstore.Store
	rc      *resource.Controller

	group singleflight.Group

	mu     sync.Mutex
	staged map[string]string // ref -> local path
}

// New creates a Stager. The stage directory is created if needed.
func New(cfg Config) (*Stager, error) {
	dir := cfg.Dir
	ownsDir := false
	if dir == "" {
		d, err := os.MkdirTemp("", "resdb-stage-*")
		if err != nil {
			return nil, fmt.Errorf("stage: create directory: %w", err)
		}
		dir = d
		ownsDir = true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("stage: create directory: %w", err)
	}

	return &Stager{
		dir:     dir,
		ownsDir: ownsDir,
		store:   cfg.Store,
		rc:      cfg.Resources,
		staged:  make(map[string]string),
	}, nil
}

// Dir returns the stage directory.
func (s *Stager) Dir() string {
	return s.dir
}

// Stage resolves ref to a local plain file path. Local uncompressed
// files pass through untouched; everything else is materialized in the
// stage directory. Concurrent calls for the same ref share one fetch.
func (s *Stager) Stage(ctx context.Context, ref string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	_, explicit := strings.CutPrefix(ref, StorePrefix)
	if explicit && s.store == nil {
		return "", fmt.Errorf("stage: reference %q needs a blob store", ref)
	}
	if !explicit && s.store == nil && CompressionExt(ref) == "" {
		return ref, nil
	}

	v, err, _ := s.group.Do(ref, func() (any, error) {
		if p, ok := s.lookup(ref); ok {
			return p, nil
		}

		dest := s.target(ref)
		// A complete staged copy may be left from an earlier Stager on
		// the same directory; writes are temp+rename, so presence means
		// complete.
		if _, err := os.Stat(dest); err == nil {
			s.remember(ref, dest)
			return dest, nil
		}

		if err := s.fetch(ctx, ref, dest); err != nil {
			return nil, err
		}
		s.remember(ref, dest)
		return dest, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// Cleanup removes all files this Stager staged, and the stage directory
// itself if the Stager created it.
func (s *Stager) Cleanup() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for ref, p := range s.staged {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		delete(s.staged, ref)
	}
	if s.ownsDir {
		if err := os.RemoveAll(s.dir); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Stager) lookup(ref string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.staged[ref]
	if !ok {
		return "", false
	}
	if _, err := os.Stat(p); err != nil {
		delete(s.staged, ref)
		return "", false
	}
	return p, true
}

func (s *Stager) remember(ref, path string) {
	s.mu.Lock()
	s.staged[ref] = path
	s.mu.Unlock()
}

// target derives the staged path for a reference: a hash of the full
// reference plus its base name with any compression suffix dropped.
func (s *Stager) target(ref string) string {
	base := filepath.Base(strings.TrimPrefix(ref, StorePrefix))
	base = strings.TrimSuffix(base, CompressionExt(ref))
	return filepath.Join(s.dir, fmt.Sprintf("%08x-%s", hash.CRC32C([]byte(ref)), base))
}

// fetch materializes ref into dest via a temp file and rename.
func (s *Stager) fetch(ctx context.Context, ref, dest string) error {
	src, err := s.open(ctx, ref)
	if err != nil {
		return err
	}
	defer src.Close()

	var r io.Reader = resource.NewRateLimitedReader(ctx, src, s.rc)
	r, closeDecomp, err := decompressor(ref, r)
	if err != nil {
		return err
	}
	if closeDecomp != nil {
		defer closeDecomp()
	}

	tmp, err := os.CreateTemp(s.dir, ".staging-*")
	if err != nil {
		return fmt.Errorf("stage: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage: %q: %w", ref, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("stage: sync %q: %w", ref, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stage: close %q: %w", ref, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("stage: publish %q: %w", ref, err)
	}
	return nil
}

// open returns the raw source stream for a reference.
func (s *Stager) open(ctx context.Context, ref string) (io.ReadCloser, error) {
	key, explicit := strings.CutPrefix(ref, StorePrefix)
	if explicit || s.store != nil {
		if !explicit {
			key = ref
		}
		blob, err := s.store.Open(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("stage: open %q: %w", ref, err)
		}
		rc, err := blob.ReadRange(ctx, 0, blob.Size())
		if err != nil {
			blob.Close()
			return nil, fmt.Errorf("stage: read %q: %w", ref, err)
		}
		return &blobStream{rc: rc, blob: blob}, nil
	}

	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("stage: open %q: %w", ref, err)
	}
	return f, nil
}

// blobStream closes the range reader and the blob together.
type blobStream struct {
	rc   io.ReadCloser
	blob blobstore.Blob
}

func (b *blobStream) Read(p []byte) (int, error) {
	return b.rc.Read(p)
}

func (b *blobStream) Close() error {
	err := b.rc.Close()
	if cerr := b.blob.Close(); err == nil {
		err = cerr
	}
	return err
}

// CompressionExt returns the recognized compression suffix of ref, or "".
func CompressionExt(ref string) string {
	switch {
	case strings.HasSuffix(ref, ".zst"):
		return ".zst"
	case strings.HasSuffix(ref, ".gz"):
		return ".gz"
	case strings.HasSuffix(ref, ".lz4"):
		return ".lz4"
	default:
		return ""
	}
}

// decompressor wraps r according to ref's compression suffix. The
// returned func, when non-nil, releases decoder resources.
func decompressor(ref string, r io.Reader) (io.Reader, func(), error) {
	switch CompressionExt(ref) {
	case ".zst":
		d, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("stage: zstd %q: %w", ref, err)
		}
		return d, d.Close, nil
	case ".gz":
		g, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("stage: gzip %q: %w", ref, err)
		}
		return g, func() { _ = g.Close() }, nil
	case ".lz4":
		return lz4.NewReader(r), nil, nil
	default:
		return r, nil, nil
	}
}
