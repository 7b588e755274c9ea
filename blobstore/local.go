package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/hupe1980/resdb/internal/mmap"
)

var _ Store = (*LocalStore)(nil)

// LocalStore implements Store on a local directory. Blobs open as memory
// mappings, the cheapest way to serve the scattered payload reads of an
// extractor.
type LocalStore struct {
	root string
}

// NewLocalStore creates a LocalStore rooted at the given directory.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

// Open opens a blob for reading.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	m, err := mmap.Open(filepath.Join(s.root, name))
	if err != nil {
		return nil, err
	}
	return &localBlob{m: m}, nil
}

// Create opens a writable blob. Writes go to a temp file in the target
// directory; Close publishes it with a rename.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	dest := filepath.Join(s.root, name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(name)+".tmp-*")
	if err != nil {
		return nil, err
	}
	return &localWritableBlob{f: tmp, dest: dest}, nil
}

// Put writes a blob atomically via temp file and rename.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	w, err := s.Create(ctx, name)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.(*localWritableBlob).abandon()
		return err
	}
	if err := w.Sync(); err != nil {
		w.(*localWritableBlob).abandon()
		return err
	}
	return w.Close()
}

// Delete removes a blob. Absent blobs are ignored.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	err := os.Remove(filepath.Join(s.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// List returns the relative slash-separated names under root matching the
// prefix, sorted.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) && path == s.root {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if prefix == "" || (len(name) >= len(prefix) && name[:len(prefix)] == prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

type localBlob struct {
	m *mmap.Mapping
}

func (b *localBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b *localBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	data := b.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	end := off + length
	if end > int64(len(data)) {
		end = int64(len(data))
	}
	return io.NopCloser(bytes.NewReader(data[off:end])), nil
}

func (b *localBlob) Size() int64 {
	return b.m.Size()
}

func (b *localBlob) Close() error {
	return b.m.Close()
}

// Bytes exposes the mapping zero-copy.
func (b *localBlob) Bytes() ([]byte, error) {
	return b.m.Bytes(), nil
}

type localWritableBlob struct {
	f    *os.File
	dest string
}

func (w *localWritableBlob) Write(p []byte) (int, error) { return w.f.Write(p) }

func (w *localWritableBlob) Sync() error { return w.f.Sync() }

// Close publishes the blob under its destination name.
func (w *localWritableBlob) Close() error {
	if err := w.f.Close(); err != nil {
		os.Remove(w.f.Name())
		return err
	}
	return os.Rename(w.f.Name(), w.dest)
}

// abandon discards the temp file without publishing.
func (w *localWritableBlob) abandon() {
	w.f.Close()
	os.Remove(w.f.Name())
}
