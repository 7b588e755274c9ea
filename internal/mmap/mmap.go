package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

var (
	// ErrClosed is returned when accessing a closed mapping.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned when the file size cannot be mapped.
	ErrInvalidSize = errors.New("mmap: invalid file size")
)

// AccessPattern provides hints to the kernel about how the data will be accessed.
type AccessPattern int

const (
	// AccessDefault is the default access pattern (no specific advice).
	AccessDefault AccessPattern = iota
	// AccessSequential expects data to be accessed sequentially.
	AccessSequential
	// AccessRandom expects data to be accessed randomly.
	AccessRandom
)

// Mapping is a read-only memory-mapped file. It owns the mapped byte slice
// and is responsible for unmapping it.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps the file at path into memory read-only.
// An empty file yields a valid mapping with no data.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}

	size := fi.Size()
	if size == 0 {
		return &Mapping{}, nil
	}
	if size < 0 || size != int64(int(size)) {
		return nil, ErrInvalidSize
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}

	return &Mapping{data: data, unmap: unmap}, nil
}

// Close unmaps the memory. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	if m.unmap != nil && m.data != nil {
		return m.unmap(m.data)
	}
	return nil
}

// Bytes returns the mapped bytes. The slice is valid only until Close;
// accessing it afterwards is undefined behavior.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the size of the mapping in bytes.
func (m *Mapping) Size() int64 {
	return int64(len(m.data))
}

// Advise hints the kernel about the expected access pattern.
func (m *Mapping) Advise(pattern AccessPattern) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if m.data == nil {
		return nil
	}
	return osAdvise(m.data, pattern)
}

// ReadAt implements io.ReaderAt.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	if m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidSize
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
