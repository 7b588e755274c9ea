package mmap

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "blob.bin")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestOpenReadClose(t *testing.T) {
	want := []byte("result payload bytes")
	m, err := Open(writeTemp(t, want))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	if got := m.Bytes(); !bytes.Equal(got, want) {
		t.Errorf("Bytes = %q, want %q", got, want)
	}
	if m.Size() != int64(len(want)) {
		t.Errorf("Size = %d, want %d", m.Size(), len(want))
	}

	buf := make([]byte, 7)
	if _, err := m.ReadAt(buf, 7); err != nil {
		t.Fatalf("ReadAt: %v", err)
	}
	if string(buf) != "payload" {
		t.Errorf("ReadAt = %q, want %q", buf, "payload")
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if m.Bytes() != nil {
		t.Error("Bytes after Close should be nil")
	}
	if _, err := m.ReadAt(buf, 0); err != ErrClosed {
		t.Errorf("ReadAt after Close err = %v, want ErrClosed", err)
	}
}

func TestOpenEmptyFile(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if m.Size() != 0 {
		t.Errorf("Size = %d, want 0", m.Size())
	}
	if _, err := m.ReadAt(make([]byte, 1), 0); err != io.EOF {
		t.Errorf("ReadAt on empty mapping err = %v, want io.EOF", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "nope.bin")); err == nil {
		t.Fatal("Open of missing file should fail")
	}
}

func TestAdvise(t *testing.T) {
	m, err := Open(writeTemp(t, make([]byte, 4096)))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer m.Close()

	if err := m.Advise(AccessSequential); err != nil {
		t.Errorf("Advise: %v", err)
	}
}
