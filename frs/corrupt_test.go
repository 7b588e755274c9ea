package frs

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/hupe1980/resdb/internal/fs"
)

func fixtureBytes(t *testing.T, order binary.ByteOrder) []byte {
	t.Helper()
	data, err := buildFixture(order).Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	return data
}

func writeRaw(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corrupt.rdb")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestOpenShortHeader(t *testing.T) {
	data := fixtureBytes(t, binary.LittleEndian)
	_, err := Open(writeRaw(t, data[:10]))
	var herr *HeaderError
	if !errors.As(err, &herr) {
		t.Fatalf("got %v, want HeaderError", err)
	}
}

func TestOpenBadTag(t *testing.T) {
	data := fixtureBytes(t, binary.LittleEndian)
	data[0] = 'X'
	_, err := Open(writeRaw(t, data))
	var herr *HeaderError
	if !errors.As(err, &herr) {
		t.Fatalf("got %v, want HeaderError", err)
	}
}

func TestOpenBadEndianMarker(t *testing.T) {
	data := fixtureBytes(t, binary.LittleEndian)
	data[24], data[25] = 0xFF, 0xFF
	_, err := Open(writeRaw(t, data))
	var herr *HeaderError
	if !errors.As(err, &herr) {
		t.Fatalf("got %v, want HeaderError", err)
	}
}

func TestOpenChecksumMismatch(t *testing.T) {
	data := fixtureBytes(t, binary.BigEndian)
	data[5] ^= 0xFF // corrupt a tag byte after the checksum was computed
	_, err := Open(writeRaw(t, data))
	if !IsChecksumMismatch(err) {
		t.Fatalf("got %v, want checksum mismatch", err)
	}
	var cerr *ChecksumMismatchError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %T, want *ChecksumMismatchError", err)
	}
	if cerr.Expected == cerr.Actual {
		t.Errorf("expected and actual checksums should differ: %08x", cerr.Expected)
	}
}

func TestOpenTruncatedCatalog(t *testing.T) {
	data := fixtureBytes(t, binary.LittleEndian)
	_, err := Open(writeRaw(t, data[:HeaderSize+3]))
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CatalogError", err)
	}
}

func TestOpenPayloadPastEnd(t *testing.T) {
	data := fixtureBytes(t, binary.LittleEndian)
	_, err := Open(writeRaw(t, data[:len(data)-4]))
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CatalogError", err)
	}
}

func TestOpenAbsurdObjectCount(t *testing.T) {
	valid := fixtureBytes(t, binary.LittleEndian)
	data := make([]byte, 0, HeaderSize+8)
	data = append(data, valid[:HeaderSize]...)
	data = append(data, 0, 0) // empty module label
	data = append(data, 0, 0) // empty created label
	data = binary.LittleEndian.AppendUint32(data, 0xFFFFFFFF)
	_, err := Open(writeRaw(t, data))
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CatalogError", err)
	}
}

func TestOpenInvalidCellSize(t *testing.T) {
	w := NewWriter(binary.LittleEndian)
	w.Object("Beam", 1, -1).Raw("Axial", "SCALAR", 3, []byte{1, 2, 3})
	data, err := w.Bytes()
	if err != nil {
		t.Fatalf("Bytes failed: %v", err)
	}
	_, err = Open(writeRaw(t, data))
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CatalogError", err)
	}
}

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "absent.rdb"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("got %v, want ErrNotExist", err)
	}
}

func TestOpenInjectedReadFault(t *testing.T) {
	errInjected := errors.New("disk gone")
	path := writeFixtureFile(t, binary.LittleEndian, "flaky.rdb")

	fsys := fs.NewFaultyFS(nil)
	fsys.AddRule("flaky", fs.Fault{FailReadAfter: HeaderSize + 4, Err: errInjected})

	_, err := openWith(fsys, path)
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Fatalf("got %v, want CatalogError", err)
	}
	if !errors.Is(err, errInjected) {
		t.Errorf("cause not preserved: %v", err)
	}
}

func TestReadPayloadInjectedFault(t *testing.T) {
	errInjected := errors.New("disk gone")
	path := writeFixtureFile(t, binary.LittleEndian, "flaky.rdb")

	f, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	ref := f.Objects[0].Children[0].Children[0].Payload

	fsys := fs.NewFaultyFS(nil)
	fsys.AddRule("flaky", fs.Fault{FailReadAfter: 8, Err: errInjected})

	_, err = readPayloadWith(fsys, ref)
	if !errors.Is(err, errInjected) {
		t.Fatalf("got %v, want injected fault", err)
	}
}
