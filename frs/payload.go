package frs

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/hupe1980/resdb/internal/fs"
)

// ReadPayload reads the block addressed by ref and returns its cells in
// canonical little-endian order. A zero ref yields nil without touching
// the filesystem.
func ReadPayload(ref PayloadRef) ([]byte, error) {
	return readPayloadWith(fs.Default, ref)
}

func readPayloadWith(fsys fs.FileSystem, ref PayloadRef) ([]byte, error) {
	if ref.IsZero() {
		return nil, nil
	}
	h, err := fsys.Open(ref.Path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	buf := make([]byte, ref.Length)
	n, err := h.ReadAt(buf, int64(ref.Offset))
	if err != nil && !(n == len(buf) && err == io.EOF) {
		return nil, &CatalogError{Path: ref.Path, Reason: "reading payload", cause: err}
	}
	if ref.Swap {
		SwapCells(buf, ref.CellSize)
	}
	return buf, nil
}

// SwapCells reverses the bytes of each cell in place. A cell size of one
// is a no-op.
func SwapCells(buf []byte, cellSize uint8) {
	cs := int(cellSize)
	if cs <= 1 {
		return
	}
	for i := 0; i+cs <= len(buf); i += cs {
		for l, r := i, i+cs-1; l < r; l, r = l+1, r-1 {
			buf[l], buf[r] = buf[r], buf[l]
		}
	}
}

// Float64s interprets a canonical payload as a float64 vector.
func Float64s(buf []byte) []float64 {
	out := make([]float64, 0, len(buf)/8)
	for i := 0; i+8 <= len(buf); i += 8 {
		out = append(out, math.Float64frombits(binary.LittleEndian.Uint64(buf[i:])))
	}
	return out
}

// Float32s interprets a canonical payload as a float32 vector.
func Float32s(buf []byte) []float32 {
	out := make([]float32, 0, len(buf)/4)
	for i := 0; i+4 <= len(buf); i += 4 {
		out = append(out, math.Float32frombits(binary.LittleEndian.Uint32(buf[i:])))
	}
	return out
}
