package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hupe1980/resdb/frs"
)

// Variable is one leaf in a fixture spec: an item-group path above the
// variable (outermost first, empty for a variable directly under the
// object) and its float64 cells.
type Variable struct {
	Group   []string
	Name    string
	VarType string
	Values  []float64
}

// Object is one object group in a fixture spec.
type Object struct {
	TypeName string
	BaseID   int
	UserID   int
	Vars     []Variable
}

// WriteResultFile writes a result file at path in the given byte order
// and returns path. A nil order defaults to little-endian.
func WriteResultFile(t testing.TB, path string, order binary.ByteOrder, objects ...Object) string {
	t.Helper()

	w := frs.NewWriter(order)
	w.SetModule("demo-solver")
	w.SetCreated("2026-08-25 12:00:00")
	for _, obj := range objects {
		writeObject(w, obj)
	}
	if err := w.WriteFile(path); err != nil {
		t.Fatalf("WriteResultFile %s: %v", path, err)
	}
	return path
}

func writeObject(w *frs.Writer, obj Object) {
	ow := w.Object(obj.TypeName, obj.BaseID, obj.UserID)
	groups := make(map[string]*frs.GroupWriter)
	for _, v := range obj.Vars {
		varType := v.VarType
		if varType == "" {
			varType = "SCALAR"
		}
		if len(v.Group) == 0 {
			ow.Float64(v.Name, varType, v.Values...)
			continue
		}
		groupFor(ow, groups, v.Group).Float64(v.Name, varType, v.Values...)
	}
}

// groupFor returns the group writer for a path, creating missing levels.
// Two variables naming the same path share one group.
func groupFor(ow *frs.ObjectWriter, cache map[string]*frs.GroupWriter, path []string) *frs.GroupWriter {
	key := strings.Join(path, "\x00")
	if g, ok := cache[key]; ok {
		return g
	}
	var g *frs.GroupWriter
	if len(path) == 1 {
		g = ow.Group(path[0])
	} else {
		g = groupFor(ow, cache, path[:len(path)-1]).Group(path[len(path)-1])
	}
	cache[key] = g
	return g
}

// BeamObject is the canned Beam object: Stress|Axial plus Stress|Bending
// beneath one object group. UserID is derived from baseID so the two stay
// distinguishable in search assertions.
func BeamObject(baseID int, values ...float64) Object {
	bending := make([]float64, len(values))
	for i, v := range values {
		bending[i] = v / 2
	}
	return Object{
		TypeName: "Beam",
		BaseID:   baseID,
		UserID:   baseID + 10,
		Vars: []Variable{
			{Group: []string{"Stress"}, Name: "Axial", VarType: "SCALAR", Values: values},
			{Group: []string{"Stress"}, Name: "Bending", VarType: "SCALAR", Values: bending},
		},
	}
}

// WriteBeamScenario writes the two-file scenario used across the package
// tests: beam1.frs contributes Beam(1).Stress.{Axial,Bending}, beam2.frs
// contributes Beam(2).Stress.{Axial,Bending}.
func WriteBeamScenario(t testing.TB, dir string) (fileA, fileB string) {
	t.Helper()
	fileA = WriteResultFile(t, filepath.Join(dir, "beam1.frs"), binary.LittleEndian,
		BeamObject(1, 1.5, 2.5, 3.5))
	fileB = WriteResultFile(t, filepath.Join(dir, "beam2.frs"), binary.LittleEndian,
		BeamObject(2, -1.0, -2.0, -3.0))
	return fileA, fileB
}

// FlipChecksumByte corrupts a tag byte of the file at path so the stored
// header checksum no longer matches.
func FlipChecksumByte(t testing.TB, path string) {
	t.Helper()
	mutate(t, path, func(data []byte) []byte {
		if len(data) < frs.HeaderSize {
			t.Fatalf("FlipChecksumByte %s: file shorter than header", path)
		}
		data[5] ^= 0xFF
		return data
	})
}

// TruncateCatalog cuts the file at path inside its catalog region.
func TruncateCatalog(t testing.TB, path string) {
	t.Helper()
	mutate(t, path, func(data []byte) []byte {
		if len(data) < frs.HeaderSize+4 {
			t.Fatalf("TruncateCatalog %s: no catalog to truncate", path)
		}
		return data[:frs.HeaderSize+3]
	})
}

func mutate(t testing.TB, path string, fn func([]byte) []byte) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := os.WriteFile(path, fn(data), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
