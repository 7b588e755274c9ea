package frs

import (
	"errors"
	"fmt"
	"hash/crc32"
)

// Result files start with a fixed-size header:
//
//	offset  size  field
//	0       24    tag       ASCII, first byte '#', space padded
//	24      2     marker    0x1234 in the producer's byte order
//	26      2     reserved  zero
//	28      4     checksum  CRC32 (IEEE) over the 24 tag bytes
//
// All multi-byte fields after the tag, including the checksum itself, are
// encoded in the producer's byte order. The order is re-derived from the
// marker for every file, never assumed global.
const (
	// TagLength is the fixed byte length of the header tag field.
	TagLength = 24

	// HeaderSize is the total fixed header size in bytes.
	HeaderSize = 32

	// endianMarker is written as a uint16 in the producer's byte order;
	// the first byte read back reveals that order.
	endianMarker = 0x1234

	// DefaultTag identifies the current format revision.
	DefaultTag = "#RESULTDB-5.0"
)

// Decode limits guarding against absurd declared sizes in corrupt catalogs.
const (
	maxStringLen = 4096
	maxNesting   = 256
)

// CRC32Table is the checksum polynomial table for header validation.
var CRC32Table = crc32.MakeTable(crc32.IEEE)

// checksumTag computes the header checksum over the padded tag bytes.
func checksumTag(tag []byte) uint32 {
	return crc32.Checksum(tag, CRC32Table)
}

// NodeKind discriminates catalog nodes.
type NodeKind uint8

const (
	// NodeItemGroup is a named nested grouping of variables.
	NodeItemGroup NodeKind = iota + 1
	// NodeVariableRef is a leaf addressing one result payload.
	NodeVariableRef
)

// PayloadRef locates one raw numeric payload inside a result file.
// Swap records whether the producer's byte order differs from the canonical
// little-endian cell order, in which case each CellSize group must be
// reversed before use. The zero PayloadRef means "no payload".
type PayloadRef struct {
	Path     string
	Offset   uint64
	Length   uint32
	CellSize uint8
	Swap     bool
}

// IsZero reports whether the ref addresses no payload.
func (r PayloadRef) IsZero() bool {
	return r.CellSize == 0
}

// Node is one catalog entry below an object: an item group (with children
// and an optional aggregate payload) or a variable reference leaf.
type Node struct {
	Kind     NodeKind
	Name     string
	VarType  string     // variable references only
	Payload  PayloadRef // zero when the node carries no payload
	Children []Node     // item groups only
}

// ObjectDesc describes one object group contributed by a file: its type
// name, instance ids (-1 when absent), and the nested item-group and
// variable-reference nodes beneath it.
type ObjectDesc struct {
	TypeName string
	BaseID   int
	UserID   int
	Children []Node
}

// HeaderError reports a structurally invalid file header.
type HeaderError struct {
	Path   string
	Reason string
}

func (e *HeaderError) Error() string {
	return fmt.Sprintf("frs: invalid header in %s: %s", e.Path, e.Reason)
}

// ChecksumMismatchError reports a header checksum that does not match the
// tag bytes.
type ChecksumMismatchError struct {
	Path     string
	Expected uint32
	Actual   uint32
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("frs: header checksum mismatch in %s: expected %08x, got %08x", e.Path, e.Expected, e.Actual)
}

// IsChecksumMismatch reports whether err is (or wraps) a checksum mismatch.
func IsChecksumMismatch(err error) bool {
	var cm *ChecksumMismatchError
	return errors.As(err, &cm)
}

// CatalogError reports a catalog whose declared sizes or locations run past
// the available bytes, or that is otherwise undecodable.
type CatalogError struct {
	Path   string
	Reason string
	cause  error
}

func (e *CatalogError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("frs: catalog error in %s: %s: %v", e.Path, e.Reason, e.cause)
	}
	return fmt.Sprintf("frs: catalog error in %s: %s", e.Path, e.Reason)
}

func (e *CatalogError) Unwrap() error { return e.cause }
