package frs

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/hupe1980/resdb/internal/fs"
)

// File is the parsed metadata of one result file: header tag, checksum,
// detected byte order, and the catalog of payload locations. The OS handle
// is open only while parsing; payload offsets remain valid indefinitely for
// later on-demand reads.
type File struct {
	Path     string
	Tag      string
	Checksum uint32
	Order    binary.ByteOrder
	Module   string
	Created  string
	Objects  []ObjectDesc
	Size     int64
}

// Swapped reports whether payload cells from this file need byte reversal
// into the canonical little-endian order.
func (f *File) Swapped() bool {
	return f.Order == binary.BigEndian
}

// Open reads and validates the header and catalog of the result file at
// path. The file handle is closed before returning. On any validation
// failure the file contributes nothing.
func Open(path string) (*File, error) {
	return openWith(fs.Default, path)
}

func openWith(fsys fs.FileSystem, path string) (*File, error) {
	h, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer h.Close()

	fi, err := h.Stat()
	if err != nil {
		return nil, err
	}

	f := &File{Path: path, Size: fi.Size()}

	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(h, hdr[:]); err != nil {
		return nil, &HeaderError{Path: path, Reason: "short header"}
	}
	if hdr[0] != '#' {
		return nil, &HeaderError{Path: path, Reason: "tag does not start with '#'"}
	}
	f.Tag = strings.TrimRight(string(hdr[:TagLength]), " \x00")

	// The endian marker is written as uint16 0x1234 in the producer's
	// order; the first byte read back reveals that order.
	switch {
	case hdr[24] == 0x12 && hdr[25] == 0x34:
		f.Order = binary.BigEndian
	case hdr[24] == 0x34 && hdr[25] == 0x12:
		f.Order = binary.LittleEndian
	default:
		return nil, &HeaderError{Path: path, Reason: fmt.Sprintf("unrecognized endian marker %02x%02x", hdr[24], hdr[25])}
	}

	f.Checksum = f.Order.Uint32(hdr[28:32])
	if want := checksumTag(hdr[:TagLength]); f.Checksum != want {
		return nil, &ChecksumMismatchError{Path: path, Expected: want, Actual: f.Checksum}
	}

	d := &catalogDecoder{
		r:         bufio.NewReader(h),
		order:     f.Order,
		path:      path,
		remaining: f.Size - HeaderSize,
		fileSize:  f.Size,
	}
	if err := d.decodeCatalog(f); err != nil {
		return nil, err
	}
	return f, nil
}

// catalogDecoder decodes the catalog region in the file's byte order,
// tracking the bytes still available so declared counts and lengths that
// run past the end of the file fail early.
type catalogDecoder struct {
	r         *bufio.Reader
	order     binary.ByteOrder
	path      string
	remaining int64
	fileSize  int64
	scratch   [8]byte
}

func (d *catalogDecoder) fail(reason string, cause error) error {
	return &CatalogError{Path: d.path, Reason: reason, cause: cause}
}

func (d *catalogDecoder) read(n int, what string) ([]byte, error) {
	if int64(n) > d.remaining {
		return nil, d.fail(fmt.Sprintf("%s needs %d bytes, %d available", what, n, d.remaining), nil)
	}
	var buf []byte
	if n <= len(d.scratch) {
		buf = d.scratch[:n]
	} else {
		buf = make([]byte, n)
	}
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, d.fail(fmt.Sprintf("reading %s", what), err)
	}
	d.remaining -= int64(n)
	return buf, nil
}

func (d *catalogDecoder) uint8(what string) (uint8, error) {
	b, err := d.read(1, what)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *catalogDecoder) uint16(what string) (uint16, error) {
	b, err := d.read(2, what)
	if err != nil {
		return 0, err
	}
	return d.order.Uint16(b), nil
}

func (d *catalogDecoder) uint32(what string) (uint32, error) {
	b, err := d.read(4, what)
	if err != nil {
		return 0, err
	}
	return d.order.Uint32(b), nil
}

func (d *catalogDecoder) uint64(what string) (uint64, error) {
	b, err := d.read(8, what)
	if err != nil {
		return 0, err
	}
	return d.order.Uint64(b), nil
}

func (d *catalogDecoder) int32(what string) (int, error) {
	u, err := d.uint32(what)
	if err != nil {
		return 0, err
	}
	return int(int32(u)), nil
}

func (d *catalogDecoder) string(what string) (string, error) {
	n, err := d.uint16(what + " length")
	if err != nil {
		return "", err
	}
	if n > maxStringLen {
		return "", d.fail(fmt.Sprintf("%s length %d exceeds limit %d", what, n, maxStringLen), nil)
	}
	if n == 0 {
		return "", nil
	}
	b, err := d.read(int(n), what)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (d *catalogDecoder) decodeCatalog(f *File) error {
	var err error
	if f.Module, err = d.string("module label"); err != nil {
		return err
	}
	if f.Created, err = d.string("created label"); err != nil {
		return err
	}

	count, err := d.uint32("object count")
	if err != nil {
		return err
	}
	// Minimum bytes per object descriptor: empty type name (2), two ids
	// (8), child count (2).
	const minObjectBytes = 12
	if int64(count)*minObjectBytes > d.remaining {
		return d.fail(fmt.Sprintf("object count %d exceeds available bytes", count), nil)
	}

	objects := make([]ObjectDesc, 0, count)
	for range count {
		obj, err := d.decodeObject()
		if err != nil {
			return err
		}
		objects = append(objects, obj)
	}
	f.Objects = objects
	return nil
}

func (d *catalogDecoder) decodeObject() (ObjectDesc, error) {
	var obj ObjectDesc
	var err error
	if obj.TypeName, err = d.string("object type name"); err != nil {
		return obj, err
	}
	if obj.BaseID, err = d.int32("base id"); err != nil {
		return obj, err
	}
	if obj.UserID, err = d.int32("user id"); err != nil {
		return obj, err
	}
	count, err := d.uint16("object child count")
	if err != nil {
		return obj, err
	}
	obj.Children, err = d.decodeNodes(int(count), 0)
	return obj, err
}

func (d *catalogDecoder) decodeNodes(count, depth int) ([]Node, error) {
	if count == 0 {
		return nil, nil
	}
	// Minimum bytes per node: kind (1), empty name (2), plus either the
	// payload flag and child count of a group or the leaf fields.
	const minNodeBytes = 6
	if int64(count)*minNodeBytes > d.remaining {
		return nil, d.fail(fmt.Sprintf("child count %d exceeds available bytes", count), nil)
	}
	nodes := make([]Node, 0, count)
	for range count {
		n, err := d.decodeNode(depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (d *catalogDecoder) decodeNode(depth int) (Node, error) {
	var n Node
	if depth > maxNesting {
		return n, d.fail(fmt.Sprintf("item-group nesting exceeds limit %d", maxNesting), nil)
	}

	kind, err := d.uint8("node kind")
	if err != nil {
		return n, err
	}
	n.Kind = NodeKind(kind)
	if n.Name, err = d.string("node name"); err != nil {
		return n, err
	}

	switch n.Kind {
	case NodeVariableRef:
		if n.VarType, err = d.string("variable type"); err != nil {
			return n, err
		}
		if n.Payload, err = d.payloadRef(); err != nil {
			return n, err
		}
		return n, nil

	case NodeItemGroup:
		hasPayload, err := d.uint8("payload flag")
		if err != nil {
			return n, err
		}
		switch hasPayload {
		case 0:
		case 1:
			if n.Payload, err = d.payloadRef(); err != nil {
				return n, err
			}
		default:
			return n, d.fail(fmt.Sprintf("invalid payload flag %d", hasPayload), nil)
		}
		count, err := d.uint16("group child count")
		if err != nil {
			return n, err
		}
		if n.Children, err = d.decodeNodes(int(count), depth+1); err != nil {
			return n, err
		}
		return n, nil

	default:
		return n, d.fail(fmt.Sprintf("unknown node kind %d", kind), nil)
	}
}

func (d *catalogDecoder) payloadRef() (PayloadRef, error) {
	cellSize, err := d.uint8("cell size")
	if err != nil {
		return PayloadRef{}, err
	}
	switch cellSize {
	case 1, 2, 4, 8:
	default:
		return PayloadRef{}, d.fail(fmt.Sprintf("invalid cell size %d", cellSize), nil)
	}
	offset, err := d.uint64("payload offset")
	if err != nil {
		return PayloadRef{}, err
	}
	length, err := d.uint32("payload length")
	if err != nil {
		return PayloadRef{}, err
	}
	if length%uint32(cellSize) != 0 {
		return PayloadRef{}, d.fail(fmt.Sprintf("payload length %d not a multiple of cell size %d", length, cellSize), nil)
	}
	if offset+uint64(length) > uint64(d.fileSize) {
		return PayloadRef{}, d.fail(fmt.Sprintf("payload at %d+%d runs past end of file (%d bytes)", offset, length, d.fileSize), nil)
	}
	return PayloadRef{
		Path:     d.path,
		Offset:   offset,
		Length:   length,
		CellSize: cellSize,
		Swap:     d.order == binary.BigEndian,
	}, nil
}

// FileInfo summarizes one result file for diagnostics.
type FileInfo struct {
	Path         string
	Tag          string
	ByteOrder    string
	Module       string
	Created      string
	Objects      int
	Variables    int
	PayloadBytes int64
	Size         int64
}

// Info summarizes the file: object and variable counts and the total
// payload bytes addressed by its catalog.
func (f *File) Info() FileInfo {
	info := FileInfo{
		Path:      f.Path,
		Tag:       f.Tag,
		ByteOrder: fmt.Sprintf("%v", f.Order),
		Module:    f.Module,
		Created:   f.Created,
		Objects:   len(f.Objects),
		Size:      f.Size,
	}
	var walk func(nodes []Node)
	walk = func(nodes []Node) {
		for i := range nodes {
			n := &nodes[i]
			if n.Kind == NodeVariableRef {
				info.Variables++
			}
			if !n.Payload.IsZero() {
				info.PayloadBytes += int64(n.Payload.Length)
			}
			walk(n.Children)
		}
	}
	for i := range f.Objects {
		walk(f.Objects[i].Children)
	}
	return info
}
