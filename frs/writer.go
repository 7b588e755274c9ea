package frs

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/hupe1980/resdb/internal/fs"
)

// Writer assembles a result file: header, catalog, and payload blocks in
// either byte order. It exists for fixtures and tooling; production result
// databases are written by the solver pipeline, not by this module.
type Writer struct {
	order   binary.ByteOrder
	tag     string
	module  string
	created string
	objects []*ObjectWriter
}

// NewWriter returns a Writer emitting the given byte order. A nil order
// defaults to little-endian.
func NewWriter(order binary.ByteOrder) *Writer {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Writer{order: order, tag: DefaultTag}
}

// SetTag overrides the header tag. It must start with '#' and fit the
// fixed tag field.
func (w *Writer) SetTag(tag string) { w.tag = tag }

// SetModule sets the module label recorded in the catalog.
func (w *Writer) SetModule(module string) { w.module = module }

// SetCreated sets the creation label recorded in the catalog.
func (w *Writer) SetCreated(created string) { w.created = created }

// Object appends an object group descriptor. Pass -1 for an absent id.
func (w *Writer) Object(typeName string, baseID, userID int) *ObjectWriter {
	o := &ObjectWriter{w: w, typeName: typeName, baseID: baseID, userID: userID}
	w.objects = append(w.objects, o)
	return o
}

// wnode is a catalog node under construction. Payload data is held
// in-memory until serialization assigns its file offset.
type wnode struct {
	kind       NodeKind
	name       string
	varType    string
	cellSize   uint8
	data       []byte
	hasPayload bool
	offset     uint64
	children   []*wnode
}

// ObjectWriter builds the children of one object group.
type ObjectWriter struct {
	w              *Writer
	typeName       string
	baseID, userID int
	children       []*wnode
}

// Group appends a nested item group.
func (o *ObjectWriter) Group(name string) *GroupWriter {
	n := &wnode{kind: NodeItemGroup, name: name}
	o.children = append(o.children, n)
	return &GroupWriter{w: o.w, n: n}
}

// Float64 appends a float64 variable directly under the object.
func (o *ObjectWriter) Float64(name, varType string, values ...float64) *ObjectWriter {
	o.children = append(o.children, o.w.float64Node(name, varType, values))
	return o
}

// Float32 appends a float32 variable directly under the object.
func (o *ObjectWriter) Float32(name, varType string, values ...float32) *ObjectWriter {
	o.children = append(o.children, o.w.float32Node(name, varType, values))
	return o
}

// Raw appends a variable with pre-encoded cells. The data must already be
// in the writer's byte order.
func (o *ObjectWriter) Raw(name, varType string, cellSize uint8, data []byte) *ObjectWriter {
	o.children = append(o.children, &wnode{
		kind: NodeVariableRef, name: name, varType: varType,
		cellSize: cellSize, data: data, hasPayload: true,
	})
	return o
}

// GroupWriter builds the children of one item group.
type GroupWriter struct {
	w *Writer
	n *wnode
}

// Group appends a nested item group.
func (g *GroupWriter) Group(name string) *GroupWriter {
	n := &wnode{kind: NodeItemGroup, name: name}
	g.n.children = append(g.n.children, n)
	return &GroupWriter{w: g.w, n: n}
}

// Float64 appends a float64 variable to the group.
func (g *GroupWriter) Float64(name, varType string, values ...float64) *GroupWriter {
	g.n.children = append(g.n.children, g.w.float64Node(name, varType, values))
	return g
}

// Float32 appends a float32 variable to the group.
func (g *GroupWriter) Float32(name, varType string, values ...float32) *GroupWriter {
	g.n.children = append(g.n.children, g.w.float32Node(name, varType, values))
	return g
}

// Raw appends a variable with pre-encoded cells.
func (g *GroupWriter) Raw(name, varType string, cellSize uint8, data []byte) *GroupWriter {
	g.n.children = append(g.n.children, &wnode{
		kind: NodeVariableRef, name: name, varType: varType,
		cellSize: cellSize, data: data, hasPayload: true,
	})
	return g
}

// AggregateFloat64 attaches a float64 payload to the group itself, in
// addition to whatever children it carries.
func (g *GroupWriter) AggregateFloat64(values ...float64) *GroupWriter {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		g.w.order.PutUint64(data[i*8:], math.Float64bits(v))
	}
	g.n.cellSize = 8
	g.n.data = data
	g.n.hasPayload = true
	return g
}

func (w *Writer) float64Node(name, varType string, values []float64) *wnode {
	data := make([]byte, 8*len(values))
	for i, v := range values {
		w.order.PutUint64(data[i*8:], math.Float64bits(v))
	}
	return &wnode{
		kind: NodeVariableRef, name: name, varType: varType,
		cellSize: 8, data: data, hasPayload: true,
	}
}

func (w *Writer) float32Node(name, varType string, values []float32) *wnode {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		w.order.PutUint32(data[i*4:], math.Float32bits(v))
	}
	return &wnode{
		kind: NodeVariableRef, name: name, varType: varType,
		cellSize: 4, data: data, hasPayload: true,
	}
}

// Bytes serializes the file into memory.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo serializes header, catalog, and payload blocks to out.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if err := w.validate(); err != nil {
		return 0, err
	}

	// Payload offsets depend on the catalog length, which is fixed by
	// structure alone, so measure first and assign offsets second.
	catalogSize := w.catalogSize()
	next := uint64(HeaderSize) + uint64(catalogSize)
	for _, o := range w.objects {
		assignOffsets(o.children, &next)
	}

	var buf bytes.Buffer
	buf.Grow(HeaderSize + catalogSize)
	w.writeHeader(&buf)
	w.writeCatalog(&buf)
	for _, o := range w.objects {
		writePayloads(&buf, o.children)
	}

	n, err := out.Write(buf.Bytes())
	return int64(n), err
}

// WriteFile serializes the file to path.
func (w *Writer) WriteFile(path string) error {
	h, err := fs.Default.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.WriteTo(h); err != nil {
		h.Close()
		return err
	}
	if err := h.Sync(); err != nil {
		h.Close()
		return err
	}
	return h.Close()
}

func (w *Writer) validate() error {
	if !strings.HasPrefix(w.tag, "#") {
		return fmt.Errorf("frs: tag %q does not start with '#'", w.tag)
	}
	if len(w.tag) > TagLength {
		return fmt.Errorf("frs: tag %q exceeds %d bytes", w.tag, TagLength)
	}
	var check func(nodes []*wnode, depth int) error
	check = func(nodes []*wnode, depth int) error {
		if depth > maxNesting {
			return fmt.Errorf("frs: item-group nesting exceeds limit %d", maxNesting)
		}
		for _, n := range nodes {
			if len(n.name) > maxStringLen {
				return fmt.Errorf("frs: name %q exceeds %d bytes", n.name[:16]+"...", maxStringLen)
			}
			if n.hasPayload {
				if len(n.data) > math.MaxUint32 {
					return fmt.Errorf("frs: payload for %q exceeds 4 GiB", n.name)
				}
				if int(n.cellSize) != 0 && len(n.data)%int(n.cellSize) != 0 {
					return fmt.Errorf("frs: payload for %q not a multiple of cell size %d", n.name, n.cellSize)
				}
			}
			if err := check(n.children, depth+1); err != nil {
				return err
			}
		}
		return nil
	}
	for _, o := range w.objects {
		if len(o.typeName) > maxStringLen {
			return fmt.Errorf("frs: type name %q exceeds %d bytes", o.typeName[:16]+"...", maxStringLen)
		}
		if err := check(o.children, 0); err != nil {
			return err
		}
	}
	return nil
}

func stringSize(s string) int { return 2 + len(s) }

func (w *Writer) catalogSize() int {
	size := stringSize(w.module) + stringSize(w.created) + 4
	for _, o := range w.objects {
		size += stringSize(o.typeName) + 4 + 4 + 2
		size += nodesSize(o.children)
	}
	return size
}

func nodesSize(nodes []*wnode) int {
	size := 0
	for _, n := range nodes {
		size += 1 + stringSize(n.name)
		switch n.kind {
		case NodeVariableRef:
			size += stringSize(n.varType) + 1 + 8 + 4
		case NodeItemGroup:
			size++ // payload flag
			if n.hasPayload {
				size += 1 + 8 + 4
			}
			size += 2 + nodesSize(n.children)
		}
	}
	return size
}

func assignOffsets(nodes []*wnode, next *uint64) {
	for _, n := range nodes {
		if n.hasPayload {
			n.offset = *next
			*next += uint64(len(n.data))
		}
		assignOffsets(n.children, next)
	}
}

func (w *Writer) writeHeader(buf *bytes.Buffer) {
	var hdr [HeaderSize]byte
	copy(hdr[:TagLength], w.tag)
	for i := len(w.tag); i < TagLength; i++ {
		hdr[i] = ' '
	}
	w.order.PutUint16(hdr[24:26], endianMarker)
	w.order.PutUint32(hdr[28:32], checksumTag(hdr[:TagLength]))
	buf.Write(hdr[:])
}

func (w *Writer) writeCatalog(buf *bytes.Buffer) {
	w.putString(buf, w.module)
	w.putString(buf, w.created)
	w.putUint32(buf, uint32(len(w.objects)))
	for _, o := range w.objects {
		w.putString(buf, o.typeName)
		w.putUint32(buf, uint32(int32(o.baseID)))
		w.putUint32(buf, uint32(int32(o.userID)))
		w.putUint16(buf, uint16(len(o.children)))
		w.writeNodes(buf, o.children)
	}
}

func (w *Writer) writeNodes(buf *bytes.Buffer, nodes []*wnode) {
	for _, n := range nodes {
		buf.WriteByte(byte(n.kind))
		w.putString(buf, n.name)
		switch n.kind {
		case NodeVariableRef:
			w.putString(buf, n.varType)
			w.writePayloadRef(buf, n)
		case NodeItemGroup:
			if n.hasPayload {
				buf.WriteByte(1)
				w.writePayloadRef(buf, n)
			} else {
				buf.WriteByte(0)
			}
			w.putUint16(buf, uint16(len(n.children)))
			w.writeNodes(buf, n.children)
		}
	}
}

func (w *Writer) writePayloadRef(buf *bytes.Buffer, n *wnode) {
	buf.WriteByte(n.cellSize)
	w.putUint64(buf, n.offset)
	w.putUint32(buf, uint32(len(n.data)))
}

func writePayloads(buf *bytes.Buffer, nodes []*wnode) {
	for _, n := range nodes {
		if n.hasPayload {
			buf.Write(n.data)
		}
		writePayloads(buf, n.children)
	}
}

func (w *Writer) putString(buf *bytes.Buffer, s string) {
	w.putUint16(buf, uint16(len(s)))
	buf.WriteString(s)
}

func (w *Writer) putUint16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	w.order.PutUint16(b[:], v)
	buf.Write(b[:])
}

func (w *Writer) putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	w.order.PutUint32(b[:], v)
	buf.Write(b[:])
}

func (w *Writer) putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	w.order.PutUint64(b[:], v)
	buf.Write(b[:])
}
