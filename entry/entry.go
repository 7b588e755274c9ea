// Package entry models the result forest: super object groups fanning out
// to per-file object groups, nested item groups, and variable-reference
// leaves. Every entry has at most one owner; children keep a non-owning
// back reference so a descriptor can be derived from any node by walking
// upward.
package entry

import (
	"errors"

	"github.com/hupe1980/resdb/dict"
	"github.com/hupe1980/resdb/frs"
)

// ErrDuplicateOwnership reports an attempt to attach an entry that is
// already owned. The attach is a no-op; the caller decides how loudly to
// surface the contract violation.
var ErrDuplicateOwnership = errors.New("entry already owned")

// Kind discriminates forest nodes.
type Kind uint8

const (
	KindSuperObjectGroup Kind = iota + 1
	KindObjectGroup
	KindItemGroup
	KindVariableRef
)

func (k Kind) String() string {
	switch k {
	case KindSuperObjectGroup:
		return "super object group"
	case KindObjectGroup:
		return "object group"
	case KindItemGroup:
		return "item group"
	case KindVariableRef:
		return "variable reference"
	default:
		return "unknown"
	}
}

// Entry is one node of the forest. Fields are reached through accessors;
// the tree shape changes only through AddChild and RemoveChild, which
// maintain the single-owner invariant.
type Entry struct {
	kind     Kind
	name     dict.Word
	owner    *Entry
	children []*Entry

	baseID, userID int
	varType        dict.Word
	payload        frs.PayloadRef
	ordinal        uint32
	file           string
}

// NewSuperObjectGroup creates the forest root for one object type. Its
// name is the type word; ids are unset.
func NewSuperObjectGroup(typeName dict.Word) *Entry {
	return &Entry{kind: KindSuperObjectGroup, name: typeName}
}

// NewObjectGroup creates an object group with its instance ids. Pass -1
// for an absent id.
func NewObjectGroup(typeName dict.Word, baseID, userID int) *Entry {
	return &Entry{kind: KindObjectGroup, name: typeName, baseID: baseID, userID: userID}
}

// NewItemGroup creates a named grouping level. A non-zero payload attaches
// an aggregate block to the group itself.
func NewItemGroup(name dict.Word, payload frs.PayloadRef) *Entry {
	return &Entry{kind: KindItemGroup, name: name, payload: payload}
}

// NewVariableRef creates a leaf pointing at a payload block.
func NewVariableRef(name, varType dict.Word, payload frs.PayloadRef) *Entry {
	return &Entry{kind: KindVariableRef, name: name, varType: varType, payload: payload}
}

func (e *Entry) Kind() Kind              { return e.kind }
func (e *Entry) Name() dict.Word         { return e.name }
func (e *Entry) Owner() *Entry           { return e.owner }
func (e *Entry) BaseID() int             { return e.baseID }
func (e *Entry) UserID() int             { return e.userID }
func (e *Entry) VarType() dict.Word      { return e.varType }
func (e *Entry) Payload() frs.PayloadRef { return e.payload }

// HasPayload reports whether a block is attached to this entry.
func (e *Entry) HasPayload() bool { return !e.payload.IsZero() }

// Children returns the owned entries in insertion order. The slice is the
// live backing array; callers must not modify it.
func (e *Entry) Children() []*Entry { return e.children }

// Ordinal is the registration number assigned when the entry was indexed.
func (e *Entry) Ordinal() uint32 { return e.ordinal }

// SetOrdinal records the registration number.
func (e *Entry) SetOrdinal(ord uint32) { e.ordinal = ord }

// File returns the result file this entry came from. It is recorded on
// the object-group root of each attached subtree; elsewhere it is empty.
func (e *Entry) File() string { return e.file }

// SetFile records the contributing result file.
func (e *Entry) SetFile(path string) { e.file = path }

// AddChild attaches c under e. If c already has an owner, or c is e, the
// tree is left untouched and ErrDuplicateOwnership is returned.
func (e *Entry) AddChild(c *Entry) error {
	if c == e || c.owner != nil {
		return ErrDuplicateOwnership
	}
	c.owner = e
	e.children = append(e.children, c)
	return nil
}

// RemoveChild detaches c from e and clears its owner. It reports whether c
// was a child of e; the relative order of remaining children is preserved.
func (e *Entry) RemoveChild(c *Entry) bool {
	for i, ch := range e.children {
		if ch == c {
			e.children = append(e.children[:i], e.children[i+1:]...)
			c.owner = nil
			return true
		}
	}
	return false
}

// Walk visits e and its descendants depth-first in insertion order. The
// visit func returns false to stop; Walk reports whether the walk ran to
// completion.
func (e *Entry) Walk(visit func(*Entry) bool) bool {
	if !visit(e) {
		return false
	}
	for _, c := range e.children {
		if !c.Walk(visit) {
			return false
		}
	}
	return true
}
