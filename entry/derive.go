package entry

import (
	"github.com/hupe1980/resdb/descriptor"
	"github.com/hupe1980/resdb/dict"
)

// Derive walks from e toward the root and builds the descriptor that
// addresses it. Item-group and variable-reference names accumulate on the
// way up, so Levels ends with e's own name. An object group supplies the
// object type and ids and terminates the walk; a super object group
// supplies the type with wildcard ids and the walk keeps going, so in a
// merged forest the outermost grouping names the type.
func Derive(e *Entry) descriptor.Descriptor {
	d := descriptor.Descriptor{
		BaseID: descriptor.Wildcard,
		UserID: descriptor.Wildcard,
	}
	if e.kind == KindVariableRef {
		d.VarRefType = e.varType
	}

	var levels []dict.Word
walk:
	for n := e; n != nil; n = n.owner {
		switch n.kind {
		case KindObjectGroup:
			d.ObjectType = n.name
			d.BaseID = n.baseID
			d.UserID = n.userID
			break walk
		case KindSuperObjectGroup:
			d.ObjectType = n.name
		default:
			levels = append(levels, n.name)
		}
	}

	for i, j := 0, len(levels)-1; i < j; i, j = i+1, j-1 {
		levels[i], levels[j] = levels[j], levels[i]
	}
	d.Levels = levels
	return d
}
