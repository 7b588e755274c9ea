// Package descriptor defines the path key used to address entries in the
// result hierarchy: object type, instance ids, and the ordered variable path
// below the object.
package descriptor

import (
	"strconv"
	"strings"

	"github.com/hupe1980/resdb/dict"
)

// Wildcard matches any base or user id on the query side of a match.
// Ids of real objects are non-negative; absence of an id is recorded as
// Wildcard and is distinct from zero.
const Wildcard = -1

// Descriptor addresses a location in the result hierarchy.
//
// Levels is the variable path below the object group, ending with the
// entry's own name; the group itself is recorded as ObjectType. VarRefType
// is set only when the descriptor was derived from a variable reference.
type Descriptor struct {
	ObjectType dict.Word
	BaseID     int
	UserID     int
	Levels     []dict.Word
	VarRefType dict.Word
}

// Matches reports whether candidate d satisfies query q:
//
//   - ObjectType equal (exact; never wildcardable in the query),
//   - BaseID equal, or the query's BaseID is Wildcard,
//   - UserID equal, or the query's UserID is Wildcard,
//   - d.Levels has q.Levels as a prefix (an empty query path matches
//     everything under the object).
//
// The prefix rule lets partial-path queries match deeper nested results.
func (d Descriptor) Matches(q Descriptor) bool {
	if d.ObjectType != q.ObjectType {
		return false
	}
	if q.BaseID != Wildcard && q.BaseID != d.BaseID {
		return false
	}
	if q.UserID != Wildcard && q.UserID != d.UserID {
		return false
	}
	if len(q.Levels) > len(d.Levels) {
		return false
	}
	for i, w := range q.Levels {
		if d.Levels[i] != w {
			return false
		}
	}
	return true
}

// Equal reports strict structural equality: every field, including
// VarRefType and the full level path, compares equal.
func (d Descriptor) Equal(o Descriptor) bool {
	if d.ObjectType != o.ObjectType || d.BaseID != o.BaseID || d.UserID != o.UserID || d.VarRefType != o.VarRefType {
		return false
	}
	if len(d.Levels) != len(o.Levels) {
		return false
	}
	for i, w := range d.Levels {
		if w != o.Levels[i] {
			return false
		}
	}
	return true
}

// String renders the descriptor in the form used by diagnostics and the CLI:
//
//	Beam[1,*]: Stress|Axial (SCALAR)
func (d Descriptor) String() string {
	var sb strings.Builder
	sb.WriteString(d.ObjectType.String())
	sb.WriteByte('[')
	sb.WriteString(formatID(d.BaseID))
	sb.WriteByte(',')
	sb.WriteString(formatID(d.UserID))
	sb.WriteByte(']')
	if len(d.Levels) > 0 {
		sb.WriteString(": ")
		for i, w := range d.Levels {
			if i > 0 {
				sb.WriteByte('|')
			}
			sb.WriteString(w.String())
		}
	}
	if !d.VarRefType.IsZero() {
		sb.WriteString(" (")
		sb.WriteString(d.VarRefType.String())
		sb.WriteByte(')')
	}
	return sb.String()
}

func formatID(id int) string {
	if id == Wildcard {
		return "*"
	}
	return strconv.Itoa(id)
}

// ParseID parses an id token: "*" (or "") yields Wildcard, otherwise the
// token must be a non-negative integer.
func ParseID(tok string) (int, error) {
	if tok == "*" || tok == "" {
		return Wildcard, nil
	}
	id, err := strconv.Atoi(tok)
	if err != nil {
		return 0, err
	}
	if id < 0 {
		return 0, &strconv.NumError{Func: "ParseID", Num: tok, Err: strconv.ErrRange}
	}
	return id, nil
}
