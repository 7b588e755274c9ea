package entry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resdb/descriptor"
	"github.com/hupe1980/resdb/dict"
	"github.com/hupe1980/resdb/frs"
)

func w(s string) dict.Word { return dict.Intern(s) }

func ref(path string, off uint64, length uint32) frs.PayloadRef {
	return frs.PayloadRef{Path: path, Offset: off, Length: length, CellSize: 8}
}

// beamChain builds SOG(Beam) -> OG Beam[1,7] -> IG Stress -> VarRef Axial
// and returns the nodes top-down.
func beamChain(t *testing.T) (sog, og, ig, leaf *Entry) {
	t.Helper()
	sog = NewSuperObjectGroup(w("Beam"))
	og = NewObjectGroup(w("Beam"), 1, 7)
	ig = NewItemGroup(w("Stress"), frs.PayloadRef{})
	leaf = NewVariableRef(w("Axial"), w("SCALAR"), ref("model.rdb", 100, 24))
	require.NoError(t, sog.AddChild(og))
	require.NoError(t, og.AddChild(ig))
	require.NoError(t, ig.AddChild(leaf))
	return sog, og, ig, leaf
}

func TestAddChildOwnership(t *testing.T) {
	sog, og, ig, leaf := beamChain(t)

	assert.Nil(t, sog.Owner())
	assert.Same(t, sog, og.Owner())
	assert.Same(t, og, ig.Owner())
	assert.Same(t, ig, leaf.Owner())

	// A second owner is refused and the tree stays untouched.
	other := NewItemGroup(w("Strain"), frs.PayloadRef{})
	err := other.AddChild(leaf)
	assert.ErrorIs(t, err, ErrDuplicateOwnership)
	assert.Same(t, ig, leaf.Owner())
	assert.Empty(t, other.Children())

	assert.ErrorIs(t, ig.AddChild(ig), ErrDuplicateOwnership)
}

func TestRemoveChild(t *testing.T) {
	sog := NewSuperObjectGroup(w("Beam"))
	a := NewObjectGroup(w("Beam"), 1, -1)
	b := NewObjectGroup(w("Beam"), 2, -1)
	c := NewObjectGroup(w("Beam"), 3, -1)
	require.NoError(t, sog.AddChild(a))
	require.NoError(t, sog.AddChild(b))
	require.NoError(t, sog.AddChild(c))

	assert.True(t, sog.RemoveChild(b))
	assert.Nil(t, b.Owner())
	require.Len(t, sog.Children(), 2)
	assert.Same(t, a, sog.Children()[0])
	assert.Same(t, c, sog.Children()[1])

	assert.False(t, sog.RemoveChild(b))

	// Detached entries can be re-attached elsewhere.
	assert.NoError(t, sog.AddChild(b))
}

func TestWalkOrder(t *testing.T) {
	sog, _, ig, _ := beamChain(t)
	second := NewVariableRef(w("Bending"), w("SCALAR"), ref("model.rdb", 124, 16))
	require.NoError(t, ig.AddChild(second))

	var names []string
	sog.Walk(func(e *Entry) bool {
		names = append(names, e.Name().String())
		return true
	})
	assert.Equal(t, []string{"Beam", "Beam", "Stress", "Axial", "Bending"}, names)

	// Stopping mid-walk.
	var count int
	done := sog.Walk(func(e *Entry) bool {
		count++
		return e != ig
	})
	assert.False(t, done)
	assert.Equal(t, 3, count)
}

func TestDeriveVariableRef(t *testing.T) {
	_, _, _, leaf := beamChain(t)

	d := Derive(leaf)
	assert.Equal(t, "Beam", d.ObjectType.String())
	assert.Equal(t, 1, d.BaseID)
	assert.Equal(t, 7, d.UserID)
	require.Len(t, d.Levels, 2)
	assert.Equal(t, "Stress", d.Levels[0].String())
	assert.Equal(t, "Axial", d.Levels[1].String())
	assert.Equal(t, "SCALAR", d.VarRefType.String())
}

func TestDeriveItemGroup(t *testing.T) {
	_, _, ig, _ := beamChain(t)

	d := Derive(ig)
	assert.Equal(t, "Beam", d.ObjectType.String())
	assert.Equal(t, 1, d.BaseID)
	assert.Equal(t, 7, d.UserID)
	require.Len(t, d.Levels, 1)
	assert.Equal(t, "Stress", d.Levels[0].String())
	assert.True(t, d.VarRefType.IsZero())
}

func TestDeriveNestedItemGroups(t *testing.T) {
	og := NewObjectGroup(w("Shell"), 4, -1)
	outer := NewItemGroup(w("Stress"), frs.PayloadRef{})
	inner := NewItemGroup(w("Top"), frs.PayloadRef{})
	leaf := NewVariableRef(w("VonMises"), w("SCALAR"), ref("shell.rdb", 64, 8))
	require.NoError(t, og.AddChild(outer))
	require.NoError(t, outer.AddChild(inner))
	require.NoError(t, inner.AddChild(leaf))

	d := Derive(leaf)
	assert.Equal(t, "Shell", d.ObjectType.String())
	require.Len(t, d.Levels, 3)
	assert.Equal(t, "Stress", d.Levels[0].String())
	assert.Equal(t, "Top", d.Levels[1].String())
	assert.Equal(t, "VonMises", d.Levels[2].String())
}

func TestDeriveObjectGroup(t *testing.T) {
	_, og, _, _ := beamChain(t)

	d := Derive(og)
	assert.Equal(t, "Beam", d.ObjectType.String())
	assert.Equal(t, 1, d.BaseID)
	assert.Equal(t, 7, d.UserID)
	assert.Empty(t, d.Levels)
}

func TestDeriveSuperObjectGroup(t *testing.T) {
	sog, _, _, _ := beamChain(t)

	d := Derive(sog)
	assert.Equal(t, "Beam", d.ObjectType.String())
	assert.Equal(t, descriptor.Wildcard, d.BaseID)
	assert.Equal(t, descriptor.Wildcard, d.UserID)
	assert.Empty(t, d.Levels)
}

func TestDeriveStopsAtObjectGroup(t *testing.T) {
	// The object group supplies the ids even with a super object group
	// above it.
	_, _, _, leaf := beamChain(t)

	d := Derive(leaf)
	assert.Equal(t, 1, d.BaseID)
	assert.Equal(t, 7, d.UserID)
}

func TestDeriveNestedSuperObjectGroups(t *testing.T) {
	// A super object group does not terminate the walk, so the outermost
	// grouping names the type when no object group intervenes.
	outer := NewSuperObjectGroup(w("Assembly"))
	inner := NewSuperObjectGroup(w("Beam"))
	leaf := NewVariableRef(w("Energy"), w("SCALAR"), ref("merged.frs", 48, 8))
	require.NoError(t, outer.AddChild(inner))
	require.NoError(t, inner.AddChild(leaf))

	d := Derive(leaf)
	assert.Equal(t, "Assembly", d.ObjectType.String())
	assert.Equal(t, descriptor.Wildcard, d.BaseID)
	assert.Equal(t, descriptor.Wildcard, d.UserID)
	require.Len(t, d.Levels, 1)
	assert.Equal(t, "Energy", d.Levels[0].String())

	// An object group below the nested grouping still wins.
	og := NewObjectGroup(w("Beam"), 3, -1)
	leaf2 := NewVariableRef(w("Energy"), w("SCALAR"), ref("merged.frs", 56, 8))
	require.NoError(t, inner.AddChild(og))
	require.NoError(t, og.AddChild(leaf2))

	d2 := Derive(leaf2)
	assert.Equal(t, "Beam", d2.ObjectType.String())
	assert.Equal(t, 3, d2.BaseID)
}

func TestDeriveMatchesQuery(t *testing.T) {
	_, _, ig, leaf := beamChain(t)

	q := descriptor.Descriptor{
		ObjectType: w("Beam"),
		BaseID:     descriptor.Wildcard,
		UserID:     descriptor.Wildcard,
		Levels:     []dict.Word{w("Stress"), w("Axial")},
	}

	// The leaf's levels end with its own name, so a query naming the full
	// path matches the leaf but not the group above it.
	assert.True(t, Derive(leaf).Matches(q))
	assert.False(t, Derive(ig).Matches(q))

	short := descriptor.Descriptor{
		ObjectType: w("Beam"),
		BaseID:     descriptor.Wildcard,
		UserID:     descriptor.Wildcard,
		Levels:     []dict.Word{w("Stress")},
	}
	assert.True(t, Derive(leaf).Matches(short))
	assert.True(t, Derive(ig).Matches(short))
}
