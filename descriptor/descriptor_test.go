package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/resdb/dict"
)

func desc(objectType string, baseID, userID int, levels ...string) Descriptor {
	return Descriptor{
		ObjectType: dict.Intern(objectType),
		BaseID:     baseID,
		UserID:     userID,
		Levels:     dict.InternAll(levels),
	}
}

func TestMatchesExactType(t *testing.T) {
	c := desc("Beam", 1, 1, "Stress", "Axial")

	assert.True(t, c.Matches(desc("Beam", 1, 1, "Stress", "Axial")))
	assert.False(t, c.Matches(desc("Triad", 1, 1, "Stress", "Axial")), "object type is never wildcardable")
}

func TestMatchesWildcardIDs(t *testing.T) {
	c := desc("Beam", 7, 12, "Stress", "Axial")

	assert.True(t, c.Matches(desc("Beam", Wildcard, Wildcard, "Stress", "Axial")))
	assert.True(t, c.Matches(desc("Beam", 7, Wildcard, "Stress", "Axial")))
	assert.True(t, c.Matches(desc("Beam", Wildcard, 12, "Stress", "Axial")))
	assert.False(t, c.Matches(desc("Beam", 8, Wildcard, "Stress", "Axial")))
	assert.False(t, c.Matches(desc("Beam", Wildcard, 13, "Stress", "Axial")))
}

func TestMatchesLevelPrefix(t *testing.T) {
	c := desc("Beam", 1, 1, "Stress", "Axial", "Max")

	assert.True(t, c.Matches(desc("Beam", 1, 1)), "empty query path matches everything under the object")
	assert.True(t, c.Matches(desc("Beam", 1, 1, "Stress")))
	assert.True(t, c.Matches(desc("Beam", 1, 1, "Stress", "Axial")))
	assert.True(t, c.Matches(desc("Beam", 1, 1, "Stress", "Axial", "Max")))
	assert.False(t, c.Matches(desc("Beam", 1, 1, "Stress", "Axial", "Max", "Upper")), "query deeper than candidate")
	assert.False(t, c.Matches(desc("Beam", 1, 1, "Axial")), "prefix must start at the first level")
}

func TestMatchesAbsentIDDistinctFromZero(t *testing.T) {
	// An object with absent ids carries Wildcard on the candidate side.
	c := desc("Mechanism", Wildcard, Wildcard, "Energy")

	assert.True(t, c.Matches(desc("Mechanism", Wildcard, Wildcard, "Energy")))
	assert.False(t, c.Matches(desc("Mechanism", 0, Wildcard, "Energy")), "query id 0 does not match an absent id")
}

func TestEqualStrict(t *testing.T) {
	a := desc("Beam", 1, 2, "Stress")
	b := desc("Beam", 1, 2, "Stress")
	require.True(t, a.Equal(b))

	b.VarRefType = dict.Intern("SCALAR")
	assert.False(t, a.Equal(b))

	c := desc("Beam", 1, 2, "Stress", "Axial")
	assert.False(t, a.Equal(c), "Equal does not apply prefix semantics")
	assert.True(t, c.Matches(a), "but Matches does")
}

func TestString(t *testing.T) {
	d := desc("Beam", 1, Wildcard, "Stress", "Axial")
	d.VarRefType = dict.Intern("SCALAR")
	assert.Equal(t, "Beam[1,*]: Stress|Axial (SCALAR)", d.String())

	assert.Equal(t, "Beam[*,*]", desc("Beam", Wildcard, Wildcard).String())
}

func TestParseID(t *testing.T) {
	id, err := ParseID("*")
	require.NoError(t, err)
	assert.Equal(t, Wildcard, id)

	id, err = ParseID("")
	require.NoError(t, err)
	assert.Equal(t, Wildcard, id)

	id, err = ParseID("42")
	require.NoError(t, err)
	assert.Equal(t, 42, id)

	_, err = ParseID("beam")
	assert.Error(t, err)

	_, err = ParseID("-1")
	assert.Error(t, err, "negative ids must not alias the wildcard")
}
