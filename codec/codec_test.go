package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	Module  string   `json:"module" msgpack:"module"`
	Offsets []uint64 `json:"offsets" msgpack:"offsets"`
	Count   int32    `json:"count" msgpack:"count"`
}

func TestRoundTrip(t *testing.T) {
	in := record{Module: "STRUCT", Offsets: []uint64{32, 4096, 1 << 40}, Count: -3}

	for _, c := range []Codec{JSON{}, GoJSON{}, Msgpack{}} {
		t.Run(c.Name(), func(t *testing.T) {
			b, err := c.Marshal(in)
			require.NoError(t, err)

			var out record
			require.NoError(t, c.Unmarshal(b, &out))
			assert.Equal(t, in, out)
		})
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json", "msgpack"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("protobuf")
	assert.False(t, ok)
}

func TestDefaultIsRegistered(t *testing.T) {
	c, ok := ByName(Default.Name())
	require.True(t, ok)
	assert.Equal(t, Default.Name(), c.Name())
}

func TestMustMarshalPanics(t *testing.T) {
	assert.Panics(t, func() {
		MustMarshal(JSON{}, make(chan int))
	})
}

func TestMustMarshalNilUsesDefault(t *testing.T) {
	b := MustMarshal(nil, record{Module: "X"})
	var out record
	require.NoError(t, Default.Unmarshal(b, &out))
	assert.Equal(t, "X", out.Module)
}
