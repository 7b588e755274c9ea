// Package codec centralizes catalog-cache and tooling encoding.
//
// Cached catalog records are self-describing: they store the codec name
// next to the payload, and the name selects the codec on load. Changing
// Default therefore invalidates nothing; old records keep decoding with
// the codec they were written with.
package codec

import "fmt"

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	case "msgpack":
		return Msgpack{}, true
	default:
		return nil, false
	}
}

// MustMarshal is a helper for internal tests/benchmarks.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}

// Default is the codec used when none is configured.
//
// This affects newly-written cache records only; existing records name
// their codec and are decoded with it.
var Default Codec = Msgpack{}
