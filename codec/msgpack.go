package codec

import "github.com/vmihailenco/msgpack/v5"

// Msgpack is a MessagePack codec. Catalog records are offset-heavy numeric
// structs, which msgpack encodes far more compactly than JSON, so it is
// the Default.
type Msgpack struct{}

// Marshal encodes the value to MessagePack.
func (Msgpack) Marshal(v any) ([]byte, error) { return msgpack.Marshal(v) }

// Unmarshal decodes the MessagePack data into v.
func (Msgpack) Unmarshal(data []byte, v any) error { return msgpack.Unmarshal(data, v) }

// Name returns the unique name of the codec ("msgpack").
func (Msgpack) Name() string { return "msgpack" }
