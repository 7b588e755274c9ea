// Package catcache persists parsed result-file catalogs in a bbolt
// database. Reopening a large unchanged file then skips the header and
// catalog parse entirely; any doubt about freshness is a miss and the
// caller falls back to the real parse.
package catcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hupe1980/resdb/codec"
	"github.com/hupe1980/resdb/frs"
)

var bucketCatalogs = []byte("catalogs")

// Cache is a persistent catalog cache. Safe for concurrent use.
type Cache struct {
	db    *bbolt.DB
	codec codec.Codec
}

// Open opens or creates the cache database at path. A nil codec falls
// back to codec.Default for newly written records.
func Open(path string, c codec.Codec) (*Cache, error) {
	if c == nil {
		c = codec.Default
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("catcache: create directory: %w", err)
		}
	}

	bopt := &bbolt.Options{
		Timeout: 10 * time.Second,
	}
	db, err := bbolt.Open(path, 0o600, bopt)
	if err != nil {
		return nil, fmt.Errorf("catcache: open %q: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCatalogs)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("catcache: prepare %q: %w", path, err)
	}

	return &Cache{db: db, codec: c}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// envelope is the stored value. It is always std-JSON so records stay
// readable regardless of the configured codec; the payload inside is
// encoded with the codec the envelope names.
type envelope struct {
	Codec   string `json:"codec"`
	Payload []byte `json:"payload"`
}

// record is the codec-encoded catalog: everything Open derives from the
// file except OS state. The byte order is stored as a flag because
// binary.ByteOrder is an interface.
type record struct {
	Size       int64            `json:"size" msgpack:"size"`
	MtimeNanos int64            `json:"mtimeNanos" msgpack:"mtimeNanos"`
	Tag        string           `json:"tag" msgpack:"tag"`
	Checksum   uint32           `json:"checksum" msgpack:"checksum"`
	BigEndian  bool             `json:"bigEndian" msgpack:"bigEndian"`
	Module     string           `json:"module" msgpack:"module"`
	Created    string           `json:"created" msgpack:"created"`
	Objects    []frs.ObjectDesc `json:"objects" msgpack:"objects"`
}

// Get returns the cached catalog for path if the stored size and mtime
// match exactly. Any mismatch, missing record, or decode failure is a
// plain miss.
func (c *Cache) Get(path string, size int64, mtime time.Time) (*frs.File, bool) {
	var raw []byte
	err := c.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketCatalogs).Get([]byte(path)); v != nil {
			raw = append(raw, v...)
		}
		return nil
	})
	if err != nil || raw == nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}
	dec, ok := codec.ByName(env.Codec)
	if !ok {
		return nil, false
	}
	var rec record
	if err := dec.Unmarshal(env.Payload, &rec); err != nil {
		return nil, false
	}
	if rec.Size != size || rec.MtimeNanos != mtime.UnixNano() {
		return nil, false
	}

	var order binary.ByteOrder = binary.LittleEndian
	if rec.BigEndian {
		order = binary.BigEndian
	}
	return &frs.File{
		Path:     path,
		Tag:      rec.Tag,
		Checksum: rec.Checksum,
		Order:    order,
		Module:   rec.Module,
		Created:  rec.Created,
		Objects:  rec.Objects,
		Size:     rec.Size,
	}, true
}

// Put stores the catalog of f keyed by its path.
func (c *Cache) Put(f *frs.File, mtime time.Time) error {
	rec := record{
		Size:       f.Size,
		MtimeNanos: mtime.UnixNano(),
		Tag:        f.Tag,
		Checksum:   f.Checksum,
		BigEndian:  f.Swapped(),
		Module:     f.Module,
		Created:    f.Created,
		Objects:    f.Objects,
	}
	payload, err := c.codec.Marshal(&rec)
	if err != nil {
		return fmt.Errorf("catcache: encode %q: %w", f.Path, err)
	}
	raw, err := json.Marshal(envelope{Codec: c.codec.Name(), Payload: payload})
	if err != nil {
		return fmt.Errorf("catcache: encode %q: %w", f.Path, err)
	}

	err = c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCatalogs).Put([]byte(f.Path), raw)
	})
	if err != nil {
		return fmt.Errorf("catcache: store %q: %w", f.Path, err)
	}
	return nil
}

// Delete forgets the record for path. Deleting an absent record is not
// an error.
func (c *Cache) Delete(path string) error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketCatalogs).Delete([]byte(path))
	})
	if err != nil {
		return fmt.Errorf("catcache: delete %q: %w", path, err)
	}
	return nil
}

// Len returns the number of cached catalogs.
func (c *Cache) Len() int {
	n := 0
	c.db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(bucketCatalogs).Stats().KeyN
		return nil
	})
	return n
}
