package loader

import (
	"fmt"

	bolt "github.com/boltdb/bolt"
)

var scriptsBucket = []byte("scripts")

// BoltCache persists a script's raw XML source across process runs,
// keyed by canonical path, in an embedded bolt database. A CLI wiring
// this in trades a filesystem read for one embedded-KV read across
// repeated `archetype generate` invocations over the same archive.
type BoltCache struct {
	db *bolt.DB
}

// OpenBoltCache opens (creating if necessary) a bolt database at path
// for use as a loader Cache.
func OpenBoltCache(path string) (*BoltCache, error) {
	db, err := bolt.Open(path, 0o644, nil)
	if err != nil {
		return nil, fmt.Errorf("loader: opening bolt cache: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(scriptsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("loader: initializing bolt cache: %w", err)
	}
	return &BoltCache{db: db}, nil
}

func (c *BoltCache) Close() error { return c.db.Close() }

// Get returns the cached raw source for path, if present.
func (c *BoltCache) Get(path string) ([]byte, bool) {
	var raw []byte
	_ = c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(scriptsBucket)
		if v := b.Get([]byte(path)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	return raw, raw != nil
}

// Put stores raw under path, overwriting any prior entry.
func (c *BoltCache) Put(path string, raw []byte) {
	_ = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(scriptsBucket)
		return b.Put([]byte(path), raw)
	})
}
