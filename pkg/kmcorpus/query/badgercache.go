package query

import (
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
)

// BadgerSharedCache implements SharedCache on top of an embedded badger
// key-value store, so multiple Engine instances on the same host (e.g.
// separate KM and SKiM job workers) can share gob-encoded token
// postings; each engine decodes the bytes it reads from the cache.
type BadgerSharedCache struct {
	db *badger.DB
}

// OpenBadgerSharedCache opens (creating if absent) a badger database at
// dir for use as a shared query cache.
func OpenBadgerSharedCache(dir string) (*BadgerSharedCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open shared cache at %s: %w", dir, err)
	}
	return &BadgerSharedCache{db: db}, nil
}

// Close releases the underlying badger database.
func (c *BadgerSharedCache) Close() error {
	return c.db.Close()
}

// Get implements SharedCache.
func (c *BadgerSharedCache) Get(key string) ([]byte, bool) {
	var value []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			value = append([]byte(nil), v...)
			return nil
		})
	})
	if err != nil {
		return nil, false
	}
	return value, true
}

// Set implements SharedCache.
func (c *BadgerSharedCache) Set(key string, value []byte) {
	_ = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}
