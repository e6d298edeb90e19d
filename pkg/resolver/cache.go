package resolver

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/cinelex/rightsgraph/pkg/types"
)

// DefaultCacheTTL is how long a resolution decision stays reusable.
const DefaultCacheTTL = 24 * time.Hour

// Cache persists resolution decisions keyed by record fingerprint. Entries
// expire on a TTL so threshold or model changes eventually flush through.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenCache opens a disk-backed cache at dir. An empty dir opens an
// in-memory cache, used in tests and for one-off runs.
func OpenCache(dir string, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening resolution cache: %w", err)
	}
	return &Cache{db: db, ttl: ttl}, nil
}

// Get returns the cached entry for a fingerprint, if one is live.
func (c *Cache) Get(fingerprint string) (*types.ResolutionCacheEntry, bool, error) {
	var entry types.ResolutionCacheEntry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading resolution cache: %w", err)
	}
	return &entry, true, nil
}

// Put stores a resolution decision under the cache TTL.
func (c *Cache) Put(entry *types.ResolutionCacheEntry) error {
	val, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(entry.Fingerprint), val).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("writing resolution cache: %w", err)
	}
	return nil
}

// Close releases the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}
