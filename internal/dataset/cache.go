package dataset

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/satindergrewal/genreid/internal/features"
)

// Cache persists extracted vectors between runs so that only new or
// modified files are decoded again.
type Cache struct {
	db *badger.DB
}

// OpenCache opens (or creates) a cache in dir. An empty dir keeps the
// cache in memory.
func OpenCache(dir string) (*Cache, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	opts = opts.WithLogger(badgerLogger{logrus.WithField("component", "cache")})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return &Cache{db: db}, nil
}

type cachedVector struct {
	Version int       `msgpack:"v"`
	Values  []float32 `msgpack:"x"`
}

// cacheKey identifies one version of one file. Any change of size or
// modification time, or of the extraction schema, misses.
func cacheKey(it Item) []byte {
	return fmt.Appendf(nil, "v%d|%s|%d|%d", features.SchemaVersion, it.Path, it.Size, it.ModTime.UnixNano())
}

// Get returns the cached vector for it, if any.
func (c *Cache) Get(it Item) (features.Vector, bool, error) {
	var raw []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cacheKey(it))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cv cachedVector
	if err := msgpack.Unmarshal(raw, &cv); err != nil {
		return nil, false, nil // treat as a miss; it will be overwritten
	}
	if cv.Version != features.SchemaVersion {
		return nil, false, nil
	}
	return features.Vector(cv.Values), true, nil
}

// Put stores v for it.
func (c *Cache) Put(it Item, v features.Vector) error {
	raw, err := msgpack.Marshal(cachedVector{Version: features.SchemaVersion, Values: v})
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cacheKey(it), raw)
	})
}

// Close flushes and closes the cache.
func (c *Cache) Close() error {
	return c.db.Close()
}

// badgerLogger routes badger's warnings and errors to logrus and drops
// its info and debug chatter.
type badgerLogger struct {
	log *logrus.Entry
}

func (l badgerLogger) Errorf(f string, v ...interface{})   { l.log.Errorf(f, v...) }
func (l badgerLogger) Warningf(f string, v ...interface{}) { l.log.Warnf(f, v...) }
func (badgerLogger) Infof(string, ...interface{})          {}
func (badgerLogger) Debugf(string, ...interface{})         {}
