package geodata

import (
	"errors"
	"fmt"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/zeebo/xxh3"

	"github.com/andreiashu/geodata/prefixmap"
)

// buildCache maps the digest of an input file to the table encoded from it,
// so unchanged files are not parsed again on the next run. Keys include the
// output format and parsing mode because both change the encoded bytes.
type buildCache struct {
	db     *badger.DB
	prefix []byte
}

// openBuildCache opens (or creates) the cache stored in dir.
func openBuildCache(dir string, format prefixmap.Format, strict bool) (*buildCache, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Disable default logger

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	mode := "lenient"
	if strict {
		mode = "strict"
	}
	return &buildCache{
		db:     db,
		prefix: []byte("table/" + string(format) + "/" + mode + "/"),
	}, nil
}

// key returns the cache key of an input file's contents.
func (c *buildCache) key(input []byte) []byte {
	sum := xxh3.Hash128(input).Bytes()
	k := make([]byte, 0, len(c.prefix)+len(sum))
	k = append(k, c.prefix...)
	return append(k, sum[:]...)
}

// get returns the encoded table stored under key.
func (c *buildCache) get(key []byte) ([]byte, bool, error) {
	var val []byte
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// put stores an encoded table under key.
func (c *buildCache) put(key, encoded []byte) error {
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, encoded)
	})
}

// Close closes the underlying database.
func (c *buildCache) Close() error {
	return c.db.Close()
}
