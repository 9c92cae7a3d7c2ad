// Package indexcache stores parsed indexes in a bbolt database so repeated
// opens of the same index file skip parsing and validation of the YAML.
package indexcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/jsaowji/d2vsource/pkg/adapters/logger"
	"github.com/jsaowji/d2vsource/pkg/index"
	"github.com/jsaowji/d2vsource/pkg/ports"
)

var indexesBucket = []byte("indexes")

// Cache is a bbolt backed index cache.
type Cache struct {
	db  *bolt.DB
	log ports.Logger
}

// Open opens or creates the cache database at path.
func Open(path string, log ports.Logger) (*Cache, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{
		Timeout: 1 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("open index cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(indexesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Cache{db: db, log: logger.OrNoop(log).WithComponent("indexcache")}, nil
}

// Key identifies an index file by absolute path, size and modification time.
func Key(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	st, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("stat index: %w", err)
	}
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%d", abs, st.Size(), st.ModTime().UnixNano())))
	return hex.EncodeToString(sum[:]), nil
}

// Get returns the cached index for key.
func (c *Cache) Get(key string) (*index.Index, bool, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(indexesBucket).Get([]byte(key)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil || data == nil {
		return nil, false, err
	}

	var idx index.Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, false, fmt.Errorf("decode cached index: %w", err)
	}
	if err := idx.Validate(); err != nil {
		return nil, false, err
	}
	return &idx, true, nil
}

// Put stores idx under key.
func (c *Cache) Put(key string, idx *index.Index) error {
	encoded, err := json.Marshal(idx)
	if err != nil {
		return err
	}
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(indexesBucket).Put([]byte(key), encoded)
	})
}

// Load returns the index at path from the cache, parsing and storing it on
// a miss. A broken cache entry is replaced.
func (c *Cache) Load(path string) (*index.Index, error) {
	key, err := Key(path)
	if err != nil {
		return nil, err
	}

	idx, ok, err := c.Get(key)
	if err != nil {
		c.log.Warn("Ignoring cached index for %s: %v", path, err)
	}
	if ok {
		c.log.Debug("Index cache hit for %s", path)
		return idx, nil
	}

	idx, err = index.LoadFile(path)
	if err != nil {
		return nil, err
	}
	if err := c.Put(key, idx); err != nil {
		c.log.Warn("Caching index failed: %v", err)
	}
	return idx, nil
}

// Len returns the number of cached indexes.
func (c *Cache) Len() (int, error) {
	n := 0
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(indexesBucket).Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the database.
func (c *Cache) Close() error {
	return c.db.Close()
}
