package memdb

import (
	"bytes"
	"sync"

	"github.com/google/btree"

	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/ethdb"
)

const degree = 32

type entry struct {
	k, v []byte
}

func (e *entry) Less(than btree.Item) bool {
	return bytes.Compare(e.k, than.(*entry).k) < 0
}

// MemDb is an ordered in-memory key-value store satisfying ethdb.Database.
// It stands in for the durable store in tests and tools; buckets are plain
// btrees keyed by raw bytes, matching the ordered-traversal guarantees the
// flush path relies on.
type MemDb struct {
	mu      sync.RWMutex
	buckets map[string]*btree.BTree
}

// New creates a MemDb with the core's buckets pre-created.
func New() *MemDb {
	db := &MemDb{buckets: make(map[string]*btree.BTree)}
	for _, name := range dbutils.Buckets {
		db.buckets[name] = btree.New(degree)
	}
	return db
}

func (db *MemDb) bucket(name string) *btree.BTree {
	b, ok := db.buckets[name]
	if !ok {
		b = btree.New(degree)
		db.buckets[name] = b
	}
	return b
}

func (db *MemDb) Put(bucket string, key, value []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.bucket(bucket).ReplaceOrInsert(&entry{k: copyBytes(key), v: copyBytes(value)})
	return nil
}

func (db *MemDb) Get(bucket string, key []byte) ([]byte, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if item := db.bucket(bucket).Get(&entry{k: key}); item != nil {
		return copyBytes(item.(*entry).v), nil
	}
	return nil, ethdb.ErrKeyNotFound
}

func (db *MemDb) Has(bucket string, key []byte) (bool, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.bucket(bucket).Has(&entry{k: key}), nil
}

func (db *MemDb) Delete(bucket string, key []byte) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.bucket(bucket).Delete(&entry{k: key})
	return nil
}

func (db *MemDb) Walk(bucket string, startkey []byte, fixedbits int, walker func(k, v []byte) (bool, error)) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	fixedbytes, mask := bytesmask(fixedbits)
	var walkErr error
	db.bucket(bucket).AscendGreaterOrEqual(&entry{k: startkey}, func(item btree.Item) bool {
		e := item.(*entry)
		if fixedbits > 0 {
			if len(e.k) < fixedbytes {
				return false
			}
			if !bytes.Equal(e.k[:fixedbytes-1], startkey[:fixedbytes-1]) {
				return false
			}
			if (e.k[fixedbytes-1] & mask) != (startkey[fixedbytes-1] & mask) {
				return false
			}
		}
		goOn, err := walker(e.k, e.v)
		if err != nil {
			walkErr = err
			return false
		}
		return goOn
	})
	return walkErr
}

// Len returns the number of entries in a bucket.
func (db *MemDb) Len(bucket string) int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.bucket(bucket).Len()
}

func bytesmask(fixedbits int) (fixedbytes int, mask byte) {
	fixedbytes = (fixedbits + 7) / 8
	shiftbits := fixedbits & 7
	mask = byte(0xff)
	if shiftbits != 0 {
		mask = 0xff << (8 - shiftbits)
	}
	return fixedbytes, mask
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
