package ethdb

import "errors"

// ErrKeyNotFound is returned when key isn't found in the database.
var ErrKeyNotFound = errors.New("db: key not found")

// Putter wraps the database write operation supported by both batches and regular databases.
type Putter interface {
	// Put inserts or updates a single entry.
	Put(bucket string, key, value []byte) error
}

// Getter wraps the database read operations.
type Getter interface {
	// Get returns the value for a given key if it's present.
	// Returns ErrKeyNotFound if the key is missing from the bucket.
	Get(bucket string, key []byte) ([]byte, error)

	// Has indicates whether a key exists in the database.
	Has(bucket string, key []byte) (bool, error)

	// Walk iterates over entries with keys greater or equal to startkey.
	// Only the keys whose first fixedbits bits match those of startkey are iterated over.
	// walker is called for each eligible entry; iteration stops when walker
	// returns false or an error.
	Walk(bucket string, startkey []byte, fixedbits int, walker func(k, v []byte) (bool, error)) error
}

// Deleter wraps the database delete operations.
type Deleter interface {
	// Delete removes a single entry. Deleting a non-existent key is a no-op.
	Delete(bucket string, key []byte) error
}

// Database wraps all database operations. It is the handle the execution core
// holds for the duration of one block: the caller owns commit and rollback.
type Database interface {
	Getter
	Putter
	Deleter
}
