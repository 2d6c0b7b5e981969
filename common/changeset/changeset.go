package changeset

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/ledgerwatch/silkexec/common"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrKeyMismatched = errors.New("key length mismatched")
)

const (
	// Keys of the account change set are plain addresses.
	AccountKeyLen = common.AddressLength
	// Keys of the storage change set are address|incarnation|location.
	StorageKeyLen = common.AddressLength + common.IncarnationLength + common.HashLength
)

// Change is one pre-image record: the key that changed during a block and the
// value it had before the block.
type Change struct {
	Key   []byte
	Value []byte
}

// ChangeSet is the per-block append-only record of pre-images. Keys are
// unique; the first recorded value for a key wins (callers enforce this by
// checking presence before adding).
type ChangeSet struct {
	Changes []Change
	keyLen  int
}

// NewAccountChangeSet makes a change set with plain address keys.
func NewAccountChangeSet() *ChangeSet {
	return &ChangeSet{
		Changes: make([]Change, 0),
		keyLen:  AccountKeyLen,
	}
}

// NewStorageChangeSet makes a change set with plain composite storage keys.
func NewStorageChangeSet() *ChangeSet {
	return &ChangeSet{
		Changes: make([]Change, 0),
		keyLen:  StorageKeyLen,
	}
}

func (s *ChangeSet) KeySize() int { return s.keyLen }

func (s *ChangeSet) Len() int { return len(s.Changes) }

func (s *ChangeSet) Swap(i, j int) {
	s.Changes[i], s.Changes[j] = s.Changes[j], s.Changes[i]
}

func (s *ChangeSet) Less(i, j int) bool {
	return bytes.Compare(s.Changes[i].Key, s.Changes[j].Key) < 0
}

// Add appends a change. The key must be of the set's key length.
func (s *ChangeSet) Add(key, value []byte) error {
	if len(key) != s.keyLen {
		return fmt.Errorf("%w: expected %d, actual %d", ErrKeyMismatched, s.keyLen, len(key))
	}
	s.Changes = append(s.Changes, Change{Key: key, Value: value})
	return nil
}

// Find returns the pre-image recorded for k, or ErrNotFound.
func (s *ChangeSet) Find(k []byte) ([]byte, error) {
	for _, c := range s.Changes {
		if bytes.Equal(c.Key, k) {
			return c.Value, nil
		}
	}
	return nil, ErrNotFound
}

// Encode serialises the set: number of changes (uint32 BE), the sorted keys,
// the cumulative end offsets of the values (uint32 BE each), then the
// concatenated values. The set is sorted in place first.
func (s *ChangeSet) Encode() []byte {
	sort.Sort(s)
	n := s.Len()
	buf := new(bytes.Buffer)
	intArr := make([]byte, 4)
	binary.BigEndian.PutUint32(intArr, uint32(n))
	buf.Write(intArr)

	for _, c := range s.Changes {
		buf.Write(c.Key)
	}

	var offset uint32
	for _, c := range s.Changes {
		offset += uint32(len(c.Value))
		binary.BigEndian.PutUint32(intArr, offset)
		buf.Write(intArr)
	}

	for _, c := range s.Changes {
		buf.Write(c.Value)
	}

	return buf.Bytes()
}
