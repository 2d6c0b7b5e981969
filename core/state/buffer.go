package state

import (
	"bytes"
	"encoding/binary"

	"github.com/ledgerwatch/log/v3"
	"golang.org/x/exp/slices"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/common/changeset"
	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/ethdb"
)

// See mutation_puts.go in turbo-geth for the batch accounting baseline.
const entryOverhead = 32

// Buffer sits between the IntraBlockState and the database transaction: it
// serves reads through its dirty maps, accumulates the block's writes and
// pre-image change sets, and flushes everything in deterministic order.
// Reads never fail on missing keys; writes surface store errors.
//
// A Buffer owns its database handle for the duration of a block. It is not
// safe for concurrent use.
type Buffer struct {
	db     ethdb.Database
	reader *PlainStateReader

	// historicalBlock, when set, redirects read misses to the state as of
	// that block instead of the current plain state.
	historicalBlock *uint64

	accounts     map[common.Address]*accounts.Account // nil value = deleted
	storage      map[common.Address]map[uint64]Storage
	incarnations map[common.Address]uint64

	hashToCode              map[common.Hash][]byte
	storagePrefixToCodeHash map[string]common.Hash

	headers map[string]*types.Header

	accountBackChanges map[common.Address][]byte
	storageBackChanges map[string][]byte
	changedStorage     map[common.Address]struct{}

	batchSize uint64

	logger log.Logger
}

// NewBuffer wraps a database transaction handle. historicalBlock may be nil.
func NewBuffer(db ethdb.Database, historicalBlock *uint64) *Buffer {
	b := &Buffer{
		db:              db,
		historicalBlock: historicalBlock,
		logger:          log.New("component", "buffer"),
	}
	if db != nil {
		b.reader = NewPlainStateReader(db)
	}
	b.accounts = make(map[common.Address]*accounts.Account)
	b.storage = make(map[common.Address]map[uint64]Storage)
	b.incarnations = make(map[common.Address]uint64)
	b.hashToCode = make(map[common.Hash][]byte)
	b.storagePrefixToCodeHash = make(map[string]common.Hash)
	b.headers = make(map[string]*types.Header)
	b.accountBackChanges = make(map[common.Address][]byte)
	b.storageBackChanges = make(map[string][]byte)
	b.changedStorage = make(map[common.Address]struct{})
	return b
}

// Reader exposes the underlying plain-state reader, e.g. to install caches.
func (b *Buffer) Reader() *PlainStateReader {
	return b.reader
}

// ReadAccount returns the staged account, or reads through to the store.
// Misses are not cached: a subsequent write installs the tombstone.
func (b *Buffer) ReadAccount(address common.Address) (*accounts.Account, error) {
	if acc, ok := b.accounts[address]; ok {
		return acc, nil
	}
	if b.db == nil {
		return nil, nil
	}
	if b.historicalBlock != nil {
		return GetAccountAsOf(b.db, address, *b.historicalBlock)
	}
	return b.reader.ReadAccountData(address)
}

// ReadStorage returns the staged slot value; absent slots read as zero.
func (b *Buffer) ReadStorage(address common.Address, incarnation uint64, key common.Hash) (common.Hash, error) {
	if incMap, ok := b.storage[address]; ok {
		if storageMap, ok1 := incMap[incarnation]; ok1 {
			if value, ok2 := storageMap[key]; ok2 {
				return value, nil
			}
		}
	}
	if b.db == nil {
		return common.Hash{}, nil
	}
	var enc []byte
	var err error
	if b.historicalBlock != nil {
		enc, err = GetStorageAsOf(b.db, address, incarnation, key, *b.historicalBlock)
	} else {
		enc, err = b.reader.ReadAccountStorage(address, incarnation, key)
	}
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(enc), nil
}

// ReadCode returns code by hash; unknown hashes read as empty.
func (b *Buffer) ReadCode(codeHash common.Hash) ([]byte, error) {
	if code, ok := b.hashToCode[codeHash]; ok {
		return code, nil
	}
	if b.db == nil {
		return nil, nil
	}
	return b.reader.ReadAccountCode(codeHash)
}

// PreviousIncarnation returns the previous non-zero incarnation of a
// destructed account; 0 if none exists.
func (b *Buffer) PreviousIncarnation(address common.Address) (uint64, error) {
	if inc, ok := b.incarnations[address]; ok {
		return inc, nil
	}
	if b.db == nil {
		return 0, nil
	}
	return b.reader.ReadAccountIncarnation(address)
}

// UpdateAccount stages the transition of an account from its block-initial
// value to its current one. The pre-image lands in the account change set
// when the value changed, the account was deleted, or its storage was touched
// this block. Follows the turbo-geth logic on when to populate account
// changes; see (ChangeSetWriter) UpdateAccountData & DeleteAccount.
// First write wins for pre-images.
func (b *Buffer) UpdateAccount(address common.Address, initial, current *accounts.Account) {
	equal := accountsEqual(initial, current)
	accountDeleted := current == nil

	_, storageChanged := b.changedStorage[address]
	if equal && !accountDeleted && !storageChanged {
		return
	}

	if _, ok := b.accountBackChanges[address]; !ok {
		b.accountBackChanges[address] = encodeAccountPreImage(initial, !accountDeleted)
	}

	if equal {
		return
	}

	if _, ok := b.accounts[address]; !ok {
		b.batchSize += common.AddressLength + entryOverhead
		if current != nil {
			b.batchSize += uint64(current.EncodingLengthForStorage())
		}
	}
	b.accounts[address] = current

	if accountDeleted && initial != nil && initial.Incarnation > 0 {
		if _, ok := b.incarnations[address]; !ok {
			b.incarnations[address] = initial.Incarnation
			b.batchSize += common.AddressLength + common.IncarnationLength + entryOverhead
		}
	}
}

// UpdateAccountCode stages deployed code under its hash and the storage
// prefix of the deploying incarnation. Values are content-addressed, so the
// first write wins.
func (b *Buffer) UpdateAccountCode(address common.Address, incarnation uint64, codeHash common.Hash, code []byte) {
	if _, ok := b.hashToCode[codeHash]; !ok {
		b.hashToCode[codeHash] = code
		b.batchSize += common.HashLength + entryOverhead + uint64(len(code))
	}
	prefix := string(dbutils.PlainGenerateStoragePrefix(address, incarnation))
	if _, ok := b.storagePrefixToCodeHash[prefix]; !ok {
		b.storagePrefixToCodeHash[prefix] = codeHash
		b.batchSize += common.AddressLength + common.IncarnationLength + entryOverhead + common.HashLength
	}
}

// UpdateStorage stages a storage write; a no-op when the value is unchanged.
// The pre-image of the first write to each slot is kept for the change set.
func (b *Buffer) UpdateStorage(address common.Address, incarnation uint64, key common.Hash, initial, current common.Hash) {
	if current == initial {
		return
	}
	b.changedStorage[address] = struct{}{}
	fullKey := string(dbutils.PlainGenerateCompositeStorageKey(address, incarnation, key))
	if _, ok := b.storageBackChanges[fullKey]; !ok {
		b.storageBackChanges[fullKey] = common.ZerolessView(initial[:])
	}

	incMap, ok := b.storage[address]
	if !ok {
		incMap = make(map[uint64]Storage)
		b.storage[address] = incMap
	}
	storageMap, ok := incMap[incarnation]
	if !ok {
		storageMap = make(Storage)
		incMap[incarnation] = storageMap
		b.batchSize += common.AddressLength + common.IncarnationLength + entryOverhead
	}
	if _, ok := storageMap[key]; !ok {
		b.batchSize += entryOverhead + common.HashLength + uint64(len(common.ZerolessView(current[:])))
	}
	storageMap[key] = current
}

// InsertHeader stages a header in memory under number|hash.
func (b *Buffer) InsertHeader(header *types.Header, hash common.Hash) {
	b.headers[string(dbutils.HeaderKey(header.Number, hash))] = header
}

// ReadHeader returns a staged header, or nil. Durable header storage belongs
// to the outer access layer.
func (b *Buffer) ReadHeader(number uint64, hash common.Hash) *types.Header {
	return b.headers[string(dbutils.HeaderKey(number, hash))]
}

// AccountBackChanges exposes the account pre-images collected for the block.
func (b *Buffer) AccountBackChanges() map[common.Address][]byte {
	return b.accountBackChanges
}

// StorageBackChanges exposes the storage pre-images collected for the block.
func (b *Buffer) StorageBackChanges() map[string][]byte {
	return b.storageBackChanges
}

// BatchSize approximates the accumulated write volume in bytes.
func (b *Buffer) BatchSize() uint64 {
	return b.batchSize
}

// WriteToDb flushes the staged state into the database transaction, in
// deterministic order: state-table upserts, the incarnation map, the code
// tables, then the change sets keyed by block number.
func (b *Buffer) WriteToDb(blockNumber uint64) error {
	if b.db == nil {
		return nil
	}

	if err := b.writeToStateTable(); err != nil {
		return err
	}

	for _, address := range sortedAddresses(b.incarnations) {
		var buf [common.IncarnationLength]byte
		binary.BigEndian.PutUint64(buf[:], b.incarnations[address])
		if err := b.db.Put(dbutils.IncarnationMapBucket, address.Bytes(), buf[:]); err != nil {
			return err
		}
	}

	codeHashes := make([]common.Hash, 0, len(b.hashToCode))
	for hash := range b.hashToCode {
		codeHashes = append(codeHashes, hash)
	}
	slices.SortFunc(codeHashes, func(a, c common.Hash) int { return bytes.Compare(a[:], c[:]) })
	for _, hash := range codeHashes {
		if err := b.db.Put(dbutils.CodeBucket, hash.Bytes(), b.hashToCode[hash]); err != nil {
			return err
		}
	}

	prefixes := make([]string, 0, len(b.storagePrefixToCodeHash))
	for prefix := range b.storagePrefixToCodeHash {
		prefixes = append(prefixes, prefix)
	}
	slices.Sort(prefixes)
	for _, prefix := range prefixes {
		codeHash := b.storagePrefixToCodeHash[prefix]
		if err := b.db.Put(dbutils.PlainContractCodeBucket, []byte(prefix), codeHash.Bytes()); err != nil {
			return err
		}
	}

	if err := b.writeChangeSets(blockNumber); err != nil {
		return err
	}

	b.logger.Debug("flushed block state", "block", blockNumber,
		"accounts", len(b.accounts), "storageAddrs", len(b.storage),
		"codes", len(b.hashToCode), "batch", b.batchSize)
	return nil
}

// writeToStateTable applies account and storage upserts in one ordered pass
// over the union of touched addresses; output is independent of insertion
// order.
func (b *Buffer) writeToStateTable() error {
	keys := make([]common.Address, 0, len(b.accounts)+len(b.storage))
	seen := make(map[common.Address]struct{}, len(b.accounts)+len(b.storage))
	for address := range b.accounts {
		keys = append(keys, address)
		seen[address] = struct{}{}
	}
	for address := range b.storage {
		if _, ok := seen[address]; !ok {
			keys = append(keys, address)
		}
	}
	slices.SortFunc(keys, func(a, c common.Address) int { return bytes.Compare(a[:], c[:]) })

	for _, address := range keys {
		if acc, ok := b.accounts[address]; ok {
			if err := b.db.Delete(dbutils.PlainStateBucket, address.Bytes()); err != nil {
				return err
			}
			if acc != nil {
				value := make([]byte, acc.EncodingLengthForStorage())
				acc.EncodeForStorage(value)
				if err := b.db.Put(dbutils.PlainStateBucket, address.Bytes(), value); err != nil {
					return err
				}
			}
		}

		incMap, ok := b.storage[address]
		if !ok {
			continue
		}
		incarnations := make([]uint64, 0, len(incMap))
		for incarnation := range incMap {
			incarnations = append(incarnations, incarnation)
		}
		slices.Sort(incarnations)
		for _, incarnation := range incarnations {
			storageMap := incMap[incarnation]
			locations := make([]common.Hash, 0, len(storageMap))
			for location := range storageMap {
				locations = append(locations, location)
			}
			slices.SortFunc(locations, func(a, c common.Hash) int { return bytes.Compare(a[:], c[:]) })
			for _, location := range locations {
				value := storageMap[location]
				compositeKey := dbutils.PlainGenerateCompositeStorageKey(address, incarnation, location)
				if err := b.db.Delete(dbutils.PlainStateBucket, compositeKey); err != nil {
					return err
				}
				if !value.IsZero() {
					if err := b.db.Put(dbutils.PlainStateBucket, compositeKey, common.ZerolessView(value[:])); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}

func (b *Buffer) writeChangeSets(blockNumber uint64) error {
	blockKey := dbutils.EncodeBlockNumber(blockNumber)

	accountChanges := changeset.NewAccountChangeSet()
	for address, preImage := range b.accountBackChanges {
		if err := accountChanges.Add(common.CopyBytes(address.Bytes()), preImage); err != nil {
			return err
		}
	}
	if err := b.db.Put(dbutils.PlainAccountChangeSetBucket, blockKey, accountChanges.Encode()); err != nil {
		return err
	}

	if len(b.storageBackChanges) == 0 {
		return nil
	}
	storageChanges := changeset.NewStorageChangeSet()
	for fullKey, preImage := range b.storageBackChanges {
		if err := storageChanges.Add([]byte(fullKey), preImage); err != nil {
			return err
		}
	}
	return b.db.Put(dbutils.PlainStorageChangeSetBucket, blockKey, storageChanges.Encode())
}

func sortedAddresses(m map[common.Address]uint64) []common.Address {
	keys := make([]common.Address, 0, len(m))
	for address := range m {
		keys = append(keys, address)
	}
	slices.SortFunc(keys, func(a, c common.Address) int { return bytes.Compare(a[:], c[:]) })
	return keys
}

func accountsEqual(a, b *accounts.Account) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equals(b)
}

// encodeAccountPreImage renders the change-set value for an account's initial
// state. Absent accounts encode to zero bytes; surviving accounts omit the
// code hash (it is recoverable through the plain contract-code table).
func encodeAccountPreImage(initial *accounts.Account, omitCodeHash bool) []byte {
	if initial == nil {
		return []byte{}
	}
	enc := initial
	if omitCodeHash && !initial.IsEmptyCodeHash() {
		cpy := initial.SelfCopy()
		cpy.CodeHash = accounts.EmptyCodeHash
		enc = cpy
	}
	value := make([]byte, enc.EncodingLengthForStorage())
	enc.EncodeForStorage(value)
	return value
}
