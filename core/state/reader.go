package state

import (
	"encoding/binary"
	"errors"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/ethdb"
)

// PlainStateReader reads data from so called "plain state".
// Data in the plain state is stored using un-hashed account/storage items
// as opposed to the "hashed" state that uses hashes of merkle paths to store items.
type PlainStateReader struct {
	db           ethdb.Getter
	accountCache *fastcache.Cache
	storageCache *fastcache.Cache
	codeCache    *fastcache.Cache
}

func NewPlainStateReader(db ethdb.Getter) *PlainStateReader {
	return &PlainStateReader{
		db: db,
	}
}

func (r *PlainStateReader) SetAccountCache(accountCache *fastcache.Cache) {
	r.accountCache = accountCache
}

func (r *PlainStateReader) SetStorageCache(storageCache *fastcache.Cache) {
	r.storageCache = storageCache
}

func (r *PlainStateReader) SetCodeCache(codeCache *fastcache.Cache) {
	r.codeCache = codeCache
}

func (r *PlainStateReader) ReadAccountData(address common.Address) (*accounts.Account, error) {
	var enc []byte
	var ok bool
	if r.accountCache != nil {
		enc, ok = r.accountCache.HasGet(nil, address[:])
	}
	if !ok {
		var err error
		enc, err = r.db.Get(dbutils.PlainStateBucket, address[:])
		if err != nil && !errors.Is(err, ethdb.ErrKeyNotFound) {
			return nil, err
		}
	}
	if !ok && r.accountCache != nil {
		r.accountCache.Set(address[:], enc)
	}
	if len(enc) == 0 {
		return nil, nil
	}
	acc := &accounts.Account{}
	if err := acc.DecodeForStorage(enc); err != nil {
		return nil, err
	}
	return acc, nil
}

func (r *PlainStateReader) ReadAccountStorage(address common.Address, incarnation uint64, key common.Hash) ([]byte, error) {
	compositeKey := dbutils.PlainGenerateCompositeStorageKey(address, incarnation, key)
	if r.storageCache != nil {
		if enc, ok := r.storageCache.HasGet(nil, compositeKey); ok {
			return enc, nil
		}
	}
	enc, err := r.db.Get(dbutils.PlainStateBucket, compositeKey)
	if err != nil && !errors.Is(err, ethdb.ErrKeyNotFound) {
		return nil, err
	}
	if r.storageCache != nil {
		r.storageCache.Set(compositeKey, enc)
	}
	return enc, nil
}

func (r *PlainStateReader) ReadAccountCode(codeHash common.Hash) ([]byte, error) {
	if codeHash == accounts.EmptyCodeHash || codeHash.IsZero() {
		return nil, nil
	}
	if r.codeCache != nil {
		if code, ok := r.codeCache.HasGet(nil, codeHash[:]); ok {
			return code, nil
		}
	}
	code, err := r.db.Get(dbutils.CodeBucket, codeHash[:])
	if err != nil && !errors.Is(err, ethdb.ErrKeyNotFound) {
		return nil, err
	}
	if r.codeCache != nil && len(code) <= 1024 {
		r.codeCache.Set(codeHash[:], code)
	}
	return code, nil
}

func (r *PlainStateReader) ReadAccountIncarnation(address common.Address) (uint64, error) {
	b, err := r.db.Get(dbutils.IncarnationMapBucket, address[:])
	if err == nil {
		if len(b) != common.IncarnationLength {
			return 0, dbutils.ErrInvalidSize
		}
		return binary.BigEndian.Uint64(b), nil
	} else if errors.Is(err, ethdb.ErrKeyNotFound) {
		return 0, nil
	}
	return 0, err
}
