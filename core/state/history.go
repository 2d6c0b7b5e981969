package state

import (
	"errors"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/common/changeset"
	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/ethdb"
)

// findByHistory scans the change-set bucket from blockNum upwards for the
// earliest pre-image recorded for key. A change set written under block N
// holds the value a key had before block N executed, so the first hit is the
// value the key had at the beginning of blockNum.
func findByHistory(db ethdb.Getter, bucket string, keyLen int, key []byte, blockNum uint64) ([]byte, bool, error) {
	var value []byte
	var found bool
	err := db.Walk(bucket, dbutils.EncodeBlockNumber(blockNum), 0, func(k, v []byte) (bool, error) {
		val, err := changeset.FindValue(v, keyLen, key)
		if err != nil {
			if errors.Is(err, changeset.ErrNotFound) {
				return true, nil
			}
			return false, err
		}
		value = val
		found = true
		return false, nil
	})
	if err != nil {
		return nil, false, err
	}
	return value, found, nil
}

// GetAccountAsOf returns the account state at the beginning of blockNum,
// falling back to the current plain state when the account has not changed
// since.
func GetAccountAsOf(db ethdb.Getter, address common.Address, blockNum uint64) (*accounts.Account, error) {
	enc, found, err := findByHistory(db, dbutils.PlainAccountChangeSetBucket, changeset.AccountKeyLen, address[:], blockNum)
	if err != nil {
		return nil, err
	}
	if found {
		return accounts.Decode(enc)
	}
	return NewPlainStateReader(db).ReadAccountData(address)
}

// GetStorageAsOf returns a storage slot at the beginning of blockNum, zero-
// stripped, falling back to the current plain state.
func GetStorageAsOf(db ethdb.Getter, address common.Address, incarnation uint64, key common.Hash, blockNum uint64) ([]byte, error) {
	compositeKey := dbutils.PlainGenerateCompositeStorageKey(address, incarnation, key)
	enc, found, err := findByHistory(db, dbutils.PlainStorageChangeSetBucket, changeset.StorageKeyLen, compositeKey, blockNum)
	if err != nil {
		return nil, err
	}
	if found {
		return enc, nil
	}
	return NewPlainStateReader(db).ReadAccountStorage(address, incarnation, key)
}

// GetIncarnationAsOf reads the previous incarnation of a destructed account.
// The incarnation map carries no history; reads are served from the current
// table (incarnations never decrease, so stale reads can only over-report).
func GetIncarnationAsOf(db ethdb.Getter, address common.Address) (uint64, error) {
	return NewPlainStateReader(db).ReadAccountIncarnation(address)
}
