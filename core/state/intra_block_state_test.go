package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/crypto"
	"github.com/ledgerwatch/silkexec/ethdb"
	"github.com/ledgerwatch/silkexec/ethdb/memdb"
)

func newTestState(t *testing.T) (*IntraBlockState, *Buffer, *memdb.MemDb) {
	t.Helper()
	db := memdb.New()
	buffer := NewBuffer(db, nil)
	return New(buffer), buffer, db
}

func TestSnapshotRevertIdentity(t *testing.T) {
	ibs, _, _ := newTestState(t)

	addr := common.HexToAddress("0x2000000000000000000000000000000000000001")
	other := common.HexToAddress("0x2000000000000000000000000000000000000002")
	key := common.HexToHash("0x01")

	ibs.AddBalance(addr, uint256.NewInt(100))
	ibs.SetNonce(addr, 1)
	ibs.SetState(addr, key, common.BytesToHash([]byte{0xaa}))
	ibs.AddRefund(500)
	ibs.AddLog(&types.Log{Address: addr})

	id := ibs.Snapshot()

	ibs.AddBalance(addr, uint256.NewInt(23))
	ibs.SetNonce(addr, 7)
	ibs.SetState(addr, key, common.BytesToHash([]byte{0xbb}))
	ibs.SetCode(addr, []byte{0x60, 0x60})
	ibs.AddBalance(other, uint256.NewInt(1))
	ibs.AddRefund(100)
	ibs.SubRefund(50)
	ibs.AddLog(&types.Log{Address: other})
	ibs.Selfdestruct(addr)

	ibs.RevertToSnapshot(id)

	assert.Zero(t, ibs.GetBalance(addr).Cmp(uint256.NewInt(100)))
	assert.Equal(t, uint64(1), ibs.GetNonce(addr))
	assert.Equal(t, common.BytesToHash([]byte{0xaa}), ibs.GetState(addr, key))
	assert.Nil(t, ibs.GetCode(addr))
	assert.False(t, ibs.Exist(other))
	assert.Equal(t, uint64(500), ibs.GetRefund())
	assert.Len(t, ibs.Logs(), 1)
	assert.False(t, ibs.HasSelfdestructed(addr))
}

func TestNestedSnapshots(t *testing.T) {
	ibs, _, _ := newTestState(t)
	addr := common.HexToAddress("0x2000000000000000000000000000000000000003")

	ibs.AddBalance(addr, uint256.NewInt(1))
	outer := ibs.Snapshot()
	ibs.AddBalance(addr, uint256.NewInt(10))
	inner := ibs.Snapshot()
	ibs.AddBalance(addr, uint256.NewInt(100))

	ibs.RevertToSnapshot(inner)
	assert.Zero(t, ibs.GetBalance(addr).Cmp(uint256.NewInt(11)))

	ibs.RevertToSnapshot(outer)
	assert.Zero(t, ibs.GetBalance(addr).Cmp(uint256.NewInt(1)))
}

func TestCommittedStateAcrossTransactions(t *testing.T) {
	ibs, _, _ := newTestState(t)
	addr := common.HexToAddress("0x2000000000000000000000000000000000000004")
	key := common.HexToHash("0x02")
	v1 := common.BytesToHash([]byte{0x01})
	v2 := common.BytesToHash([]byte{0x02})

	ibs.SetState(addr, key, v1)
	assert.Equal(t, common.Hash{}, ibs.GetCommittedState(addr, key))
	assert.Equal(t, v1, ibs.GetState(addr, key))

	ibs.FinalizeTransaction()
	ibs.ClearJournalAndSubstate()

	// next transaction observes the previous one's writes as committed
	assert.Equal(t, v1, ibs.GetCommittedState(addr, key))
	ibs.SetState(addr, key, v2)
	assert.Equal(t, v1, ibs.GetCommittedState(addr, key))
	assert.Equal(t, v2, ibs.GetState(addr, key))
}

func TestCreateContractBumpsIncarnation(t *testing.T) {
	db := memdb.New()

	contract := common.HexToAddress("0x3000000000000000000000000000000000000001")
	acc := accounts.NewAccount()
	acc.Incarnation = 1
	acc.Balance.SetUint64(777)
	value := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(value)
	require.NoError(t, db.Put(dbutils.PlainStateBucket, contract.Bytes(), value))

	key := common.HexToHash("0x05")
	oldVal := common.BytesToHash([]byte{0x11})
	compositeKey := dbutils.PlainGenerateCompositeStorageKey(contract, 1, key)
	require.NoError(t, db.Put(dbutils.PlainStateBucket, compositeKey, common.ZerolessView(oldVal[:])))

	buffer := NewBuffer(db, nil)
	ibs := New(buffer)

	assert.Equal(t, oldVal, ibs.GetState(contract, key))

	// self-destruct to itself, then a fresh CREATE at the same address
	require.True(t, ibs.Selfdestruct(contract))
	ibs.CreateContract(contract)

	// the new incarnation does not see the old storage epoch
	assert.Equal(t, common.Hash{}, ibs.GetState(contract, key))
	// balance survives creation over an occupied address
	assert.Zero(t, ibs.GetBalance(contract).Cmp(uint256.NewInt(777)))

	ibs.DestructSuicides()
	ibs.FinalizeTransaction()
	require.NoError(t, ibs.WriteToDb(10))

	// the pre-destruct incarnation lands in the incarnation map
	inc, err := buffer.PreviousIncarnation(contract)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), inc)
	got, err := db.Get(dbutils.IncarnationMapBucket, contract.Bytes())
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0, 0, 0, 0, 1}, got)
}

func TestCreateContractRevert(t *testing.T) {
	ibs, _, _ := newTestState(t)
	contract := common.HexToAddress("0x3000000000000000000000000000000000000002")
	key := common.HexToHash("0x06")

	ibs.AddBalance(contract, uint256.NewInt(5))
	ibs.SetState(contract, key, common.BytesToHash([]byte{0x22}))

	id := ibs.Snapshot()
	ibs.CreateContract(contract)
	assert.Equal(t, common.Hash{}, ibs.GetState(contract, key))

	ibs.RevertToSnapshot(id)
	assert.Equal(t, common.BytesToHash([]byte{0x22}), ibs.GetState(contract, key))
	assert.Zero(t, ibs.GetBalance(contract).Cmp(uint256.NewInt(5)))
}

func TestDestructTouchedDead(t *testing.T) {
	db := memdb.New()

	empty := common.HexToAddress("0x3000000000000000000000000000000000000003")
	emptyAcc := accounts.NewAccount()
	value := make([]byte, emptyAcc.EncodingLengthForStorage())
	emptyAcc.EncodeForStorage(value)
	require.NoError(t, db.Put(dbutils.PlainStateBucket, empty.Bytes(), value))

	buffer := NewBuffer(db, nil)
	ibs := New(buffer)

	// touching the empty account with a zero-value transfer marks it dead
	ibs.AddBalance(empty, new(uint256.Int))
	ibs.DestructSuicides()
	ibs.DestructTouchedDead()
	ibs.FinalizeTransaction()
	require.NoError(t, ibs.WriteToDb(11))

	_, err := db.Get(dbutils.PlainStateBucket, empty.Bytes())
	assert.ErrorIs(t, err, ethdb.ErrKeyNotFound)
}

func TestSetCode(t *testing.T) {
	ibs, buffer, db := newTestState(t)
	contract := common.HexToAddress("0x3000000000000000000000000000000000000004")
	code := []byte{0x60, 0x2a, 0x60, 0x00, 0x55}

	ibs.CreateContract(contract)
	ibs.SetCode(contract, code)

	assert.Equal(t, code, ibs.GetCode(contract))
	assert.Equal(t, len(code), ibs.GetCodeSize(contract))
	assert.Equal(t, crypto.Keccak256Hash(code), ibs.GetCodeHash(contract))

	ibs.FinalizeTransaction()
	require.NoError(t, ibs.WriteToDb(12))

	stored, err := db.Get(dbutils.CodeBucket, crypto.Keccak256Hash(code).Bytes())
	require.NoError(t, err)
	assert.Equal(t, code, stored)

	fresh := New(buffer)
	assert.Equal(t, code, fresh.GetCode(contract))
}

func TestFirstInitialWinsAcrossTransactions(t *testing.T) {
	db := memdb.New()
	addr := common.HexToAddress("0x3000000000000000000000000000000000000005")
	acc := accounts.NewAccount()
	acc.Nonce = 1
	value := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(value)
	require.NoError(t, db.Put(dbutils.PlainStateBucket, addr.Bytes(), value))

	buffer := NewBuffer(db, nil)
	ibs := New(buffer)

	// two transactions mutate the same account
	ibs.SetNonce(addr, 2)
	ibs.FinalizeTransaction()
	ibs.ClearJournalAndSubstate()
	ibs.SetNonce(addr, 3)
	ibs.FinalizeTransaction()

	require.NoError(t, ibs.WriteToDb(20))

	preImage := buffer.AccountBackChanges()[addr]
	var pre accounts.Account
	require.NoError(t, pre.DecodeForStorage(preImage))
	assert.Equal(t, uint64(1), pre.Nonce)
}
