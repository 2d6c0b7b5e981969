package core

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/common/changeset"
	"github.com/ledgerwatch/silkexec/common/dbutils"
	"github.com/ledgerwatch/silkexec/core/state"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/ethdb"
	"github.com/ledgerwatch/silkexec/ethdb/memdb"
	"github.com/ledgerwatch/silkexec/params"
)

var (
	sender      = common.HexToAddress("0x5000000000000000000000000000000000000001")
	recipient   = common.HexToAddress("0x5000000000000000000000000000000000000002")
	beneficiary = common.HexToAddress("0x5000000000000000000000000000000000000003")
)

type vmStub struct {
	fn func(txn *types.Transaction, gas uint64) CallResult
}

func (v vmStub) Execute(txn *types.Transaction, gas uint64) CallResult {
	return v.fn(txn, gas)
}

// transferVM mimics the interpreter's value transfer for plain sends.
func transferVM(ibs *state.IntraBlockState) VirtualMachine {
	return vmStub{fn: func(txn *types.Transaction, gas uint64) CallResult {
		ibs.SubBalance(*txn.From, &txn.Value)
		ibs.AddBalance(*txn.To, &txn.Value)
		return CallResult{Success: true, GasLeft: gas}
	}}
}

func seedAccount(t *testing.T, db ethdb.Database, addr common.Address, acc *accounts.Account) {
	t.Helper()
	value := make([]byte, acc.EncodingLengthForStorage())
	acc.EncodeForStorage(value)
	require.NoError(t, db.Put(dbutils.PlainStateBucket, addr.Bytes(), value))
}

func ether(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(params.Ether))
}

func gwei(n uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(n), uint256.NewInt(params.GWei))
}

func readBalance(t *testing.T, db ethdb.Getter, addr common.Address) *uint256.Int {
	t.Helper()
	acc, err := state.NewPlainStateReader(db).ReadAccountData(addr)
	require.NoError(t, err)
	if acc == nil {
		return new(uint256.Int)
	}
	return &acc.Balance
}

func TestSingleValueTransfer(t *testing.T) {
	db := memdb.New()
	acc := accounts.NewAccount()
	acc.Balance.Set(ether(10))
	seedAccount(t, db, sender, &acc)

	to := recipient
	block := &types.Block{
		Header: types.Header{
			Number:      1,
			Beneficiary: beneficiary,
			GasLimit:    10_000_000,
			GasUsed:     params.TxGas,
		},
		Transactions: []types.Transaction{{
			Nonce:    0,
			GasPrice: *gwei(1),
			GasLimit: params.TxGas,
			To:       &to,
			Value:    *ether(1),
			From:     &sender,
		}},
	}

	buffer := state.NewBuffer(db, nil)
	receipts, err := ExecuteBlock(block, buffer, params.AllProtocolChanges, transferVM, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 1)

	assert.True(t, receipts[0].Success)
	assert.Equal(t, params.TxGas, receipts[0].CumulativeGasUsed)
	assert.Empty(t, receipts[0].Logs)
	assert.Equal(t, types.Bloom{}, receipts[0].Bloom)

	fee := new(uint256.Int).Mul(uint256.NewInt(params.TxGas), gwei(1))

	wantSender := new(uint256.Int).Sub(ether(10), ether(1))
	wantSender.Sub(wantSender, fee)
	assert.Zero(t, readBalance(t, db, sender).Cmp(wantSender))
	assert.Zero(t, readBalance(t, db, recipient).Cmp(ether(1)))

	// the beneficiary collects the fee on top of the block reward
	wantBeneficiary := new(uint256.Int).Add(params.ConstantinopleBlockReward, fee)
	assert.Zero(t, readBalance(t, db, beneficiary).Cmp(wantBeneficiary))

	senderAcc, err := state.NewPlainStateReader(db).ReadAccountData(sender)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), senderAcc.Nonce)
}

func TestInsufficientFunds(t *testing.T) {
	db := memdb.New()
	acc := accounts.NewAccount()
	acc.Balance.Set(gwei(20999)) // less than gas cost + value
	seedAccount(t, db, sender, &acc)

	to := recipient
	block := &types.Block{
		Header: types.Header{Number: 1, Beneficiary: beneficiary, GasLimit: 10_000_000, GasUsed: params.TxGas},
		Transactions: []types.Transaction{{
			GasPrice: *gwei(1),
			GasLimit: params.TxGas,
			To:       &to,
			Value:    *ether(1),
			From:     &sender,
		}},
	}

	buffer := state.NewBuffer(db, nil)
	_, err := ExecuteBlock(block, buffer, params.AllProtocolChanges, transferVM, nil)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.EqualError(t, err, "insufficient funds")

	// nothing was flushed
	assert.Zero(t, readBalance(t, db, sender).Cmp(gwei(20999)))
	assert.Zero(t, db.Len(dbutils.PlainAccountChangeSetBucket))
}

func TestTwoTransactionsSecondReverts(t *testing.T) {
	db := memdb.New()
	acc := accounts.NewAccount()
	acc.Balance.Set(ether(10))
	seedAccount(t, db, sender, &acc)

	contract := common.HexToAddress("0x5000000000000000000000000000000000000004")
	key := common.HexToHash("0x01")

	to := contract
	txn := func(nonce uint64) types.Transaction {
		return types.Transaction{
			Nonce:    nonce,
			GasPrice: *uint256.NewInt(1),
			GasLimit: 100_000,
			To:       &to,
			From:     &sender,
		}
	}
	block := &types.Block{
		Header: types.Header{Number: 1, Beneficiary: beneficiary, GasLimit: 10_000_000, GasUsed: 80_000},
		Transactions: []types.Transaction{
			txn(0), txn(1),
		},
	}

	call := 0
	vm := func(ibs *state.IntraBlockState) VirtualMachine {
		return vmStub{fn: func(txn *types.Transaction, gas uint64) CallResult {
			call++
			if call == 1 {
				ibs.SetState(contract, key, common.BytesToHash([]byte{0x01}))
				return CallResult{Success: true, GasLeft: 70_000}
			}
			// second transaction reverts everything it did
			id := ibs.Snapshot()
			ibs.SetState(contract, key, common.BytesToHash([]byte{0x02}))
			ibs.RevertToSnapshot(id)
			return CallResult{Success: false, GasLeft: 50_000}
		}}
	}

	buffer := state.NewBuffer(db, nil)
	receipts, err := ExecuteBlock(block, buffer, params.AllProtocolChanges, vm, nil)
	require.NoError(t, err)
	require.Len(t, receipts, 2)

	assert.True(t, receipts[0].Success)
	assert.Equal(t, uint64(30_000), receipts[0].CumulativeGasUsed)
	assert.False(t, receipts[1].Success)
	assert.Equal(t, uint64(80_000), receipts[1].CumulativeGasUsed)

	// only the first transaction's storage write survived
	enc, err := db.Get(dbutils.PlainStateBucket, dbutils.PlainGenerateCompositeStorageKey(contract, 0, key))
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01}, enc)

	// the change set records the sender's pre-block state exactly once
	acsEnc, err := db.Get(dbutils.PlainAccountChangeSetBucket, dbutils.EncodeBlockNumber(1))
	require.NoError(t, err)
	preImage, err := changeset.FindValue(acsEnc, changeset.AccountKeyLen, sender.Bytes())
	require.NoError(t, err)
	var pre accounts.Account
	require.NoError(t, pre.DecodeForStorage(preImage))
	assert.Equal(t, uint64(0), pre.Nonce)
	assert.Zero(t, pre.Balance.Cmp(ether(10)))

	wantSender := new(uint256.Int).Sub(ether(10), uint256.NewInt(80_000))
	assert.Zero(t, readBalance(t, db, sender).Cmp(wantSender))
}

func TestDAOForkTransfer(t *testing.T) {
	db := memdb.New()

	config := *params.AllProtocolChanges
	config.DAOForkBlock = big.NewInt(5)

	dao1, dao2 := params.DAODrainList[0], params.DAODrainList[1]
	acc1 := accounts.NewAccount()
	acc1.Balance.Set(ether(100))
	seedAccount(t, db, dao1, &acc1)
	acc2 := accounts.NewAccount()
	acc2.Balance.Set(ether(50))
	seedAccount(t, db, dao2, &acc2)

	block := &types.Block{
		Header: types.Header{Number: 5, Beneficiary: beneficiary, GasLimit: 10_000_000},
	}

	buffer := state.NewBuffer(db, nil)
	_, err := ExecuteBlock(block, buffer, &config, transferVM, nil)
	require.NoError(t, err)

	assert.True(t, readBalance(t, db, dao1).IsZero())
	assert.True(t, readBalance(t, db, dao2).IsZero())
	assert.Zero(t, readBalance(t, db, params.DAORefundContract).Cmp(ether(150)))
}

func TestOmmerRewards(t *testing.T) {
	db := memdb.New()

	config := &params.ChainConfig{
		ChainID:        big.NewInt(1),
		HomesteadBlock: big.NewInt(0),
		ByzantiumBlock: big.NewInt(0),
	}

	ommer1 := common.HexToAddress("0x6000000000000000000000000000000000000001")
	ommer2 := common.HexToAddress("0x6000000000000000000000000000000000000002")

	block := &types.Block{
		Header: types.Header{Number: 10, Beneficiary: beneficiary, GasLimit: 10_000_000},
		Ommers: []types.Header{
			{Number: 9, Beneficiary: ommer1},
			{Number: 8, Beneficiary: ommer2},
		},
	}

	buffer := state.NewBuffer(db, nil)
	_, err := ExecuteBlock(block, buffer, config, transferVM, nil)
	require.NoError(t, err)

	reward := params.ByzantiumBlockReward

	// miner: 3 ether + 2 x 3/32 ether
	wantMiner := new(uint256.Int).Set(reward)
	inclusion := new(uint256.Int).Div(reward, uint256.NewInt(32))
	wantMiner.Add(wantMiner, inclusion)
	wantMiner.Add(wantMiner, inclusion)
	assert.Zero(t, readBalance(t, db, beneficiary).Cmp(wantMiner))

	// ommer at distance 1: 7/8 x 3 ether, distance 2: 6/8 x 3 ether
	want1 := new(uint256.Int).Mul(reward, uint256.NewInt(7))
	want1.Rsh(want1, 3)
	assert.Zero(t, readBalance(t, db, ommer1).Cmp(want1))

	want2 := new(uint256.Int).Mul(reward, uint256.NewInt(6))
	want2.Rsh(want2, 3)
	assert.Zero(t, readBalance(t, db, ommer2).Cmp(want2))
}

func TestPreflightValidation(t *testing.T) {
	newBlock := func(txn types.Transaction, headerGasLimit uint64) *types.Block {
		return &types.Block{
			Header:       types.Header{Number: 1, Beneficiary: beneficiary, GasLimit: headerGasLimit},
			Transactions: []types.Transaction{txn},
		}
	}
	to := recipient

	tests := []struct {
		name   string
		txn    types.Transaction
		header uint64
		reason string
	}{
		{
			name:   "missing sender",
			txn:    types.Transaction{GasLimit: params.TxGas, To: &to},
			header: 10_000_000,
			reason: "missing sender",
		},
		{
			name:   "invalid nonce",
			txn:    types.Transaction{Nonce: 5, GasLimit: params.TxGas, To: &to, From: &sender},
			header: 10_000_000,
			reason: "invalid nonce",
		},
		{
			name:   "intrinsic gas",
			txn:    types.Transaction{GasLimit: 20_000, To: &to, From: &sender},
			header: 10_000_000,
			reason: "intrinsic gas",
		},
		{
			name:   "block gas limit reached",
			txn:    types.Transaction{GasLimit: 30_000, To: &to, From: &sender},
			header: 25_000,
			reason: "block gas limit reached",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := memdb.New()
			acc := accounts.NewAccount()
			acc.Balance.Set(ether(1))
			seedAccount(t, db, sender, &acc)

			buffer := state.NewBuffer(db, nil)
			_, err := ExecuteBlock(newBlock(tt.txn, tt.header), buffer, params.AllProtocolChanges, transferVM, nil)
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.EqualError(t, err, tt.reason)
		})
	}
}

func TestGasMismatch(t *testing.T) {
	db := memdb.New()
	acc := accounts.NewAccount()
	acc.Balance.Set(ether(10))
	seedAccount(t, db, sender, &acc)

	to := recipient
	block := &types.Block{
		Header: types.Header{Number: 1, Beneficiary: beneficiary, GasLimit: 10_000_000, GasUsed: 99_999},
		Transactions: []types.Transaction{{
			GasPrice: *gwei(1),
			GasLimit: params.TxGas,
			To:       &to,
			Value:    *ether(1),
			From:     &sender,
		}},
	}

	buffer := state.NewBuffer(db, nil)
	_, err := ExecuteBlock(block, buffer, params.AllProtocolChanges, transferVM, nil)
	require.Error(t, err)
	assert.EqualError(t, err, "gas mismatch for block 1")
}

func TestIntrinsicGas(t *testing.T) {
	// 21000 for a plain send
	g, err := IntrinsicGas(nil, false, true, true)
	require.NoError(t, err)
	assert.Equal(t, params.TxGas, g)

	// contract creation after homestead
	g, err = IntrinsicGas(nil, true, true, true)
	require.NoError(t, err)
	assert.Equal(t, params.TxGasContractCreation, g)

	// contract creation before homestead costs the plain-send gas
	g, err = IntrinsicGas(nil, true, false, false)
	require.NoError(t, err)
	assert.Equal(t, params.TxGas, g)

	// data bytes: zero and non-zero priced separately, istanbul repricing
	data := []byte{0, 1, 0, 2}
	g, err = IntrinsicGas(data, false, true, false)
	require.NoError(t, err)
	assert.Equal(t, params.TxGas+2*params.TxDataZeroGas+2*params.TxDataNonZeroGasFrontier, g)

	g, err = IntrinsicGas(data, false, true, true)
	require.NoError(t, err)
	assert.Equal(t, params.TxGas+2*params.TxDataZeroGas+2*params.TxDataNonZeroGasEIP2028, g)
}
