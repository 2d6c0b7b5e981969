// Copyright 2019 The go-ethereum Authors
// This file is part of the silkexec library.
//
// The silkexec library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The silkexec library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the silkexec library. If not, see <http://www.gnu.org/licenses/>.

package state

import (
	"bytes"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
	"github.com/ledgerwatch/silkexec/crypto"
	"github.com/ledgerwatch/silkexec/params"
)

// IntraBlockState is the mutable, revertible view of the world during a
// single transaction; the interpreter talks to this object. It stages every
// touched account in memory, journals each mutation for snapshot/revert, and
// flushes the accumulated block state into the Buffer at block end.
// NOT THREAD SAFE!
type IntraBlockState struct {
	db *Buffer

	stateObjects map[common.Address]*stateObject

	touched       map[common.Address]struct{}
	selfDestructs map[common.Address]struct{}

	logs   types.Logs
	refund uint64

	// Journal of state modifications. This is the backbone of
	// Snapshot and RevertToSnapshot.
	journal   *journal
	snapshots []snapshotRecord

	// DB error. State objects are used by the consensus core and VM which are
	// unable to deal with database-level errors. Any error that occurs during
	// a database read is memoized here and surfaced by Error().
	savedErr error
}

type snapshotRecord struct {
	journalLength int
	logsLength    int
	refund        uint64
	touched       map[common.Address]struct{}
	selfDestructs map[common.Address]struct{}
}

// New creates an IntraBlockState reading through the given buffer.
func New(db *Buffer) *IntraBlockState {
	return &IntraBlockState{
		db:            db,
		stateObjects:  make(map[common.Address]*stateObject),
		touched:       make(map[common.Address]struct{}),
		selfDestructs: make(map[common.Address]struct{}),
		journal:       newJournal(),
	}
}

func (sdb *IntraBlockState) setError(err error) {
	if sdb.savedErr == nil {
		sdb.savedErr = err
	}
}

// Error returns the first database error observed during execution, if any.
func (sdb *IntraBlockState) Error() error {
	return sdb.savedErr
}

// getStateObject loads the staged view of an address, reading through the
// buffer on first access. The returned object is never nil; its data field is
// nil when the account does not currently exist.
func (sdb *IntraBlockState) getStateObject(addr common.Address) *stateObject {
	if obj, ok := sdb.stateObjects[addr]; ok {
		return obj
	}
	account, err := sdb.db.ReadAccount(addr)
	if err != nil {
		sdb.setError(fmt.Errorf("read account %x: %w", addr, err))
		account = nil
	}
	obj := newStateObject(addr, account)
	sdb.stateObjects[addr] = obj
	return obj
}

// getOrCreateAccount returns the live account of addr, materialising a fresh
// one when the address does not exist yet.
func (sdb *IntraBlockState) getOrCreateAccount(addr common.Address) *stateObject {
	obj := sdb.getStateObject(addr)
	if obj.data == nil {
		sdb.journal.append(resetObjectChange{account: addr, prev: obj.deepCopy()})
		account := accounts.NewAccount()
		obj.data = &account
	}
	return obj
}

// Exist reports whether the given account exists in the staged state or the
// database. Notably this also returns true for self-destructed accounts
// before the end of the transaction.
func (sdb *IntraBlockState) Exist(addr common.Address) bool {
	return sdb.getStateObject(addr).alive()
}

// Empty returns whether the given account is empty according to the EIP-161
// definition (balance = nonce = 0, no code).
func (sdb *IntraBlockState) Empty(addr common.Address) bool {
	obj := sdb.getStateObject(addr)
	return !obj.alive() || obj.data.IsEmpty()
}

// GetBalance retrieves the balance from the given address or 0 if the
// account does not exist.
func (sdb *IntraBlockState) GetBalance(addr common.Address) *uint256.Int {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return new(uint256.Int)
	}
	return &obj.data.Balance
}

// AddBalance adds amount to the account associated with addr.
func (sdb *IntraBlockState) AddBalance(addr common.Address, amount *uint256.Int) {
	sdb.touch(addr)
	obj := sdb.getOrCreateAccount(addr)
	sdb.journal.append(balanceChange{account: addr, prev: obj.data.Balance})
	obj.data.Balance.Add(&obj.data.Balance, amount)
}

// SubBalance subtracts amount from the account associated with addr.
func (sdb *IntraBlockState) SubBalance(addr common.Address, amount *uint256.Int) {
	sdb.touch(addr)
	obj := sdb.getOrCreateAccount(addr)
	sdb.journal.append(balanceChange{account: addr, prev: obj.data.Balance})
	obj.data.Balance.Sub(&obj.data.Balance, amount)
}

// SetBalance sets the balance of addr to amount.
func (sdb *IntraBlockState) SetBalance(addr common.Address, amount *uint256.Int) {
	sdb.touch(addr)
	obj := sdb.getOrCreateAccount(addr)
	sdb.journal.append(balanceChange{account: addr, prev: obj.data.Balance})
	obj.data.Balance.Set(amount)
}

// GetNonce retrieves the nonce from the given address or 0 if the account
// does not exist.
func (sdb *IntraBlockState) GetNonce(addr common.Address) uint64 {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return 0
	}
	return obj.data.Nonce
}

// SetNonce sets the nonce of addr.
func (sdb *IntraBlockState) SetNonce(addr common.Address, nonce uint64) {
	obj := sdb.getOrCreateAccount(addr)
	sdb.journal.append(nonceChange{account: addr, prev: obj.data.Nonce})
	obj.data.Nonce = nonce
}

// GetCodeHash returns the code hash of addr, or the zero hash if the account
// does not exist.
func (sdb *IntraBlockState) GetCodeHash(addr common.Address) common.Hash {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return common.Hash{}
	}
	return obj.data.CodeHash
}

// GetCode returns the bytecode of addr, loading it by hash on first access.
func (sdb *IntraBlockState) GetCode(addr common.Address) []byte {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return nil
	}
	if obj.code != nil {
		return obj.code
	}
	if obj.data.IsEmptyCodeHash() {
		return nil
	}
	code, err := sdb.db.ReadCode(obj.data.CodeHash)
	if err != nil {
		sdb.setError(fmt.Errorf("read code %x: %w", obj.data.CodeHash, err))
	}
	obj.code = code
	return code
}

// GetCodeSize returns the size of the bytecode of addr.
func (sdb *IntraBlockState) GetCodeSize(addr common.Address) int {
	return len(sdb.GetCode(addr))
}

// SetCode deploys code to addr.
func (sdb *IntraBlockState) SetCode(addr common.Address, code []byte) {
	obj := sdb.getOrCreateAccount(addr)
	prevCode := sdb.GetCode(addr)
	sdb.journal.append(codeChange{account: addr, prevcode: prevCode, prevhash: obj.data.CodeHash})
	obj.code = code
	obj.data.CodeHash = crypto.Keccak256Hash(code)
	obj.codeDirty = true
}

// GetState retrieves the current value of the given storage slot: dirty
// writes first, then the transaction baseline, then the database.
func (sdb *IntraBlockState) GetState(addr common.Address, key common.Hash) common.Hash {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return common.Hash{}
	}
	if value, dirty := obj.dirtyStorage[key]; dirty {
		return value
	}
	return sdb.getCommittedState(obj, key)
}

// GetCommittedState retrieves the value of the given storage slot as of the
// beginning of the current transaction.
func (sdb *IntraBlockState) GetCommittedState(addr common.Address, key common.Hash) common.Hash {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return common.Hash{}
	}
	return sdb.getCommittedState(obj, key)
}

func (sdb *IntraBlockState) getCommittedState(obj *stateObject, key common.Hash) common.Hash {
	if value, cached := obj.committedStorage[key]; cached {
		return value
	}
	value, err := sdb.db.ReadStorage(obj.address, obj.data.Incarnation, key)
	if err != nil {
		sdb.setError(fmt.Errorf("read storage %x %x: %w", obj.address, key, err))
	}
	obj.committedStorage[key] = value
	if _, ok := obj.originStorage[key]; !ok {
		obj.originStorage[key] = value
	}
	return value
}

// SetState writes a storage slot; a no-op when the value is unchanged.
func (sdb *IntraBlockState) SetState(addr common.Address, key common.Hash, value common.Hash) {
	prev := sdb.GetState(addr, key)
	if prev == value {
		return
	}
	obj := sdb.getOrCreateAccount(addr)
	sdb.journal.append(storageChange{account: addr, key: key, prevalue: prev})
	obj.dirtyStorage[key] = value
}

// CreateContract turns addr into a freshly deployed contract account: the
// balance is preserved, nonce and code reset, the incarnation bumped, and the
// storage of the previous incarnation becomes unreachable.
func (sdb *IntraBlockState) CreateContract(addr common.Address) {
	prev := sdb.getStateObject(addr)

	var prevIncarnation uint64
	if prev.alive() {
		prevIncarnation = prev.data.Incarnation
	} else {
		inc, err := sdb.db.PreviousIncarnation(addr)
		if err != nil {
			sdb.setError(fmt.Errorf("read incarnation %x: %w", addr, err))
		}
		prevIncarnation = inc
	}

	sdb.journal.append(resetObjectChange{account: addr, prev: prev.deepCopy()})

	account := accounts.NewAccount()
	account.Incarnation = prevIncarnation + 1
	if prev.alive() {
		account.Balance.Set(&prev.data.Balance)
	}

	obj := newStateObject(addr, nil)
	obj.initial = prev.initial
	obj.data = &account
	sdb.stateObjects[addr] = obj
}

// Selfdestruct schedules addr for destruction at the end of the transaction.
// The balance is zeroed when the destruction is carried out.
func (sdb *IntraBlockState) Selfdestruct(addr common.Address) bool {
	obj := sdb.getStateObject(addr)
	if !obj.alive() {
		return false
	}
	sdb.selfDestructs[addr] = struct{}{}
	return true
}

// HasSelfdestructed reports whether addr is scheduled for destruction.
func (sdb *IntraBlockState) HasSelfdestructed(addr common.Address) bool {
	_, ok := sdb.selfDestructs[addr]
	return ok
}

// AddLog appends a log emitted by the current transaction.
func (sdb *IntraBlockState) AddLog(log *types.Log) {
	log.Index = uint(len(sdb.logs))
	sdb.logs = append(sdb.logs, log)
}

// Logs returns the logs of the current transaction.
func (sdb *IntraBlockState) Logs() types.Logs {
	return sdb.logs
}

// AddRefund adds gas to the refund counter.
func (sdb *IntraBlockState) AddRefund(gas uint64) {
	sdb.refund += gas
}

// SubRefund removes gas from the refund counter.
// This method will panic if the refund counter goes below zero.
func (sdb *IntraBlockState) SubRefund(gas uint64) {
	if gas > sdb.refund {
		panic("refund counter below zero")
	}
	sdb.refund -= gas
}

// GetRefund returns the raw refund counter.
func (sdb *IntraBlockState) GetRefund() uint64 {
	return sdb.refund
}

// TotalRefund returns the refund counter plus the per-selfdestruct refund.
func (sdb *IntraBlockState) TotalRefund() uint64 {
	return sdb.refund + params.SelfdestructRefundGas*uint64(len(sdb.selfDestructs))
}

func (sdb *IntraBlockState) touch(addr common.Address) {
	sdb.touched[addr] = struct{}{}
}

// Snapshot returns an identifier for the current revision of the state.
func (sdb *IntraBlockState) Snapshot() int {
	sdb.snapshots = append(sdb.snapshots, snapshotRecord{
		journalLength: sdb.journal.length(),
		logsLength:    len(sdb.logs),
		refund:        sdb.refund,
		touched:       copyAddressSet(sdb.touched),
		selfDestructs: copyAddressSet(sdb.selfDestructs),
	})
	return len(sdb.snapshots) - 1
}

// RevertToSnapshot reverts all state changes made since the given revision.
// Reverts across already-finalized transactions are forbidden.
func (sdb *IntraBlockState) RevertToSnapshot(id int) {
	if id < 0 || id >= len(sdb.snapshots) {
		panic(fmt.Errorf("revision id %v cannot be reverted", id))
	}
	snapshot := sdb.snapshots[id]
	sdb.journal.revert(sdb, snapshot.journalLength)
	sdb.logs = sdb.logs[:snapshot.logsLength]
	sdb.refund = snapshot.refund
	sdb.touched = snapshot.touched
	sdb.selfDestructs = snapshot.selfDestructs
	sdb.snapshots = sdb.snapshots[:id]
}

// ClearJournalAndSubstate resets the journal and the transaction substate
// (logs, refund, touched and self-destruct sets). Called before each
// transaction's interpreter run.
func (sdb *IntraBlockState) ClearJournalAndSubstate() {
	sdb.journal.reset()
	sdb.snapshots = sdb.snapshots[:0]
	sdb.logs = nil
	sdb.refund = 0
	sdb.touched = make(map[common.Address]struct{})
	sdb.selfDestructs = make(map[common.Address]struct{})
}

// FinalizeTransaction commits the dirty storage of every staged object into
// its transaction baseline and drains the journal without reverting it.
// After this point the transaction can no longer be reverted.
func (sdb *IntraBlockState) FinalizeTransaction() {
	for _, obj := range sdb.stateObjects {
		for key, value := range obj.dirtyStorage {
			obj.committedStorage[key] = value
			delete(obj.dirtyStorage, key)
		}
	}
	sdb.journal.reset()
	sdb.snapshots = sdb.snapshots[:0]
}

// DestructSuicides carries out the scheduled self-destructions: the staged
// account becomes a tombstone.
func (sdb *IntraBlockState) DestructSuicides() {
	for addr := range sdb.selfDestructs {
		if obj := sdb.stateObjects[addr]; obj.alive() {
			obj.data = nil
		}
	}
}

// Destruct removes an account immediately, outside the self-destruct
// protocol. Used for the mainnet RIPEMD anomaly.
func (sdb *IntraBlockState) Destruct(addr common.Address) {
	if obj := sdb.getStateObject(addr); obj.alive() {
		obj.data = nil
	}
}

// DestructTouchedDead removes empty touched accounts, per EIP-161.
func (sdb *IntraBlockState) DestructTouchedDead() {
	for addr := range sdb.touched {
		obj := sdb.getStateObject(addr)
		if obj.alive() && obj.data.IsEmpty() {
			obj.data = nil
		}
	}
}

// WriteToDb pushes every staged object into the buffer and flushes the
// buffer under the given block number. Storage goes first so that the
// buffer's account change-set condition sees the touched-storage mark.
func (sdb *IntraBlockState) WriteToDb(blockNumber uint64) error {
	if sdb.savedErr != nil {
		return sdb.savedErr
	}

	addresses := make([]common.Address, 0, len(sdb.stateObjects))
	for addr := range sdb.stateObjects {
		addresses = append(addresses, addr)
	}
	slices.SortFunc(addresses, func(a, b common.Address) int { return bytes.Compare(a[:], b[:]) })

	for _, addr := range addresses {
		obj := sdb.stateObjects[addr]
		if obj.alive() {
			locations := make([]common.Hash, 0, len(obj.committedStorage))
			for location := range obj.committedStorage {
				locations = append(locations, location)
			}
			slices.SortFunc(locations, func(a, b common.Hash) int { return bytes.Compare(a[:], b[:]) })
			for _, location := range locations {
				sdb.db.UpdateStorage(addr, obj.data.Incarnation, location, obj.originStorage[location], obj.committedStorage[location])
			}
			if obj.codeDirty {
				sdb.db.UpdateAccountCode(addr, obj.data.Incarnation, obj.data.CodeHash, obj.code)
			}
		}
		sdb.db.UpdateAccount(addr, obj.initial, obj.data)
	}

	return sdb.db.WriteToDb(blockNumber)
}

func copyAddressSet(set map[common.Address]struct{}) map[common.Address]struct{} {
	cpy := make(map[common.Address]struct{}, len(set))
	for addr := range set {
		cpy[addr] = struct{}{}
	}
	return cpy
}
