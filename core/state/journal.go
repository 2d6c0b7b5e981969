// Copyright 2016 The go-ethereum Authors
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
	"github.com/holiman/uint256"

	"github.com/ledgerwatch/silkexec/common"
)

// journalEntry is a modification entry in the state change journal: the
// inverse of one mutation. Reverting a snapshot replays entries in reverse
// order, each undoing itself.
type journalEntry interface {
	// revert undoes the change introduced by this journal entry.
	revert(*IntraBlockState)
}

// journal contains the list of state modifications applied since the last
// transaction boundary. It is append-only between a snapshot and its revert.
type journal struct {
	entries []journalEntry
}

func newJournal() *journal {
	return &journal{}
}

// append inserts a new modification entry to the end of the journal.
func (j *journal) append(entry journalEntry) {
	j.entries = append(j.entries, entry)
}

// revert undoes a batch of journalled modifications down to the given length.
func (j *journal) revert(statedb *IntraBlockState, toLength int) {
	for i := len(j.entries) - 1; i >= toLength; i-- {
		j.entries[i].revert(statedb)
	}
	j.entries = j.entries[:toLength]
}

// length returns the current number of entries in the journal.
func (j *journal) length() int {
	return len(j.entries)
}

// reset drops all entries without reverting them; used at transaction
// boundaries once the state is final.
func (j *journal) reset() {
	j.entries = j.entries[:0]
}

type (
	// createObjectChange reverts the creation of an account that did not
	// exist before.
	createObjectChange struct {
		account common.Address
	}

	// resetObjectChange reverts the overwrite of an existing object, as
	// done by contract creation at an occupied address.
	resetObjectChange struct {
		account common.Address
		prev    *stateObject
	}

	balanceChange struct {
		account common.Address
		prev    uint256.Int
	}

	nonceChange struct {
		account common.Address
		prev    uint64
	}

	storageChange struct {
		account  common.Address
		key      common.Hash
		prevalue common.Hash
	}

	codeChange struct {
		account  common.Address
		prevcode []byte
		prevhash common.Hash
	}
)

func (ch createObjectChange) revert(s *IntraBlockState) {
	delete(s.stateObjects, ch.account)
}

func (ch resetObjectChange) revert(s *IntraBlockState) {
	s.stateObjects[ch.account] = ch.prev
}

func (ch balanceChange) revert(s *IntraBlockState) {
	if obj := s.stateObjects[ch.account]; obj != nil && obj.data != nil {
		obj.data.Balance.Set(&ch.prev)
	}
}

func (ch nonceChange) revert(s *IntraBlockState) {
	if obj := s.stateObjects[ch.account]; obj != nil && obj.data != nil {
		obj.data.Nonce = ch.prev
	}
}

func (ch storageChange) revert(s *IntraBlockState) {
	if obj := s.stateObjects[ch.account]; obj != nil {
		obj.dirtyStorage[ch.key] = ch.prevalue
	}
}

func (ch codeChange) revert(s *IntraBlockState) {
	if obj := s.stateObjects[ch.account]; obj != nil && obj.data != nil {
		obj.code = ch.prevcode
		obj.data.CodeHash = ch.prevhash
		obj.codeDirty = false
	}
}
