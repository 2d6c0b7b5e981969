// Copyright 2014 The go-ethereum Authors
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
	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/core/types/accounts"
)

// Storage caches contract storage slots by location.
type Storage map[common.Hash]common.Hash

// Copy makes a fresh map with the same contents.
func (s Storage) Copy() Storage {
	cpy := make(Storage, len(s))
	for key, value := range s {
		cpy[key] = value
	}
	return cpy
}

// stateObject is the staged view of one account during block execution.
//
// initial is the account as read from the database when the object was first
// loaded (nil when the address was absent); data is the live value and nil
// once the account has been destructed. The storage maps track three layers:
// dirtyStorage holds writes of the current transaction, committedStorage the
// values at the current transaction's start (doubling as the read cache), and
// originStorage the values at the start of the block, which become the
// change-set pre-images on flush.
type stateObject struct {
	address common.Address
	initial *accounts.Account
	data    *accounts.Account

	code []byte

	dirtyStorage     Storage
	committedStorage Storage
	originStorage    Storage

	// codeDirty is set when code was deployed to this object in the current
	// block, so the flush also feeds the code tables.
	codeDirty bool
}

func newStateObject(address common.Address, initial *accounts.Account) *stateObject {
	obj := &stateObject{
		address:          address,
		dirtyStorage:     make(Storage),
		committedStorage: make(Storage),
		originStorage:    make(Storage),
	}
	if initial != nil {
		obj.initial = initial.SelfCopy()
		obj.data = initial.SelfCopy()
	}
	return obj
}

// alive reports whether the object currently represents an existing account.
func (so *stateObject) alive() bool {
	return so != nil && so.data != nil
}

// deepCopy is used by the journal to preserve an object replaced by contract
// creation at an occupied address.
func (so *stateObject) deepCopy() *stateObject {
	cpy := &stateObject{
		address:          so.address,
		dirtyStorage:     so.dirtyStorage.Copy(),
		committedStorage: so.committedStorage.Copy(),
		originStorage:    so.originStorage.Copy(),
		code:             so.code,
		codeDirty:        so.codeDirty,
	}
	if so.initial != nil {
		cpy.initial = so.initial.SelfCopy()
	}
	if so.data != nil {
		cpy.data = so.data.SelfCopy()
	}
	return cpy
}
