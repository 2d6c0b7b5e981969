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

package core

import (
	"github.com/holiman/uint256"

	"github.com/ledgerwatch/silkexec/core/state"
	"github.com/ledgerwatch/silkexec/params"
)

// ApplyDAOHardFork modifies the state database according to the DAO hard-fork
// rules, transferring all balances of a set of DAO accounts to a single refund
// contract. Runs before any transaction of the fork block.
func ApplyDAOHardFork(statedb *state.IntraBlockState) {
	// Move every DAO account and extra-balance account funds into the refund contract
	for _, addr := range params.DAODrainList {
		statedb.AddBalance(params.DAORefundContract, statedb.GetBalance(addr))
		statedb.SetBalance(addr, new(uint256.Int))
	}
}
