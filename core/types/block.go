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

package types

import (
	"github.com/holiman/uint256"

	"github.com/ledgerwatch/silkexec/common"
)

// Header represents the block header fields the execution core consumes.
// Wire encoding (RLP) and proof-of-work fields live outside this layer.
type Header struct {
	Number       uint64
	Beneficiary  common.Address
	GasLimit     uint64
	GasUsed      uint64
	ReceiptsRoot common.Hash
}

// Block groups a header with its transactions and ommer headers.
type Block struct {
	Header       Header
	Transactions []Transaction
	Ommers       []Header
}

// Transaction carries the fields of a signed transaction relevant for
// execution. The sender is recovered upstream; From is nil when recovery
// failed or was never performed.
type Transaction struct {
	Nonce    uint64
	GasPrice uint256.Int
	GasLimit uint64
	To       *common.Address // nil means contract creation
	Value    uint256.Int
	Data     []byte

	From *common.Address
}

// IsContractCreation reports whether the transaction has no recipient.
func (tx *Transaction) IsContractCreation() bool { return tx.To == nil }
