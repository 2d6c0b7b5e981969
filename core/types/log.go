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
	"github.com/ledgerwatch/silkexec/common"
)

// Log represents a contract log event. These events are generated by the LOG
// opcode and stored/indexed by the node.
type Log struct {
	// Consensus fields:
	// address of the contract that generated the event
	Address common.Address `json:"address"`
	// list of topics provided by the contract
	Topics []common.Hash `json:"topics"`
	// supplied by the contract, usually ABI-encoded
	Data []byte `json:"data"`

	// Derived fields. These fields are filled in by the node
	// but not secured by consensus.
	// block in which the transaction was included
	BlockNumber uint64 `json:"blockNumber"`
	// index of the transaction in the block
	TxIndex uint `json:"transactionIndex"`
	// index of the log among the logs of its transaction
	Index uint `json:"logIndex"`
}

// Copy returns a deep copy of the log.
func (l *Log) Copy() *Log {
	topics := make([]common.Hash, len(l.Topics))
	copy(topics, l.Topics)
	return &Log{
		Address:     l.Address,
		Topics:      topics,
		Data:        common.CopyBytes(l.Data),
		BlockNumber: l.BlockNumber,
		TxIndex:     l.TxIndex,
		Index:       l.Index,
	}
}

// Logs is a list of logs of one transaction or one block.
type Logs []*Log
