// Copyright 2020 The Silkworm Authors
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
	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/core/state"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/params"
)

// ReceiptsRootFunc computes the trie root over a receipt list. Trie
// construction lives outside this layer; callers that want the Byzantium
// receipts-root check pass an implementation, others pass nil.
type ReceiptsRootFunc func(types.Receipts) common.Hash

// ExecuteBlock replays a validated block on top of the state the buffer
// reads from, flushes the new state into the buffer under the block number
// and returns the receipts. The caller commits or discards the underlying
// database transaction.
func ExecuteBlock(block *types.Block, buffer *state.Buffer, config *params.ChainConfig, vm func(*state.IntraBlockState) VirtualMachine, receiptsRoot ReceiptsRootFunc) (types.Receipts, error) {
	header := &block.Header

	ibs := state.New(buffer)
	processor := NewExecutionProcessor(block, ibs, config, vm(ibs))

	receipts, err := processor.ExecuteBlock()
	if err != nil {
		return nil, err
	}

	var gasUsed uint64
	if len(receipts) > 0 {
		gasUsed = receipts[len(receipts)-1].CumulativeGasUsed
	}
	if gasUsed != header.GasUsed {
		return nil, NewValidationError("gas mismatch for block %d", header.Number)
	}

	if config.IsByzantium(header.Number) && receiptsRoot != nil {
		if receiptsRoot(receipts) != header.ReceiptsRoot {
			return nil, NewValidationError("receipt root mismatch for block %d", header.Number)
		}
	}

	return receipts, nil
}
