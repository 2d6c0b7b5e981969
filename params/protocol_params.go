// Copyright 2015 The go-ethereum Authors
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

package params

import "github.com/holiman/uint256"

const (
	GWei  uint64 = 1e9
	Ether uint64 = 1e18

	TxGas                 uint64 = 21000 // Per transaction not creating a contract.
	TxGasContractCreation uint64 = 53000 // Per transaction that creates a contract.
	TxDataZeroGas         uint64 = 4     // Per byte of data attached to a transaction that equals zero.

	TxDataNonZeroGasFrontier uint64 = 68 // Per byte of data attached to a transaction that is not equal to zero.
	TxDataNonZeroGasEIP2028  uint64 = 16 // Per non-zero byte of data attached to a transaction after EIP 2028 (Istanbul).

	// RefundQuotient is the maximum refund quotient; max refund is gas_used/2.
	RefundQuotient uint64 = 2

	// SelfdestructRefundGas is refunded following a selfdestruct operation.
	SelfdestructRefundGas uint64 = 24000
)

// Block rewards in wei for successfully mining a block, by fork.
var (
	FrontierBlockReward       = uint256.NewInt(5e18)
	ByzantiumBlockReward      = uint256.NewInt(3e18)
	ConstantinopleBlockReward = uint256.NewInt(2e18)
)
