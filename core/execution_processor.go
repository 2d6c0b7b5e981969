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
	"math"
	"math/big"

	metrics2 "github.com/VictoriaMetrics/metrics"
	"github.com/holiman/uint256"
	"github.com/ledgerwatch/log/v3"

	"github.com/ledgerwatch/silkexec/common"
	"github.com/ledgerwatch/silkexec/core/state"
	"github.com/ledgerwatch/silkexec/core/types"
	"github.com/ledgerwatch/silkexec/params"
)

var (
	txnsExecutedCounter   = metrics2.GetOrCreateCounter(`exec_transactions_total`)
	blocksExecutedCounter = metrics2.GetOrCreateCounter(`exec_blocks_total`)
	gasUsedCounter        = metrics2.GetOrCreateCounter(`exec_gas_used_total`)
)

// See Yellow Paper, Appendix K "Anomalies on the Main Network".
var ripemdAddress = common.HexToAddress("0x0000000000000000000000000000000000000003")

// CallResult is what the interpreter hands back for one message call or
// contract creation.
type CallResult struct {
	Success bool
	GasLeft uint64
}

// VirtualMachine is the opaque bytecode interpreter. It mutates the
// IntraBlockState it was constructed around and must use Snapshot /
// RevertToSnapshot for sub-call failure, never unwind through the processor.
type VirtualMachine interface {
	Execute(txn *types.Transaction, gas uint64) CallResult
}

// IntrinsicGas computes the gas a transaction pays before any bytecode runs.
// The checked arithmetic bounds the 128-bit computation of the reference.
func IntrinsicGas(data []byte, contractCreation, isHomestead, isIstanbul bool) (uint64, error) {
	var gas uint64
	if contractCreation && isHomestead {
		gas = params.TxGasContractCreation
	} else {
		gas = params.TxGas
	}
	if len(data) > 0 {
		var nz uint64
		for _, byt := range data {
			if byt != 0 {
				nz++
			}
		}
		nonZeroGas := params.TxDataNonZeroGasFrontier
		if isIstanbul {
			nonZeroGas = params.TxDataNonZeroGasEIP2028
		}
		if (math.MaxUint64-gas)/nonZeroGas < nz {
			return 0, ErrGasUintOverflow
		}
		gas += nz * nonZeroGas

		z := uint64(len(data)) - nz
		if (math.MaxUint64-gas)/params.TxDataZeroGas < z {
			return 0, ErrGasUintOverflow
		}
		gas += z * params.TxDataZeroGas
	}
	return gas, nil
}

// ExecutionProcessor drives one block to completion: it imposes the protocol
// rules that live outside the interpreter, assembles receipts and pushes the
// final state into the buffer.
type ExecutionProcessor struct {
	block  *types.Block
	state  *state.IntraBlockState
	config *params.ChainConfig
	vm     VirtualMachine

	cumulativeGasUsed uint64

	logger log.Logger
}

// NewExecutionProcessor wires a processor for one block. The state, its
// buffer and the attached database transaction are owned by the caller for
// the duration of the block.
func NewExecutionProcessor(block *types.Block, ibs *state.IntraBlockState, config *params.ChainConfig, vm VirtualMachine) *ExecutionProcessor {
	return &ExecutionProcessor{
		block:  block,
		state:  ibs,
		config: config,
		vm:     vm,
		logger: log.New("component", "processor", "block", block.Header.Number),
	}
}

// ExecuteTransaction validates and runs a single transaction against the
// intra-block state, returning its receipt. Validation failures abort block
// execution; interpreter failures only mark the receipt unsuccessful.
func (p *ExecutionProcessor) ExecuteTransaction(txn *types.Transaction) (*types.Receipt, error) {
	if txn.From == nil {
		return nil, NewValidationError("missing sender")
	}
	from := *txn.From

	nonce := p.state.GetNonce(from)
	if nonce != txn.Nonce {
		p.logger.Debug("rejected transaction", "reason", "invalid nonce", "expected", nonce, "got", txn.Nonce)
		return nil, NewValidationError("invalid nonce")
	}

	blockNumber := p.block.Header.Number
	homestead := p.config.IsHomestead(blockNumber)
	spuriousDragon := p.config.IsSpuriousDragon(blockNumber)
	istanbul := p.config.IsIstanbul(blockNumber)

	g0, err := IntrinsicGas(txn.Data, txn.IsContractCreation(), homestead, istanbul)
	if err != nil {
		return nil, err
	}
	if txn.GasLimit < g0 {
		return nil, NewValidationError("intrinsic gas")
	}

	// gas_limit x gas_price + value does not fit 256 bits for adversarial
	// inputs; the preflight comparison runs in big.Int.
	gasCost := new(big.Int).Mul(new(big.Int).SetUint64(txn.GasLimit), txn.GasPrice.ToBig())
	v0 := new(big.Int).Add(gasCost, txn.Value.ToBig())

	if p.state.GetBalance(from).ToBig().Cmp(v0) < 0 {
		return nil, NewValidationError("insufficient funds")
	}

	if p.availableGas() < txn.GasLimit {
		return nil, NewValidationError("block gas limit reached")
	}

	gasCost256, _ := uint256.FromBig(gasCost)
	p.state.SubBalance(from, gasCost256)
	if txn.To != nil {
		// The interpreter itself increments the nonce for contract creation.
		p.state.SetNonce(from, nonce+1)
	}

	p.state.ClearJournalAndSubstate()

	vmRes := p.vm.Execute(txn, txn.GasLimit-g0)

	gasUsed := txn.GasLimit - p.refundGas(txn, vmRes.GasLeft)

	// award the miner
	award := new(uint256.Int).Mul(new(uint256.Int).SetUint64(gasUsed), &txn.GasPrice)
	p.state.AddBalance(p.block.Header.Beneficiary, award)

	p.state.DestructSuicides()
	if spuriousDragon {
		p.state.DestructTouchedDead()
	}

	p.state.FinalizeTransaction()

	p.cumulativeGasUsed += gasUsed

	txnsExecutedCounter.Inc()
	gasUsedCounter.Add(int(gasUsed))

	return &types.Receipt{
		Success:           vmRes.Success,
		CumulativeGasUsed: p.cumulativeGasUsed,
		Bloom:             types.CreateBloom(p.state.Logs()),
		Logs:              p.state.Logs(),
	}, nil
}

// ExecuteBlock runs all transactions of the block, applies the block-level
// protocol rules and flushes the state into the buffer.
func (p *ExecutionProcessor) ExecuteBlock() (types.Receipts, error) {
	blockNumber := p.block.Header.Number

	if p.config.IsDAOFork(blockNumber) {
		p.logger.Info("applying DAO hard-fork balance transfer")
		ApplyDAOHardFork(p.state)
	}

	p.cumulativeGasUsed = 0

	receipts := make(types.Receipts, 0, len(p.block.Transactions))
	for i := range p.block.Transactions {
		receipt, err := p.ExecuteTransaction(&p.block.Transactions[i])
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, receipt)
	}

	p.applyRewards()

	if p.config.IsRipemdDeletion(blockNumber) {
		p.logger.Info("applying RIPEMD anomaly destruct")
		p.state.Destruct(ripemdAddress)
	}

	if err := p.state.WriteToDb(blockNumber); err != nil {
		return nil, err
	}

	blocksExecutedCounter.Inc()

	return receipts, nil
}

func (p *ExecutionProcessor) availableGas() uint64 {
	return p.block.Header.GasLimit - p.cumulativeGasUsed
}

// refundGas credits the sender with the unused gas plus the capped refund
// counter and returns the resulting gas left.
func (p *ExecutionProcessor) refundGas(txn *types.Transaction, gasLeft uint64) uint64 {
	refund := (txn.GasLimit - gasLeft) / params.RefundQuotient
	if totalRefund := p.state.TotalRefund(); refund > totalRefund {
		refund = totalRefund
	}
	gasLeft += refund

	remaining := new(uint256.Int).Mul(new(uint256.Int).SetUint64(gasLeft), &txn.GasPrice)
	p.state.AddBalance(*txn.From, remaining)
	return gasLeft
}

// applyRewards credits the beneficiary and the ommer beneficiaries with the
// fork-selected block reward.
func (p *ExecutionProcessor) applyRewards() {
	blockNumber := p.block.Header.Number
	var blockReward *uint256.Int
	switch {
	case p.config.IsConstantinople(blockNumber):
		blockReward = params.ConstantinopleBlockReward
	case p.config.IsByzantium(blockNumber):
		blockReward = params.ByzantiumBlockReward
	default:
		blockReward = params.FrontierBlockReward
	}

	minerReward := new(uint256.Int).Set(blockReward)
	for _, ommer := range p.block.Ommers {
		ommerReward := new(uint256.Int).SetUint64(8 + ommer.Number - blockNumber)
		ommerReward.Mul(ommerReward, blockReward)
		ommerReward.Rsh(ommerReward, 3)
		p.state.AddBalance(ommer.Beneficiary, ommerReward)

		minerReward.Add(minerReward, new(uint256.Int).Div(blockReward, uint256.NewInt(32)))
	}

	p.state.AddBalance(p.block.Header.Beneficiary, minerReward)
}
