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

package params

import (
	"fmt"
	"math/big"
)

// MainnetChainConfig is the chain parameters to run a node on the main network.
var MainnetChainConfig = &ChainConfig{
	ChainID:               big.NewInt(1),
	HomesteadBlock:        big.NewInt(1_150_000),
	DAOForkBlock:          big.NewInt(1_920_000),
	TangerineWhistleBlock: big.NewInt(2_463_000),
	SpuriousDragonBlock:   big.NewInt(2_675_000),
	RipemdDeletionBlock:   big.NewInt(2_675_119),
	ByzantiumBlock:        big.NewInt(4_370_000),
	ConstantinopleBlock:   big.NewInt(7_280_000),
	PetersburgBlock:       big.NewInt(7_280_000),
	IstanbulBlock:         big.NewInt(9_069_000),
}

// AllProtocolChanges contains every protocol change introduced and accepted by
// the Ethereum core developers, activated at block 0. Convenient for tests.
var AllProtocolChanges = &ChainConfig{
	ChainID:               big.NewInt(1337),
	HomesteadBlock:        big.NewInt(0),
	TangerineWhistleBlock: big.NewInt(0),
	SpuriousDragonBlock:   big.NewInt(0),
	ByzantiumBlock:        big.NewInt(0),
	ConstantinopleBlock:   big.NewInt(0),
	PetersburgBlock:       big.NewInt(0),
	IstanbulBlock:         big.NewInt(0),
}

// ChainConfig is the core config which determines the blockchain settings.
//
// ChainConfig is a plain value passed to the execution processor; any
// network, identified by its genesis block, can have its own set of
// configuration options.
type ChainConfig struct {
	ChainID *big.Int `json:"chainId"`

	HomesteadBlock *big.Int `json:"homesteadBlock,omitempty"`

	// The DAO hard-fork block; balances of the drain list move to the refund
	// contract before any transaction of this block executes.
	DAOForkBlock *big.Int `json:"daoForkBlock,omitempty"`

	TangerineWhistleBlock *big.Int `json:"eip150Block,omitempty"` // EIP150 HF block
	SpuriousDragonBlock   *big.Int `json:"eip158Block,omitempty"` // EIP158 HF block

	// See Yellow Paper, Appendix K "Anomalies on the Main Network".
	RipemdDeletionBlock *big.Int `json:"ripemdDeletionBlock,omitempty"`

	ByzantiumBlock      *big.Int `json:"byzantiumBlock,omitempty"`
	ConstantinopleBlock *big.Int `json:"constantinopleBlock,omitempty"`
	PetersburgBlock     *big.Int `json:"petersburgBlock,omitempty"`
	IstanbulBlock       *big.Int `json:"istanbulBlock,omitempty"`
}

// String implements the fmt.Stringer interface.
func (c *ChainConfig) String() string {
	return fmt.Sprintf("{ChainID: %v Homestead: %v DAO: %v TangerineWhistle: %v SpuriousDragon: %v Byzantium: %v Constantinople: %v Petersburg: %v Istanbul: %v}",
		c.ChainID,
		c.HomesteadBlock,
		c.DAOForkBlock,
		c.TangerineWhistleBlock,
		c.SpuriousDragonBlock,
		c.ByzantiumBlock,
		c.ConstantinopleBlock,
		c.PetersburgBlock,
		c.IstanbulBlock,
	)
}

// IsHomestead returns whether num is either equal to the homestead block or greater.
func (c *ChainConfig) IsHomestead(num uint64) bool {
	return isForked(c.HomesteadBlock, num)
}

// IsDAOFork returns whether num is exactly the DAO fork block.
func (c *ChainConfig) IsDAOFork(num uint64) bool {
	return c.DAOForkBlock != nil && c.DAOForkBlock.Uint64() == num
}

// IsTangerineWhistle returns whether num is either equal to the EIP150 fork block or greater.
func (c *ChainConfig) IsTangerineWhistle(num uint64) bool {
	return isForked(c.TangerineWhistleBlock, num)
}

// IsSpuriousDragon returns whether num is either equal to the EIP158 fork block or greater.
func (c *ChainConfig) IsSpuriousDragon(num uint64) bool {
	return isForked(c.SpuriousDragonBlock, num)
}

// IsRipemdDeletion returns whether num is exactly the mainnet anomaly block
// where the RIPEMD precompile account is deleted.
func (c *ChainConfig) IsRipemdDeletion(num uint64) bool {
	return c.RipemdDeletionBlock != nil && c.RipemdDeletionBlock.Uint64() == num
}

// IsByzantium returns whether num is either equal to the Byzantium fork block or greater.
func (c *ChainConfig) IsByzantium(num uint64) bool {
	return isForked(c.ByzantiumBlock, num)
}

// IsConstantinople returns whether num is either equal to the Constantinople fork block or greater.
func (c *ChainConfig) IsConstantinople(num uint64) bool {
	return isForked(c.ConstantinopleBlock, num)
}

// IsPetersburg returns whether num is either equal to the Petersburg fork block or greater.
func (c *ChainConfig) IsPetersburg(num uint64) bool {
	return isForked(c.PetersburgBlock, num)
}

// IsIstanbul returns whether num is either equal to the Istanbul fork block or greater.
func (c *ChainConfig) IsIstanbul(num uint64) bool {
	return isForked(c.IstanbulBlock, num)
}

// isForked returns whether a fork scheduled at block s is active at the given head block.
func isForked(s *big.Int, head uint64) bool {
	if s == nil {
		return false
	}
	return s.Uint64() <= head
}
