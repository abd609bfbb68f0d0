// Package miner provides block production and the virtual clock of the node.
package miner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// MiningMode defines how blocks are mined.
type MiningMode int

const (
	// ModeAutomine mines a block immediately when a transaction is received.
	ModeAutomine MiningMode = iota

	// ModeInterval mines a block at regular intervals.
	ModeInterval

	// ModeManual only mines when explicitly requested.
	ModeManual
)

// String returns the string representation of the mining mode.
func (m MiningMode) String() string {
	switch m {
	case ModeAutomine:
		return "auto"
	case ModeInterval:
		return "interval"
	case ModeManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseMiningMode parses a string into a MiningMode.
func ParseMiningMode(s string) MiningMode {
	switch s {
	case "auto":
		return ModeAutomine
	case "interval":
		return ModeInterval
	case "manual":
		return ModeManual
	default:
		return ModeAutomine
	}
}

// BlockImporter produces blocks on top of the best block.
type BlockImporter interface {
	ImportBlock(ctx context.Context, timestampMs uint64, txs []*types.Transaction) (*substrate.BuildResult, error)
}

// TxSource supplies transactions for block production.
type TxSource interface {
	Ready(baseFee *big.Int) ([]*types.Transaction, error)
	RemoveAll(hashes []common.Hash)
}

// EvmMineOptions are the optional parameters of evm_mine.
type EvmMineOptions struct {
	Timestamp *uint64
	Blocks    *uint64
}
