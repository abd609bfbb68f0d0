// Package genesis provides genesis state creation for the node.
package genesis

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/state"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Runtime identity written at genesis.
const (
	SpecName           = "anvil-polkadot"
	ImplName           = "anvil-polkadot-node"
	SpecVersion        = 1
	TransactionVersion = 1
)

// Genesis describes the initial chain state.
type Genesis struct {
	ChainID   uint64
	GasLimit  uint64
	GasPrice  *big.Int
	Timestamp uint64 // seconds
	Alloc     map[common.Address]*big.Int
}

// CreateGenesis creates a genesis description funding every dev account.
func CreateGenesis(cfg *config.Config, accounts []common.Address) *Genesis {
	timestamp := cfg.GenesisTimestamp
	if timestamp == 0 {
		timestamp = uint64(time.Now().Unix())
	}

	alloc := make(map[common.Address]*big.Int, len(accounts))
	for _, addr := range accounts {
		alloc[addr] = new(big.Int).Set(cfg.GenesisBalance)
	}

	return &Genesis{
		ChainID:   cfg.ChainID,
		GasLimit:  cfg.GasLimit,
		GasPrice:  cfg.GasPrice,
		Timestamp: timestamp,
		Alloc:     alloc,
	}
}

// ToState writes the genesis storage into a fresh state layer.
func (g *Genesis) ToState(rt *substrate.Runtime) (*state.Layer, error) {
	layer := state.NewLayer()
	st := substrate.NewStorage(layer)

	if err := st.SetRuntimeVersion(&substrate.RuntimeVersion{
		SpecName:           SpecName,
		ImplName:           ImplName,
		SpecVersion:        SpecVersion,
		TransactionVersion: TransactionVersion,
	}); err != nil {
		return nil, err
	}
	if err := st.SetChainID(g.ChainID); err != nil {
		return nil, err
	}
	if err := st.SetBlockGasLimit(g.GasLimit); err != nil {
		return nil, err
	}
	if err := st.SetTimestamp(g.Timestamp * 1000); err != nil {
		return nil, err
	}
	if g.GasPrice != nil {
		price, overflow := uint256.FromBig(g.GasPrice)
		if overflow {
			return nil, fmt.Errorf("gas price %s out of range", g.GasPrice)
		}
		if err := st.SetGasPrice(price); err != nil {
			return nil, err
		}
	}

	total := new(uint256.Int)
	for addr, balance := range g.Alloc {
		wei, overflow := uint256.FromBig(balance)
		if overflow {
			return nil, fmt.Errorf("genesis balance of %s out of range", addr.Hex())
		}
		native, dust, err := rt.SplitBalance(wei)
		if err != nil {
			return nil, fmt.Errorf("genesis balance of %s: %w", addr.Hex(), err)
		}

		info := substrate.NewSystemAccountInfo()
		info.Data.Free = native
		if err := st.SetSystemAccount(substrate.AccountIDFromAddress(addr), info); err != nil {
			return nil, err
		}
		if err := st.SetReviveAccount(addr, &substrate.ReviveAccountInfo{Kind: substrate.AccountKindEOA, Dust: dust}); err != nil {
			return nil, err
		}
		total = substrate.AdjustIssuance(total, new(uint256.Int), native)
	}

	if err := st.SetTotalIssuance(total); err != nil {
		return nil, err
	}
	return layer, nil
}
