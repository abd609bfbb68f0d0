package ethrpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// RuntimeAPI proxies runtime API calls at a given block and converts the
// results into their Ethereum representation.
type RuntimeAPI struct {
	rt *substrate.Runtime
}

// Balance returns the wei balance of addr.
func (a *RuntimeAPI) Balance(hash common.Hash, addr common.Address) (*big.Int, error) {
	balance, err := a.rt.Balance(hash, addr)
	if err != nil {
		return nil, err
	}
	return balance.ToBig(), nil
}

// Nonce returns the nonce of addr.
func (a *RuntimeAPI) Nonce(hash common.Hash, addr common.Address) (uint64, error) {
	return a.rt.Nonce(hash, addr)
}

// Code returns the contract code at addr.
func (a *RuntimeAPI) Code(hash common.Hash, addr common.Address) ([]byte, error) {
	code, err := a.rt.Code(hash, addr)
	if err != nil {
		return nil, err
	}
	if code == nil {
		return []byte{}, nil
	}
	return code, nil
}

// Storage returns a storage slot of a contract as a 32 byte word.
func (a *RuntimeAPI) Storage(hash common.Hash, addr common.Address, key common.Hash) (common.Hash, error) {
	value, err := a.rt.GetStorage(hash, addr, key)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(value), nil
}

// Call dry-runs a call and returns its output.
func (a *RuntimeAPI) Call(hash common.Hash, args *substrate.CallArgs) ([]byte, error) {
	res, err := a.rt.DryRun(hash, args)
	if err != nil {
		return nil, err
	}
	return res.Output, nil
}

// EstimateGas dry-runs a call and returns the gas it requires.
func (a *RuntimeAPI) EstimateGas(hash common.Hash, args *substrate.CallArgs) (uint64, error) {
	res, err := a.rt.DryRun(hash, args)
	if err != nil {
		return 0, err
	}
	return res.GasRequired, nil
}

// GasPrice returns the gas price.
func (a *RuntimeAPI) GasPrice(hash common.Hash) (*big.Int, error) {
	return a.rt.GasPrice(hash)
}

// ChainID returns the chain id.
func (a *RuntimeAPI) ChainID(hash common.Hash) (uint64, error) {
	return a.rt.ChainID(hash)
}

// Timestamp returns the block timestamp in seconds.
func (a *RuntimeAPI) Timestamp(hash common.Hash) (uint64, error) {
	ms, err := a.rt.Timestamp(hash)
	if err != nil {
		return 0, err
	}
	return ms / 1000, nil
}
