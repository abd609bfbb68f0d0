// Package backend provides typed read and inject access to chain storage,
// bypassing transaction execution.
package backend

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Backend is the storage overlay over the Substrate client. Reads work at
// any known block; injections are only accepted at the best block.
type Backend struct {
	client *substrate.Client
}

// New creates a backend over client.
func New(client *substrate.Client) *Backend {
	return &Backend{client: client}
}

func (b *Backend) read(hash common.Hash) (*substrate.Storage, error) {
	layer, err := b.client.StateAt(hash)
	if err != nil {
		return nil, err
	}
	return substrate.NewStorage(layer), nil
}

func (b *Backend) inject(hash common.Hash, fn func(*substrate.Storage) error) error {
	return b.client.WithOverlay(hash, fn)
}

// ReadChainID returns the chain id at a block.
func (b *Backend) ReadChainID(hash common.Hash) (uint64, error) {
	st, err := b.read(hash)
	if err != nil {
		return 0, err
	}
	return st.ChainID()
}

// InjectChainID overwrites the chain id.
func (b *Backend) InjectChainID(hash common.Hash, id uint64) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetChainID(id)
	})
}

// ReadTimestamp returns the block timestamp in milliseconds.
func (b *Backend) ReadTimestamp(hash common.Hash) (uint64, error) {
	st, err := b.read(hash)
	if err != nil {
		return 0, err
	}
	return st.Timestamp()
}

// InjectTimestamp overwrites the block timestamp in milliseconds.
func (b *Backend) InjectTimestamp(hash common.Hash, ms uint64) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetTimestamp(ms)
	})
}

// ReadTotalIssuance returns the total native issuance.
func (b *Backend) ReadTotalIssuance(hash common.Hash) (*uint256.Int, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	return st.TotalIssuance()
}

// InjectTotalIssuance overwrites the total native issuance.
func (b *Backend) InjectTotalIssuance(hash common.Hash, total *uint256.Int) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetTotalIssuance(total)
	})
}

// ReadSystemAccountInfo returns the system record of id, or nil.
func (b *Backend) ReadSystemAccountInfo(hash common.Hash, id substrate.AccountID) (*substrate.SystemAccountInfo, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	return st.SystemAccount(id)
}

// InjectSystemAccountInfo overwrites the system record of id.
func (b *Backend) InjectSystemAccountInfo(hash common.Hash, id substrate.AccountID, info *substrate.SystemAccountInfo) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetSystemAccount(id, info)
	})
}

// ReadReviveAccountInfo returns the revive record of addr, or nil.
func (b *Backend) ReadReviveAccountInfo(hash common.Hash, addr common.Address) (*substrate.ReviveAccountInfo, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	return st.ReviveAccount(addr)
}

// InjectReviveAccountInfo overwrites the revive record of addr.
func (b *Backend) InjectReviveAccountInfo(hash common.Hash, addr common.Address, info *substrate.ReviveAccountInfo) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetReviveAccount(addr, info)
	})
}

// ReadCodeInfo returns the info of a code hash, or nil.
func (b *Backend) ReadCodeInfo(hash, codeHash common.Hash) (*substrate.CodeInfo, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	return st.CodeInfo(codeHash)
}

// InjectCodeInfo overwrites the info of a code hash.
func (b *Backend) InjectCodeInfo(hash, codeHash common.Hash, info *substrate.CodeInfo) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		return st.SetCodeInfo(codeHash, info)
	})
}

// RemoveCodeInfo deletes the info of a code hash.
func (b *Backend) RemoveCodeInfo(hash, codeHash common.Hash) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		st.DeleteCodeInfo(codeHash)
		return nil
	})
}

// ReadPristineCode returns the code blob of codeHash, or nil.
func (b *Backend) ReadPristineCode(hash, codeHash common.Hash) ([]byte, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	return st.PristineCode(codeHash), nil
}

// InjectPristineCode stores a code blob under codeHash.
func (b *Backend) InjectPristineCode(hash, codeHash common.Hash, code []byte) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		st.SetPristineCode(codeHash, code)
		return nil
	})
}

// RemovePristineCode deletes the code blob of codeHash.
func (b *Backend) RemovePristineCode(hash, codeHash common.Hash) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		st.DeletePristineCode(codeHash)
		return nil
	})
}

// ReadChildStorage returns a raw value from a child trie, or nil.
func (b *Backend) ReadChildStorage(hash common.Hash, trieID, key []byte) ([]byte, error) {
	st, err := b.read(hash)
	if err != nil {
		return nil, err
	}
	value, ok := st.ChildStorage(trieID, key)
	if !ok {
		return nil, nil
	}
	return value, nil
}

// InjectChildStorage writes a raw value into a child trie.
func (b *Backend) InjectChildStorage(hash common.Hash, trieID, key, value []byte) error {
	return b.inject(hash, func(st *substrate.Storage) error {
		st.SetChildStorage(trieID, key, value)
		return nil
	})
}
