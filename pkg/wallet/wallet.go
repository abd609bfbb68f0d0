// Package wallet provides the development signing accounts of the node.
package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
)

// Common errors.
var (
	ErrInvalidMnemonic = errors.New("invalid mnemonic")
	ErrInvalidPath     = errors.New("invalid derivation path")
	ErrAccountNotFound = errors.New("account not found")
)

// Account represents a development account with its private key.
type Account struct {
	Address    common.Address
	PrivateKey *ecdsa.PrivateKey
}

// GenerateAccounts derives count accounts from a mnemonic along a BIP-44 path prefix
// such as m/44'/60'/0'/0/; the account index is appended as the last component.
func GenerateAccounts(mnemonic, pathPrefix string, count int) ([]*Account, error) {
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, ErrInvalidMnemonic
	}

	prefix, err := parsePath(pathPrefix)
	if err != nil {
		return nil, err
	}

	seed := bip39.NewSeed(mnemonic, "")
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create master key: %w", err)
	}

	parent := master
	for _, idx := range prefix {
		parent, err = parent.Derive(idx)
		if err != nil {
			return nil, fmt.Errorf("failed to derive path %s: %w", pathPrefix, err)
		}
	}

	accounts := make([]*Account, count)
	for i := 0; i < count; i++ {
		child, err := parent.Derive(uint32(i))
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}
		priv, err := child.ECPrivKey()
		if err != nil {
			return nil, fmt.Errorf("failed to derive key %d: %w", i, err)
		}
		key := priv.ToECDSA()
		accounts[i] = &Account{
			Address:    crypto.PubkeyToAddress(key.PublicKey),
			PrivateKey: key,
		}
	}

	return accounts, nil
}

// parsePath parses a derivation path prefix into child indexes.
func parsePath(path string) ([]uint32, error) {
	path = strings.TrimSuffix(strings.TrimSpace(path), "/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, ErrInvalidPath
	}

	indexes := make([]uint32, 0, len(parts)-1)
	for _, part := range parts[1:] {
		hardened := strings.HasSuffix(part, "'")
		n, err := strconv.ParseUint(strings.TrimSuffix(part, "'"), 10, 31)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, part)
		}
		idx := uint32(n)
		if hardened {
			idx += hdkeychain.HardenedKeyStart
		}
		indexes = append(indexes, idx)
	}
	return indexes, nil
}

// Wallet is an ordered, fixed set of development accounts.
type Wallet struct {
	accounts []*Account
	index    map[common.Address]*Account
}

// New creates a wallet from the given accounts, preserving their order.
func New(accounts []*Account) *Wallet {
	w := &Wallet{
		accounts: accounts,
		index:    make(map[common.Address]*Account, len(accounts)),
	}
	for _, acc := range accounts {
		w.index[acc.Address] = acc
	}
	return w
}

// Addresses returns the account addresses in wallet order.
func (w *Wallet) Addresses() []common.Address {
	addrs := make([]common.Address, len(w.accounts))
	for i, acc := range w.accounts {
		addrs[i] = acc.Address
	}
	return addrs
}

// Accounts returns the accounts in wallet order.
func (w *Wallet) Accounts() []*Account {
	return w.accounts
}

// Find returns the account for an address.
func (w *Wallet) Find(addr common.Address) (*Account, bool) {
	acc, ok := w.index[addr]
	return acc, ok
}

// SignTx signs tx with the key of from.
func (w *Wallet) SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	acc, ok := w.Find(from)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, from.Hex())
	}
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), acc.PrivateKey)
}
