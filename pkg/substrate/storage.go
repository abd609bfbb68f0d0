package substrate

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"

	"github.com/stable-net/anvil-polkadot/pkg/state"
)

// ErrCorruptValue is returned when a stored value cannot be decoded.
var ErrCorruptValue = errors.New("corrupt storage value")

// Storage item prefixes.
var (
	keySystemAccount  = storagePrefix("System", "Account")
	keySystemEvents   = storagePrefix("System", "Events")
	keyTotalIssuance  = storagePrefix("Balances", "TotalIssuance")
	keyTimestampNow   = storagePrefix("Timestamp", "Now")
	keyChainID        = storagePrefix("Revive", "ChainId")
	keyAccountInfoOf  = storagePrefix("Revive", "AccountInfoOf")
	keyCodeInfoOf     = storagePrefix("Revive", "CodeInfoOf")
	keyPristineCode   = storagePrefix("Revive", "PristineCode")
	keyRuntimeVersion = storagePrefix("System", "LastRuntimeUpgrade")
	keyBlockGasLimit  = storagePrefix("Revive", "BlockGasLimit")
	keyGasPrice       = storagePrefix("Revive", "GasPrice")
)

func hash128(data []byte) []byte {
	h, _ := blake2b.New(16, nil)
	h.Write(data)
	return h.Sum(nil)
}

// storagePrefix builds the key of a storage item: hash128(pallet) ++ hash128(item).
func storagePrefix(pallet, item string) []byte {
	return append(hash128([]byte(pallet)), hash128([]byte(item))...)
}

// mapKey appends a hash128_concat hashed map key to prefix.
func mapKey(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+16+len(key))
	out = append(out, prefix...)
	out = append(out, hash128(key)...)
	return append(out, key...)
}

// SystemAccountKey returns the storage key of an account's system record.
func SystemAccountKey(id AccountID) []byte { return mapKey(keySystemAccount, id[:]) }

// AccountInfoKey returns the storage key of an address's revive record.
func AccountInfoKey(addr common.Address) []byte { return mapKey(keyAccountInfoOf, addr.Bytes()) }

// CodeInfoKey returns the storage key of a code hash's info record.
func CodeInfoKey(hash common.Hash) []byte { return mapKey(keyCodeInfoOf, hash.Bytes()) }

// PristineCodeKey returns the storage key of a code blob.
func PristineCodeKey(hash common.Hash) []byte { return mapKey(keyPristineCode, hash.Bytes()) }

// Storage is a typed view over raw chain state.
type Storage struct {
	store state.Store
}

// NewStorage wraps a state store.
func NewStorage(store state.Store) *Storage {
	return &Storage{store: store}
}

func (s *Storage) read(key []byte, out interface{}) (bool, error) {
	raw, ok := s.store.Get(key)
	if !ok {
		return false, nil
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("%w: %v", ErrCorruptValue, err)
	}
	return true, nil
}

func (s *Storage) write(key []byte, value interface{}) error {
	enc, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("failed to encode storage value: %w", err)
	}
	s.store.Put(key, enc)
	return nil
}

// SystemAccount returns the system record of id, or nil if none exists.
func (s *Storage) SystemAccount(id AccountID) (*SystemAccountInfo, error) {
	var info SystemAccountInfo
	ok, err := s.read(SystemAccountKey(id), &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// SetSystemAccount writes the system record of id.
func (s *Storage) SetSystemAccount(id AccountID, info *SystemAccountInfo) error {
	return s.write(SystemAccountKey(id), info)
}

// ReviveAccount returns the revive record of addr, or nil if none exists.
func (s *Storage) ReviveAccount(addr common.Address) (*ReviveAccountInfo, error) {
	var info ReviveAccountInfo
	ok, err := s.read(AccountInfoKey(addr), &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// SetReviveAccount writes the revive record of addr.
func (s *Storage) SetReviveAccount(addr common.Address, info *ReviveAccountInfo) error {
	return s.write(AccountInfoKey(addr), info)
}

// CodeInfo returns the info of a code hash, or nil if none exists.
func (s *Storage) CodeInfo(hash common.Hash) (*CodeInfo, error) {
	var info CodeInfo
	ok, err := s.read(CodeInfoKey(hash), &info)
	if err != nil || !ok {
		return nil, err
	}
	return &info, nil
}

// SetCodeInfo writes the info of a code hash.
func (s *Storage) SetCodeInfo(hash common.Hash, info *CodeInfo) error {
	return s.write(CodeInfoKey(hash), info)
}

// DeleteCodeInfo removes the info of a code hash.
func (s *Storage) DeleteCodeInfo(hash common.Hash) {
	s.store.Delete(CodeInfoKey(hash))
}

// PristineCode returns the code blob of hash, or nil if none exists.
func (s *Storage) PristineCode(hash common.Hash) []byte {
	code, ok := s.store.Get(PristineCodeKey(hash))
	if !ok {
		return nil
	}
	return code
}

// SetPristineCode stores a code blob under hash.
func (s *Storage) SetPristineCode(hash common.Hash, code []byte) {
	s.store.Put(PristineCodeKey(hash), code)
}

// DeletePristineCode removes the code blob of hash.
func (s *Storage) DeletePristineCode(hash common.Hash) {
	s.store.Delete(PristineCodeKey(hash))
}

// TotalIssuance returns the total native issuance.
func (s *Storage) TotalIssuance() (*uint256.Int, error) {
	total := new(uint256.Int)
	if _, err := s.read(keyTotalIssuance, total); err != nil {
		return nil, err
	}
	return total, nil
}

// SetTotalIssuance writes the total native issuance.
func (s *Storage) SetTotalIssuance(total *uint256.Int) error {
	return s.write(keyTotalIssuance, total)
}

// ChainID returns the Ethereum chain id.
func (s *Storage) ChainID() (uint64, error) {
	var id uint64
	_, err := s.read(keyChainID, &id)
	return id, err
}

// SetChainID writes the Ethereum chain id.
func (s *Storage) SetChainID(id uint64) error {
	return s.write(keyChainID, id)
}

// Timestamp returns the block timestamp in milliseconds.
func (s *Storage) Timestamp() (uint64, error) {
	var ts uint64
	_, err := s.read(keyTimestampNow, &ts)
	return ts, err
}

// SetTimestamp writes the block timestamp in milliseconds.
func (s *Storage) SetTimestamp(ms uint64) error {
	return s.write(keyTimestampNow, ms)
}

// BlockGasLimit returns the block gas limit.
func (s *Storage) BlockGasLimit() (uint64, error) {
	var limit uint64
	_, err := s.read(keyBlockGasLimit, &limit)
	return limit, err
}

// SetBlockGasLimit writes the block gas limit.
func (s *Storage) SetBlockGasLimit(limit uint64) error {
	return s.write(keyBlockGasLimit, limit)
}

// GasPrice returns the stored gas price, or nil if unset.
func (s *Storage) GasPrice() (*uint256.Int, error) {
	price := new(uint256.Int)
	ok, err := s.read(keyGasPrice, price)
	if err != nil || !ok {
		return nil, err
	}
	return price, nil
}

// SetGasPrice writes the gas price.
func (s *Storage) SetGasPrice(price *uint256.Int) error {
	return s.write(keyGasPrice, price)
}

// RuntimeVersion returns the stored runtime version.
func (s *Storage) RuntimeVersion() (*RuntimeVersion, error) {
	var v RuntimeVersion
	ok, err := s.read(keyRuntimeVersion, &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// SetRuntimeVersion writes the runtime version.
func (s *Storage) SetRuntimeVersion(v *RuntimeVersion) error {
	return s.write(keyRuntimeVersion, v)
}

// ExtrinsicResults returns the transaction outcomes of the block.
func (s *Storage) ExtrinsicResults() ([]*ExtrinsicResult, error) {
	var results []*ExtrinsicResult
	if _, err := s.read(keySystemEvents, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// SetExtrinsicResults writes the transaction outcomes of the block.
func (s *Storage) SetExtrinsicResults(results []*ExtrinsicResult) error {
	if results == nil {
		results = []*ExtrinsicResult{}
	}
	return s.write(keySystemEvents, results)
}

// ChildStorage returns a raw value from a contract's child trie.
func (s *Storage) ChildStorage(trieID, key []byte) ([]byte, bool) {
	return s.store.Get(state.ChildKey(trieID, key))
}

// SetChildStorage writes a raw value into a contract's child trie.
func (s *Storage) SetChildStorage(trieID, key, value []byte) {
	s.store.Put(state.ChildKey(trieID, key), value)
}
