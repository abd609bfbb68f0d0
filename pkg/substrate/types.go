// Package substrate implements the in-process Substrate client and the
// revive runtime API the node serves Ethereum requests from.
package substrate

import (
	"bytes"
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/blake2b"
)

// AccountID is a 32 byte Substrate account id.
type AccountID [32]byte

// accountIDSuffix pads an Ethereum address into an account id.
var accountIDSuffix = bytes.Repeat([]byte{0xee}, 12)

// AccountIDFromAddress maps an Ethereum address onto its fallback account id.
func AccountIDFromAddress(addr common.Address) AccountID {
	var id AccountID
	copy(id[:20], addr.Bytes())
	copy(id[20:], accountIDSuffix)
	return id
}

// Address returns the Ethereum address embedded in the account id.
func (id AccountID) Address() common.Address {
	return common.BytesToAddress(id[:20])
}

// AccountData holds native balances.
type AccountData struct {
	Free     *uint256.Int
	Reserved *uint256.Int
	Frozen   *uint256.Int
}

// SystemAccountInfo is the frame_system account record.
type SystemAccountInfo struct {
	Nonce       uint32
	Consumers   uint32
	Providers   uint32
	Sufficients uint32
	Data        AccountData
}

// NewSystemAccountInfo returns a fresh record that counts as existing.
func NewSystemAccountInfo() *SystemAccountInfo {
	return &SystemAccountInfo{
		Providers: 1,
		Data: AccountData{
			Free:     new(uint256.Int),
			Reserved: new(uint256.Int),
			Frozen:   new(uint256.Int),
		},
	}
}

// FreeBalance returns the free native balance, treating nil as zero.
func (a *SystemAccountInfo) FreeBalance() *uint256.Int {
	if a.Data.Free == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(a.Data.Free)
}

// AccountKind distinguishes plain accounts from contracts.
type AccountKind uint8

// Account kinds.
const (
	AccountKindEOA AccountKind = iota
	AccountKindContract
)

// ContractInfo describes a deployed contract.
type ContractInfo struct {
	TrieID             []byte
	CodeHash           common.Hash
	StorageBytes       uint32
	StorageItems       uint32
	StorageByteDeposit *uint256.Int
	StorageItemDeposit *uint256.Int
	StorageBaseDeposit *uint256.Int
	ImmutableDataLen   uint32
}

// NewContractInfo creates contract bookkeeping with zeroed storage accounting.
func NewContractInfo(id AccountID, nonce uint32, codeHash common.Hash) *ContractInfo {
	return &ContractInfo{
		TrieID:             TrieID(id, nonce),
		CodeHash:           codeHash,
		StorageByteDeposit: new(uint256.Int),
		StorageItemDeposit: new(uint256.Int),
		StorageBaseDeposit: new(uint256.Int),
	}
}

// ReviveAccountInfo is the pallet_revive per-address record.
type ReviveAccountInfo struct {
	Kind     AccountKind
	Contract *ContractInfo `rlp:"nil"`
	Dust     uint32
}

// IsContract reports whether the record is a contract with a trie.
func (a *ReviveAccountInfo) IsContract() bool {
	return a.Kind == AccountKindContract && a.Contract != nil
}

// Code types.
const (
	CodeTypePVM uint8 = iota
	CodeTypeEVM
)

// CodeInfo describes uploaded code.
type CodeInfo struct {
	Owner            AccountID
	Deposit          *uint256.Int
	RefCount         uint64
	CodeLen          uint32
	CodeType         uint8
	BehaviourVersion uint32
}

// NewCodeInfo creates code info owned by owner with a single reference.
func NewCodeInfo(owner AccountID, codeLen int) *CodeInfo {
	return &CodeInfo{
		Owner:    owner,
		Deposit:  new(uint256.Int),
		RefCount: 1,
		CodeLen:  uint32(codeLen),
		CodeType: CodeTypeEVM,
	}
}

// ExtrinsicResult is the outcome of one applied Ethereum transaction.
type ExtrinsicResult struct {
	TxHash            common.Hash
	From              common.Address
	Success           bool
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Created           bool
	ContractAddress   common.Address
}

// Info summarizes the chain head.
type Info struct {
	BestNumber      uint64
	BestHash        common.Hash
	FinalizedNumber uint64
	FinalizedHash   common.Hash
	GenesisHash     common.Hash
}

// RuntimeVersion identifies the runtime.
type RuntimeVersion struct {
	SpecName           string
	ImplName           string
	SpecVersion        uint32
	TransactionVersion uint32
}

// TrieID derives the child trie id of a contract from its account id and nonce.
func TrieID(id AccountID, nonce uint32) []byte {
	buf := make([]byte, 0, len(id)+8)
	buf = append(buf, id[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(nonce))
	sum := blake2b.Sum256(buf)
	return sum[:]
}
