package substrate

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/params"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/blockchain"
	"github.com/stable-net/anvil-polkadot/pkg/state"
)

// Runtime errors.
var (
	ErrBalanceConversion   = errors.New("balance conversion failed")
	ErrNonceTooLow         = errors.New("nonce too low")
	ErrNonceTooHigh        = errors.New("nonce too high")
	ErrNonceMax            = errors.New("nonce has max value")
	ErrInsufficientFunds   = errors.New("insufficient funds for gas * price + value")
	ErrIntrinsicGas        = errors.New("intrinsic gas too low")
	ErrGasLimitReached     = errors.New("block gas limit reached")
	ErrFeeCapTooLow        = errors.New("max fee per gas less than block base fee")
	ErrInvalidChainID      = errors.New("invalid chain id")
	ErrContractExists      = errors.New("contract address collision")
	ErrMaxInitCodeSize     = errors.New("max initcode size exceeded")
	ErrUnsupportedMetadata = errors.New("unsupported metadata version")
)

// maxNative is the largest native balance (u128).
var maxNative = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Metadata versions served by the runtime.
var metadataVersions = []uint32{14, 15, 16}

// Pallets exposed in the runtime metadata.
var runtimePallets = []string{"System", "Timestamp", "Balances", "TransactionPayment", "Revive"}

// RuntimeConfig configures the runtime.
type RuntimeConfig struct {
	NativeToEthRatio uint64
	BaseFee          *big.Int
}

// Metadata is the decoded runtime metadata.
type Metadata struct {
	Version     uint32
	SpecVersion uint32
	Pallets     []string
}

// HasPallet reports whether the runtime includes the named pallet.
func (m *Metadata) HasPallet(name string) bool {
	for _, p := range m.Pallets {
		if p == name {
			return true
		}
	}
	return false
}

// CallArgs describes a dry-run call.
type CallArgs struct {
	From     *common.Address
	To       *common.Address
	Gas      *uint64
	GasPrice *big.Int
	Value    *big.Int
	Data     []byte
}

// DryRunResult is the outcome of a dry run.
type DryRunResult struct {
	GasRequired uint64
	Output      []byte
}

// BuildResult is the outcome of producing a block.
type BuildResult struct {
	Block    *blockchain.Block
	State    *state.Layer
	Included []*types.Transaction
	Results  []*ExtrinsicResult
	Invalid  map[common.Hash]error
}

// Runtime serves the runtime API at any known block.
type Runtime struct {
	client  *Client
	ratio   *uint256.Int
	baseFee *big.Int
}

// NewRuntime creates a runtime.
func NewRuntime(cfg RuntimeConfig) (*Runtime, error) {
	if cfg.NativeToEthRatio == 0 || cfg.NativeToEthRatio > math.MaxUint32 {
		return nil, fmt.Errorf("native to eth ratio %d out of range", cfg.NativeToEthRatio)
	}
	baseFee := cfg.BaseFee
	if baseFee == nil {
		baseFee = big.NewInt(params.InitialBaseFee)
	}
	return &Runtime{
		ratio:   uint256.NewInt(cfg.NativeToEthRatio),
		baseFee: new(big.Int).Set(baseFee),
	}, nil
}

func (r *Runtime) storageAt(hash common.Hash) (*Storage, error) {
	layer, err := r.client.StateAt(hash)
	if err != nil {
		return nil, err
	}
	return NewStorage(layer), nil
}

// SplitBalance converts a wei value into a native balance and a dust remainder.
func (r *Runtime) SplitBalance(value *uint256.Int) (*uint256.Int, uint32, error) {
	native, dust := new(uint256.Int).DivMod(value, r.ratio, new(uint256.Int))
	if native.Gt(maxNative) {
		return nil, 0, fmt.Errorf("%w: %s exceeds the native balance range", ErrBalanceConversion, value.Dec())
	}
	return native, uint32(dust.Uint64()), nil
}

// JoinBalance converts a native balance plus dust back into wei.
func (r *Runtime) JoinBalance(native *uint256.Int, dust uint32) *uint256.Int {
	out := new(uint256.Int)
	if native != nil {
		out.Mul(native, r.ratio)
	}
	return out.Add(out, uint256.NewInt(uint64(dust)))
}

// AccountID returns the account id of addr at the given block.
func (r *Runtime) AccountID(hash common.Hash, addr common.Address) (AccountID, error) {
	if _, err := r.storageAt(hash); err != nil {
		return AccountID{}, err
	}
	return AccountIDFromAddress(addr), nil
}

// NewBalanceWithDust converts a wei value at the given block.
func (r *Runtime) NewBalanceWithDust(hash common.Hash, value *uint256.Int) (*uint256.Int, uint32, error) {
	if _, err := r.storageAt(hash); err != nil {
		return nil, 0, err
	}
	return r.SplitBalance(value)
}

// MetadataVersions lists the supported metadata versions.
func (r *Runtime) MetadataVersions(hash common.Hash) ([]uint32, error) {
	if _, err := r.storageAt(hash); err != nil {
		return nil, err
	}
	return append([]uint32(nil), metadataVersions...), nil
}

// MetadataAtVersion returns the runtime metadata in the given version.
func (r *Runtime) MetadataAtVersion(hash common.Hash, version uint32) (*Metadata, error) {
	v, err := r.RuntimeVersionAt(hash)
	if err != nil {
		return nil, err
	}
	for _, supported := range metadataVersions {
		if supported == version {
			return &Metadata{
				Version:     version,
				SpecVersion: v.SpecVersion,
				Pallets:     append([]string(nil), runtimePallets...),
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupportedMetadata, version)
}

// RuntimeVersionAt returns the runtime version at a block.
func (r *Runtime) RuntimeVersionAt(hash common.Hash) (*RuntimeVersion, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	v, err := st.RuntimeVersion()
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.New("runtime version not set")
	}
	return v, nil
}

// Balance returns the wei balance of addr at a block.
func (r *Runtime) Balance(hash common.Hash, addr common.Address) (*uint256.Int, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	return r.ethBalance(st, addr)
}

// Nonce returns the nonce of addr at a block.
func (r *Runtime) Nonce(hash common.Hash, addr common.Address) (uint64, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return 0, err
	}
	info, err := st.SystemAccount(AccountIDFromAddress(addr))
	if err != nil || info == nil {
		return 0, err
	}
	return uint64(info.Nonce), nil
}

// Code returns the code deployed at addr at a block.
func (r *Runtime) Code(hash common.Hash, addr common.Address) ([]byte, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	info, err := st.ReviveAccount(addr)
	if err != nil || info == nil || !info.IsContract() {
		return nil, err
	}
	return st.PristineCode(info.Contract.CodeHash), nil
}

// GetStorage returns a contract storage value at a block, or nil if unset.
func (r *Runtime) GetStorage(hash common.Hash, addr common.Address, key common.Hash) ([]byte, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	info, err := st.ReviveAccount(addr)
	if err != nil || info == nil || !info.IsContract() {
		return nil, err
	}
	value, ok := st.ChildStorage(info.Contract.TrieID, key.Bytes())
	if !ok {
		return nil, nil
	}
	return value, nil
}

// BaseFee returns the base fee per gas.
func (r *Runtime) BaseFee() *big.Int {
	return new(big.Int).Set(r.baseFee)
}

// GasPrice returns the gas price at a block.
func (r *Runtime) GasPrice(hash common.Hash) (*big.Int, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	price, err := st.GasPrice()
	if err != nil {
		return nil, err
	}
	if price == nil {
		return r.BaseFee(), nil
	}
	return price.ToBig(), nil
}

// BlockGasLimit returns the block gas limit at a block.
func (r *Runtime) BlockGasLimit(hash common.Hash) (uint64, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return 0, err
	}
	return st.BlockGasLimit()
}

// ChainID returns the Ethereum chain id at a block.
func (r *Runtime) ChainID(hash common.Hash) (uint64, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return 0, err
	}
	return st.ChainID()
}

// Timestamp returns the block timestamp in milliseconds.
func (r *Runtime) Timestamp(hash common.Hash) (uint64, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return 0, err
	}
	return st.Timestamp()
}

// ExtrinsicResults returns the transaction outcomes recorded in a block.
func (r *Runtime) ExtrinsicResults(hash common.Hash) ([]*ExtrinsicResult, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}
	return st.ExtrinsicResults()
}

// DryRun validates a call against the state of a block without committing it.
// There is no contract execution, so the output is always empty and the
// gas requirement is the intrinsic gas of the call.
func (r *Runtime) DryRun(hash common.Hash, args *CallArgs) (*DryRunResult, error) {
	st, err := r.storageAt(hash)
	if err != nil {
		return nil, err
	}

	creation := args.To == nil
	if creation && len(args.Data) > params.MaxInitCodeSize {
		return nil, fmt.Errorf("%w: code size %d limit %d", ErrMaxInitCodeSize, len(args.Data), params.MaxInitCodeSize)
	}

	gas := IntrinsicGas(args.Data, creation)
	if args.Gas != nil && *args.Gas < gas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, *args.Gas, gas)
	}

	if args.From != nil {
		cost := new(big.Int)
		if args.Value != nil {
			cost.Set(args.Value)
		}
		if args.Gas != nil && args.GasPrice != nil {
			cost.Add(cost, new(big.Int).Mul(args.GasPrice, new(big.Int).SetUint64(*args.Gas)))
		}
		balance, err := r.ethBalance(st, *args.From)
		if err != nil {
			return nil, err
		}
		if balance.ToBig().Cmp(cost) < 0 {
			return nil, fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, args.From.Hex(), balance.Dec(), cost)
		}
	}

	return &DryRunResult{GasRequired: gas, Output: []byte{}}, nil
}

// IntrinsicGas computes the gas charged before execution.
func IntrinsicGas(data []byte, creation bool) uint64 {
	gas := params.TxGas
	if creation {
		gas = params.TxGasContractCreation
	}

	nonZero := uint64(0)
	for _, b := range data {
		if b != 0 {
			nonZero++
		}
	}
	zero := uint64(len(data)) - nonZero
	gas += nonZero*params.TxDataNonZeroGasEIP2028 + zero*params.TxDataZeroGas

	if creation {
		words := (uint64(len(data)) + 31) / 32
		gas += words * params.InitCodeWordGas
	}
	return gas
}

// AdjustIssuance applies newFree-oldFree to total, saturating at the native range.
func AdjustIssuance(total, oldFree, newFree *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Set(total)
	if newFree.Gt(oldFree) {
		delta := new(uint256.Int).Sub(newFree, oldFree)
		if _, overflow := out.AddOverflow(out, delta); overflow || out.Gt(maxNative) {
			out.Set(maxNative)
		}
		return out
	}
	delta := new(uint256.Int).Sub(oldFree, newFree)
	if _, underflow := out.SubOverflow(out, delta); underflow {
		out.Clear()
	}
	return out
}

func (r *Runtime) ethBalance(st *Storage, addr common.Address) (*uint256.Int, error) {
	sys, err := st.SystemAccount(AccountIDFromAddress(addr))
	if err != nil {
		return nil, err
	}
	rev, err := st.ReviveAccount(addr)
	if err != nil {
		return nil, err
	}

	native := new(uint256.Int)
	if sys != nil {
		native = sys.FreeBalance()
	}
	dust := uint32(0)
	if rev != nil {
		dust = rev.Dust
	}
	return r.JoinBalance(native, dust), nil
}

func (r *Runtime) setEthBalance(st *Storage, addr common.Address, value *uint256.Int) error {
	native, dust, err := r.SplitBalance(value)
	if err != nil {
		return err
	}

	id := AccountIDFromAddress(addr)
	sys, err := st.SystemAccount(id)
	if err != nil {
		return err
	}
	if sys == nil {
		sys = NewSystemAccountInfo()
	}
	oldFree := sys.FreeBalance()
	sys.Data.Free = native
	if err := st.SetSystemAccount(id, sys); err != nil {
		return err
	}

	total, err := st.TotalIssuance()
	if err != nil {
		return err
	}
	if err := st.SetTotalIssuance(AdjustIssuance(total, oldFree, native)); err != nil {
		return err
	}

	rev, err := st.ReviveAccount(addr)
	if err != nil {
		return err
	}
	if rev == nil {
		if dust == 0 {
			return nil
		}
		rev = &ReviveAccountInfo{Kind: AccountKindEOA}
	}
	if rev.Dust == dust {
		return nil
	}
	rev.Dust = dust
	return st.SetReviveAccount(addr, rev)
}

// BuildBlock applies txs on top of parent and returns the new block with its
// state. Transactions that cannot be applied are reported in Invalid; those
// that are merely not ready yet (future nonce, full block) are left out silently.
func (r *Runtime) BuildBlock(parent common.Hash, timestampMs uint64, txs []*types.Transaction) (*BuildResult, error) {
	parentBlock, err := r.client.chain.BlockByHash(parent)
	if err != nil {
		return nil, err
	}
	parentState, err := r.client.chain.StateAt(parent)
	if err != nil {
		return nil, err
	}

	layer := parentState.Child()
	st := NewStorage(layer)
	if err := st.SetTimestamp(timestampMs); err != nil {
		return nil, err
	}

	chainID, err := st.ChainID()
	if err != nil {
		return nil, err
	}
	gasLimit, err := st.BlockGasLimit()
	if err != nil {
		return nil, err
	}
	signer := types.LatestSignerForChainID(new(big.Int).SetUint64(chainID))

	res := &BuildResult{State: layer, Invalid: make(map[common.Hash]error)}
	var (
		extrinsics [][]byte
		gasUsed    uint64
	)
	for _, tx := range txs {
		result, err := r.applyTransaction(st, signer, chainID, tx, gasLimit-gasUsed)
		switch {
		case errors.Is(err, ErrNonceTooHigh), errors.Is(err, ErrGasLimitReached):
			continue
		case err != nil:
			res.Invalid[tx.Hash()] = err
			continue
		}

		raw, err := tx.MarshalBinary()
		if err != nil {
			res.Invalid[tx.Hash()] = err
			continue
		}
		extrinsics = append(extrinsics, raw)
		gasUsed += result.GasUsed
		res.Included = append(res.Included, tx)
		res.Results = append(res.Results, result)
	}

	if err := st.SetExtrinsicResults(res.Results); err != nil {
		return nil, err
	}

	res.Block = blockchain.NewBlock(&blockchain.Header{
		ParentHash: parent,
		Number:     parentBlock.Number() + 1,
		StateRoot:  layer.Root(),
	}, extrinsics)
	return res, nil
}

// applyTransaction executes the balance and nonce effects of a single transaction.
func (r *Runtime) applyTransaction(st *Storage, signer types.Signer, chainID uint64, tx *types.Transaction, gasLeft uint64) (*ExtrinsicResult, error) {
	if tx.Protected() && tx.ChainId().Uint64() != chainID {
		return nil, fmt.Errorf("%w: have %d want %d", ErrInvalidChainID, tx.ChainId(), chainID)
	}

	from, err := RecoverSender(signer, tx)
	if err != nil {
		return nil, err
	}

	id := AccountIDFromAddress(from)
	sys, err := st.SystemAccount(id)
	if err != nil {
		return nil, err
	}
	if sys == nil {
		sys = NewSystemAccountInfo()
	}

	switch {
	case tx.Nonce() < uint64(sys.Nonce):
		return nil, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooLow, from.Hex(), tx.Nonce(), sys.Nonce)
	case tx.Nonce() > uint64(sys.Nonce):
		return nil, fmt.Errorf("%w: address %s, tx: %d state: %d", ErrNonceTooHigh, from.Hex(), tx.Nonce(), sys.Nonce)
	case sys.Nonce == math.MaxUint32:
		return nil, fmt.Errorf("%w: address %s", ErrNonceMax, from.Hex())
	}

	creation := tx.To() == nil
	if creation && len(tx.Data()) > params.MaxInitCodeSize {
		return nil, ErrMaxInitCodeSize
	}
	gas := IntrinsicGas(tx.Data(), creation)
	if tx.Gas() < gas {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrIntrinsicGas, tx.Gas(), gas)
	}
	if gas > gasLeft {
		return nil, ErrGasLimitReached
	}

	if tx.GasFeeCap().Cmp(r.baseFee) < 0 && tx.Type() != types.LegacyTxType {
		return nil, fmt.Errorf("%w: have %s want %s", ErrFeeCapTooLow, tx.GasFeeCap(), r.baseFee)
	}
	price := EffectiveGasPrice(tx, r.baseFee)

	balance, err := r.ethBalance(st, from)
	if err != nil {
		return nil, err
	}
	maxCost := new(big.Int).Mul(tx.GasFeeCap(), new(big.Int).SetUint64(tx.Gas()))
	maxCost.Add(maxCost, tx.Value())
	if balance.ToBig().Cmp(maxCost) < 0 {
		return nil, fmt.Errorf("%w: address %s have %s want %s", ErrInsufficientFunds, from.Hex(), balance.Dec(), maxCost)
	}

	fee := new(big.Int).Mul(price, new(big.Int).SetUint64(gas))
	spent, _ := uint256.FromBig(new(big.Int).Add(fee, tx.Value()))
	if err := r.setEthBalance(st, from, new(uint256.Int).Sub(balance, spent)); err != nil {
		return nil, err
	}

	// setEthBalance may have created or rewritten the record
	sys, err = st.SystemAccount(id)
	if err != nil {
		return nil, err
	}
	sys.Nonce++
	if err := st.SetSystemAccount(id, sys); err != nil {
		return nil, err
	}

	result := &ExtrinsicResult{
		TxHash:            tx.Hash(),
		From:              from,
		Success:           true,
		GasUsed:           gas,
		EffectiveGasPrice: price,
	}

	to := tx.To()
	if creation {
		addr := crypto.CreateAddress(from, tx.Nonce())
		if err := r.deploy(st, from, addr, tx.Data()); err != nil {
			if errors.Is(err, ErrContractExists) {
				result.Success = false
				return result, nil
			}
			return nil, err
		}
		result.Created = true
		result.ContractAddress = addr
		to = &addr
	}

	value, _ := uint256.FromBig(tx.Value())
	if value.IsZero() {
		return result, nil
	}
	toBalance, err := r.ethBalance(st, *to)
	if err != nil {
		return nil, err
	}
	if _, overflow := toBalance.AddOverflow(toBalance, value); overflow {
		return nil, fmt.Errorf("%w: recipient balance overflow", ErrBalanceConversion)
	}
	if err := r.setEthBalance(st, *to, toBalance); err != nil {
		return nil, err
	}
	return result, nil
}

// deploy installs code at addr on behalf of deployer.
func (r *Runtime) deploy(st *Storage, deployer, addr common.Address, code []byte) error {
	rev, err := st.ReviveAccount(addr)
	if err != nil {
		return err
	}
	if rev != nil && rev.IsContract() {
		return ErrContractExists
	}

	id := AccountIDFromAddress(addr)
	sys, err := st.SystemAccount(id)
	if err != nil {
		return err
	}
	if sys == nil {
		sys = NewSystemAccountInfo()
		if err := st.SetSystemAccount(id, sys); err != nil {
			return err
		}
	}

	codeHash := crypto.Keccak256Hash(code)
	dust := uint32(0)
	if rev != nil {
		dust = rev.Dust
	}
	info := &ReviveAccountInfo{
		Kind:     AccountKindContract,
		Contract: NewContractInfo(id, sys.Nonce, codeHash),
		Dust:     dust,
	}
	if err := st.SetReviveAccount(addr, info); err != nil {
		return err
	}

	codeInfo, err := st.CodeInfo(codeHash)
	if err != nil {
		return err
	}
	if codeInfo != nil {
		codeInfo.RefCount++
	} else {
		codeInfo = NewCodeInfo(AccountIDFromAddress(deployer), len(code))
	}
	if err := st.SetCodeInfo(codeHash, codeInfo); err != nil {
		return err
	}
	st.SetPristineCode(codeHash, code)
	return nil
}

// EffectiveGasPrice returns the price per gas a transaction pays at baseFee.
func EffectiveGasPrice(tx *types.Transaction, baseFee *big.Int) *big.Int {
	if tx.Type() == types.LegacyTxType || tx.Type() == types.AccessListTxType {
		return new(big.Int).Set(tx.GasPrice())
	}
	price := new(big.Int).Add(baseFee, tx.GasTipCap())
	if price.Cmp(tx.GasFeeCap()) > 0 {
		price.Set(tx.GasFeeCap())
	}
	return price
}
