package api

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
	"github.com/stable-net/anvil-polkadot/pkg/txpool"
	"github.com/stable-net/anvil-polkadot/pkg/wallet"
)

// fakeSignatureLen is the length of the impersonation placeholder signature.
const fakeSignatureLen = 65

// FakeSignature returns the placeholder signature of an impersonated sender:
// zero bytes except the address in bytes 12 to 32.
func FakeSignature(from common.Address) []byte {
	sig := make([]byte, fakeSignatureLen)
	copy(sig[12:32], from.Bytes())
	return sig
}

// fillTransaction completes the fields the caller left out, reading every
// default at the latest block except the nonce, which counts the sender's
// pooled transactions. Nothing is returned on partial failure.
func (s *Server) fillTransaction(req *TransactionRequest) (*TransactionRequest, error) {
	filled := *req
	hash := s.client.BestHash()
	rt := s.eth.RuntimeAPI()

	if filled.Gas == nil {
		gas, err := rt.EstimateGas(hash, callArgs(&filled))
		if err != nil {
			return nil, rpcError(err)
		}
		filled.Gas = (*hexutil.Uint64)(&gas)
	}

	dynamic := filled.MaxFeePerGas != nil || filled.MaxPriorityFeePerGas != nil
	if filled.GasPrice == nil && !dynamic {
		price, err := rt.GasPrice(hash)
		if err != nil {
			return nil, rpcError(err)
		}
		filled.GasPrice = (*hexutil.Big)(price)
	}
	if dynamic {
		price, err := rt.GasPrice(hash)
		if err != nil {
			return nil, rpcError(err)
		}
		if filled.MaxFeePerGas == nil {
			filled.MaxFeePerGas = (*hexutil.Big)(price)
		}
		if filled.MaxPriorityFeePerGas == nil {
			tip := priorityFee(price)
			if tip.Cmp(filled.MaxFeePerGas.ToInt()) > 0 {
				tip = filled.MaxFeePerGas.ToInt()
			}
			filled.MaxPriorityFeePerGas = (*hexutil.Big)(tip)
		}
	}

	if filled.Nonce == nil {
		nonce, err := s.pool.PendingNonce(*filled.From)
		if err != nil {
			return nil, rpcError(err)
		}
		filled.Nonce = (*hexutil.Uint64)(&nonce)
	}

	if filled.ChainID == nil {
		id, err := rt.ChainID(hash)
		if err != nil {
			return nil, rpcError(err)
		}
		filled.ChainID = (*hexutil.Big)(new(big.Int).SetUint64(id))
	}
	return &filled, nil
}

// toTransaction converts a filled request into an unsigned transaction.
func toTransaction(req *TransactionRequest) (*types.Transaction, error) {
	if req.GasPrice != nil && (req.MaxFeePerGas != nil || req.MaxPriorityFeePerGas != nil) {
		return nil, newError(KindInvalidTransaction, "both gasPrice and maxFeePerGas or maxPriorityFeePerGas specified")
	}
	if req.Input != nil && req.Data != nil && string(*req.Input) != string(*req.Data) {
		return nil, newError(KindInvalidTransaction, "both data and input specified and not equal")
	}

	value := new(big.Int)
	if req.Value != nil {
		value = req.Value.ToInt()
	}
	var accessList types.AccessList
	if req.AccessList != nil {
		accessList = *req.AccessList
	}
	var (
		nonce   = uint64(*req.Nonce)
		gas     = uint64(*req.Gas)
		data    = req.CallData()
		chainID = req.ChainID.ToInt()
	)

	switch {
	case req.MaxFeePerGas != nil:
		if req.MaxPriorityFeePerGas.ToInt().Cmp(req.MaxFeePerGas.ToInt()) > 0 {
			return nil, newError(KindInvalidTransaction, "maxPriorityFeePerGas greater than maxFeePerGas")
		}
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasTipCap:  req.MaxPriorityFeePerGas.ToInt(),
			GasFeeCap:  req.MaxFeePerGas.ToInt(),
			Gas:        gas,
			To:         req.To,
			Value:      value,
			Data:       data,
			AccessList: accessList,
		}), nil
	case req.AccessList != nil:
		return types.NewTx(&types.AccessListTx{
			ChainID:    chainID,
			Nonce:      nonce,
			GasPrice:   req.GasPrice.ToInt(),
			Gas:        gas,
			To:         req.To,
			Value:      value,
			Data:       data,
			AccessList: accessList,
		}), nil
	default:
		return types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice.ToInt(),
			Gas:      gas,
			To:       req.To,
			Value:    value,
			Data:     data,
		}), nil
	}
}

// sendTransaction fills, signs and submits a transaction. Impersonated
// senders and unsigned submissions carry the placeholder signature.
func (s *Server) sendTransaction(ctx context.Context, req *TransactionRequest, unsigned bool) (interface{}, error) {
	if req.From == nil {
		return nil, newError(KindInvalidTransaction, "from address must be specified")
	}
	from := *req.From

	filled, err := s.fillTransaction(req)
	if err != nil {
		return nil, err
	}
	tx, err := toTransaction(filled)
	if err != nil {
		return nil, err
	}

	chainID := filled.ChainID.ToInt()
	var signed *types.Transaction
	if unsigned || s.impersonation.IsImpersonated(from) {
		signed, err = tx.WithSignature(types.LatestSignerForChainID(chainID), FakeSignature(from))
		if err != nil {
			return nil, wrapError(KindInvalidTransaction, err)
		}
	} else {
		signed, err = s.wallet.SignTx(from, tx, chainID)
		if errors.Is(err, wallet.ErrAccountNotFound) {
			return nil, wrapError(KindAccountNotFound, err)
		}
		if err != nil {
			return nil, wrapError(KindInvalidTransaction, err)
		}
	}

	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, wrapError(KindInvalidTransaction, err)
	}
	return s.sendRawTransaction(ctx, raw)
}

// sendRawTransaction submits an encoded transaction and returns the
// keccak256 hash of the raw bytes.
func (s *Server) sendRawTransaction(ctx context.Context, raw []byte) (interface{}, error) {
	hash := crypto.Keccak256Hash(raw)

	submitted, err := s.eth.SendRawTransaction(raw)
	if err != nil {
		return nil, submitError(err)
	}
	if submitted != hash {
		return nil, newError(KindBackend, "submitted transaction hash %s does not match %s", submitted.Hex(), hash.Hex())
	}

	if err := s.engine.OnTransaction(ctx); err != nil {
		log.Error("Failed to mine transaction", "hash", hash, "err", err)
	}
	return hash, nil
}

// submitError classifies transaction submission errors.
func submitError(err error) error {
	switch {
	case errors.Is(err, ethrpc.ErrInvalidTransaction):
		return wrapError(KindInvalidTransaction, err)
	case errors.Is(err, txpool.ErrNonceTooLow), errors.Is(err, txpool.ErrNonceTooHigh),
		errors.Is(err, txpool.ErrInsufficientFunds), errors.Is(err, txpool.ErrTxAlreadyKnown),
		errors.Is(err, txpool.ErrInvalidSender), errors.Is(err, txpool.ErrReplaceUnderpriced):
		return wrapError(KindTxPool, err)
	case errors.Is(err, substrate.ErrInvalidChainID):
		return wrapError(KindInvalidTransaction, err)
	default:
		return wrapError(KindBackend, err)
	}
}
