package api

import (
	"errors"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// priorityFeePercent is the share of the gas price suggested as priority fee.
const priorityFeePercent = 20

var latestBlock = rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber)

// blockHash resolves an optional block reference, defaulting to latest.
func (s *Server) blockHash(block *rpc.BlockNumberOrHash) (common.Hash, error) {
	tag := latestBlock
	if block != nil {
		tag = *block
	}
	hash, err := s.eth.BlockHashForTag(tag)
	if err != nil {
		return common.Hash{}, rpcError(err)
	}
	return hash, nil
}

// rpcError classifies errors returned by the Eth RPC client.
func rpcError(err error) error {
	switch {
	case errors.Is(err, ethrpc.ErrBlockNotFound):
		return wrapError(KindBlockNotFound, err)
	case errors.Is(err, ethrpc.ErrInvalidTransaction):
		return wrapError(KindInvalidTransaction, err)
	case errors.Is(err, ethrpc.ErrUnknownTag), errors.Is(err, ethrpc.ErrInvalidBlockRange), errors.Is(err, ethrpc.ErrInvalidPercentile):
		return wrapError(KindInvalidParams, err)
	default:
		return wrapError(KindEthRPC, err)
	}
}

func (s *Server) chainID() (interface{}, error) {
	id, err := s.eth.ChainID()
	if err != nil {
		return nil, rpcError(err)
	}
	return hexutil.Uint64(id), nil
}

func (s *Server) netVersion() (interface{}, error) {
	id, err := s.eth.ChainID()
	if err != nil {
		return nil, rpcError(err)
	}
	return strconv.FormatUint(id, 10), nil
}

func (s *Server) blockNumber() hexutil.Uint64 {
	return hexutil.Uint64(s.eth.BlockNumber())
}

func (s *Server) getBalance(addr common.Address, block *rpc.BlockNumberOrHash) (interface{}, error) {
	hash, err := s.blockHash(block)
	if err != nil {
		return nil, err
	}
	balance, err := s.eth.RuntimeAPI().Balance(hash, addr)
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(balance), nil
}

func (s *Server) getStorageAt(addr common.Address, slot *big.Int, block *rpc.BlockNumberOrHash) (interface{}, error) {
	if slot.Sign() < 0 || slot.BitLen() > 256 {
		return nil, newError(KindInvalidParams, "storage slot %s out of range", slot)
	}
	hash, err := s.blockHash(block)
	if err != nil {
		return nil, err
	}
	value, err := s.eth.RuntimeAPI().Storage(hash, addr, common.BigToHash(slot))
	if err != nil {
		return nil, rpcError(err)
	}
	return value, nil
}

func (s *Server) getCode(addr common.Address, block *rpc.BlockNumberOrHash) (interface{}, error) {
	hash, err := s.blockHash(block)
	if err != nil {
		return nil, err
	}
	code, err := s.eth.RuntimeAPI().Code(hash, addr)
	if err != nil {
		return nil, rpcError(err)
	}
	return hexutil.Bytes(code), nil
}

func (s *Server) getTransactionCount(addr common.Address, block *rpc.BlockNumberOrHash) (interface{}, error) {
	tag := latestBlock
	if block != nil {
		tag = *block
	}
	nonce, err := s.eth.TransactionCount(addr, tag)
	if err != nil {
		return nil, rpcError(err)
	}
	return hexutil.Uint64(nonce), nil
}

func (s *Server) getBlockByHash(hash common.Hash, fullTx bool) (interface{}, error) {
	block, err := s.eth.BlockByHash(hash)
	if err != nil {
		return nil, rpcError(err)
	}
	if block == nil {
		return nil, nil
	}
	return block.RPC(fullTx), nil
}

func (s *Server) getBlockByNumber(number rpc.BlockNumber, fullTx bool) (interface{}, error) {
	block, err := s.eth.BlockByNumber(number)
	if err != nil {
		return nil, rpcError(err)
	}
	if block == nil {
		return nil, nil
	}
	return block.RPC(fullTx), nil
}

func (s *Server) getBlockTransactionCountByHash(hash common.Hash) (interface{}, error) {
	block, err := s.eth.BlockByHash(hash)
	if err != nil {
		return nil, rpcError(err)
	}
	if block == nil {
		return nil, nil
	}
	return hexutil.Uint(len(block.Transactions)), nil
}

func (s *Server) getBlockTransactionCountByNumber(number rpc.BlockNumber) (interface{}, error) {
	block, err := s.eth.BlockByNumber(number)
	if err != nil {
		return nil, rpcError(err)
	}
	if block == nil {
		return nil, nil
	}
	return hexutil.Uint(len(block.Transactions)), nil
}

func (s *Server) getTransactionByHash(hash common.Hash) (interface{}, error) {
	tx, err := s.eth.TransactionByHash(hash)
	if err != nil {
		return nil, rpcError(err)
	}
	if tx == nil {
		return nil, nil
	}
	return tx, nil
}

func (s *Server) getTransactionByBlockHashAndIndex(hash common.Hash, index uint64) (interface{}, error) {
	tx, err := s.eth.TransactionByBlockAndIndex(hash, index)
	if err != nil {
		return nil, rpcError(err)
	}
	if tx == nil {
		return nil, nil
	}
	return tx, nil
}

func (s *Server) getTransactionByBlockNumberAndIndex(number rpc.BlockNumber, index uint64) (interface{}, error) {
	hash, err := s.eth.BlockHashForTag(rpc.BlockNumberOrHashWithNumber(number))
	if errors.Is(err, ethrpc.ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, rpcError(err)
	}
	return s.getTransactionByBlockHashAndIndex(hash, index)
}

func (s *Server) getTransactionReceipt(hash common.Hash) (interface{}, error) {
	receipt, err := s.eth.ReceiptByHash(hash)
	if err != nil {
		return nil, rpcError(err)
	}
	if receipt == nil {
		return nil, nil
	}
	return receipt, nil
}

// callArgs converts a transaction request into dry-run arguments.
func callArgs(req *TransactionRequest) *substrate.CallArgs {
	args := &substrate.CallArgs{
		From: req.From,
		To:   req.To,
		Data: req.CallData(),
	}
	if req.Gas != nil {
		gas := uint64(*req.Gas)
		args.Gas = &gas
	}
	switch {
	case req.GasPrice != nil:
		args.GasPrice = req.GasPrice.ToInt()
	case req.MaxFeePerGas != nil:
		args.GasPrice = req.MaxFeePerGas.ToInt()
	}
	if req.Value != nil {
		args.Value = req.Value.ToInt()
	}
	return args
}

func (s *Server) call(req *TransactionRequest, block *rpc.BlockNumberOrHash) (interface{}, error) {
	hash, err := s.blockHash(block)
	if err != nil {
		return nil, err
	}
	out, err := s.eth.RuntimeAPI().Call(hash, callArgs(req))
	if err != nil {
		return nil, rpcError(err)
	}
	return hexutil.Bytes(out), nil
}

func (s *Server) estimateGas(req *TransactionRequest, block *rpc.BlockNumberOrHash) (interface{}, error) {
	hash, err := s.blockHash(block)
	if err != nil {
		return nil, err
	}
	gas, err := s.eth.RuntimeAPI().EstimateGas(hash, callArgs(req))
	if err != nil {
		return nil, rpcError(err)
	}
	return hexutil.Uint64(gas), nil
}

func (s *Server) getLogs(filter *FilterQuery) (interface{}, error) {
	logs, err := s.eth.Logs(&ethrpc.LogFilter{
		BlockHash: filter.BlockHash,
		FromBlock: filter.FromBlock,
		ToBlock:   filter.ToBlock,
		Addresses: filter.Addresses,
		Topics:    filter.Topics,
	})
	if err != nil {
		return nil, rpcError(err)
	}
	return logs, nil
}

func (s *Server) feeHistory(count uint64, newest rpc.BlockNumber, percentiles []float64) (interface{}, error) {
	history, err := s.eth.FeeHistory(count, newest, percentiles)
	if err != nil {
		return nil, rpcError(err)
	}
	return history, nil
}

func (s *Server) gasPrice() (interface{}, error) {
	price, err := s.eth.GasPrice()
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(price), nil
}

// priorityFee returns 20% of the gas price, rounded up.
func priorityFee(gasPrice *big.Int) *big.Int {
	fee := new(big.Int).Mul(gasPrice, big.NewInt(priorityFeePercent))
	fee.Add(fee, big.NewInt(99))
	return fee.Div(fee, big.NewInt(100))
}

func (s *Server) maxPriorityFeePerGas() (interface{}, error) {
	price, err := s.eth.GasPrice()
	if err != nil {
		return nil, rpcError(err)
	}
	return (*hexutil.Big)(priorityFee(price)), nil
}

// accounts returns the dev accounts followed by impersonated ones.
func (s *Server) accounts() []common.Address {
	addrs := s.wallet.Addresses()
	seen := make(map[common.Address]bool, len(addrs))
	for _, addr := range addrs {
		seen[addr] = true
	}
	for _, addr := range s.impersonation.Accounts() {
		if !seen[addr] {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}

func sha3(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

func (s *Server) dropTransaction(hash common.Hash) interface{} {
	if s.pool.Drop(hash) {
		return hash
	}
	return nil
}

func (s *Server) txPoolStatus() (interface{}, error) {
	status, err := s.pool.Status()
	if err != nil {
		return nil, wrapError(KindTxPool, err)
	}
	return map[string]hexutil.Uint{
		"pending": hexutil.Uint(status.Pending),
		"queued":  hexutil.Uint(status.Queued),
	}, nil
}
