package ethrpc

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/trie"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Block is the Ethereum view of a Substrate block.
type Block struct {
	Number           uint64
	Hash             common.Hash
	ParentHash       common.Hash
	StateRoot        common.Hash
	TransactionsRoot common.Hash
	ReceiptsRoot     common.Hash
	Timestamp        uint64 // seconds
	GasLimit         uint64
	GasUsed          uint64
	BaseFee          *big.Int
	Bloom            types.Bloom
	Size             uint64
	Transactions     []*Transaction
	Receipts         []*Receipt
}

// Transaction is a transaction together with its inclusion data. The block
// fields are nil for pending transactions.
type Transaction struct {
	Tx          *types.Transaction
	From        common.Address
	BlockHash   *common.Hash
	BlockNumber *uint64
	Index       *uint64
	GasPrice    *big.Int
}

// Receipt is a mined transaction receipt.
type Receipt struct {
	*types.Receipt
	From common.Address
	To   *common.Address
}

// buildBlock converts a Substrate block into its Ethereum view.
func buildBlock(client *substrate.Client, hash common.Hash) (*Block, error) {
	sb, err := client.Block(hash)
	if err != nil {
		return nil, err
	}
	rt := client.Runtime()
	timestampMs, err := rt.Timestamp(hash)
	if err != nil {
		return nil, err
	}
	gasLimit, err := rt.BlockGasLimit(hash)
	if err != nil {
		return nil, err
	}
	results, err := rt.ExtrinsicResults(hash)
	if err != nil {
		return nil, err
	}
	if len(results) != len(sb.Extrinsics) {
		return nil, fmt.Errorf("block %s has %d extrinsics but %d results", hash.Hex(), len(sb.Extrinsics), len(results))
	}

	block := &Block{
		Number:     sb.Number(),
		Hash:       hash,
		ParentHash: sb.ParentHash(),
		StateRoot:  sb.Header.StateRoot,
		Timestamp:  timestampMs / 1000,
		GasLimit:   gasLimit,
		BaseFee:    rt.BaseFee(),
	}

	var (
		txs        = make(types.Transactions, 0, len(sb.Extrinsics))
		receipts   = make(types.Receipts, 0, len(sb.Extrinsics))
		cumulative uint64
	)
	for i, raw := range sb.Extrinsics {
		tx := new(types.Transaction)
		if err := tx.UnmarshalBinary(raw); err != nil {
			return nil, fmt.Errorf("extrinsic %d of block %s: %w", i, hash.Hex(), err)
		}
		res := results[i]
		if res.TxHash != tx.Hash() {
			return nil, fmt.Errorf("extrinsic %d of block %s does not match its result", i, hash.Hex())
		}
		cumulative += res.GasUsed
		block.Size += uint64(len(raw))

		number, index := block.Number, uint64(i)
		txs = append(txs, tx)
		block.Transactions = append(block.Transactions, &Transaction{
			Tx:          tx,
			From:        res.From,
			BlockHash:   &block.Hash,
			BlockNumber: &number,
			Index:       &index,
			GasPrice:    res.EffectiveGasPrice,
		})

		receipt := &types.Receipt{
			Type:              tx.Type(),
			CumulativeGasUsed: cumulative,
			Logs:              []*types.Log{},
			TxHash:            tx.Hash(),
			GasUsed:           res.GasUsed,
			EffectiveGasPrice: res.EffectiveGasPrice,
			BlockHash:         hash,
			BlockNumber:       new(big.Int).SetUint64(block.Number),
			TransactionIndex:  uint(i),
		}
		if res.Success {
			receipt.Status = types.ReceiptStatusSuccessful
		} else {
			receipt.Status = types.ReceiptStatusFailed
		}
		if res.Created {
			receipt.ContractAddress = res.ContractAddress
		}
		receipt.Bloom = types.CreateBloom(types.Receipts{receipt})
		receipts = append(receipts, receipt)
		block.Receipts = append(block.Receipts, &Receipt{Receipt: receipt, From: res.From, To: tx.To()})
	}

	block.GasUsed = cumulative
	block.Bloom = types.CreateBloom(receipts)
	block.TransactionsRoot = types.DeriveSha(txs, trie.NewStackTrie(nil))
	block.ReceiptsRoot = types.DeriveSha(receipts, trie.NewStackTrie(nil))
	return block, nil
}

// TransactionAt returns the transaction at index, or nil.
func (b *Block) TransactionAt(index uint64) *Transaction {
	if index >= uint64(len(b.Transactions)) {
		return nil
	}
	return b.Transactions[index]
}

// RPC returns the block in the shape served over JSON-RPC.
func (b *Block) RPC(fullTx bool) *RPCBlock {
	return &RPCBlock{Block: b, FullTx: fullTx}
}

// RPCBlock is a block as served over JSON-RPC, with full transactions or hashes.
type RPCBlock struct {
	*Block
	FullTx bool
}

// MarshalJSON implements json.Marshaler.
func (b *RPCBlock) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{
		"number":           hexutil.Uint64(b.Number),
		"hash":             b.Hash,
		"parentHash":       b.ParentHash,
		"timestamp":        hexutil.Uint64(b.Timestamp),
		"gasLimit":         hexutil.Uint64(b.GasLimit),
		"gasUsed":          hexutil.Uint64(b.GasUsed),
		"baseFeePerGas":    (*hexutil.Big)(b.BaseFee),
		"miner":            common.Address{},
		"difficulty":       (*hexutil.Big)(new(big.Int)),
		"totalDifficulty":  (*hexutil.Big)(new(big.Int)),
		"nonce":            types.BlockNonce{},
		"mixHash":          common.Hash{},
		"sha3Uncles":       types.EmptyUncleHash,
		"logsBloom":        b.Bloom,
		"transactionsRoot": b.TransactionsRoot,
		"stateRoot":        b.StateRoot,
		"receiptsRoot":     b.ReceiptsRoot,
		"extraData":        hexutil.Bytes{},
		"size":             hexutil.Uint64(b.Size),
		"uncles":           []common.Hash{},
	}

	if b.FullTx {
		txs := make([]*Transaction, len(b.Transactions))
		copy(txs, b.Transactions)
		fields["transactions"] = txs
	} else {
		hashes := make([]common.Hash, len(b.Transactions))
		for i, tx := range b.Transactions {
			hashes[i] = tx.Tx.Hash()
		}
		fields["transactions"] = hashes
	}
	return json.Marshal(fields)
}

// MarshalJSON implements json.Marshaler.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	tx := t.Tx
	v, r, s := tx.RawSignatureValues()
	fields := map[string]interface{}{
		"hash":             tx.Hash(),
		"nonce":            hexutil.Uint64(tx.Nonce()),
		"blockHash":        t.BlockHash,
		"blockNumber":      (*hexutil.Uint64)(t.BlockNumber),
		"transactionIndex": (*hexutil.Uint64)(t.Index),
		"from":             t.From,
		"to":               tx.To(),
		"value":            (*hexutil.Big)(tx.Value()),
		"gas":              hexutil.Uint64(tx.Gas()),
		"input":            hexutil.Bytes(tx.Data()),
		"type":             hexutil.Uint64(tx.Type()),
		"v":                (*hexutil.Big)(v),
		"r":                (*hexutil.Big)(r),
		"s":                (*hexutil.Big)(s),
	}

	gasPrice := tx.GasPrice()
	if t.GasPrice != nil {
		gasPrice = t.GasPrice
	}
	fields["gasPrice"] = (*hexutil.Big)(gasPrice)

	if tx.Type() != types.LegacyTxType {
		fields["chainId"] = (*hexutil.Big)(tx.ChainId())
		fields["accessList"] = tx.AccessList()
		fields["yParity"] = hexutil.Uint64(v.Uint64())
	} else if tx.Protected() {
		fields["chainId"] = (*hexutil.Big)(tx.ChainId())
	}
	if tx.Type() == types.DynamicFeeTxType {
		fields["maxFeePerGas"] = (*hexutil.Big)(tx.GasFeeCap())
		fields["maxPriorityFeePerGas"] = (*hexutil.Big)(tx.GasTipCap())
	}
	return json.Marshal(fields)
}

// MarshalJSON implements json.Marshaler.
func (r *Receipt) MarshalJSON() ([]byte, error) {
	fields := map[string]interface{}{
		"transactionHash":   r.TxHash,
		"transactionIndex":  hexutil.Uint64(r.TransactionIndex),
		"blockHash":         r.BlockHash,
		"blockNumber":       (*hexutil.Big)(r.BlockNumber),
		"from":              r.From,
		"to":                r.To,
		"cumulativeGasUsed": hexutil.Uint64(r.CumulativeGasUsed),
		"gasUsed":           hexutil.Uint64(r.GasUsed),
		"effectiveGasPrice": (*hexutil.Big)(r.EffectiveGasPrice),
		"contractAddress":   nil,
		"logs":              r.Logs,
		"logsBloom":         r.Bloom,
		"status":            hexutil.Uint64(r.Status),
		"type":              hexutil.Uint64(r.Type),
	}
	if r.ContractAddress != (common.Address{}) {
		fields["contractAddress"] = r.ContractAddress
	}
	return json.Marshal(fields)
}
