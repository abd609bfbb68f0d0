package ethrpc

import (
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

const maxFeeHistory = 1024

// Filter errors.
var (
	ErrInvalidBlockRange = errors.New("invalid block range")
	ErrInvalidPercentile = errors.New("invalid reward percentile")
)

// LogFilter selects logs by block range or block hash, address and topics.
type LogFilter struct {
	BlockHash *common.Hash
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
	Addresses []common.Address
	Topics    [][]common.Hash
}

// FeeHistory is the result of eth_feeHistory.
type FeeHistory struct {
	OldestBlock  *hexutil.Big     `json:"oldestBlock"`
	BaseFee      []*hexutil.Big   `json:"baseFeePerGas"`
	GasUsedRatio []float64        `json:"gasUsedRatio"`
	Reward       [][]*hexutil.Big `json:"reward,omitempty"`
}

func (c *Client) resolveNumber(number *rpc.BlockNumber, fallback rpc.BlockNumber) (uint64, error) {
	n := fallback
	if number != nil {
		n = *number
	}
	hash, err := c.BlockHashForTag(rpc.BlockNumberOrHashWithNumber(n))
	if err != nil {
		return 0, err
	}
	header, err := c.client.Header(hash)
	if err != nil {
		return 0, err
	}
	return header.Number, nil
}

// Logs returns the logs matching filter.
func (c *Client) Logs(filter *LogFilter) ([]*types.Log, error) {
	var hashes []common.Hash
	if filter.BlockHash != nil {
		if _, err := c.client.Header(*filter.BlockHash); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, filter.BlockHash.Hex())
		}
		hashes = append(hashes, *filter.BlockHash)
	} else {
		from, err := c.resolveNumber(filter.FromBlock, rpc.LatestBlockNumber)
		if err != nil {
			return nil, err
		}
		to, err := c.resolveNumber(filter.ToBlock, rpc.LatestBlockNumber)
		if err != nil {
			return nil, err
		}
		if from > to {
			return nil, fmt.Errorf("%w: from %d > to %d", ErrInvalidBlockRange, from, to)
		}
		for n := from; n <= to; n++ {
			if hash, ok := c.client.HashAt(n); ok {
				hashes = append(hashes, hash)
			}
		}
	}

	logs := []*types.Log{}
	for _, hash := range hashes {
		handle, err := c.blocks.BlockByHash(hash)
		if err != nil {
			return nil, err
		}
		block := handle.Get()
		handle.Release()

		if !bloomMatches(block.Bloom, filter) {
			continue
		}
		for _, receipt := range block.Receipts {
			for _, l := range receipt.Logs {
				if logMatches(l, filter) {
					logs = append(logs, l)
				}
			}
		}
	}
	return logs, nil
}

func bloomMatches(bloom types.Bloom, filter *LogFilter) bool {
	if len(filter.Addresses) > 0 {
		found := false
		for _, addr := range filter.Addresses {
			if types.BloomLookup(bloom, addr) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	for _, sub := range filter.Topics {
		if len(sub) == 0 {
			continue
		}
		found := false
		for _, topic := range sub {
			if types.BloomLookup(bloom, topic) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func logMatches(l *types.Log, filter *LogFilter) bool {
	if len(filter.Addresses) > 0 {
		found := false
		for _, addr := range filter.Addresses {
			if l.Address == addr {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filter.Topics) > len(l.Topics) {
		return false
	}
	for i, sub := range filter.Topics {
		if len(sub) == 0 {
			continue
		}
		found := false
		for _, topic := range sub {
			if l.Topics[i] == topic {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// FeeHistory returns base fees, gas usage ratios and priority fee percentiles
// for up to count blocks ending at newest.
func (c *Client) FeeHistory(count uint64, newest rpc.BlockNumber, percentiles []float64) (*FeeHistory, error) {
	for i, p := range percentiles {
		if p < 0 || p > 100 || (i > 0 && p < percentiles[i-1]) {
			return nil, fmt.Errorf("%w: %f", ErrInvalidPercentile, p)
		}
	}
	if count > maxFeeHistory {
		count = maxFeeHistory
	}

	last, err := c.resolveNumber(&newest, rpc.LatestBlockNumber)
	if err != nil {
		return nil, err
	}
	if count > last+1 {
		count = last + 1
	}
	oldest := last + 1 - count

	history := &FeeHistory{
		OldestBlock:  (*hexutil.Big)(new(big.Int).SetUint64(oldest)),
		BaseFee:      []*hexutil.Big{},
		GasUsedRatio: []float64{},
	}
	if len(percentiles) > 0 {
		history.Reward = [][]*hexutil.Big{}
	}

	var nextBaseFee *big.Int
	for n := oldest; n <= last && count > 0; n++ {
		handle, err := c.blocks.BlockByNumber(n)
		if err != nil {
			return nil, err
		}
		block := handle.Get()
		handle.Release()

		history.BaseFee = append(history.BaseFee, (*hexutil.Big)(block.BaseFee))
		ratio := 0.0
		if block.GasLimit > 0 {
			ratio = float64(block.GasUsed) / float64(block.GasLimit)
		}
		history.GasUsedRatio = append(history.GasUsedRatio, ratio)
		if len(percentiles) > 0 {
			history.Reward = append(history.Reward, blockRewards(block, percentiles))
		}
		nextBaseFee = block.BaseFee
	}
	if nextBaseFee != nil {
		// The base fee is constant, so the next block pays the same.
		history.BaseFee = append(history.BaseFee, (*hexutil.Big)(nextBaseFee))
	}
	return history, nil
}

// blockRewards returns the priority fee paid at each gas-weighted percentile.
func blockRewards(block *Block, percentiles []float64) []*hexutil.Big {
	rewards := make([]*hexutil.Big, len(percentiles))
	if len(block.Transactions) == 0 {
		for i := range rewards {
			rewards[i] = (*hexutil.Big)(new(big.Int))
		}
		return rewards
	}

	type txGas struct {
		gasUsed uint64
		reward  *big.Int
	}
	sorted := make([]txGas, len(block.Transactions))
	for i, tx := range block.Transactions {
		tip := new(big.Int).Sub(tx.GasPrice, block.BaseFee)
		if tip.Sign() < 0 {
			tip.SetInt64(0)
		}
		sorted[i] = txGas{gasUsed: block.Receipts[i].GasUsed, reward: tip}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].reward.Cmp(sorted[j].reward) < 0 })

	var txIndex int
	sumGasUsed := sorted[0].gasUsed
	for i, p := range percentiles {
		threshold := uint64(float64(block.GasUsed) * p / 100)
		for sumGasUsed < threshold && txIndex < len(sorted)-1 {
			txIndex++
			sumGasUsed += sorted[txIndex].gasUsed
		}
		rewards[i] = (*hexutil.Big)(sorted[txIndex].reward)
	}
	return rewards
}
