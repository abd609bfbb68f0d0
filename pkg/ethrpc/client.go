// Package ethrpc provides the Ethereum view of the Substrate chain: blocks,
// transactions, receipts, logs and runtime API calls keyed by block.
package ethrpc

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Common errors.
var (
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrUnknownTag         = errors.New("unknown block tag")
)

// TxPool accepts transactions and serves pending ones.
type TxPool interface {
	Add(tx *types.Transaction) (common.Address, error)
	Get(hash common.Hash) *types.Transaction
	Sender(hash common.Hash) (common.Address, bool)
	PendingNonce(addr common.Address) (uint64, error)
}

// SubscriptionKind selects the block stream a subscription follows.
type SubscriptionKind int

const (
	// SubscribeBestBlocks follows new best blocks.
	SubscribeBestBlocks SubscriptionKind = iota

	// SubscribeFinalizedBlocks follows newly finalized blocks.
	SubscribeFinalizedBlocks
)

// String returns the name of the subscription kind.
func (k SubscriptionKind) String() string {
	if k == SubscribeFinalizedBlocks {
		return "finalized"
	}
	return "best"
}

// Client serves Ethereum RPC data from a Substrate client.
type Client struct {
	client   *substrate.Client
	pool     TxPool
	blocks   *BlockInfoProvider
	receipts *ReceiptProvider
	runtime  *RuntimeAPI
}

// NewClient creates an Eth RPC client.
func NewClient(client *substrate.Client, pool TxPool) (*Client, error) {
	blocks, err := NewBlockInfoProvider(client)
	if err != nil {
		return nil, err
	}
	receipts, err := NewReceiptProvider(client, blocks)
	if err != nil {
		return nil, err
	}
	return &Client{
		client:   client,
		pool:     pool,
		blocks:   blocks,
		receipts: receipts,
		runtime:  &RuntimeAPI{rt: client.Runtime()},
	}, nil
}

// Close releases the resources held by the client.
func (c *Client) Close() error {
	return c.receipts.Close()
}

// Blocks returns the block info provider.
func (c *Client) Blocks() *BlockInfoProvider {
	return c.blocks
}

// RuntimeAPI returns the runtime API proxy.
func (c *Client) RuntimeAPI() *RuntimeAPI {
	return c.runtime
}

// BlockNumber returns the best block number.
func (c *Client) BlockNumber() uint64 {
	return c.client.BestNumber()
}

// BlockHashForTag resolves a block tag, number or hash to a canonical block hash.
func (c *Client) BlockHashForTag(tag rpc.BlockNumberOrHash) (common.Hash, error) {
	if hash, ok := tag.Hash(); ok {
		if _, err := c.client.Header(hash); err != nil {
			return common.Hash{}, fmt.Errorf("%w: %s", ErrBlockNotFound, hash.Hex())
		}
		if tag.RequireCanonical && !c.client.IsCanonical(hash) {
			return common.Hash{}, fmt.Errorf("%w: %s is not canonical", ErrBlockNotFound, hash.Hex())
		}
		return hash, nil
	}

	number, ok := tag.Number()
	if !ok {
		number = rpc.LatestBlockNumber
	}
	switch number {
	case rpc.LatestBlockNumber, rpc.PendingBlockNumber:
		return c.client.BestHash(), nil
	case rpc.FinalizedBlockNumber, rpc.SafeBlockNumber:
		return c.client.Info().FinalizedHash, nil
	case rpc.EarliestBlockNumber:
		return c.client.Info().GenesisHash, nil
	}
	if number < 0 {
		return common.Hash{}, fmt.Errorf("%w: %d", ErrUnknownTag, number)
	}
	hash, ok := c.client.HashAt(uint64(number))
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: number %d", ErrBlockNotFound, number)
	}
	return hash, nil
}

// BlockByHash returns the block with hash, or nil if it is unknown.
func (c *Client) BlockByHash(hash common.Hash) (*Block, error) {
	if _, err := c.client.Header(hash); err != nil {
		return nil, nil
	}
	handle, err := c.blocks.BlockByHash(hash)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	return handle.Get(), nil
}

// BlockByNumber returns the block at number, or nil if there is none.
func (c *Client) BlockByNumber(number rpc.BlockNumber) (*Block, error) {
	hash, err := c.BlockHashForTag(rpc.BlockNumberOrHashWithNumber(number))
	if errors.Is(err, ErrBlockNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c.BlockByHash(hash)
}

// TransactionByHash returns a mined or pending transaction, or nil.
func (c *Client) TransactionByHash(hash common.Hash) (*Transaction, error) {
	tx, err := c.receipts.TransactionByHash(hash)
	if err != nil || tx != nil {
		return tx, err
	}
	if pending := c.pool.Get(hash); pending != nil {
		from, _ := c.pool.Sender(hash)
		return &Transaction{Tx: pending, From: from}, nil
	}
	return nil, nil
}

// TransactionByBlockAndIndex returns the transaction at index in block hash, or nil.
func (c *Client) TransactionByBlockAndIndex(hash common.Hash, index uint64) (*Transaction, error) {
	block, err := c.BlockByHash(hash)
	if err != nil || block == nil {
		return nil, err
	}
	return block.TransactionAt(index), nil
}

// ReceiptByHash returns the receipt of a mined transaction, or nil.
func (c *Client) ReceiptByHash(hash common.Hash) (*Receipt, error) {
	return c.receipts.ReceiptByHash(hash)
}

// TransactionCount returns the nonce of addr at a block. The pending tag
// counts transactions waiting in the pool.
func (c *Client) TransactionCount(addr common.Address, tag rpc.BlockNumberOrHash) (uint64, error) {
	if number, ok := tag.Number(); ok && number == rpc.PendingBlockNumber {
		return c.pool.PendingNonce(addr)
	}
	hash, err := c.BlockHashForTag(tag)
	if err != nil {
		return 0, err
	}
	return c.runtime.Nonce(hash, addr)
}

// GasPrice returns the gas price at the best block.
func (c *Client) GasPrice() (*big.Int, error) {
	return c.runtime.GasPrice(c.client.BestHash())
}

// ChainID returns the chain id at the best block.
func (c *Client) ChainID() (uint64, error) {
	return c.runtime.ChainID(c.client.BestHash())
}

// SendRawTransaction decodes a signed transaction and submits it to the pool.
func (c *Client) SendRawTransaction(raw []byte) (common.Hash, error) {
	hash := crypto.Keccak256Hash(raw)

	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
	}
	if tx.Hash() != hash {
		return common.Hash{}, fmt.Errorf("%w: hash mismatch", ErrInvalidTransaction)
	}
	from, err := c.pool.Add(tx)
	if err != nil {
		return common.Hash{}, err
	}

	log.Debug("Submitted transaction", "hash", hash, "from", from, "nonce", tx.Nonce())
	return hash, nil
}

// SubscribeAndWatch keeps the latest or finalized block cache in sync with
// the chain until ctx is cancelled. Failing to process a notification is
// fatal.
func (c *Client) SubscribeAndWatch(ctx context.Context, kind SubscriptionKind) error {
	ch := make(chan substrate.BlockNotification, 16)
	var sub event.Subscription
	switch kind {
	case SubscribeFinalizedBlocks:
		sub = c.client.SubscribeFinality(ch)
	default:
		sub = c.client.SubscribeImports(ch)
	}
	defer sub.Unsubscribe()

	// Catch up with blocks imported before the subscription was registered.
	info := c.client.Info()
	head := substrate.BlockNotification{Number: info.BestNumber, Hash: info.BestHash}
	if kind == SubscribeFinalizedBlocks {
		head = substrate.BlockNotification{Number: info.FinalizedNumber, Hash: info.FinalizedHash}
	}
	if err := c.onBlock(kind, head); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-sub.Err():
			if !ok {
				return nil
			}
			log.Crit("Block subscription failed", "kind", kind, "err", err)
		case n := <-ch:
			if err := c.onBlock(kind, n); err != nil {
				log.Crit("Failed to process block notification", "kind", kind, "number", n.Number, "hash", n.Hash, "err", err)
			}
		}
	}
}

func (c *Client) onBlock(kind SubscriptionKind, n substrate.BlockNotification) error {
	// Blocks reverted since the notification was sent are skipped.
	if !c.client.IsCanonical(n.Hash) {
		return nil
	}
	handle, err := c.blocks.BlockByHash(n.Hash)
	if err != nil {
		if !c.client.IsCanonical(n.Hash) {
			return nil
		}
		return err
	}
	block := handle.Get()
	handle.Release()

	if kind == SubscribeFinalizedBlocks {
		c.blocks.UpdateFinalized(block)
		return nil
	}
	c.blocks.UpdateLatest(block)
	return c.receipts.Sync()
}
