package substrate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/log"

	"github.com/stable-net/anvil-polkadot/pkg/blockchain"
	"github.com/stable-net/anvil-polkadot/pkg/state"
)

// Client errors.
var (
	ErrNotBestBlock = errors.New("state overlay is only writable at the best block")
	ErrRevertDepth  = errors.New("cannot revert past genesis")
)

// BlockNotification announces a block becoming best or finalized.
type BlockNotification struct {
	Number uint64
	Hash   common.Hash
}

// Client is the in-process Substrate client: block production, storage
// access at any block and import/finality notifications.
type Client struct {
	chain   *blockchain.Chain
	runtime *Runtime

	importFeed   event.Feed
	finalityFeed event.Feed

	mu sync.Mutex // serializes block production and head overlay access
}

// NewClient creates a client whose genesis block holds genesisState.
func NewClient(genesisState *state.Layer, rt *Runtime, finalityDepth uint64) (*Client, error) {
	genesis := blockchain.NewBlock(&blockchain.Header{
		Number:    0,
		StateRoot: genesisState.Root(),
	}, nil)

	chain := blockchain.NewChain(finalityDepth)
	if err := chain.SetGenesis(genesis, genesisState); err != nil {
		return nil, fmt.Errorf("failed to set genesis: %w", err)
	}

	c := &Client{chain: chain, runtime: rt}
	rt.client = c

	log.Debug("Initialised chain", "genesis", genesis.Hash(), "stateRoot", genesis.Header.StateRoot)
	return c, nil
}

// Runtime returns the runtime API.
func (c *Client) Runtime() *Runtime {
	return c.runtime
}

// Info returns the chain head summary.
func (c *Client) Info() Info {
	bestNumber, bestHash := c.chain.Best()
	finNumber, finHash := c.chain.Finalized()
	return Info{
		BestNumber:      bestNumber,
		BestHash:        bestHash,
		FinalizedNumber: finNumber,
		FinalizedHash:   finHash,
		GenesisHash:     c.chain.Genesis(),
	}
}

// BestNumber returns the best block number.
func (c *Client) BestNumber() uint64 {
	number, _ := c.chain.Best()
	return number
}

// BestHash returns the best block hash.
func (c *Client) BestHash() common.Hash {
	_, hash := c.chain.Best()
	return hash
}

// FinalizedNumber returns the finalized block number.
func (c *Client) FinalizedNumber() uint64 {
	number, _ := c.chain.Finalized()
	return number
}

// HashAt returns the canonical hash at a height.
func (c *Client) HashAt(number uint64) (common.Hash, bool) {
	return c.chain.HashAt(number)
}

// IsCanonical reports whether hash is on the canonical chain.
func (c *Client) IsCanonical(hash common.Hash) bool {
	return c.chain.IsCanonical(hash)
}

// Header returns the header of a block.
func (c *Client) Header(hash common.Hash) (*blockchain.Header, error) {
	block, err := c.chain.BlockByHash(hash)
	if err != nil {
		return nil, err
	}
	return block.Header, nil
}

// Block returns a block by hash.
func (c *Client) Block(hash common.Hash) (*blockchain.Block, error) {
	return c.chain.BlockByHash(hash)
}

// StateAt returns the state of a block. Callers must treat it as read-only.
func (c *Client) StateAt(hash common.Hash) (*state.Layer, error) {
	return c.chain.StateAt(hash)
}

// StorageAt returns a raw storage value at a block.
func (c *Client) StorageAt(hash common.Hash, key []byte) ([]byte, bool, error) {
	layer, err := c.chain.StateAt(hash)
	if err != nil {
		return nil, false, err
	}
	value, ok := layer.Get(key)
	return value, ok, nil
}

// WithOverlay runs fn against the writable state of the best block. It fails
// with ErrNotBestBlock if hash is not the best block.
func (c *Client) WithOverlay(hash common.Hash, fn func(*Storage) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if best := c.BestHash(); best != hash {
		return fmt.Errorf("%w: %s, best is %s", ErrNotBestBlock, hash.Hex(), best.Hex())
	}
	layer, err := c.chain.StateAt(hash)
	if err != nil {
		return err
	}
	return fn(NewStorage(layer))
}

// CaptureState returns a copy of the writable part of a block's state.
func (c *Client) CaptureState(hash common.Hash) (*state.Layer, error) {
	layer, err := c.chain.StateAt(hash)
	if err != nil {
		return nil, err
	}
	return layer.Copy(), nil
}

// RestoreState resets the best block's state to a captured copy.
func (c *Client) RestoreState(hash common.Hash, saved *state.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if best := c.BestHash(); best != hash {
		return fmt.Errorf("%w: %s", ErrNotBestBlock, hash.Hex())
	}
	layer, err := c.chain.StateAt(hash)
	if err != nil {
		return err
	}
	layer.Restore(saved)
	return nil
}

// ImportBlock builds a block with txs on top of the best block and imports it.
func (c *Client) ImportBlock(ctx context.Context, timestampMs uint64, txs []*types.Transaction) (*BuildResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	prevFinalized := c.FinalizedNumber()
	res, err := c.runtime.BuildBlock(c.BestHash(), timestampMs, txs)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	if err := c.chain.AddBlock(res.Block, res.State); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	info := c.Info()
	c.mu.Unlock()

	log.Debug("Imported block", "number", res.Block.Number(), "hash", res.Block.Hash(), "txs", len(res.Included))

	c.importFeed.Send(BlockNotification{Number: info.BestNumber, Hash: info.BestHash})
	if info.FinalizedNumber != prevFinalized {
		c.finalityFeed.Send(BlockNotification{Number: info.FinalizedNumber, Hash: info.FinalizedHash})
	}
	return res, nil
}

// RevertBlocks unwinds the n most recent blocks and returns how many were
// reverted together with the new chain info.
func (c *Client) RevertBlocks(n uint64) (uint64, Info, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	best := c.BestNumber()
	if n > best {
		return 0, Info{}, fmt.Errorf("%w: depth %d, height %d", ErrRevertDepth, n, best)
	}
	reverted := c.chain.Truncate(best - n)
	return reverted, c.Info(), nil
}

// SubscribeImports delivers a notification for every new best block.
func (c *Client) SubscribeImports(ch chan<- BlockNotification) event.Subscription {
	return c.importFeed.Subscribe(ch)
}

// SubscribeFinality delivers a notification for every newly finalized block.
func (c *Client) SubscribeFinality(ch chan<- BlockNotification) event.Subscription {
	return c.finalityFeed.Subscribe(ch)
}
