// Package blockchain provides the canonical block store of the node.
package blockchain

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stable-net/anvil-polkadot/pkg/state"
)

// Common errors.
var (
	ErrBlockNotFound = errors.New("block not found")
	ErrNoGenesis     = errors.New("no genesis block set")
	ErrInvalidBlock  = errors.New("invalid block")
)

// entry couples a block with the state it produced.
type entry struct {
	block *Block
	state *state.Layer
}

// Chain manages the canonical chain and the state of every block on it.
type Chain struct {
	blocks       map[common.Hash]*entry
	blockNumbers map[uint64]common.Hash

	genesis       common.Hash
	best          uint64
	finalized     uint64
	finalityDepth uint64
	hasGenesis    bool

	mu sync.RWMutex
}

// NewChain creates a new chain. Blocks become final finalityDepth blocks
// behind the best block; zero means instant finality.
func NewChain(finalityDepth uint64) *Chain {
	return &Chain{
		blocks:        make(map[common.Hash]*entry),
		blockNumbers:  make(map[uint64]common.Hash),
		finalityDepth: finalityDepth,
	}
}

// SetGenesis sets the genesis block and its state.
func (c *Chain) SetGenesis(block *Block, st *state.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if block.Number() != 0 {
		return ErrInvalidBlock
	}

	hash := block.Hash()
	c.blocks[hash] = &entry{block: block, state: st}
	c.blockNumbers[0] = hash
	c.genesis = hash
	c.best = 0
	c.finalized = 0
	c.hasGenesis = true

	return nil
}

// AddBlock appends a block on top of the best block.
func (c *Chain) AddBlock(block *Block, st *state.Layer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasGenesis {
		return ErrNoGenesis
	}

	if block.ParentHash() != c.blockNumbers[c.best] {
		return fmt.Errorf("%w: parent %s is not the best block", ErrInvalidBlock, block.ParentHash().Hex())
	}
	if block.Number() != c.best+1 {
		return fmt.Errorf("%w: number %d, expected %d", ErrInvalidBlock, block.Number(), c.best+1)
	}

	hash := block.Hash()
	c.blocks[hash] = &entry{block: block, state: st}
	c.blockNumbers[block.Number()] = hash
	c.best = block.Number()
	if c.best >= c.finalityDepth {
		c.finalized = c.best - c.finalityDepth
	}

	return nil
}

// Best returns the best block number and hash.
func (c *Chain) Best() (uint64, common.Hash) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.best, c.blockNumbers[c.best]
}

// Finalized returns the finalized block number and hash.
func (c *Chain) Finalized() (uint64, common.Hash) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.finalized, c.blockNumbers[c.finalized]
}

// Genesis returns the genesis block hash.
func (c *Chain) Genesis() common.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.genesis
}

// HashAt returns the canonical hash at a height.
func (c *Chain) HashAt(number uint64) (common.Hash, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, ok := c.blockNumbers[number]
	return hash, ok
}

// BlockByNumber retrieves a canonical block by its number.
func (c *Chain) BlockByNumber(number uint64) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hash, exists := c.blockNumbers[number]
	if !exists {
		return nil, ErrBlockNotFound
	}
	return c.blocks[hash].block, nil
}

// BlockByHash retrieves a block by its hash.
func (c *Chain) BlockByHash(hash common.Hash) (*Block, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.blocks[hash]
	if !exists {
		return nil, ErrBlockNotFound
	}
	return e.block, nil
}

// HasBlock checks if a block exists.
func (c *Chain) HasBlock(hash common.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, exists := c.blocks[hash]
	return exists
}

// IsCanonical reports whether hash is on the canonical chain.
func (c *Chain) IsCanonical(hash common.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.blocks[hash]
	if !exists {
		return false
	}
	return c.blockNumbers[e.block.Number()] == hash
}

// StateAt returns the state layer produced by a block.
func (c *Chain) StateAt(hash common.Hash) (*state.Layer, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.blocks[hash]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrBlockNotFound, hash.Hex())
	}
	return e.state, nil
}

// Truncate removes every block above number and returns how many were removed.
func (c *Chain) Truncate(number uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	if number >= c.best {
		return 0
	}

	removed := c.best - number
	for n := number + 1; n <= c.best; n++ {
		hash := c.blockNumbers[n]
		delete(c.blocks, hash)
		delete(c.blockNumbers, n)
	}
	c.best = number
	if c.finalized > number {
		c.finalized = number
	}

	return removed
}
