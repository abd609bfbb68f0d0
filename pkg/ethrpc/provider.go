package ethrpc

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

const blockCacheSize = 256

// ErrBlockNotFound is returned when a block is unknown or not canonical.
var ErrBlockNotFound = errors.New("block not found")

// BlockInfoProvider serves Ethereum views of blocks and keeps the latest and
// finalized blocks at hand.
type BlockInfoProvider struct {
	client *substrate.Client
	cache  *lru.Cache[common.Hash, *Block]

	latest    *Shared[*Block]
	finalized *Shared[*Block]
	mu        sync.RWMutex
}

// NewBlockInfoProvider creates a provider primed with the current best and finalized blocks.
func NewBlockInfoProvider(client *substrate.Client) (*BlockInfoProvider, error) {
	cache, err := lru.New[common.Hash, *Block](blockCacheSize)
	if err != nil {
		return nil, err
	}
	p := &BlockInfoProvider{client: client, cache: cache}

	info := client.Info()
	latest, err := p.load(info.BestHash)
	if err != nil {
		return nil, err
	}
	finalized, err := p.load(info.FinalizedHash)
	if err != nil {
		return nil, err
	}
	p.latest = NewShared(latest)
	p.finalized = NewShared(finalized)
	return p, nil
}

// load returns the view of a block, building it on a cache miss.
func (p *BlockInfoProvider) load(hash common.Hash) (*Block, error) {
	if block, ok := p.cache.Get(hash); ok {
		return block, nil
	}
	block, err := buildBlock(p.client, hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrBlockNotFound, hash.Hex(), err)
	}
	p.cache.Add(hash, block)
	return block, nil
}

// BlockByHash returns a handle to the block with hash. The caller owns the
// handle and must Release it.
func (p *BlockInfoProvider) BlockByHash(hash common.Hash) (*Shared[*Block], error) {
	p.mu.RLock()
	for _, slot := range []*Shared[*Block]{p.latest, p.finalized} {
		if slot.Get().Hash == hash {
			handle := slot.Clone()
			p.mu.RUnlock()
			return handle, nil
		}
	}
	p.mu.RUnlock()

	block, err := p.load(hash)
	if err != nil {
		return nil, err
	}
	return NewShared(block), nil
}

// BlockByNumber returns a handle to the canonical block at number.
func (p *BlockInfoProvider) BlockByNumber(number uint64) (*Shared[*Block], error) {
	hash, ok := p.client.HashAt(number)
	if !ok {
		return nil, fmt.Errorf("%w: number %d", ErrBlockNotFound, number)
	}
	return p.BlockByHash(hash)
}

// UpdateLatest replaces the cached best block.
func (p *BlockInfoProvider) UpdateLatest(block *Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache.Add(block.Hash, block)
	p.latest.Release()
	p.latest = NewShared(block)
}

// UpdateFinalized replaces the cached finalized block.
func (p *BlockInfoProvider) UpdateFinalized(block *Block) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cache.Add(block.Hash, block)
	p.finalized.Release()
	p.finalized = NewShared(block)
}

// Purge drops cached views of blocks that are no longer canonical.
func (p *BlockInfoProvider) Purge() {
	for _, hash := range p.cache.Keys() {
		if !p.client.IsCanonical(hash) {
			p.cache.Remove(hash)
		}
	}
}
