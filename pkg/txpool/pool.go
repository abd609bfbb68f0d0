// Package txpool provides the pending transaction pool of the node.
package txpool

import (
	"container/heap"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

// Common errors.
var (
	ErrNonceTooLow        = errors.New("nonce too low")
	ErrNonceTooHigh       = errors.New("nonce too high")
	ErrInsufficientFunds  = errors.New("insufficient funds for gas * price + value")
	ErrTxAlreadyKnown     = errors.New("transaction already known")
	ErrInvalidSender      = errors.New("invalid sender")
	ErrReplaceUnderpriced = errors.New("replacement transaction underpriced")
)

// StateReader provides the latest account state transactions are validated against.
type StateReader interface {
	ChainID() (uint64, error)
	Nonce(addr common.Address) (uint64, error)
	Balance(addr common.Address) (*uint256.Int, error)
}

// Status summarizes the pool content.
type Status struct {
	Pending int
	Queued  int
}

// txEntry holds a transaction with its metadata.
type txEntry struct {
	tx   *types.Transaction
	from common.Address
	seq  uint64
}

// Pool holds transactions that have not been mined yet.
type Pool struct {
	state     StateReader
	pending   map[common.Hash]*txEntry
	byAddress map[common.Address]map[uint64]*txEntry
	seq       uint64
	mu        sync.RWMutex
}

// NewPool creates an empty transaction pool.
func NewPool(state StateReader) *Pool {
	return &Pool{
		state:     state,
		pending:   make(map[common.Hash]*txEntry),
		byAddress: make(map[common.Address]map[uint64]*txEntry),
	}
}

// Add validates tx and adds it to the pool, returning its sender.
func (p *Pool) Add(tx *types.Transaction) (common.Address, error) {
	chainID, err := p.state.ChainID()
	if err != nil {
		return common.Address{}, err
	}
	from, err := substrate.RecoverSender(types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSender, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.pending[tx.Hash()]; exists {
		return from, ErrTxAlreadyKnown
	}
	if err := p.validateTx(tx, from); err != nil {
		return from, err
	}

	if old, ok := p.byAddress[from][tx.Nonce()]; ok {
		if tx.GasFeeCap().Cmp(old.tx.GasFeeCap()) <= 0 {
			return from, ErrReplaceUnderpriced
		}
		delete(p.pending, old.tx.Hash())
	}

	p.seq++
	entry := &txEntry{tx: tx, from: from, seq: p.seq}
	p.pending[tx.Hash()] = entry
	if p.byAddress[from] == nil {
		p.byAddress[from] = make(map[uint64]*txEntry)
	}
	p.byAddress[from][tx.Nonce()] = entry

	return from, nil
}

// validateTx validates a transaction before adding it (caller must hold lock).
func (p *Pool) validateTx(tx *types.Transaction, from common.Address) error {
	currentNonce, err := p.state.Nonce(from)
	if err != nil {
		return err
	}
	if tx.Nonce() < currentNonce {
		return fmt.Errorf("%w: next nonce %d, tx nonce %d", ErrNonceTooLow, currentNonce, tx.Nonce())
	}
	if pendingNonce := p.pendingNonceLocked(from, currentNonce); tx.Nonce() > pendingNonce {
		return fmt.Errorf("%w: next nonce %d, tx nonce %d", ErrNonceTooHigh, pendingNonce, tx.Nonce())
	}

	balance, err := p.state.Balance(from)
	if err != nil {
		return err
	}
	if balance.ToBig().Cmp(tx.Cost()) < 0 {
		return fmt.Errorf("%w: balance %s, tx cost %s", ErrInsufficientFunds, balance.Dec(), tx.Cost())
	}
	return nil
}

// pendingNonceLocked returns the next nonce after the contiguous pending run.
func (p *Pool) pendingNonceLocked(addr common.Address, stateNonce uint64) uint64 {
	nonce := stateNonce
	for {
		if _, ok := p.byAddress[addr][nonce]; !ok {
			return nonce
		}
		nonce++
	}
}

// Drop removes a transaction from the pool and reports whether it was present.
func (p *Pool) Drop(hash common.Hash) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.removeLocked(hash)
}

func (p *Pool) removeLocked(hash common.Hash) bool {
	entry, exists := p.pending[hash]
	if !exists {
		return false
	}
	delete(p.pending, hash)
	delete(p.byAddress[entry.from], entry.tx.Nonce())
	if len(p.byAddress[entry.from]) == 0 {
		delete(p.byAddress, entry.from)
	}
	return true
}

// RemoveAll removes every listed transaction that is still in the pool.
func (p *Pool) RemoveAll(hashes []common.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, hash := range hashes {
		p.removeLocked(hash)
	}
}

// Get retrieves a transaction by hash.
func (p *Pool) Get(hash common.Hash) *types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, exists := p.pending[hash]; exists {
		return entry.tx
	}
	return nil
}

// Sender returns the sender of a pooled transaction.
func (p *Pool) Sender(hash common.Hash) (common.Address, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if entry, exists := p.pending[hash]; exists {
		return entry.from, true
	}
	return common.Address{}, false
}

// Pending returns all pooled transactions in arrival order.
func (p *Pool) Pending() []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	entries := make([]*txEntry, 0, len(p.pending))
	for _, entry := range p.pending {
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	txs := make([]*types.Transaction, len(entries))
	for i, entry := range entries {
		txs[i] = entry.tx
	}
	return txs
}

// PendingFrom returns pending transactions from a specific address ordered by nonce.
func (p *Pool) PendingFrom(addr common.Address) []*types.Transaction {
	p.mu.RLock()
	defer p.mu.RUnlock()

	txs := make([]*types.Transaction, 0, len(p.byAddress[addr]))
	for _, entry := range p.byAddress[addr] {
		txs = append(txs, entry.tx)
	}
	sort.Slice(txs, func(i, j int) bool { return txs[i].Nonce() < txs[j].Nonce() })
	return txs
}

// PendingNonce returns the next nonce for addr, counting pooled transactions.
func (p *Pool) PendingNonce(addr common.Address) (uint64, error) {
	stateNonce, err := p.state.Nonce(addr)
	if err != nil {
		return 0, err
	}

	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.pendingNonceLocked(addr, stateNonce), nil
}

// Ready returns the transactions to include in the next block: ordered by
// effective gas price (highest first, earlier arrival on ties) while keeping
// each sender's transactions in nonce order.
func (p *Pool) Ready(baseFee *big.Int) ([]*types.Transaction, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	queues := make(map[common.Address][]*txEntry, len(p.byAddress))
	heads := &priceHeap{baseFee: baseFee}
	for addr, byNonce := range p.byAddress {
		nonce, err := p.state.Nonce(addr)
		if err != nil {
			return nil, err
		}
		var queue []*txEntry
		for {
			entry, ok := byNonce[nonce]
			if !ok {
				break
			}
			queue = append(queue, entry)
			nonce++
		}
		if len(queue) == 0 {
			continue
		}
		heads.entries = append(heads.entries, queue[0])
		queues[addr] = queue[1:]
	}
	heap.Init(heads)

	var txs []*types.Transaction
	for heads.Len() > 0 {
		next := heap.Pop(heads).(*txEntry)
		txs = append(txs, next.tx)
		if rest := queues[next.from]; len(rest) > 0 {
			heap.Push(heads, rest[0])
			queues[next.from] = rest[1:]
		}
	}
	return txs, nil
}

// Count returns the number of pooled transactions.
func (p *Pool) Count() int {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return len(p.pending)
}

// Status counts ready and future transactions.
func (p *Pool) Status() (Status, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var status Status
	for addr, byNonce := range p.byAddress {
		nonce, err := p.state.Nonce(addr)
		if err != nil {
			return Status{}, err
		}
		ready := p.pendingNonceLocked(addr, nonce) - nonce
		status.Pending += int(ready)
		status.Queued += len(byNonce) - int(ready)
	}
	return status, nil
}

// Clear removes all transactions from the pool.
func (p *Pool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.pending = make(map[common.Hash]*txEntry)
	p.byAddress = make(map[common.Address]map[uint64]*txEntry)
}

// priceHeap orders sender queue heads by effective gas price.
type priceHeap struct {
	baseFee *big.Int
	entries []*txEntry
}

func (h *priceHeap) Len() int { return len(h.entries) }

func (h *priceHeap) Less(i, j int) bool {
	pi := substrate.EffectiveGasPrice(h.entries[i].tx, h.baseFee)
	pj := substrate.EffectiveGasPrice(h.entries[j].tx, h.baseFee)
	if c := pi.Cmp(pj); c != 0 {
		return c > 0
	}
	return h.entries[i].seq < h.entries[j].seq
}

func (h *priceHeap) Swap(i, j int) { h.entries[i], h.entries[j] = h.entries[j], h.entries[i] }

func (h *priceHeap) Push(x interface{}) { h.entries = append(h.entries, x.(*txEntry)) }

func (h *priceHeap) Pop() interface{} {
	old := h.entries
	n := len(old)
	x := old[n-1]
	h.entries = old[:n-1]
	return x
}
