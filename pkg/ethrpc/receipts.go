package ethrpc

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/storage"

	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

var (
	txLookupPrefix = []byte("l") // txLookupPrefix + hash -> txLookup
	blockPrefix    = []byte("h") // blockPrefix + num (uint64 big endian) -> hash
)

// txLookup locates a mined transaction.
type txLookup struct {
	BlockHash   common.Hash
	BlockNumber uint64
	Index       uint64
}

// ReceiptProvider indexes mined transactions by hash. Entries are only served
// while their block is canonical.
type ReceiptProvider struct {
	client *substrate.Client
	blocks *BlockInfoProvider
	db     *leveldb.DB

	indexed uint64 // highest indexed block number
	mu      sync.Mutex
}

// NewReceiptProvider creates a provider backed by an in-memory database.
func NewReceiptProvider(client *substrate.Client, blocks *BlockInfoProvider) (*ReceiptProvider, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, err
	}
	p := &ReceiptProvider{client: client, blocks: blocks, db: db}
	if err := p.db.Put(blockKey(0), client.Info().GenesisHash.Bytes(), nil); err != nil {
		return nil, err
	}
	return p, nil
}

// Close releases the database.
func (p *ReceiptProvider) Close() error {
	return p.db.Close()
}

func txLookupKey(hash common.Hash) []byte {
	return append(append([]byte{}, txLookupPrefix...), hash.Bytes()...)
}

func blockKey(number uint64) []byte {
	return binary.BigEndian.AppendUint64(append([]byte{}, blockPrefix...), number)
}

// Sync indexes every canonical block up to the best block, first unwinding
// entries of blocks that were reverted.
func (p *ReceiptProvider) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for p.indexed > 0 {
		stored, err := p.db.Get(blockKey(p.indexed), nil)
		if err != nil && !errors.Is(err, leveldb.ErrNotFound) {
			return err
		}
		if canonical, ok := p.client.HashAt(p.indexed); ok && common.BytesToHash(stored) == canonical {
			break
		}
		p.indexed--
	}

	best := p.client.BestNumber()
	for number := p.indexed + 1; number <= best; number++ {
		if err := p.indexBlock(number); err != nil {
			if _, ok := p.client.HashAt(number); !ok {
				return nil // reverted while indexing
			}
			return err
		}
		p.indexed = number
	}
	return nil
}

// indexBlock writes the lookups of one block (caller must hold lock).
func (p *ReceiptProvider) indexBlock(number uint64) error {
	handle, err := p.blocks.BlockByNumber(number)
	if err != nil {
		return err
	}
	defer handle.Release()
	block := handle.Get()

	batch := new(leveldb.Batch)
	for i, tx := range block.Transactions {
		enc, err := rlp.EncodeToBytes(&txLookup{BlockHash: block.Hash, BlockNumber: block.Number, Index: uint64(i)})
		if err != nil {
			return err
		}
		batch.Put(txLookupKey(tx.Tx.Hash()), enc)
	}
	batch.Put(blockKey(number), block.Hash.Bytes())

	log.Trace("Indexed block", "number", number, "hash", block.Hash, "txs", len(block.Transactions))
	return p.db.Write(batch, nil)
}

// lookup returns the location of a mined transaction, or nil if it is
// unknown or its block is no longer canonical.
func (p *ReceiptProvider) lookup(hash common.Hash) (*txLookup, error) {
	if err := p.Sync(); err != nil {
		return nil, err
	}

	enc, err := p.db.Get(txLookupKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry txLookup
	if err := rlp.DecodeBytes(enc, &entry); err != nil {
		return nil, err
	}
	if !p.client.IsCanonical(entry.BlockHash) {
		return nil, nil
	}
	return &entry, nil
}

// ReceiptByHash returns the receipt of a mined transaction, or nil.
func (p *ReceiptProvider) ReceiptByHash(hash common.Hash) (*Receipt, error) {
	entry, err := p.lookup(hash)
	if err != nil || entry == nil {
		return nil, err
	}
	handle, err := p.blocks.BlockByHash(entry.BlockHash)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	return handle.Get().Receipts[entry.Index], nil
}

// TransactionByHash returns a mined transaction, or nil.
func (p *ReceiptProvider) TransactionByHash(hash common.Hash) (*Transaction, error) {
	entry, err := p.lookup(hash)
	if err != nil || entry == nil {
		return nil, err
	}
	handle, err := p.blocks.BlockByHash(entry.BlockHash)
	if err != nil {
		return nil, err
	}
	defer handle.Release()
	return handle.Get().Transactions[entry.Index], nil
}
