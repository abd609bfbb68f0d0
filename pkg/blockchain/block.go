package blockchain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rlp"
	"golang.org/x/crypto/blake2b"
)

// Header is a Substrate block header.
type Header struct {
	ParentHash     common.Hash
	Number         uint64
	StateRoot      common.Hash
	ExtrinsicsRoot common.Hash
	Digest         []byte
}

// Hash returns the blake2-256 hash of the encoded header.
func (h *Header) Hash() common.Hash {
	enc, err := rlp.EncodeToBytes(h)
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(blake2b.Sum256(enc))
}

// Block is a header plus its extrinsics. Every extrinsic is the raw
// payload of a signed Ethereum transaction.
type Block struct {
	Header     *Header
	Extrinsics [][]byte
}

// NewBlock assembles a block and fills in its extrinsics root.
func NewBlock(header *Header, extrinsics [][]byte) *Block {
	h := *header
	h.ExtrinsicsRoot = ExtrinsicsRoot(extrinsics)
	return &Block{Header: &h, Extrinsics: extrinsics}
}

// Hash returns the block hash.
func (b *Block) Hash() common.Hash {
	return b.Header.Hash()
}

// Number returns the block number.
func (b *Block) Number() uint64 {
	return b.Header.Number
}

// ParentHash returns the parent block hash.
func (b *Block) ParentHash() common.Hash {
	return b.Header.ParentHash
}

// ExtrinsicsRoot hashes the ordered extrinsic list.
func ExtrinsicsRoot(extrinsics [][]byte) common.Hash {
	if len(extrinsics) == 0 {
		return common.Hash{}
	}
	enc, err := rlp.EncodeToBytes(extrinsics)
	if err != nil {
		return common.Hash{}
	}
	return common.Hash(blake2b.Sum256(enc))
}
