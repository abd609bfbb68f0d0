package api

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/config"
)

var (
	codeA = []byte{0x60, 0x00, 0x60, 0x00, 0xf3}
	codeB = []byte{0x60, 0x01, 0x60, 0x00, 0x52, 0x60, 0x20, 0x60, 0x00, 0xf3}
)

func (n *testNode) codeRefCount(t *testing.T, code []byte) uint64 {
	t.Helper()
	info, err := n.backend.ReadCodeInfo(n.client.BestHash(), crypto.Keccak256Hash(code))
	require.NoError(t, err)
	if info == nil {
		return 0
	}
	return info.RefCount
}

func (n *testNode) deploy(t *testing.T, from common.Address, code []byte) common.Address {
	t.Helper()
	nonce := n.call(t, &EthGetTransactionCount{Address: from}).(hexutil.Uint64)
	data := hexutil.Bytes(code)
	n.call(t, &EthSendTransaction{Tx: TransactionRequest{From: &from, Data: &data}})
	return crypto.CreateAddress(from, uint64(nonce))
}

func (n *testNode) totalIssuance(t *testing.T) *uint256.Int {
	t.Helper()
	total, err := n.backend.ReadTotalIssuance(n.client.BestHash())
	require.NoError(t, err)
	return total
}

func TestSetBalance(t *testing.T) {
	n := setupServer(t)

	tests := []struct {
		name  string
		value *big.Int
	}{
		{"whole native units", new(big.Int).Mul(big.NewInt(3), ether)},
		{"with dust", big.NewInt(1_000_000_123_456)},
		{"dust only", big.NewInt(999_999)},
		{"zero", new(big.Int)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n.call(t, &AnvilSetBalance{Address: stranger, Value: *math256FromBig(tt.value)})
			assert.Equal(t, 0, tt.value.Cmp(n.balance(t, stranger, nil)))
		})
	}
}

func TestSetBalance_OutOfRange(t *testing.T) {
	n := setupServer(t)

	err := n.callErr(t, &AnvilSetBalance{Address: stranger, Value: *math256(-1)})
	assert.Equal(t, KindInvalidParams, err.Kind)

	huge := new(big.Int).Lsh(big.NewInt(1), 256)
	err = n.callErr(t, &AnvilSetBalance{Address: stranger, Value: *math256FromBig(huge)})
	assert.Equal(t, KindInvalidParams, err.Kind)
}

func TestSetBalance_TotalIssuance(t *testing.T) {
	n := setupServer(t)
	ratio := uint256.NewInt(1_000_000)
	start := n.totalIssuance(t)

	first := new(big.Int).Mul(big.NewInt(4), ether)
	second := new(big.Int).Mul(big.NewInt(9), ether)
	n.call(t, &AnvilSetBalance{Address: stranger, Value: *math256FromBig(first)})
	n.call(t, &AnvilSetBalance{Address: stranger, Value: *math256FromBig(second)})

	secondWei, overflow := uint256.FromBig(second)
	require.False(t, overflow)
	delta := new(uint256.Int).Div(secondWei, ratio)
	assert.Equal(t, new(uint256.Int).Add(start, delta), n.totalIssuance(t))

	n.call(t, &AnvilSetBalance{Address: stranger, Value: *math256(0)})
	assert.Equal(t, start, n.totalIssuance(t))
}

func TestSetNonce(t *testing.T) {
	n := setupServer(t)

	n.call(t, &AnvilSetNonce{Address: devAccount0, Nonce: *math256(42)})
	assert.Equal(t, hexutil.Uint64(42), n.call(t, &EthGetTransactionCount{Address: devAccount0}))
	assert.Equal(t, config.DefaultGenesisBalance, n.balance(t, devAccount0, nil))

	n.call(t, &AnvilSetNonce{Address: stranger, Nonce: *math256(7)})
	assert.Equal(t, hexutil.Uint64(7), n.call(t, &EthGetTransactionCount{Address: stranger}))

	// The next transaction picks up the injected nonce.
	hash := n.call(t, &EthSendTransaction{Tx: transfer(devAccount0, stranger, ether)}).(common.Hash)
	tx, err := n.eth.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), tx.Tx.Nonce())
}

func TestSetNonce_Overflow(t *testing.T) {
	n := setupServer(t)

	err := n.callErr(t, &AnvilSetNonce{Address: devAccount0, Nonce: *math256(1 << 32)})

	assert.Equal(t, KindNonceOverflow, err.Kind)
	assert.Equal(t, ErrCodeServer, err.Code())
	assert.Equal(t, hexutil.Uint64(0), n.call(t, &EthGetTransactionCount{Address: devAccount0}))
}

func TestSetCode_NewAccount(t *testing.T) {
	n := setupServer(t)

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})

	assert.Equal(t, hexutil.Bytes(codeA), n.call(t, &EthGetCode{Address: stranger}))
	assert.Equal(t, ether, n.balance(t, stranger, nil))

	info, err := n.backend.ReadReviveAccountInfo(n.client.BestHash(), stranger)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, info.IsContract())
	assert.Equal(t, crypto.Keccak256Hash(codeA), info.Contract.CodeHash)
}

func TestSetCode_ExistingAccount(t *testing.T) {
	n := setupServer(t)
	before := n.balance(t, devAccount0, nil)

	n.call(t, &AnvilSetCode{Address: devAccount0, Code: codeA})

	assert.Equal(t, hexutil.Bytes(codeA), n.call(t, &EthGetCode{Address: devAccount0}))
	assert.Equal(t, before, n.balance(t, devAccount0, nil))
}

func TestSetCode_Overwrite(t *testing.T) {
	n := setupServer(t)
	hashA := crypto.Keccak256Hash(codeA)

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})
	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})

	best := n.client.BestHash()
	code, err := n.backend.ReadPristineCode(best, hashA)
	require.NoError(t, err)
	assert.Equal(t, codeA, code)
	codeInfo, err := n.backend.ReadCodeInfo(best, hashA)
	require.NoError(t, err)
	require.NotNil(t, codeInfo)
	assert.Equal(t, uint64(1), codeInfo.RefCount)

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeB})

	assert.Equal(t, hexutil.Bytes(codeB), n.call(t, &EthGetCode{Address: stranger}))
	code, err = n.backend.ReadPristineCode(best, hashA)
	require.NoError(t, err)
	assert.Empty(t, code)
	codeInfo, err = n.backend.ReadCodeInfo(best, hashA)
	require.NoError(t, err)
	assert.Nil(t, codeInfo)

	codeInfo, err = n.backend.ReadCodeInfo(best, crypto.Keccak256Hash(codeB))
	require.NoError(t, err)
	require.NotNil(t, codeInfo)
	assert.Equal(t, uint32(len(codeB)), codeInfo.CodeLen)
}

func TestSetCode_SharedCode(t *testing.T) {
	n := setupServer(t)
	first := n.deploy(t, devAccount0, codeA)
	second := n.deploy(t, devAccount0, codeA)
	require.Equal(t, uint64(2), n.codeRefCount(t, codeA))

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})
	assert.Equal(t, uint64(3), n.codeRefCount(t, codeA))

	// Same code again keeps the count.
	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})
	assert.Equal(t, uint64(3), n.codeRefCount(t, codeA))

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeB})
	assert.Equal(t, uint64(2), n.codeRefCount(t, codeA))
	assert.Equal(t, uint64(1), n.codeRefCount(t, codeB))

	n.call(t, &AnvilSetCode{Address: second, Code: codeB})
	assert.Equal(t, uint64(1), n.codeRefCount(t, codeA))
	assert.Equal(t, uint64(2), n.codeRefCount(t, codeB))

	assert.Equal(t, hexutil.Bytes(codeA), n.call(t, &EthGetCode{Address: first}))
	assert.Equal(t, hexutil.Bytes(codeB), n.call(t, &EthGetCode{Address: second}))
	assert.Equal(t, hexutil.Bytes(codeB), n.call(t, &EthGetCode{Address: stranger}))

	n.call(t, &AnvilSetCode{Address: first, Code: codeB})
	assert.Equal(t, uint64(0), n.codeRefCount(t, codeA))
	assert.Equal(t, uint64(3), n.codeRefCount(t, codeB))
}

func TestSetStorageAt(t *testing.T) {
	n := setupServer(t)
	value := common.HexToHash("0x2a")

	// Accounts without code have no storage.
	n.call(t, &AnvilSetStorageAt{Address: devAccount0, Slot: *math256(1), Value: value})
	assert.Equal(t, common.Hash{}, n.call(t, &EthGetStorageAt{Address: devAccount0, Slot: *math256(1)}))

	n.call(t, &AnvilSetCode{Address: stranger, Code: codeA})
	n.call(t, &AnvilSetStorageAt{Address: stranger, Slot: *math256(1), Value: value})

	assert.Equal(t, value, n.call(t, &EthGetStorageAt{Address: stranger, Slot: *math256(1)}))
	assert.Equal(t, common.Hash{}, n.call(t, &EthGetStorageAt{Address: stranger, Slot: *math256(2)}))
}

func TestSetChainID(t *testing.T) {
	n := setupServer(t)

	n.call(t, &AnvilSetChainID{ChainID: 420420})

	assert.Equal(t, hexutil.Uint64(420420), n.call(t, &EthChainID{}))
	assert.Equal(t, "420420", n.call(t, &NetVersion{}))

	// Transactions are signed for the new chain.
	hash := n.call(t, &EthSendTransaction{Tx: transfer(devAccount0, stranger, ether)}).(common.Hash)
	tx, err := n.eth.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(420420), tx.Tx.ChainId())
}
