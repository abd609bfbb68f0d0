package ethrpc

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/genesis"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
	"github.com/stable-net/anvil-polkadot/pkg/txpool"
)

const (
	testKeyHex    = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	testTimestamp = uint64(1700000000)
)

var (
	testAddr  = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	testOther = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
)

func setupClient(t *testing.T) (*Client, *substrate.Client, *txpool.Pool) {
	t.Helper()
	cfg := config.Default()
	cfg.GenesisTimestamp = testTimestamp

	rt, err := substrate.NewRuntime(substrate.RuntimeConfig{NativeToEthRatio: cfg.NativeToEthRatio, BaseFee: cfg.BaseFee})
	require.NoError(t, err)
	layer, err := genesis.CreateGenesis(cfg, []common.Address{testAddr}).ToState(rt)
	require.NoError(t, err)
	sc, err := substrate.NewClient(layer, rt, 0)
	require.NoError(t, err)

	pool := txpool.NewPool(txpool.NewChainState(sc))
	client, err := NewClient(sc, pool)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, sc, pool
}

func signedTransfer(t *testing.T, nonce uint64, value int64) []byte {
	t.Helper()
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &testOther,
		Value:    big.NewInt(value),
		Gas:      21000,
		GasPrice: big.NewInt(2e9),
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(big.NewInt(int64(config.DefaultChainID))), key)
	require.NoError(t, err)
	raw, err := signed.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func mineBlock(t *testing.T, sc *substrate.Client, pool *txpool.Pool) *substrate.BuildResult {
	t.Helper()
	ts, err := sc.Runtime().Timestamp(sc.BestHash())
	require.NoError(t, err)
	res, err := sc.ImportBlock(context.Background(), ts+1000, pool.Pending())
	require.NoError(t, err)
	hashes := make([]common.Hash, 0, len(res.Included))
	for _, tx := range res.Included {
		hashes = append(hashes, tx.Hash())
	}
	pool.RemoveAll(hashes)
	return res
}

func TestClient_GenesisBlock(t *testing.T) {
	client, sc, _ := setupClient(t)

	assert.Equal(t, uint64(0), client.BlockNumber())

	block, err := client.BlockByNumber(rpc.LatestBlockNumber)
	require.NoError(t, err)
	require.NotNil(t, block)
	assert.Equal(t, sc.BestHash(), block.Hash)
	assert.Equal(t, testTimestamp, block.Timestamp)
	assert.Equal(t, types.EmptyRootHash, block.TransactionsRoot)
	assert.Empty(t, block.Transactions)

	chainID, err := client.ChainID()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultChainID, chainID)

	gasPrice, err := client.GasPrice()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultGasPrice, gasPrice)
}

func TestClient_BlockHashForTag(t *testing.T) {
	client, sc, pool := setupClient(t)
	genesisHash := sc.BestHash()
	mineBlock(t, sc, pool)
	mineBlock(t, sc, pool)
	one, _ := sc.HashAt(1)

	tests := []struct {
		name string
		tag  rpc.BlockNumberOrHash
		want common.Hash
	}{
		{"latest", rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber), sc.BestHash()},
		{"pending", rpc.BlockNumberOrHashWithNumber(rpc.PendingBlockNumber), sc.BestHash()},
		{"earliest", rpc.BlockNumberOrHashWithNumber(rpc.EarliestBlockNumber), genesisHash},
		{"finalized", rpc.BlockNumberOrHashWithNumber(rpc.FinalizedBlockNumber), sc.Info().FinalizedHash},
		{"number", rpc.BlockNumberOrHashWithNumber(1), one},
		{"hash", rpc.BlockNumberOrHashWithHash(one, true), one},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := client.BlockHashForTag(tt.tag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, hash)
		})
	}

	_, err := client.BlockHashForTag(rpc.BlockNumberOrHashWithNumber(10))
	assert.ErrorIs(t, err, ErrBlockNotFound)

	_, err = client.BlockHashForTag(rpc.BlockNumberOrHashWithHash(common.HexToHash("0xdead"), false))
	assert.ErrorIs(t, err, ErrBlockNotFound)
}

func TestClient_SendRawTransaction(t *testing.T) {
	client, sc, pool := setupClient(t)

	raw := signedTransfer(t, 0, 1000)
	hash, err := client.SendRawTransaction(raw)
	require.NoError(t, err)
	assert.Equal(t, crypto.Keccak256Hash(raw), hash)

	pending, err := client.TransactionByHash(hash)
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Nil(t, pending.BlockHash)
	assert.Equal(t, testAddr, pending.From)

	count, err := client.TransactionCount(testAddr, rpc.BlockNumberOrHashWithNumber(rpc.PendingBlockNumber))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count)
	count, err = client.TransactionCount(testAddr, rpc.BlockNumberOrHashWithNumber(rpc.LatestBlockNumber))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)

	mineBlock(t, sc, pool)

	receipt, err := client.ReceiptByHash(hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)
	assert.Equal(t, uint64(1), receipt.BlockNumber.Uint64())
	assert.Equal(t, uint(0), receipt.TransactionIndex)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	assert.Equal(t, testAddr, receipt.From)

	mined, err := client.TransactionByHash(hash)
	require.NoError(t, err)
	require.NotNil(t, mined)
	require.NotNil(t, mined.BlockNumber)
	assert.Equal(t, uint64(1), *mined.BlockNumber)

	byIndex, err := client.TransactionByBlockAndIndex(sc.BestHash(), 0)
	require.NoError(t, err)
	require.NotNil(t, byIndex)
	assert.Equal(t, hash, byIndex.Tx.Hash())

	missing, err := client.TransactionByBlockAndIndex(sc.BestHash(), 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestClient_SendRawTransaction_Invalid(t *testing.T) {
	client, _, _ := setupClient(t)

	_, err := client.SendRawTransaction([]byte{0x01, 0x02})
	assert.ErrorIs(t, err, ErrInvalidTransaction)

	_, err = client.SendRawTransaction(signedTransfer(t, 5, 1000))
	assert.ErrorIs(t, err, txpool.ErrNonceTooHigh)
}

func TestClient_ReceiptAfterRevert(t *testing.T) {
	client, sc, pool := setupClient(t)

	hash, err := client.SendRawTransaction(signedTransfer(t, 0, 1000))
	require.NoError(t, err)
	mineBlock(t, sc, pool)

	receipt, err := client.ReceiptByHash(hash)
	require.NoError(t, err)
	require.NotNil(t, receipt)

	_, _, err = sc.RevertBlocks(1)
	require.NoError(t, err)

	receipt, err = client.ReceiptByHash(hash)
	require.NoError(t, err)
	assert.Nil(t, receipt)

	tx, err := client.TransactionByHash(hash)
	require.NoError(t, err)
	assert.Nil(t, tx)
}

func TestClient_HistoricalBalance(t *testing.T) {
	client, sc, pool := setupClient(t)
	genesisHash := sc.BestHash()

	before, err := client.RuntimeAPI().Balance(genesisHash, testOther)
	require.NoError(t, err)
	assert.Equal(t, int64(0), before.Int64())

	_, err = client.SendRawTransaction(signedTransfer(t, 0, 5000000))
	require.NoError(t, err)
	mineBlock(t, sc, pool)

	after, err := client.RuntimeAPI().Balance(sc.BestHash(), testOther)
	require.NoError(t, err)
	assert.Equal(t, int64(5000000), after.Int64())

	historical, err := client.RuntimeAPI().Balance(genesisHash, testOther)
	require.NoError(t, err)
	assert.Equal(t, int64(0), historical.Int64())
}

func TestClient_EstimateGas(t *testing.T) {
	client, sc, _ := setupClient(t)

	gas, err := client.RuntimeAPI().EstimateGas(sc.BestHash(), &substrate.CallArgs{From: &testAddr, To: &testOther})
	require.NoError(t, err)
	assert.Equal(t, uint64(21000), gas)

	out, err := client.RuntimeAPI().Call(sc.BestHash(), &substrate.CallArgs{To: &testOther})
	require.NoError(t, err)
	assert.Empty(t, out)

	code, err := client.RuntimeAPI().Code(sc.BestHash(), testOther)
	require.NoError(t, err)
	assert.NotNil(t, code)
	assert.Empty(t, code)
}

func cachedLatest(p *BlockInfoProvider) uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest.Get().Number
}

func TestClient_SubscribeAndWatch(t *testing.T) {
	client, sc, pool := setupClient(t)

	// Imported before the subscription exists.
	mineBlock(t, sc, pool)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.SubscribeAndWatch(ctx, SubscribeBestBlocks) }()

	latestNumber := func() uint64 { return cachedLatest(client.Blocks()) }
	assert.Eventually(t, func() bool { return latestNumber() == 1 }, time.Second, 10*time.Millisecond)

	mineBlock(t, sc, pool)
	assert.Eventually(t, func() bool { return latestNumber() == 2 }, time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestBlockInfoProvider_UniqueOwnership(t *testing.T) {
	client, sc, pool := setupClient(t)
	mineBlock(t, sc, pool)

	blocks := client.Blocks()

	fresh, err := blocks.BlockByNumber(1)
	require.NoError(t, err)
	block, ok := fresh.TryUnwrap()
	require.True(t, ok)
	blocks.UpdateLatest(block)

	cached, err := blocks.BlockByHash(block.Hash)
	require.NoError(t, err)
	_, ok = cached.TryUnwrap()
	assert.False(t, ok)
	cached.Release()

	assert.Equal(t, uint64(1), cachedLatest(blocks))
}

func TestClient_FeeHistory(t *testing.T) {
	client, sc, pool := setupClient(t)

	_, err := client.SendRawTransaction(signedTransfer(t, 0, 1000))
	require.NoError(t, err)
	mineBlock(t, sc, pool)
	mineBlock(t, sc, pool)

	history, err := client.FeeHistory(10, rpc.LatestBlockNumber, []float64{50})
	require.NoError(t, err)
	assert.Equal(t, int64(0), history.OldestBlock.ToInt().Int64())
	assert.Len(t, history.BaseFee, 4)
	assert.Len(t, history.GasUsedRatio, 3)
	require.Len(t, history.Reward, 3)
	assert.Equal(t, int64(1e9), history.Reward[1][0].ToInt().Int64())
	assert.Equal(t, int64(0), history.Reward[2][0].ToInt().Int64())

	_, err = client.FeeHistory(1, rpc.LatestBlockNumber, []float64{60, 10})
	assert.ErrorIs(t, err, ErrInvalidPercentile)
}

func TestClient_Logs(t *testing.T) {
	client, sc, pool := setupClient(t)
	mineBlock(t, sc, pool)

	from, to := rpc.BlockNumber(0), rpc.LatestBlockNumber
	logs, err := client.Logs(&LogFilter{FromBlock: &from, ToBlock: &to})
	require.NoError(t, err)
	assert.Empty(t, logs)

	high, low := rpc.BlockNumber(1), rpc.BlockNumber(0)
	_, err = client.Logs(&LogFilter{FromBlock: &high, ToBlock: &low})
	assert.ErrorIs(t, err, ErrInvalidBlockRange)
}
