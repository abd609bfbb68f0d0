package miner

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/blockchain"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

type mockImporter struct {
	timestamps []uint64
	batches    [][]*types.Transaction
	invalid    map[common.Hash]error
	mu         sync.Mutex
}

func (m *mockImporter) ImportBlock(ctx context.Context, timestampMs uint64, txs []*types.Transaction) (*substrate.BuildResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timestamps = append(m.timestamps, timestampMs)
	m.batches = append(m.batches, txs)

	res := &substrate.BuildResult{Invalid: make(map[common.Hash]error)}
	for _, tx := range txs {
		if err, ok := m.invalid[tx.Hash()]; ok {
			res.Invalid[tx.Hash()] = err
			continue
		}
		res.Included = append(res.Included, tx)
	}
	res.Block = blockchain.NewBlock(&blockchain.Header{Number: uint64(len(m.timestamps))}, nil)
	return res, nil
}

func (m *mockImporter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.timestamps)
}

type mockPool struct {
	txs     []*types.Transaction
	removed []common.Hash
	mu      sync.Mutex
}

func (m *mockPool) Ready(*big.Int) ([]*types.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.Transaction(nil), m.txs...), nil
}

func (m *mockPool) RemoveAll(hashes []common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.removed = append(m.removed, hashes...)
	drop := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		drop[h] = true
	}
	kept := m.txs[:0]
	for _, tx := range m.txs {
		if !drop[tx.Hash()] {
			kept = append(kept, tx)
		}
	}
	m.txs = kept
}

func setupEngine(t *testing.T, mode MiningMode) (*Engine, *mockImporter, *mockPool) {
	t.Helper()
	importer := &mockImporter{}
	pool := &mockPool{}
	engine := NewEngine(importer, pool, Config{
		Mode:          mode,
		LastTimestamp: testNow - 10,
		Now:           fixedClock(testNow),
	})
	return engine, importer, pool
}

func newTx(nonce uint64) *types.Transaction {
	return types.NewTransaction(nonce, common.Address{}, big.NewInt(1), 21000, big.NewInt(1e9), nil)
}

func TestEngine_Modes(t *testing.T) {
	engine, _, _ := setupEngine(t, ModeAutomine)
	assert.True(t, engine.IsAutomine())

	engine.SetAutomine(false)
	assert.Equal(t, ModeManual, engine.Mode())

	engine.SetIntervalMining(2 * time.Second)
	interval, ok := engine.IntervalMining()
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, interval)
	assert.False(t, engine.IsAutomine())

	engine.SetIntervalMining(0)
	_, ok = engine.IntervalMining()
	assert.False(t, ok)
	assert.Equal(t, ModeManual, engine.Mode())

	engine.SetAutomine(true)
	assert.Equal(t, ModeAutomine, engine.Mode())
}

func TestEngine_IntervalWithoutBlockTimeFallsBackToManual(t *testing.T) {
	engine := NewEngine(&mockImporter{}, &mockPool{}, Config{Mode: ModeInterval})
	assert.Equal(t, ModeManual, engine.Mode())
}

func TestEngine_MineWithInterval(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeManual)

	require.NoError(t, engine.Mine(context.Background(), 3, 10*time.Second))

	assert.Equal(t, []uint64{
		(testNow + 10) * 1000,
		(testNow + 20) * 1000,
		(testNow + 30) * 1000,
	}, importer.timestamps)
	assert.Equal(t, uint64(testNow+30), engine.LastTimestamp())
}

func TestEngine_MineRemovesIncludedAndInvalid(t *testing.T) {
	engine, importer, pool := setupEngine(t, ModeManual)
	good, bad := newTx(0), newTx(1)
	pool.txs = []*types.Transaction{good, bad}
	importer.invalid = map[common.Hash]error{bad.Hash(): errors.New("bad")}

	require.NoError(t, engine.Mine(context.Background(), 1, 0))

	assert.Empty(t, pool.txs)
	assert.ElementsMatch(t, []common.Hash{good.Hash(), bad.Hash()}, pool.removed)
	require.Len(t, importer.batches, 1)
	assert.Len(t, importer.batches[0], 2)
}

func TestEngine_EvmMine(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeManual)

	mined, err := engine.EvmMine(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, mined)

	blocks, ts := uint64(2), uint64(testNow+100)
	mined, err = engine.EvmMine(context.Background(), &EvmMineOptions{Timestamp: &ts, Blocks: &blocks})
	require.NoError(t, err)
	assert.Equal(t, []uint64{2, 3}, mined)
	assert.Equal(t, 3, importer.count())
	assert.Equal(t, uint64(testNow+100)*1000, importer.timestamps[1])
	assert.Equal(t, uint64(testNow+101)*1000, importer.timestamps[2])

	old := uint64(testNow)
	_, err = engine.EvmMine(context.Background(), &EvmMineOptions{Timestamp: &old})
	assert.ErrorIs(t, err, ErrTimestampTooLow)
	assert.Equal(t, 3, importer.count())

	zero := uint64(0)
	mined, err = engine.EvmMine(context.Background(), &EvmMineOptions{Blocks: &zero})
	require.NoError(t, err)
	assert.Empty(t, mined)
}

func TestEngine_EvmMine_Concurrent(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeManual)
	blocks := uint64(3)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			assert.NoError(t, engine.Mine(context.Background(), 1, 0))
		}
	}()

	for i := 0; i < 20; i++ {
		mined, err := engine.EvmMine(context.Background(), &EvmMineOptions{Blocks: &blocks})
		require.NoError(t, err)
		require.Len(t, mined, 3)
		assert.Equal(t, mined[0]+1, mined[1])
		assert.Equal(t, mined[1]+1, mined[2])
	}
	wg.Wait()
	assert.Equal(t, 80, importer.count())
}

func TestEngine_OnTransaction(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeAutomine)

	require.NoError(t, engine.OnTransaction(context.Background()))
	assert.Equal(t, 1, importer.count())

	engine.SetAutomine(false)
	require.NoError(t, engine.OnTransaction(context.Background()))
	assert.Equal(t, 1, importer.count())
}

func TestEngine_ResetTime(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeManual)
	require.NoError(t, engine.Mine(context.Background(), 1, time.Hour))

	engine.ResetTime(testNow - 5)

	assert.Equal(t, uint64(testNow-5), engine.LastTimestamp())
	require.NoError(t, engine.Mine(context.Background(), 1, 0))
	assert.Equal(t, uint64(testNow-4)*1000, importer.timestamps[1])
}

func TestEngine_IntervalMining(t *testing.T) {
	importer := &mockImporter{}
	engine := NewEngine(importer, &mockPool{}, Config{Mode: ModeInterval, BlockTime: 10 * time.Millisecond})

	require.NoError(t, engine.Start(context.Background()))
	assert.ErrorIs(t, engine.Start(context.Background()), ErrAlreadyRunning)

	assert.Eventually(t, func() bool { return importer.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, engine.Stop())
	assert.ErrorIs(t, engine.Stop(), ErrNotRunning)
}

func TestEngine_PauseBlocksProduction(t *testing.T) {
	engine, importer, _ := setupEngine(t, ModeManual)

	err := engine.Pause(func() error {
		done := make(chan struct{})
		go func() {
			_ = engine.Mine(context.Background(), 1, 0)
			close(done)
		}()
		select {
		case <-done:
			t.Error("block produced while paused")
		case <-time.After(50 * time.Millisecond):
		}
		return nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return importer.count() == 1 }, time.Second, 5*time.Millisecond)
}
