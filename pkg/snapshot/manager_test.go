package snapshot

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/genesis"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

var testAddr = common.HexToAddress("0x1234567890123456789012345678901234567890")

type mockPool struct {
	cleared int
}

func (m *mockPool) Clear() { m.cleared++ }

func setupSnapshot(t *testing.T) (*Manager, *substrate.Client, *mockPool) {
	t.Helper()
	cfg := config.Default()
	cfg.GenesisTimestamp = 1700000000

	rt, err := substrate.NewRuntime(substrate.RuntimeConfig{NativeToEthRatio: cfg.NativeToEthRatio})
	require.NoError(t, err)
	layer, err := genesis.CreateGenesis(cfg, []common.Address{testAddr}).ToState(rt)
	require.NoError(t, err)
	client, err := substrate.NewClient(layer, rt, 0)
	require.NoError(t, err)

	pool := &mockPool{}
	return NewManager(client, pool), client, pool
}

func mineBlocks(t *testing.T, client *substrate.Client, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts, err := client.Runtime().Timestamp(client.BestHash())
		require.NoError(t, err)
		_, err = client.ImportBlock(context.Background(), ts+1000, nil)
		require.NoError(t, err)
	}
}

func setNonce(t *testing.T, client *substrate.Client, nonce uint32) {
	t.Helper()
	id := substrate.AccountIDFromAddress(testAddr)
	err := client.WithOverlay(client.BestHash(), func(st *substrate.Storage) error {
		info, err := st.SystemAccount(id)
		if err != nil {
			return err
		}
		if info == nil {
			info = substrate.NewSystemAccountInfo()
		}
		info.Nonce = nonce
		return st.SetSystemAccount(id, info)
	})
	require.NoError(t, err)
}

func nonceOf(t *testing.T, client *substrate.Client) uint64 {
	t.Helper()
	nonce, err := client.Runtime().Nonce(client.BestHash(), testAddr)
	require.NoError(t, err)
	return nonce
}

func TestSnapshot_IDsStartAtZero(t *testing.T) {
	manager, _, _ := setupSnapshot(t)

	first, err := manager.Snapshot()
	require.NoError(t, err)
	second, err := manager.Snapshot()
	require.NoError(t, err)

	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)
}

func TestSnapshot_RevertUnwindsBlocks(t *testing.T) {
	manager, client, pool := setupSnapshot(t)
	mineBlocks(t, client, 2)

	id, err := manager.Snapshot()
	require.NoError(t, err)
	mineBlocks(t, client, 3)
	require.Equal(t, uint64(5), client.BestNumber())

	info, err := manager.RevertTo(id)

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(3), info.Reverted)
	assert.Equal(t, uint64(2), info.Info.BestNumber)
	assert.Equal(t, uint64(2), client.BestNumber())
	assert.Equal(t, 1, pool.cleared)
}

func TestSnapshot_RevertRestoresInjectedState(t *testing.T) {
	manager, client, _ := setupSnapshot(t)
	setNonce(t, client, 1)

	id, err := manager.Snapshot()
	require.NoError(t, err)
	setNonce(t, client, 7)
	require.Equal(t, uint64(7), nonceOf(t, client))

	info, err := manager.RevertTo(id)

	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, uint64(0), info.Reverted)
	assert.Equal(t, uint64(1), nonceOf(t, client))
}

func TestSnapshot_RevertConsumesLaterSnapshots(t *testing.T) {
	manager, client, _ := setupSnapshot(t)

	first, err := manager.Snapshot()
	require.NoError(t, err)
	mineBlocks(t, client, 1)
	second, err := manager.Snapshot()
	require.NoError(t, err)

	info, err := manager.RevertTo(first)
	require.NoError(t, err)
	require.NotNil(t, info)

	info, err = manager.RevertTo(second)
	assert.NoError(t, err)
	assert.Nil(t, info)

	info, err = manager.RevertTo(first)
	assert.NoError(t, err)
	assert.Nil(t, info)
}

func TestSnapshot_RevertUnknown(t *testing.T) {
	manager, _, pool := setupSnapshot(t)

	info, err := manager.RevertTo(42)

	assert.NoError(t, err)
	assert.Nil(t, info)
	assert.Equal(t, 0, pool.cleared)
}

func TestSnapshot_RevertToNonCanonicalBlock(t *testing.T) {
	manager, client, _ := setupSnapshot(t)
	mineBlocks(t, client, 2)

	id, err := manager.Snapshot()
	require.NoError(t, err)

	_, err = manager.Rollback(1)
	require.NoError(t, err)
	// A replacement block with a different timestamp takes the snapshot's height.
	_, err = client.ImportBlock(context.Background(), 1700000000000+60000, nil)
	require.NoError(t, err)
	require.Equal(t, uint64(2), client.BestNumber())

	_, err = manager.RevertTo(id)
	assert.ErrorIs(t, err, ErrNoSuchState)
}

func TestRollback(t *testing.T) {
	manager, client, pool := setupSnapshot(t)
	mineBlocks(t, client, 3)

	info, err := manager.Rollback(2)

	require.NoError(t, err)
	assert.Equal(t, uint64(2), info.Reverted)
	assert.Equal(t, uint64(1), info.Info.BestNumber)
	assert.Equal(t, uint64(1), client.BestNumber())
	assert.Equal(t, 1, pool.cleared)
}

func TestRollback_TooDeep(t *testing.T) {
	manager, client, _ := setupSnapshot(t)
	mineBlocks(t, client, 1)

	_, err := manager.Rollback(2)

	assert.ErrorIs(t, err, ErrInvalidDepth)
	assert.Equal(t, uint64(1), client.BestNumber())
}

func TestRollback_RestoresHistoricalBalance(t *testing.T) {
	manager, client, _ := setupSnapshot(t)
	rt := client.Runtime()
	before, err := rt.Balance(client.BestHash(), testAddr)
	require.NoError(t, err)

	mineBlocks(t, client, 1)
	err = client.WithOverlay(client.BestHash(), func(st *substrate.Storage) error {
		info := substrate.NewSystemAccountInfo()
		info.Data.Free = uint256.NewInt(1)
		return st.SetSystemAccount(substrate.AccountIDFromAddress(testAddr), info)
	})
	require.NoError(t, err)

	_, err = manager.Rollback(1)
	require.NoError(t, err)

	after, err := rt.Balance(client.BestHash(), testAddr)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}
