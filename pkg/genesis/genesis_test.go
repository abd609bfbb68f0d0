package genesis

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
)

func setupRuntime(t *testing.T) *substrate.Runtime {
	rt, err := substrate.NewRuntime(substrate.RuntimeConfig{NativeToEthRatio: 1000000})
	require.NoError(t, err)
	return rt
}

func TestCreateGenesis(t *testing.T) {
	cfg := config.Default()
	cfg.GenesisTimestamp = 1700000000
	accounts := []common.Address{common.HexToAddress("0x01"), common.HexToAddress("0x02")}

	g := CreateGenesis(cfg, accounts)

	assert.Equal(t, uint64(31337), g.ChainID)
	assert.Equal(t, uint64(1700000000), g.Timestamp)
	require.Len(t, g.Alloc, 2)
	assert.Equal(t, cfg.GenesisBalance, g.Alloc[accounts[0]])
}

func TestCreateGenesis_DefaultTimestamp(t *testing.T) {
	g := CreateGenesis(config.Default(), nil)
	assert.NotZero(t, g.Timestamp)
}

func TestToState(t *testing.T) {
	rt := setupRuntime(t)
	funded := common.HexToAddress("0x01")
	g := &Genesis{
		ChainID:   420420,
		GasLimit:  30000000,
		GasPrice:  big.NewInt(1000),
		Timestamp: 1700000000,
		Alloc: map[common.Address]*big.Int{
			funded:                      big.NewInt(5000123),
			common.HexToAddress("0x02"): big.NewInt(2000000),
		},
	}

	layer, err := g.ToState(rt)
	require.NoError(t, err)
	st := substrate.NewStorage(layer)

	chainID, err := st.ChainID()
	require.NoError(t, err)
	assert.Equal(t, uint64(420420), chainID)

	ts, err := st.Timestamp()
	require.NoError(t, err)
	assert.Equal(t, uint64(1700000000000), ts)

	sys, err := st.SystemAccount(substrate.AccountIDFromAddress(funded))
	require.NoError(t, err)
	require.NotNil(t, sys)
	assert.Equal(t, uint64(5), sys.Data.Free.Uint64())
	assert.Equal(t, uint32(1), sys.Providers)

	rev, err := st.ReviveAccount(funded)
	require.NoError(t, err)
	require.NotNil(t, rev)
	assert.Equal(t, uint32(123), rev.Dust)

	total, err := st.TotalIssuance()
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(7), total)

	v, err := st.RuntimeVersion()
	require.NoError(t, err)
	assert.Equal(t, SpecName, v.SpecName)
}
