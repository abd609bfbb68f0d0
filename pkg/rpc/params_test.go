package rpc

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stable-net/anvil-polkadot/pkg/api"
)

func TestDecodeParams(t *testing.T) {
	addr := common.HexToAddress("0x000000000000000000000000000000000000dEaD")

	tests := []struct {
		name    string
		params  string
		wantErr bool
		check   func(t *testing.T, req *api.AnvilSetStorageAt)
	}{
		{
			name:   "all arguments",
			params: `["` + addr.Hex() + `", "0x1", "0x000000000000000000000000000000000000000000000000000000000000002a"]`,
			check: func(t *testing.T, req *api.AnvilSetStorageAt) {
				assert.Equal(t, addr, req.Address)
				assert.Equal(t, int64(1), (*big.Int)(&req.Slot).Int64())
				assert.Equal(t, common.HexToHash("0x2a"), req.Value)
			},
		},
		{name: "short storage value", params: `["` + addr.Hex() + `", "7", "0x00"]`, wantErr: true},
		{name: "missing value", params: `["` + addr.Hex() + `", "0x1"]`, wantErr: true},
		{name: "not an array", params: `{"address": "` + addr.Hex() + `"}`, wantErr: true},
		{name: "no params", params: ``, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req api.AnvilSetStorageAt
			err := decodeParams(json.RawMessage(tt.params), &req)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, &req)
		})
	}
}

func TestDecodeParams_Optional(t *testing.T) {
	var mine api.AnvilMine
	require.NoError(t, decodeParams(json.RawMessage(`null`), &mine))
	assert.Nil(t, mine.Blocks)
	assert.Nil(t, mine.Interval)

	require.NoError(t, decodeParams(json.RawMessage(`["0x3", null]`), &mine))
	require.NotNil(t, mine.Blocks)
	assert.Equal(t, int64(3), (*big.Int)(mine.Blocks).Int64())
	assert.Nil(t, mine.Interval)

	var evmMine api.EvmMine
	require.NoError(t, decodeParams(json.RawMessage(`[{"timestamp": 100, "blocks": 2}]`), &evmMine))
	require.NotNil(t, evmMine.Options)
	assert.Equal(t, uint64(100), *evmMine.Options.Timestamp)
	assert.Equal(t, uint64(2), *evmMine.Options.Blocks)
}

func TestDecodeParams_NotAStruct(t *testing.T) {
	var n int
	assert.Error(t, decodeParams(json.RawMessage(`[]`), &n))
}
