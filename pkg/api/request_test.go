package api

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequest(t *testing.T) {
	for method := range requestTypes {
		req, ok := NewRequest(method)
		require.True(t, ok, method)
		assert.Equal(t, method, req.Method())
	}

	for alias, method := range requestAliases {
		req, ok := NewRequest(alias)
		require.True(t, ok, alias)
		assert.Equal(t, method, req.Method())
	}

	_, ok := NewRequest("eth_unknownMethod")
	assert.False(t, ok)
}

func TestMineOptions_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		timestamp *uint64
		blocks    *uint64
	}{
		{"decimal timestamp", `1700000000`, u64(1700000000), nil},
		{"hex timestamp", `"0x10"`, u64(16), nil},
		{"object", `{"timestamp": 100, "blocks": "0x3"}`, u64(100), u64(3)},
		{"blocks only", `{"blocks": 2}`, nil, u64(2)},
		{"empty object", `{}`, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts MineOptions
			require.NoError(t, json.Unmarshal([]byte(tt.input), &opts))
			assert.Equal(t, tt.timestamp, opts.Timestamp)
			assert.Equal(t, tt.blocks, opts.Blocks)
		})
	}

	var opts MineOptions
	assert.Error(t, json.Unmarshal([]byte(`[1]`), &opts))
}

func TestFilterQuery_UnmarshalJSON(t *testing.T) {
	addr := common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	topic := common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")

	var q FilterQuery
	input := `{"fromBlock": "0x1", "toBlock": "latest", "address": "` + addr.Hex() + `", "topics": ["` + topic.Hex() + `", null, ["` + topic.Hex() + `"]]}`
	require.NoError(t, json.Unmarshal([]byte(input), &q))

	require.NotNil(t, q.FromBlock)
	assert.Equal(t, rpc.BlockNumber(1), *q.FromBlock)
	assert.Equal(t, rpc.LatestBlockNumber, *q.ToBlock)
	assert.Equal(t, []common.Address{addr}, q.Addresses)
	require.Len(t, q.Topics, 3)
	assert.Equal(t, []common.Hash{topic}, q.Topics[0])
	assert.Nil(t, q.Topics[1])
	assert.Equal(t, []common.Hash{topic}, q.Topics[2])

	var list FilterQuery
	require.NoError(t, json.Unmarshal([]byte(`{"address": ["`+addr.Hex()+`", "`+addr.Hex()+`"]}`), &list))
	assert.Len(t, list.Addresses, 2)

	var both FilterQuery
	assert.Error(t, json.Unmarshal([]byte(`{"blockHash": "`+topic.Hex()+`", "fromBlock": "0x1"}`), &both))
}

func TestTransactionRequest_CallData(t *testing.T) {
	data := hexutil.Bytes{0x01}
	input := hexutil.Bytes{0x02}

	assert.Nil(t, (&TransactionRequest{}).CallData())
	assert.Equal(t, []byte{0x01}, (&TransactionRequest{Data: &data}).CallData())
	assert.Equal(t, []byte{0x02}, (&TransactionRequest{Data: &data, Input: &input}).CallData())
}
