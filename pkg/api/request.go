package api

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"
)

// EthRequest is a decoded JSON-RPC request. The set of requests is closed;
// every implementation lives in this file.
type EthRequest interface {
	// Method returns the JSON-RPC method name of the request.
	Method() string
	isEthRequest()
}

// Message carries a request to the server and the channel its response is
// delivered on. Reply must be buffered.
type Message struct {
	Request EthRequest
	Reply   chan<- ResponseResult
}

// ResponseResult is the outcome of a request: a result or an error.
type ResponseResult struct {
	Result interface{}
	Error  *Error
}

// Success returns a successful response.
func Success(result interface{}) ResponseResult {
	return ResponseResult{Result: result}
}

// Failure returns an error response.
func Failure(err *Error) ResponseResult {
	return ResponseResult{Error: err}
}

// TransactionRequest is the transaction object of eth_sendTransaction,
// eth_call and eth_estimateGas.
type TransactionRequest struct {
	From                 *common.Address   `json:"from"`
	To                   *common.Address   `json:"to"`
	Gas                  *hexutil.Uint64   `json:"gas"`
	GasPrice             *hexutil.Big      `json:"gasPrice"`
	MaxFeePerGas         *hexutil.Big      `json:"maxFeePerGas"`
	MaxPriorityFeePerGas *hexutil.Big      `json:"maxPriorityFeePerGas"`
	Value                *hexutil.Big      `json:"value"`
	Nonce                *hexutil.Uint64   `json:"nonce"`
	Data                 *hexutil.Bytes    `json:"data"`
	Input                *hexutil.Bytes    `json:"input"`
	AccessList           *types.AccessList `json:"accessList"`
	ChainID              *hexutil.Big      `json:"chainId"`
	Type                 *hexutil.Uint64   `json:"type"`
}

// CallData returns the input of the request, preferring input over data.
func (r *TransactionRequest) CallData() []byte {
	if r.Input != nil {
		return *r.Input
	}
	if r.Data != nil {
		return *r.Data
	}
	return nil
}

// MineOptions is the parameter of evm_mine: either a timestamp or an object.
type MineOptions struct {
	Timestamp *uint64
	Blocks    *uint64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *MineOptions) UnmarshalJSON(data []byte) error {
	var ts math.HexOrDecimal64
	if err := json.Unmarshal(data, &ts); err == nil {
		v := uint64(ts)
		o.Timestamp = &v
		return nil
	}
	var obj struct {
		Timestamp *math.HexOrDecimal64 `json:"timestamp"`
		Blocks    *math.HexOrDecimal64 `json:"blocks"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("invalid mine options: %w", err)
	}
	if obj.Timestamp != nil {
		v := uint64(*obj.Timestamp)
		o.Timestamp = &v
	}
	if obj.Blocks != nil {
		v := uint64(*obj.Blocks)
		o.Blocks = &v
	}
	return nil
}

// FilterQuery is the filter object of eth_getLogs.
type FilterQuery struct {
	BlockHash *common.Hash
	FromBlock *rpc.BlockNumber
	ToBlock   *rpc.BlockNumber
	Addresses []common.Address
	Topics    [][]common.Hash
}

// UnmarshalJSON implements json.Unmarshaler.
func (q *FilterQuery) UnmarshalJSON(data []byte) error {
	var raw struct {
		BlockHash *common.Hash      `json:"blockHash"`
		FromBlock *rpc.BlockNumber  `json:"fromBlock"`
		ToBlock   *rpc.BlockNumber  `json:"toBlock"`
		Address   json.RawMessage   `json:"address"`
		Topics    []json.RawMessage `json:"topics"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.BlockHash != nil && (raw.FromBlock != nil || raw.ToBlock != nil) {
		return fmt.Errorf("cannot specify both blockHash and fromBlock/toBlock")
	}
	q.BlockHash, q.FromBlock, q.ToBlock = raw.BlockHash, raw.FromBlock, raw.ToBlock

	if len(raw.Address) > 0 && string(raw.Address) != "null" {
		var single common.Address
		if err := json.Unmarshal(raw.Address, &single); err == nil {
			q.Addresses = []common.Address{single}
		} else if err := json.Unmarshal(raw.Address, &q.Addresses); err != nil {
			return fmt.Errorf("invalid address filter: %w", err)
		}
	}

	q.Topics = make([][]common.Hash, len(raw.Topics))
	for i, t := range raw.Topics {
		if len(t) == 0 || string(t) == "null" {
			continue
		}
		var single common.Hash
		if err := json.Unmarshal(t, &single); err == nil {
			q.Topics[i] = []common.Hash{single}
			continue
		}
		if err := json.Unmarshal(t, &q.Topics[i]); err != nil {
			return fmt.Errorf("invalid topic %d: %w", i, err)
		}
	}
	return nil
}

// Requests. Field order is the positional parameter order; pointer fields
// are optional.
type (
	EthChainID     struct{}
	EthBlockNumber struct{}
	EthGetBalance  struct {
		Address common.Address
		Block   *rpc.BlockNumberOrHash
	}
	EthGetStorageAt struct {
		Address common.Address
		Slot    math.HexOrDecimal256
		Block   *rpc.BlockNumberOrHash
	}
	EthGetCode struct {
		Address common.Address
		Block   *rpc.BlockNumberOrHash
	}
	EthGetTransactionCount struct {
		Address common.Address
		Block   *rpc.BlockNumberOrHash
	}
	EthGetBlockByHash struct {
		Hash   common.Hash
		FullTx bool
	}
	EthGetBlockByNumber struct {
		Number rpc.BlockNumber
		FullTx bool
	}
	EthGetBlockTransactionCountByHash struct {
		Hash common.Hash
	}
	EthGetBlockTransactionCountByNumber struct {
		Number rpc.BlockNumber
	}
	EthGetTransactionByHash struct {
		Hash common.Hash
	}
	EthGetTransactionByBlockHashAndIndex struct {
		Hash  common.Hash
		Index hexutil.Uint64
	}
	EthGetTransactionByBlockNumberAndIndex struct {
		Number rpc.BlockNumber
		Index  hexutil.Uint64
	}
	EthGetTransactionReceipt struct {
		Hash common.Hash
	}
	EthCall struct {
		Call  TransactionRequest
		Block *rpc.BlockNumberOrHash
	}
	EthEstimateGas struct {
		Call  TransactionRequest
		Block *rpc.BlockNumberOrHash
	}
	EthSendTransaction struct {
		Tx TransactionRequest
	}
	EthSendUnsignedTransaction struct {
		Tx TransactionRequest
	}
	EthSendRawTransaction struct {
		Data hexutil.Bytes
	}
	EthGetLogs struct {
		Filter FilterQuery
	}
	EthFeeHistory struct {
		BlockCount        math.HexOrDecimal64
		NewestBlock       rpc.BlockNumber
		RewardPercentiles []float64
	}
	EthGasPrice             struct{}
	EthMaxPriorityFeePerGas struct{}
	EthAccounts             struct{}
	EthSyncing              struct{}
	NetListening            struct{}
	NetVersion              struct{}
	Web3ClientVersion       struct{}
	Web3Sha3                struct {
		Data hexutil.Bytes
	}

	AnvilMine struct {
		Blocks   *math.HexOrDecimal256
		Interval *math.HexOrDecimal256
	}
	EvmMine struct {
		Options *MineOptions
	}
	EvmMineDetailed struct {
		Options *MineOptions
	}
	EvmSetAutomine struct {
		Enabled bool
	}
	AnvilGetAutomine     struct{}
	EvmSetIntervalMining struct {
		Interval math.HexOrDecimal256
	}
	AnvilGetIntervalMining         struct{}
	AnvilSetBlockTimestampInterval struct {
		Seconds math.HexOrDecimal256
	}
	AnvilRemoveBlockTimestampInterval struct{}
	EvmSetNextBlockTimestamp          struct {
		Timestamp math.HexOrDecimal256
	}
	EvmIncreaseTime struct {
		Seconds math.HexOrDecimal256
	}
	EvmSetTime struct {
		Timestamp math.HexOrDecimal256
	}

	AnvilImpersonateAccount struct {
		Address common.Address
	}
	AnvilStopImpersonatingAccount struct {
		Address common.Address
	}
	AnvilAutoImpersonateAccount struct {
		Enabled bool
	}

	EvmSnapshot struct{}
	EvmRevert   struct {
		ID math.HexOrDecimal256
	}
	AnvilRollback struct {
		Depth *math.HexOrDecimal64
	}

	AnvilSetBalance struct {
		Address common.Address
		Value   math.HexOrDecimal256
	}
	AnvilSetNonce struct {
		Address common.Address
		Nonce   math.HexOrDecimal256
	}
	AnvilSetCode struct {
		Address common.Address
		Code    hexutil.Bytes
	}
	AnvilSetStorageAt struct {
		Address common.Address
		Slot    math.HexOrDecimal256
		Value   common.Hash
	}
	AnvilSetChainID struct {
		ChainID math.HexOrDecimal64
	}
	AnvilSetLoggingEnabled struct {
		Enabled bool
	}

	AnvilDropTransaction struct {
		Hash common.Hash
	}
	AnvilDropAllTransactions struct{}
	TxPoolStatus             struct{}

	EthSign struct {
		Address common.Address
		Data    hexutil.Bytes
	}
	AnvilReset struct {
		Options *json.RawMessage
	}
	AnvilDumpState struct{}
	AnvilLoadState struct {
		State hexutil.Bytes
	}
	AnvilEnableTraces     struct{}
	DebugTraceTransaction struct {
		Hash    common.Hash
		Options *json.RawMessage
	}
)

var requestTypes = map[string]func() EthRequest{
	"eth_chainId":                             func() EthRequest { return &EthChainID{} },
	"eth_blockNumber":                         func() EthRequest { return &EthBlockNumber{} },
	"eth_getBalance":                          func() EthRequest { return &EthGetBalance{} },
	"eth_getStorageAt":                        func() EthRequest { return &EthGetStorageAt{} },
	"eth_getCode":                             func() EthRequest { return &EthGetCode{} },
	"eth_getTransactionCount":                 func() EthRequest { return &EthGetTransactionCount{} },
	"eth_getBlockByHash":                      func() EthRequest { return &EthGetBlockByHash{} },
	"eth_getBlockByNumber":                    func() EthRequest { return &EthGetBlockByNumber{} },
	"eth_getBlockTransactionCountByHash":      func() EthRequest { return &EthGetBlockTransactionCountByHash{} },
	"eth_getBlockTransactionCountByNumber":    func() EthRequest { return &EthGetBlockTransactionCountByNumber{} },
	"eth_getTransactionByHash":                func() EthRequest { return &EthGetTransactionByHash{} },
	"eth_getTransactionByBlockHashAndIndex":   func() EthRequest { return &EthGetTransactionByBlockHashAndIndex{} },
	"eth_getTransactionByBlockNumberAndIndex": func() EthRequest { return &EthGetTransactionByBlockNumberAndIndex{} },
	"eth_getTransactionReceipt":               func() EthRequest { return &EthGetTransactionReceipt{} },
	"eth_call":                                func() EthRequest { return &EthCall{} },
	"eth_estimateGas":                         func() EthRequest { return &EthEstimateGas{} },
	"eth_sendTransaction":                     func() EthRequest { return &EthSendTransaction{} },
	"eth_sendUnsignedTransaction":             func() EthRequest { return &EthSendUnsignedTransaction{} },
	"eth_sendRawTransaction":                  func() EthRequest { return &EthSendRawTransaction{} },
	"eth_getLogs":                             func() EthRequest { return &EthGetLogs{} },
	"eth_feeHistory":                          func() EthRequest { return &EthFeeHistory{} },
	"eth_gasPrice":                            func() EthRequest { return &EthGasPrice{} },
	"eth_maxPriorityFeePerGas":                func() EthRequest { return &EthMaxPriorityFeePerGas{} },
	"eth_accounts":                            func() EthRequest { return &EthAccounts{} },
	"eth_syncing":                             func() EthRequest { return &EthSyncing{} },
	"net_listening":                           func() EthRequest { return &NetListening{} },
	"net_version":                             func() EthRequest { return &NetVersion{} },
	"web3_clientVersion":                      func() EthRequest { return &Web3ClientVersion{} },
	"web3_sha3":                               func() EthRequest { return &Web3Sha3{} },

	"anvil_mine":                         func() EthRequest { return &AnvilMine{} },
	"evm_mine":                           func() EthRequest { return &EvmMine{} },
	"evm_mine_detailed":                  func() EthRequest { return &EvmMineDetailed{} },
	"evm_setAutomine":                    func() EthRequest { return &EvmSetAutomine{} },
	"anvil_getAutomine":                  func() EthRequest { return &AnvilGetAutomine{} },
	"evm_setIntervalMining":              func() EthRequest { return &EvmSetIntervalMining{} },
	"anvil_getIntervalMining":            func() EthRequest { return &AnvilGetIntervalMining{} },
	"anvil_setBlockTimestampInterval":    func() EthRequest { return &AnvilSetBlockTimestampInterval{} },
	"anvil_removeBlockTimestampInterval": func() EthRequest { return &AnvilRemoveBlockTimestampInterval{} },
	"evm_setNextBlockTimestamp":          func() EthRequest { return &EvmSetNextBlockTimestamp{} },
	"evm_increaseTime":                   func() EthRequest { return &EvmIncreaseTime{} },
	"evm_setTime":                        func() EthRequest { return &EvmSetTime{} },
	"anvil_impersonateAccount":           func() EthRequest { return &AnvilImpersonateAccount{} },
	"anvil_stopImpersonatingAccount":     func() EthRequest { return &AnvilStopImpersonatingAccount{} },
	"anvil_autoImpersonateAccount":       func() EthRequest { return &AnvilAutoImpersonateAccount{} },
	"evm_snapshot":                       func() EthRequest { return &EvmSnapshot{} },
	"evm_revert":                         func() EthRequest { return &EvmRevert{} },
	"anvil_rollback":                     func() EthRequest { return &AnvilRollback{} },
	"anvil_setBalance":                   func() EthRequest { return &AnvilSetBalance{} },
	"anvil_setNonce":                     func() EthRequest { return &AnvilSetNonce{} },
	"anvil_setCode":                      func() EthRequest { return &AnvilSetCode{} },
	"anvil_setStorageAt":                 func() EthRequest { return &AnvilSetStorageAt{} },
	"anvil_setChainId":                   func() EthRequest { return &AnvilSetChainID{} },
	"anvil_setLoggingEnabled":            func() EthRequest { return &AnvilSetLoggingEnabled{} },
	"anvil_dropTransaction":              func() EthRequest { return &AnvilDropTransaction{} },
	"anvil_dropAllTransactions":          func() EthRequest { return &AnvilDropAllTransactions{} },
	"txpool_status":                      func() EthRequest { return &TxPoolStatus{} },

	"eth_sign":               func() EthRequest { return &EthSign{} },
	"anvil_reset":            func() EthRequest { return &AnvilReset{} },
	"anvil_dumpState":        func() EthRequest { return &AnvilDumpState{} },
	"anvil_loadState":        func() EthRequest { return &AnvilLoadState{} },
	"anvil_enableTraces":     func() EthRequest { return &AnvilEnableTraces{} },
	"debug_traceTransaction": func() EthRequest { return &DebugTraceTransaction{} },
}

// Aliases accepted for anvil_ and hardhat_ style clients.
var requestAliases = map[string]string{
	"anvil_setIntervalMining":          "evm_setIntervalMining",
	"anvil_setAutomine":                "evm_setAutomine",
	"hardhat_mine":                     "anvil_mine",
	"anvil_snapshot":                   "evm_snapshot",
	"anvil_revert":                     "evm_revert",
	"anvil_increaseTime":               "evm_increaseTime",
	"anvil_setNextBlockTimestamp":      "evm_setNextBlockTimestamp",
	"anvil_setTime":                    "evm_setTime",
	"hardhat_setBalance":               "anvil_setBalance",
	"hardhat_setNonce":                 "anvil_setNonce",
	"hardhat_setCode":                  "anvil_setCode",
	"hardhat_setStorageAt":             "anvil_setStorageAt",
	"hardhat_impersonateAccount":       "anvil_impersonateAccount",
	"hardhat_stopImpersonatingAccount": "anvil_stopImpersonatingAccount",
	"hardhat_setLoggingEnabled":        "anvil_setLoggingEnabled",
	"hardhat_dropTransaction":          "anvil_dropTransaction",
}

func (*EthChainID) Method() string             { return "eth_chainId" }
func (*EthBlockNumber) Method() string         { return "eth_blockNumber" }
func (*EthGetBalance) Method() string          { return "eth_getBalance" }
func (*EthGetStorageAt) Method() string        { return "eth_getStorageAt" }
func (*EthGetCode) Method() string             { return "eth_getCode" }
func (*EthGetTransactionCount) Method() string { return "eth_getTransactionCount" }
func (*EthGetBlockByHash) Method() string      { return "eth_getBlockByHash" }
func (*EthGetBlockByNumber) Method() string    { return "eth_getBlockByNumber" }
func (*EthGetBlockTransactionCountByHash) Method() string {
	return "eth_getBlockTransactionCountByHash"
}
func (*EthGetBlockTransactionCountByNumber) Method() string {
	return "eth_getBlockTransactionCountByNumber"
}
func (*EthGetTransactionByHash) Method() string { return "eth_getTransactionByHash" }
func (*EthGetTransactionByBlockHashAndIndex) Method() string {
	return "eth_getTransactionByBlockHashAndIndex"
}
func (*EthGetTransactionByBlockNumberAndIndex) Method() string {
	return "eth_getTransactionByBlockNumberAndIndex"
}
func (*EthGetTransactionReceipt) Method() string       { return "eth_getTransactionReceipt" }
func (*EthCall) Method() string                        { return "eth_call" }
func (*EthEstimateGas) Method() string                 { return "eth_estimateGas" }
func (*EthSendTransaction) Method() string             { return "eth_sendTransaction" }
func (*EthSendUnsignedTransaction) Method() string     { return "eth_sendUnsignedTransaction" }
func (*EthSendRawTransaction) Method() string          { return "eth_sendRawTransaction" }
func (*EthGetLogs) Method() string                     { return "eth_getLogs" }
func (*EthFeeHistory) Method() string                  { return "eth_feeHistory" }
func (*EthGasPrice) Method() string                    { return "eth_gasPrice" }
func (*EthMaxPriorityFeePerGas) Method() string        { return "eth_maxPriorityFeePerGas" }
func (*EthAccounts) Method() string                    { return "eth_accounts" }
func (*EthSyncing) Method() string                     { return "eth_syncing" }
func (*NetListening) Method() string                   { return "net_listening" }
func (*NetVersion) Method() string                     { return "net_version" }
func (*Web3ClientVersion) Method() string              { return "web3_clientVersion" }
func (*Web3Sha3) Method() string                       { return "web3_sha3" }
func (*AnvilMine) Method() string                      { return "anvil_mine" }
func (*EvmMine) Method() string                        { return "evm_mine" }
func (*EvmMineDetailed) Method() string                { return "evm_mine_detailed" }
func (*EvmSetAutomine) Method() string                 { return "evm_setAutomine" }
func (*AnvilGetAutomine) Method() string               { return "anvil_getAutomine" }
func (*EvmSetIntervalMining) Method() string           { return "evm_setIntervalMining" }
func (*AnvilGetIntervalMining) Method() string         { return "anvil_getIntervalMining" }
func (*AnvilSetBlockTimestampInterval) Method() string { return "anvil_setBlockTimestampInterval" }
func (*AnvilRemoveBlockTimestampInterval) Method() string {
	return "anvil_removeBlockTimestampInterval"
}
func (*EvmSetNextBlockTimestamp) Method() string      { return "evm_setNextBlockTimestamp" }
func (*EvmIncreaseTime) Method() string               { return "evm_increaseTime" }
func (*EvmSetTime) Method() string                    { return "evm_setTime" }
func (*AnvilImpersonateAccount) Method() string       { return "anvil_impersonateAccount" }
func (*AnvilStopImpersonatingAccount) Method() string { return "anvil_stopImpersonatingAccount" }
func (*AnvilAutoImpersonateAccount) Method() string   { return "anvil_autoImpersonateAccount" }
func (*EvmSnapshot) Method() string                   { return "evm_snapshot" }
func (*EvmRevert) Method() string                     { return "evm_revert" }
func (*AnvilRollback) Method() string                 { return "anvil_rollback" }
func (*AnvilSetBalance) Method() string               { return "anvil_setBalance" }
func (*AnvilSetNonce) Method() string                 { return "anvil_setNonce" }
func (*AnvilSetCode) Method() string                  { return "anvil_setCode" }
func (*AnvilSetStorageAt) Method() string             { return "anvil_setStorageAt" }
func (*AnvilSetChainID) Method() string               { return "anvil_setChainId" }
func (*AnvilSetLoggingEnabled) Method() string        { return "anvil_setLoggingEnabled" }
func (*AnvilDropTransaction) Method() string          { return "anvil_dropTransaction" }
func (*AnvilDropAllTransactions) Method() string      { return "anvil_dropAllTransactions" }
func (*TxPoolStatus) Method() string                  { return "txpool_status" }
func (*EthSign) Method() string                       { return "eth_sign" }
func (*AnvilReset) Method() string                    { return "anvil_reset" }
func (*AnvilDumpState) Method() string                { return "anvil_dumpState" }
func (*AnvilLoadState) Method() string                { return "anvil_loadState" }
func (*AnvilEnableTraces) Method() string             { return "anvil_enableTraces" }
func (*DebugTraceTransaction) Method() string         { return "debug_traceTransaction" }

func (*EthChainID) isEthRequest()                             {}
func (*EthBlockNumber) isEthRequest()                         {}
func (*EthGetBalance) isEthRequest()                          {}
func (*EthGetStorageAt) isEthRequest()                        {}
func (*EthGetCode) isEthRequest()                             {}
func (*EthGetTransactionCount) isEthRequest()                 {}
func (*EthGetBlockByHash) isEthRequest()                      {}
func (*EthGetBlockByNumber) isEthRequest()                    {}
func (*EthGetBlockTransactionCountByHash) isEthRequest()      {}
func (*EthGetBlockTransactionCountByNumber) isEthRequest()    {}
func (*EthGetTransactionByHash) isEthRequest()                {}
func (*EthGetTransactionByBlockHashAndIndex) isEthRequest()   {}
func (*EthGetTransactionByBlockNumberAndIndex) isEthRequest() {}
func (*EthGetTransactionReceipt) isEthRequest()               {}
func (*EthCall) isEthRequest()                                {}
func (*EthEstimateGas) isEthRequest()                         {}
func (*EthSendTransaction) isEthRequest()                     {}
func (*EthSendUnsignedTransaction) isEthRequest()             {}
func (*EthSendRawTransaction) isEthRequest()                  {}
func (*EthGetLogs) isEthRequest()                             {}
func (*EthFeeHistory) isEthRequest()                          {}
func (*EthGasPrice) isEthRequest()                            {}
func (*EthMaxPriorityFeePerGas) isEthRequest()                {}
func (*EthAccounts) isEthRequest()                            {}
func (*EthSyncing) isEthRequest()                             {}
func (*NetListening) isEthRequest()                           {}
func (*NetVersion) isEthRequest()                             {}
func (*Web3ClientVersion) isEthRequest()                      {}
func (*Web3Sha3) isEthRequest()                               {}
func (*AnvilMine) isEthRequest()                              {}
func (*EvmMine) isEthRequest()                                {}
func (*EvmMineDetailed) isEthRequest()                        {}
func (*EvmSetAutomine) isEthRequest()                         {}
func (*AnvilGetAutomine) isEthRequest()                       {}
func (*EvmSetIntervalMining) isEthRequest()                   {}
func (*AnvilGetIntervalMining) isEthRequest()                 {}
func (*AnvilSetBlockTimestampInterval) isEthRequest()         {}
func (*AnvilRemoveBlockTimestampInterval) isEthRequest()      {}
func (*EvmSetNextBlockTimestamp) isEthRequest()               {}
func (*EvmIncreaseTime) isEthRequest()                        {}
func (*EvmSetTime) isEthRequest()                             {}
func (*AnvilImpersonateAccount) isEthRequest()                {}
func (*AnvilStopImpersonatingAccount) isEthRequest()          {}
func (*AnvilAutoImpersonateAccount) isEthRequest()            {}
func (*EvmSnapshot) isEthRequest()                            {}
func (*EvmRevert) isEthRequest()                              {}
func (*AnvilRollback) isEthRequest()                          {}
func (*AnvilSetBalance) isEthRequest()                        {}
func (*AnvilSetNonce) isEthRequest()                          {}
func (*AnvilSetCode) isEthRequest()                           {}
func (*AnvilSetStorageAt) isEthRequest()                      {}
func (*AnvilSetChainID) isEthRequest()                        {}
func (*AnvilSetLoggingEnabled) isEthRequest()                 {}
func (*AnvilDropTransaction) isEthRequest()                   {}
func (*AnvilDropAllTransactions) isEthRequest()               {}
func (*TxPoolStatus) isEthRequest()                           {}
func (*EthSign) isEthRequest()                                {}
func (*AnvilReset) isEthRequest()                             {}
func (*AnvilDumpState) isEthRequest()                         {}
func (*AnvilLoadState) isEthRequest()                         {}
func (*AnvilEnableTraces) isEthRequest()                      {}
func (*DebugTraceTransaction) isEthRequest()                  {}

// NewRequest returns an empty request for method, ready to be decoded into.
func NewRequest(method string) (EthRequest, bool) {
	if alias, ok := requestAliases[method]; ok {
		method = alias
	}
	newFn, ok := requestTypes[method]
	if !ok {
		return nil, false
	}
	return newFn(), true
}
