// Package api implements the request handling core of the node: a single
// actor that executes decoded Ethereum JSON-RPC requests one at a time
// against the Substrate backend.
package api

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/stable-net/anvil-polkadot/pkg/backend"
	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/impersonation"
	"github.com/stable-net/anvil-polkadot/pkg/miner"
	"github.com/stable-net/anvil-polkadot/pkg/snapshot"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
	"github.com/stable-net/anvil-polkadot/pkg/txpool"
	"github.com/stable-net/anvil-polkadot/pkg/wallet"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "anvil-polkadot/v0.1.0"

// Metadata versions the server can decode, newest first.
var supportedMetadataVersions = []uint32{16, 15, 14}

// Pallets the server needs from the runtime.
var requiredPallets = []string{"System", "Timestamp", "Balances", "Revive"}

// Deps are the collaborators the server coordinates.
type Deps struct {
	Client        *substrate.Client
	Eth           *ethrpc.Client
	Backend       *backend.Backend
	Engine        *miner.Engine
	Pool          *txpool.Pool
	Wallet        *wallet.Wallet
	Snapshots     *snapshot.Manager
	Impersonation *impersonation.Manager
	Logging       *LoggingManager
}

// Server executes requests received on its queue.
type Server struct {
	requests <-chan Message

	client        *substrate.Client
	eth           *ethrpc.Client
	backend       *backend.Backend
	engine        *miner.Engine
	blocks        *ethrpc.BlockInfoProvider
	pool          *txpool.Pool
	wallet        *wallet.Wallet
	snapshots     *snapshot.Manager
	impersonation *impersonation.Manager
	logging       *LoggingManager
}

// New creates a server reading from requests. It checks that the runtime
// metadata can be served.
func New(requests <-chan Message, deps Deps) (*Server, error) {
	if err := checkMetadata(deps.Client); err != nil {
		return nil, err
	}

	logging := deps.Logging
	if logging == nil {
		logging = NewLoggingManager(true)
	}

	s := &Server{
		requests:      requests,
		client:        deps.Client,
		eth:           deps.Eth,
		backend:       deps.Backend,
		engine:        deps.Engine,
		blocks:        deps.Eth.Blocks(),
		pool:          deps.Pool,
		wallet:        deps.Wallet,
		snapshots:     deps.Snapshots,
		impersonation: deps.Impersonation,
		logging:       logging,
	}

	return s, nil
}

// WatchBlocks keeps the latest and finalized block caches in sync with the
// chain until ctx is cancelled.
func (s *Server) WatchBlocks(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, kind := range []ethrpc.SubscriptionKind{ethrpc.SubscribeBestBlocks, ethrpc.SubscribeFinalizedBlocks} {
		g.Go(func() error {
			return s.eth.SubscribeAndWatch(ctx, kind)
		})
	}
	return g.Wait()
}

// checkMetadata picks the newest metadata version both sides support and
// verifies the runtime exposes the pallets the server depends on.
func checkMetadata(client *substrate.Client) error {
	rt := client.Runtime()
	hash := client.BestHash()

	offered, err := rt.MetadataVersions(hash)
	if err != nil {
		return fmt.Errorf("failed to read metadata versions: %w", err)
	}
	sort.Slice(offered, func(i, j int) bool { return offered[i] > offered[j] })

	var version uint32
	for _, v := range offered {
		for _, supported := range supportedMetadataVersions {
			if v == supported {
				version = v
				break
			}
		}
		if version != 0 {
			break
		}
	}
	if version == 0 {
		return fmt.Errorf("%w: runtime offers %v", substrate.ErrUnsupportedMetadata, offered)
	}

	md, err := rt.MetadataAtVersion(hash, version)
	if err != nil {
		return err
	}
	for _, pallet := range requiredPallets {
		if !md.HasPallet(pallet) {
			return fmt.Errorf("runtime metadata v%d lacks pallet %s", version, pallet)
		}
	}

	rv, err := rt.RuntimeVersionAt(hash)
	if err != nil {
		return err
	}
	log.Info("Connected to runtime", "spec", rv.SpecName, "specVersion", rv.SpecVersion, "metadata", version)
	return nil
}

// Run executes requests until the queue is closed or ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-s.requests:
			if !ok {
				return nil
			}
			msg.Reply <- s.Execute(ctx, msg.Request)
		}
	}
}

// Execute runs a single request.
func (s *Server) Execute(ctx context.Context, req EthRequest) ResponseResult {
	if s.logging.IsEnabled() {
		log.Info("Request", "method", req.Method())
	}

	result, err := s.dispatch(ctx, req)
	if err != nil {
		apiErr := wrapError(KindBackend, err)
		log.Warn("Failed to execute request", "method", req.Method(), "request", fmt.Sprintf("%+v", req), "err", apiErr)
		return Failure(apiErr)
	}
	return Success(result)
}

func (s *Server) dispatch(ctx context.Context, req EthRequest) (interface{}, error) {
	switch r := req.(type) {
	// eth_*, net_* and web3_* methods
	case *EthChainID:
		return s.chainID()
	case *EthBlockNumber:
		return s.blockNumber(), nil
	case *EthGetBalance:
		return s.getBalance(r.Address, r.Block)
	case *EthGetStorageAt:
		return s.getStorageAt(r.Address, (*big.Int)(&r.Slot), r.Block)
	case *EthGetCode:
		return s.getCode(r.Address, r.Block)
	case *EthGetTransactionCount:
		return s.getTransactionCount(r.Address, r.Block)
	case *EthGetBlockByHash:
		return s.getBlockByHash(r.Hash, r.FullTx)
	case *EthGetBlockByNumber:
		return s.getBlockByNumber(r.Number, r.FullTx)
	case *EthGetBlockTransactionCountByHash:
		return s.getBlockTransactionCountByHash(r.Hash)
	case *EthGetBlockTransactionCountByNumber:
		return s.getBlockTransactionCountByNumber(r.Number)
	case *EthGetTransactionByHash:
		return s.getTransactionByHash(r.Hash)
	case *EthGetTransactionByBlockHashAndIndex:
		return s.getTransactionByBlockHashAndIndex(r.Hash, uint64(r.Index))
	case *EthGetTransactionByBlockNumberAndIndex:
		return s.getTransactionByBlockNumberAndIndex(r.Number, uint64(r.Index))
	case *EthGetTransactionReceipt:
		return s.getTransactionReceipt(r.Hash)
	case *EthCall:
		return s.call(&r.Call, r.Block)
	case *EthEstimateGas:
		return s.estimateGas(&r.Call, r.Block)
	case *EthSendTransaction:
		return s.sendTransaction(ctx, &r.Tx, false)
	case *EthSendUnsignedTransaction:
		return s.sendTransaction(ctx, &r.Tx, true)
	case *EthSendRawTransaction:
		return s.sendRawTransaction(ctx, r.Data)
	case *EthGetLogs:
		return s.getLogs(&r.Filter)
	case *EthFeeHistory:
		return s.feeHistory(uint64(r.BlockCount), r.NewestBlock, r.RewardPercentiles)
	case *EthGasPrice:
		return s.gasPrice()
	case *EthMaxPriorityFeePerGas:
		return s.maxPriorityFeePerGas()
	case *EthAccounts:
		return s.accounts(), nil
	case *EthSyncing:
		return false, nil
	case *NetListening:
		return true, nil
	case *NetVersion:
		return s.netVersion()
	case *Web3ClientVersion:
		return ClientVersion, nil
	case *Web3Sha3:
		return sha3(r.Data), nil

	// mining and time control
	case *AnvilMine:
		return nil, s.mine(ctx, (*big.Int)(r.Blocks), (*big.Int)(r.Interval))
	case *EvmMine:
		return s.evmMine(ctx, r.Options)
	case *EvmMineDetailed:
		return s.evmMineDetailed(ctx, r.Options)
	case *EvmSetAutomine:
		s.engine.SetAutomine(r.Enabled)
		return nil, nil
	case *AnvilGetAutomine:
		return s.engine.IsAutomine(), nil
	case *EvmSetIntervalMining:
		return nil, s.setIntervalMining((*big.Int)(&r.Interval))
	case *AnvilGetIntervalMining:
		return s.getIntervalMining(), nil
	case *AnvilSetBlockTimestampInterval:
		return nil, s.setBlockTimestampInterval((*big.Int)(&r.Seconds))
	case *AnvilRemoveBlockTimestampInterval:
		return s.engine.RemoveBlockTimestampInterval(), nil
	case *EvmSetNextBlockTimestamp:
		return nil, s.setNextBlockTimestamp((*big.Int)(&r.Timestamp))
	case *EvmIncreaseTime:
		return s.increaseTime((*big.Int)(&r.Seconds))
	case *EvmSetTime:
		return s.setTime((*big.Int)(&r.Timestamp))

	// impersonation
	case *AnvilImpersonateAccount:
		s.impersonation.Impersonate(r.Address)
		return nil, nil
	case *AnvilStopImpersonatingAccount:
		s.impersonation.StopImpersonating(r.Address)
		return nil, nil
	case *AnvilAutoImpersonateAccount:
		s.impersonation.SetAutoImpersonate(r.Enabled)
		return nil, nil

	// snapshots
	case *EvmSnapshot:
		return s.snapshot()
	case *EvmRevert:
		return s.revert((*big.Int)(&r.ID))
	case *AnvilRollback:
		return nil, s.rollback(r.Depth)

	// state injection
	case *AnvilSetBalance:
		return nil, s.setBalance(r.Address, (*big.Int)(&r.Value))
	case *AnvilSetNonce:
		return nil, s.setNonce(r.Address, (*big.Int)(&r.Nonce))
	case *AnvilSetCode:
		return nil, s.setCode(r.Address, r.Code)
	case *AnvilSetStorageAt:
		return nil, s.setStorageAt(r.Address, (*big.Int)(&r.Slot), r.Value)
	case *AnvilSetChainID:
		return nil, s.setChainID(uint64(r.ChainID))
	case *AnvilSetLoggingEnabled:
		s.logging.SetEnabled(r.Enabled)
		return nil, nil

	// transaction pool
	case *AnvilDropTransaction:
		return s.dropTransaction(r.Hash), nil
	case *AnvilDropAllTransactions:
		s.pool.Clear()
		return nil, nil
	case *TxPoolStatus:
		return s.txPoolStatus()

	default:
		return nil, errUnimplemented(req.Method())
	}
}
