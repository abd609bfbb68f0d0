// Package node wires the components of anvil-polkadot into a runnable node.
package node

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/stable-net/anvil-polkadot/pkg/api"
	"github.com/stable-net/anvil-polkadot/pkg/backend"
	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/ethrpc"
	"github.com/stable-net/anvil-polkadot/pkg/genesis"
	"github.com/stable-net/anvil-polkadot/pkg/impersonation"
	"github.com/stable-net/anvil-polkadot/pkg/miner"
	"github.com/stable-net/anvil-polkadot/pkg/rpc"
	"github.com/stable-net/anvil-polkadot/pkg/snapshot"
	"github.com/stable-net/anvil-polkadot/pkg/substrate"
	"github.com/stable-net/anvil-polkadot/pkg/txpool"
	"github.com/stable-net/anvil-polkadot/pkg/wallet"
)

// Size of the request queue between the HTTP front end and the API server.
const requestQueueSize = 64

// Node is a development chain and its JSON-RPC endpoint.
type Node struct {
	cfg      *config.Config
	wallet   *wallet.Wallet
	genesis  *genesis.Genesis
	eth      *ethrpc.Client
	engine   *miner.Engine
	api      *api.Server
	rpc      *rpc.Server
	requests chan api.Message
}

// New builds a node from cfg. Nothing runs until Run is called.
func New(cfg *config.Config) (*Node, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	accounts, err := wallet.GenerateAccounts(cfg.Mnemonic, cfg.DerivationPath, cfg.AccountCount)
	if err != nil {
		return nil, fmt.Errorf("failed to derive dev accounts: %w", err)
	}
	w := wallet.New(accounts)

	rt, err := substrate.NewRuntime(substrate.RuntimeConfig{
		NativeToEthRatio: cfg.NativeToEthRatio,
		BaseFee:          cfg.BaseFee,
	})
	if err != nil {
		return nil, err
	}

	gen := genesis.CreateGenesis(cfg, w.Addresses())
	layer, err := gen.ToState(rt)
	if err != nil {
		return nil, fmt.Errorf("failed to build genesis state: %w", err)
	}
	client, err := substrate.NewClient(layer, rt, cfg.FinalityDepth)
	if err != nil {
		return nil, err
	}

	pool := txpool.NewPool(txpool.NewChainState(client))
	eth, err := ethrpc.NewClient(client, pool)
	if err != nil {
		return nil, err
	}
	engine := miner.NewEngine(client, pool, miner.Config{
		Mode:          miner.ParseMiningMode(cfg.MiningMode),
		BlockTime:     cfg.BlockTime,
		BaseFee:       cfg.BaseFee,
		LastTimestamp: gen.Timestamp,
	})

	requests := make(chan api.Message, requestQueueSize)
	server, err := api.New(requests, api.Deps{
		Client:        client,
		Eth:           eth,
		Backend:       backend.New(client),
		Engine:        engine,
		Pool:          pool,
		Wallet:        w,
		Snapshots:     snapshot.NewManager(client, pool),
		Impersonation: impersonation.NewManager(cfg.AutoImpersonate),
		Logging:       api.NewLoggingManager(cfg.IsLoggingEnabled()),
	})
	if err != nil {
		eth.Close()
		return nil, err
	}

	return &Node{
		cfg:      cfg,
		wallet:   w,
		genesis:  gen,
		eth:      eth,
		engine:   engine,
		api:      server,
		rpc:      rpc.NewServer(requests, rpc.Options{AllowOrigin: cfg.AllowOrigin}),
		requests: requests,
	}, nil
}

// Accounts returns the dev accounts in derivation order.
func (n *Node) Accounts() []*wallet.Account {
	return n.wallet.Accounts()
}

// Genesis returns the genesis the chain was started from.
func (n *Node) Genesis() *genesis.Genesis {
	return n.genesis
}

// Handler returns the JSON-RPC HTTP handler.
func (n *Node) Handler() http.Handler {
	return n.rpc
}

// Run serves requests until ctx is cancelled or a component fails. It runs
// the API server loop, the block cache watchers, the interval miner and the
// HTTP server.
func (n *Node) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return n.api.Run(ctx)
	})
	g.Go(func() error {
		return n.api.WatchBlocks(ctx)
	})
	g.Go(func() error {
		return n.engine.Run(ctx)
	})
	g.Go(func() error {
		err := rpc.ListenAndServe(ctx, n.cfg.ServerAddr(), n.rpc)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	log.Info("Node started", "chainId", n.cfg.ChainID, "mining", n.engine.Mode(), "addr", n.cfg.ServerAddr())
	err := g.Wait()
	log.Info("Node stopped")
	return err
}

// Call executes a request through the API server queue. Run must be active.
func (n *Node) Call(ctx context.Context, req api.EthRequest) (api.ResponseResult, error) {
	reply := make(chan api.ResponseResult, 1)
	select {
	case n.requests <- api.Message{Request: req, Reply: reply}:
	case <-ctx.Done():
		return api.ResponseResult{}, ctx.Err()
	}

	select {
	case res := <-reply:
		return res, nil
	case <-ctx.Done():
		return api.ResponseResult{}, ctx.Err()
	}
}

// Close releases the node's storage. Call it after Run has returned.
func (n *Node) Close() error {
	return n.eth.Close()
}
