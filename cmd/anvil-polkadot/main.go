// Package main provides the entry point of the anvil-polkadot development node.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/stable-net/anvil-polkadot/pkg/config"
	"github.com/stable-net/anvil-polkadot/pkg/node"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "anvil-polkadot",
		Usage:   "Ethereum JSON-RPC development node on a Substrate backend",
		Version: Version,
		Flags:   flags,
		Action:  run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cliCtx *cli.Context) error {
	cfg, err := loadConfig(cliCtx)
	if err != nil {
		return err
	}
	if err := setupLogging(os.Stderr, cfg.LogLevel); err != nil {
		return err
	}

	n, err := node.New(cfg)
	if err != nil {
		return err
	}
	defer n.Close()

	if cfg.IsLoggingEnabled() {
		printBanner(os.Stdout, cfg, n)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return n.Run(ctx)
}

func setupLogging(w io.Writer, level string) error {
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(w, lvl, true)))
	return nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "info":
		return log.LevelInfo, nil
	case "warn":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return 0, fmt.Errorf("unknown log level %q", level)
}

func printBanner(w io.Writer, cfg *config.Config, n *node.Node) {
	accounts := n.Accounts()
	balance := new(big.Int).Div(cfg.GenesisBalance, big.NewInt(1e18))

	fmt.Fprintf(w, "\nanvil-polkadot %s\n\n", Version)
	fmt.Fprintln(w, "Available Accounts")
	fmt.Fprintln(w, "==================")
	for i, acc := range accounts {
		fmt.Fprintf(w, "(%d) %s (%s ETH)\n", i, acc.Address.Hex(), balance)
	}

	fmt.Fprintln(w, "\nPrivate Keys")
	fmt.Fprintln(w, "==================")
	for i, acc := range accounts {
		fmt.Fprintf(w, "(%d) %s\n", i, hexutil.Encode(crypto.FromECDSA(acc.PrivateKey)))
	}

	fmt.Fprintln(w, "\nWallet")
	fmt.Fprintln(w, "==================")
	fmt.Fprintf(w, "Mnemonic:          %s\n", cfg.Mnemonic)
	fmt.Fprintf(w, "Derivation path:   %s<index>\n", cfg.DerivationPath)

	fmt.Fprintf(w, "\nChain ID:          %d\n", cfg.ChainID)
	fmt.Fprintf(w, "Genesis Timestamp: %d\n", n.Genesis().Timestamp)
	fmt.Fprintf(w, "Mining:            %s\n", cfg.MiningMode)
	fmt.Fprintf(w, "\nListening on %s\n\n", cfg.ServerAddr())
}
