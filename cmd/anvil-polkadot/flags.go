package main

import (
	"math/big"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/stable-net/anvil-polkadot/pkg/config"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "Path to a JSON or TOML config file; flags override its values",
	}
	hostFlag = &cli.StringFlag{
		Name:  "host",
		Usage: "Interface the JSON-RPC server listens on",
		Value: config.DefaultHost,
	}
	portFlag = &cli.IntFlag{
		Name:    "port",
		Aliases: []string{"p"},
		Usage:   "Port the JSON-RPC server listens on",
		Value:   config.DefaultPort,
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Chain id reported by eth_chainId",
		Value: config.DefaultChainID,
	}
	accountsFlag = &cli.IntFlag{
		Name:    "accounts",
		Aliases: []string{"a"},
		Usage:   "Number of dev accounts to generate and fund",
		Value:   config.DefaultAccountCount,
	}
	balanceFlag = &cli.Uint64Flag{
		Name:  "balance",
		Usage: "Balance of every dev account in ETH",
		Value: 10000,
	}
	mnemonicFlag = &cli.StringFlag{
		Name:    "mnemonic",
		Aliases: []string{"m"},
		Usage:   "BIP39 mnemonic the dev accounts are derived from",
		Value:   config.DefaultMnemonic,
	}
	derivationPathFlag = &cli.StringFlag{
		Name:  "derivation-path",
		Usage: "BIP44 path prefix of the dev accounts",
		Value: config.DefaultDerivationPath,
	}
	blockTimeFlag = &cli.DurationFlag{
		Name:    "block-time",
		Aliases: []string{"b"},
		Usage:   "Mine blocks at this interval instead of on every transaction",
	}
	noMiningFlag = &cli.BoolFlag{
		Name:  "no-mining",
		Usage: "Disable automine; blocks are only mined on request",
	}
	gasLimitFlag = &cli.Uint64Flag{
		Name:  "gas-limit",
		Usage: "Block gas limit",
		Value: config.DefaultGasLimit,
	}
	gasPriceFlag = &cli.Uint64Flag{
		Name:  "gas-price",
		Usage: "Gas price in wei",
	}
	baseFeeFlag = &cli.Uint64Flag{
		Name:  "base-fee",
		Usage: "Base fee per gas in wei",
	}
	timestampFlag = &cli.Uint64Flag{
		Name:  "timestamp",
		Usage: "Genesis timestamp in seconds; defaults to now",
	}
	ratioFlag = &cli.Uint64Flag{
		Name:  "native-to-eth-ratio",
		Usage: "Wei per native balance unit",
		Value: config.DefaultNativeToEthRatio,
	}
	finalityDepthFlag = &cli.Uint64Flag{
		Name:  "finality-depth",
		Usage: "Number of blocks behind the best block that are final",
	}
	autoImpersonateFlag = &cli.BoolFlag{
		Name:  "auto-impersonate",
		Usage: "Accept transactions from any sender without a signature",
	}
	allowOriginFlag = &cli.StringFlag{
		Name:  "allow-origin",
		Usage: "CORS allowed origin",
		Value: config.DefaultAllowOrigin,
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "Log level (trace, debug, info, warn, error, crit)",
		Value: config.DefaultLogLevel,
	}
	silentFlag = &cli.BoolFlag{
		Name:  "silent",
		Usage: "Disable per-request logging and the startup banner",
	}
)

var flags = []cli.Flag{
	configFlag,
	hostFlag,
	portFlag,
	chainIDFlag,
	accountsFlag,
	balanceFlag,
	mnemonicFlag,
	derivationPathFlag,
	blockTimeFlag,
	noMiningFlag,
	gasLimitFlag,
	gasPriceFlag,
	baseFeeFlag,
	timestampFlag,
	ratioFlag,
	finalityDepthFlag,
	autoImpersonateFlag,
	allowOriginFlag,
	verbosityFlag,
	silentFlag,
}

// loadConfig builds the node config from the config file, if any, and the
// flags that were set explicitly.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := ctx.String(configFlag.Name); path != "" {
		loaded, err := config.LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if ctx.IsSet(hostFlag.Name) {
		cfg.Host = ctx.String(hostFlag.Name)
	}
	if ctx.IsSet(portFlag.Name) {
		cfg.Port = ctx.Int(portFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if ctx.IsSet(accountsFlag.Name) {
		cfg.AccountCount = ctx.Int(accountsFlag.Name)
	}
	if ctx.IsSet(balanceFlag.Name) {
		eth := new(big.Int).SetUint64(ctx.Uint64(balanceFlag.Name))
		cfg.GenesisBalance = eth.Mul(eth, big.NewInt(1e18))
	}
	if ctx.IsSet(mnemonicFlag.Name) {
		cfg.Mnemonic = ctx.String(mnemonicFlag.Name)
	}
	if ctx.IsSet(derivationPathFlag.Name) {
		cfg.DerivationPath = ctx.String(derivationPathFlag.Name)
	}
	if ctx.IsSet(blockTimeFlag.Name) {
		cfg.BlockTime = ctx.Duration(blockTimeFlag.Name)
		cfg.MiningMode = "interval"
		if cfg.BlockTime < time.Second {
			cfg.BlockTime = time.Second
		}
	}
	if ctx.Bool(noMiningFlag.Name) {
		cfg.MiningMode = "manual"
	}
	if ctx.IsSet(gasLimitFlag.Name) {
		cfg.GasLimit = ctx.Uint64(gasLimitFlag.Name)
	}
	if ctx.IsSet(gasPriceFlag.Name) {
		cfg.GasPrice = new(big.Int).SetUint64(ctx.Uint64(gasPriceFlag.Name))
	}
	if ctx.IsSet(baseFeeFlag.Name) {
		cfg.BaseFee = new(big.Int).SetUint64(ctx.Uint64(baseFeeFlag.Name))
	}
	if ctx.IsSet(timestampFlag.Name) {
		cfg.GenesisTimestamp = ctx.Uint64(timestampFlag.Name)
	}
	if ctx.IsSet(ratioFlag.Name) {
		cfg.NativeToEthRatio = ctx.Uint64(ratioFlag.Name)
	}
	if ctx.IsSet(finalityDepthFlag.Name) {
		cfg.FinalityDepth = ctx.Uint64(finalityDepthFlag.Name)
	}
	if ctx.IsSet(autoImpersonateFlag.Name) {
		cfg.AutoImpersonate = ctx.Bool(autoImpersonateFlag.Name)
	}
	if ctx.IsSet(allowOriginFlag.Name) {
		cfg.AllowOrigin = ctx.String(allowOriginFlag.Name)
	}
	if ctx.IsSet(verbosityFlag.Name) {
		cfg.LogLevel = ctx.String(verbosityFlag.Name)
	}
	if ctx.Bool(silentFlag.Name) {
		enabled := false
		cfg.LoggingEnabled = &enabled
	}

	return cfg, cfg.Validate()
}
