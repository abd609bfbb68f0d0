// Package config provides configuration management for anvil-polkadot.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/tyler-smith/go-bip39"
)

// Default values.
var (
	DefaultChainID          = uint64(31337)
	DefaultGasLimit         = uint64(30000000)
	DefaultGasPrice         = big.NewInt(1875000000) // 1.875 gwei
	DefaultBaseFee          = big.NewInt(1000000000) // 1 gwei
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8545
	DefaultAccountCount     = 10
	DefaultGenesisBalance   = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)) // 10000 ETH
	DefaultMnemonic         = "test test test test test test test test test test test junk"
	DefaultDerivationPath   = "m/44'/60'/0'/0/"
	DefaultMiningMode       = "auto"
	DefaultBlockTime        = time.Duration(0)
	DefaultAllowOrigin      = "*"
	DefaultNativeToEthRatio = uint64(1000000)
	DefaultLogLevel         = "info"
)

// Valid mining modes.
var validMiningModes = map[string]bool{
	"auto":     true,
	"interval": true,
	"manual":   true,
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"crit":  true,
}

// Config defines the node configuration.
type Config struct {
	// Network configuration
	ChainID  uint64   `json:"chainId" toml:"chainId"`
	GasLimit uint64   `json:"gasLimit" toml:"gasLimit"`
	GasPrice *big.Int `json:"gasPrice,omitempty" toml:"-"`
	BaseFee  *big.Int `json:"baseFee,omitempty" toml:"-"`

	// Server configuration
	Host string `json:"host" toml:"host"`
	Port int    `json:"port" toml:"port"`

	// Account configuration
	AccountCount   int      `json:"accountCount" toml:"accountCount"`
	GenesisBalance *big.Int `json:"genesisBalance" toml:"-"`
	Mnemonic       string   `json:"mnemonic" toml:"mnemonic"`
	DerivationPath string   `json:"derivationPath" toml:"derivationPath"`

	// Mining configuration
	MiningMode string        `json:"miningMode" toml:"miningMode"` // auto, interval, manual
	BlockTime  time.Duration `json:"blockTime" toml:"blockTime"`

	// Chain configuration
	GenesisTimestamp uint64 `json:"genesisTimestamp,omitempty" toml:"genesisTimestamp"` // seconds, 0 = now
	NativeToEthRatio uint64 `json:"nativeToEthRatio" toml:"nativeToEthRatio"`
	FinalityDepth    uint64 `json:"finalityDepth" toml:"finalityDepth"`

	// Feature flags
	AutoImpersonate bool   `json:"autoImpersonate" toml:"autoImpersonate"`
	AllowOrigin     string `json:"allowOrigin" toml:"allowOrigin"`

	// Logging
	LogLevel       string `json:"logLevel" toml:"logLevel"`
	LoggingEnabled *bool  `json:"loggingEnabled,omitempty" toml:"loggingEnabled"`
}

// Default returns a configuration with default values.
func Default() *Config {
	enabled := true
	return &Config{
		ChainID:          DefaultChainID,
		GasLimit:         DefaultGasLimit,
		GasPrice:         new(big.Int).Set(DefaultGasPrice),
		BaseFee:          new(big.Int).Set(DefaultBaseFee),
		Host:             DefaultHost,
		Port:             DefaultPort,
		AccountCount:     DefaultAccountCount,
		GenesisBalance:   new(big.Int).Set(DefaultGenesisBalance),
		Mnemonic:         DefaultMnemonic,
		DerivationPath:   DefaultDerivationPath,
		MiningMode:       DefaultMiningMode,
		BlockTime:        DefaultBlockTime,
		AllowOrigin:      DefaultAllowOrigin,
		NativeToEthRatio: DefaultNativeToEthRatio,
		LogLevel:         DefaultLogLevel,
		LoggingEnabled:   &enabled,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chainId must be greater than 0")
	}

	if c.GasLimit == 0 {
		errs = append(errs, "gasLimit must be greater than 0")
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.AccountCount <= 0 {
		errs = append(errs, "accountCount must be greater than 0")
	}

	if !validMiningModes[c.MiningMode] {
		errs = append(errs, "miningMode must be one of: auto, interval, manual")
	}

	if c.MiningMode == "interval" && c.BlockTime <= 0 {
		errs = append(errs, "blockTime must be set when miningMode is interval")
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	if !strings.HasPrefix(c.DerivationPath, "m/") {
		errs = append(errs, "derivationPath must start with m/")
	}

	if c.NativeToEthRatio == 0 {
		errs = append(errs, "nativeToEthRatio must be greater than 0")
	}

	if c.GenesisBalance != nil && c.GenesisBalance.Sign() < 0 {
		errs = append(errs, "genesisBalance must not be negative")
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, "logLevel must be one of: trace, debug, info, warn, error, crit")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// LoadFromFile loads configuration from a JSON or TOML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return MergeWithDefaults(&cfg), nil
}

// MergeWithDefaults merges partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.ChainID != 0 {
		def.ChainID = partial.ChainID
	}
	if partial.GasLimit != 0 {
		def.GasLimit = partial.GasLimit
	}
	if partial.GasPrice != nil {
		def.GasPrice = partial.GasPrice
	}
	if partial.BaseFee != nil {
		def.BaseFee = partial.BaseFee
	}
	if partial.Host != "" {
		def.Host = partial.Host
	}
	if partial.Port != 0 {
		def.Port = partial.Port
	}
	if partial.AccountCount != 0 {
		def.AccountCount = partial.AccountCount
	}
	if partial.GenesisBalance != nil {
		def.GenesisBalance = partial.GenesisBalance
	}
	if partial.Mnemonic != "" {
		def.Mnemonic = partial.Mnemonic
	}
	if partial.DerivationPath != "" {
		def.DerivationPath = partial.DerivationPath
	}
	if partial.MiningMode != "" {
		def.MiningMode = partial.MiningMode
	}
	if partial.BlockTime != 0 {
		def.BlockTime = partial.BlockTime
	}
	if partial.AllowOrigin != "" {
		def.AllowOrigin = partial.AllowOrigin
	}
	if partial.NativeToEthRatio != 0 {
		def.NativeToEthRatio = partial.NativeToEthRatio
	}
	if partial.LogLevel != "" {
		def.LogLevel = partial.LogLevel
	}
	if partial.LoggingEnabled != nil {
		enabled := *partial.LoggingEnabled
		def.LoggingEnabled = &enabled
	}
	def.GenesisTimestamp = partial.GenesisTimestamp
	def.FinalityDepth = partial.FinalityDepth
	def.AutoImpersonate = partial.AutoImpersonate

	return def
}

// Copy creates a deep copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c

	if c.GenesisBalance != nil {
		copied.GenesisBalance = new(big.Int).Set(c.GenesisBalance)
	}
	if c.GasPrice != nil {
		copied.GasPrice = new(big.Int).Set(c.GasPrice)
	}
	if c.BaseFee != nil {
		copied.BaseFee = new(big.Int).Set(c.BaseFee)
	}
	if c.LoggingEnabled != nil {
		enabled := *c.LoggingEnabled
		copied.LoggingEnabled = &enabled
	}

	return &copied
}

// ServerAddr returns the server address string.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsAutomine returns true if auto-mining is enabled.
func (c *Config) IsAutomine() bool {
	return c.MiningMode == "auto"
}

// IsIntervalMining returns true if interval mining is enabled.
func (c *Config) IsIntervalMining() bool {
	return c.MiningMode == "interval"
}

// IsManualMining returns true if manual mining is enabled.
func (c *Config) IsManualMining() bool {
	return c.MiningMode == "manual"
}

// IsLoggingEnabled reports whether per-request node logging starts enabled.
func (c *Config) IsLoggingEnabled() bool {
	return c.LoggingEnabled == nil || *c.LoggingEnabled
}
