// Package config holds the network parameters of a deployment: contract addresses,
// pricing anchors and ingestion settings.
package config

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the YAML network file.
type Config struct {
	FactoryAddress  string          `yaml:"factoryAddress"`
	WETHAddress     string          `yaml:"wethAddress"`
	ReferencePools  []ReferencePool `yaml:"referencePools"`
	Whitelist       []string        `yaml:"whitelist"`
	UntrackedPairs  []string        `yaml:"untrackedPairs"`
	SkipTotalSupply []string        `yaml:"skipTotalSupply"`
	StaticTokens    []StaticToken   `yaml:"staticTokens"`
	Settings        Settings        `yaml:"settings"`
}

// ReferencePool is a stablecoin/WETH pair used for the ETH/USD price.
type ReferencePool struct {
	Address        string `yaml:"address"`
	StableIsToken0 bool   `yaml:"stableIsToken0"`
}

// StaticToken overrides on-chain metadata for tokens with malformed contracts.
type StaticToken struct {
	Address  string `yaml:"address"`
	Symbol   string `yaml:"symbol"`
	Name     string `yaml:"name"`
	Decimals int32  `yaml:"decimals"`
}

// Settings holds thresholds and ingestion tuning.
type Settings struct {
	MinimumUSDThresholdNewPairs  string `yaml:"minimumUSDThresholdNewPairs"`
	MinimumLiquidityThresholdETH string `yaml:"minimumLiquidityThresholdETH"`
	MinimumLiquidityProviders    uint64 `yaml:"minimumLiquidityProviders"`
	BootstrapLiquidity           int64  `yaml:"bootstrapLiquidity"`
	StartBlock                   uint64 `yaml:"startBlock"`
	Confirmations                uint64 `yaml:"confirmations"`
	BatchSize                    uint64 `yaml:"batchSize"`
}

// Default returns the built-in network parameters.
func Default() *Config {
	return &Config{
		FactoryAddress: "0x7acB3A63088ce38ea202203C44611cB7141461d6",
		WETHAddress:    "0x5dAD5eB7a3e557642625399D51577838d26dEae0",
		ReferencePools: []ReferencePool{
			{Address: "0x786F84c5D345cC9a9af2EE5D8C53Fb3C28cd77e7"}, // DAI/WETH, created block 6891762
			{Address: "0xFC76f3BAF2086C5b59ADbfe71c586e27e79Aa129"}, // USDT/WETH, created block 6891763
		},
		Whitelist: []string{
			"0x5dAD5eB7a3e557642625399D51577838d26dEae0", // WETH
			"0x69D5026d0B0642B144DA006592fEB31732C28472", // DAI
			"0xd026e6D09123909585958e50A43EEe4CE5AbCc1B", // USDT
			"0x4364d28e9AD1086473462b0782324548280b758F", // MKR
			"0xe444db678515096d273CC84c6dDfDF2D39cC6D62", // COMP
			"0xB2dfC378Fa04dB5893154c2f5a6513658648301c", // LINK
			"0x3B80270514d4354Decd5c56E6d1d93612c28643e", // UNI
			"0x200e17A99eB5D5aFDD75C1743C1a034CE75D73A2", // WBTC
		},
		UntrackedPairs:  []string{"0x9ea3b5b4ec044b70375236a281986106457b20ef"},
		SkipTotalSupply: []string{"0x0000000000bf2686748e1c0255036e7617e7e8a5"},
		StaticTokens: []StaticToken{
			{Address: "0x7fc66500c84a76ad7e9c93437bfc5ac33e2ddae9", Symbol: "AAVE", Name: "Aave Token", Decimals: 18},
		},
		Settings: Settings{
			MinimumUSDThresholdNewPairs:  "400000",
			MinimumLiquidityThresholdETH: "1",
			MinimumLiquidityProviders:    5,
			BootstrapLiquidity:           1000,
			StartBlock:                   6891700,
			Confirmations:                12,
			BatchSize:                    500,
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep their
// default values.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks addresses and numeric settings.
func (c *Config) Validate() error {
	addrs := map[string]string{
		"factoryAddress": c.FactoryAddress,
		"wethAddress":    c.WETHAddress,
	}
	for i, p := range c.ReferencePools {
		addrs[fmt.Sprintf("referencePools[%d]", i)] = p.Address
	}
	for i, a := range c.Whitelist {
		addrs[fmt.Sprintf("whitelist[%d]", i)] = a
	}
	for i, a := range c.UntrackedPairs {
		addrs[fmt.Sprintf("untrackedPairs[%d]", i)] = a
	}
	for i, a := range c.SkipTotalSupply {
		addrs[fmt.Sprintf("skipTotalSupply[%d]", i)] = a
	}
	for i, t := range c.StaticTokens {
		addrs[fmt.Sprintf("staticTokens[%d]", i)] = t.Address
	}
	for field, a := range addrs {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("invalid address in %s: %q", field, a)
		}
	}

	if _, err := decimal.NewFromString(c.Settings.MinimumUSDThresholdNewPairs); err != nil {
		return fmt.Errorf("invalid minimumUSDThresholdNewPairs: %w", err)
	}
	if _, err := decimal.NewFromString(c.Settings.MinimumLiquidityThresholdETH); err != nil {
		return fmt.Errorf("invalid minimumLiquidityThresholdETH: %w", err)
	}
	if c.Settings.BatchSize == 0 {
		return fmt.Errorf("batchSize must be positive")
	}
	return nil
}

// Factory returns the factory address.
func (c *Config) Factory() common.Address { return common.HexToAddress(c.FactoryAddress) }

// WETH returns the reference asset address.
func (c *Config) WETH() common.Address { return common.HexToAddress(c.WETHAddress) }

// MinimumUSDThresholdNewPairs returns the reserve gate for pairs with few providers.
func (c *Config) MinimumUSDThresholdNewPairs() decimal.Decimal {
	return decimal.RequireFromString(c.Settings.MinimumUSDThresholdNewPairs)
}

// MinimumLiquidityThresholdETH returns the reserve a pair needs to anchor a price.
func (c *Config) MinimumLiquidityThresholdETH() decimal.Decimal {
	return decimal.RequireFromString(c.Settings.MinimumLiquidityThresholdETH)
}

// Addresses converts hex strings to addresses.
func Addresses(hexes []string) []common.Address {
	out := make([]common.Address, len(hexes))
	for i, h := range hexes {
		out[i] = common.HexToAddress(h)
	}
	return out
}
