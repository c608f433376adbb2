package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x5dAD5eB7a3e557642625399D51577838d26dEae0"), cfg.WETH())
	assert.Len(t, cfg.Whitelist, 8)
	assert.True(t, cfg.MinimumUSDThresholdNewPairs().Equal(decimal.NewFromInt(400000)))
	assert.True(t, cfg.MinimumLiquidityThresholdETH().Equal(decimal.NewFromInt(1)))
	assert.Equal(t, int64(1000), cfg.Settings.BootstrapLiquidity)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.yaml")
	content := `
factoryAddress: "0x0000000000000000000000000000000000000001"
whitelist:
  - "0x0000000000000000000000000000000000000002"
settings:
  minimumUSDThresholdNewPairs: "1000"
  minimumLiquidityThresholdETH: "1"
  batchSize: 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, common.HexToAddress("0x01"), cfg.Factory())
	assert.Equal(t, []common.Address{common.HexToAddress("0x02")}, Addresses(cfg.Whitelist))
	assert.Equal(t, uint64(10), cfg.Settings.BatchSize)
	// untouched keys keep their defaults
	assert.Equal(t, Default().WETHAddress, cfg.WETHAddress)
}

func TestLoadRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`wethAddress: "not-an-address"`), 0o644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "wethAddress")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
