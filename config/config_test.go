package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/native/lending"
	"memelend/native/staking"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "protocol.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
	require.FileExists(t, path)

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Lending, again.Lending)
	require.Equal(t, cfg.Fees, again.Fees)
}

func TestLoadOverridesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.toml")
	contents := `
[lending]
MaxSingleLoanBps = 500
Settlement = "liquidator-purchase"

[staking]
Mode = "push"
Rollover = "forfeit"
EpochDurationSeconds = 3600

[swap]
UseAggregator = true
AggregatorPrograms = ["JUP6LkbZbjS1jKKwapdHNy74zcZ3tLUZoi5QNyVTaV4"]

[fees]
TreasuryBps = 5000
StakingBps = 5000
OperationsBps = 0

[pauses]
Staking = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	cfg, err := Load(path)
	require.NoError(t, err)

	params, err := cfg.Lending.Params()
	require.NoError(t, err)
	require.Equal(t, uint64(500), params.Limits.MaxSingleLoanBps)
	require.Equal(t, lending.SettlementLiquidatorPurchase, params.Settlement)
	// untouched keys keep their defaults
	require.Equal(t, lending.DefaultConfig().MaxTokenExposureBps, cfg.Lending.MaxTokenExposureBps)

	sp, err := cfg.StakingParams()
	require.NoError(t, err)
	require.Equal(t, staking.ModePush, sp.Mode)
	require.Equal(t, staking.Forfeit, sp.Rollover)
	require.Equal(t, int64(3600), sp.EpochDuration)

	require.True(t, cfg.Swap.UseAggregator)
	require.Equal(t, uint64(5000), cfg.FeeSplit().StakingBps)
	require.True(t, cfg.PauseView().IsPaused("staking"))
	require.False(t, cfg.PauseView().IsPaused("lending"))
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "protocol.toml")
	require.NoError(t, os.WriteFile(path, []byte("[lending]\nMaxLoanBps = 5\n"), 0o644))
	_, err := Load(path)
	require.ErrorContains(t, err, "lending.MaxLoanBps")
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"fee split":       func(c *Config) { c.Fees.OperationsBps = 1 },
		"epoch too short": func(c *Config) { c.Staking.EpochDurationSeconds = 10 },
		"bad mode":        func(c *Config) { c.Staking.Mode = "sideways" },
		"bad rollover":    func(c *Config) { c.Staking.Rollover = "burn" },
		"liquidation split": func(c *Config) {
			c.Lending.LiquidationTreasuryBps = 9000
		},
		"aggregator without programs": func(c *Config) { c.Swap.UseAggregator = true },
		"swap fee":                    func(c *Config) { c.Swap.ConstantProductFeeBps = 10_000 },
		"staleness mismatch":          func(c *Config) { c.Oracle.StalenessSeconds = 30 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
	require.NoError(t, Default().Validate())
}
