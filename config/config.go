// Package config loads the protocol parameters shared by the daemon and the
// CLI from a TOML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"memelend/core/oracle"
	"memelend/crypto"
	nativecommon "memelend/native/common"
	"memelend/native/fees"
	"memelend/native/lending"
	"memelend/native/staking"
	"memelend/native/swap"
)

// Config is the on-disk protocol configuration.
type Config struct {
	Lending lending.Config `toml:"lending"`
	Staking Staking        `toml:"staking"`
	Swap    swap.Config    `toml:"swap"`
	Fees    Fees           `toml:"fees"`
	Oracle  Oracle         `toml:"oracle"`
	Pauses  Pauses         `toml:"pauses"`
}

type Staking struct {
	Mode                 string `toml:"Mode"`
	Rollover             string `toml:"Rollover"`
	EpochDurationSeconds int64  `toml:"EpochDurationSeconds"`
}

// Fees configures the creator fee receiver.
type Fees struct {
	TreasuryBps     uint64 `toml:"TreasuryBps"`
	StakingBps      uint64 `toml:"StakingBps"`
	OperationsBps   uint64 `toml:"OperationsBps"`
	ReserveLamports uint64 `toml:"ReserveLamports"`
}

type Oracle struct {
	StalenessSeconds  int64  `toml:"StalenessSeconds"`
	MaxDeviationBps   uint64 `toml:"MaxDeviationBps"`
	TWAPWindowSeconds int64  `toml:"TWAPWindowSeconds"`
	MinTWAPSamples    int    `toml:"MinTWAPSamples"`
	TrackedMints      int    `toml:"TrackedMints"`
}

// Pauses are operator switches layered over the persisted paused flags.
type Pauses struct {
	Lending bool `toml:"Lending"`
	Staking bool `toml:"Staking"`
	Fees    bool `toml:"Fees"`
}

// Bootstrap names the accounts that initialise the protocol singletons.
type Bootstrap struct {
	Admin            crypto.Address
	OperationsWallet crypto.Address
	BuybackWallet    crypto.Address
	TreasuryWallet   crypto.Address
	Liquidator       crypto.Address
	PriceAuthority   crypto.Address
	StakingMint      crypto.Address
}

// Default returns the protocol defaults.
func Default() *Config {
	split := fees.DefaultSplit()
	tracker := oracle.DefaultTrackerConfig()
	return &Config{
		Lending: lending.DefaultConfig(),
		Staking: Staking{
			Mode:                 staking.ModePull.String(),
			Rollover:             staking.RollOver.String(),
			EpochDurationSeconds: staking.DefaultEpochDuration,
		},
		Swap: swap.DefaultConfig(),
		Fees: Fees{
			TreasuryBps:     split.TreasuryBps,
			StakingBps:      split.StakingBps,
			OperationsBps:   split.OperationsBps,
			ReserveLamports: fees.DefaultReserveLamports,
		},
		Oracle: Oracle{
			StalenessSeconds:  tracker.StalenessSeconds,
			MaxDeviationBps:   tracker.MaxDeviationBps,
			TWAPWindowSeconds: tracker.TWAPWindowSeconds,
			MinTWAPSamples:    tracker.MinTWAPSamples,
			TrackedMints:      tracker.TrackedMints,
		},
	}
}

// Load reads path over the defaults. A missing file is created with the
// defaults so operators have something to edit.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	} else if err != nil {
		return nil, err
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config: unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section without building the engines.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil")
	}
	if _, err := c.Lending.Params(); err != nil {
		return err
	}
	if _, err := c.StakingParams(); err != nil {
		return err
	}
	if err := c.FeeSplit().Validate(); err != nil {
		return err
	}
	if c.Swap.ConstantProductFeeBps >= 10_000 {
		return fmt.Errorf("config: swap.ConstantProductFeeBps must be below 10000")
	}
	if c.Swap.RouteSlippageBps >= 10_000 {
		return fmt.Errorf("config: swap.RouteSlippageBps must be below 10000")
	}
	if c.Swap.UseAggregator && len(c.Swap.AggregatorPrograms) == 0 {
		return fmt.Errorf("config: swap.UseAggregator requires AggregatorPrograms")
	}
	if c.Oracle.StalenessSeconds != c.Lending.PriceStalenessSeconds {
		return fmt.Errorf("config: oracle.StalenessSeconds (%d) must match lending.PriceStalenessSeconds (%d)",
			c.Oracle.StalenessSeconds, c.Lending.PriceStalenessSeconds)
	}
	if _, err := oracle.NewTracker(c.TrackerConfig()); err != nil {
		return fmt.Errorf("config: oracle: %w", err)
	}
	return nil
}

// StakingParams converts the staking section into initialisation
// parameters. Authority and mint are supplied by the caller.
func (c *Config) StakingParams() (staking.InitParams, error) {
	mode, err := staking.ParseMode(c.Staking.Mode)
	if err != nil {
		return staking.InitParams{}, err
	}
	policy, err := staking.ParseRolloverPolicy(c.Staking.Rollover)
	if err != nil {
		return staking.InitParams{}, err
	}
	duration := c.Staking.EpochDurationSeconds
	if duration < staking.MinEpochDuration || duration > staking.MaxEpochDuration {
		return staking.InitParams{}, fmt.Errorf("config: staking.EpochDurationSeconds must be within [%d, %d]",
			staking.MinEpochDuration, staking.MaxEpochDuration)
	}
	return staking.InitParams{EpochDuration: duration, Mode: mode, Rollover: policy}, nil
}

func (c *Config) FeeSplit() fees.Split {
	return fees.Split{
		TreasuryBps:   c.Fees.TreasuryBps,
		StakingBps:    c.Fees.StakingBps,
		OperationsBps: c.Fees.OperationsBps,
	}
}

func (c *Config) TrackerConfig() oracle.TrackerConfig {
	return oracle.TrackerConfig{
		StalenessSeconds:  c.Oracle.StalenessSeconds,
		MaxDeviationBps:   c.Oracle.MaxDeviationBps,
		TWAPWindowSeconds: c.Oracle.TWAPWindowSeconds,
		MinTWAPSamples:    c.Oracle.MinTWAPSamples,
		TrackedMints:      c.Oracle.TrackedMints,
	}
}

// PauseView exposes the operator switches to the engines.
func (c *Config) PauseView() nativecommon.StaticPauses {
	return nativecommon.StaticPauses{
		"lending": c.Pauses.Lending,
		"staking": c.Pauses.Staking,
		"fees":    c.Pauses.Fees,
	}
}

// Save writes the configuration to path.
func Save(path string, cfg *Config) error {
	return persist(path, cfg)
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
