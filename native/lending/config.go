package lending

import (
	"fmt"
	"strings"
)

// SettlementMode selects how liquidation proceeds are settled.
type SettlementMode uint8

const (
	// SettlementSwapAndSplit sells the escrowed collateral and splits the
	// proceeds between treasury and operations.
	SettlementSwapAndSplit SettlementMode = iota
	// SettlementLiquidatorPurchase has the liquidator pay the principal into
	// the treasury in exchange for the escrowed collateral.
	SettlementLiquidatorPurchase
)

func (m SettlementMode) String() string {
	switch m {
	case SettlementSwapAndSplit:
		return "swap"
	case SettlementLiquidatorPurchase:
		return "purchase"
	default:
		return "unknown"
	}
}

// ParseSettlementMode accepts the textual form used in configuration files.
func ParseSettlementMode(s string) (SettlementMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "swap", "swap-and-split":
		return SettlementSwapAndSplit, nil
	case "purchase", "liquidator-purchase":
		return SettlementLiquidatorPurchase, nil
	default:
		return 0, fmt.Errorf("lending: unknown settlement mode %q", s)
	}
}

// Config captures the runtime configuration for the native lending module.
type Config struct {
	MinCollateralValue       uint64 `toml:"MinCollateralValue"`
	MinLoanAmount            uint64 `toml:"MinLoanAmount"`
	MaxSingleLoanBps         uint64 `toml:"MaxSingleLoanBps"`
	MaxTokenExposureBps      uint64 `toml:"MaxTokenExposureBps"`
	MaxUserExposureBps       uint64 `toml:"MaxUserExposureBps"`
	LiquidationBufferBps     uint64 `toml:"LiquidationBufferBps"`
	LiquidationSlippageBps   uint64 `toml:"LiquidationSlippageBps"`
	LiquidationTreasuryBps   uint64 `toml:"LiquidationTreasuryBps"`
	LiquidationOperationsBps uint64 `toml:"LiquidationOperationsBps"`
	AdminTransferDelay       int64  `toml:"AdminTransferDelaySeconds"`
	PriceStalenessSeconds    int64  `toml:"PriceStalenessSeconds"`
	Settlement               string `toml:"Settlement"`
}

// DefaultConfig returns the configuration equivalent of DefaultParams.
func DefaultConfig() Config {
	p := DefaultParams()
	return Config{
		MinCollateralValue:       p.Limits.MinCollateralValue,
		MinLoanAmount:            p.Limits.MinLoanAmount,
		MaxSingleLoanBps:         p.Limits.MaxSingleLoanBps,
		MaxTokenExposureBps:      p.Limits.MaxTokenExposureBps,
		MaxUserExposureBps:       p.Limits.MaxUserExposureBps,
		LiquidationBufferBps:     p.LiquidationBufferBps,
		LiquidationSlippageBps:   p.LiquidationSlippageBps,
		LiquidationTreasuryBps:   p.LiquidationTreasuryBps,
		LiquidationOperationsBps: p.LiquidationOperationsBps,
		AdminTransferDelay:       p.AdminTransferDelay,
		PriceStalenessSeconds:    p.PriceStalenessSeconds,
		Settlement:               p.Settlement.String(),
	}
}

// Params validates the configuration and converts it into engine parameters.
func (c Config) Params() (Params, error) {
	if c.MaxSingleLoanBps == 0 || c.MaxSingleLoanBps > 10_000 {
		return Params{}, fmt.Errorf("lending: MaxSingleLoanBps must be within (0, 10000]")
	}
	if c.MaxTokenExposureBps == 0 || c.MaxTokenExposureBps > 10_000 {
		return Params{}, fmt.Errorf("lending: MaxTokenExposureBps must be within (0, 10000]")
	}
	if c.MaxUserExposureBps > 10_000 {
		return Params{}, fmt.Errorf("lending: MaxUserExposureBps must not exceed 10000")
	}
	if c.LiquidationBufferBps > MaxLiquidationLtvBps {
		return Params{}, fmt.Errorf("lending: LiquidationBufferBps must not exceed %d", MaxLiquidationLtvBps)
	}
	if c.LiquidationSlippageBps >= 10_000 {
		return Params{}, fmt.Errorf("lending: LiquidationSlippageBps must be below 10000")
	}
	if c.LiquidationTreasuryBps+c.LiquidationOperationsBps != 10_000 {
		return Params{}, fmt.Errorf("%w: liquidation split %d+%d", ErrInvalidFeeSplit, c.LiquidationTreasuryBps, c.LiquidationOperationsBps)
	}
	if c.AdminTransferDelay < 0 {
		return Params{}, fmt.Errorf("lending: AdminTransferDelaySeconds must not be negative")
	}
	if c.PriceStalenessSeconds <= 0 {
		return Params{}, fmt.Errorf("lending: PriceStalenessSeconds must be positive")
	}
	mode, err := ParseSettlementMode(c.Settlement)
	if err != nil {
		return Params{}, err
	}
	return Params{
		Limits: ExposureLimits{
			MinCollateralValue:  c.MinCollateralValue,
			MinLoanAmount:       c.MinLoanAmount,
			MaxSingleLoanBps:    c.MaxSingleLoanBps,
			MaxTokenExposureBps: c.MaxTokenExposureBps,
			MaxUserExposureBps:  c.MaxUserExposureBps,
		},
		LiquidationBufferBps:     c.LiquidationBufferBps,
		LiquidationSlippageBps:   c.LiquidationSlippageBps,
		LiquidationTreasuryBps:   c.LiquidationTreasuryBps,
		LiquidationOperationsBps: c.LiquidationOperationsBps,
		AdminTransferDelay:       c.AdminTransferDelay,
		PriceStalenessSeconds:    c.PriceStalenessSeconds,
		Settlement:               mode,
	}, nil
}
