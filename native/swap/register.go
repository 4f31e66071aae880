package swap

import (
	"fmt"

	"memelend/core/oracle"
	"memelend/crypto"
	"memelend/native/lending"
)

// Config selects the venues installed on a lending engine.
type Config struct {
	ConstantProductFeeBps uint64   `toml:"ConstantProductFeeBps"`
	RouteSlippageBps      uint64   `toml:"RouteSlippageBps"`
	UseAggregator         bool     `toml:"UseAggregator"`
	AggregatorPrograms    []string `toml:"AggregatorPrograms"`
}

// DefaultConfig sells directly into each pool.
func DefaultConfig() Config {
	return Config{
		ConstantProductFeeBps: DefaultConstantProductFeeBps,
		RouteSlippageBps:      DefaultRouteSlippageBps,
	}
}

// VenueSetter is the engine surface venues are installed on.
type VenueSetter interface {
	SetVenue(kind oracle.PoolType, venue lending.SwapVenue)
}

// Install builds one venue per pool type and registers it on engine. With
// UseAggregator the constant-product pools are reached through RouteVenue.
func Install(engine VenueSetter, ledger Ledger, cfg Config, opts ...Option) error {
	programs := make([]crypto.Address, 0, len(cfg.AggregatorPrograms))
	for _, raw := range cfg.AggregatorPrograms {
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			return fmt.Errorf("swap: aggregator program %q: %w", raw, err)
		}
		programs = append(programs, addr)
	}
	for _, kind := range []oracle.PoolType{oracle.PoolRaydium, oracle.PoolOrca, oracle.PoolPumpSwap} {
		venue, err := NewConstantProductVenue(kind, cfg.ConstantProductFeeBps, ledger, opts...)
		if err != nil {
			return err
		}
		if cfg.UseAggregator {
			engine.SetVenue(kind, NewRouteVenue("route:"+kind.String(), venue, cfg.RouteSlippageBps, programs, ledger, opts...))
			continue
		}
		engine.SetVenue(kind, venue)
	}
	engine.SetVenue(oracle.PoolPumpfun, NewPumpfunVenue(ledger, opts...))
	return nil
}
