// Package oracle reads spot prices out of raw external pool records.
//
// Prices are expressed as base-currency units per collateral unit scaled by
// PriceScale (10^9). The reader is stateless: it neither caches nor checks
// staleness; see Tracker for both.
package oracle

import (
	"errors"
	"fmt"

	"memelend/core/safemath"
	"memelend/crypto"
)

// PriceScale is the fixed-point scale of every price in the protocol.
const PriceScale uint64 = 1_000_000_000

var (
	ErrInvalidPriceFeed = errors.New("oracle: invalid price feed data")
	ErrPoolTypeMismatch = errors.New("oracle: pool type mismatch")
	ErrZeroPrice        = errors.New("oracle: price is zero")
	ErrInvalidPoolType  = errors.New("oracle: invalid pool type")
	ErrStalePrice       = errors.New("oracle: price feed is stale")
	ErrPriceDeviation   = errors.New("oracle: price deviation too high")
	ErrNotEnoughSamples = errors.New("oracle: not enough price samples")
)

// PoolType tags the venue layout a token is priced from. The set is closed;
// every switch over it must be exhaustive.
type PoolType uint8

const (
	PoolRaydium PoolType = iota
	PoolOrca
	PoolPumpfun
	PoolPumpSwap
)

// ParsePoolType validates a wire value.
func ParsePoolType(v uint8) (PoolType, error) {
	kind := PoolType(v)
	if !kind.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidPoolType, v)
	}
	return kind, nil
}

func (p PoolType) Valid() bool {
	switch p {
	case PoolRaydium, PoolOrca, PoolPumpfun, PoolPumpSwap:
		return true
	default:
		return false
	}
}

func (p PoolType) String() string {
	switch p {
	case PoolRaydium:
		return "raydium"
	case PoolOrca:
		return "orca"
	case PoolPumpfun:
		return "pumpfun"
	case PoolPumpSwap:
		return "pumpswap"
	default:
		return fmt.Sprintf("pool(%d)", uint8(p))
	}
}

// TokenAccount is a raw token-account snapshot paired with its address.
type TokenAccount struct {
	Address crypto.Address
	Data    []byte
}

// PoolAccount is the raw state of an external pool at a point in time.
type PoolAccount struct {
	Address crypto.Address
	Data    []byte
	// BaseVault and QuoteVault carry the reserve accounts of pools that keep
	// balances outside the pool record. Other layouts ignore them.
	BaseVault  TokenAccount
	QuoteVault TokenAccount
	// ObservedAt is the unix time the snapshot was taken.
	ObservedAt int64
}

// Reserves is the normalised view every layout reduces to.
type Reserves struct {
	Base       uint64
	Collateral uint64
}

// ReadPrice decodes pool according to kind and returns the collateral price.
func ReadPrice(pool PoolAccount, kind PoolType, collateralMint crypto.Address) (uint64, error) {
	reserves, err := ReadReserves(pool, kind, collateralMint)
	if err != nil {
		return 0, err
	}
	return PriceFromReserves(reserves)
}

// ReadReserves performs every validation step except the final price check.
func ReadReserves(pool PoolAccount, kind PoolType, collateralMint crypto.Address) (Reserves, error) {
	switch kind {
	case PoolRaydium, PoolOrca:
		return constantProductReserves(pool.Data, collateralMint)
	case PoolPumpfun:
		return bondingCurveReserves(pool, collateralMint)
	case PoolPumpSwap:
		return vaultPoolReserves(pool, collateralMint)
	default:
		return Reserves{}, ErrInvalidPoolType
	}
}

// PriceFromReserves computes base * PriceScale / collateral.
func PriceFromReserves(r Reserves) (uint64, error) {
	if r.Collateral == 0 {
		return 0, ErrInvalidPriceFeed
	}
	price, err := safemath.MulDiv(r.Base, PriceScale, r.Collateral)
	if err != nil {
		return 0, err
	}
	if price == 0 {
		return 0, ErrZeroPrice
	}
	return price, nil
}

func constantProductReserves(data []byte, collateralMint crypto.Address) (Reserves, error) {
	layout, err := DecodeConstantProduct(data)
	if err != nil {
		return Reserves{}, err
	}
	if layout.ReserveA == 0 || layout.ReserveB == 0 {
		return Reserves{}, ErrInvalidPriceFeed
	}
	switch {
	case layout.MintA == crypto.NativeMint:
		if layout.MintB != collateralMint {
			return Reserves{}, ErrPoolTypeMismatch
		}
		return Reserves{Base: layout.ReserveA, Collateral: layout.ReserveB}, nil
	case layout.MintB == crypto.NativeMint:
		if layout.MintA != collateralMint {
			return Reserves{}, ErrPoolTypeMismatch
		}
		return Reserves{Base: layout.ReserveB, Collateral: layout.ReserveA}, nil
	default:
		return Reserves{}, ErrInvalidPriceFeed
	}
}

// BondingCurveAddress is the deterministic curve account of a mint. Curve
// records carry no mint field, so the address is what binds them to a mint.
func BondingCurveAddress(mint crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.PumpfunProgramID, "bonding-curve", mint[:])
}

func bondingCurveReserves(pool PoolAccount, collateralMint crypto.Address) (Reserves, error) {
	layout, err := DecodeBondingCurve(pool.Data)
	if err != nil {
		return Reserves{}, err
	}
	if layout.VirtualTokenReserves == 0 || layout.VirtualBaseReserves == 0 {
		return Reserves{}, ErrInvalidPriceFeed
	}
	if pool.Address != BondingCurveAddress(collateralMint) {
		return Reserves{}, ErrPoolTypeMismatch
	}
	return Reserves{Base: layout.VirtualBaseReserves, Collateral: layout.VirtualTokenReserves}, nil
}

func vaultPoolReserves(pool PoolAccount, collateralMint crypto.Address) (Reserves, error) {
	layout, err := DecodeVaultPool(pool.Data)
	if err != nil {
		return Reserves{}, err
	}
	if pool.BaseVault.Address != layout.BaseVault || pool.QuoteVault.Address != layout.QuoteVault {
		return Reserves{}, ErrInvalidPriceFeed
	}
	base, err := DecodeTokenAccount(pool.BaseVault.Data)
	if err != nil {
		return Reserves{}, err
	}
	quote, err := DecodeTokenAccount(pool.QuoteVault.Data)
	if err != nil {
		return Reserves{}, err
	}
	if base.Mint != layout.BaseMint || quote.Mint != layout.QuoteMint {
		return Reserves{}, ErrInvalidPriceFeed
	}
	if base.Amount == 0 || quote.Amount == 0 {
		return Reserves{}, ErrInvalidPriceFeed
	}
	switch {
	case layout.QuoteMint == crypto.NativeMint:
		if layout.BaseMint != collateralMint {
			return Reserves{}, ErrPoolTypeMismatch
		}
		return Reserves{Base: quote.Amount, Collateral: base.Amount}, nil
	case layout.BaseMint == crypto.NativeMint:
		if layout.QuoteMint != collateralMint {
			return Reserves{}, ErrPoolTypeMismatch
		}
		return Reserves{Base: base.Amount, Collateral: quote.Amount}, nil
	default:
		return Reserves{}, ErrInvalidPriceFeed
	}
}
