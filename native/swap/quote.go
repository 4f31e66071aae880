// Package swap provides the venues the lending engine sells liquidated
// collateral through. Each venue prices the sale from the pool snapshot it is
// handed, enforces the caller's minimum output and settles against the pool's
// liquidity account.
package swap

import (
	"encoding/binary"
	"errors"

	"github.com/holiman/uint256"

	"memelend/core/oracle"
	"memelend/core/safemath"
)

var (
	ErrOutputBelowMinimum = errors.New("swap: output below minimum")
	ErrCurveComplete      = errors.New("swap: bonding curve has migrated")
	ErrRouteRequired      = errors.New("swap: route payload required")
	ErrUnknownProgram     = errors.New("swap: route targets an unknown program")
	ErrZeroAmount         = errors.New("swap: amount must be positive")
)

const (
	// BondingCurveFeeBps is the fee the curve program keeps from every sell.
	BondingCurveFeeBps uint64 = 100
	// DefaultConstantProductFeeBps is the LP fee assumed for constant-product
	// pools.
	DefaultConstantProductFeeBps uint64 = 25
	// DefaultRouteSlippageBps bounds aggregator execution against the quote.
	DefaultRouteSlippageBps uint64 = 150
)

// sellDiscriminator prefixes the curve program's sell instruction.
var sellDiscriminator = [8]byte{0x33, 0xe6, 0x85, 0xa4, 0x01, 0x7f, 0x83, 0xad}

// SellInstruction encodes the curve sell instruction data.
func SellInstruction(amount, minOut uint64) []byte {
	data := make([]byte, 24)
	copy(data, sellDiscriminator[:])
	binary.LittleEndian.PutUint64(data[8:], amount)
	binary.LittleEndian.PutUint64(data[16:], minOut)
	return data
}

// BondingCurveSellOutput is the base currency returned for selling amount
// tokens into the curve, after the curve fee:
// out = vBase - vBase*vToken/(vToken+amount), less 1%.
func BondingCurveSellOutput(curve oracle.BondingCurveLayout, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, ErrZeroAmount
	}
	if curve.VirtualBaseReserves == 0 || curve.VirtualTokenReserves == 0 {
		return 0, oracle.ErrInvalidPriceFeed
	}
	vBase := uint256.NewInt(curve.VirtualBaseReserves)
	vToken := uint256.NewInt(curve.VirtualTokenReserves)
	k := new(uint256.Int).Mul(vBase, vToken)
	newToken := new(uint256.Int).Add(vToken, uint256.NewInt(amount))
	newBase := new(uint256.Int).Div(k, newToken)
	if vBase.Lt(newBase) {
		return 0, safemath.ErrUnderflow
	}
	gross := new(uint256.Int).Sub(vBase, newBase).Uint64()
	fee := gross * BondingCurveFeeBps / safemath.BpsDivisor
	return gross - fee, nil
}

// ConstantProductOut is the x*y=k output for amountIn after feeBps.
func ConstantProductOut(reserveIn, reserveOut, amountIn, feeBps uint64) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrZeroAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return 0, oracle.ErrInvalidPriceFeed
	}
	if feeBps >= safemath.BpsDivisor {
		return 0, safemath.ErrOverflow
	}
	inWithFee := new(uint256.Int).Mul(uint256.NewInt(amountIn), uint256.NewInt(safemath.BpsDivisor-feeBps))
	num := new(uint256.Int).Mul(inWithFee, uint256.NewInt(reserveOut))
	den := new(uint256.Int).Mul(uint256.NewInt(reserveIn), uint256.NewInt(safemath.BpsDivisor))
	den.Add(den, inWithFee)
	return new(uint256.Int).Div(num, den).Uint64(), nil
}

// MinOutput applies slippageBps to an expected output, saturating at zero.
func MinOutput(expected, slippageBps uint64) uint64 {
	if slippageBps >= safemath.BpsDivisor {
		return 0
	}
	out, err := safemath.MulDiv(expected, safemath.BpsDivisor-slippageBps, safemath.BpsDivisor)
	if err != nil {
		return 0
	}
	return out
}
