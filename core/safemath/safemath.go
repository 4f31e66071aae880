// Package safemath implements the checked integer arithmetic every protocol
// computation is built on. Nothing here wraps silently: overflow, underflow
// and division by zero are returned as errors so a failed instruction can be
// rolled back as a whole.
package safemath

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

// BpsDivisor is the basis-point denominator (10000 bps = 100%).
const BpsDivisor uint64 = 10_000

var (
	ErrOverflow       = errors.New("math overflow")
	ErrUnderflow      = errors.New("math underflow")
	ErrDivisionByZero = errors.New("division by zero")
)

func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, ErrOverflow
	}
	return sum, nil
}

func Sub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return lo, nil
}

func Div(a, b uint64) (uint64, error) {
	if b == 0 {
		return 0, ErrDivisionByZero
	}
	return a / b, nil
}

// SaturatingSub returns a-b, or zero when b exceeds a.
func SaturatingSub(a, b uint64) uint64 {
	if b > a {
		return 0
	}
	return a - b
}

// MulDiv computes a*b/c with a double-width intermediate.
func MulDiv(a, b, c uint64) (uint64, error) {
	if c == 0 {
		return 0, ErrDivisionByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, c)
	return quo, nil
}

// Bps returns amount * bps / 10000.
func Bps(amount, bps uint64) (uint64, error) {
	return MulDiv(amount, bps, BpsDivisor)
}

// MulDivWide computes a*b*c/(d*e) with every product taken at 256 bits, which
// is what the loan-size formula needs: three 64-bit factors over a composite
// divisor.
func MulDivWide(factors []uint64, divisors []uint64) (uint64, error) {
	num := uint256.NewInt(1)
	for _, f := range factors {
		if _, overflow := num.MulOverflow(num, uint256.NewInt(f)); overflow {
			return 0, ErrOverflow
		}
	}
	den := uint256.NewInt(1)
	for _, d := range divisors {
		if _, overflow := den.MulOverflow(den, uint256.NewInt(d)); overflow {
			return 0, ErrOverflow
		}
	}
	if den.IsZero() {
		return 0, ErrDivisionByZero
	}
	num.Div(num, den)
	if !num.IsUint64() {
		return 0, ErrOverflow
	}
	return num.Uint64(), nil
}
