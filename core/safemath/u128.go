package safemath

import (
	"github.com/holiman/uint256"
)

// U128Max bounds values that are specified as unsigned 128-bit quantities,
// such as the reward-per-token accumulator.
var U128Max = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)

// NewU128 returns a fresh zero value.
func NewU128() *uint256.Int { return new(uint256.Int) }

// AddU128 returns a+b, failing when the result leaves the 128-bit range.
func AddU128(a, b *uint256.Int) (*uint256.Int, error) {
	out, overflow := new(uint256.Int).AddOverflow(orZero(a), orZero(b))
	if overflow || out.Gt(U128Max) {
		return nil, ErrOverflow
	}
	return out, nil
}

// SubU128 returns a-b, failing on underflow.
func SubU128(a, b *uint256.Int) (*uint256.Int, error) {
	out, underflow := new(uint256.Int).SubOverflow(orZero(a), orZero(b))
	if underflow {
		return nil, ErrUnderflow
	}
	return out, nil
}

// MulDivU128 computes a*b/c for 128-bit operands.
func MulDivU128(a, b, c *uint256.Int) (*uint256.Int, error) {
	if c == nil || c.IsZero() {
		return nil, ErrDivisionByZero
	}
	out, overflow := new(uint256.Int).MulDivOverflow(orZero(a), orZero(b), c)
	if overflow || out.Gt(U128Max) {
		return nil, ErrOverflow
	}
	return out, nil
}

// NarrowU64 converts v to uint64, failing when it does not fit.
func NarrowU64(v *uint256.Int) (uint64, error) {
	if v == nil {
		return 0, nil
	}
	if !v.IsUint64() {
		return 0, ErrOverflow
	}
	return v.Uint64(), nil
}

// CloneU128 copies v, mapping nil to zero.
func CloneU128(v *uint256.Int) *uint256.Int {
	return new(uint256.Int).Set(orZero(v))
}

func orZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
