package lending

import (
	"memelend/core/oracle"
	"memelend/core/safemath"
)

// Loan sizing constants.
const (
	MinLoanDuration  int64 = 12 * 60 * 60
	MaxLoanDuration  int64 = 7 * 24 * 60 * 60
	BaseLoanDuration int64 = 48 * 60 * 60

	MaxDurationBonusBps   uint64 = 2500
	MaxDurationPenaltyBps uint64 = 2500
	MinEffectiveLtvBps    uint64 = 1000
	MaxEffectiveLtvBps    uint64 = 9000

	DefaultLiquidationBufferBps uint64 = 4000
	MaxLiquidationLtvBps        uint64 = 9000

	DefaultProtocolFeeBps uint64 = 200
)

// ValidateDuration checks the requested loan term.
func ValidateDuration(seconds int64) error {
	if seconds < MinLoanDuration {
		return ErrDurationTooShort
	}
	if seconds > MaxLoanDuration {
		return ErrDurationTooLong
	}
	return nil
}

// CollateralValue is collateral * price / PriceScale.
func CollateralValue(collateral, price uint64) (uint64, error) {
	return safemath.MulDiv(collateral, price, oracle.PriceScale)
}

// LoanAmount is collateral * price * ltv / (PriceScale * 10000) with every
// intermediate product taken at full width.
func LoanAmount(collateral, price, ltvBps uint64) (uint64, error) {
	return safemath.MulDivWide(
		[]uint64{collateral, price, ltvBps},
		[]uint64{oracle.PriceScale, safemath.BpsDivisor},
	)
}

// DurationAdjustedLTV scales ltvBps by the loan term. Terms shorter than
// BaseLoanDuration earn up to MaxDurationBonusBps (relative) at the minimum
// term, longer terms lose up to MaxDurationPenaltyBps at the maximum term.
// Out-of-range durations clamp to the nearest bound and the result always
// lands in [MinEffectiveLtvBps, MaxEffectiveLtvBps].
func DurationAdjustedLTV(ltvBps uint64, durationSeconds int64) uint64 {
	d := durationSeconds
	if d < MinLoanDuration {
		d = MinLoanDuration
	}
	if d > MaxLoanDuration {
		d = MaxLoanDuration
	}

	var factor uint64
	if d <= BaseLoanDuration {
		span := uint64(BaseLoanDuration - MinLoanDuration)
		bonus := MaxDurationBonusBps * uint64(BaseLoanDuration-d) / span
		factor = safemath.BpsDivisor + bonus
	} else {
		span := uint64(MaxLoanDuration - BaseLoanDuration)
		penalty := MaxDurationPenaltyBps * uint64(d-BaseLoanDuration) / span
		factor = safemath.BpsDivisor - penalty
	}

	adjusted, err := safemath.MulDiv(ltvBps, factor, safemath.BpsDivisor)
	if err != nil {
		adjusted = MaxEffectiveLtvBps
	}
	return clampLtv(adjusted)
}

func clampLtv(bps uint64) uint64 {
	if bps < MinEffectiveLtvBps {
		return MinEffectiveLtvBps
	}
	if bps > MaxEffectiveLtvBps {
		return MaxEffectiveLtvBps
	}
	return bps
}

// EffectiveLiquidationLtv is ltv + buffer capped at MaxLiquidationLtvBps, so
// the position is never worth less than the principal at the trigger.
func EffectiveLiquidationLtv(ltvBps, bufferBps uint64) uint64 {
	sum := ltvBps + bufferBps
	if sum < ltvBps || sum > MaxLiquidationLtvBps {
		return MaxLiquidationLtvBps
	}
	return sum
}

// LiquidationPrice solves collateral * price / PriceScale * effectiveLtv /
// 10000 == borrowed for price.
func LiquidationPrice(borrowed, collateral, ltvBps, bufferBps uint64) (uint64, error) {
	return LiquidationPriceAtScale(borrowed, collateral, ltvBps, bufferBps, oracle.PriceScale)
}

// LiquidationPriceAtScale is LiquidationPrice for an arbitrary price scale.
// A scale of 10000 expresses the trigger in basis points of one base unit
// per collateral unit.
func LiquidationPriceAtScale(borrowed, collateral, ltvBps, bufferBps, scale uint64) (uint64, error) {
	effective := EffectiveLiquidationLtv(ltvBps, bufferBps)
	weighted, err := safemath.MulDiv(collateral, effective, safemath.BpsDivisor)
	if err != nil {
		return 0, err
	}
	return safemath.MulDivWide([]uint64{borrowed, scale}, []uint64{weighted})
}

// LiquidationBonus is collateral * bonusBps / 10000.
func LiquidationBonus(collateral, bonusBps uint64) (uint64, error) {
	return safemath.Bps(collateral, bonusBps)
}

// ProtocolFee is the flat fee charged on repayment.
func ProtocolFee(principal, feeBps uint64) (uint64, error) {
	return safemath.Bps(principal, feeBps)
}

// TotalOwed is principal plus the flat protocol fee.
func TotalOwed(principal, feeBps uint64) (uint64, error) {
	fee, err := ProtocolFee(principal, feeBps)
	if err != nil {
		return 0, err
	}
	return safemath.Add(principal, fee)
}

// HealthFactor returns the borrowing headroom in basis points; values under
// 10000 mean the position exceeds its LTV at the given price.
func HealthFactor(collateral, price, borrowed, ltvBps uint64) (uint64, error) {
	value, err := CollateralValue(collateral, price)
	if err != nil {
		return 0, err
	}
	maxBorrow, err := safemath.Bps(value, ltvBps)
	if err != nil {
		return 0, err
	}
	if borrowed == 0 {
		return ^uint64(0), nil
	}
	return safemath.MulDiv(maxBorrow, safemath.BpsDivisor, borrowed)
}

// IsLiquidatableByTime is true strictly after the due time.
func IsLiquidatableByTime(loan *Loan, now int64) bool {
	return loan != nil && now > loan.DueAt
}

// IsLiquidatableByPrice is true at or below the trigger price.
func IsLiquidatableByPrice(loan *Loan, price uint64) bool {
	return loan != nil && price <= loan.LiquidationPrice
}

// LiquidationReason picks the status recorded for a liquidation. The price
// trigger wins when both hold.
func LiquidationReason(loan *Loan, now int64, price uint64) (LoanStatus, bool) {
	switch {
	case IsLiquidatableByPrice(loan, price):
		return LoanLiquidatedByPrice, true
	case IsLiquidatableByTime(loan, now):
		return LoanLiquidatedByTime, true
	default:
		return LoanActive, false
	}
}

// SplitBps divides amount across shares; the remainder goes to the first
// share so no dust is lost.
func SplitBps(amount uint64, shares ...uint64) ([]uint64, error) {
	out := make([]uint64, len(shares))
	var assigned uint64
	for i := 1; i < len(shares); i++ {
		part, err := safemath.Bps(amount, shares[i])
		if err != nil {
			return nil, err
		}
		out[i] = part
		assigned += part
	}
	if len(shares) > 0 {
		rest, err := safemath.Sub(amount, assigned)
		if err != nil {
			return nil, err
		}
		out[0] = rest
	}
	return out, nil
}
