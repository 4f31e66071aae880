package lending

import (
	"errors"
	"testing"

	"memelend/core/oracle"
)

func TestLiquidationPriceScenario(t *testing.T) {
	got, err := LiquidationPriceAtScale(500_000_000, 1_000_000_000, 5000, 4000, 10_000)
	if err != nil {
		t.Fatalf("liquidation price: %v", err)
	}
	if got != 5555 {
		t.Fatalf("expected 5555, got %d", got)
	}
	capped, err := LiquidationPriceAtScale(500_000_000, 1_000_000_000, 5000, 6000, 10_000)
	if err != nil {
		t.Fatalf("capped liquidation price: %v", err)
	}
	if capped != got {
		t.Fatalf("buffer above the cap changed the result: %d != %d", capped, got)
	}
	scaled, err := LiquidationPrice(500_000_000, 1_000_000_000, 5000, 4000)
	if err != nil {
		t.Fatalf("scaled liquidation price: %v", err)
	}
	if scaled != 555_555_555 {
		t.Fatalf("expected 555555555 at price scale, got %d", scaled)
	}
}

func TestEffectiveLiquidationLtvCap(t *testing.T) {
	if got := EffectiveLiquidationLtv(5000, 4000); got != 9000 {
		t.Fatalf("unexpected effective ltv %d", got)
	}
	if got := EffectiveLiquidationLtv(2500, 4000); got != 6500 {
		t.Fatalf("unexpected effective ltv %d", got)
	}
	if got := EffectiveLiquidationLtv(^uint64(0), 1); got != MaxLiquidationLtvBps {
		t.Fatalf("overflowing sum must clamp, got %d", got)
	}
}

func TestLoanAmount(t *testing.T) {
	got, err := LoanAmount(1_000_000_000_000, 1_000_000, 5000)
	if err != nil {
		t.Fatalf("loan amount: %v", err)
	}
	if got != 500_000_000 {
		t.Fatalf("unexpected loan amount %d", got)
	}
	got, err = LoanAmount(1_000_000_000, 2_000_000_000, 5000)
	if err != nil || got != 1_000_000_000 {
		t.Fatalf("loan amount at price 2.0: %d, %v", got, err)
	}
	// The intermediate product exceeds 64 bits but the result fits.
	got, err = LoanAmount(^uint64(0)/2, oracle.PriceScale, 1000)
	if err != nil {
		t.Fatalf("wide loan amount: %v", err)
	}
	if got != (^uint64(0)/2)/10 {
		t.Fatalf("unexpected wide loan amount %d", got)
	}
	if _, err := LoanAmount(^uint64(0), ^uint64(0), 9000); err == nil {
		t.Fatalf("expected overflow")
	}
}

func TestDurationAdjustedLTV(t *testing.T) {
	cases := []struct {
		duration int64
		want     uint64
	}{
		{MinLoanDuration, 6250},
		{MinLoanDuration - 100, 6250},
		{BaseLoanDuration, 5000},
		{MaxLoanDuration, 3750},
		{MaxLoanDuration * 2, 3750},
	}
	for _, tc := range cases {
		if got := DurationAdjustedLTV(5000, tc.duration); got != tc.want {
			t.Fatalf("duration %d: got %d want %d", tc.duration, got, tc.want)
		}
	}
	if got := DurationAdjustedLTV(500, BaseLoanDuration); got != MinEffectiveLtvBps {
		t.Fatalf("low ltv not clamped: %d", got)
	}
	if got := DurationAdjustedLTV(8000, MinLoanDuration); got != MaxEffectiveLtvBps {
		t.Fatalf("high ltv not clamped: %d", got)
	}
}

func TestDurationAdjustedLTVMonotonic(t *testing.T) {
	for _, base := range []uint64{2500, 3500, 5000} {
		prev := DurationAdjustedLTV(base, MinLoanDuration)
		for d := MinLoanDuration + 3600; d <= MaxLoanDuration; d += 3600 {
			next := DurationAdjustedLTV(base, d)
			if next > prev {
				t.Fatalf("ltv %d increased from %d to %d at %ds", base, prev, next, d)
			}
			prev = next
		}
	}
}

func TestLiquidationTriggers(t *testing.T) {
	loan := &Loan{LiquidationPrice: 555_555, DueAt: 1_000}
	if !IsLiquidatableByPrice(loan, 555_555) {
		t.Fatalf("trigger price must be inclusive")
	}
	if IsLiquidatableByPrice(loan, 555_556) {
		t.Fatalf("price above trigger must not liquidate")
	}
	if IsLiquidatableByTime(loan, 1_000) {
		t.Fatalf("due time itself must not liquidate")
	}
	if !IsLiquidatableByTime(loan, 1_001) {
		t.Fatalf("expected time liquidation after due")
	}
	if reason, ok := LiquidationReason(loan, 2_000, 1); !ok || reason != LoanLiquidatedByPrice {
		t.Fatalf("price trigger must take precedence, got %s", reason)
	}
	if reason, ok := LiquidationReason(loan, 2_000, 600_000); !ok || reason != LoanLiquidatedByTime {
		t.Fatalf("expected time trigger, got %s", reason)
	}
	if _, ok := LiquidationReason(loan, 10, 600_000); ok {
		t.Fatalf("healthy loan reported liquidatable")
	}
}

func TestTotalOwedAndHealth(t *testing.T) {
	owed, err := TotalOwed(500_000_000, DefaultProtocolFeeBps)
	if err != nil {
		t.Fatalf("total owed: %v", err)
	}
	if owed != 510_000_000 {
		t.Fatalf("unexpected total owed %d", owed)
	}
	bonus, err := LiquidationBonus(1_000_000, 500)
	if err != nil || bonus != 50_000 {
		t.Fatalf("unexpected bonus %d (%v)", bonus, err)
	}
	health, err := HealthFactor(1_000_000_000_000, 1_000_000, 500_000_000, 5000)
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if health != 10_000 {
		t.Fatalf("expected health at par, got %d", health)
	}
}

func TestSplitBpsDustToFirst(t *testing.T) {
	parts, err := SplitBps(10_001, 5000, 2500, 2500)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if parts[0] != 5001 || parts[1] != 2500 || parts[2] != 2500 {
		t.Fatalf("unexpected split %v", parts)
	}
	if parts[0]+parts[1]+parts[2] != 10_001 {
		t.Fatalf("split lost dust")
	}
}

func TestCheckExposureOrder(t *testing.T) {
	limits := DefaultExposureLimits()
	base := ExposureRequest{
		CollateralValue:     1_000_000_000,
		LoanAmount:          500_000_000,
		TokenMinLoan:        10_000_000,
		TokenMaxLoan:        100_000_000_000,
		TreasuryBalance:     1_000_000_000_000,
		TokenActiveBorrowed: 0,
		UserBorrowed:        0,
	}
	if err := CheckExposure(limits, base); err != nil {
		t.Fatalf("baseline rejected: %v", err)
	}
	cases := []struct {
		name   string
		mutate func(r *ExposureRequest)
		want   error
	}{
		{"collateral value", func(r *ExposureRequest) { r.CollateralValue = 9_999_999; r.LoanAmount = 1 }, ErrCollateralValueTooLow},
		{"token min", func(r *ExposureRequest) { r.LoanAmount = 9_000_000 }, ErrLoanAmountTooLow},
		{"token max", func(r *ExposureRequest) { r.TokenMaxLoan = 400_000_000 }, ErrLoanAmountTooHigh},
		{"treasury", func(r *ExposureRequest) { r.TreasuryBalance = 400_000_000 }, ErrInsufficientTreasury},
		{"single loan", func(r *ExposureRequest) { r.TreasuryBalance = 4_000_000_000 }, ErrSingleLoanTooLarge},
		{"token exposure", func(r *ExposureRequest) { r.TokenActiveBorrowed = 99_600_000_000 }, ErrTokenExposureTooHigh},
		{"user exposure", func(r *ExposureRequest) { r.UserBorrowed = 299_600_000_000 }, ErrUserExposureTooHigh},
		{"absolute minimum", func(r *ExposureRequest) { r.TokenMinLoan = 1; r.LoanAmount = 9_999_999 }, ErrLoanAmountTooLow},
	}
	for _, tc := range cases {
		req := base
		tc.mutate(&req)
		if err := CheckExposure(limits, req); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	disabled := limits
	disabled.MaxUserExposureBps = 0
	req := base
	req.UserBorrowed = 999_000_000_000
	if err := CheckExposure(disabled, req); err != nil {
		t.Fatalf("disabled user cap still enforced: %v", err)
	}
}

func TestCodeMapping(t *testing.T) {
	if Code(nil) != 0 {
		t.Fatalf("nil error must map to 0")
	}
	if Code(ErrSlippageTooHigh) != 6051 {
		t.Fatalf("unexpected code %d", Code(ErrSlippageTooHigh))
	}
	if Code(oracle.ErrStalePrice) != 6012 {
		t.Fatalf("oracle errors must be mapped")
	}
	if Code(errors.New("other")) != 0 {
		t.Fatalf("unknown errors must map to 0")
	}
}
