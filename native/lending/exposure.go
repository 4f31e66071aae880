package lending

import (
	"fmt"

	"memelend/core/safemath"
)

// Exposure defaults, as a share of the treasury balance at loan creation.
const (
	DefaultMinCollateralValue  uint64 = 10_000_000
	DefaultMinLoanAmount       uint64 = 10_000_000
	DefaultMaxSingleLoanBps    uint64 = 1000
	DefaultMaxTokenExposureBps uint64 = 1000
	DefaultMaxUserExposureBps  uint64 = 3000
)

// ExposureLimits bounds how much of the treasury any loan, token or user may
// draw. A zero MaxUserExposureBps disables the per-user cap.
type ExposureLimits struct {
	MinCollateralValue  uint64
	MinLoanAmount       uint64
	MaxSingleLoanBps    uint64
	MaxTokenExposureBps uint64
	MaxUserExposureBps  uint64
}

// DefaultExposureLimits returns the protocol defaults.
func DefaultExposureLimits() ExposureLimits {
	return ExposureLimits{
		MinCollateralValue:  DefaultMinCollateralValue,
		MinLoanAmount:       DefaultMinLoanAmount,
		MaxSingleLoanBps:    DefaultMaxSingleLoanBps,
		MaxTokenExposureBps: DefaultMaxTokenExposureBps,
		MaxUserExposureBps:  DefaultMaxUserExposureBps,
	}
}

// ExposureRequest carries the figures one new loan is checked against.
type ExposureRequest struct {
	CollateralValue     uint64
	LoanAmount          uint64
	TokenMinLoan        uint64
	TokenMaxLoan        uint64
	TreasuryBalance     uint64
	TokenActiveBorrowed uint64
	UserBorrowed        uint64
}

// CheckExposure runs the ordered pre-loan checks. The first failing check is
// reported; nothing is mutated.
func CheckExposure(limits ExposureLimits, req ExposureRequest) error {
	if req.CollateralValue < limits.MinCollateralValue {
		return ErrCollateralValueTooLow
	}
	if req.LoanAmount < req.TokenMinLoan {
		return ErrLoanAmountTooLow
	}
	if req.LoanAmount > req.TokenMaxLoan {
		return ErrLoanAmountTooHigh
	}
	if req.TreasuryBalance < req.LoanAmount {
		return ErrInsufficientTreasury
	}

	maxSingle, err := safemath.Bps(req.TreasuryBalance, limits.MaxSingleLoanBps)
	if err != nil {
		return err
	}
	if req.LoanAmount > maxSingle {
		return fmt.Errorf("%w: %d > %d", ErrSingleLoanTooLarge, req.LoanAmount, maxSingle)
	}

	maxToken, err := safemath.Bps(req.TreasuryBalance, limits.MaxTokenExposureBps)
	if err != nil {
		return err
	}
	tokenExposure, err := safemath.Add(req.TokenActiveBorrowed, req.LoanAmount)
	if err != nil {
		return err
	}
	if tokenExposure > maxToken {
		return fmt.Errorf("%w: %d > %d", ErrTokenExposureTooHigh, tokenExposure, maxToken)
	}

	if limits.MaxUserExposureBps > 0 {
		maxUser, err := safemath.Bps(req.TreasuryBalance, limits.MaxUserExposureBps)
		if err != nil {
			return err
		}
		userExposure, err := safemath.Add(req.UserBorrowed, req.LoanAmount)
		if err != nil {
			return err
		}
		if userExposure > maxUser {
			return fmt.Errorf("%w: %d > %d", ErrUserExposureTooHigh, userExposure, maxUser)
		}
	}

	if req.LoanAmount < limits.MinLoanAmount {
		return ErrLoanAmountTooLow
	}
	return nil
}
