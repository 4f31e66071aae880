package lending

import (
	"memelend/core/events"
	"memelend/crypto"
)

// NewLoanCreatedEvent renders the creation event of a loan.
func NewLoanCreatedEvent(loan *Loan) events.LoanCreated {
	return events.LoanCreated{
		Loan:             loan.Address,
		Borrower:         loan.Borrower,
		Mint:             loan.Mint,
		CollateralAmount: loan.CollateralAmount,
		Borrowed:         loan.Borrowed,
		EntryPrice:       loan.EntryPrice,
		LiquidationPrice: loan.LiquidationPrice,
		DueAt:            loan.DueAt,
		Timestamp:        loan.CreatedAt,
	}
}

// NewLoanRepaidEvent renders the repayment event of a loan.
func NewLoanRepaidEvent(loan *Loan, fee uint64) events.LoanRepaid {
	return events.LoanRepaid{
		Loan:               loan.Address,
		Borrower:           loan.Borrower,
		Repaid:             loan.Borrowed + fee,
		ProtocolFee:        fee,
		CollateralReturned: loan.CollateralAmount,
		Timestamp:          loan.ClosedAt,
	}
}

func newLoanLiquidatedEvent(loan *Loan, liquidator crypto.Address, price uint64) events.LoanLiquidated {
	return events.LoanLiquidated{
		Loan:             loan.Address,
		Borrower:         loan.Borrower,
		Liquidator:       liquidator,
		Reason:           loan.Status.String(),
		CollateralAmount: loan.CollateralAmount,
		Proceeds:         loan.Proceeds,
		Price:            price,
		Timestamp:        loan.ClosedAt,
	}
}

func newTokenUpdatedEvent(cfg *TokenConfig, now int64) events.TokenConfigUpdated {
	return events.TokenConfigUpdated{
		Mint:        cfg.Mint,
		LtvBps:      cfg.LtvBps,
		Enabled:     cfg.Enabled,
		Blacklisted: cfg.Blacklisted,
		Timestamp:   now,
	}
}
