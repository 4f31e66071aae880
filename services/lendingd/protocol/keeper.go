package protocol

import (
	"context"
	"errors"
	"log/slog"

	"memelend/crypto"
	"memelend/native/lending"
	"memelend/native/lending/keeper"
)

// TrackActive seeds the keeper index with the loans open in committed state.
func (p *Protocol) TrackActive(index *keeper.Index) (int, error) {
	loans, err := p.ActiveLoans()
	if err != nil {
		return 0, err
	}
	for _, l := range loans {
		index.Track(keeper.Entry{
			Loan:             l.Address,
			Borrower:         l.Borrower,
			Mint:             l.Mint,
			DueAt:            l.DueAt,
			LiquidationPrice: l.LiquidationPrice,
		})
	}
	return len(loans), nil
}

// LiquidationHandler liquidates keeper candidates as liquidator, one
// instruction per loan. A candidate that is no longer liquidatable is
// skipped; other failures are logged and the batch continues.
func (p *Protocol) LiquidationHandler(liquidator crypto.Address) keeper.Handler {
	return func(ctx context.Context, candidates []keeper.Candidate) error {
		var failed []error
		for _, c := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			var receipt *lending.LiquidationReceipt
			err := p.Execute("keeper", func(tx Tx) error {
				loan, err := tx.Lending.GetLoan(c.Loan)
				if err != nil {
					return err
				}
				pool, err := LoanPool(tx, loan, p.nowFn().Unix())
				if err != nil {
					return err
				}
				minOut, err := DefaultMinOut(tx, loan, pool)
				if err != nil {
					return err
				}
				receipt, err = tx.Lending.Liquidate(liquidator, c.Loan, minOut, nil, pool)
				return err
			})
			switch {
			case err == nil:
				p.logger.Info("loan liquidated",
					slog.String("loan", c.Loan.String()),
					slog.String("reason", receipt.Reason.String()),
					slog.Uint64("proceeds", receipt.Proceeds))
			case errors.Is(err, lending.ErrLoanNotLiquidatable),
				errors.Is(err, lending.ErrLoanAlreadyRepaid),
				errors.Is(err, lending.ErrLoanLiquidated):
				p.logger.Debug("candidate no longer liquidatable", slog.String("loan", c.Loan.String()))
			default:
				failed = append(failed, err)
			}
		}
		return errors.Join(failed...)
	}
}
