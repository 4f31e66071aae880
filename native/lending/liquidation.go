package lending

import (
	"fmt"
	"log/slog"

	"memelend/core/oracle"
	"memelend/core/safemath"
	"memelend/crypto"
)

// SwapRequest describes one sale of escrowed collateral.
type SwapRequest struct {
	Mint   crypto.Address
	Amount uint64
	MinOut uint64
	// Route is the opaque instruction payload supplied by the liquidator.
	Route []byte
	Pool  oracle.PoolAccount
	// Escrow releases the collateral; it is revoked when Sell returns.
	Escrow *Escrow
	// Recipient receives the base currency proceeds.
	Recipient crypto.Address
}

// SwapVenue sells collateral on an external market. Implementations pay the
// proceeds to req.Recipient; the engine measures them independently.
type SwapVenue interface {
	Name() string
	Sell(req SwapRequest) error
}

// LiquidationReceipt summarises a liquidation.
type LiquidationReceipt struct {
	Loan          *Loan
	Reason        LoanStatus
	Price         uint64
	Expected      uint64
	Proceeds      uint64
	TreasuryShare uint64
	OpsShare      uint64
	Venue         string
}

// MinimumAcceptableOutput is the lowest minOut accepted for a sale expected
// to return expected lamports.
func MinimumAcceptableOutput(expected, slippageBps uint64) (uint64, error) {
	if slippageBps > safemath.BpsDivisor {
		slippageBps = safemath.BpsDivisor
	}
	return safemath.MulDiv(expected, safemath.BpsDivisor-slippageBps, safemath.BpsDivisor)
}

// Liquidate closes a loan past its due time or at or below its trigger price.
// Under swap-and-split settlement the escrow is sold through the venue for
// the token's pool type; under liquidator purchase the caller pays the
// principal and receives the collateral.
func (e *Engine) Liquidate(caller, loanAddr crypto.Address, minOut uint64, route []byte, pool oracle.PoolAccount) (*LiquidationReceipt, error) {
	ps, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	receipt, err := e.liquidate(ps, caller, loanAddr, minOut, route, pool)
	if err != nil {
		e.abort()
		e.logger.Debug("liquidation rejected",
			slog.String("loan", loanAddr.String()),
			slog.Any("error", err))
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) liquidate(ps *ProtocolState, caller, loanAddr crypto.Address, minOut uint64, route []byte, pool oracle.PoolAccount) (*LiquidationReceipt, error) {
	if ps.AuthorizedLiquidator.IsZero() || caller != ps.AuthorizedLiquidator {
		return nil, ErrUnauthorized
	}
	loan, err := e.loadActiveLoan(loanAddr)
	if err != nil {
		return nil, err
	}
	cfg, err := e.loadTokenConfig(loan.Mint)
	if err != nil {
		return nil, err
	}
	now := e.now()
	price, err := e.readPrice(cfg, pool, now)
	if err != nil {
		return nil, err
	}
	reason, ok := LiquidationReason(loan, now, price)
	if !ok {
		return nil, ErrLoanNotLiquidatable
	}
	expected, err := CollateralValue(loan.CollateralAmount, price)
	if err != nil {
		return nil, err
	}

	receipt := &LiquidationReceipt{Reason: reason, Price: price, Expected: expected}
	es := e.escrowFor(loan)
	held, err := es.balance(e.state)
	if err != nil {
		return nil, err
	}
	if held != loan.CollateralAmount {
		return nil, fmt.Errorf("%w: vault holds %d, loan records %d", ErrEscrowMismatch, held, loan.CollateralAmount)
	}

	switch e.params.Settlement {
	case SettlementSwapAndSplit:
		venue, ok := e.venues[cfg.PoolType]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrVenueUnavailable, cfg.PoolType)
		}
		floor, err := MinimumAcceptableOutput(expected, e.params.LiquidationSlippageBps)
		if err != nil {
			return nil, err
		}
		if minOut < floor {
			return nil, fmt.Errorf("%w: min output %d below %d", ErrSlippageTooHigh, minOut, floor)
		}

		loan.Status = reason
		loan.ClosedAt = now
		if err := e.state.PutLoan(loan); err != nil {
			return nil, err
		}

		vault := es.vault
		before, err := e.state.Lamports(vault)
		if err != nil {
			return nil, err
		}
		handle := e.authorise(es, loan.CollateralAmount)
		err = venue.Sell(SwapRequest{
			Mint:      loan.Mint,
			Amount:    loan.CollateralAmount,
			MinOut:    minOut,
			Route:     route,
			Pool:      pool,
			Escrow:    handle,
			Recipient: vault,
		})
		handle.revoke()
		if err != nil {
			return nil, fmt.Errorf("swap via %s: %w", venue.Name(), err)
		}
		after, err := e.state.Lamports(vault)
		if err != nil {
			return nil, err
		}
		proceeds := safemath.SaturatingSub(after, before)
		if proceeds < minOut {
			return nil, fmt.Errorf("%w: received %d, minimum %d", ErrSlippageExceeded, proceeds, minOut)
		}
		parts, err := SplitBps(proceeds, e.params.LiquidationTreasuryBps, e.params.LiquidationOperationsBps)
		if err != nil {
			return nil, err
		}
		if err := e.state.TransferLamports(vault, TreasuryAddress(), parts[0]); err != nil {
			return nil, err
		}
		if parts[1] > 0 {
			if err := e.state.TransferLamports(vault, ps.OperationsWallet, parts[1]); err != nil {
				return nil, err
			}
		}
		loan.Proceeds = proceeds
		receipt.Proceeds = proceeds
		receipt.TreasuryShare = parts[0]
		receipt.OpsShare = parts[1]
		receipt.Venue = venue.Name()

	case SettlementLiquidatorPurchase:
		balance, err := e.state.Lamports(caller)
		if err != nil {
			return nil, err
		}
		if balance < loan.Borrowed {
			return nil, fmt.Errorf("%w: liquidator holds %d, owes %d", ErrInsufficientBalance, balance, loan.Borrowed)
		}
		loan.Status = reason
		loan.ClosedAt = now
		if err := e.state.PutLoan(loan); err != nil {
			return nil, err
		}
		if err := e.state.TransferLamports(caller, TreasuryAddress(), loan.Borrowed); err != nil {
			return nil, err
		}
		if err := es.release(e.state, caller, loan.CollateralAmount); err != nil {
			return nil, err
		}
		loan.Proceeds = loan.Borrowed
		receipt.Proceeds = loan.Borrowed
		receipt.TreasuryShare = loan.Borrowed

	default:
		return nil, fmt.Errorf("lending: unknown settlement mode %d", e.params.Settlement)
	}

	if err := es.close(e.state); err != nil {
		return nil, err
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}
	if err := e.closeCounters(ps, loan, func(x *UserExposure) { x.LoansLiquidated++ }); err != nil {
		return nil, err
	}
	if err := e.commit(ps); err != nil {
		return nil, err
	}

	receipt.Loan = loan.Clone()
	e.emitter.Emit(newLoanLiquidatedEvent(loan, caller, price))
	e.logger.Info("loan liquidated",
		slog.String("loan", loan.Address.String()),
		slog.String("reason", reason.String()),
		slog.Uint64("price", price),
		slog.Uint64("proceeds", receipt.Proceeds))
	return receipt, nil
}
