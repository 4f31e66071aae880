package lending

import (
	"fmt"

	"memelend/crypto"
)

// vaultAuthority is the capability that moves tokens out of a loan's escrow.
// It can only be minted inside this package, from a loan record.
type vaultAuthority struct {
	loan crypto.Address
}

type escrow struct {
	authority vaultAuthority
	vault     crypto.Address
	mint      crypto.Address
}

func (e *Engine) escrowFor(loan *Loan) *escrow {
	return &escrow{
		authority: vaultAuthority{loan: loan.Address},
		vault:     loan.Vault(),
		mint:      loan.Mint,
	}
}

// openEscrow creates the vault token account for a new loan with the loan
// record as its authority.
func (e *Engine) openEscrow(loan *Loan) (*escrow, error) {
	es := e.escrowFor(loan)
	if err := e.state.OpenTokenAccount(es.vault, es.mint, es.authority.loan); err != nil {
		return nil, fmt.Errorf("open escrow: %w", err)
	}
	return es, nil
}

func (es *escrow) balance(state engineState) (uint64, error) {
	return state.TokenBalance(es.vault, es.mint)
}

func (es *escrow) release(state engineState, to crypto.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	return state.TransferTokens(es.mint, es.vault, to, amount, es.authority.loan)
}

// close removes the vault. It fails unless the vault is empty.
func (es *escrow) close(state engineState) error {
	remaining, err := es.balance(state)
	if err != nil {
		return err
	}
	if remaining != 0 {
		return fmt.Errorf("%w: %d tokens left in vault", ErrEscrowMismatch, remaining)
	}
	return state.CloseTokenAccount(es.vault, es.mint, es.authority.loan)
}

// Escrow is the handle a swap venue receives for the duration of one sale.
// It can release at most the amount authorised for the sale.
type Escrow struct {
	es        *escrow
	state     engineState
	remaining uint64
}

// Vault returns the escrow token account.
func (h *Escrow) Vault() crypto.Address { return h.es.vault }

// Mint returns the escrowed token mint.
func (h *Escrow) Mint() crypto.Address { return h.es.mint }

// Remaining returns the amount the venue may still release.
func (h *Escrow) Remaining() uint64 { return h.remaining }

// Release moves escrowed tokens to the given account.
func (h *Escrow) Release(to crypto.Address, amount uint64) error {
	if h == nil || h.es == nil {
		return ErrEscrowMismatch
	}
	if amount > h.remaining {
		return fmt.Errorf("%w: release %d exceeds authorised %d", ErrEscrowMismatch, amount, h.remaining)
	}
	if err := h.es.release(h.state, to, amount); err != nil {
		return err
	}
	h.remaining -= amount
	return nil
}

func (e *Engine) authorise(es *escrow, amount uint64) *Escrow {
	return &Escrow{es: es, state: e.state, remaining: amount}
}

// revoke ends the venue's access to the escrow.
func (h *Escrow) revoke() {
	h.remaining = 0
	h.es = nil
}
