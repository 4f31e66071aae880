package protocol

import (
	"errors"
	"fmt"

	"memelend/core/oracle"
	"memelend/core/state"
	"memelend/crypto"
	"memelend/native/lending"
)

// ErrPoolNotFound is returned when a pool account has not been published.
var ErrPoolNotFound = errors.New("protocol: pool account not found")

// PoolSnapshot loads the raw pool record, and for vault pools the two
// reserve token accounts, as of now.
func PoolSnapshot(m *state.Manager, addr crypto.Address, kind oracle.PoolType, now int64) (oracle.PoolAccount, error) {
	_, data, ok, err := m.GetAccount(addr)
	if err != nil {
		return oracle.PoolAccount{}, err
	}
	if !ok {
		return oracle.PoolAccount{}, fmt.Errorf("%w: %s", ErrPoolNotFound, addr)
	}
	pool := oracle.PoolAccount{Address: addr, Data: data, ObservedAt: now}
	if kind != oracle.PoolPumpSwap {
		return pool, nil
	}
	layout, err := oracle.DecodeVaultPool(data)
	if err != nil {
		return oracle.PoolAccount{}, err
	}
	for _, v := range []struct {
		addr crypto.Address
		dst  *oracle.TokenAccount
	}{
		{layout.BaseVault, &pool.BaseVault},
		{layout.QuoteVault, &pool.QuoteVault},
	} {
		_, raw, ok, err := m.GetAccount(v.addr)
		if err != nil {
			return oracle.PoolAccount{}, err
		}
		if !ok {
			return oracle.PoolAccount{}, fmt.Errorf("%w: vault %s", ErrPoolNotFound, v.addr)
		}
		*v.dst = oracle.TokenAccount{Address: v.addr, Data: raw}
	}
	return pool, nil
}

// TokenPool loads the pool configured for a whitelisted mint.
func TokenPool(tx Tx, mint crypto.Address, now int64) (oracle.PoolAccount, error) {
	cfg, err := tx.Lending.GetTokenConfig(mint)
	if err != nil {
		return oracle.PoolAccount{}, err
	}
	return PoolSnapshot(tx.State, cfg.PoolAddress, cfg.PoolType, now)
}

// LoanPool loads the pool of the loan's collateral mint.
func LoanPool(tx Tx, loan *lending.Loan, now int64) (oracle.PoolAccount, error) {
	return TokenPool(tx, loan.Mint, now)
}

// DefaultMinOut is the tightest minimum output the engine accepts for
// selling the loan's collateral into pool.
func DefaultMinOut(tx Tx, loan *lending.Loan, pool oracle.PoolAccount) (uint64, error) {
	cfg, err := tx.Lending.GetTokenConfig(loan.Mint)
	if err != nil {
		return 0, err
	}
	price, err := oracle.ReadPrice(pool, cfg.PoolType, cfg.Mint)
	if err != nil {
		return 0, err
	}
	expected, err := lending.CollateralValue(loan.CollateralAmount, price)
	if err != nil {
		return 0, err
	}
	return lending.MinimumAcceptableOutput(expected, tx.Lending.Params().LiquidationSlippageBps)
}
