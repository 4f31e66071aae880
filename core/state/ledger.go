package state

import (
	"encoding/binary"
	"errors"
	"fmt"

	"memelend/core/safemath"
	"memelend/crypto"
)

var (
	ErrInsufficientLamports = errors.New("state: insufficient lamports")
	ErrInsufficientTokens   = errors.New("state: insufficient token balance")
	ErrTokenAuthority       = errors.New("state: token authority mismatch")
	ErrTokenAccountExists   = errors.New("state: token account already open")
	ErrTokenAccountMissing  = errors.New("state: token account not open")
	ErrTokenAccountNotEmpty = errors.New("state: token account not empty")
)

// Lamports returns the base currency balance of addr.
func (m *Manager) Lamports(addr crypto.Address) (uint64, error) {
	data, ok, err := m.get(addressKey(lamportsPrefix, addr))
	if err != nil || !ok {
		return 0, err
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("state: lamport record of %s is %d bytes", addr, len(data))
	}
	return binary.BigEndian.Uint64(data), nil
}

func (m *Manager) setLamports(addr crypto.Address, amount uint64) error {
	key := addressKey(lamportsPrefix, addr)
	if amount == 0 {
		return m.delete(key)
	}
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], amount)
	return m.put(key, buf[:])
}

// CreditLamports mints base currency into addr. Used by genesis funding and
// test fixtures.
func (m *Manager) CreditLamports(addr crypto.Address, amount uint64) error {
	balance, err := m.Lamports(addr)
	if err != nil {
		return err
	}
	next, err := safemath.Add(balance, amount)
	if err != nil {
		return err
	}
	return m.setLamports(addr, next)
}

// TransferLamports moves amount between accounts.
func (m *Manager) TransferLamports(from, to crypto.Address, amount uint64) error {
	if amount == 0 || from == to {
		return nil
	}
	src, err := m.Lamports(from)
	if err != nil {
		return err
	}
	if src < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientLamports, from, src, amount)
	}
	dst, err := m.Lamports(to)
	if err != nil {
		return err
	}
	next, err := safemath.Add(dst, amount)
	if err != nil {
		return err
	}
	if err := m.setLamports(from, src-amount); err != nil {
		return err
	}
	return m.setLamports(to, next)
}

// tokenAccount is the stored form of a token account. Accounts that were
// never opened are implicitly controlled by their own address.
type tokenAccount struct {
	Authority crypto.Address
	Amount    uint64
	Open      bool
}

func (m *Manager) loadTokenAccount(account, mint crypto.Address) (*tokenAccount, error) {
	acct := new(tokenAccount)
	ok, err := m.loadRLP(tokenKey(mint, account), acct)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &tokenAccount{Authority: account}, nil
	}
	return acct, nil
}

func (m *Manager) writeTokenAccount(account, mint crypto.Address, acct *tokenAccount) error {
	if !acct.Open && acct.Amount == 0 {
		return m.delete(tokenKey(mint, account))
	}
	return m.writeRLP(tokenKey(mint, account), acct)
}

// TokenBalance returns the mint balance held by account.
func (m *Manager) TokenBalance(account, mint crypto.Address) (uint64, error) {
	acct, err := m.loadTokenAccount(account, mint)
	if err != nil {
		return 0, err
	}
	return acct.Amount, nil
}

// OpenTokenAccount creates a program-controlled account with the given
// authority.
func (m *Manager) OpenTokenAccount(account, mint, authority crypto.Address) error {
	acct, err := m.loadTokenAccount(account, mint)
	if err != nil {
		return err
	}
	if acct.Open {
		return fmt.Errorf("%w: %s", ErrTokenAccountExists, account)
	}
	acct.Open = true
	acct.Authority = authority
	return m.writeTokenAccount(account, mint, acct)
}

// MintTokens credits amount of mint to account.
func (m *Manager) MintTokens(account, mint crypto.Address, amount uint64) error {
	acct, err := m.loadTokenAccount(account, mint)
	if err != nil {
		return err
	}
	if acct.Amount, err = safemath.Add(acct.Amount, amount); err != nil {
		return err
	}
	supply, err := m.TokenSupply(mint)
	if err != nil {
		return err
	}
	if supply, err = safemath.Add(supply, amount); err != nil {
		return err
	}
	if err := m.writeTokenSupply(mint, supply); err != nil {
		return err
	}
	return m.writeTokenAccount(account, mint, acct)
}

// TransferTokens moves amount of mint. authority must control from.
func (m *Manager) TransferTokens(mint, from, to crypto.Address, amount uint64, authority crypto.Address) error {
	src, err := m.loadTokenAccount(from, mint)
	if err != nil {
		return err
	}
	if src.Authority != authority {
		return fmt.Errorf("%w: %s", ErrTokenAuthority, from)
	}
	if src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientTokens, from, src.Amount, amount)
	}
	if amount == 0 || from == to {
		return nil
	}
	dst, err := m.loadTokenAccount(to, mint)
	if err != nil {
		return err
	}
	if dst.Amount, err = safemath.Add(dst.Amount, amount); err != nil {
		return err
	}
	src.Amount -= amount
	if err := m.writeTokenAccount(from, mint, src); err != nil {
		return err
	}
	return m.writeTokenAccount(to, mint, dst)
}

// CloseTokenAccount removes an empty program-controlled account.
func (m *Manager) CloseTokenAccount(account, mint, authority crypto.Address) error {
	acct, err := m.loadTokenAccount(account, mint)
	if err != nil {
		return err
	}
	if !acct.Open {
		return fmt.Errorf("%w: %s", ErrTokenAccountMissing, account)
	}
	if acct.Authority != authority {
		return fmt.Errorf("%w: %s", ErrTokenAuthority, account)
	}
	if acct.Amount != 0 {
		return fmt.Errorf("%w: %d left", ErrTokenAccountNotEmpty, acct.Amount)
	}
	return m.delete(tokenKey(mint, account))
}
