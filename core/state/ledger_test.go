package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/crypto"
	"memelend/storage"
)

func TestTransferLamports(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	require.NoError(t, mgr.CreditLamports(alice, 10))
	require.ErrorIs(t, mgr.TransferLamports(alice, bob, 11), ErrInsufficientLamports)
	require.NoError(t, mgr.TransferLamports(alice, bob, 10))

	got, err := mgr.Lamports(alice)
	require.NoError(t, err)
	require.Zero(t, got)
	has, err := mgr.db.Has(addressKey(lamportsPrefix, alice))
	require.NoError(t, err)
	require.False(t, has, "empty balances are pruned")
}

func TestTokenAccounts(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	mint := crypto.HashToAddress([]byte("mint"))
	vault := crypto.HashToAddress([]byte("vault"))
	authority := crypto.HashToAddress([]byte("loan-record"))

	require.NoError(t, mgr.MintTokens(alice, mint, 500))
	require.NoError(t, mgr.OpenTokenAccount(vault, mint, authority))
	require.ErrorIs(t, mgr.OpenTokenAccount(vault, mint, authority), ErrTokenAccountExists)

	require.ErrorIs(t, mgr.TransferTokens(mint, alice, vault, 100, bob), ErrTokenAuthority)
	require.NoError(t, mgr.TransferTokens(mint, alice, vault, 300, alice))
	require.ErrorIs(t, mgr.TransferTokens(mint, vault, bob, 301, authority), ErrInsufficientTokens)
	require.ErrorIs(t, mgr.TransferTokens(mint, vault, bob, 1, alice), ErrTokenAuthority)

	require.ErrorIs(t, mgr.CloseTokenAccount(vault, mint, authority), ErrTokenAccountNotEmpty)
	require.NoError(t, mgr.TransferTokens(mint, vault, bob, 300, authority))
	require.ErrorIs(t, mgr.CloseTokenAccount(vault, mint, alice), ErrTokenAuthority)
	require.NoError(t, mgr.CloseTokenAccount(vault, mint, authority))
	require.ErrorIs(t, mgr.CloseTokenAccount(vault, mint, authority), ErrTokenAccountMissing)

	balance, err := mgr.TokenBalance(bob, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(300), balance)
	balance, err = mgr.TokenBalance(alice, mint)
	require.NoError(t, err)
	require.Equal(t, uint64(200), balance)
}
