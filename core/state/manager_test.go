package state

import (
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/crypto"
	"memelend/storage"
)

var (
	alice = crypto.HashToAddress([]byte("alice"))
	bob   = crypto.HashToAddress([]byte("bob"))
)

func TestTransactionOverlay(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	require.NoError(t, mgr.CreditLamports(alice, 1_000))

	tx := mgr.Begin()
	require.NoError(t, tx.TransferLamports(alice, bob, 400))

	got, err := tx.Lamports(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), got, "transaction reads its own writes")
	got, err = mgr.Lamports(bob)
	require.NoError(t, err)
	require.Zero(t, got, "uncommitted write leaked to the database")

	require.NoError(t, tx.Commit())
	got, err = mgr.Lamports(bob)
	require.NoError(t, err)
	require.Equal(t, uint64(400), got)
	got, err = mgr.Lamports(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(600), got)

	require.ErrorIs(t, tx.Commit(), errTxClosed)
	_, err = tx.Lamports(alice)
	require.ErrorIs(t, err, errTxClosed)
}

func TestDiscardDropsWrites(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	require.NoError(t, mgr.CreditLamports(alice, 50))

	tx := mgr.Begin()
	require.NoError(t, tx.TransferLamports(alice, bob, 50))
	tx.Discard()

	got, err := mgr.Lamports(alice)
	require.NoError(t, err)
	require.Equal(t, uint64(50), got)
	require.ErrorIs(t, tx.PutAccount(bob, alice, []byte{1}), errTxClosed)
}

func TestIterateMergesOverlay(t *testing.T) {
	db := storage.NewMemDB()
	defer db.Close()
	mgr := NewManager(db)
	program := crypto.HashToAddress([]byte("program"))
	require.NoError(t, mgr.PutAccount(alice, program, []byte("a")))
	require.NoError(t, mgr.PutAccount(bob, program, []byte("b")))

	tx := mgr.Begin()
	carol := crypto.HashToAddress([]byte("carol"))
	require.NoError(t, tx.PutAccount(carol, program, []byte("c")))
	require.NoError(t, tx.delete(addressKey(accountPrefix, alice)))

	owned, err := tx.AccountsOwnedBy(program)
	require.NoError(t, err)
	require.ElementsMatch(t, []crypto.Address{bob, carol}, owned)

	owned, err = mgr.AccountsOwnedBy(program)
	require.NoError(t, err)
	require.ElementsMatch(t, []crypto.Address{alice, bob}, owned)
}
