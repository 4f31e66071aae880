package indexer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/core/events"
	"memelend/crypto"
)

func newIndex(t *testing.T) *Index {
	t.Helper()
	db, err := Open("sqlite", "")
	require.NoError(t, err)
	idx, err := New(db, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestStoreAndQuery(t *testing.T) {
	idx := newIndex(t)
	ctx := context.Background()
	loan := crypto.HashToAddress([]byte("loan"))

	idx.Emit(events.LoanRepaid{Loan: loan, Repaid: 101, ProtocolFee: 1, Timestamp: 10})
	idx.Emit(events.RewardsClaimed{Owner: loan, Amount: 5, Epoch: 2, Timestamp: 11})
	idx.Emit(events.LoanLiquidated{Loan: loan, Reason: "time", Timestamp: 12})

	all, err := idx.Query(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, events.TypeLoanRepaid, all[0].Type)
	require.Equal(t, "101", all[0].Attributes["repaid"])
	require.Less(t, all[0].Seq, all[1].Seq)

	lendingOnly, err := idx.Query(ctx, Filter{Type: "lending."})
	require.NoError(t, err)
	require.Len(t, lendingOnly, 2)

	page, err := idx.Query(ctx, Filter{After: all[0].Seq, Limit: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, all[1].Seq, page[0].Seq)
}

func TestReplayIsIgnored(t *testing.T) {
	idx := newIndex(t)
	evt := events.FeesReceived{From: crypto.HashToAddress([]byte("creator")), Amount: 7, Timestamp: 3}
	require.NoError(t, idx.Store(context.Background(), evt))
	require.NoError(t, idx.Store(context.Background(), evt))

	got, err := idx.Query(context.Background(), Filter{Type: events.TypeFeesReceived})
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	require.Error(t, err)
}
