package protocol

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"memelend/core/events"
	"memelend/native/lending"
	"memelend/native/lending/keeper"
)

func TestTrackActiveSeedsKeeperIndex(t *testing.T) {
	h := newHarness(t)
	loan := h.borrow(t)

	index := keeper.NewIndex()
	n, err := h.p.TrackActive(index)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Empty(t, index.Due(loan.DueAt))
	due := index.Due(loan.DueAt + 1)
	require.Len(t, due, 1)
	require.Equal(t, loan.Address, due[0].Loan)
}

func TestLiquidationHandlerClearsCandidates(t *testing.T) {
	h := newHarness(t)
	loan := h.borrow(t)

	index := keeper.NewIndex()
	_, err := h.p.TrackActive(index)
	require.NoError(t, err)
	h.now = loan.DueAt + 1
	h.out.Reset()

	k := keeper.New(index, h.p.LatestPrice, nil, 0)
	candidates := k.Scan(h.now)
	require.Len(t, candidates, 1)

	handle := h.p.LiquidationHandler(admin)
	require.NoError(t, handle(context.Background(), candidates))

	var liquidated *events.LoanLiquidated
	for _, evt := range h.out.Events() {
		if e, ok := evt.(events.LoanLiquidated); ok {
			liquidated = &e
			index.Emit(e)
		}
	}
	require.NotNil(t, liquidated)
	require.Equal(t, lending.LoanLiquidatedByTime.String(), liquidated.Reason)
	require.Zero(t, index.Len())

	// A second pass over the stale candidate list is a no-op.
	require.NoError(t, handle(context.Background(), candidates))
}
