package observability

import (
	"memelend/core/events"
	"memelend/observability/metrics"
)

// EventMetrics is an events.Emitter that feeds engine events into the
// Prometheus collectors.
type EventMetrics struct {
	m *metrics.LendingMetrics
}

// NewEventMetrics observes into m, or the process registry when m is nil.
func NewEventMetrics(m *metrics.LendingMetrics) *EventMetrics {
	if m == nil {
		m = metrics.Lending()
	}
	return &EventMetrics{m: m}
}

// Emit implements events.Emitter.
func (o *EventMetrics) Emit(evt events.Event) {
	if o == nil {
		return
	}
	switch e := evt.(type) {
	case events.LoanCreated:
		o.m.LoanOpened(e.Mint.String(), e.Borrowed)
	case events.LoanRepaid:
		o.m.LoanRepaid(e.ProtocolFee)
	case events.LoanLiquidated:
		o.m.LoanLiquidated(e.Reason, e.Proceeds)
	case events.EpochAdvanced:
		o.m.EpochStarted(e.Epoch, e.Rewards)
	case events.RewardsDistributed:
		o.m.RewardsDistributed(e.Paid)
	case events.RewardsClaimed:
		o.m.RewardsClaimed(e.Amount)
	case events.FeesDistributed:
		o.m.FeesSwept(e.Treasury, e.Staking, e.Operations)
	case events.SwapExecuted:
		o.m.SwapExecuted(e.Venue)
	}
}
