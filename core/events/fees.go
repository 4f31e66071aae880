package events

import (
	"memelend/core/types"
	"memelend/crypto"
)

const (
	// TypeFeesReceived is emitted when fees are paid into the receiver.
	TypeFeesReceived = "fees.received"
	// TypeFeesDistributed is emitted for every creator fee sweep.
	TypeFeesDistributed = "fees.distributed"
	TypeFeeSplitUpdated = "fees.splitUpdated"
)

// FeesReceived captures a recorded fee payment.
type FeesReceived struct {
	From      crypto.Address
	Amount    uint64
	Timestamp int64
}

// EventType satisfies the Event interface.
func (FeesReceived) EventType() string { return TypeFeesReceived }

// Event converts the structured payload into a broadcastable event.
func (e FeesReceived) Event() *types.Event {
	return types.NewEvent(TypeFeesReceived).
		With("from", e.From.String()).
		WithUint("amount", e.Amount).
		WithInt("timestamp", e.Timestamp)
}

// FeesDistributed captures one sweep of the fee receiver.
type FeesDistributed struct {
	Caller     crypto.Address
	Amount     uint64
	Treasury   uint64
	Staking    uint64
	Operations uint64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (FeesDistributed) EventType() string { return TypeFeesDistributed }

// Event converts the structured payload into a broadcastable event.
func (e FeesDistributed) Event() *types.Event {
	return types.NewEvent(TypeFeesDistributed).
		With("caller", e.Caller.String()).
		WithUint("amount", e.Amount).
		WithUint("treasury", e.Treasury).
		WithUint("staking", e.Staking).
		WithUint("operations", e.Operations).
		WithInt("timestamp", e.Timestamp)
}

// FeeSplitUpdated captures a change of the receiver's split.
type FeeSplitUpdated struct {
	Authority     crypto.Address
	TreasuryBps   uint64
	StakingBps    uint64
	OperationsBps uint64
	Timestamp     int64
}

// EventType satisfies the Event interface.
func (FeeSplitUpdated) EventType() string { return TypeFeeSplitUpdated }

// Event converts the structured payload into a broadcastable event.
func (e FeeSplitUpdated) Event() *types.Event {
	return types.NewEvent(TypeFeeSplitUpdated).
		With("authority", e.Authority.String()).
		WithUint("treasuryBps", e.TreasuryBps).
		WithUint("stakingBps", e.StakingBps).
		WithUint("operationsBps", e.OperationsBps).
		WithInt("timestamp", e.Timestamp)
}
