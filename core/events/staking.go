package events

import (
	"memelend/core/types"
	"memelend/crypto"
)

const (
	// TypeStakeDeposited is emitted when governance tokens enter the pool.
	TypeStakeDeposited = "staking.deposited"
	// TypeStakeWithdrawn is emitted when stake leaves the pool.
	TypeStakeWithdrawn = "staking.withdrawn"
	// TypeRewardsClaimed is emitted for pull-mode reward claims.
	TypeRewardsClaimed = "staking.rewardsClaimed"
	// TypeRewardsDeposited is emitted when base currency is added to the reward vault.
	TypeRewardsDeposited = "staking.rewardsDeposited"
	// TypeEpochAdvanced is emitted once per epoch boundary processed.
	TypeEpochAdvanced = "staking.epochAdvanced"
	// TypeRewardsDistributed summarises one push-mode distribution batch.
	TypeRewardsDistributed = "staking.rewardsDistributed"
	TypeStakingPaused      = "staking.paused"
	TypeStakingResumed     = "staking.resumed"
	TypeStakingUpdated     = "staking.updated"
	TypeStakingEmergency   = "staking.emergency"
)

// StakeChanged captures a deposit into or withdrawal from the staking pool.
// Total is the pool total for deposits and the remaining user stake for
// withdrawals.
type StakeChanged struct {
	Withdrawal bool
	Owner      crypto.Address
	Amount     uint64
	Total      uint64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (e StakeChanged) EventType() string {
	if e.Withdrawal {
		return TypeStakeWithdrawn
	}
	return TypeStakeDeposited
}

// Event converts the structured payload into a broadcastable event.
func (e StakeChanged) Event() *types.Event {
	key := "totalStaked"
	if e.Withdrawal {
		key = "remainingStake"
	}
	return types.NewEvent(e.EventType()).
		With("owner", e.Owner.String()).
		WithUint("amount", e.Amount).
		WithUint(key, e.Total).
		WithInt("timestamp", e.Timestamp)
}

// RewardsClaimed captures a pull-mode claim.
type RewardsClaimed struct {
	Owner     crypto.Address
	Amount    uint64
	Epoch     uint64
	Timestamp int64
}

// EventType satisfies the Event interface.
func (RewardsClaimed) EventType() string { return TypeRewardsClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardsClaimed) Event() *types.Event {
	return types.NewEvent(TypeRewardsClaimed).
		With("owner", e.Owner.String()).
		WithUint("amount", e.Amount).
		WithUint("epoch", e.Epoch).
		WithInt("timestamp", e.Timestamp)
}

// RewardsDeposited captures base currency added to the current epoch.
type RewardsDeposited struct {
	Depositor    crypto.Address
	Amount       uint64
	EpochRewards uint64
	Epoch        uint64
	Timestamp    int64
}

// EventType satisfies the Event interface.
func (RewardsDeposited) EventType() string { return TypeRewardsDeposited }

// Event converts the structured payload into a broadcastable event.
func (e RewardsDeposited) Event() *types.Event {
	return types.NewEvent(TypeRewardsDeposited).
		With("depositor", e.Depositor.String()).
		WithUint("amount", e.Amount).
		WithUint("epochRewards", e.EpochRewards).
		WithUint("epoch", e.Epoch).
		WithInt("timestamp", e.Timestamp)
}

// EpochAdvanced captures one epoch transition.
type EpochAdvanced struct {
	Epoch          uint64
	Rewards        uint64
	EligibleStake  uint64
	RewardPerToken string
	RolledOver     bool
	Timestamp      int64
}

// EventType satisfies the Event interface.
func (EpochAdvanced) EventType() string { return TypeEpochAdvanced }

// Event converts the structured payload into a broadcastable event.
func (e EpochAdvanced) Event() *types.Event {
	evt := types.NewEvent(TypeEpochAdvanced).
		WithUint("epoch", e.Epoch).
		WithUint("rewards", e.Rewards).
		WithUint("eligibleStake", e.EligibleStake).
		WithInt("timestamp", e.Timestamp)
	if e.RewardPerToken != "" {
		evt.With("rewardPerToken", e.RewardPerToken)
	}
	if e.RolledOver {
		evt.With("rolledOver", "true")
	}
	return evt
}

// RewardsDistributed summarises one distribution batch.
type RewardsDistributed struct {
	Caller     crypto.Address
	Paid       uint64
	Recipients uint64
	Skipped    uint64
	Epoch      uint64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (RewardsDistributed) EventType() string { return TypeRewardsDistributed }

// Event converts the structured payload into a broadcastable event.
func (e RewardsDistributed) Event() *types.Event {
	return types.NewEvent(TypeRewardsDistributed).
		With("caller", e.Caller.String()).
		WithUint("paid", e.Paid).
		WithUint("recipients", e.Recipients).
		WithUint("skipped", e.Skipped).
		WithUint("epoch", e.Epoch).
		WithInt("timestamp", e.Timestamp)
}

// StakingAdminAction captures pause toggles, configuration changes and
// emergency operations on the staking pool.
type StakingAdminAction struct {
	Type      string
	Authority crypto.Address
	Detail    map[string]string
	Timestamp int64
}

// EventType satisfies the Event interface.
func (e StakingAdminAction) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e StakingAdminAction) Event() *types.Event {
	evt := types.NewEvent(e.Type).
		With("authority", e.Authority.String()).
		WithInt("timestamp", e.Timestamp)
	for k, v := range e.Detail {
		evt.With(k, v)
	}
	return evt
}
