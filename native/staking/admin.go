package staking

import (
	"fmt"
	"log/slog"

	"memelend/core/events"
	"memelend/crypto"
)

// authorize loads the pool for an authority-only instruction. It skips the
// operator pause switch so the authority can still recover a paused module.
func (e *Engine) authorize(caller crypto.Address) (*Pool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if caller != pool.Authority {
		return nil, ErrUnauthorized
	}
	return pool, nil
}

// PauseStaking blocks staking, claims and distribution. Unstaking and
// deposits stay open.
func (e *Engine) PauseStaking(caller crypto.Address) error {
	pool, err := e.authorize(caller)
	if err != nil {
		return err
	}
	if pool.Paused {
		return ErrStakingPaused
	}
	pool.Paused = true
	if err := e.state.PutStakingPool(pool); err != nil {
		return err
	}
	e.adminEvent(events.TypeStakingPaused, caller, nil)
	e.logger.Warn("staking paused", slog.String("authority", caller.String()))
	return nil
}

func (e *Engine) ResumeStaking(caller crypto.Address) error {
	pool, err := e.authorize(caller)
	if err != nil {
		return err
	}
	if !pool.Paused {
		return ErrStakingNotPaused
	}
	pool.Paused = false
	if err := e.state.PutStakingPool(pool); err != nil {
		return err
	}
	e.adminEvent(events.TypeStakingResumed, caller, nil)
	e.logger.Info("staking resumed", slog.String("authority", caller.String()))
	return nil
}

// UpdateEpochDuration changes the cadence. Epochs that already ended are
// closed under the old duration first.
func (e *Engine) UpdateEpochDuration(caller crypto.Address, seconds int64) error {
	if err := ValidateEpochDuration(seconds); err != nil {
		return err
	}
	pool, err := e.authorize(caller)
	if err != nil {
		return err
	}
	if err := e.advance(pool); err != nil {
		return err
	}
	previous := pool.EpochDuration
	pool.EpochDuration = seconds
	if err := e.state.PutStakingPool(pool); err != nil {
		return err
	}
	e.adminEvent(events.TypeStakingUpdated, caller, map[string]string{
		"action":        "epochDuration",
		"previous":      fmt.Sprint(previous),
		"epochDuration": fmt.Sprint(seconds),
	})
	e.logger.Info("epoch duration updated", slog.Int64("previous", previous), slog.Int64("seconds", seconds))
	return nil
}

// ForceAdvanceEpoch closes the current epoch immediately. The next epoch
// starts now, which resets the cadence.
func (e *Engine) ForceAdvanceEpoch(caller crypto.Address) (*Pool, error) {
	pool, err := e.authorize(caller)
	if err != nil {
		return nil, err
	}
	if err := e.advance(pool); err != nil {
		return nil, err
	}
	t, err := closeEpoch(pool, e.now())
	if err != nil {
		return nil, err
	}
	if err := e.recordTransition(t); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}
	e.adminEvent(events.TypeStakingUpdated, caller, map[string]string{
		"action": "forceAdvance",
		"epoch":  fmt.Sprint(pool.CurrentEpoch),
	})
	return pool.Clone(), nil
}

// EmergencyWithdraw pauses the pool and drains the reward vault to the
// authority.
func (e *Engine) EmergencyWithdraw(caller crypto.Address) (uint64, error) {
	pool, err := e.authorize(caller)
	if err != nil {
		return 0, err
	}
	pool.Paused = true
	drained, err := e.drain(pool, caller)
	if err != nil {
		return 0, err
	}
	e.adminEvent(events.TypeStakingEmergency, caller, map[string]string{
		"action": "emergencyWithdraw",
		"amount": fmt.Sprint(drained),
	})
	return drained, nil
}

// EmergencyDrainRewards drains the reward vault of a paused pool.
func (e *Engine) EmergencyDrainRewards(caller crypto.Address) (uint64, error) {
	pool, err := e.authorize(caller)
	if err != nil {
		return 0, err
	}
	if !pool.Paused {
		return 0, ErrStakingNotPaused
	}
	balance, err := e.state.Lamports(pool.RewardVault)
	if err != nil {
		return 0, err
	}
	if balance == 0 {
		return 0, ErrInsufficientRewardBalance
	}
	drained, err := e.drain(pool, caller)
	if err != nil {
		return 0, err
	}
	e.adminEvent(events.TypeStakingEmergency, caller, map[string]string{
		"action": "drainRewards",
		"amount": fmt.Sprint(drained),
	})
	return drained, nil
}

// drain empties the reward vault into to and drops the epoch-level reward
// counters it backed. Rewards already settled into user records stay owed.
func (e *Engine) drain(pool *Pool, to crypto.Address) (uint64, error) {
	balance, err := e.state.Lamports(pool.RewardVault)
	if err != nil {
		return 0, err
	}
	if balance > 0 {
		if err := e.state.TransferLamports(pool.RewardVault, to, balance); err != nil {
			return 0, err
		}
	}
	pool.CurrentEpochRewards = 0
	pool.LastEpochRewards, pool.LastEpochEligibleStake, pool.LastEpochDistributed = 0, 0, 0
	if err := e.state.PutStakingPool(pool); err != nil {
		return 0, err
	}
	e.logger.Warn("reward vault drained", slog.String("to", to.String()), slog.Uint64("amount", balance))
	return balance, nil
}

func (e *Engine) adminEvent(kind string, authority crypto.Address, detail map[string]string) {
	e.emitter.Emit(events.StakingAdminAction{
		Type:      kind,
		Authority: authority,
		Detail:    detail,
		Timestamp: e.now(),
	})
}
