package staking

import (
	"github.com/holiman/uint256"

	"memelend/core/safemath"
)

var precision = uint256.NewInt(Precision)

// Transition describes one closed epoch.
type Transition struct {
	Epoch         uint64
	Rewards       uint64
	EligibleStake uint64
	RolledOver    uint64
	Forfeited     uint64
	// RewardPerToken is the accumulator after the epoch closed.
	RewardPerToken *uint256.Int
	NextStart      int64
}

// closeEpoch ends the current epoch and opens the next one at nextStart.
//
// Pull mode credits the epoch's rewards to the accumulator. Push mode parks
// them as the last-epoch pool for DistributeRewards. Rewards that cannot be
// allocated follow the pool's RolloverPolicy.
func closeEpoch(p *Pool, nextStart int64) (Transition, error) {
	t := Transition{Epoch: p.CurrentEpoch, EligibleStake: p.EligibleStake, NextStart: nextStart}
	rewards := p.CurrentEpochRewards
	var carry uint64

	if p.Mode == ModePush {
		leftover := safemath.SaturatingSub(p.LastEpochRewards, p.LastEpochDistributed)
		if leftover > 0 {
			var err error
			if p.Rollover == RollOver {
				if rewards, err = safemath.Add(rewards, leftover); err != nil {
					return Transition{}, err
				}
				t.RolledOver = leftover
			} else {
				if p.TotalForfeited, err = safemath.Add(p.TotalForfeited, leftover); err != nil {
					return Transition{}, err
				}
				t.Forfeited = leftover
			}
		}
	}
	p.LastEpochRewards, p.LastEpochEligibleStake, p.LastEpochDistributed = 0, 0, 0

	switch {
	case rewards == 0:
	case p.EligibleStake == 0:
		if p.Rollover == RollOver {
			carry = rewards
			t.RolledOver = rewards
		} else {
			var err error
			if p.TotalForfeited, err = safemath.Add(p.TotalForfeited, rewards); err != nil {
				return Transition{}, err
			}
			t.Forfeited += rewards
		}
	case p.Mode == ModePush:
		p.LastEpochRewards = rewards
		p.LastEpochEligibleStake = p.EligibleStake
		t.Rewards = rewards
	default:
		delta, err := safemath.MulDivU128(uint256.NewInt(rewards), precision, uint256.NewInt(p.EligibleStake))
		if err != nil {
			return Transition{}, err
		}
		acc, err := safemath.AddU128(p.RewardPerTokenAccumulated, delta)
		if err != nil {
			return Transition{}, err
		}
		p.RewardPerTokenAccumulated = acc
		p.LastEpochRewards = rewards
		p.LastEpochEligibleStake = p.EligibleStake
		p.LastEpochDistributed = rewards
		if p.TotalDistributed, err = safemath.Add(p.TotalDistributed, rewards); err != nil {
			return Transition{}, err
		}
		t.Rewards = rewards
	}

	var err error
	p.CurrentEpochRewards = carry
	if p.CurrentEpoch, err = safemath.Add(p.CurrentEpoch, 1); err != nil {
		return Transition{}, err
	}
	if p.TotalEpochsCompleted, err = safemath.Add(p.TotalEpochsCompleted, 1); err != nil {
		return Transition{}, err
	}
	p.EpochStartTime = nextStart
	p.EligibleStake = p.TotalStaked
	t.RewardPerToken = safemath.CloneU128(p.RewardPerTokenAccumulated)
	return t, nil
}

// catchUp closes every epoch whose end lies at or before now, keeping the
// fixed cadence.
func catchUp(p *Pool, now int64) ([]Transition, error) {
	if p.EpochDuration <= 0 {
		return nil, nil
	}
	var out []Transition
	for now >= p.EpochEnd() {
		t, err := closeEpoch(p, p.EpochEnd())
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// accrue is amount*(to-from)/Precision. A snapshot ahead of the accumulator
// yields zero.
func accrue(amount uint64, from, to *uint256.Int) (uint64, error) {
	if amount == 0 || to == nil {
		return 0, nil
	}
	if from == nil {
		from = new(uint256.Int)
	}
	if !to.Gt(from) {
		return 0, nil
	}
	delta := new(uint256.Int).Sub(to, from)
	out, err := safemath.MulDivU128(uint256.NewInt(amount), delta, precision)
	if err != nil {
		return 0, err
	}
	return safemath.NarrowU64(out)
}

// checkpointFunc returns the accumulator at the start of epoch.
type checkpointFunc func(epoch uint64) (*uint256.Int, error)

// trancheMatured reports whether a top-up made in epoch since can be folded
// into the earning stake. Push mode keeps it separate until the epoch it
// first earned in has been closed, since distribution for that epoch still
// reads it.
func trancheMatured(since uint64, p *Pool) bool {
	if p.Mode == ModePush {
		return p.CurrentEpoch > since+1
	}
	return p.CurrentEpoch > since
}

// foldTranche accrues a matured top-up from the checkpoint of the epoch after
// it was added and clears it.
func foldTranche(amount, since *uint64, p *Pool, at checkpointFunc) (uint64, error) {
	if *amount == 0 || !trancheMatured(*since, p) {
		return 0, nil
	}
	base, err := at(*since + 1)
	if err != nil {
		return 0, err
	}
	earned, err := accrue(*amount, base, p.RewardPerTokenAccumulated)
	if err != nil {
		return 0, err
	}
	*amount, *since = 0, 0
	return earned, nil
}

// settle folds everything u has earned up to the pool's current accumulator
// into AccruedRewards and moves the snapshot forward. The first settle after
// the stake's first full epoch initialises the snapshot from that epoch's
// checkpoint; matured top-ups earn from the checkpoint of the epoch after
// they were added.
func settle(u *UserStake, p *Pool, at checkpointFunc) error {
	if u.StakedAmount == 0 {
		return nil
	}
	if !u.SnapshotInitialized {
		if p.CurrentEpoch <= u.StakeStartEpoch {
			return nil
		}
		snap, err := at(u.StakeStartEpoch + 1)
		if err != nil {
			return err
		}
		u.RewardPerTokenSnapshot = snap
		u.SnapshotInitialized = true
	}
	acc := p.RewardPerTokenAccumulated
	earned, err := accrue(u.StakedAmount-u.unsettled(), u.RewardPerTokenSnapshot, acc)
	if err != nil {
		return err
	}
	maturing, err := foldTranche(&u.MaturingStake, &u.MaturingSinceEpoch, p, at)
	if err != nil {
		return err
	}
	pending, err := foldTranche(&u.PendingStake, &u.PendingSinceEpoch, p, at)
	if err != nil {
		return err
	}
	if earned, err = safemath.Add(earned, maturing); err != nil {
		return err
	}
	if earned, err = safemath.Add(earned, pending); err != nil {
		return err
	}
	if u.AccruedRewards, err = safemath.Add(u.AccruedRewards, earned); err != nil {
		return err
	}
	if acc != nil && (u.RewardPerTokenSnapshot == nil || acc.Gt(u.RewardPerTokenSnapshot)) {
		u.RewardPerTokenSnapshot = safemath.CloneU128(acc)
	}
	return nil
}
