package staking

import (
	"fmt"
	"log/slog"

	"memelend/core/events"
	"memelend/core/safemath"
	"memelend/crypto"
)

const (
	// MaxDistributionBatch bounds the pairs accepted per call.
	MaxDistributionBatch = 64
	// MinDistributablePool is the smallest last-epoch pool worth pushing.
	MinDistributablePool uint64 = 1_000
)

// DistributionReport summarises one DistributeRewards batch.
type DistributionReport struct {
	Epoch      uint64
	Paid       uint64
	Recipients uint64
	Skipped    uint64
	// Exhausted is set when the batch stopped because the reward vault could
	// not cover the next share.
	Exhausted bool
}

type verifiedStake struct {
	pair StakerPair
	user *UserStake
}

// DistributeRewards pays the last closed epoch's pool to the supplied
// stakers in proportion to their earning stake. It is permissionless and
// resumable: each record remembers the last epoch it was paid for.
//
// Every pair is authenticated before any payment: the record must be owned
// by the protocol, carry the UserStake discriminator, sit at the address
// derived from its embedded pool and owner, and name the supplied wallet as
// owner.
func (e *Engine) DistributeRewards(caller crypto.Address, pairs []StakerPair) (*DistributionReport, error) {
	pool, err := e.begin()
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, ErrStakingPaused
	}
	if pool.Mode != ModePush {
		return nil, fmt.Errorf("%w: distribution requires push mode", ErrWrongMode)
	}
	if err := e.advance(pool); err != nil {
		return nil, err
	}
	if pool.LastEpochRewards == 0 {
		return nil, ErrNoRewards
	}
	if pool.LastEpochEligibleStake == 0 {
		return nil, ErrNoEligibleStakers
	}
	if len(pairs) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(pairs) > MaxDistributionBatch {
		return nil, fmt.Errorf("%w: %d pairs, limit %d", ErrBatchTooLarge, len(pairs), MaxDistributionBatch)
	}

	epoch := pool.CurrentEpoch - 1
	report := &DistributionReport{Epoch: epoch}
	if pool.LastEpochRewards < MinDistributablePool {
		e.logger.Debug("last epoch pool below distribution minimum", slog.Uint64("rewards", pool.LastEpochRewards))
		return report, e.state.PutStakingPool(pool)
	}

	verified := make([]verifiedStake, 0, len(pairs))
	for i, pair := range pairs {
		user, err := e.verifyPair(pair)
		if err != nil {
			return nil, fmt.Errorf("pair %d: %w", i, err)
		}
		verified = append(verified, verifiedStake{pair: pair, user: user})
	}

	vault, err := e.state.Lamports(pool.RewardVault)
	if err != nil {
		return nil, err
	}
	seen := make(map[crypto.Address]struct{}, len(verified))
	for _, v := range verified {
		if _, dup := seen[v.pair.Record]; dup {
			report.Skipped++
			continue
		}
		seen[v.pair.Record] = struct{}{}

		user := v.user
		earning := user.earningAt(epoch)
		if earning == 0 || user.LastRewardedEpoch >= epoch {
			report.Skipped++
			continue
		}
		share, err := safemath.MulDiv(earning, pool.LastEpochRewards, pool.LastEpochEligibleStake)
		if err != nil {
			return nil, err
		}
		share = min(share, pool.LastEpochRewards-pool.LastEpochDistributed)
		if share == 0 {
			report.Skipped++
			continue
		}
		if vault < share {
			report.Exhausted = true
			break
		}
		user.LastRewardedEpoch = epoch
		if user.TotalReceived, err = safemath.Add(user.TotalReceived, share); err != nil {
			return nil, err
		}
		if err := e.putUser(user); err != nil {
			return nil, err
		}
		if err := e.state.TransferLamports(pool.RewardVault, v.pair.Wallet, share); err != nil {
			return nil, err
		}
		vault -= share
		pool.LastEpochDistributed += share
		report.Paid += share
		report.Recipients++
	}

	if pool.TotalDistributed, err = safemath.Add(pool.TotalDistributed, report.Paid); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.RewardsDistributed{
		Caller:     caller,
		Paid:       report.Paid,
		Recipients: report.Recipients,
		Skipped:    report.Skipped,
		Epoch:      epoch,
		Timestamp:  e.now(),
	})
	e.logger.Info("rewards distributed",
		slog.Uint64("epoch", epoch),
		slog.Uint64("paid", report.Paid),
		slog.Uint64("recipients", report.Recipients),
		slog.Uint64("skipped", report.Skipped),
		slog.Bool("exhausted", report.Exhausted))
	return report, nil
}

func (e *Engine) verifyPair(pair StakerPair) (*UserStake, error) {
	owner, data, ok, err := e.state.GetAccount(pair.Record)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrStakeNotFound, pair.Record)
	}
	if owner != crypto.ProgramID {
		return nil, fmt.Errorf("%w: owned by %s", ErrInvalidAccountOwner, owner)
	}
	if len(data) < len(UserStakeDiscriminator) || [8]byte(data[:8]) != UserStakeDiscriminator {
		return nil, ErrDiscriminatorMismatch
	}
	user, err := DecodeUserStake(data)
	if err != nil {
		return nil, err
	}
	if user.Pool != PoolAddress() || UserStakeAddress(user.Pool, user.Owner) != pair.Record {
		return nil, ErrAddressMismatch
	}
	if user.Owner != pair.Wallet {
		return nil, ErrOwnerMismatch
	}
	return user, nil
}
