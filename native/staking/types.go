package staking

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/holiman/uint256"

	"memelend/core/safemath"
	"memelend/crypto"
)

// Precision scales the reward-per-token accumulator.
const Precision uint64 = 1_000_000_000_000

// Epoch duration bounds, in seconds.
const (
	MinEpochDuration     int64 = 60
	MaxEpochDuration     int64 = 7 * 24 * 60 * 60
	DefaultEpochDuration int64 = 24 * 60 * 60
)

// FirstEpoch is the epoch a freshly initialised pool starts in. Zero is kept
// free to mean "no stake" in user records.
const FirstEpoch uint64 = 1

const (
	seedPool           = "staking_pool"
	seedStakingVault   = "staking_vault"
	seedVaultAuthority = "staking_vault_authority"
	seedRewardVault    = "reward_vault"
	seedUserStake      = "user_stake"
	seedCheckpoint     = "epoch_checkpoint"
)

// Mode selects how closed epochs reach stakers.
type Mode uint8

const (
	// ModePull credits closed epochs to the accumulator; stakers claim.
	ModePull Mode = iota
	// ModePush parks the last closed epoch for batched distribution.
	ModePush
)

func (m Mode) Valid() bool { return m == ModePull || m == ModePush }

func (m Mode) String() string {
	switch m {
	case ModePull:
		return "pull"
	case ModePush:
		return "push"
	default:
		return "unknown"
	}
}

// ParseMode accepts the config spelling of a mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pull":
		return ModePull, nil
	case "push":
		return ModePush, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, s)
	}
}

// RolloverPolicy decides what happens to rewards that cannot be allocated
// when an epoch closes: rewards of an epoch without eligible stake, and in
// push mode the undistributed remainder of the previous epoch.
type RolloverPolicy uint8

const (
	// RollOver carries them into the next epoch.
	RollOver RolloverPolicy = iota
	// Forfeit leaves them in the vault, tracked in Pool.TotalForfeited.
	Forfeit
)

func (p RolloverPolicy) Valid() bool { return p == RollOver || p == Forfeit }

func (p RolloverPolicy) String() string {
	switch p {
	case RollOver:
		return "rollover"
	case Forfeit:
		return "forfeit"
	default:
		return "unknown"
	}
}

// ParseRolloverPolicy accepts the config spelling of a policy.
func ParseRolloverPolicy(s string) (RolloverPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "rollover", "roll-over":
		return RollOver, nil
	case "forfeit":
		return Forfeit, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidPolicy, s)
	}
}

// Pool is the staking singleton.
type Pool struct {
	Authority    crypto.Address
	StakingMint  crypto.Address
	StakingVault crypto.Address
	RewardVault  crypto.Address

	CurrentEpoch   uint64
	EpochDuration  int64
	EpochStartTime int64

	TotalStaked         uint64
	EligibleStake       uint64
	CurrentEpochRewards uint64

	RewardPerTokenAccumulated *uint256.Int

	LastEpochRewards       uint64
	LastEpochEligibleStake uint64
	LastEpochDistributed   uint64

	TotalEpochsCompleted uint64
	TotalDeposited       uint64
	TotalDistributed     uint64
	TotalClaimed         uint64
	TotalForfeited       uint64

	Paused   bool
	Mode     Mode
	Rollover RolloverPolicy
}

// Clone returns a deep copy.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	clone.RewardPerTokenAccumulated = safemath.CloneU128(p.RewardPerTokenAccumulated)
	return &clone
}

// EpochEnd is the timestamp the current epoch closes at.
func (p *Pool) EpochEnd() int64 { return p.EpochStartTime + p.EpochDuration }

// UserStake is one staker's position. It is persisted in the fixed binary
// layout of layout.go so distribution batches can authenticate raw records.
type UserStake struct {
	Owner crypto.Address
	Pool  crypto.Address

	StakedAmount      uint64
	StakeStartEpoch   uint64
	LastRewardedEpoch uint64
	TotalReceived     uint64

	RewardPerTokenSnapshot *uint256.Int
	SnapshotInitialized    bool

	LastClaimedEpoch uint64
	TotalClaimed     uint64
	// AccruedRewards holds rewards settled out of the accumulator but not yet
	// paid.
	AccruedRewards uint64
	// PendingStake is the part of StakedAmount added after the position
	// became eligible; it starts earning the epoch after PendingSinceEpoch.
	PendingStake      uint64
	PendingSinceEpoch uint64
	// MaturingStake is an earlier top-up that already earns but is not yet
	// folded into the settled stake. MaturingSinceEpoch < PendingSinceEpoch.
	MaturingStake      uint64
	MaturingSinceEpoch uint64
}

func (u *UserStake) Clone() *UserStake {
	if u == nil {
		return nil
	}
	clone := *u
	clone.RewardPerTokenSnapshot = safemath.CloneU128(u.RewardPerTokenSnapshot)
	return &clone
}

// EligibleAt reports whether the position earns for the given epoch.
func (u *UserStake) EligibleAt(epoch uint64) bool {
	return u.StakedAmount > 0 && epoch > u.StakeStartEpoch
}

// earningAt is the stake that earns for the given epoch.
func (u *UserStake) earningAt(epoch uint64) uint64 {
	if !u.EligibleAt(epoch) {
		return 0
	}
	earning := u.StakedAmount
	if u.PendingStake > 0 && u.PendingSinceEpoch >= epoch {
		earning -= u.PendingStake
	}
	if u.MaturingStake > 0 && u.MaturingSinceEpoch >= epoch {
		earning -= u.MaturingStake
	}
	return earning
}

// unsettled is the stake held back in top-up tranches.
func (u *UserStake) unsettled() uint64 { return u.PendingStake + u.MaturingStake }

// Checkpoint records the accumulator at the start of an epoch.
type Checkpoint struct {
	Epoch          uint64
	StartTime      int64
	RewardPerToken *uint256.Int
}

// StakerPair is one entry of a distribution batch.
type StakerPair struct {
	Record crypto.Address
	Wallet crypto.Address
}

// PoolAddress is the singleton record address.
func PoolAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedPool)
}

// StakingVaultAddress holds staked governance tokens.
func StakingVaultAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedStakingVault)
}

// VaultAuthorityAddress signs transfers out of the staking vault.
func VaultAuthorityAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedVaultAuthority)
}

// RewardVaultAddress holds base currency awaiting distribution.
func RewardVaultAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedRewardVault)
}

// UserStakeAddress derives hash(tag, pool, owner).
func UserStakeAddress(pool, owner crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedUserStake, pool[:], owner[:])
}

func CheckpointAddress(epoch uint64) crypto.Address {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], epoch)
	return crypto.DeriveAddress(crypto.ProgramID, seedCheckpoint, buf[:])
}

// ValidateEpochDuration checks seconds against the allowed range.
func ValidateEpochDuration(seconds int64) error {
	if seconds < MinEpochDuration || seconds > MaxEpochDuration {
		return fmt.Errorf("%w: %d", ErrInvalidEpochDuration, seconds)
	}
	return nil
}
