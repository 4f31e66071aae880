// Package staking distributes protocol fees to governance-token stakers
// through an epoch-based reward-per-token accumulator.
//
// Epochs advance lazily: every instruction first closes the epochs whose end
// has passed. A position earns from the epoch after the one it was opened in.
// Closed epochs reach stakers either through the accumulator and ClaimRewards
// (pull mode) or through batched DistributeRewards calls (push mode).
package staking

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/holiman/uint256"

	"memelend/core/events"
	"memelend/core/safemath"
	"memelend/crypto"
	nativecommon "memelend/native/common"
)

const moduleName = "staking"

type engineState interface {
	GetStakingPool() (*Pool, bool, error)
	PutStakingPool(pool *Pool) error
	GetEpochCheckpoint(epoch uint64) (*Checkpoint, bool, error)
	PutEpochCheckpoint(cp *Checkpoint) error
	GetAccount(addr crypto.Address) (owner crypto.Address, data []byte, ok bool, err error)
	PutAccount(addr, owner crypto.Address, data []byte) error

	Lamports(addr crypto.Address) (uint64, error)
	TransferLamports(from, to crypto.Address, amount uint64) error
	TokenBalance(account, mint crypto.Address) (uint64, error)
	OpenTokenAccount(account, mint, authority crypto.Address) error
	TransferTokens(mint, from, to crypto.Address, amount uint64, authority crypto.Address) error
}

// Engine runs the staking pool.
type Engine struct {
	state   engineState
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger.With(slog.String("component", moduleName))
}

// SetNowFunc overrides the clock used for epoch boundaries.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 { return e.nowFn().Unix() }

// InitParams configures a new pool.
type InitParams struct {
	Authority     crypto.Address
	StakingMint   crypto.Address
	EpochDuration int64
	Mode          Mode
	Rollover      RolloverPolicy
}

// Initialize creates the pool singleton and its staking vault. The first
// epoch starts now.
func (e *Engine) Initialize(params InitParams) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GetStakingPool(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if params.Authority.IsZero() {
		return nil, fmt.Errorf("%w: zero authority", ErrUnauthorized)
	}
	if params.StakingMint.IsZero() {
		return nil, errors.New("staking: staking mint required")
	}
	if err := ValidateEpochDuration(params.EpochDuration); err != nil {
		return nil, err
	}
	if !params.Mode.Valid() {
		return nil, ErrInvalidMode
	}
	if !params.Rollover.Valid() {
		return nil, ErrInvalidPolicy
	}
	now := e.now()
	pool := &Pool{
		Authority:                 params.Authority,
		StakingMint:               params.StakingMint,
		StakingVault:              StakingVaultAddress(),
		RewardVault:               RewardVaultAddress(),
		CurrentEpoch:              FirstEpoch,
		EpochDuration:             params.EpochDuration,
		EpochStartTime:            now,
		RewardPerTokenAccumulated: new(uint256.Int),
		Mode:                      params.Mode,
		Rollover:                  params.Rollover,
	}
	if err := e.state.OpenTokenAccount(pool.StakingVault, pool.StakingMint, VaultAuthorityAddress()); err != nil {
		return nil, fmt.Errorf("open staking vault: %w", err)
	}
	if err := e.state.PutEpochCheckpoint(&Checkpoint{Epoch: FirstEpoch, StartTime: now, RewardPerToken: new(uint256.Int)}); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakingAdminAction{
		Type:      events.TypeStakingUpdated,
		Authority: params.Authority,
		Detail: map[string]string{
			"action":        "initialize",
			"epochDuration": fmt.Sprint(params.EpochDuration),
			"mode":          params.Mode.String(),
			"rollover":      params.Rollover.String(),
		},
		Timestamp: now,
	})
	e.logger.Info("staking pool initialised",
		slog.String("mint", params.StakingMint.String()),
		slog.Int64("epoch_duration", params.EpochDuration),
		slog.String("mode", params.Mode.String()))
	return pool.Clone(), nil
}

// Stake moves amount governance tokens from owner into the staking vault. A
// new position earns from the next epoch; a top-up of an earning position
// earns from the epoch after the top-up.
func (e *Engine) Stake(owner crypto.Address, amount uint64) (*UserStake, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.begin()
	if err != nil {
		return nil, err
	}
	if pool.Paused {
		return nil, ErrStakingPaused
	}
	if err := e.advance(pool); err != nil {
		return nil, err
	}
	user, err := e.loadOrNewUser(owner)
	if err != nil {
		return nil, err
	}
	if err := settle(user, pool, e.checkpoint); err != nil {
		return nil, err
	}
	held, err := e.state.TokenBalance(owner, pool.StakingMint)
	if err != nil {
		return nil, err
	}
	if held < amount {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance, amount, held)
	}

	switch {
	case user.StakedAmount == 0:
		user.StakeStartEpoch = pool.CurrentEpoch
		user.RewardPerTokenSnapshot = new(uint256.Int)
		user.SnapshotInitialized = false
		user.PendingStake, user.PendingSinceEpoch = 0, 0
		user.MaturingStake, user.MaturingSinceEpoch = 0, 0
	case user.SnapshotInitialized:
		// settle has folded every tranche older than the previous epoch, so
		// the maturing slot is free when an earning tranche moves into it.
		if user.PendingStake > 0 && user.PendingSinceEpoch < pool.CurrentEpoch {
			user.MaturingStake, user.MaturingSinceEpoch = user.PendingStake, user.PendingSinceEpoch
			user.PendingStake = 0
		}
		if user.PendingStake, err = safemath.Add(user.PendingStake, amount); err != nil {
			return nil, err
		}
		user.PendingSinceEpoch = pool.CurrentEpoch
	}
	if user.StakedAmount, err = safemath.Add(user.StakedAmount, amount); err != nil {
		return nil, err
	}
	if pool.TotalStaked, err = safemath.Add(pool.TotalStaked, amount); err != nil {
		return nil, err
	}
	if err := e.state.TransferTokens(pool.StakingMint, owner, pool.StakingVault, amount, owner); err != nil {
		return nil, err
	}
	if err := e.putUser(user); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakeChanged{Owner: owner, Amount: amount, Total: pool.TotalStaked, Timestamp: e.now()})
	e.logger.Info("stake deposited",
		slog.String("owner", owner.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("epoch", pool.CurrentEpoch))
	return user.Clone(), nil
}

// Unstake returns amount tokens to owner. Not-yet-earning stake is withdrawn
// first. A full exit resets eligibility; settled rewards stay claimable.
// Unstaking is allowed while paused.
func (e *Engine) Unstake(owner crypto.Address, amount uint64) (*UserStake, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.begin()
	if err != nil {
		return nil, err
	}
	if err := e.advance(pool); err != nil {
		return nil, err
	}
	user, err := e.loadUser(owner)
	if err != nil {
		return nil, err
	}
	if user.StakedAmount < amount {
		return nil, fmt.Errorf("%w: staked %d, requested %d", ErrInsufficientStake, user.StakedAmount, amount)
	}
	if err := settle(user, pool, e.checkpoint); err != nil {
		return nil, err
	}

	if user.EligibleAt(pool.CurrentEpoch) {
		idle := user.StakedAmount - user.earningAt(pool.CurrentEpoch)
		pool.EligibleStake = safemath.SaturatingSub(pool.EligibleStake, amount-min(amount, idle))
	}
	fromPending := min(amount, user.PendingStake)
	user.PendingStake -= fromPending
	user.MaturingStake -= min(amount-fromPending, user.MaturingStake)
	user.StakedAmount -= amount
	if pool.TotalStaked, err = safemath.Sub(pool.TotalStaked, amount); err != nil {
		return nil, err
	}
	if user.StakedAmount == 0 {
		user.StakeStartEpoch = 0
		user.RewardPerTokenSnapshot = new(uint256.Int)
		user.SnapshotInitialized = false
		user.PendingStake, user.PendingSinceEpoch = 0, 0
		user.MaturingStake, user.MaturingSinceEpoch = 0, 0
	}

	vaulted, err := e.state.TokenBalance(pool.StakingVault, pool.StakingMint)
	if err != nil {
		return nil, err
	}
	if vaulted < amount {
		return nil, fmt.Errorf("%w: vault holds %d", ErrInsufficientStake, vaulted)
	}
	if err := e.state.TransferTokens(pool.StakingMint, pool.StakingVault, owner, amount, VaultAuthorityAddress()); err != nil {
		return nil, err
	}
	if err := e.putUser(user); err != nil {
		return nil, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.StakeChanged{Withdrawal: true, Owner: owner, Amount: amount, Total: user.StakedAmount, Timestamp: e.now()})
	e.logger.Info("stake withdrawn",
		slog.String("owner", owner.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("remaining", user.StakedAmount))
	return user.Clone(), nil
}

// ClaimRewards pays owner's settled rewards, clamped to the reward vault
// balance. Any shortfall stays owed in AccruedRewards.
func (e *Engine) ClaimRewards(owner crypto.Address) (uint64, error) {
	pool, err := e.begin()
	if err != nil {
		return 0, err
	}
	if pool.Paused {
		return 0, ErrStakingPaused
	}
	if pool.Mode != ModePull {
		return 0, fmt.Errorf("%w: claims require pull mode", ErrWrongMode)
	}
	if err := e.advance(pool); err != nil {
		return 0, err
	}
	user, err := e.loadUser(owner)
	if err != nil {
		return 0, err
	}
	if err := settle(user, pool, e.checkpoint); err != nil {
		return 0, err
	}
	if user.AccruedRewards == 0 {
		return 0, ErrNoRewards
	}
	vault, err := e.state.Lamports(pool.RewardVault)
	if err != nil {
		return 0, err
	}
	payout := min(user.AccruedRewards, vault)
	if payout < user.AccruedRewards {
		e.logger.Warn("reward vault short",
			slog.String("owner", owner.String()),
			slog.Uint64("owed", user.AccruedRewards),
			slog.Uint64("vault", vault))
	}
	user.AccruedRewards -= payout
	user.LastClaimedEpoch = pool.CurrentEpoch
	if user.TotalClaimed, err = safemath.Add(user.TotalClaimed, payout); err != nil {
		return 0, err
	}
	if pool.TotalClaimed, err = safemath.Add(pool.TotalClaimed, payout); err != nil {
		return 0, err
	}
	if payout > 0 {
		if err := e.state.TransferLamports(pool.RewardVault, owner, payout); err != nil {
			return 0, err
		}
	}
	if err := e.putUser(user); err != nil {
		return 0, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return 0, err
	}
	e.emitter.Emit(events.RewardsClaimed{Owner: owner, Amount: payout, Epoch: pool.CurrentEpoch, Timestamp: e.now()})
	e.logger.Info("rewards claimed", slog.String("owner", owner.String()), slog.Uint64("amount", payout))
	return payout, nil
}

// DepositRewards moves amount base currency from depositor into the reward
// vault and credits it to the current epoch.
func (e *Engine) DepositRewards(depositor crypto.Address, amount uint64) (*Pool, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	pool, err := e.begin()
	if err != nil {
		return nil, err
	}
	if err := e.advance(pool); err != nil {
		return nil, err
	}
	balance, err := e.state.Lamports(depositor)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance, amount, balance)
	}
	if err := e.state.TransferLamports(depositor, pool.RewardVault, amount); err != nil {
		return nil, err
	}
	if err := e.credit(pool, depositor, amount); err != nil {
		return nil, err
	}
	return pool.Clone(), nil
}

// RecordExternalRewards credits base currency another module has already
// moved into the reward vault. It satisfies lending.RewardSink. The operator
// pause switch does not apply: the lamports are already in the vault and the
// calling module enforces its own switch.
func (e *Engine) RecordExternalRewards(amount uint64) error {
	if amount == 0 {
		return nil
	}
	pool, err := e.loadPool()
	if err != nil {
		return err
	}
	if err := e.advance(pool); err != nil {
		return err
	}
	return e.credit(pool, crypto.ProgramID, amount)
}

func (e *Engine) credit(pool *Pool, from crypto.Address, amount uint64) error {
	var err error
	if pool.CurrentEpochRewards, err = safemath.Add(pool.CurrentEpochRewards, amount); err != nil {
		return err
	}
	if pool.TotalDeposited, err = safemath.Add(pool.TotalDeposited, amount); err != nil {
		return err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return err
	}
	e.emitter.Emit(events.RewardsDeposited{
		Depositor:    from,
		Amount:       amount,
		EpochRewards: pool.CurrentEpochRewards,
		Epoch:        pool.CurrentEpoch,
		Timestamp:    e.now(),
	})
	e.logger.Debug("rewards credited",
		slog.String("from", from.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("epoch_rewards", pool.CurrentEpochRewards))
	return nil
}

// AdvanceEpoch is the permissionless crank. It fails when the current epoch
// has not ended and otherwise returns the number of epochs closed.
func (e *Engine) AdvanceEpoch() (int, error) {
	pool, err := e.begin()
	if err != nil {
		return 0, err
	}
	if e.now() < pool.EpochEnd() {
		return 0, fmt.Errorf("%w: ends at %d", ErrEpochNotEnded, pool.EpochEnd())
	}
	closed, err := e.advanceCount(pool)
	if err != nil {
		return 0, err
	}
	if err := e.state.PutStakingPool(pool); err != nil {
		return 0, err
	}
	return closed, nil
}

// Pool returns the pool as of now, with elapsed epochs closed in the copy.
func (e *Engine) Pool() (*Pool, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	if _, err := catchUp(pool, e.now()); err != nil {
		return nil, err
	}
	return pool, nil
}

// UserStake returns owner's position as of now. Rewards earned but not yet
// settled are folded into AccruedRewards of the returned copy.
func (e *Engine) UserStake(owner crypto.Address) (*UserStake, error) {
	pool, err := e.loadPool()
	if err != nil {
		return nil, err
	}
	fresh := make(map[uint64]*uint256.Int)
	transitions, err := catchUp(pool, e.now())
	if err != nil {
		return nil, err
	}
	for _, t := range transitions {
		fresh[t.Epoch+1] = t.RewardPerToken
	}
	user, err := e.loadUser(owner)
	if err != nil {
		return nil, err
	}
	at := func(epoch uint64) (*uint256.Int, error) {
		if v, ok := fresh[epoch]; ok {
			return safemath.CloneU128(v), nil
		}
		return e.checkpoint(epoch)
	}
	if err := settle(user, pool, at); err != nil {
		return nil, err
	}
	return user, nil
}

// PendingRewards is the amount owner could claim now, before clamping to the
// vault.
func (e *Engine) PendingRewards(owner crypto.Address) (uint64, error) {
	user, err := e.UserStake(owner)
	if err != nil {
		if errors.Is(err, ErrStakeNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return user.AccruedRewards, nil
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) begin() (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	return e.loadPool()
}

func (e *Engine) loadPool() (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	pool, ok, err := e.state.GetStakingPool()
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrNotInitialized
	}
	if pool.RewardPerTokenAccumulated == nil {
		pool.RewardPerTokenAccumulated = new(uint256.Int)
	}
	return pool, nil
}

// advance closes elapsed epochs on pool and records their checkpoints. The
// caller persists pool.
func (e *Engine) advance(pool *Pool) error {
	_, err := e.advanceCount(pool)
	return err
}

func (e *Engine) advanceCount(pool *Pool) (int, error) {
	transitions, err := catchUp(pool, e.now())
	if err != nil {
		return 0, err
	}
	for _, t := range transitions {
		if err := e.recordTransition(t); err != nil {
			return 0, err
		}
	}
	return len(transitions), nil
}

func (e *Engine) recordTransition(t Transition) error {
	if err := e.state.PutEpochCheckpoint(&Checkpoint{
		Epoch:          t.Epoch + 1,
		StartTime:      t.NextStart,
		RewardPerToken: safemath.CloneU128(t.RewardPerToken),
	}); err != nil {
		return err
	}
	e.emitter.Emit(events.EpochAdvanced{
		Epoch:          t.Epoch + 1,
		Rewards:        t.Rewards,
		EligibleStake:  t.EligibleStake,
		RewardPerToken: t.RewardPerToken.Dec(),
		RolledOver:     t.RolledOver > 0,
		Timestamp:      t.NextStart,
	})
	e.logger.Info("epoch closed",
		slog.Uint64("epoch", t.Epoch),
		slog.Uint64("rewards", t.Rewards),
		slog.Uint64("eligible_stake", t.EligibleStake),
		slog.Uint64("rolled_over", t.RolledOver),
		slog.Uint64("forfeited", t.Forfeited))
	return nil
}

func (e *Engine) checkpoint(epoch uint64) (*uint256.Int, error) {
	cp, ok, err := e.state.GetEpochCheckpoint(epoch)
	if err != nil {
		return nil, err
	}
	if !ok || cp == nil {
		return nil, fmt.Errorf("%w: epoch %d", ErrMissingCheckpoint, epoch)
	}
	return safemath.CloneU128(cp.RewardPerToken), nil
}

func (e *Engine) loadUser(owner crypto.Address) (*UserStake, error) {
	user, ok, err := e.readUser(owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStakeNotFound
	}
	return user, nil
}

func (e *Engine) loadOrNewUser(owner crypto.Address) (*UserStake, error) {
	user, ok, err := e.readUser(owner)
	if err != nil {
		return nil, err
	}
	if ok {
		return user, nil
	}
	return &UserStake{Owner: owner, Pool: PoolAddress(), RewardPerTokenSnapshot: new(uint256.Int)}, nil
}

func (e *Engine) readUser(owner crypto.Address) (*UserStake, bool, error) {
	programOwner, data, ok, err := e.state.GetAccount(UserStakeAddress(PoolAddress(), owner))
	if err != nil || !ok {
		return nil, false, err
	}
	if programOwner != crypto.ProgramID {
		return nil, false, ErrInvalidAccountOwner
	}
	user, err := DecodeUserStake(data)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}

func (e *Engine) putUser(user *UserStake) error {
	data, err := EncodeUserStake(user)
	if err != nil {
		return err
	}
	return e.state.PutAccount(UserStakeAddress(user.Pool, user.Owner), crypto.ProgramID, data)
}
