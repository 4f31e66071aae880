package staking

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"

	"memelend/core/events"
	"memelend/crypto"
	nativecommon "memelend/native/common"
)

func TestEligibilityStartsAfterStakeEpoch(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)

	f.stake(t, alice, 1_000)
	f.stake(t, alice, 500)
	if u := f.user(t, alice); u.SnapshotInitialized || u.StakeStartEpoch != 1 {
		t.Fatalf("epoch 1: initialised=%v start=%d", u.SnapshotInitialized, u.StakeStartEpoch)
	}
	f.deposit(t, 300)

	if _, err := f.engine.ForceAdvanceEpoch(testAuthority); err != nil {
		t.Fatalf("force advance: %v", err)
	}
	pool := f.pool(t)
	if pool.CurrentEpoch != 2 {
		t.Fatalf("epoch = %d, want 2", pool.CurrentEpoch)
	}
	if !pool.RewardPerTokenAccumulated.IsZero() {
		t.Fatalf("epoch 1 rewards credited to a stake that was not eligible: %s", pool.RewardPerTokenAccumulated)
	}
	if pool.CurrentEpochRewards != 300 || pool.EligibleStake != 1_500 {
		t.Fatalf("epoch 2 opened with rewards=%d eligible=%d", pool.CurrentEpochRewards, pool.EligibleStake)
	}
	if f.user(t, alice).SnapshotInitialized {
		t.Fatalf("snapshot initialised without an interaction")
	}

	f.stake(t, alice, 1)
	u := f.user(t, alice)
	if !u.SnapshotInitialized {
		t.Fatalf("snapshot not initialised at the first interaction of epoch 2")
	}
	if u.PendingStake != 1 || u.PendingSinceEpoch != 2 {
		t.Fatalf("top-up pending=%d since=%d", u.PendingStake, u.PendingSinceEpoch)
	}
	f.deposit(t, 600)

	if _, err := f.engine.ForceAdvanceEpoch(testAuthority); err != nil {
		t.Fatalf("force advance: %v", err)
	}
	if got := f.pending(t, alice); got != 900 {
		t.Fatalf("pending after epoch 2 = %d, want 900", got)
	}
	paid, err := f.engine.ClaimRewards(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid != 900 || f.state.lamports[RewardVaultAddress()] != 0 {
		t.Fatalf("paid %d, vault left %d", paid, f.state.lamports[RewardVaultAddress()])
	}
	if _, err := f.engine.ClaimRewards(alice); !errors.Is(err, ErrNoRewards) {
		t.Fatalf("second claim: %v", err)
	}
}

func TestForfeitPolicyDropsUnallocatedRewards(t *testing.T) {
	f := newFixture(t, ModePull, Forfeit)
	f.stake(t, alice, 1_000)
	f.deposit(t, 300)
	f.nextEpoch(t)

	pool := f.pool(t)
	if pool.CurrentEpochRewards != 0 || pool.TotalForfeited != 300 {
		t.Fatalf("rewards=%d forfeited=%d", pool.CurrentEpochRewards, pool.TotalForfeited)
	}
	if pool.TotalDistributed != 0 {
		t.Fatalf("forfeited rewards counted as distributed")
	}
}

func TestRewardConservation(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)
	f.stake(t, bob, 3_000)
	f.deposit(t, 1_000)
	f.nextEpoch(t)

	f.stake(t, carol, 2_000)
	f.deposit(t, 7_777)
	f.nextEpoch(t)

	if _, err := f.engine.Unstake(bob, 1_000); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if got := f.pool(t).EligibleStake; got != 5_000 {
		t.Fatalf("eligible after unstake = %d, want 5000", got)
	}
	f.deposit(t, 12_345)
	f.nextEpoch(t)

	distributed := f.pool(t).TotalDistributed
	if distributed != 8_777+12_345 {
		t.Fatalf("distributed = %d", distributed)
	}
	var sum uint64
	for _, want := range []struct {
		owner  crypto.Address
		amount uint64
	}{
		{alice, 4_663},
		{bob, 11_520},
		{carol, 4_938},
	} {
		got := f.pending(t, want.owner)
		if got != want.amount {
			t.Fatalf("%s pending = %d, want %d", want.owner, got, want.amount)
		}
		sum += got
	}
	if sum > distributed || distributed-sum > 3*2 {
		t.Fatalf("pending sum %d does not match distributed %d", sum, distributed)
	}
}

func TestTopUpEarnsFromNextEpoch(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)
	f.nextEpoch(t)

	f.stake(t, alice, 1_000)
	if got := f.pool(t).EligibleStake; got != 1_000 {
		t.Fatalf("top-up counted as eligible immediately: %d", got)
	}
	f.deposit(t, 1_000)
	f.nextEpoch(t)
	f.deposit(t, 2_000)
	f.nextEpoch(t)

	if got := f.pending(t, alice); got != 3_000 {
		t.Fatalf("pending = %d, want 3000", got)
	}
}

func TestAccumulatorMonotonic(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 7)
	f.nextEpoch(t)

	prev := new(uint256.Int)
	deposits := []uint64{0, 1, 13, 0, 999_999, 5, 0, 123_456_789}
	for i, amount := range deposits {
		if amount > 0 {
			f.deposit(t, amount)
		}
		if i == 3 {
			f.stake(t, bob, 1_000_000)
		}
		if i == 5 {
			if _, err := f.engine.Unstake(bob, 400_000); err != nil {
				t.Fatalf("unstake: %v", err)
			}
		}
		f.nextEpoch(t)
		acc := f.pool(t).RewardPerTokenAccumulated
		if acc.Lt(prev) {
			t.Fatalf("step %d: accumulator went from %s to %s", i, prev, acc)
		}
		prev = acc
	}
}

func TestClaimClampsToVault(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)
	f.nextEpoch(t)
	f.deposit(t, 1_000)
	f.nextEpoch(t)

	vault := RewardVaultAddress()
	f.state.lamports[vault] = 400
	paid, err := f.engine.ClaimRewards(alice)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid != 400 {
		t.Fatalf("paid %d, want 400", paid)
	}
	if u := f.user(t, alice); u.AccruedRewards != 600 || u.TotalClaimed != 400 {
		t.Fatalf("accrued=%d claimed=%d", u.AccruedRewards, u.TotalClaimed)
	}

	f.state.lamports[vault] = 1_000
	if paid, err = f.engine.ClaimRewards(alice); err != nil || paid != 600 {
		t.Fatalf("second claim paid %d err %v", paid, err)
	}
}

func TestFullExitResetsEligibility(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)
	f.nextEpoch(t)

	if _, err := f.engine.Unstake(alice, 1_001); !errors.Is(err, ErrInsufficientStake) {
		t.Fatalf("over-unstake: %v", err)
	}
	u, err := f.engine.Unstake(alice, 1_000)
	if err != nil {
		t.Fatalf("unstake: %v", err)
	}
	if u.StakeStartEpoch != 0 || u.SnapshotInitialized || !u.RewardPerTokenSnapshot.IsZero() {
		t.Fatalf("exit did not reset: %+v", u)
	}
	pool := f.pool(t)
	if pool.EligibleStake != 0 || pool.TotalStaked != 0 {
		t.Fatalf("pool eligible=%d total=%d", pool.EligibleStake, pool.TotalStaked)
	}
	if got := f.state.balances[tokenKey{alice, testMint}]; got != testFunds {
		t.Fatalf("tokens not returned: %d", got)
	}

	f.stake(t, alice, 500)
	f.deposit(t, 100)
	f.nextEpoch(t)
	pool = f.pool(t)
	if pool.CurrentEpochRewards != 100 || !pool.RewardPerTokenAccumulated.IsZero() {
		t.Fatalf("restaked position earned in its first epoch")
	}
	if f.user(t, alice).StakeStartEpoch != 2 {
		t.Fatalf("restake start epoch not reset")
	}
}

func TestLazyCatchUpKeepsCadence(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)
	f.deposit(t, 50)

	f.now = testStart + 5*testDuration + 10
	f.stake(t, bob, 1)
	pool := f.pool(t)
	if pool.CurrentEpoch != 6 || pool.TotalEpochsCompleted != 5 {
		t.Fatalf("epoch=%d completed=%d", pool.CurrentEpoch, pool.TotalEpochsCompleted)
	}
	if pool.EpochStartTime != testStart+5*testDuration {
		t.Fatalf("epoch start drifted to %d", pool.EpochStartTime)
	}
	for epoch := uint64(2); epoch <= 6; epoch++ {
		if _, ok := f.state.checkpoints[epoch]; !ok {
			t.Fatalf("checkpoint %d missing", epoch)
		}
	}
	if got := f.pending(t, alice); got != 50 {
		t.Fatalf("rolled-over epoch 1 rewards paid %d, want 50", got)
	}
}

func TestAdvanceEpochRequiresEnd(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	if _, err := f.engine.AdvanceEpoch(); !errors.Is(err, ErrEpochNotEnded) {
		t.Fatalf("early advance: %v", err)
	}
	f.now = testStart + 3*testDuration
	closed, err := f.engine.AdvanceEpoch()
	if err != nil || closed != 3 {
		t.Fatalf("advance closed %d err %v", closed, err)
	}
}

func TestPauseRules(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.stake(t, alice, 1_000)

	if err := f.engine.PauseStaking(bob); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("pause by stranger: %v", err)
	}
	if err := f.engine.PauseStaking(testAuthority); err != nil {
		t.Fatalf("pause: %v", err)
	}
	if _, err := f.engine.Stake(alice, 1); !errors.Is(err, ErrStakingPaused) {
		t.Fatalf("stake while paused: %v", err)
	}
	if _, err := f.engine.ClaimRewards(alice); !errors.Is(err, ErrStakingPaused) {
		t.Fatalf("claim while paused: %v", err)
	}
	if _, err := f.engine.Unstake(alice, 100); err != nil {
		t.Fatalf("unstake while paused: %v", err)
	}
	if err := f.engine.ResumeStaking(testAuthority); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if err := f.engine.ResumeStaking(testAuthority); !errors.Is(err, ErrStakingNotPaused) {
		t.Fatalf("double resume: %v", err)
	}
	f.stake(t, alice, 1)
}

func TestUpdateEpochDuration(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	cases := []struct {
		seconds int64
		ok      bool
	}{
		{59, false},
		{60, true},
		{604_800, true},
		{604_801, false},
	}
	for _, tc := range cases {
		err := f.engine.UpdateEpochDuration(testAuthority, tc.seconds)
		if tc.ok != (err == nil) {
			t.Fatalf("duration %d: err %v", tc.seconds, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidEpochDuration) {
			t.Fatalf("duration %d: unexpected error %v", tc.seconds, err)
		}
	}
	if err := f.engine.UpdateEpochDuration(alice, 600); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("stranger update: %v", err)
	}
	if got := f.pool(t).EpochDuration; got != 604_800 {
		t.Fatalf("duration = %d", got)
	}
}

func TestEmergencyOperations(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.deposit(t, 500)

	if _, err := f.engine.EmergencyDrainRewards(testAuthority); !errors.Is(err, ErrStakingNotPaused) {
		t.Fatalf("drain while running: %v", err)
	}
	drained, err := f.engine.EmergencyWithdraw(testAuthority)
	if err != nil || drained != 500 {
		t.Fatalf("withdraw drained %d err %v", drained, err)
	}
	pool := f.pool(t)
	if !pool.Paused || pool.CurrentEpochRewards != 0 {
		t.Fatalf("paused=%v rewards=%d", pool.Paused, pool.CurrentEpochRewards)
	}
	if f.state.lamports[testAuthority] != 500 {
		t.Fatalf("authority received %d", f.state.lamports[testAuthority])
	}
	if _, err := f.engine.EmergencyDrainRewards(testAuthority); !errors.Is(err, ErrInsufficientRewardBalance) {
		t.Fatalf("drain of empty vault: %v", err)
	}
	f.state.lamports[RewardVaultAddress()] = 10
	if drained, err = f.engine.EmergencyDrainRewards(testAuthority); err != nil || drained != 10 {
		t.Fatalf("drain %d err %v", drained, err)
	}
}

func TestRecordExternalRewards(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	buf := &events.Buffer{}
	f.engine.SetEmitter(buf)

	f.state.lamports[RewardVaultAddress()] += 250
	if err := f.engine.RecordExternalRewards(250); err != nil {
		t.Fatalf("record: %v", err)
	}
	pool := f.pool(t)
	if pool.CurrentEpochRewards != 250 || pool.TotalDeposited != 250 {
		t.Fatalf("rewards=%d deposited=%d", pool.CurrentEpochRewards, pool.TotalDeposited)
	}
	got := buf.Events()
	if len(got) != 1 || got[0].EventType() != events.TypeRewardsDeposited {
		t.Fatalf("events = %v", got)
	}
}

func TestOperatorPauseScope(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	f.engine.SetPauses(nativecommon.StaticPauses{"staking": true})

	if _, err := f.engine.Stake(alice, 1_000); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("stake under operator pause: %v", err)
	}
	if _, err := f.engine.DepositRewards(testFunder, 100); !errors.Is(err, nativecommon.ErrModulePaused) {
		t.Fatalf("deposit under operator pause: %v", err)
	}

	f.state.lamports[RewardVaultAddress()] += 400
	if err := f.engine.RecordExternalRewards(400); err != nil {
		t.Fatalf("record under operator pause: %v", err)
	}
	if got := f.pool(t).CurrentEpochRewards; got != 400 {
		t.Fatalf("epoch rewards = %d, want 400", got)
	}

	if err := f.engine.UpdateEpochDuration(testAuthority, 2*testDuration); err != nil {
		t.Fatalf("update duration under operator pause: %v", err)
	}
	if _, err := f.engine.ForceAdvanceEpoch(testAuthority); err != nil {
		t.Fatalf("force advance under operator pause: %v", err)
	}
	if got := f.pool(t).CurrentEpoch; got != 2 {
		t.Fatalf("epoch = %d, want 2", got)
	}
}

func TestModeGuards(t *testing.T) {
	push := newFixture(t, ModePush, RollOver)
	push.stake(t, alice, 1_000)
	if _, err := push.engine.ClaimRewards(alice); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("claim in push mode: %v", err)
	}
	pull := newFixture(t, ModePull, RollOver)
	if _, err := pull.engine.DistributeRewards(alice, []StakerPair{{}}); !errors.Is(err, ErrWrongMode) {
		t.Fatalf("distribute in pull mode: %v", err)
	}
}

func TestInitializeValidation(t *testing.T) {
	f := newFixture(t, ModePull, RollOver)
	if _, err := f.engine.Initialize(InitParams{Authority: testAuthority, StakingMint: testMint, EpochDuration: 300}); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialise: %v", err)
	}

	e := NewEngine()
	e.SetState(newMockState())
	if _, err := e.Initialize(InitParams{Authority: testAuthority, StakingMint: testMint, EpochDuration: 30}); !errors.Is(err, ErrInvalidEpochDuration) {
		t.Fatalf("short epoch: %v", err)
	}
	if _, err := e.Initialize(InitParams{Authority: testAuthority, StakingMint: testMint, EpochDuration: 300, Mode: 9}); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("bad mode: %v", err)
	}
	if _, err := e.Stake(alice, 1); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("stake before initialise: %v", err)
	}
}

func TestParseSettings(t *testing.T) {
	if m, err := ParseMode(" Push "); err != nil || m != ModePush {
		t.Fatalf("ParseMode = %v, %v", m, err)
	}
	if _, err := ParseMode("both"); !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("ParseMode(both): %v", err)
	}
	if p, err := ParseRolloverPolicy("forfeit"); err != nil || p != Forfeit {
		t.Fatalf("ParseRolloverPolicy = %v, %v", p, err)
	}
	if Code(ErrStakingPaused) != 6038 || Code(ErrNoRewards) != 6039 {
		t.Fatalf("unexpected codes")
	}
}
