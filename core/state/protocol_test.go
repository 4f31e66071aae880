package state_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"memelend/core/oracle"
	"memelend/core/state"
	"memelend/crypto"
	"memelend/native/fees"
	"memelend/native/lending"
	"memelend/native/staking"
	"memelend/native/swap"
	"memelend/storage"
)

var (
	admin      = crypto.HashToAddress([]byte("admin"))
	liquidator = crypto.HashToAddress([]byte("liquidator"))
	borrower   = crypto.HashToAddress([]byte("borrower"))
	staker     = crypto.HashToAddress([]byte("staker"))
	creator    = crypto.HashToAddress([]byte("creator"))
	operations = crypto.HashToAddress([]byte("operations"))
	treasury   = crypto.HashToAddress([]byte("dao-treasury"))
	memeMint   = crypto.HashToAddress([]byte("meme"))
	govMint    = crypto.HashToAddress([]byte("governance"))
	memePool   = crypto.HashToAddress([]byte("meme-raydium"))
)

const (
	start      int64  = 1_700_000_000
	collateral uint64 = 1_000_000_000_000
)

type protocol struct {
	mgr     *state.Manager
	lending *lending.Engine
	staking *staking.Engine
	fees    *fees.Engine
	now     int64
}

func newProtocol(t *testing.T) *protocol {
	t.Helper()
	p := &protocol{mgr: state.NewManager(storage.NewMemDB()), now: start}
	clock := func() time.Time { return time.Unix(p.now, 0) }

	p.staking = staking.NewEngine()
	p.staking.SetState(p.mgr)
	p.staking.SetNowFunc(clock)
	_, err := p.staking.Initialize(staking.InitParams{
		Authority:     admin,
		StakingMint:   govMint,
		EpochDuration: staking.DefaultEpochDuration,
	})
	require.NoError(t, err)

	p.lending = lending.NewEngine(lending.DefaultParams())
	p.lending.SetState(p.mgr)
	p.lending.SetNowFunc(clock)
	p.lending.SetRewardSink(p.staking)
	_, err = p.lending.Initialize(lending.InitParams{
		Admin:                admin,
		OperationsWallet:     operations,
		StakingRewardVault:   staking.RewardVaultAddress(),
		AuthorizedLiquidator: liquidator,
	})
	require.NoError(t, err)
	require.NoError(t, swap.Install(p.lending, p.mgr, swap.DefaultConfig()))

	p.fees = fees.NewEngine()
	p.fees.SetState(p.mgr)
	p.fees.SetNowFunc(clock)
	p.fees.SetRewardSink(p.staking)
	_, err = p.fees.Initialize(fees.InitParams{
		Authority:        admin,
		TreasuryWallet:   treasury,
		OperationsWallet: operations,
		StakingVault:     staking.RewardVaultAddress(),
	})
	require.NoError(t, err)

	require.NoError(t, p.mgr.CreditLamports(admin, 1_000_000_000_000))
	_, err = p.lending.FundTreasury(admin, 1_000_000_000_000)
	require.NoError(t, err)
	_, err = p.lending.WhitelistToken(admin, lending.WhitelistRequest{
		Mint:        memeMint,
		Tier:        lending.TierGold,
		PoolAddress: memePool,
		PoolType:    oracle.PoolRaydium,
		MinLoan:     10_000_000,
		MaxLoan:     100_000_000_000,
	})
	require.NoError(t, err)
	require.NoError(t, p.mgr.MintTokens(borrower, memeMint, 2*collateral))
	require.NoError(t, p.mgr.MintTokens(staker, govMint, 1_000))
	require.NoError(t, p.mgr.CreditLamports(memePool, 100_000_000_000))
	return p
}

// pool prices one collateral unit at 1e6 (100 SOL against 1e14 units).
func (p *protocol) pool() oracle.PoolAccount {
	layout := oracle.ConstantProductLayout{
		ReserveA: 100_000_000_000,
		ReserveB: 100_000_000_000_000,
		MintA:    crypto.NativeMint,
		MintB:    memeMint,
	}
	return oracle.PoolAccount{Address: memePool, Data: layout.Encode(), ObservedAt: p.now}
}

func TestProtocolFeesReachStakers(t *testing.T) {
	p := newProtocol(t)
	_, err := p.staking.Stake(staker, 1_000)
	require.NoError(t, err)

	first, err := p.lending.CreateLoan(borrower, memeMint, collateral, lending.BaseLoanDuration, p.pool())
	require.NoError(t, err)
	second, err := p.lending.CreateLoan(borrower, memeMint, collateral, lending.BaseLoanDuration, p.pool())
	require.NoError(t, err)
	active, err := p.mgr.ActiveLoans()
	require.NoError(t, err)
	require.Len(t, active, 2)

	// Repay the first loan: principal plus the flat fee.
	fee, err := lending.ProtocolFee(first.Borrowed, lending.DefaultProtocolFeeBps)
	require.NoError(t, err)
	require.NoError(t, p.mgr.CreditLamports(borrower, fee))
	receipt, err := p.lending.RepayLoan(borrower, first.Address)
	require.NoError(t, err)
	require.NotZero(t, receipt.StakingFee)
	tokens, err := p.mgr.TokenBalance(borrower, memeMint)
	require.NoError(t, err)
	require.Equal(t, collateral, tokens, "collateral returned on repay")

	pool, err := p.staking.Pool()
	require.NoError(t, err)
	require.Equal(t, receipt.StakingFee, pool.CurrentEpochRewards)

	// Let the second loan expire and sell its collateral into the pool.
	p.now = second.DueAt + 1
	price, err := oracle.ReadPrice(p.pool(), oracle.PoolRaydium, memeMint)
	require.NoError(t, err)
	expected, err := lending.CollateralValue(collateral, price)
	require.NoError(t, err)
	minOut, err := lending.MinimumAcceptableOutput(expected, lending.DefaultLiquidationSlippageBps)
	require.NoError(t, err)
	liq, err := p.lending.Liquidate(liquidator, second.Address, minOut, nil, p.pool())
	require.NoError(t, err)
	require.Equal(t, lending.LoanLiquidatedByTime, liq.Reason)
	out, err := swap.ConstantProductOut(100_000_000_000_000, 100_000_000_000, collateral, swap.DefaultConstantProductFeeBps)
	require.NoError(t, err)
	require.Equal(t, out, liq.Proceeds)
	poolTokens, err := p.mgr.TokenBalance(memePool, memeMint)
	require.NoError(t, err)
	require.Equal(t, collateral, poolTokens)

	active, err = p.mgr.ActiveLoans()
	require.NoError(t, err)
	require.Empty(t, active)

	// Two epochs have closed; the repay fee rolled past the empty first
	// epoch and belongs to the only staker.
	pending, err := p.staking.PendingRewards(staker)
	require.NoError(t, err)
	require.Equal(t, receipt.StakingFee, pending)
	claimed, err := p.staking.ClaimRewards(staker)
	require.NoError(t, err)
	require.Equal(t, receipt.StakingFee, claimed)
	lamports, err := p.mgr.Lamports(staker)
	require.NoError(t, err)
	require.Equal(t, claimed, lamports)
}

func TestCreatorFeesCreditStaking(t *testing.T) {
	p := newProtocol(t)
	require.NoError(t, p.mgr.CreditLamports(creator, 10_000_000))
	_, err := p.fees.RecordFees(creator, 10_000_000)
	require.NoError(t, err)

	dist, err := p.fees.DistributeCreatorFees(creator)
	require.NoError(t, err)
	require.Equal(t, 10_000_000-fees.DefaultReserveLamports, dist.Amount)

	pool, err := p.staking.Pool()
	require.NoError(t, err)
	require.Equal(t, dist.Staking, pool.CurrentEpochRewards)
	vault, err := p.mgr.Lamports(staking.RewardVaultAddress())
	require.NoError(t, err)
	require.Equal(t, dist.Staking, vault)
	got, err := p.mgr.Lamports(treasury)
	require.NoError(t, err)
	require.Equal(t, dist.Treasury, got)
}

func TestFailedInstructionRollsBack(t *testing.T) {
	p := newProtocol(t)
	tx := p.mgr.Begin()
	p.lending.SetState(tx)
	// A loan larger than the borrower's collateral fails after the escrow
	// is opened; discarding the transaction leaves no trace.
	_, err := p.lending.CreateLoan(borrower, memeMint, 3*collateral, lending.BaseLoanDuration, p.pool())
	require.Error(t, err)
	tx.Discard()
	p.lending.SetState(p.mgr)

	ps, err := p.lending.ProtocolState()
	require.NoError(t, err)
	require.Zero(t, ps.ActiveLoans)
	require.False(t, ps.ReentrancyLocked)
	balance, err := p.mgr.TokenBalance(borrower, memeMint)
	require.NoError(t, err)
	require.Equal(t, 2*collateral, balance)
}
