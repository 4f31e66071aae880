package server

import (
	"memelend/crypto"
	"memelend/native/fees"
	"memelend/native/lending"
	"memelend/native/staking"
)

type loanView struct {
	Address          crypto.Address `json:"address"`
	Borrower         crypto.Address `json:"borrower"`
	Mint             crypto.Address `json:"mint"`
	Vault            crypto.Address `json:"vault"`
	Index            uint64         `json:"index"`
	CollateralAmount uint64         `json:"collateralAmount"`
	Borrowed         uint64         `json:"borrowed"`
	EntryPrice       uint64         `json:"entryPrice"`
	LiquidationPrice uint64         `json:"liquidationPrice"`
	EffectiveLtvBps  uint64         `json:"effectiveLtvBps"`
	CreatedAt        int64          `json:"createdAt"`
	DueAt            int64          `json:"dueAt"`
	Status           string         `json:"status"`
	ClosedAt         int64          `json:"closedAt,omitempty"`
	Proceeds         uint64         `json:"proceeds,omitempty"`
}

func newLoanView(l *lending.Loan) loanView {
	return loanView{
		Address:          l.Address,
		Borrower:         l.Borrower,
		Mint:             l.Mint,
		Vault:            l.Vault(),
		Index:            l.Index,
		CollateralAmount: l.CollateralAmount,
		Borrowed:         l.Borrowed,
		EntryPrice:       l.EntryPrice,
		LiquidationPrice: l.LiquidationPrice,
		EffectiveLtvBps:  l.EffectiveLtvBps,
		CreatedAt:        l.CreatedAt,
		DueAt:            l.DueAt,
		Status:           l.Status.String(),
		ClosedAt:         l.ClosedAt,
		Proceeds:         l.Proceeds,
	}
}

type tokenView struct {
	Mint                crypto.Address `json:"mint"`
	Tier                string         `json:"tier"`
	Enabled             bool           `json:"enabled"`
	Blacklisted         bool           `json:"blacklisted"`
	PoolAddress         crypto.Address `json:"poolAddress"`
	PoolType            string         `json:"poolType"`
	LtvBps              uint64         `json:"ltvBps"`
	MinLoan             uint64         `json:"minLoan"`
	MaxLoan             uint64         `json:"maxLoan"`
	ActiveLoans         uint64         `json:"activeLoans"`
	TotalVolume         uint64         `json:"totalVolume"`
	TotalActiveBorrowed uint64         `json:"totalActiveBorrowed"`
	IsProtocolToken     bool           `json:"isProtocolToken"`
}

func newTokenView(c *lending.TokenConfig) tokenView {
	return tokenView{
		Mint:                c.Mint,
		Tier:                c.Tier.String(),
		Enabled:             c.Enabled,
		Blacklisted:         c.Blacklisted,
		PoolAddress:         c.PoolAddress,
		PoolType:            c.PoolType.String(),
		LtvBps:              c.LtvBps,
		MinLoan:             c.MinLoan,
		MaxLoan:             c.MaxLoan,
		ActiveLoans:         c.ActiveLoans,
		TotalVolume:         c.TotalVolume,
		TotalActiveBorrowed: c.TotalActiveBorrowed,
		IsProtocolToken:     c.IsProtocolToken,
	}
}

type protocolView struct {
	Admin                crypto.Address `json:"admin"`
	PendingAdmin         crypto.Address `json:"pendingAdmin"`
	AdminTransferAt      int64          `json:"adminTransferAt,omitempty"`
	Paused               bool           `json:"paused"`
	TotalLoansCreated    uint64         `json:"totalLoansCreated"`
	TotalBorrowed        uint64         `json:"totalBorrowed"`
	TotalFeesEarned      uint64         `json:"totalFeesEarned"`
	ActiveLoans          uint64         `json:"activeLoans"`
	ProtocolFeeBps       uint64         `json:"protocolFeeBps"`
	TreasuryFeeBps       uint64         `json:"treasuryFeeBps"`
	StakingFeeBps        uint64         `json:"stakingFeeBps"`
	OperationsFeeBps     uint64         `json:"operationsFeeBps"`
	AuthorizedLiquidator crypto.Address `json:"authorizedLiquidator"`
	PriceAuthority       crypto.Address `json:"priceAuthority"`
	OperationsWallet     crypto.Address `json:"operationsWallet"`
	BuybackWallet        crypto.Address `json:"buybackWallet"`
	StakingRewardVault   crypto.Address `json:"stakingRewardVault"`
	Treasury             crypto.Address `json:"treasury"`
	TreasuryBalance      uint64         `json:"treasuryBalance"`
}

func newProtocolView(p *lending.ProtocolState, treasuryBalance uint64) protocolView {
	return protocolView{
		Admin:                p.Admin,
		PendingAdmin:         p.PendingAdmin,
		AdminTransferAt:      p.AdminTransferAt,
		Paused:               p.Paused,
		TotalLoansCreated:    p.TotalLoansCreated,
		TotalBorrowed:        p.TotalBorrowed,
		TotalFeesEarned:      p.TotalFeesEarned,
		ActiveLoans:          p.ActiveLoans,
		ProtocolFeeBps:       p.ProtocolFeeBps,
		TreasuryFeeBps:       p.TreasuryFeeBps,
		StakingFeeBps:        p.StakingFeeBps,
		OperationsFeeBps:     p.OperationsFeeBps,
		AuthorizedLiquidator: p.AuthorizedLiquidator,
		PriceAuthority:       p.PriceAuthority,
		OperationsWallet:     p.OperationsWallet,
		BuybackWallet:        p.BuybackWallet,
		StakingRewardVault:   p.StakingRewardVault,
		Treasury:             lending.TreasuryAddress(),
		TreasuryBalance:      treasuryBalance,
	}
}

type poolView struct {
	Authority              crypto.Address `json:"authority"`
	StakingMint            crypto.Address `json:"stakingMint"`
	StakingVault           crypto.Address `json:"stakingVault"`
	RewardVault            crypto.Address `json:"rewardVault"`
	CurrentEpoch           uint64         `json:"currentEpoch"`
	EpochDuration          int64          `json:"epochDuration"`
	EpochStartTime         int64          `json:"epochStartTime"`
	EpochEnd               int64          `json:"epochEnd"`
	TotalStaked            uint64         `json:"totalStaked"`
	EligibleStake          uint64         `json:"eligibleStake"`
	CurrentEpochRewards    uint64         `json:"currentEpochRewards"`
	RewardPerToken         string         `json:"rewardPerToken"`
	LastEpochRewards       uint64         `json:"lastEpochRewards"`
	LastEpochEligibleStake uint64         `json:"lastEpochEligibleStake"`
	LastEpochDistributed   uint64         `json:"lastEpochDistributed"`
	TotalEpochsCompleted   uint64         `json:"totalEpochsCompleted"`
	TotalDeposited         uint64         `json:"totalDeposited"`
	TotalDistributed       uint64         `json:"totalDistributed"`
	TotalClaimed           uint64         `json:"totalClaimed"`
	TotalForfeited         uint64         `json:"totalForfeited"`
	Paused                 bool           `json:"paused"`
	Mode                   string         `json:"mode"`
	Rollover               string         `json:"rollover"`
}

func newPoolView(p *staking.Pool) poolView {
	rpt := "0"
	if p.RewardPerTokenAccumulated != nil {
		rpt = p.RewardPerTokenAccumulated.Dec()
	}
	return poolView{
		Authority:              p.Authority,
		StakingMint:            p.StakingMint,
		StakingVault:           p.StakingVault,
		RewardVault:            p.RewardVault,
		CurrentEpoch:           p.CurrentEpoch,
		EpochDuration:          p.EpochDuration,
		EpochStartTime:         p.EpochStartTime,
		EpochEnd:               p.EpochEnd(),
		TotalStaked:            p.TotalStaked,
		EligibleStake:          p.EligibleStake,
		CurrentEpochRewards:    p.CurrentEpochRewards,
		RewardPerToken:         rpt,
		LastEpochRewards:       p.LastEpochRewards,
		LastEpochEligibleStake: p.LastEpochEligibleStake,
		LastEpochDistributed:   p.LastEpochDistributed,
		TotalEpochsCompleted:   p.TotalEpochsCompleted,
		TotalDeposited:         p.TotalDeposited,
		TotalDistributed:       p.TotalDistributed,
		TotalClaimed:           p.TotalClaimed,
		TotalForfeited:         p.TotalForfeited,
		Paused:                 p.Paused,
		Mode:                   p.Mode.String(),
		Rollover:               p.Rollover.String(),
	}
}

type stakeView struct {
	Owner             crypto.Address `json:"owner"`
	Record            crypto.Address `json:"record"`
	StakedAmount      uint64         `json:"stakedAmount"`
	PendingStake      uint64         `json:"pendingStake"`
	MaturingStake     uint64         `json:"maturingStake"`
	StakeStartEpoch   uint64         `json:"stakeStartEpoch"`
	LastRewardedEpoch uint64         `json:"lastRewardedEpoch"`
	LastClaimedEpoch  uint64         `json:"lastClaimedEpoch"`
	TotalReceived     uint64         `json:"totalReceived"`
	TotalClaimed      uint64         `json:"totalClaimed"`
	PendingRewards    uint64         `json:"pendingRewards"`
}

func newStakeView(u *staking.UserStake) stakeView {
	return stakeView{
		Owner:             u.Owner,
		Record:            staking.UserStakeAddress(u.Pool, u.Owner),
		StakedAmount:      u.StakedAmount,
		PendingStake:      u.PendingStake,
		MaturingStake:     u.MaturingStake,
		StakeStartEpoch:   u.StakeStartEpoch,
		LastRewardedEpoch: u.LastRewardedEpoch,
		LastClaimedEpoch:  u.LastClaimedEpoch,
		TotalReceived:     u.TotalReceived,
		TotalClaimed:      u.TotalClaimed,
		PendingRewards:    u.AccruedRewards,
	}
}

type receiverView struct {
	Address          crypto.Address `json:"address"`
	Authority        crypto.Address `json:"authority"`
	TreasuryWallet   crypto.Address `json:"treasuryWallet"`
	OperationsWallet crypto.Address `json:"operationsWallet"`
	StakingVault     crypto.Address `json:"stakingVault"`
	TreasuryBps      uint64         `json:"treasuryBps"`
	StakingBps       uint64         `json:"stakingBps"`
	OperationsBps    uint64         `json:"operationsBps"`
	ReserveLamports  uint64         `json:"reserveLamports"`
	TotalReceived    uint64         `json:"totalReceived"`
	TotalDistributed uint64         `json:"totalDistributed"`
	LastDistribution int64          `json:"lastDistribution,omitempty"`
	Balance          uint64         `json:"balance"`
}

func newReceiverView(r *fees.Receiver, balance uint64) receiverView {
	return receiverView{
		Address:          fees.ReceiverAddress(),
		Authority:        r.Authority,
		TreasuryWallet:   r.TreasuryWallet,
		OperationsWallet: r.OperationsWallet,
		StakingVault:     r.StakingVault,
		TreasuryBps:      r.Split.TreasuryBps,
		StakingBps:       r.Split.StakingBps,
		OperationsBps:    r.Split.OperationsBps,
		ReserveLamports:  r.ReserveLamports,
		TotalReceived:    r.TotalReceived,
		TotalDistributed: r.TotalDistributed,
		LastDistribution: r.LastDistribution,
		Balance:          balance,
	}
}
