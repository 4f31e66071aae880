package state

import (
	"math/big"

	"github.com/holiman/uint256"

	"memelend/crypto"
	"memelend/native/staking"
)

type storedPool struct {
	Authority                 crypto.Address
	StakingMint               crypto.Address
	StakingVault              crypto.Address
	RewardVault               crypto.Address
	CurrentEpoch              uint64
	EpochDuration             uint64
	EpochStartTime            uint64
	TotalStaked               uint64
	EligibleStake             uint64
	CurrentEpochRewards       uint64
	RewardPerTokenAccumulated *big.Int
	LastEpochRewards          uint64
	LastEpochEligibleStake    uint64
	LastEpochDistributed      uint64
	TotalEpochsCompleted      uint64
	TotalDeposited            uint64
	TotalDistributed          uint64
	TotalClaimed              uint64
	TotalForfeited            uint64
	Paused                    bool
	Mode                      uint8
	Rollover                  uint8
}

func toBig(v *uint256.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v.ToBig()
}

func fromBig(v *big.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	out, _ := uint256.FromBig(v)
	return out
}

// GetStakingPool loads the staking singleton.
func (m *Manager) GetStakingPool() (*staking.Pool, bool, error) {
	var s storedPool
	ok, err := m.loadRLP(stakingPoolKey, &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &staking.Pool{
		Authority:                 s.Authority,
		StakingMint:               s.StakingMint,
		StakingVault:              s.StakingVault,
		RewardVault:               s.RewardVault,
		CurrentEpoch:              s.CurrentEpoch,
		EpochDuration:             int64(s.EpochDuration),
		EpochStartTime:            int64(s.EpochStartTime),
		TotalStaked:               s.TotalStaked,
		EligibleStake:             s.EligibleStake,
		CurrentEpochRewards:       s.CurrentEpochRewards,
		RewardPerTokenAccumulated: fromBig(s.RewardPerTokenAccumulated),
		LastEpochRewards:          s.LastEpochRewards,
		LastEpochEligibleStake:    s.LastEpochEligibleStake,
		LastEpochDistributed:      s.LastEpochDistributed,
		TotalEpochsCompleted:      s.TotalEpochsCompleted,
		TotalDeposited:            s.TotalDeposited,
		TotalDistributed:          s.TotalDistributed,
		TotalClaimed:              s.TotalClaimed,
		TotalForfeited:            s.TotalForfeited,
		Paused:                    s.Paused,
		Mode:                      staking.Mode(s.Mode),
		Rollover:                  staking.RolloverPolicy(s.Rollover),
	}, true, nil
}

// PutStakingPool stores the staking singleton.
func (m *Manager) PutStakingPool(p *staking.Pool) error {
	return m.writeRLP(stakingPoolKey, &storedPool{
		Authority:                 p.Authority,
		StakingMint:               p.StakingMint,
		StakingVault:              p.StakingVault,
		RewardVault:               p.RewardVault,
		CurrentEpoch:              p.CurrentEpoch,
		EpochDuration:             uint64(p.EpochDuration),
		EpochStartTime:            uint64(p.EpochStartTime),
		TotalStaked:               p.TotalStaked,
		EligibleStake:             p.EligibleStake,
		CurrentEpochRewards:       p.CurrentEpochRewards,
		RewardPerTokenAccumulated: toBig(p.RewardPerTokenAccumulated),
		LastEpochRewards:          p.LastEpochRewards,
		LastEpochEligibleStake:    p.LastEpochEligibleStake,
		LastEpochDistributed:      p.LastEpochDistributed,
		TotalEpochsCompleted:      p.TotalEpochsCompleted,
		TotalDeposited:            p.TotalDeposited,
		TotalDistributed:          p.TotalDistributed,
		TotalClaimed:              p.TotalClaimed,
		TotalForfeited:            p.TotalForfeited,
		Paused:                    p.Paused,
		Mode:                      uint8(p.Mode),
		Rollover:                  uint8(p.Rollover),
	})
}

type storedCheckpoint struct {
	Epoch          uint64
	StartTime      uint64
	RewardPerToken *big.Int
}

func (m *Manager) GetEpochCheckpoint(epoch uint64) (*staking.Checkpoint, bool, error) {
	var s storedCheckpoint
	ok, err := m.loadRLP(checkpointKey(epoch), &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &staking.Checkpoint{
		Epoch:          s.Epoch,
		StartTime:      int64(s.StartTime),
		RewardPerToken: fromBig(s.RewardPerToken),
	}, true, nil
}

func (m *Manager) PutEpochCheckpoint(cp *staking.Checkpoint) error {
	return m.writeRLP(checkpointKey(cp.Epoch), &storedCheckpoint{
		Epoch:          cp.Epoch,
		StartTime:      uint64(cp.StartTime),
		RewardPerToken: toBig(cp.RewardPerToken),
	})
}

// StakerPairs builds a distribution batch from every stake record in state.
func (m *Manager) StakerPairs() ([]staking.StakerPair, error) {
	addrs, err := m.AccountsOwnedBy(crypto.ProgramID)
	if err != nil {
		return nil, err
	}
	var pairs []staking.StakerPair
	for _, addr := range addrs {
		_, data, ok, err := m.GetAccount(addr)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		user, err := staking.DecodeUserStake(data)
		if err != nil {
			// Other program records share the owner.
			continue
		}
		pairs = append(pairs, staking.StakerPair{Record: addr, Wallet: user.Owner})
	}
	return pairs, nil
}
