package state

import (
	"memelend/crypto"
	"memelend/native/fees"
)

type storedReceiver struct {
	Authority        crypto.Address
	TreasuryWallet   crypto.Address
	OperationsWallet crypto.Address
	StakingVault     crypto.Address
	Split            fees.Split
	ReserveLamports  uint64
	TotalReceived    uint64
	TotalDistributed uint64
	LastDistribution uint64
}

// GetFeeReceiver loads the creator fee receiver.
func (m *Manager) GetFeeReceiver() (*fees.Receiver, bool, error) {
	var s storedReceiver
	ok, err := m.loadRLP(feeReceiverKey, &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &fees.Receiver{
		Authority:        s.Authority,
		TreasuryWallet:   s.TreasuryWallet,
		OperationsWallet: s.OperationsWallet,
		StakingVault:     s.StakingVault,
		Split:            s.Split,
		ReserveLamports:  s.ReserveLamports,
		TotalReceived:    s.TotalReceived,
		TotalDistributed: s.TotalDistributed,
		LastDistribution: int64(s.LastDistribution),
	}, true, nil
}

func (m *Manager) PutFeeReceiver(r *fees.Receiver) error {
	return m.writeRLP(feeReceiverKey, &storedReceiver{
		Authority:        r.Authority,
		TreasuryWallet:   r.TreasuryWallet,
		OperationsWallet: r.OperationsWallet,
		StakingVault:     r.StakingVault,
		Split:            r.Split,
		ReserveLamports:  r.ReserveLamports,
		TotalReceived:    r.TotalReceived,
		TotalDistributed: r.TotalDistributed,
		LastDistribution: uint64(r.LastDistribution),
	})
}
