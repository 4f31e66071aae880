package fees

import (
	"fmt"

	"memelend/core/safemath"
	"memelend/crypto"
)

const (
	DefaultTreasuryBps   uint64 = 4_000
	DefaultStakingBps    uint64 = 4_000
	DefaultOperationsBps uint64 = 2_000

	// DefaultReserveLamports stays in the receiver after every sweep so the
	// account never drops below rent.
	DefaultReserveLamports uint64 = 1_000_000

	seedReceiver = "fee_receiver"
)

// Split divides swept creator fees, in basis points.
type Split struct {
	TreasuryBps   uint64
	StakingBps    uint64
	OperationsBps uint64
}

// DefaultSplit returns the 40/40/20 split.
func DefaultSplit() Split {
	return Split{
		TreasuryBps:   DefaultTreasuryBps,
		StakingBps:    DefaultStakingBps,
		OperationsBps: DefaultOperationsBps,
	}
}

// Validate requires the shares to cover exactly 100%.
func (s Split) Validate() error {
	sum := s.TreasuryBps + s.StakingBps + s.OperationsBps
	if s.TreasuryBps > safemath.BpsDivisor || s.StakingBps > safemath.BpsDivisor ||
		s.OperationsBps > safemath.BpsDivisor || sum != safemath.BpsDivisor {
		return fmt.Errorf("%w: %d+%d+%d", ErrInvalidFeeSplit, s.TreasuryBps, s.StakingBps, s.OperationsBps)
	}
	return nil
}

// Allocate splits amount. Rounding dust goes to operations.
func (s Split) Allocate(amount uint64) (treasury, staking, operations uint64, err error) {
	if treasury, err = safemath.MulDiv(amount, s.TreasuryBps, safemath.BpsDivisor); err != nil {
		return 0, 0, 0, err
	}
	if staking, err = safemath.MulDiv(amount, s.StakingBps, safemath.BpsDivisor); err != nil {
		return 0, 0, 0, err
	}
	operations = amount - treasury - staking
	return treasury, staking, operations, nil
}

// Receiver is the account token creator fees are paid into.
type Receiver struct {
	Authority        crypto.Address
	TreasuryWallet   crypto.Address
	OperationsWallet crypto.Address
	StakingVault     crypto.Address
	Split            Split
	ReserveLamports  uint64
	TotalReceived    uint64
	TotalDistributed uint64
	LastDistribution int64
}

// Clone returns a deep copy.
func (r *Receiver) Clone() *Receiver {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// ReceiverAddress is the lamport account that accumulates creator fees.
func ReceiverAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedReceiver)
}
