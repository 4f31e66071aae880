package lending

import (
	"encoding/binary"
	"fmt"

	"memelend/core/oracle"
	"memelend/crypto"
)

// Record tags used for deterministic addressing.
const (
	seedProtocolState = "protocol_state"
	seedTokenConfig   = "token_config"
	seedLoan          = "loan"
	seedTreasury      = "treasury"
	seedVault         = "vault"
	seedUserExposure  = "user_exposure"
)

// TokenTier selects the default LTV of a whitelisted token.
type TokenTier uint8

const (
	TierBronze TokenTier = iota
	TierSilver
	TierGold
)

// ParseTokenTier validates a wire value.
func ParseTokenTier(v uint8) (TokenTier, error) {
	tier := TokenTier(v)
	if !tier.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidTokenTier, v)
	}
	return tier, nil
}

func (t TokenTier) Valid() bool {
	switch t {
	case TierBronze, TierSilver, TierGold:
		return true
	default:
		return false
	}
}

// DefaultLtvBps returns the tier LTV.
func (t TokenTier) DefaultLtvBps() uint64 {
	switch t {
	case TierBronze:
		return 2500
	case TierSilver:
		return 3500
	case TierGold:
		return 5000
	default:
		return 0
	}
}

func (t TokenTier) String() string {
	switch t {
	case TierBronze:
		return "bronze"
	case TierSilver:
		return "silver"
	case TierGold:
		return "gold"
	default:
		return "unknown"
	}
}

// LoanStatus enumerates the lifecycle states of a loan.
type LoanStatus uint8

const (
	LoanActive LoanStatus = iota
	LoanRepaid
	LoanLiquidatedByTime
	LoanLiquidatedByPrice
)

func (s LoanStatus) Valid() bool {
	switch s {
	case LoanActive, LoanRepaid, LoanLiquidatedByTime, LoanLiquidatedByPrice:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed.
func (s LoanStatus) Terminal() bool { return s != LoanActive }

func (s LoanStatus) String() string {
	switch s {
	case LoanActive:
		return "active"
	case LoanRepaid:
		return "repaid"
	case LoanLiquidatedByTime:
		return "liquidated_time"
	case LoanLiquidatedByPrice:
		return "liquidated_price"
	default:
		return "unknown"
	}
}

// closedError maps a terminal status to the error reported when an
// instruction targets the loan again.
func (s LoanStatus) closedError() error {
	switch s {
	case LoanRepaid:
		return ErrLoanAlreadyRepaid
	case LoanLiquidatedByTime, LoanLiquidatedByPrice:
		return ErrLoanLiquidated
	default:
		return nil
	}
}

// ProtocolState is the lending singleton.
type ProtocolState struct {
	Admin                crypto.Address
	PendingAdmin         crypto.Address
	AdminTransferAt      int64
	Paused               bool
	ReentrancyLocked     bool
	TotalLoansCreated    uint64
	TotalBorrowed        uint64
	TotalFeesEarned      uint64
	ActiveLoans          uint64
	ProtocolFeeBps       uint64
	TreasuryFeeBps       uint64
	StakingFeeBps        uint64
	OperationsFeeBps     uint64
	AuthorizedLiquidator crypto.Address
	PriceAuthority       crypto.Address
	OperationsWallet     crypto.Address
	BuybackWallet        crypto.Address
	StakingRewardVault   crypto.Address
}

// Clone returns a deep copy of the protocol state.
func (p *ProtocolState) Clone() *ProtocolState {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// TokenConfig describes a whitelisted collateral token.
type TokenConfig struct {
	Mint                crypto.Address
	Tier                TokenTier
	Enabled             bool
	Blacklisted         bool
	PoolAddress         crypto.Address
	PoolType            oracle.PoolType
	LtvBps              uint64
	MinLoan             uint64
	MaxLoan             uint64
	ActiveLoans         uint64
	TotalVolume         uint64
	TotalActiveBorrowed uint64
	IsProtocolToken     bool
}

func (c *TokenConfig) Clone() *TokenConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// Loan is one borrow position.
type Loan struct {
	Address          crypto.Address
	Borrower         crypto.Address
	Mint             crypto.Address
	Index            uint64
	CollateralAmount uint64
	Borrowed         uint64
	EntryPrice       uint64
	LiquidationPrice uint64
	EffectiveLtvBps  uint64
	CreatedAt        int64
	DueAt            int64
	Status           LoanStatus
	ClosedAt         int64
	Proceeds         uint64
}

func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}

// Vault returns the escrow token account of the loan.
func (l *Loan) Vault() crypto.Address { return VaultAddress(l.Address) }

// UserExposure tracks a borrower's running totals for the per-user cap.
type UserExposure struct {
	Owner            crypto.Address
	TotalBorrowed    uint64
	ActiveLoans      uint64
	LoansRepaid      uint64
	LoansLiquidated  uint64
	LifetimeBorrowed uint64
}

func (u *UserExposure) Clone() *UserExposure {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}

// ProtocolStateAddress is the singleton record address.
func ProtocolStateAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedProtocolState)
}

// TreasuryAddress holds the base currency lent out.
func TreasuryAddress() crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedTreasury)
}

func TokenConfigAddress(mint crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedTokenConfig, mint[:])
}

// LoanAddress derives hash(tag, borrower, mint, index).
func LoanAddress(borrower, mint crypto.Address, index uint64) crypto.Address {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], index)
	return crypto.DeriveAddress(crypto.ProgramID, seedLoan, borrower[:], mint[:], idx[:])
}

// VaultAddress is the escrow account owned by a loan.
func VaultAddress(loan crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedVault, loan[:])
}

func UserExposureAddress(owner crypto.Address) crypto.Address {
	return crypto.DeriveAddress(crypto.ProgramID, seedUserExposure, owner[:])
}
