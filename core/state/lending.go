package state

import (
	"memelend/core/oracle"
	"memelend/crypto"
	"memelend/native/lending"
)

// RLP has no signed integers, so timestamps are stored as their uint64 bit
// pattern.

type storedProtocolState struct {
	Admin                crypto.Address
	PendingAdmin         crypto.Address
	AdminTransferAt      uint64
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

// GetProtocolState loads the lending singleton.
func (m *Manager) GetProtocolState() (*lending.ProtocolState, bool, error) {
	var s storedProtocolState
	ok, err := m.loadRLP(protocolStateKey, &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lending.ProtocolState{
		Admin:                s.Admin,
		PendingAdmin:         s.PendingAdmin,
		AdminTransferAt:      int64(s.AdminTransferAt),
		Paused:               s.Paused,
		ReentrancyLocked:     s.ReentrancyLocked,
		TotalLoansCreated:    s.TotalLoansCreated,
		TotalBorrowed:        s.TotalBorrowed,
		TotalFeesEarned:      s.TotalFeesEarned,
		ActiveLoans:          s.ActiveLoans,
		ProtocolFeeBps:       s.ProtocolFeeBps,
		TreasuryFeeBps:       s.TreasuryFeeBps,
		StakingFeeBps:        s.StakingFeeBps,
		OperationsFeeBps:     s.OperationsFeeBps,
		AuthorizedLiquidator: s.AuthorizedLiquidator,
		PriceAuthority:       s.PriceAuthority,
		OperationsWallet:     s.OperationsWallet,
		BuybackWallet:        s.BuybackWallet,
		StakingRewardVault:   s.StakingRewardVault,
	}, true, nil
}

// PutProtocolState stores the lending singleton.
func (m *Manager) PutProtocolState(p *lending.ProtocolState) error {
	return m.writeRLP(protocolStateKey, &storedProtocolState{
		Admin:                p.Admin,
		PendingAdmin:         p.PendingAdmin,
		AdminTransferAt:      uint64(p.AdminTransferAt),
		Paused:               p.Paused,
		ReentrancyLocked:     p.ReentrancyLocked,
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
	})
}

type storedTokenConfig struct {
	Mint                crypto.Address
	Tier                uint8
	Enabled             bool
	Blacklisted         bool
	PoolAddress         crypto.Address
	PoolType            uint8
	LtvBps              uint64
	MinLoan             uint64
	MaxLoan             uint64
	ActiveLoans         uint64
	TotalVolume         uint64
	TotalActiveBorrowed uint64
	IsProtocolToken     bool
}

// GetTokenConfig loads the whitelist entry of mint.
func (m *Manager) GetTokenConfig(mint crypto.Address) (*lending.TokenConfig, bool, error) {
	var s storedTokenConfig
	ok, err := m.loadRLP(addressKey(tokenConfigPrefix, mint), &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return &lending.TokenConfig{
		Mint:                s.Mint,
		Tier:                lending.TokenTier(s.Tier),
		Enabled:             s.Enabled,
		Blacklisted:         s.Blacklisted,
		PoolAddress:         s.PoolAddress,
		PoolType:            oracle.PoolType(s.PoolType),
		LtvBps:              s.LtvBps,
		MinLoan:             s.MinLoan,
		MaxLoan:             s.MaxLoan,
		ActiveLoans:         s.ActiveLoans,
		TotalVolume:         s.TotalVolume,
		TotalActiveBorrowed: s.TotalActiveBorrowed,
		IsProtocolToken:     s.IsProtocolToken,
	}, true, nil
}

func (m *Manager) PutTokenConfig(cfg *lending.TokenConfig) error {
	return m.writeRLP(addressKey(tokenConfigPrefix, cfg.Mint), &storedTokenConfig{
		Mint:                cfg.Mint,
		Tier:                uint8(cfg.Tier),
		Enabled:             cfg.Enabled,
		Blacklisted:         cfg.Blacklisted,
		PoolAddress:         cfg.PoolAddress,
		PoolType:            uint8(cfg.PoolType),
		LtvBps:              cfg.LtvBps,
		MinLoan:             cfg.MinLoan,
		MaxLoan:             cfg.MaxLoan,
		ActiveLoans:         cfg.ActiveLoans,
		TotalVolume:         cfg.TotalVolume,
		TotalActiveBorrowed: cfg.TotalActiveBorrowed,
		IsProtocolToken:     cfg.IsProtocolToken,
	})
}

// TokenConfigs lists every whitelisted token.
func (m *Manager) TokenConfigs() ([]*lending.TokenConfig, error) {
	var mints []crypto.Address
	if err := m.iterate(tokenConfigPrefix, func(key, _ []byte) bool {
		var mint crypto.Address
		copy(mint[:], key[len(tokenConfigPrefix):])
		mints = append(mints, mint)
		return true
	}); err != nil {
		return nil, err
	}
	out := make([]*lending.TokenConfig, 0, len(mints))
	for _, mint := range mints {
		cfg, ok, err := m.GetTokenConfig(mint)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, cfg)
		}
	}
	return out, nil
}

type storedLoan struct {
	Address          crypto.Address
	Borrower         crypto.Address
	Mint             crypto.Address
	Index            uint64
	CollateralAmount uint64
	Borrowed         uint64
	EntryPrice       uint64
	LiquidationPrice uint64
	EffectiveLtvBps  uint64
	CreatedAt        uint64
	DueAt            uint64
	Status           uint8
	ClosedAt         uint64
	Proceeds         uint64
}

func (s *storedLoan) loan() *lending.Loan {
	return &lending.Loan{
		Address:          s.Address,
		Borrower:         s.Borrower,
		Mint:             s.Mint,
		Index:            s.Index,
		CollateralAmount: s.CollateralAmount,
		Borrowed:         s.Borrowed,
		EntryPrice:       s.EntryPrice,
		LiquidationPrice: s.LiquidationPrice,
		EffectiveLtvBps:  s.EffectiveLtvBps,
		CreatedAt:        int64(s.CreatedAt),
		DueAt:            int64(s.DueAt),
		Status:           lending.LoanStatus(s.Status),
		ClosedAt:         int64(s.ClosedAt),
		Proceeds:         s.Proceeds,
	}
}

// GetLoan loads the loan stored at addr.
func (m *Manager) GetLoan(addr crypto.Address) (*lending.Loan, bool, error) {
	var s storedLoan
	ok, err := m.loadRLP(addressKey(loanPrefix, addr), &s)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.loan(), true, nil
}

func (m *Manager) PutLoan(l *lending.Loan) error {
	return m.writeRLP(addressKey(loanPrefix, l.Address), &storedLoan{
		Address:          l.Address,
		Borrower:         l.Borrower,
		Mint:             l.Mint,
		Index:            l.Index,
		CollateralAmount: l.CollateralAmount,
		Borrowed:         l.Borrowed,
		EntryPrice:       l.EntryPrice,
		LiquidationPrice: l.LiquidationPrice,
		EffectiveLtvBps:  l.EffectiveLtvBps,
		CreatedAt:        uint64(l.CreatedAt),
		DueAt:            uint64(l.DueAt),
		Status:           uint8(l.Status),
		ClosedAt:         uint64(l.ClosedAt),
		Proceeds:         l.Proceeds,
	})
}

// ActiveLoans returns every loan still open. The keeper index is rebuilt
// from it on startup.
func (m *Manager) ActiveLoans() ([]*lending.Loan, error) {
	var (
		out    []*lending.Loan
		decErr error
	)
	err := m.iterate(loanPrefix, func(_, value []byte) bool {
		var s storedLoan
		if decErr = decodeRLP(value, &s); decErr != nil {
			return false
		}
		if lending.LoanStatus(s.Status) == lending.LoanActive {
			out = append(out, s.loan())
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, decErr
}

// GetUserExposure loads the borrower's running totals.
func (m *Manager) GetUserExposure(owner crypto.Address) (*lending.UserExposure, bool, error) {
	exposure := new(lending.UserExposure)
	ok, err := m.loadRLP(addressKey(exposurePrefix, owner), exposure)
	if err != nil || !ok {
		return nil, false, err
	}
	return exposure, true, nil
}

func (m *Manager) PutUserExposure(exposure *lending.UserExposure) error {
	return m.writeRLP(addressKey(exposurePrefix, exposure.Owner), exposure)
}
