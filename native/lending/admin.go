package lending

import (
	"fmt"
	"log/slog"
	"strconv"

	"memelend/core/events"
	"memelend/core/oracle"
	"memelend/core/safemath"
	"memelend/crypto"
)

// MaxProtocolFeeBps caps the flat repayment fee.
const MaxProtocolFeeBps uint64 = 500

// InitParams configures the protocol singleton. Zero liquidator and price
// authority identities default to the admin.
type InitParams struct {
	Admin                crypto.Address
	OperationsWallet     crypto.Address
	BuybackWallet        crypto.Address
	StakingRewardVault   crypto.Address
	AuthorizedLiquidator crypto.Address
	PriceAuthority       crypto.Address
}

// Initialize creates the protocol singleton with the default fee schedule.
func (e *Engine) Initialize(p InitParams) (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, ok, err := e.state.GetProtocolState(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if p.Admin.IsZero() {
		return nil, ErrInvalidAdminAddress
	}
	if p.OperationsWallet.IsZero() || p.StakingRewardVault.IsZero() {
		return nil, ErrInvalidWalletAddress
	}
	if p.AuthorizedLiquidator.IsZero() {
		p.AuthorizedLiquidator = p.Admin
	}
	if p.PriceAuthority.IsZero() {
		p.PriceAuthority = p.Admin
	}
	ps := &ProtocolState{
		Admin:                p.Admin,
		ProtocolFeeBps:       DefaultProtocolFeeBps,
		TreasuryFeeBps:       DefaultLoanFeeTreasuryBps,
		StakingFeeBps:        DefaultLoanFeeStakingBps,
		OperationsFeeBps:     DefaultLoanFeeOperationsBps,
		AuthorizedLiquidator: p.AuthorizedLiquidator,
		PriceAuthority:       p.PriceAuthority,
		OperationsWallet:     p.OperationsWallet,
		BuybackWallet:        p.BuybackWallet,
		StakingRewardVault:   p.StakingRewardVault,
	}
	if err := e.state.PutProtocolState(ps); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.ProtocolInitialized{
		Admin:            p.Admin,
		BuybackWallet:    p.BuybackWallet,
		OperationsWallet: p.OperationsWallet,
		Timestamp:        e.now(),
	})
	return ps.Clone(), nil
}

func (e *Engine) adminState(caller crypto.Address) (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	ps, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	if caller != ps.Admin {
		return nil, ErrUnauthorized
	}
	return ps, nil
}

func (e *Engine) emitAdmin(kind string, admin crypto.Address, detail map[string]string) {
	e.emitter.Emit(events.ProtocolAdminAction{Type: kind, Admin: admin, Detail: detail, Timestamp: e.now()})
}

// Pause halts loan creation, repayment and liquidation.
func (e *Engine) Pause(caller crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	ps.Paused = true
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolPaused, caller, nil)
	e.logger.Warn("protocol paused", slog.String("admin", caller.String()))
	return nil
}

// Resume lifts a pause.
func (e *Engine) Resume(caller crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	ps.Paused = false
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolResumed, caller, nil)
	e.logger.Info("protocol resumed", slog.String("admin", caller.String()))
	return nil
}

// InitiateAdminTransfer records a pending admin that may accept after the
// configured delay.
func (e *Engine) InitiateAdminTransfer(caller, pending crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	if pending.IsZero() || pending == ps.Admin {
		return ErrInvalidAdminAddress
	}
	now := e.now()
	ps.PendingAdmin = pending
	ps.AdminTransferAt = now
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitter.Emit(events.AdminTransfer{
		Type:           events.TypeAdminTransferInitiated,
		CurrentAdmin:   ps.Admin,
		PendingAdmin:   pending,
		CanAcceptAfter: now + e.params.AdminTransferDelay,
		Timestamp:      now,
	})
	return nil
}

// AcceptAdminTransfer completes a rotation once the delay has elapsed.
func (e *Engine) AcceptAdminTransfer(caller crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	ps, err := e.loadProtocol()
	if err != nil {
		return err
	}
	if ps.PendingAdmin.IsZero() {
		return ErrNoPendingAdminTransfer
	}
	if caller != ps.PendingAdmin {
		return ErrUnauthorized
	}
	now := e.now()
	if now-ps.AdminTransferAt < e.params.AdminTransferDelay {
		return fmt.Errorf("%w: %ds remaining", ErrAdminTransferTooEarly, e.params.AdminTransferDelay-(now-ps.AdminTransferAt))
	}
	previous := ps.Admin
	ps.Admin = ps.PendingAdmin
	ps.PendingAdmin = crypto.ZeroAddress
	ps.AdminTransferAt = 0
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitter.Emit(events.AdminTransfer{
		Type:         events.TypeAdminTransferCompleted,
		CurrentAdmin: ps.Admin,
		PendingAdmin: previous,
		Timestamp:    now,
	})
	e.logger.Warn("admin rotated", slog.String("from", previous.String()), slog.String("to", ps.Admin.String()))
	return nil
}

// CancelAdminTransfer drops a pending rotation.
func (e *Engine) CancelAdminTransfer(caller crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	if ps.PendingAdmin.IsZero() {
		return ErrNoPendingAdminTransfer
	}
	ps.PendingAdmin = crypto.ZeroAddress
	ps.AdminTransferAt = 0
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitter.Emit(events.AdminTransfer{
		Type:         events.TypeAdminTransferCancelled,
		CurrentAdmin: ps.Admin,
		Timestamp:    e.now(),
	})
	return nil
}

// WalletUpdate carries optional replacements for the protocol wallets.
type WalletUpdate struct {
	Operations         *crypto.Address
	Buyback            *crypto.Address
	StakingRewardVault *crypto.Address
}

// UpdateWallets replaces the configured payout wallets.
func (e *Engine) UpdateWallets(caller crypto.Address, update WalletUpdate) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	detail := make(map[string]string)
	apply := func(name string, src *crypto.Address, dst *crypto.Address) error {
		if src == nil {
			return nil
		}
		if src.IsZero() {
			return fmt.Errorf("%w: %s", ErrInvalidWalletAddress, name)
		}
		*dst = *src
		detail[name] = src.String()
		return nil
	}
	if err := apply("operationsWallet", update.Operations, &ps.OperationsWallet); err != nil {
		return err
	}
	if err := apply("buybackWallet", update.Buyback, &ps.BuybackWallet); err != nil {
		return err
	}
	if err := apply("stakingRewardVault", update.StakingRewardVault, &ps.StakingRewardVault); err != nil {
		return err
	}
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolUpdated, caller, detail)
	return nil
}

// FeeUpdate carries optional replacements for the fee schedule. The three
// splits must sum to 10000 after the update.
type FeeUpdate struct {
	ProtocolFeeBps   *uint64
	TreasuryFeeBps   *uint64
	StakingFeeBps    *uint64
	OperationsFeeBps *uint64
}

// UpdateFees changes the repayment fee and its split.
func (e *Engine) UpdateFees(caller crypto.Address, update FeeUpdate) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	protocolFee := valueOr(update.ProtocolFeeBps, ps.ProtocolFeeBps)
	if protocolFee > MaxProtocolFeeBps {
		return fmt.Errorf("%w: protocol fee %d above %d", ErrInvalidFeeSplit, protocolFee, MaxProtocolFeeBps)
	}
	treasury := valueOr(update.TreasuryFeeBps, ps.TreasuryFeeBps)
	staking := valueOr(update.StakingFeeBps, ps.StakingFeeBps)
	operations := valueOr(update.OperationsFeeBps, ps.OperationsFeeBps)
	if treasury+staking+operations != safemath.BpsDivisor {
		return fmt.Errorf("%w: %d+%d+%d", ErrInvalidFeeSplit, treasury, staking, operations)
	}
	ps.ProtocolFeeBps = protocolFee
	ps.TreasuryFeeBps = treasury
	ps.StakingFeeBps = staking
	ps.OperationsFeeBps = operations
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolUpdated, caller, map[string]string{
		"protocolFeeBps":   strconv.FormatUint(protocolFee, 10),
		"treasuryFeeBps":   strconv.FormatUint(treasury, 10),
		"stakingFeeBps":    strconv.FormatUint(staking, 10),
		"operationsFeeBps": strconv.FormatUint(operations, 10),
	})
	return nil
}

func valueOr(v *uint64, fallback uint64) uint64 {
	if v == nil {
		return fallback
	}
	return *v
}

// WhitelistRequest lists a collateral token. Pool, when supplied, is decoded
// up front so a malformed pool is rejected at listing time.
type WhitelistRequest struct {
	Mint            crypto.Address
	Tier            TokenTier
	PoolAddress     crypto.Address
	PoolType        oracle.PoolType
	MinLoan         uint64
	MaxLoan         uint64
	IsProtocolToken bool
	Pool            *oracle.PoolAccount
}

// WhitelistToken creates the configuration of a new collateral token. The
// LTV is taken from the tier, or fixed at the gold level for the protocol's
// own token.
func (e *Engine) WhitelistToken(caller crypto.Address, req WhitelistRequest) (*TokenConfig, error) {
	if _, err := e.adminState(caller); err != nil {
		return nil, err
	}
	if req.Mint.IsZero() {
		return nil, ErrTokenNotWhitelisted
	}
	if !req.Tier.Valid() {
		return nil, ErrInvalidTokenTier
	}
	if !req.PoolType.Valid() {
		return nil, oracle.ErrInvalidPoolType
	}
	if req.PoolAddress.IsZero() {
		return nil, ErrInvalidPoolAddress
	}
	if req.MinLoan == 0 || req.MaxLoan == 0 || req.MinLoan >= req.MaxLoan {
		return nil, ErrInvalidLoanAmount
	}
	if _, ok, err := e.state.GetTokenConfig(req.Mint); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrTokenAlreadyWhitelisted
	}
	if req.Pool != nil {
		if req.Pool.Address != req.PoolAddress {
			return nil, ErrInvalidPoolAddress
		}
		if _, err := oracle.ReadPrice(*req.Pool, req.PoolType, req.Mint); err != nil {
			return nil, err
		}
	}
	if req.PoolType == oracle.PoolPumpfun {
		e.logger.Warn("bonding curve collateral has no liquidation venue until migration",
			slog.String("mint", req.Mint.String()))
	}

	ltv := req.Tier.DefaultLtvBps()
	if req.IsProtocolToken {
		ltv = TierGold.DefaultLtvBps()
	}
	cfg := &TokenConfig{
		Mint:            req.Mint,
		Tier:            req.Tier,
		Enabled:         true,
		PoolAddress:     req.PoolAddress,
		PoolType:        req.PoolType,
		LtvBps:          ltv,
		MinLoan:         req.MinLoan,
		MaxLoan:         req.MaxLoan,
		IsProtocolToken: req.IsProtocolToken,
	}
	if err := e.state.PutTokenConfig(cfg); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.TokenWhitelisted{
		Mint:      cfg.Mint,
		Tier:      cfg.Tier.String(),
		PoolType:  cfg.PoolType.String(),
		LtvBps:    cfg.LtvBps,
		Timestamp: e.now(),
	})
	return cfg.Clone(), nil
}

// TokenUpdate carries optional replacements for a token configuration.
type TokenUpdate struct {
	Enabled *bool
	LtvBps  *uint64
	MinLoan *uint64
	MaxLoan *uint64
}

// UpdateTokenConfig changes the LTV, enabled flag or loan bounds of a token.
func (e *Engine) UpdateTokenConfig(caller, mint crypto.Address, update TokenUpdate) (*TokenConfig, error) {
	if _, err := e.adminState(caller); err != nil {
		return nil, err
	}
	cfg, err := e.loadTokenConfig(mint)
	if err != nil {
		return nil, err
	}
	if update.LtvBps != nil {
		if *update.LtvBps == 0 || *update.LtvBps > MaxEffectiveLtvBps {
			return nil, fmt.Errorf("%w: %d", ErrInvalidLtv, *update.LtvBps)
		}
		cfg.LtvBps = *update.LtvBps
	}
	if update.Enabled != nil {
		cfg.Enabled = *update.Enabled
	}
	minLoan := valueOr(update.MinLoan, cfg.MinLoan)
	maxLoan := valueOr(update.MaxLoan, cfg.MaxLoan)
	if minLoan == 0 || minLoan >= maxLoan {
		return nil, ErrInvalidLoanAmount
	}
	cfg.MinLoan, cfg.MaxLoan = minLoan, maxLoan
	if err := e.state.PutTokenConfig(cfg); err != nil {
		return nil, err
	}
	e.emitter.Emit(newTokenUpdatedEvent(cfg, e.now()))
	return cfg.Clone(), nil
}

// BlacklistToken blocks new loans against mint. Existing loans are unaffected.
func (e *Engine) BlacklistToken(caller, mint crypto.Address) error {
	return e.setBlacklisted(caller, mint, true)
}

// UnblacklistToken lifts a blacklist.
func (e *Engine) UnblacklistToken(caller, mint crypto.Address) error {
	return e.setBlacklisted(caller, mint, false)
}

func (e *Engine) setBlacklisted(caller, mint crypto.Address, value bool) error {
	if _, err := e.adminState(caller); err != nil {
		return err
	}
	cfg, err := e.loadTokenConfig(mint)
	if err != nil {
		return err
	}
	cfg.Blacklisted = value
	if err := e.state.PutTokenConfig(cfg); err != nil {
		return err
	}
	e.emitter.Emit(newTokenUpdatedEvent(cfg, e.now()))
	return nil
}

// UpdateLiquidator replaces the identity allowed to liquidate.
func (e *Engine) UpdateLiquidator(caller, liquidator crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	if liquidator.IsZero() {
		return ErrInvalidLiquidator
	}
	ps.AuthorizedLiquidator = liquidator
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolUpdated, caller, map[string]string{"liquidator": liquidator.String()})
	return nil
}

// UpdatePriceAuthority replaces the price authority identity.
func (e *Engine) UpdatePriceAuthority(caller, authority crypto.Address) error {
	ps, err := e.adminState(caller)
	if err != nil {
		return err
	}
	if authority.IsZero() {
		return ErrInvalidPriceAuthority
	}
	ps.PriceAuthority = authority
	if err := e.state.PutProtocolState(ps); err != nil {
		return err
	}
	e.emitAdmin(events.TypeProtocolUpdated, caller, map[string]string{"priceAuthority": authority.String()})
	return nil
}

// FundTreasury moves base currency from any funder into the treasury.
func (e *Engine) FundTreasury(funder crypto.Address, amount uint64) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	if _, err := e.loadProtocol(); err != nil {
		return 0, err
	}
	balance, err := e.state.Lamports(funder)
	if err != nil {
		return 0, err
	}
	if balance < amount {
		return 0, ErrInsufficientBalance
	}
	treasury := TreasuryAddress()
	if err := e.state.TransferLamports(funder, treasury, amount); err != nil {
		return 0, err
	}
	after, err := e.state.Lamports(treasury)
	if err != nil {
		return 0, err
	}
	e.emitter.Emit(events.TreasuryMoved{Actor: funder, Amount: amount, Balance: after, Timestamp: e.now()})
	return after, nil
}

// WithdrawTreasury pays amount to the admin. The outstanding principal stays
// reserved.
func (e *Engine) WithdrawTreasury(caller crypto.Address, amount uint64) (uint64, error) {
	ps, err := e.adminState(caller)
	if err != nil {
		return 0, err
	}
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	treasury := TreasuryAddress()
	balance, err := e.state.Lamports(treasury)
	if err != nil {
		return 0, err
	}
	available := safemath.SaturatingSub(balance, ps.TotalBorrowed)
	if amount > available {
		return 0, fmt.Errorf("%w: %d available", ErrInsufficientTreasury, available)
	}
	if err := e.state.TransferLamports(treasury, caller, amount); err != nil {
		return 0, err
	}
	remaining := balance - amount
	e.emitter.Emit(events.TreasuryMoved{Withdrawal: true, Actor: caller, Amount: amount, Balance: remaining, Timestamp: e.now()})
	return remaining, nil
}

// EmergencyDrain pauses the protocol and sweeps the whole treasury to the
// admin. Loan records and counters are left intact so repayments still
// reconcile after a resume.
func (e *Engine) EmergencyDrain(caller crypto.Address) (uint64, error) {
	ps, err := e.adminState(caller)
	if err != nil {
		return 0, err
	}
	ps.Paused = true
	if err := e.state.PutProtocolState(ps); err != nil {
		return 0, err
	}
	treasury := TreasuryAddress()
	balance, err := e.state.Lamports(treasury)
	if err != nil {
		return 0, err
	}
	if balance > 0 {
		if err := e.state.TransferLamports(treasury, caller, balance); err != nil {
			return 0, err
		}
	}
	e.emitAdmin(events.TypeEmergencyDrain, caller, map[string]string{"amount": strconv.FormatUint(balance, 10)})
	e.logger.Warn("emergency drain", slog.String("admin", caller.String()), slog.Uint64("amount", balance))
	return balance, nil
}
