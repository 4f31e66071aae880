package events

import (
	"strconv"

	"memelend/core/types"
	"memelend/crypto"
)

const (
	// TypeProtocolInitialized marks the creation of the lending singleton.
	TypeProtocolInitialized = "lending.initialized"
	// TypeTokenWhitelisted is emitted when a collateral token is listed.
	TypeTokenWhitelisted = "lending.tokenWhitelisted"
	// TypeTokenConfigUpdated is emitted for LTV, enable and blacklist changes.
	TypeTokenConfigUpdated = "lending.tokenUpdated"
	// TypeLoanCreated is emitted when collateral is escrowed and a loan disbursed.
	TypeLoanCreated = "lending.loanCreated"
	// TypeLoanRepaid is emitted after principal and fee are collected.
	TypeLoanRepaid = "lending.loanRepaid"
	// TypeLoanLiquidated is emitted after escrowed collateral is sold.
	TypeLoanLiquidated = "lending.loanLiquidated"
	TypeTreasuryFunded    = "lending.treasuryFunded"
	TypeTreasuryWithdrawn = "lending.treasuryWithdrawn"
	// TypeAdminTransferInitiated starts the admin rotation timelock.
	TypeAdminTransferInitiated = "lending.adminTransferInitiated"
	TypeAdminTransferCompleted = "lending.adminTransferCompleted"
	TypeAdminTransferCancelled = "lending.adminTransferCancelled"
	TypeProtocolPaused         = "lending.paused"
	TypeProtocolResumed        = "lending.resumed"
	// TypeProtocolUpdated covers fee, wallet and authority changes.
	TypeProtocolUpdated = "lending.updated"
	TypeEmergencyDrain  = "lending.emergencyDrain"
)

// Render converts an emitted event into its broadcast form. Events that carry
// no structured payload are rendered with an empty attribute set.
func Render(evt Event) *types.Event {
	if evt == nil {
		return nil
	}
	if provider, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := provider.Event(); payload != nil {
			return payload
		}
	}
	return types.NewEvent(evt.EventType())
}

// ProtocolInitialized captures the wallets configured at initialisation.
type ProtocolInitialized struct {
	Admin            crypto.Address
	BuybackWallet    crypto.Address
	OperationsWallet crypto.Address
	Timestamp        int64
}

// EventType satisfies the Event interface.
func (ProtocolInitialized) EventType() string { return TypeProtocolInitialized }

// Event converts the structured payload into a broadcastable event.
func (e ProtocolInitialized) Event() *types.Event {
	return types.NewEvent(TypeProtocolInitialized).
		With("admin", e.Admin.String()).
		With("buybackWallet", e.BuybackWallet.String()).
		With("operationsWallet", e.OperationsWallet.String()).
		WithInt("timestamp", e.Timestamp)
}

// TokenWhitelisted captures a newly listed collateral token.
type TokenWhitelisted struct {
	Mint      crypto.Address
	Tier      string
	PoolType  string
	LtvBps    uint64
	Timestamp int64
}

// EventType satisfies the Event interface.
func (TokenWhitelisted) EventType() string { return TypeTokenWhitelisted }

// Event converts the structured payload into a broadcastable event.
func (e TokenWhitelisted) Event() *types.Event {
	return types.NewEvent(TypeTokenWhitelisted).
		With("mint", e.Mint.String()).
		With("tier", e.Tier).
		With("poolType", e.PoolType).
		WithUint("ltvBps", e.LtvBps).
		WithInt("timestamp", e.Timestamp)
}

// TokenConfigUpdated captures changes to a listed token.
type TokenConfigUpdated struct {
	Mint        crypto.Address
	LtvBps      uint64
	Enabled     bool
	Blacklisted bool
	Timestamp   int64
}

// EventType satisfies the Event interface.
func (TokenConfigUpdated) EventType() string { return TypeTokenConfigUpdated }

func (e TokenConfigUpdated) Event() *types.Event {
	return types.NewEvent(TypeTokenConfigUpdated).
		With("mint", e.Mint.String()).
		WithUint("ltvBps", e.LtvBps).
		With("enabled", strconv.FormatBool(e.Enabled)).
		With("blacklisted", strconv.FormatBool(e.Blacklisted)).
		WithInt("timestamp", e.Timestamp)
}

// LoanCreated captures a new borrow position.
type LoanCreated struct {
	Loan             crypto.Address
	Borrower         crypto.Address
	Mint             crypto.Address
	CollateralAmount uint64
	Borrowed         uint64
	EntryPrice       uint64
	LiquidationPrice uint64
	DueAt            int64
	Timestamp        int64
}

// EventType satisfies the Event interface.
func (LoanCreated) EventType() string { return TypeLoanCreated }

// Event converts the structured payload into a broadcastable event.
func (e LoanCreated) Event() *types.Event {
	return types.NewEvent(TypeLoanCreated).
		With("loan", e.Loan.String()).
		With("borrower", e.Borrower.String()).
		With("mint", e.Mint.String()).
		WithUint("collateral", e.CollateralAmount).
		WithUint("borrowed", e.Borrowed).
		WithUint("entryPrice", e.EntryPrice).
		WithUint("liquidationPrice", e.LiquidationPrice).
		WithInt("dueAt", e.DueAt).
		WithInt("timestamp", e.Timestamp)
}

// LoanRepaid captures a repayment.
type LoanRepaid struct {
	Loan               crypto.Address
	Borrower           crypto.Address
	Repaid             uint64
	ProtocolFee        uint64
	CollateralReturned uint64
	Timestamp          int64
}

// EventType satisfies the Event interface.
func (LoanRepaid) EventType() string { return TypeLoanRepaid }

// Event converts the structured payload into a broadcastable event.
func (e LoanRepaid) Event() *types.Event {
	return types.NewEvent(TypeLoanRepaid).
		With("loan", e.Loan.String()).
		With("borrower", e.Borrower.String()).
		WithUint("repaid", e.Repaid).
		WithUint("protocolFee", e.ProtocolFee).
		WithUint("collateralReturned", e.CollateralReturned).
		WithInt("timestamp", e.Timestamp)
}

// LoanLiquidated captures the settlement of a liquidated loan.
type LoanLiquidated struct {
	Loan             crypto.Address
	Borrower         crypto.Address
	Liquidator       crypto.Address
	Reason           string
	CollateralAmount uint64
	Proceeds         uint64
	Price            uint64
	Timestamp        int64
}

// EventType satisfies the Event interface.
func (LoanLiquidated) EventType() string { return TypeLoanLiquidated }

// Event converts the structured payload into a broadcastable event.
func (e LoanLiquidated) Event() *types.Event {
	return types.NewEvent(TypeLoanLiquidated).
		With("loan", e.Loan.String()).
		With("borrower", e.Borrower.String()).
		With("liquidator", e.Liquidator.String()).
		With("reason", e.Reason).
		WithUint("collateral", e.CollateralAmount).
		WithUint("proceeds", e.Proceeds).
		WithUint("price", e.Price).
		WithInt("timestamp", e.Timestamp)
}

// TreasuryMoved captures funding and withdrawals of the treasury.
type TreasuryMoved struct {
	Withdrawal bool
	Actor      crypto.Address
	Amount     uint64
	Balance    uint64
	Timestamp  int64
}

// EventType satisfies the Event interface.
func (e TreasuryMoved) EventType() string {
	if e.Withdrawal {
		return TypeTreasuryWithdrawn
	}
	return TypeTreasuryFunded
}

// Event converts the structured payload into a broadcastable event.
func (e TreasuryMoved) Event() *types.Event {
	return types.NewEvent(e.EventType()).
		With("actor", e.Actor.String()).
		WithUint("amount", e.Amount).
		WithUint("balance", e.Balance).
		WithInt("timestamp", e.Timestamp)
}

// AdminTransfer captures the three steps of an admin rotation. EventType is
// one of the TypeAdminTransfer* constants.
type AdminTransfer struct {
	Type           string
	CurrentAdmin   crypto.Address
	PendingAdmin   crypto.Address
	CanAcceptAfter int64
	Timestamp      int64
}

// EventType satisfies the Event interface.
func (e AdminTransfer) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e AdminTransfer) Event() *types.Event {
	evt := types.NewEvent(e.Type).
		With("currentAdmin", e.CurrentAdmin.String()).
		WithInt("timestamp", e.Timestamp)
	if !e.PendingAdmin.IsZero() {
		evt.With("pendingAdmin", e.PendingAdmin.String())
	}
	if e.CanAcceptAfter > 0 {
		evt.WithInt("canAcceptAfter", e.CanAcceptAfter)
	}
	return evt
}

// ProtocolAdminAction captures pause toggles, parameter updates and drains.
type ProtocolAdminAction struct {
	Type      string
	Admin     crypto.Address
	Detail    map[string]string
	Timestamp int64
}

// EventType satisfies the Event interface.
func (e ProtocolAdminAction) EventType() string { return e.Type }

// Event converts the structured payload into a broadcastable event.
func (e ProtocolAdminAction) Event() *types.Event {
	evt := types.NewEvent(e.Type).
		With("admin", e.Admin.String()).
		WithInt("timestamp", e.Timestamp)
	for k, v := range e.Detail {
		evt.With(k, v)
	}
	return evt
}
