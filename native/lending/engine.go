package lending

import (
	"fmt"
	"log/slog"
	"time"

	"memelend/core/events"
	"memelend/core/oracle"
	"memelend/core/safemath"
	"memelend/crypto"
	nativecommon "memelend/native/common"
)

const moduleName = "lending"

// DefaultAdminTransferDelay is the wait between initiating and accepting an
// admin rotation.
const DefaultAdminTransferDelay int64 = 48 * 60 * 60

// Liquidation settlement defaults.
const (
	DefaultLiquidationSlippageBps   uint64 = 500
	DefaultLiquidationTreasuryBps   uint64 = 9500
	DefaultLiquidationOperationsBps uint64 = 500
)

// Loan fee split defaults, as shares of the protocol fee.
const (
	DefaultLoanFeeTreasuryBps   uint64 = 5000
	DefaultLoanFeeStakingBps    uint64 = 2500
	DefaultLoanFeeOperationsBps uint64 = 2500
)

type engineState interface {
	GetProtocolState() (*ProtocolState, bool, error)
	PutProtocolState(state *ProtocolState) error
	GetTokenConfig(mint crypto.Address) (*TokenConfig, bool, error)
	PutTokenConfig(cfg *TokenConfig) error
	GetLoan(addr crypto.Address) (*Loan, bool, error)
	PutLoan(loan *Loan) error
	GetUserExposure(owner crypto.Address) (*UserExposure, bool, error)
	PutUserExposure(exposure *UserExposure) error

	Lamports(addr crypto.Address) (uint64, error)
	TransferLamports(from, to crypto.Address, amount uint64) error
	TokenBalance(account, mint crypto.Address) (uint64, error)
	OpenTokenAccount(account, mint, authority crypto.Address) error
	TransferTokens(mint, from, to crypto.Address, amount uint64, authority crypto.Address) error
	CloseTokenAccount(account, mint, authority crypto.Address) error
}

// RewardSink receives the staking share of protocol fees after the lamports
// have been moved into the reward vault.
type RewardSink interface {
	RecordExternalRewards(amount uint64) error
}

// Params bundles the tunable protocol parameters.
type Params struct {
	Limits                   ExposureLimits
	LiquidationBufferBps     uint64
	LiquidationSlippageBps   uint64
	LiquidationTreasuryBps   uint64
	LiquidationOperationsBps uint64
	AdminTransferDelay       int64
	PriceStalenessSeconds    int64
	Settlement               SettlementMode
}

// DefaultParams returns the protocol defaults.
func DefaultParams() Params {
	return Params{
		Limits:                   DefaultExposureLimits(),
		LiquidationBufferBps:     DefaultLiquidationBufferBps,
		LiquidationSlippageBps:   DefaultLiquidationSlippageBps,
		LiquidationTreasuryBps:   DefaultLiquidationTreasuryBps,
		LiquidationOperationsBps: DefaultLiquidationOperationsBps,
		AdminTransferDelay:       DefaultAdminTransferDelay,
		PriceStalenessSeconds:    oracle.DefaultStalenessSeconds,
		Settlement:               SettlementSwapAndSplit,
	}
}

// Engine orchestrates the loan lifecycle: creation, repayment, liquidation
// and the admin surface around them.
type Engine struct {
	state   engineState
	params  Params
	pauses  nativecommon.PauseView
	emitter events.Emitter
	logger  *slog.Logger
	tracker *oracle.Tracker
	venues  map[oracle.PoolType]SwapVenue
	rewards RewardSink
	nowFn   func() time.Time
}

// NewEngine constructs a lending engine with the supplied parameters.
func NewEngine(params Params) *Engine {
	return &Engine{
		params:  params,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		venues:  make(map[oracle.PoolType]SwapVenue),
		nowFn:   time.Now,
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

func (e *Engine) SetLogger(logger *slog.Logger) {
	if e == nil || logger == nil {
		return
	}
	e.logger = logger.With(slog.String("component", moduleName))
}

// SetNowFunc overrides the clock used for due dates and timelocks.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetPriceTracker enables deviation checks against recent observations.
func (e *Engine) SetPriceTracker(tracker *oracle.Tracker) {
	if e == nil {
		return
	}
	e.tracker = tracker
}

// SetVenue registers the swap venue used to liquidate tokens priced from the
// given pool type.
func (e *Engine) SetVenue(kind oracle.PoolType, venue SwapVenue) {
	if e == nil {
		return
	}
	if venue == nil {
		delete(e.venues, kind)
		return
	}
	e.venues[kind] = venue
}

// SetRewardSink wires the staking side of the fee split.
func (e *Engine) SetRewardSink(sink RewardSink) {
	if e == nil {
		return
	}
	e.rewards = sink
}

// Params returns the active protocol parameters.
func (e *Engine) Params() Params { return e.params }

func (e *Engine) now() int64 { return e.nowFn().Unix() }

// CreateLoan escrows collateral from the borrower and disburses a loan sized
// from the current pool price, the duration-adjusted LTV and the exposure
// caps.
func (e *Engine) CreateLoan(borrower, mint crypto.Address, collateral uint64, duration int64, pool oracle.PoolAccount) (*Loan, error) {
	ps, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	loan, err := e.createLoan(ps, borrower, mint, collateral, duration, pool)
	if err != nil {
		e.abort()
		return nil, err
	}
	return loan, nil
}

func (e *Engine) createLoan(ps *ProtocolState, borrower, mint crypto.Address, collateral uint64, duration int64, pool oracle.PoolAccount) (*Loan, error) {
	if collateral == 0 {
		return nil, ErrInvalidAmount
	}
	if err := ValidateDuration(duration); err != nil {
		return nil, err
	}
	cfg, err := e.loadTokenConfig(mint)
	if err != nil {
		return nil, err
	}
	if !cfg.Enabled || cfg.Blacklisted {
		return nil, ErrTokenDisabled
	}
	now := e.now()
	price, err := e.readPrice(cfg, pool, now)
	if err != nil {
		return nil, err
	}

	value, err := CollateralValue(collateral, price)
	if err != nil {
		return nil, err
	}
	effectiveLtv := DurationAdjustedLTV(cfg.LtvBps, duration)
	amount, err := LoanAmount(collateral, price, effectiveLtv)
	if err != nil {
		return nil, err
	}
	treasury := TreasuryAddress()
	treasuryBalance, err := e.state.Lamports(treasury)
	if err != nil {
		return nil, err
	}
	exposure, err := e.loadUserExposure(borrower)
	if err != nil {
		return nil, err
	}
	if err := CheckExposure(e.params.Limits, ExposureRequest{
		CollateralValue:     value,
		LoanAmount:          amount,
		TokenMinLoan:        cfg.MinLoan,
		TokenMaxLoan:        cfg.MaxLoan,
		TreasuryBalance:     treasuryBalance,
		TokenActiveBorrowed: cfg.TotalActiveBorrowed,
		UserBorrowed:        exposure.TotalBorrowed,
	}); err != nil {
		return nil, err
	}

	held, err := e.state.TokenBalance(borrower, mint)
	if err != nil {
		return nil, err
	}
	if held < collateral {
		return nil, ErrInsufficientCollateral
	}
	liquidationPrice, err := LiquidationPrice(amount, collateral, cfg.LtvBps, e.params.LiquidationBufferBps)
	if err != nil {
		return nil, err
	}

	index := ps.TotalLoansCreated
	addr := LoanAddress(borrower, mint, index)
	if _, exists, err := e.state.GetLoan(addr); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("lending engine: loan %s already exists", addr)
	}
	loan := &Loan{
		Address:          addr,
		Borrower:         borrower,
		Mint:             mint,
		Index:            index,
		CollateralAmount: collateral,
		Borrowed:         amount,
		EntryPrice:       price,
		LiquidationPrice: liquidationPrice,
		EffectiveLtvBps:  effectiveLtv,
		CreatedAt:        now,
		DueAt:            now + duration,
		Status:           LoanActive,
	}

	escrow, err := e.openEscrow(loan)
	if err != nil {
		return nil, err
	}
	if err := e.state.TransferTokens(mint, borrower, escrow.vault, collateral, borrower); err != nil {
		return nil, err
	}
	if err := e.state.TransferLamports(treasury, borrower, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}

	if ps.TotalLoansCreated, err = safemath.Add(ps.TotalLoansCreated, 1); err != nil {
		return nil, err
	}
	if ps.TotalBorrowed, err = safemath.Add(ps.TotalBorrowed, amount); err != nil {
		return nil, err
	}
	if ps.ActiveLoans, err = safemath.Add(ps.ActiveLoans, 1); err != nil {
		return nil, err
	}
	if cfg.ActiveLoans, err = safemath.Add(cfg.ActiveLoans, 1); err != nil {
		return nil, err
	}
	if cfg.TotalVolume, err = safemath.Add(cfg.TotalVolume, amount); err != nil {
		return nil, err
	}
	if cfg.TotalActiveBorrowed, err = safemath.Add(cfg.TotalActiveBorrowed, amount); err != nil {
		return nil, err
	}
	if exposure.TotalBorrowed, err = safemath.Add(exposure.TotalBorrowed, amount); err != nil {
		return nil, err
	}
	if exposure.ActiveLoans, err = safemath.Add(exposure.ActiveLoans, 1); err != nil {
		return nil, err
	}
	if exposure.LifetimeBorrowed, err = safemath.Add(exposure.LifetimeBorrowed, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutTokenConfig(cfg); err != nil {
		return nil, err
	}
	if err := e.state.PutUserExposure(exposure); err != nil {
		return nil, err
	}
	if err := e.commit(ps); err != nil {
		return nil, err
	}

	e.emitter.Emit(NewLoanCreatedEvent(loan))
	e.logger.Info("loan created",
		slog.String("loan", loan.Address.String()),
		slog.String("mint", mint.String()),
		slog.Uint64("borrowed", amount),
		slog.Uint64("collateral", collateral),
		slog.Uint64("price", price),
		slog.Uint64("effective_ltv_bps", effectiveLtv))
	return loan.Clone(), nil
}

// RepayReceipt summarises a repayment.
type RepayReceipt struct {
	Loan          *Loan
	Principal     uint64
	Fee           uint64
	TreasuryFee   uint64
	StakingFee    uint64
	OperationsFee uint64
}

// RepayLoan collects principal plus the flat fee from the borrower, routes the
// fee split and returns the escrowed collateral.
func (e *Engine) RepayLoan(caller, loanAddr crypto.Address) (*RepayReceipt, error) {
	ps, err := e.begin(true)
	if err != nil {
		return nil, err
	}
	receipt, err := e.repayLoan(ps, caller, loanAddr)
	if err != nil {
		e.abort()
		return nil, err
	}
	return receipt, nil
}

func (e *Engine) repayLoan(ps *ProtocolState, caller, loanAddr crypto.Address) (*RepayReceipt, error) {
	loan, err := e.loadActiveLoan(loanAddr)
	if err != nil {
		return nil, err
	}
	if loan.Borrower != caller {
		return nil, ErrNotBorrower
	}
	fee, err := ProtocolFee(loan.Borrowed, ps.ProtocolFeeBps)
	if err != nil {
		return nil, err
	}
	total, err := safemath.Add(loan.Borrowed, fee)
	if err != nil {
		return nil, err
	}
	balance, err := e.state.Lamports(caller)
	if err != nil {
		return nil, err
	}
	if balance < total {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientBalance, total, balance)
	}
	parts, err := SplitBps(fee, ps.TreasuryFeeBps, ps.StakingFeeBps, ps.OperationsFeeBps)
	if err != nil {
		return nil, err
	}
	treasuryFee, stakingFee, operationsFee := parts[0], parts[1], parts[2]

	loan.Status = LoanRepaid
	loan.ClosedAt = e.now()
	if err := e.state.PutLoan(loan); err != nil {
		return nil, err
	}

	treasury := TreasuryAddress()
	if err := e.state.TransferLamports(caller, treasury, loan.Borrowed+treasuryFee); err != nil {
		return nil, err
	}
	if stakingFee > 0 {
		if err := e.state.TransferLamports(caller, ps.StakingRewardVault, stakingFee); err != nil {
			return nil, err
		}
		if e.rewards != nil {
			if err := e.rewards.RecordExternalRewards(stakingFee); err != nil {
				return nil, err
			}
		}
	}
	if operationsFee > 0 {
		if err := e.state.TransferLamports(caller, ps.OperationsWallet, operationsFee); err != nil {
			return nil, err
		}
	}

	escrow := e.escrowFor(loan)
	if err := escrow.release(e.state, loan.Borrower, loan.CollateralAmount); err != nil {
		return nil, err
	}
	if err := escrow.close(e.state); err != nil {
		return nil, err
	}

	if ps.TotalFeesEarned, err = safemath.Add(ps.TotalFeesEarned, fee); err != nil {
		return nil, err
	}
	if err := e.closeCounters(ps, loan, func(x *UserExposure) { x.LoansRepaid++ }); err != nil {
		return nil, err
	}
	if err := e.commit(ps); err != nil {
		return nil, err
	}

	e.emitter.Emit(NewLoanRepaidEvent(loan, fee))
	e.logger.Info("loan repaid",
		slog.String("loan", loan.Address.String()),
		slog.Uint64("principal", loan.Borrowed),
		slog.Uint64("fee", fee))
	return &RepayReceipt{
		Loan:          loan.Clone(),
		Principal:     loan.Borrowed,
		Fee:           fee,
		TreasuryFee:   treasuryFee,
		StakingFee:    stakingFee,
		OperationsFee: operationsFee,
	}, nil
}

// GetLoan returns a copy of the stored loan.
func (e *Engine) GetLoan(addr crypto.Address) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loan, ok, err := e.state.GetLoan(addr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLoanNotFound
	}
	return loan.Clone(), nil
}

// GetTokenConfig returns a copy of the stored token configuration.
func (e *Engine) GetTokenConfig(mint crypto.Address) (*TokenConfig, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadTokenConfig(mint)
}

// ProtocolState returns a copy of the singleton.
func (e *Engine) ProtocolState() (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadProtocol()
}

// begin runs the shared preamble of mutating user instructions: module
// guard, protocol pause and the reentrancy flag, which is persisted
// immediately so nested calls observe it.
func (e *Engine) begin(requireRunning bool) (*ProtocolState, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	ps, err := e.loadProtocol()
	if err != nil {
		return nil, err
	}
	if requireRunning && ps.Paused {
		return nil, ErrProtocolPaused
	}
	if err := nativecommon.Enter(&ps.ReentrancyLocked); err != nil {
		return nil, err
	}
	if err := e.state.PutProtocolState(ps); err != nil {
		return nil, err
	}
	return ps, nil
}

// commit clears the reentrancy flag and persists the singleton.
func (e *Engine) commit(ps *ProtocolState) error {
	nativecommon.Exit(&ps.ReentrancyLocked)
	return e.state.PutProtocolState(ps)
}

// abort releases the reentrancy flag after a failed instruction. The host
// transaction discards every other write; this keeps stores without rollback
// usable.
func (e *Engine) abort() {
	ps, ok, err := e.state.GetProtocolState()
	if err != nil || !ok || !ps.ReentrancyLocked {
		return
	}
	nativecommon.Exit(&ps.ReentrancyLocked)
	if err := e.state.PutProtocolState(ps); err != nil {
		e.logger.Warn("release reentrancy flag", slog.Any("error", err))
	}
}

func (e *Engine) loadProtocol() (*ProtocolState, error) {
	ps, ok, err := e.state.GetProtocolState()
	if err != nil {
		return nil, err
	}
	if !ok || ps == nil {
		return nil, ErrNotInitialized
	}
	return ps, nil
}

func (e *Engine) loadTokenConfig(mint crypto.Address) (*TokenConfig, error) {
	cfg, ok, err := e.state.GetTokenConfig(mint)
	if err != nil {
		return nil, err
	}
	if !ok || cfg == nil {
		return nil, ErrTokenNotWhitelisted
	}
	return cfg, nil
}

func (e *Engine) loadUserExposure(owner crypto.Address) (*UserExposure, error) {
	exposure, ok, err := e.state.GetUserExposure(owner)
	if err != nil {
		return nil, err
	}
	if !ok || exposure == nil {
		return &UserExposure{Owner: owner}, nil
	}
	return exposure, nil
}

func (e *Engine) loadActiveLoan(addr crypto.Address) (*Loan, error) {
	loan, ok, err := e.state.GetLoan(addr)
	if err != nil {
		return nil, err
	}
	if !ok || loan == nil {
		return nil, ErrLoanNotFound
	}
	if loan.Status.Terminal() {
		return nil, loan.Status.closedError()
	}
	return loan, nil
}

// readPrice binds the pool snapshot to the token's configured pool, rejects
// stale snapshots and feeds the tracker.
func (e *Engine) readPrice(cfg *TokenConfig, pool oracle.PoolAccount, now int64) (uint64, error) {
	if pool.Address != cfg.PoolAddress {
		return 0, ErrInvalidPoolAddress
	}
	if !oracle.IsFresh(pool.ObservedAt, now, e.params.PriceStalenessSeconds) {
		return 0, oracle.ErrStalePrice
	}
	price, err := oracle.ReadPrice(pool, cfg.PoolType, cfg.Mint)
	if err != nil {
		return 0, err
	}
	if e.tracker != nil {
		if err := e.tracker.Observe(cfg.Mint, price, now); err != nil {
			return 0, err
		}
	}
	return price, nil
}

// closeCounters reverses the aggregate bookkeeping of an active loan.
func (e *Engine) closeCounters(ps *ProtocolState, loan *Loan, outcome func(*UserExposure)) error {
	cfg, err := e.loadTokenConfig(loan.Mint)
	if err != nil {
		return err
	}
	exposure, err := e.loadUserExposure(loan.Borrower)
	if err != nil {
		return err
	}
	if ps.TotalBorrowed, err = safemath.Sub(ps.TotalBorrowed, loan.Borrowed); err != nil {
		return err
	}
	if ps.ActiveLoans, err = safemath.Sub(ps.ActiveLoans, 1); err != nil {
		return err
	}
	if cfg.ActiveLoans, err = safemath.Sub(cfg.ActiveLoans, 1); err != nil {
		return err
	}
	if cfg.TotalActiveBorrowed, err = safemath.Sub(cfg.TotalActiveBorrowed, loan.Borrowed); err != nil {
		return err
	}
	exposure.TotalBorrowed = safemath.SaturatingSub(exposure.TotalBorrowed, loan.Borrowed)
	exposure.ActiveLoans = safemath.SaturatingSub(exposure.ActiveLoans, 1)
	if outcome != nil {
		outcome(exposure)
	}
	if err := e.state.PutTokenConfig(cfg); err != nil {
		return err
	}
	return e.state.PutUserExposure(exposure)
}
