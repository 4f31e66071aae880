// Package protocol binds the lending, staking and fee engines to one state
// manager and runs every instruction in its own state transaction.
package protocol

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"memelend/config"
	"memelend/core/events"
	"memelend/core/oracle"
	"memelend/core/state"
	"memelend/crypto"
	"memelend/native/fees"
	"memelend/native/lending"
	"memelend/native/staking"
	"memelend/native/swap"
	"memelend/observability/metrics"
	"memelend/storage"
)

// Tx is the set of engines bound to one state transaction.
type Tx struct {
	Lending *lending.Engine
	Staking *staking.Engine
	Fees    *fees.Engine
	State   *state.Manager
}

// Options configure New.
type Options struct {
	Config  *config.Config
	Emitter events.Emitter
	Logger  *slog.Logger
	Now     func() time.Time
}

// Protocol serialises instructions over the shared state.
type Protocol struct {
	mu      sync.Mutex
	mgr     *state.Manager
	ledger  *ledgerSwitch
	lending *lending.Engine
	staking *staking.Engine
	fees    *fees.Engine
	tracker *oracle.Tracker
	buffer  *events.Buffer
	sink    events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
	cfg     *config.Config
}

// New wires the engines over db.
func New(db storage.Database, opts Options) (*Protocol, error) {
	if db == nil {
		return nil, fmt.Errorf("protocol: database required")
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	params, err := cfg.Lending.Params()
	if err != nil {
		return nil, err
	}
	tracker, err := oracle.NewTracker(cfg.TrackerConfig())
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	sink := opts.Emitter
	if sink == nil {
		sink = events.NoopEmitter{}
	}

	mgr := state.NewManager(db)
	p := &Protocol{
		mgr:     mgr,
		ledger:  &ledgerSwitch{cur: mgr},
		lending: lending.NewEngine(params),
		staking: staking.NewEngine(),
		fees:    fees.NewEngine(),
		tracker: tracker,
		buffer:  &events.Buffer{},
		sink:    sink,
		logger:  logger,
		nowFn:   now,
		cfg:     cfg,
	}
	pauses := cfg.PauseView()

	p.staking.SetPauses(pauses)
	p.staking.SetEmitter(p.buffer)
	p.staking.SetLogger(logger)
	p.staking.SetNowFunc(now)

	p.lending.SetPauses(pauses)
	p.lending.SetEmitter(p.buffer)
	p.lending.SetLogger(logger)
	p.lending.SetNowFunc(now)
	p.lending.SetPriceTracker(tracker)
	p.lending.SetRewardSink(p.staking)
	if err := swap.Install(p.lending, p.ledger, cfg.Swap,
		swap.WithEmitter(p.buffer),
		swap.WithLogger(logger.With(slog.String("component", "swap"))),
	); err != nil {
		return nil, err
	}

	p.fees.SetPauses(pauses)
	p.fees.SetEmitter(p.buffer)
	p.fees.SetLogger(logger)
	p.fees.SetNowFunc(now)
	p.fees.SetRewardSink(p.staking)

	p.bind(mgr)
	return p, nil
}

func (p *Protocol) bind(m *state.Manager) {
	p.lending.SetState(m)
	p.staking.SetState(m)
	p.fees.SetState(m)
	p.ledger.cur = m
}

// Execute runs fn in a state transaction. Writes and events are published
// only when fn succeeds; a failure leaves no trace. module labels the
// rejection metric.
func (p *Protocol) Execute(module string, fn func(tx Tx) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := p.mgr.Begin()
	p.bind(tx)
	defer p.bind(p.mgr)

	if err := fn(Tx{Lending: p.lending, Staking: p.staking, Fees: p.fees, State: tx}); err != nil {
		tx.Discard()
		p.buffer.Reset()
		metrics.Lending().Rejected(module, Code(err))
		p.logger.Debug("instruction rejected",
			slog.String("module", module),
			slog.Int("code", Code(err)),
			slog.Any("error", err))
		return err
	}
	if err := tx.Commit(); err != nil {
		p.buffer.Reset()
		return fmt.Errorf("protocol: commit: %w", err)
	}
	p.buffer.Flush(p.sink)
	return nil
}

// View runs fn against committed state. fn must not mutate.
func (p *Protocol) View(fn func(tx Tx) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.buffer.Reset()
	return fn(Tx{Lending: p.lending, Staking: p.staking, Fees: p.fees, State: p.mgr})
}

// Tracker exposes the oracle tracker fed by loan operations.
func (p *Protocol) Tracker() *oracle.Tracker { return p.tracker }

// Now returns the protocol clock.
func (p *Protocol) Now() time.Time { return p.nowFn() }

// LatestPrice adapts the tracker for the liquidation keeper.
func (p *Protocol) LatestPrice(mint crypto.Address, now int64) (uint64, bool) {
	obs, err := p.tracker.Latest(mint, now)
	if err != nil {
		return 0, false
	}
	return obs.Price, true
}

// Bootstrap initialises every singleton that does not exist yet.
func (p *Protocol) Bootstrap(b config.Bootstrap) error {
	stakingParams, err := p.cfg.StakingParams()
	if err != nil {
		return err
	}
	stakingParams.Authority = b.Admin
	stakingParams.StakingMint = b.StakingMint

	return p.Execute("bootstrap", func(tx Tx) error {
		if _, err := tx.Staking.Initialize(stakingParams); err != nil && !errors.Is(err, staking.ErrAlreadyInitialized) {
			return fmt.Errorf("bootstrap staking: %w", err)
		}
		if _, err := tx.Lending.Initialize(lending.InitParams{
			Admin:                b.Admin,
			OperationsWallet:     b.OperationsWallet,
			BuybackWallet:        b.BuybackWallet,
			StakingRewardVault:   staking.RewardVaultAddress(),
			AuthorizedLiquidator: b.Liquidator,
			PriceAuthority:       b.PriceAuthority,
		}); err != nil && !errors.Is(err, lending.ErrAlreadyInitialized) {
			return fmt.Errorf("bootstrap lending: %w", err)
		}
		if _, err := tx.Fees.Initialize(fees.InitParams{
			Authority:        b.Admin,
			TreasuryWallet:   b.TreasuryWallet,
			OperationsWallet: b.OperationsWallet,
			StakingVault:     staking.RewardVaultAddress(),
			Split:            p.cfg.FeeSplit(),
			ReserveLamports:  p.cfg.Fees.ReserveLamports,
		}); err != nil && !errors.Is(err, fees.ErrAlreadyInitialized) {
			return fmt.Errorf("bootstrap fees: %w", err)
		}
		return nil
	})
}

// ActiveLoans lists open loans from committed state.
func (p *Protocol) ActiveLoans() ([]*lending.Loan, error) {
	var loans []*lending.Loan
	err := p.View(func(tx Tx) error {
		var err error
		loans, err = tx.State.ActiveLoans()
		return err
	})
	return loans, err
}

// Code maps an engine error onto its numeric protocol code.
func Code(err error) int {
	if err == nil {
		return 0
	}
	if code := lending.Code(err); code != 0 {
		return code
	}
	if code := staking.Code(err); code != 0 {
		return code
	}
	return fees.Code(err)
}

// ledgerSwitch lets the swap venues follow the active transaction.
type ledgerSwitch struct {
	cur *state.Manager
}

func (l *ledgerSwitch) Lamports(addr crypto.Address) (uint64, error) {
	return l.cur.Lamports(addr)
}

func (l *ledgerSwitch) TransferLamports(from, to crypto.Address, amount uint64) error {
	return l.cur.TransferLamports(from, to, amount)
}
