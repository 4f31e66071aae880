// Package fees sweeps the creator fees collected from launched tokens into
// the treasury, the staking reward vault and the operations wallet.
package fees

import (
	"fmt"
	"log/slog"
	"time"

	"memelend/core/events"
	"memelend/core/safemath"
	"memelend/crypto"
	nativecommon "memelend/native/common"
)

const moduleName = "fees"

type engineState interface {
	GetFeeReceiver() (*Receiver, bool, error)
	PutFeeReceiver(r *Receiver) error
	Lamports(addr crypto.Address) (uint64, error)
	TransferLamports(from, to crypto.Address, amount uint64) error
}

// RewardSink is credited with the staking share after the lamports reach the
// reward vault.
type RewardSink interface {
	RecordExternalRewards(amount uint64) error
}

// Engine operates the fee receiver.
type Engine struct {
	state   engineState
	pauses  nativecommon.PauseView
	rewards RewardSink
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() time.Time
}

func NewEngine() *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   time.Now,
	}
}

func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetRewardSink wires the staking pool that receives the staking share.
func (e *Engine) SetRewardSink(sink RewardSink) {
	if e == nil {
		return
	}
	e.rewards = sink
}

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

func (e *Engine) now() int64 { return e.nowFn().Unix() }

// InitParams configures the receiver.
type InitParams struct {
	Authority        crypto.Address
	TreasuryWallet   crypto.Address
	OperationsWallet crypto.Address
	StakingVault     crypto.Address
	Split            Split
	ReserveLamports  uint64
}

// Initialize creates the receiver singleton. A zero split selects
// DefaultSplit and a zero reserve DefaultReserveLamports.
func (e *Engine) Initialize(params InitParams) (*Receiver, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.GetFeeReceiver(); err != nil {
		return nil, err
	} else if ok {
		return nil, ErrAlreadyInitialized
	}
	if params.Authority.IsZero() {
		return nil, fmt.Errorf("%w: zero authority", ErrUnauthorized)
	}
	if params.TreasuryWallet.IsZero() || params.OperationsWallet.IsZero() || params.StakingVault.IsZero() {
		return nil, ErrInvalidWallet
	}
	split := params.Split
	if split == (Split{}) {
		split = DefaultSplit()
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}
	reserve := params.ReserveLamports
	if reserve == 0 {
		reserve = DefaultReserveLamports
	}
	r := &Receiver{
		Authority:        params.Authority,
		TreasuryWallet:   params.TreasuryWallet,
		OperationsWallet: params.OperationsWallet,
		StakingVault:     params.StakingVault,
		Split:            split,
		ReserveLamports:  reserve,
	}
	if err := e.state.PutFeeReceiver(r); err != nil {
		return nil, err
	}
	e.logger.Info("fee receiver initialised",
		slog.String("authority", r.Authority.String()),
		slog.Uint64("treasury_bps", split.TreasuryBps),
		slog.Uint64("staking_bps", split.StakingBps),
		slog.Uint64("operations_bps", split.OperationsBps))
	return r.Clone(), nil
}

// RecordFees moves amount from payer into the receiver.
func (e *Engine) RecordFees(payer crypto.Address, amount uint64) (*Receiver, error) {
	if amount == 0 {
		return nil, ErrInvalidAmount
	}
	r, err := e.begin()
	if err != nil {
		return nil, err
	}
	if err := e.state.TransferLamports(payer, ReceiverAddress(), amount); err != nil {
		return nil, err
	}
	if r.TotalReceived, err = safemath.Add(r.TotalReceived, amount); err != nil {
		return nil, err
	}
	if err := e.state.PutFeeReceiver(r); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.FeesReceived{From: payer, Amount: amount, Timestamp: e.now()})
	return r.Clone(), nil
}

// Distribution reports one sweep.
type Distribution struct {
	Amount     uint64
	Treasury   uint64
	Staking    uint64
	Operations uint64
}

// DistributeCreatorFees sweeps everything above the reserve. Anyone may call
// it.
func (e *Engine) DistributeCreatorFees(caller crypto.Address) (*Distribution, error) {
	r, err := e.begin()
	if err != nil {
		return nil, err
	}
	addr := ReceiverAddress()
	balance, err := e.state.Lamports(addr)
	if err != nil {
		return nil, err
	}
	amount := safemath.SaturatingSub(balance, r.ReserveLamports)
	if amount == 0 {
		return nil, fmt.Errorf("%w: balance %d, reserve %d", ErrNothingToDistribute, balance, r.ReserveLamports)
	}
	treasury, staking, operations, err := r.Split.Allocate(amount)
	if err != nil {
		return nil, err
	}
	payouts := []struct {
		to     crypto.Address
		amount uint64
	}{
		{r.TreasuryWallet, treasury},
		{r.StakingVault, staking},
		{r.OperationsWallet, operations},
	}
	for _, p := range payouts {
		if p.amount == 0 {
			continue
		}
		if err := e.state.TransferLamports(addr, p.to, p.amount); err != nil {
			return nil, err
		}
	}
	if staking > 0 && e.rewards != nil {
		if err := e.rewards.RecordExternalRewards(staking); err != nil {
			return nil, err
		}
	}
	if r.TotalDistributed, err = safemath.Add(r.TotalDistributed, amount); err != nil {
		return nil, err
	}
	now := e.now()
	r.LastDistribution = now
	if err := e.state.PutFeeReceiver(r); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.FeesDistributed{
		Caller:     caller,
		Amount:     amount,
		Treasury:   treasury,
		Staking:    staking,
		Operations: operations,
		Timestamp:  now,
	})
	e.logger.Info("creator fees distributed",
		slog.String("caller", caller.String()),
		slog.Uint64("amount", amount),
		slog.Uint64("treasury", treasury),
		slog.Uint64("staking", staking),
		slog.Uint64("operations", operations))
	return &Distribution{Amount: amount, Treasury: treasury, Staking: staking, Operations: operations}, nil
}

// UpdateSplit replaces the split. Authority only.
func (e *Engine) UpdateSplit(caller crypto.Address, split Split) (*Receiver, error) {
	r, err := e.begin()
	if err != nil {
		return nil, err
	}
	if caller != r.Authority {
		return nil, ErrUnauthorized
	}
	if err := split.Validate(); err != nil {
		return nil, err
	}
	r.Split = split
	if err := e.state.PutFeeReceiver(r); err != nil {
		return nil, err
	}
	e.emitter.Emit(events.FeeSplitUpdated{
		Authority:     caller,
		TreasuryBps:   split.TreasuryBps,
		StakingBps:    split.StakingBps,
		OperationsBps: split.OperationsBps,
		Timestamp:     e.now(),
	})
	return r.Clone(), nil
}

// Receiver returns the stored receiver.
func (e *Engine) Receiver() (*Receiver, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.load()
}

func (e *Engine) ready() error {
	if e == nil || e.state == nil {
		return errNilState
	}
	return nil
}

func (e *Engine) begin() (*Receiver, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, err
	}
	return e.load()
}

func (e *Engine) load() (*Receiver, error) {
	r, ok, err := e.state.GetFeeReceiver()
	if err != nil {
		return nil, err
	}
	if !ok || r == nil {
		return nil, ErrNotInitialized
	}
	return r, nil
}
