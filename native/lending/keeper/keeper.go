package keeper

import (
	"context"
	"log/slog"
	"time"

	"memelend/crypto"
	"memelend/native/lending"
)

// PriceFunc returns the latest accepted price for mint, if one is known.
type PriceFunc func(mint crypto.Address, now int64) (uint64, bool)

// Candidate is a tracked loan that satisfies a liquidation trigger.
type Candidate struct {
	Entry
	Reason lending.LoanStatus
	Price  uint64
}

// Handler receives the candidates found by one scan.
type Handler func(ctx context.Context, candidates []Candidate) error

// Keeper periodically scans the index.
type Keeper struct {
	index    *Index
	prices   PriceFunc
	handler  Handler
	interval time.Duration
	logger   *slog.Logger
	nowFn    func() time.Time
}

// Option customises a Keeper.
type Option func(*Keeper)

// WithLogger sets the logger used for scan reports.
func WithLogger(logger *slog.Logger) Option {
	return func(k *Keeper) {
		if logger != nil {
			k.logger = logger
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(k *Keeper) {
		if now != nil {
			k.nowFn = now
		}
	}
}

// New builds a keeper over index. A nil prices function limits scans to the
// time trigger.
func New(index *Index, prices PriceFunc, handler Handler, interval time.Duration, opts ...Option) *Keeper {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	k := &Keeper{
		index:    index,
		prices:   prices,
		handler:  handler,
		interval: interval,
		logger:   slog.Default(),
		nowFn:    time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Scan returns every tracked loan that is liquidatable at now, in due order.
// The price trigger takes precedence when both apply.
func (k *Keeper) Scan(now int64) []Candidate {
	var out []Candidate
	for _, entry := range k.index.Snapshot() {
		triggers := &lending.Loan{DueAt: entry.DueAt, LiquidationPrice: entry.LiquidationPrice}
		price, known := uint64(0), false
		if k.prices != nil {
			price, known = k.prices(entry.Mint, now)
		}
		if !known {
			if lending.IsLiquidatableByTime(triggers, now) {
				out = append(out, Candidate{Entry: entry, Reason: lending.LoanLiquidatedByTime})
			}
			continue
		}
		if reason, ok := lending.LiquidationReason(triggers, now, price); ok {
			out = append(out, Candidate{Entry: entry, Reason: reason, Price: price})
		}
	}
	return out
}

// Run scans every interval until ctx is cancelled.
func (k *Keeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := k.tick(ctx); err != nil {
				return err
			}
		}
	}
}

func (k *Keeper) tick(ctx context.Context) error {
	candidates := k.Scan(k.nowFn().Unix())
	if len(candidates) == 0 {
		return nil
	}
	for _, c := range candidates {
		k.logger.Info("liquidation candidate",
			slog.String("loan", c.Loan.String()),
			slog.String("mint", c.Mint.String()),
			slog.String("reason", c.Reason.String()),
			slog.Uint64("price", c.Price))
	}
	if k.handler == nil {
		return nil
	}
	if err := k.handler(ctx, candidates); err != nil {
		k.logger.Warn("liquidation handler failed", slog.Any("error", err))
	}
	return nil
}
