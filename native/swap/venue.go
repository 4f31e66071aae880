package swap

import (
	"fmt"
	"log/slog"

	"memelend/core/events"
	"memelend/core/oracle"
	"memelend/crypto"
	"memelend/native/lending"
)

// Ledger moves base currency between accounts.
type Ledger interface {
	Lamports(addr crypto.Address) (uint64, error)
	TransferLamports(from, to crypto.Address, amount uint64) error
}

// Quoter prices a sale without executing it.
type Quoter interface {
	Quote(req lending.SwapRequest) (uint64, error)
}

// market settles a priced sale: collateral moves from the escrow into the
// pool account and base currency moves from the pool account to the
// recipient.
type market struct {
	ledger  Ledger
	emitter events.Emitter
	logger  *slog.Logger
}

func newMarket(ledger Ledger, opts []Option) market {
	m := market{ledger: ledger, emitter: events.NoopEmitter{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// Option customises a venue.
type Option func(*market)

// WithEmitter publishes a SwapExecuted event per settlement.
func WithEmitter(emitter events.Emitter) Option {
	return func(m *market) {
		if emitter != nil {
			m.emitter = emitter
		}
	}
}

// WithLogger sets the venue logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *market) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func (m market) settle(venue string, req lending.SwapRequest, out uint64, instruction []byte) error {
	if out < req.MinOut {
		return fmt.Errorf("%w: quote %d, minimum %d", ErrOutputBelowMinimum, out, req.MinOut)
	}
	if req.Escrow == nil {
		return fmt.Errorf("swap: %s: no escrow authority", venue)
	}
	liquidity, err := m.ledger.Lamports(req.Pool.Address)
	if err != nil {
		return err
	}
	if liquidity < out {
		return fmt.Errorf("%w: pool holds %d, owes %d", ErrOutputBelowMinimum, liquidity, out)
	}
	if err := req.Escrow.Release(req.Pool.Address, req.Amount); err != nil {
		return err
	}
	if err := m.ledger.TransferLamports(req.Pool.Address, req.Recipient, out); err != nil {
		return err
	}
	m.emitter.Emit(events.SwapExecuted{
		Venue:       venue,
		Pool:        req.Pool.Address,
		Mint:        req.Mint,
		AmountIn:    req.Amount,
		AmountOut:   out,
		MinOut:      req.MinOut,
		Instruction: instruction,
	})
	m.logger.Debug("swap settled",
		slog.String("venue", venue),
		slog.String("mint", req.Mint.String()),
		slog.Uint64("in", req.Amount),
		slog.Uint64("out", out))
	return nil
}

// ConstantProductVenue sells into an x*y=k pool. It serves the Raydium, Orca
// and PumpSwap layouts.
type ConstantProductVenue struct {
	kind   oracle.PoolType
	feeBps uint64
	market market
}

// NewConstantProductVenue returns a venue for kind.
func NewConstantProductVenue(kind oracle.PoolType, feeBps uint64, ledger Ledger, opts ...Option) (*ConstantProductVenue, error) {
	switch kind {
	case oracle.PoolRaydium, oracle.PoolOrca, oracle.PoolPumpSwap:
	case oracle.PoolPumpfun:
		return nil, fmt.Errorf("swap: %s is not a constant-product pool", kind)
	default:
		return nil, oracle.ErrInvalidPoolType
	}
	return &ConstantProductVenue{kind: kind, feeBps: feeBps, market: newMarket(ledger, opts)}, nil
}

// Name identifies the venue.
func (v *ConstantProductVenue) Name() string { return v.kind.String() }

// Quote prices req against the pool snapshot.
func (v *ConstantProductVenue) Quote(req lending.SwapRequest) (uint64, error) {
	reserves, err := oracle.ReadReserves(req.Pool, v.kind, req.Mint)
	if err != nil {
		return 0, err
	}
	return ConstantProductOut(reserves.Collateral, reserves.Base, req.Amount, v.feeBps)
}

// Sell implements lending.SwapVenue.
func (v *ConstantProductVenue) Sell(req lending.SwapRequest) error {
	out, err := v.Quote(req)
	if err != nil {
		return err
	}
	return v.market.settle(v.Name(), req, out, nil)
}

// PumpfunVenue sells into a bonding curve that has not yet migrated.
type PumpfunVenue struct {
	market market
}

// NewPumpfunVenue returns the bonding-curve venue.
func NewPumpfunVenue(ledger Ledger, opts ...Option) *PumpfunVenue {
	return &PumpfunVenue{market: newMarket(ledger, opts)}
}

// Name identifies the venue.
func (v *PumpfunVenue) Name() string { return oracle.PoolPumpfun.String() }

// Quote prices req against the curve snapshot.
func (v *PumpfunVenue) Quote(req lending.SwapRequest) (uint64, error) {
	if len(req.Pool.Data) < oracle.BondingCurveFullLength {
		return 0, oracle.ErrInvalidPriceFeed
	}
	if req.Pool.Address != oracle.BondingCurveAddress(req.Mint) {
		return 0, oracle.ErrPoolTypeMismatch
	}
	curve, err := oracle.DecodeBondingCurve(req.Pool.Data)
	if err != nil {
		return 0, err
	}
	if curve.Complete {
		return 0, ErrCurveComplete
	}
	return BondingCurveSellOutput(curve, req.Amount)
}

// Sell implements lending.SwapVenue.
func (v *PumpfunVenue) Sell(req lending.SwapRequest) error {
	out, err := v.Quote(req)
	if err != nil {
		return err
	}
	return v.market.settle(v.Name(), req, out, SellInstruction(req.Amount, req.MinOut))
}

// DefaultAggregatorProgram is the only route target accepted by default.
var DefaultAggregatorProgram = crypto.HashToAddress([]byte("memelend/aggregator"))

// RouteVenue executes a liquidator-supplied aggregator route. The route is
// the target program followed by its opaque instruction data; execution is
// bounded by the direct pool quote less the route slippage.
type RouteVenue struct {
	name        string
	quoter      Quoter
	programs    map[crypto.Address]struct{}
	slippageBps uint64
	market      market
}

// NewRouteVenue wraps quoter. An empty program list allows only
// DefaultAggregatorProgram.
func NewRouteVenue(name string, quoter Quoter, slippageBps uint64, programs []crypto.Address, ledger Ledger, opts ...Option) *RouteVenue {
	if len(programs) == 0 {
		programs = []crypto.Address{DefaultAggregatorProgram}
	}
	allowed := make(map[crypto.Address]struct{}, len(programs))
	for _, p := range programs {
		allowed[p] = struct{}{}
	}
	return &RouteVenue{
		name:        name,
		quoter:      quoter,
		programs:    allowed,
		slippageBps: slippageBps,
		market:      newMarket(ledger, opts),
	}
}

// Name identifies the venue.
func (v *RouteVenue) Name() string { return v.name }

// Sell implements lending.SwapVenue.
func (v *RouteVenue) Sell(req lending.SwapRequest) error {
	if len(req.Route) < crypto.AddressLength {
		return ErrRouteRequired
	}
	program, err := crypto.AddressFromBytes(req.Route[:crypto.AddressLength])
	if err != nil {
		return err
	}
	if _, ok := v.programs[program]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProgram, program)
	}
	quote, err := v.quoter.Quote(req)
	if err != nil {
		return err
	}
	floor := MinOutput(quote, v.slippageBps)
	if req.MinOut < floor {
		req.MinOut = floor
	}
	return v.market.settle(v.name, req, quote, req.Route)
}
