package oracle

import (
	"fmt"
	"sync"

	lru "github.com/hashicorp/golang-lru"
	"github.com/holiman/uint256"

	"memelend/core/safemath"
	"memelend/crypto"
)

const (
	DefaultStalenessSeconds  int64  = 60
	DefaultMaxDeviationBps   uint64 = 500
	DefaultTWAPWindowSeconds int64  = 300
	DefaultMinTWAPSamples           = 3
	defaultTrackedMints             = 1024
	maxSamplesPerMint               = 64
)

// TrackerConfig tunes the freshness and manipulation checks.
type TrackerConfig struct {
	StalenessSeconds  int64
	MaxDeviationBps   uint64
	TWAPWindowSeconds int64
	MinTWAPSamples    int
	// TrackedMints bounds the number of mints kept in memory.
	TrackedMints int
}

// DefaultTrackerConfig mirrors the protocol defaults.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		StalenessSeconds:  DefaultStalenessSeconds,
		MaxDeviationBps:   DefaultMaxDeviationBps,
		TWAPWindowSeconds: DefaultTWAPWindowSeconds,
		MinTWAPSamples:    DefaultMinTWAPSamples,
		TrackedMints:      defaultTrackedMints,
	}
}

// Observation is one accepted price read.
type Observation struct {
	Price     uint64
	Timestamp int64
}

type series struct {
	samples []Observation
}

func (s *series) last() (Observation, bool) {
	if len(s.samples) == 0 {
		return Observation{}, false
	}
	return s.samples[len(s.samples)-1], true
}

// Tracker remembers recent observations per mint so callers can reject stale
// or manipulated reads. It is safe for concurrent use.
type Tracker struct {
	cfg   TrackerConfig
	mu    sync.Mutex
	cache *lru.Cache
}

func NewTracker(cfg TrackerConfig) (*Tracker, error) {
	if cfg.StalenessSeconds <= 0 {
		cfg.StalenessSeconds = DefaultStalenessSeconds
	}
	if cfg.TWAPWindowSeconds <= 0 {
		cfg.TWAPWindowSeconds = DefaultTWAPWindowSeconds
	}
	if cfg.MinTWAPSamples <= 0 {
		cfg.MinTWAPSamples = DefaultMinTWAPSamples
	}
	if cfg.TrackedMints <= 0 {
		cfg.TrackedMints = defaultTrackedMints
	}
	cache, err := lru.New(cfg.TrackedMints)
	if err != nil {
		return nil, fmt.Errorf("oracle: build tracker cache: %w", err)
	}
	return &Tracker{cfg: cfg, cache: cache}, nil
}

// IsFresh reports whether an observation taken at observedAt may still be
// used at now.
func IsFresh(observedAt, now, stalenessSeconds int64) bool {
	return now-observedAt < stalenessSeconds
}

// CheckDeviation fails when next moved more than maxBps away from prev.
func CheckDeviation(prev, next, maxBps uint64) error {
	if prev == 0 || maxBps == 0 {
		return nil
	}
	diff := next - prev
	if prev > next {
		diff = prev - next
	}
	deviation, err := safemath.MulDiv(diff, safemath.BpsDivisor, prev)
	if err != nil {
		return err
	}
	if deviation > maxBps {
		return fmt.Errorf("%w: %d bps", ErrPriceDeviation, deviation)
	}
	return nil
}

// Observe validates price against the previous observation inside the TWAP
// window and records it.
func (t *Tracker) Observe(mint crypto.Address, price uint64, now int64) error {
	if t == nil {
		return nil
	}
	if price == 0 {
		return ErrZeroPrice
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.seriesFor(mint)
	if prev, ok := s.last(); ok && now-prev.Timestamp < t.cfg.TWAPWindowSeconds {
		if err := CheckDeviation(prev.Price, price, t.cfg.MaxDeviationBps); err != nil {
			return err
		}
	}
	s.samples = append(s.samples, Observation{Price: price, Timestamp: now})
	s.prune(now, t.cfg.TWAPWindowSeconds)
	return nil
}

// Latest returns the newest observation if it is still fresh.
func (t *Tracker) Latest(mint crypto.Address, now int64) (Observation, error) {
	if t == nil {
		return Observation{}, ErrStalePrice
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.cache.Get(mint)
	if !ok {
		return Observation{}, ErrStalePrice
	}
	obs, ok := value.(*series).last()
	if !ok || !IsFresh(obs.Timestamp, now, t.cfg.StalenessSeconds) {
		return Observation{}, ErrStalePrice
	}
	return obs, nil
}

// TWAP averages the observations inside the window ending at now.
func (t *Tracker) TWAP(mint crypto.Address, now int64) (uint64, error) {
	if t == nil {
		return 0, ErrNotEnoughSamples
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	value, ok := t.cache.Get(mint)
	if !ok {
		return 0, ErrNotEnoughSamples
	}
	prices := make([]uint64, 0, maxSamplesPerMint)
	for _, obs := range value.(*series).samples {
		if now-obs.Timestamp <= t.cfg.TWAPWindowSeconds {
			prices = append(prices, obs.Price)
		}
	}
	if len(prices) < t.cfg.MinTWAPSamples {
		return 0, ErrNotEnoughSamples
	}
	return AveragePrice(prices)
}

// AveragePrice is the simple moving average of prices.
func AveragePrice(prices []uint64) (uint64, error) {
	if len(prices) == 0 {
		return 0, ErrInvalidPriceFeed
	}
	sum := new(uint256.Int)
	for _, p := range prices {
		sum.Add(sum, uint256.NewInt(p))
	}
	sum.Div(sum, uint256.NewInt(uint64(len(prices))))
	return safemath.NarrowU64(sum)
}

func (t *Tracker) seriesFor(mint crypto.Address) *series {
	if value, ok := t.cache.Get(mint); ok {
		return value.(*series)
	}
	s := &series{}
	t.cache.Add(mint, s)
	return s
}

func (s *series) prune(now, window int64) {
	cut := 0
	for cut < len(s.samples)-1 && now-s.samples[cut].Timestamp > window {
		cut++
	}
	if len(s.samples)-cut > maxSamplesPerMint {
		cut = len(s.samples) - maxSamplesPerMint
	}
	if cut > 0 {
		s.samples = append([]Observation(nil), s.samples[cut:]...)
	}
}
