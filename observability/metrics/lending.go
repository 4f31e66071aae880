package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks the loan book, the staking pool and fee sweeps.
type LendingMetrics struct {
	loansOpened     *prometheus.CounterVec
	loansRepaid     prometheus.Counter
	loansLiquidated *prometheus.CounterVec
	borrowed        prometheus.Counter
	repaidFees      prometheus.Counter
	proceeds        prometheus.Counter
	epoch           prometheus.Gauge
	epochRewards    prometheus.Counter
	distributed     prometheus.Counter
	claimed         prometheus.Counter
	feeSweeps       *prometheus.CounterVec
	swaps           *prometheus.CounterVec
	rejected        *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide collectors, registering them on first use.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = &LendingMetrics{
			loansOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "loans_opened_total",
				Help:      "Loans opened by collateral mint.",
			}, []string{"mint"}),
			loansRepaid: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "loans_repaid_total",
				Help:      "Loans closed by repayment.",
			}),
			loansLiquidated: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "loans_liquidated_total",
				Help:      "Loans closed by liquidation, by trigger.",
			}, []string{"reason"}),
			borrowed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "borrowed_lamports_total",
				Help:      "Base currency lent out.",
			}),
			repaidFees: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "protocol_fees_lamports_total",
				Help:      "Protocol fees collected on repayment.",
			}),
			proceeds: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "lending",
				Name:      "liquidation_proceeds_lamports_total",
				Help:      "Base currency recovered by liquidations.",
			}),
			epoch: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "memelend",
				Subsystem: "staking",
				Name:      "epoch",
				Help:      "Current staking epoch.",
			}),
			epochRewards: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "staking",
				Name:      "epoch_rewards_lamports_total",
				Help:      "Rewards allocated by closed epochs.",
			}),
			distributed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "staking",
				Name:      "distributed_lamports_total",
				Help:      "Rewards pushed to stakers by distribution batches.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "staking",
				Name:      "claimed_lamports_total",
				Help:      "Rewards claimed by stakers.",
			}),
			feeSweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "fees",
				Name:      "swept_lamports_total",
				Help:      "Creator fees swept, by destination.",
			}, []string{"destination"}),
			swaps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "swap",
				Name:      "executed_total",
				Help:      "Collateral sales by venue.",
			}, []string{"venue"}),
			rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "memelend",
				Subsystem: "api",
				Name:      "rejected_total",
				Help:      "Instructions rejected, by module and error code.",
			}, []string{"module", "code"}),
		}
		prometheus.MustRegister(
			lendingRegistry.loansOpened,
			lendingRegistry.loansRepaid,
			lendingRegistry.loansLiquidated,
			lendingRegistry.borrowed,
			lendingRegistry.repaidFees,
			lendingRegistry.proceeds,
			lendingRegistry.epoch,
			lendingRegistry.epochRewards,
			lendingRegistry.distributed,
			lendingRegistry.claimed,
			lendingRegistry.feeSweeps,
			lendingRegistry.swaps,
			lendingRegistry.rejected,
		)
	})
	return lendingRegistry
}

func (m *LendingMetrics) LoanOpened(mint string, borrowed uint64) {
	if m == nil {
		return
	}
	m.loansOpened.WithLabelValues(mint).Inc()
	m.borrowed.Add(float64(borrowed))
}

func (m *LendingMetrics) LoanRepaid(fee uint64) {
	if m == nil {
		return
	}
	m.loansRepaid.Inc()
	m.repaidFees.Add(float64(fee))
}

func (m *LendingMetrics) LoanLiquidated(reason string, proceeds uint64) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.loansLiquidated.WithLabelValues(reason).Inc()
	m.proceeds.Add(float64(proceeds))
}

// EpochStarted records a transition into epoch along with the rewards the
// closed epoch allocated.
func (m *LendingMetrics) EpochStarted(epoch, rewards uint64) {
	if m == nil {
		return
	}
	m.epoch.Set(float64(epoch))
	m.epochRewards.Add(float64(rewards))
}

func (m *LendingMetrics) RewardsDistributed(amount uint64) {
	if m == nil {
		return
	}
	m.distributed.Add(float64(amount))
}

func (m *LendingMetrics) RewardsClaimed(amount uint64) {
	if m == nil {
		return
	}
	m.claimed.Add(float64(amount))
}

func (m *LendingMetrics) FeesSwept(treasury, staking, operations uint64) {
	if m == nil {
		return
	}
	m.feeSweeps.WithLabelValues("treasury").Add(float64(treasury))
	m.feeSweeps.WithLabelValues("staking").Add(float64(staking))
	m.feeSweeps.WithLabelValues("operations").Add(float64(operations))
}

func (m *LendingMetrics) SwapExecuted(venue string) {
	if m == nil {
		return
	}
	m.swaps.WithLabelValues(venue).Inc()
}

// Rejected counts a failed instruction by its numeric error code.
func (m *LendingMetrics) Rejected(module string, code int) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(module, strconv.Itoa(code)).Inc()
}

// LiquidationsCounter exposes the per-reason liquidation counter for tests and
// dashboards built on the registry.
func (m *LendingMetrics) LiquidationsCounter(reason string) prometheus.Counter {
	return m.loansLiquidated.WithLabelValues(reason)
}

// EpochGauge exposes the current epoch gauge.
func (m *LendingMetrics) EpochGauge() prometheus.Gauge {
	return m.epoch
}
