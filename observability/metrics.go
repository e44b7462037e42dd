package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	stakingOnce sync.Once
	stakingReg  *StakingMetrics
)

// StakingMetrics wraps collectors tracking the staking ledger.
type StakingMetrics struct {
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	errors       *prometheus.CounterVec
	totalStaked  prometheus.Gauge
	totalRewards prometheus.Gauge
	claimed      prometheus.Counter
	settled      prometheus.Counter
}

// Staking exposes the process-wide staking metrics registry.
func Staking() *StakingMetrics {
	stakingOnce.Do(func() {
		stakingReg = &StakingMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "requests_total",
				Help:      "Count of staking operations segmented by operation and outcome.",
			}, []string{"operation", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for staking operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "errors_total",
				Help:      "Count of rejected staking operations segmented by operation and reason.",
			}, []string{"operation", "reason"}),
			totalStaked: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "total_staked",
				Help:      "Amount currently held by the vault.",
			}),
			totalRewards: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "total_rewards",
				Help:      "Accrued rewards not yet claimed.",
			}),
			claimed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "rewards_claimed_total",
				Help:      "Reward units paid out through claims.",
			}),
			settled: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "stakevault",
				Subsystem: "staking",
				Name:      "rewards_settled_total",
				Help:      "Reward units accrued by settlement.",
			}),
		}
		prometheus.MustRegister(
			stakingReg.requests,
			stakingReg.latency,
			stakingReg.errors,
			stakingReg.totalStaked,
			stakingReg.totalRewards,
			stakingReg.claimed,
			stakingReg.settled,
		)
	})
	return stakingReg
}

// Observe records the outcome of a staking operation. reason should be a
// short, bounded label such as "insufficient_balance".
func (m *StakingMetrics) Observe(operation string, duration time.Duration, reason string) {
	if m == nil {
		return
	}
	op := strings.TrimSpace(operation)
	if op == "" {
		op = "unknown"
	}
	outcome := "success"
	if reason != "" {
		outcome = "error"
		m.errors.WithLabelValues(op, reason).Inc()
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetVault publishes the committed vault totals.
func (m *StakingMetrics) SetVault(totalStaked, totalRewards uint64) {
	if m == nil {
		return
	}
	m.totalStaked.Set(float64(totalStaked))
	m.totalRewards.Set(float64(totalRewards))
}

// AddSettled records reward accrued by a committed settlement.
func (m *StakingMetrics) AddSettled(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.settled.Add(float64(amount))
}

// AddClaimed records a committed reward payout.
func (m *StakingMetrics) AddClaimed(amount uint64) {
	if m == nil || amount == 0 {
		return
	}
	m.claimed.Add(float64(amount))
}
