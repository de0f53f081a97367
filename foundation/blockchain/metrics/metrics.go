// Package metrics provides prometheus collectors for the chain operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records chain activity into a set of prometheus collectors. It
// implements the database.Recorder interface.
type Metrics struct {
	blocks      prometheus.Gauge
	attempts    prometheus.Counter
	failures    prometheus.Counter
	mining      prometheus.Histogram
	validations *prometheus.CounterVec
}

// New constructs the collectors and registers them with the registerer.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := Metrics{
		blocks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ledger_blocks_total",
			Help: "Number of blocks in the chain, including genesis.",
		}),
		attempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_mining_attempts_total",
			Help: "Number of nonce increments performed by successful mining operations.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ledger_mining_failures_total",
			Help: "Number of mining operations that timed out or were cancelled.",
		}),
		mining: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ledger_mining_seconds",
			Help:    "Time spent mining a block.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ledger_validations_total",
			Help: "Number of chain validations by result.",
		}, []string{"result"}),
	}

	collectors := []prometheus.Collector{m.blocks, m.attempts, m.failures, m.mining, m.validations}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	// The genesis block exists before any append is recorded.
	m.blocks.Set(1)

	return &m, nil
}

// BlockAppended records a successful append.
func (m *Metrics) BlockAppended(length int, attempts uint64, duration time.Duration) {
	m.blocks.Set(float64(length))
	m.attempts.Add(float64(attempts))
	m.mining.Observe(duration.Seconds())
}

// MiningFailed records a mining operation that did not find a solution.
func (m *Metrics) MiningFailed() {
	m.failures.Inc()
}

// Validated records the result of a chain validation.
func (m *Metrics) Validated(valid bool) {
	result := "invalid"
	if valid {
		result = "valid"
	}
	m.validations.WithLabelValues(result).Inc()
}
