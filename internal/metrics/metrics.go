// Package metrics exposes prometheus instruments for the orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stakebridge"

// Metrics groups the counters updated by fee estimation, broadcasting and confirmation waits.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	txBroadcast  *prometheus.CounterVec
	feeQuotes    *prometheus.CounterVec
	feeAnomalies prometheus.Counter
	confirmWait  *prometheus.HistogramVec
}

// New creates the instruments and registers them with reg when it is not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		txBroadcast: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_broadcast_total",
			Help:      "Transactions submitted, by network, call kind and result.",
		}, []string{"network", "kind", "result"}),
		feeQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_quote_total",
			Help:      "Fee quotes produced, by source.",
		}, []string{"source"}),
		feeAnomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fee_anomaly_total",
			Help:      "Fee quotes whose max fee exceeded the sanity ceiling.",
		}),
		confirmWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confirmation_wait_seconds",
			Help:      "Time spent waiting for a receipt, by outcome.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 120, 240},
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.txBroadcast, m.feeQuotes, m.feeAnomalies, m.confirmWait)
	}
	return m
}

func (m *Metrics) Broadcast(network, kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.txBroadcast.WithLabelValues(network, kind, result).Inc()
}

func (m *Metrics) FeeQuote(source string) {
	if m == nil {
		return
	}
	m.feeQuotes.WithLabelValues(source).Inc()
}

func (m *Metrics) FeeAnomaly() {
	if m == nil {
		return
	}
	m.feeAnomalies.Inc()
}

func (m *Metrics) ConfirmationWait(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.confirmWait.WithLabelValues(outcome).Observe(d.Seconds())
}
