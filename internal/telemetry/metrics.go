// Package telemetry exposes Prometheus metrics for the trading loop.
package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names
const (
	MetricCyclesTotal         = "trading_bot_cycles_total"
	MetricDirectivesTotal     = "trading_bot_directives_total"
	MetricExchangeErrorsTotal = "trading_bot_exchange_errors_total"
	MetricDecisionLatency     = "trading_bot_decision_latency_seconds"
	MetricEnvelopeFailures    = "trading_bot_envelope_failures_total"
)

// Metrics holds the registered collectors
type Metrics struct {
	CyclesTotal         prometheus.Counter
	DirectivesTotal     *prometheus.CounterVec
	ExchangeErrorsTotal prometheus.Counter
	DecisionLatency     prometheus.Histogram
	EnvelopeFailures    prometheus.Counter
}

var (
	globalMetrics *Metrics
	initOnce      sync.Once
)

// GetMetrics returns the singleton metrics holder, registering collectors on
// first use.
func GetMetrics() *Metrics {
	initOnce.Do(func() {
		globalMetrics = &Metrics{
			CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: MetricCyclesTotal,
				Help: "Completed decision cycles",
			}),
			DirectivesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: MetricDirectivesTotal,
				Help: "Directives executed, by kind and outcome",
			}, []string{"kind", "outcome"}),
			ExchangeErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: MetricExchangeErrorsTotal,
				Help: "Exchange API calls that returned an error",
			}),
			DecisionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    MetricDecisionLatency,
				Help:    "Time spent waiting for the decision service",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			}),
			EnvelopeFailures: promauto.NewCounter(prometheus.CounterOpts{
				Name: MetricEnvelopeFailures,
				Help: "Model replies that did not contain a usable envelope",
			}),
		}
	})
	return globalMetrics
}

// ObserveDirective records one directive outcome
func (m *Metrics) ObserveDirective(kind, outcome string) {
	m.DirectivesTotal.WithLabelValues(kind, outcome).Inc()
}
