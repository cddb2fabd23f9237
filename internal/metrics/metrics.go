// Package metrics exposes sale ledger counters to Prometheus.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pos"

// Metrics holds the ledger collectors. A nil *Metrics records nothing.
type Metrics struct {
	SalesTotal        *prometheus.CounterVec
	SaleAmountCents   prometheus.Counter
	RefundsTotal      *prometheus.CounterVec
	RefundAmountCents prometheus.Counter
	StockConflicts    prometheus.Counter
	LedgerDuration    *prometheus.HistogramVec
}

// New builds the collectors and registers them with reg. Collectors already
// registered under the same name are reused.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		SalesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sales_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"result"}),
		SaleAmountCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sale_amount_cents_total",
			Help:      "Grand total of completed sales in minor units.",
		}),
		RefundsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refunds_total",
			Help:      "Refund attempts by outcome.",
		}, []string{"result"}),
		RefundAmountCents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refund_amount_cents_total",
			Help:      "Refunded amount in minor units.",
		}),
		StockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stock_conflicts_total",
			Help:      "Sales rejected because stock ran out.",
		}),
		LedgerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Latency of sale and refund units of work.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	m.SalesTotal = register(reg, m.SalesTotal)
	m.SaleAmountCents = register(reg, m.SaleAmountCents)
	m.RefundsTotal = register(reg, m.RefundsTotal)
	m.RefundAmountCents = register(reg, m.RefundAmountCents)
	m.StockConflicts = register(reg, m.StockConflicts)
	m.LedgerDuration = register(reg, m.LedgerDuration)
	return m
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

func (m *Metrics) SaleSucceeded(totalCents int64) {
	if m == nil {
		return
	}
	m.SalesTotal.WithLabelValues("success").Inc()
	m.SaleAmountCents.Add(float64(totalCents))
}

func (m *Metrics) SaleFailed(result string) {
	if m == nil {
		return
	}
	m.SalesTotal.WithLabelValues(result).Inc()
	if result == "insufficient_stock" {
		m.StockConflicts.Inc()
	}
}

func (m *Metrics) RefundSucceeded(totalCents int64) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues("success").Inc()
	m.RefundAmountCents.Add(float64(totalCents))
}

func (m *Metrics) RefundFailed(result string) {
	if m == nil {
		return
	}
	m.RefundsTotal.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveLedger(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.LedgerDuration.WithLabelValues(operation).Observe(seconds)
}
