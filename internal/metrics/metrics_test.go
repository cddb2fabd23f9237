package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAndReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	again := New(reg)

	m.SaleSucceeded(6660)
	again.SaleFailed("insufficient_stock")
	m.RefundSucceeded(1500)

	require.Equal(t, 1.0, testutil.ToFloat64(m.SalesTotal.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SalesTotal.WithLabelValues("insufficient_stock")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.StockConflicts))
	require.Equal(t, 6660.0, testutil.ToFloat64(m.SaleAmountCents))
	require.Equal(t, 1500.0, testutil.ToFloat64(m.RefundAmountCents))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SaleSucceeded(1)
	m.SaleFailed("x")
	m.RefundSucceeded(1)
	m.RefundFailed("x")
	m.ObserveLedger("sale", 0.1)
}
