package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	pkgerrors "github.com/openaid/aid-inventory/pkg/errors"
)

// OutcomeOK labels a stock operation that committed.
const OutcomeOK = "ok"

// StockMetrics counts stock-changing operations and raised low-stock alerts.
type StockMetrics struct {
	operations *prometheus.CounterVec
	alerts     prometheus.Counter
	lowStock   prometheus.Gauge
}

// NewStockMetrics registers the stock counters. A nil registerer yields a no-op collector.
func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	operations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aidinv_stock_operations_total",
		Help: "Stock operations by event kind and outcome.",
	}, []string{"kind", "outcome"})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aidinv_low_stock_alerts_total",
		Help: "Low stock alerts raised by the event worker.",
	})
	lowStock := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "aidinv_low_stock_items",
		Help: "Items at or below their minimum level at the last sweep.",
	})
	reg.MustRegister(operations, alerts, lowStock)
	return &StockMetrics{operations: operations, alerts: alerts, lowStock: lowStock}
}

// ObserveOperation records one attempt of the given kind. The outcome label is
// "ok" or the lower-cased error code.
func (m *StockMetrics) ObserveOperation(kind string, err error) {
	if m == nil || m.operations == nil {
		return
	}
	m.operations.WithLabelValues(normalizeLabel(kind), Outcome(err)).Inc()
}

// IncLowStockAlert counts a published low stock alert.
func (m *StockMetrics) IncLowStockAlert() {
	if m == nil || m.alerts == nil {
		return
	}
	m.alerts.Inc()
}

// SetLowStockItems records the size of the low stock list.
func (m *StockMetrics) SetLowStockItems(n int64) {
	if m == nil || m.lowStock == nil {
		return
	}
	m.lowStock.Set(float64(n))
}

// Outcome maps an error to its metric label.
func Outcome(err error) string {
	if err == nil {
		return OutcomeOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return strings.ToLower(string(typed.Code()))
	}
	return strings.ToLower(string(pkgerrors.CodeInternal))
}
