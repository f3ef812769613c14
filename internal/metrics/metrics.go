package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the order-core collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	ordersPlaced   prometheus.Counter
	orderFailures  *prometheus.CounterVec
	createDuration prometheus.Histogram
	numberRetries  prometheus.Counter
	unitsSold      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ordersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Orders committed successfully.",
		}),
		orderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "orders",
			Name:      "failures_total",
			Help:      "Order placements rolled back, by reason.",
		}, []string{"reason"}),
		createDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "erp",
			Subsystem: "orders",
			Name:      "create_duration_seconds",
			Help:      "Time spent in the order placement transaction.",
			Buckets:   prometheus.DefBuckets,
		}),
		numberRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "orders",
			Name:      "number_collisions_total",
			Help:      "Generated order numbers that were already taken.",
		}),
		unitsSold: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "erp",
			Subsystem: "stock",
			Name:      "units_decremented_total",
			Help:      "Stock units removed by placed orders.",
		}),
	}
	reg.MustRegister(m.ordersPlaced, m.orderFailures, m.createDuration, m.numberRetries, m.unitsSold)
	return m
}

func (m *Metrics) OrderPlaced(units int, took time.Duration) {
	if m == nil {
		return
	}
	m.ordersPlaced.Inc()
	m.unitsSold.Add(float64(units))
	m.createDuration.Observe(took.Seconds())
}

func (m *Metrics) OrderFailed(reason string, took time.Duration) {
	if m == nil {
		return
	}
	m.orderFailures.WithLabelValues(reason).Inc()
	m.createDuration.Observe(took.Seconds())
}

func (m *Metrics) NumberCollision() {
	if m == nil {
		return
	}
	m.numberRetries.Inc()
}
