// Package metrics exposes Prometheus collectors for cycles, recorded orders
// and sink deliveries. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Config sets the constant labels attached to every collector.
type Config struct {
	ServiceName string
	Environment string
}

// Metrics groups the pipeline collectors.
type Metrics struct {
	cycles            *prometheus.CounterVec
	cycleDuration     prometheus.Histogram
	ordersRecorded    *prometheus.CounterVec
	sinkDeliveries    *prometheus.CounterVec
	activeSubscribers prometheus.Gauge
}

// New creates the collectors and registers them with registerer, or with
// the default registerer when nil.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "orderpulse"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "orderpulse_cycles_total",
			Help:        "Report cycles by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"result"}, // success | failed | outside_window
	)

	cycleDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:        "orderpulse_cycle_duration_seconds",
			Help:        "Wall time of a full collect-to-dispatch cycle.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			ConstLabels: constLabels,
		},
	)

	ordersRecorded := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "orderpulse_orders_recorded_total",
			Help:        "Order events counted into hourly buckets.",
			ConstLabels: constLabels,
		},
		[]string{"product"},
	)

	sinkDeliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "orderpulse_sink_deliveries_total",
			Help:        "Report deliveries per notification sink.",
			ConstLabels: constLabels,
		},
		[]string{"sink", "result"}, // delivered | skipped | failed
	)

	activeSubscribers := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "orderpulse_active_subscribers",
			Help:        "Active subscribers seen by the last maintenance pass.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(cycles, cycleDuration, ordersRecorded, sinkDeliveries, activeSubscribers)

	return &Metrics{
		cycles:            cycles,
		cycleDuration:     cycleDuration,
		ordersRecorded:    ordersRecorded,
		sinkDeliveries:    sinkDeliveries,
		activeSubscribers: activeSubscribers,
	}
}

// ObserveCycle counts one cycle and records its duration. Cycles that never
// started (zero duration) are only counted.
func (m *Metrics) ObserveCycle(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(result).Inc()
	if d > 0 {
		m.cycleDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) AddOrders(product string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ordersRecorded.WithLabelValues(product).Add(float64(n))
}

// ObserveSink counts one delivery attempt for sink.
func (m *Metrics) ObserveSink(sink, result string) {
	if m == nil {
		return
	}
	m.sinkDeliveries.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) SetActiveSubscribers(n int) {
	if m == nil {
		return
	}
	m.activeSubscribers.Set(float64(n))
}
