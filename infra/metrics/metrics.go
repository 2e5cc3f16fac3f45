package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the engine's collectors. Build one per service instance.
type Metrics struct {
	OrdersAdded    prometheus.Counter
	OrdersRejected prometheus.Counter
	Cancels        *prometheus.CounterVec
	MarketOrders   *prometheus.CounterVec
	Fills          prometheus.Counter
	FilledQuantity prometheus.Counter
	RestingOrders  prometheus.Gauge
	QueueDepth     prometheus.Gauge
	CommandSeconds *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg when reg is
// not nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersAdded:    prometheus.NewCounter(prometheus.CounterOpts{Name: "lob_orders_added_total", Help: "Limit orders accepted"}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{Name: "lob_orders_rejected_total", Help: "Requests rejected as invalid"}),
		Cancels: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "lob_cancels_total", Help: "Cancel requests by result"},
			[]string{"result"},
		),
		MarketOrders: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "lob_market_orders_total", Help: "Market orders by outcome"},
			[]string{"outcome"},
		),
		Fills:          prometheus.NewCounter(prometheus.CounterOpts{Name: "lob_fills_total", Help: "Executions against resting orders"}),
		FilledQuantity: prometheus.NewCounter(prometheus.CounterOpts{Name: "lob_filled_quantity_total", Help: "Quantity executed"}),
		RestingOrders:  prometheus.NewGauge(prometheus.GaugeOpts{Name: "lob_resting_orders", Help: "Orders resting on both sides"}),
		QueueDepth:     prometheus.NewGauge(prometheus.GaugeOpts{Name: "lob_queue_depth", Help: "Commands waiting for the engine"}),
		CommandSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "lob_command_seconds", Help: "Time spent applying a command", Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10)},
			[]string{"command"},
		),
	}
	if reg != nil {
		reg.MustRegister(
			m.OrdersAdded, m.OrdersRejected, m.Cancels, m.MarketOrders,
			m.Fills, m.FilledQuantity, m.RestingOrders, m.QueueDepth, m.CommandSeconds,
		)
	}
	return m
}

// NewRegistry returns a registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
