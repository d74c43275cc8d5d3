package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"tickbook/domain/orderbook"
)

const namespace = "tickbook"

// Metrics holds the book collectors. A nil *Metrics records nothing.
type Metrics struct {
	Events        *prometheus.CounterVec
	ApplyLatency  prometheus.Histogram
	BatchSize     prometheus.Histogram
	LiveOrders    prometheus.Gauge
	PriceLevels   *prometheus.GaugeVec
	Notifications prometheus.Counter
	Dropped       prometheus.Counter
	Published     prometheus.Counter
	PublishErrors prometheus.Counter
	OutboxPending prometheus.Gauge

	events [5][]prometheus.Counter // [kind][status]
}

func New() *Metrics {
	m := &Metrics{
		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_total",
			Help: "Order events applied to the book by kind and status",
		}, []string{"kind", "status"}),
		ApplyLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "apply_latency_seconds",
			Help:    "Time to apply one batch of commands",
			Buckets: prometheus.ExponentialBuckets(1e-7, 4, 12),
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "batch_size",
			Help:    "Commands drained per owner wakeup",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		LiveOrders: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "live_orders", Help: "Live orders in the book",
		}),
		PriceLevels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "price_levels", Help: "Active price levels by side",
		}, []string{"side"}),
		Notifications: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "l1_notifications_total", Help: "Top-of-book callbacks fired",
		}),
		Dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "l1_dropped_total", Help: "L1 updates dropped on a full notify ring",
		}),
		Published: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_published_total", Help: "L1 updates published to Kafka",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "outbox_errors_total", Help: "Failed L1 publish attempts",
		}),
		OutboxPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "outbox_pending", Help: "L1 updates waiting in the outbox",
		}),
	}
	// Pre-resolve every label pair so the owner goroutine never hashes labels.
	for _, k := range []orderbook.Kind{0, orderbook.KindSubmit, orderbook.KindAmend, orderbook.KindCancel, orderbook.KindClear} {
		for _, s := range orderbook.Statuses() {
			m.events[k] = append(m.events[k], m.Events.WithLabelValues(k.String(), s.String()))
		}
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Events, m.ApplyLatency, m.BatchSize, m.LiveOrders, m.PriceLevels,
		m.Notifications, m.Dropped, m.Published, m.PublishErrors, m.OutboxPending,
	}
}

// Init creates a registry holding the book collectors plus the Go and
// process collectors.
func Init(logger zerolog.Logger) (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := New()
	toRegister := append(m.collectors(),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, c := range toRegister {
		if err := reg.Register(c); err != nil {
			logger.Warn().Err(err).Msg("metric registration failed")
		}
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg, m
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveEvent counts one applied event.
func (m *Metrics) ObserveEvent(kind orderbook.Kind, st orderbook.Status) {
	if m == nil {
		return
	}
	if int(kind) >= len(m.events) {
		kind = 0
	}
	if row := m.events[kind]; int(st) < len(row) {
		row[st].Inc()
	}
}

// ObserveBatch records one owner batch.
func (m *Metrics) ObserveBatch(n int, took time.Duration) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
	m.ApplyLatency.Observe(took.Seconds())
}

// SetBook records the book's size after a batch.
func (m *Metrics) SetBook(orders, bidLevels, askLevels int) {
	if m == nil {
		return
	}
	m.LiveOrders.Set(float64(orders))
	m.PriceLevels.WithLabelValues("buy").Set(float64(bidLevels))
	m.PriceLevels.WithLabelValues("sell").Set(float64(askLevels))
}

func (m *Metrics) Notified() {
	if m != nil {
		m.Notifications.Inc()
	}
}

func (m *Metrics) DroppedUpdate() {
	if m != nil {
		m.Dropped.Inc()
	}
}

func (m *Metrics) PublishResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.PublishErrors.Inc()
		return
	}
	m.Published.Inc()
}

func (m *Metrics) SetPending(n int) {
	if m != nil {
		m.OutboxPending.Set(float64(n))
	}
}
