package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the card service.
type Metrics struct {
	CardsPublished       *prometheus.CounterVec
	OperationsDispatched *prometheus.CounterVec
	ActiveSubscriptions  prometheus.Gauge
	SubscriberOverflows  prometheus.Counter
	ArchiveQuerySeconds  prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CardsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardfeed_cards_published_total",
			Help: "Total card operations accepted by the publication service",
		}, []string{"type"}),
		OperationsDispatched: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "cardfeed_operations_dispatched_total",
			Help: "Total card operations delivered to feed subscribers",
		}, []string{"type"}),
		ActiveSubscriptions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "cardfeed_active_subscriptions",
			Help: "Number of live feed subscriptions",
		}),
		SubscriberOverflows: promauto.NewCounter(prometheus.CounterOpts{
			Name: "cardfeed_subscriber_overflows_total",
			Help: "Subscriptions cancelled because their delivery buffer filled up",
		}),
		ArchiveQuerySeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "cardfeed_archive_query_seconds",
			Help:    "Latency of archived card queries",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncCardsPublished(opType string) {
	m.CardsPublished.WithLabelValues(opType).Inc()
}

func (m *Metrics) IncOperationsDispatched(opType string) {
	m.OperationsDispatched.WithLabelValues(opType).Inc()
}

func (m *Metrics) SetActiveSubscriptions(count int) {
	m.ActiveSubscriptions.Set(float64(count))
}

func (m *Metrics) IncSubscriberOverflows() {
	m.SubscriberOverflows.Inc()
}

func (m *Metrics) ObserveArchiveQuery(d time.Duration) {
	m.ArchiveQuerySeconds.Observe(d.Seconds())
}
