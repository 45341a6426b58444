// Package metrics holds the Prometheus collectors of the scheduler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the scheduler collectors. A nil *Metrics records nothing.
type Metrics struct {
	Refreshes       *prometheus.CounterVec
	RefreshFailures *prometheus.CounterVec
	RefreshDuration prometheus.Histogram
	ScheduleItems   *prometheus.GaugeVec
	Head            prometheus.Gauge
	CacheHits       prometheus.Counter
	CacheMisses     prometheus.Counter
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govunlocks_refreshes_total",
				Help: "Schedule refreshes per account",
			},
			[]string{"account"},
		),
		RefreshFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "govunlocks_refresh_failures_total",
				Help: "Failed schedule refreshes by stage",
			},
			[]string{"stage"},
		),
		RefreshDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "govunlocks_refresh_duration_seconds",
				Help:    "Time to load, compute and store one schedule",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
			},
		),
		ScheduleItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "govunlocks_schedule_items",
				Help: "Items in the latest schedule per account",
			},
			[]string{"account"},
		),
		Head: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "govunlocks_head_block",
				Help: "Block height schedules were last split at",
			},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "govunlocks_cache_hits_total",
				Help: "Schedule lookups served from the cache",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "govunlocks_cache_misses_total",
				Help: "Schedule lookups that required a refresh",
			},
		),
	}
}

func (m *Metrics) ObserveRefresh(account string, seconds float64, items int, head uint32) {
	if m == nil {
		return
	}
	m.Refreshes.WithLabelValues(account).Inc()
	m.RefreshDuration.Observe(seconds)
	m.ScheduleItems.WithLabelValues(account).Set(float64(items))
	m.Head.Set(float64(head))
}

func (m *Metrics) Failure(stage string) {
	if m == nil {
		return
	}
	m.RefreshFailures.WithLabelValues(stage).Inc()
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.CacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.CacheMisses.Inc()
	}
}
