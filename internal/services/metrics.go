package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Ingestion metrics
	RecordsIngested prometheus.Counter
	RecordsLost     prometheus.Counter

	// Storage tier errors by tier ("mongo", "redis")
	TierErrors *prometheus.CounterVec

	// Cache lookups by cache name and result ("hit", "miss")
	CacheLookups *prometheus.CounterVec

	// Query latency histogram
	QueryLatency prometheus.Histogram

	// Request pool reference for dynamic gauges
	pool *RequestPool
}

var globalMetrics *Metrics

// InitMetrics initializes the Prometheus metrics
func InitMetrics(pool *RequestPool) *Metrics {
	metrics := &Metrics{
		pool: pool,

		RecordsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convlogger_records_ingested_total",
			Help: "Total number of records accepted for ingestion",
		}),

		RecordsLost: promauto.NewCounter(prometheus.CounterOpts{
			Name: "convlogger_records_lost_total",
			Help: "Records lost because both the durable store and the cache write failed",
		}),

		TierErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "convlogger_tier_errors_total",
			Help: "Storage tier failures swallowed at the cascade boundary",
		}, []string{"tier"}),

		CacheLookups: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "convlogger_cache_lookups_total",
			Help: "Cache lookups by cache name and result",
		}, []string{"cache", "result"}),

		QueryLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "convlogger_query_duration_seconds",
			Help:    "Record query latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}),
	}

	// Gauges sourced live from the request pool
	if pool != nil {
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "convlogger_pool_active",
				Help: "Units currently executing in the bounded concurrency pool",
			},
			func() float64 { return float64(pool.Stats().Active) },
		))
		prometheus.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Name: "convlogger_pool_queued",
				Help: "Units waiting in the pool's FIFO queue",
			},
			func() float64 { return float64(pool.Stats().Queued) },
		))
	}

	globalMetrics = metrics
	return metrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	return globalMetrics
}

// RecordIngest records an accepted record
func (m *Metrics) RecordIngest() {
	if m == nil {
		return
	}
	m.RecordsIngested.Inc()
}

// RecordLost records a record dropped by both tiers
func (m *Metrics) RecordLost() {
	if m == nil {
		return
	}
	m.RecordsLost.Inc()
}

// RecordTierError records a swallowed storage tier failure
func (m *Metrics) RecordTierError(tier string) {
	if m == nil {
		return
	}
	m.TierErrors.WithLabelValues(tier).Inc()
}

// RecordCacheLookup records a cache hit or miss
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveQueryLatency records query latency
func (m *Metrics) ObserveQueryLatency(seconds float64) {
	if m == nil {
		return
	}
	m.QueryLatency.Observe(seconds)
}
