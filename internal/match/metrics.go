package match

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricRankRequestsTotal    = "match_rank_requests_total"
	MetricRankDuration         = "match_rank_duration_seconds"
	MetricCacheInsertsTotal    = "match_cache_rows_inserted_total"
	MetricRefreshTotal         = "match_refresh_total"
	MetricRefreshDuration      = "match_refresh_duration_seconds"
	MetricLastRefreshTimestamp = "match_last_refresh_timestamp"
)

// Result source labels for rank requests.
const (
	SourceCache    = "cache"
	SourceComputed = "computed"
)

// Status labels for refresh cycles.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Metrics contains Prometheus metrics for the matching engine and refresh
// job. All operations are thread-safe.
type Metrics struct {
	rankRequests         *prometheus.CounterVec
	rankDuration         *prometheus.HistogramVec
	cacheInserts         prometheus.Counter
	refreshTotal         *prometheus.CounterVec
	refreshDuration      prometheus.Histogram
	lastRefreshTimestamp prometheus.Gauge
}

// NewMetrics creates and returns a new Metrics instance with all collectors
// initialized. The metrics are not registered; call Register to register
// them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		rankRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRankRequestsTotal,
				Help: "Total number of rank requests by candidate kind and result source",
			},
			[]string{"kind", "source"},
		),
		rankDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricRankDuration,
				Help:    "Histogram of rank request duration in seconds by candidate kind",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"kind"},
		),
		cacheInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricCacheInsertsTotal,
			Help: "Total number of compatibility result rows inserted into the score cache",
		}),
		refreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricRefreshTotal,
				Help: "Total number of cache refresh cycles by status",
			},
			[]string{"status"},
		),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricRefreshDuration,
			Help:    "Histogram of cache refresh cycle duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		}),
		lastRefreshTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLastRefreshTimestamp,
			Help: "Unix timestamp of the last completed cache refresh cycle",
		}),
	}
}

// Register registers all collectors with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.rankRequests,
		m.rankDuration,
		m.cacheInserts,
		m.refreshTotal,
		m.refreshDuration,
		m.lastRefreshTimestamp,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// ObserveRank records a completed rank request.
func (m *Metrics) ObserveRank(kind, source string, seconds float64) {
	m.rankRequests.WithLabelValues(kind, source).Inc()
	m.rankDuration.WithLabelValues(kind).Observe(seconds)
}

// AddCacheInserts records rows newly inserted into the score cache.
func (m *Metrics) AddCacheInserts(n int) {
	if n > 0 {
		m.cacheInserts.Add(float64(n))
	}
}

// ObserveRefresh records a completed refresh cycle.
func (m *Metrics) ObserveRefresh(status string, seconds float64, completedAtUnix float64) {
	m.refreshTotal.WithLabelValues(status).Inc()
	m.refreshDuration.Observe(seconds)
	if status == StatusSuccess {
		m.lastRefreshTimestamp.Set(completedAtUnix)
	}
}
