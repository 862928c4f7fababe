package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rate fetch outcomes
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Cache lookup outcomes
const (
	CacheHit      = "hit"
	CacheStale    = "stale"
	CacheMiss     = "miss"
	CacheFallback = "fallback"
)

// Metrics holds the collectors exported on /metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Outbound rate API calls by base currency and result
	RateFetchTotal *prometheus.CounterVec
	// Outbound rate API latency
	RateFetchDuration prometheus.Histogram
	// Rate table lookups by cache outcome
	RateCacheLookups *prometheus.CounterVec
	// Pair lookups that had no rate and degraded to 1.0
	RateMissingTotal *prometheus.CounterVec

	// Settlement calculations by outcome (ok, invalid)
	SettlementsTotal *prometheus.CounterVec
	// Legs converted through a non-identity rate
	LegsConvertedTotal prometheus.Counter

	// Groups removed by the cleanup worker
	GroupsCleanedTotal prometheus.Counter
	// Connected WebSocket clients
	WebSocketClients prometheus.Gauge
}

// New registers every collector on reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RateFetchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokewise_rate_fetch_total",
				Help: "Exchange rate API fetches",
			},
			[]string{"base_currency", "result"},
		),
		RateFetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "brokewise_rate_fetch_duration_seconds",
				Help:    "Exchange rate API fetch latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		RateCacheLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokewise_rate_cache_lookups_total",
				Help: "Rate table lookups by cache outcome",
			},
			[]string{"outcome"},
		),
		RateMissingTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokewise_rate_missing_total",
				Help: "Currency pairs absent from a rate table",
			},
			[]string{"from", "to"},
		),
		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "brokewise_settlements_total",
				Help: "Settlement calculations",
			},
			[]string{"outcome"},
		),
		LegsConvertedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brokewise_legs_converted_total",
				Help: "Money legs converted to a different base currency",
			},
		),
		GroupsCleanedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "brokewise_groups_cleaned_total",
				Help: "Inactive groups deleted by cleanup",
			},
		),
		WebSocketClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "brokewise_websocket_clients",
				Help: "Connected WebSocket clients",
			},
		),
	}
}

// ObserveRateFetch records one outbound fetch
func (m *Metrics) ObserveRateFetch(base string, seconds float64, err error) {
	if m == nil {
		return
	}
	result := ResultSuccess
	if err != nil {
		result = ResultFailure
	}
	m.RateFetchTotal.WithLabelValues(base, result).Inc()
	m.RateFetchDuration.Observe(seconds)
}

// ObserveCacheLookup records how a rate table request was served
func (m *Metrics) ObserveCacheLookup(outcome string) {
	if m == nil {
		return
	}
	m.RateCacheLookups.WithLabelValues(outcome).Inc()
}

// ObserveMissingRate records a pair lookup that fell back to 1.0
func (m *Metrics) ObserveMissingRate(from, to string) {
	if m == nil {
		return
	}
	m.RateMissingTotal.WithLabelValues(from, to).Inc()
}

// ObserveSettlement records a calculation outcome and the number of converted legs
func (m *Metrics) ObserveSettlement(outcome string, converted int) {
	if m == nil {
		return
	}
	m.SettlementsTotal.WithLabelValues(outcome).Inc()
	m.LegsConvertedTotal.Add(float64(converted))
}

// ObserveCleanup records deleted groups
func (m *Metrics) ObserveCleanup(deleted int64) {
	if m == nil {
		return
	}
	m.GroupsCleanedTotal.Add(float64(deleted))
}

// SetWebSocketClients records the current client count
func (m *Metrics) SetWebSocketClients(n int) {
	if m == nil {
		return
	}
	m.WebSocketClients.Set(float64(n))
}
