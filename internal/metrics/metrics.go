package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// CacheLookupsTotal counts snapshot reads by resulting cache state.
	CacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Geospatial snapshot cache lookups, labeled by state (fresh, stale, absent).",
	}, []string{"state"})

	// CacheRefreshesTotal counts background provider refreshes by outcome.
	CacheRefreshesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "cache",
		Name:      "refreshes_total",
		Help:      "Background snapshot refreshes, labeled by result.",
	}, []string{"result"})

	// CacheEntries is the number of snapshots currently held in memory.
	CacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "harvest",
		Subsystem: "cache",
		Name:      "entries",
		Help:      "Number of geospatial snapshots held in memory.",
	})

	// SourceCallsTotal counts calls to external collaborators.
	SourceCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "sources",
		Name:      "calls_total",
		Help:      "Calls to external data sources, labeled by source and result.",
	}, []string{"source", "result"})

	// RecommendationsTotal counts emitted recommendations.
	RecommendationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "engine",
		Name:      "recommendations_total",
		Help:      "Recommendations emitted, labeled by action and data quality.",
	}, []string{"action", "quality"})

	// RecommendationDurationSeconds is the time from request to final fragment.
	RecommendationDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "harvest",
		Subsystem: "engine",
		Name:      "recommendation_duration_seconds",
		Help:      "Time to produce all fragments of a recommendation.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 1.5, 2, 3, 5},
	})

	HistoryErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "harvest",
		Subsystem: "engine",
		Name:      "history_errors_total",
		Help:      "Total number of failed recommendation history writes.",
	})
)

// Register registers engine metrics with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			CacheLookupsTotal,
			CacheRefreshesTotal,
			CacheEntries,
			SourceCallsTotal,
			RecommendationsTotal,
			RecommendationDurationSeconds,
			HistoryErrorsTotal,
		)
	})
}

// Result maps an error onto the "ok"/"error" label pair.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
