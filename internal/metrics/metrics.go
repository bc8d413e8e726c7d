// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animelist_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	// Recommendation engine
	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "animelist_recommend_duration_seconds",
			Help:    "End-to-end duration of a recommendation request",
			Buckets: prometheus.DefBuckets,
		},
	)

	RecommendResults = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "animelist_recommend_results",
			Help:    "Number of items returned per recommendation request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
		},
	)

	RecommendEmpty = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animelist_recommend_empty_total",
			Help: "Recommendation requests that produced no preference vector",
		},
		[]string{"reason"},
	)

	VectorSpaceBuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "animelist_vector_space_build_seconds",
			Help:    "Time spent building the TF-IDF vector space",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	VocabularySize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animelist_vocabulary_terms",
			Help: "Number of terms in the most recently built vocabulary",
		},
	)

	VectorSpaceCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animelist_vector_space_cache_hits_total",
			Help: "Vector space lookups served from cache",
		},
	)

	VectorSpaceCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animelist_vector_space_cache_misses_total",
			Help: "Vector space lookups that required a rebuild",
		},
	)

	// Catalog
	SnapshotLoads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "animelist_catalog_snapshot_loads_total",
			Help: "Catalog snapshot loads by outcome",
		},
		[]string{"outcome"}, // cached, loaded, error
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "animelist_catalog_items",
			Help: "Items in the current catalog snapshot",
		},
	)

	CatalogRecordsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "animelist_catalog_records_imported_total",
			Help: "Records written by the bulk catalog loader",
		},
	)

	// Search
	SearchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "animelist_search_duration_seconds",
			Help:    "Duration of catalog searches",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"}, // title, tag
	)
)

// RecordHTTPRequest observes one served HTTP request.
func RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordRecommendation observes one recommendation request.
func RecordRecommendation(duration time.Duration, results int) {
	RecommendDuration.Observe(duration.Seconds())
	RecommendResults.Observe(float64(results))
}

// RecordVectorSpaceBuild observes a vector space rebuild.
func RecordVectorSpaceBuild(duration time.Duration, terms int) {
	VectorSpaceBuildDuration.Observe(duration.Seconds())
	VocabularySize.Set(float64(terms))
}
