// Package metrics exposes Prometheus instrumentation for recommendations, poster
// lookups and catalog reloads.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecommendRequests counts recommendation lookups by result ("ok", "not_found", "unavailable").
	RecommendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_recommend_requests_total",
			Help: "Total number of recommendation lookups",
		},
		[]string{"result"},
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "osusume_recommend_duration_seconds",
			Help:    "Duration of top-k similarity lookups in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1},
		},
	)

	// PosterFetches counts poster lookups by result ("found", "no_image", "error", "rejected").
	PosterFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_poster_fetches_total",
			Help: "Total number of poster URL lookups against the metadata API",
		},
		[]string{"result"},
	)

	CatalogReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_catalog_reloads_total",
			Help: "Total number of catalog loads by result",
		},
		[]string{"result"},
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osusume_catalog_items",
			Help: "Number of items in the currently served catalog",
		},
	)

	// CircuitBreakerState is 0 = closed, 1 = half-open, 2 = open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osusume_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osusume_circuit_breaker_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)
