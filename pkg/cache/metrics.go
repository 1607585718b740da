package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// cacheHits tracks cache hits by namespace ("fresh", "stale").
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_cache_hits_total",
			Help: "Total number of rate cache hits",
		},
		[]string{"namespace"},
	)

	// cacheMisses tracks cache misses by namespace.
	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_cache_misses_total",
			Help: "Total number of rate cache misses",
		},
		[]string{"namespace"},
	)

	// cacheErrors tracks Redis operation errors.
	cacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_cache_errors_total",
			Help: "Total number of rate cache operation errors",
		},
		[]string{"operation"}, // "get", "put"
	)
)
