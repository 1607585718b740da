// Package metrics provides a centralized Prometheus registry reference for
// the pricing proxy. All metrics are defined in their respective packages
// (cache, breaker, lock, coordinator, upstream) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the pricing proxy.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Cache Metrics (pkg/cache):
//   - rate_cache_hits_total{namespace} (Counter): cache hits by namespace ("fresh", "stale")
//   - rate_cache_misses_total{namespace} (Counter): cache misses by namespace
//   - rate_cache_errors_total{operation} (Counter): Redis operation errors ("get", "put")
//
// Circuit Breaker Metrics (internal/breaker):
//   - breaker_state (Gauge): current state, 0=closed 1=open 2=half_open
//   - breaker_state_transitions_total{from,to} (Counter): state transitions
//   - breaker_rejections_total (Counter): calls rejected while OPEN
//
// Distributed Lock Metrics (internal/lock):
//   - lock_acquire_attempts_total{name} (Counter): acquisition attempts, including retries
//   - lock_acquire_failures_total{name} (Counter): acquisitions that exhausted the wait budget
//   - lock_hold_duration_seconds{name} (Histogram): time spent holding a lock
//
// Upstream Client Metrics (internal/upstream):
//   - upstream_requests_total{outcome} (Counter): calls by outcome (success, timeout,
//     client, server, network, protocol, generic)
//   - upstream_request_duration_seconds (Histogram): call latency
//
// Coordinator Metrics (internal/coordinator):
//   - coordinator_resolutions_total{result} (Counter): resolutions by result
//     (cache_hit, upstream_fetch, busy, error); stale fallbacks served by
//     the HTTP edge are not counted here
//
// Example Prometheus Queries:
//
//   # Cache hit rate (fresh namespace)
//   sum(rate(rate_cache_hits_total{namespace="fresh"}[5m])) /
//   (sum(rate(rate_cache_hits_total{namespace="fresh"}[5m])) + sum(rate(rate_cache_misses_total{namespace="fresh"}[5m])))
//
//   # Breaker open episodes
//   breaker_state == 1
//
//   # Upstream error rate
//   sum(rate(upstream_requests_total{outcome!="success"}[5m])) / sum(rate(upstream_requests_total[5m]))
//
//   # P95 upstream latency
//   histogram_quantile(0.95, rate(upstream_request_duration_seconds_bucket[5m]))
