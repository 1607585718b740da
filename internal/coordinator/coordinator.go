// Package coordinator implements the pricing coordinator: the
// orchestration state machine described in spec §4.E that wires the
// cache, the distributed lock, the circuit breaker, and the upstream
// client into a single read-through Resolve call.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gitaway/pricing-proxy/internal/breaker"
	"github.com/gitaway/pricing-proxy/internal/lock"
	"github.com/gitaway/pricing-proxy/internal/upstream"
	"github.com/gitaway/pricing-proxy/pkg/cache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrBusy is returned when a resolve attempt lost the lock race and no
// fresh value was available to serve instead.
var ErrBusy = errors.New("service temporarily busy, please retry")

// ErrStoreUnavailable is returned when the shared cache/lock store itself
// could not be reached — a distinct failure mode from lock contention.
// The coordinator never bypasses the lock on this error (see spec §9).
var ErrStoreUnavailable = errors.New("shared store unavailable")

var resolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "coordinator_resolutions_total",
	Help: "Rate resolutions by result",
}, []string{"result"})

// Timings holds the coordinator's tunables, named per spec §3.
type Timings struct {
	TFresh time.Duration // T_fresh
	TStale time.Duration // T_stale
	THold  time.Duration // T_hold
	TWait  time.Duration // T_wait
	TPoll  time.Duration // T_poll
}

// DefaultTimings returns the defaults named in spec §3.
func DefaultTimings() Timings {
	return Timings{
		TFresh: 5 * time.Minute,
		TStale: 30 * time.Minute,
		THold:  10 * time.Second,
		TWait:  5 * time.Second,
		TPoll:  100 * time.Millisecond,
	}
}

// Coordinator wires the cache, lock, breaker, and upstream client into the
// cache-probe → lock → double-check → breaker-wrapped-fetch → dual-write
// algorithm of spec §4.E.
type Coordinator struct {
	cache    *cache.Store
	lock     *lock.Locker
	breaker  *breaker.Breaker
	upstream *upstream.Client
	timings  Timings
	logger   zerolog.Logger
}

// New creates a Coordinator over the given collaborators.
func New(store *cache.Store, locker *lock.Locker, cb *breaker.Breaker, client *upstream.Client, timings Timings) *Coordinator {
	return &Coordinator{
		cache:    store,
		lock:     locker,
		breaker:  cb,
		upstream: client,
		timings:  timings,
		logger:   log.With().Str("component", "coordinator").Logger(),
	}
}

// Resolve implements spec §4.E steps 1–3: a fresh-cache probe, a
// lock-guarded double-check-then-fetch on miss, a breaker-wrapped upstream
// call, and a dual-namespace cache write before returning. fromCache is
// true when the value came from a fresh-cache read made outside the lock
// (the first probe, or the re-read after lock contention); a value taken
// through the lock, whether found by the double-check or fetched from the
// upstream, reports false.
func (c *Coordinator) Resolve(ctx context.Context, key cache.RateKey, period, hotel, room string) (value string, fromCache bool, err error) {
	v, _, err := c.cache.Get(ctx, cache.Fresh, key)
	if err == nil {
		resolutionsTotal.WithLabelValues("cache_hit").Inc()
		return v, true, nil
	}
	if err != cache.ErrMiss {
		resolutionsTotal.WithLabelValues("error").Inc()
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	c.logger.Info().Str("key", key.String()).Msg("cache miss, acquiring lock")

	result, lockErr := c.lock.WithLock(ctx, key.String(), c.timings.THold, c.timings.TWait, c.timings.TPoll,
		func(ctx context.Context) (string, error) {
			return c.fetchUnderLock(ctx, key, period, hotel, room)
		})

	switch {
	case lockErr == nil:
		resolutionsTotal.WithLabelValues("upstream_fetch").Inc()
		return result, false, nil

	case errors.Is(lockErr, lock.ErrUnavailable):
		c.logger.Warn().Str("key", key.String()).Msg("lock unavailable, checking fresh cache")
		v, _, getErr := c.cache.Get(ctx, cache.Fresh, key)
		if getErr == nil {
			resolutionsTotal.WithLabelValues("cache_hit").Inc()
			return v, true, nil
		}
		resolutionsTotal.WithLabelValues("busy").Inc()
		return "", false, ErrBusy

	case errors.Is(lockErr, lock.ErrStoreUnavailable):
		resolutionsTotal.WithLabelValues("error").Inc()
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, lockErr)

	default:
		resolutionsTotal.WithLabelValues("error").Inc()
		return "", false, lockErr
	}
}

// fetchUnderLock runs inside the distributed lock: double-check the cache,
// then on a confirmed miss call the upstream (through the breaker) and
// dual-write the result.
func (c *Coordinator) fetchUnderLock(ctx context.Context, key cache.RateKey, period, hotel, room string) (string, error) {
	v, _, err := c.cache.Get(ctx, cache.Fresh, key)
	if err == nil {
		return v, nil
	}
	if err != cache.ErrMiss {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	value, err := c.breaker.Call(ctx, func(ctx context.Context) (string, error) {
		return c.upstream.FetchRate(ctx, period, hotel, room)
	})
	if err != nil {
		return "", err
	}

	if putErr := c.cache.Put(ctx, cache.Fresh, key, value, c.timings.TFresh); putErr != nil {
		c.logger.Warn().Err(putErr).Str("key", key.String()).Msg("failed to write fresh cache entry")
	}
	if putErr := c.cache.Put(ctx, cache.Stale, key, value, c.timings.TStale); putErr != nil {
		c.logger.Warn().Err(putErr).Str("key", key.String()).Msg("failed to write stale cache entry")
	}

	return value, nil
}

// Stale returns the stale-namespace value for key, for use by the edge's
// degraded-mode fallback. It does not consult the lock or breaker.
func (c *Coordinator) Stale(ctx context.Context, key cache.RateKey) (string, error) {
	v, _, err := c.cache.Get(ctx, cache.Stale, key)
	if err != nil {
		return "", err
	}
	return v, nil
}
