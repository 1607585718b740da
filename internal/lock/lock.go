// Package lock implements the cross-process distributed mutex the pricing
// coordinator uses to eliminate thundering-herd upstream traffic: a
// Redis SET-NX fencing-token lock with a bounded acquire-wait budget, a
// fixed poll cadence, and a Lua-scripted compare-and-delete release so a
// holder only ever releases the lock it actually holds.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when a lock could not be acquired within the
// wait budget because another holder owns it.
var ErrUnavailable = errors.New("lock unavailable")

// ErrStoreUnavailable is returned when the Redis operations backing the
// lock itself fail (as opposed to the lock being contended).
var ErrStoreUnavailable = errors.New("shared store unavailable")

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end
`)

var (
	acquireAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lock_acquire_attempts_total",
		Help: "Lock acquisition attempts, including retries",
	}, []string{"name"})

	acquireFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lock_acquire_failures_total",
		Help: "Lock acquisitions that exhausted the wait budget",
	}, []string{"name"})

	holdDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lock_hold_duration_seconds",
		Help:    "Time spent holding a lock",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"name"})
)

// Locker is a Redis-backed distributed mutex.
type Locker struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// New creates a Locker over the given Redis client.
func New(redisClient *redis.Client) *Locker {
	return &Locker{
		redis:  redisClient,
		logger: log.With().Str("component", "lock").Logger(),
	}
}

func lockKey(name string) string {
	return "lock:" + name
}

// WithLock acquires a named lock, runs body while holding it, and
// guarantees release on every exit path (normal return, error, or ctx
// cancellation). It polls every pollInterval until either it acquires the
// lock or waitBudget elapses, in which case it returns ErrUnavailable.
// If holdTTL elapses before body returns, the lock may be lost mid-flight
// (see spec §4.D(4)); release is still attempted but will be a no-op if
// another holder has since taken over the key.
func (l *Locker) WithLock(ctx context.Context, name string, holdTTL, waitBudget, pollInterval time.Duration, body func(context.Context) (string, error)) (string, error) {
	token := uuid.NewString()
	key := lockKey(name)

	deadline := time.Now().Add(waitBudget)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		acquireAttempts.WithLabelValues(name).Inc()
		ok, err := l.redis.SetNX(ctx, key, token, holdTTL).Result()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if ok {
			l.logger.Debug().Str("name", name).Str("token", token).Msg("lock acquired")
			break
		}

		if time.Now().After(deadline) {
			acquireFailures.WithLabelValues(name).Inc()
			l.logger.Warn().Str("name", name).Dur("wait_budget", waitBudget).Msg("lock acquire timed out")
			return "", ErrUnavailable
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			continue
		}
	}

	start := time.Now()
	defer func() {
		holdDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		if err := l.release(context.WithoutCancel(ctx), key, token); err != nil {
			l.logger.Warn().Err(err).Str("name", name).Msg("lock release failed")
		} else {
			l.logger.Debug().Str("name", name).Msg("lock released")
		}
	}()

	return body(ctx)
}

func (l *Locker) release(ctx context.Context, key, token string) error {
	_, err := releaseScript.Run(ctx, l.redis, []string{key}, token).Result()
	if err != nil && err != redis.Nil {
		return err
	}
	return nil
}
