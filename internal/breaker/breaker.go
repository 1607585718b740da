// Package breaker implements the three-state circuit breaker that wraps
// upstream calls: CLOSED → OPEN on a rolling-window failure threshold,
// OPEN → HALF_OPEN after a sleep window, HALF_OPEN → CLOSED after
// consecutive probe successes or back to OPEN on a single failure.
package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// State is one of CLOSED, OPEN, HALF_OPEN.
type State int

const (
	Closed State = iota
	Open
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// ErrOpen is returned by Call when the breaker is OPEN and the wrapped
// call is rejected without being invoked.
var ErrOpen = errors.New("breaker open")

// countable is implemented by errors that know whether they should count
// toward the breaker's rolling failure window (see upstream.Error).
type countable interface {
	CountsTowardBreaker() bool
}

var (
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "breaker_state",
		Help: "Circuit breaker state: 0=closed 1=open 2=half_open",
	})

	breakerStateTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "breaker_state_transitions_total",
		Help: "Circuit breaker state transitions",
	}, []string{"from", "to"})

	breakerRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "breaker_rejections_total",
		Help: "Calls rejected because the breaker was open",
	})
)

// Config holds the breaker's tunables, named per spec §3's Breaker State
// parameters.
type Config struct {
	// FailureThreshold (F_open) is the number of counted failures within
	// Window that trips the breaker.
	FailureThreshold int

	// MinObservations (V) is the minimum number of calls observed within
	// Window before a trip decision is made.
	MinObservations int

	// Window (W) is the rolling window over which failures are counted.
	Window time.Duration

	// SleepWindow (S) is how long the breaker stays OPEN before probing.
	SleepWindow time.Duration

	// SuccessThreshold (R) is the number of consecutive HALF_OPEN
	// successes required to close the breaker.
	SuccessThreshold int
}

// DefaultConfig returns the defaults named in spec §3.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		MinObservations:  5,
		Window:           30 * time.Second,
		SleepWindow:      30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Breaker is a process-local circuit breaker guarding a single upstream.
type Breaker struct {
	mu     sync.Mutex
	cfg    Config
	logger zerolog.Logger

	state State

	observations []time.Time // all calls admitted while CLOSED, within cfg.Window
	failures     []time.Time // countable failures admitted while CLOSED, within cfg.Window

	openedAt        time.Time
	halfOpenSuccess int
}

// New creates a Breaker with the given configuration, starting CLOSED.
func New(cfg Config) *Breaker {
	return &Breaker{
		cfg:    cfg,
		state:  Closed,
		logger: log.With().Str("component", "breaker").Logger(),
	}
}

// State returns the current state, resolving an OPEN→HALF_OPEN transition
// if the sleep window has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resolveState()
}

// resolveState must be called with b.mu held.
func (b *Breaker) resolveState() State {
	if b.state == Open && time.Since(b.openedAt) >= b.cfg.SleepWindow {
		b.transitionTo(HalfOpen)
	}
	return b.state
}

// Call invokes fn unless the breaker is OPEN, in which case it returns
// ErrOpen without invoking fn. The result is recorded against the
// breaker's state machine: errors implementing countable only count
// toward the failure window when CountsTowardBreaker() is true; a nil
// error, or a non-countable error, is treated as success for state
// machine purposes (but the original error/value is still returned to
// the caller).
func (b *Breaker) Call(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	b.mu.Lock()
	state := b.resolveState()
	if state == Open {
		b.mu.Unlock()
		breakerRejections.Inc()
		return "", ErrOpen
	}
	b.mu.Unlock()

	value, err := fn(ctx)

	counts := false
	if err != nil {
		var c countable
		if errors.As(err, &c) {
			counts = c.CountsTowardBreaker()
		} else {
			counts = true
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if counts {
		b.recordFailure()
	} else {
		b.recordSuccess()
	}

	return value, err
}

// recordFailure must be called with b.mu held.
func (b *Breaker) recordFailure() {
	now := time.Now()
	switch b.state {
	case Closed:
		b.observations = pruneAndAppend(b.observations, now, b.cfg.Window)
		b.failures = pruneAndAppend(b.failures, now, b.cfg.Window)
		if len(b.observations) >= b.cfg.MinObservations && len(b.failures) >= b.cfg.FailureThreshold {
			b.transitionTo(Open)
		}
	case HalfOpen:
		b.transitionTo(Open)
	}
}

// recordSuccess must be called with b.mu held.
func (b *Breaker) recordSuccess() {
	now := time.Now()
	switch b.state {
	case Closed:
		b.observations = pruneAndAppend(b.observations, now, b.cfg.Window)
	case HalfOpen:
		b.halfOpenSuccess++
		if b.halfOpenSuccess >= b.cfg.SuccessThreshold {
			b.transitionTo(Closed)
		}
	}
}

// transitionTo must be called with b.mu held.
func (b *Breaker) transitionTo(newState State) {
	if newState == b.state {
		return
	}
	from := b.state
	b.state = newState
	breakerStateTransitions.WithLabelValues(from.String(), newState.String()).Inc()
	breakerState.Set(float64(newState))
	b.logger.Info().Str("from", from.String()).Str("to", newState.String()).Msg("breaker state change")

	switch newState {
	case Closed:
		b.observations = nil
		b.failures = nil
		b.halfOpenSuccess = 0
	case Open:
		b.openedAt = time.Now()
		b.halfOpenSuccess = 0
	case HalfOpen:
		b.halfOpenSuccess = 0
	}
}

func pruneAndAppend(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	cutoff := now.Add(-window)
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return append(kept, now)
}
