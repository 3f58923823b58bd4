// Package resilience provides fault-tolerance primitives used around the
// catalog's external dependencies. The circuit breaker keeps a failing cache
// out of the request path, Retry covers catalog loads, and WithTimeoutValue
// bounds each attempt.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker refuses calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the phase of a circuit breaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig controls when the breaker trips and how it recovers.
// Zero values take defaults.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int

	// IsFailure decides whether an error counts against the dependency. By
	// default every error does except context cancellation, which is the
	// caller giving up rather than the dependency failing.
	IsFailure func(err error) bool

	// OnStateChange is called, outside the breaker's lock, after every
	// transition.
	OnStateChange func(name string, from, to State)
}

func defaultCBConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold:    5,
		ResetTimeout:        30 * time.Second,
		HalfOpenMaxRequests: 1,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}
}

// CircuitBreaker opens after FailureThreshold consecutive failures, refuses
// calls for ResetTimeout, then lets HalfOpenMaxRequests trial calls through.
// A successful trial closes it again; a failed one reopens it.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger
	now    func() time.Time

	mu          sync.Mutex
	state       State
	failures    int
	openedAt    time.Time
	trialsInUse int
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	defaults := defaultCBConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = defaults.ResetTimeout
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = defaults.HalfOpenMaxRequests
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaults.IsFailure
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
		now:    time.Now,
	}
}

// Execute runs fn unless the breaker is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

// GetState returns the current state. An open breaker whose reset timeout
// has elapsed still reports open until the next call tries it.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset closes the breaker and forgets past failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	from := cb.state
	cb.failures = 0
	cb.trialsInUse = 0
	cb.state = StateClosed
	cb.mu.Unlock()
	cb.notify(from, StateClosed, "reset")
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	switch cb.state {
	case StateOpen:
		remaining := cb.cfg.ResetTimeout - cb.now().Sub(cb.openedAt)
		if remaining > 0 {
			cb.mu.Unlock()
			return fmt.Errorf("%w: %s (retry after %v)", ErrCircuitOpen, cb.name, remaining.Round(time.Millisecond))
		}
		cb.state = StateHalfOpen
		cb.trialsInUse = 1
		cb.mu.Unlock()
		cb.notify(StateOpen, StateHalfOpen, "reset timeout elapsed")
		return nil
	case StateHalfOpen:
		defer cb.mu.Unlock()
		if cb.trialsInUse >= cb.cfg.HalfOpenMaxRequests {
			return fmt.Errorf("%w: %s (trial call in flight)", ErrCircuitOpen, cb.name)
		}
		cb.trialsInUse++
		return nil
	default:
		cb.mu.Unlock()
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	failed := err != nil && cb.cfg.IsFailure(err)

	cb.mu.Lock()
	from := cb.state
	switch {
	case !failed && from == StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
		cb.trialsInUse = 0
	case !failed:
		cb.failures = 0
	case from == StateHalfOpen:
		cb.state = StateOpen
		cb.openedAt = cb.now()
		cb.trialsInUse = 0
	case from == StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
			cb.openedAt = cb.now()
		}
	}
	to, failures := cb.state, cb.failures
	cb.mu.Unlock()

	if from != to {
		reason := "trial call succeeded"
		if failed {
			reason = fmt.Sprintf("%d consecutive failures", failures)
			if from == StateHalfOpen {
				reason = "trial call failed"
			}
		}
		cb.notify(from, to, reason)
	}
}

func (cb *CircuitBreaker) notify(from, to State, reason string) {
	if from == to {
		return
	}
	level := slog.LevelInfo
	if to == StateOpen {
		level = slog.LevelWarn
	}
	cb.logger.Log(context.Background(), level, "circuit state changed",
		"from", from.String(),
		"to", to.String(),
		"reason", reason,
	)
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, from, to)
	}
}
