// Package faulttolerance provides a circuit breaker and retry helpers used
// wherever the core calls out to something that can be slow or down: the
// TimeSeriesSink write path and the PlatformDetector's authoritative
// lookup.
package faulttolerance

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State is the current state of a CircuitBreaker.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	MaxFailures      int
	Timeout          time.Duration
	SuccessThreshold int
	Name             string
}

// CircuitBreaker trips open after MaxFailures consecutive failures, refuses
// calls for Timeout, then allows a trial batch through in half-open state
// before closing again.
type CircuitBreaker struct {
	config          CircuitBreakerConfig
	state           State
	failures        int
	successes       int
	lastFailureTime time.Time
	mu              sync.RWMutex
	logger          *logrus.Logger
}

// NewCircuitBreaker returns a ready CircuitBreaker, filling unset config
// fields with defaults.
func NewCircuitBreaker(config CircuitBreakerConfig, logger *logrus.Logger) *CircuitBreaker {
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.Timeout <= 0 {
		config.Timeout = 60 * time.Second
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Name == "" {
		config.Name = "CircuitBreaker"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CircuitBreaker{config: config, state: StateClosed, logger: logger}
}

var (
	ErrOpen           = errors.New("circuit breaker is open")
	ErrTooManyTrials  = errors.New("too many trial requests while half-open")
)

// Execute runs fn under breaker protection, returning ErrOpen without
// calling fn if the breaker is currently tripped.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if !cb.canExecute() {
		return ErrOpen
	}
	err := fn()
	cb.recordResult(err)
	return err
}

func (cb *CircuitBreaker) canExecute() bool {
	cb.mu.RLock()
	state := cb.state
	lastFailure := cb.lastFailureTime
	cb.mu.RUnlock()

	switch state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(lastFailure) <= cb.config.Timeout {
			return false
		}
		cb.mu.Lock()
		if cb.state == StateOpen && time.Since(cb.lastFailureTime) > cb.config.Timeout {
			cb.setState(StateHalfOpen)
			cb.successes = 0
		}
		half := cb.state == StateHalfOpen
		cb.mu.Unlock()
		return half
	case StateHalfOpen:
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.failures++
		cb.successes = 0
		cb.lastFailureTime = time.Now()

		switch cb.state {
		case StateClosed:
			if cb.failures >= cb.config.MaxFailures {
				cb.setState(StateOpen)
				cb.logger.Warnf("[%s] opened after %d consecutive failures", cb.config.Name, cb.failures)
			}
		case StateHalfOpen:
			cb.setState(StateOpen)
			cb.logger.Warnf("[%s] reopened from half-open on trial failure", cb.config.Name)
		}
		return
	}

	cb.failures = 0
	cb.successes++
	if cb.state == StateHalfOpen && cb.successes >= cb.config.SuccessThreshold {
		cb.setState(StateClosed)
		cb.logger.Infof("[%s] closed after %d consecutive successes", cb.config.Name, cb.successes)
	}
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state != s {
		old := cb.state
		cb.state = s
		cb.logger.Infof("[%s] %s -> %s", cb.config.Name, old, s)
	}
}

// State reports the breaker's current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}
