package faulttolerance

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryConfig configures a Retryer.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	JitterRange float64
	Name        string
}

// DefaultRetryConfig returns a reasonable exponential-backoff-with-jitter
// configuration.
func DefaultRetryConfig(name string) RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   1 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
		JitterRange: 0.1,
		Name:        name,
	}
}

// RetryableFunc is a unit of work a Retryer can retry.
type RetryableFunc func() error

// Retryer retries RetryableFunc with exponential backoff and jitter.
type Retryer struct {
	config RetryConfig
	logger *logrus.Logger
	rng    *rand.Rand
}

// NewRetryer returns a ready Retryer.
func NewRetryer(config RetryConfig, logger *logrus.Logger) *Retryer {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.Multiplier <= 1.0 {
		config.Multiplier = 2.0
	}
	if config.JitterRange < 0 || config.JitterRange > 1.0 {
		config.JitterRange = 0.1
	}
	if config.Name == "" {
		config.Name = "Retryer"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Retryer{config: config, logger: logger, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Execute runs fn, retrying on error up to config.MaxAttempts times.
func (r *Retryer) Execute(ctx context.Context, fn RetryableFunc) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			if attempt > 1 {
				r.logger.Infof("[%s] succeeded on attempt %d", r.config.Name, attempt)
			}
			return nil
		}
		lastErr = err

		if attempt == r.config.MaxAttempts {
			r.logger.Errorf("[%s] all %d attempts failed, last error: %v", r.config.Name, attempt, err)
			break
		}

		delay := r.calculateDelay(attempt)
		r.logger.Warnf("[%s] attempt %d failed: %v, retrying in %v", r.config.Name, attempt, err, delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("faulttolerance: max attempts (%d) exceeded: %w", r.config.MaxAttempts, lastErr)
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.BaseDelay) * math.Pow(r.config.Multiplier, float64(attempt-1))
	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}
	if r.config.JitterRange > 0 {
		jitter := r.rng.Float64() * r.config.JitterRange * delay
		if r.rng.Float64() < 0.5 {
			delay -= jitter
		} else {
			delay += jitter
		}
	}
	if delay < float64(r.config.BaseDelay) {
		delay = float64(r.config.BaseDelay)
	}
	return time.Duration(delay)
}

// ExecuteWithCircuitBreaker runs fn through both a Retryer and a
// CircuitBreaker: each retry attempt is itself gated by the breaker, so a
// breaker trip short-circuits remaining attempts instead of waiting out
// the full backoff schedule.
func (r *Retryer) ExecuteWithCircuitBreaker(ctx context.Context, cb *CircuitBreaker, fn RetryableFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var openErr error
	err := r.Execute(ctx, func() error {
		err := cb.Execute(ctx, fn)
		if errors.Is(err, ErrOpen) {
			openErr = err
			cancel()
		}
		return err
	})
	if openErr != nil {
		return openErr
	}
	return err
}

// FixedDelaySchedule retries at a fixed, explicit sequence of delays rather
// than exponential backoff. spec.md's platform-detection authoritative
// lookup retries on {10s, 30s, 60s} and gives up after MaxAttempts within
// Window, which a plain exponential schedule cannot express exactly.
type FixedDelaySchedule struct {
	Delays      []time.Duration
	MaxAttempts int
	Window      time.Duration
}

// PendingRetry is one buffered retry attempt awaiting its next scheduled
// try.
type PendingRetry struct {
	Key         string
	Attempts    int
	FirstTried  time.Time
	NextAttempt time.Time
}

// RetryBuffer tracks fixed-delay retry state per key (e.g. per mint) and
// enforces the attempt-count-within-window cap.
type RetryBuffer struct {
	schedule FixedDelaySchedule
	mu       sync.Mutex
	pending  map[string]*PendingRetry
}

// NewRetryBuffer returns a RetryBuffer following schedule.
func NewRetryBuffer(schedule FixedDelaySchedule) *RetryBuffer {
	return &RetryBuffer{
		schedule: schedule,
		pending:  make(map[string]*PendingRetry),
	}
}

// Enqueue registers key for retry, returning the PendingRetry state. If key
// is already pending, its existing state is returned unchanged.
func (b *RetryBuffer) Enqueue(key string, now time.Time) *PendingRetry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pr, ok := b.pending[key]; ok {
		return pr
	}
	pr := &PendingRetry{
		Key:         key,
		Attempts:    0,
		FirstTried:  now,
		NextAttempt: now.Add(b.delayFor(0)),
	}
	b.pending[key] = pr
	return pr
}

// Due returns the keys whose NextAttempt has passed as of now.
func (b *RetryBuffer) Due(now time.Time) []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	var due []string
	for k, pr := range b.pending {
		if !now.Before(pr.NextAttempt) {
			due = append(due, k)
		}
	}
	return due
}

// RecordAttempt marks that key was retried at now, having failed again. It
// schedules the next attempt per schedule, or removes key once MaxAttempts
// or Window is exceeded, in which case it returns ok=false to signal the
// caller should give up.
func (b *RetryBuffer) RecordAttempt(key string, now time.Time) (pr *PendingRetry, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	pr, exists := b.pending[key]
	if !exists {
		return nil, false
	}
	pr.Attempts++

	if pr.Attempts >= b.schedule.MaxAttempts || now.Sub(pr.FirstTried) >= b.schedule.Window {
		delete(b.pending, key)
		return pr, false
	}

	pr.NextAttempt = now.Add(b.delayFor(pr.Attempts))
	return pr, true
}

// Succeed removes key from the buffer after a successful retry.
func (b *RetryBuffer) Succeed(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.pending, key)
}

func (b *RetryBuffer) delayFor(attempt int) time.Duration {
	if len(b.schedule.Delays) == 0 {
		return 0
	}
	if attempt >= len(b.schedule.Delays) {
		return b.schedule.Delays[len(b.schedule.Delays)-1]
	}
	return b.schedule.Delays[attempt]
}
