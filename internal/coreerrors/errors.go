// Package coreerrors collects the sentinel errors shared across the
// tracking core so callers can branch with errors.Is instead of string
// matching.
package coreerrors

import "errors"

var (
	// ErrBackpressure is returned by DataProcessor.Submit when the ingest
	// queue is full and the caller should apply backpressure upstream.
	ErrBackpressure = errors.New("processor: queue full, backpressure applied")

	// ErrSinkUnavailable is returned when the configured TimeSeriesSink's
	// circuit breaker is open.
	ErrSinkUnavailable = errors.New("sink: unavailable, circuit open")

	// ErrNotTracked is returned by Tracker operations addressed at a mint
	// that has no current snapshot.
	ErrNotTracked = errors.New("tracker: mint is not tracked")

	// ErrAlreadyTracked is returned when a mint is submitted for initial
	// tracking but already has a current snapshot.
	ErrAlreadyTracked = errors.New("tracker: mint is already tracked")

	// ErrInGracePeriod is returned when a cleanup evaluation is skipped
	// because the mint has not yet exceeded its minimum tracked age.
	ErrInGracePeriod = errors.New("tracker: mint is within its cleanup grace period")

	// ErrUnknownPlatform is returned when PlatformDetector cannot resolve
	// a mint to a known platform by any method, including fallback.
	ErrUnknownPlatform = errors.New("platform: could not be determined")

	// ErrInvalidMint is returned when a mint fails domain.ValidateMint.
	ErrInvalidMint = errors.New("processor: invalid mint address")

	// ErrCleanupInProgress is returned when a second cleanup evaluation is
	// requested for a mint that already has one in flight.
	ErrCleanupInProgress = errors.New("tracker: cleanup evaluation already in progress for mint")
)
