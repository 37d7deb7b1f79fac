// Package platform resolves a mint to the domain.Platform it launched on,
// per spec.md §4.1: a cheap suffix/program-ID rule first, an authoritative
// external lookup second, and a low-confidence fallback last, with results
// memoized and failed lookups retried on a fixed schedule.
package platform

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/faulttolerance"
)

// Known program IDs used by the mint-pattern/program-ID rule. These mirror
// the launch-program addresses a mint's creation transaction invokes.
const (
	ProgramPumpFun = "6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P"
	ProgramBonk    = "BonkFN1yVCbNzQdxNAJPMe6D9UvyUEbdU4E7fkbNZAHK"
	ProgramRaydium = "675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"
)

// programIDPlatforms maps a known launch-program ID to the platform it
// identifies.
var programIDPlatforms = map[string]domain.Platform{
	ProgramPumpFun: domain.PlatformPump,
	ProgramBonk:    domain.PlatformBonk,
	ProgramRaydium: domain.PlatformRaydium,
}

// AuthoritativeLookup is an external source of truth for a mint's platform,
// e.g. an RPC call that inspects the mint's creation transaction. It is
// deliberately narrow so tests can fake it trivially.
type AuthoritativeLookup interface {
	LookupPlatform(ctx context.Context, mint string) (domain.Platform, error)
}

// Cache memoizes detection results, aged out after the configured TTL.
// A Redis-backed implementation (RedisCache) lives in rediscache.go;
// NewMemCache returns an in-process map used by tests.
type Cache interface {
	Get(ctx context.Context, mint string) (domain.DetectionResult, bool)
	Set(ctx context.Context, mint string, result domain.DetectionResult, ttl time.Duration)
}

// Config configures a Detector.
type Config struct {
	CacheTTL time.Duration

	// RetryDelays and RetryWindow bound the authoritative-lookup retry
	// buffer: spec.md §4.1 asks for fixed delays of 10s/30s/60s, capped
	// at 3 attempts within a 5 minute window.
	RetryDelays []time.Duration
	RetryWindow time.Duration
	MaxRetries  int
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		CacheTTL:    24 * time.Hour,
		RetryDelays: []time.Duration{10 * time.Second, 30 * time.Second, 60 * time.Second},
		RetryWindow: 5 * time.Minute,
		MaxRetries:  3,
	}
}

// Detector implements the three-stage detection strategy.
type Detector struct {
	cfg    Config
	cache  Cache
	lookup AuthoritativeLookup
	logger *slog.Logger

	retryBuf *faulttolerance.RetryBuffer

	fallbackMu sync.Mutex
	fallback   map[string]domain.DetectionResult
}

// NewDetector wires a Detector from its dependencies. lookup may be nil, in
// which case detection never advances past the mint-pattern rule and falls
// straight to MethodFallback.
func NewDetector(cfg Config, cache Cache, lookup AuthoritativeLookup, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:      cfg,
		cache:    cache,
		lookup:   lookup,
		logger:   logger,
		retryBuf: faulttolerance.NewRetryBuffer(faulttolerance.FixedDelaySchedule{Delays: cfg.RetryDelays, MaxAttempts: cfg.MaxRetries, Window: cfg.RetryWindow}),
		fallback: make(map[string]domain.DetectionResult),
	}
}

// Detect resolves mint's platform, given the raw creation-transaction
// program ID when the caller already has it (empty string if unknown).
func (d *Detector) Detect(ctx context.Context, mint, programID string) domain.DetectionResult {
	if cached, ok := d.cache.Get(ctx, mint); ok {
		return cached
	}

	if result, ok := detectByProgramID(programID); ok {
		d.cache.Set(ctx, mint, result, d.cfg.CacheTTL)
		return result
	}
	if result, ok := detectBySuffix(mint); ok {
		d.cache.Set(ctx, mint, result, d.cfg.CacheTTL)
		return result
	}

	if d.lookup != nil {
		if p, err := d.lookup.LookupPlatform(ctx, mint); err == nil && p.IsKnown() {
			result := domain.DetectionResult{Platform: p, Confidence: 0.95, Method: domain.MethodProgramID}
			d.cache.Set(ctx, mint, result, d.cfg.CacheTTL)
			d.retryBuf.Succeed(mint)
			return result
		}
		d.scheduleRetry(mint)
	}

	result := domain.DetectionResult{Platform: domain.PlatformUnknown, Confidence: 0.1, Method: domain.MethodFallback}
	d.rememberFallback(mint, result)
	return result
}

// detectByProgramID applies the highest-confidence rule: an exact known
// launch program ID.
func detectByProgramID(programID string) (domain.DetectionResult, bool) {
	if programID == "" {
		return domain.DetectionResult{}, false
	}
	p, ok := programIDPlatforms[programID]
	if !ok {
		return domain.DetectionResult{}, false
	}
	return domain.DetectionResult{Platform: p, Confidence: 1.0, Method: domain.MethodProgramID}, true
}

// detectBySuffix applies the cheap mint-address suffix heuristic pump.fun
// and similar launchpads use ("pump", "bonk" vanity suffixes).
func detectBySuffix(mint string) (domain.DetectionResult, bool) {
	switch {
	case strings.HasSuffix(mint, "pump"):
		return domain.DetectionResult{Platform: domain.PlatformPump, Confidence: 0.85, Method: domain.MethodMintPattern}, true
	case strings.HasSuffix(mint, "bonk"):
		return domain.DetectionResult{Platform: domain.PlatformBonk, Confidence: 0.85, Method: domain.MethodMintPattern}, true
	case strings.HasSuffix(mint, "moon"):
		return domain.DetectionResult{Platform: domain.PlatformMoonshot, Confidence: 0.7, Method: domain.MethodMintPattern}, true
	default:
		return domain.DetectionResult{}, false
	}
}

func (d *Detector) rememberFallback(mint string, result domain.DetectionResult) {
	d.fallbackMu.Lock()
	defer d.fallbackMu.Unlock()
	d.fallback[mint] = result
}

func (d *Detector) scheduleRetry(mint string) {
	now := time.Now()
	d.retryBuf.Enqueue(mint, now)
}

// RunRetries checks the buffered retry set for due lookups and re-attempts
// them. Callers should invoke this periodically (a ticker in the
// composition root); it is not run internally so tests can drive it
// deterministically.
func (d *Detector) RunRetries(ctx context.Context) {
	now := time.Now()
	for _, mint := range d.retryBuf.Due(now) {
		if d.lookup == nil {
			continue
		}
		p, err := d.lookup.LookupPlatform(ctx, mint)
		if err == nil && p.IsKnown() {
			result := domain.DetectionResult{Platform: p, Confidence: 0.95, Method: domain.MethodProgramID}
			d.cache.Set(ctx, mint, result, d.cfg.CacheTTL)
			d.retryBuf.Succeed(mint)
			continue
		}

		if _, ok := d.retryBuf.RecordAttempt(mint, now); !ok {
			d.logger.Warn("platform: giving up on authoritative lookup", "mint", mint)
		}
	}
}
