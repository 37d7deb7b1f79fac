package tracker

import (
	"context"
	"strings"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/eventbus"
)

type evaluatedCandidate struct {
	mint    string
	reason  domain.CleanupReason
	details string
}

// RunCleanupLoop drives the periodic cleanup transaction on
// cfg.CleanupInterval until ctx is cancelled. Meant to be started once
// from the composition root.
func (t *Tracker) RunCleanupLoop(ctx context.Context) error {
	if !t.cfg.CleanupEnabled {
		return nil
	}
	ticker := time.NewTicker(t.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := t.runCleanupTransaction(ctx, nil, false); err != nil {
				t.logger.Error("tracker: cleanup transaction failed", "error", err)
			}
		}
	}
}

// ForceCleanup runs one immediate transaction with MAX_CLEANUP_PERCENTAGE
// overridden to percentage (capped at 0.5) and safety flags bypassed, but
// the minimum-population floor is still honored.
func (t *Tracker) ForceCleanup(ctx context.Context, percentage float64, reason string) (domain.CleanupMetrics, error) {
	if percentage > 0.5 {
		percentage = 0.5
	}
	t.logger.Info("tracker: force cleanup requested", "percentage", percentage, "reason", reason)
	metrics, err := t.runCleanupTransaction(ctx, &percentage, true)
	t.publish(eventbus.TopicEmergencyCleanupDone, map[string]any{"metrics": metrics, "reason": reason})
	return metrics, err
}

// runCleanupTransaction implements spec.md §4.3.3's three-phase state
// machine (evaluating -> confirming -> executing -> completed | failed).
func (t *Tracker) runCleanupTransaction(ctx context.Context, forcePercentage *float64, bypassSafety bool) (domain.CleanupMetrics, error) {
	t.cleanupMu.Lock()
	defer t.cleanupMu.Unlock()

	start := time.Now()

	if !bypassSafety {
		t.mu.RLock()
		blocked := t.emergencyStopped || t.cleanupPaused || t.overrideDisableCleanup
		t.mu.RUnlock()
		if blocked {
			return domain.CleanupMetrics{}, nil
		}
	}

	effectiveMaxPct := t.cfg.MaxCleanupPercentage
	if forcePercentage != nil {
		effectiveMaxPct = *forcePercentage
	}

	t.mu.Lock()
	effectiveMinTokens := t.cfg.MinTokensToKeep
	if t.overrideForceMinTokens {
		effectiveMinTokens *= 2
	}
	trackedCount := len(t.current)
	if trackedCount <= effectiveMinTokens {
		t.mu.Unlock()
		return domain.CleanupMetrics{}, nil
	}

	candidates := t.cleanupCandidates()
	var tagged []string
	var evaluated []evaluatedCandidate
	savedByWhitelist := 0
	savedByGracePeriod := 0
	now := time.Now()

	for _, m := range candidates {
		h, ok := t.health[m]
		if !ok {
			continue
		}
		h.IsBeingEvaluated = true
		tagged = append(tagged, m)

		if t.isWhitelisted(m) {
			savedByWhitelist++
			continue
		}
		age := now.Sub(h.FirstSeenTime)
		if age < t.cfg.GracePeriod {
			savedByGracePeriod++
			continue
		}
		snap := t.current[m]
		reason, details, ok := deriveReason(h, snap, now, t.cfg)
		if !ok {
			continue
		}
		evaluated = append(evaluated, evaluatedCandidate{mint: m, reason: reason, details: details})
	}
	t.mu.Unlock()

	// Phase 3 is guaranteed to run on every exit path, including a panic
	// unwinding through this function.
	defer t.clearEvaluationFlags(tagged)

	metrics := domain.CleanupMetrics{
		Timestamp:          start,
		TotalEvaluated:     len(tagged),
		SavedByWhitelist:   savedByWhitelist,
		SavedByGracePeriod: savedByGracePeriod,
	}
	for _, e := range evaluated {
		switch e.reason {
		case domain.ReasonRugged:
			metrics.RuggedDetected++
		case domain.ReasonInactive:
			metrics.InactiveDetected++
		case domain.ReasonLowVolume:
			metrics.LowVolumeDetected++
		}
	}

	maxRemovable := int(float64(trackedCount) * effectiveMaxPct)
	allowed := trackedCount - effectiveMinTokens
	if maxRemovable < allowed {
		allowed = maxRemovable
	}
	if allowed < 0 {
		allowed = 0
	}
	if allowed > len(evaluated) {
		allowed = len(evaluated)
	}
	metrics.SavedByLimit = len(evaluated) - allowed

	selected := evaluated[:allowed]
	for _, e := range selected {
		if _, removed := t.executeUntrack(ctx, e); removed {
			metrics.ActuallyRemoved++
		}
	}

	metrics.ExecutionTimeMs = time.Since(start).Milliseconds()

	if metrics.TotalEvaluated > 0 {
		if err := t.sink.WriteCleanupMetrics(ctx, metrics); err != nil {
			t.logger.Error("tracker: failed to write cleanup metrics", "error", err)
		}
		t.publish(eventbus.TopicCleanupMetrics, metrics)
	}

	return metrics, nil
}

// executeUntrack re-checks the condition against the live snapshot (it
// may have changed since phase 1) and, if still satisfied, removes the
// mint from every piece of tracker state, writes the audit record, and
// unsubscribes from the feed.
func (t *Tracker) executeUntrack(ctx context.Context, e evaluatedCandidate) (domain.CleanupEvent, bool) {
	t.mu.Lock()
	h, hOk := t.health[e.mint]
	snap, sOk := t.current[e.mint]
	if !hOk || !sOk {
		t.mu.Unlock()
		return domain.CleanupEvent{}, false
	}
	reason, details, ok := deriveReason(h, snap, time.Now(), t.cfg)
	if !ok {
		t.mu.Unlock()
		return domain.CleanupEvent{}, false
	}

	ce := domain.CleanupEvent{
		Mint:            e.mint,
		Symbol:          snap.Symbol,
		Platform:        snap.Platform,
		Reason:          reason,
		Details:         details,
		Timestamp:       time.Now(),
		FinalPrice:      snap.Price,
		FinalVolume:     snap.Volume24h,
		FinalLiquidity:  snap.Liquidity,
		FinalMarketCap:  snap.MarketCap,
		PeakPrice:       h.PeakPrice,
		PeakVolume:      h.PeakVolume24h,
		TrackedDuration: time.Since(h.FirstSeenTime),
		TotalTrades:     h.TotalTrades,
	}

	delete(t.current, e.mint)
	delete(t.history, e.mint)
	delete(t.health, e.mint)
	t.removeFromIndices(e.mint)
	for id, a := range t.alerts {
		if a.Mint == e.mint {
			delete(t.alerts, id)
		}
	}
	prefix := e.mint + "|"
	for k := range t.trends {
		if strings.HasPrefix(k, prefix) {
			delete(t.trends, k)
		}
	}
	t.mu.Unlock()

	// In-memory removal is authoritative; the audit write is best-effort
	// and must not block or reverse the untrack.
	if err := t.sink.WriteCleanupEvent(ctx, ce); err != nil {
		t.logger.Error("tracker: failed to write cleanup event", "mint", e.mint, "error", err)
	}
	t.publish(eventbus.TopicTokenCleanedUp, map[string]any{
		"mint":     e.mint,
		"symbol":   ce.Symbol,
		"platform": ce.Platform,
		"reason":   ce.Reason,
		"details":  ce.Details,
	})

	return ce, true
}

func (t *Tracker) clearEvaluationFlags(tagged []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, m := range tagged {
		if h, ok := t.health[m]; ok {
			h.IsBeingEvaluated = false
		}
	}
}

// EmergencyStop latches cleanup off until ResumeCleanup is called.
func (t *Tracker) EmergencyStop(reason string) {
	t.mu.Lock()
	t.emergencyStopped = true
	t.mu.Unlock()
	t.logger.Warn("tracker: emergency stop engaged", "reason", reason)
	t.publish(eventbus.TopicEmergencyStop, map[string]any{"reason": reason})
}

// PauseCleanup suspends cleanup transactions without latching like EmergencyStop.
func (t *Tracker) PauseCleanup(reason string) {
	t.mu.Lock()
	t.cleanupPaused = true
	t.mu.Unlock()
	t.logger.Info("tracker: cleanup paused", "reason", reason)
}

// ResumeCleanup clears both PauseCleanup and any latched EmergencyStop.
func (t *Tracker) ResumeCleanup(reason string) {
	t.mu.Lock()
	t.emergencyStopped = false
	t.cleanupPaused = false
	t.mu.Unlock()
	t.logger.Info("tracker: cleanup resumed", "reason", reason)
}

// SetOverride toggles the disableAllCleanup / forceMinimumTokens overrides.
func (t *Tracker) SetOverride(disableAllCleanup, forceMinimumTokens bool, reason string) {
	t.mu.Lock()
	t.overrideDisableCleanup = disableAllCleanup
	t.overrideForceMinTokens = forceMinimumTokens
	t.mu.Unlock()
	t.logger.Info("tracker: override updated", "disableAllCleanup", disableAllCleanup, "forceMinimumTokens", forceMinimumTokens, "reason", reason)
}

// AddEmergencyWhitelist adds mints to the emergency (non-permanent) whitelist.
func (t *Tracker) AddEmergencyWhitelist(mints []string, reason string) {
	t.mu.Lock()
	for _, m := range mints {
		t.emergencyWhitelist[m] = struct{}{}
	}
	t.mu.Unlock()
	t.publish(eventbus.TopicEmergencyWhitelistSet, map[string]any{"added": mints, "reason": reason})
}

// RemoveEmergencyWhitelist removes mints from the emergency whitelist.
func (t *Tracker) RemoveEmergencyWhitelist(mints []string, reason string) {
	t.mu.Lock()
	for _, m := range mints {
		delete(t.emergencyWhitelist, m)
	}
	t.mu.Unlock()
	t.publish(eventbus.TopicEmergencyWhitelistSet, map[string]any{"removed": mints, "reason": reason})
}

// RecordTrend applies spec.md §4.4 step 6's emit-only-on-meaningful-change
// rule, storing and returning true only when the trend should be
// broadcast. Called by the TrendAnalyzer, which owns the computation;
// Tracker owns the trends map itself.
func (t *Tracker) RecordTrend(tr domain.Trend) bool {
	key := tr.Key()

	t.mu.Lock()
	prior, existed := t.trends[key]
	emit := !existed ||
		prior.Direction != tr.Direction ||
		prior.Strength != tr.Strength ||
		absFloat(tr.ChangePercent-prior.ChangePercent) > 5
	t.trends[key] = tr
	t.mu.Unlock()

	if emit {
		t.publish(eventbus.TopicTrendDetected, tr)
	}
	return emit
}

// GetTrend returns the last recorded trend for (mint, window).
func (t *Tracker) GetTrend(mint string, window domain.TrendWindow) (domain.Trend, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tr, ok := t.trends[mint+"|"+string(window)]
	return tr, ok
}

// GetAllTrends returns every stored trend.
func (t *Tracker) GetAllTrends() []domain.Trend {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.Trend, 0, len(t.trends))
	for _, tr := range t.trends {
		out = append(out, tr)
	}
	return out
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
