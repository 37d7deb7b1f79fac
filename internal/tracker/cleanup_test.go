package tracker

import (
	"context"
	"testing"
	"time"

	"solana-token-lab/internal/domain"
)

func TestRunCleanupTransaction_BelowMinTokensIsNoop(t *testing.T) {
	tr, sink := newTestTracker(t, func(c *Config) { c.MinTokensToKeep = 5 })
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 1.0, 100, 500))

	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEvaluated != 0 {
		t.Fatalf("TotalEvaluated = %d, want 0 when population is at or below the floor", metrics.TotalEvaluated)
	}
	if len(sink.metrics) != 0 {
		t.Fatal("no metrics should be written when the transaction is a no-op")
	}
}

func TestRunCleanupTransaction_RemovesRuggedCandidate(t *testing.T) {
	tr, sink := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()

	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))

	// Age both past the grace period, then crash Mint1's price below the
	// rugged threshold relative to its recorded peak.
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.health["Mint2"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.health["Mint2"].LastTradeTime = time.Now()
	tr.mu.Unlock()
	tr.trackToken(ctx, snap("Mint1", 0.1, 1000, 500))

	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.RuggedDetected != 1 {
		t.Fatalf("RuggedDetected = %d, want 1", metrics.RuggedDetected)
	}
	if metrics.ActuallyRemoved != 1 {
		t.Fatalf("ActuallyRemoved = %d, want 1", metrics.ActuallyRemoved)
	}
	if _, ok := tr.GetSnapshot("Mint1"); ok {
		t.Fatal("Mint1 should have been untracked")
	}
	if _, ok := tr.GetSnapshot("Mint2"); !ok {
		t.Fatal("Mint2 should remain tracked")
	}
	if len(sink.events) != 1 || sink.events[0].Reason != domain.ReasonRugged {
		t.Fatalf("expected one rugged cleanup event written, got %v", sink.events)
	}
}

func TestRunCleanupTransaction_WhitelistSavesCandidate(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Minute
		c.Whitelist = []string{"Mint1"}
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))

	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.health["Mint2"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.SavedByWhitelist != 1 {
		t.Fatalf("SavedByWhitelist = %d, want 1", metrics.SavedByWhitelist)
	}
	if _, ok := tr.GetSnapshot("Mint1"); !ok {
		t.Fatal("whitelisted mint must survive cleanup")
	}
}

func TestRunCleanupTransaction_GracePeriodSavesCandidate(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Hour
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))

	// Mint1 is tagged as a candidate (e.g. stale data) but is still within
	// the grace period as of this transaction.
	tr.mu.Lock()
	tr.health["Mint2"].FirstSeenTime = time.Now().Add(-2 * time.Hour)
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.SavedByGracePeriod != 1 {
		t.Fatalf("SavedByGracePeriod = %d, want 1", metrics.SavedByGracePeriod)
	}
}

func TestRunCleanupTransaction_MaxPercentageCapsRemoval(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 0.34 // floor(3*0.34) == 1
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	for _, m := range []string{"Mint1", "Mint2", "Mint3"} {
		tr.trackToken(ctx, snap(m, 10.0, 1000, 500))
	}

	tr.mu.Lock()
	for _, m := range []string{"Mint1", "Mint2", "Mint3"} {
		tr.health[m].FirstSeenTime = time.Now().Add(-time.Hour)
		tr.ruggedCandidates[m] = struct{}{}
	}
	tr.mu.Unlock()
	tr.trackToken(ctx, snap("Mint1", 0.1, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 0.1, 1000, 500))
	tr.trackToken(ctx, snap("Mint3", 0.1, 1000, 500))

	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.ActuallyRemoved != 1 {
		t.Fatalf("ActuallyRemoved = %d, want 1 (capped by MaxCleanupPercentage)", metrics.ActuallyRemoved)
	}
	if metrics.SavedByLimit != 2 {
		t.Fatalf("SavedByLimit = %d, want 2", metrics.SavedByLimit)
	}
}

func TestRunCleanupTransaction_EmergencyStopBlocks(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	tr.EmergencyStop("operator request")
	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEvaluated != 0 {
		t.Fatal("cleanup must be fully blocked while emergency-stopped")
	}

	tr.ResumeCleanup("operator request")
	metrics, err = tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEvaluated != 1 {
		t.Fatalf("TotalEvaluated = %d, want 1 after resuming", metrics.TotalEvaluated)
	}
}

func TestForceCleanup_BypassesSafetyFlags(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.health["Mint1"].CurrentLiquidity = 10 // below LiqThreshold: genuinely rugged
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	tr.EmergencyStop("operator request")
	metrics, err := tr.ForceCleanup(ctx, 0.9, "manual override")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.ActuallyRemoved != 1 {
		t.Fatalf("ActuallyRemoved = %d, want 1: ForceCleanup must bypass the emergency stop", metrics.ActuallyRemoved)
	}
}

func TestForceCleanup_PercentageCappedAtHalf(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	for _, m := range []string{"Mint1", "Mint2", "Mint3", "Mint4"} {
		tr.trackToken(ctx, snap(m, 10.0, 1000, 500))
	}
	tr.mu.Lock()
	for _, m := range []string{"Mint1", "Mint2", "Mint3", "Mint4"} {
		tr.health[m].FirstSeenTime = time.Now().Add(-time.Hour)
		tr.health[m].CurrentLiquidity = 10 // below LiqThreshold: genuinely rugged
		tr.ruggedCandidates[m] = struct{}{}
	}
	tr.mu.Unlock()

	// Requesting 100% must be silently capped to 50%: floor(4*0.5) == 2.
	metrics, err := tr.ForceCleanup(ctx, 1.0, "manual override")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.ActuallyRemoved != 2 {
		t.Fatalf("ActuallyRemoved = %d, want 2 (capped at 50%%)", metrics.ActuallyRemoved)
	}
}

func TestSetOverride_ForceMinTokensDoublesFloor(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	tr.SetOverride(false, true, "extra caution")
	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// effectiveMinTokens = 1*2 = 2, trackedCount (2) <= 2, so nothing runs.
	if metrics.TotalEvaluated != 0 {
		t.Fatalf("TotalEvaluated = %d, want 0 with ForceMinimumTokens doubling the floor above the tracked count", metrics.TotalEvaluated)
	}
}

func TestSetOverride_DisableAllCleanupBlocks(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.MaxCleanupPercentage = 1.0
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	tr.SetOverride(true, false, "maintenance window")
	metrics, err := tr.runCleanupTransaction(ctx, nil, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.TotalEvaluated != 0 {
		t.Fatal("overrideDisableCleanup must block the transaction entirely")
	}
}

func TestEmergencyWhitelist_AddAndRemove(t *testing.T) {
	tr, _ := newTestTracker(t, nil)
	tr.AddEmergencyWhitelist([]string{"Mint1"}, "market volatility")
	if !tr.isWhitelisted("Mint1") {
		t.Fatal("Mint1 should be emergency-whitelisted")
	}
	tr.RemoveEmergencyWhitelist([]string{"Mint1"}, "resolved")
	if tr.isWhitelisted("Mint1") {
		t.Fatal("Mint1 should no longer be whitelisted after removal")
	}
}

func TestClearEvaluationFlags_AlwaysRunsEvenOnZeroCandidates(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MinTokensToKeep = 1
		c.GracePeriod = time.Minute
	})
	ctx := context.Background()
	tr.trackToken(ctx, snap("Mint1", 10.0, 1000, 500))
	tr.trackToken(ctx, snap("Mint2", 10.0, 1000, 500))
	tr.mu.Lock()
	tr.health["Mint1"].FirstSeenTime = time.Now().Add(-time.Hour)
	tr.health["Mint1"].CurrentLiquidity = 10
	tr.ruggedCandidates["Mint1"] = struct{}{}
	tr.mu.Unlock()

	if _, err := tr.runCleanupTransaction(ctx, nil, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tr.mu.RLock()
	defer tr.mu.RUnlock()
	for mint, h := range tr.health {
		if h.IsBeingEvaluated {
			t.Fatalf("%s left with IsBeingEvaluated set after transaction completed", mint)
		}
	}
}
