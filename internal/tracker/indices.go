package tracker

import (
	"time"

	"solana-token-lab/internal/domain"
)

// recomputeIndices implements spec.md §4.3.2: atomically drop m from all
// five indices, then insert it where it belongs. Must be called with mu
// held for writing.
func (t *Tracker) recomputeIndices(mint string, h *domain.Health, snap domain.TokenSnapshot, now time.Time) {
	delete(t.newTokens, mint)
	delete(t.recentlyActive, mint)
	delete(t.inactive, mint)
	delete(t.lowVolume, mint)
	delete(t.ruggedCandidates, mint)

	age := now.Sub(h.FirstSeenTime)
	if age < t.cfg.GracePeriod {
		t.newTokens[mint] = struct{}{}
		return
	}

	sinceTrade := now.Sub(h.LastTradeTime)
	if sinceTrade < t.cfg.InactivityThreshold/2 {
		t.recentlyActive[mint] = struct{}{}
	}
	if sinceTrade > t.cfg.InactivityThreshold {
		t.inactive[mint] = struct{}{}
	}
	if isLowVolumeCandidate(h, snap, t.cfg) {
		t.lowVolume[mint] = struct{}{}
	}
	if isRuggedCandidate(h, snap, t.cfg) {
		t.ruggedCandidates[mint] = struct{}{}
	}
}

// removeFromIndices deletes mint from every index. Must be called with mu held.
func (t *Tracker) removeFromIndices(mint string) {
	delete(t.newTokens, mint)
	delete(t.recentlyActive, mint)
	delete(t.inactive, mint)
	delete(t.lowVolume, mint)
	delete(t.ruggedCandidates, mint)
}

// cleanupCandidates returns the union of ruggedCandidates, inactive, and
// lowVolume (spec.md §4.3.3 Phase 1's candidate set C). Must be called
// with mu held for reading.
func (t *Tracker) cleanupCandidates() []string {
	seen := make(map[string]struct{})
	for m := range t.ruggedCandidates {
		seen[m] = struct{}{}
	}
	for m := range t.inactive {
		seen[m] = struct{}{}
	}
	for m := range t.lowVolume {
		seen[m] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for m := range seen {
		out = append(out, m)
	}
	return out
}
