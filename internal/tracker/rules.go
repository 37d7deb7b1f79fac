package tracker

import (
	"fmt"
	"time"

	"solana-token-lab/internal/domain"
)

// These functions are the single source of truth for the rugged/inactive/
// low-volume rules (spec.md §4.3.4). They back both index maintenance on
// the write path and re-derivation during cleanup evaluation, so the two
// never drift apart.

// priceDrop returns the fractional drawdown from peak, 0 if no peak.
func priceDrop(h *domain.Health, price float64) float64 {
	return h.PriceDrop(price)
}

// volumeDrop returns the fractional drop from peak volume, 0 if no peak volume.
func volumeDrop(h *domain.Health, volume float64) float64 {
	return h.VolumeDrop(volume)
}

// ruggedReason reports whether m is rugged and, if so, the human-readable
// detail string. Precedence: price drop, then liquidity, then volume drop.
func ruggedReason(h *domain.Health, snap domain.TokenSnapshot, cfg Config) (bool, string) {
	pd := priceDrop(h, snap.Price)
	if pd >= cfg.RugPriceDrop {
		return true, fmt.Sprintf("Price dropped %.2f%% from peak", pd*100)
	}
	if h.CurrentLiquidity < cfg.LiqThreshold {
		return true, fmt.Sprintf("Liquidity dropped to $%.2f", h.CurrentLiquidity)
	}
	if h.PeakVolume24h > 0 {
		vd := volumeDrop(h, snap.Volume24h)
		if vd >= cfg.RugVolumeDrop {
			return true, fmt.Sprintf("Volume dropped %.2f%% from peak", vd*100)
		}
	}
	return false, ""
}

// inactiveReason reports whether m is inactive and its detail string.
func inactiveReason(h *domain.Health, now time.Time, cfg Config) (bool, string) {
	sinceTrade := now.Sub(h.LastTradeTime)
	if sinceTrade > cfg.InactivityThreshold {
		return true, fmt.Sprintf("No trades for %d minutes", int(sinceTrade.Minutes()))
	}
	return false, ""
}

// lowVolumeReason reports whether m is low-volume and its detail string.
func lowVolumeReason(h *domain.Health, cfg Config) (bool, string) {
	if h.ConsecutiveZeroVolumePeriods >= cfg.ConsecutiveZeroVolumePeriods {
		return true, fmt.Sprintf("Volume below %.0f for %d consecutive periods", cfg.MinVolume24h, h.ConsecutiveZeroVolumePeriods)
	}
	return false, ""
}

// isRuggedCandidate is the index-membership condition (spec.md §4.3.2):
// broader than ruggedReason's precedence chain, it is just "any of the
// three sub-conditions holds."
func isRuggedCandidate(h *domain.Health, snap domain.TokenSnapshot, cfg Config) bool {
	ok, _ := ruggedReason(h, snap, cfg)
	return ok
}

// isLowVolumeCandidate is the index-membership condition: below-threshold
// volume AND the counter has reached its confirmation count.
func isLowVolumeCandidate(h *domain.Health, snap domain.TokenSnapshot, cfg Config) bool {
	return snap.Volume24h < cfg.MinVolume24h && h.ConsecutiveZeroVolumePeriods >= cfg.ConsecutiveZeroVolumePeriods
}

// deriveReason re-derives the authoritative cleanup reason for m during a
// cleanup transaction, preferring rugged over inactive over low_volume.
// Returns ok=false if none of the three conditions currently hold.
func deriveReason(h *domain.Health, snap domain.TokenSnapshot, now time.Time, cfg Config) (reason domain.CleanupReason, details string, ok bool) {
	if rugged, d := ruggedReason(h, snap, cfg); rugged {
		return domain.ReasonRugged, d, true
	}
	if inactive, d := inactiveReason(h, now, cfg); inactive {
		return domain.ReasonInactive, d, true
	}
	if lowVol, d := lowVolumeReason(h, cfg); lowVol && snap.Volume24h < cfg.MinVolume24h {
		return domain.ReasonLowVolume, d, true
	}
	return "", "", false
}
