// Package tracker implements the Tracker from spec.md §4.3: the sole
// owner of the in-memory token population and of every policy that
// decides whether a tracked token continues to be tracked.
package tracker

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"solana-token-lab/internal/coreerrors"
	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/eventbus"
)

const historyCap = 1000

// Sink is the subset of sink.Sink the tracker writes cleanup records to
// directly (outside DataProcessor's batch path, per spec.md §9's mandate
// that cleanup events use the immediate path).
type Sink interface {
	WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error
	WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error
}

// Publisher is the event bus the tracker broadcasts on. Never a direct
// reference to the feed client; the composition root subscribes to
// eventbus.TopicTokenCleanedUp and performs the feed unsubscribe itself.
type Publisher interface {
	Publish(topic string, payload any)
}

// Tracker owns current snapshots, bounded price history, Health, alerts,
// trends, and the five derived indices. All mutating methods serialize
// through mu: the specification requires no two mutations of tracker
// state ever interleave.
type Tracker struct {
	cfg    Config
	sink   Sink
	bus    Publisher
	logger *slog.Logger

	mu      sync.RWMutex
	current map[string]domain.TokenSnapshot
	history map[string][]domain.PricePoint
	health  map[string]*domain.Health
	alerts  map[string]*domain.Alert
	trends  map[string]domain.Trend

	newTokens        map[string]struct{}
	recentlyActive   map[string]struct{}
	inactive         map[string]struct{}
	lowVolume        map[string]struct{}
	ruggedCandidates map[string]struct{}

	whitelist          map[string]struct{}
	emergencyWhitelist map[string]struct{}

	emergencyStopped        bool
	cleanupPaused           bool
	overrideDisableCleanup  bool
	overrideForceMinTokens  bool
	overrideForcePercentage *float64

	cleanupMu sync.Mutex
}

// New constructs a Tracker. Refuses to start (returns an error) on any
// invalid configuration value; non-fatal warnings are returned alongside
// a valid Tracker for the caller to log.
func New(cfg Config, s Sink, bus Publisher, logger *slog.Logger) (*Tracker, []string, error) {
	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	whitelist := make(map[string]struct{}, len(cfg.Whitelist))
	for _, m := range cfg.Whitelist {
		whitelist[m] = struct{}{}
	}

	t := &Tracker{
		cfg:                cfg,
		sink:               s,
		bus:                bus,
		logger:             logger,
		current:            make(map[string]domain.TokenSnapshot),
		history:            make(map[string][]domain.PricePoint),
		health:             make(map[string]*domain.Health),
		alerts:             make(map[string]*domain.Alert),
		trends:             make(map[string]domain.Trend),
		newTokens:          make(map[string]struct{}),
		recentlyActive:     make(map[string]struct{}),
		inactive:           make(map[string]struct{}),
		lowVolume:          make(map[string]struct{}),
		ruggedCandidates:   make(map[string]struct{}),
		whitelist:          whitelist,
		emergencyWhitelist: make(map[string]struct{}),
	}
	return t, warnings, nil
}

// HandleEvent dispatches an accepted domain.Event to the right update
// path. Implements the processor.Tracker interface.
func (t *Tracker) HandleEvent(ctx context.Context, ev domain.Event) {
	switch ev.Kind {
	case domain.EventNewToken:
		if ev.NewToken != nil {
			t.trackToken(ctx, ev.NewToken.Snapshot)
		}
	case domain.EventTrade:
		if ev.Trade != nil {
			t.recordTrade(ev.Trade.Trade)
		}
	}
}

// trackToken is the update path (spec.md §4.3.1). Silently skips a mint
// currently under cleanup evaluation.
func (t *Tracker) trackToken(ctx context.Context, snap domain.TokenSnapshot) {
	now := time.Now()

	t.mu.Lock()
	h, exists := t.health[snap.Mint]
	if exists && h.IsBeingEvaluated {
		t.mu.Unlock()
		return
	}

	t.current[snap.Mint] = snap

	if !exists {
		h = &domain.Health{
			Mint:             snap.Mint,
			FirstSeenTime:    now,
			LastTradeTime:    now,
			PeakPrice:        snap.Price,
			PeakVolume24h:    snap.Volume24h,
			CurrentLiquidity: snap.Liquidity,
			IsWhitelisted:    t.isPermanentlyWhitelisted(snap.Mint),
		}
		t.health[snap.Mint] = h
	} else {
		h.LastTradeTime = now
		if snap.Price > h.PeakPrice {
			h.PeakPrice = snap.Price
		}
		if snap.Volume24h > h.PeakVolume24h {
			h.PeakVolume24h = snap.Volume24h
		}
		h.CurrentLiquidity = snap.Liquidity
	}

	// consecutiveZeroVolumePeriods is maintained here, on the write path,
	// per the open-question resolution in DESIGN.md: strict '<' so volume
	// exactly at the threshold resets the streak rather than extending it.
	if snap.Volume24h < t.cfg.MinVolume24h {
		h.ConsecutiveZeroVolumePeriods++
	} else {
		h.ConsecutiveZeroVolumePeriods = 0
	}

	if snap.Price > 0 {
		t.appendPricePoint(snap.Mint, domain.PricePoint{
			Mint:      snap.Mint,
			Platform:  snap.Platform,
			Price:     snap.Price,
			Volume:    snap.Volume24h,
			Timestamp: now,
			Source:    "trackToken",
		})
	}

	t.recomputeIndices(snap.Mint, h, snap, now)
	triggered := t.evaluateAlerts(snap)
	t.mu.Unlock()

	t.publish(eventbus.TopicTokenTracked, map[string]any{"mint": snap.Mint, "price": snap.Price})
	for _, a := range triggered {
		t.publish(eventbus.TopicAlertTriggered, map[string]any{"alert": a, "snapshot": snap})
	}
}

// recordTrade updates Health.lastTradeTime and the trade counter. Per
// spec.md §4.3 this does not itself mutate current/history/indices; the
// next accepted snapshot update does.
func (t *Tracker) recordTrade(trade domain.Trade) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := t.health[trade.Mint]
	if !ok || h.IsBeingEvaluated {
		return
	}
	h.LastTradeTime = trade.Timestamp
	h.TotalTrades++
}

// Retrack is allowed only if mint is not currently tracked; it
// resets Health as if first-seen.
func (t *Tracker) Retrack(ctx context.Context, snap domain.TokenSnapshot, reason string) error {
	t.mu.RLock()
	_, tracked := t.current[snap.Mint]
	t.mu.RUnlock()
	if tracked {
		return coreerrors.ErrAlreadyTracked
	}
	t.trackToken(ctx, snap)
	return nil
}

func (t *Tracker) isPermanentlyWhitelisted(mint string) bool {
	_, ok := t.whitelist[mint]
	return ok
}

func (t *Tracker) isWhitelisted(mint string) bool {
	if _, ok := t.whitelist[mint]; ok {
		return true
	}
	_, ok := t.emergencyWhitelist[mint]
	return ok
}

// appendPricePoint appends to the bounded ring, evicting the oldest point
// once the cap is reached. Must be called with mu held.
func (t *Tracker) appendPricePoint(mint string, p domain.PricePoint) {
	pts := t.history[mint]
	pts = append(pts, p)
	if len(pts) > historyCap {
		pts = pts[len(pts)-historyCap:]
	}
	t.history[mint] = pts
}

func (t *Tracker) publish(topic string, payload any) {
	if t.bus != nil {
		t.bus.Publish(topic, payload)
	}
}

// GetSnapshot returns the current snapshot for mint, if tracked.
func (t *Tracker) GetSnapshot(mint string) (domain.TokenSnapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.current[mint]
	return s, ok
}

// GetAll returns every currently tracked snapshot.
func (t *Tracker) GetAll() []domain.TokenSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]domain.TokenSnapshot, 0, len(t.current))
	for _, s := range t.current {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
	return out
}

// GetHistory returns up to limit of the most recent price points for
// mint, oldest first.
func (t *Tracker) GetHistory(mint string, limit int) []domain.PricePoint {
	t.mu.RLock()
	defer t.mu.RUnlock()
	pts := t.history[mint]
	if limit <= 0 || limit >= len(pts) {
		out := make([]domain.PricePoint, len(pts))
		copy(out, pts)
		return out
	}
	out := make([]domain.PricePoint, limit)
	copy(out, pts[len(pts)-limit:])
	return out
}

// Count returns the number of currently tracked mints.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.current)
}
