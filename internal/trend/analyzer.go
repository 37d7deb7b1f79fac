// Package trend implements TrendAnalyzer (spec.md §4.4), subordinate to
// the Tracker: on a fixed cadence it recomputes {1h, 24h, 7d} trends per
// tracked mint from the sink's price history and hands results back to
// the Tracker, which decides whether the change is worth emitting.
package trend

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"solana-token-lab/internal/domain"
)

// Sink is the read path the analyzer needs.
type Sink interface {
	QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error)
}

// Tracker is the subset of tracker.Tracker the analyzer depends on: the
// current population to iterate, and the sink for recording results
// (Tracker owns the trends map and the emit-on-change decision).
type Tracker interface {
	GetAll() []domain.TokenSnapshot
	RecordTrend(t domain.Trend) bool
}

var windows = []domain.TrendWindow{domain.Window1h, domain.Window24h, domain.Window7d}

// Analyzer runs the periodic recomputation loop.
type Analyzer struct {
	sink     Sink
	tracker  Tracker
	interval time.Duration
	logger   *slog.Logger
}

// New wires an Analyzer. interval defaults to 60s (spec.md's
// analysisInterval default) when zero.
func New(sink Sink, tracker Tracker, interval time.Duration, logger *slog.Logger) *Analyzer {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{sink: sink, tracker: tracker, interval: interval, logger: logger}
}

// Run recomputes trends for every tracked mint on each tick until ctx is
// cancelled.
func (a *Analyzer) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Analyzer) tick(ctx context.Context) {
	for _, snap := range a.tracker.GetAll() {
		for _, w := range windows {
			tr, ok, err := a.computeTrend(ctx, snap, w)
			if err != nil {
				a.logger.Debug("trend: query failed", "mint", snap.Mint, "window", w, "error", err)
				continue
			}
			if !ok {
				continue
			}
			a.tracker.RecordTrend(tr)
		}
	}
}

type bucket struct {
	index int
	sum   float64
	count int
	vol   float64
}

// computeTrend implements spec.md §4.4 steps 1-5. Returns ok=false if
// fewer than 2 populated buckets are available.
func (a *Analyzer) computeTrend(ctx context.Context, snap domain.TokenSnapshot, w domain.TrendWindow) (domain.Trend, bool, error) {
	now := time.Now()
	since := now.Add(-w.Duration())

	points, err := a.sink.QueryPriceHistory(ctx, snap.Mint, since)
	if err != nil {
		return domain.Trend{}, false, err
	}

	bucketSize := w.Bucket()
	buckets := map[int]*bucket{}
	var totalVolume float64
	for _, p := range points {
		idx := int(p.Timestamp.Sub(since) / bucketSize)
		b, ok := buckets[idx]
		if !ok {
			b = &bucket{index: idx}
			buckets[idx] = b
		}
		b.sum += p.Price
		b.count++
		b.vol += p.Volume
		totalVolume += p.Volume
	}
	if len(buckets) < 2 {
		return domain.Trend{}, false, nil
	}

	ordered := make([]*bucket, 0, len(buckets))
	for _, b := range buckets {
		ordered = append(ordered, b)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].index < ordered[j].index })

	means := make([]float64, len(ordered))
	for i, b := range ordered {
		means[i] = b.sum / float64(b.count)
	}

	startPrice := means[0]
	endPrice := means[len(means)-1]
	change := endPrice - startPrice
	var changePercent float64
	if startPrice != 0 {
		changePercent = 100 * change / startPrice
	}

	direction := domain.DirectionSideways
	switch {
	case changePercent > 2:
		direction = domain.DirectionUp
	case changePercent < -2:
		direction = domain.DirectionDown
	}

	volatility := stddevReturns(means)
	strength := domain.StrengthWeak
	absChange := math.Abs(changePercent)
	switch {
	case absChange > 20 && volatility < 0.1:
		strength = domain.StrengthStrong
	case absChange > 10 && volatility < 0.2:
		strength = domain.StrengthModerate
	}

	totalExpectedBuckets := int(w.Duration() / bucketSize)
	coverage := 0.5
	if len(ordered) >= totalExpectedBuckets {
		coverage = 1
	}
	confidence := (math.Min(float64(len(ordered))/20, 1) + coverage) / 2

	return domain.Trend{
		Mint:          snap.Mint,
		Symbol:        snap.Symbol,
		Platform:      snap.Platform,
		Window:        w,
		Direction:     direction,
		Strength:      strength,
		Change:        change,
		ChangePercent: changePercent,
		Confidence:    confidence,
		StartPrice:    startPrice,
		EndPrice:      endPrice,
		Volume:        totalVolume,
		Timestamp:     now,
	}, true, nil
}

// stddevReturns computes the sample standard deviation of per-bucket
// fractional returns between consecutive bucket means.
func stddevReturns(means []float64) float64 {
	if len(means) < 3 {
		return 0
	}
	returns := make([]float64, 0, len(means)-1)
	for i := 1; i < len(means); i++ {
		if means[i-1] == 0 {
			continue
		}
		returns = append(returns, (means[i]-means[i-1])/means[i-1])
	}
	if len(returns) < 2 {
		return 0
	}
	var mean float64
	for _, r := range returns {
		mean += r
	}
	mean /= float64(len(returns))

	var sumSq float64
	for _, r := range returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(returns)-1))
}
