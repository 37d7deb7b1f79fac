package sink

import (
	"context"
	"fmt"
	"time"

	"solana-token-lab/internal/domain"
)

// pointLookup is the subset of Sink the Postgres-backed store actually
// implements well: current snapshots, trades, cleanup events.
type pointLookup interface {
	WriteBatch(ctx context.Context, batch WriteBatch) error
	WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error
	QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error)
	QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error)
}

// timeSeries is the subset the ClickHouse-backed store implements well:
// price points and cleanup metrics, plus their windowed queries.
type timeSeries interface {
	WriteBatch(ctx context.Context, batch WriteBatch) error
	WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error
	QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error)
	QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (VolumeAnalysis, error)
}

// Hybrid composes a Postgres-backed point-lookup store and a ClickHouse-
// backed time-series store into one Sink, per spec.md §4.6's split data
// model: current state in a row store, high-volume history in a column
// store. Each WriteBatch call fans out the relevant slice to the store
// that owns it.
type Hybrid struct {
	points pointLookup
	series timeSeries
}

// NewHybrid wires a Hybrid sink from its two backing stores.
func NewHybrid(points pointLookup, series timeSeries) *Hybrid {
	return &Hybrid{points: points, series: series}
}

func (h *Hybrid) WriteBatch(ctx context.Context, batch WriteBatch) error {
	if len(batch.Snapshots) > 0 || len(batch.Trades) > 0 {
		pointBatch := WriteBatch{Snapshots: batch.Snapshots, Trades: batch.Trades}
		if err := h.points.WriteBatch(ctx, pointBatch); err != nil {
			return fmt.Errorf("hybrid sink: point-lookup write: %w", err)
		}
	}
	if len(batch.PricePoints) > 0 {
		seriesBatch := WriteBatch{PricePoints: batch.PricePoints}
		if err := h.series.WriteBatch(ctx, seriesBatch); err != nil {
			return fmt.Errorf("hybrid sink: time-series write: %w", err)
		}
	}
	return nil
}

func (h *Hybrid) WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error {
	return h.points.WriteCleanupEvent(ctx, event)
}

func (h *Hybrid) WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error {
	return h.series.WriteCleanupMetrics(ctx, metrics)
}

func (h *Hybrid) QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error) {
	return h.points.QueryTokenSnapshots(ctx, mints)
}

func (h *Hybrid) QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error) {
	return h.series.QueryPriceHistory(ctx, mint, since)
}

func (h *Hybrid) QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (VolumeAnalysis, error) {
	return h.series.QueryVolumeAnalysis(ctx, mint, window)
}

func (h *Hybrid) QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error) {
	return h.points.QueryCleanupEvents(ctx, since)
}

var _ Sink = (*Hybrid)(nil)
