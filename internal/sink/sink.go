// Package sink defines the TimeSeriesSink boundary (spec.md §4.6) and
// ships Postgres/ClickHouse-backed and in-memory implementations.
package sink

import (
	"context"
	"time"

	"solana-token-lab/internal/domain"
)

// WriteBatch is everything DataProcessor accumulates in a single batch
// flush: snapshots, trades, and price points derived from accepted events.
type WriteBatch struct {
	Snapshots   []domain.TokenSnapshot
	Trades      []domain.Trade
	PricePoints []domain.PricePoint
}

// VolumeAnalysis is the bucketed volume summary QueryFacade's volume
// endpoint returns.
type VolumeAnalysis struct {
	Mint        string
	Window      domain.TrendWindow
	TotalVolume float64
	BucketCount int
	AvgPerBucket float64
}

// Sink is the TimeSeriesSink boundary. WriteBatch and WriteCleanupEvent/
// WriteCleanupMetrics are the two write paths spec.md §9 distinguishes:
// batched-buffered for ordinary traffic, immediate for cleanup records.
type Sink interface {
	WriteBatch(ctx context.Context, batch WriteBatch) error
	WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error
	WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error

	QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error)
	QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error)
	QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (VolumeAnalysis, error)
	QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error)
}
