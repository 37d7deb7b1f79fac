package clickhouse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

// Store implements the append-only portion of sink.Sink: price points and
// cleanup metrics.
type Store struct {
	conn *Conn
}

// NewStore wires a Store onto an open Conn.
func NewStore(conn *Conn) *Store {
	return &Store{conn: conn}
}

func (s *Store) WriteBatch(ctx context.Context, batch sink.WriteBatch) error {
	if len(batch.PricePoints) == 0 {
		return nil
	}

	b, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (mint, platform, price, volume, timestamp, source)
	`)
	if err != nil {
		return fmt.Errorf("prepare price point batch: %w", err)
	}

	for _, p := range batch.PricePoints {
		if err := b.Append(p.Mint, string(p.Platform), p.Price, p.Volume, p.Timestamp, p.Source); err != nil {
			return fmt.Errorf("append price point: %w", err)
		}
	}

	if err := b.Send(); err != nil {
		return fmt.Errorf("send price point batch: %w", err)
	}
	return nil
}

func (s *Store) WriteCleanupMetrics(ctx context.Context, m domain.CleanupMetrics) error {
	b, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO cleanup_metrics (
			timestamp, total_evaluated, rugged_detected, inactive_detected,
			low_volume_detected, actually_removed, saved_by_whitelist,
			saved_by_grace_period, saved_by_limit, execution_time_ms
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare cleanup metrics batch: %w", err)
	}
	err = b.Append(
		m.Timestamp, uint32(m.TotalEvaluated), uint32(m.RuggedDetected), uint32(m.InactiveDetected),
		uint32(m.LowVolumeDetected), uint32(m.ActuallyRemoved), uint32(m.SavedByWhitelist),
		uint32(m.SavedByGracePeriod), uint32(m.SavedByLimit), uint64(m.ExecutionTimeMs),
	)
	if err != nil {
		return fmt.Errorf("append cleanup metrics: %w", err)
	}
	if err := b.Send(); err != nil {
		return fmt.Errorf("send cleanup metrics batch: %w", err)
	}
	return nil
}

// WriteCleanupEvent is a no-op here: cleanup events are point-lookup
// records better served by Postgres. See postgres.Store.WriteCleanupEvent;
// the hybrid sink routes this call there.
func (s *Store) WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error {
	return nil
}

func (s *Store) QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT mint, platform, price, volume, timestamp, source
		FROM price_points
		WHERE mint = ? AND timestamp >= ?
		ORDER BY timestamp ASC
	`, mint, since)
	if err != nil {
		return nil, fmt.Errorf("query price history: %w", err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		var platform string
		if err := rows.Scan(&p.Mint, &platform, &p.Price, &p.Volume, &p.Timestamp, &p.Source); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		p.Platform = domain.Platform(platform)
		out = append(out, p)
	}
	return out, rows.Err()
}

// QueryVolumeAnalysis buckets price_points by window.Bucket() and reports
// total and per-bucket average volume, grounding spec.md §4.4's windowed
// aggregation.
func (s *Store) QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (sink.VolumeAnalysis, error) {
	since := time.Now().Add(-window.Duration())
	bucketSeconds := int64(window.Bucket().Seconds())
	if bucketSeconds <= 0 {
		return sink.VolumeAnalysis{}, fmt.Errorf("clickhouse: invalid window %q", window)
	}

	row := s.conn.QueryRow(ctx, `
		SELECT sum(volume), count(DISTINCT intDiv(toUnixTimestamp(timestamp), ?))
		FROM price_points
		WHERE mint = ? AND timestamp >= ?
	`, bucketSeconds, mint, since)

	var total float64
	var buckets uint64
	if err := row.Scan(&total, &buckets); err != nil {
		return sink.VolumeAnalysis{}, fmt.Errorf("query volume analysis: %w", err)
	}

	result := sink.VolumeAnalysis{Mint: mint, Window: window, TotalVolume: total, BucketCount: int(buckets)}
	if buckets > 0 {
		result.AvgPerBucket = total / float64(buckets)
	}
	return result, nil
}

func (s *Store) QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error) {
	return nil, errors.New("clickhouse store does not carry current snapshots; use the Postgres-backed sink")
}

func (s *Store) QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error) {
	return nil, errors.New("clickhouse store does not carry cleanup events; use the Postgres-backed sink")
}
