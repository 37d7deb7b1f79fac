package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

// Store implements the point-lookup portion of sink.Sink: current token
// snapshots (overwritten in place per spec.md's data model), trades
// (append-only), and cleanup events (append-only, written immediately).
type Store struct {
	pool *Pool
}

// NewStore wires a Store onto an open Pool.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) WriteBatch(ctx context.Context, batch sink.WriteBatch) error {
	if len(batch.Snapshots) == 0 && len(batch.Trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin batch write tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, snap := range batch.Snapshots {
		if err := upsertSnapshot(ctx, tx, snap); err != nil {
			return fmt.Errorf("upsert snapshot %s: %w", snap.Mint, err)
		}
	}
	for _, t := range batch.Trades {
		if err := insertTrade(ctx, tx, t); err != nil {
			return fmt.Errorf("insert trade for %s: %w", t.Mint, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit batch write tx: %w", err)
	}
	return nil
}

func upsertSnapshot(ctx context.Context, tx pgx.Tx, snap domain.TokenSnapshot) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO token_snapshots (
			mint, symbol, name, platform, platform_confidence, price,
			volume_24h, market_cap, liquidity, price_change_24h,
			volume_change_24h, holders, uri, timestamp
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (mint) DO UPDATE SET
			symbol = EXCLUDED.symbol,
			name = EXCLUDED.name,
			platform = EXCLUDED.platform,
			platform_confidence = EXCLUDED.platform_confidence,
			price = EXCLUDED.price,
			volume_24h = EXCLUDED.volume_24h,
			market_cap = EXCLUDED.market_cap,
			liquidity = EXCLUDED.liquidity,
			price_change_24h = EXCLUDED.price_change_24h,
			volume_change_24h = EXCLUDED.volume_change_24h,
			holders = EXCLUDED.holders,
			uri = EXCLUDED.uri,
			timestamp = EXCLUDED.timestamp
	`,
		snap.Mint, snap.Symbol, snap.Name, string(snap.Platform), snap.PlatformConfidence,
		snap.Price, snap.Volume24h, snap.MarketCap, snap.Liquidity, snap.PriceChange24h,
		snap.VolumeChange24h, snap.Holders, snap.URI, snap.Timestamp,
	)
	return err
}

func insertTrade(ctx context.Context, tx pgx.Tx, t domain.Trade) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO trades (mint, platform, side, amount, price, wallet, signature, timestamp)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (signature) DO NOTHING
	`, t.Mint, string(t.Platform), string(t.Side), t.Amount, t.Price, t.Wallet, t.Signature, t.Timestamp)
	return err
}

func (s *Store) WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO cleanup_events (
			mint, symbol, platform, reason, details, timestamp,
			final_price, final_volume, final_liquidity, final_market_cap,
			peak_price, peak_volume, tracked_duration_ms, total_trades
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`,
		event.Mint, event.Symbol, string(event.Platform), string(event.Reason), event.Details, event.Timestamp,
		event.FinalPrice, event.FinalVolume, event.FinalLiquidity, event.FinalMarketCap,
		event.PeakPrice, event.PeakVolume, event.TrackedDuration.Milliseconds(), event.TotalTrades,
	)
	if err != nil {
		return fmt.Errorf("insert cleanup event for %s: %w", event.Mint, err)
	}
	return nil
}

// WriteCleanupMetrics is a no-op in Postgres: cleanup metrics are bucketed
// time-series data and belong in ClickHouse. Store exists only to satisfy
// composability when a caller wires Postgres alone (e.g. in tests); the
// hybrid sink in internal/sink/hybrid.go routes this call to ClickHouse.
func (s *Store) WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error {
	return nil
}

func (s *Store) QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error) {
	query := `
		SELECT mint, symbol, name, platform, platform_confidence, price,
			volume_24h, market_cap, liquidity, price_change_24h,
			volume_change_24h, holders, uri, timestamp
		FROM token_snapshots
	`
	var rows pgx.Rows
	var err error
	if len(mints) == 0 {
		rows, err = s.pool.Query(ctx, query)
	} else {
		rows, err = s.pool.Query(ctx, query+" WHERE mint = ANY($1)", mints)
	}
	if err != nil {
		return nil, fmt.Errorf("query token snapshots: %w", err)
	}
	defer rows.Close()
	return scanSnapshots(rows)
}

func (s *Store) QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT mint, symbol, platform, reason, details, timestamp,
			final_price, final_volume, final_liquidity, final_market_cap,
			peak_price, peak_volume, tracked_duration_ms, total_trades
		FROM cleanup_events
		WHERE timestamp >= $1
		ORDER BY timestamp ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("query cleanup events: %w", err)
	}
	defer rows.Close()

	var out []domain.CleanupEvent
	for rows.Next() {
		var e domain.CleanupEvent
		var platform, reason string
		var trackedMs int64
		if err := rows.Scan(&e.Mint, &e.Symbol, &platform, &reason, &e.Details, &e.Timestamp,
			&e.FinalPrice, &e.FinalVolume, &e.FinalLiquidity, &e.FinalMarketCap,
			&e.PeakPrice, &e.PeakVolume, &trackedMs, &e.TotalTrades); err != nil {
			return nil, fmt.Errorf("scan cleanup event: %w", err)
		}
		e.Platform = domain.Platform(platform)
		e.Reason = domain.CleanupReason(reason)
		e.TrackedDuration = time.Duration(trackedMs) * time.Millisecond
		out = append(out, e)
	}
	return out, rows.Err()
}

// QueryPriceHistory and QueryVolumeAnalysis are ClickHouse-backed; this
// store only ever serves them if accidentally wired standalone, in which
// case it reports the boundary explicitly rather than silently returning
// nothing.
func (s *Store) QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error) {
	return nil, errors.New("postgres store does not carry price history; use the ClickHouse-backed sink")
}

func (s *Store) QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (sink.VolumeAnalysis, error) {
	return sink.VolumeAnalysis{}, errors.New("postgres store does not carry volume analysis; use the ClickHouse-backed sink")
}

func scanSnapshots(rows pgx.Rows) ([]domain.TokenSnapshot, error) {
	var out []domain.TokenSnapshot
	for rows.Next() {
		var snap domain.TokenSnapshot
		var platform string
		if err := rows.Scan(&snap.Mint, &snap.Symbol, &snap.Name, &platform, &snap.PlatformConfidence,
			&snap.Price, &snap.Volume24h, &snap.MarketCap, &snap.Liquidity, &snap.PriceChange24h,
			&snap.VolumeChange24h, &snap.Holders, &snap.URI, &snap.Timestamp); err != nil {
			return nil, fmt.Errorf("scan token snapshot: %w", err)
		}
		snap.Platform = domain.Platform(platform)
		out = append(out, snap)
	}
	return out, rows.Err()
}
