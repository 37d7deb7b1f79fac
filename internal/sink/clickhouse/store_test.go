package clickhouse_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
	"solana-token-lab/internal/sink/clickhouse"
)

func TestStore_WriteBatchAndQueryPriceHistory(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	points := []domain.PricePoint{
		{Mint: "Mint1", Platform: domain.PlatformPump, Price: 1.0, Volume: 10, Timestamp: now.Add(-2 * time.Minute), Source: "trade"},
		{Mint: "Mint1", Platform: domain.PlatformPump, Price: 1.2, Volume: 20, Timestamp: now.Add(-time.Minute), Source: "trade"},
		{Mint: "Mint1", Platform: domain.PlatformPump, Price: 1.4, Volume: 30, Timestamp: now, Source: "trade"},
	}
	require.NoError(t, store.WriteBatch(ctx, sink.WriteBatch{PricePoints: points}))

	rows, err := store.QueryPriceHistory(ctx, "Mint1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1.0, rows[0].Price)
	assert.Equal(t, 1.4, rows[2].Price)
}

func TestStore_QueryVolumeAnalysis(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewStore(conn)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	points := []domain.PricePoint{
		{Mint: "Mint2", Platform: domain.PlatformBonk, Price: 1.0, Volume: 100, Timestamp: now.Add(-10 * time.Minute), Source: "trade"},
		{Mint: "Mint2", Platform: domain.PlatformBonk, Price: 1.0, Volume: 200, Timestamp: now, Source: "trade"},
	}
	require.NoError(t, store.WriteBatch(ctx, sink.WriteBatch{PricePoints: points}))

	v, err := store.QueryVolumeAnalysis(ctx, "Mint2", domain.Window1h)
	require.NoError(t, err)
	assert.Equal(t, 300.0, v.TotalVolume)
	assert.Greater(t, v.BucketCount, 0)
}

func TestStore_WriteAndQueryCleanupMetrics(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewStore(conn)
	ctx := context.Background()

	m := domain.CleanupMetrics{
		Timestamp:       time.Now().UTC().Truncate(time.Second),
		TotalEvaluated:  10,
		RuggedDetected:  3,
		ActuallyRemoved: 2,
	}
	require.NoError(t, store.WriteCleanupMetrics(ctx, m))
}

func TestStore_QueryTokenSnapshotsNotSupported(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := clickhouse.NewStore(conn)
	_, err := store.QueryTokenSnapshots(context.Background(), []string{"Mint1"})
	assert.Error(t, err)
}
