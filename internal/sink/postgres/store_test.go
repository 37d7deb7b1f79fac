package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
	sinkpostgres "solana-token-lab/internal/sink/postgres"
)

func TestStore_WriteBatchAndQuerySnapshots(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := sinkpostgres.NewStore(pool)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	snap := domain.TokenSnapshot{
		Mint:      "Mint1",
		Symbol:    "ONE",
		Name:      "One Token",
		Platform:  domain.PlatformPump,
		Price:     1.5,
		Volume24h: 1000,
		Timestamp: now,
	}
	trade := domain.Trade{
		Mint:      "Mint1",
		Platform:  domain.PlatformPump,
		Side:      domain.SideBuy,
		Amount:    10,
		Price:     1.5,
		Wallet:    "Wallet1",
		Signature: "Sig1",
		Timestamp: now,
	}

	require.NoError(t, store.WriteBatch(ctx, sink.WriteBatch{
		Snapshots: []domain.TokenSnapshot{snap},
		Trades:    []domain.Trade{trade},
	}))

	rows, err := store.QueryTokenSnapshots(ctx, []string{"Mint1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ONE", rows[0].Symbol)
	assert.Equal(t, domain.PlatformPump, rows[0].Platform)

	// Upsert on conflict: re-writing the same mint updates, not duplicates.
	snap.Price = 2.5
	require.NoError(t, store.WriteBatch(ctx, sink.WriteBatch{Snapshots: []domain.TokenSnapshot{snap}}))
	rows, err = store.QueryTokenSnapshots(ctx, []string{"Mint1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 2.5, rows[0].Price)

	// Duplicate trade signature is ignored, not an error.
	require.NoError(t, store.WriteBatch(ctx, sink.WriteBatch{Trades: []domain.Trade{trade}}))
}

func TestStore_WriteAndQueryCleanupEvents(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := sinkpostgres.NewStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	event := domain.CleanupEvent{
		Mint:            "Mint2",
		Symbol:          "TWO",
		Platform:        domain.PlatformBonk,
		Reason:          domain.ReasonRugged,
		Details:         "Price dropped 96% from peak",
		Timestamp:       now,
		FinalPrice:      0.01,
		PeakPrice:       1.0,
		TrackedDuration: 3 * time.Hour,
		TotalTrades:     42,
	}
	require.NoError(t, store.WriteCleanupEvent(ctx, event))

	rows, err := store.QueryCleanupEvents(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, domain.ReasonRugged, rows[0].Reason)
	assert.Equal(t, int64(42), rows[0].TotalTrades)
	assert.Equal(t, 3*time.Hour, rows[0].TrackedDuration)
}

func TestStore_PriceHistoryAndVolumeAnalysisNotSupported(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := sinkpostgres.NewStore(pool)
	ctx := context.Background()

	_, err := store.QueryPriceHistory(ctx, "Mint1", time.Now())
	assert.Error(t, err)

	_, err = store.QueryVolumeAnalysis(ctx, "Mint1", domain.Window1h)
	assert.Error(t, err)
}
