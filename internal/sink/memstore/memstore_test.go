package memstore

import (
	"context"
	"testing"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

func TestWriteBatch_UpsertsSnapshotsAppendsTradesAndPoints(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.WriteBatch(ctx, sink.WriteBatch{
		Snapshots:   []domain.TokenSnapshot{{Mint: "Mint1", Price: 1}},
		Trades:      []domain.Trade{{Mint: "Mint1", Signature: "Sig1"}},
		PricePoints: []domain.PricePoint{{Mint: "Mint1", Price: 1}},
	})
	s.WriteBatch(ctx, sink.WriteBatch{
		Snapshots: []domain.TokenSnapshot{{Mint: "Mint1", Price: 2}},
	})

	snaps, _ := s.QueryTokenSnapshots(ctx, []string{"Mint1"})
	if len(snaps) != 1 || snaps[0].Price != 2 {
		t.Fatalf("snapshots = %+v, want one overwritten snapshot with Price=2", snaps)
	}
}

func TestQueryTokenSnapshots_EmptyMintsReturnsAllSorted(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.WriteBatch(ctx, sink.WriteBatch{Snapshots: []domain.TokenSnapshot{
		{Mint: "Bravo"}, {Mint: "Alpha"},
	}})

	out, err := s.QueryTokenSnapshots(ctx, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].Mint != "Alpha" || out[1].Mint != "Bravo" {
		t.Fatalf("out = %+v, want [Alpha Bravo]", out)
	}
}

func TestQueryTokenSnapshots_FiltersToMissingMints(t *testing.T) {
	s := New()
	out, err := s.QueryTokenSnapshots(context.Background(), []string{"Ghost"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("out = %+v, want empty for an unknown mint", out)
	}
}

func TestWriteCleanupEvent_RemovesSnapshotAndRecordsEvent(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.WriteBatch(ctx, sink.WriteBatch{Snapshots: []domain.TokenSnapshot{{Mint: "Mint1"}}})

	if err := s.WriteCleanupEvent(ctx, domain.CleanupEvent{Mint: "Mint1", Reason: domain.ReasonRugged}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snaps, _ := s.QueryTokenSnapshots(ctx, []string{"Mint1"})
	if len(snaps) != 0 {
		t.Fatal("expected the snapshot to be removed on cleanup")
	}
	events, _ := s.QueryCleanupEvents(ctx, time.Time{})
	if len(events) != 1 || events[0].Mint != "Mint1" {
		t.Fatalf("events = %+v, want one recorded cleanup event", events)
	}
}

func TestQueryPriceHistory_FiltersByMintAndSinceAndSortsAscending(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	s.WriteBatch(ctx, sink.WriteBatch{PricePoints: []domain.PricePoint{
		{Mint: "Mint1", Price: 3, Timestamp: now},
		{Mint: "Mint1", Price: 1, Timestamp: now.Add(-2 * time.Hour)},
		{Mint: "Mint1", Price: 2, Timestamp: now.Add(-time.Hour)},
		{Mint: "Mint2", Price: 99, Timestamp: now},
	}})

	out, err := s.QueryPriceHistory(ctx, "Mint1", now.Add(-90*time.Minute))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 || out[0].Price != 2 || out[1].Price != 3 {
		t.Fatalf("out = %+v, want [Price=2 Price=3] in ascending timestamp order", out)
	}
}

func TestQueryVolumeAnalysis_AggregatesBucketsAndTotal(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	s.WriteBatch(ctx, sink.WriteBatch{PricePoints: []domain.PricePoint{
		{Mint: "Mint1", Volume: 10, Timestamp: now.Add(-30 * time.Minute)},
		{Mint: "Mint1", Volume: 20, Timestamp: now},
	}})

	res, err := s.QueryVolumeAnalysis(ctx, "Mint1", domain.Window1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.TotalVolume != 30 {
		t.Fatalf("TotalVolume = %v, want 30", res.TotalVolume)
	}
	if res.BucketCount == 0 {
		t.Fatal("expected at least one populated bucket")
	}
}

func TestQueryCleanupEvents_FiltersBySinceAndSortsAscending(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	s.WriteCleanupEvent(ctx, domain.CleanupEvent{Mint: "Old", Timestamp: now.Add(-2 * time.Hour)})
	s.WriteCleanupEvent(ctx, domain.CleanupEvent{Mint: "New", Timestamp: now})

	out, err := s.QueryCleanupEvents(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 1 || out[0].Mint != "New" {
		t.Fatalf("out = %+v, want only the event after the cutoff", out)
	}
}

func TestWriteCleanupMetrics_Accumulates(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.WriteCleanupMetrics(ctx, domain.CleanupMetrics{ActuallyRemoved: 1}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.metrics) != 1 {
		t.Fatalf("metrics recorded = %d, want 1", len(s.metrics))
	}
}
