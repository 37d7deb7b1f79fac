// Package memstore is an in-memory sink.Sink for tests, following the same
// copy-in/copy-out discipline as the teacher's in-memory stores.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

// Store is a sink.Sink backed by plain maps and slices, guarded by a single
// RWMutex. It never errors and never drops data, which makes it useful for
// exercising the processor/tracker without any external dependency.
type Store struct {
	mu sync.RWMutex

	snapshots map[string]domain.TokenSnapshot
	trades    []domain.Trade
	points    []domain.PricePoint
	events    []domain.CleanupEvent
	metrics   []domain.CleanupMetrics
}

// New returns an empty in-memory Store.
func New() *Store {
	return &Store{snapshots: make(map[string]domain.TokenSnapshot)}
}

func (s *Store) WriteBatch(ctx context.Context, batch sink.WriteBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range batch.Snapshots {
		s.snapshots[snap.Mint] = snap
	}
	s.trades = append(s.trades, batch.Trades...)
	s.points = append(s.points, batch.PricePoints...)
	return nil
}

func (s *Store) WriteCleanupEvent(ctx context.Context, event domain.CleanupEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	delete(s.snapshots, event.Mint)
	return nil
}

func (s *Store) WriteCleanupMetrics(ctx context.Context, metrics domain.CleanupMetrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, metrics)
	return nil
}

func (s *Store) QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(mints) == 0 {
		out := make([]domain.TokenSnapshot, 0, len(s.snapshots))
		for _, snap := range s.snapshots {
			out = append(out, snap)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Mint < out[j].Mint })
		return out, nil
	}

	out := make([]domain.TokenSnapshot, 0, len(mints))
	for _, m := range mints {
		if snap, ok := s.snapshots[m]; ok {
			out = append(out, snap)
		}
	}
	return out, nil
}

func (s *Store) QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.PricePoint
	for _, p := range s.points {
		if p.Mint == mint && !p.Timestamp.Before(since) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *Store) QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (sink.VolumeAnalysis, error) {
	since := time.Now().Add(-window.Duration())
	points, _ := s.QueryPriceHistory(ctx, mint, since)

	bucketSize := window.Bucket()
	buckets := make(map[int64]struct{})
	var total float64
	for _, p := range points {
		total += p.Volume
		if bucketSize > 0 {
			buckets[p.Timestamp.Unix()/int64(bucketSize.Seconds())] = struct{}{}
		}
	}

	result := sink.VolumeAnalysis{Mint: mint, Window: window, TotalVolume: total, BucketCount: len(buckets)}
	if len(buckets) > 0 {
		result.AvgPerBucket = total / float64(len(buckets))
	}
	return result, nil
}

func (s *Store) QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.CleanupEvent
	for _, e := range s.events {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

var _ sink.Sink = (*Store)(nil)
