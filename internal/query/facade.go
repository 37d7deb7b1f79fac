// Package query implements the read-only projections spec.md §6 exposes
// to the tool-calling QueryFacade: each projection is a pure function of
// (Tracker state ∪ Sink). The facade's natural-language parsing itself
// is out of scope (spec.md §1's external-collaborator boundary).
package query

import (
	"context"
	"fmt"
	"time"

	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

// Tracker is the live-state half of the facade's dependencies.
type Tracker interface {
	GetSnapshot(mint string) (domain.TokenSnapshot, bool)
	GetAll() []domain.TokenSnapshot
	GetHistory(mint string, limit int) []domain.PricePoint
	GetTrend(mint string, window domain.TrendWindow) (domain.Trend, bool)
	GetAllTrends() []domain.Trend
	GetAlerts() []domain.Alert
}

// Sink is the durable-history half of the facade's dependencies.
type Sink interface {
	QueryPriceHistory(ctx context.Context, mint string, since time.Time) ([]domain.PricePoint, error)
	QueryVolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) (sink.VolumeAnalysis, error)
	QueryCleanupEvents(ctx context.Context, since time.Time) ([]domain.CleanupEvent, error)
	QueryTokenSnapshots(ctx context.Context, mints []string) ([]domain.TokenSnapshot, error)
}

// Result is the structured envelope every facade call returns, per
// spec.md §7's "{success, error, queryType}" contract for unreachable
// sink or invalid arguments.
type Result struct {
	Success   bool   `json:"success"`
	QueryType string `json:"queryType"`
	Error     string `json:"error,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// Facade answers read-only queries against the live tracker and the
// durable sink.
type Facade struct {
	tracker Tracker
	sink    Sink
}

// New wires a Facade.
func New(tracker Tracker, s Sink) *Facade {
	return &Facade{tracker: tracker, sink: s}
}

func fail(queryType string, err error) Result {
	return Result{Success: false, QueryType: queryType, Error: err.Error()}
}

func ok(queryType string, data any) Result {
	return Result{Success: true, QueryType: queryType, Data: data}
}

// CurrentSnapshot returns the tracker's live view of mint, falling back
// to the durable store if the mint isn't (or is no longer) tracked.
func (f *Facade) CurrentSnapshot(ctx context.Context, mint string) Result {
	const queryType = "current_snapshot"
	if snap, found := f.tracker.GetSnapshot(mint); found {
		return ok(queryType, snap)
	}
	rows, err := f.sink.QueryTokenSnapshots(ctx, []string{mint})
	if err != nil {
		return fail(queryType, err)
	}
	if len(rows) == 0 {
		return fail(queryType, fmt.Errorf("no snapshot found for mint %q", mint))
	}
	return ok(queryType, rows[0])
}

// AllTracked returns every currently tracked snapshot.
func (f *Facade) AllTracked(ctx context.Context) Result {
	return ok("all_tracked", f.tracker.GetAll())
}

// PriceHistory prefers the in-memory ring (zero-latency, bounded to
// 1,000 points) and falls back to the durable sink for a longer window.
func (f *Facade) PriceHistory(ctx context.Context, mint string, since time.Time, limit int) Result {
	const queryType = "price_history"
	inMemory := f.tracker.GetHistory(mint, limit)
	if len(inMemory) > 0 && (inMemory[0].Timestamp.Before(since) || inMemory[0].Timestamp.Equal(since)) {
		return ok(queryType, inMemory)
	}
	rows, err := f.sink.QueryPriceHistory(ctx, mint, since)
	if err != nil {
		return fail(queryType, err)
	}
	return ok(queryType, rows)
}

// Trend returns the last computed trend for (mint, window).
func (f *Facade) Trend(ctx context.Context, mint string, window domain.TrendWindow) Result {
	const queryType = "trend"
	tr, found := f.tracker.GetTrend(mint, window)
	if !found {
		return fail(queryType, fmt.Errorf("no trend computed yet for mint %q window %q", mint, window))
	}
	return ok(queryType, tr)
}

// AllTrends returns every stored trend across all tracked mints and windows.
func (f *Facade) AllTrends(ctx context.Context) Result {
	return ok("all_trends", f.tracker.GetAllTrends())
}

// VolumeAnalysis delegates to the sink's bucketed aggregation query.
func (f *Facade) VolumeAnalysis(ctx context.Context, mint string, window domain.TrendWindow) Result {
	const queryType = "volume_analysis"
	v, err := f.sink.QueryVolumeAnalysis(ctx, mint, window)
	if err != nil {
		return fail(queryType, err)
	}
	return ok(queryType, v)
}

// CleanupHistory returns cleanup events since the given time.
func (f *Facade) CleanupHistory(ctx context.Context, since time.Time) Result {
	const queryType = "cleanup_history"
	rows, err := f.sink.QueryCleanupEvents(ctx, since)
	if err != nil {
		return fail(queryType, err)
	}
	return ok(queryType, rows)
}

// Alerts returns the tracker's current alert registry.
func (f *Facade) Alerts(ctx context.Context) Result {
	return ok("alerts", f.tracker.GetAlerts())
}
