// Package processor implements DataProcessor from spec.md §4.2: a single
// consumer draining a bounded queue of feed events, validating, deduping,
// batching, and flushing to a sink across its three parallel write
// vectors (snapshots, trades, price points).
package processor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"solana-token-lab/internal/coreerrors"
	"solana-token-lab/internal/domain"
	"solana-token-lab/internal/sink"
)

// Sink is the subset of sink.Sink the processor needs to flush a batch.
type Sink interface {
	WriteBatch(ctx context.Context, batch sink.WriteBatch) error
}

// Tracker receives accepted events so in-memory state (current snapshot,
// health, indices) stays current independent of the sink write path.
type Tracker interface {
	HandleEvent(ctx context.Context, ev domain.Event)
}

// Config configures a Processor.
type Config struct {
	QueueCapacity int
	BatchSize     int
	BatchInterval time.Duration
	DedupWindow   time.Duration
	DedupSweep    time.Duration
}

// DefaultConfig returns spec.md's documented defaults.
func DefaultConfig() Config {
	return Config{
		QueueCapacity: 10000,
		BatchSize:     100,
		BatchInterval: 5 * time.Second,
		DedupWindow:   1 * time.Second,
		DedupSweep:    2 * time.Second,
	}
}

// Stats are the processor's running counters, exposed for metrics.
type Stats struct {
	Accepted         atomic.Int64
	Backpressure     atomic.Int64
	ValidationErrors atomic.Int64
	DatabaseErrors   atomic.Int64
	Deduped          atomic.Int64
}

// Processor is DataProcessor. Submit is the only entry point callers use;
// Run drains the queue on the calling goroutine until ctx is cancelled.
type Processor struct {
	cfg     Config
	sink    Sink
	tracker Tracker
	logger  *slog.Logger

	queue chan domain.Event
	Stats Stats

	dedupMu sync.Mutex
	dedup   map[string]time.Time // key -> last-seen arrival time
}

// New wires a Processor from its dependencies.
func New(cfg Config, s Sink, tracker Tracker, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		cfg:     cfg,
		sink:    s,
		tracker: tracker,
		logger:  logger,
		queue:   make(chan domain.Event, cfg.QueueCapacity),
		dedup:   make(map[string]time.Time),
	}
}

// Submit enqueues ev for processing. It never blocks: if the queue is
// full it returns coreerrors.ErrBackpressure immediately so the caller
// (the feed adapter) can apply backpressure upstream instead of stalling.
func (p *Processor) Submit(ev domain.Event) error {
	select {
	case p.queue <- ev:
		return nil
	default:
		p.Stats.Backpressure.Add(1)
		return coreerrors.ErrBackpressure
	}
}

// Run drains the queue, batching and flushing until ctx is cancelled. It
// also runs the dedup sweep and a final flush on shutdown.
func (p *Processor) Run(ctx context.Context) error {
	batchTicker := time.NewTicker(p.cfg.BatchInterval)
	defer batchTicker.Stop()

	sweepTicker := time.NewTicker(p.cfg.DedupSweep)
	defer sweepTicker.Stop()

	batch := make([]domain.Event, 0, p.cfg.BatchSize)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, batch)
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return ctx.Err()

		case ev := <-p.queue:
			if !p.accept(ev) {
				continue
			}
			batch = append(batch, ev)
			if len(batch) >= p.cfg.BatchSize {
				flush()
			}

		case <-batchTicker.C:
			flush()

		case <-sweepTicker.C:
			p.sweepDedup(time.Now())
		}
	}
}

// accept validates and dedups ev, updating the tracker for anything it
// keeps. Returns false if ev should not enter the batch.
func (p *Processor) accept(ev domain.Event) bool {
	if ev.Kind == domain.EventUnknown {
		return false
	}

	mint := ev.Mint()
	if mint != "" {
		if err := domain.ValidateMint(mint); err != nil {
			p.Stats.ValidationErrors.Add(1)
			p.logger.Debug("processor: rejected invalid mint", "mint", mint, "error", err)
			return false
		}
	}

	if p.isDuplicate(ev) {
		p.Stats.Deduped.Add(1)
		return false
	}

	p.Stats.Accepted.Add(1)
	if p.tracker != nil {
		p.tracker.HandleEvent(context.Background(), ev)
	}
	return true
}

// isDuplicate dedups strictly on arrival order within the configured
// window: a late-arriving event with an earlier timestamp than what's
// already buffered is still compared against what's currently in the
// window, never reordered by timestamp.
func (p *Processor) isDuplicate(ev domain.Event) bool {
	key := dedupKey(ev)
	if key == "" {
		return false
	}

	now := time.Now()
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()

	if last, ok := p.dedup[key]; ok && now.Sub(last) < p.cfg.DedupWindow {
		return true
	}
	p.dedup[key] = now
	return false
}

func (p *Processor) sweepDedup(now time.Time) {
	p.dedupMu.Lock()
	defer p.dedupMu.Unlock()
	for k, seen := range p.dedup {
		if now.Sub(seen) >= p.cfg.DedupWindow {
			delete(p.dedup, k)
		}
	}
}

func dedupKey(ev domain.Event) string {
	switch ev.Kind {
	case domain.EventTrade:
		if ev.Trade != nil {
			return "trade:" + ev.Trade.Trade.Signature
		}
	case domain.EventNewToken:
		if ev.NewToken != nil {
			return "new_token:" + ev.NewToken.Snapshot.Mint
		}
	}
	return ""
}

// flush builds a sink.WriteBatch from the accumulated events and writes
// it. On failure the batch is re-queued wholesale so nothing already
// validated and deduped is silently lost; if re-queueing itself would
// overflow the bounded queue, the overflow counts as backpressure rather
// than blocking the consumer loop.
func (p *Processor) flush(ctx context.Context, batch []domain.Event) {
	wb := sink.WriteBatch{}
	for _, ev := range batch {
		switch ev.Kind {
		case domain.EventNewToken:
			snap := ev.NewToken.Snapshot
			wb.Snapshots = append(wb.Snapshots, snap)
			if snap.Price > 0 {
				wb.PricePoints = append(wb.PricePoints, domain.PricePoint{
					Mint:      snap.Mint,
					Platform:  snap.Platform,
					Price:     snap.Price,
					Volume:    snap.Volume24h,
					Timestamp: snap.Timestamp,
					Source:    "new_token",
				})
			}
		case domain.EventTrade:
			wb.Trades = append(wb.Trades, ev.Trade.Trade)
		}
	}

	if err := p.sink.WriteBatch(ctx, wb); err != nil {
		p.Stats.DatabaseErrors.Add(1)
		p.logger.Error("processor: batch write failed, re-queueing", "error", err, "size", len(batch))
		p.requeue(batch)
	}
}

func (p *Processor) requeue(batch []domain.Event) {
	for _, ev := range batch {
		select {
		case p.queue <- ev:
		default:
			p.Stats.Backpressure.Add(1)
		}
	}
}
