// Command agent is the composition root: it wires the feed client,
// platform detector, sink, processor, tracker, and trend analyzer
// together and runs them until terminated.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"solana-token-lab/internal/config"
	"solana-token-lab/internal/eventbus"
	"solana-token-lab/internal/feed"
	"solana-token-lab/internal/observability"
	"solana-token-lab/internal/platform"
	"solana-token-lab/internal/processor"
	"solana-token-lab/internal/query"
	"solana-token-lab/internal/sink"
	chstore "solana-token-lab/internal/sink/clickhouse"
	pgstore "solana-token-lab/internal/sink/postgres"
	"solana-token-lab/internal/solana"
	"solana-token-lab/internal/storage/migrations"
	"solana-token-lab/internal/tracker"
	"solana-token-lab/internal/trend"

	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config: failed to load", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil && err != context.Canceled {
		logger.Error("agent: exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	metrics := observability.New(cfg.MetricsNamespace)

	s, err := buildSink(ctx, cfg, logger)
	if err != nil {
		return err
	}

	bus := eventbus.New(logger)
	feedClient := feed.NewWSClient(cfg.FeedConfig(), logger)

	detector := buildDetector(ctx, cfg, logger)

	trk, warnings, err := tracker.New(cfg.Tracker, s, bus, logger)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		logger.Warn("tracker: configuration warning", "warning", w)
	}

	proc := processor.New(cfg.Processor, s, trk, logger)
	analyzer := trend.New(s, trk, cfg.Tracker.AnalysisInterval, logger)
	facade := query.New(trk, s)
	_ = facade // wired for the (out-of-scope) tool surface to consume

	unsubTopic := bus.Subscribe(eventbus.TopicTokenCleanedUp, func(payload any) {
		m, ok := payload.(map[string]any)
		if !ok {
			return
		}
		mint, _ := m["mint"].(string)
		if mint == "" {
			return
		}
		if err := feedClient.Unsubscribe(ctx, mint); err != nil {
			logger.Warn("agent: unsubscribe after cleanup failed", "mint", mint, "error", err)
		}
	})
	defer unsubTopic()

	if err := feedClient.Connect(ctx); err != nil {
		return err
	}
	defer feedClient.Disconnect()

	go drainFeedEvents(ctx, feedClient, proc, logger)

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: observability.Handler()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("agent: metrics server failed", "error", err)
		}
	}()
	defer metricsSrv.Close()

	go reportQueueDepth(ctx, proc, metrics)
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				detector.RunRetries(ctx)
			}
		}
	}()

	errCh := make(chan error, 3)
	go func() { errCh <- proc.Run(ctx) }()
	go func() { errCh <- trk.RunCleanupLoop(ctx) }()
	go func() { errCh <- analyzer.Run(ctx) }()

	<-ctx.Done()
	for i := 0; i < 3; i++ {
		<-errCh
	}
	return ctx.Err()
}

func drainFeedEvents(ctx context.Context, feedClient feed.Client, proc *processor.Processor, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-feedClient.Events():
			if !ok {
				return
			}
			if err := proc.Submit(ev); err != nil {
				logger.Warn("agent: processor backpressure, dropping event", "mint", ev.Mint(), "error", err)
			}
		}
	}
}

func reportQueueDepth(ctx context.Context, proc *processor.Processor, metrics *observability.Metrics) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	var last int64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cur := proc.Stats.Accepted.Load()
			metrics.EventsAccepted.Add(float64(cur - last))
			last = cur
		}
	}
}

func buildSink(ctx context.Context, cfg config.Config, logger *slog.Logger) (sink.Sink, error) {
	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		return nil, err
	}

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		return nil, err
	}

	points := pgstore.NewStore(pool)
	series := chstore.NewStore(chConn)
	return sink.NewHybrid(points, series), nil
}

func buildDetector(ctx context.Context, cfg config.Config, logger *slog.Logger) *platform.Detector {
	var cache platform.Cache
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		cache = platform.NewRedisCache(rdb, "platform:cache:", logger)
	} else {
		cache = platform.NewMemCache()
	}

	var lookup platform.AuthoritativeLookup
	if cfg.SolanaRPCURL != "" {
		lookup = solana.NewPlatformLookup(solana.NewHTTPClient(cfg.SolanaRPCURL))
	}
	return platform.NewDetector(cfg.Platform, cache, lookup, logger)
}
