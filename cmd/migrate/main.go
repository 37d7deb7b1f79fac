// Command migrate applies the Postgres and ClickHouse schema migrations
// and exits. It exists so migrations can run as a one-shot job ahead of
// the agent, rather than racing the agent's own startup.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"solana-token-lab/internal/config"
	pgstore "solana-token-lab/internal/sink/postgres"
	"solana-token-lab/internal/storage/migrations"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("migrate: failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Error("migrate: failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		logger.Error("migrate: postgres migrations failed", "error", err)
		os.Exit(1)
	}
	logger.Info("migrate: postgres migrations applied")

	chConn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickhouseDSN)
	if err != nil {
		logger.Error("migrate: clickhouse migrations failed", "error", err)
		os.Exit(1)
	}
	defer chConn.Close()
	logger.Info("migrate: clickhouse migrations applied")
}
