// Package config provides application configuration loaded from
// environment variables. All configuration is externalized via
// environment variables for 12-factor app compliance.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"solana-token-lab/internal/feed"
	"solana-token-lab/internal/platform"
	"solana-token-lab/internal/processor"
	"solana-token-lab/internal/tracker"
)

// Config holds every recognized option from spec.md §6.
type Config struct {
	// Feed
	FeedURL             string
	ReconnectDelay      time.Duration
	MaxReconnectDelay   time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval   time.Duration

	// Processor
	MaxTokensTracked int
	Processor        processor.Config

	// Tracker / cleanup
	Tracker tracker.Config

	// Platform detector
	Platform platform.Config

	// Postgres / ClickHouse
	PostgresDSN   string
	ClickhouseDSN string

	// Redis (platform detection cache)
	RedisAddr string

	// SolanaRPCURL backs the platform detector's authoritative lookup
	// (spec.md §4.1 stage 3). Empty disables that stage; detection then
	// falls back to the mint-pattern rule and the low-confidence default.
	SolanaRPCURL string

	MetricsNamespace string
	MetricsAddr      string
}

// Load reads configuration from the environment, loading a .env file
// first if present (ignored if missing, matching the ecosystem
// convention of treating it as an optional local-dev convenience).
func Load() (Config, error) {
	_ = godotenv.Load()

	feedURL := getEnv("FEED_URL", "")
	if feedURL == "" {
		return Config{}, fmt.Errorf("config: FEED_URL is required")
	}

	cfg := Config{
		FeedURL:              feedURL,
		ReconnectDelay:       getEnvMillis("RECONNECT_DELAY_MS", 5000),
		MaxReconnectDelay:    60 * time.Second,
		MaxReconnectAttempts: getEnvInt("MAX_RECONNECT_ATTEMPTS", 10),
		HeartbeatInterval:    getEnvMillis("HEARTBEAT_MS", 30000),

		MaxTokensTracked: getEnvInt("MAX_TOKENS_TRACKED", 1000),
		Processor: processor.Config{
			QueueCapacity: 10000,
			BatchSize:     getEnvInt("BATCH_SIZE", 100),
			BatchInterval: getEnvMillis("FLUSH_INTERVAL_MS", 5000),
			DedupWindow:   getEnvMillis("DEDUP_WINDOW_MS", 1000),
			DedupSweep:    2 * getEnvMillis("DEDUP_WINDOW_MS", 1000),
		},

		Tracker: tracker.Config{
			GracePeriod:                  getEnvMillis("GRACE_PERIOD_MS", 1800000),
			InactivityThreshold:          getEnvMillis("INACTIVITY_THRESHOLD_MS", 3600000),
			AnalysisInterval:             getEnvMillis("ANALYSIS_INTERVAL_MS", 60000),
			CleanupInterval:              getEnvMillis("CLEANUP_INTERVAL_MS", 300000),
			MinVolume24h:                 getEnvFloat("MIN_VOLUME_24H", 10),
			ConsecutiveZeroVolumePeriods: getEnvInt("CONSECUTIVE_ZERO_VOLUME_PERIODS", 3),
			RugPriceDrop:                 getEnvFloat("RUG_PRICE_DROP", 0.95),
			RugVolumeDrop:                getEnvFloat("RUG_VOLUME_DROP", 0.99),
			LiqThreshold:                 getEnvFloat("LIQ_THRESHOLD", 100),
			MaxCleanupPercentage:         getEnvFloat("MAX_CLEANUP_PERCENTAGE", 0.10),
			MinTokensToKeep:              getEnvInt("MIN_TOKENS_TO_KEEP", 100),
			MaxTokensTracked:             getEnvInt("MAX_TOKENS_TRACKED", 1000),
			Whitelist:                    getEnvList("WHITELIST"),
			CleanupEnabled:               getEnvBool("CLEANUP_ENABLED", true),
		},

		Platform: platform.DefaultConfig(),

		PostgresDSN:   getEnv("POSTGRES_DSN", ""),
		ClickhouseDSN: getEnv("CLICKHOUSE_DSN", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		SolanaRPCURL:  getEnv("SOLANA_RPC_URL", ""),

		MetricsNamespace: getEnv("METRICS_NAMESPACE", "token_tracker"),
		MetricsAddr:      getEnv("METRICS_ADDR", ":9090"),
	}

	return cfg, nil
}

// FeedConfig adapts Config into feed.Config for the ws client.
func (c Config) FeedConfig() feed.Config {
	return feed.Config{
		Endpoint:          c.FeedURL,
		ReconnectDelay:    c.ReconnectDelay,
		MaxReconnectDelay: c.MaxReconnectDelay,
		PingInterval:      c.HeartbeatInterval,
		ReadTimeout:       c.HeartbeatInterval * 2,
		WriteTimeout:      10 * time.Second,
	}
}

func getEnv(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64) float64 {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvBool(key string, defaultValue bool) bool {
	v := getEnv(key, "")
	if v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultValue
	}
	return b
}

func getEnvMillis(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvInt(key, defaultMillis)) * time.Millisecond
}

func getEnvList(key string) []string {
	v := getEnv(key, "")
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
