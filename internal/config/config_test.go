package config

import (
	"testing"
	"time"
)

func TestLoad_RequiresFeedURL(t *testing.T) {
	t.Setenv("FEED_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("expected an error when FEED_URL is unset")
	}
}

func TestLoad_DefaultsWhenOnlyFeedURLSet(t *testing.T) {
	t.Setenv("FEED_URL", "wss://example.test/feed")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FeedURL != "wss://example.test/feed" {
		t.Fatalf("FeedURL = %q", cfg.FeedURL)
	}
	if cfg.MaxReconnectAttempts != 10 {
		t.Fatalf("MaxReconnectAttempts = %d, want default 10", cfg.MaxReconnectAttempts)
	}
	if cfg.Tracker.MinTokensToKeep != 100 {
		t.Fatalf("Tracker.MinTokensToKeep = %d, want default 100", cfg.Tracker.MinTokensToKeep)
	}
	if !cfg.Tracker.CleanupEnabled {
		t.Fatal("CleanupEnabled should default to true")
	}
	if len(cfg.Tracker.Whitelist) != 0 {
		t.Fatalf("Whitelist = %v, want empty by default", cfg.Tracker.Whitelist)
	}
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("FEED_URL", "wss://example.test/feed")
	t.Setenv("MIN_TOKENS_TO_KEEP", "50")
	t.Setenv("CLEANUP_ENABLED", "false")
	t.Setenv("WHITELIST", "Mint1, Mint2 ,,Mint3")
	t.Setenv("MAX_CLEANUP_PERCENTAGE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tracker.MinTokensToKeep != 50 {
		t.Fatalf("MinTokensToKeep = %d, want 50", cfg.Tracker.MinTokensToKeep)
	}
	if cfg.Tracker.CleanupEnabled {
		t.Fatal("CleanupEnabled should be false")
	}
	if got, want := cfg.Tracker.Whitelist, []string{"Mint1", "Mint2", "Mint3"}; len(got) != len(want) {
		t.Fatalf("Whitelist = %v, want %v", got, want)
	} else {
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("Whitelist = %v, want %v", got, want)
			}
		}
	}
	if cfg.Tracker.MaxCleanupPercentage != 0.25 {
		t.Fatalf("MaxCleanupPercentage = %v, want 0.25", cfg.Tracker.MaxCleanupPercentage)
	}
}

func TestLoad_IgnoresUnparsableOverrides(t *testing.T) {
	t.Setenv("FEED_URL", "wss://example.test/feed")
	t.Setenv("MIN_TOKENS_TO_KEEP", "not-a-number")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Tracker.MinTokensToKeep != 100 {
		t.Fatalf("MinTokensToKeep = %d, want fallback default 100 for an unparsable override", cfg.Tracker.MinTokensToKeep)
	}
}

func TestFeedConfig_Adapter(t *testing.T) {
	cfg := Config{
		FeedURL:           "wss://example.test/feed",
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: time.Minute,
		HeartbeatInterval: 10 * time.Second,
	}
	fc := cfg.FeedConfig()
	if fc.Endpoint != cfg.FeedURL {
		t.Fatalf("Endpoint = %q, want %q", fc.Endpoint, cfg.FeedURL)
	}
	if fc.PingInterval != cfg.HeartbeatInterval {
		t.Fatalf("PingInterval = %v, want %v", fc.PingInterval, cfg.HeartbeatInterval)
	}
	if fc.ReadTimeout != 2*cfg.HeartbeatInterval {
		t.Fatalf("ReadTimeout = %v, want 2x HeartbeatInterval", fc.ReadTimeout)
	}
}
