package tracker

import (
	"fmt"
	"time"
)

// Config holds every tunable of the tracker and its cleanup protocol. All
// fields are overridable; DefaultConfig returns the documented defaults.
type Config struct {
	GracePeriod         time.Duration
	InactivityThreshold time.Duration
	AnalysisInterval    time.Duration
	CleanupInterval     time.Duration

	MinVolume24h                 float64
	ConsecutiveZeroVolumePeriods int

	RugPriceDrop  float64
	RugVolumeDrop float64
	LiqThreshold  float64

	MaxCleanupPercentage float64
	MinTokensToKeep      int

	MaxTokensTracked int

	Whitelist      []string
	CleanupEnabled bool
}

// DefaultConfig returns spec.md §6's documented defaults.
func DefaultConfig() Config {
	return Config{
		GracePeriod:                  30 * time.Minute,
		InactivityThreshold:          time.Hour,
		AnalysisInterval:             60 * time.Second,
		CleanupInterval:              5 * time.Minute,
		MinVolume24h:                 10,
		ConsecutiveZeroVolumePeriods: 3,
		RugPriceDrop:                 0.95,
		RugVolumeDrop:                0.99,
		LiqThreshold:                 100,
		MaxCleanupPercentage:         0.10,
		MinTokensToKeep:              100,
		MaxTokensTracked:             1000,
		CleanupEnabled:               true,
	}
}

// Validate checks cfg per spec.md §4.3.6. Errors mean refuse to start;
// warnings are non-fatal and are returned for the caller to log.
func (c Config) Validate() (warnings []string, err error) {
	if c.GracePeriod <= 0 {
		return nil, fmt.Errorf("tracker: GracePeriod must be positive")
	}
	if c.InactivityThreshold <= 0 {
		return nil, fmt.Errorf("tracker: InactivityThreshold must be positive")
	}
	if c.CleanupInterval <= 0 {
		return nil, fmt.Errorf("tracker: CleanupInterval must be positive")
	}
	if c.AnalysisInterval <= 0 {
		return nil, fmt.Errorf("tracker: AnalysisInterval must be positive")
	}
	if c.MinVolume24h <= 0 {
		return nil, fmt.Errorf("tracker: MinVolume24h must be positive")
	}
	if c.LiqThreshold <= 0 {
		return nil, fmt.Errorf("tracker: LiqThreshold must be positive")
	}
	if c.MinTokensToKeep <= 0 {
		return nil, fmt.Errorf("tracker: MinTokensToKeep must be positive")
	}
	if c.MaxCleanupPercentage <= 0 || c.MaxCleanupPercentage > 1 {
		return nil, fmt.Errorf("tracker: MaxCleanupPercentage must be in (0,1]")
	}
	if c.RugPriceDrop <= 0 || c.RugPriceDrop > 1 {
		return nil, fmt.Errorf("tracker: RugPriceDrop must be in (0,1]")
	}
	if c.RugVolumeDrop <= 0 || c.RugVolumeDrop > 1 {
		return nil, fmt.Errorf("tracker: RugVolumeDrop must be in (0,1]")
	}

	if c.InactivityThreshold < time.Minute {
		warnings = append(warnings, "InactivityThreshold below 1 minute")
	}
	if c.CleanupInterval < time.Minute {
		warnings = append(warnings, "CleanupInterval below 1 minute")
	}
	if c.MaxCleanupPercentage > 0.5 {
		warnings = append(warnings, "MaxCleanupPercentage above 0.5")
	}
	if c.GracePeriod < 5*time.Minute {
		warnings = append(warnings, "GracePeriod below 5 minutes")
	}
	if c.CleanupInterval < c.AnalysisInterval {
		warnings = append(warnings, "CleanupInterval is less than AnalysisInterval")
	}
	if c.InactivityThreshold < c.GracePeriod {
		warnings = append(warnings, "InactivityThreshold is less than GracePeriod: tokens would never be considered inactive")
	}

	return warnings, nil
}
