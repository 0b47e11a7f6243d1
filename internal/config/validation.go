package config

import (
	"fmt"

	"go.uber.org/zap/zapcore"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
func (c *Config) Validate() []error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	// Server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port", "port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ReadTimeoutSeconds < 1 {
		add("server.read_timeout_seconds", "must be at least 1 second, got %d", c.Server.ReadTimeoutSeconds)
	}
	if c.Server.WriteTimeoutSeconds < 1 {
		add("server.write_timeout_seconds", "must be at least 1 second, got %d", c.Server.WriteTimeoutSeconds)
	}

	// Database
	switch c.Database.Type {
	case "sqlite":
	case "postgres":
		if c.Database.PostgresURL == "" {
			add("database.postgres_url", "postgres_url is required when database type is postgres")
		}
	default:
		add("database.type", "invalid database type '%s', must be one of: sqlite, postgres", c.Database.Type)
	}
	if c.Database.SQLitePath == "" {
		add("database.sqlite_path", "sqlite_path is required; analysis runs are always stored in SQLite")
	}

	// Analytics
	a := c.Analytics
	if a.WindowMonths < 1 {
		add("analytics.window_months", "window must be at least 1 month, got %d", a.WindowMonths)
	}
	if !openUnit(a.StableSlopeRatio) {
		add("analytics.stable_slope_ratio", "must be in (0, 1), got %g", a.StableSlopeRatio)
	}
	if a.MinHistoryMonths < 1 {
		add("analytics.min_history_months", "must be at least 1, got %d", a.MinHistoryMonths)
	}
	if !openUnit(a.LowDataConfidence) {
		add("analytics.low_data_confidence", "must be in (0, 1), got %g", a.LowDataConfidence)
	}
	if a.MediumThreshold <= 0 {
		add("analytics.medium_threshold", "must be positive, got %g", a.MediumThreshold)
	}
	if a.HighThreshold <= a.MediumThreshold {
		add("analytics.high_threshold", "must be greater than medium_threshold (%g), got %g", a.MediumThreshold, a.HighThreshold)
	}
	if !openUnit(a.TrimTopFraction) {
		add("analytics.trim_top_fraction", "must be in (0, 1), got %g", a.TrimTopFraction)
	}
	if !openUnit(a.MinSavingsRatio) {
		add("analytics.min_savings_ratio", "must be in (0, 1), got %g", a.MinSavingsRatio)
	}
	if a.DisposalPercentile <= 0 || a.DisposalPercentile > 100 {
		add("analytics.disposal_percentile", "must be in (0, 100], got %g", a.DisposalPercentile)
	}
	if a.DisposalValueThreshold < 0 {
		add("analytics.disposal_value_threshold", "cannot be negative, got %g", a.DisposalValueThreshold)
	}
	if a.RecentPurchaseMonths < 1 || a.RecentPurchaseMonths > a.WindowMonths {
		add("analytics.recent_purchase_months", "must be between 1 and window_months (%d), got %d", a.WindowMonths, a.RecentPurchaseMonths)
	}
	if !openUnit(a.PeerSpreadFloor) {
		add("analytics.peer_spread_floor", "must be in (0, 1), got %g", a.PeerSpreadFloor)
	}
	if len(a.BudgetHorizons) == 0 {
		add("analytics.budget_horizons", "at least one horizon is required")
	}
	for _, h := range a.BudgetHorizons {
		if h < 1 {
			add("analytics.budget_horizons", "horizons must be positive, got %d", h)
			break
		}
	}
	if !openUnit(a.MaxMonthlyGrowth) {
		add("analytics.max_monthly_growth", "must be in (0, 1), got %g", a.MaxMonthlyGrowth)
	}
	if a.TimeoutSeconds < 1 {
		add("analytics.timeout_seconds", "must be at least 1 second, got %d", a.TimeoutSeconds)
	}
	if a.ScheduleIntervalSecs < 0 {
		add("analytics.schedule_interval_seconds", "cannot be negative, got %d", a.ScheduleIntervalSecs)
	}

	// Logging
	if _, err := zapcore.ParseLevel(c.Logging.Level); err != nil {
		add("logging.level", "invalid level '%s', must be one of: debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.MaxSizeMB < 0 {
		add("logging.max_size_mb", "cannot be negative, got %d", c.Logging.MaxSizeMB)
	}

	// Tracing
	if c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1 {
		add("tracing.sampling_rate", "must be in [0, 1], got %g", c.Tracing.SamplingRate)
	}
	if c.Tracing.Endpoint != "" && c.Tracing.ServiceName == "" {
		add("tracing.service_name", "service_name is required when tracing is enabled")
	}

	// RateLimit
	if c.RateLimit.Enabled {
		if c.RateLimit.RequestsPerSecond <= 0 {
			add("ratelimit.requests_per_second", "must be positive, got %g", c.RateLimit.RequestsPerSecond)
		}
		if c.RateLimit.Burst < 1 {
			add("ratelimit.burst", "must be at least 1, got %d", c.RateLimit.Burst)
		}
	}

	// Seed
	if c.Seed.Kitchens < 1 || c.Seed.Items < 1 || c.Seed.Months < 1 || c.Seed.Buildings < 1 {
		add("seed", "kitchens, items, months and buildings must all be at least 1")
	}
	if c.Seed.SpikeRate < 0 || c.Seed.SpikeRate >= 1 {
		add("seed.spike_rate", "must be in [0, 1), got %g", c.Seed.SpikeRate)
	}

	return errs
}

func openUnit(v float64) bool {
	return v > 0 && v < 1
}
