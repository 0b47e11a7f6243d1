package config

import (
	"context"

	"github.com/spf13/pflag"
)

// Package config provides configuration management for restrack-ai.
//
// Responsibilities:
//   - Load configuration from YAML files, environment variables, and CLI flags
//   - Validate configuration on startup
//   - Provide runtime access to all configuration
//   - Support configuration reloading (analytics tunables and schedule)
//   - Establish reasonable defaults
//
// Configuration Sources (priority order, high to low):
//  1. CLI flags (highest priority)
//  2. Environment variables (RESTRACK_* prefix, "." replaced by "_")
//  3. YAML config files (default: /etc/restrack/config.yaml)
//  4. Built-in defaults (lowest priority)
//
// Main Configuration Sections:
//
//  1. Server
//     - port: Listen port (default 8090)
//     - allowed_origins: CORS and WebSocket origins
//     - read_timeout_seconds / write_timeout_seconds / shutdown_timeout_seconds
//
//  2. Database
//     - type: "sqlite" | "postgres" (where records are read from)
//     - sqlite_path: Path to SQLite file (always holds analysis runs)
//     - postgres_url: PostgreSQL connection string for the record source
//
//  3. Analytics
//     - window_months: Trailing window length
//     - stable_slope_ratio, min_history_months, low_data_confidence
//     - medium_threshold / high_threshold: anomaly score bands
//     - trim_top_fraction, min_savings_ratio: optimization advice
//     - disposal_percentile, disposal_value_threshold, recent_purchase_months
//     - peer_spread_floor: smallest peer spread relative to the peer mean
//     - budget_horizons, max_monthly_growth
//     - timeout_seconds: Wall-clock limit of one run
//     - schedule_interval_seconds: Periodic run interval (0 disables)
//
//  4. Logging
//     - level: "debug" | "info" | "warn" | "error"
//     - app_log_path / audit_log_path: empty writes to stderr
//     - max_size_mb, max_backups, max_age_days, compress, console
//
//  5. Tracing
//     - endpoint: OTLP collector (empty disables tracing)
//     - service_name, sampling_rate
//
//  6. RateLimit
//     - enabled, requests_per_second, burst
//
//  7. Seed
//     - seed, kitchens, items, months, buildings, spike_rate
//
// Config struct contains all configuration fields
type Config struct {
	// Server configuration
	Server struct {
		Port int
		// AllowedOrigins is a list of origins permitted for CORS and WebSocket
		// connections. Use ["*"] to allow any origin (development only).
		AllowedOrigins         []string
		ReadTimeoutSeconds     int
		WriteTimeoutSeconds    int
		ShutdownTimeoutSeconds int
	}

	// Database configuration
	Database struct {
		Type        string
		SQLitePath  string
		PostgresURL string
	}

	// Analytics configuration
	Analytics struct {
		WindowMonths           int
		StableSlopeRatio       float64
		MinHistoryMonths       int
		LowDataConfidence      float64
		MediumThreshold        float64
		HighThreshold          float64
		TrimTopFraction        float64
		MinSavingsRatio        float64
		DisposalPercentile     float64
		DisposalValueThreshold float64
		RecentPurchaseMonths   int
		PeerSpreadFloor        float64
		BudgetHorizons         []int
		MaxMonthlyGrowth       float64
		TimeoutSeconds         int
		ScheduleIntervalSecs   int
	}

	// Logging configuration
	Logging struct {
		Level        string
		AppLogPath   string
		AuditLogPath string
		MaxSizeMB    int
		MaxBackups   int
		MaxAgeDays   int
		Compress     bool
		Console      bool
	}

	// Tracing configuration
	Tracing struct {
		Endpoint     string
		ServiceName  string
		SamplingRate float64
	}

	// RateLimit configuration
	RateLimit struct {
		Enabled           bool
		RequestsPerSecond float64
		Burst             int
	}

	// Seed configuration for synthetic data
	Seed struct {
		Seed      int64
		Kitchens  int
		Items     int
		Months    int
		Buildings int
		SpikeRate float64
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// BindFlag binds a CLI flag to a configuration key, e.g. "server.port".
	// Must be called before Load.
	BindFlag(key string, flag *pflag.Flag) error

	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// DefaultConfigPath is used when no --config flag is given.
const DefaultConfigPath = "/etc/restrack/config.yaml"

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	if configPath == "" {
		configPath = DefaultConfigPath
	}
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	mgr.init()
	return mgr, nil
}
