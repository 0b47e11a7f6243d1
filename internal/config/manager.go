package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	configPath string
	viper      *viper.Viper
	watchChan  chan Config

	mu     sync.RWMutex
	config *Config
}

func (m *viperConfigManager) init() {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("RESTRACK")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()
}

// BindFlag binds a CLI flag to a configuration key.
func (m *viperConfigManager) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("flag for %s is nil", key)
	}
	return m.viper.BindPFlag(key, flag)
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	if err := m.readFile(); err != nil {
		return err
	}
	return m.unmarshalConfig()
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.Get(ctx).Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads. Invalid updates are
// dropped and the previous configuration stays in effect.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		cfg := *m.Get(ctx)
		if len(cfg.Validate()) > 0 {
			return
		}
		select {
		case m.watchChan <- cfg:
		default:
			// Channel full, skip this update
		}
	})
	m.viper.WatchConfig()

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if err := m.readFile(); err != nil {
		return err
	}
	return m.unmarshalConfig()
}

// readFile reads the config file. A missing file is not an error; defaults
// and environment variables apply.
func (m *viperConfigManager) readFile() error {
	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	// Server defaults
	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.read_timeout_seconds", defaults.Server.ReadTimeoutSeconds)
	m.viper.SetDefault("server.write_timeout_seconds", defaults.Server.WriteTimeoutSeconds)
	m.viper.SetDefault("server.shutdown_timeout_seconds", defaults.Server.ShutdownTimeoutSeconds)

	// Database defaults
	m.viper.SetDefault("database.type", defaults.Database.Type)
	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)
	m.viper.SetDefault("database.postgres_url", defaults.Database.PostgresURL)

	// Analytics defaults
	m.viper.SetDefault("analytics.window_months", defaults.Analytics.WindowMonths)
	m.viper.SetDefault("analytics.stable_slope_ratio", defaults.Analytics.StableSlopeRatio)
	m.viper.SetDefault("analytics.min_history_months", defaults.Analytics.MinHistoryMonths)
	m.viper.SetDefault("analytics.low_data_confidence", defaults.Analytics.LowDataConfidence)
	m.viper.SetDefault("analytics.medium_threshold", defaults.Analytics.MediumThreshold)
	m.viper.SetDefault("analytics.high_threshold", defaults.Analytics.HighThreshold)
	m.viper.SetDefault("analytics.trim_top_fraction", defaults.Analytics.TrimTopFraction)
	m.viper.SetDefault("analytics.min_savings_ratio", defaults.Analytics.MinSavingsRatio)
	m.viper.SetDefault("analytics.disposal_percentile", defaults.Analytics.DisposalPercentile)
	m.viper.SetDefault("analytics.disposal_value_threshold", defaults.Analytics.DisposalValueThreshold)
	m.viper.SetDefault("analytics.recent_purchase_months", defaults.Analytics.RecentPurchaseMonths)
	m.viper.SetDefault("analytics.peer_spread_floor", defaults.Analytics.PeerSpreadFloor)
	m.viper.SetDefault("analytics.budget_horizons", defaults.Analytics.BudgetHorizons)
	m.viper.SetDefault("analytics.max_monthly_growth", defaults.Analytics.MaxMonthlyGrowth)
	m.viper.SetDefault("analytics.timeout_seconds", defaults.Analytics.TimeoutSeconds)
	m.viper.SetDefault("analytics.schedule_interval_seconds", defaults.Analytics.ScheduleIntervalSecs)

	// Logging defaults
	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.app_log_path", defaults.Logging.AppLogPath)
	m.viper.SetDefault("logging.audit_log_path", defaults.Logging.AuditLogPath)
	m.viper.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	m.viper.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
	m.viper.SetDefault("logging.max_age_days", defaults.Logging.MaxAgeDays)
	m.viper.SetDefault("logging.compress", defaults.Logging.Compress)
	m.viper.SetDefault("logging.console", defaults.Logging.Console)

	// Tracing defaults
	m.viper.SetDefault("tracing.endpoint", defaults.Tracing.Endpoint)
	m.viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)
	m.viper.SetDefault("tracing.sampling_rate", defaults.Tracing.SamplingRate)

	// RateLimit defaults
	m.viper.SetDefault("ratelimit.enabled", defaults.RateLimit.Enabled)
	m.viper.SetDefault("ratelimit.requests_per_second", defaults.RateLimit.RequestsPerSecond)
	m.viper.SetDefault("ratelimit.burst", defaults.RateLimit.Burst)

	// Seed defaults
	m.viper.SetDefault("seed.seed", defaults.Seed.Seed)
	m.viper.SetDefault("seed.kitchens", defaults.Seed.Kitchens)
	m.viper.SetDefault("seed.items", defaults.Seed.Items)
	m.viper.SetDefault("seed.months", defaults.Seed.Months)
	m.viper.SetDefault("seed.buildings", defaults.Seed.Buildings)
	m.viper.SetDefault("seed.spike_rate", defaults.Seed.SpikeRate)
}

// unmarshalConfig unmarshals viper config into Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	// Server
	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.ReadTimeoutSeconds = m.viper.GetInt("server.read_timeout_seconds")
	cfg.Server.WriteTimeoutSeconds = m.viper.GetInt("server.write_timeout_seconds")
	cfg.Server.ShutdownTimeoutSeconds = m.viper.GetInt("server.shutdown_timeout_seconds")

	// Database
	cfg.Database.Type = m.viper.GetString("database.type")
	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")
	cfg.Database.PostgresURL = m.viper.GetString("database.postgres_url")

	// Analytics
	cfg.Analytics.WindowMonths = m.viper.GetInt("analytics.window_months")
	cfg.Analytics.StableSlopeRatio = m.viper.GetFloat64("analytics.stable_slope_ratio")
	cfg.Analytics.MinHistoryMonths = m.viper.GetInt("analytics.min_history_months")
	cfg.Analytics.LowDataConfidence = m.viper.GetFloat64("analytics.low_data_confidence")
	cfg.Analytics.MediumThreshold = m.viper.GetFloat64("analytics.medium_threshold")
	cfg.Analytics.HighThreshold = m.viper.GetFloat64("analytics.high_threshold")
	cfg.Analytics.TrimTopFraction = m.viper.GetFloat64("analytics.trim_top_fraction")
	cfg.Analytics.MinSavingsRatio = m.viper.GetFloat64("analytics.min_savings_ratio")
	cfg.Analytics.DisposalPercentile = m.viper.GetFloat64("analytics.disposal_percentile")
	cfg.Analytics.DisposalValueThreshold = m.viper.GetFloat64("analytics.disposal_value_threshold")
	cfg.Analytics.RecentPurchaseMonths = m.viper.GetInt("analytics.recent_purchase_months")
	cfg.Analytics.PeerSpreadFloor = m.viper.GetFloat64("analytics.peer_spread_floor")
	cfg.Analytics.BudgetHorizons = m.viper.GetIntSlice("analytics.budget_horizons")
	cfg.Analytics.MaxMonthlyGrowth = m.viper.GetFloat64("analytics.max_monthly_growth")
	cfg.Analytics.TimeoutSeconds = m.viper.GetInt("analytics.timeout_seconds")
	cfg.Analytics.ScheduleIntervalSecs = m.viper.GetInt("analytics.schedule_interval_seconds")

	// Logging
	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.AppLogPath = m.viper.GetString("logging.app_log_path")
	cfg.Logging.AuditLogPath = m.viper.GetString("logging.audit_log_path")
	cfg.Logging.MaxSizeMB = m.viper.GetInt("logging.max_size_mb")
	cfg.Logging.MaxBackups = m.viper.GetInt("logging.max_backups")
	cfg.Logging.MaxAgeDays = m.viper.GetInt("logging.max_age_days")
	cfg.Logging.Compress = m.viper.GetBool("logging.compress")
	cfg.Logging.Console = m.viper.GetBool("logging.console")

	// Tracing
	cfg.Tracing.Endpoint = m.viper.GetString("tracing.endpoint")
	cfg.Tracing.ServiceName = m.viper.GetString("tracing.service_name")
	cfg.Tracing.SamplingRate = m.viper.GetFloat64("tracing.sampling_rate")

	// RateLimit
	cfg.RateLimit.Enabled = m.viper.GetBool("ratelimit.enabled")
	cfg.RateLimit.RequestsPerSecond = m.viper.GetFloat64("ratelimit.requests_per_second")
	cfg.RateLimit.Burst = m.viper.GetInt("ratelimit.burst")

	// Seed
	cfg.Seed.Seed = m.viper.GetInt64("seed.seed")
	cfg.Seed.Kitchens = m.viper.GetInt("seed.kitchens")
	cfg.Seed.Items = m.viper.GetInt("seed.items")
	cfg.Seed.Months = m.viper.GetInt("seed.months")
	cfg.Seed.Buildings = m.viper.GetInt("seed.buildings")
	cfg.Seed.SpikeRate = m.viper.GetFloat64("seed.spike_rate")

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
	return nil
}
