package config

import (
	"time"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/server"
)

// EngineConfig maps the analytics section onto the engine tunables. Tunables
// without a configuration key keep the engine defaults.
func (c *Config) EngineConfig() analytics.Config {
	a := c.Analytics
	cfg := analytics.DefaultConfig()

	cfg.WindowMonths = a.WindowMonths
	cfg.Forecasting.StableSlopeRatio = a.StableSlopeRatio
	cfg.Forecasting.MinHistoryMonths = a.MinHistoryMonths
	cfg.Forecasting.LowDataConfidenceCeiling = a.LowDataConfidence
	cfg.Anomaly.MediumThreshold = a.MediumThreshold
	cfg.Anomaly.HighThreshold = a.HighThreshold
	cfg.Advisor.TrimTopFraction = a.TrimTopFraction
	cfg.Advisor.MinSavingsRatio = a.MinSavingsRatio
	cfg.Advisor.MinHistoryMonths = a.MinHistoryMonths
	cfg.Budget.Horizons = append([]int(nil), a.BudgetHorizons...)
	cfg.Budget.MaxMonthlyGrowth = a.MaxMonthlyGrowth
	cfg.Groups.DisposalPercentile = a.DisposalPercentile
	cfg.Groups.DisposalValueThreshold = a.DisposalValueThreshold
	cfg.Groups.RecentPurchaseMonths = a.RecentPurchaseMonths
	cfg.Groups.PeerSpreadFloor = a.PeerSpreadFloor
	return cfg
}

// AnalysisTimeout returns the wall-clock limit of one analysis run.
func (c *Config) AnalysisTimeout() time.Duration {
	return time.Duration(c.Analytics.TimeoutSeconds) * time.Second
}

// ScheduleInterval returns the periodic run interval; zero disables scheduling.
func (c *Config) ScheduleInterval() time.Duration {
	return time.Duration(c.Analytics.ScheduleIntervalSecs) * time.Second
}

// AuditConfig maps the logging section onto the audit logger configuration.
func (c *Config) AuditConfig() *audit.Config {
	return &audit.Config{
		AuditLogPath: c.Logging.AuditLogPath,
		AppLogPath:   c.Logging.AppLogPath,
		MaxSize:      c.Logging.MaxSizeMB,
		MaxBackups:   c.Logging.MaxBackups,
		MaxAge:       c.Logging.MaxAgeDays,
		Compress:     c.Logging.Compress,
		LogLevel:     c.Logging.Level,
		Console:      c.Logging.Console,
	}
}

// ServerConfig maps the server and ratelimit sections onto the HTTP server
// configuration.
func (c *Config) ServerConfig(version string) *server.Config {
	cfg := server.DefaultConfig()
	cfg.Port = c.Server.Port
	cfg.AllowedOrigins = append([]string(nil), c.Server.AllowedOrigins...)
	cfg.ReadTimeout = time.Duration(c.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(c.Server.WriteTimeoutSeconds) * time.Second
	cfg.ShutdownTimeout = time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
	cfg.RateLimitEnabled = c.RateLimit.Enabled
	cfg.RequestsPerSecond = c.RateLimit.RequestsPerSecond
	cfg.RateLimitBurst = c.RateLimit.Burst
	cfg.Version = version
	return cfg
}
