package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Port = 8090
	cfg.Server.AllowedOrigins = []string{"http://localhost:3000", "http://localhost:5173"}
	cfg.Server.ReadTimeoutSeconds = 15
	cfg.Server.WriteTimeoutSeconds = 60
	cfg.Server.ShutdownTimeoutSeconds = 10

	// Database defaults
	cfg.Database.Type = "sqlite"
	cfg.Database.SQLitePath = "/var/lib/restrack/restrack-ai.db"
	cfg.Database.PostgresURL = ""

	// Analytics defaults
	cfg.Analytics.WindowMonths = 12
	cfg.Analytics.StableSlopeRatio = 0.05
	cfg.Analytics.MinHistoryMonths = 3
	cfg.Analytics.LowDataConfidence = 0.3
	cfg.Analytics.MediumThreshold = 1.5
	cfg.Analytics.HighThreshold = 3.0
	cfg.Analytics.TrimTopFraction = 0.1
	cfg.Analytics.MinSavingsRatio = 0.05
	cfg.Analytics.DisposalPercentile = 90
	cfg.Analytics.DisposalValueThreshold = 0 // 0 means percentile only
	cfg.Analytics.RecentPurchaseMonths = 3
	cfg.Analytics.PeerSpreadFloor = 0.2
	cfg.Analytics.BudgetHorizons = []int{1, 3, 12, 24, 36}
	cfg.Analytics.MaxMonthlyGrowth = 0.05
	cfg.Analytics.TimeoutSeconds = 30
	cfg.Analytics.ScheduleIntervalSecs = 0 // disabled

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.AppLogPath = "logs/app.log"
	cfg.Logging.AuditLogPath = "logs/audit.log"
	cfg.Logging.MaxSizeMB = 100
	cfg.Logging.MaxBackups = 10
	cfg.Logging.MaxAgeDays = 30
	cfg.Logging.Compress = true
	cfg.Logging.Console = true

	// Tracing defaults
	cfg.Tracing.Endpoint = ""
	cfg.Tracing.ServiceName = "restrack-ai"
	cfg.Tracing.SamplingRate = 1.0

	// RateLimit defaults
	cfg.RateLimit.Enabled = true
	cfg.RateLimit.RequestsPerSecond = 5
	cfg.RateLimit.Burst = 10

	// Seed defaults
	cfg.Seed.Seed = 42
	cfg.Seed.Kitchens = 4
	cfg.Seed.Items = 20
	cfg.Seed.Months = 12
	cfg.Seed.Buildings = 3
	cfg.Seed.SpikeRate = 0.05

	return cfg
}
