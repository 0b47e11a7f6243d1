package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 8090, cfg.Server.Port)
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)

	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.NotEmpty(t, cfg.Database.SQLitePath)

	assert.Equal(t, 12, cfg.Analytics.WindowMonths)
	assert.Equal(t, []int{1, 3, 12, 24, 36}, cfg.Analytics.BudgetHorizons)
	assert.Equal(t, 0, cfg.Analytics.ScheduleIntervalSecs)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Tracing.Endpoint)
	assert.True(t, cfg.RateLimit.Enabled)

	assert.Empty(t, cfg.Validate())
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		modifyFn func(*Config)
		field    string
	}{
		{
			name:     "invalid port - too low",
			modifyFn: func(cfg *Config) { cfg.Server.Port = 0 },
			field:    "server.port",
		},
		{
			name:     "invalid port - too high",
			modifyFn: func(cfg *Config) { cfg.Server.Port = 70000 },
			field:    "server.port",
		},
		{
			name:     "invalid database type",
			modifyFn: func(cfg *Config) { cfg.Database.Type = "mysql" },
			field:    "database.type",
		},
		{
			name:     "postgres without url",
			modifyFn: func(cfg *Config) { cfg.Database.Type = "postgres" },
			field:    "database.postgres_url",
		},
		{
			name:     "zero window",
			modifyFn: func(cfg *Config) { cfg.Analytics.WindowMonths = 0 },
			field:    "analytics.window_months",
		},
		{
			name:     "thresholds out of order",
			modifyFn: func(cfg *Config) { cfg.Analytics.HighThreshold = 1.0 },
			field:    "analytics.high_threshold",
		},
		{
			name:     "ratio out of range",
			modifyFn: func(cfg *Config) { cfg.Analytics.TrimTopFraction = 1.5 },
			field:    "analytics.trim_top_fraction",
		},
		{
			name:     "non-positive horizon",
			modifyFn: func(cfg *Config) { cfg.Analytics.BudgetHorizons = []int{1, 0} },
			field:    "analytics.budget_horizons",
		},
		{
			name:     "recent months beyond window",
			modifyFn: func(cfg *Config) { cfg.Analytics.RecentPurchaseMonths = 13 },
			field:    "analytics.recent_purchase_months",
		},
		{
			name:     "peer spread floor out of range",
			modifyFn: func(cfg *Config) { cfg.Analytics.PeerSpreadFloor = 0 },
			field:    "analytics.peer_spread_floor",
		},
		{
			name:     "invalid log level",
			modifyFn: func(cfg *Config) { cfg.Logging.Level = "verbose" },
			field:    "logging.level",
		},
		{
			name:     "sampling rate out of range",
			modifyFn: func(cfg *Config) { cfg.Tracing.SamplingRate = 2 },
			field:    "tracing.sampling_rate",
		},
		{
			name:     "rate limit without burst",
			modifyFn: func(cfg *Config) { cfg.RateLimit.Burst = 0 },
			field:    "ratelimit.burst",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modifyFn(cfg)

			errs := cfg.Validate()
			require.NotEmpty(t, errs)

			var fields []string
			for _, err := range errs {
				var vErr *ValidationError
				require.ErrorAs(t, err, &vErr)
				fields = append(fields, vErr.Field)
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestRateLimitDisabledSkipsLimits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit.Enabled = false
	cfg.RateLimit.Burst = 0
	assert.Empty(t, cfg.Validate())
}

func TestConfigManager_LoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	configContent := `
server:
  port: 9000
database:
  type: postgres
  postgres_url: postgres://restrack@localhost/restrack?sslmode=disable
analytics:
  window_months: 18
  budget_horizons: [1, 6]
  schedule_interval_seconds: 3600
logging:
  level: debug
`
	require.NoError(t, os.WriteFile(configPath, []byte(configContent), 0o644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	cfg := mgr.Get(ctx)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 18, cfg.Analytics.WindowMonths)
	assert.Equal(t, []int{1, 6}, cfg.Analytics.BudgetHorizons)
	assert.Equal(t, time.Hour, cfg.ScheduleInterval())
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Unset keys keep their defaults.
	assert.Equal(t, 3, cfg.Analytics.RecentPurchaseMonths)
	assert.NoError(t, mgr.Validate(ctx))
}

func TestConfigManager_MissingFileUsesDefaults(t *testing.T) {
	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 8090, mgr.Get(ctx).Server.Port)
}

func TestConfigManager_EnvOverride(t *testing.T) {
	t.Setenv("RESTRACK_SERVER_PORT", "9191")
	t.Setenv("RESTRACK_ANALYTICS_TIMEOUT_SECONDS", "5")

	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 9191, mgr.Get(ctx).Server.Port)
	assert.Equal(t, 5*time.Second, mgr.Get(ctx).AnalysisTimeout())
}

func TestConfigManager_FlagOverridesEnv(t *testing.T) {
	t.Setenv("RESTRACK_SERVER_PORT", "9191")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("port", 8090, "listen port")
	require.NoError(t, fs.Parse([]string{"--port=7070"}))

	mgr, err := NewConfigManager(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	require.NoError(t, mgr.BindFlag("server.port", fs.Lookup("port")))
	assert.Error(t, mgr.BindFlag("server.missing", fs.Lookup("missing")))

	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 7070, mgr.Get(ctx).Server.Port)
}

func TestConfigManager_ValidateReportsAllErrors(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("server:\n  port: 0\nanalytics:\n  window_months: 0\n"), 0o644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))

	err = mgr.Validate(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "analytics.window_months")
}

func TestConfigManager_Reload(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("analytics:\n  window_months: 6\n"), 0o644))

	mgr, err := NewConfigManager(configPath)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, mgr.Load(ctx))
	assert.Equal(t, 6, mgr.Get(ctx).Analytics.WindowMonths)

	require.NoError(t, os.WriteFile(configPath, []byte("analytics:\n  window_months: 9\n"), 0o644))
	require.NoError(t, mgr.Reload(ctx))
	assert.Equal(t, 9, mgr.Get(ctx).Analytics.WindowMonths)
}

func TestEngineConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Analytics.WindowMonths = 6
	cfg.Analytics.HighThreshold = 4
	cfg.Analytics.BudgetHorizons = []int{2, 4}

	ec := cfg.EngineConfig()
	assert.Equal(t, 6, ec.WindowMonths)
	assert.Equal(t, 4.0, ec.Anomaly.HighThreshold)
	assert.Equal(t, []int{2, 4}, ec.Budget.Horizons)
	assert.Equal(t, 90.0, ec.Groups.DisposalPercentile)
	assert.Equal(t, 0.2, ec.Groups.PeerSpreadFloor)
	// Tunables without a key keep engine defaults.
	assert.Equal(t, 6, ec.Forecasting.FullHistoryMonths)

	ac := cfg.AuditConfig()
	assert.Equal(t, cfg.Logging.AuditLogPath, ac.AuditLogPath)
	assert.Equal(t, "info", ac.LogLevel)
}

func TestServerConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 9100
	cfg.RateLimit.Enabled = false

	sc := cfg.ServerConfig("1.2.3")
	assert.Equal(t, 9100, sc.Port)
	assert.Equal(t, 15*time.Second, sc.ReadTimeout)
	assert.Equal(t, 10*time.Second, sc.ShutdownTimeout)
	assert.False(t, sc.RateLimitEnabled)
	assert.Equal(t, 10, sc.RateLimitBurst)
	assert.Equal(t, "1.2.3", sc.Version)
	assert.Equal(t, cfg.Server.AllowedOrigins, sc.AllowedOrigins)
}
