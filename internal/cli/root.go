// Package cli implements the restrack-ai command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/config"
	"github.com/restrack/restrack-ai/internal/db"
)

// app carries state shared by all subcommands.
type app struct {
	configPath string

	mgr config.ConfigManager
	cfg *config.Config

	stdout io.Writer
	stderr io.Writer
}

// flagBindings maps flag names onto configuration keys. Flags override the
// config file and RESTRACK_* environment variables when set.
var flagBindings = map[string]string{
	"db-type":           "database.type",
	"sqlite-path":       "database.sqlite_path",
	"postgres-url":      "database.postgres_url",
	"log-level":         "logging.level",
	"app-log":           "logging.app_log_path",
	"audit-log":         "logging.audit_log_path",
	"port":              "server.port",
	"schedule-interval": "analytics.schedule_interval_seconds",
	"seed":              "seed.seed",
	"kitchens":          "seed.kitchens",
	"items":             "seed.items",
	"months":            "seed.months",
	"buildings":         "seed.buildings",
	"spike-rate":        "seed.spike_rate",
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(os.Stdout, os.Stderr)
}

func NewRootCommandWithIO(out, errOut io.Writer) *cobra.Command {
	return newRootCommand(out, errOut)
}

func newRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{stdout: out, stderr: errOut}

	cmd := &cobra.Command{
		Use:           "restrack-ai",
		Short:         "Consumption forecasting and anomaly analysis for restaurant operations",
		Long:          "restrack-ai forecasts supply consumption and budgets, recommends order optimizations and flags anomalous consumption, disposals and purchasing.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			return a.loadConfig(cmd)
		},
	}
	cmd.SetOut(out)
	cmd.SetErr(errOut)

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "path to the YAML config file (default "+config.DefaultConfigPath+")")
	pf.String("db-type", "", "record source: sqlite or postgres")
	pf.String("sqlite-path", "", "SQLite database file")
	pf.String("postgres-url", "", "PostgreSQL connection URL of the record source")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	pf.String("app-log", "", "application log file; empty logs to stderr")
	pf.String("audit-log", "", "audit log file; empty logs to stderr")

	cmd.AddCommand(
		newServeCmd(a),
		newAnalyzeCmd(a),
		newSeedCmd(a),
		newVersionCmd(),
	)
	return cmd
}

// loadConfig builds the configuration from defaults, file, environment and
// the flags the invoked command defines.
func (a *app) loadConfig(cmd *cobra.Command) error {
	mgr, err := config.NewConfigManager(a.configPath)
	if err != nil {
		return err
	}
	for name, key := range flagBindings {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := mgr.BindFlag(key, f); err != nil {
				return err
			}
		}
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if err := mgr.Load(ctx); err != nil {
		return err
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	a.mgr = mgr
	a.cfg = mgr.Get(ctx)
	return nil
}

func (a *app) openAudit() (audit.Logger, error) {
	cfg := a.cfg.AuditConfig()
	for _, p := range []string{cfg.AppLogPath, cfg.AuditLogPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
	}
	return audit.NewLogger(cfg)
}

// stores holds the result store and the record source. Runs are always kept
// in SQLite; records come from SQLite too unless the source is PostgreSQL.
type stores struct {
	results db.Store
	source  analytics.RecordSource
	closers []func() error
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func (a *app) openStores(ctx context.Context) (*stores, error) {
	results, err := a.openSQLite()
	if err != nil {
		return nil, err
	}
	st := &stores{results: results, source: results, closers: []func() error{results.Close}}

	if a.cfg.Database.Type == "postgres" {
		src, err := db.NewPostgresSource(ctx, a.cfg.Database.PostgresURL)
		if err != nil {
			st.Close()
			return nil, err
		}
		st.source = src
		st.closers = append(st.closers, src.Close)
	}
	return st, nil
}

func (a *app) openSQLite() (db.Store, error) {
	path := a.cfg.Database.SQLitePath
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	return db.NewSQLiteStore(path)
}

func (a *app) newPipeline(st *stores, auditLogger audit.Logger, pub analytics.Publisher) *analytics.Pipeline {
	cfg := analytics.PipelineConfig{
		Engine:           analytics.NewEngine(a.cfg.EngineConfig()),
		Audit:            auditLogger,
		Publisher:        pub,
		Timeout:          a.cfg.AnalysisTimeout(),
		ScheduleInterval: a.cfg.ScheduleInterval(),
	}
	if st != nil {
		cfg.Source = st.source
		cfg.Sink = st.results
	}
	return analytics.NewPipeline(cfg)
}

// parseNow accepts RFC 3339 or YYYY-MM-DD; empty means the current time.
func parseNow(v string) (time.Time, error) {
	if v == "" {
		return time.Now().UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --now %q (want RFC 3339 or YYYY-MM-DD)", v)
}
