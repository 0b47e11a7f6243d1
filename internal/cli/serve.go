package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/config"
	"github.com/restrack/restrack-ai/internal/server"
	"github.com/restrack/restrack-ai/internal/tracing"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, websocket stream and scheduled analyses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runServe(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 0, "HTTP listen port")
	cmd.Flags().Int("schedule-interval", 0, "seconds between scheduled analyses; 0 disables scheduling")
	return cmd
}

func (a *app) runServe(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	auditLogger, err := a.openAudit()
	if err != nil {
		return fmt.Errorf("open audit logger: %w", err)
	}
	defer auditLogger.Close()
	log := auditLogger.App()

	shutdownTracing, err := tracing.Init(a.cfg.Tracing.ServiceName, a.cfg.Tracing.Endpoint, a.cfg.Tracing.SamplingRate)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	st, err := a.openStores(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := server.NewHub(ctx)
	hub.SetLogger(log)
	pipeline := a.newPipeline(st, auditLogger, hub)

	srv, err := server.NewServer(a.cfg.ServerConfig(Version), server.Deps{
		Store:    st.results,
		Pipeline: pipeline,
		Hub:      hub,
		Audit:    auditLogger,
	})
	if err != nil {
		return err
	}

	go a.watchConfig(ctx, auditLogger)

	if err := srv.Start(); err != nil {
		return err
	}
	stopped := make(chan struct{})
	go func() {
		srv.Wait()
		close(stopped)
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case <-stopped:
		log.Warn("Server stopped unexpectedly")
	}
	return srv.Stop()
}

// watchConfig records config file changes. Server settings apply on restart.
func (a *app) watchConfig(ctx context.Context, auditLogger audit.Logger) {
	path := a.configPath
	if path == "" {
		path = config.DefaultConfigPath
	}
	if _, err := os.Stat(path); err != nil {
		return
	}
	changes := a.mgr.Watch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-changes:
			_ = auditLogger.LogConfigChanged(ctx, path)
			auditLogger.App().Info("Configuration file changed; restart to apply", zap.String("path", path))
		}
	}
}
