package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/restrack/restrack-ai/internal/analytics"
	"github.com/restrack/restrack-ai/internal/models"
	"github.com/restrack/restrack-ai/internal/tracing"
)

type analyzeOptions struct {
	now     string
	input   string
	dryRun  bool
	summary bool
}

func newAnalyzeCmd(a *app) *cobra.Command {
	var opts analyzeOptions
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run one comprehensive analysis and print it as JSON",
		Long: `Run one comprehensive analysis over the configured record source and print
the result as JSON. The run is stored unless --dry-run is set. With --input the
dataset is read from a JSON file instead and nothing is stored.`,
		Example: `  restrack-ai analyze --now 2024-06-30 --summary
  restrack-ai analyze --input dataset.json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runAnalyze(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.now, "now", "", "analysis date (RFC 3339 or YYYY-MM-DD); defaults to now")
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "analyse a dataset JSON file instead of the store")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "do not store the run")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print only the summary")
	return cmd
}

func (a *app) runAnalyze(ctx context.Context, opts analyzeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now, err := parseNow(opts.now)
	if err != nil {
		return err
	}

	auditLogger, err := a.openAudit()
	if err != nil {
		return fmt.Errorf("open audit logger: %w", err)
	}
	defer auditLogger.Close()

	shutdownTracing, err := tracing.Init(a.cfg.Tracing.ServiceName, a.cfg.Tracing.Endpoint, a.cfg.Tracing.SamplingRate)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer shutdownTracing()

	var result *analytics.Analysis
	if opts.input != "" {
		ds, err := readDataset(opts.input)
		if err != nil {
			return err
		}
		result, err = a.newPipeline(nil, auditLogger, nil).Evaluate(ctx, ds, now)
		if err != nil {
			return err
		}
	} else {
		st, err := a.openStores(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		p := a.newPipeline(st, auditLogger, nil)
		if opts.dryRun {
			w := p.Engine().Window(now)
			var ds *models.Dataset
			if ds, err = st.source.LoadDataset(ctx, w.Start(), w.Until()); err != nil {
				return fmt.Errorf("load dataset: %w", err)
			}
			result, err = p.Evaluate(ctx, ds, now)
		} else {
			result, err = p.Run(ctx, analytics.RunOptions{Trigger: analytics.TriggerCLI, Now: now})
		}
		if err != nil {
			return err
		}
	}

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if opts.summary {
		return enc.Encode(struct {
			ID      string            `json:"id"`
			Summary analytics.Summary `json:"summary"`
		}{result.ID, result.Summary})
	}
	return enc.Encode(result)
}

func readDataset(path string) (*models.Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	var ds models.Dataset
	if err := json.NewDecoder(f).Decode(&ds); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return &ds, nil
}
