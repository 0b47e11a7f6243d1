package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/restrack/restrack-ai/internal/seed"
)

type seedOptions struct {
	now    string
	output string
	quiet  bool
}

func newSeedCmd(a *app) *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a deterministic synthetic dataset",
		Long: `Generate a synthetic dataset of supplies, kitchen consumption, vehicle
rentals and assets. The dataset is imported into the SQLite store, or written
as JSON with --output. The same seed always yields the same dataset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runSeed(cmd.Context(), opts)
		},
	}
	f := cmd.Flags()
	f.Int64("seed", 0, "random seed")
	f.Int("kitchens", 0, "number of kitchens")
	f.Int("items", 0, "number of supply items")
	f.Int("months", 0, "months of history")
	f.Int("buildings", 0, "number of buildings")
	f.Float64("spike-rate", 0, "probability of an injected consumption spike")
	f.StringVar(&opts.now, "now", "", "last generated month (RFC 3339 or YYYY-MM-DD); defaults to now")
	f.StringVarP(&opts.output, "output", "o", "", "write the dataset as JSON to this file instead of the store")
	f.BoolVarP(&opts.quiet, "quiet", "q", false, "hide the progress bar")
	return cmd
}

func (a *app) runSeed(ctx context.Context, opts seedOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	now, err := parseNow(opts.now)
	if err != nil {
		return err
	}
	c := a.cfg.Seed
	seedOpts := seed.Options{
		Seed:      c.Seed,
		Kitchens:  c.Kitchens,
		Items:     c.Items,
		Months:    c.Months,
		Buildings: c.Buildings,
		SpikeRate: c.SpikeRate,
		Now:       now,
	}

	if opts.output != "" {
		ds := seed.NewGenerator(seedOpts).Generate()
		data, err := json.MarshalIndent(ds, "", "  ")
		if err != nil {
			return err
		}
		if err := os.WriteFile(opts.output, data, 0o644); err != nil {
			return fmt.Errorf("write dataset: %w", err)
		}
		printCounts(a.stdout, seed.Counts(ds))
		return nil
	}

	auditLogger, err := a.openAudit()
	if err != nil {
		return fmt.Errorf("open audit logger: %w", err)
	}
	defer auditLogger.Close()

	store, err := a.openSQLite()
	if err != nil {
		return err
	}
	defer store.Close()

	var progress io.Writer
	if !opts.quiet {
		progress = a.stderr
	}
	counts, err := seed.NewSeeder(store, auditLogger, progress).Seed(ctx, seedOpts)
	if err != nil {
		return err
	}
	printCounts(a.stdout, counts)
	return nil
}

func printCounts(w io.Writer, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "%-14s %d\n", k, counts[k])
	}
}
