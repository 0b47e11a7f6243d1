package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/models"
)

// Importer is the write side of a record store.
type Importer interface {
	ImportDataset(ctx context.Context, ds *models.Dataset, progress func(rows int)) error
}

// Seeder generates a dataset and writes it into a store.
type Seeder struct {
	store    Importer
	audit    audit.Logger
	progress io.Writer
}

// NewSeeder creates a seeder. A nil progress writer disables the progress bar.
func NewSeeder(store Importer, auditLogger audit.Logger, progress io.Writer) *Seeder {
	if auditLogger == nil {
		auditLogger = audit.NewNopLogger(nil)
	}
	return &Seeder{store: store, audit: auditLogger, progress: progress}
}

// Seed generates a dataset from opts and imports it. It returns the number
// of rows written per record kind.
func (s *Seeder) Seed(ctx context.Context, opts Options) (map[string]int, error) {
	start := time.Now()
	gen := NewGenerator(opts)
	ds := gen.Generate()
	counts := Counts(ds)

	total := 0
	for _, n := range counts {
		total += n
	}

	var bar *progressbar.ProgressBar
	progress := func(int) {}
	if s.progress != nil {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(s.progress),
			progressbar.OptionSetDescription("seeding"),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(65*time.Millisecond),
			progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(s.progress) }),
		)
		progress = func(rows int) { _ = bar.Add(rows) }
	}

	if err := s.store.ImportDataset(ctx, ds, progress); err != nil {
		return nil, fmt.Errorf("import dataset: %w", err)
	}
	if bar != nil {
		_ = bar.Finish()
	}

	duration := time.Since(start)
	_ = s.audit.LogSeedCompleted(ctx, counts, duration)
	s.audit.App().Info("Seed completed",
		zap.Int64("seed", gen.Options().Seed),
		zap.Int("rows", total),
		zap.Duration("duration", duration))
	return counts, nil
}
