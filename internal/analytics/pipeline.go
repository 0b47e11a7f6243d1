package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/audit"
	"github.com/restrack/restrack-ai/internal/db"
	"github.com/restrack/restrack-ai/internal/metrics"
	"github.com/restrack/restrack-ai/internal/models"
	"github.com/restrack/restrack-ai/internal/tracing"
)

// Run triggers.
const (
	TriggerAPI      = "api"
	TriggerSchedule = "schedule"
	TriggerCLI      = "cli"
	TriggerEvaluate = "evaluate"
)

// ErrAnalysisTimeout is returned when the engine does not finish within the
// configured timeout. Nothing is persisted or published in that case.
var ErrAnalysisTimeout = errors.New("analysis timed out")

// RecordSource is the minimal interface needed to load analysis input.
type RecordSource interface {
	LoadDataset(ctx context.Context, from, to time.Time) (*models.Dataset, error)
}

// AnalysisSink persists completed runs.
type AnalysisSink interface {
	SaveAnalysis(ctx context.Context, run *db.AnalysisRunRecord, events []*db.AnomalyEventRecord) error
}

// Publisher receives a notification for every completed run.
type Publisher interface {
	Publish(ev RunEvent)
}

// IDGenerator returns a new analysis run ID.
type IDGenerator func() string

// RunEvent announces a completed run.
type RunEvent struct {
	Type        string    `json:"type"`
	RunID       string    `json:"runId"`
	Trigger     string    `json:"trigger"`
	GeneratedAt time.Time `json:"generatedAt"`
	DurationMs  int64     `json:"durationMs"`
	Summary     Summary   `json:"summary"`
}

// RunOptions describes one pipeline invocation.
type RunOptions struct {
	Trigger string
	// Now anchors the analysis window; zero means the current time.
	Now time.Time
	// SourceIP is recorded in the audit trail for API-triggered runs.
	SourceIP string
}

// PipelineConfig wires the pipeline collaborators. Only Engine and Source
// are required.
type PipelineConfig struct {
	Engine    *Engine
	Source    RecordSource
	Sink      AnalysisSink
	Publisher Publisher
	Audit     audit.Logger
	NewID     IDGenerator

	Timeout          time.Duration
	ScheduleInterval time.Duration
}

// Pipeline orchestrates loading, analysis, persistence and notification.
type Pipeline struct {
	engine    *Engine
	source    RecordSource
	sink      AnalysisSink
	publisher Publisher
	audit     audit.Logger
	log       *zap.Logger
	newID     IDGenerator
	generate  func(*models.Dataset, time.Time) *Analysis

	timeout  time.Duration
	interval time.Duration

	mu       sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPipeline creates an analysis pipeline.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.Engine == nil {
		cfg.Engine = NewEngine(DefaultConfig())
	}
	if cfg.Audit == nil {
		cfg.Audit = audit.NewNopLogger(nil)
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Pipeline{
		engine:    cfg.Engine,
		source:    cfg.Source,
		sink:      cfg.Sink,
		publisher: cfg.Publisher,
		audit:     cfg.Audit,
		log:       cfg.Audit.App(),
		newID:     cfg.NewID,
		generate:  cfg.Engine.GenerateComprehensiveAnalysis,
		timeout:   cfg.Timeout,
		interval:  cfg.ScheduleInterval,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

// Engine returns the analytics engine.
func (p *Pipeline) Engine() *Engine {
	return p.engine
}

// Run loads the window's records, analyses them and persists the result.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*Analysis, error) {
	if p.source == nil {
		return nil, errors.New("pipeline has no record source")
	}
	opts = p.normalize(opts)
	runID := p.newID()
	ctx = audit.WithCorrelationID(ctx, runID)
	ctx, span := tracing.StartSpan(ctx, "analysis.run",
		attribute.String("run.id", runID),
		attribute.String("run.trigger", opts.Trigger))
	defer span.End()

	start := time.Now()
	_ = p.audit.LogAnalysisStarted(ctx, runID, opts.Trigger, opts.SourceIP)
	p.log.Debug("Analysis started",
		zap.String("run_id", runID),
		zap.String("trigger", opts.Trigger),
		zap.String("source_ip", opts.SourceIP))

	a, err := p.run(ctx, runID, opts, start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.fail(ctx, runID, opts.Trigger, start, err)
		return nil, err
	}
	return a, nil
}

func (p *Pipeline) run(ctx context.Context, runID string, opts RunOptions, start time.Time) (*Analysis, error) {
	w := p.engine.Window(opts.Now)

	loadCtx, loadSpan := tracing.StartSpan(ctx, "analysis.load")
	ds, err := p.source.LoadDataset(loadCtx, w.Start(), w.Until())
	loadSpan.End()
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	for kind, n := range ds.RecordCounts() {
		metrics.RecordsLoaded.WithLabelValues(kind).Set(float64(n))
	}

	a, err := p.analyze(ctx, ds, opts.Now)
	if err != nil {
		return nil, err
	}
	a.ID = runID
	duration := time.Since(start)

	if p.sink != nil {
		run, events, err := ToRecords(a, opts.Trigger, duration)
		if err != nil {
			return nil, err
		}
		persistCtx, persistSpan := tracing.StartSpan(ctx, "analysis.persist",
			attribute.Int("anomaly.events", len(events)))
		t := time.Now()
		err = p.sink.SaveAnalysis(persistCtx, run, events)
		metrics.StoreOperationDuration.WithLabelValues("save_analysis").Observe(time.Since(t).Seconds())
		persistSpan.End()
		if err != nil {
			return nil, fmt.Errorf("persist analysis: %w", err)
		}
	}

	p.complete(ctx, a, opts.Trigger, duration)
	return a, nil
}

// Evaluate analyses a caller-supplied dataset under the pipeline timeout.
// The result carries a fresh ID but is neither persisted nor published.
func (p *Pipeline) Evaluate(ctx context.Context, ds *models.Dataset, now time.Time) (*Analysis, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	start := time.Now()
	a, err := p.analyze(ctx, ds, now)
	if err != nil {
		metrics.AnalysisRunsTotal.WithLabelValues(TriggerEvaluate, "failure").Inc()
		return nil, err
	}
	a.ID = p.newID()
	metrics.AnalysisRunsTotal.WithLabelValues(TriggerEvaluate, "success").Inc()
	metrics.AnalysisDuration.WithLabelValues(TriggerEvaluate).Observe(time.Since(start).Seconds())
	return a, nil
}

// analyze runs the engine and waits for it up to the timeout. A late result
// is discarded once the deadline has passed.
func (p *Pipeline) analyze(ctx context.Context, ds *models.Dataset, now time.Time) (*Analysis, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	_, span := tracing.StartSpan(ctx, "analysis.analyze")
	defer span.End()

	done := make(chan *Analysis, 1)
	go func() {
		done <- p.generate(ds, now)
	}()

	select {
	case a := <-done:
		span.SetAttributes(attribute.Int("items.analyzed", a.Summary.ItemsAnalyzed))
		return a, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s", ErrAnalysisTimeout, p.timeout)
		}
		return nil, ctx.Err()
	}
}

func (p *Pipeline) complete(ctx context.Context, a *Analysis, trigger string, duration time.Duration) {
	metrics.AnalysisRunsTotal.WithLabelValues(trigger, "success").Inc()
	metrics.AnalysisDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	recordFindings(a)

	_ = p.audit.LogAnalysisCompleted(ctx, a.ID, duration, map[string]interface{}{
		"trigger":          trigger,
		"items_analyzed":   a.Summary.ItemsAnalyzed,
		"recommendations":  a.Summary.RecommendationCount,
		"anomalies":        a.Summary.AnomalyCount,
		"annual_savings":   a.Summary.AnnualSavings,
		"next_month_total": a.Summary.NextMonthBudget,
	})
	p.log.Info("Analysis completed",
		zap.String("run_id", a.ID),
		zap.String("trigger", trigger),
		zap.Duration("duration", duration),
		zap.Int("items", a.Summary.ItemsAnalyzed),
		zap.Int("anomalies", a.Summary.AnomalyCount))

	if p.publisher != nil {
		p.publisher.Publish(RunEvent{
			Type:        "analysis.completed",
			RunID:       a.ID,
			Trigger:     trigger,
			GeneratedAt: a.GeneratedAt,
			DurationMs:  duration.Milliseconds(),
			Summary:     a.Summary,
		})
	}
}

func (p *Pipeline) fail(ctx context.Context, runID, trigger string, start time.Time, err error) {
	metrics.AnalysisRunsTotal.WithLabelValues(trigger, "failure").Inc()
	metrics.AnalysisDuration.WithLabelValues(trigger).Observe(time.Since(start).Seconds())
	_ = p.audit.LogAnalysisFailed(ctx, runID, err)
	p.log.Error("Analysis failed",
		zap.String("run_id", runID),
		zap.String("trigger", trigger),
		zap.Error(err))
}

func (p *Pipeline) normalize(opts RunOptions) RunOptions {
	if opts.Trigger == "" {
		opts.Trigger = TriggerAPI
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now().UTC()
	}
	return opts
}

// ─── Scheduling ──────────────────────────────────────────────────────────────

// Start begins periodic analysis when a schedule interval is configured.
// It is a no-op otherwise.
func (p *Pipeline) Start(ctx context.Context) {
	if p.interval <= 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	go func() {
		defer close(p.doneCh)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// Run logs and audits its own failures; the next tick tries again.
				_, _ = p.Run(ctx, RunOptions{Trigger: TriggerSchedule})
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the scheduler and waits for an in-flight run to finish.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		started := p.started
		p.mu.Unlock()
		if started {
			<-p.doneCh
		}
	})
}

// ─── Records ─────────────────────────────────────────────────────────────────

// ToRecords converts an analysis into its persisted run and one anomaly
// event per flagged entity.
func ToRecords(a *Analysis, trigger string, duration time.Duration) (*db.AnalysisRunRecord, []*db.AnomalyEventRecord, error) {
	summary, err := json.Marshal(a.Summary)
	if err != nil {
		return nil, nil, fmt.Errorf("encode summary: %w", err)
	}
	report, err := json.Marshal(a)
	if err != nil {
		return nil, nil, fmt.Errorf("encode report: %w", err)
	}
	run := &db.AnalysisRunRecord{
		ID:          a.ID,
		Trigger:     trigger,
		WindowStart: a.Window.Start(),
		WindowEnd:   a.Window.Until(),
		GeneratedAt: a.GeneratedAt,
		DurationMs:  duration.Milliseconds(),
		Summary:     summary,
		Report:      report,
	}

	var events []*db.AnomalyEventRecord
	add := func(detector, subject string, sev anomaly.Severity, score float64, desc string, meta any) error {
		raw, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("encode %s event metadata: %w", detector, err)
		}
		events = append(events, &db.AnomalyEventRecord{
			RunID:       a.ID,
			Detector:    detector,
			SubjectID:   subject,
			Severity:    string(sev),
			Score:       score,
			Description: desc,
			Metadata:    raw,
			DetectedAt:  a.GeneratedAt,
		})
		return nil
	}

	for _, d := range a.AnomalyDetections {
		r := d.AnomalyResult
		desc := fmt.Sprintf("%s usage in %s is %.1f%% above expectation", displayName(d.SupplyName, d.SupplyID), d.Month, r.PercentAboveExpected)
		if err := add(db.DetectorConsumption, d.SupplyID, r.Severity, r.Score, desc, d); err != nil {
			return nil, nil, err
		}
	}
	for _, k := range a.KitchenAnomalies {
		score := 0.0
		for _, it := range k.AnomalousItems {
			score = max(score, it.Score)
		}
		desc := fmt.Sprintf("Kitchen %s over-consumes %d item(s), excess cost %.2f", k.KitchenID, len(k.AnomalousItems), k.TotalExcessCost)
		if err := add(db.DetectorKitchen, k.KitchenID, k.Severity, score, desc, k); err != nil {
			return nil, nil, err
		}
	}
	// routine disposals stay in the report only
	for _, d := range a.AssetDisposals {
		if d.Severity != anomaly.SeverityHigh {
			continue
		}
		if err := add(db.DetectorDisposal, d.AssetID, d.Severity, 0, d.Reason, d); err != nil {
			return nil, nil, err
		}
	}
	for _, l := range a.LocationOverpurchasing {
		desc := fmt.Sprintf("%d of %d assets at %s bought recently", l.RecentPurchases, l.TotalAssets, l.Location)
		if err := add(db.DetectorLocation, l.Location.String(), l.Severity, l.Score, desc, l); err != nil {
			return nil, nil, err
		}
	}
	return run, events, nil
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func recordFindings(a *Analysis) {
	for _, d := range a.AnomalyDetections {
		metrics.AnomaliesDetected.WithLabelValues(db.DetectorConsumption, string(d.AnomalyResult.Severity)).Inc()
	}
	for _, k := range a.KitchenAnomalies {
		metrics.AnomaliesDetected.WithLabelValues(db.DetectorKitchen, string(k.Severity)).Inc()
	}
	for _, d := range a.AssetDisposals {
		if d.Severity != anomaly.SeverityHigh {
			continue
		}
		metrics.AnomaliesDetected.WithLabelValues(db.DetectorDisposal, string(d.Severity)).Inc()
	}
	for _, l := range a.LocationOverpurchasing {
		metrics.AnomaliesDetected.WithLabelValues(db.DetectorLocation, string(l.Severity)).Inc()
	}
	for _, r := range a.OptimizationRecommendations {
		metrics.RecommendationsTotal.WithLabelValues(string(r.Recommendation.ReasonCode)).Inc()
	}
	metrics.ProjectedAnnualSavings.Set(a.Summary.AnnualSavings)
	metrics.NextMonthBudget.Set(a.Summary.NextMonthBudget)
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
