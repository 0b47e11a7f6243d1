package db

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/restrack/restrack-ai/internal/models"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// Store is the main persistence interface: the record source the analysis
// reads from plus the history of completed analysis runs.
type Store interface {
	RecordStore
	RecordWriter
	AnalysisStore

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// ─── Records ─────────────────────────────────────────────────────────────────

// RecordStore loads the input snapshot of one analysis.
type RecordStore interface {
	// LoadDataset returns the catalog, all assets and locations, and the
	// consumption, rental and asset history rows that can affect the
	// window [from, to).
	LoadDataset(ctx context.Context, from, to time.Time) (*models.Dataset, error)
}

// RecordWriter inserts source records. Catalog entries, assets and
// locations are upserted by key; event rows are appended.
type RecordWriter interface {
	// ImportDataset writes every record of ds in one transaction. progress,
	// when non-nil, is called with the number of rows written per batch.
	ImportDataset(ctx context.Context, ds *models.Dataset, progress func(rows int)) error
}

// ─── Analysis runs ───────────────────────────────────────────────────────────

// AnalysisRunRecord is a persisted analysis. Report holds the full result
// document; Summary holds its headline figures.
type AnalysisRunRecord struct {
	ID          string          `json:"id"`
	Trigger     string          `json:"trigger"`
	WindowStart time.Time       `json:"window_start"`
	WindowEnd   time.Time       `json:"window_end"`
	GeneratedAt time.Time       `json:"generated_at"`
	DurationMs  int64           `json:"duration_ms"`
	Summary     json.RawMessage `json:"summary"`
	Report      json.RawMessage `json:"report,omitempty"`
}

// Anomaly event detectors.
const (
	DetectorConsumption = "consumption"
	DetectorKitchen     = "kitchen"
	DetectorDisposal    = "disposal"
	DetectorLocation    = "location"
)

// AnomalyEventRecord is one flagged entity of an analysis run.
type AnomalyEventRecord struct {
	ID          int64           `json:"id"`
	RunID       string          `json:"run_id"`
	Detector    string          `json:"detector"`
	SubjectID   string          `json:"subject_id"`
	Severity    string          `json:"severity"`
	Score       float64         `json:"score"`
	Description string          `json:"description"`
	Metadata    json.RawMessage `json:"metadata,omitempty"`
	DetectedAt  time.Time       `json:"detected_at"`
}

// AnomalyQuery filters anomaly event queries.
type AnomalyQuery struct {
	RunID    string
	Detector string
	Severity string
	From     time.Time
	To       time.Time
	Limit    int
	Offset   int
}

// AnalysisStore persists completed analysis runs.
type AnalysisStore interface {
	// SaveAnalysis stores a run and its anomaly events atomically.
	SaveAnalysis(ctx context.Context, run *AnalysisRunRecord, events []*AnomalyEventRecord) error

	// GetAnalysis retrieves a run, including its report, by ID.
	GetAnalysis(ctx context.Context, id string) (*AnalysisRunRecord, error)

	// ListAnalyses returns runs without their reports, newest first.
	ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisRunRecord, error)

	// ListAnomalyEvents retrieves anomaly events with optional filters, newest first.
	ListAnomalyEvents(ctx context.Context, q AnomalyQuery) ([]*AnomalyEventRecord, error)

	// AnomalySummary counts anomaly events per severity within the window.
	AnomalySummary(ctx context.Context, from, to time.Time) (map[string]int, error)
}
