package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/restrack/restrack-ai/internal/models"
)

// migrations define the tables of the analysis store.
// Version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS supply_items (
    item_id        TEXT PRIMARY KEY,
    name           TEXT NOT NULL DEFAULT '',
    category       TEXT NOT NULL DEFAULT '',
    unit           TEXT NOT NULL DEFAULT '',
    price_per_unit REAL NOT NULL DEFAULT 0.0
);

CREATE TABLE IF NOT EXISTS consumption_records (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    item_id     TEXT NOT NULL,
    kitchen_id  TEXT NOT NULL DEFAULT '',
    quantity    REAL NOT NULL DEFAULT 0.0,
    consumed_at TEXT NOT NULL,
    unit_price  REAL NOT NULL DEFAULT 0.0
);
CREATE INDEX IF NOT EXISTS idx_consumption_consumed_at ON consumption_records(consumed_at);
CREATE INDEX IF NOT EXISTS idx_consumption_item ON consumption_records(item_id);

CREATE TABLE IF NOT EXISTS rental_records (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    vehicle_id     TEXT NOT NULL,
    vehicle_type   TEXT NOT NULL DEFAULT '',
    start_date     TEXT NOT NULL,
    end_date       TEXT,
    monthly_amount REAL NOT NULL DEFAULT 0.0
);
CREATE INDEX IF NOT EXISTS idx_rentals_start ON rental_records(start_date);

CREATE TABLE IF NOT EXISTS locations (
    building TEXT NOT NULL,
    floor    TEXT NOT NULL,
    room     TEXT NOT NULL,
    PRIMARY KEY (building, floor, room)
);

CREATE TABLE IF NOT EXISTS assets (
    asset_id        TEXT PRIMARY KEY,
    building        TEXT NOT NULL DEFAULT '',
    floor           TEXT NOT NULL DEFAULT '',
    room            TEXT NOT NULL DEFAULT '',
    purchase_amount REAL NOT NULL DEFAULT 0.0,
    purchase_date   TEXT NOT NULL,
    status          TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_assets_location ON assets(building, floor, room);

CREATE TABLE IF NOT EXISTS asset_history (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    asset_id    TEXT NOT NULL,
    action      TEXT NOT NULL,
    occurred_at TEXT NOT NULL,
    details     TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_asset_history_asset ON asset_history(asset_id, occurred_at);
`,
	},
	// Migration 2: analysis_runs + anomaly_events
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id           TEXT PRIMARY KEY,
    trigger      TEXT NOT NULL DEFAULT '',
    window_start TEXT NOT NULL,
    window_end   TEXT NOT NULL,
    generated_at TEXT NOT NULL,
    duration_ms  INTEGER NOT NULL DEFAULT 0,
    summary      TEXT NOT NULL DEFAULT '{}',
    report       TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_analysis_runs_generated_at ON analysis_runs(generated_at DESC);

CREATE TABLE IF NOT EXISTS anomaly_events (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    detector    TEXT NOT NULL,
    subject_id  TEXT NOT NULL DEFAULT '',
    severity    TEXT NOT NULL DEFAULT 'low',
    score       REAL NOT NULL DEFAULT 0.0,
    description TEXT NOT NULL DEFAULT '',
    metadata    TEXT NOT NULL DEFAULT '{}',
    detected_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_anomaly_detected_at ON anomaly_events(detected_at DESC);
CREATE INDEX IF NOT EXISTS idx_anomaly_run_id      ON anomaly_events(run_id);
CREATE INDEX IF NOT EXISTS idx_anomaly_detector    ON anomaly_events(detector);
CREATE INDEX IF NOT EXISTS idx_anomaly_severity    ON anomaly_events(severity);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	datasetLoader
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	if path == ":memory:" {
		// Every connection to :memory: opens a separate database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &sqliteStore{
		datasetLoader: datasetLoader{
			db:      sqlx.NewDb(db, "sqlite"),
			timeArg: func(t time.Time) any { return formatTime(t) },
		},
		db: db,
	}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// ─── Records ─────────────────────────────────────────────────────────────────

const importBatchSize = 500

func (s *sqliteStore) ImportDataset(ctx context.Context, ds *models.Dataset, progress func(rows int)) error {
	if ds == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	w := &batchWriter{ctx: ctx, tx: tx, progress: progress}

	w.exec(`INSERT INTO supply_items(item_id, name, category, unit, price_per_unit) VALUES(?,?,?,?,?)
        ON CONFLICT(item_id) DO UPDATE SET
            name = excluded.name, category = excluded.category,
            unit = excluded.unit, price_per_unit = excluded.price_per_unit`,
		len(ds.Supplies), func(i int) []any {
			r := ds.Supplies[i]
			return []any{r.ItemID, r.Name, r.Category, r.Unit, models.NonNegative(r.PricePerUnit)}
		})

	w.exec(`INSERT INTO consumption_records(item_id, kitchen_id, quantity, consumed_at, unit_price) VALUES(?,?,?,?,?)`,
		len(ds.Consumption), func(i int) []any {
			r := ds.Consumption[i].Sanitized()
			return []any{r.ItemID, r.KitchenID, r.Quantity, formatTime(r.Date), r.UnitPrice}
		})

	w.exec(`INSERT INTO rental_records(vehicle_id, vehicle_type, start_date, end_date, monthly_amount) VALUES(?,?,?,?,?)`,
		len(ds.Rentals), func(i int) []any {
			r := ds.Rentals[i].Sanitized()
			return []any{r.VehicleID, r.VehicleType, formatTime(r.StartDate), nullableTime(r.EndDate), r.MonthlyAmount}
		})

	w.exec(`INSERT INTO locations(building, floor, room) VALUES(?,?,?) ON CONFLICT DO NOTHING`,
		len(ds.Locations), func(i int) []any {
			l := ds.Locations[i]
			return []any{l.Building, l.Floor, l.Room}
		})

	w.exec(`INSERT INTO assets(asset_id, building, floor, room, purchase_amount, purchase_date, status) VALUES(?,?,?,?,?,?,?)
        ON CONFLICT(asset_id) DO UPDATE SET
            building = excluded.building, floor = excluded.floor, room = excluded.room,
            purchase_amount = excluded.purchase_amount, purchase_date = excluded.purchase_date,
            status = excluded.status`,
		len(ds.Assets), func(i int) []any {
			a := ds.Assets[i].Sanitized()
			return []any{a.AssetID, a.Location.Building, a.Location.Floor, a.Location.Room,
				a.PurchaseAmount, formatTime(a.PurchaseDate), a.Status}
		})

	w.exec(`INSERT INTO asset_history(asset_id, action, occurred_at, details) VALUES(?,?,?,?)`,
		len(ds.AssetHistory), func(i int) []any {
			e := ds.AssetHistory[i]
			return []any{e.AssetID, e.Action, formatTime(e.Timestamp), e.Details}
		})

	if w.err != nil {
		return w.err
	}
	return tx.Commit()
}

// batchWriter runs one prepared statement per record kind and reports
// progress every importBatchSize rows. The first error stops all writes.
type batchWriter struct {
	ctx      context.Context
	tx       *sql.Tx
	progress func(rows int)
	err      error
}

func (w *batchWriter) exec(query string, n int, args func(i int) []any) {
	if w.err != nil || n == 0 {
		return
	}
	stmt, err := w.tx.PrepareContext(w.ctx, query)
	if err != nil {
		w.err = fmt.Errorf("prepare import: %w", err)
		return
	}
	defer stmt.Close()

	pending := 0
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(w.ctx, args(i)...); err != nil {
			w.err = fmt.Errorf("import row %d: %w", i, err)
			return
		}
		pending++
		if pending == importBatchSize {
			w.report(pending)
			pending = 0
		}
	}
	w.report(pending)
}

func (w *batchWriter) report(rows int) {
	if w.progress != nil && rows > 0 {
		w.progress(rows)
	}
}

// ─── Analysis runs ───────────────────────────────────────────────────────────

func (s *sqliteStore) SaveAnalysis(ctx context.Context, run *AnalysisRunRecord, events []*AnomalyEventRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
        INSERT INTO analysis_runs(id, trigger, window_start, window_end, generated_at, duration_ms, summary, report)
        VALUES(?,?,?,?,?,?,?,?)
    `,
		run.ID, run.Trigger, formatTime(run.WindowStart), formatTime(run.WindowEnd),
		formatTime(run.GeneratedAt), run.DurationMs, jsonText(run.Summary), jsonText(run.Report),
	)
	if err != nil {
		return fmt.Errorf("insert analysis run: %w", err)
	}

	for _, ev := range events {
		ev.RunID = run.ID
		result, err := tx.ExecContext(ctx, `
            INSERT INTO anomaly_events(run_id, detector, subject_id, severity, score, description, metadata, detected_at)
            VALUES(?,?,?,?,?,?,?,?)
        `,
			ev.RunID, ev.Detector, ev.SubjectID, ev.Severity, ev.Score,
			ev.Description, jsonText(ev.Metadata), formatTime(ev.DetectedAt),
		)
		if err != nil {
			return fmt.Errorf("insert anomaly event: %w", err)
		}
		ev.ID, _ = result.LastInsertId()
	}

	return tx.Commit()
}

func (s *sqliteStore) GetAnalysis(ctx context.Context, id string) (*AnalysisRunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, trigger, window_start, window_end, generated_at, duration_ms, summary, report
        FROM analysis_runs WHERE id = ?`, id)

	rec := &AnalysisRunRecord{}
	var start, end, generated, summary, report string
	err := row.Scan(&rec.ID, &rec.Trigger, &start, &end, &generated, &rec.DurationMs, &summary, &report)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("analysis %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.WindowStart = parseTimeOrZero(start)
	rec.WindowEnd = parseTimeOrZero(end)
	rec.GeneratedAt = parseTimeOrZero(generated)
	rec.Summary = json.RawMessage(summary)
	rec.Report = json.RawMessage(report)
	return rec, nil
}

func (s *sqliteStore) ListAnalyses(ctx context.Context, limit, offset int) ([]*AnalysisRunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, trigger, window_start, window_end, generated_at, duration_ms, summary
        FROM analysis_runs ORDER BY generated_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*AnalysisRunRecord
	for rows.Next() {
		rec := &AnalysisRunRecord{}
		var start, end, generated, summary string
		if err := rows.Scan(&rec.ID, &rec.Trigger, &start, &end, &generated, &rec.DurationMs, &summary); err != nil {
			return nil, err
		}
		rec.WindowStart = parseTimeOrZero(start)
		rec.WindowEnd = parseTimeOrZero(end)
		rec.GeneratedAt = parseTimeOrZero(generated)
		rec.Summary = json.RawMessage(summary)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *sqliteStore) ListAnomalyEvents(ctx context.Context, q AnomalyQuery) ([]*AnomalyEventRecord, error) {
	query := `SELECT id, run_id, detector, subject_id, severity, score, description, metadata, detected_at FROM anomaly_events WHERE 1=1`
	args := []any{}

	if q.RunID != "" {
		query += ` AND run_id = ?`
		args = append(args, q.RunID)
	}
	if q.Detector != "" {
		query += ` AND detector = ?`
		args = append(args, q.Detector)
	}
	if q.Severity != "" {
		query += ` AND severity = ?`
		args = append(args, q.Severity)
	}
	if !q.From.IsZero() {
		query += ` AND detected_at >= ?`
		args = append(args, formatTime(q.From))
	}
	if !q.To.IsZero() {
		query += ` AND detected_at <= ?`
		args = append(args, formatTime(q.To))
	}
	query += ` ORDER BY detected_at DESC, id ASC`
	if q.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d OFFSET %d`, q.Limit, q.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []*AnomalyEventRecord
	for rows.Next() {
		rec := &AnomalyEventRecord{}
		var metadata, ts string
		if err := rows.Scan(&rec.ID, &rec.RunID, &rec.Detector, &rec.SubjectID, &rec.Severity,
			&rec.Score, &rec.Description, &metadata, &ts); err != nil {
			return nil, err
		}
		rec.Metadata = json.RawMessage(metadata)
		rec.DetectedAt = parseTimeOrZero(ts)
		result = append(result, rec)
	}
	return result, rows.Err()
}

func (s *sqliteStore) AnomalySummary(ctx context.Context, from, to time.Time) (map[string]int, error) {
	query := `SELECT severity, COUNT(*) FROM anomaly_events WHERE 1=1`
	args := []any{}
	if !from.IsZero() {
		query += ` AND detected_at >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND detected_at <= ?`
		args = append(args, formatTime(to))
	}
	query += ` GROUP BY severity`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := map[string]int{}
	for rows.Next() {
		var sev string
		var count int
		if err := rows.Scan(&sev, &count); err != nil {
			return nil, err
		}
		summary[sev] = count
	}
	return summary, rows.Err()
}

// jsonText stores an empty document as "{}".
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}
