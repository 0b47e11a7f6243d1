package db

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/restrack/restrack-ai/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func sampleDataset() *models.Dataset {
	room := models.LocationKey{Building: "HQ", Floor: "1", Room: "101"}
	return &models.Dataset{
		Supplies: []models.SupplyItem{
			{ItemID: "flour", Name: "Flour", Category: "dry", Unit: "kg", PricePerUnit: 2},
			{ItemID: "milk", Name: "Milk", Category: "dairy", Unit: "l", PricePerUnit: 1.5},
		},
		Consumption: []models.ConsumptionRecord{
			{ItemID: "flour", KitchenID: "k1", Quantity: 10, Date: day(2024, 1, 5), UnitPrice: 2},
			{ItemID: "flour", KitchenID: "k2", Quantity: 12, Date: day(2024, 2, 5), UnitPrice: 2},
			{ItemID: "milk", KitchenID: "k1", Quantity: -4, Date: day(2024, 2, 6), UnitPrice: 1.5},
			{ItemID: "milk", KitchenID: "k1", Quantity: 3, Date: day(2023, 6, 1), UnitPrice: 1.5},
		},
		Rentals: []models.RentalRecord{
			{VehicleID: "v1", VehicleType: "van", StartDate: day(2023, 11, 1), MonthlyAmount: 500},
			{VehicleID: "v2", VehicleType: "truck", StartDate: day(2022, 1, 1), EndDate: day(2022, 12, 31), MonthlyAmount: 900},
		},
		Assets: []models.AssetRecord{
			{AssetID: "a1", Location: room, PurchaseAmount: 1200, PurchaseDate: day(2023, 3, 1), Status: "ACTIVE"},
			{AssetID: "a2", Location: room, PurchaseAmount: 300, PurchaseDate: day(2024, 1, 20), Status: "DISPOSED"},
		},
		AssetHistory: []models.AssetHistoryEvent{
			{AssetID: "a2", Action: models.ActionPurchased, Timestamp: day(2024, 1, 20)},
			{AssetID: "a2", Action: models.ActionDisposed, Timestamp: day(2024, 2, 10), Details: "broken"},
			{AssetID: "a1", Action: models.ActionMoved, Timestamp: day(2024, 5, 1)},
		},
		Locations: []models.LocationKey{room, {Building: "HQ", Floor: "2", Room: "201"}},
	}
}

// ─── Records ──────────────────────────────────────────────────────────────────

func TestImportAndLoadDataset(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rows := 0
	if err := s.ImportDataset(ctx, sampleDataset(), func(n int) { rows += n }); err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}
	if rows != 15 {
		t.Errorf("expected 15 rows reported, got %d", rows)
	}

	ds, err := s.LoadDataset(ctx, day(2024, 1, 1), day(2024, 3, 1))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Supplies) != 2 {
		t.Errorf("expected 2 supplies, got %d", len(ds.Supplies))
	}
	if len(ds.Consumption) != 3 {
		t.Fatalf("expected 3 consumption rows in window, got %d", len(ds.Consumption))
	}
	if !ds.Consumption[0].Date.Equal(day(2024, 1, 5)) {
		t.Errorf("expected first row dated 2024-01-05, got %v", ds.Consumption[0].Date)
	}
	for _, r := range ds.Consumption {
		if r.Quantity < 0 {
			t.Errorf("negative quantity survived import: %+v", r)
		}
	}
	if len(ds.Rentals) != 1 || ds.Rentals[0].VehicleID != "v1" {
		t.Errorf("expected only the open van rental, got %+v", ds.Rentals)
	}
	if !ds.Rentals[0].EndDate.IsZero() {
		t.Errorf("expected open-ended rental, got end %v", ds.Rentals[0].EndDate)
	}
	if len(ds.Assets) != 2 || ds.Assets[0].Location.Room != "101" {
		t.Errorf("unexpected assets: %+v", ds.Assets)
	}
	if len(ds.AssetHistory) != 2 {
		t.Errorf("expected 2 history events before window end, got %d", len(ds.AssetHistory))
	}
	if len(ds.Locations) != 2 {
		t.Errorf("expected 2 locations, got %d", len(ds.Locations))
	}
}

func TestImportUpsertsCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.ImportDataset(ctx, sampleDataset(), nil); err != nil {
		t.Fatalf("ImportDataset: %v", err)
	}
	update := &models.Dataset{
		Supplies: []models.SupplyItem{{ItemID: "flour", Name: "Bread flour", Category: "dry", Unit: "kg", PricePerUnit: 2.5}},
		Assets:   []models.AssetRecord{{AssetID: "a1", PurchaseAmount: 1200, PurchaseDate: day(2023, 3, 1), Status: "DISPOSED"}},
	}
	if err := s.ImportDataset(ctx, update, nil); err != nil {
		t.Fatalf("ImportDataset update: %v", err)
	}

	ds, err := s.LoadDataset(ctx, day(2024, 1, 1), day(2024, 3, 1))
	if err != nil {
		t.Fatalf("LoadDataset: %v", err)
	}
	if len(ds.Supplies) != 2 {
		t.Fatalf("expected upsert to keep 2 supplies, got %d", len(ds.Supplies))
	}
	if ds.Supplies[0].Name != "Bread flour" || ds.Supplies[0].PricePerUnit != 2.5 {
		t.Errorf("expected updated flour, got %+v", ds.Supplies[0])
	}
	if ds.Assets[0].Status != "DISPOSED" {
		t.Errorf("expected updated asset status, got %q", ds.Assets[0].Status)
	}
}

func TestImportNilDataset(t *testing.T) {
	s := newTestStore(t)
	if err := s.ImportDataset(context.Background(), nil, nil); err != nil {
		t.Fatalf("ImportDataset(nil): %v", err)
	}
}

// ─── Analysis runs ────────────────────────────────────────────────────────────

func saveRun(t *testing.T, s Store, id string, generated time.Time, events ...*AnomalyEventRecord) {
	t.Helper()
	run := &AnalysisRunRecord{
		ID:          id,
		Trigger:     "api",
		WindowStart: day(2023, 7, 1),
		WindowEnd:   day(2024, 7, 1),
		GeneratedAt: generated,
		DurationMs:  42,
		Summary:     json.RawMessage(`{"itemsAnalyzed":2}`),
		Report:      json.RawMessage(`{"id":"` + id + `"}`),
	}
	if err := s.SaveAnalysis(context.Background(), run, events); err != nil {
		t.Fatalf("SaveAnalysis %s: %v", id, err)
	}
}

func TestAnalysisRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	generated := day(2024, 6, 15)

	ev := &AnomalyEventRecord{
		Detector:   DetectorConsumption,
		SubjectID:  "flour",
		Severity:   "high",
		Score:      4.2,
		DetectedAt: generated,
		Metadata:   json.RawMessage(`{"month":"2024-06"}`),
	}
	saveRun(t, s, "run-1", generated, ev)

	if ev.RunID != "run-1" || ev.ID == 0 {
		t.Errorf("expected event to be bound to run-1 with an ID, got %+v", ev)
	}

	got, err := s.GetAnalysis(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetAnalysis: %v", err)
	}
	if got.Trigger != "api" || got.DurationMs != 42 {
		t.Errorf("unexpected run: %+v", got)
	}
	if !got.GeneratedAt.Equal(generated) {
		t.Errorf("expected generated_at %v, got %v", generated, got.GeneratedAt)
	}
	if string(got.Report) != `{"id":"run-1"}` {
		t.Errorf("unexpected report %s", got.Report)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetAnalysis(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAnalysesNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "run-old", day(2024, 4, 1))
	saveRun(t, s, "run-new", day(2024, 6, 1))
	saveRun(t, s, "run-mid", day(2024, 5, 1))

	runs, err := s.ListAnalyses(ctx, 10, 0)
	if err != nil {
		t.Fatalf("ListAnalyses: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(runs))
	}
	want := []string{"run-new", "run-mid", "run-old"}
	for i, id := range want {
		if runs[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, runs[i].ID)
		}
		if len(runs[i].Report) != 0 {
			t.Errorf("expected list to omit reports, got %s", runs[i].Report)
		}
	}

	page, err := s.ListAnalyses(ctx, 1, 1)
	if err != nil {
		t.Fatalf("ListAnalyses page: %v", err)
	}
	if len(page) != 1 || page[0].ID != "run-mid" {
		t.Errorf("expected run-mid on page 2, got %+v", page)
	}
}

func TestSaveAnalysisDuplicateIDRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "run-1", day(2024, 6, 1))
	run := &AnalysisRunRecord{ID: "run-1", GeneratedAt: day(2024, 6, 2)}
	ev := &AnomalyEventRecord{Detector: DetectorKitchen, SubjectID: "k1", Severity: "high", DetectedAt: day(2024, 6, 2)}
	if err := s.SaveAnalysis(ctx, run, []*AnomalyEventRecord{ev}); err == nil {
		t.Fatal("expected duplicate run ID to fail")
	}

	events, err := s.ListAnomalyEvents(ctx, AnomalyQuery{})
	if err != nil {
		t.Fatalf("ListAnomalyEvents: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected rollback to leave no events, got %d", len(events))
	}
}

// ─── Anomaly events ───────────────────────────────────────────────────────────

func TestListAnomalyEventsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "run-1", day(2024, 5, 1),
		&AnomalyEventRecord{Detector: DetectorConsumption, SubjectID: "flour", Severity: "high", Score: 3.5, DetectedAt: day(2024, 5, 1)},
		&AnomalyEventRecord{Detector: DetectorKitchen, SubjectID: "k2", Severity: "medium", Score: 2, DetectedAt: day(2024, 5, 1)},
	)
	saveRun(t, s, "run-2", day(2024, 6, 1),
		&AnomalyEventRecord{Detector: DetectorConsumption, SubjectID: "milk", Severity: "medium", Score: 1.7, DetectedAt: day(2024, 6, 1)},
		&AnomalyEventRecord{Detector: DetectorDisposal, SubjectID: "a2", Severity: "high", Score: 0, DetectedAt: day(2024, 6, 1)},
	)

	all, err := s.ListAnomalyEvents(ctx, AnomalyQuery{})
	if err != nil {
		t.Fatalf("ListAnomalyEvents: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}
	if all[0].RunID != "run-2" {
		t.Errorf("expected newest events first, got %s", all[0].RunID)
	}

	byDetector, _ := s.ListAnomalyEvents(ctx, AnomalyQuery{Detector: DetectorConsumption})
	if len(byDetector) != 2 {
		t.Errorf("expected 2 consumption events, got %d", len(byDetector))
	}

	byRun, _ := s.ListAnomalyEvents(ctx, AnomalyQuery{RunID: "run-1", Severity: "high"})
	if len(byRun) != 1 || byRun[0].SubjectID != "flour" {
		t.Errorf("expected flour only, got %+v", byRun)
	}

	since, _ := s.ListAnomalyEvents(ctx, AnomalyQuery{From: day(2024, 5, 15)})
	if len(since) != 2 {
		t.Errorf("expected 2 events since mid-May, got %d", len(since))
	}

	limited, _ := s.ListAnomalyEvents(ctx, AnomalyQuery{Limit: 1, Offset: 1})
	if len(limited) != 1 {
		t.Errorf("expected 1 event with limit, got %d", len(limited))
	}
}

func TestAnomalySummary(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	saveRun(t, s, "run-1", day(2024, 5, 1),
		&AnomalyEventRecord{Detector: DetectorConsumption, SubjectID: "flour", Severity: "high", DetectedAt: day(2024, 5, 1)},
		&AnomalyEventRecord{Detector: DetectorLocation, SubjectID: "HQ/1/101", Severity: "high", DetectedAt: day(2024, 5, 1)},
		&AnomalyEventRecord{Detector: DetectorKitchen, SubjectID: "k2", Severity: "medium", DetectedAt: day(2024, 5, 1)},
	)

	summary, err := s.AnomalySummary(ctx, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("AnomalySummary: %v", err)
	}
	if summary["high"] != 2 || summary["medium"] != 1 {
		t.Errorf("unexpected summary %v", summary)
	}

	empty, err := s.AnomalySummary(ctx, day(2024, 6, 1), time.Time{})
	if err != nil {
		t.Fatalf("AnomalySummary: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty summary after June, got %v", empty)
	}
}

func TestPing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func TestParseTime(t *testing.T) {
	want := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	for _, in := range []string{
		"2024-03-04T05:06:07.000000000Z",
		"2024-03-04T05:06:07Z",
		"2024-03-04T07:06:07+02:00",
		"2024-03-04 05:06:07",
	} {
		got, err := parseTime(in)
		if err != nil {
			t.Errorf("parseTime(%q): %v", in, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("parseTime(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := parseTime("not a time"); err == nil {
		t.Error("expected error for garbage input")
	}
	if !parseTimeOrZero("").IsZero() {
		t.Error("expected zero time for empty input")
	}
}

func TestFormatTimeOrdersLexically(t *testing.T) {
	a := formatTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	b := formatTime(time.Date(2024, 1, 2, 3, 4, 5, 500, time.UTC))
	if !(a < b) {
		t.Errorf("expected %q < %q", a, b)
	}
}
