package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/restrack/restrack-ai/internal/models"
)

// Row types mirror the record tables column for column. Timestamps are
// scanned as strings: SQLite stores them as text, and database/sql renders
// a driver's time.Time as RFC 3339 when the destination is a string.

type supplyRow struct {
	ItemID       string  `db:"item_id"`
	Name         string  `db:"name"`
	Category     string  `db:"category"`
	Unit         string  `db:"unit"`
	PricePerUnit float64 `db:"price_per_unit"`
}

type consumptionRow struct {
	ItemID     string  `db:"item_id"`
	KitchenID  string  `db:"kitchen_id"`
	Quantity   float64 `db:"quantity"`
	ConsumedAt string  `db:"consumed_at"`
	UnitPrice  float64 `db:"unit_price"`
}

type rentalRow struct {
	VehicleID     string         `db:"vehicle_id"`
	VehicleType   string         `db:"vehicle_type"`
	StartDate     string         `db:"start_date"`
	EndDate       sql.NullString `db:"end_date"`
	MonthlyAmount float64        `db:"monthly_amount"`
}

type assetRow struct {
	AssetID        string  `db:"asset_id"`
	Building       string  `db:"building"`
	Floor          string  `db:"floor"`
	Room           string  `db:"room"`
	PurchaseAmount float64 `db:"purchase_amount"`
	PurchaseDate   string  `db:"purchase_date"`
	Status         string  `db:"status"`
}

type historyRow struct {
	AssetID    string `db:"asset_id"`
	Action     string `db:"action"`
	OccurredAt string `db:"occurred_at"`
	Details    string `db:"details"`
}

type locationRow struct {
	Building string `db:"building"`
	Floor    string `db:"floor"`
	Room     string `db:"room"`
}

func (r supplyRow) model() models.SupplyItem {
	return models.SupplyItem{
		ItemID:       r.ItemID,
		Name:         r.Name,
		Category:     r.Category,
		Unit:         r.Unit,
		PricePerUnit: r.PricePerUnit,
	}
}

func (r consumptionRow) model() models.ConsumptionRecord {
	return models.ConsumptionRecord{
		ItemID:    r.ItemID,
		KitchenID: r.KitchenID,
		Quantity:  r.Quantity,
		Date:      parseTimeOrZero(r.ConsumedAt),
		UnitPrice: r.UnitPrice,
	}.Sanitized()
}

func (r rentalRow) model() models.RentalRecord {
	rec := models.RentalRecord{
		VehicleID:     r.VehicleID,
		VehicleType:   r.VehicleType,
		StartDate:     parseTimeOrZero(r.StartDate),
		MonthlyAmount: r.MonthlyAmount,
	}
	if r.EndDate.Valid {
		rec.EndDate = parseTimeOrZero(r.EndDate.String)
	}
	return rec.Sanitized()
}

func (r assetRow) model() models.AssetRecord {
	return models.AssetRecord{
		AssetID:        r.AssetID,
		Location:       models.LocationKey{Building: r.Building, Floor: r.Floor, Room: r.Room},
		PurchaseAmount: r.PurchaseAmount,
		PurchaseDate:   parseTimeOrZero(r.PurchaseDate),
		Status:         r.Status,
	}.Sanitized()
}

func (r historyRow) model() models.AssetHistoryEvent {
	return models.AssetHistoryEvent{
		AssetID:   r.AssetID,
		Action:    r.Action,
		Timestamp: parseTimeOrZero(r.OccurredAt),
		Details:   r.Details,
	}
}

func (r locationRow) model() models.LocationKey {
	return models.LocationKey{Building: r.Building, Floor: r.Floor, Room: r.Room}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// timeLayout is fixed-width so that stored timestamps order lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

// parseTime handles multiple SQLite and PostgreSQL datetime formats.
func parseTime(s string) (time.Time, error) {
	layouts := []string{
		timeLayout,
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, l := range layouts {
		if t, err := time.Parse(l, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q", s)
}

// parseTimeOrZero returns the zero time for unparseable input; the engine
// treats undated records as outside every window.
func parseTimeOrZero(s string) time.Time {
	t, err := parseTime(s)
	if err != nil {
		return time.Time{}
	}
	return t
}
