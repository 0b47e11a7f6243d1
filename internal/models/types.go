// Package models defines the record types the analysis engine consumes.
//
// Every type here is a read-only input: the engine never mutates a record,
// it only derives series, predictions and flags from them. Rows arrive from
// the store or an HTTP payload and may be incomplete, so each record carries
// a Sanitized method that substitutes safe defaults instead of failing.
package models

import (
	"fmt"
	"math"
	"time"
)

// Asset history actions.
const (
	ActionPurchased = "PURCHASED"
	ActionMoved     = "MOVED"
	ActionDisposed  = "DISPOSED"
)

// ConsumptionRecord is one consumption or waste event of a supply item in a kitchen.
type ConsumptionRecord struct {
	ItemID    string    `json:"itemId" db:"item_id"`
	KitchenID string    `json:"kitchenId" db:"kitchen_id"`
	Quantity  float64   `json:"quantity" db:"quantity"`
	Date      time.Time `json:"date" db:"consumed_at"`
	UnitPrice float64   `json:"unitPrice" db:"unit_price"`
}

// Sanitized returns a copy with invalid quantity and price replaced by zero.
func (r ConsumptionRecord) Sanitized() ConsumptionRecord {
	r.Quantity = NonNegative(r.Quantity)
	r.UnitPrice = NonNegative(r.UnitPrice)
	return r
}

// SupplyItem is a static catalog entry joined to consumption by ItemID.
type SupplyItem struct {
	ItemID       string  `json:"itemId" db:"item_id"`
	Name         string  `json:"name" db:"name"`
	Category     string  `json:"category" db:"category"`
	Unit         string  `json:"unit" db:"unit"`
	PricePerUnit float64 `json:"pricePerUnit" db:"price_per_unit"`
}

// RentalRecord is a vehicle rental contract. EndDate is zero for open-ended rentals.
type RentalRecord struct {
	VehicleID     string    `json:"vehicleId" db:"vehicle_id"`
	StartDate     time.Time `json:"startDate" db:"start_date"`
	EndDate       time.Time `json:"endDate" db:"end_date"`
	MonthlyAmount float64   `json:"monthlyAmount" db:"monthly_amount"`
	VehicleType   string    `json:"vehicleType" db:"vehicle_type"`
}

// Sanitized returns a copy with an invalid monthly amount replaced by zero.
func (r RentalRecord) Sanitized() RentalRecord {
	r.MonthlyAmount = NonNegative(r.MonthlyAmount)
	return r
}

// ActiveIn reports whether the rental overlaps the half-open interval [from, to).
func (r RentalRecord) ActiveIn(from, to time.Time) bool {
	if r.StartDate.IsZero() || !r.StartDate.Before(to) {
		return false
	}
	return r.EndDate.IsZero() || !r.EndDate.Before(from)
}

// LocationKey identifies a room inside a building.
type LocationKey struct {
	Building string `json:"building" db:"building"`
	Floor    string `json:"floor" db:"floor"`
	Room     string `json:"room" db:"room"`
}

func (k LocationKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Building, k.Floor, k.Room)
}

// IsZero reports whether no part of the location is set.
func (k LocationKey) IsZero() bool {
	return k.Building == "" && k.Floor == "" && k.Room == ""
}

// AssetRecord is a purchased asset placed at a location.
type AssetRecord struct {
	AssetID        string      `json:"assetId" db:"asset_id"`
	Location       LocationKey `json:"location"`
	PurchaseAmount float64     `json:"purchaseAmount" db:"purchase_amount"`
	PurchaseDate   time.Time   `json:"purchaseDate" db:"purchase_date"`
	Status         string      `json:"status" db:"status"`
}

// Sanitized returns a copy with an invalid purchase amount replaced by zero.
func (a AssetRecord) Sanitized() AssetRecord {
	a.PurchaseAmount = NonNegative(a.PurchaseAmount)
	return a
}

// AssetHistoryEvent is one entry of an asset's lifecycle log.
type AssetHistoryEvent struct {
	AssetID   string    `json:"assetId" db:"asset_id"`
	Action    string    `json:"action" db:"action"`
	Timestamp time.Time `json:"timestamp" db:"occurred_at"`
	Details   string    `json:"details" db:"details"`
}

// Dataset is the full in-memory snapshot handed to the engine for one analysis.
type Dataset struct {
	Supplies     []SupplyItem        `json:"supplies"`
	Consumption  []ConsumptionRecord `json:"consumption"`
	Rentals      []RentalRecord      `json:"rentals"`
	Assets       []AssetRecord       `json:"assets"`
	AssetHistory []AssetHistoryEvent `json:"assetHistory"`
	// Locations optionally lists known rooms, including ones holding no assets.
	Locations []LocationKey `json:"locations,omitempty"`
}

// SupplyIndex maps item IDs to catalog entries.
func (d *Dataset) SupplyIndex() map[string]SupplyItem {
	idx := make(map[string]SupplyItem, len(d.Supplies))
	for _, s := range d.Supplies {
		s.PricePerUnit = NonNegative(s.PricePerUnit)
		idx[s.ItemID] = s
	}
	return idx
}

// RecordCounts returns the number of rows per record kind.
func (d *Dataset) RecordCounts() map[string]int {
	return map[string]int{
		"supplies":      len(d.Supplies),
		"consumption":   len(d.Consumption),
		"rentals":       len(d.Rentals),
		"assets":        len(d.Assets),
		"asset_history": len(d.AssetHistory),
	}
}

// NonNegative maps NaN, ±Inf and negative values to zero.
func NonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
