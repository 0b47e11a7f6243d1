package timeseries

import (
	"strings"

	"github.com/restrack/restrack-ai/internal/models"
)

// keySep joins composite keys; it cannot appear in record identifiers.
const keySep = "\x1f"

// UnspecifiedVehicleType groups rentals without a vehicle type.
const UnspecifiedVehicleType = "unspecified"

// ConsumptionByItem turns consumption records into item-keyed quantity observations.
func ConsumptionByItem(records []models.ConsumptionRecord) []Observation {
	out := make([]Observation, 0, len(records))
	for _, r := range records {
		r = r.Sanitized()
		out = append(out, Observation{Key: r.ItemID, Date: r.Date, Value: r.Quantity})
	}
	return out
}

// ConsumptionByKitchenItem keys consumption quantities by kitchen and item.
func ConsumptionByKitchenItem(records []models.ConsumptionRecord) []Observation {
	out := make([]Observation, 0, len(records))
	for _, r := range records {
		r = r.Sanitized()
		out = append(out, Observation{Key: KitchenItemKey(r.KitchenID, r.ItemID), Date: r.Date, Value: r.Quantity})
	}
	return out
}

// KitchenItemKey builds the composite key used by ConsumptionByKitchenItem.
func KitchenItemKey(kitchenID, itemID string) string {
	return kitchenID + keySep + itemID
}

// SplitKitchenItemKey reverses KitchenItemKey.
func SplitKitchenItemKey(key string) (kitchenID, itemID string) {
	kitchenID, itemID, _ = strings.Cut(key, keySep)
	return kitchenID, itemID
}

// RentalCostByVehicleType emits one observation per window month in which a
// rental is active, valued at its monthly amount and keyed by vehicle type.
func RentalCostByVehicleType(rentals []models.RentalRecord, w Window) []Observation {
	months := w.MonthStarts()
	var out []Observation
	for _, r := range rentals {
		r = r.Sanitized()
		key := r.VehicleType
		if key == "" {
			key = UnspecifiedVehicleType
		}
		active := false
		for _, m := range months {
			if r.ActiveIn(m, m.AddDate(0, 1, 0)) {
				out = append(out, Observation{Key: key, Date: m, Value: r.MonthlyAmount})
				active = true
			}
		}
		if !active {
			out = append(out, Observation{Key: key})
		}
	}
	return out
}
