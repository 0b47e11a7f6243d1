package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/restrack/restrack-ai/internal/models"
)

// datasetLoader reads a Dataset with dialect-neutral queries; sqlx rebinds
// the placeholders for the underlying driver.
type datasetLoader struct {
	db *sqlx.DB
	// timeArg converts a bound timestamp into the driver's comparable form.
	timeArg func(time.Time) any
}

const (
	selectSupplies = `SELECT item_id, name, category, unit, price_per_unit FROM supply_items ORDER BY item_id`

	selectConsumption = `SELECT item_id, kitchen_id, quantity, consumed_at, unit_price
        FROM consumption_records WHERE consumed_at >= ? AND consumed_at < ? ORDER BY consumed_at`

	selectRentals = `SELECT vehicle_id, vehicle_type, start_date, end_date, monthly_amount
        FROM rental_records WHERE start_date < ? AND (end_date IS NULL OR end_date >= ?) ORDER BY vehicle_id, start_date`

	selectAssets = `SELECT asset_id, building, floor, room, purchase_amount, purchase_date, status
        FROM assets ORDER BY asset_id`

	selectHistory = `SELECT asset_id, action, occurred_at, details
        FROM asset_history WHERE occurred_at < ? ORDER BY asset_id, occurred_at`

	selectLocations = `SELECT building, floor, room FROM locations ORDER BY building, floor, room`
)

// LoadDataset implements RecordStore.
func (l *datasetLoader) LoadDataset(ctx context.Context, from, to time.Time) (*models.Dataset, error) {
	ds := &models.Dataset{}

	var supplies []supplyRow
	if err := l.db.SelectContext(ctx, &supplies, l.db.Rebind(selectSupplies)); err != nil {
		return nil, fmt.Errorf("load supplies: %w", err)
	}
	for _, r := range supplies {
		ds.Supplies = append(ds.Supplies, r.model())
	}

	var consumption []consumptionRow
	if err := l.db.SelectContext(ctx, &consumption, l.db.Rebind(selectConsumption), l.timeArg(from), l.timeArg(to)); err != nil {
		return nil, fmt.Errorf("load consumption: %w", err)
	}
	for _, r := range consumption {
		ds.Consumption = append(ds.Consumption, r.model())
	}

	var rentals []rentalRow
	if err := l.db.SelectContext(ctx, &rentals, l.db.Rebind(selectRentals), l.timeArg(to), l.timeArg(from)); err != nil {
		return nil, fmt.Errorf("load rentals: %w", err)
	}
	for _, r := range rentals {
		ds.Rentals = append(ds.Rentals, r.model())
	}

	var assets []assetRow
	if err := l.db.SelectContext(ctx, &assets, l.db.Rebind(selectAssets)); err != nil {
		return nil, fmt.Errorf("load assets: %w", err)
	}
	for _, r := range assets {
		ds.Assets = append(ds.Assets, r.model())
	}

	var history []historyRow
	if err := l.db.SelectContext(ctx, &history, l.db.Rebind(selectHistory), l.timeArg(to)); err != nil {
		return nil, fmt.Errorf("load asset history: %w", err)
	}
	for _, r := range history {
		ds.AssetHistory = append(ds.AssetHistory, r.model())
	}

	var locations []locationRow
	if err := l.db.SelectContext(ctx, &locations, l.db.Rebind(selectLocations)); err != nil {
		return nil, fmt.Errorf("load locations: %w", err)
	}
	for _, r := range locations {
		ds.Locations = append(ds.Locations, r.model())
	}

	return ds, nil
}
