package timeseries

import "time"

// Package timeseries buckets dated records into per-entity monthly series.
//
// Responsibilities:
//   - Define the trailing window the analysis covers (default 12 months)
//   - Group observations by key (item, kitchen/item, vehicle type, ...)
//   - Sum each key's observations into calendar-month buckets
//   - Zero-fill every month of the window so series are contiguous
//
// Gaps are never omitted: an omitted month would shorten the series and
// bias every slope and average computed from it downstream.
//
// Observations outside the window, or with no date at all, are discarded
// but still register their key, so an entity with only stale activity gets
// an all-zero series instead of disappearing.

// DefaultWindowMonths is the trailing window used when none is configured.
const DefaultWindowMonths = 12

// MonthLayout is the label format of a series point.
const MonthLayout = "2006-01"

// Observation is one dated, quantified value attributed to a grouping key.
type Observation struct {
	Key   string
	Date  time.Time
	Value float64
}

// Point is one calendar month of a series.
type Point struct {
	Month string    `json:"month"`
	Start time.Time `json:"start"`
	Value float64   `json:"value"`
}

// MonthlySeries is a contiguous, chronologically ordered monthly series.
type MonthlySeries struct {
	EntityID string  `json:"entityId"`
	Points   []Point `json:"points"`
}

// Values returns the point values, oldest first.
func (s MonthlySeries) Values() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Value
	}
	return out
}

// Total returns the sum of all points.
func (s MonthlySeries) Total() float64 {
	total := 0.0
	for _, p := range s.Points {
		total += p.Value
	}
	return total
}

// NextMonth returns the start of the month following the last point.
func (s MonthlySeries) NextMonth() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Start.AddDate(0, 1, 0)
}

// Aggregator defines the interface for monthly bucketing.
type Aggregator interface {
	// Window returns the trailing window series are built over.
	Window() Window

	// Aggregate returns one zero-filled series per distinct key, sorted by key.
	Aggregate(observations []Observation) []MonthlySeries
}
