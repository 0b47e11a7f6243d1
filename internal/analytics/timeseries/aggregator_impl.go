package timeseries

import (
	"sort"

	"github.com/restrack/restrack-ai/internal/models"
)

// monthlyAggregator is the concrete Aggregator.
type monthlyAggregator struct {
	window Window
}

// NewAggregator creates an aggregator over the given window.
func NewAggregator(w Window) Aggregator {
	if w.Months <= 0 {
		w.Months = DefaultWindowMonths
	}
	return &monthlyAggregator{window: w}
}

func (a *monthlyAggregator) Window() Window {
	return a.window
}

// Aggregate sums observations into per-key monthly buckets.
func (a *monthlyAggregator) Aggregate(observations []Observation) []MonthlySeries {
	buckets := make(map[string][]float64)
	for _, o := range observations {
		vals, ok := buckets[o.Key]
		if !ok {
			vals = make([]float64, a.window.Months)
			buckets[o.Key] = vals
		}
		idx, ok := a.window.Index(o.Date)
		if !ok {
			continue
		}
		vals[idx] += models.NonNegative(o.Value)
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	months := a.window.MonthStarts()
	out := make([]MonthlySeries, 0, len(keys))
	for _, k := range keys {
		vals := buckets[k]
		points := make([]Point, len(months))
		for i, m := range months {
			points[i] = Point{Month: m.Format(MonthLayout), Start: m, Value: vals[i]}
		}
		out = append(out, MonthlySeries{EntityID: k, Points: points})
	}
	return out
}
