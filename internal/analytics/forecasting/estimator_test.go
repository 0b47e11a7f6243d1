package forecasting

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
)

func monthly(values ...float64) timeseries.MonthlySeries {
	start := time.Date(2023, time.July, 1, 0, 0, 0, 0, time.UTC)
	points := make([]timeseries.Point, len(values))
	for i, v := range values {
		m := start.AddDate(0, i, 0)
		points[i] = timeseries.Point{Month: m.Format(timeseries.MonthLayout), Start: m, Value: v}
	}
	return timeseries.MonthlySeries{EntityID: "item", Points: points}
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestPredict_EmptySeries(t *testing.T) {
	p := NewEstimator(DefaultConfig()).Predict(timeseries.MonthlySeries{})

	assert.Equal(t, 0.0, p.PredictedQuantity)
	assert.Equal(t, 0.0, p.Confidence)
	assert.Equal(t, TrendStable, p.Trend)
	assert.Equal(t, 1.0, p.SeasonalityFactor)
}

func TestPredict_AllZeroSeries(t *testing.T) {
	p := NewEstimator(DefaultConfig()).Predict(monthly(repeat(0, 12)...))

	assert.Equal(t, 0.0, p.PredictedQuantity)
	assert.LessOrEqual(t, p.Confidence, 0.3)
	assert.Equal(t, TrendStable, p.Trend)
	assert.Equal(t, 1.0, p.SeasonalityFactor)
	assert.Equal(t, 0.0, p.LowerBound)
}

func TestPredict_SingleMonth(t *testing.T) {
	p := NewEstimator(DefaultConfig()).Predict(monthly(40))

	assert.Equal(t, TrendStable, p.Trend)
	assert.LessOrEqual(t, p.Confidence, 0.3)
	assert.InDelta(t, 40.0, p.PredictedQuantity, 1e-9)
}

func TestPredict_ConstantSeriesIsStableAndConfident(t *testing.T) {
	p := NewEstimator(DefaultConfig()).Predict(monthly(repeat(20, 12)...))

	assert.Equal(t, TrendStable, p.Trend)
	assert.InDelta(t, 20.0, p.PredictedQuantity, 1e-9)
	assert.InDelta(t, 1.0, p.SeasonalityFactor, 1e-9)
	assert.InDelta(t, 1.0, p.Confidence, 1e-9)
	assert.InDelta(t, 0.0, p.RiskFactor, 1e-9)
}

func TestPredict_LastMonthSpikeIsIncreasing(t *testing.T) {
	vals := append(repeat(10, 11), 50)
	p := NewEstimator(DefaultConfig()).Predict(monthly(vals...))

	assert.Equal(t, TrendIncreasing, p.Trend)
	assert.Greater(t, p.GrowthRate, 0.05)
	assert.Greater(t, p.PredictedQuantity, 0.0)
	assert.GreaterOrEqual(t, p.Confidence, 0.0)
	assert.LessOrEqual(t, p.Confidence, 1.0)
}

func TestPredict_DecreasingNeverNegative(t *testing.T) {
	p := NewEstimator(DefaultConfig()).Predict(monthly(120, 100, 80, 60, 40, 20, 0, 0, 0, 0, 0, 0))

	assert.Equal(t, TrendDecreasing, p.Trend)
	assert.GreaterOrEqual(t, p.PredictedQuantity, 0.0)
	assert.GreaterOrEqual(t, p.LowerBound, 0.0)
	assert.Less(t, p.GrowthRate, 0.0)
}

func TestPredict_SparseHistoryCapsConfidence(t *testing.T) {
	vals := repeat(0, 12)
	vals[4], vals[9] = 30, 30
	p := NewEstimator(DefaultConfig()).Predict(monthly(vals...))

	assert.Equal(t, 2, p.NonZeroMonths)
	assert.LessOrEqual(t, p.Confidence, 0.3)
}

func TestPredict_SeasonalityFromSameMonth(t *testing.T) {
	// 24 months, July is always double the rest; the series ends in June so
	// the predicted month is July.
	vals := repeat(10, 24)
	vals[0], vals[12] = 20, 20
	p := NewEstimator(DefaultConfig()).Predict(monthly(vals...))

	assert.Equal(t, TrendStable, p.Trend)
	mean := (22*10.0 + 40) / 24
	assert.InDelta(t, 20/mean, p.SeasonalityFactor, 1e-9)
	assert.Greater(t, p.PredictedQuantity, 10.0)
}

func TestPredict_SeasonalityClamped(t *testing.T) {
	vals := repeat(0, 12)
	vals[0] = 100
	vals[6] = 1
	vals[8] = 1
	p := NewEstimator(DefaultConfig()).Predict(monthly(vals...))

	assert.Equal(t, DefaultConfig().SeasonalityMax, p.SeasonalityFactor)
}

func TestPriced(t *testing.T) {
	p := Prediction{PredictedQuantity: 4}.Priced(2.5)
	assert.Equal(t, 10.0, p.PredictedAmount)
	assert.Equal(t, 0.0, Prediction{PredictedQuantity: 4}.Priced(0).PredictedAmount)
}
