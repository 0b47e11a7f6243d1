package forecasting

import "github.com/restrack/restrack-ai/internal/analytics/timeseries"

// Package forecasting projects a monthly series one period forward.
//
// Forecasting Model:
//
//   1. Linear Regression
//      - Least-squares line through month index vs. value
//      - Normalized slope (slope / mean) classifies the trend
//      - Below StableSlopeRatio the series is "stable"
//
//   2. Seasonality Factor
//      - Same-calendar-month average ÷ overall mean
//      - 1.0 when the mean is zero or the month is not in the window
//      - Clamped to [SeasonalityMin, SeasonalityMax]
//
//   3. Confidence
//      - History score: non-zero months / FullHistoryMonths (capped at 1)
//      - Stability score: 1 / (1 + coefficient of variation)
//      - Fewer than MinHistoryMonths non-zero months caps it at
//        LowDataConfidenceCeiling
//
// Forecast Output:
//   - Point estimate floored at zero
//   - Bounds: estimate ± estimate × riskFactor, riskFactor = 1 - confidence
//   - Monthly growth rate for downstream compounding

// Trend is the long-run direction of a series.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// Prediction is the next-period forecast of a series.
type Prediction struct {
	PredictedQuantity float64 `json:"predictedQuantity"`
	PredictedAmount   float64 `json:"predictedAmount"`
	Confidence        float64 `json:"confidence"`
	Trend             Trend   `json:"trend"`
	SeasonalityFactor float64 `json:"seasonalityFactor"`
	UpperBound        float64 `json:"upperBound"`
	LowerBound        float64 `json:"lowerBound"`
	RiskFactor        float64 `json:"riskFactor"`
	// GrowthRate is the fitted slope relative to the series mean, per month.
	GrowthRate    float64 `json:"growthRate"`
	NonZeroMonths int     `json:"nonZeroMonths"`
}

// Priced returns a copy with PredictedAmount set from the unit price.
func (p Prediction) Priced(pricePerUnit float64) Prediction {
	if pricePerUnit > 0 {
		p.PredictedAmount = p.PredictedQuantity * pricePerUnit
	}
	return p
}

// Config holds the estimator tunables.
type Config struct {
	StableSlopeRatio         float64
	MinHistoryMonths         int
	LowDataConfidenceCeiling float64
	FullHistoryMonths        int
	SeasonalityMin           float64
	SeasonalityMax           float64
}

// DefaultConfig returns the estimator defaults.
func DefaultConfig() Config {
	return Config{
		StableSlopeRatio:         0.05,
		MinHistoryMonths:         3,
		LowDataConfidenceCeiling: 0.3,
		FullHistoryMonths:        6,
		SeasonalityMin:           0.5,
		SeasonalityMax:           2.0,
	}
}

// Estimator defines the interface for next-period trend estimation.
type Estimator interface {
	// Predict forecasts the month after the series' last point.
	Predict(series timeseries.MonthlySeries) Prediction
}
