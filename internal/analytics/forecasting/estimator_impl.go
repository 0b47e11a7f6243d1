package forecasting

import (
	"math"

	"github.com/restrack/restrack-ai/internal/analytics/stats"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
)

// trendEstimator is the concrete Estimator. It holds configuration only.
type trendEstimator struct {
	cfg Config
}

// NewEstimator creates an estimator. Zero-valued fields take their defaults.
func NewEstimator(cfg Config) Estimator {
	def := DefaultConfig()
	if cfg.StableSlopeRatio <= 0 {
		cfg.StableSlopeRatio = def.StableSlopeRatio
	}
	if cfg.MinHistoryMonths <= 0 {
		cfg.MinHistoryMonths = def.MinHistoryMonths
	}
	if cfg.LowDataConfidenceCeiling <= 0 {
		cfg.LowDataConfidenceCeiling = def.LowDataConfidenceCeiling
	}
	if cfg.FullHistoryMonths <= 0 {
		cfg.FullHistoryMonths = def.FullHistoryMonths
	}
	if cfg.SeasonalityMin <= 0 {
		cfg.SeasonalityMin = def.SeasonalityMin
	}
	if cfg.SeasonalityMax < cfg.SeasonalityMin {
		cfg.SeasonalityMax = math.Max(def.SeasonalityMax, cfg.SeasonalityMin)
	}
	return &trendEstimator{cfg: cfg}
}

// Predict fits a linear trend, applies the seasonality factor and scores confidence.
func (e *trendEstimator) Predict(series timeseries.MonthlySeries) Prediction {
	vals := series.Values()
	if len(vals) == 0 {
		return Prediction{Trend: TrendStable, SeasonalityFactor: 1}
	}

	mean := stats.Mean(vals)
	nonZero := stats.NonZeroCount(vals)

	var slope, intercept float64
	trend := TrendStable
	if len(vals) >= 2 {
		slope, intercept = stats.LinearRegression(vals)
		trend = e.classify(slope, mean)
	} else {
		intercept = stats.Safe(vals[0])
	}

	growth := 0.0
	if mean > 0 {
		growth = slope / mean
	}

	factor := e.seasonality(series, mean)
	projected := intercept + slope*float64(len(vals))
	predicted := math.Max(0, stats.Safe(projected*factor))

	confidence := e.confidence(vals, nonZero)
	risk := 1 - confidence

	return Prediction{
		PredictedQuantity: predicted,
		Confidence:        confidence,
		Trend:             trend,
		SeasonalityFactor: factor,
		UpperBound:        predicted * (1 + risk),
		LowerBound:        math.Max(0, predicted*(1-risk)),
		RiskFactor:        risk,
		GrowthRate:        stats.Safe(growth),
		NonZeroMonths:     nonZero,
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func (e *trendEstimator) classify(slope, mean float64) Trend {
	if mean <= 0 || math.Abs(slope)/mean < e.cfg.StableSlopeRatio {
		return TrendStable
	}
	if slope > 0 {
		return TrendIncreasing
	}
	return TrendDecreasing
}

// seasonality returns the same-calendar-month average of the predicted month
// relative to the series mean.
func (e *trendEstimator) seasonality(series timeseries.MonthlySeries, mean float64) float64 {
	if mean <= 0 {
		return 1
	}
	target := series.NextMonth().Month()
	sum, n := 0.0, 0
	for _, p := range series.Points {
		if p.Start.Month() == target {
			sum += p.Value
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return stats.Clamp((sum/float64(n))/mean, e.cfg.SeasonalityMin, e.cfg.SeasonalityMax)
}

func (e *trendEstimator) confidence(vals []float64, nonZero int) float64 {
	history := math.Min(1, float64(nonZero)/float64(e.cfg.FullHistoryMonths))
	stability := 1 / (1 + stats.CoefficientOfVariation(vals))
	c := stats.Clamp(history*stability, 0, 1)
	if nonZero < e.cfg.MinHistoryMonths || len(vals) < 2 {
		c = math.Min(c, e.cfg.LowDataConfidenceCeiling)
	}
	return c
}
