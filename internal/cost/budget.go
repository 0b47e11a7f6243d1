package cost

import (
	"math"
	"sort"

	"github.com/restrack/restrack-ai/internal/analytics/forecasting"
	"github.com/restrack/restrack-ai/internal/analytics/stats"
	"github.com/restrack/restrack-ai/internal/models"
)

// DefaultHorizons are the budget horizons in months.
var DefaultHorizons = []int{1, 3, 12, 24, 36}

// VehicleCategory groups recurring rental costs in category budgets.
const VehicleCategory = "vehicles"

// BudgetInput is one constituent of a budget: a priced item forecast or a
// recurring vehicle cost.
type BudgetInput struct {
	ID            string
	Category      string
	MonthlyAmount float64
	GrowthRate    float64
	Confidence    float64
	// Recurring inputs are charged MonthlyAmount × h with no growth.
	Recurring bool
}

// BudgetPrediction is the forecast total for one horizon.
type BudgetPrediction struct {
	Months     int                    `json:"months"`
	Category   string                 `json:"category,omitempty"`
	Prediction forecasting.Prediction `json:"prediction"`
}

// BudgetConfig holds the forecaster tunables.
type BudgetConfig struct {
	Horizons          []int
	MaxMonthlyGrowth  float64
	StableGrowthRatio float64
	BaseRisk          float64
	ConfidenceRisk    float64
	HorizonRiskGrowth float64
	MaxRisk           float64
}

// DefaultBudgetConfig returns the forecaster defaults.
func DefaultBudgetConfig() BudgetConfig {
	return BudgetConfig{
		Horizons:          DefaultHorizons,
		MaxMonthlyGrowth:  0.05,
		StableGrowthRatio: 0.01,
		BaseRisk:          0.05,
		ConfidenceRisk:    0.45,
		HorizonRiskGrowth: 0.35,
		MaxRisk:           0.95,
	}
}

// BudgetForecaster rolls item and vehicle forecasts up into horizon totals.
type BudgetForecaster struct {
	cfg BudgetConfig
}

// NewBudgetForecaster creates a forecaster. Zero-valued fields take their defaults.
func NewBudgetForecaster(cfg BudgetConfig) *BudgetForecaster {
	def := DefaultBudgetConfig()
	horizons := make([]int, 0, len(cfg.Horizons))
	for _, h := range cfg.Horizons {
		if h > 0 {
			horizons = append(horizons, h)
		}
	}
	if len(horizons) == 0 {
		horizons = append(horizons, def.Horizons...)
	}
	sort.Ints(horizons)
	cfg.Horizons = horizons

	if cfg.MaxMonthlyGrowth <= 0 {
		cfg.MaxMonthlyGrowth = def.MaxMonthlyGrowth
	}
	if cfg.StableGrowthRatio <= 0 {
		cfg.StableGrowthRatio = def.StableGrowthRatio
	}
	if cfg.BaseRisk <= 0 {
		cfg.BaseRisk = def.BaseRisk
	}
	if cfg.ConfidenceRisk <= 0 {
		cfg.ConfidenceRisk = def.ConfidenceRisk
	}
	if cfg.HorizonRiskGrowth <= 0 {
		cfg.HorizonRiskGrowth = def.HorizonRiskGrowth
	}
	if cfg.MaxRisk <= 0 || cfg.MaxRisk > 1 {
		cfg.MaxRisk = def.MaxRisk
	}
	return &BudgetForecaster{cfg: cfg}
}

// Horizons returns the configured horizons, ascending.
func (b *BudgetForecaster) Horizons() []int {
	return append([]int(nil), b.cfg.Horizons...)
}

// Forecast returns one total budget prediction per horizon, ascending.
func (b *BudgetForecaster) Forecast(inputs []BudgetInput) []BudgetPrediction {
	return b.forecast("", inputs)
}

// ForecastByCategory returns per-category predictions, ordered by category
// then horizon. Recurring inputs without a category fall under VehicleCategory.
func (b *BudgetForecaster) ForecastByCategory(inputs []BudgetInput) []BudgetPrediction {
	groups := make(map[string][]BudgetInput)
	for _, in := range inputs {
		cat := in.Category
		if cat == "" && in.Recurring {
			cat = VehicleCategory
		}
		groups[cat] = append(groups[cat], in)
	}
	cats := make([]string, 0, len(groups))
	for c := range groups {
		cats = append(cats, c)
	}
	sort.Strings(cats)

	var out []BudgetPrediction
	for _, c := range cats {
		out = append(out, b.forecast(c, groups[c])...)
	}
	return out
}

// GrowthMultiplier returns Σ_{m=0}^{h-1} (1+g)^m, the number of "months of
// spend" a constituent growing at g per month accrues over h months.
func (b *BudgetForecaster) GrowthMultiplier(g float64, h int) float64 {
	if h <= 0 {
		return 0
	}
	g = stats.Clamp(stats.Safe(g), -b.cfg.MaxMonthlyGrowth, b.cfg.MaxMonthlyGrowth)
	if math.Abs(g) < 1e-12 {
		return float64(h)
	}
	return (math.Pow(1+g, float64(h)) - 1) / g
}

// RiskFactor grows with horizon length and shrinks with confidence.
func (b *BudgetForecaster) RiskFactor(confidence float64, h int) float64 {
	confidence = stats.Clamp(confidence, 0, 1)
	base := b.cfg.BaseRisk + b.cfg.ConfidenceRisk*(1-confidence)
	scale := 1 + b.cfg.HorizonRiskGrowth*math.Log(math.Max(1, float64(h)))
	return math.Min(b.cfg.MaxRisk, base*scale)
}

func (b *BudgetForecaster) forecast(category string, inputs []BudgetInput) []BudgetPrediction {
	out := make([]BudgetPrediction, 0, len(b.cfg.Horizons))
	prevRisk := 0.0
	for _, h := range b.cfg.Horizons {
		amounts := make([]float64, len(inputs))
		total := 0.0
		for i, in := range inputs {
			monthly := models.NonNegative(in.MonthlyAmount)
			if in.Recurring {
				amounts[i] = monthly * float64(h)
			} else {
				amounts[i] = monthly * b.GrowthMultiplier(in.GrowthRate, h)
			}
			total += amounts[i]
		}

		confidence, growth := 0.0, 0.0
		if total > 0 {
			for i, in := range inputs {
				w := amounts[i] / total
				confidence += w * stats.Clamp(in.Confidence, 0, 1)
				if !in.Recurring {
					growth += w * stats.Clamp(in.GrowthRate, -b.cfg.MaxMonthlyGrowth, b.cfg.MaxMonthlyGrowth)
				}
			}
		}
		confidence = stats.Clamp(confidence, 0, 1)

		risk := math.Max(prevRisk, b.RiskFactor(confidence, h))
		prevRisk = risk

		amount := SumAmounts(amounts...)
		out = append(out, BudgetPrediction{
			Months:   h,
			Category: category,
			Prediction: forecasting.Prediction{
				PredictedAmount:   amount,
				Confidence:        confidence,
				Trend:             b.trend(growth),
				SeasonalityFactor: 1,
				UpperBound:        amount * (1 + risk),
				LowerBound:        math.Max(0, amount*(1-risk)),
				RiskFactor:        risk,
				GrowthRate:        growth,
			},
		})
	}
	return out
}

func (b *BudgetForecaster) trend(growth float64) forecasting.Trend {
	switch {
	case growth >= b.cfg.StableGrowthRatio:
		return forecasting.TrendIncreasing
	case growth <= -b.cfg.StableGrowthRatio:
		return forecasting.TrendDecreasing
	}
	return forecasting.TrendStable
}
