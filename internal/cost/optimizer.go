package cost

import (
	"fmt"
	"sort"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/forecasting"
	"github.com/restrack/restrack-ai/internal/analytics/stats"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/models"
)

// ReasonCode explains which signal motivated a recommendation.
type ReasonCode string

const (
	ReasonIncreasingTrend   ReasonCode = "increasing_trend"
	ReasonConsumptionSpikes ReasonCode = "consumption_spikes"
	ReasonSeasonalPattern   ReasonCode = "seasonal_pattern"
	ReasonStableConsumption ReasonCode = "stable_consumption"
	ReasonInsufficientData  ReasonCode = "insufficient_data"
)

// Difficulty is how hard a recommendation is expected to be to implement.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Recommendation is a quantity-reduction suggestion for one supply item.
type Recommendation struct {
	RecommendedQuantity float64 `json:"recommendedQuantity"`
	ActualQuantity      float64 `json:"actualQuantity"`
	// PotentialSavings is per month; AnnualSavings is the same figure × 12.
	PotentialSavings         float64    `json:"potentialSavings"`
	AnnualSavings            float64    `json:"annualSavings"`
	SavingsPercent           float64    `json:"savingsPercent"`
	Confidence               float64    `json:"confidence"`
	ImplementationDifficulty Difficulty `json:"implementationDifficulty"`
	ReasonCode               ReasonCode `json:"reasonCode"`
	Description              string     `json:"description"`
}

// AdvisorConfig holds the advisor tunables.
type AdvisorConfig struct {
	TrimTopFraction   float64
	MinSavingsRatio   float64
	MinHistoryMonths  int
	SeasonalDeviation float64
	EasyDeltaRatio    float64
	MediumDeltaRatio  float64
}

// DefaultAdvisorConfig returns the advisor defaults.
func DefaultAdvisorConfig() AdvisorConfig {
	return AdvisorConfig{
		TrimTopFraction:   0.1,
		MinSavingsRatio:   0.05,
		MinHistoryMonths:  3,
		SeasonalDeviation: 0.2,
		EasyDeltaRatio:    0.15,
		MediumDeltaRatio:  0.35,
	}
}

// Advisor compares actual usage against a trimmed-mean baseline.
type Advisor struct {
	cfg AdvisorConfig
}

// NewAdvisor creates an advisor. Zero-valued fields take their defaults.
func NewAdvisor(cfg AdvisorConfig) *Advisor {
	def := DefaultAdvisorConfig()
	if cfg.TrimTopFraction <= 0 {
		cfg.TrimTopFraction = def.TrimTopFraction
	}
	if cfg.MinSavingsRatio <= 0 {
		cfg.MinSavingsRatio = def.MinSavingsRatio
	}
	if cfg.MinHistoryMonths <= 0 {
		cfg.MinHistoryMonths = def.MinHistoryMonths
	}
	if cfg.SeasonalDeviation <= 0 {
		cfg.SeasonalDeviation = def.SeasonalDeviation
	}
	if cfg.EasyDeltaRatio <= 0 {
		cfg.EasyDeltaRatio = def.EasyDeltaRatio
	}
	if cfg.MediumDeltaRatio < cfg.EasyDeltaRatio {
		cfg.MediumDeltaRatio = max(def.MediumDeltaRatio, cfg.EasyDeltaRatio)
	}
	return &Advisor{cfg: cfg}
}

// Recommend returns a recommendation for the item when its baseline usage is
// more than MinSavingsRatio below its actual monthly average.
func (a *Advisor) Recommend(item models.SupplyItem, series timeseries.MonthlySeries, pred forecasting.Prediction, anom anomaly.Result) (Recommendation, bool) {
	vals := series.Values()
	actual := stats.Mean(vals)
	recommended := stats.TrimmedMean(vals, a.cfg.TrimTopFraction)

	if actual <= 0 || recommended >= actual*(1-a.cfg.MinSavingsRatio) {
		return Recommendation{}, false
	}

	monthly := MonthlySavings(actual, recommended, item.PricePerUnit)
	deltaRatio := (actual - recommended) / actual
	reason := a.Reason(stats.NonZeroCount(vals), pred, anom)

	return Recommendation{
		RecommendedQuantity:      recommended,
		ActualQuantity:           actual,
		PotentialSavings:         monthly.InexactFloat64(),
		AnnualSavings:            EstimateYearlyCost(monthly).InexactFloat64(),
		SavingsPercent:           CalculateSavingsPercentage(actual, recommended),
		Confidence:               stats.Clamp(pred.Confidence, 0, 1),
		ImplementationDifficulty: a.Difficulty(deltaRatio),
		ReasonCode:               reason,
		Description: fmt.Sprintf("Reduce monthly usage from %.2f to %.2f %s (%.1f%% reduction)",
			actual, recommended, item.Unit, deltaRatio*100),
	}, true
}

// Reason picks the reason code. Insufficient history wins over any signal.
func (a *Advisor) Reason(nonZeroMonths int, pred forecasting.Prediction, anom anomaly.Result) ReasonCode {
	switch {
	case nonZeroMonths < a.cfg.MinHistoryMonths:
		return ReasonInsufficientData
	case anom.Deviation > 0 && anom.Severity.AtLeast(anomaly.SeverityMedium):
		return ReasonConsumptionSpikes
	case pred.Trend == forecasting.TrendIncreasing:
		return ReasonIncreasingTrend
	case pred.SeasonalityFactor >= 1+a.cfg.SeasonalDeviation || pred.SeasonalityFactor <= 1-a.cfg.SeasonalDeviation:
		return ReasonSeasonalPattern
	}
	return ReasonStableConsumption
}

// Difficulty maps the relative reduction to a difficulty tag; it is
// monotonic in deltaRatio.
func (a *Advisor) Difficulty(deltaRatio float64) Difficulty {
	switch {
	case deltaRatio < a.cfg.EasyDeltaRatio:
		return DifficultyEasy
	case deltaRatio < a.cfg.MediumDeltaRatio:
		return DifficultyMedium
	}
	return DifficultyHard
}

// CalculateTotalSavings returns the monthly and annual savings of recs.
func CalculateTotalSavings(recs []Recommendation) (monthly, annual float64) {
	m := make([]float64, len(recs))
	y := make([]float64, len(recs))
	for i, r := range recs {
		m[i] = r.PotentialSavings
		y[i] = r.AnnualSavings
	}
	return SumAmounts(m...), SumAmounts(y...)
}

// SortBySavings orders recommendations by monthly savings, largest first.
// less breaks ties between equal savings.
func SortBySavings[T any](items []T, savings func(T) float64, less func(a, b T) bool) {
	sort.SliceStable(items, func(i, j int) bool {
		si, sj := savings(items[i]), savings(items[j])
		if si != sj {
			return si > sj
		}
		return less(items[i], items[j])
	})
}
