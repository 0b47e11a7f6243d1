package analytics

// Package analytics produces the consumption forecasting and anomaly report.
//
// IMPORTANT: This package uses ONLY pure statistical methods. NO machine learning.
//
// Compute graph (one invocation, no state kept between calls):
//
//   records ─► timeseries (monthly, zero-filled)
//           ├─► forecasting (trend × seasonality, confidence)
//           ├─► anomaly     (last month vs. prior months)
//           │     └─► cost  (optimization advice, multi-horizon budget)
//           └─► scoring     (kitchen, disposal, location detectors)
//
// The Engine performs no I/O and caches nothing: every call recomputes from
// the dataset it is handed, so concurrent calls need no coordination.
// Loading records, persisting results and assigning report IDs belong to
// the Pipeline.

import (
	"sort"
	"time"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/forecasting"
	"github.com/restrack/restrack-ai/internal/analytics/scoring"
	"github.com/restrack/restrack-ai/internal/analytics/stats"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/cost"
	"github.com/restrack/restrack-ai/internal/models"
)

// Config gathers the tunables of every stage.
type Config struct {
	WindowMonths int
	Forecasting  forecasting.Config
	Anomaly      anomaly.Config
	Advisor      cost.AdvisorConfig
	Budget       cost.BudgetConfig
	Groups       scoring.Config
}

// DefaultConfig returns the defaults of every stage.
func DefaultConfig() Config {
	return Config{
		WindowMonths: timeseries.DefaultWindowMonths,
		Forecasting:  forecasting.DefaultConfig(),
		Anomaly:      anomaly.DefaultConfig(),
		Advisor:      cost.DefaultAdvisorConfig(),
		Budget:       cost.DefaultBudgetConfig(),
		Groups:       scoring.DefaultConfig(),
	}
}

// ConsumptionPrediction is the next-month forecast of one supply item.
type ConsumptionPrediction struct {
	SupplyID   string                 `json:"supplyId"`
	SupplyName string                 `json:"supplyName"`
	Category   string                 `json:"category,omitempty"`
	Unit       string                 `json:"unit,omitempty"`
	Prediction forecasting.Prediction `json:"prediction"`
}

// VehiclePrediction is the rental cost forecast of one vehicle type.
type VehiclePrediction struct {
	VehicleType        string                 `json:"vehicleType"`
	CurrentMonthlyCost float64                `json:"currentMonthlyCost"`
	Prediction         forecasting.Prediction `json:"prediction"`
}

// OptimizationRecommendation ties a recommendation to its supply item.
type OptimizationRecommendation struct {
	SupplyID       string              `json:"supplyId"`
	SupplyName     string              `json:"supplyName"`
	Category       string              `json:"category"`
	Recommendation cost.Recommendation `json:"recommendation"`
}

// AnomalyDetection is a supply item whose latest month is anomalous.
type AnomalyDetection struct {
	SupplyID      string         `json:"supplyId"`
	SupplyName    string         `json:"supplyName"`
	Month         string         `json:"month"`
	AnomalyResult anomaly.Result `json:"anomalyResult"`
}

// Summary holds the headline figures of an analysis.
type Summary struct {
	ItemsAnalyzed         int     `json:"itemsAnalyzed"`
	RecommendationCount   int     `json:"recommendationCount"`
	MonthlySavings        float64 `json:"monthlySavings"`
	AnnualSavings         float64 `json:"annualSavings"`
	AnomalyCount          int     `json:"anomalyCount"`
	HighSeverityAnomalies int     `json:"highSeverityAnomalies"`
	NextMonthBudget       float64 `json:"nextMonthBudget"`
	KitchenAnomalyCount   int     `json:"kitchenAnomalyCount"`
	HighValueDisposals    int     `json:"highValueDisposals"`
	LocationFlagCount     int     `json:"locationFlagCount"`
}

// Analysis is the comprehensive result of one invocation.
type Analysis struct {
	ID                          string                       `json:"id,omitempty"`
	GeneratedAt                 time.Time                    `json:"generatedAt"`
	Window                      timeseries.Window            `json:"window"`
	ConsumptionPredictions      []ConsumptionPrediction      `json:"consumptionPredictions"`
	VehiclePredictions          []VehiclePrediction          `json:"vehiclePredictions"`
	OptimizationRecommendations []OptimizationRecommendation `json:"optimizationRecommendations"`
	BudgetPredictions           []cost.BudgetPrediction      `json:"budgetPredictions"`
	CategoryBudgets             []cost.BudgetPrediction      `json:"categoryBudgets"`
	AnomalyDetections           []AnomalyDetection           `json:"anomalyDetections"`
	KitchenAnomalies            []scoring.KitchenAnomaly     `json:"kitchenAnomalies"`
	AssetDisposals              []scoring.DisposalFlag       `json:"assetDisposals"`
	LocationOverpurchasing      []scoring.LocationFlag       `json:"locationOverpurchasing"`
	Summary                     Summary                      `json:"summary"`
}

// Engine is the analytics engine. It holds configuration and stateless
// stage implementations only, so one Engine may serve concurrent calls.
type Engine struct {
	cfg       Config
	estimator forecasting.Estimator
	scorer    anomaly.Scorer
	advisor   *cost.Advisor
	budget    *cost.BudgetForecaster
	kitchens  *scoring.KitchenDetector
	disposals *scoring.DisposalAnalyzer
	locations *scoring.LocationDetector
}

// NewEngine creates a new analytics engine
func NewEngine(cfg Config) *Engine {
	if cfg.WindowMonths <= 0 {
		cfg.WindowMonths = timeseries.DefaultWindowMonths
	}
	scorer := anomaly.NewScorer(cfg.Anomaly)
	peers := scoring.NewPeerScorer(cfg.Anomaly, cfg.Groups.PeerSpreadFloor)
	return &Engine{
		cfg:       cfg,
		estimator: forecasting.NewEstimator(cfg.Forecasting),
		scorer:    scorer,
		advisor:   cost.NewAdvisor(cfg.Advisor),
		budget:    cost.NewBudgetForecaster(cfg.Budget),
		kitchens:  scoring.NewKitchenDetector(peers),
		disposals: scoring.NewDisposalAnalyzer(cfg.Groups.DisposalPercentile, cfg.Groups.DisposalValueThreshold),
		locations: scoring.NewLocationDetector(peers, cfg.Groups.RecentPurchaseMonths),
	}
}

// Window returns the trailing window of complete months at now.
func (e *Engine) Window(now time.Time) timeseries.Window {
	return timeseries.NewWindow(now, e.cfg.WindowMonths)
}

// GenerateComprehensiveAnalysis runs every stage over ds. The result carries
// no ID; callers assign one.
func (e *Engine) GenerateComprehensiveAnalysis(ds *models.Dataset, now time.Time) *Analysis {
	if ds == nil {
		ds = &models.Dataset{}
	}
	w := e.Window(now)
	agg := timeseries.NewAggregator(w)
	catalog := ds.SupplyIndex()
	prices := recordPrices(ds.Consumption)

	a := &Analysis{
		GeneratedAt:                 now.UTC(),
		Window:                      w,
		ConsumptionPredictions:      []ConsumptionPrediction{},
		VehiclePredictions:          []VehiclePrediction{},
		OptimizationRecommendations: []OptimizationRecommendation{},
		AnomalyDetections:           []AnomalyDetection{},
	}

	var inputs []cost.BudgetInput
	for _, s := range agg.Aggregate(timeseries.ConsumptionByItem(ds.Consumption)) {
		item, ok := catalog[s.EntityID]
		if !ok {
			item = models.SupplyItem{ItemID: s.EntityID}
		}
		if item.PricePerUnit <= 0 {
			item.PricePerUnit = prices[s.EntityID]
		}

		pred := e.estimator.Predict(s).Priced(item.PricePerUnit)
		anom := e.scorer.ScoreSeries(s.Values())

		a.ConsumptionPredictions = append(a.ConsumptionPredictions, ConsumptionPrediction{
			SupplyID:   item.ItemID,
			SupplyName: item.Name,
			Category:   item.Category,
			Unit:       item.Unit,
			Prediction: pred,
		})

		if rec, ok := e.advisor.Recommend(item, s, pred, anom); ok {
			a.OptimizationRecommendations = append(a.OptimizationRecommendations, OptimizationRecommendation{
				SupplyID:       item.ItemID,
				SupplyName:     item.Name,
				Category:       item.Category,
				Recommendation: rec,
			})
		}

		if anom.Severity.AtLeast(anomaly.SeverityMedium) {
			a.AnomalyDetections = append(a.AnomalyDetections, AnomalyDetection{
				SupplyID:      item.ItemID,
				SupplyName:    item.Name,
				Month:         s.Points[len(s.Points)-1].Month,
				AnomalyResult: anom,
			})
		}

		inputs = append(inputs, cost.BudgetInput{
			ID:            item.ItemID,
			Category:      item.Category,
			MonthlyAmount: pred.PredictedAmount,
			GrowthRate:    pred.GrowthRate,
			Confidence:    pred.Confidence,
		})
	}

	for _, s := range agg.Aggregate(timeseries.RentalCostByVehicleType(ds.Rentals, w)) {
		pred := e.estimator.Predict(s)
		pred.PredictedAmount = pred.PredictedQuantity
		current := cost.RoundCurrency(s.Points[len(s.Points)-1].Value)
		a.VehiclePredictions = append(a.VehiclePredictions, VehiclePrediction{
			VehicleType:        s.EntityID,
			CurrentMonthlyCost: current,
			Prediction:         pred,
		})
		inputs = append(inputs, cost.BudgetInput{
			ID:            s.EntityID,
			Category:      cost.VehicleCategory,
			MonthlyAmount: current,
			Confidence:    pred.Confidence,
			Recurring:     true,
		})
	}

	a.BudgetPredictions = e.budget.Forecast(inputs)
	a.CategoryBudgets = nonNil(e.budget.ForecastByCategory(inputs))
	a.KitchenAnomalies = nonNil(e.kitchens.Detect(ds, w))
	a.AssetDisposals = nonNil(e.disposals.Analyze(ds, w))
	a.LocationOverpurchasing = nonNil(e.locations.Detect(ds, w))

	cost.SortBySavings(a.OptimizationRecommendations,
		func(r OptimizationRecommendation) float64 { return r.Recommendation.PotentialSavings },
		func(x, y OptimizationRecommendation) bool { return x.SupplyID < y.SupplyID })
	sort.SliceStable(a.AnomalyDetections, func(i, j int) bool {
		return a.AnomalyDetections[i].AnomalyResult.Score > a.AnomalyDetections[j].AnomalyResult.Score
	})

	a.Summary = summarize(a)
	return a
}

// DetectKitchenConsumptionAnomalies runs only the kitchen detector.
func (e *Engine) DetectKitchenConsumptionAnomalies(ds *models.Dataset, now time.Time) []scoring.KitchenAnomaly {
	if ds == nil {
		return []scoring.KitchenAnomaly{}
	}
	return nonNil(e.kitchens.Detect(ds, e.Window(now)))
}

// AnalyzeAssetDisposals runs only the disposal analyzer.
func (e *Engine) AnalyzeAssetDisposals(ds *models.Dataset, now time.Time) []scoring.DisposalFlag {
	if ds == nil {
		return []scoring.DisposalFlag{}
	}
	return nonNil(e.disposals.Analyze(ds, e.Window(now)))
}

// DetectLocationOverpurchasing runs only the location detector.
func (e *Engine) DetectLocationOverpurchasing(ds *models.Dataset, now time.Time) []scoring.LocationFlag {
	if ds == nil {
		return []scoring.LocationFlag{}
	}
	return nonNil(e.locations.Detect(ds, e.Window(now)))
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// recordPrices returns the mean positive unit price seen per item, used when
// the catalog has no price.
func recordPrices(records []models.ConsumptionRecord) map[string]float64 {
	seen := make(map[string][]float64)
	for _, r := range records {
		r = r.Sanitized()
		if r.UnitPrice > 0 {
			seen[r.ItemID] = append(seen[r.ItemID], r.UnitPrice)
		}
	}
	out := make(map[string]float64, len(seen))
	for id, p := range seen {
		out[id] = stats.Mean(p)
	}
	return out
}

func summarize(a *Analysis) Summary {
	recs := make([]cost.Recommendation, len(a.OptimizationRecommendations))
	for i, r := range a.OptimizationRecommendations {
		recs[i] = r.Recommendation
	}
	monthly, annual := cost.CalculateTotalSavings(recs)

	s := Summary{
		ItemsAnalyzed:       len(a.ConsumptionPredictions),
		RecommendationCount: len(recs),
		MonthlySavings:      monthly,
		AnnualSavings:       annual,
		AnomalyCount:        len(a.AnomalyDetections),
		KitchenAnomalyCount: len(a.KitchenAnomalies),
		LocationFlagCount:   len(a.LocationOverpurchasing),
	}
	for _, d := range a.AnomalyDetections {
		if d.AnomalyResult.Severity == anomaly.SeverityHigh {
			s.HighSeverityAnomalies++
		}
	}
	for _, d := range a.AssetDisposals {
		if d.Severity == anomaly.SeverityHigh {
			s.HighValueDisposals++
		}
	}
	for _, b := range a.BudgetPredictions {
		if b.Months == 1 {
			s.NextMonthBudget = b.Prediction.PredictedAmount
		}
	}
	return s
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
