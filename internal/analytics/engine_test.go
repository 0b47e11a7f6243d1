package analytics

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/forecasting"
	"github.com/restrack/restrack-ai/internal/cost"
	"github.com/restrack/restrack-ai/internal/models"
)

var now = time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

// month returns a date inside the i-th month of the default window (0 = Jul 2023).
func month(i int) time.Time {
	return time.Date(2023, time.Month(7+i), 10, 0, 0, 0, 0, time.UTC)
}

func spikeDataset() *models.Dataset {
	ds := &models.Dataset{
		Supplies: []models.SupplyItem{
			{ItemID: "flour", Name: "Flour", Category: "baking", Unit: "kg", PricePerUnit: 2},
			{ItemID: "salt", Name: "Salt", Category: "spices", Unit: "kg", PricePerUnit: 1},
		},
	}
	for i := 0; i < 12; i++ {
		qty := 10.0
		if i == 11 {
			qty = 50
		}
		ds.Consumption = append(ds.Consumption,
			models.ConsumptionRecord{ItemID: "flour", KitchenID: "k1", Quantity: qty, Date: month(i)},
			models.ConsumptionRecord{ItemID: "salt", KitchenID: "k1", Quantity: 0, Date: month(i)},
		)
	}
	return ds
}

func findPrediction(t *testing.T, a *Analysis, id string) forecasting.Prediction {
	t.Helper()
	for _, p := range a.ConsumptionPredictions {
		if p.SupplyID == id {
			return p.Prediction
		}
	}
	t.Fatalf("no prediction for %s", id)
	return forecasting.Prediction{}
}

func TestGenerateComprehensiveAnalysis_MidMonthIgnoresPartialMonth(t *testing.T) {
	midMonth := time.Date(2024, 6, 15, 9, 0, 0, 0, time.UTC)
	ds := &models.Dataset{
		Supplies: []models.SupplyItem{{ItemID: "rice", Name: "Rice", Category: "grains", Unit: "kg", PricePerUnit: 1}},
	}
	for d := time.Date(2023, 6, 1, 8, 0, 0, 0, time.UTC); d.Before(midMonth); d = d.AddDate(0, 0, 1) {
		ds.Consumption = append(ds.Consumption, models.ConsumptionRecord{ItemID: "rice", KitchenID: "k1", Quantity: 10, Date: d})
	}

	a := NewEngine(DefaultConfig()).GenerateComprehensiveAnalysis(ds, midMonth)

	assert.Equal(t, "2023-06-01", a.Window.Start().Format("2006-01-02"))
	assert.Equal(t, "2024-06-01", a.Window.Until().Format("2006-01-02"))
	assert.Empty(t, a.AnomalyDetections)

	pred := findPrediction(t, a, "rice")
	assert.Equal(t, forecasting.TrendStable, pred.Trend)
	assert.InDelta(t, 300, pred.PredictedQuantity, 20)
}

func TestGenerateComprehensiveAnalysis_Spike(t *testing.T) {
	e := NewEngine(DefaultConfig())
	a := e.GenerateComprehensiveAnalysis(spikeDataset(), now)

	require.Len(t, a.ConsumptionPredictions, 2)
	require.Len(t, a.AnomalyDetections, 1)
	det := a.AnomalyDetections[0]
	assert.Equal(t, "flour", det.SupplyID)
	assert.Equal(t, "Flour", det.SupplyName)
	assert.Equal(t, "2024-06", det.Month)
	assert.Equal(t, anomaly.SeverityHigh, det.AnomalyResult.Severity)
	assert.Greater(t, det.AnomalyResult.Deviation, 0.0)

	require.Len(t, a.OptimizationRecommendations, 1)
	rec := a.OptimizationRecommendations[0]
	assert.Equal(t, "flour", rec.SupplyID)
	assert.Equal(t, cost.ReasonConsumptionSpikes, rec.Recommendation.ReasonCode)
	assert.InDelta(t, 10.0, rec.Recommendation.RecommendedQuantity, 1e-9)
	assert.InDelta(t, 6.67, rec.Recommendation.PotentialSavings, 1e-9)

	assert.Equal(t, 2, a.Summary.ItemsAnalyzed)
	assert.Equal(t, 1, a.Summary.AnomalyCount)
	assert.Equal(t, 1, a.Summary.HighSeverityAnomalies)
	assert.InDelta(t, 6.67, a.Summary.MonthlySavings, 1e-9)
}

func TestGenerateComprehensiveAnalysis_ZeroItem(t *testing.T) {
	e := NewEngine(DefaultConfig())
	a := e.GenerateComprehensiveAnalysis(spikeDataset(), now)

	p := findPrediction(t, a, "salt")
	assert.Equal(t, 0.0, p.PredictedQuantity)
	assert.Equal(t, 0.0, p.PredictedAmount)
	assert.LessOrEqual(t, p.Confidence, 0.3)
	assert.Equal(t, forecasting.TrendStable, p.Trend)

	for _, r := range a.OptimizationRecommendations {
		assert.NotEqual(t, "salt", r.SupplyID)
	}
}

func TestGenerateComprehensiveAnalysis_BudgetWidthGrows(t *testing.T) {
	e := NewEngine(DefaultConfig())
	a := e.GenerateComprehensiveAnalysis(spikeDataset(), now)

	require.Len(t, a.BudgetPredictions, len(cost.DefaultHorizons))
	prevWidth, prevAmount := -1.0, -1.0
	for _, b := range a.BudgetPredictions {
		p := b.Prediction
		require.Greater(t, p.PredictedAmount, 0.0)
		width := (p.UpperBound - p.LowerBound) / p.PredictedAmount
		assert.GreaterOrEqual(t, width, prevWidth, "horizon %d", b.Months)
		assert.GreaterOrEqual(t, p.PredictedAmount, prevAmount, "horizon %d", b.Months)
		prevWidth, prevAmount = width, p.PredictedAmount
	}
	assert.Equal(t, a.BudgetPredictions[0].Prediction.PredictedAmount, a.Summary.NextMonthBudget)
}

func TestGenerateComprehensiveAnalysis_VehicleRentals(t *testing.T) {
	ds := &models.Dataset{
		Rentals: []models.RentalRecord{
			{VehicleID: "v1", VehicleType: "van", MonthlyAmount: 500, StartDate: time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)},
		},
	}
	a := NewEngine(DefaultConfig()).GenerateComprehensiveAnalysis(ds, now)

	require.Len(t, a.VehiclePredictions, 1)
	assert.Equal(t, "van", a.VehiclePredictions[0].VehicleType)
	assert.Equal(t, 500.0, a.VehiclePredictions[0].CurrentMonthlyCost)

	var yearly *cost.BudgetPrediction
	for i, b := range a.CategoryBudgets {
		if b.Category == cost.VehicleCategory && b.Months == 12 {
			yearly = &a.CategoryBudgets[i]
		}
	}
	require.NotNil(t, yearly)
	assert.InDelta(t, 6000.0, yearly.Prediction.PredictedAmount, 1e-9)
}

func TestGenerateComprehensiveAnalysis_VehicleCostInCents(t *testing.T) {
	start := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	ds := &models.Dataset{
		Rentals: []models.RentalRecord{
			{VehicleID: "v1", VehicleType: "van", MonthlyAmount: 100.1, StartDate: start},
			{VehicleID: "v2", VehicleType: "van", MonthlyAmount: 200.2, StartDate: start},
		},
	}
	a := NewEngine(DefaultConfig()).GenerateComprehensiveAnalysis(ds, now)

	require.Len(t, a.VehiclePredictions, 1)
	assert.Equal(t, 300.3, a.VehiclePredictions[0].CurrentMonthlyCost)
}

func TestGenerateComprehensiveAnalysis_CatalogPriceFallback(t *testing.T) {
	ds := &models.Dataset{}
	for i := 0; i < 12; i++ {
		qty := 10.0
		if i == 11 {
			qty = 50
		}
		ds.Consumption = append(ds.Consumption, models.ConsumptionRecord{
			ItemID: "uncataloged", KitchenID: "k1", Quantity: qty, Date: month(i), UnitPrice: 2,
		})
	}
	a := NewEngine(DefaultConfig()).GenerateComprehensiveAnalysis(ds, now)

	require.Len(t, a.OptimizationRecommendations, 1)
	assert.InDelta(t, 6.67, a.OptimizationRecommendations[0].Recommendation.PotentialSavings, 1e-9)
	assert.Greater(t, findPrediction(t, a, "uncataloged").PredictedAmount, 0.0)
}

func TestGenerateComprehensiveAnalysis_EmptyDataset(t *testing.T) {
	a := NewEngine(DefaultConfig()).GenerateComprehensiveAnalysis(nil, now)

	assert.Empty(t, a.ConsumptionPredictions)
	assert.Empty(t, a.AnomalyDetections)
	assert.Empty(t, a.KitchenAnomalies)
	assert.Empty(t, a.AssetDisposals)
	assert.Empty(t, a.LocationOverpurchasing)
	for _, b := range a.BudgetPredictions {
		assert.Equal(t, 0.0, b.Prediction.PredictedAmount)
	}

	// Empty collections serialize as [] rather than null.
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"anomalyDetections":[]`)
	assert.Contains(t, string(raw), `"categoryBudgets":[]`)
}

// locationDataset places ten assets in each of two buildings; B bought
// eight of its ten in the last month of the window.
func locationDataset() *models.Dataset {
	ds := &models.Dataset{}
	add := func(building string, recent int) {
		loc := models.LocationKey{Building: building, Floor: "1", Room: "101"}
		for i := 0; i < 10; i++ {
			date := month(0)
			if i < recent {
				date = month(11)
			}
			ds.Assets = append(ds.Assets, models.AssetRecord{
				AssetID: building + string(rune('0'+i)), Location: loc, PurchaseAmount: 100, PurchaseDate: date, Status: "active",
			})
		}
	}
	add("A", 2)
	add("B", 8)
	return ds
}

func TestDetectLocationOverpurchasing(t *testing.T) {
	flags := NewEngine(DefaultConfig()).DetectLocationOverpurchasing(locationDataset(), now)
	require.Len(t, flags, 1)
	assert.Equal(t, "B", flags[0].Location.Building)
	assert.Equal(t, anomaly.SeverityHigh, flags[0].Severity)
}

func TestStandaloneDetectors_NilDataset(t *testing.T) {
	e := NewEngine(Config{})
	assert.NotNil(t, e.DetectKitchenConsumptionAnomalies(nil, now))
	assert.NotNil(t, e.AnalyzeAssetDisposals(nil, now))
	assert.NotNil(t, e.DetectLocationOverpurchasing(nil, now))
}
