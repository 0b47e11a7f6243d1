package scoring

import (
	"sort"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/cost"
	"github.com/restrack/restrack-ai/internal/models"
)

// ItemDeviation is one item a kitchen consumes well above its peers.
type ItemDeviation struct {
	ItemID                 string           `json:"itemId"`
	ItemName               string           `json:"itemName"`
	Unit                   string           `json:"unit,omitempty"`
	KitchenQuantity        float64          `json:"kitchenQuantity"`
	AverageQuantity        float64          `json:"averageQuantity"`
	PercentageAboveAverage float64          `json:"percentageAboveAverage"`
	ExcessCost             float64          `json:"excessCost"`
	Score                  float64          `json:"score"`
	Severity               anomaly.Severity `json:"severity"`
	PossibleCauses         []string         `json:"possibleCauses"`
}

// KitchenAnomaly is a kitchen with at least one high-severity item.
type KitchenAnomaly struct {
	KitchenID       string           `json:"kitchenId"`
	Severity        anomaly.Severity `json:"severity"`
	AnomalousItems  []ItemDeviation  `json:"anomalousItems"`
	TotalExcessCost float64          `json:"totalExcessCost"`
}

// KitchenDetector compares each kitchen's item usage with other kitchens.
type KitchenDetector struct {
	scorer anomaly.Scorer
}

// NewKitchenDetector creates a kitchen detector.
func NewKitchenDetector(scorer anomaly.Scorer) *KitchenDetector {
	return &KitchenDetector{scorer: scorer}
}

// Detect returns kitchens whose usage of any item is a high outlier, ordered
// by excess cost.
func (d *KitchenDetector) Detect(ds *models.Dataset, w timeseries.Window) []KitchenAnomaly {
	series := timeseries.NewAggregator(w).Aggregate(timeseries.ConsumptionByKitchenItem(ds.Consumption))

	// item → kitchen → window total
	totals := make(map[string]map[string]float64)
	for _, s := range series {
		kitchenID, itemID := timeseries.SplitKitchenItemKey(s.EntityID)
		if kitchenID == "" {
			continue
		}
		if totals[itemID] == nil {
			totals[itemID] = make(map[string]float64)
		}
		totals[itemID][kitchenID] = s.Total()
	}

	catalog := ds.SupplyIndex()
	byKitchen := make(map[string][]ItemDeviation)
	for itemID, perKitchen := range totals {
		if len(perKitchen) < 2 {
			continue
		}
		kitchens := make([]string, 0, len(perKitchen))
		for k := range perKitchen {
			kitchens = append(kitchens, k)
		}
		sort.Strings(kitchens)
		values := make([]float64, len(kitchens))
		for i, k := range kitchens {
			values[i] = perKitchen[k]
		}

		item := catalog[itemID]
		for i, k := range kitchens {
			r, peerMean := peerScore(d.scorer, values, i)
			if !aboveMedium(r) {
				continue
			}
			byKitchen[k] = append(byKitchen[k], ItemDeviation{
				ItemID:                 itemID,
				ItemName:               item.Name,
				Unit:                   item.Unit,
				KitchenQuantity:        values[i],
				AverageQuantity:        peerMean,
				PercentageAboveAverage: r.PercentAboveExpected,
				ExcessCost:             cost.MonthlySavings(values[i], peerMean, item.PricePerUnit).InexactFloat64(),
				Score:                  r.Score,
				Severity:               r.Severity,
				PossibleCauses:         r.PossibleCauses,
			})
		}
	}

	var out []KitchenAnomaly
	for kitchenID, items := range byKitchen {
		severity := anomaly.SeverityLow
		excess := make([]float64, len(items))
		for i, it := range items {
			if it.Severity.Rank() > severity.Rank() {
				severity = it.Severity
			}
			excess[i] = it.ExcessCost
		}
		if severity != anomaly.SeverityHigh {
			continue
		}
		sort.Slice(items, func(i, j int) bool {
			if items[i].Score != items[j].Score {
				return items[i].Score > items[j].Score
			}
			return items[i].ItemID < items[j].ItemID
		})
		out = append(out, KitchenAnomaly{
			KitchenID:       kitchenID,
			Severity:        severity,
			AnomalousItems:  items,
			TotalExcessCost: cost.SumAmounts(excess...),
		})
	}

	cost.SortBySavings(out,
		func(k KitchenAnomaly) float64 { return k.TotalExcessCost },
		func(a, b KitchenAnomaly) bool { return a.KitchenID < b.KitchenID })
	return out
}
