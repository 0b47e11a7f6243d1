package scoring

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/stats"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/models"
)

// DisposalFlag is one disposal inside the window.
type DisposalFlag struct {
	AssetID        string             `json:"assetId"`
	Location       models.LocationKey `json:"location"`
	PurchaseAmount float64            `json:"purchaseAmount"`
	PurchaseDate   time.Time          `json:"purchaseDate"`
	DisposedAt     time.Time          `json:"disposedAt"`
	Severity       anomaly.Severity   `json:"severity"`
	Reason         string             `json:"reason"`
	Details        string             `json:"details,omitempty"`
}

// DisposalAnalyzer classifies disposals by the disposed asset's value.
type DisposalAnalyzer struct {
	percentile     float64
	fixedThreshold float64
}

// NewDisposalAnalyzer creates an analyzer flagging disposals at or above the
// given purchase-value percentile (0-100) or fixed currency threshold (0 disables).
func NewDisposalAnalyzer(percentile, fixedThreshold float64) *DisposalAnalyzer {
	if percentile <= 0 || percentile > 100 {
		percentile = DefaultConfig().DisposalPercentile
	}
	return &DisposalAnalyzer{percentile: percentile, fixedThreshold: models.NonNegative(fixedThreshold)}
}

// Threshold returns the purchase value at the configured percentile of all assets.
func (a *DisposalAnalyzer) Threshold(assets []models.AssetRecord) float64 {
	amounts := make([]float64, 0, len(assets))
	for _, as := range assets {
		amounts = append(amounts, as.Sanitized().PurchaseAmount)
	}
	return stats.Percentile(stats.Sorted(amounts), a.percentile)
}

// Analyze returns one flag per asset disposed within the window, high
// severity first.
func (a *DisposalAnalyzer) Analyze(ds *models.Dataset, w timeseries.Window) []DisposalFlag {
	assets := make(map[string]models.AssetRecord, len(ds.Assets))
	for _, as := range ds.Assets {
		assets[as.AssetID] = as.Sanitized()
	}
	threshold := a.Threshold(ds.Assets)

	// latest disposal per asset
	latest := make(map[string]models.AssetHistoryEvent)
	for _, ev := range ds.AssetHistory {
		if !strings.EqualFold(ev.Action, models.ActionDisposed) || !w.Contains(ev.Timestamp) {
			continue
		}
		if prev, ok := latest[ev.AssetID]; !ok || ev.Timestamp.After(prev.Timestamp) {
			latest[ev.AssetID] = ev
		}
	}

	out := make([]DisposalFlag, 0, len(latest))
	for assetID, ev := range latest {
		flag := DisposalFlag{
			AssetID:    assetID,
			DisposedAt: ev.Timestamp,
			Severity:   anomaly.SeverityLow,
			Details:    ev.Details,
		}
		as, ok := assets[assetID]
		if !ok {
			flag.Reason = "Disposed asset is missing from the asset register"
			out = append(out, flag)
			continue
		}
		flag.Location = as.Location
		flag.PurchaseAmount = as.PurchaseAmount
		flag.PurchaseDate = as.PurchaseDate
		flag.Severity, flag.Reason = a.classify(as.PurchaseAmount, threshold)
		out = append(out, flag)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Severity.Rank() != out[j].Severity.Rank() {
			return out[i].Severity.Rank() > out[j].Severity.Rank()
		}
		if out[i].PurchaseAmount != out[j].PurchaseAmount {
			return out[i].PurchaseAmount > out[j].PurchaseAmount
		}
		return out[i].AssetID < out[j].AssetID
	})
	return out
}

func (a *DisposalAnalyzer) classify(amount, percentileValue float64) (anomaly.Severity, string) {
	if amount <= 0 {
		return anomaly.SeverityLow, "Disposed asset has no recorded purchase value"
	}
	if a.fixedThreshold > 0 && amount >= a.fixedThreshold {
		return anomaly.SeverityHigh, fmt.Sprintf("Purchase value %.2f is at or above the review threshold %.2f", amount, a.fixedThreshold)
	}
	if amount >= percentileValue {
		return anomaly.SeverityHigh, fmt.Sprintf("Purchase value %.2f is in the top %.0f%% of registered assets", amount, 100-a.percentile)
	}
	return anomaly.SeverityLow, "Routine disposal"
}
