package scoring

import (
	"sort"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/timeseries"
	"github.com/restrack/restrack-ai/internal/cost"
	"github.com/restrack/restrack-ai/internal/models"
)

// LocationFlag is a location buying assets faster than its peers.
type LocationFlag struct {
	Location            models.LocationKey `json:"location"`
	TotalAssets         int                `json:"totalAssets"`
	RecentPurchases     int                `json:"recentPurchases"`
	RecentPurchaseRatio float64            `json:"recentPurchaseRatio"`
	PeerAverageRatio    float64            `json:"peerAverageRatio"`
	TotalAssetValue     float64            `json:"totalAssetValue"`
	RecentPurchaseValue float64            `json:"recentPurchaseValue"`
	Score               float64            `json:"score"`
	Severity            anomaly.Severity   `json:"severity"`
	PossibleCauses      []string           `json:"possibleCauses"`
}

// LocationDetector scores each location's recent-purchase ratio against peers.
type LocationDetector struct {
	scorer       anomaly.Scorer
	recentMonths int
}

// NewLocationDetector creates a detector counting purchases in the last
// recentMonths months as recent.
func NewLocationDetector(scorer anomaly.Scorer, recentMonths int) *LocationDetector {
	if recentMonths <= 0 {
		recentMonths = DefaultConfig().RecentPurchaseMonths
	}
	return &LocationDetector{scorer: scorer, recentMonths: recentMonths}
}

type locationStats struct {
	key                       models.LocationKey
	total, recent             int
	totalValues, recentValues []float64
}

// Detect returns locations whose ratio is an upward outlier of at least
// medium severity, highest score first.
func (d *LocationDetector) Detect(ds *models.Dataset, w timeseries.Window) []LocationFlag {
	recentWindow := w.Recent(d.recentMonths)

	byKey := make(map[models.LocationKey]*locationStats)
	get := func(k models.LocationKey) *locationStats {
		s, ok := byKey[k]
		if !ok {
			s = &locationStats{key: k}
			byKey[k] = s
		}
		return s
	}
	for _, k := range ds.Locations {
		if !k.IsZero() {
			get(k)
		}
	}
	for _, as := range ds.Assets {
		if as.Location.IsZero() {
			continue
		}
		as = as.Sanitized()
		s := get(as.Location)
		s.total++
		s.totalValues = append(s.totalValues, as.PurchaseAmount)
		if recentWindow.Contains(as.PurchaseDate) {
			s.recent++
			s.recentValues = append(s.recentValues, as.PurchaseAmount)
		}
	}

	// locations without assets cannot form a ratio and are left out
	eligible := make([]*locationStats, 0, len(byKey))
	for _, s := range byKey {
		if s.total > 0 {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) < 2 {
		return nil
	}
	sort.Slice(eligible, func(i, j int) bool { return eligible[i].key.String() < eligible[j].key.String() })

	ratios := make([]float64, len(eligible))
	for i, s := range eligible {
		ratios[i] = float64(s.recent) / float64(s.total)
	}

	var out []LocationFlag
	for i, s := range eligible {
		r, peerMean := peerScore(d.scorer, ratios, i)
		if !aboveMedium(r) {
			continue
		}
		out = append(out, LocationFlag{
			Location:            s.key,
			TotalAssets:         s.total,
			RecentPurchases:     s.recent,
			RecentPurchaseRatio: ratios[i],
			PeerAverageRatio:    peerMean,
			TotalAssetValue:     cost.SumAmounts(s.totalValues...),
			RecentPurchaseValue: cost.SumAmounts(s.recentValues...),
			Score:               r.Score,
			Severity:            r.Severity,
			PossibleCauses:      r.PossibleCauses,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Location.String() < out[j].Location.String()
	})
	return out
}
