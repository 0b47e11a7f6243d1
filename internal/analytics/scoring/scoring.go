package scoring

import (
	"math"

	"github.com/restrack/restrack-ai/internal/analytics/anomaly"
	"github.com/restrack/restrack-ai/internal/analytics/stats"
)

// Package scoring runs the group anomaly detectors.
//
// Detectors:
//
//   1. Kitchen consumption
//      - Observed: a kitchen's total window consumption of an item
//      - Reference: the same item's totals in every other kitchen
//      - A kitchen is reported when any item is a high-severity outlier
//
//   2. Asset disposal
//      - Not a statistical test: a value-threshold classifier
//      - Disposals of assets at or above the purchase-value percentile
//        (or a fixed currency threshold) are high, all others low
//
//   3. Location overpurchasing
//      - Observed: a location's recent purchases / total assets
//      - Reference: the same ratio at every other location
//      - Locations holding no assets are excluded, never scored
//
// Group references are leave-one-out: the scored member is not part of its
// own reference, otherwise a single outlier among few peers could never
// reach a high score.
//
// Peer spread is floored at PeerSpreadFloor × the peer mean. One peer, or
// peers that happen to agree, carry no usable spread of their own.

// Config holds the detector tunables.
type Config struct {
	DisposalPercentile     float64
	DisposalValueThreshold float64
	RecentPurchaseMonths   int
	// PeerSpreadFloor is the smallest peer spread, relative to the peer
	// mean, a group score divides by.
	PeerSpreadFloor float64
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() Config {
	return Config{
		DisposalPercentile:     90,
		DisposalValueThreshold: 0,
		RecentPurchaseMonths:   3,
		PeerSpreadFloor:        0.2,
	}
}

// NewPeerScorer returns a scorer for group comparisons: base with its
// relative epsilon raised to at least floor.
func NewPeerScorer(base anomaly.Config, floor float64) anomaly.Scorer {
	if floor <= 0 {
		floor = DefaultConfig().PeerSpreadFloor
	}
	base.EpsilonRel = math.Max(base.EpsilonRel, floor)
	return anomaly.NewScorer(base)
}

// peerScore scores members[i] against every other member.
func peerScore(scorer anomaly.Scorer, values []float64, i int) (anomaly.Result, float64) {
	ref := make([]float64, 0, len(values)-1)
	ref = append(ref, values[:i]...)
	ref = append(ref, values[i+1:]...)
	return scorer.Score(values[i], ref), stats.Mean(ref)
}

// aboveMedium reports whether r is an upward outlier of at least medium severity.
func aboveMedium(r anomaly.Result) bool {
	return r.Deviation > 0 && r.Severity.AtLeast(anomaly.SeverityMedium)
}
