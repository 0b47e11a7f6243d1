package anomaly

import (
	"math"

	"github.com/restrack/restrack-ai/internal/analytics/stats"
)

// Cause descriptions, in rule-table order.
const (
	CauseSpike        = "Unusually high spike against the expected baseline"
	CauseDrop         = "Usage fell well below the expected baseline"
	CauseSustained    = "Sustained elevated baseline over recent months"
	CauseDrift        = "Gradual upward drift in usage over the window"
	CauseFlatHistory  = "Flat history; any change stands out against zero variance"
	CauseVolatile     = "Highly volatile history; deviations are less conclusive"
	CauseNormal       = "Within normal variation"
	CauseNoBaseline   = "Not enough history to establish a baseline"
	sustainedLookback = 2
)

// signals are the sub-features a cause rule can key on.
type signals struct {
	deviation float64
	medium    float64
	flat      bool
	volatile  bool
	drift     bool
	sustained bool
}

type causeRule struct {
	cause string
	fires func(s signals) bool
}

var causeRules = []causeRule{
	{CauseSpike, func(s signals) bool { return s.deviation >= s.medium }},
	{CauseDrop, func(s signals) bool { return s.deviation <= -s.medium }},
	{CauseSustained, func(s signals) bool { return s.sustained && s.deviation > 0 }},
	{CauseDrift, func(s signals) bool { return s.drift && s.deviation > 0 }},
	{CauseFlatHistory, func(s signals) bool { return s.flat && s.deviation != 0 }},
	{CauseVolatile, func(s signals) bool { return s.volatile }},
}

// zScoreScorer is the concrete Scorer. It holds configuration only.
type zScoreScorer struct {
	cfg Config
}

// NewScorer creates a scorer. Zero-valued fields take their defaults.
func NewScorer(cfg Config) Scorer {
	def := DefaultConfig()
	if cfg.MediumThreshold <= 0 {
		cfg.MediumThreshold = def.MediumThreshold
	}
	if cfg.HighThreshold < cfg.MediumThreshold {
		cfg.HighThreshold = math.Max(def.HighThreshold, cfg.MediumThreshold)
	}
	if cfg.EpsilonAbs <= 0 {
		cfg.EpsilonAbs = def.EpsilonAbs
	}
	if cfg.EpsilonRel < 0 {
		cfg.EpsilonRel = def.EpsilonRel
	}
	if cfg.VolatileCV <= 0 {
		cfg.VolatileCV = def.VolatileCV
	}
	if cfg.DriftRatio <= 0 {
		cfg.DriftRatio = def.DriftRatio
	}
	return &zScoreScorer{cfg: cfg}
}

func (s *zScoreScorer) Score(observed float64, reference []float64) Result {
	return s.score(observed, reference, false)
}

func (s *zScoreScorer) ScoreSeries(values []float64) Result {
	if len(values) == 0 {
		return Result{Severity: SeverityLow, PossibleCauses: []string{CauseNoBaseline}}
	}
	last := len(values) - 1
	return s.score(values[last], values[:last], true)
}

func (s *zScoreScorer) Classify(score float64) Severity {
	switch {
	case score >= s.cfg.HighThreshold:
		return SeverityHigh
	case score >= s.cfg.MediumThreshold:
		return SeverityMedium
	}
	return SeverityLow
}

func (s *zScoreScorer) score(observed float64, reference []float64, series bool) Result {
	observed = stats.Safe(observed)
	if len(reference) == 0 {
		return Result{
			Severity:       SeverityLow,
			PossibleCauses: []string{CauseNoBaseline},
			Observed:       observed,
		}
	}

	mean := stats.Mean(reference)
	sd := stats.StdDev(reference)
	eps := math.Max(s.cfg.EpsilonAbs, s.cfg.EpsilonRel*math.Abs(mean))

	deviation := (observed - mean) / math.Max(sd, eps)
	score := math.Abs(deviation)

	sig := signals{
		deviation: deviation,
		medium:    s.cfg.MediumThreshold,
		flat:      sd < eps,
		volatile:  stats.CoefficientOfVariation(reference) > s.cfg.VolatileCV,
	}
	if series {
		sig.drift = s.drifting(reference, mean)
		sig.sustained = sustainedAbove(reference, mean, sd)
	}

	return Result{
		Score:                score,
		Severity:             s.Classify(score),
		PossibleCauses:       causesFor(sig),
		Observed:             observed,
		Expected:             mean,
		StdDev:               sd,
		Deviation:            deviation,
		PercentAboveExpected: percentAbove(observed, mean),
	}
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

func causesFor(sig signals) []string {
	var causes []string
	for _, r := range causeRules {
		if r.fires(sig) {
			causes = append(causes, r.cause)
		}
	}
	if len(causes) == 0 {
		causes = append(causes, CauseNormal)
	}
	return causes
}

func (s *zScoreScorer) drifting(reference []float64, mean float64) bool {
	if len(reference) < 3 || mean <= 0 {
		return false
	}
	slope, _ := stats.LinearRegression(reference)
	return slope/mean >= s.cfg.DriftRatio
}

// sustainedAbove reports whether the points just before the observation all
// sit more than one standard deviation above the reference mean.
func sustainedAbove(reference []float64, mean, sd float64) bool {
	if len(reference) < 2*sustainedLookback || sd == 0 {
		return false
	}
	for _, v := range reference[len(reference)-sustainedLookback:] {
		if v <= mean+sd {
			return false
		}
	}
	return true
}

func percentAbove(observed, expected float64) float64 {
	if expected > 0 {
		return (observed - expected) / expected * 100
	}
	if observed > 0 {
		return 100
	}
	return 0
}
