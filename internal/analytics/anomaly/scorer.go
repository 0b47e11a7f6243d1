package anomaly

// Package anomaly scores an observed value against a reference distribution.
//
// Philosophy: Classical Statistics, NOT Machine Learning
//   - No training data required
//   - Fully interpretable and explainable results
//   - Deterministic and reproducible
//
// Detection Algorithm:
//
//   Z-Score Method
//      - deviation = (observed - mean) / max(stddev, ε)
//      - ε = max(EpsilonAbs, EpsilonRel × |mean|)
//      - score = |deviation|
//      - score ≥ HighThreshold → high, ≥ MediumThreshold → medium, else low
//
// A reference with zero variance is scored against ε instead of producing
// an infinite score: a flat history makes any change stand out, which is
// reported as a cause rather than as an arithmetic failure.
//
// Possible causes are drawn from an ordered rule table of sub-signals
// (spike, drop, sustained elevation, upward drift, flat or volatile
// history). The first rules to fire are listed first.

// Severity is the anomaly classification tier.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Rank orders severities: low < medium < high.
func (s Severity) Rank() int {
	switch s {
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	}
	return 0
}

// AtLeast reports whether s is at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return s.Rank() >= other.Rank()
}

// Result is the outcome of scoring one observation.
type Result struct {
	Score          float64  `json:"score"`
	Severity       Severity `json:"severity"`
	PossibleCauses []string `json:"possibleCauses"`
	Observed       float64  `json:"observed"`
	Expected       float64  `json:"expected"`
	StdDev         float64  `json:"stdDev"`
	// Deviation is the signed score; negative values are below expectation.
	Deviation            float64 `json:"deviation"`
	PercentAboveExpected float64 `json:"percentAboveExpected"`
}

// Config holds the scorer tunables.
type Config struct {
	MediumThreshold float64
	HighThreshold   float64
	EpsilonAbs      float64
	EpsilonRel      float64
	VolatileCV      float64
	DriftRatio      float64
}

// DefaultConfig returns the scorer defaults.
func DefaultConfig() Config {
	return Config{
		MediumThreshold: 1.5,
		HighThreshold:   3.0,
		EpsilonAbs:      1e-6,
		EpsilonRel:      0.01,
		VolatileCV:      0.5,
		DriftRatio:      0.05,
	}
}

// Scorer defines the interface for deviation scoring.
type Scorer interface {
	// Score compares observed against the reference distribution.
	Score(observed float64, reference []float64) Result

	// ScoreSeries scores the last value of a series against all prior values.
	ScoreSeries(values []float64) Result

	// Classify maps a non-negative score to a severity.
	Classify(score float64) Severity
}
