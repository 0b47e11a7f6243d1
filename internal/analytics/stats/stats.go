// Package stats holds the descriptive statistics shared by the analysis stages.
//
// Every helper is total: empty input, zero variance and NaN values yield
// finite results instead of panics or Inf, so callers never need to guard
// a division themselves.
package stats

import (
	"math"
	"sort"
)

// Summary represents statistical measures of a dataset.
type Summary struct {
	Mean             float64 `json:"mean"`
	Median           float64 `json:"median"`
	StdDev           float64 `json:"stdDev"`
	Min              float64 `json:"min"`
	Max              float64 `json:"max"`
	P95              float64 `json:"p95"`
	CoefficientOfVar float64 `json:"coefficientOfVariation"`
	NonZero          int     `json:"nonZero"`
	Count            int     `json:"count"`
}

// Describe returns the summary statistics of values.
func Describe(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	sorted := Sorted(values)
	mean := Mean(values)
	sd := StdDev(values)

	return Summary{
		Mean:             mean,
		Median:           Percentile(sorted, 50),
		StdDev:           sd,
		Min:              sorted[0],
		Max:              sorted[len(sorted)-1],
		P95:              Percentile(sorted, 95),
		CoefficientOfVar: CoefficientOfVariation(values),
		NonZero:          NonZeroCount(values),
		Count:            len(values),
	}
}

// Mean returns the arithmetic mean, 0 for empty input.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += Safe(v)
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation.
func StdDev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	variance := 0.0
	for _, v := range values {
		d := Safe(v) - mean
		variance += d * d
	}
	return math.Sqrt(variance / float64(len(values)))
}

// CoefficientOfVariation returns stddev/|mean|, or 0 when the mean is 0.
func CoefficientOfVariation(values []float64) float64 {
	mean := Mean(values)
	if mean == 0 {
		return 0
	}
	return StdDev(values) / math.Abs(mean)
}

// Sorted returns an ascending copy of values.
func Sorted(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = Safe(v)
	}
	sort.Float64s(out)
	return out
}

// Percentile calculates the pth percentile (0-100) of sorted data with
// linear interpolation between closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	p = Clamp(p, 0, 100)

	rank := p / 100.0 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	w := rank - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

// TrimmedMean returns the mean after dropping the largest trimTop fraction
// of values. At least one value is dropped when trimTop > 0 and more than
// one value is present.
func TrimmedMean(values []float64, trimTop float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	drop := int(math.Round(float64(n) * Clamp(trimTop, 0, 1)))
	if drop == 0 && trimTop > 0 && n > 1 {
		drop = 1
	}
	if drop >= n {
		drop = n - 1
	}
	sorted := Sorted(values)
	return Mean(sorted[:n-drop])
}

// LinearRegression returns (slope, intercept) of the least-squares fit of
// values against their index.
func LinearRegression(values []float64) (slope, intercept float64) {
	n := float64(len(values))
	if n == 0 {
		return 0, 0
	}
	if n < 2 {
		return 0, Safe(values[0])
	}
	sumX, sumY, sumXY, sumX2 := 0.0, 0.0, 0.0, 0.0
	for i, v := range values {
		x := float64(i)
		v = Safe(v)
		sumX += x
		sumY += v
		sumXY += x * v
		sumX2 += x * x
	}
	denom := n*sumX2 - sumX*sumX
	if math.Abs(denom) < 1e-12 {
		return 0, sumY / n
	}
	slope = (n*sumXY - sumX*sumY) / denom
	intercept = (sumY - slope*sumX) / n
	return
}

// RSquared returns the coefficient of determination for the linear fit.
func RSquared(values []float64, slope, intercept float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	ssTot, ssRes := 0.0, 0.0
	for i, v := range values {
		v = Safe(v)
		pred := intercept + slope*float64(i)
		ssRes += (v - pred) * (v - pred)
		ssTot += (v - mean) * (v - mean)
	}
	if ssTot < 1e-12 {
		return 1.0
	}
	return Clamp(1.0-ssRes/ssTot, 0, 1)
}

// NonZeroCount returns how many values are strictly positive.
func NonZeroCount(values []float64) int {
	n := 0
	for _, v := range values {
		if Safe(v) > 0 {
			n++
		}
	}
	return n
}

// Sum returns the total of values.
func Sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += Safe(v)
	}
	return total
}

// Safe returns 0 if v is NaN or Inf, otherwise returns v.
// This ensures all float values are JSON-serializable.
func Safe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// Clamp bounds v to [lo, hi]. NaN maps to lo.
func Clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) || v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
