package stats

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	s := Describe(values)

	assert.InDelta(t, 5.5, s.Mean, 1e-9)
	assert.InDelta(t, 5.5, s.Median, 1e-9)
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 10.0, s.Max)
	assert.Equal(t, 10, s.Count)
	assert.Equal(t, 10, s.NonZero)
	assert.InDelta(t, math.Sqrt(8.25), s.StdDev, 1e-9)
}

func TestDescribe_Empty(t *testing.T) {
	assert.Equal(t, Summary{}, Describe(nil))
}

func TestPercentile(t *testing.T) {
	sorted := []float64{10, 20, 30, 40, 50}
	assert.Equal(t, 10.0, Percentile(sorted, 0))
	assert.Equal(t, 30.0, Percentile(sorted, 50))
	assert.Equal(t, 50.0, Percentile(sorted, 100))
	assert.InDelta(t, 46.0, Percentile(sorted, 90), 1e-9)
	assert.Equal(t, 0.0, Percentile(nil, 90))
}

func TestTrimmedMean(t *testing.T) {
	values := []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 50}
	// one of twelve months is dropped: the 50 spike
	assert.InDelta(t, 10.0, TrimmedMean(values, 0.1), 1e-9)

	assert.Equal(t, 0.0, TrimmedMean(nil, 0.1))
	assert.Equal(t, 7.0, TrimmedMean([]float64{7}, 0.1))
	assert.InDelta(t, Mean(values), TrimmedMean(values, 0), 1e-9)
}

func TestLinearRegression(t *testing.T) {
	slope, intercept := LinearRegression([]float64{1, 3, 5, 7})
	assert.InDelta(t, 2.0, slope, 1e-9)
	assert.InDelta(t, 1.0, intercept, 1e-9)
	assert.InDelta(t, 1.0, RSquared([]float64{1, 3, 5, 7}, slope, intercept), 1e-9)

	slope, intercept = LinearRegression([]float64{4})
	assert.Equal(t, 0.0, slope)
	assert.Equal(t, 4.0, intercept)

	slope, intercept = LinearRegression(nil)
	assert.Equal(t, 0.0, slope)
	assert.Equal(t, 0.0, intercept)
}

func TestSafeAndClamp(t *testing.T) {
	assert.Equal(t, 0.0, Safe(math.NaN()))
	assert.Equal(t, 0.0, Safe(math.Inf(1)))
	assert.Equal(t, 2.5, Safe(2.5))

	assert.Equal(t, 0.0, Clamp(math.NaN(), 0, 1))
	assert.Equal(t, 1.0, Clamp(3, 0, 1))
	assert.Equal(t, 0.0, Clamp(-3, 0, 1))
}

func TestCoefficientOfVariation_ZeroMean(t *testing.T) {
	assert.Equal(t, 0.0, CoefficientOfVariation([]float64{0, 0, 0}))
	assert.Equal(t, 0.0, StdDev([]float64{5, 5, 5}))
	assert.Equal(t, 2, NonZeroCount([]float64{0, 1, -1, 2, math.NaN()}))
}
