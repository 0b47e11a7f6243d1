package cost

import (
	"github.com/shopspring/decimal"

	"github.com/restrack/restrack-ai/internal/models"
)

// Currency figures are plain numbers in the deployment's base unit. Sums and
// products go through decimal so that reported savings and budgets round to
// whole cents the same way on every run.

const currencyPlaces = 2

var monthsPerYear = decimal.NewFromInt(12)

// Money converts a float amount to decimal, mapping invalid values to zero.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(models.NonNegative(v))
}

// RoundCurrency rounds v to cents.
func RoundCurrency(v float64) float64 {
	return Money(v).Round(currencyPlaces).InexactFloat64()
}

// MonthlySavings returns (actual − recommended) × pricePerUnit, rounded to
// cents. A recommendation at or above actual usage saves nothing.
func MonthlySavings(actualQty, recommendedQty, pricePerUnit float64) decimal.Decimal {
	delta := Money(actualQty).Sub(Money(recommendedQty))
	if !delta.IsPositive() {
		return decimal.Zero
	}
	return delta.Mul(Money(pricePerUnit)).Round(currencyPlaces)
}

// EstimateYearlyCost estimates yearly cost from monthly cost
func EstimateYearlyCost(monthly decimal.Decimal) decimal.Decimal {
	return monthly.Mul(monthsPerYear).Round(currencyPlaces)
}

// CalculateSavingsPercentage calculates savings as percentage
func CalculateSavingsPercentage(currentCost, optimizedCost float64) float64 {
	if currentCost <= 0 {
		return 0
	}
	return ((currentCost - optimizedCost) / currentCost) * 100
}

// SumAmounts totals currency amounts with cent precision.
func SumAmounts(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(Money(a))
	}
	return total.Round(currencyPlaces).InexactFloat64()
}
