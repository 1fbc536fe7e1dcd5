package money

import (
	"math"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// FromFloat creates decimal from float, rounded to 2 places (SEK has öre)
func FromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}

// FromString parses decimal from string
func FromString(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

// Round2 rounds to 2 decimal places
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// RoundFloat2 rounds a float amount to 2 decimal places, half away from zero
func RoundFloat2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// DeriveRate computes the effective VAT percentage from net and VAT amounts:
// round(vat/net*100). A zero net maps to rate 0 (treated as VAT-exempt)
// rather than a division error.
func DeriveRate(net, vat float64) int {
	if net == 0 {
		return 0
	}
	return int(math.Round(vat / net * 100))
}

// Balanced reports whether debits equal credits within epsilon.
func Balanced(debit, credit decimal.Decimal, epsilon float64) bool {
	diff, _ := debit.Sub(credit).Abs().Float64()
	return diff < epsilon
}

// IsFinite reports whether v is a usable amount (not NaN or Inf).
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
