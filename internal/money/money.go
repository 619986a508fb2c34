// Package money rounds and splits currency amounts at cent precision.
package money

import "github.com/shopspring/decimal"

// Round rounds an amount to the nearest cent, half away from zero.
func Round(amount float64) float64 {
	return decimal.NewFromFloat(amount).Round(2).InexactFloat64()
}

// Split divides total into two cent-rounded parts whose sum is exactly the
// cent-rounded total. The first part is the rounded share; the second part is
// the remainder.
func Split(total, share float64) (first, second float64) {
	t := decimal.NewFromFloat(total).Round(2)
	f := decimal.NewFromFloat(share).Round(2)
	return f.InexactFloat64(), t.Sub(f).InexactFloat64()
}

// Sum adds amounts at cent precision.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a).Round(2))
	}
	return total.InexactFloat64()
}
