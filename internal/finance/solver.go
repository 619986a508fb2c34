package finance

import "math"

const (
	// SolverUpperMonthlyRate bounds the search at 5% per month.
	SolverUpperMonthlyRate = 0.05
	SolverTolerance        = 1e-5
	SolverMaxIterations    = 100
)

// RateSolution is the outcome of SolveRate. When Converged is false the
// payment lies outside the searchable range and AnnualRatePercent is the
// nearest boundary.
type RateSolution struct {
	AnnualRatePercent float64 `json:"annual_rate_percent"`
	Converged         bool    `json:"converged"`
	Iterations        int     `json:"iterations"`
}

// SolveRate finds the annual rate at which months level payments of payment
// take principal down to balloon, by bisection on the monthly rate.
func SolveRate(principal, payment, balloon float64, months int) RateSolution {
	if months <= 0 || math.IsNaN(principal) || math.IsNaN(payment) || math.IsNaN(balloon) {
		return RateSolution{}
	}

	low, high := 0.0, SolverUpperMonthlyRate
	if payment < Payment(principal, balloon, low, months) {
		return RateSolution{AnnualRatePercent: annualPercent(low)}
	}
	if payment > Payment(principal, balloon, high, months) {
		return RateSolution{AnnualRatePercent: annualPercent(high)}
	}

	var mid float64
	i := 0
	for ; i < SolverMaxIterations && high-low > SolverTolerance; i++ {
		mid = (low + high) / 2
		if Payment(principal, balloon, mid, months) > payment {
			high = mid
		} else {
			low = mid
		}
	}
	mid = (low + high) / 2
	return RateSolution{
		AnnualRatePercent: annualPercent(mid),
		Converged:         high-low <= SolverTolerance,
		Iterations:        i,
	}
}

func annualPercent(monthly float64) float64 {
	return monthly * 12 * 100
}
