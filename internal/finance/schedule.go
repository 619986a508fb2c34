// Package finance builds novated lease finance schedules and inverts them
// back into comparable annual rates.
package finance

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	ErrUnmappedTerm  = errors.New("term has no balloon fraction")
	ErrInvalidRate   = errors.New("annual rate must be positive")
	ErrInvalidPrice  = errors.New("invalid vehicle price")
	ErrInvalidParams = errors.New("invalid finance parameters")
)

// Params is the static finance rule set.
type Params struct {
	// BalloonFractions maps term in years to the residual as a fraction of NAF.
	BalloonFractions map[int]float64 `yaml:"balloon_fractions"`
	BrokerageRate    float64         `yaml:"brokerage_rate"`
	EstablishmentFee float64         `yaml:"establishment_fee"`
	DeferralMonths   int             `yaml:"deferral_months"`
	GSTRate          float64         `yaml:"gst_rate"`
	// GSTClaimCap is the most GST an employer may claim on the vehicle.
	GSTClaimCap float64 `yaml:"gst_claim_cap"`
}

// Validate checks the parameter ranges.
func (p Params) Validate() error {
	if len(p.BalloonFractions) == 0 {
		return fmt.Errorf("%w: no balloon fractions", ErrInvalidParams)
	}
	prev := math.Inf(1)
	for _, years := range p.Terms() {
		f := p.BalloonFractions[years]
		if years <= 0 || f < 0 || f >= 1 {
			return fmt.Errorf("%w: balloon fraction %v for %d years", ErrInvalidParams, f, years)
		}
		if f > prev {
			return fmt.Errorf("%w: balloon fraction rises at %d years", ErrInvalidParams, years)
		}
		prev = f
	}
	if p.BrokerageRate < 0 || p.EstablishmentFee < 0 || p.GSTRate < 0 || p.GSTClaimCap < 0 {
		return fmt.Errorf("%w: negative rate or fee", ErrInvalidParams)
	}
	if p.DeferralMonths < 0 {
		return fmt.Errorf("%w: negative deferral", ErrInvalidParams)
	}
	for _, years := range p.Terms() {
		if years*12 <= p.DeferralMonths {
			return fmt.Errorf("%w: deferral leaves no repayments for %d years", ErrInvalidParams, years)
		}
	}
	return nil
}

// Terms lists the supported terms in years, ascending.
func (p Params) Terms() []int {
	terms := make([]int, 0, len(p.BalloonFractions))
	for y := range p.BalloonFractions {
		terms = append(terms, y)
	}
	sort.Ints(terms)
	return terms
}

// Schedule is the financed position of one lease.
type Schedule struct {
	ExTaxVehicleCost float64 `json:"ex_tax_vehicle_cost"`
	ClaimableTax     float64 `json:"claimable_tax"`
	NonClaimableTax  float64 `json:"non_claimable_tax"`
	Duty             float64 `json:"duty"`
	RegistrationFee  float64 `json:"registration_fee"`
	EstablishmentFee float64 `json:"establishment_fee"`
	NAF              float64 `json:"naf"`
	Brokerage        float64 `json:"brokerage"`
	AmountFinanced   float64 `json:"amount_financed"`
	// Principal is AmountFinanced compounded over the deferral period.
	Principal       float64 `json:"principal"`
	BalloonFraction float64 `json:"balloon_fraction"`
	Balloon         float64 `json:"balloon"`
	AnnualRate      float64 `json:"annual_rate"`
	TermYears       int     `json:"term_years"`
	TermMonths      int     `json:"term_months"`
	DeferralMonths  int     `json:"deferral_months"`
	Repayments      int     `json:"repayments"`
	Payment         float64 `json:"payment"`
}

// Build computes the schedule for a vehicle at price (tax inclusive, with
// duty and registration folded in) financed over termYears at annualRate.
func (p Params) Build(price, duty, rego float64, termYears int, annualRate float64) (Schedule, error) {
	if math.IsNaN(annualRate) || annualRate <= 0 {
		return Schedule{}, fmt.Errorf("%w: %v", ErrInvalidRate, annualRate)
	}
	fraction, ok := p.BalloonFractions[termYears]
	if !ok {
		return Schedule{}, fmt.Errorf("%w: %d years", ErrUnmappedTerm, termYears)
	}
	if duty < 0 || rego < 0 {
		return Schedule{}, fmt.Errorf("%w: negative government charges", ErrInvalidPrice)
	}
	base := price - duty - rego
	if math.IsNaN(price) || base <= 0 {
		return Schedule{}, fmt.Errorf("%w: %.2f does not cover duty %.2f and registration %.2f", ErrInvalidPrice, price, duty, rego)
	}

	exTax := base / (1 + p.GSTRate)
	gst := base - exTax
	claimable := math.Min(gst, p.GSTClaimCap)

	s := Schedule{
		ExTaxVehicleCost: exTax,
		ClaimableTax:     claimable,
		NonClaimableTax:  gst - claimable,
		Duty:             duty,
		RegistrationFee:  rego,
		EstablishmentFee: p.EstablishmentFee,
		BalloonFraction:  fraction,
		AnnualRate:       annualRate,
		TermYears:        termYears,
		TermMonths:       termYears * 12,
		DeferralMonths:   p.DeferralMonths,
		Repayments:       termYears*12 - p.DeferralMonths,
	}
	s.NAF = s.ExTaxVehicleCost + s.NonClaimableTax + s.Duty + s.RegistrationFee + s.EstablishmentFee
	s.Brokerage = s.NAF * p.BrokerageRate
	s.AmountFinanced = s.NAF + s.Brokerage
	s.Balloon = s.NAF * fraction

	r := annualRate / 12
	s.Principal = s.AmountFinanced * math.Pow(1+r, float64(p.DeferralMonths))
	s.Payment = Payment(s.Principal, s.Balloon, r, s.Repayments)
	return s, nil
}

// Payment is the level monthly payment that reduces principal to balloon
// over n repayments at monthly rate r. A zero rate is the straight-line limit.
func Payment(principal, balloon, r float64, n int) float64 {
	if n <= 0 {
		return math.NaN()
	}
	if r == 0 {
		return (principal - balloon) / float64(n)
	}
	growth := math.Pow(1+r, float64(n))
	return (principal*r - balloon*r/growth) / (1 - 1/growth)
}

// TotalRepayable is every scheduled payment plus the balloon.
func (s Schedule) TotalRepayable() float64 {
	return s.Payment*float64(s.Repayments) + s.Balloon
}

// MonthlyRate is the nominal monthly rate.
func (s Schedule) MonthlyRate() float64 {
	return s.AnnualRate / 12
}

// AllUpRate reconciles NAF, payment and balloon into one annual percentage,
// so brokerage and deferral interest show up as a higher rate.
func (s Schedule) AllUpRate() RateSolution {
	return SolveRate(s.NAF, s.Payment, s.Balloon, s.Repayments)
}

// Period is one row of an amortisation table.
type Period struct {
	Month          int     `json:"month"`
	OpeningBalance float64 `json:"opening_balance"`
	Interest       float64 `json:"interest"`
	Payment        float64 `json:"payment"`
	ClosingBalance float64 `json:"closing_balance"`
}

// Amortize lists the balance month by month from settlement. Deferral months
// carry interest with no payment; the last closing balance is the balloon.
func (s Schedule) Amortize() []Period {
	r := s.MonthlyRate()
	rows := make([]Period, 0, s.TermMonths)
	balance := s.AmountFinanced
	for m := 1; m <= s.TermMonths; m++ {
		row := Period{Month: m, OpeningBalance: balance, Interest: balance * r}
		if m > s.DeferralMonths {
			row.Payment = s.Payment
		}
		balance = balance + row.Interest - row.Payment
		row.ClosingBalance = balance
		rows = append(rows, row)
	}
	return rows
}
