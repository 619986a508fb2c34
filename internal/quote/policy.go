package quote

import (
	"errors"
	"fmt"
)

var ErrInvalidPolicy = errors.New("invalid quote policy")

// WarningRules are the thresholds for advisory warnings.
type WarningRules struct {
	PriceToIncome  float64 `yaml:"price_to_income"`
	HighAnnualKm   float64 `yaml:"high_annual_km"`
	LowIncome      float64 `yaml:"low_income"`
	LowIncomePrice float64 `yaml:"low_income_price"`
}

// Policy holds the quote-level tables: base rates by term, pay cycles,
// validity and warning thresholds.
type Policy struct {
	TermRates      map[int]float64      `yaml:"term_rates"`
	PayFrequencies map[PayFrequency]int `yaml:"pay_frequencies"`
	ValidityDays   int                  `yaml:"validity_days"`
	Warnings       WarningRules         `yaml:"warnings"`
}

// Validate checks the policy tables.
func (p Policy) Validate() error {
	if len(p.TermRates) == 0 {
		return fmt.Errorf("%w: no term rates", ErrInvalidPolicy)
	}
	for years, rate := range p.TermRates {
		if years < MinTermYears || years > MaxTermYears || rate <= 0 {
			return fmt.Errorf("%w: term rate %v for %d years", ErrInvalidPolicy, rate, years)
		}
	}
	if len(p.PayFrequencies) == 0 {
		return fmt.Errorf("%w: no pay frequencies", ErrInvalidPolicy)
	}
	for f, n := range p.PayFrequencies {
		if n <= 0 {
			return fmt.Errorf("%w: %d periods for %s", ErrInvalidPolicy, n, f)
		}
	}
	if p.ValidityDays <= 0 {
		return fmt.Errorf("%w: validity days %d", ErrInvalidPolicy, p.ValidityDays)
	}
	return nil
}
