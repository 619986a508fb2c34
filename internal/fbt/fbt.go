// Package fbt splits a lease's annual cost between pre-tax and post-tax pay
// under the elected fringe benefit method and works out the resulting tax
// saving.
package fbt

import (
	"errors"
	"fmt"
	"math"

	"github.com/Simplici0/leasequote/internal/money"
	"github.com/Simplici0/leasequote/internal/tax"
)

var (
	ErrContributionExceedsCost = errors.New("employee contribution exceeds annual cost")
	ErrInvalidBusinessUse      = errors.New("business use percentage out of range")
	ErrUnknownMethod           = errors.New("unknown fringe benefit method")
	ErrInvalidCost             = errors.New("invalid annual cost")
	ErrInvalidRules            = errors.New("invalid fringe benefit rules")
)

// Method is the fringe benefit election on the request.
type Method string

const (
	MethodContribution  Method = "contribution"
	MethodOperatingCost Method = "operating_cost"
)

// Policy is the allocation actually applied.
type Policy string

const (
	PolicyZeroEmissionExemption Policy = "zero_emission_exemption"
	PolicyContribution          Policy = "contribution"
	PolicyOperatingCost         Policy = "operating_cost"
)

// Rules holds the statutory fringe benefit parameters.
type Rules struct {
	// ExemptionThreshold is the luxury car limit for zero-emission vehicles.
	ExemptionThreshold float64 `yaml:"exemption_threshold"`
	StatutoryRate      float64 `yaml:"statutory_rate"`
	FBTRate            float64 `yaml:"fbt_rate"`
	GrossUp            float64 `yaml:"gross_up"`
}

func (r Rules) validate() error {
	switch {
	case r.ExemptionThreshold < 0:
		return fmt.Errorf("%w: exemption threshold", ErrInvalidRules)
	case r.StatutoryRate <= 0 || r.StatutoryRate >= 1:
		return fmt.Errorf("%w: statutory rate %.4f", ErrInvalidRules, r.StatutoryRate)
	case r.FBTRate <= 0 || r.FBTRate >= 1:
		return fmt.Errorf("%w: fbt rate %.4f", ErrInvalidRules, r.FBTRate)
	case r.GrossUp < 1:
		return fmt.Errorf("%w: gross-up %.4f", ErrInvalidRules, r.GrossUp)
	}
	return nil
}

// Input is everything the allocator needs from a quote.
type Input struct {
	TotalAnnualCost    float64
	Method             Method
	ZeroEmission       bool
	VehiclePrice       float64
	DutyPlusRego       float64
	BusinessUsePercent float64
	Income             float64
}

// Allocation is the annual pre-tax/post-tax split and its tax effect.
type Allocation struct {
	Policy               Policy  `json:"policy"`
	TotalAnnualCost      float64 `json:"total_annual_cost"`
	PreTax               float64 `json:"pre_tax"`
	PostTax              float64 `json:"post_tax"`
	BaseValue            float64 `json:"base_value,omitempty"`
	TaxableValue         float64 `json:"taxable_value"`
	EmployeeContribution float64 `json:"employee_contribution"`
	ReportableBenefit    float64 `json:"reportable_benefit"`
	Liability            float64 `json:"liability"`
	IncomeTaxSaving      float64 `json:"income_tax_saving"`
	LevySaving           float64 `json:"levy_saving"`
	NetAnnualCost        float64 `json:"net_annual_cost"`
}

// TotalSaving is income tax plus levy saved.
func (a Allocation) TotalSaving() float64 {
	return money.Sum(a.IncomeTaxSaving, a.LevySaving)
}

// PerPeriod divides the annual allocation across a pay cycle.
type PerPeriod struct {
	Periods int     `json:"periods"`
	PreTax  float64 `json:"pre_tax"`
	PostTax float64 `json:"post_tax"`
	Net     float64 `json:"net"`
}

// PeriodicDeduction spreads the allocation over periods pay runs per year.
func (a Allocation) PeriodicDeduction(periods int) PerPeriod {
	if periods <= 0 {
		return PerPeriod{}
	}
	n := float64(periods)
	return PerPeriod{
		Periods: periods,
		PreTax:  money.Round(a.PreTax / n),
		PostTax: money.Round(a.PostTax / n),
		Net:     money.Round(a.NetAnnualCost / n),
	}
}

// Allocator applies Rules and a tax table.
type Allocator struct {
	rules Rules
	tax   *tax.Table
}

// NewAllocator validates rules and returns an Allocator.
func NewAllocator(rules Rules, table *tax.Table) (*Allocator, error) {
	if table == nil {
		return nil, fmt.Errorf("%w: no tax table", ErrInvalidRules)
	}
	if err := rules.validate(); err != nil {
		return nil, err
	}
	return &Allocator{rules: rules, tax: table}, nil
}

// Allocate splits in.TotalAnnualCost. A zero-emission vehicle under the
// exemption threshold wins over the elected method.
func (a *Allocator) Allocate(in Input) (Allocation, error) {
	if in.TotalAnnualCost < 0 || math.IsNaN(in.TotalAnnualCost) || math.IsInf(in.TotalAnnualCost, 0) {
		return Allocation{}, fmt.Errorf("%w: %.2f", ErrInvalidCost, in.TotalAnnualCost)
	}
	total := money.Round(in.TotalAnnualCost)
	alloc := Allocation{TotalAnnualCost: total}

	switch {
	case in.ZeroEmission && in.VehiclePrice <= a.rules.ExemptionThreshold:
		alloc.Policy = PolicyZeroEmissionExemption
		alloc.PreTax = total
		alloc.ReportableBenefit = total

	case in.Method == MethodContribution:
		alloc.Policy = PolicyContribution
		alloc.BaseValue = money.Round(in.VehiclePrice - in.DutyPlusRego)
		alloc.TaxableValue = money.Round(alloc.BaseValue * a.rules.StatutoryRate)
		contribution := alloc.TaxableValue
		if contribution > total {
			return Allocation{}, fmt.Errorf("%w: contribution %.2f, annual cost %.2f", ErrContributionExceedsCost, contribution, total)
		}
		alloc.PostTax, alloc.PreTax = money.Split(total, contribution)
		alloc.EmployeeContribution = alloc.PostTax
		alloc.Liability = a.liability(alloc.TaxableValue, alloc.EmployeeContribution)

	case in.Method == MethodOperatingCost:
		if in.BusinessUsePercent < 0 || in.BusinessUsePercent > 100 || math.IsNaN(in.BusinessUsePercent) {
			return Allocation{}, fmt.Errorf("%w: %.2f", ErrInvalidBusinessUse, in.BusinessUsePercent)
		}
		alloc.Policy = PolicyOperatingCost
		alloc.PreTax, alloc.PostTax = money.Split(total, total*in.BusinessUsePercent/100)
		// the private share is the taxable value and is paid from post-tax pay
		alloc.TaxableValue = alloc.PostTax
		alloc.EmployeeContribution = alloc.PostTax
		alloc.ReportableBenefit = alloc.PostTax
		alloc.Liability = a.liability(alloc.TaxableValue, alloc.EmployeeContribution)

	default:
		return Allocation{}, fmt.Errorf("%w: %q", ErrUnknownMethod, in.Method)
	}

	income := math.Max(in.Income, 0)
	alloc.IncomeTaxSaving = money.Round(a.tax.Saving(income, alloc.PreTax))
	alloc.LevySaving = money.Round(a.tax.LevySaving(income, alloc.PreTax))
	alloc.NetAnnualCost = money.Round(total - alloc.IncomeTaxSaving - alloc.LevySaving)
	return alloc, nil
}

// liability is the employer's FBT on whatever taxable value the employee's
// post-tax contribution leaves uncovered.
func (a *Allocator) liability(taxableValue, contribution float64) float64 {
	uncovered := math.Max(0, taxableValue-contribution)
	return money.Round(uncovered * a.rules.GrossUp * a.rules.FBTRate)
}
