package quote

import (
	"math"
	"strings"

	"github.com/Simplici0/leasequote/internal/fbt"
)

// Term limits in whole years.
const (
	MinTermYears = 1
	MaxTermYears = 5
)

const maxEngineLitres = 8.0

// PayFrequency is the employee's pay cycle.
type PayFrequency string

const (
	Weekly      PayFrequency = "weekly"
	Fortnightly PayFrequency = "fortnightly"
	Monthly     PayFrequency = "monthly"
)

// LeaseRequest is the input to a quote. Make, Model, Year, EngineLitres and
// FuelType are optional; catalog data fills what is missing.
type LeaseRequest struct {
	VehiclePrice       float64      `json:"vehicle_price"`
	Jurisdiction       string       `json:"jurisdiction"`
	TermYears          int          `json:"term_years"`
	AnnualKm           float64      `json:"annual_km"`
	AnnualIncome       float64      `json:"annual_income"`
	ZeroEmission       *bool        `json:"zero_emission,omitempty"`
	BodyStyle          string       `json:"body_style"`
	Method             fbt.Method   `json:"method"`
	BusinessUsePercent *float64     `json:"business_use_percent,omitempty"`
	PayFrequency       PayFrequency `json:"pay_frequency"`
	Lender             string       `json:"lender,omitempty"`

	Make         string  `json:"make,omitempty"`
	Model        string  `json:"model,omitempty"`
	Year         int     `json:"year,omitempty"`
	EngineLitres float64 `json:"engine_litres,omitempty"`
	FuelType     string  `json:"fuel_type,omitempty"`
}

// IsZeroEmission treats an absent flag as false.
func (r LeaseRequest) IsZeroEmission() bool {
	return r.ZeroEmission != nil && *r.ZeroEmission
}

// normalized returns a copy with codes trimmed and cased. Optional fields are
// copied so the result shares no memory with r.
func (r LeaseRequest) normalized() LeaseRequest {
	if r.ZeroEmission != nil {
		ze := *r.ZeroEmission
		r.ZeroEmission = &ze
	}
	if r.BusinessUsePercent != nil {
		bu := *r.BusinessUsePercent
		r.BusinessUsePercent = &bu
	}
	r.Jurisdiction = strings.ToUpper(strings.TrimSpace(r.Jurisdiction))
	r.Method = fbt.Method(strings.ToLower(strings.TrimSpace(string(r.Method))))
	r.PayFrequency = PayFrequency(strings.ToLower(strings.TrimSpace(string(r.PayFrequency))))
	r.Lender = strings.ToLower(strings.TrimSpace(r.Lender))
	r.BodyStyle = strings.TrimSpace(r.BodyStyle)
	r.Make = strings.TrimSpace(r.Make)
	r.Model = strings.TrimSpace(r.Model)
	r.FuelType = strings.TrimSpace(r.FuelType)
	return r
}

// validate reports field problems that need no rule set lookups.
func (r LeaseRequest) validate(v *ValidationError) {
	if !positive(r.VehiclePrice) {
		v.add("vehicle_price", "must be greater than zero")
	}
	if r.Jurisdiction == "" {
		v.add("jurisdiction", "is required")
	}
	if r.TermYears < MinTermYears || r.TermYears > MaxTermYears {
		v.add("term_years", "must be between %d and %d", MinTermYears, MaxTermYears)
	}
	if !positive(r.AnnualKm) {
		v.add("annual_km", "must be greater than zero")
	}
	if r.AnnualIncome < 0 || math.IsNaN(r.AnnualIncome) || math.IsInf(r.AnnualIncome, 0) {
		v.add("annual_income", "must not be negative")
	}
	if r.EngineLitres < 0 || r.EngineLitres > maxEngineLitres || math.IsNaN(r.EngineLitres) {
		v.add("engine_litres", "must be between 0 and %.0f", maxEngineLitres)
	}

	switch r.Method {
	case fbt.MethodContribution:
	case fbt.MethodOperatingCost:
		bu := r.BusinessUsePercent
		switch {
		case bu == nil:
			v.add("business_use_percent", "is required for the operating cost method")
		case *bu < 0 || *bu > 100 || math.IsNaN(*bu):
			v.add("business_use_percent", "must be between 0 and 100")
		}
	case "":
		v.add("method", "is required")
	default:
		v.add("method", "must be %q or %q", fbt.MethodContribution, fbt.MethodOperatingCost)
	}
}

func positive(f float64) bool {
	return f > 0 && !math.IsInf(f, 0)
}
