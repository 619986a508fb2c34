// Package quote turns a lease request into a complete novated lease quote and
// hands the result to persistence and image collaborators.
package quote

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/leasequote/internal/duty"
	"github.com/Simplici0/leasequote/internal/fbt"
	"github.com/Simplici0/leasequote/internal/finance"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/money"
	"github.com/Simplici0/leasequote/internal/running"
	"github.com/Simplici0/leasequote/internal/tax"
)

// Rate sources recorded on a Quote.
const (
	RateSourceTermTable = "term_table"
	RateSourceLender    = "lender"
)

// Deps are the engines a quote is computed from.
type Deps struct {
	Tax     *tax.Table
	Duty    *duty.Engine
	Running *running.Estimator
	Finance finance.Params
	FBT     *fbt.Allocator
	Lenders *lender.Registry
	Policy  Policy
}

// Comparison sets the novated lease against buying the car with after-tax pay.
type Comparison struct {
	MonthlyPurchaseCost float64 `json:"monthly_purchase_cost"`
	MonthlyNovatedCost  float64 `json:"monthly_novated_cost"`
	MonthlySaving       float64 `json:"monthly_saving"`
	TermSaving          float64 `json:"term_saving"`
}

// Quote is a computed quote. It is a value; nothing mutates it after
// Generate returns.
type Quote struct {
	Ref             string               `json:"ref"`
	CreatedAt       time.Time            `json:"created_at"`
	ValidUntil      time.Time            `json:"valid_until"`
	Request         LeaseRequest         `json:"request"`
	Class           running.Class        `json:"class"`
	Duty            duty.Assessment      `json:"duty"`
	RateSource      string               `json:"rate_source"`
	Lender          string               `json:"lender,omitempty"`
	Rate            float64              `json:"rate"`
	Schedule        finance.Schedule     `json:"schedule"`
	AllUpRate       finance.RateSolution `json:"all_up_rate"`
	Running         running.Profile      `json:"running"`
	TotalAnnualCost float64              `json:"total_annual_cost"`
	Allocation      fbt.Allocation       `json:"allocation"`
	PerPeriod       fbt.PerPeriod        `json:"per_period"`
	MarginalRate    float64              `json:"marginal_rate"`
	Comparison      Comparison           `json:"comparison"`
	Warnings        []string             `json:"warnings"`
	ImageURL        string               `json:"image_url,omitempty"`
}

// Engine computes quotes. It holds no mutable state of its own; lender rates
// are read from the registry once per quote.
type Engine struct {
	deps   Deps
	now    func() time.Time
	newRef func(time.Time) string
}

// NewEngine checks deps and returns an Engine.
func NewEngine(deps Deps) (*Engine, error) {
	if deps.Tax == nil || deps.Duty == nil || deps.Running == nil || deps.FBT == nil || deps.Lenders == nil {
		return nil, errors.New("quote engine: missing dependency")
	}
	if err := deps.Finance.Validate(); err != nil {
		return nil, fmt.Errorf("quote engine: %w", err)
	}
	if err := deps.Policy.Validate(); err != nil {
		return nil, fmt.Errorf("quote engine: %w", err)
	}
	return &Engine{deps: deps, now: time.Now, newRef: newRef}, nil
}

// Classify exposes the running cost class for a body style and make.
func (e *Engine) Classify(bodyStyle, vehicleMake string) running.Class {
	return e.deps.Running.Classify(bodyStyle, vehicleMake)
}

// Generate validates req and computes its quote. Errors are either a
// *ValidationError or a *ConfigError.
func (e *Engine) Generate(req LeaseRequest) (Quote, error) {
	req = req.normalized()
	if err := e.validate(req); err != nil {
		return Quote{}, err
	}
	zeroEmission := req.IsZeroEmission()

	assessment, err := e.deps.Duty.Assess(duty.Jurisdiction(req.Jurisdiction), req.VehiclePrice, zeroEmission)
	if err != nil {
		return Quote{}, invalid("jurisdiction", err)
	}

	rate, source, err := e.rateFor(req)
	if err != nil {
		return Quote{}, err
	}

	schedule, err := e.deps.Finance.Build(req.VehiclePrice, assessment.Duty, assessment.RegistrationFee, req.TermYears, rate)
	switch {
	case errors.Is(err, finance.ErrUnmappedTerm):
		return Quote{}, &ConfigError{Table: "finance.balloon_fractions", Key: strconv.Itoa(req.TermYears), Err: err}
	case errors.Is(err, finance.ErrInvalidRate):
		return Quote{}, &ConfigError{Table: "rates", Key: source, Err: err}
	case errors.Is(err, finance.ErrInvalidPrice):
		return Quote{}, invalid("vehicle_price", err)
	case err != nil:
		return Quote{}, &ConfigError{Table: "finance", Key: strconv.Itoa(req.TermYears), Err: err}
	}

	profile, err := e.deps.Running.Estimate(running.Input{
		BodyStyle:       req.BodyStyle,
		Make:            req.Make,
		EngineLitres:    req.EngineLitres,
		FuelType:        req.FuelType,
		AnnualKm:        req.AnnualKm,
		ZeroEmission:    zeroEmission,
		VehicleValue:    req.VehiclePrice,
		RegistrationFee: assessment.RegistrationFee,
	})
	switch {
	case errors.Is(err, running.ErrInvalidDistance):
		return Quote{}, invalid("annual_km", err)
	case errors.Is(err, running.ErrInvalidEngineSize):
		return Quote{}, invalid("engine_litres", err)
	case err != nil:
		return Quote{}, &ConfigError{Table: "running", Key: req.BodyStyle, Err: err}
	}

	totalAnnual := money.Round(schedule.Payment*12 + profile.Total())

	businessUse := 0.0
	if req.BusinessUsePercent != nil {
		businessUse = *req.BusinessUsePercent
	}
	alloc, err := e.deps.FBT.Allocate(fbt.Input{
		TotalAnnualCost:    totalAnnual,
		Method:             req.Method,
		ZeroEmission:       zeroEmission,
		VehiclePrice:       req.VehiclePrice,
		DutyPlusRego:       assessment.GovernmentCharges(),
		BusinessUsePercent: businessUse,
		Income:             req.AnnualIncome,
	})
	switch {
	case errors.Is(err, fbt.ErrContributionExceedsCost):
		return Quote{}, &ConfigError{Table: "fbt.statutory_rate", Key: string(req.Method), Err: err}
	case errors.Is(err, fbt.ErrInvalidBusinessUse):
		return Quote{}, invalid("business_use_percent", err)
	case err != nil:
		return Quote{}, &ConfigError{Table: "fbt", Key: string(req.Method), Err: err}
	}

	created := e.now().UTC()
	q := Quote{
		Ref:             e.newRef(created),
		CreatedAt:       created,
		ValidUntil:      created.AddDate(0, 0, e.deps.Policy.ValidityDays),
		Request:         req,
		Class:           profile.Class,
		Duty:            assessment,
		RateSource:      source,
		Lender:          req.Lender,
		Rate:            rate,
		Schedule:        schedule,
		AllUpRate:       schedule.AllUpRate(),
		Running:         profile,
		TotalAnnualCost: totalAnnual,
		Allocation:      alloc,
		PerPeriod:       alloc.PeriodicDeduction(e.deps.Policy.PayFrequencies[req.PayFrequency]),
		MarginalRate:    e.deps.Tax.MarginalRate(req.AnnualIncome),
		Comparison:      compare(req, schedule, profile, alloc),
		Warnings:        e.warnings(req),
	}
	return q, nil
}

func (e *Engine) validate(req LeaseRequest) error {
	v := &ValidationError{}
	req.validate(v)

	if req.Jurisdiction != "" && !e.deps.Duty.Supports(duty.Jurisdiction(req.Jurisdiction)) {
		v.add("jurisdiction", "unknown jurisdiction %q", req.Jurisdiction)
	}
	if _, ok := e.deps.Policy.PayFrequencies[req.PayFrequency]; !ok {
		v.add("pay_frequency", "must be one of %s", strings.Join(e.payFrequencyNames(), ", "))
	}
	if req.Lender != "" {
		if _, ok := e.deps.Lenders.Rate(req.Lender); !ok {
			v.add("lender", "unknown lender %q", req.Lender)
		}
	}
	return v.orNil()
}

// rateFor picks the named lender's current rate, or the base rate for the
// term when no lender is named.
func (e *Engine) rateFor(req LeaseRequest) (float64, string, error) {
	if req.Lender != "" {
		rate, ok := e.deps.Lenders.Rate(req.Lender)
		if !ok {
			return 0, "", invalid("lender", fmt.Errorf("%w: %q", lender.ErrUnknownLender, req.Lender))
		}
		return rate, RateSourceLender, nil
	}
	rate, ok := e.deps.Policy.TermRates[req.TermYears]
	if !ok {
		return 0, "", &ConfigError{Table: "quote.term_rates", Key: strconv.Itoa(req.TermYears), Err: errors.New("no base rate for term")}
	}
	return rate, RateSourceTermTable, nil
}

func (e *Engine) payFrequencyNames() []string {
	names := make([]string, 0, len(e.deps.Policy.PayFrequencies))
	for _, f := range []PayFrequency{Weekly, Fortnightly, Monthly} {
		if _, ok := e.deps.Policy.PayFrequencies[f]; ok {
			names = append(names, string(f))
		}
	}
	return names
}

func compare(req LeaseRequest, s finance.Schedule, profile running.Profile, alloc fbt.Allocation) Comparison {
	purchase := req.VehiclePrice/float64(s.TermMonths) + profile.Total()/12
	novated := alloc.NetAnnualCost / 12
	c := Comparison{
		MonthlyPurchaseCost: money.Round(purchase),
		MonthlyNovatedCost:  money.Round(novated),
	}
	c.MonthlySaving = money.Round(c.MonthlyPurchaseCost - c.MonthlyNovatedCost)
	c.TermSaving = money.Round(c.MonthlySaving * float64(s.TermMonths))
	return c
}

func (e *Engine) warnings(req LeaseRequest) []string {
	w := e.deps.Policy.Warnings
	out := []string{}
	if w.PriceToIncome > 0 && req.VehiclePrice > w.PriceToIncome*req.AnnualIncome {
		out = append(out, fmt.Sprintf("Vehicle price is more than %.1f times annual income.", w.PriceToIncome))
	}
	if w.HighAnnualKm > 0 && req.AnnualKm > w.HighAnnualKm {
		out = append(out, fmt.Sprintf("Annual distance above %.0f km increases running costs and wear.", w.HighAnnualKm))
	}
	if w.LowIncome > 0 && req.AnnualIncome < w.LowIncome && req.VehiclePrice > w.LowIncomePrice {
		out = append(out, fmt.Sprintf("Income below $%.0f with a vehicle above $%.0f may limit the tax benefit.", w.LowIncome, w.LowIncomePrice))
	}
	return out
}

func invalid(field string, err error) *ValidationError {
	v := &ValidationError{}
	v.add(field, "%v", err)
	return v
}

func newRef(t time.Time) string {
	id := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return fmt.Sprintf("Q-%s-%s", t.Format("20060102"), id[:8])
}
