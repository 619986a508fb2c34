// Package duty assesses government transfer duty and registration fees for a
// vehicle purchase, one pluggable rule per jurisdiction.
package duty

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrUnknownJurisdiction = errors.New("unknown jurisdiction")
	ErrInvalidPrice        = errors.New("vehicle price must be positive")
)

// Jurisdiction is a registration region code such as "VIC" or "NSW".
type Jurisdiction string

// Assessment is the duty and registration outcome for one vehicle purchase.
type Assessment struct {
	Jurisdiction    Jurisdiction `json:"jurisdiction"`
	Duty            float64      `json:"duty"`
	RegistrationFee float64      `json:"registration_fee"`
	Concession      string       `json:"concession,omitempty"`
}

// GovernmentCharges is duty plus registration.
func (a Assessment) GovernmentCharges() float64 {
	return a.Duty + a.RegistrationFee
}

// Strategy computes duty for a price. Implementations must be pure.
type Strategy interface {
	Duty(price float64, zeroEmission bool) (amount float64, concession string)
}

// Rule pairs a jurisdiction's duty strategy with its registration schedule.
type Rule struct {
	Strategy     Strategy
	Registration Registration
}

// Engine selects the rule for a jurisdiction and applies it.
type Engine struct {
	rules map[Jurisdiction]Rule
}

// NewEngine returns an Engine over rules. Every rule needs a strategy.
func NewEngine(rules map[Jurisdiction]Rule) (*Engine, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("%w: no jurisdictions configured", ErrInvalidRule)
	}
	out := make(map[Jurisdiction]Rule, len(rules))
	for j, r := range rules {
		if r.Strategy == nil {
			return nil, fmt.Errorf("%w: %s has no duty strategy", ErrInvalidRule, j)
		}
		out[j] = r
	}
	return &Engine{rules: out}, nil
}

// Assess computes duty and registration for a purchase in jurisdiction j.
func (e *Engine) Assess(j Jurisdiction, price float64, zeroEmission bool) (Assessment, error) {
	rule, ok := e.rules[j]
	if !ok {
		return Assessment{}, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, j)
	}
	if price <= 0 {
		return Assessment{}, ErrInvalidPrice
	}

	amount, concession := rule.Strategy.Duty(price, zeroEmission)
	if amount < 0 {
		amount = 0
	}

	return Assessment{
		Jurisdiction:    j,
		Duty:            amount,
		RegistrationFee: rule.Registration.Fee(price),
		Concession:      concession,
	}, nil
}

// Supports reports whether j has a configured rule.
func (e *Engine) Supports(j Jurisdiction) bool {
	_, ok := e.rules[j]
	return ok
}

// Jurisdictions lists configured jurisdictions in sorted order.
func (e *Engine) Jurisdictions() []Jurisdiction {
	out := make([]Jurisdiction, 0, len(e.rules))
	for j := range e.rules {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}
