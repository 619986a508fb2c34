package duty

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidRule = errors.New("invalid duty rule")

// Rule kinds accepted in configuration.
const (
	KindFlat   = "flat"
	KindTiered = "tiered"
)

// RuleConfig is the declarative form of a jurisdiction rule.
type RuleConfig struct {
	Kind         string      `yaml:"kind"`
	Bands        []RateBand  `yaml:"bands"`
	Tiers        []Tier      `yaml:"tiers"`
	ZeroEmission *Concession `yaml:"zero_emission"`
	Registration []FeeBand   `yaml:"registration"`
}

// Build validates c and turns it into a Rule.
func (c RuleConfig) Build() (Rule, error) {
	var base Strategy
	switch c.Kind {
	case KindFlat:
		if err := validateRateBands(c.Bands); err != nil {
			return Rule{}, err
		}
		base = FlatRate{Bands: append([]RateBand(nil), c.Bands...)}
	case KindTiered:
		if err := validateTiers(c.Tiers); err != nil {
			return Rule{}, err
		}
		base = Tiered{Tiers: append([]Tier(nil), c.Tiers...)}
	default:
		return Rule{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidRule, c.Kind)
	}

	strategy := base
	if c.ZeroEmission != nil {
		if err := validateConcession(*c.ZeroEmission); err != nil {
			return Rule{}, err
		}
		strategy = EmissionConditioned{Base: base, Concession: *c.ZeroEmission}
	}

	for i, b := range c.Registration {
		if b.Fee < 0 {
			return Rule{}, fmt.Errorf("%w: registration band %d fee %.2f", ErrInvalidRule, i, b.Fee)
		}
		if i > 0 && b.UpTo <= c.Registration[i-1].UpTo {
			return Rule{}, fmt.Errorf("%w: registration bands out of order", ErrInvalidRule)
		}
	}

	return Rule{
		Strategy:     strategy,
		Registration: Registration{Bands: append([]FeeBand(nil), c.Registration...)},
	}, nil
}

// BuildEngine builds an Engine from per-jurisdiction configuration.
func BuildEngine(configs map[string]RuleConfig) (*Engine, error) {
	rules := make(map[Jurisdiction]Rule, len(configs))
	for code, c := range configs {
		r, err := c.Build()
		if err != nil {
			return nil, fmt.Errorf("jurisdiction %s: %w", code, err)
		}
		rules[Jurisdiction(code)] = r
	}
	return NewEngine(rules)
}

func validateRateBands(bands []RateBand) error {
	if len(bands) == 0 {
		return fmt.Errorf("%w: flat rule needs at least one band", ErrInvalidRule)
	}
	for i, b := range bands {
		if b.Rate < 0 || b.Rate > 1 {
			return fmt.Errorf("%w: band %d rate %.4f", ErrInvalidRule, i, b.Rate)
		}
		if i > 0 && b.UpTo <= bands[i-1].UpTo {
			return fmt.Errorf("%w: bands out of order", ErrInvalidRule)
		}
	}
	if !math.IsInf(bands[len(bands)-1].UpTo, 1) {
		return fmt.Errorf("%w: last band must be unbounded", ErrInvalidRule)
	}
	return nil
}

func validateTiers(tiers []Tier) error {
	if len(tiers) == 0 {
		return fmt.Errorf("%w: tiered rule needs at least one tier", ErrInvalidRule)
	}
	if tiers[0].Above != 0 {
		return fmt.Errorf("%w: first tier must start at zero", ErrInvalidRule)
	}
	for i, t := range tiers {
		if t.Rate < 0 || t.Rate > 1 || t.Base < 0 {
			return fmt.Errorf("%w: tier %d", ErrInvalidRule, i)
		}
		if i > 0 && t.Above <= tiers[i-1].Above {
			return fmt.Errorf("%w: tiers out of order", ErrInvalidRule)
		}
	}
	return nil
}

func validateConcession(c Concession) error {
	switch c.Mode {
	case ConcessionExempt, ConcessionExcess:
		if c.Threshold < 0 {
			return fmt.Errorf("%w: negative concession threshold", ErrInvalidRule)
		}
	case ConcessionReduction:
		if c.Reduction <= 0 || c.Reduction > 1 {
			return fmt.Errorf("%w: concession reduction %.4f", ErrInvalidRule, c.Reduction)
		}
	default:
		return fmt.Errorf("%w: unknown concession mode %q", ErrInvalidRule, c.Mode)
	}
	return nil
}
