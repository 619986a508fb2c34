package duty

import (
	"fmt"
	"math"
)

// RateBand applies Rate to the whole price when price <= UpTo.
type RateBand struct {
	UpTo float64 `yaml:"up_to"`
	Rate float64 `yaml:"rate"`
}

// FlatRate charges a single percentage of the whole price, chosen by the
// first band that contains the price.
type FlatRate struct {
	Bands []RateBand
}

func (f FlatRate) Duty(price float64, _ bool) (float64, string) {
	for _, b := range f.Bands {
		if price <= b.UpTo {
			return price * b.Rate, ""
		}
	}
	return price * f.Bands[len(f.Bands)-1].Rate, ""
}

// Tier charges Base plus Rate on the part of the price above Above.
type Tier struct {
	Above float64 `yaml:"above"`
	Base  float64 `yaml:"base"`
	Rate  float64 `yaml:"rate"`
}

// Tiered charges a progressive percentage of the excess over the highest
// tier the price exceeds.
type Tiered struct {
	Tiers []Tier
}

func (t Tiered) Duty(price float64, _ bool) (float64, string) {
	tier := t.Tiers[0]
	for _, candidate := range t.Tiers {
		if price <= candidate.Above {
			break
		}
		tier = candidate
	}
	return tier.Base + math.Max(0, price-tier.Above)*tier.Rate, ""
}

// ConcessionMode selects how a zero-emission concession reduces duty.
type ConcessionMode string

const (
	// ConcessionExempt removes duty entirely, at or below Threshold when one
	// is set.
	ConcessionExempt ConcessionMode = "exempt"
	// ConcessionExcess charges only the share of duty attributable to the
	// value above Threshold.
	ConcessionExcess ConcessionMode = "excess"
	// ConcessionReduction scales duty down by the Reduction fraction.
	ConcessionReduction ConcessionMode = "reduction"
)

// Concession describes a zero-emission duty concession.
type Concession struct {
	Mode      ConcessionMode `yaml:"mode"`
	Threshold float64        `yaml:"threshold"`
	Reduction float64        `yaml:"reduction"`
}

// EmissionConditioned wraps a base strategy and applies a concession when the
// vehicle is zero-emission.
type EmissionConditioned struct {
	Base       Strategy
	Concession Concession
}

func (e EmissionConditioned) Duty(price float64, zeroEmission bool) (float64, string) {
	base, _ := e.Base.Duty(price, zeroEmission)
	if !zeroEmission {
		return base, ""
	}

	c := e.Concession
	switch c.Mode {
	case ConcessionExempt:
		if c.Threshold > 0 && price > c.Threshold {
			return base, ""
		}
		if c.Threshold > 0 {
			return 0, fmt.Sprintf("zero-emission vehicle at or below $%.0f is exempt from duty", c.Threshold)
		}
		return 0, "zero-emission vehicle is exempt from duty"
	case ConcessionExcess:
		if price <= c.Threshold {
			return 0, fmt.Sprintf("zero-emission vehicle at or below $%.0f is exempt from duty", c.Threshold)
		}
		share := (price - c.Threshold) / price
		return base * share, fmt.Sprintf("zero-emission duty assessed only on value above $%.0f", c.Threshold)
	case ConcessionReduction:
		return base * (1 - c.Reduction), fmt.Sprintf("zero-emission concession reduces duty by %.0f%%", c.Reduction*100)
	default:
		return base, ""
	}
}

// FeeBand charges Fee when price <= UpTo.
type FeeBand struct {
	UpTo float64 `yaml:"up_to"`
	Fee  float64 `yaml:"fee"`
}

// Registration is a flat or price-banded registration fee schedule. The
// current rule set uses a single unbounded band per jurisdiction.
type Registration struct {
	Bands []FeeBand
}

// Fee returns the registration fee for a vehicle price.
func (r Registration) Fee(price float64) float64 {
	for _, b := range r.Bands {
		if price <= b.UpTo {
			return b.Fee
		}
	}
	if len(r.Bands) == 0 {
		return 0
	}
	return r.Bands[len(r.Bands)-1].Fee
}
