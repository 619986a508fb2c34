package running

import (
	"fmt"
	"math"
	"strings"
)

// ClassProfile holds the phrases that select a class and its cost multipliers.
type ClassProfile struct {
	Name      Class    `yaml:"name"`
	Phrases   []string `yaml:"phrases"`
	Service   float64  `yaml:"service"`
	Tyre      float64  `yaml:"tyre"`
	Energy    float64  `yaml:"energy"`
	Insurance float64  `yaml:"insurance"`
}

// ConsumptionStep applies to engines strictly smaller than BelowLitres.
type ConsumptionStep struct {
	BelowLitres    float64 `yaml:"below_litres"`
	LitresPer100Km float64 `yaml:"litres_per_100km"`
}

// FuelProfile prices a fuel and scales base consumption (hybrids burn less).
type FuelProfile struct {
	Price  float64 `yaml:"price"`
	Factor float64 `yaml:"factor"`
}

// InsuranceBand is the base premium for vehicles valued at or below UpTo.
type InsuranceBand struct {
	UpTo    float64 `yaml:"up_to"`
	Premium float64 `yaml:"premium"`
}

// Config is the running cost rule set. Classes are matched in order.
type Config struct {
	Classes       []ClassProfile `yaml:"classes"`
	DefaultClass  Class          `yaml:"default_class"`
	LuxuryClass   Class          `yaml:"luxury_class"`
	LuxuryMakes   []string       `yaml:"luxury_makes"`
	ElectricClass Class          `yaml:"electric_class"`
	ElectricMakes []string       `yaml:"electric_makes"`

	ServiceIntervalKm     float64 `yaml:"service_interval_km"`
	ServiceCost           float64 `yaml:"service_cost"`
	ElectricServiceFactor float64 `yaml:"electric_service_factor"`
	TyreLifeKm            float64 `yaml:"tyre_life_km"`
	TyreSetCost           float64 `yaml:"tyre_set_cost"`

	DefaultEngineLitres float64                `yaml:"default_engine_litres"`
	DefaultFuel         string                 `yaml:"default_fuel"`
	Fuels               map[string]FuelProfile `yaml:"fuels"`
	Consumption         []ConsumptionStep      `yaml:"consumption"`
	ElectricRatePerKm   float64                `yaml:"electric_rate_per_km"`

	Insurance     []InsuranceBand `yaml:"insurance"`
	ManagementFee float64         `yaml:"management_fee"`
}

func (c Config) validate() error {
	if len(c.Classes) == 0 {
		return fmt.Errorf("%w: no classes", ErrInvalidConfig)
	}
	seen := make(map[Class]bool, len(c.Classes))
	for _, cp := range c.Classes {
		if cp.Name == "" {
			return fmt.Errorf("%w: class without name", ErrInvalidConfig)
		}
		if seen[cp.Name] {
			return fmt.Errorf("%w: duplicate class %q", ErrInvalidConfig, cp.Name)
		}
		seen[cp.Name] = true
		for _, m := range []float64{cp.Service, cp.Tyre, cp.Energy, cp.Insurance} {
			if m <= 0 || math.IsNaN(m) {
				return fmt.Errorf("%w: class %q has a non-positive multiplier", ErrInvalidConfig, cp.Name)
			}
		}
	}
	for _, want := range []Class{c.DefaultClass, c.LuxuryClass, c.ElectricClass} {
		if !seen[want] {
			return fmt.Errorf("%w: class %q is referenced but not defined", ErrInvalidConfig, want)
		}
	}

	for name, v := range map[string]float64{
		"service_interval_km":   c.ServiceIntervalKm,
		"tyre_life_km":          c.TyreLifeKm,
		"default_engine_litres": c.DefaultEngineLitres,
	} {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, name)
		}
	}
	for name, v := range map[string]float64{
		"service_cost":            c.ServiceCost,
		"electric_service_factor": c.ElectricServiceFactor,
		"tyre_set_cost":           c.TyreSetCost,
		"electric_rate_per_km":    c.ElectricRatePerKm,
		"management_fee":          c.ManagementFee,
	} {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, name)
		}
	}

	if len(c.Fuels) == 0 {
		return fmt.Errorf("%w: no fuels", ErrInvalidConfig)
	}
	for name, fp := range c.Fuels {
		if name != strings.ToLower(name) {
			return fmt.Errorf("%w: fuel %q must be lower case", ErrInvalidConfig, name)
		}
		if fp.Price < 0 || fp.Factor <= 0 {
			return fmt.Errorf("%w: fuel %q", ErrInvalidConfig, name)
		}
	}
	if _, ok := c.Fuels[c.DefaultFuel]; !ok {
		return fmt.Errorf("%w: default fuel %q not defined", ErrInvalidConfig, c.DefaultFuel)
	}

	if len(c.Consumption) == 0 {
		return fmt.Errorf("%w: no consumption steps", ErrInvalidConfig)
	}
	prev := 0.0
	for i, step := range c.Consumption {
		if step.LitresPer100Km <= 0 {
			return fmt.Errorf("%w: consumption step %d", ErrInvalidConfig, i)
		}
		if step.BelowLitres <= prev {
			return fmt.Errorf("%w: consumption steps must ascend", ErrInvalidConfig)
		}
		prev = step.BelowLitres
	}

	if len(c.Insurance) == 0 {
		return fmt.Errorf("%w: no insurance bands", ErrInvalidConfig)
	}
	prev = math.Inf(-1)
	for i, b := range c.Insurance {
		if b.Premium < 0 || b.UpTo <= prev {
			return fmt.Errorf("%w: insurance band %d", ErrInvalidConfig, i)
		}
		prev = b.UpTo
	}
	if !math.IsInf(c.Insurance[len(c.Insurance)-1].UpTo, 1) {
		return fmt.Errorf("%w: last insurance band must be unbounded", ErrInvalidConfig)
	}
	return nil
}
