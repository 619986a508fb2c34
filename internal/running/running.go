// Package running projects the annual cost of operating a vehicle: servicing,
// tyres, fuel or electricity, insurance, registration and fleet management.
package running

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

const maxEngineLitres = 8.0

var (
	ErrInvalidDistance   = errors.New("annual distance must be positive")
	ErrInvalidEngineSize = errors.New("engine size out of range")
	ErrInvalidConfig     = errors.New("invalid running cost configuration")
)

// Class is a vehicle cost class.
type Class string

// Energy bases for Profile.EnergyBasis.
const (
	BasisFuel     = "fuel"
	BasisDistance = "distance"
)

// Input describes the vehicle and its usage. Zero EngineLitres on a
// combustion vehicle means "not supplied" and falls back to the default size.
type Input struct {
	BodyStyle       string
	Make            string
	EngineLitres    float64
	FuelType        string
	AnnualKm        float64
	ZeroEmission    bool
	VehicleValue    float64
	RegistrationFee float64
}

// Profile is the projected annual running cost of a vehicle.
type Profile struct {
	Class          Class   `json:"class"`
	ZeroEmission   bool    `json:"zero_emission"`
	EnergyBasis    string  `json:"energy_basis"`
	LitresPer100Km float64 `json:"litres_per_100km,omitempty"`
	FuelPrice      float64 `json:"fuel_price,omitempty"`
	RatePerKm      float64 `json:"rate_per_km,omitempty"`
	Service        float64 `json:"service"`
	Tyres          float64 `json:"tyres"`
	Energy         float64 `json:"energy"`
	Insurance      float64 `json:"insurance"`
	Registration   float64 `json:"registration"`
	ManagementFee  float64 `json:"management_fee"`
}

// Total is the sum of every annual cost line.
func (p Profile) Total() float64 {
	return p.Service + p.Tyres + p.Energy + p.Insurance + p.Registration + p.ManagementFee
}

// Estimator projects running costs from a validated Config.
type Estimator struct {
	cfg       Config
	classes   map[Class]ClassProfile
	fuelNames []string
}

// NewEstimator validates cfg and returns an Estimator.
func NewEstimator(cfg Config) (*Estimator, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	classes := make(map[Class]ClassProfile, len(cfg.Classes))
	for _, c := range cfg.Classes {
		classes[c.Name] = c
	}
	names := make([]string, 0, len(cfg.Fuels))
	for name := range cfg.Fuels {
		names = append(names, name)
	}
	// longest name first so "premium unleaded" beats "unleaded"
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return &Estimator{cfg: cfg, classes: classes, fuelNames: names}, nil
}

// Classify maps a make and body style to a cost class. Luxury makes take
// precedence, then body style phrases in configured order, then EV-native
// makes; anything else is the default class.
func (e *Estimator) Classify(bodyStyle, vehicleMake string) Class {
	mk := strings.ToLower(strings.TrimSpace(vehicleMake))
	if mk != "" && containsAny(mk, e.cfg.LuxuryMakes) {
		return e.cfg.LuxuryClass
	}

	body := strings.ToLower(strings.TrimSpace(bodyStyle))
	if body != "" {
		for _, c := range e.cfg.Classes {
			if containsAny(body, c.Phrases) {
				return c.Name
			}
		}
	}

	if mk != "" && containsAny(mk, e.cfg.ElectricMakes) {
		return e.cfg.ElectricClass
	}
	return e.cfg.DefaultClass
}

// Estimate projects the annual running cost for in.
func (e *Estimator) Estimate(in Input) (Profile, error) {
	if in.AnnualKm <= 0 || math.IsNaN(in.AnnualKm) {
		return Profile{}, fmt.Errorf("%w: %.0f km", ErrInvalidDistance, in.AnnualKm)
	}
	if in.EngineLitres < 0 || in.EngineLitres > maxEngineLitres {
		return Profile{}, fmt.Errorf("%w: %.1f L not in [0, %.0f]", ErrInvalidEngineSize, in.EngineLitres, maxEngineLitres)
	}

	class := e.Classify(in.BodyStyle, in.Make)
	cp := e.classes[class]

	servicesPerYear := in.AnnualKm / e.cfg.ServiceIntervalKm
	tyreSetsPerYear := in.AnnualKm / e.cfg.TyreLifeKm

	p := Profile{
		Class:         class,
		ZeroEmission:  in.ZeroEmission,
		Tyres:         tyreSetsPerYear * e.cfg.TyreSetCost * cp.Tyre,
		Insurance:     e.insurancePremium(in.VehicleValue) * cp.Insurance,
		Registration:  in.RegistrationFee,
		ManagementFee: e.cfg.ManagementFee,
	}

	serviceCost := servicesPerYear * e.cfg.ServiceCost * cp.Service
	if in.ZeroEmission {
		// flat per-km rate, no consumption model
		p.Service = serviceCost * e.cfg.ElectricServiceFactor
		p.EnergyBasis = BasisDistance
		p.RatePerKm = e.cfg.ElectricRatePerKm
		p.Energy = in.AnnualKm * p.RatePerKm * cp.Energy
	} else {
		fuel := e.fuelProfile(in.FuelType)
		litres := in.EngineLitres
		if litres == 0 {
			litres = e.cfg.DefaultEngineLitres
		}
		p.Service = serviceCost
		p.EnergyBasis = BasisFuel
		p.LitresPer100Km = e.litresPer100Km(litres) * fuel.Factor
		p.FuelPrice = fuel.Price
		p.Energy = (in.AnnualKm / 100) * p.LitresPer100Km * p.FuelPrice * cp.Energy
	}

	return p, nil
}

func (e *Estimator) litresPer100Km(engineLitres float64) float64 {
	for _, step := range e.cfg.Consumption {
		if engineLitres < step.BelowLitres {
			return step.LitresPer100Km
		}
	}
	return e.cfg.Consumption[len(e.cfg.Consumption)-1].LitresPer100Km
}

func (e *Estimator) fuelProfile(fuelType string) FuelProfile {
	ft := strings.ToLower(strings.TrimSpace(fuelType))
	if fp, ok := e.cfg.Fuels[ft]; ok {
		return fp
	}
	for _, name := range e.fuelNames {
		if ft != "" && strings.Contains(ft, name) {
			return e.cfg.Fuels[name]
		}
	}
	return e.cfg.Fuels[e.cfg.DefaultFuel]
}

func (e *Estimator) insurancePremium(value float64) float64 {
	for _, b := range e.cfg.Insurance {
		if value <= b.UpTo {
			return b.Premium
		}
	}
	return e.cfg.Insurance[len(e.cfg.Insurance)-1].Premium
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if p != "" && strings.Contains(s, strings.ToLower(p)) {
			return true
		}
	}
	return false
}
