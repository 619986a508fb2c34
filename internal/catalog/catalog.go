// Package catalog answers make, model and year lookups against a vehicle
// dataset.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vehicles.yaml
var defaultVehicles []byte

// Vehicle is one catalog entry. EngineType "electric" marks a
// zero-emission vehicle.
type Vehicle struct {
	Make         string  `yaml:"make" json:"make"`
	Model        string  `yaml:"model" json:"model"`
	Year         int     `yaml:"year" json:"year"`
	BodyStyle    string  `yaml:"body_style" json:"body_style"`
	EngineLitres float64 `yaml:"engine_litres" json:"engine_litres"`
	EngineType   string  `yaml:"engine_type" json:"engine_type,omitempty"`
	FuelType     string  `yaml:"fuel_type" json:"fuel_type"`
}

// ZeroEmission reports whether the vehicle is battery electric.
func (v Vehicle) ZeroEmission() bool {
	return strings.Contains(strings.ToLower(v.EngineType), "electric")
}

// Catalog is an immutable, case-insensitive index over vehicles.
type Catalog struct {
	vehicles []Vehicle
}

// New returns a catalog over vehicles.
func New(vehicles []Vehicle) *Catalog {
	return &Catalog{vehicles: append([]Vehicle(nil), vehicles...)}
}

// Default returns the catalog shipped with the binary.
func Default() (*Catalog, error) {
	return Parse(defaultVehicles)
}

// Load reads a YAML catalog file.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML list of vehicles.
func Parse(raw []byte) (*Catalog, error) {
	var vehicles []Vehicle
	if err := yaml.Unmarshal(raw, &vehicles); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for i, v := range vehicles {
		if strings.TrimSpace(v.Make) == "" || strings.TrimSpace(v.Model) == "" || v.Year <= 0 {
			return nil, fmt.Errorf("parse catalog: entry %d needs make, model and year", i)
		}
	}
	return New(vehicles), nil
}

// Makes lists distinct makes in alphabetical order.
func (c *Catalog) Makes() []string {
	seen := map[string]bool{}
	var makes []string
	for _, v := range c.vehicles {
		if !seen[v.Make] {
			seen[v.Make] = true
			makes = append(makes, v.Make)
		}
	}
	sort.Strings(makes)
	return makes
}

// Models lists distinct models for mk in alphabetical order.
func (c *Catalog) Models(mk string) []string {
	seen := map[string]bool{}
	models := []string{}
	for _, v := range c.vehicles {
		if strings.EqualFold(v.Make, mk) && !seen[v.Model] {
			seen[v.Model] = true
			models = append(models, v.Model)
		}
	}
	sort.Strings(models)
	return models
}

// Years lists the years available for make and model, newest first.
func (c *Catalog) Years(mk, model string) []int {
	seen := map[int]bool{}
	years := []int{}
	for _, v := range c.vehicles {
		if strings.EqualFold(v.Make, mk) && strings.EqualFold(v.Model, model) && !seen[v.Year] {
			seen[v.Year] = true
			years = append(years, v.Year)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// Lookup finds the exact make, model and year.
func (c *Catalog) Lookup(mk, model string, year int) (Vehicle, bool) {
	for _, v := range c.vehicles {
		if strings.EqualFold(v.Make, mk) && strings.EqualFold(v.Model, model) && v.Year == year {
			return v, true
		}
	}
	return Vehicle{}, false
}
