// Package rules loads the static rule set every engine is built from: tax
// bands, duty and registration by jurisdiction, running cost tables, finance
// terms, fringe benefit parameters, lender rates and quote policy.
package rules

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/Simplici0/leasequote/internal/duty"
	"github.com/Simplici0/leasequote/internal/fbt"
	"github.com/Simplici0/leasequote/internal/finance"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/running"
	"github.com/Simplici0/leasequote/internal/tax"
)

//go:embed default.yaml
var defaultRules []byte

// TaxRules is the income tax section.
type TaxRules struct {
	LevyRate float64    `yaml:"levy_rate"`
	Bands    []tax.Band `yaml:"bands"`
}

// Set is the whole rule set as read from YAML.
type Set struct {
	Tax     TaxRules                   `yaml:"tax"`
	Duty    map[string]duty.RuleConfig `yaml:"duty"`
	Running running.Config             `yaml:"running"`
	Finance finance.Params             `yaml:"finance"`
	FBT     fbt.Rules                  `yaml:"fbt"`
	Lenders map[string]float64         `yaml:"lenders"`
	Quote   quote.Policy               `yaml:"quote"`
}

// Engines are the validated engines built from a Set.
type Engines struct {
	Tax     *tax.Table
	Duty    *duty.Engine
	Running *running.Estimator
	Finance finance.Params
	FBT     *fbt.Allocator
	Lenders *lender.Registry
	Policy  quote.Policy
}

// QuoteDeps adapts e for quote.NewEngine.
func (e *Engines) QuoteDeps() quote.Deps {
	return quote.Deps{
		Tax:     e.Tax,
		Duty:    e.Duty,
		Running: e.Running,
		Finance: e.Finance,
		FBT:     e.FBT,
		Lenders: e.Lenders,
		Policy:  e.Policy,
	}
}

// Default returns the rule set shipped with the binary.
func Default() (Set, error) {
	return Parse(defaultRules)
}

// Load reads the rule set at path, or the default when path is empty.
func Load(path string) (Set, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("read rules: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML rule set. Unknown keys are rejected.
func Parse(raw []byte) (Set, error) {
	var s Set
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return Set{}, fmt.Errorf("parse rules: %w", err)
	}
	return s, nil
}

// Build validates every table and constructs the engines.
func (s Set) Build() (*Engines, error) {
	table, err := tax.NewTable(s.Tax.Bands, s.Tax.LevyRate)
	if err != nil {
		return nil, fmt.Errorf("rules tax: %w", err)
	}
	dutyEngine, err := duty.BuildEngine(s.Duty)
	if err != nil {
		return nil, fmt.Errorf("rules duty: %w", err)
	}
	estimator, err := running.NewEstimator(s.Running)
	if err != nil {
		return nil, fmt.Errorf("rules running: %w", err)
	}
	if err := s.Finance.Validate(); err != nil {
		return nil, fmt.Errorf("rules finance: %w", err)
	}
	allocator, err := fbt.NewAllocator(s.FBT, table)
	if err != nil {
		return nil, fmt.Errorf("rules fbt: %w", err)
	}
	registry, err := lender.NewRegistry(s.Lenders)
	if err != nil {
		return nil, fmt.Errorf("rules lenders: %w", err)
	}
	if err := s.Quote.Validate(); err != nil {
		return nil, fmt.Errorf("rules quote: %w", err)
	}
	for years := range s.Quote.TermRates {
		if _, ok := s.Finance.BalloonFractions[years]; !ok {
			return nil, fmt.Errorf("rules quote: term %d has a base rate but no balloon fraction", years)
		}
	}

	return &Engines{
		Tax:     table,
		Duty:    dutyEngine,
		Running: estimator,
		Finance: s.Finance,
		FBT:     allocator,
		Lenders: registry,
		Policy:  s.Quote,
	}, nil
}
