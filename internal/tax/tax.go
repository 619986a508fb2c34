// Package tax computes progressive resident income tax from an ordered band
// table and the saving produced by a pre-tax deduction.
package tax

import (
	"errors"
	"fmt"
	"math"
)

// smallestUnit is the gap between one band's upper bound and the next band's
// lower bound.
const smallestUnit = 1.0

// baseTolerance allows published base amounts to be rounded to the cent.
const baseTolerance = 0.01

var ErrInvalidTable = errors.New("invalid tax band table")

// Band is one marginal rate band. Upper is +Inf for the top band.
type Band struct {
	Lower   float64 `yaml:"lower" json:"lower"`
	Upper   float64 `yaml:"upper" json:"upper"`
	Rate    float64 `yaml:"rate" json:"rate"`
	BaseTax float64 `yaml:"base_tax" json:"base_tax"`
}

// threshold is the amount above which the band's marginal rate applies.
// Lower is the band's first whole dollar, so BaseTax is the tax on Lower-1.
func (b Band) threshold() float64 {
	if b.Lower == 0 {
		return 0
	}
	return b.Lower - smallestUnit
}

// Table is a validated, immutable band table plus a flat levy rate.
type Table struct {
	bands    []Band
	levyRate float64
}

// NewTable validates bands and returns a Table. Bands must start at zero,
// be contiguous, end unbounded, and carry base amounts that keep tax
// non-decreasing across band edges.
func NewTable(bands []Band, levyRate float64) (*Table, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("%w: no bands", ErrInvalidTable)
	}
	if bands[0].Lower != 0 {
		return nil, fmt.Errorf("%w: first band starts at %.2f", ErrInvalidTable, bands[0].Lower)
	}
	if !math.IsInf(bands[len(bands)-1].Upper, 1) {
		return nil, fmt.Errorf("%w: top band must be unbounded", ErrInvalidTable)
	}
	if levyRate < 0 || levyRate >= 1 {
		return nil, fmt.Errorf("%w: levy rate %.4f", ErrInvalidTable, levyRate)
	}

	for i, b := range bands {
		if b.Rate < 0 || b.Rate >= 1 {
			return nil, fmt.Errorf("%w: band %d rate %.4f", ErrInvalidTable, i, b.Rate)
		}
		if b.Upper <= b.Lower {
			return nil, fmt.Errorf("%w: band %d upper %.2f not above lower %.2f", ErrInvalidTable, i, b.Upper, b.Lower)
		}
		if i == 0 {
			continue
		}
		prev := bands[i-1]
		if b.Lower != prev.Upper+smallestUnit {
			return nil, fmt.Errorf("%w: band %d starts at %.2f, want %.2f", ErrInvalidTable, i, b.Lower, prev.Upper+smallestUnit)
		}
		accumulated := prev.BaseTax + (prev.Upper-prev.threshold())*prev.Rate
		if b.BaseTax < accumulated-baseTolerance {
			return nil, fmt.Errorf("%w: band %d base tax %.2f below accumulated %.2f", ErrInvalidTable, i, b.BaseTax, accumulated)
		}
	}

	out := make([]Band, len(bands))
	copy(out, bands)
	return &Table{bands: out, levyRate: levyRate}, nil
}

// AnnualTax returns income tax payable on income. Negative income is treated
// as zero.
func (t *Table) AnnualTax(income float64) float64 {
	income = math.Max(0, income)
	b := t.bandFor(income)
	return b.BaseTax + (math.Min(income, b.Upper)-b.threshold())*b.Rate
}

// Saving returns the reduction in income tax when deductible is taken from
// income before tax.
func (t *Table) Saving(income, deductible float64) float64 {
	if deductible <= 0 {
		return 0
	}
	income = math.Max(0, income)
	return t.AnnualTax(income) - t.AnnualTax(math.Max(0, income-deductible))
}

// LevySaving returns the flat levy avoided on the deductible portion of income.
func (t *Table) LevySaving(income, deductible float64) float64 {
	if deductible <= 0 || income <= 0 {
		return 0
	}
	return math.Min(deductible, income) * t.levyRate
}

// MarginalRate returns the marginal rate that applies to the last dollar of
// income.
func (t *Table) MarginalRate(income float64) float64 {
	return t.bandFor(math.Max(0, income)).Rate
}

// TopRate returns the highest marginal rate in the table.
func (t *Table) TopRate() float64 {
	top := 0.0
	for _, b := range t.bands {
		top = math.Max(top, b.Rate)
	}
	return top
}

func (t *Table) bandFor(income float64) Band {
	band := t.bands[0]
	for _, b := range t.bands {
		if b.Lower > income {
			break
		}
		band = b
	}
	return band
}
