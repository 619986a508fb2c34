package lender

import (
	"sort"

	"github.com/Simplici0/leasequote/internal/finance"
)

// Quote is one lender's offer for a vehicle.
type Quote struct {
	Lender    string               `json:"lender"`
	Rate      float64              `json:"rate"`
	Schedule  finance.Schedule     `json:"schedule"`
	AllUpRate finance.RateSolution `json:"all_up_rate"`
	TotalCost float64              `json:"total_cost"`
}

// Comparator builds one schedule per registered lender.
type Comparator struct {
	registry *Registry
	params   finance.Params
}

// NewComparator returns a Comparator reading rates from registry.
func NewComparator(registry *Registry, params finance.Params) *Comparator {
	return &Comparator{registry: registry, params: params}
}

// Compare returns every lender's quote, cheapest payment first. Ties go to
// the lower lender ID.
func (c *Comparator) Compare(price, duty, rego float64, termYears int) ([]Quote, error) {
	rates := c.registry.Rates()

	quotes := make([]Quote, 0, len(rates))
	for _, rt := range rates {
		s, err := c.params.Build(price, duty, rego, termYears, rt.Rate)
		if err != nil {
			return nil, err
		}
		quotes = append(quotes, Quote{
			Lender:    rt.Lender,
			Rate:      rt.Rate,
			Schedule:  s,
			AllUpRate: s.AllUpRate(),
			TotalCost: s.TotalRepayable(),
		})
	}

	sort.SliceStable(quotes, func(i, j int) bool {
		if quotes[i].Schedule.Payment != quotes[j].Schedule.Payment {
			return quotes[i].Schedule.Payment < quotes[j].Schedule.Payment
		}
		return quotes[i].Lender < quotes[j].Lender
	})
	return quotes, nil
}
