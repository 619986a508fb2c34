// Package lender keeps the current per-lender interest rates with their change
// history and ranks lenders by the schedules their rates produce.
package lender

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnknownLender = errors.New("unknown lender")
	ErrInvalidRate   = errors.New("lender rate must be positive")
)

// Rate is a lender's current nominal annual rate.
type Rate struct {
	Lender string  `json:"lender"`
	Rate   float64 `json:"rate"`
}

// RateChange records one update to a lender's rate.
type RateChange struct {
	Lender       string    `json:"lender"`
	PreviousRate float64   `json:"previous_rate"`
	NewRate      float64   `json:"new_rate"`
	Reason       string    `json:"reason"`
	ChangedAt    time.Time `json:"changed_at"`
}

// Registry is safe for concurrent use. Rates change only through UpdateRate
// and Restore; history is append-only.
type Registry struct {
	mu      sync.RWMutex
	rates   map[string]float64
	history []RateChange
	now     func() time.Time
}

// NewRegistry returns a registry seeded with rates keyed by lender ID.
func NewRegistry(rates map[string]float64) (*Registry, error) {
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no lenders configured", ErrUnknownLender)
	}
	r := &Registry{rates: make(map[string]float64, len(rates)), now: time.Now}
	for id, rate := range rates {
		if err := checkRate(rate); err != nil {
			return nil, fmt.Errorf("lender %q: %w", id, err)
		}
		r.rates[normalize(id)] = rate
	}
	return r, nil
}

// UpdateRate replaces a lender's rate and appends the change to history.
func (r *Registry) UpdateRate(lender string, rate float64, reason string) (RateChange, error) {
	if err := checkRate(rate); err != nil {
		return RateChange{}, err
	}
	id := normalize(lender)

	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.rates[id]
	if !ok {
		return RateChange{}, fmt.Errorf("%w: %q", ErrUnknownLender, lender)
	}
	change := RateChange{
		Lender:       id,
		PreviousRate: prev,
		NewRate:      rate,
		Reason:       strings.TrimSpace(reason),
		ChangedAt:    r.now().UTC(),
	}
	r.rates[id] = rate
	r.history = append(r.history, change)
	return change, nil
}

// Restore replays persisted changes, oldest first, so the latest stored rate
// wins over configuration. Changes for lenders no longer configured are
// skipped and returned.
func (r *Registry) Restore(changes []RateChange) []RateChange {
	sorted := make([]RateChange, len(changes))
	copy(sorted, changes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].ChangedAt.Before(sorted[j].ChangedAt)
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	var skipped []RateChange
	for _, c := range sorted {
		id := normalize(c.Lender)
		if _, ok := r.rates[id]; !ok || checkRate(c.NewRate) != nil {
			skipped = append(skipped, c)
			continue
		}
		c.Lender = id
		r.rates[id] = c.NewRate
		r.history = append(r.history, c)
	}
	return skipped
}

// Rate returns the current rate for lender.
func (r *Registry) Rate(lender string) (float64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rate, ok := r.rates[normalize(lender)]
	return rate, ok
}

// Rates returns a snapshot of every current rate ordered by lender ID.
func (r *Registry) Rates() []Rate {
	r.mu.RLock()
	out := make([]Rate, 0, len(r.rates))
	for id, rate := range r.rates {
		out = append(out, Rate{Lender: id, Rate: rate})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Lender < out[j].Lender })
	return out
}

// History returns a copy of every recorded change, oldest first.
func (r *Registry) History() []RateChange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RateChange, len(r.history))
	copy(out, r.history)
	return out
}

// Best returns the lender with the lowest current rate.
func (r *Registry) Best() Rate {
	rates := r.Rates()
	best := rates[0]
	for _, rt := range rates[1:] {
		if rt.Rate < best.Rate {
			best = rt
		}
	}
	return best
}

func checkRate(rate float64) error {
	if rate <= 0 || math.IsNaN(rate) || math.IsInf(rate, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidRate, rate)
	}
	return nil
}

func normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
