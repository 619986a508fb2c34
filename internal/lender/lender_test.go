package lender

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Simplici0/leasequote/internal/finance"
)

func testParams() finance.Params {
	return finance.Params{
		BalloonFractions: map[int]float64{1: 0.6563, 2: 0.5625, 3: 0.4688, 4: 0.3750, 5: 0.2813},
		BrokerageRate:    0.02,
		EstablishmentFee: 500,
		DeferralMonths:   1,
		GSTRate:          0.10,
		GSTClaimCap:      6334,
	}
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(map[string]float64{"westpac": 0.0695, "cba": 0.0650, "pepper": 0.0740})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return r
}

func TestCompareOrdersByPayment(t *testing.T) {
	c := NewComparator(newTestRegistry(t), testParams())

	quotes, err := c.Compare(55000, 1815, 900, 3)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	want := []string{"cba", "westpac", "pepper"}
	if len(quotes) != len(want) {
		t.Fatalf("expected %d quotes, got %d", len(want), len(quotes))
	}
	for i, q := range quotes {
		if q.Lender != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], q.Lender)
		}
		if i > 0 && q.Schedule.Payment < quotes[i-1].Schedule.Payment {
			t.Fatalf("quotes not sorted by payment at %d", i)
		}
		if q.Schedule.NAF != quotes[0].Schedule.NAF || q.Schedule.Balloon != quotes[0].Schedule.Balloon {
			t.Fatalf("expected identical principal and balloon across lenders")
		}
		if q.TotalCost != q.Schedule.TotalRepayable() {
			t.Fatalf("total cost mismatch for %s", q.Lender)
		}
		if !q.AllUpRate.Converged || q.AllUpRate.AnnualRatePercent <= q.Rate*100 {
			t.Fatalf("expected converged all-up rate above nominal for %s, got %+v", q.Lender, q.AllUpRate)
		}
	}
}

func TestCompareBreaksTiesByLender(t *testing.T) {
	r, err := NewRegistry(map[string]float64{"zeta": 0.07, "alpha": 0.07, "mid": 0.07})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	quotes, err := NewComparator(r, testParams()).Compare(40000, 1320, 900, 2)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if quotes[0].Lender != "alpha" || quotes[1].Lender != "mid" || quotes[2].Lender != "zeta" {
		t.Fatalf("expected alphabetical order on ties, got %s %s %s", quotes[0].Lender, quotes[1].Lender, quotes[2].Lender)
	}
}

func TestCompareUnmappedTerm(t *testing.T) {
	c := NewComparator(newTestRegistry(t), testParams())
	if _, err := c.Compare(40000, 1320, 900, 9); !errors.Is(err, finance.ErrUnmappedTerm) {
		t.Fatalf("expected ErrUnmappedTerm, got %v", err)
	}
}

func TestUpdateRateRecordsHistory(t *testing.T) {
	r := newTestRegistry(t)
	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	change, err := r.UpdateRate("Westpac", 0.0625, " RBA cut ")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if change.Lender != "westpac" || change.PreviousRate != 0.0695 || change.NewRate != 0.0625 {
		t.Fatalf("unexpected change %+v", change)
	}
	if change.Reason != "RBA cut" || !change.ChangedAt.Equal(fixed) {
		t.Fatalf("unexpected reason or timestamp %+v", change)
	}

	rate, ok := r.Rate("westpac")
	if !ok || rate != 0.0625 {
		t.Fatalf("expected current rate 0.0625, got %v", rate)
	}
	if best := r.Best(); best.Lender != "westpac" {
		t.Fatalf("expected westpac to be best after the cut, got %s", best.Lender)
	}
	if h := r.History(); len(h) != 1 || h[0] != change {
		t.Fatalf("expected one history entry, got %+v", h)
	}
}

func TestUpdateRateRejectsBadInput(t *testing.T) {
	r := newTestRegistry(t)

	if _, err := r.UpdateRate("nab", 0.06, "new"); !errors.Is(err, ErrUnknownLender) {
		t.Fatalf("expected ErrUnknownLender, got %v", err)
	}
	if _, err := r.UpdateRate("cba", 0, "zero"); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}
	if len(r.History()) != 0 {
		t.Fatalf("rejected updates must not be recorded")
	}
}

func TestRestoreAppliesLatestPersistedRate(t *testing.T) {
	r := newTestRegistry(t)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	skipped := r.Restore([]RateChange{
		{Lender: "cba", PreviousRate: 0.0610, NewRate: 0.0600, ChangedAt: base.Add(48 * time.Hour)},
		{Lender: "cba", PreviousRate: 0.0650, NewRate: 0.0610, ChangedAt: base},
		{Lender: "retired", PreviousRate: 0.05, NewRate: 0.04, ChangedAt: base},
	})
	if len(skipped) != 1 || skipped[0].Lender != "retired" {
		t.Fatalf("expected the unknown lender to be skipped, got %+v", skipped)
	}
	if rate, _ := r.Rate("cba"); rate != 0.0600 {
		t.Fatalf("expected latest persisted rate 0.0600, got %v", rate)
	}
	h := r.History()
	if len(h) != 2 || !h[0].ChangedAt.Before(h[1].ChangedAt) {
		t.Fatalf("expected two changes oldest first, got %+v", h)
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := newTestRegistry(t)
	c := NewComparator(r, testParams())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			if _, err := r.UpdateRate("pepper", 0.07+float64(i)/10000, fmt.Sprintf("update %d", i)); err != nil {
				t.Errorf("update: %v", err)
			}
		}(i)
		go func() {
			defer wg.Done()
			quotes, err := c.Compare(50000, 1650, 900, 4)
			if err != nil {
				t.Errorf("compare: %v", err)
				return
			}
			if len(quotes) != 3 {
				t.Errorf("expected 3 quotes, got %d", len(quotes))
			}
		}()
	}
	wg.Wait()

	if got := len(r.History()); got != 20 {
		t.Fatalf("expected 20 history entries, got %d", got)
	}
}
