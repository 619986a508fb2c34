package finance

import (
	"testing"
)

func TestSolveRateRoundTrip(t *testing.T) {
	p := testParams()
	for years := 1; years <= 5; years++ {
		for _, rate := range []float64{0.0499, 0.065, 0.0695, 0.0739, 0.10, 0.1499} {
			s, err := p.Build(65000, 2145, 900, years, rate)
			if err != nil {
				t.Fatalf("build: %v", err)
			}
			got := SolveRate(s.Principal, s.Payment, s.Balloon, s.Repayments)
			if !got.Converged {
				t.Fatalf("%d years at %.4f did not converge", years, rate)
			}
			if !nearlyEqual(got.AnnualRatePercent, rate*100, 0.05) {
				t.Fatalf("%d years: expected %.2f%%, got %.4f%%", years, rate*100, got.AnnualRatePercent)
			}
			if got.Iterations > SolverMaxIterations {
				t.Fatalf("iterations exceeded budget: %d", got.Iterations)
			}
		}
	}
}

func TestSolveRateInfeasiblePayment(t *testing.T) {
	high := SolveRate(10000, 5000, 0, 12)
	if high.Converged {
		t.Fatalf("expected no convergence for an impossible payment")
	}
	if !nearlyEqual(high.AnnualRatePercent, SolverUpperMonthlyRate*1200, 1e-9) {
		t.Fatalf("expected upper boundary, got %.4f", high.AnnualRatePercent)
	}

	low := SolveRate(10000, 10, 0, 12)
	if low.Converged || low.AnnualRatePercent != 0 {
		t.Fatalf("expected lower boundary without convergence, got %+v", low)
	}
}

func TestAllUpRateExceedsNominal(t *testing.T) {
	s, err := testParams().Build(45000, 1485, 900, 3, 0.0739)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	allUp := s.AllUpRate()
	if !allUp.Converged {
		t.Fatalf("all-up rate did not converge")
	}
	if allUp.AnnualRatePercent <= 7.39 {
		t.Fatalf("expected brokerage and deferral to lift the all-up rate above 7.39%%, got %.4f", allUp.AnnualRatePercent)
	}
}

func TestPaymentZeroRateLimit(t *testing.T) {
	if got := Payment(12000, 2000, 0, 10); !nearlyEqual(got, 1000, 1e-9) {
		t.Fatalf("expected straight-line payment 1000, got %.4f", got)
	}
}
