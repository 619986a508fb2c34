// Package render writes a quote as a plain-text document for the client.
package render

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Simplici0/leasequote/internal/fbt"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/running"
)

const dateLayout = "2 January 2006"

var disclaimers = []string{
	"This quote is an estimate only and does not constitute financial or tax advice.",
	"Figures depend on your employer's salary packaging policy and lender approval.",
	"Running costs are projections; actual costs are reconciled over the lease.",
	"Tax savings use resident income tax rates and the Medicare levy for the current year.",
}

// Document renders quotes with amounts grouped for the given locale.
type Document struct {
	p *message.Printer
}

// New returns a Document for en-AU formatting.
func New() *Document {
	return &Document{p: message.NewPrinter(language.MustParse("en-AU"))}
}

// Money formats an amount as dollars and cents with digit grouping.
func (d *Document) Money(amount float64) string {
	if amount < 0 {
		return "-" + d.p.Sprintf("$%.2f", -amount)
	}
	return d.p.Sprintf("$%.2f", amount)
}

// Write renders rec to w.
func (d *Document) Write(w io.Writer, rec quote.Record) error {
	q := rec.Quote
	req := q.Request
	var b strings.Builder

	section := func(title string) {
		b.WriteString("\n")
		b.WriteString(title)
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", len(title)))
		b.WriteString("\n")
	}
	line := func(label, value string) {
		fmt.Fprintf(&b, "%-28s %s\n", label+":", value)
	}

	fmt.Fprintf(&b, "NOVATED LEASE QUOTE %s\n", q.Ref)
	line("Prepared", q.CreatedAt.Format(dateLayout))
	line("Valid until", q.ValidUntil.Format(dateLayout))
	if rec.Client.Name != "" {
		line("Prepared for", rec.Client.Name)
	}
	if rec.Client.Employer != "" {
		line("Employer", rec.Client.Employer)
	}

	section("Vehicle")
	if v := vehicleName(req); v != "" {
		line("Vehicle", v)
	}
	line("Class", classLabel(q.Class))
	line("Drive-away price", d.Money(req.VehiclePrice))
	line("Zero emission", yesNo(req.IsZeroEmission()))
	line("State", req.Jurisdiction)
	line("Stamp duty", d.Money(q.Duty.Duty))
	if q.Duty.Concession != "" {
		line("Concession", q.Duty.Concession)
	}
	line("Registration", d.Money(q.Duty.RegistrationFee))
	if q.ImageURL != "" {
		line("Image", q.ImageURL)
	}

	s := q.Schedule
	section("Finance")
	line("Term", fmt.Sprintf("%d years (%d repayments)", s.TermYears, s.Repayments))
	line("Interest rate", fmt.Sprintf("%.2f%% p.a.", q.Rate*100))
	if q.AllUpRate.Converged {
		line("All-up rate", fmt.Sprintf("%.2f%% p.a.", q.AllUpRate.AnnualRatePercent))
	}
	if q.Lender != "" {
		line("Lender", q.Lender)
	}
	line("Amount financed", d.Money(s.NAF))
	line("Monthly repayment", d.Money(s.Payment))
	line("Residual (balloon)", fmt.Sprintf("%s (%.2f%%)", d.Money(s.Balloon), s.BalloonFraction*100))
	line("GST claimed", d.Money(s.ClaimableTax))
	for _, row := range s.Amortize() {
		if row.Month%12 == 0 {
			line(fmt.Sprintf("Balance after year %d", row.Month/12), d.Money(row.ClosingBalance))
		}
	}

	r := q.Running
	section("Annual running costs")
	line("Service", d.Money(r.Service))
	line("Tyres", d.Money(r.Tyres))
	if r.EnergyBasis == running.BasisDistance {
		line("Charging", d.Money(r.Energy))
	} else {
		line("Fuel", d.Money(r.Energy))
	}
	line("Insurance", d.Money(r.Insurance))
	line("Registration", d.Money(r.Registration))
	line("Management fee", d.Money(r.ManagementFee))
	line("Total running costs", d.Money(r.Total()))
	line("Total annual cost", d.Money(q.TotalAnnualCost))

	a := q.Allocation
	section("Salary packaging")
	line("Method", policyLabel(a.Policy))
	line("Pre-tax deduction", d.Money(a.PreTax)+" p.a.")
	line("Post-tax deduction", d.Money(a.PostTax)+" p.a.")
	line("Income tax saving", d.Money(a.IncomeTaxSaving))
	line("Medicare levy saving", d.Money(a.LevySaving))
	line("Total tax saving", d.Money(a.TotalSaving()))
	line("Net annual cost", d.Money(a.NetAnnualCost))
	line("Marginal tax rate", fmt.Sprintf("%.0f%%", q.MarginalRate*100))
	if pp := q.PerPeriod; pp.Periods > 0 {
		label := fmt.Sprintf("Per pay (%s)", req.PayFrequency)
		line(label, fmt.Sprintf("%s pre-tax, %s post-tax, %s net", d.Money(pp.PreTax), d.Money(pp.PostTax), d.Money(pp.Net)))
	}

	c := q.Comparison
	section("Compared with buying outright")
	line("Monthly purchase cost", d.Money(c.MonthlyPurchaseCost))
	line("Monthly novated cost", d.Money(c.MonthlyNovatedCost))
	line("Monthly saving", d.Money(c.MonthlySaving))
	line("Saving over the term", d.Money(c.TermSaving))

	if len(q.Warnings) > 0 {
		section("Please note")
		for _, warning := range q.Warnings {
			fmt.Fprintf(&b, "* %s\n", warning)
		}
	}

	section("Assumptions")
	fmt.Fprintf(&b, "* %s km travelled per year.\n", d.p.Sprintf("%.0f", req.AnnualKm))
	fmt.Fprintf(&b, "* Annual income of %s before tax.\n", d.Money(req.AnnualIncome))
	if r.EnergyBasis == running.BasisDistance {
		fmt.Fprintf(&b, "* Charging at %s per km.\n", d.p.Sprintf("$%.3f", r.RatePerKm))
	} else if r.LitresPer100Km > 0 {
		fmt.Fprintf(&b, "* Fuel use of %.1f L/100km at %s per litre.\n", r.LitresPer100Km, d.Money(r.FuelPrice))
	}

	section("Important information")
	for _, text := range disclaimers {
		fmt.Fprintf(&b, "* %s\n", text)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func vehicleName(req quote.LeaseRequest) string {
	parts := make([]string, 0, 3)
	if req.Year > 0 {
		parts = append(parts, fmt.Sprint(req.Year))
	}
	if req.Make != "" {
		parts = append(parts, req.Make)
	}
	if req.Model != "" {
		parts = append(parts, req.Model)
	}
	return strings.Join(parts, " ")
}

func classLabel(c running.Class) string {
	return strings.ReplaceAll(string(c), "_", " ")
}

func policyLabel(p fbt.Policy) string {
	switch p {
	case fbt.PolicyZeroEmissionExemption:
		return "Zero-emission FBT exemption"
	case fbt.PolicyContribution:
		return "Employee contribution method"
	case fbt.PolicyOperatingCost:
		return "Operating cost method"
	default:
		return string(p)
	}
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
