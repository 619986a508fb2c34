package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/Simplici0/leasequote/internal/db"
	"github.com/Simplici0/leasequote/internal/fbt"
	"github.com/Simplici0/leasequote/internal/finance"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/migrations"
	"github.com/Simplici0/leasequote/internal/quote"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "store-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return New(database)
}

func sampleRecord(ref, client, mk, model string, created time.Time) quote.Record {
	return quote.Record{
		Quote: quote.Quote{
			Ref:        ref,
			CreatedAt:  created,
			ValidUntil: created.AddDate(0, 0, 30),
			Request: quote.LeaseRequest{
				VehiclePrice: 45000,
				Jurisdiction: "VIC",
				TermYears:    3,
				AnnualKm:     15000,
				AnnualIncome: 120000,
				Method:       fbt.MethodContribution,
				PayFrequency: quote.Fortnightly,
				Make:         mk,
				Model:        model,
				Year:         2024,
			},
			Rate:            0.0739,
			Schedule:        finance.Schedule{Payment: 859.25, NAF: 41625.91},
			TotalAnnualCost: 16495.0,
			Allocation:      fbt.Allocation{NetAnnualCost: 14287.36},
			Warnings:        []string{},
		},
		Client: quote.Client{Name: client, Email: "someone@example.com"},
	}
}

func TestSaveAndGetQuote(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	created := time.Date(2024, 7, 1, 9, 30, 0, 0, time.UTC)

	rec := sampleRecord("Q-20240701-AAAA0001", "Jane Citizen", "Toyota", "RAV4", created)
	if err := s.SaveQuote(ctx, rec); err != nil {
		t.Fatalf("SaveQuote: %v", err)
	}

	got, err := s.GetQuote(ctx, rec.Quote.Ref)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if got.Client.Name != "Jane Citizen" || got.Client.Email != "someone@example.com" {
		t.Fatalf("unexpected client %+v", got.Client)
	}
	if got.Quote.Schedule.Payment != 859.25 || got.Quote.Allocation.NetAnnualCost != 14287.36 {
		t.Fatalf("payload did not round-trip: %+v", got.Quote)
	}
	if !got.Quote.CreatedAt.Equal(created) {
		t.Fatalf("created_at = %v, want %v", got.Quote.CreatedAt, created)
	}
}

func TestSaveQuoteRejectsDuplicateRef(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	rec := sampleRecord("Q-20240701-DUPL0001", "A", "Kia", "EV6", time.Now())

	if err := s.SaveQuote(ctx, rec); err != nil {
		t.Fatalf("SaveQuote: %v", err)
	}
	if err := s.SaveQuote(ctx, rec); err == nil {
		t.Fatalf("expected duplicate ref to fail")
	}
}

func TestGetQuoteNotFound(t *testing.T) {
	s := setupStore(t)

	_, err := s.GetQuote(context.Background(), "Q-19700101-MISSING0")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAttachImage(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	rec := sampleRecord("Q-20240701-IMG00001", "Jane Citizen", "Kia", "EV6", time.Now())

	if err := s.SaveQuote(ctx, rec); err != nil {
		t.Fatalf("SaveQuote: %v", err)
	}
	if err := s.AttachImage(ctx, rec.Quote.Ref, "https://img.example/ev6.png"); err != nil {
		t.Fatalf("AttachImage: %v", err)
	}

	got, err := s.GetQuote(ctx, rec.Quote.Ref)
	if err != nil {
		t.Fatalf("GetQuote: %v", err)
	}
	if got.Quote.ImageURL != "https://img.example/ev6.png" {
		t.Fatalf("image url = %q", got.Quote.ImageURL)
	}

	if err := s.AttachImage(ctx, "Q-19700101-MISSING0", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown ref, got %v", err)
	}
}

func TestListQuotesNewestFirstAndSearch(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)

	records := []quote.Record{
		sampleRecord("Q-20240701-00000001", "Alice Ng", "Toyota", "RAV4", base),
		sampleRecord("Q-20240701-00000002", "Bob Smith", "Tesla", "Model 3", base.Add(time.Hour)),
		sampleRecord("Q-20240701-00000003", "Carol Tesla", "Kia", "Sportage", base.Add(2*time.Hour)),
	}
	for _, rec := range records {
		if err := s.SaveQuote(ctx, rec); err != nil {
			t.Fatalf("SaveQuote: %v", err)
		}
	}

	all, err := s.ListQuotes(ctx, "", 0)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 quotes, got %d", len(all))
	}
	if all[0].Ref != "Q-20240701-00000003" || all[2].Ref != "Q-20240701-00000001" {
		t.Fatalf("unexpected order: %s, %s, %s", all[0].Ref, all[1].Ref, all[2].Ref)
	}
	if all[0].Status != "draft" || all[0].Payment != 859.25 {
		t.Fatalf("unexpected summary %+v", all[0])
	}

	tesla, err := s.ListQuotes(ctx, "tesla", 0)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(tesla) != 2 {
		t.Fatalf("expected make and client matches, got %d", len(tesla))
	}

	limited, err := s.ListQuotes(ctx, "", 1)
	if err != nil {
		t.Fatalf("ListQuotes: %v", err)
	}
	if len(limited) != 1 {
		t.Fatalf("expected limit 1, got %d", len(limited))
	}
}

func TestRateChangesRoundTripAndRestore(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	at := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)

	changes := []lender.RateChange{
		{Lender: "cba", PreviousRate: 0.072, NewRate: 0.07, Reason: "promo", ChangedAt: at},
		{Lender: "cba", PreviousRate: 0.07, NewRate: 0.069, Reason: "market", ChangedAt: at.Add(time.Hour)},
	}
	for _, c := range changes {
		if err := s.RecordRateChange(ctx, c); err != nil {
			t.Fatalf("RecordRateChange: %v", err)
		}
	}

	got, err := s.RateChanges(ctx)
	if err != nil {
		t.Fatalf("RateChanges: %v", err)
	}
	if len(got) != 2 || got[1].NewRate != 0.069 || !got[0].ChangedAt.Equal(at) {
		t.Fatalf("unexpected changes %+v", got)
	}

	reg, err := lender.NewRegistry(map[string]float64{"cba": 0.072})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if skipped := reg.Restore(got); len(skipped) != 0 {
		t.Fatalf("unexpected skipped changes %+v", skipped)
	}
	if rate, _ := reg.Rate("cba"); rate != 0.069 {
		t.Fatalf("restored rate = %v, want 0.069", rate)
	}
}
