// Package store persists quotes and lender rate changes in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/quote"
)

var ErrNotFound = errors.New("not found")

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// QuoteSummary is one row of the quote listing.
type QuoteSummary struct {
	Ref           string    `json:"ref"`
	CreatedAt     time.Time `json:"created_at"`
	ValidUntil    time.Time `json:"valid_until"`
	Status        string    `json:"status"`
	ClientName    string    `json:"client_name"`
	VehicleMake   string    `json:"vehicle_make"`
	VehicleModel  string    `json:"vehicle_model"`
	VehiclePrice  float64   `json:"vehicle_price"`
	Jurisdiction  string    `json:"jurisdiction"`
	TermYears     int       `json:"term_years"`
	Payment       float64   `json:"monthly_payment"`
	NetAnnualCost float64   `json:"net_annual_cost"`
}

// Store is a SQLite-backed quote.Store.
type Store struct {
	db *sql.DB
}

// New returns a Store over an already migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveQuote inserts a quote with its client details. The full quote is kept as
// a JSON payload next to the indexed columns.
func (s *Store) SaveQuote(ctx context.Context, rec quote.Record) error {
	q := rec.Quote
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("encode quote payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO quotes (
			ref, created_at, valid_until,
			client_name, client_email, client_phone, client_employer,
			vehicle_make, vehicle_model, vehicle_year, vehicle_price,
			jurisdiction, term_years, method, pay_frequency,
			rate, monthly_payment, total_annual_cost, net_annual_cost,
			image_url, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		q.Ref,
		formatTime(q.CreatedAt),
		formatTime(q.ValidUntil),
		rec.Client.Name,
		rec.Client.Email,
		rec.Client.Phone,
		rec.Client.Employer,
		q.Request.Make,
		q.Request.Model,
		q.Request.Year,
		q.Request.VehiclePrice,
		q.Request.Jurisdiction,
		q.Request.TermYears,
		string(q.Request.Method),
		string(q.Request.PayFrequency),
		q.Rate,
		q.Schedule.Payment,
		q.TotalAnnualCost,
		q.Allocation.NetAnnualCost,
		q.ImageURL,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert quote %s: %w", q.Ref, err)
	}

	return nil
}

// ListQuotes returns quotes newest first. A non-empty query matches the client
// name, make or model.
func (s *Store) ListQuotes(ctx context.Context, query string, limit int) ([]QuoteSummary, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT
			ref, created_at, valid_until, status,
			client_name, vehicle_make, vehicle_model, vehicle_price,
			jurisdiction, term_years, monthly_payment, net_annual_cost
		FROM quotes
		WHERE (? = '' OR client_name LIKE ? OR vehicle_make LIKE ? OR vehicle_model LIKE ?)
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, query, search, search, search, limit)
	if err != nil {
		return nil, fmt.Errorf("query quotes: %w", err)
	}
	defer rows.Close()

	quotes := make([]QuoteSummary, 0)
	for rows.Next() {
		var item QuoteSummary
		var createdAt, validUntil string
		if err := rows.Scan(
			&item.Ref, &createdAt, &validUntil, &item.Status,
			&item.ClientName, &item.VehicleMake, &item.VehicleModel, &item.VehiclePrice,
			&item.Jurisdiction, &item.TermYears, &item.Payment, &item.NetAnnualCost,
		); err != nil {
			return nil, fmt.Errorf("scan quote: %w", err)
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if item.ValidUntil, err = parseTime(validUntil); err != nil {
			return nil, err
		}
		quotes = append(quotes, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quotes: %w", err)
	}

	return quotes, nil
}

// GetQuote loads a stored quote by reference.
func (s *Store) GetQuote(ctx context.Context, ref string) (quote.Record, error) {
	var rec quote.Record
	var payload, imageURL string
	err := s.db.QueryRowContext(ctx, `
		SELECT client_name, client_email, client_phone, client_employer, image_url, payload
		FROM quotes
		WHERE ref = ?
	`, ref).Scan(&rec.Client.Name, &rec.Client.Email, &rec.Client.Phone, &rec.Client.Employer, &imageURL, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return quote.Record{}, fmt.Errorf("quote %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return quote.Record{}, fmt.Errorf("query quote %s: %w", ref, err)
	}

	if err := json.Unmarshal([]byte(payload), &rec.Quote); err != nil {
		return quote.Record{}, fmt.Errorf("decode quote %s payload: %w", ref, err)
	}
	if imageURL != "" {
		rec.Quote.ImageURL = imageURL
	}

	return rec, nil
}

// AttachImage sets the scene image of a saved quote.
func (s *Store) AttachImage(ctx context.Context, ref, url string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE quotes SET image_url = ? WHERE ref = ?`, url, ref)
	if err != nil {
		return fmt.Errorf("attach image to quote %s: %w", ref, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("attach image to quote %s: %w", ref, err)
	}
	if n == 0 {
		return fmt.Errorf("quote %s: %w", ref, ErrNotFound)
	}
	return nil
}

// RecordRateChange appends a lender rate change to the audit table.
func (s *Store) RecordRateChange(ctx context.Context, c lender.RateChange) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lender_rate_changes (lender, previous_rate, new_rate, reason, changed_at)
		VALUES (?, ?, ?, ?, ?)
	`, c.Lender, c.PreviousRate, c.NewRate, c.Reason, formatTime(c.ChangedAt))
	if err != nil {
		return fmt.Errorf("insert rate change for %s: %w", c.Lender, err)
	}
	return nil
}

// RateChanges returns every recorded rate change, oldest first.
func (s *Store) RateChanges(ctx context.Context) ([]lender.RateChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lender, previous_rate, new_rate, reason, changed_at
		FROM lender_rate_changes
		ORDER BY changed_at ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query rate changes: %w", err)
	}
	defer rows.Close()

	changes := make([]lender.RateChange, 0)
	for rows.Next() {
		var c lender.RateChange
		var changedAt string
		if err := rows.Scan(&c.Lender, &c.PreviousRate, &c.NewRate, &c.Reason, &changedAt); err != nil {
			return nil, fmt.Errorf("scan rate change: %w", err)
		}
		if c.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		changes = append(changes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rate changes: %w", err)
	}

	return changes, nil
}

// timeLayout is fixed width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", value, err)
	}
	return t, nil
}
