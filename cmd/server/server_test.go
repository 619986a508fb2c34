package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/leasequote/internal/catalog"
	"github.com/Simplici0/leasequote/internal/db"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/migrations"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/render"
	"github.com/Simplici0/leasequote/internal/rules"
	"github.com/Simplici0/leasequote/internal/seed"
	"github.com/Simplici0/leasequote/internal/store"
)

const (
	testAdminEmail    = "admin@leasequote.test"
	testAdminPassword = "12345"
)

func newTestServer(t *testing.T, mutate func(*rules.Set)) (*server, *sql.DB) {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server-test.db"))
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	if err := migrations.Up(database); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	if _, err := seed.Run(database, seed.Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	set, err := rules.Default()
	if err != nil {
		t.Fatalf("default rules: %v", err)
	}
	if mutate != nil {
		mutate(&set)
	}
	engines, err := set.Build()
	if err != nil {
		t.Fatalf("build rules: %v", err)
	}
	engine, err := quote.NewEngine(engines.QuoteDeps())
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(database)
	return &server{
		auth:       newAuthService(database, "test-secret"),
		logger:     log,
		quotes:     quote.NewService(engine, st, nil, cat, log),
		store:      st,
		catalog:    cat,
		lenders:    engines.Lenders,
		comparator: lender.NewComparator(engines.Lenders, engines.Finance),
		duty:       engines.Duty,
		document:   render.New(),
	}, database
}

func doRequest(t *testing.T, h http.Handler, method, target, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), dst); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

const validSubmission = `{
	"request": {
		"vehicle_price": 45000,
		"jurisdiction": "vic",
		"term_years": 3,
		"annual_km": 15000,
		"annual_income": 90000,
		"body_style": "Sedan",
		"method": "contribution",
		"pay_frequency": "fortnightly",
		"make": "Toyota",
		"model": "Camry",
		"year": 2024
	},
	"client": {"name": "Jane Citizen", "email": "jane@example.com", "employer": "Acme Health"}
}`

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(t, srv.routes(), http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCreateQuotePersistsAndServesDocument(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/quotes", validSubmission)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var result quote.Result
	decodeBody(t, rec, &result)
	if !strings.HasPrefix(result.Quote.Ref, "Q-") {
		t.Fatalf("unexpected reference %q", result.Quote.Ref)
	}
	if result.Quote.Request.Jurisdiction != "VIC" {
		t.Fatalf("expected normalised jurisdiction, got %q", result.Quote.Request.Jurisdiction)
	}
	if o, ok := result.Outcome(quote.CollaboratorStore); !ok || !o.OK {
		t.Fatalf("expected store outcome ok, got %+v", result.Outcomes)
	}
	if o, ok := result.Outcome(quote.CollaboratorImage); !ok || !o.Skipped {
		t.Fatalf("expected image outcome skipped, got %+v", result.Outcomes)
	}

	list := doRequest(t, h, http.MethodGet, "/quotes?q=camry", "")
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200 from list, got %d", list.Code)
	}
	var listed struct {
		Quotes []store.QuoteSummary `json:"quotes"`
	}
	decodeBody(t, list, &listed)
	if len(listed.Quotes) != 1 || listed.Quotes[0].Ref != result.Quote.Ref || listed.Quotes[0].ClientName != "Jane Citizen" {
		t.Fatalf("unexpected listing %+v", listed.Quotes)
	}

	detail := doRequest(t, h, http.MethodGet, "/quotes/"+result.Quote.Ref, "")
	if detail.Code != http.StatusOK {
		t.Fatalf("expected 200 from detail, got %d", detail.Code)
	}
	var stored struct {
		Quote  quote.Quote  `json:"quote"`
		Client quote.Client `json:"client"`
	}
	decodeBody(t, detail, &stored)
	if stored.Quote.Schedule.Payment != result.Quote.Schedule.Payment || stored.Client.Employer != "Acme Health" {
		t.Fatalf("stored quote differs from created quote")
	}

	text := doRequest(t, h, http.MethodGet, "/quotes/"+result.Quote.Ref+"/text", "")
	if text.Code != http.StatusOK {
		t.Fatalf("expected 200 from text, got %d", text.Code)
	}
	if !strings.HasPrefix(text.Header().Get("Content-Type"), "text/plain") || !strings.Contains(text.Body.String(), result.Quote.Ref) {
		t.Fatalf("unexpected text document: %s", text.Body.String())
	}
}

func TestQuoteScheduleEndsAtBalloon(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	rec := doRequest(t, h, http.MethodPost, "/quotes", validSubmission)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var result quote.Result
	decodeBody(t, rec, &result)

	sched := doRequest(t, h, http.MethodGet, "/quotes/"+result.Quote.Ref+"/schedule", "")
	if sched.Code != http.StatusOK {
		t.Fatalf("expected 200 from schedule, got %d", sched.Code)
	}
	var body scheduleResponse
	decodeBody(t, sched, &body)

	s := result.Quote.Schedule
	if body.Ref != result.Quote.Ref || len(body.Periods) != s.TermMonths {
		t.Fatalf("expected %d periods for %s, got %d", s.TermMonths, result.Quote.Ref, len(body.Periods))
	}
	first, last := body.Periods[0], body.Periods[len(body.Periods)-1]
	if first.Month != 1 || first.OpeningBalance != s.AmountFinanced {
		t.Fatalf("unexpected first period %+v", first)
	}
	if math.Abs(last.ClosingBalance-s.Balloon) > 1 {
		t.Fatalf("closing balance %.2f should land on the balloon %.2f", last.ClosingBalance, s.Balloon)
	}
}

func TestCreateQuoteRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	unknownField := doRequest(t, h, http.MethodPost, "/quotes", `{"request": {"vehicle_price": 45000, "colour": "red"}}`)
	if unknownField.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", unknownField.Code)
	}

	trailing := doRequest(t, h, http.MethodPost, "/quotes", validSubmission+` {}`)
	if trailing.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for trailing data, got %d", trailing.Code)
	}

	invalid := doRequest(t, h, http.MethodPost, "/quotes", strings.Replace(validSubmission, `"vehicle_price": 45000`, `"vehicle_price": 0`, 1))
	if invalid.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid price, got %d", invalid.Code)
	}
	var body errorResponse
	decodeBody(t, invalid, &body)
	if len(body.Problems) == 0 || body.Problems[0].Field != "vehicle_price" {
		t.Fatalf("expected vehicle_price problem, got %+v", body.Problems)
	}
}

func TestCreateQuoteConfigErrorIsServerError(t *testing.T) {
	srv, _ := newTestServer(t, func(s *rules.Set) {
		delete(s.Quote.TermRates, 3)
	})

	rec := doRequest(t, srv.routes(), http.MethodPost, "/quotes", validSubmission)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for missing term rate, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQuoteNotFound(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	for _, target := range []string{"/quotes/Q-19700101-00000000", "/quotes/Q-19700101-00000000/text", "/quotes/Q-19700101-00000000/schedule"} {
		if rec := doRequest(t, h, http.MethodGet, target, ""); rec.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", target, rec.Code)
		}
	}
}

func TestCatalogEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	h := srv.routes()

	makes := doRequest(t, h, http.MethodGet, "/catalog/makes", "")
	var m struct {
		Makes []string `json:"makes"`
	}
	decodeBody(t, makes, &m)
	if len(m.Makes) == 0 {
		t.Fatalf("expected makes")
	}

	years := doRequest(t, h, http.MethodGet, "/catalog/years?make=toyota&model=rav4", "")
	var y struct {
		Years []int `json:"years"`
	}
	decodeBody(t, years, &y)
	if len(y.Years) != 2 || y.Years[0] != 2024 {
		t.Fatalf("unexpected years %v", y.Years)
	}

	details := doRequest(t, h, http.MethodGet, "/catalog/details?make=Tesla&model=Model+Y&year=2024", "")
	if details.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", details.Code)
	}
	var d struct {
		BodyStyle    string `json:"body_style"`
		ZeroEmission bool   `json:"zero_emission"`
		Class        string `json:"class"`
	}
	decodeBody(t, details, &d)
	if !d.ZeroEmission || d.Class == "" {
		t.Fatalf("unexpected details %+v", d)
	}

	if rec := doRequest(t, h, http.MethodGet, "/catalog/details?make=Tesla&model=Model+Y&year=1999", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for catalog miss, got %d", rec.Code)
	}
	if rec := doRequest(t, h, http.MethodGet, "/catalog/models", ""); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without make, got %d", rec.Code)
	}
}

func TestMiddlewareRecoversPanicsAndLogsRequestID(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	var logs bytes.Buffer
	srv.logger = slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := chi.NewRouter()
	srv.useMiddleware(r)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("rule table exploded") })
	r.Get("/fine", srv.handleHealth)

	rec := doRequest(t, r, http.MethodGet, "/boom", "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 after panic, got %d", rec.Code)
	}
	rec = doRequest(t, r, http.MethodGet, "/fine", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after recovery, got %d", rec.Code)
	}

	var entries []map[string]any
	dec := json.NewDecoder(&logs)
	for dec.More() {
		var e map[string]any
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode log line: %v", err)
		}
		if e["msg"] == "http request" {
			entries = append(entries, e)
		}
	}
	if len(entries) != 2 {
		t.Fatalf("expected two access log entries, got %d: %s", len(entries), logs.String())
	}
	if entries[0]["status"] != float64(http.StatusInternalServerError) || entries[0]["level"] != "WARN" {
		t.Fatalf("unexpected panic log entry %v", entries[0])
	}
	if id, _ := entries[0]["request_id"].(string); id == "" {
		t.Fatalf("expected a request id in %v", entries[0])
	}
	if entries[1]["status"] != float64(http.StatusOK) || entries[1]["path"] != "/fine" {
		t.Fatalf("unexpected log entry %v", entries[1])
	}
}
