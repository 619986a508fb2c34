package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Simplici0/leasequote/internal/catalog"
	"github.com/Simplici0/leasequote/internal/duty"
	"github.com/Simplici0/leasequote/internal/finance"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/running"
	"github.com/Simplici0/leasequote/internal/store"
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	valid, err := s.auth.validateCredentials(strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		s.logger.Error("validate credentials", "error", err)
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	if !valid {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	s.auth.setSessionCookie(w, strings.TrimSpace(req.Email))
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.auth.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleCatalogMakes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"makes": s.catalog.Makes()})
}

func (s *server) handleCatalogModels(w http.ResponseWriter, r *http.Request) {
	mk := strings.TrimSpace(r.URL.Query().Get("make"))
	if mk == "" {
		writeError(w, http.StatusBadRequest, "make is required")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"models": s.catalog.Models(mk)})
}

func (s *server) handleCatalogYears(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mk, model := strings.TrimSpace(q.Get("make")), strings.TrimSpace(q.Get("model"))
	if mk == "" || model == "" {
		writeError(w, http.StatusBadRequest, "make and model are required")
		return
	}
	writeJSON(w, http.StatusOK, map[string][]int{"years": s.catalog.Years(mk, model)})
}

type vehicleDetails struct {
	catalog.Vehicle
	ZeroEmission bool          `json:"zero_emission"`
	Class        running.Class `json:"class"`
}

func (s *server) handleCatalogDetails(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := strconv.Atoi(q.Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "year must be a whole number")
		return
	}

	v, ok := s.catalog.Lookup(q.Get("make"), q.Get("model"), year)
	if !ok {
		writeError(w, http.StatusNotFound, "vehicle not in catalog")
		return
	}

	writeJSON(w, http.StatusOK, vehicleDetails{
		Vehicle:      v,
		ZeroEmission: v.ZeroEmission(),
		Class:        s.quotes.Engine().Classify(v.BodyStyle, v.Make),
	})
}

func (s *server) handleQuoteCreate(w http.ResponseWriter, r *http.Request) {
	var sub quote.Submission
	if err := decodeJSON(w, r, &sub); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.quotes.Create(r.Context(), sub)
	if err != nil {
		s.writeQuoteError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func (s *server) handleQuotesList(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	quotes, err := s.store.ListQuotes(r.Context(), query, limit)
	if err != nil {
		s.logger.Error("list quotes", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load quotes")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"query": query, "quotes": quotes})
}

func (s *server) loadQuote(w http.ResponseWriter, r *http.Request) (quote.Record, bool) {
	ref := chi.URLParam(r, "ref")
	rec, err := s.store.GetQuote(r.Context(), ref)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "quote not found")
		return quote.Record{}, false
	}
	if err != nil {
		s.logger.Error("load quote", "ref", ref, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load quote")
		return quote.Record{}, false
	}
	return rec, true
}

func (s *server) handleQuoteDetail(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quote": rec.Quote, "client": rec.Client})
}

func (s *server) handleQuoteText(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := s.document.Write(w, rec); err != nil {
		s.logger.Warn("write quote document", "ref", rec.Quote.Ref, "error", err)
	}
}

type scheduleResponse struct {
	Ref     string           `json:"ref"`
	Payment float64          `json:"payment"`
	Balloon float64          `json:"balloon"`
	Periods []finance.Period `json:"periods"`
}

func (s *server) handleQuoteSchedule(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadQuote(w, r)
	if !ok {
		return
	}
	sched := rec.Quote.Schedule
	writeJSON(w, http.StatusOK, scheduleResponse{
		Ref:     rec.Quote.Ref,
		Payment: sched.Payment,
		Balloon: sched.Balloon,
		Periods: sched.Amortize(),
	})
}

func (s *server) handleLenders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rates":   s.lenders.Rates(),
		"best":    s.lenders.Best(),
		"history": s.lenders.History(),
	})
}

type compareRequest struct {
	VehiclePrice float64 `json:"vehicle_price"`
	Jurisdiction string  `json:"jurisdiction"`
	TermYears    int     `json:"term_years"`
	ZeroEmission bool    `json:"zero_emission"`
}

type compareResponse struct {
	Duty   duty.Assessment `json:"duty"`
	Quotes []lender.Quote  `json:"quotes"`
}

func (s *server) handleLenderCompare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	assessment, err := s.duty.Assess(duty.Jurisdiction(strings.ToUpper(strings.TrimSpace(req.Jurisdiction))), req.VehiclePrice, req.ZeroEmission)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	quotes, err := s.comparator.Compare(req.VehiclePrice, assessment.Duty, assessment.RegistrationFee, req.TermYears)
	switch {
	case errors.Is(err, finance.ErrUnmappedTerm), errors.Is(err, finance.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.logger.Error("compare lenders", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to compare lenders")
		return
	}

	writeJSON(w, http.StatusOK, compareResponse{Duty: assessment, Quotes: quotes})
}

type rateUpdateRequest struct {
	Rate   float64 `json:"rate"`
	Reason string  `json:"reason"`
}

type rateUpdateResponse struct {
	Change    lender.RateChange `json:"change"`
	Persisted bool              `json:"persisted"`
}

func (s *server) handleLenderRateUpdate(w http.ResponseWriter, r *http.Request) {
	var req rateUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	change, err := s.lenders.UpdateRate(chi.URLParam(r, "lender"), req.Rate, strings.TrimSpace(req.Reason))
	switch {
	case errors.Is(err, lender.ErrUnknownLender):
		writeError(w, http.StatusNotFound, err.Error())
		return
	case errors.Is(err, lender.ErrInvalidRate):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to update rate")
		return
	}

	persisted := true
	if err := s.store.RecordRateChange(r.Context(), change); err != nil {
		s.logger.Warn("persist rate change", "lender", change.Lender, "error", err)
		persisted = false
	}

	admin, _ := s.auth.sessionEmail(r)
	s.logger.Info("lender rate updated",
		"lender", change.Lender,
		"previous_rate", change.PreviousRate,
		"new_rate", change.NewRate,
		"by", admin,
	)

	writeJSON(w, http.StatusOK, rateUpdateResponse{Change: change, Persisted: persisted})
}
