package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Simplici0/leasequote/internal/catalog"
	"github.com/Simplici0/leasequote/internal/duty"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/render"
	"github.com/Simplici0/leasequote/internal/store"
)

const maxBodyBytes = 1 << 20

type server struct {
	auth       *authService
	logger     *slog.Logger
	quotes     *quote.Service
	store      *store.Store
	catalog    *catalog.Catalog
	lenders    *lender.Registry
	comparator *lender.Comparator
	duty       *duty.Engine
	document   *render.Document
}

type errorResponse struct {
	Error    string               `json:"error"`
	Problems []quote.FieldProblem `json:"problems,omitempty"`
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	s.useMiddleware(r)

	r.Get("/healthz", s.handleHealth)
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)

	r.Route("/catalog", func(r chi.Router) {
		r.Get("/makes", s.handleCatalogMakes)
		r.Get("/models", s.handleCatalogModels)
		r.Get("/years", s.handleCatalogYears)
		r.Get("/details", s.handleCatalogDetails)
	})

	r.Route("/quotes", func(r chi.Router) {
		r.Post("/", s.handleQuoteCreate)
		r.Get("/", s.handleQuotesList)
		r.Get("/{ref}", s.handleQuoteDetail)
		r.Get("/{ref}/text", s.handleQuoteText)
		r.Get("/{ref}/schedule", s.handleQuoteSchedule)
	})

	r.Get("/lenders", s.handleLenders)
	r.Post("/lenders/compare", s.handleLenderCompare)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAdmin)
		r.Post("/admin/lenders/{lender}/rate", s.handleLenderRateUpdate)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.auth.sessionEmail(r); !ok {
			writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// useMiddleware installs request IDs, the access log and panic recovery.
// Recovery runs inside the access log so recovered panics are logged as 500s.
func (s *server) useMiddleware(r chi.Router) {
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		s.logger.Log(r.Context(), level, "http request",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

// decodeJSON reads exactly one JSON value into dst and rejects unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeQuoteError maps quote errors to status codes: request problems are the
// caller's fault, rule set gaps are ours.
func (s *server) writeQuoteError(w http.ResponseWriter, err error) {
	var verr *quote.ValidationError
	var cerr *quote.ConfigError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid lease request", Problems: verr.Problems})
	case errors.As(err, &cerr):
		s.logger.Error("rule set cannot serve request", "table", cerr.Table, "key", cerr.Key, "error", cerr.Err)
		writeError(w, http.StatusInternalServerError, "quote configuration error")
	default:
		s.logger.Error("generate quote", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate quote")
	}
}
