package quote

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultImageTimeout bounds one background scene image request.
const DefaultImageTimeout = 5 * time.Second

// Collaborator names used in outcomes.
const (
	CollaboratorImage = "image"
	CollaboratorStore = "store"
)

// Submission is a lease request with its client details.
type Submission struct {
	Request LeaseRequest `json:"request"`
	Client  Client       `json:"client"`
}

// Outcome reports how one collaborator handled a finished quote. A pending
// outcome finishes after Create returns.
type Outcome struct {
	Collaborator string `json:"collaborator"`
	OK           bool   `json:"ok"`
	Skipped      bool   `json:"skipped,omitempty"`
	Pending      bool   `json:"pending,omitempty"`
	Error        string `json:"error,omitempty"`
}

// Result is a quote with the outcome of every collaborator. Collaborator
// failures never invalidate the quote.
type Result struct {
	Quote    Quote     `json:"quote"`
	Outcomes []Outcome `json:"outcomes"`
}

// Outcome returns the named collaborator's outcome.
func (r Result) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Collaborator == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Service generates quotes and fans them out to collaborators. Any
// collaborator may be nil.
type Service struct {
	engine       *Engine
	store        Store
	images       ImageRequester
	catalog      Catalog
	logger       *slog.Logger
	tracer       trace.Tracer
	imageTimeout time.Duration

	background sync.WaitGroup
}

// NewService wires the engine to its collaborators.
func NewService(engine *Engine, store Store, images ImageRequester, catalog Catalog, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:       engine,
		store:        store,
		images:       images,
		catalog:      catalog,
		logger:       logger,
		tracer:       otel.Tracer("github.com/Simplici0/leasequote/internal/quote"),
		imageTimeout: DefaultImageTimeout,
	}
}

// SetImageTimeout changes the bound on background image requests. Zero or
// less keeps the current value.
func (s *Service) SetImageTimeout(d time.Duration) {
	if d > 0 {
		s.imageTimeout = d
	}
}

// Wait blocks until background image requests have finished.
func (s *Service) Wait() {
	s.background.Wait()
}

// Engine returns the underlying quote engine.
func (s *Service) Engine() *Engine {
	return s.engine
}

// Create computes a quote and persists it. A scene image is requested in the
// background once the quote is saved and attached to the stored record. The
// only errors returned come from the computation.
func (s *Service) Create(ctx context.Context, sub Submission) (Result, error) {
	ctx, span := s.tracer.Start(ctx, "quote.Create")
	defer span.End()

	q, err := s.engine.Generate(s.enrich(sub.Request))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "quote rejected")
		return Result{}, err
	}
	span.SetAttributes(
		attribute.String("quote.ref", q.Ref),
		attribute.String("quote.jurisdiction", q.Request.Jurisdiction),
		attribute.Int("quote.term_years", q.Request.TermYears),
		attribute.String("quote.policy", string(q.Allocation.Policy)),
	)

	stored := s.persist(ctx, Record{Quote: q, Client: sub.Client})
	res := Result{
		Quote:    q,
		Outcomes: []Outcome{s.requestImage(ctx, q, stored.OK), stored},
	}

	s.logger.Info("quote created",
		"ref", q.Ref,
		"jurisdiction", q.Request.Jurisdiction,
		"term_years", q.Request.TermYears,
		"payment", q.Schedule.Payment,
		"policy", q.Allocation.Policy,
	)
	return res, nil
}

// enrich fills request fields the caller left empty from the catalog. A
// catalog miss leaves the request as it is.
func (s *Service) enrich(req LeaseRequest) LeaseRequest {
	if s.catalog == nil || req.Make == "" || req.Model == "" || req.Year == 0 {
		return req
	}
	v, ok := s.catalog.Lookup(req.Make, req.Model, req.Year)
	if !ok {
		return req
	}
	if req.BodyStyle == "" {
		req.BodyStyle = v.BodyStyle
	}
	if req.FuelType == "" {
		req.FuelType = v.FuelType
	}
	if req.ZeroEmission == nil {
		ze := v.ZeroEmission()
		req.ZeroEmission = &ze
	}
	if req.EngineLitres == 0 && !req.IsZeroEmission() {
		req.EngineLitres = v.EngineLitres
	}
	return req
}

// requestImage starts a background image request for a saved quote. The
// request outlives ctx's cancellation but not the image timeout.
func (s *Service) requestImage(ctx context.Context, q Quote, saved bool) Outcome {
	out := Outcome{Collaborator: CollaboratorImage}
	if s.images == nil || !saved || q.Request.Make == "" {
		out.Skipped = true
		return out
	}

	bg, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.imageTimeout)
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		defer cancel()
		s.attachImage(bg, q)
	}()

	out.Pending = true
	return out
}

func (s *Service) attachImage(ctx context.Context, q Quote) {
	ctx, span := s.tracer.Start(ctx, "quote.AttachImage")
	defer span.End()

	url, err := s.images.Image(ctx, q.Request.Make, q.Request.Model, string(q.Class))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "image request failed")
		s.logger.Warn("scene image request failed", "ref", q.Ref, "error", err)
		return
	}
	if err := s.store.AttachImage(ctx, q.Ref, url); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attach image failed")
		s.logger.Warn("failed to attach scene image", "ref", q.Ref, "error", err)
		return
	}
	s.logger.Debug("scene image attached", "ref", q.Ref)
}

func (s *Service) persist(ctx context.Context, rec Record) Outcome {
	out := Outcome{Collaborator: CollaboratorStore}
	if s.store == nil {
		out.Skipped = true
		return out
	}

	ctx, span := s.tracer.Start(ctx, "quote.Persist")
	defer span.End()

	if err := s.store.SaveQuote(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		s.logger.Warn("failed to persist quote", "ref", rec.Quote.Ref, "error", err)
		out.Error = err.Error()
		return out
	}
	out.OK = true
	return out
}
