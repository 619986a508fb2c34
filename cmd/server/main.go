package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Simplici0/leasequote/internal/catalog"
	"github.com/Simplici0/leasequote/internal/config"
	"github.com/Simplici0/leasequote/internal/db"
	"github.com/Simplici0/leasequote/internal/lender"
	"github.com/Simplici0/leasequote/internal/logger"
	"github.com/Simplici0/leasequote/internal/migrations"
	"github.com/Simplici0/leasequote/internal/quote"
	"github.com/Simplici0/leasequote/internal/render"
	"github.com/Simplici0/leasequote/internal/rules"
	"github.com/Simplici0/leasequote/internal/scene"
	"github.com/Simplici0/leasequote/internal/seed"
	"github.com/Simplici0/leasequote/internal/store"
	"github.com/Simplici0/leasequote/internal/telemetry"
)

const (
	serviceName     = "leasequote"
	imageCacheTTL   = 30 * 24 * time.Hour
	shutdownTimeout = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	log := logger.New(logger.Options{
		Service: serviceName,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, serviceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("shutdown telemetry", "error", err)
		}
	}()

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer database.Close()

	if cfg.IsDev() {
		if err := migrations.Up(database); err != nil {
			return fmt.Errorf("failed to run database migrations: %w", err)
		}
	}
	if version, err := migrations.Version(database); err != nil {
		log.Warn("read schema version", "error", err)
	} else {
		log.Info("database ready", "path", cfg.DBPath, "schema_version", version)
	}

	stats, err := seed.Run(database, seed.Config{
		AdminEmail:    cfg.AdminEmail,
		AdminPassword: cfg.AdminPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to seed database: %w", err)
	}
	log.Info("seed complete", "inserts", stats.Inserts, "updates", stats.Updates)

	set, err := rules.Load(cfg.RulesPath)
	if err != nil {
		return err
	}
	engines, err := set.Build()
	if err != nil {
		return err
	}

	st := store.New(database)
	if err := restoreLenderRates(ctx, st, engines.Lenders, log); err != nil {
		return err
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		return err
	}

	engine, err := quote.NewEngine(engines.QuoteDeps())
	if err != nil {
		return err
	}

	var images quote.ImageRequester
	if cfg.ImagesEnabled() {
		images = scene.NewClient(scene.Config{
			APIKey: cfg.ImageAPIKey,
			APIURL: cfg.ImageAPIURL,
			Model:  cfg.ImageModel,
		}, imageCache(ctx, cfg.RedisAddr, log))
	} else {
		log.Info("scene images disabled", "reason", "IMAGE_API_KEY is not set")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("using a random session secret; admin sessions end on restart")
	}

	quotes := quote.NewService(engine, st, images, cat, log)
	quotes.SetImageTimeout(cfg.ImageTimeout)

	srv := &server{
		auth:       newAuthService(database, secret),
		logger:     log,
		quotes:     quotes,
		store:      st,
		catalog:    cat,
		lenders:    engines.Lenders,
		comparator: lender.NewComparator(engines.Lenders, engines.Finance),
		duty:       engines.Duty,
		document:   render.New(),
	}

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = httpServer.Shutdown(shutdownCtx)
	quotes.Wait()
	return err
}

// restoreLenderRates replays persisted rate changes so the latest stored rate
// wins over the rule set.
func restoreLenderRates(ctx context.Context, st *store.Store, registry *lender.Registry, log *slog.Logger) error {
	changes, err := st.RateChanges(ctx)
	if err != nil {
		return fmt.Errorf("load lender rate history: %w", err)
	}
	for _, c := range registry.Restore(changes) {
		log.Warn("skipping stored rate change", "lender", c.Lender, "rate", c.NewRate)
	}
	return nil
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// imageCache prefers Redis when configured and reachable.
func imageCache(ctx context.Context, addr string, log *slog.Logger) scene.Cache {
	if addr == "" {
		return scene.NewMemoryCache()
	}

	rc := scene.NewRedisCache(addr, imageCacheTTL)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rc.Ping(pingCtx); err != nil {
		log.Warn("redis unavailable, caching images in memory", "addr", addr, "error", err)
		_ = rc.Close()
		return scene.NewMemoryCache()
	}
	return rc
}

func randomSecret() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
