package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/gigconnect/internal/auth"
	"github.com/robertarktes/gigconnect/internal/bookmarks"
	"github.com/robertarktes/gigconnect/internal/config"
	"github.com/robertarktes/gigconnect/internal/gigs"
	httphandler "github.com/robertarktes/gigconnect/internal/http"
	"github.com/robertarktes/gigconnect/internal/idempotency"
	"github.com/robertarktes/gigconnect/internal/matching"
	"github.com/robertarktes/gigconnect/internal/observability"
	"github.com/robertarktes/gigconnect/internal/stats"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOtel, err := observability.SetupOTel(ctx, cfg, "gigconnect-api")
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel(context.Background())

	logger := observability.NewLogger(cfg.LogLevel)

	verifier, err := auth.NewVerifier(cfg.JWTPublicKey, cfg.JWTIssuer)
	if err != nil {
		log.Fatalf("failed to load jwt key: %v", err)
	}

	deps, err := connect(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("failed to connect dependencies: %v", err)
	}
	defer deps.close()

	handlers := httphandler.NewHandlers(
		matching.NewService(deps.relationships, deps.directory, logger),
		gigs.NewService(deps.gigs, deps.relationships, deps.directory, logger),
		stats.NewService(deps.gigs, deps.directory),
		bookmarks.NewService(deps.bookmarks, deps.directory),
		deps.logs,
		deps.checks,
		logger,
	)

	r := httphandler.SetupRouter(handlers, httphandler.RouterConfig{
		Logger:             logger,
		Verifier:           verifier,
		Limiter:            deps.limiter,
		Idempotency:        idempotency.NewIdempotency(deps.idempotency, cfg.IdempotencyTTL),
		RequestTimeout:     cfg.RequestTimeout,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		BookmarkPerMinute:  cfg.BookmarkPerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", cfg.HTTPAddr).WithField("store", cfg.StoreDriver).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("api stopped with error")
		return
	}
	logger.Info("api exiting")
}
