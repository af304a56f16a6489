package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/config"
	"github.com/rmgimenez/php-cantina-sub001/internal/infra"
	"github.com/rmgimenez/php-cantina-sub001/internal/middleware"
	"github.com/rmgimenez/php-cantina-sub001/internal/repository"
	"github.com/rmgimenez/php-cantina-sub001/internal/router"
	"github.com/rmgimenez/php-cantina-sub001/internal/service"
	"github.com/rmgimenez/php-cantina-sub001/internal/worker"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	// Structured logger: pretty in dev, JSON in production
	zerolog.TimeFieldFormat = time.RFC3339
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid timezone")
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBMaxOpenConns)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis backs the catalog cache, shared rate limits and the invoice
	// queue. The ledger runs without it.
	rdb, err := infra.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		log.Warn().Err(err).Msg("redis unavailable, running without cache and background jobs")
		rdb = nil
	}

	service.RegisterMetrics(prometheus.DefaultRegisterer)
	middleware.RegisterMetrics(prometheus.DefaultRegisterer)

	if rdb != nil {
		// Worker dependencies are wired here (composition root) so the pool
		// shares the database without going through the HTTP layer.
		invoiceSvc := service.NewInvoiceService(
			repository.NewInvoiceRepository(db),
			repository.NewSaleRepository(db),
			repository.NewAccountRepository(db),
			loc, service.UTCClock,
		)
		retry := service.RetryPolicy{MaxRetries: cfg.MaxRetries, Backoff: cfg.RetryBackoff}
		recompute := worker.RecomputeFunc(func(ctx context.Context, employeeID uuid.UUID, monthRef string) error {
			_, err := service.WithRetry(ctx, retry, "invoice.recompute", func() (any, error) {
				return invoiceSvc.Recompute(ctx, employeeID, monthRef)
			})
			return err
		})
		worker.StartWorkerPool(ctx, rdb, recompute, cfg.WorkerPoolSize)
	}

	r, err := router.New(cfg, db, rdb)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build router")
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown on SIGINT / SIGTERM
	go func() {
		log.Info().Str("timezone", loc.String()).Msgf("canteen ledger listening on :%d", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server…")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("forced shutdown")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info().Msg("server exited")
}
