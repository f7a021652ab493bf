package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"stash/internal/inventory/engine"
	"stash/internal/inventory/handler"
	inventorymetrics "stash/internal/inventory/metrics"
	"stash/internal/inventory/sweeper"
	"stash/internal/platform/config"
	"stash/internal/platform/httpserver"
	"stash/internal/platform/logger"
	"stash/internal/platform/metrics"
	httptransport "stash/internal/transport/http"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the expiry sweeper",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger.New(cfg.Log.Level, cfg.Log.Format))
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	reg := metrics.NewRegistry()
	inventoryMetrics := inventorymetrics.New(reg)

	b, err := buildBackends(ctx, cfg, log, inventoryMetrics)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := b.Close(shutdownCtx); err != nil {
			log.Warn("closing backends", "error", err)
		}
	}()

	eng, err := newEngine(cfg, log, b, inventoryMetrics)
	if err != nil {
		return err
	}

	sw := sweeper.New(eng,
		sweeper.WithInterval(cfg.Sweeper.Interval),
		sweeper.WithLogger(log),
	)
	if cfg.Sweeper.Enabled {
		sw.Start(ctx)
		defer sw.Stop()
	}

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        metrics.NewHTTP(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
	}, handler.New(eng, log))
	srv := httpserver.New(cfg.Server, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting stash",
			"addr", cfg.Server.Addr,
			"store", cfg.Store.Backend,
			"lock", cfg.Lock.Backend,
			"events", cfg.Events.Sink,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func newEngine(cfg config.Config, log *slog.Logger, b *backends, m *inventorymetrics.Metrics) (*engine.Engine, error) {
	return engine.New(b.store, b.locker,
		engine.WithLogger(log),
		engine.WithMetrics(m),
		engine.WithPublisher(b.publisher),
		engine.WithReservationTTL(cfg.Reservation.DefaultTTL),
		engine.WithLockTimeout(cfg.Lock.Timeout),
		engine.WithSweepConcurrency(cfg.Sweeper.Concurrency),
	)
}
