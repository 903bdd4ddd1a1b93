package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/flagvane/flagvane/internal/api"
	"github.com/flagvane/flagvane/internal/config"
	"github.com/flagvane/flagvane/internal/logging"
	"github.com/flagvane/flagvane/internal/snapshot"
	"github.com/flagvane/flagvane/internal/store"
	"github.com/flagvane/flagvane/internal/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log := logging.New(cfg.LogLevel)
	telemetry.Init()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	st, err := store.NewStore(ctx, cfg.StoreType, cfg.DatabaseDSN, cfg.SnapshotFile, log)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = st.Close() }()

	cache := snapshot.NewCache(st, snapshot.Config{
		Interval:       cfg.RefreshInterval,
		RefreshEnabled: cfg.RefreshEnabled,
		RetryMax:       uint(cfg.RefreshRetryMax),
		LoadTimeout:    cfg.LoadTimeout,
	}, log)
	if err := cache.Start(ctx); err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	defer cache.Stop()

	// Log snapshot changes as they publish.
	updates, unsubscribe := cache.Subscribe()
	defer unsubscribe()
	go func() {
		for etag := range updates {
			log.Info().Str("etag", etag).Msg("serving new snapshot")
		}
	}()

	srvAPI := api.NewServer(cache, log, cfg.RateLimitPerIP)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("api server listening")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:        cfg.MetricsAddr,
		Handler:     metricsMux,
		ReadTimeout: 3 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
	go func() {
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShut()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	log.Info().Msg("stopped")
	return nil
}
