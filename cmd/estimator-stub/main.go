package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brakes/brakes-estimator/internal/stub"
	"github.com/brakes/brakes-estimator/pkg/config"
	"github.com/brakes/brakes-estimator/pkg/logger"
	"github.com/brakes/brakes-estimator/pkg/metrics"
)

func main() {
	cfg, err := config.Load("estimator-stub")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("estimator-stub", cfg.App.Environment).SetLevel(cfg.App.LogLevel)
	log.Info().Msg("starting estimation service stub")

	m := metrics.NewHTTPServerMetrics("estimator-stub")
	server := stub.NewServer(cfg.Server, log, stub.WithMetrics(m))
	defer server.Close()

	addr := cfg.Server.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Separate scrape listener, when configured
	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: m.Handler()}
		go func() {
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics listening")
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if metricsSrv != nil {
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("metrics server forced to shutdown")
		}
	}

	log.Info().Msg("server stopped")
}
